package extract

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ghalamif/sensorlog/internal/domain"
	"github.com/ghalamif/sensorlog/internal/ports"
)

// ObjectExtractor parses the JSON object embedded in a device log line such as
//
//	Sent JSON: {"id":3,"temperature":24.567,"humidity":55.1,"timestamp":71183}
//
// Everything before the first '{' is a log prefix and is discarded.
type ObjectExtractor struct {
	policy ports.DeviceTimestampPolicy
}

func NewObjectExtractor(policy ports.DeviceTimestampPolicy) *ObjectExtractor {
	if policy == "" {
		policy = ports.DeviceTimestampDrop
	}
	return &ObjectExtractor{policy: policy}
}

// Keys of the embedded object. Matching is exact; timestamp is optional.
const (
	keyID          = "id"
	keyTemperature = "temperature"
	keyHumidity    = "humidity"
	keyTimestamp   = "timestamp"
)

func (o *ObjectExtractor) Extract(line string) (domain.Reading, error) {
	if strings.TrimSpace(line) == "" {
		return nil, ports.ErrEmptyLine
	}
	start := strings.IndexByte(line, '{')
	if start < 0 {
		return nil, ports.ErrNoMatch
	}

	dec := json.NewDecoder(strings.NewReader(line[start:]))
	fields, err := decodeFields(dec)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ports.ErrMalformed, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after object", ports.ErrMalformed)
	}

	for key := range fields {
		switch key {
		case keyID, keyTemperature, keyHumidity, keyTimestamp:
		default:
			return nil, fmt.Errorf("%w: unknown field %q", ports.ErrMalformed, key)
		}
	}

	id, err := parseID(fields[keyID])
	if err != nil {
		return nil, err
	}
	temperature, err := parseNumber(fields, keyTemperature)
	if err != nil {
		return nil, err
	}
	humidity, err := parseNumber(fields, keyHumidity)
	if err != nil {
		return nil, err
	}

	r := domain.ObjectReading{
		ID:          id,
		Temperature: temperature,
		Humidity:    humidity,
	}

	ts, err := parseDeviceTimestamp(fields[keyTimestamp])
	if err != nil {
		return nil, err
	}
	if o.policy == ports.DeviceTimestampKeep {
		r.DeviceTimestamp = ts
	}
	return r, nil
}

// decodeFields walks one JSON object and returns its members by exact key.
// A key that appears twice is an error.
func decodeFields(dec *json.Decoder) (map[string]json.RawMessage, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("expected object, got %v", tok)
	}

	fields := make(map[string]json.RawMessage, 4)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("expected key, got %v", tok)
		}
		if _, dup := fields[key]; dup {
			return nil, fmt.Errorf("duplicate field %q", key)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, err
		}
		fields[key] = raw
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return fields, nil
}

func parseNumber(fields map[string]json.RawMessage, key string) (float64, error) {
	raw := bytes.TrimSpace(fields[key])
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, fmt.Errorf("%w: missing field %s", ports.ErrMalformed, key)
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, fmt.Errorf("%w: %s must be a number, got %s", ports.ErrMalformed, key, raw)
	}
	return v, nil
}

func parseID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", fmt.Errorf("%w: missing field id", ports.ErrMalformed)
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("%w: id: %v", ports.ErrMalformed, err)
		}
		if strings.TrimSpace(s) == "" {
			return "", fmt.Errorf("%w: empty id", ports.ErrMalformed)
		}
		if strings.ContainsAny(s, "\r\n") {
			return "", fmt.Errorf("%w: id contains a line break", ports.ErrMalformed)
		}
		return s, nil
	}
	n, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return "", fmt.Errorf("%w: id must be a string or integer, got %s", ports.ErrMalformed, raw)
	}
	return strconv.FormatInt(n, 10), nil
}

// parseDeviceTimestamp accepts a JSON string or number. The firmware sends
// integer milliseconds since boot.
func parseDeviceTimestamp(raw json.RawMessage) (*string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("%w: timestamp: %v", ports.ErrMalformed, err)
		}
		if strings.ContainsAny(s, "\r\n") {
			return nil, fmt.Errorf("%w: timestamp contains a line break", ports.ErrMalformed)
		}
		return &s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, fmt.Errorf("%w: timestamp must be a string or number, got %s", ports.ErrMalformed, raw)
	}
	s := n.String()
	return &s, nil
}

var _ ports.Extractor = (*ObjectExtractor)(nil)
