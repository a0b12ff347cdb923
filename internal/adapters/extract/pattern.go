package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ghalamif/sensorlog/internal/domain"
	"github.com/ghalamif/sensorlog/internal/ports"
)

var (
	temperatureMarker = regexp.MustCompile(`Received\s+Temperature:`)
	// The number must end at a non-numeric boundary so "28.5.3" or "28." are
	// rejected instead of yielding a prefix.
	temperatureValue = regexp.MustCompile(`Received\s+Temperature:\s*([-+]?\d+(?:\.\d+)?)(?:[^\d.]|$)`)
)

// PatternExtractor finds a "Received Temperature: <decimal>" phrase in a
// device log line, e.g.
//
//	I (71183) CENTRAL_NODE: Received Temperature: 28.00 °C
type PatternExtractor struct{}

func NewPatternExtractor() *PatternExtractor { return &PatternExtractor{} }

func (p *PatternExtractor) Extract(line string) (domain.Reading, error) {
	if strings.TrimSpace(line) == "" {
		return nil, ports.ErrEmptyLine
	}
	m := temperatureValue.FindStringSubmatch(line)
	if m == nil {
		if temperatureMarker.MatchString(line) {
			return nil, fmt.Errorf("%w: temperature marker without a well-formed number", ports.ErrMalformed)
		}
		return nil, ports.ErrNoMatch
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return nil, fmt.Errorf("%w: temperature %q: %v", ports.ErrMalformed, m[1], err)
	}
	return domain.ScalarReading{TemperatureC: v}, nil
}

var _ ports.Extractor = (*PatternExtractor)(nil)
