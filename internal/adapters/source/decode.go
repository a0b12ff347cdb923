package source

import (
	"bytes"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ghalamif/sensorlog/internal/ports"
)

// Decode turns raw transport bytes into a trimmed text line. Invalid UTF-8
// yields an empty line under DecodeDrop and is removed under DecodeStrip.
func Decode(raw []byte, policy ports.DecodePolicy) string {
	if !utf8.Valid(raw) {
		if policy != ports.DecodeStrip {
			return ""
		}
		raw = bytes.ToValidUTF8(raw, nil)
	}
	return strings.TrimFunc(string(raw), func(r rune) bool {
		return r == 0 || unicode.IsSpace(r)
	})
}

// lineAssembler accumulates transport chunks and cuts them into lines. An
// unterminated run longer than max is emitted as one line.
type lineAssembler struct {
	buf []byte
	max int
}

func newLineAssembler(max int) *lineAssembler {
	return &lineAssembler{max: max}
}

func (a *lineAssembler) push(p []byte) {
	a.buf = append(a.buf, p...)
}

func (a *lineAssembler) next() ([]byte, bool) {
	if i := bytes.IndexByte(a.buf, '\n'); i >= 0 {
		return a.take(i, i+1), true
	}
	if a.max > 0 && len(a.buf) >= a.max {
		return a.take(a.max, a.max), true
	}
	return nil, false
}

// rest returns the unterminated tail at end of stream.
func (a *lineAssembler) rest() ([]byte, bool) {
	if len(a.buf) == 0 {
		return nil, false
	}
	return a.take(len(a.buf), len(a.buf)), true
}

func (a *lineAssembler) take(end, consume int) []byte {
	line := make([]byte, end)
	copy(line, a.buf[:end])
	a.buf = append(a.buf[:0], a.buf[consume:]...)
	return line
}

// messageLines splits broker messages into lines. A message without a
// newline is one line.
type messageLines struct {
	pending [][]byte
}

func (m *messageLines) push(payload []byte) {
	parts := bytes.Split(payload, []byte{'\n'})
	if n := len(parts); n > 1 && len(parts[n-1]) == 0 {
		parts = parts[:n-1]
	}
	for _, p := range parts {
		cp := make([]byte, len(p))
		copy(cp, p)
		m.pending = append(m.pending, cp)
	}
}

func (m *messageLines) pop() ([]byte, bool) {
	if len(m.pending) == 0 {
		return nil, false
	}
	line := m.pending[0]
	m.pending[0] = nil
	m.pending = m.pending[1:]
	return line, true
}
