package sink

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/ghalamif/sensorlog/internal/domain"
	"github.com/ghalamif/sensorlog/internal/ports"
)

// syncFile is the subset of *os.File the sink writes through.
type syncFile interface {
	io.Writer
	io.ReaderAt
	Stat() (os.FileInfo, error)
	Truncate(size int64) error
	Sync() error
	Close() error
}

// CSVSink is the durable append-only log. Every Append is a single write of
// one complete row followed by fsync; a torn row left by a crash is cut off
// when the file is reopened.
type CSVSink struct {
	path   string
	schema domain.Schema
	logf   func(format string, args ...any)

	file          syncFile
	size          int64
	headerChecked bool
}

func NewCSVSink(path string, schema domain.Schema, logf func(string, ...any)) *CSVSink {
	if logf == nil {
		logf = func(string, ...any) {}
	}
	return &CSVSink{path: path, schema: schema, logf: logf}
}

func (s *CSVSink) Name() string { return "csv:" + s.path }

// Size is the current file size in bytes.
func (s *CSVSink) Size() int64 { return s.size }

func (s *CSVSink) Open() error {
	if s.file != nil {
		return nil
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: create %s: %v", ports.ErrSinkFailed, dir, err)
		}
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", ports.ErrSinkFailed, s.path, err)
	}
	s.file = f
	if err := s.recover(); err != nil {
		_ = f.Close()
		s.file = nil
		return err
	}
	return nil
}

// recover truncates a trailing partial row so the file always ends on a
// row boundary.
func (s *CSVSink) recover() error {
	stat, err := s.file.Stat()
	if err != nil {
		return fmt.Errorf("%w: stat %s: %v", ports.ErrSinkFailed, s.path, err)
	}
	size := stat.Size()
	if size == 0 {
		s.size = 0
		return nil
	}

	cut, err := lastRowBoundary(s.file, size)
	if err != nil {
		return fmt.Errorf("%w: scan %s: %v", ports.ErrSinkFailed, s.path, err)
	}
	if cut < size {
		if err := s.file.Truncate(cut); err != nil {
			return fmt.Errorf("%w: truncate torn row in %s: %v", ports.ErrSinkFailed, s.path, err)
		}
		if err := s.file.Sync(); err != nil {
			return fmt.Errorf("%w: sync %s: %v", ports.ErrSinkFailed, s.path, err)
		}
		s.logf("csv sink %s: dropped %d bytes of torn row", s.path, size-cut)
	}
	s.size = cut
	return nil
}

// lastRowBoundary returns the offset just past the last '\n' in the first
// size bytes of r, or 0 when there is none.
func lastRowBoundary(r io.ReaderAt, size int64) (int64, error) {
	const block = 4096
	buf := make([]byte, block)
	end := size
	for end > 0 {
		start := end - block
		if start < 0 {
			start = 0
		}
		n, err := r.ReadAt(buf[:end-start], start)
		if err != nil && !errors.Is(err, io.EOF) {
			return 0, err
		}
		if i := bytes.LastIndexByte(buf[:n], '\n'); i >= 0 {
			return start + int64(i) + 1, nil
		}
		end = start
	}
	return 0, nil
}

func (s *CSVSink) EnsureHeader() error {
	if s.file == nil {
		return fmt.Errorf("%w: %s not open", ports.ErrSinkFailed, s.path)
	}
	if s.headerChecked {
		return nil
	}

	want := s.schema.Header()
	if s.size == 0 {
		if err := s.writeRow(want); err != nil {
			return err
		}
		s.headerChecked = true
		return nil
	}

	got, err := s.readHeader()
	if err != nil {
		return err
	}
	if !slices.Equal(got, want) {
		return fmt.Errorf("%w: %s has header %v, schema %s expects %v", ports.ErrSchemaMismatch, s.path, got, s.schema.Kind, want)
	}
	s.headerChecked = true
	return nil
}

func (s *CSVSink) readHeader() ([]string, error) {
	r := csv.NewReader(bufio.NewReader(io.NewSectionReader(s.file, 0, s.size)))
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: read header of %s: %v", ports.ErrSchemaMismatch, s.path, err)
	}
	return header, nil
}

func (s *CSVSink) Append(rec domain.Record) error {
	if s.file == nil {
		return fmt.Errorf("%w: %s not open", ports.ErrSinkFailed, s.path)
	}
	if !s.headerChecked {
		if err := s.EnsureHeader(); err != nil {
			return err
		}
	}
	if rec.Kind != s.schema.Kind {
		return fmt.Errorf("%w: %s record for %s schema", ports.ErrSchemaMismatch, rec.Kind, s.schema.Kind)
	}
	return s.writeRow(s.schema.Row(rec))
}

// writeRow renders the row completely before touching the file and rolls
// back a short or failed write so no partial row survives.
func (s *CSVSink) writeRow(fields []string) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(fields); err != nil {
		return fmt.Errorf("%w: encode row: %v", ports.ErrSinkFailed, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("%w: encode row: %v", ports.ErrSinkFailed, err)
	}

	n, err := s.file.Write(buf.Bytes())
	if err == nil && n != buf.Len() {
		err = io.ErrShortWrite
	}
	if err != nil {
		return s.rollback(fmt.Errorf("%w: write %s: %v", ports.ErrSinkFailed, s.path, err))
	}
	if err := s.file.Sync(); err != nil {
		return s.rollback(fmt.Errorf("%w: sync %s: %v", ports.ErrSinkFailed, s.path, err))
	}
	s.size += int64(n)
	return nil
}

func (s *CSVSink) rollback(cause error) error {
	if err := s.file.Truncate(s.size); err != nil {
		return errors.Join(cause, fmt.Errorf("rollback %s to %d bytes: %w", s.path, s.size, err))
	}
	return cause
}

func (s *CSVSink) Close() error {
	if s.file == nil {
		return nil
	}
	err := errors.Join(s.file.Sync(), s.file.Close())
	s.file = nil
	s.headerChecked = false
	if err != nil {
		return fmt.Errorf("%w: close %s: %v", ports.ErrSinkFailed, s.path, err)
	}
	return nil
}

var _ ports.Sink = (*CSVSink)(nil)
