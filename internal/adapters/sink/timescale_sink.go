package sink

import (
	"database/sql"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/ghalamif/sensorlog/internal/domain"
	"github.com/ghalamif/sensorlog/internal/ports"
)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// TimescaleSink appends records to a Postgres/TimescaleDB table whose column
// list plays the role of the CSV header.
type TimescaleSink struct {
	db            *sql.DB
	tableName     string
	schema        domain.Schema
	headerChecked bool
}

func NewTimescaleSink(db *sql.DB, table string, schema domain.Schema) *TimescaleSink {
	return &TimescaleSink{db: db, tableName: table, schema: schema}
}

func (t *TimescaleSink) Name() string { return "timescaledb" }

func (t *TimescaleSink) Open() error {
	if !tableName.MatchString(t.tableName) {
		return fmt.Errorf("%w: invalid table name %q", ports.ErrSinkFailed, t.tableName)
	}
	if err := t.db.Ping(); err != nil {
		return fmt.Errorf("%w: ping: %v", ports.ErrSinkFailed, err)
	}
	return nil
}

func (t *TimescaleSink) EnsureHeader() error {
	if t.headerChecked {
		return nil
	}

	if _, err := t.db.Exec(t.createTableSQL()); err != nil {
		return fmt.Errorf("%w: create table %s: %v", ports.ErrSinkFailed, t.tableName, err)
	}

	rows, err := t.db.Query(
		"SELECT column_name FROM information_schema.columns WHERE table_name = $1 ORDER BY ordinal_position",
		t.tableName)
	if err != nil {
		return fmt.Errorf("%w: inspect table %s: %v", ports.ErrSinkFailed, t.tableName, err)
	}
	defer rows.Close()

	var got []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("%w: inspect table %s: %v", ports.ErrSinkFailed, t.tableName, err)
		}
		got = append(got, name)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("%w: inspect table %s: %v", ports.ErrSinkFailed, t.tableName, err)
	}

	want := t.columnNames()
	if !slices.Equal(got, want) {
		return fmt.Errorf("%w: table %s has columns %v, schema %s expects %v", ports.ErrSchemaMismatch, t.tableName, got, t.schema.Kind, want)
	}
	t.headerChecked = true
	return nil
}

func (t *TimescaleSink) Append(rec domain.Record) error {
	if !t.headerChecked {
		if err := t.EnsureHeader(); err != nil {
			return err
		}
	}
	if rec.Kind != t.schema.Kind {
		return fmt.Errorf("%w: %s record for %s schema", ports.ErrSchemaMismatch, rec.Kind, t.schema.Kind)
	}

	args := make([]any, 0, len(t.schema.Columns))
	for _, c := range t.schema.Columns {
		switch c.Field {
		case domain.FieldHostTime:
			args = append(args, rec.HostTime)
		case domain.FieldID:
			args = append(args, rec.ID)
		case domain.FieldTemperature:
			args = append(args, rec.Temperature)
		case domain.FieldHumidity:
			args = append(args, rec.Humidity)
		case domain.FieldDeviceTimestamp:
			if rec.DeviceTimestamp != nil {
				args = append(args, *rec.DeviceTimestamp)
			} else {
				args = append(args, nil)
			}
		}
	}

	// Autocommit: the row is durable once Exec returns.
	if _, err := t.db.Exec(t.insertSQL(), args...); err != nil {
		return fmt.Errorf("%w: insert into %s: %v", ports.ErrSinkFailed, t.tableName, err)
	}
	return nil
}

func (t *TimescaleSink) Close() error {
	t.headerChecked = false
	return t.db.Close()
}

func (t *TimescaleSink) columnNames() []string {
	out := make([]string, len(t.schema.Columns))
	for i, c := range t.schema.Columns {
		out[i] = strings.ToLower(c.Name)
	}
	return out
}

func (t *TimescaleSink) createTableSQL() string {
	var b strings.Builder
	b.WriteString("CREATE TABLE IF NOT EXISTS ")
	b.WriteString(t.tableName)
	b.WriteString(" (")
	for i, c := range t.schema.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(strings.ToLower(c.Name))
		b.WriteString(" ")
		b.WriteString(columnType(c.Field))
	}
	b.WriteString(")")
	return b.String()
}

func (t *TimescaleSink) insertSQL() string {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(t.tableName)
	b.WriteString(" (")
	b.WriteString(strings.Join(t.columnNames(), ", "))
	b.WriteString(") VALUES (")
	for i := range t.schema.Columns {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(fmt.Sprintf("$%d", i+1))
	}
	b.WriteString(")")
	return b.String()
}

func columnType(f domain.Field) string {
	switch f {
	case domain.FieldHostTime:
		return "TIMESTAMPTZ NOT NULL"
	case domain.FieldTemperature, domain.FieldHumidity:
		return "DOUBLE PRECISION NOT NULL"
	case domain.FieldID:
		return "TEXT NOT NULL"
	default:
		return "TEXT"
	}
}

var _ ports.Sink = (*TimescaleSink)(nil)
