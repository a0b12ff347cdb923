package sink

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/ghalamif/sensorlog/internal/domain"
	"github.com/ghalamif/sensorlog/internal/ports"
)

const columnsQuery = "SELECT column_name FROM information_schema.columns WHERE table_name = $1 ORDER BY ordinal_position"

func TestTimescaleSinkEnsureHeaderAndAppend(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}

	sink := NewTimescaleSink(db, "sensor_readings", domain.ObjectSchema(false))

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS sensor_readings (id TEXT NOT NULL, temperature DOUBLE PRECISION NOT NULL, humidity DOUBLE PRECISION NOT NULL, datetime TIMESTAMPTZ NOT NULL)")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(columnsQuery)).
		WithArgs("sensor_readings").
		WillReturnRows(sqlmock.NewRows([]string{"column_name"}).
			AddRow("id").AddRow("temperature").AddRow("humidity").AddRow("datetime"))

	ts := time.Date(2025, 6, 1, 10, 20, 30, 0, time.Local)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO sensor_readings (id, temperature, humidity, datetime) VALUES ($1,$2,$3,$4)")).
		WithArgs("3", 24.57, 55.1, ts).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectClose()

	if err := sink.Open(); err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := sink.EnsureHeader(); err != nil {
		t.Fatalf("ensure header: %v", err)
	}
	if err := sink.EnsureHeader(); err != nil {
		t.Fatalf("second ensure header must be a no-op: %v", err)
	}
	rec := domain.Record{Kind: domain.KindObject, HostTime: ts, ID: "3", Temperature: 24.57, Humidity: 55.1}
	if err := sink.Append(rec); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTimescaleSinkSchemaMismatch(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	sink := NewTimescaleSink(db, "sensor_readings", domain.ScalarSchema())

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS sensor_readings (timestamp TIMESTAMPTZ NOT NULL, temperature_c DOUBLE PRECISION NOT NULL)")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(columnsQuery)).
		WithArgs("sensor_readings").
		WillReturnRows(sqlmock.NewRows([]string{"column_name"}).AddRow("id").AddRow("temperature"))

	if err := sink.EnsureHeader(); !errors.Is(err, ports.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTimescaleSinkInsertFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	sink := NewTimescaleSink(db, "sensor_readings", domain.ScalarSchema())
	sink.headerChecked = true

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO sensor_readings (timestamp, temperature_c) VALUES ($1,$2)")).
		WillReturnError(errors.New("disk full"))

	err = sink.Append(domain.Record{Kind: domain.KindScalar, HostTime: time.Now(), Temperature: 28})
	if !errors.Is(err, ports.ErrSinkFailed) {
		t.Fatalf("expected ErrSinkFailed, got %v", err)
	}
}

func TestTimescaleSinkRejectsBadTableName(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	sink := NewTimescaleSink(db, "readings; DROP TABLE x", domain.ScalarSchema())
	if err := sink.Open(); !errors.Is(err, ports.ErrSinkFailed) {
		t.Fatalf("expected ErrSinkFailed, got %v", err)
	}
	if sink.Name() != "timescaledb" {
		t.Fatalf("expected sink name timescaledb, got %s", sink.Name())
	}
}

func TestConfigValidate(t *testing.T) {
	var c Config
	c.ApplyDefaults()
	if c.Kind != KindCSV || c.CSV.Path != "sensor_data.csv" || c.Timescale.Table != "sensor_readings" {
		t.Fatalf("unexpected defaults %+v", c)
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}

	c.Kind = KindTimescale
	if err := c.Validate(); err == nil {
		t.Fatalf("expected conn_string to be required")
	}
	c.Timescale.ConnString = "postgres://localhost/db"
	c.Timescale.Table = "bad-name"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected invalid table name to be rejected")
	}
	c.Kind = "s3"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected unknown kind to be rejected")
	}
}
