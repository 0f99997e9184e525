package filter

import (
	"fmt"
	"strings"
	"time"

	"recordkeeper-hq/keeper/pkg/retention"
)

// ColumnType is the temporal type of a retention column.
type ColumnType string

const (
	ColumnDate      ColumnType = "DATE"
	ColumnDatetime  ColumnType = "DATETIME"
	ColumnTimestamp ColumnType = "TIMESTAMP"
)

// ParseColumnType maps a warehouse type name to a ColumnType. Zone-less
// timestamps are DATETIME; zoned timestamps are TIMESTAMP.
func ParseColumnType(s string) (ColumnType, error) {
	t := strings.ToLower(strings.TrimSpace(s))
	switch {
	case t == "date":
		return ColumnDate, nil
	case t == "datetime", t == "timestamp without time zone", strings.HasPrefix(t, "datetime("):
		return ColumnDatetime, nil
	case t == "timestamp", t == "timestamptz", t == "timestamp with time zone", strings.HasPrefix(t, "timestamp("):
		return ColumnTimestamp, nil
	default:
		return "", fmt.Errorf("column type %q is not a date, datetime or timestamp", s)
	}
}

// Dialect renders the engine's temporal expressions for one SQL engine.
type Dialect interface {
	// Name identifies the dialect in logs and configuration.
	Name() string

	// WindowStart returns an expression for "now minus p" using the current
	// time function appropriate to ct.
	WindowStart(ct ColumnType, p retention.Period) string

	// DateLiteral renders a calendar date constant.
	DateLiteral(t time.Time) string
}

// DialectFor returns the dialect registered under name.
func DialectFor(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "bigquery", "bq":
		return BigQuery{}, nil
	case "postgres", "postgresql":
		return Postgres{}, nil
	case "mysql":
		return MySQL{}, nil
	case "sqlite", "sqlite3":
		return SQLite{}, nil
	default:
		return nil, fmt.Errorf("unknown SQL dialect %q", name)
	}
}

// BigQuery is GoogleSQL. TIMESTAMP_SUB rejects YEAR and MONTH intervals, so
// timestamps are computed through DATETIME_SUB.
type BigQuery struct{}

func (BigQuery) Name() string { return "bigquery" }

func (BigQuery) WindowStart(ct ColumnType, p retention.Period) string {
	interval := fmt.Sprintf("interval %d %s", p.Value, p.Unit)
	switch ct {
	case ColumnDate:
		return fmt.Sprintf("date_sub(current_date(), %s)", interval)
	case ColumnDatetime:
		return fmt.Sprintf("datetime_sub(current_datetime(), %s)", interval)
	default:
		return fmt.Sprintf("timestamp(datetime_sub(current_datetime(), %s))", interval)
	}
}

func (BigQuery) DateLiteral(t time.Time) string {
	return "date '" + t.Format(DateLayout) + "'"
}

// Postgres is PostgreSQL.
type Postgres struct{}

func (Postgres) Name() string { return "postgres" }

func (Postgres) WindowStart(ct ColumnType, p retention.Period) string {
	interval := fmt.Sprintf("interval '%d %s'", p.Value, p.Unit)
	switch ct {
	case ColumnDate:
		return fmt.Sprintf("(current_date - %s)::date", interval)
	case ColumnDatetime:
		return fmt.Sprintf("(localtimestamp - %s)", interval)
	default:
		return fmt.Sprintf("(current_timestamp - %s)", interval)
	}
}

func (Postgres) DateLiteral(t time.Time) string {
	return "date '" + t.Format(DateLayout) + "'"
}

// MySQL is MySQL 8.
type MySQL struct{}

func (MySQL) Name() string { return "mysql" }

func (MySQL) WindowStart(ct ColumnType, p retention.Period) string {
	interval := fmt.Sprintf("interval %d %s", p.Value, p.Unit)
	switch ct {
	case ColumnDate:
		return fmt.Sprintf("date_sub(current_date, %s)", interval)
	case ColumnDatetime:
		return fmt.Sprintf("date_sub(now(), %s)", interval)
	default:
		return fmt.Sprintf("date_sub(current_timestamp, %s)", interval)
	}
}

func (MySQL) DateLiteral(t time.Time) string {
	return "date '" + t.Format(DateLayout) + "'"
}

// SQLite stores dates as ISO-8601 text and compares them lexically.
type SQLite struct{}

func (SQLite) Name() string { return "sqlite" }

func (SQLite) WindowStart(ct ColumnType, p retention.Period) string {
	modifier := fmt.Sprintf("'-%d %ss'", p.Value, p.Unit)
	if ct == ColumnDate {
		return fmt.Sprintf("date('now', %s)", modifier)
	}
	return fmt.Sprintf("datetime('now', %s)", modifier)
}

func (SQLite) DateLiteral(t time.Time) string {
	return "'" + t.Format(DateLayout) + "'"
}
