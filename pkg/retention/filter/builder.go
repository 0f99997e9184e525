// Package filter builds the SQL predicates the cascade issues: retention
// window cutoffs, join filters that scope a neighbor to the rows related to
// its source, tombstone-batch filters, and literal id lists.
package filter

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"recordkeeper-hq/keeper/pkg/retention"
)

const (
	// DateLayout formats DATE values.
	DateLayout = "2006-01-02"
	// TimestampLayout formats DATETIME and TIMESTAMP values.
	TimestampLayout = "2006-01-02 15:04:05"
)

// Tombstone table columns.
const (
	SoftDeleteDateColumn = "softdelete_date"
	PurgeDateColumn      = "purge_date"
)

var identifierPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_.]*$`)

// ValidateIdentifier rejects names that are not plain (optionally dotted)
// SQL identifiers. Composite column lists are reported as unsupported joins.
func ValidateIdentifier(entity, name string) error {
	if retention.IsCompositeKey(name) {
		return retention.NewUnsupportedJoinError(entity, name)
	}
	if !identifierPattern.MatchString(strings.TrimSpace(name)) {
		return fmt.Errorf("invalid identifier %q", name)
	}
	return nil
}

// Option configures a Builder.
type Option func(*Builder)

// WithClock sets the time source. Dates derived from the clock (soft-delete
// and purge dates, literal cutoffs) use the clock's location.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) { b.now = now }
}

// Builder produces predicates for one dialect.
type Builder struct {
	dialect Dialect
	now     func() time.Time
}

// NewBuilder creates a builder for d.
func NewBuilder(d Dialect, opts ...Option) *Builder {
	b := &Builder{dialect: d, now: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Dialect returns the builder's dialect.
func (b *Builder) Dialect() Dialect {
	return b.dialect
}

// Now returns the current time from the builder's clock.
func (b *Builder) Now() time.Time {
	return b.now()
}

// Today returns midnight of the clock's current day.
func (b *Builder) Today() time.Time {
	n := b.now()
	return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, n.Location())
}

// RetentionPredicate selects rows of column older than the retention period,
// relative to the engine's current time function.
func (b *Builder) RetentionPredicate(column string, ct ColumnType, p retention.Period) (string, error) {
	if err := ValidateIdentifier("", column); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s < %s", column, b.dialect.WindowStart(ct, p)), nil
}

// CutoffValue renders "now minus p" as a literal in the layout of ct. Jobs
// that cannot evaluate SQL time functions receive this value.
func (b *Builder) CutoffValue(ct ColumnType, p retention.Period) string {
	cutoff := p.Before(b.now())
	if ct == ColumnDate {
		return cutoff.Format(DateLayout)
	}
	return cutoff.Format(TimestampLayout)
}

// CutoffPredicate is RetentionPredicate with the cutoff evaluated now and
// inlined as a literal.
func (b *Builder) CutoffPredicate(column string, ct ColumnType, p retention.Period) (string, error) {
	if err := ValidateIdentifier("", column); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s < '%s'", column, b.CutoffValue(ct, p)), nil
}

// BaseFilter joins a window predicate and an optional filter expression.
// Either part may be empty.
func BaseFilter(window, expression string) string {
	window = strings.TrimSpace(window)
	expression = strings.TrimSpace(expression)
	switch {
	case window == "":
		return expression
	case expression == "":
		return window
	default:
		return window + " and " + expression
	}
}

// JoinFilter scopes a neighbor to rows whose neighborColumn matches
// sourceColumn of the source rows selected by predicate.
func (b *Builder) JoinFilter(neighborColumn, sourceColumn, sourceEntity, predicate string) (string, error) {
	return b.join(neighborColumn, sourceColumn, sourceEntity, predicate, false)
}

// DistinctJoinFilter is JoinFilter with a de-duplicated subquery.
func (b *Builder) DistinctJoinFilter(neighborColumn, sourceColumn, sourceEntity, predicate string) (string, error) {
	return b.join(neighborColumn, sourceColumn, sourceEntity, predicate, true)
}

// TombstoneJoinFilter scopes a neighbor to the rows related to today's
// tombstone batch of an already soft-deleted ancestor.
func (b *Builder) TombstoneJoinFilter(neighborColumn, sourceColumn, tombstoneTable string) (string, error) {
	return b.join(neighborColumn, sourceColumn, tombstoneTable, b.SoftDeletedToday(), true)
}

// SoftDeletedToday selects the tombstone rows written today.
func (b *Builder) SoftDeletedToday() string {
	return fmt.Sprintf("%s = %s", SoftDeleteDateColumn, b.SoftDeleteDate())
}

func (b *Builder) join(neighborColumn, sourceColumn, sourceEntity, predicate string, distinct bool) (string, error) {
	for _, ident := range []string{neighborColumn, sourceColumn, sourceEntity} {
		if err := ValidateIdentifier(sourceEntity, ident); err != nil {
			return "", err
		}
	}
	sel := "select "
	if distinct {
		sel = "select distinct "
	}
	stmt := fmt.Sprintf("%s in (%s%s from %s", neighborColumn, sel, sourceColumn, sourceEntity)
	if predicate = strings.TrimSpace(predicate); predicate != "" {
		stmt += " where " + predicate
	}
	return stmt + ")", nil
}

// IDListFilter renders "column in (v1, v2, ...)". Strings are quoted; numbers
// are written as is.
func IDListFilter(column string, ids []any) (string, error) {
	if err := ValidateIdentifier("", column); err != nil {
		return "", err
	}
	if len(ids) == 0 {
		return "", fmt.Errorf("id list for %s is empty", column)
	}
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		lit, err := Literal(id)
		if err != nil {
			return "", err
		}
		parts = append(parts, lit)
	}
	return fmt.Sprintf("%s in (%s)", column, strings.Join(parts, ", ")), nil
}

// Literal renders a scalar as a SQL literal.
func Literal(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "null", nil
	case string:
		return QuoteString(x), nil
	case []byte:
		return QuoteString(string(x)), nil
	case int:
		return strconv.Itoa(x), nil
	case int32:
		return strconv.FormatInt(int64(x), 10), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case uint64:
		return strconv.FormatUint(x, 10), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(x), nil
	case time.Time:
		return QuoteString(x.Format(TimestampLayout)), nil
	case fmt.Stringer:
		return QuoteString(x.String()), nil
	default:
		return "", fmt.Errorf("unsupported literal type %T", v)
	}
}

// QuoteString single-quotes s, doubling embedded quotes.
func QuoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// SoftDeleteDate is today's date as a literal.
func (b *Builder) SoftDeleteDate() string {
	return b.dialect.DateLiteral(b.Today())
}

// PurgeDateLiteral is the purge date for rows soft-deleted today.
func (b *Builder) PurgeDateLiteral(p retention.Period) string {
	return b.dialect.DateLiteral(PurgeDate(b.Today(), p))
}

// PurgeDue selects tombstone rows whose purge date has arrived.
func (b *Builder) PurgeDue() string {
	return fmt.Sprintf("%s <= %s", PurgeDateColumn, b.SoftDeleteDate())
}

// PurgeDate is the date a row soft-deleted on today becomes purgeable.
func PurgeDate(today time.Time, p retention.Period) time.Time {
	return p.After(today)
}

// PurgeEligible reports whether a row with purgeDate is purged by a sweep
// running on today.
func PurgeEligible(purgeDate, today time.Time) bool {
	return !purgeDate.After(today)
}
