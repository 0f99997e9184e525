package retention

import (
	"errors"
	"fmt"
)

var (
	// ErrTableNotFound is returned by warehouse metadata lookups for missing tables.
	ErrTableNotFound = errors.New("table not found")

	// ErrUnsupported marks a policy kind/action/storage combination the engine
	// does not implement.
	ErrUnsupported = errors.New("unsupported policy combination")
)

// ConfigurationError represents missing or invalid settings or policy fields.
// It is fatal: a run that encounters one aborts before any mutation.
type ConfigurationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error [field=%s]: %s", e.Field, e.Message)
}

// NewConfigurationError creates a new ConfigurationError.
func NewConfigurationError(field, message string) *ConfigurationError {
	return &ConfigurationError{Field: field, Message: message}
}

// QueryExecutionError represents a failed warehouse statement.
type QueryExecutionError struct {
	Entity    string // Entity the statement targeted
	Statement string // Statement text
	Cause     error  // Underlying error
}

// Error implements the error interface.
func (e *QueryExecutionError) Error() string {
	return fmt.Sprintf("query execution error [entity=%s]: %v", e.Entity, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *QueryExecutionError) Unwrap() error {
	return e.Cause
}

// NewQueryExecutionError creates a new QueryExecutionError.
func NewQueryExecutionError(entity, statement string, cause error) *QueryExecutionError {
	return &QueryExecutionError{
		Entity:    entity,
		Statement: statement,
		Cause:     cause,
	}
}

// JobPreconditionError represents an external job rejected at submission
// because a precondition did not hold. The dispatcher logs it and treats the
// job as skipped.
type JobPreconditionError struct {
	Job   string
	Cause error
}

// Error implements the error interface.
func (e *JobPreconditionError) Error() string {
	return fmt.Sprintf("job precondition failed [job=%s]: %v", e.Job, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *JobPreconditionError) Unwrap() error {
	return e.Cause
}

// NewJobPreconditionError creates a new JobPreconditionError.
func NewJobPreconditionError(job string, cause error) *JobPreconditionError {
	return &JobPreconditionError{Job: job, Cause: cause}
}

// UnsupportedJoinError is returned when a join filter would have to be
// composed over a multi-column key.
type UnsupportedJoinError struct {
	Entity  string
	Columns string
}

// Error implements the error interface.
func (e *UnsupportedJoinError) Error() string {
	return fmt.Sprintf("unsupported join [entity=%s]: multi-column key %q", e.Entity, e.Columns)
}

// NewUnsupportedJoinError creates a new UnsupportedJoinError.
func NewUnsupportedJoinError(entity, columns string) *UnsupportedJoinError {
	return &UnsupportedJoinError{Entity: entity, Columns: columns}
}

// IsConfigurationError reports whether err is or wraps a ConfigurationError.
func IsConfigurationError(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}

// IsJobPrecondition reports whether err is or wraps a JobPreconditionError.
func IsJobPrecondition(err error) bool {
	var target *JobPreconditionError
	return errors.As(err, &target)
}
