// Package dberr defines the errors surfaced by schema extraction, SQL
// validation and statement execution. Every error carries the dialect and the
// operation that failed and never contains a raw password.
package dberr

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// UnsupportedDialectError is returned for an unknown dialect tag.
type UnsupportedDialectError struct {
	Tag string
}

func (e *UnsupportedDialectError) Error() string {
	return fmt.Sprintf("unsupported database type: %q", e.Tag)
}

// ConnectionError reports a network or authentication failure.
type ConnectionError struct {
	Dialect string
	Host    string
	Op      string
	Err     error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s: connection to %s database at %s failed: %v", e.Op, e.Dialect, e.Host, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// SchemaExtractionError reports a failed catalog query. An empty schema is
// never reported with this error.
type SchemaExtractionError struct {
	Dialect string
	Op      string
	Table   string
	Err     error
}

func (e *SchemaExtractionError) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("%s: %s catalog query for table %q failed: %v", e.Op, e.Dialect, e.Table, e.Err)
	}
	return fmt.Sprintf("%s: %s catalog query failed: %v", e.Op, e.Dialect, e.Err)
}

func (e *SchemaExtractionError) Unwrap() error { return e.Err }

// RiskRejectedError is returned when SQL fails validation. The statement is
// never executed.
type RiskRejectedError struct {
	Dialect string
	Pattern string
}

func (e *RiskRejectedError) Error() string {
	if e.Dialect == "" {
		return fmt.Sprintf("sql rejected: forbidden pattern %q", e.Pattern)
	}
	return fmt.Sprintf("sql rejected for %s: forbidden pattern %q", e.Dialect, e.Pattern)
}

// ExecutionError reports a statement rejected by the backend.
type ExecutionError struct {
	Dialect string
	Host    string
	Op      string
	Err     error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s: %s statement on %s failed: %v", e.Op, e.Dialect, e.Host, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// Scrub returns err with every occurrence of secret masked. The original error
// stays reachable through Unwrap so errors.Is keeps working.
func Scrub(err error, secret string) error {
	if err == nil || secret == "" || !strings.Contains(err.Error(), secret) {
		return err
	}
	return &scrubbed{msg: strings.ReplaceAll(err.Error(), secret, "***"), err: err}
}

type scrubbed struct {
	msg string
	err error
}

func (s *scrubbed) Error() string { return s.msg }

func (s *scrubbed) Unwrap() error { return s.err }

// WithContext makes ctx's error reachable from err when ctx ended while err
// was produced. Drivers often report a cancelled statement with their own
// error instead of the context's.
func WithContext(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	ctxErr := ctx.Err()
	if ctxErr == nil || errors.Is(err, ctxErr) {
		return err
	}
	return fmt.Errorf("%w: %w", ctxErr, err)
}

// Error kinds reported to clients.
const (
	KindUnsupportedDialect = "unsupported_dialect"
	KindConnection         = "connection_error"
	KindSchemaExtraction   = "schema_extraction_error"
	KindRiskRejected       = "risk_rejected"
	KindExecution          = "execution_error"
	KindTimeout            = "timeout"
)

// Kind classifies err into one of the Kind constants, or "" when err is none
// of the taxonomy's errors.
func Kind(err error) string {
	var (
		unsupported *UnsupportedDialectError
		rejected    *RiskRejectedError
		connErr     *ConnectionError
		extraction  *SchemaExtractionError
		execErr     *ExecutionError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &rejected):
		return KindRiskRejected
	case errors.As(err, &unsupported):
		return KindUnsupportedDialect
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.As(err, &connErr):
		return KindConnection
	case errors.As(err, &extraction):
		return KindSchemaExtraction
	case errors.As(err, &execErr):
		return KindExecution
	default:
		return ""
	}
}
