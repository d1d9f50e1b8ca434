// Copyright (C) 2023 by Posit Software, PBC
package fsb

import (
	"errors"
	"fmt"
	"strings"
)

// Rule codes attached to record and field errors.
const (
	RuleMalformed    = "malformed"
	RuleUnidentified = "unidentified"
	RuleUnexpected   = "unexpected"
	RuleSequence     = "sequence"
	RuleRequired     = "required"
	RuleLiteral      = "literal"
	RuleMinLength    = "minLength"
	RuleMaxLength    = "maxLength"
	RuleRegex        = "regex"
	RuleMinOccurs    = "minOccurs"
	RuleType         = "type"
)

// ErrMalformed is wrapped by record readers when a record cannot be
// tokenized (for example, a CSV record with an unclosed quote). The
// reader remains positioned at the following record.
var ErrMalformed = errors.New("malformed record")

// ConfigError reports an invalid mapping. It is returned at load time
// and is not recoverable.
type ConfigError struct {
	Stream string
	Msg    string
}

func (e *ConfigError) Error() string {
	if e.Stream == "" {
		return fmt.Sprintf("invalid mapping: %s", e.Msg)
	}
	return fmt.Sprintf("invalid mapping for stream '%s': %s", e.Stream, e.Msg)
}

func configErrorf(stream, format string, args ...any) *ConfigError {
	return &ConfigError{Stream: stream, Msg: fmt.Sprintf(format, args...)}
}

// IOError reports a failure of the underlying character stream. It is
// fatal for the stream; the original cause is preserved.
type IOError struct {
	Op    string
	Cause error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Cause)
}

func (e *IOError) Unwrap() error {
	return e.Cause
}

// FieldError describes one failed validation or conversion for one field
// occurrence. Params carry the offending rule parameters, in the order
// the default messages reference them.
type FieldError struct {
	Field   string
	Text    string
	Rule    string
	Params  []any
	Message string
}

// RecordError describes a record level failure.
type RecordError struct {
	Rule    string
	Line    int
	Text    string
	Params  []any
	Message string
}

// RecordContext is the structured error report for a single record. Field
// errors are ordered by field declaration order; record errors precede
// field errors when both are present.
type RecordContext struct {
	LineNumber   int
	RecordText   string
	RecordName   string
	RecordErrors []RecordError
	FieldErrors  []FieldError
}

// HasErrors reports whether any record or field error was collected.
func (c *RecordContext) HasErrors() bool {
	return len(c.RecordErrors) > 0 || len(c.FieldErrors) > 0
}

func (c *RecordContext) errorSummary() string {
	parts := make([]string, 0, len(c.RecordErrors)+len(c.FieldErrors))
	for _, e := range c.RecordErrors {
		parts = append(parts, e.Message)
	}
	for _, e := range c.FieldErrors {
		parts = append(parts, e.Message)
	}
	return strings.Join(parts, "; ")
}

// MalformedRecordError is returned by Read when the underlying record
// reader could not tokenize a record. The caller may continue reading.
type MalformedRecordError struct {
	Context *RecordContext
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed record at line %d", e.Context.LineNumber)
}

// UnidentifiedRecordError is returned by Read when no record definition
// in the entire layout matches the record.
type UnidentifiedRecordError struct {
	Context *RecordContext
}

func (e *UnidentifiedRecordError) Error() string {
	return fmt.Sprintf("unidentified record at line %d", e.Context.LineNumber)
}

// UnexpectedRecordError is returned by Read when a record is identified
// by some record definition, but not one permitted by the layout at the
// current position. It is also returned at end of stream when a node
// with unmet minimum occurrences remains open; Expected then names the
// absent node.
type UnexpectedRecordError struct {
	Context *RecordContext

	// Expected names the record that the layout required, when known.
	Expected string
}

func (e *UnexpectedRecordError) Error() string {
	if e.Expected != "" {
		return fmt.Sprintf("end of stream reached at line %d, expected record '%s'",
			e.Context.LineNumber, e.Expected)
	}
	return fmt.Sprintf("unexpected record '%s' at line %d", e.Context.RecordName, e.Context.LineNumber)
}

// InvalidRecordError is returned by Read when a record was identified
// but one or more of its fields failed validation or type conversion.
// Every field is attempted before the error is returned, so the context
// holds the complete set of field errors.
type InvalidRecordError struct {
	Context *RecordContext
}

func (e *InvalidRecordError) Error() string {
	return fmt.Sprintf("invalid record '%s' at line %d: %s",
		e.Context.RecordName, e.Context.LineNumber, e.Context.errorSummary())
}

// WriterError reports a failure to format or emit a bean.
type WriterError struct {
	Msg   string
	Cause error
}

func (e *WriterError) Error() string {
	if e.Cause == nil {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Msg, e.Cause)
}

func (e *WriterError) Unwrap() error {
	return e.Cause
}
