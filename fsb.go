// Copyright (C) 2023 by Posit Software, PBC
package fsb

import "io"

// Format identifies the physical layout of a stream.
type Format string

const (
	// FormatFixedLength streams carry one record per line, with each field
	// occupying a fixed byte range of the line.
	FormatFixedLength Format = "fixedlength"

	// FormatDelimited streams separate fields with a single delimiter
	// character, optionally protected by an escape character.
	FormatDelimited Format = "delimited"

	// FormatCSV streams follow RFC 4180 style quoting. A quoted field may
	// span multiple lines.
	FormatCSV Format = "csv"
)

// Unbounded is used for maxOccurs and maxLength settings that have no
// upper limit.
const Unbounded = -1

// RecordReader produces one logical record at a time from a character
// stream. Implementations report the raw text and line number of the
// record most recently returned by Read.
//
// Read returns io.EOF at end of stream. A recoverable tokenization
// failure (for example, an unclosed quote) is reported with an error
// that wraps ErrMalformed; the reader remains usable and the next Read
// continues at the following record.
type RecordReader interface {
	// Read returns the next logical record as an ordered sequence of
	// field strings. Fixed-length readers return a single token holding
	// the entire line; field extraction happens downstream against the
	// declared byte positions.
	Read() ([]string, error)

	// RecordText returns the raw text of the last record returned by Read.
	RecordText() string

	// RecordLineNumber returns the line number of the first line of the
	// last record returned by Read.
	RecordLineNumber() int

	Close() error
}

// RecordWriter consumes one logical record at a time and emits it to a
// character stream.
type RecordWriter interface {
	// Write emits one logical record from its ordered field strings.
	Write(tokens []string) error

	Flush() error
	Close() error
}

// TypeHandler converts between the external text form of a field and its
// internal value. Implementations must be stateless; a single handler is
// shared by every field that declares its type.
//
// Parse may return a nil value for text that represents no value (the
// built-in numeric, bool and date handlers return nil for empty text).
// Format of a nil value must produce the empty string.
type TypeHandler interface {
	Parse(text string) (any, error)
	Format(value any) (string, error)
}

// ConfigurableTypeHandler is implemented by type handlers that accept a
// per-field format pattern, such as the date handler. WithFormat returns
// a new handler specialized to the pattern; the receiver is not modified.
type ConfigurableTypeHandler interface {
	TypeHandler
	WithFormat(pattern string) (TypeHandler, error)
}

// BeanReader reads beans from a record stream. A BeanReader is not safe
// for concurrent use.
type BeanReader interface {
	// Read returns the next bean from the stream, or io.EOF once the
	// stream is exhausted and the layout closed cleanly. Record faults
	// are returned as *MalformedRecordError, *UnidentifiedRecordError,
	// *UnexpectedRecordError or *InvalidRecordError; the caller may call
	// Read again to continue at the following record.
	Read() (any, error)

	// RecordName returns the name of the record definition matched by the
	// last call to Read.
	RecordName() string

	// LineNumber returns the line number of the last record read.
	LineNumber() int

	io.Closer
}

// BeanWriter writes beans to a record stream. A BeanWriter is not safe
// for concurrent use. The writer locates the record definition whose
// identifying fields match the bean; it does not enforce record order or
// cardinality.
type BeanWriter interface {
	Write(bean any) error
	Flush() error
	io.Closer
}
