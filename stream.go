// Copyright (C) 2023 by Posit Software, PBC
package fsb

import (
	"io"
)

// StreamDefinition holds everything needed to read and write one stream
// layout: the definition tree, the physical format and its options, and
// the message source. A stream definition is immutable once built and
// may be shared across any number of readers and writers.
type StreamDefinition struct {
	name   string
	format Format
	root   *GroupDefinition

	messages *MessageSource

	// Token format options.
	delimiter byte
	quote     byte
	escape    byte
	hasEscape bool

	recordTerminator string
}

// NewStreamDefinition creates a stream definition for the given physical
// format. The root group defaults to exactly one occurrence of the
// layout; use SetMinOccurs(0) to permit an empty stream.
func NewStreamDefinition(name string, format Format) *StreamDefinition {
	root := NewGroupDefinition(name)
	root.SetOrder(1)
	root.SetMinOccurs(1)
	root.SetMaxOccurs(1)
	return &StreamDefinition{
		name:             name,
		format:           format,
		root:             root,
		messages:         NewMessageSource(nil),
		delimiter:        defaultDelimiter(format),
		quote:            '"',
		recordTerminator: "\n",
	}
}

func defaultDelimiter(format Format) byte {
	if format == FormatCSV {
		return ','
	}
	return '\t'
}

func (s *StreamDefinition) Name() string           { return s.name }
func (s *StreamDefinition) Format() Format         { return s.format }
func (s *StreamDefinition) Root() *GroupDefinition { return s.root }

// SetMinOccurs sets the minimum occurrences of the whole layout.
func (s *StreamDefinition) SetMinOccurs(n int) { s.root.SetMinOccurs(n) }

// SetMaxOccurs sets the maximum occurrences of the whole layout.
func (s *StreamDefinition) SetMaxOccurs(n int) { s.root.SetMaxOccurs(n) }

// SetDelimiter sets the field delimiter for delimited and CSV streams.
func (s *StreamDefinition) SetDelimiter(b byte) { s.delimiter = b }

// SetQuote sets the quote character for CSV streams.
func (s *StreamDefinition) SetQuote(b byte) { s.quote = b }

// SetEscape sets the escape character for delimited streams. Without an
// escape, delimiters cannot appear inside field text.
func (s *StreamDefinition) SetEscape(b byte) {
	s.escape = b
	s.hasEscape = true
}

// SetRecordTerminator sets the text appended after each written record.
func (s *StreamDefinition) SetRecordTerminator(t string) { s.recordTerminator = t }

// SetMessageBundle layers a message bundle over the default error
// messages.
func (s *StreamDefinition) SetMessageBundle(bundle map[string]string) {
	s.messages = NewMessageSource(bundle)
}

// Record returns the record definition with the given name, or nil.
func (s *StreamDefinition) Record(name string) *RecordDefinition {
	return s.root.Record(name)
}

func (s *StreamDefinition) fieldErrorMessage(recordName, fieldName, rule string, params []any) string {
	return s.messages.FieldErrorMessage(recordName, fieldName, rule, params)
}

func (s *StreamDefinition) recordErrorMessage(recordName, rule string, params []any) string {
	return s.messages.RecordErrorMessage(recordName, rule, params)
}

// newRecordReader creates the format reader for the stream.
func (s *StreamDefinition) newRecordReader(in io.Reader) RecordReader {
	switch s.format {
	case FormatCSV:
		return newCSVReader(in, s.delimiter, s.quote)
	case FormatDelimited:
		return newDelimitedReader(in, s.delimiter, s.escape, s.hasEscape)
	default:
		return newFixedLengthReader(in)
	}
}

// newRecordWriter creates the format writer for the stream.
func (s *StreamDefinition) newRecordWriter(out io.Writer) RecordWriter {
	switch s.format {
	case FormatCSV:
		return newCSVWriter(out, s.delimiter, s.quote, s.recordTerminator)
	case FormatDelimited:
		return newDelimitedWriter(out, s.delimiter, s.escape, s.hasEscape, s.recordTerminator)
	default:
		return newFixedLengthWriter(out, s.recordTerminator)
	}
}

// NewReader returns a bean reader that consumes records from in. The
// reader owns its own layout counters, so independent readers of the
// same stream definition do not interfere.
func (s *StreamDefinition) NewReader(in io.Reader) BeanReader {
	return &beanReader{
		stream: s,
		in:     s.newRecordReader(in),
		record: newRecord(s),
		layout: newLayout(s.root),
	}
}

// NewWriter returns a bean writer that emits records to out.
func (s *StreamDefinition) NewWriter(out io.Writer) BeanWriter {
	return &beanWriter{
		stream: s,
		out:    s.newRecordWriter(out),
	}
}
