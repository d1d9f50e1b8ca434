// Copyright (C) 2023 by Posit Software, PBC
package fsb

import (
	"errors"
	"io"
)

// beanReader drives the layout over the record reader: it pulls one
// tokenized record at a time, asks the layout which record definition it
// belongs to, and parses it into a bean.
type beanReader struct {
	stream *StreamDefinition
	in     RecordReader
	record *Record

	// layout is nil once the stream has closed, cleanly or not.
	layout *layoutNode

	closed bool
}

func (r *beanReader) Read() (any, error) {
	if r.layout == nil {
		return nil, io.EOF
	}
	for {
		r.record.clear()

		tokens, err := r.in.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, r.endOfStream()
			}
			r.record.setValue(nil, r.in.RecordText(), r.in.RecordLineNumber())
			if errors.Is(err, ErrMalformed) {
				r.record.addRecordError(RuleMalformed, r.record.lineNumber)
				return nil, &MalformedRecordError{Context: r.record.Context()}
			}
			return nil, &IOError{Op: "reading from input stream", Cause: err}
		}
		r.record.setValue(tokens, r.in.RecordText(), r.in.RecordLineNumber())

		node, matchErr := r.layout.matchNext(r.record)
		if matchErr != nil || node == nil {
			// The record has no home at the current layout position.
			// Whether it is identifiable anywhere decides the error kind.
			if m := r.layout.matchAny(r.record); m != nil {
				r.record.recordName = m.name()
				r.record.addRecordError(RuleUnexpected, r.record.lineNumber)
				return nil, &UnexpectedRecordError{Context: r.record.Context()}
			}
			r.record.addRecordError(RuleUnidentified, r.record.lineNumber)
			return nil, &UnidentifiedRecordError{Context: r.record.Context()}
		}

		r.record.recordName = node.record.name
		bean, err := node.record.parseBean(r.record)
		if err != nil {
			return nil, err
		}
		if bean == nil && !node.record.bound() {
			// Validated but not bound to a bean; skip to the next record.
			continue
		}
		return bean, nil
	}
}

// endOfStream closes the layout. A node still short of its minimum
// occurrences turns end of stream into a sequence error naming the
// absent record.
func (r *beanReader) endOfStream() error {
	unsatisfied := r.layout.close()
	r.layout = nil
	if unsatisfied == nil {
		return io.EOF
	}
	r.record.setValue(nil, r.in.RecordText(), r.in.RecordLineNumber())
	r.record.addRecordError(RuleSequence, unsatisfied.name())
	return &UnexpectedRecordError{
		Context:  r.record.Context(),
		Expected: unsatisfied.name(),
	}
}

func (r *beanReader) RecordName() string {
	return r.record.recordName
}

func (r *beanReader) LineNumber() int {
	return r.record.lineNumber
}

// Close releases the underlying character stream. Closing is idempotent.
func (r *beanReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.record.clear()
	if err := r.in.Close(); err != nil {
		return &IOError{Op: "closing input stream", Cause: err}
	}
	return nil
}
