// Copyright (C) 2023 by Posit Software, PBC
package fsb

import "fmt"

// beanWriter formats beans as records. The bean's record definition is
// located by matching the identifying fields against the bean value; the
// writer does not enforce record order or cardinality, which is the
// caller's responsibility.
type beanWriter struct {
	stream *StreamDefinition
	out    RecordWriter
	closed bool
}

func (w *beanWriter) Write(bean any) error {
	var match *RecordDefinition
	for _, d := range w.stream.root.Records() {
		if !d.matchesBean(bean) {
			continue
		}
		if match != nil {
			return &WriterError{
				Msg: fmt.Sprintf("bean of type %T matches both record '%s' and record '%s'",
					bean, match.name, d.name),
			}
		}
		match = d
	}
	if match == nil {
		return &WriterError{Msg: fmt.Sprintf("no record mapping found for bean of type %T", bean)}
	}

	tokens, err := match.formatBean(bean)
	if err != nil {
		return err
	}
	if err := w.out.Write(tokens); err != nil {
		return &IOError{Op: "writing to output stream", Cause: err}
	}
	return nil
}

func (w *beanWriter) Flush() error {
	if err := w.out.Flush(); err != nil {
		return &IOError{Op: "flushing output stream", Cause: err}
	}
	return nil
}

// Close flushes and releases the underlying character stream. Closing is
// idempotent.
func (w *beanWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.out.Close(); err != nil {
		return &IOError{Op: "closing output stream", Cause: err}
	}
	return nil
}
