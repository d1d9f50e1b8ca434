// Copyright (C) 2023 by Posit Software, PBC
package fsb

import (
	"bufio"
	"io"
	"strings"
)

// delimitedReader splits each line on a single delimiter byte. An
// optional escape byte protects a literal delimiter (or escape) in
// field text.
type delimitedReader struct {
	in        *bufio.Reader
	src       io.Reader
	delimiter byte
	escape    byte
	hasEscape bool

	line int
	text string
	eof  bool
}

func newDelimitedReader(in io.Reader, delimiter, escape byte, hasEscape bool) *delimitedReader {
	return &delimitedReader{
		in:        bufio.NewReader(in),
		src:       in,
		delimiter: delimiter,
		escape:    escape,
		hasEscape: hasEscape,
	}
}

func (r *delimitedReader) Read() ([]string, error) {
	if r.eof {
		return nil, io.EOF
	}
	line, err := r.in.ReadString('\n')
	if err != nil && err != io.EOF {
		return nil, err
	}
	if err == io.EOF {
		r.eof = true
		if line == "" {
			return nil, io.EOF
		}
	}
	r.line++
	r.text = strings.TrimRight(line, "\r\n")
	return r.split(r.text), nil
}

func (r *delimitedReader) split(text string) []string {
	if !r.hasEscape {
		return strings.Split(text, string(r.delimiter))
	}
	var tokens []string
	var field strings.Builder
	escaped := false
	for i := 0; i < len(text); i++ {
		b := text[i]
		switch {
		case escaped:
			// Only the escape and delimiter bytes are escapable; any
			// other byte keeps the preceding escape literal.
			if b != r.escape && b != r.delimiter {
				field.WriteByte(r.escape)
			}
			field.WriteByte(b)
			escaped = false
		case b == r.escape:
			escaped = true
		case b == r.delimiter:
			tokens = append(tokens, field.String())
			field.Reset()
		default:
			field.WriteByte(b)
		}
	}
	if escaped {
		field.WriteByte(r.escape)
	}
	tokens = append(tokens, field.String())
	return tokens
}

func (r *delimitedReader) RecordText() string {
	return r.text
}

func (r *delimitedReader) RecordLineNumber() int {
	return r.line
}

func (r *delimitedReader) Close() error {
	if c, ok := r.src.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// delimitedWriter joins field tokens with the delimiter, escaping
// embedded delimiters when an escape byte is configured.
type delimitedWriter struct {
	out        *bufio.Writer
	dst        io.Writer
	delimiter  byte
	escape     byte
	hasEscape  bool
	terminator string
}

func newDelimitedWriter(out io.Writer, delimiter, escape byte, hasEscape bool, terminator string) *delimitedWriter {
	return &delimitedWriter{
		out:        bufio.NewWriter(out),
		dst:        out,
		delimiter:  delimiter,
		escape:     escape,
		hasEscape:  hasEscape,
		terminator: terminator,
	}
}

func (w *delimitedWriter) Write(tokens []string) error {
	for i, t := range tokens {
		if i > 0 {
			if err := w.out.WriteByte(w.delimiter); err != nil {
				return err
			}
		}
		if w.hasEscape {
			t = w.escapeText(t)
		}
		if _, err := w.out.WriteString(t); err != nil {
			return err
		}
	}
	_, err := w.out.WriteString(w.terminator)
	return err
}

func (w *delimitedWriter) escapeText(text string) string {
	var b strings.Builder
	for i := 0; i < len(text); i++ {
		if text[i] == w.delimiter || text[i] == w.escape {
			b.WriteByte(w.escape)
		}
		b.WriteByte(text[i])
	}
	return b.String()
}

func (w *delimitedWriter) Flush() error {
	return w.out.Flush()
}

func (w *delimitedWriter) Close() error {
	if err := w.out.Flush(); err != nil {
		return err
	}
	if c, ok := w.dst.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
