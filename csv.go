// Copyright (C) 2023 by Posit Software, PBC
package fsb

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// csvReader tokenizes CSV records. A quoted field may contain the
// delimiter, doubled quotes, and line breaks; a record with an unclosed
// quote or text trailing a closing quote is reported as malformed, with
// the reader positioned at the next record so the caller can continue.
type csvReader struct {
	in        *bufio.Reader
	src       io.Reader
	delimiter byte
	quote     byte

	// consumed counts lines handed out so far; startLine is the first
	// line of the last record returned.
	consumed  int
	startLine int
	text      string
	eof       bool
}

func newCSVReader(in io.Reader, delimiter, quote byte) *csvReader {
	return &csvReader{in: bufio.NewReader(in), src: in, delimiter: delimiter, quote: quote}
}

const (
	csvFieldStart = iota
	csvUnquoted
	csvQuoted
	csvQuoteEnd
)

func (r *csvReader) Read() ([]string, error) {
	if r.eof {
		return nil, io.EOF
	}

	var raw strings.Builder
	var field strings.Builder
	var tokens []string
	state := csvFieldStart
	lines := 1
	malformed := false

	for {
		b, err := r.in.ReadByte()
		if err == io.EOF {
			r.eof = true
			if raw.Len() == 0 && len(tokens) == 0 && state == csvFieldStart {
				return nil, io.EOF
			}
			break
		}
		if err != nil {
			return nil, err
		}

		if state != csvQuoted {
			if b == '\n' {
				break
			}
			if b == '\r' {
				if next, _ := r.in.Peek(1); len(next) == 1 && next[0] == '\n' {
					r.in.ReadByte()
					break
				}
			}
		}

		raw.WriteByte(b)
		switch state {
		case csvFieldStart:
			switch b {
			case r.quote:
				state = csvQuoted
			case r.delimiter:
				tokens = append(tokens, "")
			default:
				field.WriteByte(b)
				state = csvUnquoted
			}
		case csvUnquoted:
			switch b {
			case r.delimiter:
				tokens = append(tokens, field.String())
				field.Reset()
				state = csvFieldStart
			case r.quote:
				// A quote inside an unquoted field cannot be parsed
				// unambiguously. Keep consuming to the end of the record
				// so the next Read starts cleanly.
				malformed = true
			default:
				field.WriteByte(b)
			}
		case csvQuoted:
			switch b {
			case r.quote:
				if next, _ := r.in.Peek(1); len(next) == 1 && next[0] == r.quote {
					r.in.ReadByte()
					raw.WriteByte(r.quote)
					field.WriteByte(r.quote)
				} else {
					state = csvQuoteEnd
				}
			case '\n':
				field.WriteByte(b)
				lines++
			default:
				field.WriteByte(b)
			}
		case csvQuoteEnd:
			switch b {
			case r.delimiter:
				tokens = append(tokens, field.String())
				field.Reset()
				state = csvFieldStart
			default:
				malformed = true
			}
		}
	}

	if state == csvQuoted {
		malformed = true
	}
	tokens = append(tokens, field.String())

	r.startLine = r.consumed + 1
	r.consumed += lines
	r.text = raw.String()

	if malformed {
		return nil, fmt.Errorf("line %d: %w", r.startLine, ErrMalformed)
	}
	return tokens, nil
}

func (r *csvReader) RecordText() string {
	return r.text
}

func (r *csvReader) RecordLineNumber() int {
	return r.startLine
}

func (r *csvReader) Close() error {
	if c, ok := r.src.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// csvWriter emits field tokens, quoting any token that contains the
// delimiter, a quote, or a line break.
type csvWriter struct {
	out        *bufio.Writer
	dst        io.Writer
	delimiter  byte
	quote      byte
	terminator string
}

func newCSVWriter(out io.Writer, delimiter, quote byte, terminator string) *csvWriter {
	return &csvWriter{
		out:        bufio.NewWriter(out),
		dst:        out,
		delimiter:  delimiter,
		quote:      quote,
		terminator: terminator,
	}
}

func (w *csvWriter) Write(tokens []string) error {
	for i, t := range tokens {
		if i > 0 {
			if err := w.out.WriteByte(w.delimiter); err != nil {
				return err
			}
		}
		if _, err := w.out.WriteString(w.quoteText(t)); err != nil {
			return err
		}
	}
	_, err := w.out.WriteString(w.terminator)
	return err
}

func (w *csvWriter) quoteText(text string) string {
	if !strings.ContainsAny(text, string([]byte{w.delimiter, w.quote, '\n', '\r'})) {
		return text
	}
	q := string(w.quote)
	return q + strings.ReplaceAll(text, q, q+q) + q
}

func (w *csvWriter) Flush() error {
	return w.out.Flush()
}

func (w *csvWriter) Close() error {
	if err := w.out.Flush(); err != nil {
		return err
	}
	if c, ok := w.dst.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
