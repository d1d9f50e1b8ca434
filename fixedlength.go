// Copyright (C) 2023 by Posit Software, PBC
package fsb

import (
	"bufio"
	"io"
	"strings"
)

// fixedLengthReader reads one record per line. The whole line is the
// record; field extraction against declared byte positions happens in
// the field definitions, so Read returns the line as a single token.
type fixedLengthReader struct {
	in   *bufio.Reader
	src  io.Reader
	line int
	text string
	eof  bool
}

func newFixedLengthReader(in io.Reader) *fixedLengthReader {
	return &fixedLengthReader{in: bufio.NewReader(in), src: in}
}

func (r *fixedLengthReader) Read() ([]string, error) {
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
	return []string{r.text}, nil
}

func (r *fixedLengthReader) RecordText() string {
	return r.text
}

func (r *fixedLengthReader) RecordLineNumber() int {
	return r.line
}

func (r *fixedLengthReader) Close() error {
	if c, ok := r.src.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// fixedLengthWriter emits records by concatenating the already padded
// field tokens.
type fixedLengthWriter struct {
	out        *bufio.Writer
	dst        io.Writer
	terminator string
}

func newFixedLengthWriter(out io.Writer, terminator string) *fixedLengthWriter {
	return &fixedLengthWriter{out: bufio.NewWriter(out), dst: out, terminator: terminator}
}

func (w *fixedLengthWriter) Write(tokens []string) error {
	for _, t := range tokens {
		if _, err := w.out.WriteString(t); err != nil {
			return err
		}
	}
	_, err := w.out.WriteString(w.terminator)
	return err
}

func (w *fixedLengthWriter) Flush() error {
	return w.out.Flush()
}

func (w *fixedLengthWriter) Close() error {
	if err := w.out.Flush(); err != nil {
		return err
	}
	if c, ok := w.dst.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
