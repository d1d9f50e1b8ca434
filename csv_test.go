// Copyright (C) 2023 by Posit Software, PBC
package fsb

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"
)

type CSVSuite struct {
	suite.Suite
}

func TestCSVSuite(t *testing.T) {
	suite.Run(t, &CSVSuite{})
}

func (s *CSVSuite) TestRead() {
	r := newCSVReader(strings.NewReader("a,b,c\nd,e,f\n"), ',', '"')

	tokens, err := r.Read()
	s.Assert().Nil(err)
	s.Assert().Equal([]string{"a", "b", "c"}, tokens)
	s.Assert().Equal("a,b,c", r.RecordText())
	s.Assert().Equal(1, r.RecordLineNumber())

	tokens, err = r.Read()
	s.Assert().Nil(err)
	s.Assert().Equal([]string{"d", "e", "f"}, tokens)
	s.Assert().Equal(2, r.RecordLineNumber())

	_, err = r.Read()
	s.Assert().Equal(io.EOF, err)
}

func (s *CSVSuite) TestReadQuoted() {
	r := newCSVReader(strings.NewReader(`"a,b",plain,"say ""hi"""`+"\n"), ',', '"')

	tokens, err := r.Read()
	s.Assert().Nil(err)
	s.Assert().Equal([]string{"a,b", "plain", `say "hi"`}, tokens)
}

func (s *CSVSuite) TestReadQuotedNewline() {
	r := newCSVReader(strings.NewReader("\"line\none\",x\nnext,y\n"), ',', '"')

	tokens, err := r.Read()
	s.Assert().Nil(err)
	s.Assert().Equal([]string{"line\none", "x"}, tokens)
	s.Assert().Equal(1, r.RecordLineNumber())

	// The embedded newline counts; the next record starts at line 3.
	tokens, err = r.Read()
	s.Assert().Nil(err)
	s.Assert().Equal([]string{"next", "y"}, tokens)
	s.Assert().Equal(3, r.RecordLineNumber())
}

func (s *CSVSuite) TestReadCRLF() {
	r := newCSVReader(strings.NewReader("a,b\r\nc,d\r\n"), ',', '"')

	tokens, err := r.Read()
	s.Assert().Nil(err)
	s.Assert().Equal([]string{"a", "b"}, tokens)
}

func (s *CSVSuite) TestReadUnclosedQuote() {
	r := newCSVReader(strings.NewReader("\"unclosed\nnext,ok\n"), ',', '"')

	_, err := r.Read()
	s.Require().NotNil(err)
	s.Assert().ErrorIs(err, ErrMalformed)
}

func (s *CSVSuite) TestReadTrailingTextAfterQuote() {
	r := newCSVReader(strings.NewReader("\"ok\"junk,x\nnext,y\n"), ',', '"')

	_, err := r.Read()
	s.Require().NotNil(err)
	s.Assert().ErrorIs(err, ErrMalformed)

	// The reader recovers at the following record.
	tokens, err := r.Read()
	s.Assert().Nil(err)
	s.Assert().Equal([]string{"next", "y"}, tokens)
}

func (s *CSVSuite) TestReadQuoteInUnquotedField() {
	r := newCSVReader(strings.NewReader("ab\"cd,x\nnext,y\n"), ',', '"')

	_, err := r.Read()
	s.Require().NotNil(err)
	s.Assert().ErrorIs(err, ErrMalformed)

	tokens, err := r.Read()
	s.Assert().Nil(err)
	s.Assert().Equal([]string{"next", "y"}, tokens)
}

func (s *CSVSuite) TestWrite() {
	buf := &bytes.Buffer{}
	w := newCSVWriter(buf, ',', '"', "\n")

	s.Assert().Nil(w.Write([]string{"plain", "with,comma", `say "hi"`, "line\nbreak"}))
	s.Assert().Nil(w.Flush())
	s.Assert().Equal(`plain,"with,comma","say ""hi""","line`+"\nbreak\"\n", buf.String())
}

func (s *CSVSuite) TestRoundTrip() {
	buf := &bytes.Buffer{}
	w := newCSVWriter(buf, ',', '"', "\n")
	s.Assert().Nil(w.Write([]string{"plain", "with,comma", `say "hi"`, "line\nbreak"}))
	s.Assert().Nil(w.Flush())

	r := newCSVReader(buf, ',', '"')
	tokens, err := r.Read()
	s.Assert().Nil(err)
	s.Assert().Equal([]string{"plain", "with,comma", `say "hi"`, "line\nbreak"}, tokens)
}
