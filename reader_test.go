// Copyright (C) 2023 by Posit Software, PBC
package fsb

import (
	"io"
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"
)

type ReaderSuite struct {
	suite.Suite
}

func TestReaderSuite(t *testing.T) {
	suite.Run(t, &ReaderSuite{})
}

// personStream maps one fixed-length record: id at bytes [0,5), name at
// bytes [5,25).
func (s *ReaderSuite) personStream() *StreamDefinition {
	stream := NewStreamDefinition("people", FormatFixedLength)

	r := NewRecordDefinition("person")
	r.SetOrder(1)
	r.SetBeanType(reflect.TypeOf(person{}))

	id := NewFieldDefinition("id", 0)
	id.SetLength(5)
	id.SetRequired(true)
	a, err := newStructAccessor(reflect.TypeOf(person{}), "ID", false)
	s.Require().Nil(err)
	id.SetAccessor(a)
	r.AddField(id)

	name := NewFieldDefinition("name", 5)
	name.SetLength(20)
	a, err = newStructAccessor(reflect.TypeOf(person{}), "Name", false)
	s.Require().Nil(err)
	name.SetAccessor(a)
	r.AddField(name)

	stream.Root().AddRecord(r)
	return stream
}

func (s *ReaderSuite) TestFixedLengthHappyPath() {
	line := "00042" + " Alice" + strings.Repeat(" ", 14)
	s.Require().Len(line, 25)

	reader := s.personStream().NewReader(strings.NewReader(line + "\n"))
	defer reader.Close()

	bean, err := reader.Read()
	s.Assert().Nil(err)
	s.Assert().Equal(&person{ID: "00042", Name: "Alice"}, bean)
	s.Assert().Equal("person", reader.RecordName())
	s.Assert().Equal(1, reader.LineNumber())

	_, err = reader.Read()
	s.Assert().Equal(io.EOF, err)
}

// reportStream maps a CSV layout of one header followed by any number of
// details, both identified by their first token.
func (s *ReaderSuite) reportStream() *StreamDefinition {
	stream := NewStreamDefinition("report", FormatCSV)

	header := NewRecordDefinition("header")
	header.SetOrder(1)
	header.SetMapBean(true)
	kind := NewFieldDefinition("kind", 0)
	kind.SetRecordIdentifier(true)
	kind.SetLiteral("H")
	header.AddField(kind)
	title := NewFieldDefinition("title", 1)
	title.SetAccessor(&mapAccessor{key: "title"})
	header.AddField(title)
	year := NewFieldDefinition("year", 2)
	year.SetTypeHandler(intHandler{})
	year.SetAccessor(&mapAccessor{key: "year"})
	header.AddField(year)
	stream.Root().AddRecord(header)

	detail := NewRecordDefinition("detail")
	detail.SetOrder(2)
	detail.SetMinOccurs(0)
	detail.SetMaxOccurs(Unbounded)
	kind = NewFieldDefinition("kind", 0)
	kind.SetRecordIdentifier(true)
	kind.SetLiteral("D")
	detail.AddField(kind)
	name := NewFieldDefinition("name", 1)
	name.SetAccessor(&mapAccessor{key: "name"})
	detail.AddField(name)
	count := NewFieldDefinition("count", 2)
	count.SetTypeHandler(intHandler{})
	count.SetAccessor(&mapAccessor{key: "count"})
	detail.AddField(count)
	stream.Root().AddRecord(detail)

	return stream
}

func (s *ReaderSuite) TestCSVWithIdentifier() {
	input := "H,report,2024\nD,foo,7\nD,bar,x\n"
	reader := s.reportStream().NewReader(strings.NewReader(input))
	defer reader.Close()

	bean, err := reader.Read()
	s.Assert().Nil(err)
	s.Assert().Equal(map[string]any{"title": "report", "year": 2024}, bean)
	s.Assert().Equal("header", reader.RecordName())

	bean, err = reader.Read()
	s.Assert().Nil(err)
	s.Assert().Equal(map[string]any{"name": "foo", "count": 7}, bean)
	s.Assert().Equal("detail", reader.RecordName())

	// The third detail carries a non-numeric count.
	_, err = reader.Read()
	var invalid *InvalidRecordError
	s.Require().ErrorAs(err, &invalid)
	s.Assert().Equal("detail", invalid.Context.RecordName)
	s.Assert().Equal(3, invalid.Context.LineNumber)
	s.Require().Len(invalid.Context.FieldErrors, 1)
	s.Assert().Equal("count", invalid.Context.FieldErrors[0].Field)
	s.Assert().Equal(RuleType, invalid.Context.FieldErrors[0].Rule)

	// The stream still closes cleanly after the invalid record.
	_, err = reader.Read()
	s.Assert().Equal(io.EOF, err)
}

// abStream maps a required record a followed by an optional record b.
func (s *ReaderSuite) abStream() *StreamDefinition {
	stream := NewStreamDefinition("ab", FormatDelimited)
	for i, def := range []struct {
		name, literal string
		min           int
	}{
		{"a", "a", 1},
		{"b", "b", 0},
	} {
		r := NewRecordDefinition(def.name)
		r.SetOrder(i + 1)
		r.SetMinOccurs(def.min)
		r.SetMaxOccurs(1)
		f := NewFieldDefinition("kind", 0)
		f.SetRecordIdentifier(true)
		f.SetLiteral(def.literal)
		r.AddField(f)
		stream.Root().AddRecord(r)
	}
	return stream
}

func (s *ReaderSuite) TestSequenceViolation() {
	reader := s.abStream().NewReader(strings.NewReader("b\n"))
	defer reader.Close()

	// b arrives while the required a is still owed: unexpected, since b
	// is identifiable elsewhere in the layout.
	_, err := reader.Read()
	var unexpected *UnexpectedRecordError
	s.Require().ErrorAs(err, &unexpected)
	s.Assert().Equal("b", unexpected.Context.RecordName)
	s.Assert().Equal("", unexpected.Expected)

	// End of stream names a as the absent record.
	_, err = reader.Read()
	s.Require().ErrorAs(err, &unexpected)
	s.Assert().Equal("a", unexpected.Expected)
	s.Assert().ErrorContains(err, "expected record 'a'")

	// The stream is closed; further reads report EOF.
	_, err = reader.Read()
	s.Assert().Equal(io.EOF, err)
}

func (s *ReaderSuite) TestUnidentifiedRecord() {
	reader := s.abStream().NewReader(strings.NewReader("q\n"))
	defer reader.Close()

	_, err := reader.Read()
	var unidentified *UnidentifiedRecordError
	s.Require().ErrorAs(err, &unidentified)
	s.Assert().Equal(1, unidentified.Context.LineNumber)
	s.Assert().Equal("q", unidentified.Context.RecordText)
}

func (s *ReaderSuite) TestCollectionField() {
	stream := NewStreamDefinition("rows", FormatCSV)
	r := NewRecordDefinition("row")
	r.SetOrder(1)
	r.SetMaxOccurs(Unbounded)
	r.SetMapBean(true)

	id := NewFieldDefinition("id", 0)
	id.SetAccessor(&mapAccessor{key: "id"})
	r.AddField(id)
	name := NewFieldDefinition("name", 1)
	name.SetAccessor(&mapAccessor{key: "name"})
	r.AddField(name)
	tags := NewFieldDefinition("tags", 2)
	tags.SetCollection(true)
	tags.SetMinOccurs(1)
	tags.SetMaxOccurs(3)
	tags.SetAccessor(&mapAccessor{key: "tags", collection: true})
	r.AddField(tags)
	stream.Root().AddRecord(r)

	reader := stream.NewReader(strings.NewReader("id,name,red,green,blue\nid,name\n"))
	defer reader.Close()

	bean, err := reader.Read()
	s.Assert().Nil(err)
	s.Assert().Equal(map[string]any{
		"id":   "id",
		"name": "name",
		"tags": []any{"red", "green", "blue"},
	}, bean)

	// A record with no tag tokens violates the field's minOccurs.
	_, err = reader.Read()
	var invalid *InvalidRecordError
	s.Require().ErrorAs(err, &invalid)
	s.Require().Len(invalid.Context.FieldErrors, 1)
	s.Assert().Equal("tags", invalid.Context.FieldErrors[0].Field)
	s.Assert().Equal(RuleMinOccurs, invalid.Context.FieldErrors[0].Rule)
}

func (s *ReaderSuite) TestMaxOccursOverflow() {
	stream := NewStreamDefinition("lines", FormatDelimited)
	r := NewRecordDefinition("line")
	r.SetOrder(1)
	r.SetMaxOccurs(2)
	r.AddField(NewFieldDefinition("value", 0))
	stream.Root().AddRecord(r)

	reader := stream.NewReader(strings.NewReader("x\ny\nz\n"))
	defer reader.Close()

	for i := 0; i < 2; i++ {
		_, err := reader.Read()
		s.Assert().Nil(err)
	}

	// The third arrival exceeds maxOccurs; the record is identifiable,
	// so the fault is unexpected rather than unidentified.
	_, err := reader.Read()
	var unexpected *UnexpectedRecordError
	s.Require().ErrorAs(err, &unexpected)
	s.Assert().Equal("line", unexpected.Context.RecordName)
	s.Assert().Equal(3, unexpected.Context.LineNumber)
}

func (s *ReaderSuite) TestUnboundRecordSkipped() {
	stream := NewStreamDefinition("mixed", FormatDelimited)

	comment := NewRecordDefinition("comment")
	comment.SetOrder(1)
	comment.SetMinOccurs(0)
	comment.SetMaxOccurs(Unbounded)
	kind := NewFieldDefinition("kind", 0)
	kind.SetRecordIdentifier(true)
	kind.SetLiteral("#")
	comment.AddField(kind)
	stream.Root().AddRecord(comment)

	data := NewRecordDefinition("data")
	data.SetOrder(1)
	data.SetMaxOccurs(Unbounded)
	data.SetMapBean(true)
	value := NewFieldDefinition("value", 0)
	value.SetAccessor(&mapAccessor{key: "value"})
	data.AddField(value)
	stream.Root().AddRecord(data)

	reader := stream.NewReader(strings.NewReader("#\nhello\n"))
	defer reader.Close()

	// The comment is validated and skipped; the first bean returned is
	// the data record.
	bean, err := reader.Read()
	s.Assert().Nil(err)
	s.Assert().Equal(map[string]any{"value": "hello"}, bean)
	s.Assert().Equal("data", reader.RecordName())
}

func (s *ReaderSuite) TestMalformedRecordContinues() {
	stream := NewStreamDefinition("rows", FormatCSV)
	r := NewRecordDefinition("row")
	r.SetOrder(1)
	r.SetMaxOccurs(Unbounded)
	r.SetMapBean(true)
	value := NewFieldDefinition("value", 0)
	value.SetAccessor(&mapAccessor{key: "value"})
	r.AddField(value)
	stream.Root().AddRecord(r)

	reader := stream.NewReader(strings.NewReader("\"ok\"junk\nfine\n"))
	defer reader.Close()

	_, err := reader.Read()
	var malformed *MalformedRecordError
	s.Require().ErrorAs(err, &malformed)

	bean, err := reader.Read()
	s.Assert().Nil(err)
	s.Assert().Equal(map[string]any{"value": "fine"}, bean)
}

func (s *ReaderSuite) TestCloseIdempotent() {
	reader := s.personStream().NewReader(strings.NewReader(""))
	s.Assert().Nil(reader.Close())
	s.Assert().Nil(reader.Close())
}
