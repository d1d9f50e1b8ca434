// Copyright (C) 2023 by Posit Software, PBC
package fsb

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/suite"
)

type FieldSuite struct {
	suite.Suite
}

func TestFieldSuite(t *testing.T) {
	suite.Run(t, &FieldSuite{})
}

func (s *FieldSuite) tokenRecord(tokens ...string) *Record {
	rec := newRecord(NewStreamDefinition("t", FormatDelimited))
	rec.setValue(tokens, "", 1)
	return rec
}

func (s *FieldSuite) fixedRecord(text string) *Record {
	rec := newRecord(NewStreamDefinition("t", FormatFixedLength))
	rec.setValue([]string{text}, text, 1)
	return rec
}

func (s *FieldSuite) TestParseTrim() {
	f := NewFieldDefinition("name", 0)
	res := f.parse(s.tokenRecord("  widget  "))
	s.Assert().Equal(parseOK, res.state)
	s.Assert().Equal("widget", res.value)

	f.SetTrim(false)
	res = f.parse(s.tokenRecord("  widget  "))
	s.Assert().Equal(parseOK, res.state)
	s.Assert().Equal("  widget  ", res.value)
}

func (s *FieldSuite) TestParseRequired() {
	f := NewFieldDefinition("name", 0)
	f.SetRequired(true)

	rec := s.tokenRecord("")
	res := f.parse(rec)
	s.Assert().Equal(parseInvalid, res.state)
	s.Assert().Len(rec.fieldErrors, 1)
	s.Assert().Equal(RuleRequired, rec.fieldErrors[0].Rule)
	s.Assert().Equal("Required field not set", rec.fieldErrors[0].Message)

	// An absent token is as much a violation as an empty one.
	rec = s.tokenRecord()
	res = f.parse(rec)
	s.Assert().Equal(parseInvalid, res.state)
	s.Assert().Equal(RuleRequired, rec.fieldErrors[0].Rule)
}

func (s *FieldSuite) TestParseDefault() {
	f := NewFieldDefinition("status", 0)
	f.SetDefault("pending")

	res := f.parse(s.tokenRecord(""))
	s.Assert().Equal(parseOK, res.state)
	s.Assert().Equal("pending", res.value)

	res = f.parse(s.tokenRecord())
	s.Assert().Equal(parseOK, res.state)
	s.Assert().Equal("pending", res.value)
}

func (s *FieldSuite) TestParseOptionalMissing() {
	f := NewFieldDefinition("name", 0)
	res := f.parse(s.tokenRecord())
	s.Assert().Equal(parseOK, res.state)
	s.Assert().Nil(res.value)
}

func (s *FieldSuite) TestValidationsDoNotShortCircuit() {
	f := NewFieldDefinition("code", 0)
	f.SetLiteral("abcde")
	f.SetMinLength(5)

	rec := s.tokenRecord("xy")
	res := f.parse(rec)
	s.Assert().Equal(parseInvalid, res.state)
	s.Assert().Len(rec.fieldErrors, 2)
	s.Assert().Equal(RuleLiteral, rec.fieldErrors[0].Rule)
	s.Assert().Equal("Invalid field text, expected 'abcde'", rec.fieldErrors[0].Message)
	s.Assert().Equal(RuleMinLength, rec.fieldErrors[1].Rule)
}

func (s *FieldSuite) TestParseMaxLength() {
	f := NewFieldDefinition("code", 0)
	f.SetMaxLength(3)

	rec := s.tokenRecord("toolong")
	res := f.parse(rec)
	s.Assert().Equal(parseInvalid, res.state)
	s.Assert().Equal(RuleMaxLength, rec.fieldErrors[0].Rule)
	s.Assert().Equal("Field length must not exceed 3 characters", rec.fieldErrors[0].Message)
}

func (s *FieldSuite) TestParseRegex() {
	f := NewFieldDefinition("id", 0)
	err := f.SetRegex(`^[0-9]+$`)
	s.Assert().Nil(err)

	res := f.parse(s.tokenRecord("12345"))
	s.Assert().Equal(parseOK, res.state)
	s.Assert().Equal("12345", res.value)

	rec := s.tokenRecord("12a45")
	res = f.parse(rec)
	s.Assert().Equal(parseInvalid, res.state)
	s.Assert().Equal(RuleRegex, rec.fieldErrors[0].Rule)
}

func (s *FieldSuite) TestParseTypeConversion() {
	f := NewFieldDefinition("count", 0)
	f.SetTypeHandler(intHandler{})

	res := f.parse(s.tokenRecord("42"))
	s.Assert().Equal(parseOK, res.state)
	s.Assert().Equal(42, res.value)

	rec := s.tokenRecord("x")
	res = f.parse(rec)
	s.Assert().Equal(parseInvalid, res.state)
	s.Assert().Equal(RuleType, rec.fieldErrors[0].Rule)
	s.Assert().Equal("Type conversion error: invalid integer 'x'", rec.fieldErrors[0].Message)
}

func (s *FieldSuite) TestParseNilForNonNillableProperty() {
	a, err := newStructAccessor(reflect.TypeOf(accessorBean{}), "Count", false)
	s.Assert().Nil(err)

	f := NewFieldDefinition("count", 0)
	f.SetTypeHandler(intHandler{})
	f.SetAccessor(a)

	// Empty text parses to nil through the int handler; the target
	// property cannot hold it.
	rec := s.tokenRecord("")
	res := f.parse(rec)
	s.Assert().Equal(parseInvalid, res.state)
	s.Assert().Equal(RuleType, rec.fieldErrors[0].Rule)
}

func (s *FieldSuite) TestParseCollection() {
	f := NewFieldDefinition("tags", 1)
	f.SetCollection(true)
	f.SetMinOccurs(1)
	f.SetMaxOccurs(3)

	res := f.parse(s.tokenRecord("id", "red", "green", "blue", "extra"))
	s.Assert().Equal(parseOK, res.state)
	s.Assert().Equal([]any{"red", "green", "blue"}, res.value)

	res = f.parse(s.tokenRecord("id", "red"))
	s.Assert().Equal(parseOK, res.state)
	s.Assert().Equal([]any{"red"}, res.value)
}

func (s *FieldSuite) TestParseCollectionMinOccurs() {
	f := NewFieldDefinition("tags", 1)
	f.SetCollection(true)
	f.SetMinOccurs(2)
	f.SetMaxOccurs(3)

	rec := s.tokenRecord("id", "red")
	res := f.parse(rec)
	s.Assert().Equal(parseInvalid, res.state)
	s.Assert().Equal(RuleMinOccurs, rec.fieldErrors[0].Rule)
	s.Assert().Equal("Expected at least 2 occurrences", rec.fieldErrors[0].Message)
}

func (s *FieldSuite) TestParseFixedLength() {
	f := NewFieldDefinition("id", 0)
	f.SetLength(5)

	res := f.parse(s.fixedRecord("00042 Alice"))
	s.Assert().Equal(parseOK, res.state)
	s.Assert().Equal("00042", res.value)
}

func (s *FieldSuite) TestParseFixedLengthUnderflow() {
	f := NewFieldDefinition("id", 0)
	f.SetLength(5)

	// The record ends inside the field's byte range.
	rec := s.fixedRecord("00")
	res := f.parse(rec)
	s.Assert().Equal(parseInvalid, res.state)
	s.Assert().Len(rec.recordErrors, 1)
	s.Assert().Equal(RuleMalformed, rec.recordErrors[0].Rule)
}

func (s *FieldSuite) TestMatchesRecord() {
	f := NewFieldDefinition("type", 0)
	f.SetRecordIdentifier(true)
	f.SetLiteral("H")

	s.Assert().True(f.matchesRecord(s.tokenRecord("H", "rest")))
	s.Assert().False(f.matchesRecord(s.tokenRecord("D", "rest")))
	s.Assert().False(f.matchesRecord(s.tokenRecord()))
}

func (s *FieldSuite) TestFormatValuePadding() {
	f := NewFieldDefinition("id", 0)
	f.SetLength(5)
	f.SetJustify(JustifyRight)
	f.SetPadding('0')

	text, err := f.formatValue("42")
	s.Assert().Nil(err)
	s.Assert().Equal("00042", text)

	f.SetJustify(JustifyLeft)
	f.SetPadding(' ')
	text, err = f.formatValue("42")
	s.Assert().Nil(err)
	s.Assert().Equal("42   ", text)
}

func (s *FieldSuite) TestFormatValueOverflow() {
	f := NewFieldDefinition("id", 0)
	f.SetLength(3)

	_, err := f.formatValue("toolong")
	s.Assert().ErrorContains(err, "field 'id' text 'toolong' exceeds length 3")
}

func (s *FieldSuite) TestFormatLiteral() {
	f := NewFieldDefinition("type", 0)
	f.SetLiteral("H")

	// The literal is emitted regardless of the bean value.
	text, err := f.formatValue(nil)
	s.Assert().Nil(err)
	s.Assert().Equal("H", text)
}

func (s *FieldSuite) TestFormatIdempotent() {
	f := NewFieldDefinition("id", 0)
	f.SetLength(5)
	f.SetJustify(JustifyRight)
	f.SetPadding('0')

	once, err := f.formatValue("42")
	s.Assert().Nil(err)
	twice, err := f.formatValue(once)
	s.Assert().Nil(err)
	s.Assert().Equal(once, twice)
}

func (s *FieldSuite) TestFormatWithHandler() {
	f := NewFieldDefinition("count", 0)
	f.SetTypeHandler(intHandler{})

	text, err := f.formatValue(42)
	s.Assert().Nil(err)
	s.Assert().Equal("42", text)

	_, err = f.formatValue("not an int")
	s.Assert().ErrorContains(err, "type conversion failed for field 'count'")
}
