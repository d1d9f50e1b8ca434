// Copyright (C) 2023 by Posit Software, PBC
package fsb

import (
	"fmt"
	"regexp"
	"strings"
)

// Justification of a fixed-length field within its byte range.
const (
	JustifyLeft  = "left"
	JustifyRight = "right"
)

type parseState int

const (
	parseOK parseState = iota
	// parseMissing indicates the field's text was absent: the record ran
	// out of tokens (or bytes) before the field's position.
	parseMissing
	// parseInvalid indicates one or more errors were appended to the
	// record context.
	parseInvalid
)

// parseResult is the three-variant outcome of a field parse. A nil value
// with state parseOK is a legal parsed value.
type parseResult struct {
	state parseState
	value any
}

func okResult(value any) parseResult { return parseResult{state: parseOK, value: value} }

var (
	missingResult = parseResult{state: parseMissing}
	invalidResult = parseResult{state: parseInvalid}
)

// FieldDefinition is the per-field contract: where the field sits in the
// record, how its text is validated, how text converts to a value, and
// which bean property the value binds to. Field definitions are immutable
// while streaming and shared by every reader and writer of the stream.
type FieldDefinition struct {
	name     string
	position int

	// length is the width in bytes of a fixed-length field. Unused for
	// token formats.
	length  int
	padding byte
	justify string

	trim             bool
	required         bool
	recordIdentifier bool
	minLength        int
	maxLength        int // Unbounded for no limit
	literal          string
	hasLiteral       bool
	regex            *regexp.Regexp
	defaultValue     any

	handler  TypeHandler
	accessor Accessor

	collection bool
	minOccurs  int
	maxOccurs  int // Unbounded for no limit
}

// NewFieldDefinition returns a field definition at the given position
// with trimming enabled, no validations, and scalar occurrence.
func NewFieldDefinition(name string, position int) *FieldDefinition {
	return &FieldDefinition{
		name:      name,
		position:  position,
		padding:   ' ',
		justify:   JustifyLeft,
		trim:      true,
		maxLength: Unbounded,
		minOccurs: 1,
		maxOccurs: 1,
	}
}

func (f *FieldDefinition) Name() string   { return f.name }
func (f *FieldDefinition) Position() int  { return f.position }
func (f *FieldDefinition) Length() int    { return f.length }
func (f *FieldDefinition) MinOccurs() int { return f.minOccurs }
func (f *FieldDefinition) MaxOccurs() int { return f.maxOccurs }

func (f *FieldDefinition) SetLength(n int)      { f.length = n }
func (f *FieldDefinition) SetPadding(b byte)    { f.padding = b }
func (f *FieldDefinition) SetJustify(j string)  { f.justify = j }
func (f *FieldDefinition) SetTrim(trim bool)    { f.trim = trim }
func (f *FieldDefinition) SetRequired(req bool) { f.required = req }
func (f *FieldDefinition) SetRecordIdentifier(b bool) {
	f.recordIdentifier = b
}
func (f *FieldDefinition) SetMinLength(n int) { f.minLength = n }
func (f *FieldDefinition) SetMaxLength(n int) { f.maxLength = n }
func (f *FieldDefinition) SetLiteral(s string) {
	f.literal = s
	f.hasLiteral = true
}
func (f *FieldDefinition) SetRegex(pattern string) error {
	if pattern == "" {
		f.regex = nil
		return nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	f.regex = re
	return nil
}
func (f *FieldDefinition) SetDefault(v any)             { f.defaultValue = v }
func (f *FieldDefinition) SetTypeHandler(h TypeHandler) { f.handler = h }
func (f *FieldDefinition) SetAccessor(a Accessor)       { f.accessor = a }
func (f *FieldDefinition) SetCollection(b bool)         { f.collection = b }
func (f *FieldDefinition) SetMinOccurs(n int)           { f.minOccurs = n }
func (f *FieldDefinition) SetMaxOccurs(n int)           { f.maxOccurs = n }

// isMatch reports whether text satisfies the configured literal and
// regex. Both must hold when both are configured.
func (f *FieldDefinition) isMatch(text string) bool {
	if f.hasLiteral && f.literal != text {
		return false
	}
	if f.regex != nil && !f.regex.MatchString(text) {
		return false
	}
	return true
}

// matchesRecord evaluates the identifier against the record's raw field
// text. Used while reading to identify the record type.
func (f *FieldDefinition) matchesRecord(rec *Record) bool {
	saved := rec.fieldIndex
	rec.fieldIndex = 0
	text, ok, underflow := rec.fieldText(f)
	rec.fieldIndex = saved
	if !ok || underflow {
		return false
	}
	if f.trim {
		text = strings.TrimSpace(text)
	}
	return f.isMatch(text)
}

// matchesValue evaluates the identifier against a candidate bean value.
// Used while writing to locate the record definition for a bean.
func (f *FieldDefinition) matchesValue(value any) bool {
	if value == nil {
		return false
	}
	text, err := f.formatRaw(value)
	if err != nil {
		return false
	}
	return f.isMatch(text)
}

// parse extracts, validates and converts this field from the record. For
// collection fields the scalar algorithm repeats at increasing field
// index until maxOccurs is reached or the record runs out of text; the
// aggregated value is a []any.
func (f *FieldDefinition) parse(rec *Record) parseResult {
	if !f.collection {
		rec.fieldIndex = 0
		res := f.parseValue(rec)
		if res.state == parseMissing {
			return okResult(nil)
		}
		return res
	}

	values := make([]any, 0, f.minOccurs)
	invalid := false
	count := 0
	for f.maxOccurs == Unbounded || count < f.maxOccurs {
		rec.fieldIndex = count
		res := f.parseValue(rec)
		if res.state == parseMissing {
			break
		}
		if res.state == parseInvalid {
			invalid = true
		} else {
			values = append(values, res.value)
		}
		count++
	}
	rec.fieldIndex = 0
	if count < f.minOccurs {
		rec.addFieldError(f.name, "", RuleMinOccurs, f.minOccurs, f.maxOccurs)
		return invalidResult
	}
	if invalid {
		return invalidResult
	}
	return okResult(values)
}

// parseValue runs the scalar parse algorithm for the occurrence selected
// by the record's field index: extract, trim, validate, convert. Failing
// validations each append their own field error; they do not short
// circuit one another. Type conversion only runs when every validation
// passed.
func (f *FieldDefinition) parseValue(rec *Record) parseResult {
	fieldText, present, underflow := rec.fieldText(f)
	if underflow {
		rec.addRecordError(RuleMalformed, rec.lineNumber, rec.text)
		return invalidResult
	}
	if !present {
		if f.collection {
			return missingResult
		}
		if f.required {
			rec.addFieldError(f.name, fieldText, RuleRequired)
			return invalidResult
		}
		if f.defaultValue != nil {
			return okResult(f.defaultValue)
		}
		return missingResult
	}

	text := fieldText
	if f.trim {
		text = strings.TrimSpace(text)
	}

	valid := true
	if text == "" {
		if f.required {
			rec.addFieldError(f.name, fieldText, RuleRequired)
			valid = false
		} else if f.defaultValue != nil {
			return okResult(f.defaultValue)
		}
	} else {
		if f.hasLiteral && f.literal != text {
			rec.addFieldError(f.name, fieldText, RuleLiteral, f.literal)
			valid = false
		}
		if f.minLength > 0 && len(text) < f.minLength {
			rec.addFieldError(f.name, fieldText, RuleMinLength, f.minLength, f.maxLength)
			valid = false
		}
		if f.maxLength != Unbounded && len(text) > f.maxLength {
			rec.addFieldError(f.name, fieldText, RuleMaxLength, f.minLength, f.maxLength)
			valid = false
		}
		if f.regex != nil && !f.regex.MatchString(text) {
			rec.addFieldError(f.name, fieldText, RuleRegex, f.regex.String())
			valid = false
		}
	}
	if !valid {
		return invalidResult
	}

	var value any = text
	if f.handler != nil {
		var err error
		value, err = f.handler.Parse(text)
		if err != nil {
			rec.addFieldError(f.name, fieldText, RuleType, err.Error())
			return invalidResult
		}
	}

	if value == nil && f.accessor != nil && !f.accessor.Nillable() {
		rec.addFieldError(f.name, fieldText, RuleType, "value required for non-nillable property")
		return invalidResult
	}
	return okResult(value)
}

// formatRaw converts a value to text through the handler without any
// layout padding.
func (f *FieldDefinition) formatRaw(value any) (string, error) {
	if f.handler != nil {
		text, err := f.handler.Format(value)
		if err != nil {
			return "", &WriterError{
				Msg:   fmt.Sprintf("type conversion failed for field '%s'", f.name),
				Cause: err,
			}
		}
		return text, nil
	}
	if value == nil {
		return "", nil
	}
	if s, ok := value.(string); ok {
		return s, nil
	}
	return fmt.Sprintf("%v", value), nil
}

// formatValue produces the field text for a value. A configured literal
// is always emitted. Nil formats to the empty string before padding.
// Text wider than a fixed-length field's byte range is a writer fault.
func (f *FieldDefinition) formatValue(value any) (string, error) {
	text := f.literal
	if !f.hasLiteral {
		var err error
		text, err = f.formatRaw(value)
		if err != nil {
			return "", err
		}
	}
	if f.length > 0 && len(text) > f.length {
		return "", &WriterError{
			Msg: fmt.Sprintf("field '%s' text '%s' exceeds length %d", f.name, text, f.length),
		}
	}
	return f.formatText(text), nil
}

// formatText applies fixed-length padding. Token formats emit the text
// unchanged.
func (f *FieldDefinition) formatText(text string) string {
	if f.length == 0 || len(text) >= f.length {
		return text
	}
	pad := strings.Repeat(string(f.padding), f.length-len(text))
	if f.justify == JustifyRight {
		return pad + text
	}
	return text + pad
}
