// Copyright (C) 2023 by Posit Software, PBC
package fsb

import (
	"fmt"
	"reflect"
)

// Record is the per-instance context for the record currently being
// parsed: the raw text, the tokenized fields, and every error collected
// while parsing it. One Record is owned by each reader and reused across
// records; it is never shared.
type Record struct {
	stream *StreamDefinition

	lineNumber int
	text       string
	tokens     []string
	recordName string

	// fieldIndex is the occurrence being parsed for a collection field,
	// starting at 0.
	fieldIndex int

	recordErrors []RecordError
	fieldErrors  []FieldError
}

func newRecord(stream *StreamDefinition) *Record {
	return &Record{stream: stream}
}

func (r *Record) clear() {
	r.lineNumber = 0
	r.text = ""
	r.tokens = nil
	r.recordName = ""
	r.fieldIndex = 0
	r.recordErrors = nil
	r.fieldErrors = nil
}

func (r *Record) setValue(tokens []string, text string, lineNumber int) {
	r.tokens = tokens
	r.text = text
	r.lineNumber = lineNumber
}

func (r *Record) addRecordError(rule string, params ...any) {
	r.recordErrors = append(r.recordErrors, RecordError{
		Rule:    rule,
		Line:    r.lineNumber,
		Text:    r.text,
		Params:  params,
		Message: r.stream.recordErrorMessage(r.recordName, rule, params),
	})
}

func (r *Record) addFieldError(fieldName, text, rule string, params ...any) {
	r.fieldErrors = append(r.fieldErrors, FieldError{
		Field:   fieldName,
		Text:    text,
		Rule:    rule,
		Params:  params,
		Message: r.stream.fieldErrorMessage(r.recordName, fieldName, rule, params),
	})
}

func (r *Record) hasErrors() bool {
	return len(r.recordErrors) > 0 || len(r.fieldErrors) > 0
}

func (r *Record) hasRecordError(rule string) bool {
	for _, e := range r.recordErrors {
		if e.Rule == rule {
			return true
		}
	}
	return false
}

// Context snapshots the record state into a structured error report.
func (r *Record) Context() *RecordContext {
	ctx := &RecordContext{
		LineNumber: r.lineNumber,
		RecordText: r.text,
		RecordName: r.recordName,
	}
	ctx.RecordErrors = append(ctx.RecordErrors, r.recordErrors...)
	ctx.FieldErrors = append(ctx.FieldErrors, r.fieldErrors...)
	return ctx
}

// fieldText extracts the raw text for the occurrence of f selected by
// r.fieldIndex. ok is false when the field is absent from the record.
// underflow is true when a fixed-length record ends inside the field's
// byte range.
func (r *Record) fieldText(f *FieldDefinition) (text string, ok, underflow bool) {
	if r.stream.format == FormatFixedLength {
		pos := f.position + r.fieldIndex*f.length
		if pos >= len(r.text) {
			return "", false, false
		}
		if pos+f.length > len(r.text) {
			return "", false, true
		}
		return r.text[pos : pos+f.length], true, false
	}
	idx := f.position + r.fieldIndex
	if idx >= len(r.tokens) {
		return "", false, false
	}
	return r.tokens[idx], true, false
}

// RecordDefinition describes one record type: its ordered fields, its
// cardinality within the parent group, and the bean it binds to.
type RecordDefinition struct {
	name      string
	order     int
	minOccurs int
	maxOccurs int

	fields []*FieldDefinition

	// beanType is the struct type constructed by parseBean, or nil. A
	// record with mapBean set builds a map[string]any instead. With
	// neither, the record is validated and skipped.
	beanType reflect.Type
	mapBean  bool
}

// NewRecordDefinition returns a record definition with the default
// cardinality of exactly one occurrence.
func NewRecordDefinition(name string) *RecordDefinition {
	return &RecordDefinition{name: name, minOccurs: 1, maxOccurs: 1}
}

func (d *RecordDefinition) Name() string       { return d.name }
func (d *RecordDefinition) Order() int         { return d.order }
func (d *RecordDefinition) MinOccurs() int     { return d.minOccurs }
func (d *RecordDefinition) MaxOccurs() int     { return d.maxOccurs }
func (d *RecordDefinition) SetOrder(n int)     { d.order = n }
func (d *RecordDefinition) SetMinOccurs(n int) { d.minOccurs = n }
func (d *RecordDefinition) SetMaxOccurs(n int) { d.maxOccurs = n }

// SetBeanType configures the struct type constructed for each parsed
// record. Pass the struct type itself, not a pointer type.
func (d *RecordDefinition) SetBeanType(t reflect.Type) { d.beanType = t }

// SetMapBean configures the record to bind into a map[string]any.
func (d *RecordDefinition) SetMapBean(mapBean bool) { d.mapBean = mapBean }

func (d *RecordDefinition) AddField(f *FieldDefinition) { d.fields = append(d.fields, f) }

// Fields returns the field definitions in declaration order.
func (d *RecordDefinition) Fields() []*FieldDefinition { return d.fields }

func (d *RecordDefinition) bound() bool {
	return d.beanType != nil || d.mapBean
}

func (d *RecordDefinition) hasIdentifier() bool {
	for _, f := range d.fields {
		if f.recordIdentifier {
			return true
		}
	}
	return false
}

// matchesRecord reports whether every record-identifier field extracts
// text matching its literal or regex. A record with no identifier fields
// matches anything; the layout only consults such records when no
// identified sibling matches.
func (d *RecordDefinition) matchesRecord(rec *Record) bool {
	for _, f := range d.fields {
		if !f.recordIdentifier {
			continue
		}
		if !f.matchesRecord(rec) {
			return false
		}
	}
	return true
}

// matchesBean reports whether the bean could have been produced by this
// record definition: the runtime type is assignable to the configured
// bean type and every bound identifier field's value formats to text
// matching the field's literal or regex.
func (d *RecordDefinition) matchesBean(bean any) bool {
	switch {
	case d.mapBean:
		if _, ok := bean.(map[string]any); !ok {
			return false
		}
	case d.beanType != nil:
		t := reflect.TypeOf(bean)
		if t != nil && t.Kind() == reflect.Ptr {
			t = t.Elem()
		}
		if t != d.beanType {
			return false
		}
	default:
		return false
	}
	for _, f := range d.fields {
		if !f.recordIdentifier || f.accessor == nil {
			continue
		}
		value, err := f.accessor.Get(bean)
		if err != nil || !f.matchesValue(value) {
			return false
		}
	}
	return true
}

func (d *RecordDefinition) newBean() any {
	if d.mapBean {
		return map[string]any{}
	}
	return reflect.New(d.beanType).Interface()
}

// parseBean parses every field of the record in declaration order. All
// fields are attempted so that the context carries the complete error
// set; when any error was collected the bean is withheld and the
// appropriate record fault is returned. A record with no bean binding
// parses to (nil, nil) after validation.
func (d *RecordDefinition) parseBean(rec *Record) (any, error) {
	type binding struct {
		f     *FieldDefinition
		value any
	}
	var values []binding
	for _, f := range d.fields {
		res := f.parse(rec)
		if res.state == parseOK && f.accessor != nil {
			values = append(values, binding{f, res.value})
		}
	}

	if rec.hasErrors() {
		if rec.hasRecordError(RuleMalformed) {
			return nil, &MalformedRecordError{Context: rec.Context()}
		}
		return nil, &InvalidRecordError{Context: rec.Context()}
	}
	if !d.bound() {
		return nil, nil
	}

	bean := d.newBean()
	for _, b := range values {
		if err := b.f.accessor.Set(bean, b.value); err != nil {
			return nil, fmt.Errorf("record '%s': %w", d.name, err)
		}
	}
	return bean, nil
}

// formatBean projects each field's value from the bean and formats it
// into the ordered output tokens. Collection fields emit one token per
// element up to maxOccurs and pad with empty tokens up to minOccurs.
func (d *RecordDefinition) formatBean(bean any) ([]string, error) {
	var tokens []string
	for _, f := range d.fields {
		var value any
		if f.accessor != nil {
			var err error
			value, err = f.accessor.Get(bean)
			if err != nil {
				return nil, &WriterError{Msg: fmt.Sprintf("record '%s'", d.name), Cause: err}
			}
		}
		if f.collection {
			n := 0
			if value != nil {
				v := reflect.ValueOf(value)
				if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
					return nil, &WriterError{
						Msg: fmt.Sprintf("record '%s': field '%s' expects a collection, got %T", d.name, f.name, value),
					}
				}
				for i := 0; i < v.Len(); i++ {
					if f.maxOccurs != Unbounded && n >= f.maxOccurs {
						break
					}
					text, err := f.formatValue(v.Index(i).Interface())
					if err != nil {
						return nil, err
					}
					tokens = append(tokens, text)
					n++
				}
			}
			for ; n < f.minOccurs; n++ {
				tokens = append(tokens, f.formatText(""))
			}
			continue
		}
		text, err := f.formatValue(value)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, text)
	}
	return tokens, nil
}
