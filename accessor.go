// Copyright (C) 2023 by Posit Software, PBC
package fsb

import (
	"fmt"
	"reflect"
)

// Accessor reads and writes one bean property. Accessors are resolved
// once at configuration time and paired with a field definition, so the
// parse and format paths never inspect user types themselves.
type Accessor interface {
	Get(bean any) (any, error)
	Set(bean any, value any) error

	// Nillable reports whether a nil parsed value is legal for the
	// property. For collection properties it describes the element type.
	Nillable() bool
}

// structAccessor binds a field to an exported struct field, resolved by
// name from the record's bean type.
type structAccessor struct {
	property string
	index    []int
	typ      reflect.Type // the struct field type; a slice type for collections
	elem     reflect.Type // element type for collections, nil otherwise
}

func newStructAccessor(beanType reflect.Type, property string, collection bool) (*structAccessor, error) {
	sf, ok := beanType.FieldByName(property)
	if !ok {
		return nil, fmt.Errorf("type %s has no field '%s'", beanType, property)
	}
	if sf.PkgPath != "" {
		return nil, fmt.Errorf("field '%s' of type %s is not exported", property, beanType)
	}
	a := &structAccessor{property: property, index: sf.Index, typ: sf.Type}
	if collection {
		if sf.Type.Kind() != reflect.Slice && sf.Type.Kind() != reflect.Array {
			return nil, fmt.Errorf("field '%s' of type %s is not a slice or array", property, beanType)
		}
		a.elem = sf.Type.Elem()
	}
	return a, nil
}

func (a *structAccessor) target(bean any) (reflect.Value, error) {
	v := reflect.ValueOf(bean)
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return reflect.Value{}, fmt.Errorf("nil bean for property '%s'", a.property)
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return reflect.Value{}, fmt.Errorf("bean for property '%s' is %T, expected a struct", a.property, bean)
	}
	return v.FieldByIndex(a.index), nil
}

func (a *structAccessor) Get(bean any) (any, error) {
	f, err := a.target(bean)
	if err != nil {
		return nil, err
	}
	if nillableKind(f.Kind()) && f.IsNil() {
		return nil, nil
	}
	return f.Interface(), nil
}

func (a *structAccessor) Set(bean any, value any) error {
	v := reflect.ValueOf(bean)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return fmt.Errorf("bean must be a non-nil pointer to set property '%s'", a.property)
	}
	f := v.Elem().FieldByIndex(a.index)
	if value == nil {
		f.Set(reflect.Zero(a.typ))
		return nil
	}
	if a.elem != nil {
		items, ok := value.([]any)
		if !ok {
			return fmt.Errorf("property '%s' expects a collection, got %T", a.property, value)
		}
		slice := reflect.MakeSlice(reflect.SliceOf(a.elem), 0, len(items))
		for _, item := range items {
			ev, err := convertValue(item, a.elem, a.property)
			if err != nil {
				return err
			}
			slice = reflect.Append(slice, ev)
		}
		if a.typ.Kind() == reflect.Array {
			arr := reflect.New(a.typ).Elem()
			n := reflect.Copy(arr, slice)
			if n < slice.Len() {
				return fmt.Errorf("property '%s' holds %d elements, got %d", a.property, n, slice.Len())
			}
			f.Set(arr)
			return nil
		}
		f.Set(slice)
		return nil
	}
	sv, err := convertValue(value, a.typ, a.property)
	if err != nil {
		return err
	}
	f.Set(sv)
	return nil
}

func (a *structAccessor) Nillable() bool {
	t := a.typ
	if a.elem != nil {
		t = a.elem
	}
	return nillableKind(t.Kind())
}

func convertValue(value any, t reflect.Type, property string) (reflect.Value, error) {
	if value == nil {
		if !nillableKind(t.Kind()) {
			return reflect.Value{}, fmt.Errorf("nil value for non-nillable property '%s'", property)
		}
		return reflect.Zero(t), nil
	}
	v := reflect.ValueOf(value)
	if v.Type().AssignableTo(t) {
		return v, nil
	}
	if v.Type().ConvertibleTo(t) {
		return v.Convert(t), nil
	}
	return reflect.Value{}, fmt.Errorf("cannot assign %T to property '%s' (%s)", value, property, t)
}

// collectionValues flattens a slice or array value to []any. A nil or
// non-collection value yields nil.
func collectionValues(value any) []any {
	v := reflect.ValueOf(value)
	if !v.IsValid() || (v.Kind() != reflect.Slice && v.Kind() != reflect.Array) {
		return nil
	}
	items := make([]any, v.Len())
	for i := 0; i < v.Len(); i++ {
		items[i] = v.Index(i).Interface()
	}
	return items
}

func nillableKind(k reflect.Kind) bool {
	switch k {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func:
		return true
	default:
		return false
	}
}

// mapAccessor binds a field to a key of a map[string]any bean. Records
// declared with class "map" use it for every bound field.
type mapAccessor struct {
	key        string
	collection bool
}

func (a *mapAccessor) Get(bean any) (any, error) {
	m, ok := bean.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("bean is %T, expected map[string]any for property '%s'", bean, a.key)
	}
	return m[a.key], nil
}

func (a *mapAccessor) Set(bean any, value any) error {
	m, ok := bean.(map[string]any)
	if !ok {
		return fmt.Errorf("bean is %T, expected map[string]any for property '%s'", bean, a.key)
	}
	m[a.key] = value
	return nil
}

func (a *mapAccessor) Nillable() bool {
	return true
}
