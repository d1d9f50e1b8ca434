// Copyright (C) 2023 by Posit Software, PBC
package fsb

import (
	"fmt"
	"strconv"
	"sync"
	"time"
)

// Built-in type names recognized by the handler registry.
const (
	TypeString  = "string"
	TypeInt     = "int"
	TypeInt64   = "int64"
	TypeFloat64 = "float64"
	TypeBool    = "bool"
	TypeDate    = "date"
)

// HandlerRegistry maps declared field types and handler names to type
// handlers. The registry is safe for concurrent lookup after
// configuration; registration is expected to happen before any reader or
// writer is created.
type HandlerRegistry struct {
	mu     sync.RWMutex
	byType map[string]TypeHandler
	byName map[string]TypeHandler
}

// NewHandlerRegistry returns a registry preloaded with the built-in
// handlers for string, int, int64, float64, bool and date.
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{
		byType: map[string]TypeHandler{
			TypeString:  stringHandler{},
			TypeInt:     intHandler{},
			TypeInt64:   int64Handler{},
			TypeFloat64: float64Handler{},
			TypeBool:    boolHandler{},
			TypeDate:    DateHandler{Layout: "2006-01-02"},
		},
		byName: map[string]TypeHandler{},
	}
}

// RegisterType installs (or replaces) the handler used for fields that
// declare the given type.
func (r *HandlerRegistry) RegisterType(typeName string, h TypeHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byType[typeName] = h
}

// RegisterName installs a named handler. A field that sets a handler
// name uses the named handler regardless of its declared type.
func (r *HandlerRegistry) RegisterName(name string, h TypeHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byName[name] = h
}

// Lookup resolves a handler for the (declared type, handler name) pair.
// A named handler takes precedence. When neither is configured the
// identity handler is returned: text in, text out.
func (r *HandlerRegistry) Lookup(typeName, handlerName string) (TypeHandler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if handlerName != "" {
		h, ok := r.byName[handlerName]
		if !ok {
			return nil, fmt.Errorf("no type handler named '%s'", handlerName)
		}
		return h, nil
	}
	if typeName == "" {
		return stringHandler{}, nil
	}
	h, ok := r.byType[typeName]
	if !ok {
		return nil, fmt.Errorf("no type handler for type '%s'", typeName)
	}
	return h, nil
}

// stringHandler is the identity handler: text in, text out. Unlike the
// numeric handlers, empty text parses to "" rather than nil.
type stringHandler struct{}

func (stringHandler) Parse(text string) (any, error) {
	return text, nil
}

func (stringHandler) Format(value any) (string, error) {
	if value == nil {
		return "", nil
	}
	s, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("expected string value, got %T", value)
	}
	return s, nil
}

type intHandler struct{}

func (intHandler) Parse(text string) (any, error) {
	if text == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(text)
	if err != nil {
		return nil, fmt.Errorf("invalid integer '%s'", text)
	}
	return n, nil
}

func (intHandler) Format(value any) (string, error) {
	if value == nil {
		return "", nil
	}
	n, ok := value.(int)
	if !ok {
		return "", fmt.Errorf("expected int value, got %T", value)
	}
	return strconv.Itoa(n), nil
}

type int64Handler struct{}

func (int64Handler) Parse(text string) (any, error) {
	if text == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid integer '%s'", text)
	}
	return n, nil
}

func (int64Handler) Format(value any) (string, error) {
	if value == nil {
		return "", nil
	}
	n, ok := value.(int64)
	if !ok {
		return "", fmt.Errorf("expected int64 value, got %T", value)
	}
	return strconv.FormatInt(n, 10), nil
}

type float64Handler struct{}

func (float64Handler) Parse(text string) (any, error) {
	if text == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid number '%s'", text)
	}
	return f, nil
}

func (float64Handler) Format(value any) (string, error) {
	if value == nil {
		return "", nil
	}
	f, ok := value.(float64)
	if !ok {
		return "", fmt.Errorf("expected float64 value, got %T", value)
	}
	return strconv.FormatFloat(f, 'f', -1, 64), nil
}

type boolHandler struct{}

func (boolHandler) Parse(text string) (any, error) {
	if text == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(text)
	if err != nil {
		return nil, fmt.Errorf("invalid boolean '%s'", text)
	}
	return b, nil
}

func (boolHandler) Format(value any) (string, error) {
	if value == nil {
		return "", nil
	}
	b, ok := value.(bool)
	if !ok {
		return "", fmt.Errorf("expected bool value, got %T", value)
	}
	return strconv.FormatBool(b), nil
}

// DateHandler converts between text and time.Time values using a Go
// reference layout. A field may override the layout with its `format`
// mapping attribute.
type DateHandler struct {
	Layout string
}

func (h DateHandler) Parse(text string) (any, error) {
	if text == "" {
		return nil, nil
	}
	t, err := time.Parse(h.Layout, text)
	if err != nil {
		return nil, fmt.Errorf("invalid date '%s', expected layout '%s'", text, h.Layout)
	}
	return t, nil
}

func (h DateHandler) Format(value any) (string, error) {
	if value == nil {
		return "", nil
	}
	t, ok := value.(time.Time)
	if !ok {
		return "", fmt.Errorf("expected time.Time value, got %T", value)
	}
	return t.Format(h.Layout), nil
}

func (h DateHandler) WithFormat(pattern string) (TypeHandler, error) {
	if pattern == "" {
		return h, nil
	}
	return DateHandler{Layout: pattern}, nil
}
