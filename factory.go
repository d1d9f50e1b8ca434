// Copyright (C) 2023 by Posit Software, PBC
package fsb

import (
	"io"
	"os"
	"reflect"
	"sync"
)

// StreamFactory loads mapping documents and hands out readers and
// writers for the streams they define. Bean types and custom type
// handlers must be registered before the mapping that references them
// is loaded.
type StreamFactory struct {
	mu       sync.RWMutex
	streams  map[string]*StreamDefinition
	handlers *HandlerRegistry
	beans    map[string]reflect.Type
}

func NewStreamFactory() *StreamFactory {
	return &StreamFactory{
		streams:  map[string]*StreamDefinition{},
		handlers: NewHandlerRegistry(),
		beans:    map[string]reflect.Type{},
	}
}

// Handlers exposes the factory's type handler registry so callers can
// install custom handlers before loading a mapping.
func (f *StreamFactory) Handlers() *HandlerRegistry {
	return f.handlers
}

// RegisterBean makes a bean type available to mappings under the given
// class name. The prototype may be a value or a pointer; only its type
// is retained.
func (f *StreamFactory) RegisterBean(name string, prototype any) {
	t := reflect.TypeOf(prototype)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.beans[name] = t
}

// Load reads a mapping file and adds its streams to the factory.
func (f *StreamFactory) Load(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return &IOError{Op: "opening mapping file", Cause: err}
	}
	defer file.Close()
	return f.LoadReader(file)
}

// LoadReader parses a mapping document and adds its streams to the
// factory. Loading a stream whose name is already present is a
// configuration fault.
func (f *StreamFactory) LoadReader(in io.Reader) error {
	data, err := io.ReadAll(in)
	if err != nil {
		return &IOError{Op: "reading mapping", Cause: err}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	streams, err := parseMapping(data, f.beans, f.handlers)
	if err != nil {
		return err
	}
	added := map[string]bool{}
	for _, s := range streams {
		if f.streams[s.name] != nil || added[s.name] {
			return configErrorf(s.name, "stream '%s' is already defined", s.name)
		}
		added[s.name] = true
	}
	for _, s := range streams {
		f.streams[s.name] = s
	}
	return nil
}

// AddStream registers a programmatically built stream definition.
func (f *StreamFactory) AddStream(s *StreamDefinition) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.streams[s.name]; ok {
		return configErrorf(s.name, "stream '%s' is already defined", s.name)
	}
	f.streams[s.name] = s
	return nil
}

// Stream returns the named stream definition, or nil.
func (f *StreamFactory) Stream(name string) *StreamDefinition {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.streams[name]
}

// NewReader opens a bean reader over in for the named stream.
func (f *StreamFactory) NewReader(name string, in io.Reader) (BeanReader, error) {
	s := f.Stream(name)
	if s == nil {
		return nil, configErrorf(name, "no stream mapping named '%s'", name)
	}
	return s.NewReader(in), nil
}

// NewWriter opens a bean writer over out for the named stream.
func (f *StreamFactory) NewWriter(name string, out io.Writer) (BeanWriter, error) {
	s := f.Stream(name)
	if s == nil {
		return nil, configErrorf(name, "no stream mapping named '%s'", name)
	}
	return s.NewWriter(out), nil
}

// OpenReader opens path and returns a bean reader for the named stream.
// Closing the reader closes the file.
func (f *StreamFactory) OpenReader(name, path string) (BeanReader, error) {
	s := f.Stream(name)
	if s == nil {
		return nil, configErrorf(name, "no stream mapping named '%s'", name)
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, &IOError{Op: "opening input file", Cause: err}
	}
	return s.NewReader(file), nil
}
