// Copyright (C) 2023 by Posit Software, PBC
package fsb

import (
	"reflect"
	"sort"

	"gopkg.in/yaml.v3"
)

// mappingFile is the YAML document model for a mapping. A mapping holds
// one or more stream layouts.
type mappingFile struct {
	Streams []streamConfig `yaml:"streams"`
}

type streamConfig struct {
	Name             string            `yaml:"name"`
	Format           string            `yaml:"format"`
	Delimiter        string            `yaml:"delimiter"`
	Quote            string            `yaml:"quote"`
	Escape           string            `yaml:"escape"`
	RecordTerminator string            `yaml:"recordTerminator"`
	MinOccurs        *int              `yaml:"minOccurs"`
	MaxOccurs        *int              `yaml:"maxOccurs"`
	Messages         map[string]string `yaml:"messages"`
	Nodes            []nodeConfig      `yaml:"nodes"`
}

// nodeConfig describes one child of a group: either a record (with
// fields) or a nested group (with nodes).
type nodeConfig struct {
	Record string `yaml:"record"`
	Group  string `yaml:"group"`

	Class     string `yaml:"class"`
	Order     int    `yaml:"order"`
	MinOccurs *int   `yaml:"minOccurs"`
	MaxOccurs *int   `yaml:"maxOccurs"`

	Fields []fieldConfig `yaml:"fields"`
	Nodes  []nodeConfig  `yaml:"nodes"`
}

type fieldConfig struct {
	Name       string  `yaml:"name"`
	Position   *int    `yaml:"position"`
	Length     int     `yaml:"length"`
	Padding    string  `yaml:"padding"`
	Justify    string  `yaml:"justify"`
	Trim       *bool   `yaml:"trim"`
	Required   bool    `yaml:"required"`
	RID        bool    `yaml:"rid"`
	Literal    *string `yaml:"literal"`
	Regex      string  `yaml:"regex"`
	Default    *string `yaml:"default"`
	Type       string  `yaml:"type"`
	Handler    string  `yaml:"handler"`
	Format     string  `yaml:"format"`
	Property   string  `yaml:"property"`
	Collection bool    `yaml:"collection"`
	MinLength  int     `yaml:"minLength"`
	MaxLength  *int    `yaml:"maxLength"`
	MinOccurs  *int    `yaml:"minOccurs"`
	MaxOccurs  *int    `yaml:"maxOccurs"`
}

// streamBuilder resolves a stream configuration against the registered
// bean types and type handlers.
type streamBuilder struct {
	stream   string
	format   Format
	beans    map[string]reflect.Type
	handlers *HandlerRegistry
}

// parseMapping unmarshals and builds every stream in a mapping document.
func parseMapping(data []byte, beans map[string]reflect.Type, handlers *HandlerRegistry) ([]*StreamDefinition, error) {
	var doc mappingFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, configErrorf("", "%s", err)
	}
	if len(doc.Streams) == 0 {
		return nil, configErrorf("", "mapping defines no streams")
	}
	var streams []*StreamDefinition
	for _, cfg := range doc.Streams {
		s, err := buildStream(cfg, beans, handlers)
		if err != nil {
			return nil, err
		}
		streams = append(streams, s)
	}
	return streams, nil
}

func buildStream(cfg streamConfig, beans map[string]reflect.Type, handlers *HandlerRegistry) (*StreamDefinition, error) {
	if cfg.Name == "" {
		return nil, configErrorf("", "stream name is required")
	}
	format := Format(cfg.Format)
	switch format {
	case FormatFixedLength, FormatDelimited, FormatCSV:
	default:
		return nil, configErrorf(cfg.Name, "unknown format '%s'", cfg.Format)
	}

	s := NewStreamDefinition(cfg.Name, format)
	b := &streamBuilder{stream: cfg.Name, format: format, beans: beans, handlers: handlers}

	if cfg.Delimiter != "" {
		if len(cfg.Delimiter) != 1 {
			return nil, configErrorf(cfg.Name, "delimiter must be a single character")
		}
		s.SetDelimiter(cfg.Delimiter[0])
	}
	if cfg.Quote != "" {
		if len(cfg.Quote) != 1 {
			return nil, configErrorf(cfg.Name, "quote must be a single character")
		}
		s.SetQuote(cfg.Quote[0])
	}
	if cfg.Escape != "" {
		if len(cfg.Escape) != 1 {
			return nil, configErrorf(cfg.Name, "escape must be a single character")
		}
		s.SetEscape(cfg.Escape[0])
	}
	if cfg.RecordTerminator != "" {
		s.SetRecordTerminator(cfg.RecordTerminator)
	}
	if cfg.MinOccurs != nil {
		s.SetMinOccurs(*cfg.MinOccurs)
	}
	if cfg.MaxOccurs != nil {
		s.SetMaxOccurs(*cfg.MaxOccurs)
	}
	if err := validateOccurs(cfg.Name, cfg.Name, s.root.minOccurs, s.root.maxOccurs); err != nil {
		return nil, err
	}
	if cfg.Messages != nil {
		s.SetMessageBundle(cfg.Messages)
	}

	if err := b.buildChildren(s.root, cfg.Nodes); err != nil {
		return nil, err
	}
	return s, nil
}

// buildChildren resolves a group's child nodes, assigns default order
// values, and enforces the sibling constraints: unique record names,
// weakly increasing order, and identifiers on any record sharing its
// cohort with another child.
func (b *streamBuilder) buildChildren(parent *GroupDefinition, nodes []nodeConfig) error {
	if len(nodes) == 0 {
		return configErrorf(b.stream, "group '%s' has no children", parent.name)
	}

	explicit := 0
	for _, n := range nodes {
		if n.Order > 0 {
			explicit++
		}
	}
	if explicit != 0 && explicit != len(nodes) {
		return configErrorf(b.stream,
			"group '%s': order must be set on all children or none", parent.name)
	}

	names := map[string]bool{}
	lastOrder := 0
	for i, n := range nodes {
		order := n.Order
		if order == 0 {
			order = i + 1
		}
		if order < lastOrder {
			return configErrorf(b.stream,
				"group '%s': child order values must not decrease", parent.name)
		}
		lastOrder = order

		switch {
		case n.Record != "" && n.Group != "":
			return configErrorf(b.stream, "node cannot be both record '%s' and group '%s'", n.Record, n.Group)
		case n.Record != "":
			if names[n.Record] {
				return configErrorf(b.stream, "duplicate record '%s' in group '%s'", n.Record, parent.name)
			}
			names[n.Record] = true
			r, err := b.buildRecord(n, order)
			if err != nil {
				return err
			}
			parent.AddRecord(r)
		case n.Group != "":
			if names[n.Group] {
				return configErrorf(b.stream, "duplicate group '%s' in group '%s'", n.Group, parent.name)
			}
			names[n.Group] = true
			g, err := b.buildGroup(n, order)
			if err != nil {
				return err
			}
			parent.AddGroup(g)
		default:
			return configErrorf(b.stream, "node in group '%s' must name a record or a group", parent.name)
		}
	}

	// A record sharing its cohort with any sibling must carry at least
	// one identifier field, or it could never be told apart.
	cohortSizes := map[int]int{}
	for _, c := range parent.children {
		cohortSizes[c.order()]++
	}
	for _, c := range parent.children {
		if c.record != nil && !c.record.hasIdentifier() && cohortSizes[c.order()] > 1 {
			return configErrorf(b.stream,
				"record '%s' shares its cohort and must declare a record-identifier field", c.record.name)
		}
	}
	return nil
}

func (b *streamBuilder) buildGroup(cfg nodeConfig, order int) (*GroupDefinition, error) {
	g := NewGroupDefinition(cfg.Group)
	g.SetOrder(order)
	if cfg.MinOccurs != nil {
		g.SetMinOccurs(*cfg.MinOccurs)
	}
	if cfg.MaxOccurs != nil {
		g.SetMaxOccurs(*cfg.MaxOccurs)
	}
	if err := validateOccurs(b.stream, cfg.Group, g.minOccurs, g.maxOccurs); err != nil {
		return nil, err
	}
	if len(cfg.Fields) > 0 {
		return nil, configErrorf(b.stream, "group '%s' cannot declare fields", cfg.Group)
	}
	if err := b.buildChildren(g, cfg.Nodes); err != nil {
		return nil, err
	}
	return g, nil
}

func (b *streamBuilder) buildRecord(cfg nodeConfig, order int) (*RecordDefinition, error) {
	r := NewRecordDefinition(cfg.Record)
	r.SetOrder(order)
	if cfg.MinOccurs != nil {
		r.SetMinOccurs(*cfg.MinOccurs)
	}
	if cfg.MaxOccurs != nil {
		r.SetMaxOccurs(*cfg.MaxOccurs)
	}
	if err := validateOccurs(b.stream, cfg.Record, r.minOccurs, r.maxOccurs); err != nil {
		return nil, err
	}
	if len(cfg.Nodes) > 0 {
		return nil, configErrorf(b.stream, "record '%s' cannot declare child nodes", cfg.Record)
	}

	var beanType reflect.Type
	switch cfg.Class {
	case "":
	case "map":
		r.SetMapBean(true)
	default:
		t, ok := b.beans[cfg.Class]
		if !ok {
			return nil, configErrorf(b.stream, "record '%s': no registered bean type '%s'", cfg.Record, cfg.Class)
		}
		beanType = t
		r.SetBeanType(t)
	}

	nextPos := 0
	for _, fc := range cfg.Fields {
		f, err := b.buildField(cfg.Record, beanType, r.mapBean, fc, &nextPos)
		if err != nil {
			return nil, err
		}
		r.AddField(f)
	}
	if len(r.fields) == 0 {
		return nil, configErrorf(b.stream, "record '%s' has no fields", cfg.Record)
	}
	if err := b.validatePositions(r); err != nil {
		return nil, err
	}
	return r, nil
}

func (b *streamBuilder) buildField(record string, beanType reflect.Type, mapBean bool, cfg fieldConfig, nextPos *int) (*FieldDefinition, error) {
	if cfg.Name == "" {
		return nil, configErrorf(b.stream, "record '%s': field name is required", record)
	}

	pos := *nextPos
	if cfg.Position != nil {
		pos = *cfg.Position
	}
	if pos < 0 {
		return nil, configErrorf(b.stream, "field '%s': position must not be negative", cfg.Name)
	}
	f := NewFieldDefinition(cfg.Name, pos)

	if b.format == FormatFixedLength {
		if cfg.Length <= 0 {
			return nil, configErrorf(b.stream, "field '%s': fixed-length fields require a length", cfg.Name)
		}
		f.SetLength(cfg.Length)
	} else if cfg.Length > 0 {
		return nil, configErrorf(b.stream, "field '%s': length only applies to fixed-length streams", cfg.Name)
	}
	if cfg.Padding != "" {
		if len(cfg.Padding) != 1 {
			return nil, configErrorf(b.stream, "field '%s': padding must be a single character", cfg.Name)
		}
		f.SetPadding(cfg.Padding[0])
	}
	switch cfg.Justify {
	case "":
	case JustifyLeft, JustifyRight:
		f.SetJustify(cfg.Justify)
	default:
		return nil, configErrorf(b.stream, "field '%s': justify must be left or right", cfg.Name)
	}

	if cfg.Trim != nil {
		f.SetTrim(*cfg.Trim)
	}
	f.SetRequired(cfg.Required)
	f.SetRecordIdentifier(cfg.RID)
	f.SetMinLength(cfg.MinLength)
	if cfg.MaxLength != nil {
		f.SetMaxLength(*cfg.MaxLength)
	}
	if cfg.Literal != nil {
		f.SetLiteral(*cfg.Literal)
	}
	if cfg.Regex != "" {
		if err := f.SetRegex(cfg.Regex); err != nil {
			return nil, configErrorf(b.stream, "field '%s': invalid regex: %s", cfg.Name, err)
		}
	}

	f.SetCollection(cfg.Collection)
	if cfg.MinOccurs != nil {
		f.SetMinOccurs(*cfg.MinOccurs)
	}
	if cfg.MaxOccurs != nil {
		f.SetMaxOccurs(*cfg.MaxOccurs)
	}
	if !cfg.Collection && (f.minOccurs != 1 || f.maxOccurs != 1) {
		return nil, configErrorf(b.stream, "field '%s': occurrence bounds require a collection field", cfg.Name)
	}
	if err := validateOccurs(b.stream, cfg.Name, f.minOccurs, f.maxOccurs); err != nil {
		return nil, err
	}
	if cfg.Collection && f.maxOccurs == Unbounded && b.format == FormatFixedLength {
		return nil, configErrorf(b.stream, "field '%s': fixed-length collections must be bounded", cfg.Name)
	}

	handler, err := b.handlers.Lookup(cfg.Type, cfg.Handler)
	if err != nil {
		return nil, configErrorf(b.stream, "field '%s': %s", cfg.Name, err)
	}
	if cfg.Format != "" {
		c, ok := handler.(ConfigurableTypeHandler)
		if !ok {
			return nil, configErrorf(b.stream, "field '%s': handler does not accept a format", cfg.Name)
		}
		handler, err = c.WithFormat(cfg.Format)
		if err != nil {
			return nil, configErrorf(b.stream, "field '%s': %s", cfg.Name, err)
		}
	}
	if cfg.Type != "" || cfg.Handler != "" {
		f.SetTypeHandler(handler)
	}

	if cfg.Default != nil {
		value, err := handler.Parse(*cfg.Default)
		if err != nil {
			return nil, configErrorf(b.stream, "field '%s': invalid default: %s", cfg.Name, err)
		}
		f.SetDefault(value)
	}

	if cfg.Property != "" {
		if mapBean {
			f.SetAccessor(&mapAccessor{key: cfg.Property, collection: cfg.Collection})
		} else if beanType != nil {
			a, err := newStructAccessor(beanType, cfg.Property, cfg.Collection)
			if err != nil {
				return nil, configErrorf(b.stream, "field '%s': %s", cfg.Name, err)
			}
			f.SetAccessor(a)
		} else {
			return nil, configErrorf(b.stream,
				"field '%s' binds property '%s' but record '%s' declares no class", cfg.Name, cfg.Property, record)
		}
	}

	*nextPos = pos + fieldSpan(b.format, f)
	return f, nil
}

// fieldSpan is the number of positions a field occupies: token indices
// for delimited formats, bytes for fixed-length.
func fieldSpan(format Format, f *FieldDefinition) int {
	occurs := 1
	if f.collection && f.maxOccurs != Unbounded {
		occurs = f.maxOccurs
	}
	if format == FormatFixedLength {
		return f.length * occurs
	}
	return occurs
}

// validatePositions rejects overlapping field ranges within a record.
func (b *streamBuilder) validatePositions(r *RecordDefinition) error {
	type span struct {
		name     string
		from, to int // [from, to); to < 0 means unbounded
	}
	spans := make([]span, 0, len(r.fields))
	for _, f := range r.fields {
		to := f.position + fieldSpan(b.format, f)
		if f.collection && f.maxOccurs == Unbounded {
			to = -1
		}
		spans = append(spans, span{name: f.name, from: f.position, to: to})
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].from < spans[j].from })
	for i := 1; i < len(spans); i++ {
		prev := spans[i-1]
		if prev.to < 0 || spans[i].from < prev.to {
			return configErrorf(b.stream, "record '%s': fields '%s' and '%s' overlap",
				r.name, prev.name, spans[i].name)
		}
	}
	return nil
}

func validateOccurs(stream, name string, min, max int) error {
	if min < 0 {
		return configErrorf(stream, "'%s': minOccurs must not be negative", name)
	}
	if max != Unbounded && max < min {
		return configErrorf(stream, "'%s': maxOccurs must not be less than minOccurs (%d < %d)", name, max, min)
	}
	return nil
}
