// Copyright (C) 2023 by Posit Software, PBC
package fsb

// childDefinition is the tagged variant for a group's children: exactly
// one of group or record is set.
type childDefinition struct {
	group  *GroupDefinition
	record *RecordDefinition
}

func (c childDefinition) name() string {
	if c.group != nil {
		return c.group.name
	}
	return c.record.name
}

func (c childDefinition) order() int {
	if c.group != nil {
		return c.group.order
	}
	return c.record.order
}

func (c childDefinition) minOccurs() int {
	if c.group != nil {
		return c.group.minOccurs
	}
	return c.record.minOccurs
}

func (c childDefinition) maxOccurs() int {
	if c.group != nil {
		return c.group.maxOccurs
	}
	return c.record.maxOccurs
}

// GroupDefinition is a branch of the mapping tree: an ordered set of
// child groups and records with occurrence bounds. Children sharing the
// same order value form a cohort whose members may arrive in any order;
// a cohort must be satisfied before any higher-order sibling activates.
type GroupDefinition struct {
	name      string
	order     int
	minOccurs int
	maxOccurs int

	children []childDefinition
}

// NewGroupDefinition returns a group definition with the default
// cardinality of exactly one occurrence.
func NewGroupDefinition(name string) *GroupDefinition {
	return &GroupDefinition{name: name, minOccurs: 1, maxOccurs: 1}
}

func (g *GroupDefinition) Name() string       { return g.name }
func (g *GroupDefinition) Order() int         { return g.order }
func (g *GroupDefinition) MinOccurs() int     { return g.minOccurs }
func (g *GroupDefinition) MaxOccurs() int     { return g.maxOccurs }
func (g *GroupDefinition) SetOrder(n int)     { g.order = n }
func (g *GroupDefinition) SetMinOccurs(n int) { g.minOccurs = n }
func (g *GroupDefinition) SetMaxOccurs(n int) { g.maxOccurs = n }

func (g *GroupDefinition) AddGroup(child *GroupDefinition) {
	g.children = append(g.children, childDefinition{group: child})
}

func (g *GroupDefinition) AddRecord(child *RecordDefinition) {
	g.children = append(g.children, childDefinition{record: child})
}

// Records returns every record definition in the subtree, depth first in
// declaration order.
func (g *GroupDefinition) Records() []*RecordDefinition {
	var records []*RecordDefinition
	for _, c := range g.children {
		if c.record != nil {
			records = append(records, c.record)
		} else {
			records = append(records, c.group.Records()...)
		}
	}
	return records
}

// Record returns the record definition with the given name anywhere in
// the subtree, or nil.
func (g *GroupDefinition) Record(name string) *RecordDefinition {
	for _, r := range g.Records() {
		if r.name == name {
			return r
		}
	}
	return nil
}
