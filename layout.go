// Copyright (C) 2023 by Posit Software, PBC
package fsb

import "fmt"

// layoutNode is the runtime shadow of a definition node. The definition
// tree is shared and immutable; each reader owns a private node tree
// carrying the per-stream occurrence counters.
//
// A node is either a group node or a record node; exactly one of group
// and record is set.
type layoutNode struct {
	group  *GroupDefinition
	record *RecordDefinition

	parent   *layoutNode
	children []*layoutNode // group nodes only, declaration order

	// current counts activations: matched records for a record node,
	// started iterations for a group node.
	current int

	// cohort is the order value of the group's active cohort. Children
	// with a lower order are frozen.
	cohort int

	// last is the child currently in progress within the active cohort.
	last *layoutNode
}

// sequenceError reports a grammar violation discovered during matching:
// the stream moved on while a node with unmet minimum occurrences was
// still open. The reader classifies it as unexpected or unidentified.
type sequenceError struct {
	node *layoutNode
}

func (e *sequenceError) Error() string {
	return fmt.Sprintf("record out of sequence, expected '%s'", e.node.name())
}

// newLayout builds the runtime node tree for a definition tree.
func newLayout(root *GroupDefinition) *layoutNode {
	n := &layoutNode{group: root}
	n.cohort = n.minOrder()
	for _, c := range root.children {
		var child *layoutNode
		if c.record != nil {
			child = &layoutNode{record: c.record}
		} else {
			child = newLayout(c.group)
		}
		child.parent = n
		n.children = append(n.children, child)
	}
	return n
}

func (n *layoutNode) name() string {
	if n.group != nil {
		return n.group.name
	}
	return n.record.name
}

func (n *layoutNode) order() int {
	if n.group != nil {
		return n.group.order
	}
	return n.record.order
}

func (n *layoutNode) minOccurs() int {
	if n.group != nil {
		return n.group.minOccurs
	}
	return n.record.minOccurs
}

func (n *layoutNode) maxOccurs() int {
	if n.group != nil {
		return n.group.maxOccurs
	}
	return n.record.maxOccurs
}

func (n *layoutNode) maxReached() bool {
	max := n.maxOccurs()
	return max != Unbounded && n.current >= max
}

// minOrder returns the smallest order value among the children.
func (n *layoutNode) minOrder() int {
	order := 0
	for _, c := range n.children {
		if order == 0 || c.order() < order {
			order = c.order()
		}
	}
	return order
}

// nextOrder returns the smallest order value greater than after, or 0.
func (n *layoutNode) nextOrder(after int) int {
	next := 0
	for _, c := range n.children {
		if c.order() > after && (next == 0 || c.order() < next) {
			next = c.order()
		}
	}
	return next
}

// iterationActive reports whether the group has an iteration in
// progress: some child has been entered since the last reset.
func (n *layoutNode) iterationActive() bool {
	if n.last != nil {
		return true
	}
	for _, c := range n.children {
		if c.current > 0 {
			return true
		}
	}
	return false
}

// resetChildren rewinds every child counter to begin a new iteration of
// the group. The group's own counter is untouched.
func (n *layoutNode) resetChildren() {
	n.last = nil
	n.cohort = n.minOrder()
	for _, c := range n.children {
		c.current = 0
		if c.group != nil {
			c.resetChildren()
		}
	}
}

// anonymous reports whether the node is a record with no identifier
// fields. Anonymous records are matched only after every identified
// sibling in the cohort has declined the record.
func (n *layoutNode) anonymous() bool {
	return n.record != nil && !n.record.hasIdentifier()
}

// matchNext offers the record to the subtree. It returns the record node
// that accepted it, nil when nothing in the subtree matches, or a
// *sequenceError when accepting the record would abandon a node with
// unmet minimum occurrences. Counters are only advanced on a match.
func (n *layoutNode) matchNext(rec *Record) (*layoutNode, error) {
	if n.record != nil {
		if !n.maxReached() && n.record.matchesRecord(rec) {
			n.current++
			return n, nil
		}
		return nil, nil
	}

	wasActive := n.iterationActive()
	if !wasActive && n.maxReached() {
		return nil, nil
	}

	// The child in progress gets the first chance to continue.
	if n.last != nil {
		matched, err := n.last.matchNext(rec)
		if err != nil {
			return nil, err
		}
		if matched != nil {
			return matched, nil
		}
		// The child cannot take this record. Moving on is only legal if
		// the child's subtree is fully satisfied.
		if u := n.last.unsatisfied(); u != nil {
			return nil, &sequenceError{node: u}
		}
		n.last = nil
	}

	// Scan the active cohort, then advance through later cohorts while
	// every member of the active one has met its minimum. The advance is
	// committed only when a match is found, so a record that matches
	// nowhere leaves the cohort position unchanged.
	matched, err := n.scan(rec, n.cohort)
	if err != nil {
		return nil, err
	}
	if matched != nil {
		if !wasActive {
			n.current++
		}
		return matched, nil
	}

	// Nothing in the current iteration matches. If the iteration is
	// complete and the group may repeat, a fresh iteration gets one
	// chance. The children are only reset once a fresh pass is known to
	// match, so a dead record cannot destroy the iteration state.
	if wasActive && !n.maxReached() && n.iterationSatisfied() && n.freshMatches(rec) {
		n.resetChildren()
		matched, err = n.scan(rec, n.cohort)
		if err != nil {
			return nil, err
		}
		if matched == nil {
			// freshMatches and scan agree by construction.
			panic("fresh iteration did not match")
		}
		n.current++
		return matched, nil
	}

	return nil, nil
}

// scan offers the record to cohort members starting at the given order,
// identified candidates before anonymous ones, advancing to later
// cohorts while the active cohort is satisfied. On a match the cohort
// position and in-progress child are committed.
func (n *layoutNode) scan(rec *Record, order int) (*layoutNode, error) {
	for order != 0 {
		for _, anon := range []bool{false, true} {
			for _, c := range n.children {
				if c.order() != order || c.anonymous() != anon {
					continue
				}
				matched, err := c.matchNext(rec)
				if err != nil {
					return nil, err
				}
				if matched != nil {
					n.cohort = order
					n.last = c
					return matched, nil
				}
			}
		}
		if !n.cohortSatisfied(order) {
			return nil, nil
		}
		order = n.nextOrder(order)
	}
	return nil, nil
}

// cohortSatisfied reports whether every child at the given order has met
// its minimum occurrences.
func (n *layoutNode) cohortSatisfied(order int) bool {
	for _, c := range n.children {
		if c.order() == order && c.current < c.minOccurs() {
			return false
		}
	}
	return true
}

// iterationSatisfied reports whether every child of the group has met
// its minimum, so the current iteration could close.
func (n *layoutNode) iterationSatisfied() bool {
	for _, c := range n.children {
		if u := c.unsatisfied(); u != nil {
			return false
		}
	}
	return true
}

// freshMatches reports whether the record would match a brand new
// iteration of the group, without mutating any state. Cohorts whose
// members are all optional may be skipped.
func (n *layoutNode) freshMatches(rec *Record) bool {
	order := n.minOrder()
	for order != 0 {
		for _, anon := range []bool{false, true} {
			for _, c := range n.children {
				if c.order() != order || c.anonymous() != anon {
					continue
				}
				if c.record != nil {
					if c.record.matchesRecord(rec) {
						return true
					}
				} else if c.freshMatches(rec) {
					return true
				}
			}
		}
		for _, c := range n.children {
			if c.order() == order && c.minOccurs() > 0 {
				return false
			}
		}
		order = n.nextOrder(order)
	}
	return false
}

// matchAny searches the entire subtree for a record definition matching
// the record, ignoring order and cardinality. Used to distinguish an
// unexpected record from an unidentified one.
func (n *layoutNode) matchAny(rec *Record) *layoutNode {
	if n.record != nil {
		if n.record.matchesRecord(rec) {
			return n
		}
		return nil
	}
	for _, c := range n.children {
		if m := c.matchAny(rec); m != nil {
			return m
		}
	}
	return nil
}

// unsatisfied returns the first node in the subtree whose minimum
// occurrences are unmet, or nil when the subtree may close. For a group
// that never started and requires an occurrence, the first required
// descendant record is reported so the error names a concrete record.
func (n *layoutNode) unsatisfied() *layoutNode {
	if n.record != nil {
		if n.current < n.minOccurs() {
			return n
		}
		return nil
	}
	if n.iterationActive() {
		for _, c := range n.children {
			if u := c.unsatisfied(); u != nil {
				return u
			}
		}
	}
	if n.current < n.minOccurs() {
		if r := n.firstRequired(); r != nil {
			return r
		}
		return n
	}
	return nil
}

// firstRequired returns the first descendant record that a fresh
// iteration of the group could not skip, or nil if every child is
// optional.
func (n *layoutNode) firstRequired() *layoutNode {
	order := n.minOrder()
	for order != 0 {
		for _, c := range n.children {
			if c.order() != order || c.minOccurs() == 0 {
				continue
			}
			if c.record != nil {
				return c
			}
			if r := c.firstRequired(); r != nil {
				return r
			}
			return c
		}
		order = n.nextOrder(order)
	}
	return nil
}

// close is invoked at end of stream. It returns the first node whose
// minimum occurrences are unmet, or nil when the layout closed cleanly.
func (n *layoutNode) close() *layoutNode {
	return n.unsatisfied()
}
