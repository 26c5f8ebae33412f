package iec61850

import (
	"strings"
	"time"
)

// Node is one model node: either a constructed node with children or a basic
// data attribute carrying a typed value. Nodes are immutable views over a
// received report or a read result.
type Node struct {
	name     string
	children []*Node
	value    any
}

// NewNode creates a constructed node.
func NewNode(name string, children ...*Node) *Node {
	return &Node{name: name, children: children}
}

// NewFloat32Node creates a float basic data attribute.
func NewFloat32Node(name string, v float32) *Node { return &Node{name: name, value: v} }

// NewInt32Node creates a 32-bit integer basic data attribute.
func NewInt32Node(name string, v int32) *Node { return &Node{name: name, value: v} }

// NewInt64Node creates a 64-bit integer basic data attribute.
func NewInt64Node(name string, v int64) *Node { return &Node{name: name, value: v} }

// NewInt8Node creates an 8-bit integer basic data attribute.
func NewInt8Node(name string, v int8) *Node { return &Node{name: name, value: v} }

// NewBoolNode creates a boolean basic data attribute.
func NewBoolNode(name string, v bool) *Node { return &Node{name: name, value: v} }

// NewQualityNode creates a quality basic data attribute.
func NewQualityNode(name string, q Quality) *Node { return &Node{name: name, value: q} }

// NewTimestampNode creates a timestamp basic data attribute.
func NewTimestampNode(name string, t time.Time) *Node { return &Node{name: name, value: t} }

// Name returns the node name, e.g. "TotW" or "mag".
func (n *Node) Name() string { return n.name }

// Child returns the direct child with the given name, or nil.
func (n *Node) Child(name string) *Node {
	for _, c := range n.children {
		if c.name == name {
			return c
		}
	}
	return nil
}

// At descends through the named children, returning nil when any level is
// missing.
func (n *Node) At(names ...string) *Node {
	cur := n
	for _, name := range names {
		if cur = cur.Child(name); cur == nil {
			return nil
		}
	}
	return cur
}

// Children returns the direct children in model order.
func (n *Node) Children() []*Node { return n.children }

// Value returns the raw attribute value, nil for constructed nodes.
func (n *Node) Value() any { return n.value }

// ObjectReference is the full path of a model node, e.g.
// "WAGO61850ServerBOILER3/MMXU1.TotW.mag.f".
type ObjectReference string

// Part returns the i-th name of the reference: index 0 is the logical
// device, 1 the logical node, and further indices the data object path.
// It returns "" when the reference has fewer parts.
func (r ObjectReference) Part(i int) string {
	s := string(r)
	var parts []string
	if ld, rest, found := strings.Cut(s, "/"); found {
		parts = append([]string{ld}, strings.Split(rest, ".")...)
	} else {
		parts = strings.Split(s, ".")
	}
	if i < 0 || i >= len(parts) {
		return ""
	}
	return parts[i]
}

// FcModelNode is a functionally constrained data object: a node annotated
// with its functional constraint and full object reference. Data-set members
// are FcModelNodes.
type FcModelNode struct {
	Node
	fc  Fc
	ref ObjectReference
}

// NewFcModelNode creates a functionally constrained node.
func NewFcModelNode(ref ObjectReference, fc Fc, node *Node) *FcModelNode {
	return &FcModelNode{Node: *node, fc: fc, ref: ref}
}

// Fc returns the functional constraint.
func (m *FcModelNode) Fc() Fc { return m.fc }

// Reference returns the full object reference.
func (m *FcModelNode) Reference() ObjectReference { return m.ref }
