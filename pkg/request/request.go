// Package request models the composite resource request a job submits: a
// tree mirroring the resource shape it needs, annotated during search with
// how much of it has been found.
package request

import "github.com/quartzsched/quartz/pkg/qerr"

// Node is one level of a composite request tree. A node asks for
// RequiredQty matching resources, each consuming Size units of the
// matched resource's capacity. Search and selection treat a Size of 0 as
// one unit; a node never claims a resource's whole remaining amount.
type Node struct {
	Type        string
	RequiredQty int
	Size        int64
	Exclusive   bool

	// RequiredProperties/RequiredTags must each be a subset of the
	// matched resource's own properties/tags.
	RequiredProperties []string
	RequiredTags       []string

	// HasWindow is set when Start/Last carve out a temporal window this
	// node must be satisfiable over; otherwise only current availability
	// is consulted.
	HasWindow bool
	Start     int64
	Last      int64

	Children []*Node

	// nfound accumulates matches found for this node during a search pass.
	// It is reset by Reset before every fresh search.
	nfound int
}

// NewNode constructs a leaf or interior request node.
func NewNode(typ string, requiredQty int, size int64) *Node {
	return &Node{Type: typ, RequiredQty: requiredQty, Size: size}
}

// WithWindow attaches a temporal window to the node and returns it for
// chaining.
func (n *Node) WithWindow(start, last int64) *Node {
	n.HasWindow = true
	n.Start = start
	n.Last = last
	return n
}

// WithExclusive marks the node exclusive and returns it for chaining.
func (n *Node) WithExclusive(exclusive bool) *Node {
	n.Exclusive = exclusive
	return n
}

// AddChild appends a child sub-request and returns the parent for chaining.
func (n *Node) AddChild(child *Node) *Node {
	n.Children = append(n.Children, child)
	return n
}

// Duration returns the node's window length, or 1 if it carries no window
// (a point-in-time check).
func (n *Node) Duration() int64 {
	if !n.HasWindow {
		return 1
	}
	return n.Last - n.Start
}

// NFound reports how many matches this node has accumulated during the
// most recent search.
func (n *Node) NFound() int { return n.nfound }

// RecordFound increments the node's match count by delta.
func (n *Node) RecordFound(delta int) { n.nfound += delta }

// Reset zeroes this node's match count and recurses into children, in
// preparation for a fresh search pass.
func (n *Node) Reset() {
	n.nfound = 0
	for _, c := range n.Children {
		c.Reset()
	}
}

// AllFound reports whether this node and every descendant has met its
// required quantity.
func (n *Node) AllFound() bool {
	if n.nfound < n.RequiredQty {
		return false
	}
	for _, c := range n.Children {
		if !c.AllFound() {
			return false
		}
	}
	return true
}

// Validate enforces open-question resolution: Size > 1 combined
// with Exclusive on the same node is rejected as ambiguous rather than
// silently guessing a meaning.
func (n *Node) Validate() error {
	if n.Exclusive && n.Size > 1 {
		return qerr.New(qerr.InvalidArgument, "request.Validate",
			"exclusive combined with size>1 is ambiguous")
	}
	for _, c := range n.Children {
		if err := c.Validate(); err != nil {
			return err
		}
	}
	return nil
}
