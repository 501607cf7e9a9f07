// Package rdl reads and writes a resource tree's topology as YAML,
// giving the tree a textual round-trip format.
package rdl

import (
	"fmt"

	"github.com/quartzsched/quartz/pkg/resource"
	"gopkg.in/yaml.v3"
)

// Node is one entry of the YAML document: a resource plus its children.
// Capacity is the planner vector width this node owns locally;
// Horizon bounds how far into the future it can be reserved.
type Node struct {
	Type       string   `yaml:"type"`
	Name       string   `yaml:"name"`
	Capacity   int64    `yaml:"capacity"`
	Horizon    int64    `yaml:"horizon,omitempty"`
	Hostname   string   `yaml:"hostname,omitempty"`
	Digest     string   `yaml:"digest,omitempty"`
	Rank       *int64   `yaml:"rank,omitempty"`
	Properties []string `yaml:"properties,omitempty"`
	Tags       []string `yaml:"tags,omitempty"`
	Children   []Node   `yaml:"children,omitempty"`
}

// Document is the top-level YAML shape: a single rooted topology.
type Document struct {
	Root Node `yaml:"root"`
}

// Parse decodes a YAML topology document into a resource.Tree. IDs are
// assigned in document order starting at 1. Nodes carrying a rank are
// recorded in the returned RankTable, keyed by (hostname, digest).
func Parse(data []byte, clock resource.Clock) (*resource.Tree, *resource.RankTable, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("rdl: parse: %w", err)
	}

	ranks := resource.NewRankTable()
	var nextID int64 = 1
	root, err := build(doc.Root, &nextID, ranks)
	if err != nil {
		return nil, nil, err
	}
	return resource.NewTree(root, clock), ranks, nil
}

func build(n Node, nextID *int64, ranks *resource.RankTable) (*resource.Resource, error) {
	id := *nextID
	*nextID++

	horizon := n.Horizon
	if horizon <= 0 {
		horizon = 1 << 31
	}
	r, err := resource.New(id, n.Type, n.Name, n.Capacity, horizon)
	if err != nil {
		return nil, fmt.Errorf("rdl: build %s/%s: %w", n.Type, n.Name, err)
	}
	r.Digest = n.Digest
	for _, p := range n.Properties {
		r.AddProperty(p)
	}
	for _, t := range n.Tags {
		r.AddTag(t)
	}
	if n.Rank != nil && n.Hostname != "" {
		ranks.Set(n.Hostname, n.Digest, *n.Rank)
	}

	for _, child := range n.Children {
		c, err := build(child, nextID, ranks)
		if err != nil {
			return nil, err
		}
		r.AddChild(c)
	}
	return r, nil
}

// Serialize walks tree and encodes it back to the YAML shape Parse reads,
// satisfying round-trip: Parse(Serialize(t)) describes the same
// topology t did (IDs are not preserved, since Parse reassigns them).
func Serialize(tree *resource.Tree) ([]byte, error) {
	doc := Document{Root: toNode(tree.Root)}
	out, err := yaml.Marshal(&doc)
	if err != nil {
		return nil, fmt.Errorf("rdl: serialize: %w", err)
	}
	return out, nil
}

func toNode(r *resource.Resource) Node {
	n := Node{
		Type:     r.Type,
		Name:     r.Name,
		Capacity: r.Plan.Total()[0],
		Horizon:  r.Plan.PlanEnd(),
		Digest:   r.Digest,
	}
	for p := range r.Properties {
		n.Properties = append(n.Properties, p)
	}
	for t := range r.Tags {
		n.Tags = append(n.Tags, t)
	}
	for _, c := range r.Children {
		n.Children = append(n.Children, toNode(c))
	}
	return n
}
