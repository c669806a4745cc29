// Package memgraph is an in-memory property graph with MERGE semantics. It backs dry runs and
// lets tests assert on the exact projection a load produces.
package memgraph

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/cubegraph/cubegraph/internal/loader"
)

// Ensure Graph implements loader.Store
var _ loader.Store = (*Graph)(nil)

// NodeKey identifies a node by label and name.
type NodeKey struct {
	Label string
	Name  string
}

// Edge is a typed relationship between two nodes.
type Edge struct {
	From NodeKey
	Type string
	To   NodeKey
}

// Graph stores nodes and edges as sets.
type Graph struct {
	mu    sync.Mutex
	nodes map[NodeKey]struct{}
	edges map[Edge]struct{}
	calls int
	// values numbers the value nodes: each observation's measure target is its own node.
	values map[Edge]NodeKey
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		nodes:  make(map[NodeKey]struct{}),
		edges:  make(map[Edge]struct{}),
		values: make(map[Edge]NodeKey),
	}
}

// MergeDataset upserts the dataset node.
func (g *Graph) MergeDataset(ctx context.Context, name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	g.nodes[NodeKey{loader.LabelDataset, name}] = struct{}{}
	return nil
}

// MergeNodes upserts one node per name.
func (g *Graph) MergeNodes(ctx context.Context, label string, names []string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	for _, n := range names {
		g.nodes[NodeKey{label, n}] = struct{}{}
	}
	return nil
}

// MergeObservations upserts observation nodes linked to an existing dataset node. Like a MATCH
// that finds nothing, a missing dataset makes the call a no-op.
func (g *Graph) MergeObservations(ctx context.Context, dataset string, names []string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	ds := NodeKey{loader.LabelDataset, dataset}
	if _, ok := g.nodes[ds]; !ok {
		return nil
	}
	for _, n := range names {
		obs := NodeKey{loader.LabelObservation, n}
		g.nodes[obs] = struct{}{}
		g.edges[Edge{From: obs, Type: loader.RelMember, To: ds}] = struct{}{}
	}
	return nil
}

// MergeLinks links observations to existing nodes labelled relType.
func (g *Graph) MergeLinks(ctx context.Context, relType string, links []loader.Link) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	for _, l := range links {
		obs := NodeKey{loader.LabelObservation, l.Observation}
		target := NodeKey{relType, l.Target}
		if !g.has(obs) || !g.has(target) {
			continue
		}
		g.edges[Edge{From: obs, Type: relType, To: target}] = struct{}{}
	}
	return nil
}

// MergeMeasures attaches a value node to each observation through a relType relationship.
// The whole (obs)-[:relType]->(:value {name}) pattern is the merge key, so two observations
// sharing a value get separate value nodes, as a Cypher pattern MERGE would create.
func (g *Graph) MergeMeasures(ctx context.Context, relType string, links []loader.Link) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	for _, l := range links {
		obs := NodeKey{loader.LabelObservation, l.Observation}
		if !g.has(obs) {
			continue
		}
		pattern := Edge{From: obs, Type: relType, To: NodeKey{loader.LabelValue, l.Target}}
		if _, ok := g.values[pattern]; ok {
			continue
		}
		node := NodeKey{loader.LabelValue, fmt.Sprintf("%s#%d", l.Target, len(g.values))}
		g.values[pattern] = node
		g.nodes[node] = struct{}{}
		g.edges[Edge{From: obs, Type: relType, To: node}] = struct{}{}
	}
	return nil
}

func (g *Graph) has(k NodeKey) bool {
	_, ok := g.nodes[k]
	return ok
}

// NodeCount returns the number of nodes under label, or all nodes when label is empty.
func (g *Graph) NodeCount(label string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for k := range g.nodes {
		if label == "" || k.Label == label {
			n++
		}
	}
	return n
}

// EdgeCount returns the number of relationships of relType, or all when relType is empty.
func (g *Graph) EdgeCount(relType string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for e := range g.edges {
		if relType == "" || e.Type == relType {
			n++
		}
	}
	return n
}

// HasEdge reports whether from-[relType]->to exists.
func (g *Graph) HasEdge(from NodeKey, relType string, to NodeKey) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.edges[Edge{From: from, Type: relType, To: to}]
	return ok
}

// ValueOf returns the value-node content attached to observation through relType.
func (g *Graph) ValueOf(observation, relType string) (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	obs := NodeKey{loader.LabelObservation, observation}
	for pattern := range g.values {
		if pattern.From == obs && pattern.Type == relType {
			return pattern.To.Name, true
		}
	}
	return "", false
}

// Calls returns the number of store calls received.
func (g *Graph) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

// Summary returns node counts per label and edge counts per type, sorted by name.
func (g *Graph) Summary() (nodes, edges []Count) {
	g.mu.Lock()
	defer g.mu.Unlock()
	nc := make(map[string]int)
	for k := range g.nodes {
		nc[k.Label]++
	}
	ec := make(map[string]int)
	for e := range g.edges {
		ec[e.Type]++
	}
	return sortedCounts(nc), sortedCounts(ec)
}

// Count is a name with a tally.
type Count struct {
	Name string
	N    int
}

func sortedCounts(m map[string]int) []Count {
	out := make([]Count, 0, len(m))
	for k, v := range m {
		out = append(out, Count{Name: k, N: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
