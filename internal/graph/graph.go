// Package graph models a liquid-handling protocol as a directed acyclic graph of
// named components connected by volume-carrying transfers, and flattens it into
// transfer rows tagged with their dependency level.
package graph

import (
	"fmt"
	"math"
	"strings"

	"worklistcore/pkg/domain"
)

// Component is a vertex: a reagent stock, a raw input or a product of mixing.
type Component struct {
	Name      string
	IsReagent bool
	// Well pins the component to a fixed well on whatever plate it lands on.
	Well       string
	Attributes map[string]string
}

// Transfer moves Volume of From into To.
type Transfer struct {
	From       string
	To         string
	Volume     float64
	Attributes map[string]string
}

// Predecessor is a component feeding another one together with the transfer.
type Predecessor struct {
	Source   Component
	Transfer Transfer
}

// Graph is a reaction graph. The zero value is not usable; call New.
type Graph struct {
	order      []string
	components map[string]*Component
	transfers  []Transfer
	in         map[string][]int
	out        map[string][]int
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		components: make(map[string]*Component),
		in:         make(map[string][]int),
		out:        make(map[string][]int),
	}
}

// AddComponent declares c. Declaring an existing name returns the stored
// component unchanged apart from attributes it did not have yet.
func (g *Graph) AddComponent(c Component) Component {
	if existing, ok := g.components[c.Name]; ok {
		for k, v := range c.Attributes {
			if _, set := existing.Attributes[k]; !set {
				if existing.Attributes == nil {
					existing.Attributes = make(map[string]string)
				}
				existing.Attributes[k] = v
			}
		}
		if existing.Well == "" {
			existing.Well = c.Well
		}
		return existing.clone()
	}
	stored := c.clone()
	g.components[c.Name] = &stored
	g.order = append(g.order, c.Name)
	return stored.clone()
}

// AddTransfer records a transfer between two declared components.
func (g *Graph) AddTransfer(from, to string, volume float64, attrs map[string]string) error {
	for _, name := range []string{from, to} {
		if _, ok := g.components[name]; !ok {
			return &domain.GraphIntegrityError{Kind: domain.IntegrityUndeclared, Component: name, Msg: "transfer references undeclared component"}
		}
	}
	if from == to {
		return &domain.GraphIntegrityError{Kind: domain.IntegrityCycle, Component: from, Msg: "transfer into itself"}
	}
	if volume <= 0 || math.IsNaN(volume) || math.IsInf(volume, 0) {
		return &domain.GraphIntegrityError{Kind: domain.IntegrityInvalidVolume, Component: to, Msg: fmt.Sprintf("volume %v from %s must be positive", volume, from)}
	}
	idx := len(g.transfers)
	g.transfers = append(g.transfers, Transfer{From: from, To: to, Volume: volume, Attributes: cloneAttrs(attrs)})
	g.in[to] = append(g.in[to], idx)
	g.out[from] = append(g.out[from], idx)
	return nil
}

// Component looks up a component by name.
func (g *Graph) Component(name string) (Component, bool) {
	c, ok := g.components[name]
	if !ok {
		return Component{}, false
	}
	return c.clone(), true
}

// Components returns every component in declaration order.
func (g *Graph) Components() []Component {
	out := make([]Component, 0, len(g.order))
	for _, name := range g.order {
		out = append(out, g.components[name].clone())
	}
	return out
}

// Transfers returns every transfer in insertion order.
func (g *Graph) Transfers() []Transfer {
	out := make([]Transfer, len(g.transfers))
	for i, t := range g.transfers {
		t.Attributes = cloneAttrs(t.Attributes)
		out[i] = t
	}
	return out
}

// InDegree is the number of transfers feeding name.
func (g *Graph) InDegree(name string) int { return len(g.in[name]) }

// OutDegree is the number of transfers leaving name.
func (g *Graph) OutDegree(name string) int { return len(g.out[name]) }

// Roots returns the final products: components without outgoing transfers.
func (g *Graph) Roots() []Component {
	var roots []Component
	for _, name := range g.order {
		if len(g.out[name]) == 0 {
			roots = append(roots, g.components[name].clone())
		}
	}
	return roots
}

// Predecessors returns the components feeding name in transfer order.
func (g *Graph) Predecessors(name string) []Predecessor {
	edges := g.in[name]
	out := make([]Predecessor, 0, len(edges))
	for _, idx := range edges {
		t := g.transfers[idx]
		t.Attributes = cloneAttrs(t.Attributes)
		out = append(out, Predecessor{Source: g.components[t.From].clone(), Transfer: t})
	}
	return out
}

// Validate checks names, acyclicity and the presence of at least one root.
func (g *Graph) Validate() error {
	if len(g.order) == 0 {
		return &domain.GraphIntegrityError{Kind: domain.IntegrityNoRoots, Msg: "graph has no components"}
	}
	for _, name := range g.order {
		if strings.TrimSpace(name) == "" {
			return &domain.GraphIntegrityError{Kind: domain.IntegrityEmptyComponent, Msg: "component name is empty"}
		}
	}
	indegree := make(map[string]int, len(g.order))
	var queue []string
	for _, name := range g.order {
		indegree[name] = len(g.in[name])
		if indegree[name] == 0 {
			queue = append(queue, name)
		}
	}
	visited := 0
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		visited++
		for _, idx := range g.out[name] {
			to := g.transfers[idx].To
			indegree[to]--
			if indegree[to] == 0 {
				queue = append(queue, to)
			}
		}
	}
	if visited != len(g.order) {
		return &domain.GraphIntegrityError{
			Kind:      domain.IntegrityCycle,
			Component: g.cycleMember(indegree),
			Msg:       fmt.Sprintf("cycle detected, %d of %d components cannot be ordered", len(g.order)-visited, len(g.order)),
		}
	}
	if len(g.Roots()) == 0 {
		return &domain.GraphIntegrityError{Kind: domain.IntegrityNoRoots, Msg: "graph has no final products"}
	}
	return nil
}

// cycleMember walks predecessors among the components Kahn's pass left behind
// until one repeats. Every leftover component has a leftover predecessor, so
// the walk ends on a component that lies on a cycle.
func (g *Graph) cycleMember(indegree map[string]int) string {
	var start string
	for _, name := range g.order {
		if indegree[name] > 0 {
			start = name
			break
		}
	}
	seen := map[string]bool{}
	cur := start
	for !seen[cur] {
		seen[cur] = true
		for _, idx := range g.in[cur] {
			from := g.transfers[idx].From
			if indegree[from] > 0 {
				cur = from
				break
			}
		}
	}
	return cur
}

func (c *Component) clone() Component {
	dup := *c
	dup.Attributes = cloneAttrs(c.Attributes)
	return dup
}

func cloneAttrs(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
