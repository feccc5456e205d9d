package graph

import (
	"worklistcore/pkg/domain"
)

type frame struct {
	name  string
	level int
	next  int
}

// Traverse validates the graph and emits one row per transfer reachable from
// each root. Rows come out in depth-first pre-order: a transfer is emitted
// before the transfers feeding its source. A component shared by several
// consumers is visited once per consumer, at each consumer's depth.
func (g *Graph) Traverse() ([]domain.Row, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	var rows []domain.Row
	for _, root := range g.Roots() {
		stack := []frame{{name: root.Name}}
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			edges := g.in[top.name]
			if top.next >= len(edges) {
				stack = stack[:len(stack)-1]
				continue
			}
			t := g.transfers[edges[top.next]]
			top.next++
			level := top.level
			rows = append(rows, g.row(t, level))
			stack = append(stack, frame{name: t.From, level: level + 1})
		}
	}
	return rows, nil
}

func (g *Graph) row(t Transfer, level int) domain.Row {
	src := g.components[t.From]
	dest := g.components[t.To]
	attrs := make(map[string]string, len(t.Attributes)+len(src.Attributes)+len(dest.Attributes))
	for k, v := range t.Attributes {
		attrs[k] = v
	}
	for k, v := range src.Attributes {
		attrs["src_"+k] = v
	}
	for k, v := range dest.Attributes {
		attrs["dest_"+k] = v
	}
	if len(attrs) == 0 {
		attrs = nil
	}
	return domain.Row{
		SrcName:       src.Name,
		DestName:      dest.Name,
		Volume:        t.Volume,
		Level:         level,
		SrcIsInput:    len(g.in[src.Name]) == 0 && !src.IsReagent,
		SrcIsReagent:  src.IsReagent,
		SrcFixedWell:  src.Well,
		DestFixedWell: dest.Well,
		Attributes:    attrs,
	}
}
