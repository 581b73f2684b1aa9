package layout

import (
	"slices"

	"github.com/matzehuels/stripesankey/pkg/sankey"
)

// Crossings returns the sample-weighted number of flow crossings for the
// given column orders. Only flows between consecutive columns are counted;
// two crossing flows contribute the product of their sample counts.
func Crossings(ds *sankey.Dataset, cols []Column) int {
	total := 0
	for i := 0; i+1 < len(cols); i++ {
		total += LayerCrossings(ds.Flows, cols[i], cols[i+1])
	}
	return total
}

// LayerCrossings counts weighted crossings between two adjacent columns
// using a Fenwick tree.
//
// Two flows (u1,v1) and (u2,v2) cross if and only if
//
//	pos(u1) < pos(u2) AND pos(v1) > pos(v2)
//
// so sorting flows by source position reduces the problem to counting
// weighted inversions in the target positions.
func LayerCrossings(flows []sankey.Flow, upper, lower Column) int {
	if len(upper.Order) == 0 || len(lower.Order) == 0 {
		return 0
	}
	upperPos := PosMap(upper.Order)
	lowerPos := PosMap(lower.Order)

	type edge struct{ upper, lower, weight int }
	edges := make([]edge, 0, len(flows))
	for i := range flows {
		f := &flows[i]
		if f.SourceK != upper.K || f.TargetK != lower.K {
			continue
		}
		u, ok := upperPos[f.SourceNode()]
		if !ok {
			continue
		}
		l, ok := lowerPos[f.TargetNode()]
		if !ok {
			continue
		}
		edges = append(edges, edge{u, l, f.SampleCount})
	}
	if len(edges) < 2 {
		return 0
	}

	slices.SortFunc(edges, func(a, b edge) int {
		if a.upper != b.upper {
			return a.upper - b.upper
		}
		return a.lower - b.lower
	})

	fenwick := make([]int, len(lower.Order)+1)
	crossings, seen := 0, 0
	for _, e := range edges {
		// weight of earlier flows ending at or above e.lower
		atOrAbove := 0
		for q := e.lower + 1; q > 0; q -= q & (-q) {
			atOrAbove += fenwick[q]
		}
		crossings += (seen - atOrAbove) * e.weight

		seen += e.weight
		for idx := e.lower + 1; idx < len(fenwick); idx += idx & (-idx) {
			fenwick[idx] += e.weight
		}
	}
	return crossings
}

// PosMap returns a map from each ID to its index in order.
func PosMap(order []string) map[string]int {
	m := make(map[string]int, len(order))
	for i, id := range order {
		m[id] = i
	}
	return m
}
