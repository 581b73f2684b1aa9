package layout

import (
	"cmp"
	"slices"

	"github.com/matzehuels/stripesankey/pkg/sankey"
)

// Orderer determines the vertical sequence of nodes in each column.
type Orderer interface {
	OrderColumns(ds *sankey.Dataset, height float64) []Column
}

// Column is the ordered content of one K column.
type Column struct {
	K     int
	Order []string // node IDs, top to bottom

	// Y holds the assigned position of every node in Order.
	Y map[string]float64

	// Barycenters holds the weighted predecessor average used for sorting.
	// It is nil for the first column, which keeps dataset order.
	Barycenters map[string]float64
}

// Barycentric is the single-sweep barycenter orderer.
type Barycentric struct{}

var _ Orderer = Barycentric{}

// OrderColumns orders every column of ds for a chart of the given height.
// Columns are processed in ascending K; a column with no nodes yields an
// empty Column.
func (Barycentric) OrderColumns(ds *sankey.Dataset, height float64) []Column {
	byK := ds.NodesByK()
	incoming := incomingFlows(ds)
	pos := make(map[string]float64, len(ds.Nodes))
	cols := make([]Column, 0, len(ds.KValues))

	for i, k := range ds.KValues {
		nodes := byK[k]
		col := Column{
			K:     k,
			Order: make([]string, 0, len(nodes)),
			Y:     make(map[string]float64, len(nodes)),
		}

		type candidate struct {
			id string
			bc float64
		}
		cands := make([]candidate, len(nodes))
		for j, n := range nodes {
			cands[j] = candidate{id: n.ID}
		}

		if i > 0 {
			col.Barycenters = make(map[string]float64, len(nodes))
			for j := range cands {
				cands[j].bc = barycenter(incoming[cands[j].id], k, pos, height)
				col.Barycenters[cands[j].id] = cands[j].bc
			}
			slices.SortStableFunc(cands, func(a, b candidate) int {
				return cmp.Compare(a.bc, b.bc)
			})
		}

		for j, c := range cands {
			y := EvenPosition(j, len(cands), height)
			pos[c.id] = y
			col.Order = append(col.Order, c.id)
			col.Y[c.id] = y
		}
		cols = append(cols, col)
	}
	return cols
}

// barycenter computes the sample-weighted mean position of the sources of
// flows into a node of column k. Only flows leaving column k-1 count, and
// only sources that already hold a position.
func barycenter(flows []*sankey.Flow, k int, pos map[string]float64, height float64) float64 {
	var sum, weight float64
	for _, f := range flows {
		if f.SourceK != k-1 {
			continue
		}
		p, ok := pos[f.SourceNode()]
		if !ok {
			continue
		}
		w := float64(f.SampleCount)
		sum += p * w
		weight += w
	}
	if weight > 0 {
		return sum / weight
	}
	return height / 2
}

func incomingFlows(ds *sankey.Dataset) map[string][]*sankey.Flow {
	out := make(map[string][]*sankey.Flow)
	for i := range ds.Flows {
		f := &ds.Flows[i]
		t := f.TargetNode()
		out[t] = append(out[t], f)
	}
	return out
}

// EvenPosition returns the position of index i among n evenly spaced slots
// in a column of the given height.
func EvenPosition(i, n int, height float64) float64 {
	return float64(i+1) * height / float64(max(1, n+1))
}

// Positions flattens column orders into a node ID -> y mapping.
func Positions(cols []Column) map[string]float64 {
	out := make(map[string]float64)
	for _, c := range cols {
		for id, y := range c.Y {
			out[id] = y
		}
	}
	return out
}

// InputOrder returns the columns in dataset order without any sorting. It
// is the baseline the CLI compares the barycenter result against.
func InputOrder(ds *sankey.Dataset, height float64) []Column {
	byK := ds.NodesByK()
	cols := make([]Column, 0, len(ds.KValues))
	for _, k := range ds.KValues {
		nodes := byK[k]
		col := Column{K: k, Order: make([]string, 0, len(nodes)), Y: make(map[string]float64, len(nodes))}
		for j, n := range nodes {
			col.Order = append(col.Order, n.ID)
			col.Y[n.ID] = EvenPosition(j, len(nodes), height)
		}
		cols = append(cols, col)
	}
	return cols
}
