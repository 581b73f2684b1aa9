// Package layout assigns vertical positions to the nodes of every K column.
//
// # Barycenter Ordering
//
// The [Barycentric] orderer implements the classic Sugiyama barycenter
// heuristic as a single left-to-right sweep:
//
//  1. The first column keeps dataset order.
//  2. Every later column K computes, for each node, the sample-weighted
//     average position of its sources in column K-1 (its barycenter).
//     Every flow counts, including flows below the significance threshold.
//     Nodes without weighted predecessors sit at the vertical centre.
//  3. The column is stable-sorted by barycenter.
//  4. Nodes are re-spaced evenly in sorted order: the node at index i of n
//     gets (i+1)*H/(n+1). The barycenter only decides order.
//
// Positions already assigned are never revisited: there is no backward
// sweep and no iteration to a fixpoint.
//
// # Crossings
//
// [Crossings] counts sample-weighted flow crossings between adjacent
// columns with a Fenwick tree. It is a diagnostic, reported by the CLI and
// the pipeline to show how much the ordering helped; it does not feed back
// into the layout.
//
// # Usage
//
//	cols := layout.Barycentric{}.OrderColumns(ds, chartHeight)
//	pos := layout.Positions(cols)
//	y := pos["K3_MC1"]
package layout
