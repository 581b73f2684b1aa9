// Package trace follows the samples of a selected flow across columns.
//
// For each sample of the selection, [Assign] scans every flow in the
// dataset, including flows too small to be drawn, and records the segment
// the sample occupies per K. [Trace] turns those assignments into an
// overlay: lines between adjacent columns sized like flows, markers sized
// by how many traced samples share a segment, and a count badge on every
// segment that traced samples pass through.
//
// A sample missing from a column breaks its trajectory. No line is drawn
// across the gap.
package trace
