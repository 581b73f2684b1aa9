// Package geometry turns node positions into drawable coordinates.
//
// Columns are spread evenly across the chart width. Node bars get a height
// proportional to their sample total, split into a high segment on top and
// a medium segment below. Flows become cubic S-curves between segment
// centres with a stroke width proportional to their sample count, scaled
// against the largest drawn flow.
//
// Only flows that reach [Config.Significance] are drawn and take part in
// width scaling. Flows below the threshold remain in the dataset for the
// layout and the trajectory tracer.
package geometry
