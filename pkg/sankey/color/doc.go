// Package color picks node colours.
//
// In default mode each column takes its base colour from a [Schemes]
// palette keyed by K; the high segment is drawn darker than the medium
// segment. In metric mode a node's colour encodes model quality instead:
// low perplexity adds red, high coherence adds blue, so the best topics
// appear purple. Both segments share the metric colour.
package color
