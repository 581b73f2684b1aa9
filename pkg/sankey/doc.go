// Package sankey holds the typed data model of a stripe Sankey diagram and
// the normaliser that builds it from raw topic-model flow data.
//
// # Data Model
//
// A diagram has one column per value of K (the number of topics of a model).
// Each column holds nodes, one per topic, identified as "K<k>_MC<mc>". A node
// is split into two confidence segments, "high" and "medium", and each
// segment is addressed by the node ID plus a level suffix:
//
//	K3_MC1_high
//	K3_MC1_medium
//
// Flows connect a segment of column K to a segment of column K+1 and carry
// the samples that moved between them.
//
// # Normalisation
//
// [Normalize] turns a [RawData] value (decoded from JSON or YAML by the
// [github.com/matzehuels/stripesankey/pkg/io] package) into a [Dataset]:
//
//	raw, err := io.ImportDataset("flows.json")
//	if err != nil {
//	    return err
//	}
//	ds := sankey.Normalize(raw)
//
// Normalisation never fails. Node IDs that do not follow the K/MC pattern are
// dropped, missing counts default to zero and missing sample lists to empty.
// Node order follows the key order of the raw node object, which is the
// order the layout engine uses to break ties.
//
// # Significance
//
// Flows with fewer than [SignificanceThreshold] samples are not drawn and do
// not take part in width normalisation, but they stay in the [Dataset]:
// barycenter weighting and sample tracing scan every flow.
package sankey
