// Package io reads and writes topic-flow datasets.
//
// # Overview
//
// Datasets come from the topic-model pipeline as JSON. This package decodes
// them into [sankey.RawData] and writes them back, either as JSON or as
// YAML for hand-edited fixtures. Node key order is kept in both
// directions because it breaks ties in the layout.
//
// # Format
//
//	{
//	  "nodes": {
//	    "K2_MC0": {"high_count": 8, "medium_count": 4,
//	               "high_samples": ["s1", "s2"],
//	               "model_metrics": {"perplexity": 812.4},
//	               "mallet_diagnostics": {"coherence": -96.1}},
//	    "K3_MC1": {"high_count": 5, "medium_count": 5}
//	  },
//	  "flows": [
//	    {"source_segment": "K2_MC0_high", "target_segment": "K3_MC1_high",
//	     "source_k": 2, "target_k": 3, "sample_count": 12,
//	     "average_probability": 0.81,
//	     "samples": [{"sample": "s1", "source_prob": 0.9, "target_prob": 0.8}]}
//	  ],
//	  "k_range": [2, 3]
//	}
//
// Node keys must contain "K<k>_MC<mc>"; other keys are dropped when the
// dataset is normalised. Sample IDs may be strings or numbers.
//
// # Formats
//
// [FormatFor] picks the codec from a file extension: ".yaml" and ".yml"
// select YAML, anything else JSON. Use [Import] and [Export] for files and
// [Read] and [Write] for streams.
//
// [sankey.RawData]: github.com/matzehuels/stripesankey/pkg/sankey.RawData
package io
