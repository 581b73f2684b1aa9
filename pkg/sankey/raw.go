package sankey

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// RawData is the dataset as produced by the topic-model pipeline. It mirrors
// the wire format field for field; use [Normalize] to obtain a [Dataset].
type RawData struct {
	Nodes  RawNodes  `json:"nodes" yaml:"nodes"`
	Flows  []RawFlow `json:"flows" yaml:"flows"`
	KRange []int     `json:"k_range,omitempty" yaml:"k_range,omitempty"`
}

// IsEmpty reports whether the dataset carries no node records at all.
func (r *RawData) IsEmpty() bool {
	return r == nil || len(r.Nodes) == 0
}

// UnmarshalJSON decodes the dataset. The containers must have the right
// shape: an object with a "nodes" object and "flows" and "k_range" arrays.
// Their entries are decoded leniently: a field of the wrong type reads as
// zero, a count must be a whole number (a numeric string is accepted) and
// non-integral K values are dropped.
func (r *RawData) UnmarshalJSON(data []byte) error {
	if string(bytes.TrimSpace(data)) == "null" {
		return nil
	}
	f, ok := objectFields(data)
	if !ok {
		return fmt.Errorf("dataset: expected object")
	}
	*r = RawData{}
	if raw, ok := f["nodes"]; ok {
		if err := r.Nodes.UnmarshalJSON(raw); err != nil {
			return err
		}
	}
	flows, ok := f.list("flows")
	if !ok {
		return fmt.Errorf("flows: expected array")
	}
	for _, item := range flows {
		var fl RawFlow
		if err := fl.UnmarshalJSON(item); err != nil {
			return err
		}
		r.Flows = append(r.Flows, fl)
	}
	ks, ok := f.list("k_range")
	if !ok {
		return fmt.Errorf("k_range: expected array")
	}
	for _, item := range ks {
		if k, ok := whole(item); ok {
			r.KRange = append(r.KRange, k)
		}
	}
	return nil
}

// UnmarshalYAML decodes the dataset with the rules of
// [RawData.UnmarshalJSON].
func (r *RawData) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode && value.Tag == "!!null" {
		*r = RawData{}
		return nil
	}
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("dataset: expected mapping at line %d", value.Line)
	}
	*r = RawData{}
	rest := make(fields)
	for i := 0; i+1 < len(value.Content); i += 2 {
		key, val := value.Content[i].Value, value.Content[i+1]
		switch key {
		case "nodes":
			if err := r.Nodes.UnmarshalYAML(val); err != nil {
				return err
			}
		case "flows", "k_range":
			data, ok := yamlJSON(val)
			if !ok {
				return fmt.Errorf("%s: unsupported value at line %d", key, val.Line)
			}
			rest[key] = data
		}
	}
	data, err := json.Marshal(rest)
	if err != nil {
		return err
	}
	var tail RawData
	if err := tail.UnmarshalJSON(data); err != nil {
		return err
	}
	r.Flows, r.KRange = tail.Flows, tail.KRange
	return nil
}

// RawNodeEntry is one keyed node record.
type RawNodeEntry struct {
	ID     string
	Record RawNode
}

// RawNodes is the node object of the raw dataset. It is an ordered list
// because key order breaks ties in the layout, so it is kept through
// decoding and encoding.
type RawNodes []RawNodeEntry

// Get returns the record stored under id.
func (n RawNodes) Get(id string) (RawNode, bool) {
	for _, e := range n {
		if e.ID == id {
			return e.Record, true
		}
	}
	return RawNode{}, false
}

// set replaces an existing key in place or appends a new one, matching JSON
// last-key-wins semantics without changing the key's position.
func (n *RawNodes) set(id string, rec RawNode) {
	for i := range *n {
		if (*n)[i].ID == id {
			(*n)[i].Record = rec
			return
		}
	}
	*n = append(*n, RawNodeEntry{ID: id, Record: rec})
}

// UnmarshalJSON decodes a JSON object while keeping key order. Keys that
// are not node IDs keep their position with an empty record and their value
// is never inspected; [Normalize] drops them. Other records are decoded
// leniently.
func (n *RawNodes) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*n = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("nodes: expected object, got %v", tok)
	}

	out := RawNodes{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		id, _ := tok.(string)
		var val json.RawMessage
		if err := dec.Decode(&val); err != nil {
			return fmt.Errorf("node %s: %w", id, err)
		}
		var rec RawNode
		if _, _, ok := ParseNodeID(id); ok {
			if err := rec.UnmarshalJSON(val); err != nil {
				return fmt.Errorf("node %s: %w", id, err)
			}
		}
		out.set(id, rec)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*n = out
	return nil
}

// MarshalJSON encodes the nodes as a JSON object in their stored order.
func (n RawNodes) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range n {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.ID)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(e.Record)
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", e.ID, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalYAML decodes a YAML mapping while keeping key order, with the
// same rules as [RawNodes.UnmarshalJSON].
func (n *RawNodes) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode && value.Tag == "!!null" {
		*n = nil
		return nil
	}
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("nodes: expected mapping at line %d", value.Line)
	}
	out := RawNodes{}
	for i := 0; i+1 < len(value.Content); i += 2 {
		id := value.Content[i].Value
		var rec RawNode
		if _, _, valid := ParseNodeID(id); !valid {
			out.set(id, rec)
			continue
		}
		if data, ok := yamlJSON(value.Content[i+1]); ok {
			if err := rec.UnmarshalJSON(data); err != nil {
				return fmt.Errorf("node %s: %w", id, err)
			}
		}
		out.set(id, rec)
	}
	*n = out
	return nil
}

// MarshalYAML encodes the nodes as a YAML mapping in their stored order.
func (n RawNodes) MarshalYAML() (any, error) {
	m := &yaml.Node{Kind: yaml.MappingNode}
	for _, e := range n {
		var val yaml.Node
		if err := val.Encode(e.Record); err != nil {
			return nil, fmt.Errorf("node %s: %w", e.ID, err)
		}
		m.Content = append(m.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: e.ID}, &val)
	}
	return m, nil
}

// RawNode is a node record as found in the raw dataset.
type RawNode struct {
	HighCount         int                `json:"high_count,omitempty" yaml:"high_count,omitempty"`
	MediumCount       int                `json:"medium_count,omitempty" yaml:"medium_count,omitempty"`
	TotalProbability  float64            `json:"total_probability,omitempty" yaml:"total_probability,omitempty"`
	HighSamples       []SampleID         `json:"high_samples,omitempty" yaml:"high_samples,omitempty"`
	MediumSamples     []SampleID         `json:"medium_samples,omitempty" yaml:"medium_samples,omitempty"`
	ModelMetrics      *ModelMetrics      `json:"model_metrics,omitempty" yaml:"model_metrics,omitempty"`
	MalletDiagnostics *MalletDiagnostics `json:"mallet_diagnostics,omitempty" yaml:"mallet_diagnostics,omitempty"`
}

// UnmarshalJSON decodes a node record leniently. A value that is not an
// object yields an empty record.
func (n *RawNode) UnmarshalJSON(data []byte) error {
	*n = RawNode{}
	f, ok := objectFields(data)
	if !ok {
		return nil
	}
	n.HighCount = f.count("high_count")
	n.MediumCount = f.count("medium_count")
	n.TotalProbability = f.float("total_probability")
	n.HighSamples = f.samples("high_samples")
	n.MediumSamples = f.samples("medium_samples")
	if m, ok := f.object("model_metrics"); ok {
		n.ModelMetrics = &ModelMetrics{Perplexity: m.optFloat("perplexity")}
	}
	if d, ok := f.object("mallet_diagnostics"); ok {
		n.MalletDiagnostics = &MalletDiagnostics{Coherence: d.optFloat("coherence")}
	}
	return nil
}

// ModelMetrics holds model-level quality metrics attached to a node.
type ModelMetrics struct {
	Perplexity *float64 `json:"perplexity,omitempty" yaml:"perplexity,omitempty"`
}

// MalletDiagnostics holds MALLET topic diagnostics attached to a node.
type MalletDiagnostics struct {
	Coherence *float64 `json:"coherence,omitempty" yaml:"coherence,omitempty"`
}

// RawFlow is a flow record as found in the raw dataset.
type RawFlow struct {
	SourceSegment      string       `json:"source_segment" yaml:"source_segment"`
	TargetSegment      string       `json:"target_segment" yaml:"target_segment"`
	SourceK            int          `json:"source_k" yaml:"source_k"`
	TargetK            int          `json:"target_k" yaml:"target_k"`
	SampleCount        int          `json:"sample_count,omitempty" yaml:"sample_count,omitempty"`
	AverageProbability float64      `json:"average_probability,omitempty" yaml:"average_probability,omitempty"`
	Samples            []SampleFlow `json:"samples,omitempty" yaml:"samples,omitempty"`
}

// UnmarshalJSON decodes a flow record leniently. Sample entries that are
// not objects are skipped.
func (fl *RawFlow) UnmarshalJSON(data []byte) error {
	*fl = RawFlow{}
	f, ok := objectFields(data)
	if !ok {
		return nil
	}
	fl.SourceSegment = f.str("source_segment")
	fl.TargetSegment = f.str("target_segment")
	fl.SourceK = f.count("source_k")
	fl.TargetK = f.count("target_k")
	fl.SampleCount = f.count("sample_count")
	fl.AverageProbability = f.float("average_probability")
	items, _ := f.list("samples")
	for _, item := range items {
		if _, ok := objectFields(item); !ok {
			continue
		}
		var sf SampleFlow
		if err := sf.UnmarshalJSON(item); err != nil {
			return err
		}
		fl.Samples = append(fl.Samples, sf)
	}
	return nil
}

// SampleFlow records one sample moving along a flow together with its
// topic probability on either side.
type SampleFlow struct {
	Sample     SampleID `json:"sample" yaml:"sample"`
	SourceProb float64  `json:"source_prob,omitempty" yaml:"source_prob,omitempty"`
	TargetProb float64  `json:"target_prob,omitempty" yaml:"target_prob,omitempty"`
}

// UnmarshalJSON decodes a sample entry leniently.
func (sf *SampleFlow) UnmarshalJSON(data []byte) error {
	*sf = SampleFlow{}
	f, ok := objectFields(data)
	if !ok {
		return nil
	}
	if raw, ok := f["sample"]; ok {
		if err := sf.Sample.UnmarshalJSON(raw); err != nil {
			return err
		}
	}
	sf.SourceProb = f.float("source_prob")
	sf.TargetProb = f.float("target_prob")
	return nil
}

// SampleID identifies a sample. Numeric identifiers in the raw data are
// accepted and kept as their decimal text.
type SampleID string

// UnmarshalJSON accepts strings and numbers. Anything else is kept as its
// raw JSON text so that a malformed ID never fails the whole dataset.
func (s *SampleID) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*s = SampleID(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err == nil {
		*s = SampleID(num.String())
		return nil
	}
	*s = SampleID(strings.TrimSpace(string(data)))
	return nil
}
