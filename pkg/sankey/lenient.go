package sankey

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// fields is a decoded JSON object whose members are read leniently: a
// member of the wrong type reads as its zero value instead of failing the
// record.
type fields map[string]json.RawMessage

// objectFields decodes data as a JSON object. ok is false for any other
// value, null included.
func objectFields(data []byte) (f fields, ok bool) {
	if err := json.Unmarshal(data, &f); err != nil || f == nil {
		return nil, false
	}
	return f, true
}

// number reads a JSON number or a string holding one.
func number(raw json.RawMessage) (float64, bool) {
	var v any
	if len(raw) == 0 || json.Unmarshal(raw, &v) != nil {
		return 0, false
	}
	switch v := v.(type) {
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// whole reads a number that has no fractional part.
func whole(raw json.RawMessage) (int, bool) {
	v, ok := number(raw)
	if !ok || v != math.Trunc(v) || math.Abs(v) > math.MaxInt32 {
		return 0, false
	}
	return int(v), true
}

func (f fields) count(key string) int {
	n, _ := whole(f[key])
	return n
}

func (f fields) float(key string) float64 {
	v, _ := number(f[key])
	return v
}

func (f fields) optFloat(key string) *float64 {
	v, ok := number(f[key])
	if !ok {
		return nil
	}
	return &v
}

func (f fields) str(key string) string {
	var s string
	if err := json.Unmarshal(f[key], &s); err != nil {
		return ""
	}
	return s
}

func (f fields) object(key string) (fields, bool) {
	return objectFields(f[key])
}

// list returns the elements of an array member. ok is false when the
// member is present but is neither an array nor null.
func (f fields) list(key string) (items []json.RawMessage, ok bool) {
	raw, present := f[key]
	if !present {
		return nil, true
	}
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, false
	}
	return items, true
}

func (f fields) samples(key string) []SampleID {
	items, _ := f.list(key)
	if items == nil {
		return nil
	}
	out := make([]SampleID, 0, len(items))
	for _, it := range items {
		var id SampleID
		if err := id.UnmarshalJSON(it); err == nil {
			out = append(out, id)
		}
	}
	return out
}

// yamlJSON re-encodes a YAML node as JSON so that YAML input goes through
// the same lenient decoding.
func yamlJSON(n *yaml.Node) (json.RawMessage, bool) {
	var v any
	if err := n.Decode(&v); err != nil {
		return nil, false
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, false
	}
	return data, true
}
