package selection

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/matzehuels/stripesankey/pkg/sankey"
)

// ErrUnknownFlow is returned when a flow reference matches no flow.
var ErrUnknownFlow = errors.New("unknown flow")

// ErrInvalidRef is returned for a malformed flow reference.
var ErrInvalidRef = errors.New("invalid flow reference")

// Snapshot is the persisted selection: a copy of the selected flow, or the
// zero value when nothing is selected. It encodes as "{}" when empty.
type Snapshot struct {
	Source      string              `json:"source"`
	Target      string              `json:"target"`
	SourceK     int                 `json:"sourceK"`
	TargetK     int                 `json:"targetK"`
	Samples     []sankey.SampleFlow `json:"samples"`
	SampleCount int                 `json:"sampleCount"`
}

// FromFlow snapshots a flow.
func FromFlow(f *sankey.Flow) Snapshot {
	return Snapshot{
		Source:      f.Source,
		Target:      f.Target,
		SourceK:     f.SourceK,
		TargetK:     f.TargetK,
		Samples:     slices.Clone(f.Samples),
		SampleCount: f.SampleCount,
	}
}

// IsEmpty reports whether the snapshot selects nothing.
func (s Snapshot) IsEmpty() bool {
	return s.Source == "" && s.Target == ""
}

// Matches reports whether f is the selected flow. Flows are identified by
// source, target, and both K values.
func (s Snapshot) Matches(f *sankey.Flow) bool {
	return !s.IsEmpty() &&
		s.Source == f.Source && s.Target == f.Target &&
		s.SourceK == f.SourceK && s.TargetK == f.TargetK
}

// Same reports whether two snapshots select the same flow.
func (s Snapshot) Same(o Snapshot) bool {
	return s.Source == o.Source && s.Target == o.Target &&
		s.SourceK == o.SourceK && s.TargetK == o.TargetK
}

// SampleIDs returns the distinct sample IDs in first-seen order.
func (s Snapshot) SampleIDs() []sankey.SampleID {
	seen := make(map[sankey.SampleID]bool, len(s.Samples))
	out := make([]sankey.SampleID, 0, len(s.Samples))
	for _, sf := range s.Samples {
		if !seen[sf.Sample] {
			seen[sf.Sample] = true
			out = append(out, sf.Sample)
		}
	}
	return out
}

// String returns "source → target", or "" when empty.
func (s Snapshot) String() string {
	if s.IsEmpty() {
		return ""
	}
	return s.Source + " → " + s.Target
}

type snapshotJSON Snapshot

// MarshalJSON writes "{}" for an empty snapshot.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	if s.IsEmpty() {
		return []byte("{}"), nil
	}
	if s.Samples == nil {
		s.Samples = []sankey.SampleFlow{}
	}
	return json.Marshal(snapshotJSON(s))
}

// UnmarshalJSON accepts "{}" and null as the empty snapshot.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*s = Snapshot{}
		return nil
	}
	var v snapshotJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*s = Snapshot(v)
	return nil
}

// ParseRef splits a "SOURCE->TARGET" reference. The arrow may also be
// written as "→".
func ParseRef(ref string) (source, target string, err error) {
	for _, sep := range []string{"->", "→"} {
		if src, tgt, ok := strings.Cut(ref, sep); ok {
			src, tgt = strings.TrimSpace(src), strings.TrimSpace(tgt)
			if src == "" || tgt == "" {
				break
			}
			return src, tgt, nil
		}
	}
	return "", "", fmt.Errorf("%w: %q (want SOURCE->TARGET)", ErrInvalidRef, ref)
}

// Resolve finds the flow named by ref and snapshots it.
func Resolve(ds *sankey.Dataset, ref string) (Snapshot, error) {
	src, tgt, err := ParseRef(ref)
	if err != nil {
		return Snapshot{}, err
	}
	f, ok := ds.FindFlow(src, tgt)
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: %s -> %s", ErrUnknownFlow, src, tgt)
	}
	return FromFlow(f), nil
}
