package io

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/matzehuels/stripesankey/pkg/sankey"
)

// Format is a dataset encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ErrEmptyDataset is returned by [Read] when the input holds no nodes.
// The data is still returned so callers may render the placeholder.
var ErrEmptyDataset = errors.New("dataset has no nodes")

// FormatFor returns the format implied by a file name.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatJSON
}

// Read decodes a dataset from r.
//
// Read returns an error if the input is not valid JSON or YAML, or if the
// dataset's containers have the wrong shape. Entries inside them never fail
// the read: see [sankey.RawData.UnmarshalJSON]. An input with no node
// records decodes successfully but is reported with [ErrEmptyDataset].
// Read does not close r.
func Read(r io.Reader, format Format) (*sankey.RawData, error) {
	var raw sankey.RawData
	switch format {
	case FormatYAML:
		if err := yaml.NewDecoder(r).Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	default:
		if err := json.NewDecoder(r).Decode(&raw); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
	}
	if raw.IsEmpty() {
		return &raw, ErrEmptyDataset
	}
	return &raw, nil
}

// Import reads the dataset file at path, choosing the codec by extension.
func Import(path string) (*sankey.RawData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	raw, err := Read(f, FormatFor(path))
	if err != nil {
		return raw, fmt.Errorf("%s: %w", path, err)
	}
	return raw, nil
}

// Write encodes raw to w. JSON output is indented.
func Write(raw *sankey.RawData, w io.Writer, format Format) error {
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(raw); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(raw); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		return nil
	}
}

// Export writes raw to a file at path, choosing the codec by extension.
func Export(raw *sankey.RawData, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return Write(raw, f, FormatFor(path))
}
