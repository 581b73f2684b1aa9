package cache

import (
	"fmt"
)

// Keyer builds cache keys.
type Keyer interface {
	// LayoutKey is the key of a column ordering for a dataset.
	LayoutKey(datasetHash string, opts LayoutKeyOpts) string

	// ArtifactKey is the key of one rendered output of a dataset.
	ArtifactKey(datasetHash string, opts ArtifactKeyOpts) string
}

// LayoutKeyOpts are the inputs of a layout besides the dataset.
type LayoutKeyOpts struct {
	Height float64 `json:"height"`
}

// ArtifactKeyOpts are the inputs of a rendered artifact besides the dataset.
type ArtifactKeyOpts struct {
	Format       string  `json:"format"`
	Width        int     `json:"width"`
	Height       int     `json:"height"`
	MetricMode   bool    `json:"metric_mode"`
	RedWeight    float64 `json:"red_weight"`
	BlueWeight   float64 `json:"blue_weight"`
	MinSat       float64 `json:"min_saturation"`
	Schemes      string  `json:"schemes"`
	Geometry     string  `json:"geometry"`
	SelectedFlow string  `json:"selected_flow"`
	Scale        float64 `json:"scale"`
	Detailed     bool    `json:"detailed"`
	Titles       bool    `json:"titles"`
}

// DefaultKeyer hashes the options into the key.
type DefaultKeyer struct{}

// NewDefaultKeyer returns a [DefaultKeyer].
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// LayoutKey returns "layout:<hash>".
func (DefaultKeyer) LayoutKey(datasetHash string, opts LayoutKeyOpts) string {
	return hashKey("layout", datasetHash, opts)
}

// ArtifactKey returns "artifact:<format>:<hash>".
func (DefaultKeyer) ArtifactKey(datasetHash string, opts ArtifactKeyOpts) string {
	return hashKey(fmt.Sprintf("artifact:%s", opts.Format), datasetHash, opts)
}
