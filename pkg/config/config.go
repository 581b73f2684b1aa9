// Package config loads StripeSankey settings from TOML or YAML files.
//
// A config file sets diagram defaults (canvas size, mode, metric weights,
// colour schemes, sizing) and the backends of the CLI and the HTTP host:
//
//	width = 1400
//	metric_mode = true
//
//	[metric]
//	red_weight = 1.0
//	blue_weight = 0.6
//
//	[color_schemes]
//	2 = "#1f77b4"
//	11 = "#17becf"
//
//	[cache]
//	backend = "redis"
//	redis_addr = "localhost:6379"
//	ttl = "24h"
//
//	[server]
//	addr = ":8080"
//	store = "mongo"
//	mongo_uri = "mongodb://localhost:27017"
//
// The codec is chosen by extension: ".toml" for TOML, ".yaml" or ".yml"
// for YAML. Fields left out keep their defaults. Colour schemes from the
// file are merged over the built-in palette.
package config

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/matzehuels/stripesankey/pkg/errors"
	"github.com/matzehuels/stripesankey/pkg/sankey/color"
	"github.com/matzehuels/stripesankey/pkg/sankey/geometry"
	"github.com/matzehuels/stripesankey/pkg/widget"
)

// Config holds all settings.
type Config struct {
	Width      int  `toml:"width" yaml:"width" validate:"gte=0,lte=20000"`
	Height     int  `toml:"height" yaml:"height" validate:"gte=0,lte=20000"`
	MetricMode bool `toml:"metric_mode" yaml:"metric_mode"`

	Metric       color.MetricConfig `toml:"metric" yaml:"metric"`
	ColorSchemes map[string]string  `toml:"color_schemes" yaml:"color_schemes" validate:"dive,keys,numeric,endkeys,required"`
	Geometry     geometry.Config    `toml:"geometry" yaml:"geometry"`

	Cache  Cache  `toml:"cache" yaml:"cache"`
	Server Server `toml:"server" yaml:"server"`
}

// Cache configures the artifact cache.
type Cache struct {
	Backend   string        `toml:"backend" yaml:"backend" validate:"oneof=file redis none"`
	Dir       string        `toml:"dir" yaml:"dir"`
	RedisAddr string        `toml:"redis_addr" yaml:"redis_addr" validate:"required_if=Backend redis"`
	TTL       time.Duration `toml:"ttl" yaml:"ttl" validate:"gte=0"`
}

// Server configures the HTTP host.
type Server struct {
	Addr          string        `toml:"addr" yaml:"addr" validate:"required"`
	Store         string        `toml:"store" yaml:"store" validate:"oneof=memory file redis mongo"`
	Dir           string        `toml:"dir" yaml:"dir"`
	RedisAddr     string        `toml:"redis_addr" yaml:"redis_addr" validate:"required_if=Store redis"`
	MongoURI      string        `toml:"mongo_uri" yaml:"mongo_uri" validate:"required_if=Store mongo"`
	MongoDatabase string        `toml:"mongo_database" yaml:"mongo_database"`
	SessionTTL    time.Duration `toml:"session_ttl" yaml:"session_ttl" validate:"gte=0"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Width:    widget.DefaultWidth,
		Height:   widget.DefaultHeight,
		Metric:   color.DefaultMetricConfig(),
		Geometry: geometry.DefaultConfig(),
		Cache: Cache{
			Backend: "file",
			TTL:     24 * time.Hour,
		},
		Server: Server{
			Addr:          ":8080",
			Store:         "memory",
			MongoDatabase: "stripesankey",
			SessionTTL:    24 * time.Hour,
		},
	}
}

// Load reads the file at path over the defaults and validates the result.
// An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, errors.Wrap(errors.ErrCodeFileNotFound, err, "config %s", path)
		}
		return cfg, errors.Wrap(errors.ErrCodeInvalidConfig, err, "read config %s", path)
	}
	if err := Decode(data, filepath.Ext(path), &cfg); err != nil {
		return cfg, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse config %s", path)
	}
	return cfg, cfg.Validate()
}

// Decode parses data into cfg. ext selects the codec.
func Decode(data []byte, ext string, cfg *Config) error {
	switch strings.ToLower(ext) {
	case ".toml":
		md, err := toml.NewDecoder(bytes.NewReader(data)).Decode(cfg)
		if err != nil {
			return err
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return fmt.Errorf("unknown keys: %v", undecoded)
		}
		return nil
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !stderrors.Is(err, io.EOF) {
			return err
		}
		return nil
	}
	return errors.New(errors.ErrCodeInvalidFormat, "unsupported config format %q (want .toml, .yaml or .yml)", ext)
}

// Validate checks every field against its constraints.
func (c Config) Validate() error {
	return errors.ValidateStruct(errors.ErrCodeInvalidConfig, c)
}

// Schemes returns the built-in palette with the configured entries applied.
// Validate guarantees the keys are numeric.
func (c Config) Schemes() color.Schemes {
	s := color.DefaultSchemes()
	for k, v := range c.ColorSchemes {
		if n, err := strconv.Atoi(k); err == nil {
			s[n] = v
		}
	}
	return s
}

// Props returns widget props seeded from the config, without data.
func (c Config) Props() widget.Props {
	return widget.Props{
		Width:        c.Width,
		Height:       c.Height,
		MetricMode:   c.MetricMode,
		MetricConfig: c.Metric,
		ColorSchemes: c.Schemes(),
		Geometry:     c.Geometry,
	}
}

// Write encodes cfg as TOML, for `config init`-style scaffolding.
func Write(cfg Config, path string) error {
	var buf bytes.Buffer
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return err
		}
		if err := enc.Close(); err != nil {
			return err
		}
	default:
		if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
			return err
		}
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}
