// Package config loads and validates the application configuration file.
// Configuration is YAML with one section per subsystem; every section is
// optional and falls back to its subsystem defaults.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/songlinshu/vector/errors"
	"github.com/songlinshu/vector/gateway/graphql"
	"github.com/songlinshu/vector/natsclient"
)

// PipelineConfig describes the pipeline instance the API exposes.
type PipelineConfig struct {
	// Name identifies the pipeline in topology responses (default:
	// "pipeline")
	Name string `json:"name" yaml:"name"`
	// Version is reported through the meta query.
	Version string `json:"version,omitempty" yaml:"version"`
}

// NATSConfig wraps bus connection settings with an enable switch.
type NATSConfig struct {
	// Enabled turns on the bus connection and the busMessages
	// subscription (default: false)
	Enabled bool              `json:"enabled" yaml:"enabled"`
	Client  natsclient.Config `json:"client" yaml:"client"`
}

// Config is the complete application configuration.
type Config struct {
	Version  string         `json:"version,omitempty" yaml:"version"`
	Pipeline PipelineConfig `json:"pipeline" yaml:"pipeline"`
	Gateway  graphql.Config `json:"gateway" yaml:"gateway"`
	NATS     NATSConfig     `json:"nats" yaml:"nats"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Pipeline: PipelineConfig{Name: "pipeline"},
		Gateway:  graphql.DefaultConfig(),
	}
}

// Load reads and parses a configuration file. Sections the file omits keep
// their zero values; Validate fills defaults afterwards.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Config", "Load",
			fmt.Sprintf("read %s", path))
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.WrapInvalid(err, "Config", "Load",
			fmt.Sprintf("parse %s", path))
	}
	return cfg, nil
}

// Validate checks all sections and fills their defaults.
func (c *Config) Validate() error {
	if c.Pipeline.Name == "" {
		c.Pipeline.Name = "pipeline"
	}
	if err := c.Gateway.Validate(); err != nil {
		return errors.WrapInvalid(err, "Config", "Validate", "gateway section")
	}
	if c.NATS.Enabled {
		if err := c.NATS.Client.Validate(); err != nil {
			return errors.WrapInvalid(err, "Config", "Validate", "nats section")
		}
	}
	return nil
}
