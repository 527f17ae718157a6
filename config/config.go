// Package config loads the conversion policy, backend selection and
// logging settings.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the complete nwbchunk configuration.
//
// Sources, in order of precedence:
//  1. Environment variables (NWBCHUNK_*)
//  2. Configuration file (YAML or TOML)
//  3. Default values
type Config struct {
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Backend BackendConfig `mapstructure:"backend" yaml:"backend"`
	Policy  Policy        `mapstructure:"policy" yaml:"policy"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level  string `mapstructure:"level" yaml:"level" validate:"required,oneof=DEBUG INFO WARN ERROR"`
	Format string `mapstructure:"format" yaml:"format" validate:"required,oneof=text json"`
	Output string `mapstructure:"output" yaml:"output" validate:"required,oneof=stdout stderr"`
}

// BackendConfig selects the destination container.
type BackendConfig struct {
	Kind string `mapstructure:"kind" yaml:"kind" validate:"required,oneof=hdf5 zarr"`

	// Target is a blob URL for zarr (file://, mem://) or a directory for
	// hdf5. Empty means in memory.
	Target string `mapstructure:"target" yaml:"target,omitempty"`
}

// Policy is the sizing and compression policy used to build default
// dataset configurations.
type Policy struct {
	TargetChunkBytes int64 `mapstructure:"target_chunk_bytes" yaml:"target_chunk_bytes" validate:"gt=0"`

	// TargetBufferBytes defaults to BufferMultiplier * TargetChunkBytes.
	TargetBufferBytes int64 `mapstructure:"target_buffer_bytes" yaml:"target_buffer_bytes" validate:"gte=0"`
	BufferMultiplier  int   `mapstructure:"buffer_multiplier" yaml:"buffer_multiplier" validate:"gte=1"`

	// Empty selects the backend's default method.
	DefaultCompressionMethod  string         `mapstructure:"default_compression_method" yaml:"default_compression_method,omitempty"`
	DefaultCompressionOptions map[string]any `mapstructure:"default_compression_options" yaml:"default_compression_options,omitempty"`

	// MinDatasetBytes excludes smaller arrays from the inventory, except
	// time-series data and timestamps. Zero disables the floor.
	MinDatasetBytes int64 `mapstructure:"min_dataset_bytes" yaml:"min_dataset_bytes" validate:"gte=0"`
}

// BufferBytes returns the effective buffer byte budget.
func (p Policy) BufferBytes() int64 {
	if p.TargetBufferBytes > 0 {
		return p.TargetBufferBytes
	}
	return int64(p.BufferMultiplier) * p.TargetChunkBytes
}

// Load reads the configuration file at configPath (optional), applies
// environment overrides and defaults, and validates the result.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	if configPath != "" {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use the NWBCHUNK_ prefix and underscores
	// Example: NWBCHUNK_POLICY_TARGET_CHUNK_BYTES=1000000
	v.SetEnvPrefix("NWBCHUNK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only sees keys viper already knows about.
	def := GetDefaultConfig()
	v.SetDefault("logging.level", def.Logging.Level)
	v.SetDefault("logging.format", def.Logging.Format)
	v.SetDefault("logging.output", def.Logging.Output)
	v.SetDefault("backend.kind", def.Backend.Kind)
	v.SetDefault("backend.target", def.Backend.Target)
	v.SetDefault("policy.target_chunk_bytes", def.Policy.TargetChunkBytes)
	v.SetDefault("policy.target_buffer_bytes", def.Policy.TargetBufferBytes)
	v.SetDefault("policy.buffer_multiplier", def.Policy.BufferMultiplier)
	v.SetDefault("policy.default_compression_method", def.Policy.DefaultCompressionMethod)
	v.SetDefault("policy.min_dataset_bytes", def.Policy.MinDatasetBytes)

	if configPath != "" {
		v.SetConfigFile(configPath)
	}
}
