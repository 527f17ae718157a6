package config

import "strings"

const (
	// DefaultTargetChunkBytes is the chunk byte budget (about 10 MB).
	DefaultTargetChunkBytes = 10_000_000
	// DefaultBufferMultiplier sizes the buffer budget from the chunk budget.
	DefaultBufferMultiplier = 50
)

// DefaultPolicy returns the process-wide sizing defaults.
func DefaultPolicy() Policy {
	return Policy{
		TargetChunkBytes: DefaultTargetChunkBytes,
		BufferMultiplier: DefaultBufferMultiplier,
	}
}

// GetDefaultConfig returns a Config with every default applied.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills zero values. Explicit values are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	if cfg.Backend.Kind == "" {
		cfg.Backend.Kind = "hdf5"
	}
	cfg.Backend.Kind = strings.ToLower(cfg.Backend.Kind)
	ApplyPolicyDefaults(&cfg.Policy)
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)
	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stderr"
	}
}

// ApplyPolicyDefaults fills zero budgets of a policy.
func ApplyPolicyDefaults(p *Policy) {
	if p.TargetChunkBytes == 0 {
		p.TargetChunkBytes = DefaultTargetChunkBytes
	}
	if p.BufferMultiplier == 0 {
		p.BufferMultiplier = DefaultBufferMultiplier
	}
	p.DefaultCompressionMethod = strings.ToLower(p.DefaultCompressionMethod)
}
