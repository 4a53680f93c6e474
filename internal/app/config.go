package app

import (
	"errors"
	"fmt"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	ConfigPaths []string // .hcl, .yaml or .yml files and directories

	LogFormat       string
	LogLevel        string
	HealthcheckPort int

	// VolumePath, when set, selects the sqlite driver at this path regardless
	// of the volume section.
	VolumePath string
	// TraceURL, when set, overrides the trace section.
	TraceURL string
}

// NewConfig validates cfg and returns a copy of it.
func NewConfig(cfg Config) (*Config, error) {
	if len(cfg.ConfigPaths) == 0 {
		return nil, errors.New("at least one configuration path is required")
	}
	switch cfg.LogFormat {
	case "", "text", "json":
	default:
		return nil, fmt.Errorf("unknown log format %q (want text or json)", cfg.LogFormat)
	}
	return &cfg, nil
}
