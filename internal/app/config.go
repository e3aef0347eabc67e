package app

import (
	"errors"
	"fmt"
	"time"
)

// Mode selects what the launcher does this invocation.
type Mode int

const (
	// ModeLocal sets up the environment and starts the downstream process.
	ModeLocal Mode = iota
	// ModeFleet keeps a fleet of remote accelerator nodes running.
	ModeFleet
	// ModeCleanup deletes every fleet node and exits.
	ModeCleanup
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	Mode Mode

	// Local launch.
	ConfigPath  string
	Profile     string
	ForwardArgs []string
	DryRun      bool
	Spawn       bool

	// Fleet.
	FleetSize      int
	Prefix         string
	Zone           string
	NodeVersion    int
	Preemptible    bool
	ServiceAccount string
	SetupScript    string
	Stagger        time.Duration
	APIEndpoint    string
	CLIBinary      string

	// Ambient.
	LogFormat       string
	LogLevel        string
	HealthcheckPort int
	StatePath       string
	StatusURL       string
}

// NewConfig validates a Config and returns it.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.Profile == "" {
		return nil, errors.New("profile name must not be empty")
	}

	switch cfg.Mode {
	case ModeLocal:
	case ModeFleet:
		if cfg.FleetSize <= 0 {
			return nil, fmt.Errorf("fleet size must be positive, got %d", cfg.FleetSize)
		}
		fallthrough
	case ModeCleanup:
		if cfg.Prefix == "" {
			return nil, errors.New("fleet prefix must not be empty")
		}
		if cfg.Zone == "" {
			return nil, errors.New("zone must not be empty")
		}
		if cfg.APIEndpoint == "" {
			return nil, errors.New("api-endpoint is required for fleet operations")
		}
	default:
		return nil, fmt.Errorf("unknown mode %d", cfg.Mode)
	}

	return &cfg, nil
}
