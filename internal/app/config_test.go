package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validFleetConfig() Config {
	return Config{
		Mode:        ModeFleet,
		Profile:     "default",
		FleetSize:   2,
		Prefix:      "trainer",
		Zone:        "europe-west4-a",
		APIEndpoint: "https://tpu.example.com/v1",
	}
}

func TestNewConfigLocal(t *testing.T) {
	t.Parallel()

	config, err := NewConfig(Config{Mode: ModeLocal, Profile: "default"})
	require.NoError(t, err)
	assert.Equal(t, ModeLocal, config.Mode)
}

func TestNewConfigFleet(t *testing.T) {
	t.Parallel()

	_, err := NewConfig(validFleetConfig())
	require.NoError(t, err)
}

func TestNewConfigRejectsInvalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty profile", func(c *Config) { c.Profile = "" }, "profile name"},
		{"zero fleet size", func(c *Config) { c.FleetSize = 0 }, "fleet size"},
		{"empty prefix", func(c *Config) { c.Prefix = "" }, "prefix"},
		{"empty zone", func(c *Config) { c.Zone = "" }, "zone"},
		{"missing endpoint", func(c *Config) { c.APIEndpoint = "" }, "api-endpoint"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validFleetConfig()
			tt.mutate(&cfg)
			_, err := NewConfig(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestNewConfigCleanupSkipsFleetSizeCheck(t *testing.T) {
	t.Parallel()

	cfg := validFleetConfig()
	cfg.Mode = ModeCleanup
	cfg.FleetSize = 0
	_, err := NewConfig(cfg)
	require.NoError(t, err)
}
