package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
	assert.NoError(t, c.Validate())
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sncbound.yaml")
	doc := "theta_granularity: 0.05\nstrategy: mayfly\nmayfly:\n  population: 30\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))
	t.Setenv("SNCBOUND_WORKERS", "4")
	t.Setenv("SNCBOUND_MAYFLY_SEED", "7")

	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 0.05, c.ThetaGranularity)
	assert.Equal(t, 0.01, c.HoelderGranularity)
	assert.Equal(t, StrategyMayfly, c.Strategy)
	assert.Equal(t, 30, c.Mayfly.Population)
	assert.Equal(t, 4, c.Workers)
	assert.Equal(t, int64(7), c.Mayfly.Seed)
	assert.NoError(t, c.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"theta granularity", func(c *Config) { c.ThetaGranularity = 0 }},
		{"hoelder granularity", func(c *Config) { c.HoelderGranularity = -0.1 }},
		{"iterations", func(c *Config) { c.MaxIterations = -1 }},
		{"workers", func(c *Config) { c.Workers = 0 }},
		{"strategy", func(c *Config) { c.Strategy = "annealing" }},
		{"mayfly population", func(c *Config) { c.Strategy = StrategyMayfly; c.Mayfly.Population = 5 }},
		{"mayfly max p", func(c *Config) { c.Strategy = StrategyMayfly; c.Mayfly.MaxP = 1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(&c)
			assert.ErrorIs(t, c.Validate(), ErrInvalidConfig)
		})
	}
}
