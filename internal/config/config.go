// Package config holds the search settings shared by the CLI commands.
// Values come from defaults, an optional config file and SNCBOUND_*
// environment variables, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Search strategies.
const (
	StrategyGradient = "gradient"
	StrategyMayfly   = "mayfly"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid config")

// MayflyConfig configures the population search.
type MayflyConfig struct {
	Iterations int     `mapstructure:"iterations"`
	Population int     `mapstructure:"population"`
	Seed       int64   `mapstructure:"seed"`
	MaxP       float64 `mapstructure:"max_p"`
}

// Config holds every tunable of a bound computation.
type Config struct {
	ThetaGranularity   float64      `mapstructure:"theta_granularity"`
	HoelderGranularity float64      `mapstructure:"hoelder_granularity"`
	MaxIterations      int          `mapstructure:"max_iterations"`
	Workers            int          `mapstructure:"workers"`
	Strategy           string       `mapstructure:"strategy"`
	TraceDir           string       `mapstructure:"trace_dir"`
	Mayfly             MayflyConfig `mapstructure:"mayfly"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		ThetaGranularity:   0.01,
		HoelderGranularity: 0.01,
		MaxIterations:      1_000_000,
		Workers:            1,
		Strategy:           StrategyGradient,
		Mayfly: MayflyConfig{
			Iterations: 200,
			Population: 20,
			Seed:       42,
			MaxP:       10,
		},
	}
}

// Load reads path (if not empty) over the defaults, then applies the
// environment.
func Load(path string) (Config, error) {
	v := viper.New()

	d := Default()
	v.SetDefault("theta_granularity", d.ThetaGranularity)
	v.SetDefault("hoelder_granularity", d.HoelderGranularity)
	v.SetDefault("max_iterations", d.MaxIterations)
	v.SetDefault("workers", d.Workers)
	v.SetDefault("strategy", d.Strategy)
	v.SetDefault("trace_dir", d.TraceDir)
	v.SetDefault("mayfly.iterations", d.Mayfly.Iterations)
	v.SetDefault("mayfly.population", d.Mayfly.Population)
	v.SetDefault("mayfly.seed", d.Mayfly.Seed)
	v.SetDefault("mayfly.max_p", d.Mayfly.MaxP)

	v.SetEnvPrefix("SNCBOUND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return c, nil
}

// Validate checks the settings a search depends on.
func (c Config) Validate() error {
	if !(c.ThetaGranularity > 0) {
		return fmt.Errorf("%w: theta_granularity %g must be positive", ErrInvalidConfig, c.ThetaGranularity)
	}
	if !(c.HoelderGranularity > 0) {
		return fmt.Errorf("%w: hoelder_granularity %g must be positive", ErrInvalidConfig, c.HoelderGranularity)
	}
	if c.MaxIterations < 0 {
		return fmt.Errorf("%w: max_iterations %d is negative", ErrInvalidConfig, c.MaxIterations)
	}
	if c.Workers < 1 {
		return fmt.Errorf("%w: workers %d must be at least 1", ErrInvalidConfig, c.Workers)
	}
	switch c.Strategy {
	case StrategyGradient:
	case StrategyMayfly:
		if c.Mayfly.Population < 20 {
			return fmt.Errorf("%w: mayfly population %d must be at least 20", ErrInvalidConfig, c.Mayfly.Population)
		}
		if c.Mayfly.Iterations < 1 {
			return fmt.Errorf("%w: mayfly iterations %d must be positive", ErrInvalidConfig, c.Mayfly.Iterations)
		}
		if !(c.Mayfly.MaxP > 1) {
			return fmt.Errorf("%w: mayfly max_p %g must exceed 1", ErrInvalidConfig, c.Mayfly.MaxP)
		}
	default:
		return fmt.Errorf("%w: unknown strategy %q", ErrInvalidConfig, c.Strategy)
	}
	return nil
}
