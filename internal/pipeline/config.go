package pipeline

import (
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/argo-patterns/internal/memory"
	"github.com/rxtech-lab/argo-patterns/internal/patternstats"
	"github.com/rxtech-lab/argo-patterns/internal/portfolio"
	"github.com/rxtech-lab/argo-patterns/internal/regime"
	"github.com/rxtech-lab/argo-patterns/pkg/errors"
	"gopkg.in/yaml.v2"
)

// Config is the engine configuration loaded from YAML.
type Config struct {
	// DatabasePath is the DuckDB file; empty runs in memory.
	DatabasePath string `yaml:"database_path"`

	// SummaryPath receives the daily summary YAML after each cycle; empty
	// disables the write.
	SummaryPath string `yaml:"summary_path"`

	// ExportDir receives the Parquet audit export; empty disables it.
	ExportDir string `yaml:"export_dir"`

	// MaxHoldDays force-closes positions older than this. Zero disables
	// the time exit.
	MaxHoldDays int `yaml:"max_hold_days" validate:"gte=0"`

	Portfolio    portfolio.Config    `yaml:"portfolio" validate:"required"`
	PatternStats patternstats.Config `yaml:"pattern_stats" validate:"required"`
	Memory       memory.Config       `yaml:"memory" validate:"required"`
	Regime       regime.Config       `yaml:"regime"`
}

// DefaultConfig returns a runnable default configuration.
func DefaultConfig() Config {
	return Config{
		MaxHoldDays:  30,
		Portfolio:    portfolio.DefaultConfig(),
		PatternStats: patternstats.DefaultConfig(),
		Memory:       memory.DefaultConfig(),
		Regime:       regime.DefaultConfig(),
	}
}

// LoadConfig reads a YAML config file. Omitted fields keep their defaults.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to read config file", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse config file", err)
	}

	if err := config.Validate(); err != nil {
		return Config{}, err
	}

	return config, nil
}

// Validate validates the configuration.
func (c Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid configuration", err)
	}

	return nil
}
