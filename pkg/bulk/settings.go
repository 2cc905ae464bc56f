package bulk

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ruslano69/sqlbulk/pkg/adapters/mssql"
)

// StrategyMode forces or frees the transfer strategy choice.
type StrategyMode string

const (
	StrategyAuto     StrategyMode = "auto"
	StrategyStreamed StrategyMode = "streamed"
	StrategyMultiRow StrategyMode = "multirow"
)

// Settings tune a single operation. The zero value is not valid; start
// from DefaultSettings or LoadSettings.
type Settings struct {
	BatchSize         int           `yaml:"batch_size"`          // rows per bulk copy batch, 0 = one batch
	BulkCopyTimeout   time.Duration `yaml:"bulk_copy_timeout"`   // per transfer, 0 = none
	CommandTimeout    time.Duration `yaml:"command_timeout"`     // per statement, 0 = none
	KeepNulls         bool          `yaml:"keep_nulls"`          // keep NULLs instead of column defaults
	KeepIdentity      bool          `yaml:"keep_identity"`       // write caller-supplied identity values
	CheckConstraints  bool          `yaml:"check_constraints"`   // check constraints during bulk copy
	FireTriggers      bool          `yaml:"fire_triggers"`       // fire insert triggers during bulk copy
	Tablock           bool          `yaml:"tablock"`             // table lock during bulk copy
	DisableIndexes    bool          `yaml:"disable_indexes"`     // disable non-clustered indexes, rebuild after
	Strategy          StrategyMode  `yaml:"strategy"`            // auto | streamed | multirow
	MultiRowThreshold int           `yaml:"multi_row_threshold"` // max rows for the multi-row insert
}

// DefaultSettings returns the settings used when none are given.
func DefaultSettings() Settings {
	return Settings{
		BulkCopyTimeout:   600 * time.Second,
		CommandTimeout:    600 * time.Second,
		Strategy:          StrategyAuto,
		MultiRowThreshold: DefaultMultiRowThreshold,
	}
}

// LoadSettings reads settings from a YAML file, applying defaults for
// the keys it does not set.
func LoadSettings(path string) (Settings, error) {
	s := DefaultSettings()

	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("settings: read %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("settings: parse %q: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, fmt.Errorf("settings: %q: %w", path, err)
	}
	return s, nil
}

// Validate checks value ranges.
func (s Settings) Validate() error {
	switch s.Strategy {
	case "", StrategyAuto, StrategyStreamed, StrategyMultiRow:
	default:
		return fmt.Errorf("unknown strategy %q (want auto, streamed or multirow)", s.Strategy)
	}
	if s.BatchSize < 0 {
		return fmt.Errorf("batch_size must not be negative, got %d", s.BatchSize)
	}
	if s.MultiRowThreshold < 0 {
		return fmt.Errorf("multi_row_threshold must not be negative, got %d", s.MultiRowThreshold)
	}
	if s.BulkCopyTimeout < 0 || s.CommandTimeout < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	return nil
}

func (s Settings) copyOptions() mssql.CopyOptions {
	return mssql.CopyOptions{
		RowsPerBatch:     s.BatchSize,
		KeepNulls:        s.KeepNulls,
		CheckConstraints: s.CheckConstraints,
		FireTriggers:     s.FireTriggers,
		Tablock:          s.Tablock,
	}
}
