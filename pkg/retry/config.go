package retry

import (
	"fmt"
	"time"
)

// BackoffStrategy определяет рост задержки между попытками
type BackoffStrategy string

const (
	// BackoffConstant - постоянная задержка
	BackoffConstant BackoffStrategy = "constant"
	// BackoffLinear - задержка растет линейно
	BackoffLinear BackoffStrategy = "linear"
	// BackoffExponential - задержка растет экспоненциально
	BackoffExponential BackoffStrategy = "exponential"
)

// Config конфигурация повторов для bulk-операций
type Config struct {
	Enabled           bool            `yaml:"enabled"`
	MaxAttempts       int             `yaml:"max_attempts"`       // включая первую, 0 = без ограничения
	InitialDelay      time.Duration   `yaml:"initial_delay"`      // перед первым повтором
	MaxDelay          time.Duration   `yaml:"max_delay"`          // верхняя граница задержки
	BackoffStrategy   BackoffStrategy `yaml:"backoff"`            // constant | linear | exponential
	BackoffMultiplier float64         `yaml:"backoff_multiplier"` // для exponential, по умолчанию 2.0
	Jitter            float64         `yaml:"jitter"`             // 0.0 - 1.0

	// Retryable решает, имеет ли смысл повтор. nil - повторяется любая ошибка.
	// Для bulk-операций сюда передается bulk.Retryable.
	Retryable func(error) bool `yaml:"-"`

	// OnRetry вызывается перед каждым повтором
	OnRetry func(attempt int, err error, delay time.Duration) `yaml:"-"`

	// Rejects - файл для пачек строк, которые так и не удалось записать
	Rejects RejectsConfig `yaml:"rejects"`
}

// RejectsConfig конфигурация файла отклоненных пачек
type RejectsConfig struct {
	Enabled         bool          `yaml:"enabled"`
	FilePath        string        `yaml:"file"`
	MaxSize         int           `yaml:"max_size"`  // записей, при превышении удаляются старые
	RetentionPeriod time.Duration `yaml:"retention"` // 0 = хранить всегда
}

// Validate проверяет конфигурацию
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}

	if c.MaxAttempts < 0 {
		return fmt.Errorf("max_attempts must be >= 0, got %d", c.MaxAttempts)
	}
	if c.InitialDelay < 0 {
		return fmt.Errorf("initial_delay must be >= 0")
	}
	if c.MaxDelay < c.InitialDelay {
		return fmt.Errorf("max_delay (%v) must be >= initial_delay (%v)", c.MaxDelay, c.InitialDelay)
	}

	switch c.BackoffStrategy {
	case BackoffConstant, BackoffLinear, BackoffExponential:
	default:
		return fmt.Errorf("invalid backoff strategy: %s", c.BackoffStrategy)
	}

	if c.BackoffMultiplier <= 0 {
		c.BackoffMultiplier = 2.0
	}
	if c.Jitter < 0 || c.Jitter > 1.0 {
		return fmt.Errorf("jitter must be between 0.0 and 1.0, got %f", c.Jitter)
	}
	if c.Rejects.Enabled && c.Rejects.FilePath == "" {
		return fmt.Errorf("rejects.file is required when rejects are enabled")
	}

	return nil
}

// DefaultConfig возвращает конфигурацию по умолчанию (повторы выключены)
func DefaultConfig() Config {
	return Config{
		Enabled:           false,
		MaxAttempts:       3,
		InitialDelay:      500 * time.Millisecond,
		MaxDelay:          10 * time.Second,
		BackoffStrategy:   BackoffExponential,
		BackoffMultiplier: 2.0,
		Jitter:            0.2,
		Rejects: RejectsConfig{
			Enabled:         false,
			FilePath:        "./rejects.json",
			MaxSize:         1000,
			RetentionPeriod: 7 * 24 * time.Hour,
		},
	}
}

// EnableRetry создает конфигурацию с включенными повторами
func EnableRetry(maxAttempts int, initialDelay time.Duration) Config {
	config := DefaultConfig()
	config.Enabled = true
	config.MaxAttempts = maxAttempts
	config.InitialDelay = initialDelay
	return config
}
