// Package config loads the daemon configuration from TOML.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/danmuck/canprobe/internal/serialcan"
)

// Config is the full daemon configuration.
type Config struct {
	SerialPort string `toml:"serial_port"`
	BaudRate   int    `toml:"baud_rate"`

	// ProtocolDialect selects the adapter control-byte dialect; see
	// serialcan. Two incompatible firmware revisions exist, so this is
	// explicit configuration, never guessed.
	ProtocolDialect string `toml:"protocol_dialect"`

	ReadTimeout   duration `toml:"read_timeout"`
	BatchSize     int      `toml:"batch_size"`
	QueueCapacity int      `toml:"queue_capacity"`

	SDOTimeout duration `toml:"sdo_timeout"`

	StatsInterval duration `toml:"stats_interval"`
	MetricsAddr   string   `toml:"metrics_addr"`
	CapturePath   string   `toml:"capture_path"`
}

// duration parses TOML strings like "250ms".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		SerialPort:      "/dev/ttyUSB0",
		BaudRate:        115200,
		ProtocolDialect: serialcan.DialectControlFlags,
		ReadTimeout:     duration{time.Millisecond},
		BatchSize:       1000,
		QueueCapacity:   10000,
		SDOTimeout:      duration{time.Second},
		StatsInterval:   duration{5 * time.Second},
		MetricsAddr:     "",
	}
}

// Load reads a TOML file over the defaults and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("config has unknown keys (%s): %v", path, undecoded)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, fmt.Errorf("config invalid (%s): %w", path, err)
	}
	return cfg, nil
}

func Validate(cfg Config) error {
	if strings.TrimSpace(cfg.SerialPort) == "" {
		return fmt.Errorf("serial_port is required")
	}
	if cfg.BaudRate <= 0 {
		return fmt.Errorf("baud_rate must be positive")
	}
	if _, err := serialcan.ForDialect(cfg.ProtocolDialect); err != nil {
		return fmt.Errorf("protocol_dialect %q: %w", cfg.ProtocolDialect, err)
	}
	if cfg.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be positive")
	}
	if cfg.QueueCapacity <= 0 {
		return fmt.Errorf("queue_capacity must be positive")
	}
	if cfg.SDOTimeout.Duration <= 0 {
		return fmt.Errorf("sdo_timeout must be positive")
	}
	return nil
}
