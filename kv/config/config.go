package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pingcap-incubator/tinyocc/kv/account"
	"github.com/pingcap/errors"
)

type Config struct {
	LogLevel string `toml:"log-level"`
	// Log to this file instead of stdout.
	LogFile string `toml:"log-file"`

	// Simulated access latency paid by every account operation.
	LatchDelay Duration `toml:"latch-delay"`

	// Number of transactions executing at once.
	Workers int `toml:"workers"`
	// The run is cancelled once it has taken this long. Transactions still running are abandoned.
	Timeout Duration `toml:"timeout"`

	// Consecutive aborted opens of a single account before the statement releases everything it holds and starts
	// over. Zero spins forever, which can stall when two transactions each hold what the other wants.
	MaxSpins int `toml:"max-spins"`
	// Randomized exponential backoff between two attempts at the same statement.
	BackoffInitial Duration `toml:"backoff-initial"`
	BackoffMax     Duration `toml:"backoff-max"`

	// Serve prometheus metrics on this address while the run lasts. Empty disables it.
	MetricsAddr string `toml:"metrics-addr"`
}

func (c *Config) Validate() error {
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be greater than 0")
	}
	if c.LatchDelay.Duration < 0 {
		return fmt.Errorf("latch delay must not be negative")
	}
	if c.Timeout.Duration <= 0 {
		return fmt.Errorf("timeout must be greater than 0")
	}
	if c.MaxSpins < 0 {
		return fmt.Errorf("max spins must not be negative")
	}
	if c.BackoffInitial.Duration < 0 || c.BackoffMax.Duration < c.BackoffInitial.Duration {
		return fmt.Errorf("backoff must satisfy 0 <= backoff-initial <= backoff-max")
	}
	return nil
}

// Warnings lists settings which are valid but risky. They are returned rather than logged so the caller can log them
// once its logger is set up.
func (c *Config) Warnings() []string {
	var warnings []string
	if c.MaxSpins == 0 {
		warnings = append(warnings, "max-spins is 0, statements waiting on each other's latches may stall forever")
	}
	return warnings
}

func getLogLevel() (logLevel string) {
	logLevel = "info"
	if l := os.Getenv("LOG_LEVEL"); len(l) != 0 {
		logLevel = l
	}
	return
}

func NewDefaultConfig() *Config {
	return &Config{
		LogLevel:       getLogLevel(),
		LatchDelay:     NewDuration(100 * time.Millisecond),
		Workers:        account.NumLetters,
		Timeout:        NewDuration(time.Hour),
		MaxSpins:       16,
		BackoffInitial: NewDuration(50 * time.Millisecond),
		BackoffMax:     NewDuration(2 * time.Second),
	}
}

func NewTestConfig() *Config {
	return &Config{
		LogLevel:       getLogLevel(),
		Workers:        account.NumLetters,
		Timeout:        NewDuration(time.Minute),
		MaxSpins:       64,
		BackoffInitial: NewDuration(100 * time.Microsecond),
		BackoffMax:     NewDuration(5 * time.Millisecond),
	}
}

// LoadFile overlays the settings found in a TOML file onto c.
func (c *Config) LoadFile(path string) error {
	meta, err := toml.DecodeFile(path, c)
	if err != nil {
		return errors.Annotatef(err, "load config %s", path)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return errors.Errorf("config %s contains unknown items %v", path, undecoded)
	}
	return nil
}

// Duration is a time.Duration which reads and writes itself as a string such as "100ms" in TOML.
type Duration struct {
	time.Duration
}

func NewDuration(d time.Duration) Duration {
	return Duration{Duration: d}
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return errors.WithStack(err)
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}
