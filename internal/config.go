package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Store drivers.
const (
	StoreDriverSQLite = "sqlite"
	StoreDriverMemory = "memory"
)

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	Library   LibraryConfig     `yaml:"library"`
	Store     StoreConfig       `yaml:"store"`
	Challenge ChallengeConfig   `yaml:"challenge"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Library.Validate(); err != nil {
		return err
	}
	if err := c.Store.Validate(); err != nil {
		return err
	}
	return c.Challenge.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration. StaticDir, when set, is served
// at the root for the browser front end.
type HTTPConfig struct {
	Port      int    `yaml:"port"`
	StaticDir string `yaml:"static_dir"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// LibraryConfig points at the SDF file challenges are drawn from. An empty
// IndexPath derives "<name>.index" next to the SDF.
type LibraryConfig struct {
	SDFPath   string `yaml:"sdf_path"`
	IndexPath string `yaml:"index_path"`
	Watch     bool   `yaml:"watch"`
}

func (c *LibraryConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.SDFPath, validation.Required),
	)
}

// StoreConfig selects where issued challenges are kept.
type StoreConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
}

func (c *StoreConfig) Validate() error {
	if c.Driver == "" {
		c.Driver = StoreDriverSQLite
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Driver, validation.Required, validation.In(StoreDriverSQLite, StoreDriverMemory)),
	); err != nil {
		return err
	}
	if c.Driver == StoreDriverSQLite && c.Path == "" {
		return fmt.Errorf("store: driver is %q but path is empty", StoreDriverSQLite)
	}
	return nil
}

// ChallengeConfig tunes puzzle generation.
type ChallengeConfig struct {
	MinStereocenters int           `yaml:"min_stereocenters"`
	MaxAttempts      int           `yaml:"max_attempts"`
	ImageSize        int           `yaml:"image_size"`
	Workers          int           `yaml:"workers"`
	TTL              time.Duration `yaml:"ttl"`
}

func (c *ChallengeConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MinStereocenters, validation.Required, validation.Min(1)),
		validation.Field(&c.MaxAttempts, validation.Required, validation.Min(1)),
		validation.Field(&c.ImageSize, validation.Required, validation.Min(64), validation.Max(4096)),
		validation.Field(&c.Workers, validation.Required, validation.Min(1)),
		validation.Field(&c.TTL, validation.Required, validation.Min(time.Second)),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 28416,
			},
		},
		Library: LibraryConfig{
			SDFPath: "./data/compounds.sdf",
		},
		Store: StoreConfig{
			Driver: StoreDriverSQLite,
			Path:   "./chiralgrid.db",
		},
		Challenge: ChallengeConfig{
			MinStereocenters: 3,
			MaxAttempts:      5,
			ImageSize:        600,
			Workers:          4,
			TTL:              10 * time.Minute,
		},
	}
}
