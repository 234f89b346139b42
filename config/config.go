package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	name      = "card-monitor"
	envPrefix = "cardmon"

	BackendPCSC  = "pcsc"
	BackendSim   = "sim"
	BackendRC522 = "rc522"
)

type Sim struct {
	Readers  []string      `mapstructure:"readers"`
	UIDs     []string      `mapstructure:"uids"`
	Interval time.Duration `mapstructure:"interval"`
}

type Config struct {
	Endpoint  string        `mapstructure:"endpoint"`
	Name      string        `mapstructure:"name"`
	Place     string        `mapstructure:"place"`
	Backend   string        `mapstructure:"backend"`
	Timeout   time.Duration `mapstructure:"timeout"`
	Workers   int           `mapstructure:"workers"`
	QueueSize int           `mapstructure:"queue_size"`
	DB        string        `mapstructure:"db"`
	LED       bool          `mapstructure:"led"`
	Debug     bool          `mapstructure:"debug"`
	Sim       Sim           `mapstructure:"sim"`
}

// every key needs a default, otherwise viper does not pick it up from the environment when unmarshalling
var defaults = map[string]any{
	"endpoint":     "",
	"name":         "",
	"place":        "Zelenograd",
	"backend":      BackendPCSC,
	"timeout":      10 * time.Second,
	"workers":      4,
	"queue_size":   64,
	"db":           "cards.db",
	"led":          false,
	"debug":        false,
	"sim.readers":  []string{"Simulated Reader 0"},
	"sim.uids":     []string{"04-1A-2B-3C"},
	"sim.interval": 5 * time.Second,
}

// Load builds the configuration from defaults, the first card-monitor.yaml found in the system, user and working
// directories, and CARDMON_* environment variables. A non-empty file is read instead of searching.
func Load(file string) (Config, error) {
	var c Config
	v := viper.New()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(name)
		v.SetConfigType("yaml")
		v.AddConfigPath(filepath.Join("/etc", name))
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, name))
		}
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return c, fmt.Errorf("could not read config: %w", err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.Unmarshal(&c); err != nil {
		return c, fmt.Errorf("could not parse config: %w", err)
	}
	return c, c.validate()
}

func (c Config) validate() error {
	switch c.Backend {
	case BackendPCSC, BackendSim, BackendRC522:
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if c.Timeout < 0 {
		return errors.New("timeout must not be negative")
	}
	return nil
}
