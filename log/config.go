package log

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Config describes optional per-logger level rules loaded from a yaml file.
// Each filter entry uses the zapfilter rule syntax, for example
// "debug:iracing*" or "warn:repository.*".
type Config struct {
	Filters []string `yaml:"filters"`
}

var (
	cfgMu     sync.Mutex
	activeCfg *Config
)

// LoadConfig reads the logger config file and applies it to loggers created
// afterwards. An empty filename is a no-op.
func LoadConfig(filename string) error {
	if filename == "" {
		return nil
	}
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("read log config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("parse log config: %w", err)
	}
	cfgMu.Lock()
	activeCfg = &cfg
	cfgMu.Unlock()
	return nil
}

func loadedConfig() *Config {
	cfgMu.Lock()
	defer cfgMu.Unlock()
	return activeCfg
}

func (c *Config) rules() string {
	return strings.Join(c.Filters, " ")
}
