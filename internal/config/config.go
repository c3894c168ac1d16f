package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Logger struct {
		Verbosity string `yaml:"verbosity"`
	} `yaml:"logger"`
	Device struct {
		Backend string `yaml:"backend"`
		Host    struct {
			MaxThreadsPerGroup int `yaml:"maxThreadsPerGroup"`
			MaxBufferLength    int `yaml:"maxBufferLength"`
		} `yaml:"host"`
	} `yaml:"device"`
	Library struct {
		Path       string `yaml:"path"`
		EnvVar     string `yaml:"envVar"`
		DefaultDir string `yaml:"defaultDir"`
	} `yaml:"library"`
	Engine struct {
		Strict bool `yaml:"strict"`
	} `yaml:"engine"`
	Dispatch struct {
		Policy string `yaml:"policy"`
	} `yaml:"dispatch"`
	Metrics struct {
		ListenAddress string `yaml:"listenAddress"`
		Path          string `yaml:"path"`
	} `yaml:"metrics"`
	Bench struct {
		Iterations int           `yaml:"iterations"`
		Warmup     int           `yaml:"warmup"`
		Linger     time.Duration `yaml:"linger"`
	} `yaml:"bench"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	var c Config
	c.Logger.Verbosity = "info"
	c.Device.Backend = "auto"
	c.Library.EnvVar = "FERRUM_LIB"
	c.Library.DefaultDir = "./lib"
	c.Dispatch.Policy = "multi-group"
	c.Metrics.Path = "/metrics"
	c.Bench.Iterations = 100
	c.Bench.Warmup = 5
	return &c
}

// LoadConfig reads a YAML file on top of Default and validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := Default()
	err = yaml.Unmarshal(data, config)
	if err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return config, nil
}

// Validate checks the enumerated and numeric settings.
func (c *Config) Validate() error {
	switch c.Device.Backend {
	case "auto", "host", "metal":
	default:
		return fmt.Errorf("device.backend must be auto, host or metal, got %q", c.Device.Backend)
	}
	switch c.Dispatch.Policy {
	case "multi-group", "single-group":
	default:
		return fmt.Errorf("dispatch.policy must be multi-group or single-group, got %q", c.Dispatch.Policy)
	}
	if c.Device.Host.MaxThreadsPerGroup < 0 {
		return fmt.Errorf("device.host.maxThreadsPerGroup must not be negative")
	}
	if c.Device.Host.MaxBufferLength < 0 {
		return fmt.Errorf("device.host.maxBufferLength must not be negative")
	}
	if c.Bench.Iterations <= 0 {
		return fmt.Errorf("bench.iterations must be positive")
	}
	if c.Bench.Warmup < 0 {
		return fmt.Errorf("bench.warmup must not be negative")
	}
	return nil
}
