package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Output  Output  `yaml:"output"`
	Import  Import  `yaml:"import"`
	Render  Render  `yaml:"render"`
	Check   Check   `yaml:"check"`
	Logging Logging `yaml:"logging"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Import struct {
	Workers                int `yaml:"workers"`
	SearchPageDelaySeconds int `yaml:"search_page_delay_seconds"`
	CreatedDelayMinSeconds int `yaml:"created_delay_min_seconds"`
	CreatedDelayMaxSeconds int `yaml:"created_delay_max_seconds"`
	ReimportDelaySeconds   int `yaml:"reimport_delay_seconds"`
	FetchTimeoutSeconds    int `yaml:"fetch_timeout_seconds"`
}

type Render struct {
	RemoteURL      string `yaml:"remote_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type Check struct {
	Queries []string `yaml:"queries"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// ConfigDir returns the XDG config directory for priceowl.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "priceowl")
}

// DataDir returns the XDG data directory for priceowl.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "priceowl")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/priceowl/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'priceowl init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Import: Import{
			Workers:                5,
			SearchPageDelaySeconds: 10,
			CreatedDelayMinSeconds: 3,
			CreatedDelayMaxSeconds: 7,
			ReimportDelaySeconds:   2,
			FetchTimeoutSeconds:    15,
		},
		Render:  Render{TimeoutSeconds: 30},
		Check:   Check{Queries: []string{"Motor", "ESC"}},
		Logging: Logging{Level: "info"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
