package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"projectcas/pkg/discovery"
)

const (
	appDirName = "projectcas"

	// DirEnv overrides the default data directory.
	DirEnv = "PROJECTCAS_DIR"

	defaultListenAddr = "127.0.0.1:8080"
	defaultLogLevel   = "info"
	defaultMaxUpload  = 512 << 20
)

// Config represents the complete projectcas configuration
type Config struct {
	Storage   StorageConfig   `yaml:"storage"`
	Merge     MergeConfig     `yaml:"merge"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
}

// StorageConfig configures the object store, manifests and caches
type StorageConfig struct {
	Root       string `yaml:"root"`
	ScratchDir string `yaml:"scratch_dir"`
}

// MergeConfig configures direct-to-disk merges
type MergeConfig struct {
	TargetRoot string `yaml:"target_root"`
}

// DiscoveryConfig configures project discovery
type DiscoveryConfig struct {
	Ignore []string `yaml:"ignore"`
}

// ServerConfig configures the HTTP server
type ServerConfig struct {
	ListenAddr     string `yaml:"listen_addr"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
}

// LogConfig configures logging
type LogConfig struct {
	Level string `yaml:"level"`
}

// DefaultDir resolves the base data directory: PROJECTCAS_DIR first, then
// $XDG_DATA_HOME/projectcas, then ~/.local/share/projectcas.
func DefaultDir() string {
	if explicit := os.Getenv(DirEnv); explicit != "" {
		return explicit
	}

	xdg.Reload()

	dataHome := xdg.DataHome
	if dataHome == "" {
		home := xdg.Home
		if home == "" {
			var err error
			home, err = os.UserHomeDir()
			if err != nil {
				return filepath.Join(os.TempDir(), appDirName)
			}
		}
		dataHome = filepath.Join(home, ".local", "share")
	}

	return filepath.Join(dataHome, appDirName)
}

// Default returns a validated configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads and parses the configuration file. An empty path yields the
// defaults.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		path = os.ExpandEnv(path)

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.expandEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func (c *Config) expandEnv() {
	c.Storage.Root = os.ExpandEnv(c.Storage.Root)
	c.Storage.ScratchDir = os.ExpandEnv(c.Storage.ScratchDir)
	c.Merge.TargetRoot = os.ExpandEnv(c.Merge.TargetRoot)
	c.Server.ListenAddr = os.ExpandEnv(c.Server.ListenAddr)
}

func (c *Config) applyDefaults() {
	if c.Storage.Root == "" {
		c.Storage.Root = DefaultDir()
	}
	if c.Storage.ScratchDir == "" {
		c.Storage.ScratchDir = filepath.Join(c.Storage.Root, "scratch")
	}
	if c.Merge.TargetRoot == "" {
		c.Merge.TargetRoot = filepath.Join(c.Storage.Root, "merged")
	}
	if c.Discovery.Ignore == nil {
		c.Discovery.Ignore = append([]string(nil), discovery.DefaultIgnorePatterns...)
	}
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = defaultListenAddr
	}
	if c.Server.MaxUploadBytes == 0 {
		c.Server.MaxUploadBytes = defaultMaxUpload
	}
	if c.Log.Level == "" {
		c.Log.Level = defaultLogLevel
	}
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if !filepath.IsAbs(c.Storage.Root) {
		return fmt.Errorf("storage.root must be an absolute path: %s", c.Storage.Root)
	}
	if !filepath.IsAbs(c.Storage.ScratchDir) {
		return fmt.Errorf("storage.scratch_dir must be an absolute path: %s", c.Storage.ScratchDir)
	}
	if !filepath.IsAbs(c.Merge.TargetRoot) {
		return fmt.Errorf("merge.target_root must be an absolute path: %s", c.Merge.TargetRoot)
	}
	if c.Server.MaxUploadBytes < 0 {
		return errors.New("server.max_upload_bytes must not be negative")
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log.level %q: %w", c.Log.Level, err)
	}
	return nil
}

// RegistryPath returns the SQLite project registry location
func (c *Config) RegistryPath() string {
	return filepath.Join(c.Storage.Root, "registry.db")
}
