package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the supervisor.
// Zero values mean "unspecified" and are replaced by ApplyDefaults.
type Config struct {
	// WatchPath is the managed process's configuration file to poll.
	WatchPath string `json:"watch_path" yaml:"watch_path" toml:"watch_path"`
	// PollIntervalS is the wait between mtime checks, in seconds.
	PollIntervalS int `json:"poll_interval_s" yaml:"poll_interval_s" toml:"poll_interval_s"`
	// WatchBackend selects "poll" or "notify".
	WatchBackend string `json:"watch_backend" yaml:"watch_backend" toml:"watch_backend"`
	// SyncSource is the optional external model directory reconciled into SyncTarget.
	SyncSource string `json:"sync_source" yaml:"sync_source" toml:"sync_source"`
	SyncTarget string `json:"sync_target" yaml:"sync_target" toml:"sync_target"`
	// ProcessName identifies the managed process to the container runtime.
	ProcessName string `json:"process_name" yaml:"process_name" toml:"process_name"`
	// RuntimeBin is the runtime CLI used to issue restarts (e.g. docker, podman).
	RuntimeBin string `json:"runtime_bin" yaml:"runtime_bin" toml:"runtime_bin"`
	// StatusAddr enables the supervisor's own status endpoint when non-empty.
	StatusAddr string `json:"status_addr" yaml:"status_addr" toml:"status_addr"`
	// ModelsFile is the model catalog definition consumed by `models` commands.
	ModelsFile string `json:"models_file" yaml:"models_file" toml:"models_file"`
}

const (
	DefaultWatchPath    = "/app/config.yaml"
	DefaultPollInterval = 5
	DefaultSyncSource   = "/host-models"
	DefaultSyncTarget   = "/models"
	DefaultProcessName  = "llama-swap"
	DefaultRuntimeBin   = "docker"
	DefaultModelsFile   = "models.json"
)

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}

// FromEnv fills unset fields from SWAPD_* environment variables.
func (c *Config) FromEnv() {
	if c.WatchPath == "" {
		c.WatchPath = os.Getenv("SWAPD_WATCH_PATH")
	}
	if c.PollIntervalS == 0 {
		c.PollIntervalS = envInt("SWAPD_POLL_INTERVAL_S", 0)
	}
	if c.WatchBackend == "" {
		c.WatchBackend = os.Getenv("SWAPD_WATCH_BACKEND")
	}
	if c.SyncSource == "" {
		c.SyncSource = os.Getenv("SWAPD_SYNC_SOURCE")
	}
	if c.SyncTarget == "" {
		c.SyncTarget = os.Getenv("SWAPD_SYNC_TARGET")
	}
	if c.ProcessName == "" {
		c.ProcessName = os.Getenv("SWAPD_PROCESS_NAME")
	}
	if c.RuntimeBin == "" {
		c.RuntimeBin = os.Getenv("SWAPD_RUNTIME_BIN")
	}
	if c.StatusAddr == "" {
		c.StatusAddr = os.Getenv("SWAPD_STATUS_ADDR")
	}
	if c.ModelsFile == "" {
		c.ModelsFile = os.Getenv("SWAPD_MODELS_FILE")
	}
}

// ApplyDefaults replaces remaining zero values with package defaults.
func (c *Config) ApplyDefaults() {
	if c.WatchPath == "" {
		c.WatchPath = DefaultWatchPath
	}
	if c.PollIntervalS <= 0 {
		c.PollIntervalS = DefaultPollInterval
	}
	if c.WatchBackend == "" {
		c.WatchBackend = "poll"
	}
	if c.SyncSource == "" {
		c.SyncSource = DefaultSyncSource
	}
	if c.SyncTarget == "" {
		c.SyncTarget = DefaultSyncTarget
	}
	if c.ProcessName == "" {
		c.ProcessName = DefaultProcessName
	}
	if c.RuntimeBin == "" {
		c.RuntimeBin = DefaultRuntimeBin
	}
	if c.ModelsFile == "" {
		c.ModelsFile = DefaultModelsFile
	}
}

// PollInterval returns the poll interval as a duration.
func (c Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalS) * time.Second
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			return n
		}
	}
	return def
}
