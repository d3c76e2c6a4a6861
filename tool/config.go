package tool

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/geekydillip/Market-Pulse-AI-sub000/types"
)

var ConfigPath = "config.yaml" // be aware that it can be changed, default to ./config.yaml

func DefaultConfig() types.AppConfig {
	return types.AppConfig{
		Port:              3001,
		OllamaURL:         "http://localhost:11434",
		DefaultModel:      "gemma3:4b",
		ResponseField:     "response",
		ChunkSize:         10,
		Concurrency:       4,
		RequestTimeoutMs:  0,
		RequestsPerSecond: 0,
		CacheTTLSeconds:   3600,
		SessionTTLSeconds: 1800,
		KeepAliveSeconds:  15,
		MaxUploadMB:       50,
		OutputFolder:      "outputs",
		RetrievalK:        3,
	}
}

// LoadConfig reads path (default ./config.yaml). A missing file is created with the
// defaults. Fields left zero in the file keep their defaults.
func LoadConfig(path string) (types.AppConfig, error) {
	if path == "" {
		path = ConfigPath
	}
	ConfigPath = path

	cfg := DefaultConfig()

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			if writeErr := writeDefaultConfig(path, cfg); writeErr != nil {
				return cfg, fmt.Errorf("config file not found, and failed to generate default config: %v", writeErr)
			}
			DefaultLogger.Infof("Created new config file: %s", path)
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config file: %v", err)
	}
	if info.IsDir() {
		return cfg, fmt.Errorf("config file path is a directory: %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %v", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %v", err)
	}
	fillDefaults(&cfg)
	return cfg, nil
}

// fillDefaults restores defaults for values the file set to something unusable.
func fillDefaults(cfg *types.AppConfig) {
	def := DefaultConfig()
	if cfg.Port <= 0 {
		cfg.Port = def.Port
	}
	if cfg.OllamaURL == "" {
		cfg.OllamaURL = def.OllamaURL
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = def.DefaultModel
	}
	if cfg.ResponseField == "" {
		cfg.ResponseField = def.ResponseField
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = def.ChunkSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.RequestTimeoutMs < 0 {
		cfg.RequestTimeoutMs = 0
	}
	if cfg.CacheTTLSeconds <= 0 {
		cfg.CacheTTLSeconds = def.CacheTTLSeconds
	}
	if cfg.SessionTTLSeconds <= 0 {
		cfg.SessionTTLSeconds = def.SessionTTLSeconds
	}
	if cfg.KeepAliveSeconds <= 0 {
		cfg.KeepAliveSeconds = def.KeepAliveSeconds
	}
	if cfg.MaxUploadMB <= 0 {
		cfg.MaxUploadMB = def.MaxUploadMB
	}
	if cfg.OutputFolder == "" {
		cfg.OutputFolder = def.OutputFolder
	}
	if cfg.RetrievalK <= 0 {
		cfg.RetrievalK = def.RetrievalK
	}
}

func writeDefaultConfig(path string, cfg types.AppConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Seconds converts a config value in seconds to a duration.
func Seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// Millis converts a config value in milliseconds to a duration.
func Millis(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}
