package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/gophsync/internal/timex"
	"gopkg.in/yaml.v3"
)

// fileConfig is the on-disk form. Absent fields keep their current value.
type fileConfig struct {
	DatabasePath   *string         `json:"database_path" yaml:"database_path"`
	Driver         *string         `json:"driver" yaml:"driver"`
	RemoteEndpoint *string         `json:"remote_endpoint" yaml:"remote_endpoint"`
	PushTimeout    *timex.Duration `json:"push_timeout" yaml:"push_timeout"`
	LogLevel       *string         `json:"log_level" yaml:"log_level"`
	AccessToken    *string         `json:"access_token" yaml:"access_token"`
	TokenSecret    *string         `json:"token_secret" yaml:"token_secret"`
}

// LoadFile overlays cfg with the values of a .json, .yaml or .yml file.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	var fc fileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fc)
	case ".json":
		err = json.Unmarshal(data, &fc)
	default:
		return fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}
	if err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	overlay(&cfg.DatabasePath, fc.DatabasePath)
	overlay(&cfg.Driver, fc.Driver)
	overlay(&cfg.RemoteEndpoint, fc.RemoteEndpoint)
	overlay(&cfg.LogLevel, fc.LogLevel)
	overlay(&cfg.AccessToken, fc.AccessToken)
	overlay(&cfg.TokenSecret, fc.TokenSecret)
	if fc.PushTimeout != nil {
		cfg.PushTimeout = fc.PushTimeout.Duration
	}
	return nil
}

func overlay(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}
