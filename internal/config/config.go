// Package config loads the settings of the gophsync tools.
//
// Sources, later ones overriding earlier ones:
//
//  1. Built-in defaults (LoadDefaults).
//  2. An optional JSON or YAML file, chosen by extension, named by
//     --config.
//  3. Command-line flags that were set explicitly.
//
// Durations in files accept "10s" strings or integer nanoseconds:
//
//	database_path: gophsync.db
//	driver: sqlite
//	remote_endpoint: 127.0.0.1:50051
//	push_timeout: 10s
//	log_level: info
package config

import (
	"time"

	"github.com/spf13/pflag"
)

type Config struct {
	DatabasePath   string
	Driver         string
	RemoteEndpoint string
	PushTimeout    time.Duration
	LogLevel       string
	// AccessToken is the JWT of the signed-in user; TokenSecret, when set,
	// is used to verify it.
	AccessToken string
	TokenSecret string
}

func (c *Config) LoadDefaults() {
	c.DatabasePath = "gophsync.db"
	c.Driver = "sqlite"
	c.RemoteEndpoint = ""
	c.PushTimeout = 10 * time.Second
	c.LogLevel = "info"
}

// Flags binds the configuration flags to a flag set.
type Flags struct {
	fs         *pflag.FlagSet
	configPath string
	values     Config
}

func BindFlags(fs *pflag.FlagSet) *Flags {
	f := &Flags{fs: fs}
	var d Config
	d.LoadDefaults()

	fs.StringVarP(&f.configPath, "config", "c", "", "path to a JSON or YAML config file")
	fs.StringVarP(&f.values.DatabasePath, "db", "d", d.DatabasePath, "database path or DSN")
	fs.StringVar(&f.values.Driver, "driver", d.Driver, "database driver (sqlite or postgres)")
	fs.StringVarP(&f.values.RemoteEndpoint, "remote", "a", d.RemoteEndpoint, "address and port of the sync server")
	fs.DurationVar(&f.values.PushTimeout, "push-timeout", d.PushTimeout, "timeout of one push")
	fs.StringVar(&f.values.LogLevel, "log-level", d.LogLevel, "log level (debug, info, warn, error)")
	fs.StringVar(&f.values.AccessToken, "token", "", "access token of the current user")
	fs.StringVar(&f.values.TokenSecret, "token-secret", "", "secret to verify the access token")
	return f
}

// Load builds the configuration from defaults, the config file and the
// flags set on the command line.
func (f *Flags) Load() (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if f.configPath != "" {
		if err := LoadFile(f.configPath, cfg); err != nil {
			return nil, err
		}
	}

	set := map[string]func(){
		"db":           func() { cfg.DatabasePath = f.values.DatabasePath },
		"driver":       func() { cfg.Driver = f.values.Driver },
		"remote":       func() { cfg.RemoteEndpoint = f.values.RemoteEndpoint },
		"push-timeout": func() { cfg.PushTimeout = f.values.PushTimeout },
		"log-level":    func() { cfg.LogLevel = f.values.LogLevel },
		"token":        func() { cfg.AccessToken = f.values.AccessToken },
		"token-secret": func() { cfg.TokenSecret = f.values.TokenSecret },
	}
	for name, apply := range set {
		if f.fs.Changed(name) {
			apply()
		}
	}
	return cfg, nil
}
