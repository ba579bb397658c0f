/*
 * Copyright (c) 2025, WSO2 LLC. (https://www.wso2.com).
 *
 * WSO2 LLC. licenses this file to you under the Apache License,
 * Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
 * KIND, either express or implied.  See the License for the
 * specific language governing permissions and limitations
 * under the License.
 */

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	toml "github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix for environment variables used to configure the server
const EnvPrefix = "SM_"

// Default listen addresses per spec: plain HTTP on 8080, TLS on 8443
const (
	defaultAddressHTTP  = "0.0.0.0:8080"
	defaultAddressHTTPS = "0.0.0.0:8443"
)

// Config holds all configuration for the server
type Config struct {
	// EncryptionKey is the passphrase unlocking the encrypted store
	EncryptionKey string `koanf:"encryption_key"`

	// DatabasePath is the SQLite database file location
	DatabasePath string `koanf:"database_path"`

	// AccessKeyID / AccessKeySecret form the sole accepted SigV4 credential
	AccessKeyID     string `koanf:"access_key_id"`
	AccessKeySecret string `koanf:"access_key_secret"`

	Server  ServerConfig  `koanf:"server"`
	Logging LoggingConfig `koanf:"logging"`
	Metrics MetricsConfig `koanf:"metrics"`
	Reaper  ReaperConfig  `koanf:"reaper"`
}

// ServerConfig holds the HTTP listener configuration
type ServerConfig struct {
	// Address is the listen address; defaults depend on UseHTTPS
	Address string `koanf:"address"`

	UseHTTPS        bool   `koanf:"use_https"`
	CertificatePath string `koanf:"certificate_path"`
	PrivateKeyPath  string `koanf:"private_key_path"`

	// DevCORS enables a permissive CORS layer for local browser testing
	DevCORS bool `koanf:"dev_cors"`

	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig holds logger configuration
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// MetricsConfig holds Prometheus metrics server configuration
type MetricsConfig struct {
	Enabled bool `koanf:"enabled"`
	Port    int  `koanf:"port"`
}

// ReaperConfig holds the background purge configuration
type ReaperConfig struct {
	Enabled  bool          `koanf:"enabled"`
	Interval time.Duration `koanf:"interval"`
}

func defaultConfig() *Config {
	return &Config{
		DatabasePath: "secrets.db",
		Server: ServerConfig{
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9100,
		},
		Reaper: ReaperConfig{
			Enabled:  true,
			Interval: time.Hour,
		},
	}
}

// LoadConfig loads configuration from an optional TOML file and SM_
// environment variables, environment taking precedence
func LoadConfig(configPath string) (*Config, error) {
	cfg := defaultConfig()

	k := koanf.New(".")

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", mapEnvVar), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			TagName:          "koanf",
			WeaklyTypedInput: true,
			Result:           cfg,
			DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		},
	}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// mapEnvVar maps SM_ environment variables onto config keys
func mapEnvVar(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	s = strings.ToLower(s)

	switch s {
	case "encryption_key":
		return "encryption_key"
	case "database_path":
		return "database_path"
	case "access_key_id":
		return "access_key_id"
	case "access_key_secret":
		return "access_key_secret"
	case "server_address":
		return "server.address"
	case "use_https":
		return "server.use_https"
	case "https_certificate_path":
		return "server.certificate_path"
	case "https_private_key_path":
		return "server.private_key_path"
	case "dev_cors":
		return "server.dev_cors"
	case "shutdown_timeout":
		return "server.shutdown_timeout"
	default:
		// Remaining variables use the standard underscore-to-dot mapping
		// (SM_LOGGING_LEVEL -> logging.level)
		return strings.Replace(s, "_", ".", 1)
	}
}

// applyDefaults fills values whose defaults depend on other settings
func (c *Config) applyDefaults() {
	if c.Server.Address == "" {
		if c.Server.UseHTTPS {
			c.Server.Address = defaultAddressHTTPS
		} else {
			c.Server.Address = defaultAddressHTTP
		}
	}
}

// Validate rejects incomplete configuration
func (c *Config) Validate() error {
	if c.EncryptionKey == "" {
		return fmt.Errorf("encryption_key is required (SM_ENCRYPTION_KEY)")
	}
	if c.AccessKeyID == "" {
		return fmt.Errorf("access_key_id is required (SM_ACCESS_KEY_ID)")
	}
	if c.AccessKeySecret == "" {
		return fmt.Errorf("access_key_secret is required (SM_ACCESS_KEY_SECRET)")
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("database_path must not be empty")
	}

	if c.Server.UseHTTPS {
		if c.Server.CertificatePath == "" || c.Server.PrivateKeyPath == "" {
			return fmt.Errorf("https requires both certificate_path and private_key_path")
		}
	}

	if c.Metrics.Enabled && (c.Metrics.Port < 1 || c.Metrics.Port > 65535) {
		return fmt.Errorf("metrics port must be between 1 and 65535")
	}

	if c.Reaper.Enabled && c.Reaper.Interval < time.Minute {
		return fmt.Errorf("reaper interval must be at least one minute")
	}

	return nil
}
