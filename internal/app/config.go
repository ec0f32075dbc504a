package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the complete gateway configuration, loadable from
// environment variables (COMPOSER_ prefix), flags, or YAML config
// files.
type Config struct {
	Addr     string `default:"127.0.0.1:8090" usage:"Gateway listen address"`
	Backend  BackendConfig
	CORS     CORSConfig
	Graceful GracefulConfig
}

// BackendConfig points the engine at the commerce backend.
type BackendConfig struct {
	URL          string        `usage:"Commerce backend base URL (COMPOSER_BACKEND_URL or BACKEND_URL)" flag:"backend-url"`
	Token        string        `usage:"Opaque bearer token attached to every backend request" flag:"backend-token"`
	Timeout      time.Duration `default:"10s"   usage:"Per-request backend timeout"`
	RetryMax     int           `default:"2"     usage:"Extra attempts for idempotent lookups"`
	RetryBackoff time.Duration `default:"200ms" usage:"Base delay between lookup retries"`
}

// CORSConfig controls cross-origin access for the renderer.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed renderer origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentialed requests" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML
// config files, and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "COMPOSER",
		Files:     []string{"config.yaml", "/etc/composer/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.Backend.URL == "" {
		return nil, errors.New("backend URL is required: set COMPOSER_BACKEND_URL or BACKEND_URL")
	}

	return &cfg, nil
}

// applyPlatformDefaults maps standard platform environment variables
// (BACKEND_URL, BACKEND_TOKEN, PORT) onto the COMPOSER_-prefixed
// configuration.
func (c *Config) applyPlatformDefaults() {
	if c.Backend.URL == "" {
		if v := os.Getenv("BACKEND_URL"); v != "" {
			c.Backend.URL = v
		}
	}
	if c.Backend.Token == "" {
		if v := os.Getenv("BACKEND_TOKEN"); v != "" {
			c.Backend.Token = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "127.0.0.1:8090" {
		c.Addr = "0.0.0.0:" + port
	}
}
