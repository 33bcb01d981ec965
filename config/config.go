package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete gateway configuration. Values come from defaults,
// then an optional yaml file, then environment variables, in that order.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Auth    AuthConfig    `yaml:"auth"`
	Paths   PathsConfig   `yaml:"paths"`
	Workers WorkersConfig `yaml:"workers"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// AuthConfig carries the token signing secret and the single configured
// admin credential pair.
type AuthConfig struct {
	JWTSecret     string `yaml:"jwt_secret"`
	AdminEmail    string `yaml:"admin_email"`
	AdminPassword string `yaml:"admin_password"`
	TokenTTL      string `yaml:"token_ttl"`
}

// PathsConfig locates the on-disk pipeline state. All directories are
// created on demand if absent.
type PathsConfig struct {
	DataDir        string `yaml:"data_dir"`
	ScrapedDir     string `yaml:"scraped_dir"`
	VectorstoreDir string `yaml:"vectorstore_dir"`
	DatabasePath   string `yaml:"database_path"`
}

// WorkersConfig maps each worker operation to the argv used to spawn it,
// plus the default invocation timeout.
type WorkersConfig struct {
	Timeout  string              `yaml:"timeout"`
	Commands map[string][]string `yaml:"commands"`
}

// Default returns the configuration used when no file or environment
// overrides are present. Worker commands mirror the scripts/ layout.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: ":8080",
		},
		Auth: AuthConfig{
			JWTSecret:     "your-secret-key",
			AdminEmail:    "admin@visamonk.ai",
			AdminPassword: "admin123",
			TokenTTL:      "24h",
		},
		Paths: PathsConfig{
			DataDir:        "data",
			ScrapedDir:     "scraped_data",
			VectorstoreDir: "vectorstore",
			DatabasePath:   filepath.Join("data", "chatbot.db"),
		},
		Workers: WorkersConfig{
			Timeout: "120s",
			Commands: map[string][]string{
				"chat":         {"python3", filepath.Join("scripts", "chat_processor.py")},
				"scrape":       {"python3", filepath.Join("scripts", "web_scraper.py")},
				"reindex":      {"python3", filepath.Join("scripts", "data_indexer.py")},
				"process-file": {"python3", filepath.Join("scripts", "file_processor.py")},
				"tts":          {"python3", filepath.Join("scripts", "tts_generator.py")},
			},
		},
	}
}

// Load builds the configuration from defaults, the yaml file at path (if it
// exists), and environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case os.IsNotExist(err):
			// No config file is fine; defaults apply.
		default:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("GATEWAY_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
	if v := os.Getenv("ADMIN_EMAIL"); v != "" {
		c.Auth.AdminEmail = v
	}
	if v := os.Getenv("ADMIN_PASSWORD"); v != "" {
		c.Auth.AdminPassword = v
	}
	if v := os.Getenv("GATEWAY_DATA_DIR"); v != "" {
		c.Paths.DataDir = v
		c.Paths.DatabasePath = filepath.Join(v, "chatbot.db")
	}
	if v := os.Getenv("GATEWAY_SCRAPED_DIR"); v != "" {
		c.Paths.ScrapedDir = v
	}
	if v := os.Getenv("GATEWAY_VECTORSTORE_DIR"); v != "" {
		c.Paths.VectorstoreDir = v
	}
	if v := os.Getenv("GATEWAY_WORKER_TIMEOUT"); v != "" {
		c.Workers.Timeout = v
	}
}

func (c *Config) validate() error {
	if _, err := c.WorkerTimeout(); err != nil {
		return err
	}
	if _, err := c.SessionTTL(); err != nil {
		return err
	}
	if len(c.Workers.Commands) == 0 {
		return fmt.Errorf("no worker commands configured")
	}
	for op, argv := range c.Workers.Commands {
		if len(argv) == 0 {
			return fmt.Errorf("worker %q has an empty command", op)
		}
	}
	return nil
}

// WorkerTimeout parses the configured worker invocation timeout.
func (c *Config) WorkerTimeout() (time.Duration, error) {
	d, err := time.ParseDuration(c.Workers.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid workers.timeout %q: %w", c.Workers.Timeout, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("workers.timeout must be positive, got %q", c.Workers.Timeout)
	}
	return d, nil
}

// SessionTTL parses the configured token lifetime.
func (c *Config) SessionTTL() (time.Duration, error) {
	d, err := time.ParseDuration(c.Auth.TokenTTL)
	if err != nil {
		return 0, fmt.Errorf("invalid auth.token_ttl %q: %w", c.Auth.TokenTTL, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("auth.token_ttl must be positive, got %q", c.Auth.TokenTTL)
	}
	return d, nil
}
