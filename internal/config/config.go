package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Source   Source   `yaml:"source"`
	Database Database `yaml:"database"`
	Server   Server   `yaml:"server"`
	Query    Query    `yaml:"query"`
	Logging  Logging  `yaml:"logging"`
}

type Source struct {
	CSVPath          string `yaml:"csv_path"`
	Delimiter        string `yaml:"delimiter"`
	FallbackEncoding string `yaml:"fallback_encoding"`
}

type Database struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
	DSN    string `yaml:"dsn"`
}

type Server struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	ImageBaseURL string `yaml:"image_base_url"`
}

type Query struct {
	DefaultLimit int `yaml:"default_limit"`
	MaxLimit     int `yaml:"max_limit"`
}

type Logging struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// ConfigDir returns the XDG config directory for kdramadb.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "kdramadb")
}

// DataDir returns the XDG data directory for kdramadb.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "kdramadb")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/kdramadb/config.yaml > ./config.yaml.
// An empty path with a nil error means no file exists and the embedded
// defaults apply.
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

	return "", nil
}

// Load reads and parses a config YAML file. An empty path parses the
// embedded defaults. Environment overrides are applied last.
func Load(path string) (*Config, error) {
	data := DefaultConfigYAML
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}
	cfg, err := parse(data)
	if err != nil {
		return nil, err
	}
	cfg.applyEnv()
	return cfg, nil
}

// LoadDotEnv loads a .env file from the working directory if present.
// It reports whether a file was loaded.
func LoadDotEnv() bool {
	return godotenv.Load() == nil
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Source: Source{
			CSVPath:          "kdramas.csv",
			Delimiter:        ",",
			FallbackEncoding: "euc-kr",
		},
		Database: Database{Driver: "sqlite"},
		Server: Server{
			Host:         "127.0.0.1",
			Port:         8000,
			ImageBaseURL: "https://image.tmdb.org/t/p/w500",
		},
		Query:   Query{DefaultLimit: defaultPageSize, MaxLimit: maxPageSize},
		Logging: Logging{Level: "INFO"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	// Zero or negative page sizes fall back rather than failing every query.
	if cfg.Query.DefaultLimit <= 0 {
		cfg.Query.DefaultLimit = defaultPageSize
	}
	if cfg.Query.MaxLimit <= 0 {
		cfg.Query.MaxLimit = maxPageSize
	}

	if len([]rune(cfg.Source.Delimiter)) > 1 {
		return nil, fmt.Errorf("parsing config: delimiter must be a single character, got %q", cfg.Source.Delimiter)
	}
	switch cfg.Database.Driver {
	case "sqlite", "postgres":
	default:
		return nil, fmt.Errorf("parsing config: unsupported database driver %q", cfg.Database.Driver)
	}

	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("KDRAMA_CSV"); v != "" {
		c.Source.CSVPath = v
	}
	if v := os.Getenv("KDRAMA_DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.Driver = "postgres"
		c.Database.DSN = v
	}
	if v := os.Getenv("KDRAMA_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Server.Port = n
		}
	}
	if v := os.Getenv("KDRAMA_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// GetDatabasePath returns the effective SQLite file from config or XDG default.
func (c *Config) GetDatabasePath() string {
	if c.Database.Path != "" {
		return c.Database.Path
	}
	return filepath.Join(DataDir(), "kdramas.db")
}

// DelimiterRune returns the CSV delimiter, defaulting to a comma.
func (c *Config) DelimiterRune() rune {
	for _, r := range c.Source.Delimiter {
		return r
	}
	return ','
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
