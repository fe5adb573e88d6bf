package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/adrg/xdg"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const appName = "redditpersona"

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Reddit   Reddit   `yaml:"reddit" toml:"reddit"`
	LLM      LLM      `yaml:"llm" toml:"llm"`
	Analysis Analysis `yaml:"analysis" toml:"analysis"`
	Store    Store    `yaml:"store" toml:"store"`
	Events   Events   `yaml:"events" toml:"events"`
	Server   Server   `yaml:"server" toml:"server"`
	Logging  Logging  `yaml:"logging" toml:"logging"`
}

type Reddit struct {
	Source         string `yaml:"source" toml:"source" validate:"oneof=api feed"`
	ClientID       string `yaml:"client_id" toml:"client_id"`
	ClientSecret   string `yaml:"client_secret" toml:"client_secret" validate:"required_with=ClientID"`
	UserAgent      string `yaml:"user_agent" toml:"user_agent" validate:"required"`
	FetchLimit     int    `yaml:"fetch_limit" toml:"fetch_limit" validate:"gte=1,lte=1000"`
	TimeoutSeconds int    `yaml:"timeout_seconds" toml:"timeout_seconds" validate:"gte=0"`
}

// Timeout returns the HTTP timeout for upstream calls.
func (r Reddit) Timeout() time.Duration {
	return time.Duration(r.TimeoutSeconds) * time.Second
}

type LLM struct {
	Provider  string `yaml:"provider" toml:"provider" validate:"oneof=gemini openai ollama"`
	Model     string `yaml:"model" toml:"model" validate:"required"`
	APIKeyEnv string `yaml:"api_key_env" toml:"api_key_env"`
	OllamaURL string `yaml:"ollama_url" toml:"ollama_url" validate:"omitempty,url"`
	BaseURL   string `yaml:"base_url" toml:"base_url" validate:"omitempty,url"`
}

// APIKey reads the provider key from the environment variable named by
// APIKeyEnv.
func (l LLM) APIKey() string {
	if l.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(l.APIKeyEnv)
}

type Analysis struct {
	MaxTokens  int  `yaml:"max_tokens" toml:"max_tokens" validate:"gte=256"`
	RepairJSON bool `yaml:"repair_json" toml:"repair_json"`
}

type Store struct {
	URI      string `yaml:"uri" toml:"uri"`
	Database string `yaml:"database" toml:"database"`
}

type Events struct {
	NATSURL       string `yaml:"nats_url" toml:"nats_url"`
	Token         string `yaml:"token" toml:"token"`
	SubjectPrefix string `yaml:"subject_prefix" toml:"subject_prefix"`
}

type Server struct {
	Port int `yaml:"port" toml:"port" validate:"gte=1,lte=65535"`
}

type Logging struct {
	Level string `yaml:"level" toml:"level" validate:"omitempty,oneof=DEBUG INFO WARN ERROR debug info warn error"`
}

// ConfigDir returns the XDG config directory for redditpersona.
func ConfigDir() string {
	return filepath.Join(xdg.ConfigHome, appName)
}

// DataDir returns the XDG data directory for redditpersona.
func DataDir() string {
	if dataHome := os.Getenv("XDG_DATA_HOME"); dataHome != "" {
		return filepath.Join(dataHome, appName)
	}
	return filepath.Join(xdg.DataHome, appName)
}

// ResolveConfigPath finds the config file following priority:
// explicit path > config dir (yaml, then toml) > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	candidates := []string{
		filepath.Join(ConfigDir(), "config.yaml"),
		filepath.Join(ConfigDir(), "config.toml"),
		"config.yaml",
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c, nil
		}
	}

	return "", fmt.Errorf(
		"%w; searched:\n  %s\n\nRun 'redditpersona init' to create a default config",
		ErrNoConfigFile, strings.Join(candidates, "\n  "),
	)
}

// ErrNoConfigFile is returned by ResolveConfigPath when no explicit path is
// given and none of the search locations hold a config file.
var ErrNoConfigFile = errors.New("no config file found")

// LoadOrDefault loads the config at explicit, or the first file found on the
// search path. The embedded defaults are used only when explicit is empty and
// the search finds nothing; a missing explicit path is an error.
func LoadOrDefault(explicit string) (*Config, error) {
	path, err := ResolveConfigPath(explicit)
	switch {
	case errors.Is(err, ErrNoConfigFile):
		return Default()
	case err != nil:
		return nil, err
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadDotEnv loads a .env file from the working directory if one exists.
func LoadDotEnv() error {
	err := godotenv.Load()
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// Load reads a YAML or TOML config file, applies environment overrides and
// validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg *Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		cfg, err = parseTOML(data)
	} else {
		cfg, err = parse(data)
	}
	if err != nil {
		return nil, err
	}

	cfg.ApplyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the embedded default config with environment overrides.
func Default() (*Config, error) {
	cfg, err := parse(DefaultConfigYAML)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv(os.Getenv)
	return cfg, cfg.Validate()
}

func defaults() *Config {
	return &Config{
		Reddit: Reddit{
			Source:         "api",
			UserAgent:      "redditpersona/0.1",
			FetchLimit:     100,
			TimeoutSeconds: 30,
		},
		LLM: LLM{
			Provider:  "gemini",
			Model:     "gemini-1.5-flash",
			APIKeyEnv: "GEMINI_API_KEY",
			OllamaURL: "http://localhost:11434",
		},
		Analysis: Analysis{MaxTokens: 4096},
		Store:    Store{Database: "reddit_persona"},
		Server:   Server{Port: 8000},
		Logging:  Logging{Level: "INFO"},
	}
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

func parseTOML(data []byte) (*Config, error) {
	cfg := defaults()
	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides credentials and endpoints from the environment.
func (c *Config) ApplyEnv(getenv func(string) string) {
	set := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v := getenv(k); v != "" {
				*dst = v
				return
			}
		}
	}
	set(&c.Reddit.ClientID, "REDDIT_CLIENT_ID")
	set(&c.Reddit.ClientSecret, "REDDIT_CLIENT_SECRET")
	set(&c.Reddit.UserAgent, "REDDIT_USER_AGENT")
	set(&c.Store.URI, "PERSONA_STORE_URI", "MONGODB_URI")
	set(&c.Events.NATSURL, "NATS_URL")
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// GetStoreURI returns the configured store URI or a sqlite database in the
// data directory.
func (c *Config) GetStoreURI() string {
	if c.Store.URI != "" {
		return c.Store.URI
	}
	return "sqlite://" + filepath.Join(DataDir(), "persona.db")
}
