package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/adrg/xdg"
)

func TestParseDefaultConfig(t *testing.T) {
	cfg, err := parse(DefaultConfigYAML)
	if err != nil {
		t.Fatalf("failed to parse default config: %v", err)
	}

	if cfg.LLM.Provider != "gemini" {
		t.Errorf("expected provider 'gemini', got %q", cfg.LLM.Provider)
	}
	if cfg.LLM.Model != "gemini-1.5-flash" {
		t.Errorf("expected model 'gemini-1.5-flash', got %q", cfg.LLM.Model)
	}
	if cfg.Reddit.FetchLimit != 100 {
		t.Errorf("expected fetch_limit 100, got %d", cfg.Reddit.FetchLimit)
	}
	if cfg.Reddit.Source != "api" {
		t.Errorf("expected source 'api', got %q", cfg.Reddit.Source)
	}
	if cfg.Store.Database != "reddit_persona" {
		t.Errorf("expected database 'reddit_persona', got %q", cfg.Store.Database)
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("expected port 8000, got %d", cfg.Server.Port)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestParseMinimalConfig(t *testing.T) {
	data := []byte(`
llm:
  provider: openai
  model: gpt-4o-mini
server:
  port: 9000
`)
	cfg, err := parse(data)
	if err != nil {
		t.Fatalf("failed to parse minimal config: %v", err)
	}

	if cfg.LLM.Provider != "openai" {
		t.Errorf("expected provider 'openai', got %q", cfg.LLM.Provider)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Server.Port)
	}
	// Defaults should still be set for unspecified fields
	if cfg.LLM.OllamaURL != "http://localhost:11434" {
		t.Errorf("expected default ollama_url, got %q", cfg.LLM.OllamaURL)
	}
	if cfg.Analysis.MaxTokens != 4096 {
		t.Errorf("expected default max_tokens 4096, got %d", cfg.Analysis.MaxTokens)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, DefaultConfigYAML, 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Reddit.UserAgent == "" {
		t.Error("expected user agent from file")
	}
}

func TestLoadTOMLConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	data := `
[llm]
provider = "ollama"
model = "llama3.1"

[analysis]
repair_json = true

[store]
uri = "postgres://localhost/persona"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	t.Setenv("PERSONA_STORE_URI", "")
	t.Setenv("MONGODB_URI", "")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.LLM.Provider != "ollama" || cfg.LLM.Model != "llama3.1" {
		t.Errorf("unexpected llm section: %+v", cfg.LLM)
	}
	if !cfg.Analysis.RepairJSON {
		t.Error("expected repair_json true")
	}
	if cfg.GetStoreURI() != "postgres://localhost/persona" {
		t.Errorf("unexpected store uri %q", cfg.GetStoreURI())
	}
	if cfg.Reddit.FetchLimit != 100 {
		t.Errorf("expected default fetch_limit, got %d", cfg.Reddit.FetchLimit)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"provider":   "llm:\n  provider: claude\n",
		"port":       "server:\n  port: 70000\n",
		"limit":      "reddit:\n  fetch_limit: 0\n",
		"source":     "reddit:\n  source: pushshift\n",
		"secret":     "reddit:\n  client_id: abc\n",
		"ollama_url": "llm:\n  ollama_url: not a url\n",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			cfg, err := parse([]byte(data))
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			err = cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), "invalid config") {
				t.Errorf("unexpected error %v", err)
			}
		})
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := defaults()
	env := map[string]string{
		"REDDIT_CLIENT_ID":     "id",
		"REDDIT_CLIENT_SECRET": "secret",
		"MONGODB_URI":          "mongodb://localhost:27017",
		"NATS_URL":             "nats://localhost:4222",
	}
	cfg.ApplyEnv(func(k string) string { return env[k] })

	if cfg.Reddit.ClientID != "id" || cfg.Reddit.ClientSecret != "secret" {
		t.Errorf("reddit credentials not applied: %+v", cfg.Reddit)
	}
	if cfg.Store.URI != "mongodb://localhost:27017" {
		t.Errorf("expected MONGODB_URI fallback, got %q", cfg.Store.URI)
	}
	if cfg.Events.NATSURL != "nats://localhost:4222" {
		t.Errorf("expected NATS_URL, got %q", cfg.Events.NATSURL)
	}

	env["PERSONA_STORE_URI"] = "sqlite:///tmp/p.db"
	cfg.ApplyEnv(func(k string) string { return env[k] })
	if cfg.Store.URI != "sqlite:///tmp/p.db" {
		t.Errorf("PERSONA_STORE_URI should win, got %q", cfg.Store.URI)
	}
}

func TestAPIKey(t *testing.T) {
	t.Setenv("TEST_PERSONA_KEY", "k-123")
	l := LLM{APIKeyEnv: "TEST_PERSONA_KEY"}
	if l.APIKey() != "k-123" {
		t.Errorf("expected key from env, got %q", l.APIKey())
	}
	if (LLM{}).APIKey() != "" {
		t.Error("expected empty key without api_key_env")
	}
}

func TestGetStoreURI(t *testing.T) {
	cfg := &Config{}
	def := cfg.GetStoreURI()
	if !strings.HasPrefix(def, "sqlite://") || !strings.HasSuffix(def, "persona.db") {
		t.Errorf("unexpected default store uri %q", def)
	}

	cfg.Store.URI = "postgres://db/persona"
	if cfg.GetStoreURI() != "postgres://db/persona" {
		t.Errorf("expected explicit uri, got %q", cfg.GetStoreURI())
	}
}

func TestResolveConfigPathExplicit(t *testing.T) {
	if _, err := ResolveConfigPath(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing explicit path")
	}
	path := filepath.Join(t.TempDir(), "c.yaml")
	if err := os.WriteFile(path, DefaultConfigYAML, 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := ResolveConfigPath(path)
	if err != nil || got != path {
		t.Errorf("ResolveConfigPath(%q) = %q, %v", path, got, err)
	}
}

func TestLoadOrDefaultMissingExplicitPath(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "typo.yaml")
	cfg, err := LoadOrDefault(missing)
	if err == nil {
		t.Fatalf("expected error for missing --config path, got config %+v", cfg)
	}
	if errors.Is(err, ErrNoConfigFile) {
		t.Errorf("explicit path must not be treated as an empty search: %v", err)
	}
	if !strings.Contains(err.Error(), missing) {
		t.Errorf("error %q should name the missing path", err)
	}
}

func TestLoadOrDefaultExplicitPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 9100\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadOrDefault(path)
	if err != nil {
		t.Fatalf("LoadOrDefault: %v", err)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("expected port from file, got %d", cfg.Server.Port)
	}
}

func TestLoadOrDefaultFallsBackWhenNothingFound(t *testing.T) {
	t.Cleanup(xdg.Reload)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	xdg.Reload()
	t.Chdir(t.TempDir())

	if _, err := ResolveConfigPath(""); !errors.Is(err, ErrNoConfigFile) {
		t.Fatalf("expected ErrNoConfigFile, got %v", err)
	}
	cfg, err := LoadOrDefault("")
	if err != nil {
		t.Fatalf("LoadOrDefault: %v", err)
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("expected default port, got %d", cfg.Server.Port)
	}
}
