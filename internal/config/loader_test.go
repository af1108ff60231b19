package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testConfigYAML = `
app:
  name: toolkitforseo-api
llm:
  default_provider: openai
  providers:
    openai:
      api_key: ${TEST_TOOLKIT_OPENAI_KEY:sk-default}
      model: gpt-4o-mini
      timeout: 30s
    gemini:
      api_key: ${TEST_TOOLKIT_GEMINI_KEY}
  tool_providers:
    text-summarizer: gemini
credits:
  costs:
    grammar-checker:
      credits: 5
      category: writing
  plans:
    pro:
      limits:
        writing: 100
    enterprise:
      limits:
        writing: -1
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return dir
}

func TestLoadFrom(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("TEST_TOOLKIT_GEMINI_KEY", "gm-key")
	dir := writeConfig(t, testConfigYAML)

	cfg, err := LoadFrom(dir)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}

	openai := cfg.LLM.Providers["openai"]
	if openai.APIKey != "sk-default" {
		t.Errorf("openai api key = %q, want default", openai.APIKey)
	}
	if openai.Timeout != 30*time.Second {
		t.Errorf("openai timeout = %v", openai.Timeout)
	}
	if got := cfg.LLM.Providers["gemini"].APIKey; got != "gm-key" {
		t.Errorf("gemini api key = %q", got)
	}
	if got := cfg.LLM.ToolProviders["text-summarizer"]; got != "gemini" {
		t.Errorf("tool provider = %q", got)
	}
	if got := cfg.Credits.Costs["grammar-checker"]; got.Credits != 5 || got.Category != "writing" {
		t.Errorf("cost = %+v", got)
	}
	if got := cfg.Credits.Plans["enterprise"].Limits["writing"]; got != UnlimitedCredits {
		t.Errorf("enterprise limit = %d", got)
	}
	if !cfg.Credits.ChargeFailedAttempts {
		t.Error("charge_failed_attempts should default to true")
	}
	if cfg.Server.HTTP.Port != 8080 {
		t.Errorf("default port = %d", cfg.Server.HTTP.Port)
	}
}

func TestLoadFrom_EnvFileOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "staging")
	dir := writeConfig(t, testConfigYAML)
	override := "server:\n  http:\n    port: 9090\n"
	if err := os.WriteFile(filepath.Join(dir, "config.staging.yaml"), []byte(override), 0o600); err != nil {
		t.Fatalf("write override: %v", err)
	}

	cfg, err := LoadFrom(dir)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Server.HTTP.Port != 9090 {
		t.Fatalf("port = %d, want 9090", cfg.Server.HTTP.Port)
	}
}

func TestLoadFrom_MissingFile(t *testing.T) {
	if _, err := LoadFrom(t.TempDir()); err == nil {
		t.Fatal("expected error for missing config.yaml")
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("TEST_TOOLKIT_SET", "value")

	cases := map[string]string{
		"${TEST_TOOLKIT_SET}":          "value",
		"${TEST_TOOLKIT_SET:fallback}": "value",
		"${TEST_TOOLKIT_UNSET:x}":      "x",
		"${TEST_TOOLKIT_UNSET:}":       "",
		"${TEST_TOOLKIT_UNSET}":        "${TEST_TOOLKIT_UNSET}",
		"a-${TEST_TOOLKIT_SET}-b":      "a-value-b",
	}
	for in, want := range cases {
		if got := expandEnv(in); got != want {
			t.Errorf("expandEnv(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestValidate(t *testing.T) {
	cfg := &Config{
		LLM: LLMConfig{
			DefaultProvider: "openai",
			Providers:       map[string]ProviderConfig{"gemini": {}},
			ToolProviders:   map[string]string{"grammar-checker": "claude"},
		},
		Credits: CreditsConfig{
			Costs: map[string]ToolCostConfig{
				"a": {Credits: 0, Category: "writing"},
				"b": {Credits: 3},
			},
			Plans: map[string]PlanConfig{
				"free": {Limits: map[string]int64{"writing": -5}},
			},
		},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{
		"llm.default_provider",
		"llm.tool_providers.grammar-checker",
		"credits.costs.a.credits",
		"credits.costs.b.category",
		"credits.plans.free.limits.writing",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}
