package swarmconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseConfigYAMLAppliesDefaults(t *testing.T) {
	cfg, err := ParseConfigYAML([]byte(`enabled: true`))
	if err != nil {
		t.Fatalf("ParseConfigYAML: %v", err)
	}
	if cfg.MaxConcurrent != 5 {
		t.Errorf("MaxConcurrent=%d, want 5", cfg.MaxConcurrent)
	}
	if cfg.MaxTasks != 50 {
		t.Errorf("MaxTasks=%d, want 50", cfg.MaxTasks)
	}
	if cfg.MaxCriticIterations != 2 {
		t.Errorf("MaxCriticIterations=%d, want 2", cfg.MaxCriticIterations)
	}
	if cfg.SwarmTimeout != 10*time.Minute {
		t.Errorf("SwarmTimeout=%v, want 10m", cfg.SwarmTimeout)
	}
	if cfg.Providers.Default != "scripted" {
		t.Errorf("Providers.Default=%q, want scripted", cfg.Providers.Default)
	}
}

func TestParseConfigYAMLHonorsExplicitValues(t *testing.T) {
	cfg, err := ParseConfigYAML([]byte(`
max_concurrent: 8
max_tasks: 10
enable_critic: true
max_critic_iterations: 4
providers:
  default: anthropic
  anthropic_api_key: sk-ant-xyz
`))
	if err != nil {
		t.Fatalf("ParseConfigYAML: %v", err)
	}
	if cfg.MaxConcurrent != 8 || cfg.MaxTasks != 10 || cfg.MaxCriticIterations != 4 {
		t.Errorf("cfg=%+v", cfg)
	}
	if cfg.Providers.Default != "anthropic" || cfg.Providers.AnthropicAPIKey != "sk-ant-xyz" {
		t.Errorf("Providers=%+v", cfg.Providers)
	}
}

func TestParseConfigYAMLRejectsMalformedYAML(t *testing.T) {
	if _, err := ParseConfigYAML([]byte("enabled: [")); err == nil {
		t.Fatal("expected error for malformed YAML")
	}
}

func TestLoadConfigAndSaveConfigRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "swarm.yaml")

	cfg := &Config{Enabled: true, MaxConcurrent: 3, MaxTasks: 20, EnableCritic: true, MaxCriticIterations: 2,
		Providers: ProvidersConfig{Default: "scripted"}}
	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if loaded.MaxConcurrent != 3 || !loaded.EnableCritic {
		t.Errorf("loaded=%+v", loaded)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig("/nonexistent/swarm.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidateConfigNil(t *testing.T) {
	errs := ValidateConfig(nil)
	if len(errs) != 1 {
		t.Fatalf("errs=%v", errs)
	}
}

func TestValidateConfigRequiresProviderCredentials(t *testing.T) {
	cfg := &Config{MaxConcurrent: 1, MaxTasks: 1, Providers: ProvidersConfig{Default: "anthropic"}}
	errs := ValidateConfig(cfg)
	if len(errs) != 1 {
		t.Fatalf("errs=%v, want 1 error about anthropic_api_key", errs)
	}
}

func TestValidateConfigUnknownProvider(t *testing.T) {
	cfg := &Config{MaxConcurrent: 1, MaxTasks: 1, Providers: ProvidersConfig{Default: "unknown"}}
	errs := ValidateConfig(cfg)
	if len(errs) != 1 {
		t.Fatalf("errs=%v", errs)
	}
}

func TestValidateConfigCriticRequiresIterations(t *testing.T) {
	cfg := &Config{MaxConcurrent: 1, MaxTasks: 1, EnableCritic: true, MaxCriticIterations: 0,
		Providers: ProvidersConfig{Default: "scripted"}}
	errs := ValidateConfig(cfg)
	if len(errs) != 1 {
		t.Fatalf("errs=%v", errs)
	}
}

func TestValidateConfigSamplingRateRange(t *testing.T) {
	cfg := &Config{MaxConcurrent: 1, MaxTasks: 1, Providers: ProvidersConfig{Default: "scripted"},
		Tracing: TracingConfig{SamplingRate: 1.5}}
	errs := ValidateConfig(cfg)
	if len(errs) != 1 {
		t.Fatalf("errs=%v", errs)
	}
}

func TestValidateConfigClean(t *testing.T) {
	cfg := &Config{MaxConcurrent: 1, MaxTasks: 1, Providers: ProvidersConfig{Default: "scripted"}}
	if errs := ValidateConfig(cfg); len(errs) != 0 {
		t.Errorf("errs=%v, want none", errs)
	}
}

func TestLoadConfigRealFilePermissions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "swarm.yaml")
	if err := os.WriteFile(path, []byte("enabled: true\n"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if !cfg.Enabled {
		t.Error("Enabled=false, want true")
	}
}
