// Package swarmconfig loads and validates the YAML configuration that drives
// a swarmcoord.Coordinator: concurrency limits, timeouts, critic/postback
// tuning, and provider credentials, following the teacher's
// LoadConfig/ParseConfigYAML/ValidateConfig layering.
package swarmconfig

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level swarm configuration document.
type Config struct {
	// Enabled gates whether a Coordinator will accept Execute calls at all.
	Enabled bool `yaml:"enabled"`

	// MaxConcurrent bounds how many tasks the dispatcher may run at once.
	MaxConcurrent int `yaml:"max_concurrent"`

	// MaxTasks bounds how many tasks the graph builder will accept in one plan.
	MaxTasks int `yaml:"max_tasks"`

	// AutoApprove skips the human-in-the-loop approval phase.
	AutoApprove bool `yaml:"auto_approve"`

	// EnableCritic turns on the post-execution critic review phase.
	EnableCritic bool `yaml:"enable_critic"`

	// MaxCriticIterations bounds how many critic review rounds a single
	// swarm run will take before accepting the current result.
	MaxCriticIterations int `yaml:"max_critic_iterations"`

	// TokenBudget is the total LLM token budget for one swarm run. Zero
	// means unbounded.
	TokenBudget int `yaml:"token_budget"`

	// SwarmTimeout bounds the wall-clock duration of one swarm run.
	SwarmTimeout time.Duration `yaml:"swarm_timeout"`

	// EnableSharedMemory gives each run a pub/sub context tasks can use to
	// publish intermediate findings for later tasks to read.
	EnableSharedMemory bool `yaml:"enable_shared_memory"`

	// SharedMemoryBuffer sizes the shared context's update channel. Zero
	// means the swarmtypes default.
	SharedMemoryBuffer int `yaml:"shared_memory_buffer,omitempty"`

	// Providers configures the concrete LLM backends available to runners.
	Providers ProvidersConfig `yaml:"providers"`

	// Store configures optional durable persistence. An empty DSN means
	// in-memory only.
	Store StoreConfig `yaml:"store"`

	// Tracing configures OpenTelemetry export. An empty Endpoint disables
	// export entirely.
	Tracing TracingConfig `yaml:"tracing"`

	// Metadata carries operator-defined passthrough values.
	Metadata map[string]any `yaml:"metadata,omitempty"`
}

// ProvidersConfig selects and configures the RunnerFactory backend.
type ProvidersConfig struct {
	// Default is the provider used when a task doesn't specify one:
	// "anthropic", "openai", or "scripted".
	Default string `yaml:"default"`

	AnthropicAPIKey string `yaml:"anthropic_api_key,omitempty"`
	AnthropicModel  string `yaml:"anthropic_model,omitempty"`

	OpenAIAPIKey string `yaml:"openai_api_key,omitempty"`
	OpenAIModel  string `yaml:"openai_model,omitempty"`
}

// StoreConfig configures internal/jobstore.
type StoreConfig struct {
	DSN string `yaml:"dsn,omitempty"`
}

// TracingConfig configures internal/swarmtrace.
type TracingConfig struct {
	ServiceName  string  `yaml:"service_name,omitempty"`
	Environment  string  `yaml:"environment,omitempty"`
	Endpoint     string  `yaml:"endpoint,omitempty"`
	SamplingRate float64 `yaml:"sampling_rate,omitempty"`
}

// LoadConfig loads a swarm configuration from a YAML file on disk.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("swarmconfig: read %s: %w", path, err)
	}
	return ParseConfigYAML(data)
}

// ParseConfigYAML parses and defaults a swarm configuration from YAML bytes.
func ParseConfigYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("swarmconfig: parse YAML: %w", err)
	}

	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 5
	}
	if cfg.MaxTasks <= 0 {
		cfg.MaxTasks = 50
	}
	if cfg.MaxCriticIterations <= 0 {
		cfg.MaxCriticIterations = 2
	}
	if cfg.SwarmTimeout <= 0 {
		cfg.SwarmTimeout = 10 * time.Minute
	}
	if cfg.Providers.Default == "" {
		cfg.Providers.Default = "scripted"
	}

	return &cfg, nil
}

// SaveConfig marshals cfg to YAML and writes it to path.
func SaveConfig(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("swarmconfig: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("swarmconfig: write %s: %w", path, err)
	}
	return nil
}

// ValidateConfig returns every structural problem found in cfg. An empty
// slice means cfg is usable as-is.
func ValidateConfig(cfg *Config) []error {
	var errs []error

	if cfg == nil {
		return []error{fmt.Errorf("swarmconfig: config is nil")}
	}

	switch cfg.Providers.Default {
	case "anthropic":
		if cfg.Providers.AnthropicAPIKey == "" {
			errs = append(errs, fmt.Errorf("swarmconfig: providers.default=anthropic requires anthropic_api_key"))
		}
	case "openai":
		if cfg.Providers.OpenAIAPIKey == "" {
			errs = append(errs, fmt.Errorf("swarmconfig: providers.default=openai requires openai_api_key"))
		}
	case "scripted":
		// No credentials required.
	default:
		errs = append(errs, fmt.Errorf("swarmconfig: unknown providers.default %q", cfg.Providers.Default))
	}

	if cfg.MaxConcurrent <= 0 {
		errs = append(errs, fmt.Errorf("swarmconfig: max_concurrent must be positive"))
	}
	if cfg.MaxTasks <= 0 {
		errs = append(errs, fmt.Errorf("swarmconfig: max_tasks must be positive"))
	}
	if cfg.EnableCritic && cfg.MaxCriticIterations <= 0 {
		errs = append(errs, fmt.Errorf("swarmconfig: enable_critic requires max_critic_iterations > 0"))
	}
	if cfg.Tracing.SamplingRate < 0 || cfg.Tracing.SamplingRate > 1 {
		errs = append(errs, fmt.Errorf("swarmconfig: tracing.sampling_rate must be within [0,1]"))
	}

	return errs
}
