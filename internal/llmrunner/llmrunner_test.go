package llmrunner

import (
	"context"
	"errors"
	"testing"

	"github.com/swarmcore/swarmcore/internal/swarmtypes"
)

func TestIsRetryableError(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("rate_limit exceeded"), true},
		{errors.New("HTTP 503 service unavailable"), true},
		{errors.New("context deadline exceeded"), true},
		{errors.New("connection reset by peer"), true},
		{errors.New("invalid api key"), false},
		{errors.New("400 bad request"), false},
	}
	for _, c := range cases {
		if got := isRetryableError(c.err); got != c.want {
			t.Errorf("isRetryableError(%v)=%v, want %v", c.err, got, c.want)
		}
	}
}

func TestAnthropicConfigDefaults(t *testing.T) {
	cfg := AnthropicConfig{APIKey: "sk-ant-test"}.withDefaults()
	if cfg.DefaultModel != "claude-sonnet-4-20250514" {
		t.Errorf("DefaultModel=%q", cfg.DefaultModel)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("MaxRetries=%d, want 3", cfg.MaxRetries)
	}
	if cfg.RetryDelay != defaultRetryDelay {
		t.Errorf("RetryDelay=%v, want %v", cfg.RetryDelay, defaultRetryDelay)
	}
}

func TestNewAnthropicFactoryRequiresAPIKey(t *testing.T) {
	if _, err := NewAnthropicFactory(AnthropicConfig{}); err == nil {
		t.Fatal("expected error for empty API key")
	}
}

func TestOpenAIConfigDefaults(t *testing.T) {
	cfg := OpenAIConfig{APIKey: "sk-test"}.withDefaults()
	if cfg.DefaultModel != "gpt-4o" {
		t.Errorf("DefaultModel=%q", cfg.DefaultModel)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("MaxRetries=%d, want 3", cfg.MaxRetries)
	}
}

func TestNewOpenAIFactoryRequiresAPIKey(t *testing.T) {
	if _, err := NewOpenAIFactory(OpenAIConfig{}); err == nil {
		t.Fatal("expected error for empty API key")
	}
}

func TestScriptedFactoryRunsScript(t *testing.T) {
	factory := NewScriptedFactory(func(task string) swarmtypes.SubResult {
		return swarmtypes.SubResult{Success: true, Result: "handled: " + task}
	})

	runner, err := factory.Create(context.Background(), swarmtypes.RunnerConfig{Task: "gather data", SessionID: "sub-1"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	result, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Result != "handled: gather data" {
		t.Errorf("Result=%q", result.Result)
	}
	if result.SubID != "sub-1" {
		t.Errorf("SubID=%q, want sub-1", result.SubID)
	}
}

func TestScriptedFactoryStopShortCircuits(t *testing.T) {
	called := false
	factory := NewScriptedFactory(func(task string) swarmtypes.SubResult {
		called = true
		return swarmtypes.SubResult{Success: true}
	})

	runner, _ := factory.Create(context.Background(), swarmtypes.RunnerConfig{Task: "x"})
	runner.Stop()

	result, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Success {
		t.Error("expected Success=false after Stop")
	}
	if called {
		t.Error("script should not run after Stop")
	}
}
