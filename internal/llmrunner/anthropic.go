package llmrunner

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/swarmcore/swarmcore/internal/swarmtypes"
)

// AnthropicConfig configures an AnthropicFactory.
type AnthropicConfig struct {
	// APIKey is the Anthropic API authentication key (required).
	APIKey string

	// BaseURL overrides the default Anthropic API base URL.
	BaseURL string

	// DefaultModel is used when RunnerConfig implies no model override.
	// Defaults to "claude-sonnet-4-20250514".
	DefaultModel string

	// MaxRetries is the maximum retry attempts for transient failures.
	// Defaults to 3.
	MaxRetries int

	// RetryDelay is the base delay between retries (exponential backoff).
	// Defaults to 1 second.
	RetryDelay time.Duration
}

func (c AnthropicConfig) withDefaults() AnthropicConfig {
	if c.DefaultModel == "" {
		c.DefaultModel = "claude-sonnet-4-20250514"
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = defaultRetryDelay
	}
	return c
}

// AnthropicFactory builds Runners that drive the Anthropic Messages API.
type AnthropicFactory struct {
	client anthropic.Client
	cfg    AnthropicConfig
}

// NewAnthropicFactory constructs an AnthropicFactory. Returns an error if
// cfg.APIKey is empty.
func NewAnthropicFactory(cfg AnthropicConfig) (*AnthropicFactory, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("llmrunner: anthropic API key is required")
	}
	cfg = cfg.withDefaults()

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &AnthropicFactory{client: anthropic.NewClient(opts...), cfg: cfg}, nil
}

// Create implements swarmtypes.RunnerFactory.
func (f *AnthropicFactory) Create(ctx context.Context, cfg swarmtypes.RunnerConfig) (swarmtypes.Runner, error) {
	return &anthropicRunner{client: f.client, cfg: f.cfg, runCfg: cfg}, nil
}

type anthropicRunner struct {
	client  anthropic.Client
	cfg     AnthropicConfig
	runCfg  swarmtypes.RunnerConfig
	stopped bool
}

func (r *anthropicRunner) Stop() { r.stopped = true }

// Run drives non-streaming completions against the task text and reports
// the outcome. Tool execution is an external collaborator (see package doc).
// It makes at most MaxTurns calls and stops after the first one unless the
// RunnerConfig lists tools and the response holds tool_use blocks; the
// request carries no tool definitions, and every call sends the same task
// text (no conversational tool loop).
func (r *anthropicRunner) Run(ctx context.Context) (swarmtypes.SubResult, error) {
	subID := r.runCfg.SessionID
	maxTurns := r.runCfg.MaxTurns
	if maxTurns <= 0 {
		maxTurns = 1
	}

	var lastText string
	var totalTokens, toolCalls int
	turns := 0

	for turns = 0; turns < maxTurns; turns++ {
		if r.stopped {
			return swarmtypes.SubResult{Success: false, Error: "cancelled", SubID: subID, Turns: turns}, nil
		}

		msg, err := r.complete(ctx)
		if err != nil {
			return swarmtypes.SubResult{Success: false, Error: err.Error(), SubID: subID, Turns: turns + 1}, nil
		}

		for _, block := range msg.Content {
			if block.Type == "text" {
				lastText += block.Text
			}
			if block.Type == "tool_use" {
				toolCalls++
			}
		}
		totalTokens += int(msg.Usage.InputTokens + msg.Usage.OutputTokens)

		if len(r.runCfg.Tools) == 0 || toolCalls == 0 {
			turns++
			break
		}
	}

	return swarmtypes.SubResult{
		Success:    true,
		Result:     lastText,
		Turns:      turns,
		ToolCalls:  toolCalls,
		TokensUsed: totalTokens,
		SubID:      subID,
	}, nil
}

func (r *anthropicRunner) complete(ctx context.Context) (*anthropic.Message, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(r.cfg.DefaultModel),
		MaxTokens: int64(defaultMaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(r.runCfg.Task)),
		},
	}

	var msg *anthropic.Message
	var err error
	for attempt := 0; attempt <= r.cfg.MaxRetries; attempt++ {
		msg, err = r.client.Messages.New(ctx, params)
		if err == nil {
			return msg, nil
		}
		if !isRetryableError(err) {
			return nil, fmt.Errorf("llmrunner: anthropic request failed: %w", err)
		}
		if attempt < r.cfg.MaxRetries {
			backoff := r.cfg.RetryDelay * time.Duration(math.Pow(2, float64(attempt)))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	return nil, fmt.Errorf("llmrunner: anthropic max retries exceeded: %w", err)
}
