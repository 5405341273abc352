package llmrunner

import (
	"context"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/swarmcore/swarmcore/internal/swarmtypes"
)

// OpenAIConfig configures an OpenAIFactory.
type OpenAIConfig struct {
	// APIKey is the OpenAI API authentication key (required).
	APIKey string

	// DefaultModel is used when RunnerConfig implies no model override.
	// Defaults to "gpt-4o".
	DefaultModel string

	// MaxRetries is the maximum retry attempts for transient failures.
	// Defaults to 3.
	MaxRetries int

	// RetryDelay is the base delay between retries.
	// Defaults to 1 second.
	RetryDelay time.Duration
}

func (c OpenAIConfig) withDefaults() OpenAIConfig {
	if c.DefaultModel == "" {
		c.DefaultModel = "gpt-4o"
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = defaultRetryDelay
	}
	return c
}

// OpenAIFactory builds Runners that drive the OpenAI chat completions API.
type OpenAIFactory struct {
	client *openai.Client
	cfg    OpenAIConfig
}

// NewOpenAIFactory constructs an OpenAIFactory. Returns an error if
// cfg.APIKey is empty.
func NewOpenAIFactory(cfg OpenAIConfig) (*OpenAIFactory, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("llmrunner: openai API key is required")
	}
	cfg = cfg.withDefaults()
	return &OpenAIFactory{client: openai.NewClient(cfg.APIKey), cfg: cfg}, nil
}

// Create implements swarmtypes.RunnerFactory.
func (f *OpenAIFactory) Create(ctx context.Context, cfg swarmtypes.RunnerConfig) (swarmtypes.Runner, error) {
	return &openaiRunner{client: f.client, cfg: f.cfg, runCfg: cfg}, nil
}

type openaiRunner struct {
	client  *openai.Client
	cfg     OpenAIConfig
	runCfg  swarmtypes.RunnerConfig
	stopped bool
}

func (r *openaiRunner) Stop() { r.stopped = true }

func (r *openaiRunner) Run(ctx context.Context) (swarmtypes.SubResult, error) {
	subID := r.runCfg.SessionID
	if r.stopped {
		return swarmtypes.SubResult{Success: false, Error: "cancelled", SubID: subID}, nil
	}

	resp, err := r.complete(ctx)
	if err != nil {
		return swarmtypes.SubResult{Success: false, Error: err.Error(), SubID: subID, Turns: 1}, nil
	}

	var text string
	if len(resp.Choices) > 0 {
		text = resp.Choices[0].Message.Content
	}

	return swarmtypes.SubResult{
		Success:    true,
		Result:     text,
		Turns:      1,
		TokensUsed: resp.Usage.TotalTokens,
		SubID:      subID,
	}, nil
}

func (r *openaiRunner) complete(ctx context.Context) (openai.ChatCompletionResponse, error) {
	req := openai.ChatCompletionRequest{
		Model:     r.cfg.DefaultModel,
		MaxTokens: defaultMaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: r.runCfg.Task},
		},
	}

	var resp openai.ChatCompletionResponse
	var err error
	for attempt := 0; attempt <= r.cfg.MaxRetries; attempt++ {
		resp, err = r.client.CreateChatCompletion(ctx, req)
		if err == nil {
			return resp, nil
		}
		if !isRetryableError(err) {
			return openai.ChatCompletionResponse{}, fmt.Errorf("llmrunner: openai request failed: %w", err)
		}
		if attempt < r.cfg.MaxRetries {
			select {
			case <-ctx.Done():
				return openai.ChatCompletionResponse{}, ctx.Err()
			case <-time.After(r.cfg.RetryDelay * time.Duration(attempt+1)):
			}
		}
	}
	return openai.ChatCompletionResponse{}, fmt.Errorf("llmrunner: openai max retries exceeded: %w", err)
}
