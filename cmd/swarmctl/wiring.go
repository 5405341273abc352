package main

import (
	"fmt"
	"log/slog"

	"github.com/swarmcore/swarmcore/internal/aggregator"
	"github.com/swarmcore/swarmcore/internal/critic"
	"github.com/swarmcore/swarmcore/internal/dispatcher"
	"github.com/swarmcore/swarmcore/internal/graphbuilder"
	"github.com/swarmcore/swarmcore/internal/hooks"
	"github.com/swarmcore/swarmcore/internal/jobstore"
	"github.com/swarmcore/swarmcore/internal/llmrunner"
	"github.com/swarmcore/swarmcore/internal/postback"
	"github.com/swarmcore/swarmcore/internal/subagentmgr"
	"github.com/swarmcore/swarmcore/internal/swarmconfig"
	"github.com/swarmcore/swarmcore/internal/swarmcoord"
	"github.com/swarmcore/swarmcore/internal/swarmstatus"
	"github.com/swarmcore/swarmcore/internal/swarmtypes"
	"github.com/swarmcore/swarmcore/internal/toolpolicy"
)

// buildRunnerFactory selects a swarmtypes.RunnerFactory from cfg.Providers.
// "scripted" is always available and requires no credentials; it's the
// default so swarmctl works out of the box without API keys configured.
func buildRunnerFactory(cfg *swarmconfig.Config) (swarmtypes.RunnerFactory, error) {
	switch cfg.Providers.Default {
	case "anthropic":
		return llmrunner.NewAnthropicFactory(llmrunner.AnthropicConfig{
			APIKey:       cfg.Providers.AnthropicAPIKey,
			DefaultModel: cfg.Providers.AnthropicModel,
		})
	case "openai":
		return llmrunner.NewOpenAIFactory(llmrunner.OpenAIConfig{
			APIKey:       cfg.Providers.OpenAIAPIKey,
			DefaultModel: cfg.Providers.OpenAIModel,
		})
	case "scripted", "":
		return llmrunner.NewScriptedFactory(func(task string) swarmtypes.SubResult {
			return swarmtypes.SubResult{Success: true, Result: fmt.Sprintf("scripted result for: %s", task)}
		}), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Providers.Default)
	}
}

// buildCoordinator assembles a swarmcoord.Coordinator and jobstore.Store
// from one swarmconfig.Config, wiring every collaborator package the
// coordinator depends on.
func buildCoordinator(cfg *swarmconfig.Config, logger *slog.Logger) (*swarmcoord.Coordinator, jobstore.Store, error) {
	factory, err := buildRunnerFactory(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("build runner factory: %w", err)
	}

	store, err := jobstore.Open(cfg.Store.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("open job store: %w", err)
	}

	spawner := subagentmgr.New(subagentmgr.Config{
		MaxConcurrent: cfg.MaxConcurrent,
	}, factory, toolpolicy.NewResolver(), hooks.NewChain(logger), logger)

	builder := graphbuilder.NewBuilder(graphbuilder.Config{
		MaxTasks:        cfg.MaxTasks,
		InsertCritics:   cfg.EnableCritic,
		InsertAggregate: true,
	})

	status := swarmstatus.New(swarmstatus.Config{})
	aggr := aggregator.New()
	crit := critic.New(critic.Config{}, spawner)
	pb := postback.New(postback.Config{})

	coordCfg := swarmcoord.Config{
		Enabled:             cfg.Enabled,
		MaxConcurrent:       cfg.MaxConcurrent,
		MaxTasks:            cfg.MaxTasks,
		AutoApprove:         cfg.AutoApprove,
		EnableCritic:        cfg.EnableCritic,
		MaxCriticIterations: cfg.MaxCriticIterations,
		TokenBudget:         cfg.TokenBudget,
		SwarmTimeout:        cfg.SwarmTimeout,
		DispatcherConfig:    dispatcher.Config{MaxConcurrent: cfg.MaxConcurrent},
		EnableSharedMemory:  cfg.EnableSharedMemory,
		SharedMemoryBuffer:  cfg.SharedMemoryBuffer,
	}

	events := func(ev swarmcoord.CoordinatorEvent) {
		logger.Info("swarm event", "swarmId", ev.SwarmID, "phase", ev.Phase, "message", ev.Message)
	}

	coord := swarmcoord.New(coordCfg, spawner, builder, status, aggr, crit, pb, nil, events, logger)
	return coord, store, nil
}
