package agent

import (
	"context"
	"fmt"
	"log/slog"
)

// blockCharLimit is the platform's per-block character limit.
const blockCharLimit = 5000

// targetSleepFrequency is the sleep-time agent frequency the setup converges
// the group to.
const targetSleepFrequency = 2

// SetupConfig describes the agent to provision.
type SetupConfig struct {
	// Name is the agent name (required).
	Name string

	// Human and Persona seed the core memory blocks.
	Human   string
	Persona string

	// Model is the LLM handle (e.g. "openai/gpt-4o-mini").
	Model string

	// Embedding is the embedding handle (e.g. "openai/text-embedding-3-small").
	Embedding string
}

// Setup provisions a sleep-enabled agent: creates it with seeded human and
// persona blocks, reads its multi-agent group, and normalizes the group's
// sleep-time frequency to 2. Returns a Ref describing the new agent.
func Setup(ctx context.Context, client *Client, cfg *SetupConfig, logger *slog.Logger) (*Ref, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Name == "" {
		return nil, fmt.Errorf("Setup: agent name is required")
	}

	created, err := client.CreateAgent(ctx, &CreateAgentRequest{
		Name: cfg.Name,
		MemoryBlocks: []Block{
			{Label: "human", Value: truncateBlock(cfg.Human), Limit: blockCharLimit},
			{Label: "persona", Value: truncateBlock(cfg.Persona), Limit: blockCharLimit},
		},
		Model:           cfg.Model,
		Embedding:       cfg.Embedding,
		EnableSleeptime: true,
	})
	if err != nil {
		return nil, fmt.Errorf("Setup: %w", err)
	}

	logger.Info("agent created",
		slog.String("agent_id", created.ID),
		slog.String("name", created.Name),
	)

	ref := &Ref{
		AgentID:   created.ID,
		AgentType: created.AgentType,
	}

	group := created.MultiAgentGroup
	if group == nil {
		// Some deployments attach the group asynchronously; re-read the agent.
		fetched, err := client.RetrieveAgent(ctx, created.ID)
		if err != nil {
			return nil, fmt.Errorf("Setup: %w", err)
		}
		group = fetched.MultiAgentGroup
	}

	if group == nil {
		logger.Warn("agent has no multi-agent group, sleep frequency not configured",
			slog.String("agent_id", created.ID),
		)
		return ref, nil
	}

	ref.GroupID = group.ID
	ref.SleepTimeFrequency = targetSleepFrequency

	if group.SleepTimeAgentFrequency == nil || *group.SleepTimeAgentFrequency != targetSleepFrequency {
		updated, err := client.ModifyGroup(ctx, group.ID, targetSleepFrequency)
		if err != nil {
			return nil, fmt.Errorf("Setup: %w", err)
		}
		if updated.SleepTimeAgentFrequency != nil {
			ref.SleepTimeFrequency = *updated.SleepTimeAgentFrequency
		}
		logger.Info("sleep frequency normalized",
			slog.String("group_id", group.ID),
			slog.Int("frequency", ref.SleepTimeFrequency),
		)
	}

	return ref, nil
}

// truncateBlock enforces the per-block limit in characters, keeping multi-byte
// runes intact.
func truncateBlock(value string) string {
	if len(value) <= blockCharLimit {
		return value
	}
	runes := []rune(value)
	if len(runes) <= blockCharLimit {
		return value
	}
	return string(runes[:blockCharLimit])
}
