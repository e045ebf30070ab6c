package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/toolmemory/sleepmem-go/pkg/memory"
	"github.com/toolmemory/sleepmem-go/pkg/storage"
)

// Source tags for synchronized records.
const (
	SourceCoreMemory  = "letta_sleep_core_memory"
	SourceChatHistory = "letta_sleep_chat_history"
	SourceAgentState  = "letta_sleep_agent_state"
)

// DefaultSyncLimit is the number of chat messages fetched when the caller
// does not specify a limit.
const DefaultSyncLimit = 100

// Summary reports what a sync run imported.
type Summary struct {
	CoreBlocks   int
	ChatMessages int
	StateItems   int
	Total        int
	Duration     time.Duration
	StoreStats   *storage.Stats
}

// Synchronizer copies agent-side context (core memory, chat history, agent
// state) into the memory store.
type Synchronizer struct {
	client *Client
	store  *memory.Store
	ref    *Ref
	logger *slog.Logger
}

// NewSynchronizer creates a synchronizer for the agent described by ref.
func NewSynchronizer(client *Client, store *memory.Store, ref *Ref, logger *slog.Logger) *Synchronizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synchronizer{
		client: client,
		store:  store,
		ref:    ref,
		logger: logger,
	}
}

// recordMetadata starts every synced record's metadata with the source tag and
// the owning agent and group ids.
func (s *Synchronizer) recordMetadata(source string) map[string]interface{} {
	metadata := map[string]interface{}{
		"source":   source,
		"agent_id": s.ref.AgentID,
	}
	if s.ref.GroupID != "" {
		metadata["group_id"] = s.ref.GroupID
	}
	return metadata
}

// SyncAll runs the three sync categories. Each category is independent: a
// failure is logged and zeroes only its own count, the others still run.
func (s *Synchronizer) SyncAll(ctx context.Context, limit int) *Summary {
	if limit <= 0 {
		limit = DefaultSyncLimit
	}

	start := time.Now()
	summary := &Summary{}

	count, err := s.syncCoreMemory(ctx)
	if err != nil {
		s.logger.Error("core memory sync failed", slog.String("error", err.Error()))
	} else {
		summary.CoreBlocks = count
	}

	count, err = s.syncChatHistory(ctx, limit)
	if err != nil {
		s.logger.Error("chat history sync failed", slog.String("error", err.Error()))
	} else {
		summary.ChatMessages = count
	}

	count, err = s.syncAgentState(ctx)
	if err != nil {
		s.logger.Error("agent state sync failed", slog.String("error", err.Error()))
	} else {
		summary.StateItems = count
	}

	summary.Total = summary.CoreBlocks + summary.ChatMessages + summary.StateItems
	summary.Duration = time.Since(start)

	if stats, err := s.store.Stats(ctx); err == nil {
		summary.StoreStats = stats
	} else {
		s.logger.Warn("store stats unavailable after sync", slog.String("error", err.Error()))
	}

	return summary
}

// syncCoreMemory imports each non-empty core memory block.
func (s *Synchronizer) syncCoreMemory(ctx context.Context) (int, error) {
	blocks, err := s.client.ListBlocks(ctx, s.ref.AgentID)
	if err != nil {
		return 0, err
	}

	syncedAt := time.Now().UTC().Format(time.RFC3339)
	count := 0
	for _, block := range blocks {
		if block.Value == "" {
			continue
		}

		metadata := s.recordMetadata(SourceCoreMemory)
		metadata["type"] = block.Label
		metadata["synced_at"] = syncedAt

		_, err := s.store.Add(ctx, block.Value, metadata)
		if err != nil {
			s.logger.Warn("core memory block skipped",
				slog.String("label", block.Label),
				slog.String("error", err.Error()),
			)
			continue
		}
		count++
	}
	return count, nil
}

// syncChatHistory imports recent conversation messages, skipping blank texts.
func (s *Synchronizer) syncChatHistory(ctx context.Context, limit int) (int, error) {
	messages, err := s.client.ListMessages(ctx, s.ref.AgentID, limit)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, msg := range messages {
		if msg.Text == "" {
			continue
		}

		metadata := s.recordMetadata(SourceChatHistory)
		metadata["role"] = msg.MessageType
		metadata["message_id"] = msg.ID
		if msg.CreatedAt != nil {
			metadata["timestamp"] = msg.CreatedAt.UTC().Format(time.RFC3339)
		}
		if msg.ToolName != nil {
			metadata["tool"] = *msg.ToolName
		}
		if msg.ToolCall != nil {
			metadata["tool_call"] = map[string]interface{}{
				"name":         msg.ToolCall.Name,
				"arguments":    msg.ToolCall.Arguments,
				"tool_call_id": msg.ToolCall.ToolCallID,
			}
		}

		_, err := s.store.Add(ctx, msg.Text, metadata)
		if err != nil {
			s.logger.Warn("chat message skipped",
				slog.String("message_id", msg.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		count++
	}
	return count, nil
}

// syncAgentState imports the agent's name, description, system prompt, and
// sleep frequency when each is present.
func (s *Synchronizer) syncAgentState(ctx context.Context) (int, error) {
	agent, err := s.client.RetrieveAgent(ctx, s.ref.AgentID)
	if err != nil {
		return 0, err
	}

	type stateItem struct {
		kind string
		text string
	}

	var items []stateItem
	if agent.Name != "" {
		items = append(items, stateItem{"name", "Agent name: " + agent.Name})
	}
	if agent.Description != nil && *agent.Description != "" {
		items = append(items, stateItem{"description", "Agent description: " + *agent.Description})
	}
	if agent.System != nil && *agent.System != "" {
		items = append(items, stateItem{"system", "Agent system prompt: " + *agent.System})
	}
	if group := s.currentGroup(ctx, agent); group != nil && group.SleepTimeAgentFrequency != nil {
		items = append(items, stateItem{"sleep_frequency", fmt.Sprintf("Sleep-time agent frequency: %d", *group.SleepTimeAgentFrequency)})
	}

	syncedAt := time.Now().UTC().Format(time.RFC3339)
	count := 0
	for _, item := range items {
		metadata := s.recordMetadata(SourceAgentState)
		metadata["type"] = item.kind
		metadata["synced_at"] = syncedAt

		_, err := s.store.Add(ctx, item.text, metadata)
		if err != nil {
			s.logger.Warn("agent state item skipped",
				slog.String("type", item.kind),
				slog.String("error", err.Error()),
			)
			continue
		}
		count++
	}
	return count, nil
}

// currentGroup resolves the agent's multi-agent group. When a group id is
// configured the group is fetched from the groups API so the sleep frequency
// reflects its current value; the group embedded in the agent payload is the
// fallback.
func (s *Synchronizer) currentGroup(ctx context.Context, agent *Agent) *Group {
	if s.ref.GroupID == "" {
		return agent.MultiAgentGroup
	}
	group, err := s.client.RetrieveGroup(ctx, s.ref.GroupID)
	if err != nil {
		s.logger.Warn("group retrieval failed, using agent payload",
			slog.String("group_id", s.ref.GroupID),
			slog.String("error", err.Error()),
		)
		return agent.MultiAgentGroup
	}
	return group
}
