package agent_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolmemory/sleepmem-go/pkg/agent"
	"github.com/toolmemory/sleepmem-go/pkg/embedder"
	"github.com/toolmemory/sleepmem-go/pkg/memory"
	"github.com/toolmemory/sleepmem-go/pkg/storage"
)

type stubProvider struct{}

func (stubProvider) Embed(_ context.Context, _ string, _ embedder.InputType) ([]float64, error) {
	return []float64{1, 0, 0}, nil
}

func (p stubProvider) EmbedBatch(ctx context.Context, texts []string, inputType embedder.InputType) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i], _ = p.Embed(ctx, texts[i], inputType)
	}
	return out, nil
}

func (stubProvider) Model() string   { return "stub-model" }
func (stubProvider) Dimensions() int { return 3 }
func (stubProvider) Close() error    { return nil }

type recordingBackend struct {
	records []*storage.Record
}

func (b *recordingBackend) Insert(_ context.Context, record *storage.Record) (string, error) {
	b.records = append(b.records, record)
	return "id", nil
}

func (b *recordingBackend) VectorSearch(_ context.Context, _ []float64, _ int) ([]*storage.SearchResult, error) {
	return nil, nil
}

func (b *recordingBackend) TextSearch(_ context.Context, _ string, _ int) ([]*storage.SearchResult, error) {
	return nil, nil
}

func (b *recordingBackend) Stats(_ context.Context) (*storage.Stats, error) {
	return &storage.Stats{TotalRecords: int64(len(b.records))}, nil
}

func (b *recordingBackend) Close() error { return nil }

func (b *recordingBackend) bySource(source string) []*storage.Record {
	var out []*storage.Record
	for _, r := range b.records {
		if r.Metadata["source"] == source {
			out = append(out, r)
		}
	}
	return out
}

// lettaFake serves the endpoints SyncAll hits. Setting a fail flag makes that
// endpoint return 500. The groups endpoint reports frequency 4 while the
// group embedded in the agent payload says 2, so tests can tell which one a
// sync read.
type lettaFake struct {
	failBlocks   bool
	failMessages bool
	failAgent    bool
	failGroup    bool
	emptyName    bool
}

func (f *lettaFake) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/agents/agent-1/core-memory/blocks":
		if f.failBlocks {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode([]map[string]interface{}{
			{"label": "human", "value": "The user is a Go developer."},
			{"label": "persona", "value": "A research assistant."},
			{"label": "scratch", "value": ""},
		})
	case "/agents/agent-1/messages":
		if f.failMessages {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		now := time.Now().UTC().Format(time.RFC3339)
		_ = json.NewEncoder(w).Encode([]map[string]interface{}{
			{"id": "m1", "message_type": "user_message", "content": "how do channels work?", "created_at": now},
			{"id": "m2", "message_type": "reasoning_message", "content": ""},
			{"id": "m3", "message_type": "assistant_message", "content": "They block until both sides are ready.", "created_at": now},
			{"id": "m4", "message_type": "tool_call_message", "content": "searching archival memory", "created_at": now,
				"tool_call": map[string]interface{}{
					"name":         "archival_memory_search",
					"arguments":    `{"query":"channels"}`,
					"tool_call_id": "call-7",
				}},
		})
	case "/agents/agent-1":
		if f.failAgent {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		name := "research-agent"
		if f.emptyName {
			name = ""
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":          "agent-1",
			"name":        name,
			"description": "a sleep-time researcher",
			"multi_agent_group": map[string]interface{}{
				"id":                         "group-9",
				"sleep_time_agent_frequency": 2,
			},
		})
	case "/groups/group-9":
		if f.failGroup {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":                         "group-9",
			"manager_type":               "sleeptime",
			"sleep_time_agent_frequency": 4,
		})
	default:
		http.NotFound(w, r)
	}
}

func newSynchronizer(t *testing.T, fake *lettaFake) (*agent.Synchronizer, *recordingBackend) {
	t.Helper()

	client := newTestClient(t, fake)
	backend := &recordingBackend{}
	store := memory.NewStore(backend, stubProvider{}, nil)

	ref := &agent.Ref{AgentID: "agent-1", GroupID: "group-9"}
	return agent.NewSynchronizer(client, store, ref, nil), backend
}

func TestSyncAllImportsAllCategories(t *testing.T) {
	sync, backend := newSynchronizer(t, &lettaFake{})

	summary := sync.SyncAll(context.Background(), 0)

	assert.Equal(t, 2, summary.CoreBlocks)
	assert.Equal(t, 3, summary.ChatMessages)
	// name, description, sleep_frequency (no system prompt in the fake)
	assert.Equal(t, 3, summary.StateItems)
	assert.Equal(t, 8, summary.Total)
	assert.Greater(t, summary.Duration, time.Duration(0))
	require.NotNil(t, summary.StoreStats)
	assert.Equal(t, int64(8), summary.StoreStats.TotalRecords)

	core := backend.bySource(agent.SourceCoreMemory)
	require.Len(t, core, 2)
	assert.Equal(t, "human", core[0].Metadata["type"])

	chat := backend.bySource(agent.SourceChatHistory)
	require.Len(t, chat, 3)
	assert.Equal(t, "user_message", chat[0].Metadata["role"])
	assert.Equal(t, "m1", chat[0].Metadata["message_id"])
}

func TestSyncRecordsCarryAgentAndGroupIDs(t *testing.T) {
	sync, backend := newSynchronizer(t, &lettaFake{})

	sync.SyncAll(context.Background(), 0)

	require.NotEmpty(t, backend.records)
	for _, record := range backend.records {
		assert.Equal(t, "agent-1", record.Metadata["agent_id"])
		assert.Equal(t, "group-9", record.Metadata["group_id"])
	}
}

func TestSyncChatHistoryKeepsToolCallMetadata(t *testing.T) {
	sync, backend := newSynchronizer(t, &lettaFake{})

	sync.SyncAll(context.Background(), 0)

	chat := backend.bySource(agent.SourceChatHistory)
	require.Len(t, chat, 3)

	toolCall, ok := chat[2].Metadata["tool_call"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "archival_memory_search", toolCall["name"])
	assert.Equal(t, `{"query":"channels"}`, toolCall["arguments"])
	assert.Equal(t, "call-7", toolCall["tool_call_id"])

	// Non-tool messages carry no tool metadata.
	assert.NotContains(t, chat[0].Metadata, "tool_call")
}

func TestSyncAgentStateReadsFrequencyFromGroup(t *testing.T) {
	sync, backend := newSynchronizer(t, &lettaFake{})

	sync.SyncAll(context.Background(), 0)

	state := backend.bySource(agent.SourceAgentState)
	require.Len(t, state, 3)
	assert.Equal(t, "Sleep-time agent frequency: 4", state[2].Text)
}

func TestSyncAgentStateFallsBackToEmbeddedGroup(t *testing.T) {
	sync, backend := newSynchronizer(t, &lettaFake{failGroup: true})

	sync.SyncAll(context.Background(), 0)

	state := backend.bySource(agent.SourceAgentState)
	require.Len(t, state, 3)
	assert.Equal(t, "Sleep-time agent frequency: 2", state[2].Text)
}

func TestSyncAgentStateSkipsEmptyName(t *testing.T) {
	sync, backend := newSynchronizer(t, &lettaFake{emptyName: true})

	summary := sync.SyncAll(context.Background(), 0)

	assert.Equal(t, 2, summary.StateItems)
	for _, record := range backend.bySource(agent.SourceAgentState) {
		assert.NotEqual(t, "name", record.Metadata["type"])
	}
}

func TestSyncAllCategoryFailureIsIsolated(t *testing.T) {
	sync, backend := newSynchronizer(t, &lettaFake{failMessages: true})

	summary := sync.SyncAll(context.Background(), 0)

	assert.Equal(t, 2, summary.CoreBlocks)
	assert.Equal(t, 0, summary.ChatMessages)
	assert.Equal(t, 3, summary.StateItems)
	assert.Equal(t, 5, summary.Total)

	assert.Empty(t, backend.bySource(agent.SourceChatHistory))
	assert.NotEmpty(t, backend.bySource(agent.SourceCoreMemory))
	assert.NotEmpty(t, backend.bySource(agent.SourceAgentState))
}

func TestSyncAllAllCategoriesFail(t *testing.T) {
	sync, backend := newSynchronizer(t, &lettaFake{failBlocks: true, failMessages: true, failAgent: true})

	summary := sync.SyncAll(context.Background(), 0)

	assert.Equal(t, 0, summary.Total)
	assert.Empty(t, backend.records)
}
