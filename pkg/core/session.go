package core

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/toolmemory/sleepmem-go/pkg/agent"
	"github.com/toolmemory/sleepmem-go/pkg/memory"
	"github.com/toolmemory/sleepmem-go/pkg/storage"
	"github.com/toolmemory/sleepmem-go/pkg/websearch"
)

// SourceInteraction tags query/answer pairs persisted by the session.
const SourceInteraction = "sleep_agent_interaction"

// SourceWebSearch tags persisted web search payloads.
const SourceWebSearch = "tavily_web_search"

// fallbackReply is returned when the agent produced no textual response.
const fallbackReply = "I apologize, but I couldn't generate a response. Please try again."

// searchTopK is the number of memories retrieved per query.
const searchTopK = 5

// Session runs the retrieval-and-fusion pipeline against one agent.
type Session struct {
	store  *memory.Store
	search *websearch.Client
	agent  *agent.Client
	ref    *agent.Ref
	logger *slog.Logger

	mu               sync.Mutex
	queriesProcessed int
	memoryHits       int
	webSearches      int
	startedAt        time.Time
}

// SessionStats reports session counters alongside store statistics.
type SessionStats struct {
	QueriesProcessed int
	MemoryHits       int
	WebSearches      int
	Uptime           time.Duration
	StoreStats       *storage.Stats
}

// NewSession creates a session. The agent reference must already be
// provisioned (see agent.Setup).
func NewSession(store *memory.Store, search *websearch.Client, agentClient *agent.Client, ref *agent.Ref, logger *slog.Logger) (*Session, error) {
	if ref == nil || ref.AgentID == "" {
		return nil, &SessionError{Op: "NewSession", Err: ErrAgentNotConfigured}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Session{
		store:     store,
		search:    search,
		agent:     agentClient,
		ref:       ref,
		logger:    logger,
		startedAt: time.Now(),
	}, nil
}

// ProcessQuery runs one query through the pipeline and always returns a
// user-facing string: memory retrieval, an optional web search, prompt
// composition, the agent bridge, and interaction persistence. Bridge
// failures surface as an apology carrying the error text.
func (s *Session) ProcessQuery(ctx context.Context, query string) string {
	s.mu.Lock()
	s.queriesProcessed++
	s.mu.Unlock()

	resp := s.store.Search(ctx, query, searchTopK)
	if len(resp.Results) > 0 {
		s.mu.Lock()
		s.memoryHits++
		s.mu.Unlock()
	}
	s.logger.Debug("memory retrieval",
		slog.String("outcome", string(resp.Outcome)),
		slog.Int("results", len(resp.Results)),
	)

	webPayload := ""
	if needsWebSearch(query, len(resp.Results) > 0) {
		webPayload = s.runWebSearch(ctx, query)
	}

	prompt := buildPrompt(query, resp.Results, webPayload)

	reply, err := s.agent.Ask(ctx, s.ref.AgentID, prompt)
	if err != nil {
		s.logger.Error("agent bridge failed", slog.String("error", err.Error()))
		return fmt.Sprintf("I apologize, but I encountered an error processing your request: %v", err)
	}
	if reply == "" {
		return fallbackReply
	}

	s.persistInteraction(ctx, query, reply)
	return reply
}

// runWebSearch executes a web search and persists the payload. Failures are
// logged and never interrupt the query.
func (s *Session) runWebSearch(ctx context.Context, query string) string {
	result, err := s.search.Search(ctx, query, &websearch.SearchOptions{
		MaxResults:    3,
		IncludeAnswer: true,
	})
	if err != nil {
		s.logger.Warn("web search failed", slog.String("error", err.Error()))
		return ""
	}

	s.mu.Lock()
	s.webSearches++
	s.mu.Unlock()

	payload := websearch.FormatForAgent(result)

	_, err = s.store.Add(ctx, truncate(payload, webPersistCap), map[string]interface{}{
		"source":    SourceWebSearch,
		"query":     query,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		s.logger.Warn("web search result not persisted", slog.String("error", err.Error()))
	}

	return payload
}

// persistInteraction stores the query/answer pair. A failure is logged; the
// reply was already produced and still goes to the user.
func (s *Session) persistInteraction(ctx context.Context, query, reply string) {
	text := fmt.Sprintf("Q: %s\nA: %s", query, reply)

	metadata := map[string]interface{}{
		"source":    SourceInteraction,
		"query":     query,
		"agent_id":  s.ref.AgentID,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if s.ref.GroupID != "" {
		metadata["group_id"] = s.ref.GroupID
	}

	_, err := s.store.Add(ctx, text, metadata)
	if err != nil {
		s.logger.Warn("interaction not persisted", slog.String("error", err.Error()))
	}
}

// Stats returns session counters and store statistics. Store stats errors
// leave StoreStats nil rather than failing the call.
func (s *Session) Stats(ctx context.Context) *SessionStats {
	s.mu.Lock()
	stats := &SessionStats{
		QueriesProcessed: s.queriesProcessed,
		MemoryHits:       s.memoryHits,
		WebSearches:      s.webSearches,
		Uptime:           time.Since(s.startedAt),
	}
	s.mu.Unlock()

	storeStats, err := s.store.Stats(ctx)
	if err != nil {
		s.logger.Warn("store stats unavailable", slog.String("error", err.Error()))
	} else {
		stats.StoreStats = storeStats
	}

	return stats
}

// Synchronizer returns a synchronizer bound to this session's agent and
// store.
func (s *Session) Synchronizer() *agent.Synchronizer {
	return agent.NewSynchronizer(s.agent, s.store, s.ref, s.logger)
}

// Close releases the memory store.
func (s *Session) Close() error {
	return s.store.Close()
}
