// Package agent provides the Letta platform client: the message bridge, the
// agent-to-store synchronizer, and first-time agent setup.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrCommunication indicates a transport or API failure talking to the agent
// platform. Bridge calls are not retried.
var ErrCommunication = errors.New("agent communication error")

const (
	defaultBaseURL = "https://api.letta.com/v1"
	defaultTimeout = 60 * time.Second
)

// Agent describes a platform agent. Description and System are optional in
// the API response and are nil when absent.
type Agent struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	AgentType       string  `json:"agent_type,omitempty"`
	Description     *string `json:"description,omitempty"`
	System          *string `json:"system,omitempty"`
	MultiAgentGroup *Group  `json:"multi_agent_group,omitempty"`
}

// Group is a multi-agent group. SleepTimeAgentFrequency is nil when the
// group has no sleep-time schedule.
type Group struct {
	ID                      string `json:"id"`
	ManagerType             string `json:"manager_type,omitempty"`
	SleepTimeAgentFrequency *int   `json:"sleep_time_agent_frequency,omitempty"`
}

// Block is a core memory block.
type Block struct {
	Label string `json:"label"`
	Value string `json:"value"`
	Limit int    `json:"limit,omitempty"`
}

// Message is one message in an agent conversation. Text is empty for
// non-textual message types (tool calls, reasoning steps). ToolName is set
// only on tool return messages; ToolCall only on tool call messages.
type Message struct {
	ID          string     `json:"id"`
	MessageType string     `json:"message_type"`
	Text        string     `json:"content,omitempty"`
	ToolName    *string    `json:"name,omitempty"`
	ToolCall    *ToolCall  `json:"tool_call,omitempty"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
}

// ToolCall is the invocation payload attached to tool call messages.
type ToolCall struct {
	Name       string `json:"name,omitempty"`
	Arguments  string `json:"arguments,omitempty"`
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// CreateAgentRequest describes a new agent.
type CreateAgentRequest struct {
	Name            string  `json:"name"`
	MemoryBlocks    []Block `json:"memory_blocks,omitempty"`
	Model           string  `json:"model,omitempty"`
	Embedding       string  `json:"embedding,omitempty"`
	EnableSleeptime bool    `json:"enable_sleeptime,omitempty"`
}

// Client is a Letta platform API client.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
}

// Config contains configuration for creating a platform client.
type Config struct {
	// Token is the API bearer token (required).
	Token string

	// BaseURL overrides the API endpoint. Used by tests.
	BaseURL string

	// HTTPClient overrides the default client with its 60s timeout.
	HTTPClient *http.Client
}

// NewClient creates a platform client.
func NewClient(cfg *Config) (*Client, error) {
	if cfg.Token == "" {
		return nil, errors.New("NewAgentClient: API token is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}

	return &Client{
		token:      cfg.Token,
		baseURL:    baseURL,
		httpClient: httpClient,
	}, nil
}

// CreateAgent creates a new agent.
func (c *Client) CreateAgent(ctx context.Context, req *CreateAgentRequest) (*Agent, error) {
	var agent Agent
	if err := c.do(ctx, http.MethodPost, "/agents", req, &agent); err != nil {
		return nil, fmt.Errorf("CreateAgent: %w", err)
	}
	return &agent, nil
}

// RetrieveAgent fetches an agent by id.
func (c *Client) RetrieveAgent(ctx context.Context, agentID string) (*Agent, error) {
	var agent Agent
	if err := c.do(ctx, http.MethodGet, "/agents/"+url.PathEscape(agentID), nil, &agent); err != nil {
		return nil, fmt.Errorf("RetrieveAgent: %w", err)
	}
	return &agent, nil
}

// SendMessage sends one user message and returns the agent's response
// messages in arrival order.
func (c *Client) SendMessage(ctx context.Context, agentID, text string) ([]Message, error) {
	req := struct {
		Messages []map[string]string `json:"messages"`
	}{
		Messages: []map[string]string{
			{"role": "user", "content": text},
		},
	}

	var resp struct {
		Messages []Message `json:"messages"`
	}
	path := "/agents/" + url.PathEscape(agentID) + "/messages"
	if err := c.do(ctx, http.MethodPost, path, req, &resp); err != nil {
		return nil, fmt.Errorf("SendMessage: %w", err)
	}
	return resp.Messages, nil
}

// ListMessages fetches the agent's most recent conversation messages.
func (c *Client) ListMessages(ctx context.Context, agentID string, limit int) ([]Message, error) {
	path := "/agents/" + url.PathEscape(agentID) + "/messages?limit=" + strconv.Itoa(limit)

	var messages []Message
	if err := c.do(ctx, http.MethodGet, path, nil, &messages); err != nil {
		return nil, fmt.Errorf("ListMessages: %w", err)
	}
	return messages, nil
}

// ListBlocks fetches the agent's core memory blocks.
func (c *Client) ListBlocks(ctx context.Context, agentID string) ([]Block, error) {
	path := "/agents/" + url.PathEscape(agentID) + "/core-memory/blocks"

	var blocks []Block
	if err := c.do(ctx, http.MethodGet, path, nil, &blocks); err != nil {
		return nil, fmt.Errorf("ListBlocks: %w", err)
	}
	return blocks, nil
}

// RetrieveGroup fetches a multi-agent group by id.
func (c *Client) RetrieveGroup(ctx context.Context, groupID string) (*Group, error) {
	var group Group
	if err := c.do(ctx, http.MethodGet, "/groups/"+url.PathEscape(groupID), nil, &group); err != nil {
		return nil, fmt.Errorf("RetrieveGroup: %w", err)
	}
	return &group, nil
}

// ModifyGroup updates a group's sleep-time frequency.
func (c *Client) ModifyGroup(ctx context.Context, groupID string, frequency int) (*Group, error) {
	req := struct {
		ManagerConfig map[string]interface{} `json:"manager_config"`
	}{
		ManagerConfig: map[string]interface{}{
			"manager_type":               "sleeptime",
			"sleep_time_agent_frequency": frequency,
		},
	}

	var group Group
	if err := c.do(ctx, http.MethodPatch, "/groups/"+url.PathEscape(groupID), req, &group); err != nil {
		return nil, fmt.Errorf("ModifyGroup: %w", err)
	}
	return &group, nil
}

// Ask sends the prompt to the agent and joins the non-empty response texts
// space-separated in arrival order. An empty join means the agent produced
// no textual reply and returns ("", nil).
func (c *Client) Ask(ctx context.Context, agentID, prompt string) (string, error) {
	messages, err := c.SendMessage(ctx, agentID, prompt)
	if err != nil {
		return "", err
	}

	var parts []string
	for _, m := range messages {
		if text := strings.TrimSpace(m.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " "), nil
}

// do sends a JSON request and decodes the response. Transport failures and
// non-2xx statuses wrap ErrCommunication.
func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCommunication, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrCommunication, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d: %s", ErrCommunication, resp.StatusCode, string(respBody))
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("%w: decode response: %v", ErrCommunication, err)
		}
	}
	return nil
}
