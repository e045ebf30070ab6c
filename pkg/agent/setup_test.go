package agent_test

import (
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolmemory/sleepmem-go/pkg/agent"
)

func TestSetupNormalizesSleepFrequency(t *testing.T) {
	var patchedGroup string
	var patchBody map[string]interface{}

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/agents":
			var body agent.CreateAgentRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "research-agent", body.Name)
			assert.True(t, body.EnableSleeptime)
			require.Len(t, body.MemoryBlocks, 2)
			assert.Equal(t, "human", body.MemoryBlocks[0].Label)
			assert.LessOrEqual(t, len(body.MemoryBlocks[0].Value), 5000)

			freq := 5
			_ = json.NewEncoder(w).Encode(agent.Agent{
				ID:        "agent-1",
				Name:      body.Name,
				AgentType: "sleeptime_agent",
				MultiAgentGroup: &agent.Group{
					ID:                      "group-9",
					SleepTimeAgentFrequency: &freq,
				},
			})

		case r.Method == http.MethodPatch && strings.HasPrefix(r.URL.Path, "/groups/"):
			patchedGroup = strings.TrimPrefix(r.URL.Path, "/groups/")
			require.NoError(t, json.NewDecoder(r.Body).Decode(&patchBody))

			freq := 2
			_ = json.NewEncoder(w).Encode(agent.Group{
				ID:                      patchedGroup,
				SleepTimeAgentFrequency: &freq,
			})

		default:
			http.NotFound(w, r)
		}
	}))

	ref, err := agent.Setup(context.Background(), client, &agent.SetupConfig{
		Name:    "research-agent",
		Human:   strings.Repeat("h", 6000),
		Persona: "a research assistant",
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, "group-9", patchedGroup)
	managerConfig, ok := patchBody["manager_config"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(2), managerConfig["sleep_time_agent_frequency"])

	assert.Equal(t, "agent-1", ref.AgentID)
	assert.Equal(t, "group-9", ref.GroupID)
	assert.Equal(t, 2, ref.SleepTimeFrequency)
}

func TestSetupCapsBlocksByCharacter(t *testing.T) {
	var gotHuman string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body agent.CreateAgentRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.MemoryBlocks, 2)
		gotHuman = body.MemoryBlocks[0].Value

		freq := 2
		_ = json.NewEncoder(w).Encode(agent.Agent{
			ID:   "agent-1",
			Name: body.Name,
			MultiAgentGroup: &agent.Group{
				ID:                      "group-9",
				SleepTimeAgentFrequency: &freq,
			},
		})
	}))

	_, err := agent.Setup(context.Background(), client, &agent.SetupConfig{
		Name:    "research-agent",
		Human:   strings.Repeat("日", 6000),
		Persona: "a research assistant",
	}, nil)
	require.NoError(t, err)

	// The limit counts characters, so 5000 CJK runes survive despite being
	// 15000 bytes, and the cut lands on a rune boundary.
	assert.Equal(t, strings.Repeat("日", 5000), gotHuman)
	assert.True(t, utf8.ValidString(gotHuman))
}

func TestSetupSkipsModifyWhenFrequencyAlreadyTarget(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPatch {
			t.Fatal("group should not be modified when frequency is already 2")
		}

		freq := 2
		_ = json.NewEncoder(w).Encode(agent.Agent{
			ID:   "agent-1",
			Name: "research-agent",
			MultiAgentGroup: &agent.Group{
				ID:                      "group-9",
				SleepTimeAgentFrequency: &freq,
			},
		})
	}))

	ref, err := agent.Setup(context.Background(), client, &agent.SetupConfig{Name: "research-agent"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, ref.SleepTimeFrequency)
}

func TestRefRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent_config.json")

	ref := &agent.Ref{
		AgentID:            "agent-1",
		GroupID:            "group-9",
		AgentType:          "sleeptime_agent",
		SleepTimeFrequency: 2,
	}
	require.NoError(t, ref.Save(path))

	loaded, err := agent.LoadRef(path)
	require.NoError(t, err)
	assert.Equal(t, ref, loaded)
}

func TestLoadRefMissingFile(t *testing.T) {
	_, err := agent.LoadRef(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
}

func TestLoadRefRequiresAgentID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent_config.json")
	require.NoError(t, (&agent.Ref{GroupID: "group-9"}).Save(path))

	_, err := agent.LoadRef(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "agent_id")
}
