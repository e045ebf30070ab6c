package agent

import (
	"encoding/json"
	"fmt"
	"os"
)

// DefaultRefPath is where the agent reference is stored.
const DefaultRefPath = "agent_config.json"

// Ref identifies the provisioned agent across runs. Written once by setup
// and read at startup.
type Ref struct {
	AgentID            string `json:"agent_id"`
	GroupID            string `json:"group_id,omitempty"`
	AgentType          string `json:"agent_type,omitempty"`
	SleepTimeFrequency int    `json:"sleep_time_frequency,omitempty"`
}

// LoadRef reads an agent reference from the given path.
func LoadRef(path string) (*Ref, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("LoadRef: %w", err)
	}

	var ref Ref
	if err := json.Unmarshal(data, &ref); err != nil {
		return nil, fmt.Errorf("LoadRef: parse %s: %w", path, err)
	}
	if ref.AgentID == "" {
		return nil, fmt.Errorf("LoadRef: %s: agent_id is missing", path)
	}

	return &ref, nil
}

// Save writes the agent reference to the given path.
func (r *Ref) Save(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("Save: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("Save: %w", err)
	}
	return nil
}
