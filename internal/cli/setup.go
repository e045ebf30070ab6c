package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/toolmemory/sleepmem-go/pkg/agent"
)

func init() {
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Create the sleep-enabled agent and save its reference",
		Run:   runSetup,
	}

	cmd.Flags().String("name", "sleepmem-research-agent", "Agent name")
	cmd.Flags().String("human", "The user is a developer building and researching software.", "Seed for the human memory block")
	cmd.Flags().String("persona", "A thoughtful research assistant that consolidates knowledge while idle.", "Seed for the persona memory block")
	cmd.Flags().String("model", "openai/gpt-4o-mini", "LLM handle for the agent")
	cmd.Flags().String("embedding", "openai/text-embedding-3-small", "Embedding handle for the agent")

	RootCmd.AddCommand(cmd)
}

func runSetup(cmd *cobra.Command, args []string) {
	log := logger()
	cfg := loadConfig()

	name, _ := cmd.Flags().GetString("name")
	human, _ := cmd.Flags().GetString("human")
	persona, _ := cmd.Flags().GetString("persona")
	model, _ := cmd.Flags().GetString("model")
	embedding, _ := cmd.Flags().GetString("embedding")

	ref, err := agent.Setup(cmd.Context(), newAgentClient(cfg), &agent.SetupConfig{
		Name:      name,
		Human:     human,
		Persona:   persona,
		Model:     model,
		Embedding: embedding,
	}, log)
	if err != nil {
		exitErr("setup agent", err)
	}

	if err := ref.Save(cfg.AgentConfigPath); err != nil {
		exitErr("save agent reference", err)
	}

	fmt.Printf("Agent %s ready (group %s, sleep frequency %d). Reference saved to %s.\n",
		ref.AgentID, ref.GroupID, ref.SleepTimeFrequency, cfg.AgentConfigPath)
}
