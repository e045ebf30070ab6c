// Package cli implements the sleepmem CLI commands.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/toolmemory/sleepmem-go/pkg/agent"
	"github.com/toolmemory/sleepmem-go/pkg/core"
	"github.com/toolmemory/sleepmem-go/pkg/memory"
	"github.com/toolmemory/sleepmem-go/pkg/websearch"
)

var logLevel string

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "sleepmem",
	Short: "Sleep-time agent with persistent vector memory",
	Long:  "Connects a sleep-time conversational agent to a vector-searchable memory store and a web-search provider.",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "info", "Log level: debug, info, warn, error")
}

func logger() *slog.Logger {
	return newLogger(logLevel, os.Stderr)
}

// loadConfig reads and validates the environment configuration. Config
// errors are fatal: the process exits non-zero with a readable message.
func loadConfig() *core.Config {
	cfg, err := core.LoadConfigFromEnv()
	if err != nil {
		exitErr("load configuration", err)
	}
	return cfg
}

func openStore(ctx context.Context, cfg *core.Config, log *slog.Logger) *memory.Store {
	store, err := core.OpenStore(ctx, cfg, log)
	if err != nil {
		exitErr("open memory store", err)
	}
	return store
}

func newAgentClient(cfg *core.Config) *agent.Client {
	client, err := agent.NewClient(&agent.Config{
		Token:   cfg.LettaToken,
		BaseURL: cfg.LettaBaseURL,
	})
	if err != nil {
		exitErr("create agent client", err)
	}
	return client
}

func newSearchClient(cfg *core.Config) *websearch.Client {
	client, err := websearch.NewClient(&websearch.Config{APIKey: cfg.TavilyAPIKey})
	if err != nil {
		exitErr("create search client", err)
	}
	return client
}

func loadAgentRef(cfg *core.Config) *agent.Ref {
	ref, err := agent.LoadRef(cfg.AgentConfigPath)
	if err != nil {
		exitErr("load agent reference (run 'sleepmem setup' first)", err)
	}
	return ref
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
