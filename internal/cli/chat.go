package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/toolmemory/sleepmem-go/pkg/core"
)

func init() {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session with the agent",
		Run:   runChat,
	}

	RootCmd.AddCommand(cmd)
}

const chatHelp = `Commands:
  help   show this help
  stats  session and store statistics
  sync   import agent context into the memory store
  clear  clear the screen
  quit   end the session (also: exit, Ctrl-D)

Anything else is sent to the agent.`

func runChat(cmd *cobra.Command, args []string) {
	log := logger()
	cfg := loadConfig()

	ctx := cmd.Context()
	store := openStore(ctx, cfg, log)
	ref := loadAgentRef(cfg)

	session, err := core.NewSession(store, newSearchClient(cfg), newAgentClient(cfg), ref, log)
	if err != nil {
		exitErr("create session", err)
	}
	defer func() {
		printSummary(session)
		if err := session.Close(); err != nil {
			log.Warn("store close failed", "error", err.Error())
		}
	}()

	rl, err := readline.New("you> ")
	if err != nil {
		exitErr("init readline", err)
	}
	defer func() { _ = rl.Close() }()

	fmt.Printf("Connected to agent %s. Type 'help' for commands.\n", ref.AgentID)

	for {
		line, err := rl.Readline()
		if err != nil {
			// Ctrl-C on an empty line or Ctrl-D ends the session
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
				return
			}
			exitErr("read input", err)
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		switch strings.ToLower(input) {
		case "quit", "exit":
			return
		case "help":
			fmt.Println(chatHelp)
		case "clear":
			fmt.Print("\033[H\033[2J")
		case "stats":
			printStats(cmd, session)
		case "sync":
			summary := withSpinner("syncing agent context", func() string {
				return formatSyncSummary(session.Synchronizer().SyncAll(ctx, 0))
			})
			fmt.Println(summary)
		default:
			reply := withSpinner("thinking", func() string {
				return session.ProcessQuery(ctx, input)
			})
			fmt.Printf("agent> %s\n", reply)
		}
	}
}

// withSpinner runs fn with a terminal spinner.
func withSpinner(message string, fn func() string) string {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " " + message + "..."
	s.Start()
	defer s.Stop()

	return fn()
}

func printStats(cmd *cobra.Command, session *core.Session) {
	stats := session.Stats(cmd.Context())

	fmt.Printf("Queries processed: %d\n", stats.QueriesProcessed)
	fmt.Printf("Memory hits:       %d\n", stats.MemoryHits)
	fmt.Printf("Web searches:      %d\n", stats.WebSearches)
	fmt.Printf("Uptime:            %s\n", stats.Uptime.Round(time.Second))

	if stats.StoreStats != nil {
		fmt.Printf("Stored memories:   %d\n", stats.StoreStats.TotalRecords)
		for source, count := range stats.StoreStats.SourceBreakdown {
			fmt.Printf("  %-28s %d\n", source, count)
		}
	}
}

func printSummary(session *core.Session) {
	stats := session.Stats(context.Background())
	fmt.Printf("\nSession ended: %d queries, %d memory hits, %d web searches in %s.\n",
		stats.QueriesProcessed, stats.MemoryHits, stats.WebSearches, stats.Uptime.Round(time.Second))
}
