package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/toolmemory/sleepmem-go/pkg/agent"
)

func init() {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Import agent context into the memory store",
		Run:   runSync,
	}

	cmd.Flags().IntP("limit", "n", 0, "Chat messages to fetch (default 100)")

	RootCmd.AddCommand(cmd)
}

func runSync(cmd *cobra.Command, args []string) {
	log := logger()
	cfg := loadConfig()

	ctx := cmd.Context()
	store := openStore(ctx, cfg, log)
	defer func() { _ = store.Close() }()

	ref := loadAgentRef(cfg)
	limit, _ := cmd.Flags().GetInt("limit")

	sync := agent.NewSynchronizer(newAgentClient(cfg), store, ref, log)
	summary := sync.SyncAll(ctx, limit)

	fmt.Println(formatSyncSummary(summary))
}

func formatSyncSummary(summary *agent.Summary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Synced %d items in %s:\n", summary.Total, summary.Duration.Round(time.Millisecond))
	fmt.Fprintf(&b, "  core memory blocks: %d\n", summary.CoreBlocks)
	fmt.Fprintf(&b, "  chat messages:      %d\n", summary.ChatMessages)
	fmt.Fprintf(&b, "  agent state items:  %d", summary.StateItems)

	if summary.StoreStats != nil {
		fmt.Fprintf(&b, "\nStore now holds %d memories.", summary.StoreStats.TotalRecords)
	}
	return b.String()
}
