package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print memory store statistics",
		Run:   runStats,
	}

	RootCmd.AddCommand(cmd)
}

func runStats(cmd *cobra.Command, args []string) {
	log := logger()
	cfg := loadConfig()

	ctx := cmd.Context()
	store := openStore(ctx, cfg, log)
	defer func() { _ = store.Close() }()

	stats, err := store.Stats(ctx)
	if err != nil {
		exitErr("read store stats", err)
	}

	b, _ := json.MarshalIndent(stats, "", "  ")
	fmt.Println(string(b))
}
