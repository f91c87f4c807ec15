package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/raphaelgruber/profiled-go/internal/metrics"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show server runtime statistics",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	snap, err := apiClient.GetStats(ctx)
	if err != nil {
		return fmt.Errorf("get stats: %w", err)
	}

	uptime := time.Duration(snap.UptimeSeconds * float64(time.Second)).Round(time.Second)
	fmt.Printf("Uptime: %s\n\n", uptime)

	fmt.Println("Pipeline:")
	fmt.Printf("  Conversations extracted:  %d\n", snap.Pipeline.Extracted)
	fmt.Printf("  Conversations skipped:    %d\n", snap.Pipeline.Skipped)
	fmt.Printf("  Conversations failed:     %d\n", snap.Pipeline.Failed)
	fmt.Printf("  Duplicate attempts:       %d\n", snap.Pipeline.DuplicateAttempts)
	fmt.Printf("  Jobs completed:           %d\n", snap.Pipeline.JobsCompleted)
	fmt.Printf("  Jobs failed:              %d\n", snap.Pipeline.JobsFailed)

	printOp := func(name string, op *metrics.OperationSnapshot) {
		if op == nil {
			return
		}
		fmt.Printf("\n%s:\n", name)
		fmt.Printf("  Calls:    %d\n", op.Count)
		fmt.Printf("  Avg time: %.1fms (min %dms, max %dms)\n", op.AvgTimeMs, op.MinTimeMs, op.MaxTimeMs)
		if op.TotalInputTokens != nil && op.TotalOutputTokens != nil {
			fmt.Printf("  Tokens:   %d in / %d out (estimated)\n", *op.TotalInputTokens, *op.TotalOutputTokens)
		}
	}

	printOp("LLM extraction", snap.LLMExtract)
	printOp("LLM merge", snap.LLMMerge)
	printOp("LLM summary", snap.LLMSummary)
	printOp("Database", snap.DBQuery)

	return nil
}
