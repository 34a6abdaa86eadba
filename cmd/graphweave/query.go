package graphweave

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/graphweave/graphweave/pkg/config"
)

var queryCmd = &cobra.Command{
	Use:   "query [text]",
	Short: "Retrieve chunks for a query",
	Long: `Retrieve ranked chunks for a query directly from the command line.

With --contexts, entity context chains are printed instead of chunks.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

var (
	queryContexts bool
	queryKeywords []string
	queryTimeout  time.Duration
)

func init() {
	rootCmd.AddCommand(queryCmd)

	queryCmd.Flags().BoolVar(&queryContexts, "contexts", false, "print entity context chains instead of chunks")
	queryCmd.Flags().StringSliceVar(&queryKeywords, "keyword", nil, "keywords widening entity discovery (repeatable)")
	queryCmd.Flags().DurationVar(&queryTimeout, "timeout", 60*time.Second, "query timeout")
}

func runQuery(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	client, _, err := newClient(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize graphweave: %w", err)
	}
	defer client.Store().Close(context.Background())
	defer client.Vectors().Close()

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	query := strings.Join(args, " ")

	if queryContexts {
		contexts, err := client.EntityContexts(ctx, query, queryKeywords)
		if err != nil {
			return fmt.Errorf("context retrieval failed: %w", err)
		}
		for i, context := range contexts {
			values := make([]string, len(context.Entities))
			for j, entity := range context.Entities {
				values[j] = entity.Entity.Value
			}
			fmt.Printf("%2d. %s\n", i+1, strings.Join(values, " -> "))
		}
		return nil
	}

	matches, err := client.Retrieve(ctx, query)
	if err != nil {
		return fmt.Errorf("retrieval failed: %w", err)
	}
	for i, match := range matches {
		fmt.Printf("%2d. %s  score=%.4f  type=%s  source=%s\n", i+1, match.ChunkID, match.Score, match.SearchType, match.Source)
		if match.Chunk != nil && match.Chunk.Value != "" {
			fmt.Printf("    %s\n", match.Chunk.Value)
		}
	}
	return nil
}
