package cli

import (
	"fmt"

	"llmmemory/llm"
	"llmmemory/tui/component/renderer"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

var (
	queryK    int
	queryJSON bool
)

var queryCmd = &cobra.Command{
	Use:   "query [text]",
	Short: "Find the chunks closest to a text",
	Long: `Embeds the text and returns the nearest stored chunks, closest first.
Scores are distances: lower is closer.`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().IntVarP(&queryK, "k", "k", 0, "number of results (default from config)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	m, closeStore, err := openManager(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	results, err := m.Query(ctx, args[0], topK(queryK))
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if queryJSON {
		return printJSON(cmd, results)
	}
	outputResults(cmd, results)
	return nil
}

func outputResults(cmd *cobra.Command, results []llm.SearchResult) {
	if len(results) == 0 {
		cmd.Println("No results found.")
		return
	}

	cmd.Println("Results:")
	cmd.Println()
	for i, r := range results {
		cmd.Printf("  [%d] %s (%.4f)\n", i+1, r.Key, r.Score)
		if src, ok := r.Metadata["file_path"].(string); ok {
			cmd.Printf("      Source: %s\n", src)
		}
		cmd.Printf("      %s\n", renderer.Truncate(r.Content, 200))
		cmd.Println()
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
