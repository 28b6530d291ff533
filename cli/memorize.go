package cli

import (
	"errors"
	"fmt"
	"sort"

	"llmmemory/llm"

	"github.com/spf13/cobra"
)

var (
	memorizeText string
	memorizeMeta map[string]string
)

var memorizeCmd = &cobra.Command{
	Use:   "memorize [path...]",
	Short: "Chunk, embed and store documents",
	Long: `Loads every markdown, HTML and text file under each path, splits the
documents into chunks and stores their embeddings. Use --text to memorize a
literal string instead of files.`,
	RunE: runMemorize,
}

func init() {
	memorizeCmd.Flags().StringVarP(&memorizeText, "text", "t", "", "memorize this text")
	memorizeCmd.Flags().StringToStringVarP(&memorizeMeta, "meta", "m", nil, "metadata key=value added to every document")
	rootCmd.AddCommand(memorizeCmd)
}

func runMemorize(cmd *cobra.Command, args []string) error {
	if memorizeText == "" && len(args) == 0 {
		return errors.New("give at least one path or --text")
	}
	ctx := cmd.Context()

	var docs []llm.Document
	if memorizeText != "" {
		docs = append(docs, llm.Document{Content: memorizeText, Metadata: map[string]any{}})
	}
	ld := newLoader()
	for _, path := range args {
		loaded, err := ld.Load(ctx, path)
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
		docs = append(docs, loaded...)
	}
	if len(docs) == 0 {
		cmd.Println("No documents found.")
		return nil
	}
	for i := range docs {
		if docs[i].Metadata == nil {
			docs[i].Metadata = map[string]any{}
		}
		for k, v := range memorizeMeta {
			docs[i].Metadata[k] = v
		}
	}

	m, closeStore, err := openManager(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	stored, err := m.Memorize(ctx, docs)
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(stored))
	for key := range stored {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	cmd.Printf("Memorized %d document(s) into %d chunk(s).\n", len(docs), len(keys))
	for _, key := range keys {
		cmd.Printf("  %s\n", key)
	}
	return nil
}
