// Package cli is the command line front end: memorize documents, query
// them and chat over them.
package cli

import (
	"context"
	"log/slog"

	"llmmemory/config"

	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool

	// set by loadConfig before any command runs
	cfg    config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "llmmemory",
	Short: "Long-term memory for LLM conversations",
	Long: `Memorizes documents as embedded chunks in a vector store (redis, pgvector or chromem)
and answers questions over them with retrieval-augmented prompts or a tool-using agent.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (default $"+config.EnvConfigPath+")")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")
}

// Execute runs the root command
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func loadConfig(cmd *cobra.Command, args []string) error {
	c, err := config.Load(configPath)
	if err != nil {
		return err
	}
	level, _ := c.Level()
	if verbose {
		level = slog.LevelDebug
	}
	cfg = c
	logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return nil
}
