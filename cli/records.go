package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var getJSON bool

var getCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Show one stored chunk",
	Args:  cobra.ExactArgs(1),
	RunE:  runGet,
}

var listCmd = &cobra.Command{
	Use:   "list [pattern]",
	Short: "List stored keys",
	Long: `Lists the keys of stored chunks. The optional pattern is a glob matched
against the part after the index prefix, e.g. "2024*" for chunks stored in 2024.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runList,
}

var forgetAll bool

var forgetCmd = &cobra.Command{
	Use:   "forget [key...]",
	Short: "Delete stored chunks",
	Long:  `Deletes the given keys. --all drops the whole index.`,
	RunE:  runForget,
}

func init() {
	getCmd.Flags().BoolVar(&getJSON, "json", false, "output the record as JSON")
	forgetCmd.Flags().BoolVar(&forgetAll, "all", false, "drop every stored chunk and the index")
	rootCmd.AddCommand(getCmd, listCmd, forgetCmd)
}

func runGet(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	m, closeStore, err := openManager(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	rec, err := m.Get(ctx, args[0])
	if err != nil {
		return err
	}
	if getJSON {
		return printJSON(cmd, rec)
	}
	cmd.Println(rec.Content)
	cmd.Println()
	return printJSON(cmd, rec.Metadata)
}

func runList(cmd *cobra.Command, args []string) error {
	pattern := ""
	if len(args) == 1 {
		pattern = args[0]
	}

	ctx := cmd.Context()
	m, closeStore, err := openManager(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	keys, err := m.List(ctx, pattern)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		cmd.Println("No keys found.")
		return nil
	}
	for _, key := range keys {
		cmd.Println(key)
	}
	return nil
}

func runForget(cmd *cobra.Command, args []string) error {
	if !forgetAll && len(args) == 0 {
		return errors.New("give at least one key or --all")
	}

	ctx := cmd.Context()
	m, closeStore, err := openManager(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	if forgetAll {
		if err := m.ForgetAll(ctx); err != nil {
			return fmt.Errorf("failed to drop index: %w", err)
		}
		cmd.Println("Forgot everything.")
		return nil
	}
	for _, key := range args {
		if err := m.Forget(ctx, key); err != nil {
			return fmt.Errorf("failed to forget %s: %w", key, err)
		}
	}
	cmd.Printf("Forgot %d key(s).\n", len(args))
	return nil
}
