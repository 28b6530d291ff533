package cli

import (
	"fmt"
	"os"

	"llmmemory/llm"
	"llmmemory/llm/conversation"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

var promptK int

var promptCmd = &cobra.Command{
	Use:   "prompt [question]",
	Short: "Print the prompt a question would send",
	Long: `Retrieves context for the question and renders the prompt template
without calling a chat provider.`,
	Args: cobra.ExactArgs(1),
	RunE: runPrompt,
}

var (
	askK      int
	askAgent  bool
	askSchema string
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer one question from memory",
	Long: `Answers a question with a retrieval-augmented prompt. --agent lets the
librarian agent search, ingest and manage the knowledge base with tools instead.
--schema asks for the answer restated as JSON matching a JSON schema file.`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	promptCmd.Flags().IntVarP(&promptK, "k", "k", 0, "number of chunks to retrieve (default from config)")
	askCmd.Flags().IntVarP(&askK, "k", "k", 0, "number of chunks to retrieve (default from config)")
	askCmd.Flags().BoolVar(&askAgent, "agent", false, "answer with the tool-using agent")
	askCmd.Flags().StringVar(&askSchema, "schema", "", "JSON schema file for a structured answer")
	askCmd.MarkFlagsMutuallyExclusive("agent", "schema")
	rootCmd.AddCommand(promptCmd, askCmd)
}

func runPrompt(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	m, closeStore, err := openManager(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	wc, err := cfg.ConversationConfig(logger)
	if err != nil {
		return err
	}
	results, err := m.Query(ctx, args[0], topK(promptK))
	if err != nil {
		return err
	}
	prompt, err := conversation.RenderPrompt(wc.Template, map[string]any{
		"related_docs": conversation.DocsVar(results),
		"query_str":    args[0],
	})
	if err != nil {
		return err
	}
	cmd.Println(prompt)
	return nil
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	m, closeStore, err := openManager(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	flush := startTracing(ctx)
	defer flush()

	if askAgent {
		rt, err := newRuntime(ctx, m)
		if err != nil {
			return err
		}
		defer rt.Close()
		answer, err := rt.Run(ctx, args[0])
		if err != nil {
			return err
		}
		cmd.Println(answer)
		return nil
	}

	session, err := newSession(ctx, m, nil, topK(askK))
	if err != nil {
		return err
	}
	if askSchema == "" {
		answer, err := session.Ask(ctx, args[0])
		if err != nil {
			return err
		}
		cmd.Println(answer)
		return nil
	}

	schema, err := readSchema(askSchema)
	if err != nil {
		return err
	}
	vars, err := session.Vars(ctx, args[0])
	if err != nil {
		return err
	}
	structured, err := session.Window().RespondWithSchema(ctx, vars, schema)
	if err != nil {
		return err
	}
	if structured == nil {
		return fmt.Errorf("%w: the model did not return structured output", llm.ErrProvider)
	}
	return printJSON(cmd, structured)
}

func readSchema(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read schema: %w", llm.ErrConfig, err)
	}
	var schema map[string]any
	if err := json.Unmarshal(data, &schema); err != nil {
		return nil, fmt.Errorf("%w: schema %s: %w", llm.ErrDeserialization, path, err)
	}
	return schema, nil
}
