package cli

import (
	"llmmemory/llm"
	"llmmemory/pubsub"
	"llmmemory/tui/chat"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var (
	chatK     int
	chatAgent bool
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with your documents in the terminal",
	Long: `Opens an interactive chat. Each question is answered from the closest
stored chunks; --agent switches to the tool-using librarian agent.`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().IntVarP(&chatK, "k", "k", 0, "number of chunks to retrieve (default from config)")
	chatCmd.Flags().BoolVar(&chatAgent, "agent", false, "chat with the tool-using agent")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	m, closeStore, err := openManager(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	flush := startTracing(ctx)
	defer flush()

	var (
		ask    chat.AskFunc
		events pubsub.Subscriber[llm.Message]
	)
	if chatAgent {
		rt, err := newRuntime(ctx, m)
		if err != nil {
			return err
		}
		defer rt.Close()
		ask, events = rt.Run, rt.Broker()
	} else {
		broker := pubsub.NewBroker[llm.Message]()
		defer broker.Shutdown()
		session, err := newSession(ctx, m, broker, topK(chatK))
		if err != nil {
			return err
		}
		ask, events = session.Ask, broker
	}

	program := tea.NewProgram(
		chat.InitialModel(ctx, ask, events),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
		tea.WithMouseCellMotion(),
	)
	_, err = program.Run()
	return err
}
