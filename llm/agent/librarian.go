package agent

import (
	"context"
	"errors"
	"fmt"

	"llmmemory/llm/tools"

	"github.com/cloudwego/eino/adk"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/compose"
)

// LibrarianPrompt defines the persona and workflow of the knowledge base assistant
const LibrarianPrompt = `
You are a research assistant backed by a private knowledge base.

TOOLS
1. search_knowledge: semantic search over memorized documents
2. ingest_document: add a local file or directory to the knowledge base
3. ingest_url: fetch a web page and add it to the knowledge base
4. list_documents: show what is stored, grouped by source
5. delete_document: remove a source or a single chunk

RULES
- Search the knowledge base before answering questions about the user's material.
- Quote or paraphrase retrieved passages and name their source.
- When nothing relevant is found, say so instead of guessing.
- Only ingest or delete when the user asks for it. Confirm before deleting.
- Issue independent tool calls in one response.

Style
Concise, direct, practical. High information density.
`

// LibrarianConfig holds dependencies for the librarian agent.
type LibrarianConfig struct {
	ChatModel model.ToolCallingChatModel
	Tools     []tool.BaseTool
	// MaxIterations bounds model/tool round trips, 0 means 20
	MaxIterations int
}

// NewLibrarianAgent creates the librarian agent using the provided configuration.
func NewLibrarianAgent(ctx context.Context, config *LibrarianConfig) (adk.Agent, error) {
	if config == nil {
		return nil, errors.New("config is nil")
	}
	maxIter := config.MaxIterations
	if maxIter <= 0 {
		maxIter = 20
	}

	agt, err := adk.NewChatModelAgent(ctx, &adk.ChatModelAgentConfig{
		Name:        "Librarian",
		Description: "Answers questions from a private knowledge base and curates its contents.",
		Instruction: LibrarianPrompt,
		Model:       config.ChatModel,
		ToolsConfig: adk.ToolsConfig{
			ToolsNodeConfig: compose.ToolsNodeConfig{
				Tools:               config.Tools,
				ToolCallMiddlewares: []compose.ToolMiddleware{tools.ErrorHandler()},
			},
		},
		MaxIterations: maxIter,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create librarian agent: %w", err)
	}
	return agt, nil
}
