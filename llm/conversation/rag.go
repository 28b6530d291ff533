package conversation

import (
	"context"
	"fmt"
	"strings"

	"llmmemory/llm"
)

// Retriever finds the stored chunks closest to a query
type Retriever interface {
	Query(ctx context.Context, text string, k int) ([]llm.SearchResult, error)
}

// Session answers questions with retrieval-augmented prompts: each turn
// queries the retriever and renders DefaultTemplate's variables before
// asking the window.
type Session struct {
	retriever Retriever
	window    *Window
	k         int
}

// NewSession ties a retriever to a window. k <= 0 means 3.
func NewSession(retriever Retriever, window *Window, k int) *Session {
	if k <= 0 {
		k = 3
	}
	return &Session{retriever: retriever, window: window, k: k}
}

// Vars retrieves context for question and returns the template variables
func (s *Session) Vars(ctx context.Context, question string) (map[string]any, error) {
	results, err := s.retriever.Query(ctx, question, s.k)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"related_docs": DocsVar(results),
		"query_str":    question,
	}, nil
}

// Ask runs one turn. Not safe for concurrent use, like the window itself.
func (s *Session) Ask(ctx context.Context, question string) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", fmt.Errorf("%w: question is empty", llm.ErrValidation)
	}
	vars, err := s.Vars(ctx, question)
	if err != nil {
		return "", err
	}
	reply, ok := s.window.Respond(ctx, vars)
	if !ok {
		return "", fmt.Errorf("%w: conversation turn failed", llm.ErrProvider)
	}
	return reply, nil
}

// Window exposes the underlying conversation window
func (s *Session) Window() *Window {
	return s.window
}
