package providers

import (
	"context"
	"fmt"
	"os"

	clc "github.com/cloudwego/eino-ext/callbacks/cozeloop"
	"github.com/cloudwego/eino/callbacks"
	"github.com/coze-dev/cozeloop-go"
)

// TracingConfig holds cozeloop credentials
type TracingConfig struct {
	APIToken    string `yaml:"api_token"`
	WorkspaceID string `yaml:"workspace_id"`
}

// DefaultTracingConfig reads COZE_LOOP_API_TOKEN and COZELOOP_WORKSPACE_ID
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		APIToken:    os.Getenv("COZE_LOOP_API_TOKEN"),
		WorkspaceID: os.Getenv("COZELOOP_WORKSPACE_ID"),
	}
}

// Enabled reports whether both credentials are set
func (c TracingConfig) Enabled() bool {
	return c.APIToken != "" && c.WorkspaceID != ""
}

// EnableTracing registers a global cozeloop callback handler so every
// eino model call is traced. The returned func flushes and closes the
// client. It is a no-op when tracing is not configured.
func EnableTracing(cfg TracingConfig) (func(ctx context.Context), error) {
	if !cfg.Enabled() {
		return func(context.Context) {}, nil
	}

	client, err := cozeloop.NewClient(
		cozeloop.WithAPIToken(cfg.APIToken),
		cozeloop.WithWorkspaceID(cfg.WorkspaceID),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cozeloop client: %w", err)
	}
	callbacks.AppendGlobalHandlers(clc.NewLoopHandler(client))
	return func(ctx context.Context) { client.Close(ctx) }, nil
}
