package providers

import (
	"context"
	"fmt"

	"llmmemory/llm"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/eino-contrib/jsonschema"
	"github.com/goccy/go-json"
)

// EinoProvider adapts an eino chat model to ChatProvider
type EinoProvider struct {
	kind          Kind
	model         model.ToolCallingChatModel
	defaultModel  string
	functionCalls bool
}

// NewEinoProvider wraps a chat model
func NewEinoProvider(kind Kind, chatModel model.ToolCallingChatModel, defaultModel string, functionCalls bool) *EinoProvider {
	return &EinoProvider{
		kind:          kind,
		model:         chatModel,
		defaultModel:  defaultModel,
		functionCalls: functionCalls,
	}
}

func (p *EinoProvider) Kind() Kind { return p.kind }

func (p *EinoProvider) SupportsFunctionCalling() bool { return p.functionCalls }

// Chat sends the messages and adapts the reply. Functions are bound
// as tools for this call only.
func (p *EinoProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if len(req.Functions) > 0 && !p.functionCalls {
		return nil, fmt.Errorf("%w: %s does not support function calling", llm.ErrCapability, p.kind)
	}

	chatModel := p.model
	if len(req.Functions) > 0 {
		tools, err := toolInfos(req.Functions)
		if err != nil {
			return nil, err
		}
		chatModel, err = p.model.WithTools(tools)
		if err != nil {
			return nil, llm.ProviderFailure("failed to bind functions", err)
		}
	}

	opts := []model.Option{model.WithTemperature(req.Temperature)}
	if req.Model != "" && req.Model != p.defaultModel {
		opts = append(opts, model.WithModel(req.Model))
	}

	out, err := chatModel.Generate(ctx, toSchemaMessages(req.Messages), opts...)
	if err != nil {
		return nil, llm.ProviderFailure(fmt.Sprintf("%s chat failed", p.kind), err)
	}
	if out == nil {
		return nil, fmt.Errorf("%w: %s returned no message", llm.ErrProvider, p.kind)
	}
	return fromSchemaMessage(out), nil
}

func toSchemaMessages(msgs []llm.Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case llm.RoleSystem:
			out = append(out, schema.SystemMessage(m.Content))
		case llm.RoleAssistant:
			out = append(out, schema.AssistantMessage(m.Content, nil))
		default:
			out = append(out, schema.UserMessage(m.Content))
		}
	}
	return out
}

func fromSchemaMessage(msg *schema.Message) *ChatResponse {
	resp := &ChatResponse{Role: llm.RoleAssistant, Content: msg.Content}
	if msg.Role != "" {
		resp.Role = llm.Role(msg.Role)
	}
	if len(msg.ToolCalls) > 0 {
		tc := msg.ToolCalls[0]
		resp.FunctionCall = &FunctionCall{
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		}
	}
	return resp
}

// toolInfos converts JSON Schema parameter maps into eino tool definitions
func toolInfos(fns []FunctionSpec) ([]*schema.ToolInfo, error) {
	tools := make([]*schema.ToolInfo, 0, len(fns))
	for _, fn := range fns {
		if fn.Name == "" {
			return nil, fmt.Errorf("%w: function name is required", llm.ErrValidation)
		}
		info := &schema.ToolInfo{Name: fn.Name, Desc: fn.Description}
		if fn.Parameters != nil {
			raw, err := json.Marshal(fn.Parameters)
			if err != nil {
				return nil, fmt.Errorf("%w: function %q parameters: %w", llm.ErrValidation, fn.Name, err)
			}
			var s jsonschema.Schema
			if err := json.Unmarshal(raw, &s); err != nil {
				return nil, fmt.Errorf("%w: function %q parameters are not a JSON schema: %w", llm.ErrValidation, fn.Name, err)
			}
			info.ParamsOneOf = schema.NewParamsOneOfByJSONSchema(&s)
		}
		tools = append(tools, info)
	}
	return tools, nil
}

var _ ChatProvider = (*EinoProvider)(nil)
