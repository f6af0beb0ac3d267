package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	apperrors "github.com/troikatech/voice-agent/pkg/errors"
)

// OpenAIClient produces assistant turns using the OpenAI chat
// completion API with function tools.
type OpenAIClient struct {
	client    *openai.Client
	model     string
	maxTokens int
	timeout   time.Duration
	logger    *zap.Logger
	available bool
}

var _ Responder = (*OpenAIClient)(nil)

// NewOpenAIClient creates an OpenAI responder. A zero timeout defaults
// to 10 seconds.
func NewOpenAIClient(apiKey, model string, maxTokens int, timeout time.Duration, logger *zap.Logger) *OpenAIClient {
	if model == "" {
		model = openai.GPT4oMini
	}
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &OpenAIClient{
		client:    openai.NewClient(apiKey),
		model:     model,
		maxTokens: maxTokens,
		timeout:   timeout,
		logger:    logger,
		available: apiKey != "",
	}
}

// IsAvailable returns true if the client is configured with an API key.
func (c *OpenAIClient) IsAvailable() bool {
	return c.available
}

// Complete sends the conversation to the model and returns the next
// assistant turn. Tool calls with arguments that do not parse as JSON
// objects are rejected as validation errors and never surfaced to the
// caller as invocations.
func (c *OpenAIClient) Complete(ctx context.Context, req *TurnRequest) (*TurnResult, error) {
	if !c.IsAvailable() {
		return nil, fmt.Errorf("AI service not available. Set OPENAI_API_KEY environment variable")
	}
	if len(req.Messages) == 0 {
		return nil, apperrors.NewValidation("turn request has no messages")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	chatReq := openai.ChatCompletionRequest{
		Model:     c.model,
		Messages:  toChatMessages(req.Messages),
		MaxTokens: c.maxTokens,
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = req.MaxTokens
	}
	if req.Temperature > 0 {
		chatReq.Temperature = float32(req.Temperature)
	}
	for _, schema := range req.Tools {
		chatReq.Tools = append(chatReq.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        schema.Name,
				Description: schema.Description,
				Parameters:  schema.Parameters,
			},
		})
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, apperrors.NewIntegration("openai", err)
	}
	if len(resp.Choices) == 0 {
		return nil, apperrors.NewIntegration("openai", fmt.Errorf("response has no choices"))
	}

	choice := resp.Choices[0]
	result := &TurnResult{
		Text: choice.Message.Content,
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
		},
	}

	for _, tc := range choice.Message.ToolCalls {
		if tc.Type != openai.ToolTypeFunction {
			continue
		}
		args := json.RawMessage(tc.Function.Arguments)
		if !json.Valid(args) {
			return nil, apperrors.NewValidation("tool call %s has malformed arguments", tc.Function.Name)
		}
		result.ToolCalls = append(result.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: args,
		})
	}

	c.logger.Debug("Chat completion finished",
		zap.String("model", c.model),
		zap.Int("prompt_tokens", result.Usage.PromptTokens),
		zap.Int("completion_tokens", result.Usage.CompletionTokens),
		zap.Int("tool_calls", len(result.ToolCalls)),
		zap.Duration("latency", time.Since(start)))

	return result, nil
}

func toChatMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		msg := openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		}
		if m.Role == RoleTool {
			msg.ToolCallID = m.ToolCallID
			msg.Name = m.ToolName
		}
		for _, tc := range m.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: string(tc.Arguments),
				},
			})
		}
		out = append(out, msg)
	}
	return out
}
