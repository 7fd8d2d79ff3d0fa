package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

const systemPrompt = `You are a supportive health journaling assistant.
Help the user reflect on symptoms, moods, meals and medications they mention.
Keep answers short and practical. You are not a doctor: suggest seeing a
healthcare professional for anything that sounds serious or persistent.`

var errEmptyCompletion = errors.New("model returned no choices")

// LLMReplier answers through an OpenAI-compatible chat completion endpoint.
type LLMReplier struct {
	model   llms.Model
	timeout time.Duration
}

// NewLLMReplier connects to the chat completion endpoint at baseURL.
func NewLLMReplier(baseURL, token, model string, timeout time.Duration) (*LLMReplier, error) {
	llm, err := openai.New(
		openai.WithToken(token),
		openai.WithBaseURL(baseURL),
		openai.WithModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("create llm client: %w", err)
	}
	return NewLLMReplierWithModel(llm, timeout), nil
}

// NewLLMReplierWithModel wraps an existing model.
func NewLLMReplierWithModel(model llms.Model, timeout time.Duration) *LLMReplier {
	return &LLMReplier{model: model, timeout: timeout}
}

// Reply sends the system prompt and conversation history to the model.
func (l *LLMReplier) Reply(ctx context.Context, req Request) (string, error) {
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	resp, err := l.model.GenerateContent(ctx, buildMessages(req))
	if err != nil {
		return "", fmt.Errorf("generate completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errEmptyCompletion
	}
	return strings.TrimSpace(resp.Choices[0].Content), nil
}

func buildMessages(req Request) []llms.MessageContent {
	msgs := make([]llms.MessageContent, 0, len(req.History)+2)
	msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt))

	answered := false
	for _, m := range req.History {
		role := llms.ChatMessageTypeAI
		if m.IsUser {
			role = llms.ChatMessageTypeHuman
		}
		msgs = append(msgs, llms.TextParts(role, m.Content))
		answered = m.IsUser && m.Content == req.Text
	}
	if !answered {
		msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeHuman, req.Text))
	}
	return msgs
}
