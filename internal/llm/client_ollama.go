package llm

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
)

type ollamaChatClient interface {
	Chat(ctx context.Context, req *api.ChatRequest, fn api.ChatResponseFunc) error
}

type llmClientOllama struct {
	client ollamaChatClient
	model  string
}
type LlmClientOllama LLMClient

func newOllamaClient(localEndpoint url.URL, model string) LlmClientOllama {
	return &llmClientOllama{
		client: api.NewClient(&localEndpoint, http.DefaultClient),
		model:  model,
	}
}

func (ai *llmClientOllama) Send(ctx context.Context, messages []Message) (*LLMSendResponse, error) {
	return collect(ai.chat(ctx, messages))
}

func (ai *llmClientOllama) Stream(ctx context.Context, messages []Message) <-chan LLMStreamEvent {
	return ai.chat(ctx, messages)
}

func (ai *llmClientOllama) chat(ctx context.Context, messages []Message) <-chan LLMStreamEvent {
	out := make(chan LLMStreamEvent)
	stream := true
	go func() {
		defer close(out)

		done := false
		var content strings.Builder
		err := ai.client.Chat(ctx, &api.ChatRequest{
			Model:    ai.model,
			Messages: ai.toOllamaMessages(messages),
			Stream:   &stream,
		}, func(resp api.ChatResponse) error {
			if resp.Message.Content != "" {
				content.WriteString(resp.Message.Content)
				out <- LLMStreamEvent{Content: resp.Message.Content, Type: LLMStreamEventTypeMessage}
			}
			if resp.Done {
				done = true
				out <- LLMStreamEvent{
					Type:    LLMStreamEventTypeComplete,
					Content: content.String(),
					Usage: LLMTokenUsage{
						InputTokens:  int64(resp.PromptEvalCount),
						OutputTokens: int64(resp.EvalCount),
					},
				}
			}
			return nil
		})

		switch {
		case err != nil && !done:
			out <- errorEvent(err)
		case err == nil && !done:
			out <- errorEvent(ErrTruncatedStream)
		}
	}()
	return out
}

func (ai *llmClientOllama) toOllamaMessages(messages []Message) []api.Message {
	var ollamaMessages []api.Message
	for _, msg := range messages {
		ollamaMessages = append(ollamaMessages, api.Message{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}
	return ollamaMessages
}
