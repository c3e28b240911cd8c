package llm

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const anthropicMaxTokens = 4096

type anthropicMessageStream interface {
	Next() bool
	Current() anthropic.MessageStreamEventUnion
	Err() error
	Close() error
}

type anthropicMessages interface {
	NewStreaming(ctx context.Context, body anthropic.MessageNewParams, opts ...option.RequestOption) anthropicMessageStream
}

type anthropicMessagesService struct {
	service *anthropic.MessageService
}

func (s anthropicMessagesService) NewStreaming(ctx context.Context, body anthropic.MessageNewParams, opts ...option.RequestOption) anthropicMessageStream {
	return s.service.NewStreaming(ctx, body, opts...)
}

type llmClientAnthropic struct {
	client anthropicMessages
	model  string
}

func newAnthropicClient(apiKey string, model string, opts ...option.RequestOption) LLMClient {
	client := anthropic.NewClient(
		append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...,
	)
	return &llmClientAnthropic{
		client: anthropicMessagesService{service: &client.Messages},
		model:  model,
	}
}

// toAnthropicMessages splits system messages out since the API takes them as
// a separate parameter.
func (ai *llmClientAnthropic) toAnthropicMessages(messages []Message) ([]anthropic.MessageParam, []anthropic.TextBlockParam) {
	var params []anthropic.MessageParam
	var system []anthropic.TextBlockParam
	for _, msg := range messages {
		switch msg.Role {
		case System:
			system = append(system, anthropic.TextBlockParam{Text: msg.Content})
		case Assistant:
			params = append(params, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			params = append(params, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}
	return params, system
}

func (ai *llmClientAnthropic) Send(ctx context.Context, messages []Message) (*LLMSendResponse, error) {
	return collect(ai.Stream(ctx, messages))
}

func (ai *llmClientAnthropic) Stream(ctx context.Context, messages []Message) <-chan LLMStreamEvent {
	out := make(chan LLMStreamEvent)

	go func() {
		defer close(out)

		params, system := ai.toAnthropicMessages(messages)
		body := anthropic.MessageNewParams{
			Model:     anthropic.Model(ai.model),
			Messages:  params,
			MaxTokens: anthropicMaxTokens,
		}
		if len(system) > 0 {
			body.System = system
		}

		stream := ai.client.NewStreaming(ctx, body)
		defer stream.Close()

		msg := anthropic.Message{}
		for stream.Next() {
			event := stream.Current()
			if err := msg.Accumulate(event); err != nil {
				out <- errorEvent(err)
				return
			}

			switch eventVariant := event.AsAny().(type) {
			case anthropic.ContentBlockDeltaEvent:
				switch deltaVariant := eventVariant.Delta.AsAny().(type) {
				case anthropic.TextDelta:
					if deltaVariant.Text != "" {
						out <- LLMStreamEvent{Type: LLMStreamEventTypeMessage, Content: deltaVariant.Text}
					}
				}
			}
		}

		if err := stream.Err(); err != nil {
			out <- errorEvent(err)
			return
		}

		var content string
		for _, block := range msg.Content {
			if block.Type == "text" {
				content += block.Text
			}
		}
		out <- LLMStreamEvent{
			Type:    LLMStreamEventTypeComplete,
			Content: content,
			Usage: LLMTokenUsage{
				InputTokens:  msg.Usage.InputTokens,
				OutputTokens: msg.Usage.OutputTokens,
			},
		}
	}()

	return out
}
