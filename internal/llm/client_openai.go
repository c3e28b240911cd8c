package llm

import (
	"context"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

type openaiChatStream interface {
	Next() bool
	Current() openai.ChatCompletionChunk
	Err() error
	Close() error
}

type openaiChatCompletions interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
	NewStreaming(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) openaiChatStream
}

// openaiCompletionsService narrows the SDK service to openaiChatCompletions.
type openaiCompletionsService struct {
	service *openai.ChatCompletionService
}

func (s openaiCompletionsService) New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error) {
	return s.service.New(ctx, body, opts...)
}

func (s openaiCompletionsService) NewStreaming(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) openaiChatStream {
	return s.service.NewStreaming(ctx, body, opts...)
}

type llmClientOpenAi struct {
	client openaiChatCompletions
	model  string
}
type LLMClientOpenAI LLMClient

func newOpenAIClient(openAIKey string, model string, opts ...option.RequestOption) LLMClientOpenAI {
	client := openai.NewClient(
		append([]option.RequestOption{option.WithAPIKey(openAIKey)}, opts...)...,
	)
	return &llmClientOpenAi{
		client: openaiCompletionsService{service: &client.Chat.Completions},
		model:  model,
	}
}

func (ai *llmClientOpenAi) toOpenAiMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	var openAiMessages []openai.ChatCompletionMessageParamUnion
	for _, msg := range messages {
		switch msg.Role {
		case User:
			openAiMessages = append(openAiMessages, openai.UserMessage(msg.Content))
		case Assistant:
			openAiMessages = append(openAiMessages, openai.AssistantMessage(msg.Content))
		case System:
			openAiMessages = append(openAiMessages, openai.SystemMessage(msg.Content))
		default:
			openAiMessages = append(openAiMessages, openai.UserMessage(msg.Content))
		}
	}
	return openAiMessages
}

func (ai *llmClientOpenAi) Send(ctx context.Context, messages []Message) (*LLMSendResponse, error) {
	res, err := ai.client.New(
		ctx,
		openai.ChatCompletionNewParams{
			Model:    ai.model,
			Messages: ai.toOpenAiMessages(messages),
			N:        openai.Int(1),
		},
	)

	if err != nil {
		return nil, err
	}
	if len(res.Choices) == 0 {
		return nil, ErrTruncatedStream
	}

	return &LLMSendResponse{
		Content: res.Choices[0].Message.Content,
		Usage: LLMTokenUsage{
			InputTokens:  res.Usage.PromptTokens,
			OutputTokens: res.Usage.CompletionTokens,
		},
	}, nil
}

func (ai *llmClientOpenAi) Stream(ctx context.Context, messages []Message) <-chan LLMStreamEvent {
	out := make(chan LLMStreamEvent)

	go func() {
		defer close(out)
		acc := openai.ChatCompletionAccumulator{}
		aiStream := ai.client.NewStreaming(
			ctx,
			openai.ChatCompletionNewParams{
				Model:    ai.model,
				Messages: ai.toOpenAiMessages(messages),
				StreamOptions: openai.ChatCompletionStreamOptionsParam{
					IncludeUsage: openai.Bool(true),
				},
				N: openai.Int(1),
			},
		)
		defer aiStream.Close()

		for aiStream.Next() {
			chunk := aiStream.Current()
			acc.AddChunk(chunk)
			if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
				out <- LLMStreamEvent{
					Type:    LLMStreamEventTypeMessage,
					Content: chunk.Choices[0].Delta.Content,
					Usage: LLMTokenUsage{
						InputTokens:  chunk.Usage.PromptTokens,
						OutputTokens: chunk.Usage.CompletionTokens,
					},
				}
			}
		}

		if err := aiStream.Err(); err != nil {
			out <- errorEvent(err)
			return
		}

		complete := LLMStreamEvent{
			Type: LLMStreamEventTypeComplete,
			Usage: LLMTokenUsage{
				InputTokens:  acc.Usage.PromptTokens,
				OutputTokens: acc.Usage.CompletionTokens,
			},
		}
		if len(acc.Choices) > 0 {
			complete.Content = acc.Choices[0].Message.Content
		}
		out <- complete
	}()

	return out
}
