package llm

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"time"
)

type LLMTokenUsage struct {
	InputTokens  int64
	OutputTokens int64
}

type LLMSendResponse struct {
	Content string
	Usage   LLMTokenUsage
}

type LLMStreamEventType string

const (
	LLMStreamEventTypeMessage  LLMStreamEventType = "content"
	LLMStreamEventTypeComplete LLMStreamEventType = "complete"
	LLMStreamEventTypeError    LLMStreamEventType = "error"
)

// LLMStreamEvent is one item of a streamed response. A stream ends with
// exactly one complete or error event, then the channel is closed.
type LLMStreamEvent struct {
	Content string
	Usage   LLMTokenUsage
	Type    LLMStreamEventType
	Err     error
}

func errorEvent(err error) LLMStreamEvent {
	return LLMStreamEvent{
		Type:    LLMStreamEventTypeError,
		Content: err.Error(),
		Err:     err,
	}
}

type LLMClient interface {
	Send(ctx context.Context, messages []Message) (*LLMSendResponse, error)
	Stream(ctx context.Context, messages []Message) <-chan LLMStreamEvent
}

type LLMProvider string

const (
	LLMProviderSSE       LLMProvider = "sse"
	LLMProviderOpenAI    LLMProvider = "openai"
	LLMProviderAnthropic LLMProvider = "anthropic"
	LLMProviderOllama    LLMProvider = "ollama"
)

var LLMProviders = []LLMProvider{LLMProviderSSE, LLMProviderOpenAI, LLMProviderAnthropic, LLMProviderOllama}

type LLMClientOptions struct {
	Model string
	// Endpoint and APIKey configure the sse provider.
	Endpoint string
	APIKey   string
	Timeout  time.Duration
}

func NewClient(provider LLMProvider, opts LLMClientOptions) (LLMClient, error) {
	switch provider {
	case LLMProviderSSE:
		if opts.Endpoint == "" {
			return nil, fmt.Errorf("chat endpoint is not set")
		}
		endpoint, err := url.Parse(opts.Endpoint)
		if err != nil || endpoint.Scheme == "" || endpoint.Host == "" {
			return nil, fmt.Errorf("chat endpoint URL is invalid: %s", opts.Endpoint)
		}
		return newSSEClient(*endpoint, opts.APIKey, opts.Model, opts.Timeout), nil
	case LLMProviderOpenAI:
		apiKey, exists := os.LookupEnv("OPENAI_API_KEY")
		if !exists || apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable is not set")
		}
		return newOpenAIClient(apiKey, opts.Model), nil
	case LLMProviderAnthropic:
		apiKey, exists := os.LookupEnv("ANTHROPIC_API_KEY")
		if !exists || apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY environment variable is not set")
		}
		return newAnthropicClient(apiKey, opts.Model), nil
	case LLMProviderOllama:
		ollameEndpoint, exists := os.LookupEnv("OLLAMA_ENDPOINT")
		if !exists || ollameEndpoint == "" {
			return nil, fmt.Errorf("OLLAMA_ENDPOINT environment variable is not set")
		}
		localEndpoint, err := url.Parse(ollameEndpoint)
		if err != nil {
			return nil, fmt.Errorf("OLLAMA_ENDPOINT URL is invalid: %v", err)
		}
		return newOllamaClient(*localEndpoint, opts.Model), nil
	default:
		return nil, fmt.Errorf("%s: invalid provider", provider)
	}
}

// collect drains a stream into a single response, the way every backend
// implements Send.
func collect(stream <-chan LLMStreamEvent) (*LLMSendResponse, error) {
	var res LLMSendResponse
	for event := range stream {
		switch event.Type {
		case LLMStreamEventTypeMessage:
			res.Content += event.Content
		case LLMStreamEventTypeComplete:
			res.Usage = event.Usage
			return &res, nil
		case LLMStreamEventTypeError:
			return nil, event.Err
		}
	}
	return nil, ErrTruncatedStream
}
