package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/klemjul/cryptochat/internal/logger"
	"github.com/tidwall/gjson"
)

const sseDoneMarker = "[DONE]"

// llmClientSSE talks to a chat completion endpoint that answers with
// OpenAI-style server-sent events.
type llmClientSSE struct {
	client   *http.Client
	endpoint url.URL
	apiKey   string
	model    string
}

type sseChatRequest struct {
	Model    string    `json:"model,omitempty"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

func newSSEClient(endpoint url.URL, apiKey string, model string, timeout time.Duration) LLMClient {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if timeout > 0 {
		transport.ResponseHeaderTimeout = timeout
	}
	return &llmClientSSE{
		client:   &http.Client{Transport: transport},
		endpoint: endpoint,
		apiKey:   apiKey,
		model:    model,
	}
}

func (ai *llmClientSSE) Send(ctx context.Context, messages []Message) (*LLMSendResponse, error) {
	return collect(ai.Stream(ctx, messages))
}

func (ai *llmClientSSE) Stream(ctx context.Context, messages []Message) <-chan LLMStreamEvent {
	out := make(chan LLMStreamEvent)

	go func() {
		defer close(out)

		res, err := ai.open(ctx, messages)
		if err != nil {
			out <- errorEvent(err)
			return
		}
		defer res.Body.Close()

		content, err := readSSE(res.Body, func(delta string) {
			out <- LLMStreamEvent{Type: LLMStreamEventTypeMessage, Content: delta}
		})
		if err != nil {
			out <- errorEvent(err)
			return
		}
		out <- LLMStreamEvent{Type: LLMStreamEventTypeComplete, Content: content}
	}()

	return out
}

func (ai *llmClientSSE) open(ctx context.Context, messages []Message) (*http.Response, error) {
	body, err := json.Marshal(sseChatRequest{
		Model:    ai.model,
		Messages: messages,
		Stream:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode chat request: %w", err)
	}

	endpoint := ai.endpoint.String()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if ai.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+ai.apiKey)
	}

	res, err := ai.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chat request failed: %w", err)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		defer res.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		logger.L.Warn("chat endpoint returned non-success status", "status", res.StatusCode, "endpoint", endpoint)
		return nil, NewAPIError(res.StatusCode, endpoint, errorMessage(raw, res.Status))
	}
	return res, nil
}

// errorMessage extracts a readable reason from an error body.
func errorMessage(raw []byte, fallback string) string {
	if gjson.ValidBytes(raw) {
		parsed := gjson.ParseBytes(raw)
		if msg := parsed.Get("error.message"); msg.Type == gjson.String {
			return msg.String()
		}
		if msg := parsed.Get("error"); msg.Type == gjson.String {
			return msg.String()
		}
		if msg := parsed.Get("message"); msg.Type == gjson.String {
			return msg.String()
		}
	}
	if text := strings.TrimSpace(string(raw)); text != "" {
		return text
	}
	return fallback
}

// readSSE parses an event stream and calls onDelta for each non-empty text
// delta. It returns the concatenated content once the stream ends cleanly:
// a [DONE] frame, or EOF after a frame carrying a finish reason.
func readSSE(body io.Reader, onDelta func(string)) (string, error) {
	reader := bufio.NewReader(body)
	var content strings.Builder
	finished := false

	for {
		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return content.String(), fmt.Errorf("failed to read stream: %w", err)
		}
		eof := err != nil

		line = strings.TrimRight(line, "\r\n")
		data, ok := strings.CutPrefix(line, "data:")
		if ok {
			data = strings.TrimSpace(data)
			if data == sseDoneMarker {
				return content.String(), nil
			}
			if data != "" {
				if eof && !gjson.Valid(data) {
					return content.String(), ErrTruncatedStream
				}
				delta, done, err := parseSSEData(data)
				if err != nil {
					return content.String(), err
				}
				if delta != "" {
					content.WriteString(delta)
					onDelta(delta)
				}
				finished = finished || done
			}
		}

		if eof {
			if finished {
				return content.String(), nil
			}
			return content.String(), ErrTruncatedStream
		}
	}
}

func parseSSEData(data string) (delta string, done bool, err error) {
	if !gjson.Valid(data) {
		return "", false, fmt.Errorf("%w: invalid JSON frame %q", ErrMalformedStream, data)
	}
	parsed := gjson.Parse(data)

	if e := parsed.Get("error"); e.Exists() && e.Type != gjson.Null {
		if msg := e.Get("message"); msg.Type == gjson.String {
			return "", false, errors.New(msg.String())
		}
		return "", false, errors.New(e.String())
	}

	choice := parsed.Get("choices.0")
	finish := choice.Get("finish_reason")
	done = finish.Exists() && finish.Type != gjson.Null
	return choice.Get("delta.content").String(), done, nil
}
