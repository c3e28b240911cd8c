package stream

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/klemjul/cryptochat/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockLLMClient struct {
	mock.Mock
}

func (c *MockLLMClient) Send(ctx context.Context, messages []llm.Message) (*llm.LLMSendResponse, error) {
	args := c.Called(ctx, messages)
	return args.Get(0).(*llm.LLMSendResponse), args.Error(1)
}

func (c *MockLLMClient) Stream(ctx context.Context, messages []llm.Message) <-chan llm.LLMStreamEvent {
	args := c.Called(ctx, messages)
	return args.Get(0).(<-chan llm.LLMStreamEvent)
}

func eventsChan(events ...llm.LLMStreamEvent) <-chan llm.LLMStreamEvent {
	ch := make(chan llm.LLMStreamEvent, len(events))
	for _, e := range events {
		ch <- e
	}
	close(ch)
	return ch
}

func delta(text string) llm.LLMStreamEvent {
	return llm.LLMStreamEvent{Type: llm.LLMStreamEventTypeMessage, Content: text}
}

func complete() llm.LLMStreamEvent {
	return llm.LLMStreamEvent{Type: llm.LLMStreamEventTypeComplete}
}

func failure(err error) llm.LLMStreamEvent {
	return llm.LLMStreamEvent{Type: llm.LLMStreamEventTypeError, Content: err.Error(), Err: err}
}

// recorder captures handler calls in order.
type recorder struct {
	calls     []string
	deltas    []string
	completes int
	errs      []error
}

func (r *recorder) handlers() Handlers {
	return Handlers{
		OnDelta: func(text string) {
			r.calls = append(r.calls, "delta")
			r.deltas = append(r.deltas, text)
		},
		OnComplete: func() {
			r.calls = append(r.calls, "complete")
			r.completes++
		},
		OnError: func(err error) {
			r.calls = append(r.calls, "error")
			r.errs = append(r.errs, err)
		},
	}
}

func runWith(t *testing.T, events <-chan llm.LLMStreamEvent) (*recorder, error) {
	t.Helper()
	history := []llm.Message{{Role: llm.User, Content: "What is Bitcoin?"}}
	client := new(MockLLMClient)
	client.On("Stream", mock.Anything, history).Return(events).Once()

	rec := &recorder{}
	err := NewConsumer(client).Run(t.Context(), history, rec.handlers())
	client.AssertExpectations(t)
	return rec, err
}

func TestRun_DeliversDeltasInOrderThenCompletes(t *testing.T) {
	rec, err := runWith(t, eventsChan(
		delta("Bitcoin"),
		delta(" is a"),
		delta(" decentralized currency."),
		complete(),
	))

	require.NoError(t, err)
	assert.Equal(t, []string{"Bitcoin", " is a", " decentralized currency."}, rec.deltas)
	assert.Equal(t, []string{"delta", "delta", "delta", "complete"}, rec.calls)
	assert.Equal(t, 1, rec.completes)
	assert.Empty(t, rec.errs)
}

func TestRun_EmptyStreamCompletesOnce(t *testing.T) {
	rec, err := runWith(t, eventsChan(complete()))

	require.NoError(t, err)
	assert.Empty(t, rec.deltas)
	assert.Equal(t, []string{"complete"}, rec.calls)
}

func TestRun_SkipsEmptyDeltas(t *testing.T) {
	rec, err := runWith(t, eventsChan(delta(""), delta("hi"), delta(""), complete()))

	require.NoError(t, err)
	assert.Equal(t, []string{"hi"}, rec.deltas)
}

func TestRun_FailureAfterPartialDeltas(t *testing.T) {
	networkErr := errors.New("network error")
	rec, err := runWith(t, eventsChan(delta("Bit"), delta("coin is"), failure(networkErr)))

	assert.Equal(t, networkErr, err)
	assert.Equal(t, []string{"Bit", "coin is"}, rec.deltas)
	assert.Equal(t, []string{"delta", "delta", "error"}, rec.calls)
	assert.Equal(t, []error{networkErr}, rec.errs)
	assert.Zero(t, rec.completes)
}

func TestRun_ErrorEventWithoutErr(t *testing.T) {
	rec, err := runWith(t, eventsChan(llm.LLMStreamEvent{Type: llm.LLMStreamEventTypeError, Content: "boom"}))

	assert.EqualError(t, err, "boom")
	require.Len(t, rec.errs, 1)
	assert.EqualError(t, rec.errs[0], "boom")
}

func TestRun_IgnoresEventsAfterTerminal(t *testing.T) {
	rec, err := runWith(t, eventsChan(
		delta("a"),
		complete(),
		delta("late"),
		failure(errors.New("late failure")),
		complete(),
	))

	require.NoError(t, err)
	assert.Equal(t, []string{"delta", "complete"}, rec.calls)
}

func TestRun_ClosedWithoutTerminalEventFails(t *testing.T) {
	tests := []struct {
		name           string
		events         []llm.LLMStreamEvent
		expectedDeltas []string
	}{
		{name: "no events", events: nil},
		{name: "after deltas", events: []llm.LLMStreamEvent{delta("Bit")}, expectedDeltas: []string{"Bit"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := runWith(t, eventsChan(tt.events...))

			assert.ErrorIs(t, err, llm.ErrTruncatedStream)
			assert.Equal(t, tt.expectedDeltas, rec.deltas)
			require.Len(t, rec.errs, 1)
			assert.ErrorIs(t, rec.errs[0], llm.ErrTruncatedStream)
			assert.Zero(t, rec.completes)
		})
	}
}

func TestRun_RejectsConcurrentInvocation(t *testing.T) {
	events := make(chan llm.LLMStreamEvent)
	client := new(MockLLMClient)
	client.On("Stream", mock.Anything, mock.Anything).Return((<-chan llm.LLMStreamEvent)(events)).Once()

	consumer := NewConsumer(client)
	first := &recorder{}
	done := make(chan error, 1)
	go func() {
		done <- consumer.Run(context.Background(), nil, first.handlers())
	}()

	// wait until the first stream has been opened
	events <- delta("Bit")
	assert.True(t, consumer.Busy())

	second := &recorder{}
	err := consumer.Run(context.Background(), nil, second.handlers())
	assert.ErrorIs(t, err, ErrStreamInProgress)
	assert.Empty(t, second.calls)

	events <- complete()
	close(events)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("first invocation did not finish")
	}
	assert.False(t, consumer.Busy())
	assert.Equal(t, []string{"delta", "complete"}, first.calls)
	client.AssertNumberOfCalls(t, "Stream", 1)
}

func TestRun_ReusableAfterTermination(t *testing.T) {
	client := new(MockLLMClient)
	client.On("Stream", mock.Anything, mock.Anything).Return(eventsChan(failure(errors.New("network error")))).Once()
	client.On("Stream", mock.Anything, mock.Anything).Return(eventsChan(delta("ok"), complete())).Once()

	consumer := NewConsumer(client)

	first := &recorder{}
	assert.Error(t, consumer.Run(t.Context(), nil, first.handlers()))

	second := &recorder{}
	assert.NoError(t, consumer.Run(t.Context(), nil, second.handlers()))
	assert.Equal(t, []string{"ok"}, second.deltas)
}

func TestInvocation_TerminalStatesRejectTriggers(t *testing.T) {
	rec := &recorder{}
	inv := newInvocation(rec.handlers(), nil)

	require.NoError(t, inv.fire(TriggerStart))
	assert.Equal(t, StateRequesting, inv.state())
	require.NoError(t, inv.fire(TriggerFirstByte))
	assert.Equal(t, StateStreaming, inv.state())
	require.NoError(t, inv.fire(TriggerEnd))
	assert.Equal(t, StateCompleted, inv.state())

	assert.Error(t, inv.fire(TriggerFail, errors.New("late")))
	assert.Error(t, inv.fire(TriggerEnd))
	assert.Equal(t, StateCompleted, inv.state())
	assert.Equal(t, []string{"complete"}, rec.calls)
}

func TestInvocation_FailFromRequesting(t *testing.T) {
	rec := &recorder{}
	inv := newInvocation(rec.handlers(), nil)

	require.NoError(t, inv.fire(TriggerStart))
	require.NoError(t, inv.fire(TriggerFail, errors.New("dns failure")))

	assert.Equal(t, StateFailed, inv.state())
	assert.Error(t, inv.fire(TriggerFirstByte))
	require.Len(t, rec.errs, 1)
	assert.EqualError(t, rec.errs[0], "dns failure")
}

func TestInvocation_IdleCannotComplete(t *testing.T) {
	inv := newInvocation(Handlers{}, nil)

	assert.Error(t, inv.fire(TriggerEnd))
	assert.Equal(t, StateIdle, inv.state())
}

func TestRun_HandlersCanStartNextInvocation(t *testing.T) {
	networkErr := errors.New("network error")
	tests := []struct {
		name   string
		events <-chan llm.LLMStreamEvent
	}{
		{name: "from OnError", events: eventsChan(delta("Bit"), failure(networkErr))},
		{name: "from OnComplete", events: eventsChan(delta("Bitcoin"), complete())},
		{name: "after truncation", events: eventsChan(delta("Bit"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := new(MockLLMClient)
			client.On("Stream", mock.Anything, mock.Anything).Return(tt.events).Once()
			client.On("Stream", mock.Anything, mock.Anything).Return(eventsChan(delta("retry"), complete())).Once()

			consumer := NewConsumer(client)
			retry := &recorder{}
			var retryErr error
			retried := false
			next := func() {
				retried = true
				retryErr = consumer.Run(t.Context(), nil, retry.handlers())
			}

			_ = consumer.Run(t.Context(), nil, Handlers{
				OnComplete: next,
				OnError:    func(error) { next() },
			})

			require.True(t, retried)
			require.NoError(t, retryErr)
			assert.Equal(t, []string{"retry"}, retry.deltas)
			assert.False(t, consumer.Busy())
		})
	}
}

func TestRun_ReleasedOnceTransportCloses(t *testing.T) {
	events := make(chan llm.LLMStreamEvent)
	client := new(MockLLMClient)
	client.On("Stream", mock.Anything, mock.Anything).Return((<-chan llm.LLMStreamEvent)(events)).Once()
	client.On("Stream", mock.Anything, mock.Anything).Return(eventsChan(complete())).Once()

	go func() {
		events <- complete()
		time.Sleep(50 * time.Millisecond)
		close(events)
	}()

	consumer := NewConsumer(client)
	completed := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- consumer.Run(context.Background(), nil, Handlers{OnComplete: func() { close(completed) }})
	}()

	select {
	case <-completed:
	case <-time.After(time.Second):
		t.Fatal("first invocation did not complete")
	}
	assert.NoError(t, consumer.Run(context.Background(), nil, Handlers{}))
	require.NoError(t, <-done)
}

func TestRun_StateTransitions(t *testing.T) {
	tests := []struct {
		name     string
		events   <-chan llm.LLMStreamEvent
		expected []State
	}{
		{
			name:     "answer",
			events:   eventsChan(delta("Bitcoin"), complete()),
			expected: []State{StateRequesting, StateStreaming, StateCompleted},
		},
		{
			name:     "failure before any byte",
			events:   eventsChan(failure(&llm.APIError{StatusCode: 502, Message: "bad gateway"})),
			expected: []State{StateRequesting, StateFailed},
		},
		{
			name:     "failure mid stream",
			events:   eventsChan(delta("Bit"), failure(errors.New("network error"))),
			expected: []State{StateRequesting, StateStreaming, StateFailed},
		},
		{
			name:     "truncated before any byte",
			events:   eventsChan(),
			expected: []State{StateRequesting, StateFailed},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := new(MockLLMClient)
			client.On("Stream", mock.Anything, mock.Anything).Return(tt.events).Once()

			var path []State
			consumer := NewConsumer(client)
			consumer.onTransition = func(_, to State) { path = append(path, to) }

			_ = consumer.Run(t.Context(), nil, Handlers{})

			assert.Equal(t, tt.expected, path)
		})
	}
}
