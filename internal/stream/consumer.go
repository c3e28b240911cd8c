// Package stream turns an llm.LLMClient stream into the delta, completion and
// failure callbacks a chat turn is driven by.
package stream

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/klemjul/cryptochat/internal/llm"
	"github.com/klemjul/cryptochat/internal/logger"
	"github.com/qmuntal/stateless"
)

// ErrStreamInProgress is returned by Run when another invocation on the same
// consumer has not terminated yet.
var ErrStreamInProgress = errors.New("a response is already streaming")

// Handlers receive the outcome of one invocation. OnDelta is called once per
// non-empty chunk in arrival order. Exactly one of OnComplete and OnError is
// called, after the last OnDelta.
type Handlers struct {
	OnDelta    func(text string)
	OnComplete func()
	OnError    func(err error)
}

// Consumer runs one streamed completion at a time against an LLM client.
type Consumer struct {
	client llm.LLMClient
	active atomic.Bool

	// onTransition observes every state change of an invocation.
	onTransition func(from, to State)
}

func NewConsumer(client llm.LLMClient) *Consumer {
	return &Consumer{client: client}
}

// Busy reports whether an invocation is outstanding.
func (c *Consumer) Busy() bool {
	return c.active.Load()
}

// Run sends the full history and blocks until the stream terminates. It
// returns ErrStreamInProgress without calling any handler when another Run is
// outstanding, otherwise the error passed to OnError, or nil. The consumer is
// released before OnComplete or OnError is called, so a handler may start the
// next invocation.
func (c *Consumer) Run(ctx context.Context, messages []llm.Message, h Handlers) error {
	if !c.active.CompareAndSwap(false, true) {
		return ErrStreamInProgress
	}

	inv := newInvocation(h, c.onTransition)
	log := logger.L.With("invocation", inv.id.String())
	log.Debug("stream requested", "messages", len(messages))

	if err := inv.fire(TriggerStart); err != nil {
		c.active.Store(false)
		return err
	}

	events := c.client.Stream(ctx, messages)
	released := false
	release := func() {
		// the transport goroutine owns the channel; let it finish
		for range events {
		}
		released = true
		c.active.Store(false)
	}
	defer func() {
		if !released {
			release()
		}
	}()

	fail := func(err error) error {
		release()
		if ferr := inv.fire(TriggerFail, err); ferr != nil {
			log.Error("failed to record stream failure", "error", ferr)
			return errors.Join(err, ferr)
		}
		return err
	}

	for event := range events {
		if event.Type == llm.LLMStreamEventTypeError {
			err := event.Err
			if err == nil {
				err = errors.New(event.Content)
			}
			log.Warn("stream failed", "error", err, "state", inv.state())
			return fail(err)
		}

		if inv.state() == StateRequesting {
			if err := inv.fire(TriggerFirstByte); err != nil {
				return err
			}
		}

		switch event.Type {
		case llm.LLMStreamEventTypeMessage:
			if event.Content != "" && h.OnDelta != nil {
				h.OnDelta(event.Content)
			}
		case llm.LLMStreamEventTypeComplete:
			log.Debug("stream completed", "input_tokens", event.Usage.InputTokens, "output_tokens", event.Usage.OutputTokens)
			release()
			return inv.fire(TriggerEnd)
		}
	}

	log.Warn("stream closed without terminal event")
	return fail(llm.ErrTruncatedStream)
}

type State string

const (
	StateIdle       State = "Idle"
	StateRequesting State = "Requesting"
	StateStreaming  State = "Streaming"
	StateCompleted  State = "Completed"
	StateFailed     State = "Failed"
)

type Trigger string

const (
	TriggerStart     Trigger = "Start"
	TriggerFirstByte Trigger = "FirstByte"
	TriggerEnd       Trigger = "End"
	TriggerFail      Trigger = "Fail"
)

// invocation tracks the lifecycle of one Run. Completed and Failed are
// terminal and reject every trigger, so each callback fires at most once.
type invocation struct {
	id  uuid.UUID
	fsm *stateless.StateMachine
}

func newInvocation(h Handlers, onTransition func(from, to State)) *invocation {
	fsm := stateless.NewStateMachine(StateIdle)
	if onTransition != nil {
		fsm.OnTransitioning(func(_ context.Context, t stateless.Transition) {
			onTransition(t.Source.(State), t.Destination.(State))
		})
	}

	fsm.Configure(StateIdle).
		Permit(TriggerStart, StateRequesting)

	fsm.Configure(StateRequesting).
		Permit(TriggerFirstByte, StateStreaming).
		Permit(TriggerFail, StateFailed)

	fsm.Configure(StateStreaming).
		Permit(TriggerEnd, StateCompleted).
		Permit(TriggerFail, StateFailed)

	fsm.Configure(StateCompleted).
		OnEntry(func(_ context.Context, _ ...any) error {
			if h.OnComplete != nil {
				h.OnComplete()
			}
			return nil
		})

	fsm.Configure(StateFailed).
		OnEntry(func(_ context.Context, args ...any) error {
			if h.OnError != nil {
				err, _ := args[0].(error)
				h.OnError(err)
			}
			return nil
		})

	return &invocation{id: uuid.New(), fsm: fsm}
}

func (inv *invocation) fire(trigger Trigger, args ...any) error {
	return inv.fsm.Fire(trigger, args...)
}

func (inv *invocation) state() State {
	return inv.fsm.MustState().(State)
}
