package chat

import (
	"errors"
	"testing"

	"github.com/klemjul/cryptochat/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var systemPrompt = llm.Message{Role: llm.System, Content: "You are CryptoAI", Hidden: true}

func TestSubmit(t *testing.T) {
	s := NewStore(systemPrompt)

	history, err := s.Submit("What is Bitcoin?")

	require.NoError(t, err)
	assert.Equal(t, []llm.Message{
		systemPrompt,
		{Role: llm.User, Content: "What is Bitcoin?"},
	}, history)
	assert.Equal(t, TurnStreaming, s.Turn())
}

func TestSubmit_Rejected(t *testing.T) {
	tests := []struct {
		name        string
		setup       func(s *Store)
		input       string
		expectedErr error
	}{
		{name: "empty", input: "", expectedErr: ErrEmptyMessage},
		{name: "blank", input: "  \t", expectedErr: ErrEmptyMessage},
		{
			name:        "while streaming",
			setup:       func(s *Store) { _, _ = s.Submit("first") },
			input:       "second",
			expectedErr: ErrTurnInProgress,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore()
			if tt.setup != nil {
				tt.setup(s)
			}
			before := s.Len()

			history, err := s.Submit(tt.input)

			assert.Nil(t, history)
			assert.ErrorIs(t, err, tt.expectedErr)
			assert.Equal(t, before, s.Len())
		})
	}
}

func TestAppendDelta_MergeOrAppend(t *testing.T) {
	s := NewStore()
	_, err := s.Submit("What is Bitcoin?")
	require.NoError(t, err)

	s.AppendDelta("Bit")
	assert.Equal(t, 2, s.Len(), "first delta appends an assistant entry")

	s.AppendDelta("coin")
	assert.Equal(t, 2, s.Len(), "later deltas merge in place")

	last, ok := s.Last()
	require.True(t, ok)
	assert.Equal(t, llm.Message{Role: llm.Assistant, Content: "Bitcoin"}, last)
}

func TestAppendDelta_IdleStoreUsesTrailingRole(t *testing.T) {
	s := NewStore(llm.Message{Role: llm.User, Content: "hi"})

	s.AppendDelta("hel")
	s.AppendDelta("lo")

	assert.Equal(t, []llm.Message{
		{Role: llm.User, Content: "hi"},
		{Role: llm.Assistant, Content: "hello"},
	}, s.Messages())
}

func TestAppendDelta_NewTurnDoesNotMergeIntoPreviousAnswer(t *testing.T) {
	s := NewStore(
		llm.Message{Role: llm.User, Content: "q1"},
		llm.Message{Role: llm.Assistant, Content: "a1"},
	)
	// a turn whose user message was dropped from the tail must still get its own entry
	s.turn = TurnStreaming

	s.AppendDelta("a2")

	require.Equal(t, 3, s.Len())
	assert.Equal(t, "a1", s.Messages()[1].Content)
	assert.Equal(t, "a2", s.Messages()[2].Content)
}

func TestScenario_CompleteTurn(t *testing.T) {
	s := NewStore()
	_, err := s.Submit("What is Bitcoin?")
	require.NoError(t, err)

	for _, d := range []string{"Bitcoin", " is a", " decentralized currency."} {
		s.AppendDelta(d)
	}
	s.Complete()

	assert.Equal(t, []llm.Message{
		{Role: llm.User, Content: "What is Bitcoin?"},
		{Role: llm.Assistant, Content: "Bitcoin is a decentralized currency."},
	}, s.Messages())
	assert.Equal(t, TurnIdle, s.Turn())
}

func TestScenario_FailurePreservesPartialAnswer(t *testing.T) {
	s := NewStore()
	_, err := s.Submit("What is Bitcoin?")
	require.NoError(t, err)

	s.AppendDelta("Bit")
	s.AppendDelta("coin is")
	s.Fail(errors.New("network error"))

	assert.Equal(t, []llm.Message{
		{Role: llm.User, Content: "What is Bitcoin?"},
		{Role: llm.Assistant, Content: "Bitcoin is"},
	}, s.Messages())
	assert.Equal(t, TurnIdle, s.Turn())

	_, err = s.Submit("try again")
	assert.NoError(t, err, "input unlocks after a failure")
}

func TestScenario_TwoTurns(t *testing.T) {
	s := NewStore()

	_, _ = s.Submit("q1")
	s.AppendDelta("a1")
	s.Complete()

	history, err := s.Submit("q2")
	require.NoError(t, err)
	assert.Len(t, history, 3)

	s.AppendDelta("a2")
	s.Complete()

	assert.Equal(t, []llm.Message{
		{Role: llm.User, Content: "q1"},
		{Role: llm.Assistant, Content: "a1"},
		{Role: llm.User, Content: "q2"},
		{Role: llm.Assistant, Content: "a2"},
	}, s.Messages())
}

func TestMessages_ReturnsCopy(t *testing.T) {
	s := NewStore(llm.Message{Role: llm.User, Content: "hi"})

	msgs := s.Messages()
	msgs[0].Content = "changed"

	assert.Equal(t, "hi", s.Messages()[0].Content)
}

func TestLastAssistant(t *testing.T) {
	s := NewStore(systemPrompt)
	_, ok := s.LastAssistant()
	assert.False(t, ok)

	_, _ = s.Submit("q1")
	s.AppendDelta("a1")
	s.Complete()
	_, _ = s.Submit("q2")

	last, ok := s.LastAssistant()
	require.True(t, ok)
	assert.Equal(t, "a1", last.Content)
}

func TestHasVisible(t *testing.T) {
	s := NewStore(systemPrompt)
	assert.False(t, s.HasVisible())

	_, _ = s.Submit("hello")
	assert.True(t, s.HasVisible())
}

func TestReset(t *testing.T) {
	s := NewStore(systemPrompt)
	_, _ = s.Submit("q1")

	assert.ErrorIs(t, s.Reset(), ErrTurnInProgress)

	s.AppendDelta("a1")
	s.Complete()
	require.NoError(t, s.Reset())

	assert.Equal(t, []llm.Message{systemPrompt}, s.Messages())
}

func TestTurnState_String(t *testing.T) {
	assert.Equal(t, "idle", TurnIdle.String())
	assert.Equal(t, "streaming", TurnStreaming.String())
}
