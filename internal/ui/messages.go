package ui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/klemjul/cryptochat/internal/price"
)

// StreamDeltaMsg carries one text fragment of the answer being streamed.
type StreamDeltaMsg struct {
	Text string
}

// StreamDoneMsg ends the current answer successfully.
type StreamDoneMsg struct{}

// StreamFailedMsg ends the current answer with an error.
type StreamFailedMsg struct {
	Err error
}

// StreamRejectedMsg reports that the request was refused before it started.
// The question stays in the history without an answer.
type StreamRejectedMsg struct {
	Err error
}

type streamClosedMsg struct{}

type quoteMsg struct {
	symbol price.Symbol
	quote  price.Quote
	err    error
}

type pollQuoteMsg struct {
	symbol price.Symbol
}

type toastExpiredMsg struct {
	id int
}

func waitForStream(events <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-events
		if !ok {
			return streamClosedMsg{}
		}
		return msg
	}
}

func fetchQuote(ctx context.Context, fetcher price.Fetcher, symbol price.Symbol) tea.Cmd {
	return func() tea.Msg {
		quote, err := fetcher.Fetch(ctx, symbol.ID)
		return quoteMsg{symbol: symbol, quote: quote, err: err}
	}
}

func schedulePoll(interval time.Duration, symbol price.Symbol) tea.Cmd {
	return tea.Tick(interval, func(time.Time) tea.Msg {
		return pollQuoteMsg{symbol: symbol}
	})
}
