package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/klemjul/cryptochat/internal/chat"
	"github.com/klemjul/cryptochat/internal/format"
	"github.com/klemjul/cryptochat/internal/llm"
	"github.com/klemjul/cryptochat/internal/price"
)

type ChatTUIModel struct {
	textInput textinput.Model
	viewport  viewport.Model
	spinner   spinner.Model
	store     *chat.Store
	title     string
	waiting   bool
	width     int

	// events is the channel of the answer currently streaming.
	events      <-chan tea.Msg
	startStream func(messages []llm.Message) <-chan tea.Msg

	ctx          context.Context
	prices       price.Fetcher
	pollInterval time.Duration
	sidebar      sidebar

	toast       toast
	suggestions []string
	copyText    func(string) error
	render      func(text string, width int) (string, error)
	rendered    *renderCache
}

const (
	CHAT_TITLE             = "CryptoAI · your intelligent crypto trading assistant"
	CHAT_INPUT_PLACEHOLDER = "Ask about crypto markets..."
	CHAT_WAITING_RESPONSE  = "> ⏳ Waiting for response..."
	CHAT_THINKING          = "Thinking..."
	CHAT_WELCOME           = "Welcome to CryptoAI! 🚀"
	CHAT_WELCOME_TEXT      = "I'm your intelligent crypto assistant. Ask me anything about crypto markets, trading strategies, or specific coins!"
	CHAT_TRY_ASKING        = "Try asking (tab to fill in):"
	CHAT_CLEAR_COMMAND     = "/clear"
	CHAT_COPIED            = "Copied last answer to clipboard"
	CHAT_NOTHING_TO_COPY   = "No answer to copy yet"
	CHAT_CLEARED           = "Conversation cleared"
	CHAT_STREAM_CLOSED     = "response stream closed unexpectedly"
	CHAT_HELP              = "enter send · tab suggest · ctrl+y copy · /clear reset · esc quit"
)

type InitialModelOptions struct {
	Title string
	// Messages seeds the conversation, typically with a hidden system prompt.
	Messages []llm.Message
	// StartStream sends the history and returns the stream of StreamDeltaMsg,
	// then one StreamDoneMsg or StreamFailedMsg.
	StartStream func(messages []llm.Message) <-chan tea.Msg

	Context      context.Context
	Prices       price.Fetcher
	Symbols      []price.Symbol
	PollInterval time.Duration

	Suggestions []string
	CopyText    func(string) error

	// RenderMarkdown formats assistant answers, glamour by default.
	RenderMarkdown func(text string, width int) (string, error)
}

func InitialModel(opts InitialModelOptions) ChatTUIModel {
	ti := textinput.New()
	ti.Placeholder = CHAT_INPUT_PLACEHOLDER
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	title := opts.Title
	if title == "" {
		title = CHAT_TITLE
	}
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	suggestions := opts.Suggestions
	if suggestions == nil {
		suggestions = DefaultSuggestions
	}
	copyText := opts.CopyText
	if copyText == nil {
		copyText = clipboard.WriteAll
	}
	render := opts.RenderMarkdown
	if render == nil {
		render = format.FormatMarkdown
	}
	var symbols []price.Symbol
	if opts.Prices != nil {
		symbols = opts.Symbols
	}

	return ChatTUIModel{
		textInput:    ti,
		viewport:     viewport.New(0, 0),
		spinner:      sp,
		store:        chat.NewStore(opts.Messages...),
		title:        title,
		startStream:  opts.StartStream,
		ctx:          ctx,
		prices:       opts.Prices,
		pollInterval: opts.PollInterval,
		sidebar:      newSidebar(symbols),
		suggestions:  suggestions,
		copyText:     copyText,
		render:       render,
		rendered:     &renderCache{},
	}
}

func (m ChatTUIModel) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, tea.EnableMouseCellMotion}
	for _, w := range m.sidebar.widgets {
		cmds = append(cmds, fetchQuote(m.ctx, m.prices, w.symbol))
	}
	return tea.Batch(cmds...)
}

func (m ChatTUIModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		titleLines := (len(m.title) / max(msg.Width, 1)) + 1
		m.viewport = viewport.New(m.chatWidth(), max(msg.Height-(4+titleLines), 0))
		m.updateViewport()

	case tea.MouseMsg:
		if msg.Action == tea.MouseActionPress {
			switch msg.Button {
			case tea.MouseButtonWheelUp:
				m.viewport.ScrollUp(1)
			case tea.MouseButtonWheelDown:
				m.viewport.ScrollDown(1)
			}
		}

	case StreamDeltaMsg:
		m.store.AppendDelta(msg.Text)
		m.updateViewport()
		if m.events != nil {
			cmd = waitForStream(m.events)
		}

	case StreamDoneMsg:
		m.store.Complete()
		m.finishStream()

	case StreamFailedMsg:
		m.store.Fail(msg.Err)
		m.finishStream()
		cmd = m.toast.show(errorText(msg.Err), toastError)

	case StreamRejectedMsg:
		m.store.Fail(msg.Err)
		m.finishStream()
		cmd = m.toast.show(errorText(msg.Err), toastError)

	case streamClosedMsg:
		if m.waiting {
			m.store.Fail(errors.New(CHAT_STREAM_CLOSED))
			m.finishStream()
			cmd = m.toast.show(CHAT_STREAM_CLOSED, toastError)
		}

	case spinner.TickMsg:
		if m.waiting {
			m.spinner, cmd = m.spinner.Update(msg)
			m.updateViewport()
		}

	case quoteMsg:
		m.sidebar.update(msg.symbol, msg.quote, msg.err)
		if m.pollInterval > 0 {
			cmd = schedulePoll(m.pollInterval, msg.symbol)
		}

	case pollQuoteMsg:
		cmd = fetchQuote(m.ctx, m.prices, msg.symbol)

	case toastExpiredMsg:
		m.toast.expire(msg.id)

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			cmd = tea.Quit
		case tea.KeyEnter:
			if m.textInput.Value() != "" && !m.waiting {
				cmd = m.submit(m.textInput.Value())
			}
		case tea.KeyTab:
			if !m.waiting {
				if s, ok := completeSuggestion(m.textInput.Value(), m.suggestions); ok {
					m.textInput.SetValue(s)
				}
			}
		case tea.KeyCtrlY:
			cmd = m.copyLastAnswer()
		}
	}

	m.textInput, _ = m.textInput.Update(msg)

	if m.waiting {
		m.textInput.Blur()
	} else {
		m.textInput.Focus()
	}

	return m, cmd
}

func (m *ChatTUIModel) submit(input string) tea.Cmd {
	if strings.TrimSpace(input) == CHAT_CLEAR_COMMAND {
		m.textInput.SetValue("")
		if err := m.store.Reset(); err != nil {
			return m.toast.show(err.Error(), toastError)
		}
		m.updateViewport()
		return m.toast.show(CHAT_CLEARED, toastInfo)
	}

	history, err := m.store.Submit(input)
	if err != nil {
		return m.toast.show(err.Error(), toastError)
	}
	m.waiting = true
	m.textInput.SetValue("")
	m.updateViewport()

	m.events = m.startStream(history)
	return tea.Batch(waitForStream(m.events), m.spinner.Tick)
}

func (m *ChatTUIModel) finishStream() {
	m.waiting = false
	m.events = nil
	m.updateViewport()
}

func (m *ChatTUIModel) copyLastAnswer() tea.Cmd {
	last, ok := m.store.LastAssistant()
	if !ok {
		return m.toast.show(CHAT_NOTHING_TO_COPY, toastInfo)
	}
	if err := m.copyText(last.Content); err != nil {
		return m.toast.show(fmt.Sprintf("copy failed: %v", err), toastError)
	}
	return m.toast.show(CHAT_COPIED, toastInfo)
}

func errorText(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}

func (m ChatTUIModel) chatWidth() int {
	if m.sidebar.empty() || m.width < SIDEBAR_MIN_WIDTH {
		return m.width
	}
	return m.width - SIDEBAR_WIDTH
}

func (m *ChatTUIModel) updateViewport() {
	if !m.store.HasVisible() {
		m.viewport.SetContent(m.welcomeView())
		m.viewport.GotoTop()
		return
	}

	messages := m.store.Messages()
	displayedMessages := make([]string, 0, len(messages)+1)
	m.rendered.resize(len(messages), m.viewport.Width)
	for i, msg := range messages {
		if msg.Hidden {
			continue
		}
		switch msg.Role {
		case llm.Assistant:
			out := m.rendered.get(i, msg.Content, func() string {
				out, err := m.render(msg.Content, m.viewport.Width)
				if err != nil {
					return msg.Content
				}
				return out
			})
			displayedMessages = append(displayedMessages, botStyle.Render(strings.TrimSpace(out)))
		case llm.User:
			displayedMessages = append(displayedMessages, userStyle.Render(fmt.Sprintf("> %s", msg.Content)))
		}
	}

	if last, ok := m.store.Last(); m.waiting && ok && last.Role == llm.User {
		displayedMessages = append(displayedMessages, mutedStyle.Render(m.spinner.View()+" "+CHAT_THINKING))
	}

	content := strings.Join(displayedMessages, "\n\n")
	m.viewport.SetContent(content)
	m.viewport.GotoBottom()
}

// renderCache holds the markdown output of each message by position, so only
// an entry whose content changed is rendered again.
type renderCache struct {
	width   int
	sources []string
	outputs []string
}

func (c *renderCache) resize(n, width int) {
	if width != c.width {
		c.width = width
		c.sources, c.outputs = nil, nil
	}
	for len(c.sources) < n {
		c.sources = append(c.sources, "")
		c.outputs = append(c.outputs, "")
	}
	c.sources, c.outputs = c.sources[:n], c.outputs[:n]
}

func (c *renderCache) get(i int, content string, render func() string) string {
	if c.outputs[i] != "" && c.sources[i] == content {
		return c.outputs[i]
	}
	c.sources[i], c.outputs[i] = content, render()
	return c.outputs[i]
}

func (m ChatTUIModel) welcomeView() string {
	lines := []string{
		botStyle.Bold(true).Render(CHAT_WELCOME),
		"",
		CHAT_WELCOME_TEXT,
		"",
		mutedStyle.Render(CHAT_TRY_ASKING),
	}
	for _, s := range m.suggestions {
		lines = append(lines, "  • "+s)
	}
	return lipgloss.NewStyle().Width(max(m.viewport.Width, 0)).Render(strings.Join(lines, "\n"))
}

func (m ChatTUIModel) statusView() string {
	if m.toast.visible() {
		return m.toast.View()
	}
	tokens := llm.RoughEstimateMessagesTokens(m.store.Messages())
	return mutedStyle.Render(fmt.Sprintf("~%d tokens · %s", tokens, CHAT_HELP))
}

func (m ChatTUIModel) View() string {
	input := m.textInput.View()

	if m.waiting {
		input = CHAT_WAITING_RESPONSE
	}

	body := m.viewport.View()
	if m.chatWidth() != m.width {
		body = lipgloss.JoinHorizontal(lipgloss.Top, body, m.sidebar.View(m.viewport.Height))
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		titleStyle.Width(m.width).Render(m.title),
		body,
		m.statusView(),
		inputStyle.Width(m.width).Render(input),
	)
}
