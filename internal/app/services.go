package app

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/klemjul/cryptochat/internal/format"
	"github.com/klemjul/cryptochat/internal/llm"
	"github.com/klemjul/cryptochat/internal/price"
	"github.com/klemjul/cryptochat/internal/ui"
)

type TUIService interface {
	InitialModel(opts ui.InitialModelOptions) ui.ChatTUIModel
	Run(model ui.ChatTUIModel) (returnModel tea.Model, returnErr error)
}

type LLMService interface {
	NewClient(provider llm.LLMProvider, opts llm.LLMClientOptions) (llm.LLMClient, error)
}

type PriceService interface {
	NewFetcher(baseURL string) price.Fetcher
}

type TextFormatService interface {
	FormatMarkdown(text string, width int) (string, error)
}

type App interface {
	TUI() TUIService
	LLM() LLMService
	Prices() PriceService
	Format() TextFormatService
}

type DefaultTUIService struct{}

type DefaultLLMService struct{}

type DefaultPriceService struct{}

type DefaultTextFormatService struct{}

type DefaultApp struct {
	tui    TUIService
	llm    LLMService
	prices PriceService
	format TextFormatService
}

func (a *DefaultApp) TUI() TUIService           { return a.tui }
func (a *DefaultApp) LLM() LLMService           { return a.llm }
func (a *DefaultApp) Prices() PriceService      { return a.prices }
func (a *DefaultApp) Format() TextFormatService { return a.format }

func (c *DefaultTUIService) InitialModel(opts ui.InitialModelOptions) ui.ChatTUIModel {
	return ui.InitialModel(opts)
}
func (c *DefaultTUIService) Run(model ui.ChatTUIModel) (returnModel tea.Model, returnErr error) {
	return tea.NewProgram(model, tea.WithAltScreen()).Run()
}

func (l *DefaultLLMService) NewClient(provider llm.LLMProvider, opts llm.LLMClientOptions) (llm.LLMClient, error) {
	return llm.NewClient(provider, opts)
}

func (p *DefaultPriceService) NewFetcher(baseURL string) price.Fetcher {
	return price.NewClient(baseURL, nil)
}

func (l *DefaultTextFormatService) FormatMarkdown(text string, width int) (string, error) {
	return format.FormatMarkdown(text, width)
}

func NewDefaultApp() App {
	return &DefaultApp{tui: &DefaultTUIService{}, llm: &DefaultLLMService{}, prices: &DefaultPriceService{}, format: &DefaultTextFormatService{}}
}
