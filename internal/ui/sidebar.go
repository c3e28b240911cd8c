package ui

import (
	"strings"

	"github.com/klemjul/cryptochat/internal/format"
	"github.com/klemjul/cryptochat/internal/price"
)

const (
	SIDEBAR_WIDTH     = 26
	SIDEBAR_MIN_WIDTH = 60
	SIDEBAR_TITLE     = "LIVE PRICES"
	SIDEBAR_LOADING   = "loading..."
	SIDEBAR_ERROR     = "unavailable"
)

type priceWidget struct {
	symbol price.Symbol
	quote  price.Quote
	loaded bool
	err    error
}

// sidebar keeps the last quote of every symbol. A failed fetch keeps the
// previous quote and flags it.
type sidebar struct {
	widgets []priceWidget
}

func newSidebar(symbols []price.Symbol) sidebar {
	widgets := make([]priceWidget, len(symbols))
	for i, s := range symbols {
		widgets[i] = priceWidget{symbol: s}
	}
	return sidebar{widgets: widgets}
}

func (s *sidebar) update(symbol price.Symbol, quote price.Quote, err error) {
	for i := range s.widgets {
		if s.widgets[i].symbol.ID != symbol.ID {
			continue
		}
		s.widgets[i].err = err
		if err == nil {
			s.widgets[i].quote = quote
			s.widgets[i].loaded = true
		}
	}
}

func (s sidebar) empty() bool {
	return len(s.widgets) == 0
}

func (s sidebar) View(height int) string {
	lines := []string{sidebarHeaderStyle.Render(SIDEBAR_TITLE), ""}
	for _, w := range s.widgets {
		lines = append(lines, mutedStyle.Render(strings.ToUpper(w.symbol.Name)))
		switch {
		case w.loaded:
			change := upStyle.Render(format.FormatChange(w.quote.Change24h))
			if w.quote.Change24h < 0 {
				change = downStyle.Render(format.FormatChange(w.quote.Change24h))
			}
			line := priceStyle.Render(format.FormatPrice(w.quote.USD)) + " " + change
			if w.err != nil {
				line += " " + downStyle.Render("!")
			}
			lines = append(lines, line)
		case w.err != nil:
			lines = append(lines, downStyle.Render(SIDEBAR_ERROR))
		default:
			lines = append(lines, mutedStyle.Render(SIDEBAR_LOADING))
		}
		lines = append(lines, "")
	}
	return sidebarStyle.
		Width(SIDEBAR_WIDTH - 1).
		Height(max(height, 0)).
		Render(strings.Join(lines, "\n"))
}
