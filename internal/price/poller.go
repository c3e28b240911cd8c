package price

import (
	"context"
	"sync"
	"time"

	"github.com/klemjul/cryptochat/internal/logger"
)

// Update is the outcome of one fetch. Err is set when the fetch failed.
type Update struct {
	Symbol Symbol
	Quote  Quote
	Err    error
}

// Poller fetches every symbol on its own timer.
type Poller struct {
	fetcher  Fetcher
	symbols  []Symbol
	interval time.Duration
}

func NewPoller(fetcher Fetcher, symbols []Symbol, interval time.Duration) *Poller {
	return &Poller{fetcher: fetcher, symbols: symbols, interval: interval}
}

// Run fetches each symbol immediately and then once per interval, sending
// results to updates. It returns when ctx is done.
func (p *Poller) Run(ctx context.Context, updates chan<- Update) {
	var wg sync.WaitGroup
	for _, symbol := range p.symbols {
		wg.Add(1)
		go func(symbol Symbol) {
			defer wg.Done()
			p.poll(ctx, symbol, updates)
		}(symbol)
	}
	wg.Wait()
}

func (p *Poller) poll(ctx context.Context, symbol Symbol, updates chan<- Update) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		quote, err := p.fetcher.Fetch(ctx, symbol.ID)
		if err != nil && ctx.Err() == nil {
			logger.L.Warn("price fetch failed", "symbol", symbol.ID, "error", err)
		}

		select {
		case updates <- Update{Symbol: symbol, Quote: quote, Err: err}:
		case <-ctx.Done():
			return
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}
