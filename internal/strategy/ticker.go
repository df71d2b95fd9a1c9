package strategy

import (
	"context"
	"fmt"
	"net/url"

	"github.com/avask/harvester/internal/harvest"
	"github.com/avask/harvester/internal/sink"
)

// TickerConfig parameterizes the ticker strategy.
type TickerConfig struct {
	// BaseURL is concatenated with the ticker symbol to form the fetch URL.
	BaseURL string
	// Params are forwarded as query parameters on every request.
	Params map[string]string
}

// Ticker harvests one CSV endpoint per ticker symbol.
type Ticker struct {
	cfg   TickerConfig
	sink  *sink.FileSink
	query url.Values
}

// NewTicker constructs the ticker strategy.
func NewTicker(cfg TickerConfig, snk *sink.FileSink) (*Ticker, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("ticker strategy: base url is required")
	}
	query := url.Values{}
	for k, v := range cfg.Params {
		query.Set(k, v)
	}
	return &Ticker{cfg: cfg, sink: snk, query: query}, nil
}

// Resolve maps a ticker symbol to exactly one text target.
func (s *Ticker) Resolve(_ context.Context, item string) ([]harvest.Target, error) {
	return []harvest.Target{{
		URL:   s.cfg.BaseURL + item,
		Kind:  harvest.KindText,
		Query: s.query,
	}}, nil
}

// Save appends the response to the ticker's CSV so repeated runs accumulate.
func (s *Ticker) Save(item string, _ harvest.Target, body []byte) (string, error) {
	return s.sink.Append(item+".csv", body)
}
