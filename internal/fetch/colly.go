// Package fetch implements the HTTP fetcher on top of the Colly collector.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/avask/harvester/internal/harvest"
	"github.com/avask/harvester/internal/metrics"
)

// Config controls fetcher behavior.
type Config struct {
	UserAgent   string
	Timeout     time.Duration
	MaxParallel int
}

const (
	defaultTimeout     = 30 * time.Second
	defaultMaxParallel = 32
)

// StatusError reports a response whose status was anything but 200.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d for %s", e.Code, e.URL)
}

// Fetcher performs GETs through a shared Colly collector. Per-fetch clones
// share the base collector's transport so a worker's whole batch rides one
// connection session.
type Fetcher struct {
	base   *colly.Collector
	logger *zap.Logger
}

// New constructs a configured Fetcher.
func New(cfg Config, logger *zap.Logger) (*Fetcher, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = defaultMaxParallel
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := []colly.CollectorOption{
		colly.Async(true),
	}
	if cfg.UserAgent != "" {
		opts = append(opts, colly.UserAgent(cfg.UserAgent))
	}
	base := colly.NewCollector(opts...)
	base.AllowURLRevisit = true
	base.IgnoreRobotsTxt = true
	base.WithTransport(&http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          128,
		MaxIdleConnsPerHost:   32,
		MaxConnsPerHost:       cfg.MaxParallel * 2,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.Timeout,
		ForceAttemptHTTP2:     true,
	})
	base.SetRequestTimeout(cfg.Timeout)

	if err := base.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: cfg.MaxParallel,
	}); err != nil {
		return nil, err
	}

	return &Fetcher{
		base:   base,
		logger: logger,
	}, nil
}

// Fetch issues one GET and returns the body on HTTP 200. Any other status
// yields a *StatusError; transport failures are wrapped.
func (f *Fetcher) Fetch(ctx context.Context, req harvest.FetchRequest) (harvest.FetchResponse, error) {
	target := req.URL
	if len(req.Query) > 0 {
		sep := "?"
		// Keep parameters the request already carries.
		for i := 0; i < len(target); i++ {
			if target[i] == '?' {
				sep = "&"
				break
			}
		}
		target = target + sep + req.Query.Encode()
	}

	start := time.Now()
	collector := f.base.Clone()
	resultCh := make(chan fetchResult, 1)
	var once sync.Once
	send := func(res fetchResult) {
		once.Do(func() {
			resultCh <- res
		})
	}

	collector.OnResponse(func(r *colly.Response) {
		if r.StatusCode != http.StatusOK {
			send(fetchResult{err: &StatusError{URL: target, Code: r.StatusCode}})
			return
		}
		send(fetchResult{resp: harvest.FetchResponse{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       append([]byte{}, r.Body...),
		}})
	})

	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			send(fetchResult{err: &StatusError{URL: target, Code: r.StatusCode}})
			return
		}
		if err == nil {
			err = errors.New("unknown colly error")
		}
		send(fetchResult{err: fmt.Errorf("get %s: %w", target, err)})
	})

	metrics.RequestsTotal.Inc()
	f.logger.Debug("http-get", zap.String("url", target), zap.String("kind", string(req.Kind)))

	if err := collector.Visit(target); err != nil {
		metrics.RequestErrorsTotal.Inc()
		return harvest.FetchResponse{}, fmt.Errorf("visit %s: %w", target, err)
	}
	collector.Wait()

	select {
	case res := <-resultCh:
		if err := ctx.Err(); err != nil {
			return harvest.FetchResponse{}, err
		}
		if res.err != nil {
			metrics.RequestErrorsTotal.Inc()
			return harvest.FetchResponse{}, res.err
		}
		res.resp.Duration = time.Since(start)
		metrics.BytesFetched.Add(float64(len(res.resp.Body)))
		f.logger.Debug("got response",
			zap.String("url", res.resp.URL),
			zap.Int("status", res.resp.StatusCode),
			zap.Duration("dur", res.resp.Duration),
		)
		return res.resp, nil
	default:
		return harvest.FetchResponse{}, errors.New("fetch produced no result")
	}
}

type fetchResult struct {
	resp harvest.FetchResponse
	err  error
}
