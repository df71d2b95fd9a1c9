// Package strategy implements the two harvest strategies: listing-page image
// extraction and direct ticker-data URLs.
package strategy

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/antchfx/htmlquery"
	"go.uber.org/zap"

	"github.com/avask/harvester/internal/harvest"
	"github.com/avask/harvester/internal/sink"
)

// ImageConfig parameterizes the image strategy.
type ImageConfig struct {
	// BaseURL is the listing site root, e.g. https://www.stockfreeimages.com.
	BaseURL string
	// Item is the search term segment of the listing URL.
	Item string
	// HostFilter keeps only image URLs containing this substring.
	HostFilter string
}

// Image harvests every matching image linked from one listing page per task.
// The task ID is the listing page number.
type Image struct {
	cfg     ImageConfig
	fetcher harvest.Fetcher
	sink    *sink.FileSink
	logger  *zap.Logger
}

// NewImage constructs the image strategy.
func NewImage(cfg ImageConfig, fetcher harvest.Fetcher, snk *sink.FileSink, logger *zap.Logger) (*Image, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("image strategy: base url is required")
	}
	if cfg.Item == "" {
		return nil, fmt.Errorf("image strategy: item is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Image{cfg: cfg, fetcher: fetcher, sink: snk, logger: logger}, nil
}

// listingURL builds the per-page listing address: {base}/p{page}/{item}.html.
func (s *Image) listingURL(page string) string {
	return fmt.Sprintf("%s/p%s/%s.html", strings.TrimSuffix(s.cfg.BaseURL, "/"), page, s.cfg.Item)
}

// Resolve fetches the listing page for the given page number and extracts
// the image URLs matching the configured host filter.
func (s *Image) Resolve(ctx context.Context, item string) ([]harvest.Target, error) {
	listing := s.listingURL(item)
	resp, err := s.fetcher.Fetch(ctx, harvest.FetchRequest{URL: listing, Kind: harvest.KindText})
	if err != nil {
		return nil, fmt.Errorf("fetch listing page %s: %w", item, err)
	}

	doc, err := htmlquery.Parse(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, fmt.Errorf("parse listing page %s: %w", item, err)
	}

	var targets []harvest.Target
	for _, node := range htmlquery.Find(doc, "//img/@src") {
		src := htmlquery.InnerText(node)
		if s.cfg.HostFilter != "" && !strings.Contains(src, s.cfg.HostFilter) {
			continue
		}
		targets = append(targets, harvest.Target{URL: src, Kind: harvest.KindBinary})
	}
	s.logger.Debug("listing resolved",
		zap.String("page", item),
		zap.Int("images", len(targets)),
	)
	return targets, nil
}

// Save writes the image under its URL's trailing path segment, overwriting
// any previous copy.
func (s *Image) Save(_ string, target harvest.Target, body []byte) (string, error) {
	name, err := artifactName(target.URL)
	if err != nil {
		return "", err
	}
	return s.sink.Write(name, body)
}

// EffectivePageCount clamps the requested page count to what the site
// actually advertises. Discovery failures keep the requested count so a
// flaky pagination node never aborts a run.
func (s *Image) EffectivePageCount(ctx context.Context, requested int) int {
	available, err := s.DiscoverPageCount(ctx)
	if err != nil {
		s.logger.Warn("page count discovery failed", zap.Error(err))
		return requested
	}
	if requested > available {
		s.logger.Info("clamping page count to available pages",
			zap.Int("requested", requested),
			zap.Int("available", available),
		)
		return available
	}
	return requested
}

// DiscoverPageCount reads the pagination text on the first listing page.
func (s *Image) DiscoverPageCount(ctx context.Context) (int, error) {
	resp, err := s.fetcher.Fetch(ctx, harvest.FetchRequest{URL: s.listingURL("1"), Kind: harvest.KindText})
	if err != nil {
		return 0, fmt.Errorf("fetch first listing page: %w", err)
	}
	doc, err := htmlquery.Parse(bytes.NewReader(resp.Body))
	if err != nil {
		return 0, fmt.Errorf("parse first listing page: %w", err)
	}
	node := htmlquery.FindOne(doc, `//li[@class="pag-text"]`)
	if node == nil {
		return 0, fmt.Errorf("pagination text not found")
	}
	fields := strings.Fields(htmlquery.InnerText(node))
	if len(fields) < 2 {
		return 0, fmt.Errorf("unexpected pagination text %q", htmlquery.InnerText(node))
	}
	count, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, fmt.Errorf("parse page count from %q: %w", fields[1], err)
	}
	return count, nil
}

// artifactName extracts the trailing path segment of an image URL.
func artifactName(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse image url: %w", err)
	}
	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		return "", fmt.Errorf("image url %q has no file name", rawURL)
	}
	return name, nil
}
