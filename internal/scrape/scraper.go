package scrape

import (
	"context"
	"log/slog"
	nurl "net/url"
	"sync"

	"golang.org/x/time/rate"
)

// DefaultParallelism is the batch worker count when none is configured.
// Politeness is enforced per host, so parallelism above 1 only speeds up
// multi-host batches.
const DefaultParallelism = 4

// BatchStats summarizes one batch scrape.
type BatchStats struct {
	Requested int
	Succeeded int
}

// Failed returns the number of URLs that could not be scraped.
func (s BatchStats) Failed() int { return s.Requested - s.Succeeded }

// Scraper runs batches of extractions with a bounded worker pool. Each host
// is fetched at most once per politeness interval regardless of how many
// workers are active.
type Scraper struct {
	extractor   *Extractor
	parallelism int
	perHost     rate.Limit
	logger      *slog.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewScraper creates a Scraper over the given extractor. perHost is the
// sustained request rate allowed against a single host; zero or negative
// means one request per second.
func NewScraper(extractor *Extractor, parallelism int, perHost rate.Limit, logger *slog.Logger) *Scraper {
	if parallelism <= 0 {
		parallelism = DefaultParallelism
	}
	if perHost <= 0 {
		perHost = rate.Limit(1)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scraper{
		extractor:   extractor,
		parallelism: parallelism,
		perHost:     perHost,
		logger:      logger,
		limiters:    make(map[string]*rate.Limiter),
	}
}

// ScrapeAll extracts every URL in urls. A URL that fails is logged and
// excluded from the result; one bad page never aborts the batch. Results
// preserve the input order of the URLs that succeeded.
func (s *Scraper) ScrapeAll(ctx context.Context, urls []string) ([]Page, BatchStats) {
	stats := BatchStats{Requested: len(urls)}
	if len(urls) == 0 {
		return nil, stats
	}

	s.logger.Info("scraping batch", "urls", len(urls), "parallelism", s.parallelism)

	type slot struct {
		page Page
		ok   bool
	}
	results := make([]slot, len(urls))

	var wg sync.WaitGroup
	sem := make(chan struct{}, s.parallelism)

	for i, url := range urls {
		wg.Add(1)
		go func(i int, url string) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}

			if err := s.waitPoliteness(ctx, url); err != nil {
				return
			}

			page, err := s.extractor.Extract(ctx, url)
			if err != nil {
				s.logger.Error("failed to scrape URL", "url", url, "error", err)
				return
			}
			results[i] = slot{page: page, ok: true}
		}(i, url)
	}
	wg.Wait()

	pages := make([]Page, 0, len(urls))
	for _, r := range results {
		if r.ok {
			pages = append(pages, r.page)
			stats.Succeeded++
		}
	}

	s.logger.Info("scraping complete", "succeeded", stats.Succeeded, "failed", stats.Failed())
	return pages, stats
}

// waitPoliteness blocks until the URL's host may be fetched again.
func (s *Scraper) waitPoliteness(ctx context.Context, url string) error {
	host := hostOf(url)

	s.mu.Lock()
	limiter, ok := s.limiters[host]
	if !ok {
		limiter = rate.NewLimiter(s.perHost, 1)
		s.limiters[host] = limiter
	}
	s.mu.Unlock()

	return limiter.Wait(ctx)
}

func hostOf(url string) string {
	u, err := nurl.Parse(url)
	if err != nil || u.Host == "" {
		return url
	}
	return u.Host
}
