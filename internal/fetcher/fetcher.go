package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/draftpilot/backend/internal/admissibility"
	"github.com/draftpilot/backend/internal/metrics"
	"github.com/draftpilot/backend/internal/quality"
	"github.com/draftpilot/backend/internal/storage/models"
	"github.com/draftpilot/backend/pkg/circuitbreaker"
	"github.com/draftpilot/backend/pkg/logger"
	"github.com/draftpilot/backend/pkg/retry"
	"github.com/draftpilot/backend/pkg/utils"
)

var ErrNoContent = errors.New("no usable content in response")

const (
	userAgent        = "draftpilot-research/1.0"
	errorBodyPreview = 200
)

// Transport issues one HTTP request. Production uses *http.Client;
// tests inject fakes.
type Transport interface {
	Do(req *http.Request) (*http.Response, error)
}

// Cache is an explicit, injected fetch-result cache. The TTL and
// eviction policy belong to the implementation; nil disables caching.
type Cache interface {
	Get(ctx context.Context, key string, out any) (bool, error)
	Set(ctx context.Context, key string, val any) error
}

// FetchResult is the usable outcome of one fetch.
type FetchResult struct {
	Title   string `json:"title,omitempty"`
	Content string `json:"content"`
	Partial bool   `json:"partial"`
}

// BatchStats aggregates one enrichment batch. Skipped items are
// admissibility rejections and are never counted as network failures.
type BatchStats struct {
	Total              int  `json:"total"`
	Successful         int  `json:"successful"`
	Partial            int  `json:"partial"`
	Failed             int  `json:"failed"`
	Skipped            int  `json:"skipped"`
	TotalContentSize   int  `json:"total_content_size"`
	AverageContentSize int  `json:"average_content_size"`
	SizeWarning        bool `json:"size_warning"`
}

type Config struct {
	Timeout          time.Duration
	MinContentLength int
	MaxContentLength int
	BatchWarnBytes   int
}

// Fetcher enriches web sources with bounded, backoff-governed retries.
// Failure of one item never aborts its siblings.
type Fetcher struct {
	transport Transport
	filter    *admissibility.Filter
	breaker   *circuitbreaker.Breaker
	cache     Cache
	policy    retry.Policy
	cfg       Config
}

func New(transport Transport, filter *admissibility.Filter, breaker *circuitbreaker.Breaker, cache Cache, policy retry.Policy, cfg Config) *Fetcher {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MinContentLength == 0 {
		cfg.MinContentLength = 100
	}
	if cfg.MaxContentLength == 0 {
		cfg.MaxContentLength = 1500
	}
	if cfg.BatchWarnBytes == 0 {
		cfg.BatchWarnBytes = 15000
	}
	if policy.Retryable == nil {
		policy.Retryable = func(err error) bool {
			return !errors.Is(err, circuitbreaker.ErrCircuitOpen)
		}
	}
	return &Fetcher{
		transport: transport,
		filter:    filter,
		breaker:   breaker,
		cache:     cache,
		policy:    policy,
		cfg:       cfg,
	}
}

// NewTransport returns the production HTTP transport with the per-call
// timeout the fetcher expects.
func NewTransport(timeout time.Duration) Transport {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// FetchBatch enriches every source that needs it. Enrichment fetches
// run concurrently and independently; aggregation happens only after
// all of them have settled.
func (f *Fetcher) FetchBatch(ctx context.Context, sources []models.Source) ([]models.Source, BatchStats) {
	enriched := make([]models.Source, len(sources))
	copy(enriched, sources)

	var wg sync.WaitGroup
	for i := range enriched {
		if !f.NeedsEnrichment(enriched[i]) {
			continue
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			enriched[i] = f.EnrichOne(ctx, enriched[i])
		}(i)
	}
	wg.Wait()

	stats := f.ComputeStats(enriched)
	if stats.SizeWarning {
		logger.Warn("Batch content exceeds size threshold",
			zap.Int("total_content_size", stats.TotalContentSize),
			zap.Int("threshold", f.cfg.BatchWarnBytes),
		)
		metrics.BatchSizeWarnings.Inc()
	}

	logger.Info("Enrichment batch completed",
		zap.Int("total", stats.Total),
		zap.Int("successful", stats.Successful),
		zap.Int("failed", stats.Failed),
		zap.Int("skipped", stats.Skipped),
	)

	return enriched, stats
}

// NeedsEnrichment reports whether a source should be fetched: web kind
// with absent or trivially short content. Synthesis and document
// sources always pass through untouched.
func (f *Fetcher) NeedsEnrichment(src models.Source) bool {
	if src.Kind != models.KindWeb {
		return false
	}
	return len(src.Content) < f.cfg.MinContentLength
}

// EnrichOne applies the admissibility filter and, if the locator is
// fetchable, fetches it. The returned source carries the per-item
// outcome; on failure the original content is left untouched.
func (f *Fetcher) EnrichOne(ctx context.Context, src models.Source) models.Source {
	verdict := f.filter.Classify(src.Locator)
	if !verdict.Valid {
		src.FetchStatus = models.StatusSkipped
		src.FetchError = verdict.Reason
		metrics.FetchTotal.WithLabelValues("skipped").Inc()
		logger.Debug("Source skipped by admissibility filter",
			zap.String("locator", src.Locator),
			zap.String("reason", verdict.Reason),
		)
		return src
	}

	start := time.Now()
	result, err := f.FetchOne(ctx, src.Locator)
	metrics.FetchDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		src.FetchStatus = models.StatusFailed
		src.FetchError = err.Error()
		metrics.FetchTotal.WithLabelValues("failed").Inc()
		logger.Warn("Source fetch failed",
			zap.String("locator", src.Locator),
			zap.Error(err),
		)
		return src
	}

	src.Content = result.Content
	src.ContentLength = len(result.Content)
	src.WordCount = len(strings.Fields(result.Content))
	src.QualityScore = quality.ScoreText(result.Content)
	src.FetchError = ""
	if src.Title == "" {
		src.Title = result.Title
	}
	if result.Partial {
		src.FetchStatus = models.StatusPartial
		metrics.FetchTotal.WithLabelValues("partial").Inc()
	} else {
		src.FetchStatus = models.StatusComplete
		metrics.FetchTotal.WithLabelValues("complete").Inc()
	}
	return src
}

// FetchOne retrieves a single locator under the retry policy. Each
// attempt is bounded by the fetcher timeout; retries back off
// exponentially and run serially.
func (f *Fetcher) FetchOne(ctx context.Context, locator string) (*FetchResult, error) {
	cacheKey := utils.HashString(locator)
	if f.cache != nil {
		var cached FetchResult
		hit, err := f.cache.Get(ctx, cacheKey, &cached)
		if err != nil {
			logger.Warn("Fetch cache read failed", zap.Error(err))
		} else if hit {
			metrics.CacheHits.WithLabelValues("fetch").Inc()
			return &cached, nil
		}
		metrics.CacheMisses.WithLabelValues("fetch").Inc()
	}

	result, err := retry.DoWithResult(ctx, f.policy, func() (*FetchResult, error) {
		var res *FetchResult
		execErr := f.breaker.Execute(ctx, func() error {
			var err error
			res, err = f.doRequest(ctx, locator)
			return err
		})
		return res, execErr
	})
	if err != nil {
		return nil, err
	}

	if f.cache != nil {
		if err := f.cache.Set(ctx, cacheKey, result); err != nil {
			logger.Warn("Fetch cache write failed", zap.Error(err))
		}
	}
	return result, nil
}

func (f *Fetcher) doRequest(ctx context.Context, locator string) (*FetchResult, error) {
	reqCtx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, locator, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.transport.Do(req)
	if err != nil {
		if reqCtx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("fetch timed out after %s: %w", f.cfg.Timeout, err)
		}
		return nil, fmt.Errorf("fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		preview, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyPreview))
		return nil, fmt.Errorf("fetch returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(preview)))
	}

	result, err := f.readContent(resp)
	if err != nil {
		return nil, err
	}

	if result.Content == "" {
		return nil, ErrNoContent
	}

	// bound downstream prompt size; truncation is expected, not partial
	if len(result.Content) > f.cfg.MaxContentLength {
		result.Content = result.Content[:f.cfg.MaxContentLength]
	}
	return result, nil
}

// readContent reduces an HTML response to readable body text; other
// content types pass through as-is.
func (f *Fetcher) readContent(resp *http.Response) (*FetchResult, error) {
	contentType := resp.Header.Get("Content-Type")

	if strings.Contains(contentType, "text/html") || strings.Contains(contentType, "application/xhtml") {
		doc, err := goquery.NewDocumentFromReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to parse HTML: %w", err)
		}

		title := strings.TrimSpace(doc.Find("title").First().Text())
		doc.Find("script, style, nav, footer, header, aside").Remove()
		text := strings.TrimSpace(doc.Find("body").Text())
		text = strings.Join(strings.Fields(text), " ")

		return &FetchResult{Title: title, Content: text}, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return &FetchResult{Content: strings.TrimSpace(string(body))}, nil
}

// ComputeStats aggregates a settled batch. Successful means content
// long enough to be usable downstream, regardless of fetch status.
func (f *Fetcher) ComputeStats(sources []models.Source) BatchStats {
	stats := BatchStats{Total: len(sources)}

	for _, src := range sources {
		stats.TotalContentSize += len(src.Content)
		switch src.FetchStatus {
		case models.StatusPartial:
			stats.Partial++
		case models.StatusFailed:
			stats.Failed++
		case models.StatusSkipped:
			stats.Skipped++
		}
		if len(src.Content) > f.cfg.MinContentLength {
			stats.Successful++
		}
	}

	if stats.Successful > 0 {
		successSize := 0
		for _, src := range sources {
			if len(src.Content) > f.cfg.MinContentLength {
				successSize += len(src.Content)
			}
		}
		stats.AverageContentSize = successSize / stats.Successful
	}

	stats.SizeWarning = stats.TotalContentSize > f.cfg.BatchWarnBytes
	return stats
}
