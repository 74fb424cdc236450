package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draftpilot/backend/internal/admissibility"
	"github.com/draftpilot/backend/internal/storage/models"
	"github.com/draftpilot/backend/pkg/circuitbreaker"
	"github.com/draftpilot/backend/pkg/retry"
	"github.com/draftpilot/backend/pkg/utils"
)

type fakeTransport struct {
	mu      sync.Mutex
	calls   int
	handler func(req *http.Request) (*http.Response, error)
}

func (t *fakeTransport) Do(req *http.Request) (*http.Response, error) {
	t.mu.Lock()
	t.calls++
	t.mu.Unlock()
	return t.handler(req)
}

func (t *fakeTransport) callCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

type fakeCache struct {
	mu    sync.Mutex
	items map[string]FetchResult
}

func newFakeCache() *fakeCache {
	return &fakeCache{items: make(map[string]FetchResult)}
}

func (c *fakeCache) Get(ctx context.Context, key string, out any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cached, ok := c.items[key]
	if !ok {
		return false, nil
	}
	*out.(*FetchResult) = cached
	return true, nil
}

func (c *fakeCache) Set(ctx context.Context, key string, val any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = *val.(*FetchResult)
	return nil
}

func htmlResponse(title, body string) *http.Response {
	html := fmt.Sprintf("<html><head><title>%s</title></head><body><p>%s</p></body></html>", title, body)
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"text/html; charset=utf-8"}},
		Body:       io.NopCloser(strings.NewReader(html)),
	}
}

func testPolicy(delays *[]time.Duration) retry.Policy {
	return retry.Policy{
		MaxAttempts:  3,
		InitialDelay: time.Second,
		Multiplier:   2.0,
		Sleep: func(ctx context.Context, d time.Duration) error {
			if delays != nil {
				*delays = append(*delays, d)
			}
			return nil
		},
	}
}

func testBreaker() *circuitbreaker.Breaker {
	// threshold high enough that deliberate failures never trip it
	return circuitbreaker.New("test", circuitbreaker.Config{
		FailureThreshold: 100,
		Timeout:          time.Minute,
	})
}

func newTestFetcher(transport Transport, cache Cache, delays *[]time.Duration) *Fetcher {
	filter := admissibility.NewFilter([]string{"facebook.com"})
	return New(transport, filter, testBreaker(), cache, testPolicy(delays), Config{
		Timeout:          time.Second,
		MinContentLength: 100,
		MaxContentLength: 1500,
		BatchWarnBytes:   15000,
	})
}

func longText(words int) string {
	return strings.TrimSpace(strings.Repeat("research findings accumulate steadily ", words/4))
}

func TestFetchOneRetriesUntilSuccess(t *testing.T) {
	var delays []time.Duration
	attempts := 0
	transport := &fakeTransport{handler: func(req *http.Request) (*http.Response, error) {
		attempts++
		if attempts < 3 {
			return nil, errors.New("connection reset")
		}
		return htmlResponse("Recovered Page", longText(80)), nil
	}}

	f := newTestFetcher(transport, nil, &delays)

	result, err := f.FetchOne(context.Background(), "https://example.com/flaky")
	require.NoError(t, err)
	assert.Equal(t, "Recovered Page", result.Title)
	assert.NotEmpty(t, result.Content)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, delays)
}

func TestFetchOneExhaustsRetries(t *testing.T) {
	transport := &fakeTransport{handler: func(req *http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	}}

	f := newTestFetcher(transport, nil, nil)

	_, err := f.FetchOne(context.Background(), "https://example.com/down")
	require.Error(t, err)
	assert.Equal(t, 3, transport.callCount())
}

func TestFetchOneRejectsErrorStatus(t *testing.T) {
	transport := &fakeTransport{handler: func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusForbidden,
			Header:     http.Header{},
			Body:       io.NopCloser(strings.NewReader("access denied")),
		}, nil
	}}

	f := newTestFetcher(transport, nil, nil)

	_, err := f.FetchOne(context.Background(), "https://example.com/gated")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 403")
	assert.Contains(t, err.Error(), "access denied")
}

func TestFetchOneEmptyBodyIsError(t *testing.T) {
	transport := &fakeTransport{handler: func(req *http.Request) (*http.Response, error) {
		return htmlResponse("Empty", ""), nil
	}}

	f := newTestFetcher(transport, nil, nil)

	_, err := f.FetchOne(context.Background(), "https://example.com/empty")
	assert.ErrorIs(t, err, ErrNoContent)
}

func TestFetchOneTruncatesWithoutMarkingPartial(t *testing.T) {
	transport := &fakeTransport{handler: func(req *http.Request) (*http.Response, error) {
		return htmlResponse("Long Page", longText(2000)), nil
	}}

	f := newTestFetcher(transport, nil, nil)

	result, err := f.FetchOne(context.Background(), "https://example.com/long")
	require.NoError(t, err)
	assert.Len(t, result.Content, 1500)
	assert.False(t, result.Partial)

	src := f.EnrichOne(context.Background(), models.Source{
		Kind:    models.KindWeb,
		Locator: "https://example.com/long",
	})
	assert.Equal(t, models.StatusComplete, src.FetchStatus)
}

func TestFetchOneUsesCache(t *testing.T) {
	transport := &fakeTransport{handler: func(req *http.Request) (*http.Response, error) {
		return htmlResponse("Fresh", longText(80)), nil
	}}
	cache := newFakeCache()
	f := newTestFetcher(transport, cache, nil)

	first, err := f.FetchOne(context.Background(), "https://example.com/cached")
	require.NoError(t, err)
	assert.Equal(t, 1, transport.callCount())

	// populated on the miss
	_, ok := cache.items[utils.HashString("https://example.com/cached")]
	assert.True(t, ok)

	second, err := f.FetchOne(context.Background(), "https://example.com/cached")
	require.NoError(t, err)
	assert.Equal(t, 1, transport.callCount(), "cache hit must not reach the transport")
	assert.Equal(t, first.Content, second.Content)
}

func TestEnrichOneSkipsInadmissibleWithoutFetching(t *testing.T) {
	transport := &fakeTransport{handler: func(req *http.Request) (*http.Response, error) {
		t.Fatal("transport must not be called for inadmissible locators")
		return nil, nil
	}}
	f := newTestFetcher(transport, nil, nil)

	for _, locator := range []string{
		"#appendix",
		"https://facebook.com/page",
		"http://localhost:9000/internal",
	} {
		src := f.EnrichOne(context.Background(), models.Source{
			Kind:    models.KindWeb,
			Locator: locator,
		})
		assert.Equal(t, models.StatusSkipped, src.FetchStatus, locator)
		assert.NotEmpty(t, src.FetchError, locator)
	}
	assert.Zero(t, transport.callCount())
}

func TestEnrichOneFailureLeavesContentUntouched(t *testing.T) {
	transport := &fakeTransport{handler: func(req *http.Request) (*http.Response, error) {
		return nil, errors.New("dns lookup failed")
	}}
	f := newTestFetcher(transport, nil, nil)

	src := f.EnrichOne(context.Background(), models.Source{
		Kind:    models.KindWeb,
		Locator: "https://unreachable.example.com/",
		Content: "user pasted snippet",
	})

	assert.Equal(t, models.StatusFailed, src.FetchStatus)
	assert.Contains(t, src.FetchError, "dns lookup failed")
	assert.Equal(t, "user pasted snippet", src.Content)
}

func TestEnrichOneSuccessFillsDerivedFields(t *testing.T) {
	transport := &fakeTransport{handler: func(req *http.Request) (*http.Response, error) {
		return htmlResponse("Quarterly Report", longText(120)), nil
	}}
	f := newTestFetcher(transport, nil, nil)

	src := f.EnrichOne(context.Background(), models.Source{
		Kind:    models.KindWeb,
		Locator: "https://example.com/report",
	})

	assert.Equal(t, models.StatusComplete, src.FetchStatus)
	assert.Equal(t, "Quarterly Report", src.Title)
	assert.Empty(t, src.FetchError)
	assert.Equal(t, len(src.Content), src.ContentLength)
	assert.Equal(t, len(strings.Fields(src.Content)), src.WordCount)
	assert.Greater(t, src.QualityScore, 0.0)
}

func TestNeedsEnrichment(t *testing.T) {
	f := newTestFetcher(&fakeTransport{}, nil, nil)

	assert.True(t, f.NeedsEnrichment(models.Source{Kind: models.KindWeb}))
	assert.True(t, f.NeedsEnrichment(models.Source{Kind: models.KindWeb, Content: "short"}))
	assert.False(t, f.NeedsEnrichment(models.Source{Kind: models.KindWeb, Content: longText(200)}))
	assert.False(t, f.NeedsEnrichment(models.Source{Kind: models.KindDocument}))
	assert.False(t, f.NeedsEnrichment(models.Source{Kind: models.KindSynthesis}))
}

func TestFetchBatchMixedOutcomes(t *testing.T) {
	transport := &fakeTransport{handler: func(req *http.Request) (*http.Response, error) {
		if strings.Contains(req.URL.Host, "broken") {
			return nil, errors.New("connection refused")
		}
		return htmlResponse("Page", longText(120)), nil
	}}
	f := newTestFetcher(transport, nil, nil)

	sources := []models.Source{
		{Kind: models.KindWeb, Locator: "https://a.example.com/1"},
		{Kind: models.KindWeb, Locator: "https://b.example.com/2"},
		{Kind: models.KindWeb, Locator: "https://c.example.com/3"},
		{Kind: models.KindWeb, Locator: "https://d.example.com/4"},
		{Kind: models.KindWeb, Locator: "https://e.example.com/5"},
		{Kind: models.KindWeb, Locator: "https://broken-one.example.com/"},
		{Kind: models.KindWeb, Locator: "https://broken-two.example.com/"},
		{Kind: models.KindWeb, Locator: "#figure-2"},
		{Kind: models.KindWeb, Locator: "https://facebook.com/post"},
		{Kind: models.KindWeb, Locator: "http://192.168.0.1/status"},
	}

	enriched, stats := f.FetchBatch(context.Background(), sources)

	require.Len(t, enriched, 10)
	assert.Equal(t, 10, stats.Total)
	assert.Equal(t, 5, stats.Successful)
	assert.Equal(t, 2, stats.Failed)
	assert.Equal(t, 3, stats.Skipped)
	assert.Greater(t, stats.AverageContentSize, 0)
}

func TestFetchBatchLeavesNonWebSourcesAlone(t *testing.T) {
	transport := &fakeTransport{handler: func(req *http.Request) (*http.Response, error) {
		t.Fatal("non-web sources must not be fetched")
		return nil, nil
	}}
	f := newTestFetcher(transport, nil, nil)

	sources := []models.Source{
		{Kind: models.KindSynthesis, Content: longText(400), FetchStatus: models.StatusComplete},
		{Kind: models.KindDocument, Content: longText(400), FetchStatus: models.StatusUserProvided},
	}

	enriched, stats := f.FetchBatch(context.Background(), sources)

	assert.Equal(t, sources[0].Content, enriched[0].Content)
	assert.Equal(t, models.StatusUserProvided, enriched[1].FetchStatus)
	assert.Equal(t, 2, stats.Successful)
	assert.Zero(t, transport.callCount())
}

func TestComputeStatsSizeWarning(t *testing.T) {
	f := newTestFetcher(&fakeTransport{}, nil, nil)

	big := strings.Repeat("x", 8000)
	stats := f.ComputeStats([]models.Source{
		{Kind: models.KindWeb, Content: big, FetchStatus: models.StatusComplete},
		{Kind: models.KindWeb, Content: big, FetchStatus: models.StatusComplete},
	})

	assert.Equal(t, 16000, stats.TotalContentSize)
	assert.True(t, stats.SizeWarning)
	assert.Equal(t, 8000, stats.AverageContentSize)
}
