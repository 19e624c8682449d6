package crawler

import (
	"context"
	"fmt"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// FetchError reports a page that could not be retrieved
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Page is the raw body of one fetched URL
type Page struct {
	URL        string
	StatusCode int
	Body       []byte
	Duration   time.Duration
}

// FetcherOptions configures a Fetcher
type FetcherOptions struct {
	Timeout           time.Duration
	UserAgent         string
	RequestsPerSecond float64
	// MaxBodySize caps the bytes read per page; 0 reads the whole body
	MaxBodySize int
}

// Fetcher retrieves pages over HTTP with a bounded timeout and no retries
type Fetcher struct {
	base    *colly.Collector
	limiter *rate.Limiter
}

// NewFetcher creates a fetcher backed by a colly collector
func NewFetcher(opts FetcherOptions) *Fetcher {
	collectorOpts := []colly.CollectorOption{
		colly.AllowURLRevisit(),
		colly.MaxDepth(0),
		colly.MaxBodySize(opts.MaxBodySize),
		colly.DetectCharset(),
	}
	if opts.UserAgent != "" {
		collectorOpts = append(collectorOpts, colly.UserAgent(opts.UserAgent))
	}

	base := colly.NewCollector(collectorOpts...)
	if opts.Timeout > 0 {
		base.SetRequestTimeout(opts.Timeout)
	}

	f := &Fetcher{base: base}
	if opts.RequestsPerSecond > 0 {
		f.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	return f
}

// Fetch retrieves the body of url. Every collector clone gets its own
// callbacks, so Fetch is safe for concurrent use.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, &FetchError{URL: url, Err: err}
		}
	}

	c := f.base.Clone()

	var page *Page
	start := time.Now()

	c.OnResponse(func(r *colly.Response) {
		body := make([]byte, len(r.Body))
		copy(body, r.Body)
		page = &Page{
			URL:        url,
			StatusCode: r.StatusCode,
			Body:       body,
		}
	})

	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			logrus.Debugf("Fetch of %s failed with status %d: %v", url, r.StatusCode, err)
		}
	})

	if err := c.Visit(url); err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	if page == nil {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("no response received")}
	}

	page.Duration = time.Since(start)
	logrus.Debugf("Fetched %s (status=%d, %d bytes, %v)", url, page.StatusCode, len(page.Body), page.Duration)

	return page, nil
}
