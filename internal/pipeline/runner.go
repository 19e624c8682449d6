// Package pipeline drives the crawl, extract, normalize, merge and serialize
// steps over a URL list.
//
// Every URL goes through Fetching, Extracting and then either NoBlocksFound
// or ProcessingBlocks before it is Done. A failed fetch ends the URL; a bad
// block is skipped and the next block in the same page is processed. No
// failure ends the run, and the observer always receives a summary.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/alvmarrod/ld-weaver/internal/crawler"
	"github.com/alvmarrod/ld-weaver/internal/graph"
	"github.com/alvmarrod/ld-weaver/internal/jsonld"
	"github.com/alvmarrod/ld-weaver/internal/metrics"
	"github.com/alvmarrod/ld-weaver/internal/rdfxml"
	"github.com/alvmarrod/ld-weaver/internal/storage"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Fetcher retrieves a page body
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*crawler.Page, error)
}

// Journal records run, page and block outcomes. *storage.Storage implements it.
type Journal interface {
	BeginRun(run storage.Run) error
	FinishRun(run storage.Run) error
	RecordPage(rec storage.PageRecord) error
	RecordBlock(rec storage.BlockRecord) error
	InsertTriples(runID string, triples []storage.TripleRecord) error
}

// Options configures a Runner
type Options struct {
	RunID            string
	OutputPath       string
	FallbackVocab    string
	FetchConcurrency int
	Graph            graph.Options
	// Journal and Tracker are optional
	Journal Journal
	Tracker *metrics.Tracker
}

// RunResult is the final tally of a run
type RunResult struct {
	RunID      string
	URLs       int
	Ingested   int
	Blocks     []string
	Triples    int
	OutputPath string
	Written    bool
	WriteErr   error
}

// Runner orchestrates one run at a time
type Runner struct {
	fetcher    Fetcher
	normalizer *jsonld.Normalizer
	observer   Observer
	opts       Options
}

// NewRunner creates a runner
func NewRunner(fetcher Fetcher, observer Observer, opts Options) *Runner {
	if opts.FetchConcurrency < 1 {
		opts.FetchConcurrency = 1
	}
	if observer == nil {
		observer = NopObserver{}
	}
	return &Runner{
		fetcher:    fetcher,
		normalizer: jsonld.NewNormalizer(opts.FallbackVocab),
		observer:   observer,
		opts:       opts,
	}
}

type fetchResult struct {
	page *crawler.Page
	err  error
}

// Run processes urls in order and writes the merged graph when at least
// one block was ingested
func (r *Runner) Run(ctx context.Context, urls []string) RunResult {
	runID := r.opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	g := graph.New(r.opts.Graph)
	total := len(urls)
	started := time.Now()

	r.beginRun(runID, total, started)
	if r.opts.Tracker != nil {
		r.opts.Tracker.SetURLsTotal(total)
	}

	if total == 0 {
		r.observer.OnProgress(0, 0)
	}

	slots := r.startFetches(ctx, urls)

	for i, url := range urls {
		r.observer.OnProgress(i, total)
		r.logf("Scanning: %s", url)

		var res fetchResult
		if slots != nil {
			res = <-slots[i]
		} else {
			res.page, res.err = r.fetcher.Fetch(ctx, url)
		}

		r.processURL(runID, url, res, g)
		r.observer.OnProgress(i+1, total)
	}

	result := RunResult{
		RunID:      runID,
		URLs:       total,
		Ingested:   g.Ingested(),
		Blocks:     g.Blocks(),
		Triples:    g.Len(),
		OutputPath: r.opts.OutputPath,
	}

	if result.Ingested > 0 {
		if err := rdfxml.WriteFile(r.opts.OutputPath, g.Triples()); err != nil {
			result.WriteErr = err
			r.logf("Failed to save graph: %v", err)
		} else {
			result.Written = true
			r.logf("%d JSON-LD blocks were saved as OWL (%s).", result.Ingested, r.opts.OutputPath)
		}
	} else {
		r.logf("No JSON-LD blocks found, nothing saved.")
	}

	if r.opts.Tracker != nil {
		r.opts.Tracker.SetOutputWritten(result.Written)
	}
	r.finishRun(result, g)

	r.observer.OnSummary(result)
	return result
}

// startFetches issues fetches ahead of the processing loop when
// concurrency is enabled. Results are delivered per URL index so
// processing order is unchanged.
func (r *Runner) startFetches(ctx context.Context, urls []string) []chan fetchResult {
	if r.opts.FetchConcurrency <= 1 || len(urls) == 0 {
		return nil
	}

	slots := make([]chan fetchResult, len(urls))
	for i := range slots {
		slots[i] = make(chan fetchResult, 1)
	}

	go func() {
		var eg errgroup.Group
		eg.SetLimit(r.opts.FetchConcurrency)
		for i, url := range urls {
			i, url := i, url
			eg.Go(func() error {
				page, err := r.fetcher.Fetch(ctx, url)
				slots[i] <- fetchResult{page: page, err: err}
				return nil
			})
		}
		eg.Wait()
	}()

	return slots
}

// processURL runs everything after the fetch for a single URL
func (r *Runner) processURL(runID, url string, res fetchResult, g *graph.Graph) {
	page := storage.PageRecord{RunID: runID, URL: url}

	if res.err != nil {
		r.logf("Error at %s: %v", url, res.err)
		r.failPage(page, res.err)
		return
	}

	if r.opts.Tracker != nil {
		r.opts.Tracker.IncrementPagesFetched()
		r.opts.Tracker.RecordFetchTime(res.page.Duration)
	}

	blocks, err := crawler.ExtractBlocks(res.page.Body)
	if err != nil {
		r.logf("Error at %s: %v", url, err)
		r.failPage(page, err)
		return
	}

	page.BlocksFound = len(blocks)

	if len(blocks) == 0 {
		r.logf("No JSON-LD found.")
		page.Status = storage.PageNoBlocks
		if r.opts.Tracker != nil {
			r.opts.Tracker.IncrementPagesWithoutLD()
		}
		r.recordPage(page)
		return
	}

	for idx, raw := range blocks {
		r.processBlock(runID, url, idx, raw, g)
	}

	page.Status = storage.PageProcessed
	r.recordPage(page)
}

// processBlock normalizes and merges one block; failures skip only this block
func (r *Runner) processBlock(runID, url string, idx int, raw string, g *graph.Graph) {
	r.logf("JSON-LD found:")
	r.logf("%s", raw)
	if r.opts.Tracker != nil {
		r.opts.Tracker.IncrementBlocksFound()
	}

	rec := storage.BlockRecord{RunID: runID, URL: url, BlockIndex: idx, Raw: raw}

	added, err := r.mergeBlock(idx, raw, g, &rec)
	if err != nil {
		r.logf("Error parsing/converting to RDF at %s: %v", url, err)
		rec.Status = storage.BlockSkipped
		rec.Error = err.Error()
		if r.opts.Tracker != nil {
			r.opts.Tracker.IncrementBlocksSkipped()
		}
	} else {
		rec.Status = storage.BlockIngested
		if r.opts.Tracker != nil {
			r.opts.Tracker.IncrementBlocksIngested(added)
		}
	}

	r.recordBlock(rec)
}

func (r *Runner) mergeBlock(idx int, raw string, g *graph.Graph, rec *storage.BlockRecord) (int, error) {
	block, err := r.normalizer.Normalize(idx, raw)
	if err != nil {
		return 0, err
	}

	if data, err := block.JSON(); err == nil {
		rec.Normalized = string(data)
	}

	return g.Merge(block)
}

func (r *Runner) logf(format string, args ...any) {
	r.observer.OnLog(fmt.Sprintf(format, args...))
}

func (r *Runner) failPage(page storage.PageRecord, err error) {
	page.Status = storage.PageFetchFailed
	page.Error = err.Error()
	if r.opts.Tracker != nil {
		r.opts.Tracker.IncrementPagesFailed()
	}
	r.recordPage(page)
}

// Journal helpers. Journal failures are logged and never affect the run.

func (r *Runner) beginRun(runID string, total int, started time.Time) {
	if r.opts.Journal == nil {
		return
	}
	err := r.opts.Journal.BeginRun(storage.Run{
		RunID:      runID,
		StartedAt:  started,
		URLCount:   total,
		OutputPath: r.opts.OutputPath,
	})
	if err != nil {
		logrus.Warnf("Failed to journal run start: %v", err)
	}
}

func (r *Runner) finishRun(result RunResult, g *graph.Graph) {
	if r.opts.Journal == nil {
		return
	}
	if g.Len() > 0 {
		if err := g.Flush(r.opts.Journal, result.RunID); err != nil {
			logrus.Warnf("Failed to journal triples: %v", err)
		}
	}
	err := r.opts.Journal.FinishRun(storage.Run{
		RunID:      result.RunID,
		FinishedAt: time.Now(),
		Ingested:   result.Ingested,
		Triples:    result.Triples,
		Written:    result.Written,
	})
	if err != nil {
		logrus.Warnf("Failed to journal run end: %v", err)
	}
}

func (r *Runner) recordPage(rec storage.PageRecord) {
	if r.opts.Journal == nil {
		return
	}
	if err := r.opts.Journal.RecordPage(rec); err != nil {
		logrus.Warnf("Failed to journal page %s: %v", rec.URL, err)
	}
}

func (r *Runner) recordBlock(rec storage.BlockRecord) {
	if r.opts.Journal == nil {
		return
	}
	if err := r.opts.Journal.RecordBlock(rec); err != nil {
		logrus.Warnf("Failed to journal block %d of %s: %v", rec.BlockIndex, rec.URL, err)
	}
}
