package metrics

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/alvmarrod/ld-weaver/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
)

// Tracker holds and manages run metrics
type Tracker struct {
	mu               sync.Mutex
	data             storage.Metrics
	totalFetchTimeMs int64
	fetchCount       int

	registry      *prometheus.Registry
	pages         *prometheus.CounterVec
	blocks        *prometheus.CounterVec
	triples       prometheus.Counter
	fetchDuration prometheus.Histogram
}

// NewTracker creates a new metrics tracker
func NewTracker() *Tracker {
	t := &Tracker{
		data: storage.Metrics{
			StartTime: time.Now(),
		},
		registry: prometheus.NewRegistry(),
		pages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ldweaver",
			Name:      "pages_total",
			Help:      "Pages visited, by outcome.",
		}, []string{"outcome"}),
		blocks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ldweaver",
			Name:      "blocks_total",
			Help:      "JSON-LD blocks seen, by outcome.",
		}, []string{"outcome"}),
		triples: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ldweaver",
			Name:      "triples_added_total",
			Help:      "Distinct triples added to the graph.",
		}),
		fetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ldweaver",
			Name:      "fetch_duration_seconds",
			Help:      "Time spent fetching pages.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	t.registry.MustRegister(t.pages, t.blocks, t.triples, t.fetchDuration)
	return t
}

// SetURLsTotal records how many URLs the run was given
func (t *Tracker) SetURLsTotal(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.URLsTotal = n
}

// IncrementPagesFetched increments the successful fetch counter
func (t *Tracker) IncrementPagesFetched() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.PagesFetched++
	t.pages.WithLabelValues("fetched").Inc()
}

// IncrementPagesFailed increments the failed fetch counter
func (t *Tracker) IncrementPagesFailed() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.PagesFailed++
	t.pages.WithLabelValues("failed").Inc()
}

// IncrementPagesWithoutLD counts fetched pages that carried no JSON-LD
func (t *Tracker) IncrementPagesWithoutLD() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.PagesWithoutLD++
	t.pages.WithLabelValues("no_jsonld").Inc()
}

// IncrementBlocksFound increments the extracted block counter
func (t *Tracker) IncrementBlocksFound() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.BlocksFound++
	t.blocks.WithLabelValues("found").Inc()
}

// IncrementBlocksIngested increments the merged block counter
func (t *Tracker) IncrementBlocksIngested(triplesAdded int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.BlocksIngested++
	t.data.TriplesAdded += triplesAdded
	t.blocks.WithLabelValues("ingested").Inc()
	t.triples.Add(float64(triplesAdded))
}

// IncrementBlocksSkipped increments the skipped block counter
func (t *Tracker) IncrementBlocksSkipped() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.BlocksSkipped++
	t.blocks.WithLabelValues("skipped").Inc()
}

// SetOutputWritten records whether the ontology file was written
func (t *Tracker) SetOutputWritten(written bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.OutputWritten = written
}

// RecordFetchTime records a page fetch duration
func (t *Tracker) RecordFetchTime(duration time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.totalFetchTimeMs += duration.Milliseconds()
	t.fetchCount++
	t.fetchDuration.Observe(duration.Seconds())
}

// GetSnapshot returns a copy of current metrics
func (t *Tracker) GetSnapshot() storage.Metrics {
	t.mu.Lock()
	defer t.mu.Unlock()

	snapshot := t.data
	snapshot.TotalFetchTimeMs = t.totalFetchTimeMs

	if t.fetchCount > 0 {
		snapshot.AvgFetchTimeMs = t.totalFetchTimeMs / int64(t.fetchCount)
	}

	return snapshot
}

// WriteToFile exports metrics to a JSON file
func (t *Tracker) WriteToFile(path string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.data.EndTime = time.Now()
	t.data.TotalFetchTimeMs = t.totalFetchTimeMs

	if t.fetchCount > 0 {
		t.data.AvgFetchTimeMs = t.totalFetchTimeMs / int64(t.fetchCount)
	}

	jsonData, err := json.MarshalIndent(t.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}

	if err := os.WriteFile(path, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}

	return nil
}

// WriteTextfile dumps the Prometheus counters in text exposition format,
// suitable for the node_exporter textfile collector
func (t *Tracker) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, t.registry); err != nil {
		return fmt.Errorf("failed to write prometheus textfile: %w", err)
	}
	return nil
}

// LogProgress returns a one-line summary of current metrics
func (t *Tracker) LogProgress() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return fmt.Sprintf("Pages: %d fetched, %d failed, %d without JSON-LD | Blocks: %d found, %d ingested, %d skipped | Triples: %d",
		t.data.PagesFetched,
		t.data.PagesFailed,
		t.data.PagesWithoutLD,
		t.data.BlocksFound,
		t.data.BlocksIngested,
		t.data.BlocksSkipped,
		t.data.TriplesAdded,
	)
}
