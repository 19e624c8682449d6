package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alvmarrod/ld-weaver/internal/crawler"
	"github.com/alvmarrod/ld-weaver/internal/graph"
	"github.com/alvmarrod/ld-weaver/internal/jsonld"
	"github.com/alvmarrod/ld-weaver/internal/metrics"
	"github.com/alvmarrod/ld-weaver/internal/rdfxml"
	"github.com/alvmarrod/ld-weaver/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testVocab = "http://example.org/ftf-context#"

	eventBlock = `{"@context": "https://schema.org", "@id": "http://example.com/events/1", "@type": "Event", "name": "Launch"}`
	orgBlock   = `{"@context": "https://schema.org", "@id": "http://example.com/org", "@type": "Organization", "name": "ACME"}`
	badBlock   = `{"@context": "https://schema.org", "name": `
)

type progress struct{ completed, total int }

type recordingObserver struct {
	progress  []progress
	lines     []string
	summaries []RunResult
}

func (o *recordingObserver) OnProgress(completed, total int) {
	o.progress = append(o.progress, progress{completed, total})
}

func (o *recordingObserver) OnLog(line string) {
	o.lines = append(o.lines, line)
}

func (o *recordingObserver) OnSummary(result RunResult) {
	o.summaries = append(o.summaries, result)
}

func (o *recordingObserver) logContains(s string) int {
	n := 0
	for _, line := range o.lines {
		if strings.Contains(line, s) {
			n++
		}
	}
	return n
}

func page(blocks ...string) string {
	var sb strings.Builder
	sb.WriteString("<html><head><title>t</title>")
	for _, b := range blocks {
		fmt.Fprintf(&sb, `<script type="application/ld+json">%s</script>`, b)
	}
	sb.WriteString("</head><body><p>content</p></body></html>")
	return sb.String()
}

func newSite(t *testing.T, pages map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newRunner(observer Observer, opts Options) *Runner {
	fetcher := crawler.NewFetcher(crawler.FetcherOptions{Timeout: 5 * time.Second})
	if opts.FallbackVocab == "" {
		opts.FallbackVocab = testVocab
	}
	return NewRunner(fetcher, observer, opts)
}

func expectedTriples(t *testing.T, raws ...string) []string {
	t.Helper()
	g := graph.New(graph.Options{})
	n := jsonld.NewNormalizer(testVocab)
	for i, raw := range raws {
		block, err := n.Normalize(i, raw)
		require.NoError(t, err)
		_, err = g.Merge(block)
		require.NoError(t, err)
	}
	return tripleStrings(g.Triples())
}

func tripleStrings(triples []graph.Triple) []string {
	out := make([]string, 0, len(triples))
	for _, t := range triples {
		out = append(out, t.String())
	}
	return out
}

func TestRunEmptyURLList(t *testing.T) {
	obs := &recordingObserver{}
	out := filepath.Join(t.TempDir(), "output.owl")

	result := newRunner(obs, Options{OutputPath: out}).Run(context.Background(), nil)

	assert.Equal(t, 0, result.Ingested)
	assert.Empty(t, result.Blocks)
	assert.False(t, result.Written)
	assert.Equal(t, []progress{{0, 0}}, obs.progress)
	require.Len(t, obs.summaries, 1)
	assert.NoFileExists(t, out)
	assert.Equal(t, 1, obs.logContains("nothing saved"))
}

func TestRunAllFetchesFail(t *testing.T) {
	srv := newSite(t, map[string]string{})
	obs := &recordingObserver{}
	out := filepath.Join(t.TempDir(), "output.owl")
	urls := []string{srv.URL + "/a", srv.URL + "/b", "not a url"}

	result := newRunner(obs, Options{OutputPath: out}).Run(context.Background(), urls)

	assert.Equal(t, 0, result.Ingested)
	assert.Equal(t, len(result.Blocks), result.Ingested)
	assert.Equal(t, 3, obs.logContains("Error at"))
	assert.Equal(t, 0, obs.logContains("JSON-LD found:"))
	assert.Equal(t, progress{3, 3}, obs.progress[len(obs.progress)-1])
	require.Len(t, obs.summaries, 1)
	assert.NoFileExists(t, out)
}

func TestRunProgressBeforeAndAfterEachURL(t *testing.T) {
	srv := newSite(t, map[string]string{"/a": page(), "/b": page()})
	obs := &recordingObserver{}

	newRunner(obs, Options{OutputPath: filepath.Join(t.TempDir(), "o.owl")}).
		Run(context.Background(), []string{srv.URL + "/a", srv.URL + "/b"})

	assert.Equal(t, []progress{{0, 2}, {1, 2}, {1, 2}, {2, 2}}, obs.progress)
	assert.Equal(t, 2, obs.logContains("No JSON-LD found."))
	assert.Equal(t, 2, obs.logContains("Scanning: "))
}

func TestRunSkipsMalformedBlockOnly(t *testing.T) {
	srv := newSite(t, map[string]string{"/mixed": page(eventBlock, badBlock)})
	obs := &recordingObserver{}
	out := filepath.Join(t.TempDir(), "output.owl")

	result := newRunner(obs, Options{OutputPath: out}).Run(context.Background(), []string{srv.URL + "/mixed"})

	assert.Equal(t, 1, result.Ingested)
	assert.Equal(t, []string{eventBlock}, result.Blocks)
	assert.True(t, result.Written)
	assert.Equal(t, 1, obs.logContains("block 1 is not valid JSON"))
	assert.Equal(t, 2, obs.logContains("JSON-LD found:"))

	triples, err := rdfxml.ReadFile(out)
	require.NoError(t, err)
	assert.ElementsMatch(t, expectedTriples(t, eventBlock), tripleStrings(triples))
}

func TestRunBlockOrderAcrossPages(t *testing.T) {
	srv := newSite(t, map[string]string{
		"/one":   page(eventBlock),
		"/two":   page(),
		"/three": page(orgBlock, eventBlock),
	})
	urls := []string{srv.URL + "/one", srv.URL + "/two", srv.URL + "/missing", srv.URL + "/three"}

	for _, concurrency := range []int{1, 3} {
		t.Run(fmt.Sprintf("concurrency=%d", concurrency), func(t *testing.T) {
			obs := &recordingObserver{}
			out := filepath.Join(t.TempDir(), "output.owl")

			result := newRunner(obs, Options{OutputPath: out, FetchConcurrency: concurrency}).
				Run(context.Background(), urls)

			assert.Equal(t, []string{eventBlock, orgBlock, eventBlock}, result.Blocks)
			assert.Equal(t, 3, result.Ingested)
			assert.Equal(t, 4, result.Triples)

			var scanned []string
			for _, line := range obs.lines {
				if strings.HasPrefix(line, "Scanning: ") {
					scanned = append(scanned, strings.TrimPrefix(line, "Scanning: "))
				}
			}
			assert.Equal(t, urls, scanned)
		})
	}
}

func TestRunIsIdempotent(t *testing.T) {
	srv := newSite(t, map[string]string{
		"/a": page(eventBlock, `{"@context": "https://schema.org", "@type": "Person", "name": "Ada"}`),
		"/b": page(orgBlock),
	})
	out := filepath.Join(t.TempDir(), "output.owl")
	urls := []string{srv.URL + "/a", srv.URL + "/b"}

	newRunner(nil, Options{OutputPath: out}).Run(context.Background(), urls)
	first, err := os.ReadFile(out)
	require.NoError(t, err)

	newRunner(nil, Options{OutputPath: out}).Run(context.Background(), urls)
	second, err := os.ReadFile(out)
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
}

func TestRunWriteErrorIsReported(t *testing.T) {
	srv := newSite(t, map[string]string{"/a": page(eventBlock)})
	obs := &recordingObserver{}
	out := filepath.Join(t.TempDir(), "missing-dir", "output.owl")

	result := newRunner(obs, Options{OutputPath: out}).Run(context.Background(), []string{srv.URL + "/a"})

	assert.Equal(t, 1, result.Ingested)
	assert.False(t, result.Written)
	var writeErr *rdfxml.WriteError
	assert.ErrorAs(t, result.WriteErr, &writeErr)
	assert.Equal(t, 1, obs.logContains("Failed to save graph"))
	require.Len(t, obs.summaries, 1)
}

func TestRunParseErrorIsSkipped(t *testing.T) {
	srv := newSite(t, map[string]string{"/a": page(`{"@context": 5}`, orgBlock)})
	obs := &recordingObserver{}

	result := newRunner(obs, Options{OutputPath: filepath.Join(t.TempDir(), "o.owl")}).
		Run(context.Background(), []string{srv.URL + "/a"})

	assert.Equal(t, []string{orgBlock}, result.Blocks)
	assert.Equal(t, 1, obs.logContains("block 0 is not valid JSON-LD"))
}

func TestRunSkipsBlockWithUnserializablePredicate(t *testing.T) {
	oddBlock := `{"@context": "https://schema.org", "@id": "http://example.com/offer", "price€": "9"}`
	srv := newSite(t, map[string]string{
		"/a": page(orgBlock),
		"/b": page(oddBlock),
	})
	obs := &recordingObserver{}
	out := filepath.Join(t.TempDir(), "output.owl")

	result := newRunner(obs, Options{OutputPath: out}).
		Run(context.Background(), []string{srv.URL + "/a", srv.URL + "/b"})

	assert.Equal(t, 1, result.Ingested)
	assert.Equal(t, []string{orgBlock}, result.Blocks)
	assert.True(t, result.Written)
	assert.NoError(t, result.WriteErr)
	assert.Equal(t, 1, obs.logContains("Error parsing/converting to RDF at "+srv.URL+"/b"))

	triples, err := rdfxml.ReadFile(out)
	require.NoError(t, err)
	assert.ElementsMatch(t, expectedTriples(t, orgBlock), tripleStrings(triples))
}

func TestRunJournalAndMetrics(t *testing.T) {
	srv := newSite(t, map[string]string{
		"/a": page(eventBlock, badBlock),
		"/b": page(),
	})
	dir := t.TempDir()

	store, err := storage.NewStorage(filepath.Join(dir, "journal.db"))
	require.NoError(t, err)
	defer store.Close()
	tracker := metrics.NewTracker()

	result := newRunner(nil, Options{
		RunID:      "run-42",
		OutputPath: filepath.Join(dir, "output.owl"),
		Journal:    store,
		Tracker:    tracker,
	}).Run(context.Background(), []string{srv.URL + "/a", srv.URL + "/b", srv.URL + "/c"})

	assert.Equal(t, "run-42", result.RunID)

	run, err := store.GetRun("run-42")
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, 3, run.URLCount)
	assert.Equal(t, 1, run.Ingested)
	assert.True(t, run.Written)

	for status, want := range map[string]int{
		storage.PageProcessed:   1,
		storage.PageNoBlocks:    1,
		storage.PageFetchFailed: 1,
	} {
		n, err := store.CountPages("run-42", status)
		require.NoError(t, err)
		assert.Equal(t, want, n, status)
	}

	skipped, err := store.CountBlocks("run-42", storage.BlockSkipped)
	require.NoError(t, err)
	assert.Equal(t, 1, skipped)

	triples, err := store.CountTriples("run-42")
	require.NoError(t, err)
	assert.Equal(t, result.Triples, triples)

	snap := tracker.GetSnapshot()
	assert.Equal(t, 2, snap.PagesFetched)
	assert.Equal(t, 1, snap.PagesFailed)
	assert.Equal(t, 1, snap.PagesWithoutLD)
	assert.Equal(t, 2, snap.BlocksFound)
	assert.Equal(t, 1, snap.BlocksIngested)
	assert.Equal(t, 1, snap.BlocksSkipped)
	assert.True(t, snap.OutputWritten)
}
