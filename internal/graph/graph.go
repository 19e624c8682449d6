// Package graph accumulates the RDF triples parsed from JSON-LD blocks over one run.
package graph

import (
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/alvmarrod/ld-weaver/internal/jsonld"
	"github.com/alvmarrod/ld-weaver/internal/storage"
	"github.com/piprate/json-gold/ld"
	"github.com/sirupsen/logrus"
)

// ParseError reports a JSON block that could not be interpreted as RDF
type ParseError struct {
	Index int
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("block %d is not valid JSON-LD: %v", e.Index, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Options configures how JSON-LD is turned into RDF
type Options struct {
	// AllowRemoteContexts lets contexts that survive normalization be
	// fetched over HTTP. When false every remote load fails.
	AllowRemoteContexts bool
	HTTPClient          *http.Client
}

// Graph is an append-only triple set with a count of ingested blocks.
// It is not safe for concurrent use; one owner performs every Merge.
type Graph struct {
	triples []Triple
	index   map[string]struct{}
	blocks  []string
	merges  int
	proc    *ld.JsonLdProcessor
	loader  ld.DocumentLoader
}

// New creates an empty graph
func New(opts Options) *Graph {
	var loader ld.DocumentLoader = offlineLoader{}
	if opts.AllowRemoteContexts {
		client := opts.HTTPClient
		if client == nil {
			client = &http.Client{Timeout: 10 * time.Second}
		}
		loader = ld.NewCachingDocumentLoader(ld.NewDefaultDocumentLoader(client))
	}

	return &Graph{
		index:  make(map[string]struct{}),
		proc:   ld.NewJsonLdProcessor(),
		loader: loader,
	}
}

// Merge parses block as JSON-LD and adds its triples. On failure the
// graph is left unchanged.
func (g *Graph) Merge(block jsonld.Block) (int, error) {
	opts := ld.NewJsonLdOptions("")
	opts.DocumentLoader = g.loader

	result, err := g.proc.ToRDF(block.Data, opts)
	if err != nil {
		return 0, &ParseError{Index: block.Index, Err: err}
	}

	dataset, ok := result.(*ld.RDFDataset)
	if !ok {
		return 0, &ParseError{Index: block.Index, Err: fmt.Errorf("unexpected RDF result %T", result)}
	}

	// Blank node labels restart at b0 for every document
	prefix := fmt.Sprintf("m%d", g.merges)

	graphNames := make([]string, 0, len(dataset.Graphs))
	for name := range dataset.Graphs {
		graphNames = append(graphNames, name)
	}
	sort.Strings(graphNames)

	var parsed []Triple
	for _, name := range graphNames {
		for _, quad := range dataset.Graphs[name] {
			t, err := fromQuad(quad, prefix)
			if err != nil {
				return 0, &ParseError{Index: block.Index, Err: err}
			}
			parsed = append(parsed, t)
		}
	}

	added := 0
	for _, t := range parsed {
		if g.add(t) {
			added++
		}
	}

	g.merges++
	g.blocks = append(g.blocks, block.Raw)

	return added, nil
}

func fromQuad(quad *ld.Quad, blankPrefix string) (Triple, error) {
	s, ok := fromNode(quad.Subject, blankPrefix)
	if !ok {
		return Triple{}, fmt.Errorf("unsupported subject %v", quad.Subject)
	}
	p, ok := fromNode(quad.Predicate, blankPrefix)
	if !ok || p.Kind != IRI {
		return Triple{}, fmt.Errorf("unsupported predicate %v", quad.Predicate)
	}
	if _, _, err := SplitIRI(p.Value); err != nil {
		return Triple{}, err
	}
	o, ok := fromNode(quad.Object, blankPrefix)
	if !ok {
		return Triple{}, fmt.Errorf("unsupported object %v", quad.Object)
	}
	return Triple{Subject: s, Predicate: p, Object: o}, nil
}

func (g *Graph) add(t Triple) bool {
	key := t.String()
	if _, exists := g.index[key]; exists {
		return false
	}
	g.index[key] = struct{}{}
	g.triples = append(g.triples, t)
	return true
}

// Ingested returns the number of successfully merged blocks
func (g *Graph) Ingested() int {
	return len(g.blocks)
}

// Blocks returns the raw text of every merged block in merge order
func (g *Graph) Blocks() []string {
	out := make([]string, len(g.blocks))
	copy(out, g.blocks)
	return out
}

// Len returns the number of distinct triples
func (g *Graph) Len() int {
	return len(g.triples)
}

// Triples returns a copy of the triples in insertion order
func (g *Graph) Triples() []Triple {
	out := make([]Triple, len(g.triples))
	copy(out, g.triples)
	return out
}

// TripleSink persists triples for a run
type TripleSink interface {
	InsertTriples(runID string, triples []storage.TripleRecord) error
}

// Flush writes all triples to the run journal
func (g *Graph) Flush(store TripleSink, runID string) error {
	startTime := time.Now()
	logrus.Infof("Flushing %d triples to database...", len(g.triples))

	records := make([]storage.TripleRecord, 0, len(g.triples))
	for _, t := range g.triples {
		records = append(records, storage.TripleRecord{
			Subject:   t.Subject.String(),
			Predicate: t.Predicate.String(),
			Object:    t.Object.String(),
		})
	}

	if err := store.InsertTriples(runID, records); err != nil {
		return fmt.Errorf("failed to flush triples: %w", err)
	}

	logrus.Infof("Flush complete: %d triples written in %v", len(records), time.Since(startTime))
	return nil
}

// offlineLoader refuses every remote document load
type offlineLoader struct{}

func (offlineLoader) LoadDocument(u string) (*ld.RemoteDocument, error) {
	return nil, fmt.Errorf("remote context %s not loaded: remote contexts are disabled", u)
}
