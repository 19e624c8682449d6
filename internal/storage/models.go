package storage

import "time"

// Page outcomes recorded in the journal
const (
	PageFetchFailed = "fetch_failed"
	PageNoBlocks    = "no_blocks"
	PageProcessed   = "processed"
)

// Block outcomes recorded in the journal
const (
	BlockIngested = "ingested"
	BlockSkipped  = "skipped"
)

// Run is one pipeline execution over a URL list
type Run struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	URLCount   int
	Ingested   int
	Triples    int
	OutputPath string
	Written    bool
}

// PageRecord is the outcome of visiting one URL
type PageRecord struct {
	RunID       string
	URL         string
	Status      string
	BlocksFound int
	Error       string
}

// BlockRecord is the outcome of one extracted JSON-LD block
type BlockRecord struct {
	RunID      string
	URL        string
	BlockIndex int
	Raw        string
	Normalized string
	Status     string
	Error      string
}

// TripleRecord is a triple with every term in N-Triples syntax
type TripleRecord struct {
	Subject   string
	Predicate string
	Object    string
}

// Metrics tracks run statistics for export on exit
type Metrics struct {
	StartTime        time.Time `json:"start_time"`
	EndTime          time.Time `json:"end_time"`
	URLsTotal        int       `json:"urls_total"`
	PagesFetched     int       `json:"pages_fetched"`
	PagesFailed      int       `json:"pages_failed"`
	PagesWithoutLD   int       `json:"pages_without_ld"`
	BlocksFound      int       `json:"blocks_found"`
	BlocksIngested   int       `json:"blocks_ingested"`
	BlocksSkipped    int       `json:"blocks_skipped"`
	TriplesAdded     int       `json:"triples_added"`
	TotalFetchTimeMs int64     `json:"total_fetch_time_ms"`
	AvgFetchTimeMs   int64     `json:"avg_fetch_time_ms"`
	OutputWritten    bool      `json:"output_written"`
}
