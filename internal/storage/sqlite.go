package storage

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Storage is the SQLite run journal
type Storage struct {
	db *sql.DB
}

// NewStorage creates a new Storage instance, opening/creating the DB and initializing schema
func NewStorage(dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	storage := &Storage{db: db}

	if err := storage.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

// initSchema creates tables and indices if they don't exist
func (s *Storage) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP,
		url_count INTEGER DEFAULT 0,
		ingested INTEGER DEFAULT 0,
		triples INTEGER DEFAULT 0,
		output_path TEXT,
		written INTEGER DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS pages (
		page_id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		url TEXT NOT NULL,
		status TEXT NOT NULL,
		blocks_found INTEGER DEFAULT 0,
		error TEXT,
		recorded_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (run_id) REFERENCES runs(run_id)
	);

	CREATE TABLE IF NOT EXISTS blocks (
		block_id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		url TEXT NOT NULL,
		block_index INTEGER NOT NULL,
		raw TEXT,
		normalized TEXT,
		status TEXT NOT NULL,
		error TEXT,
		FOREIGN KEY (run_id) REFERENCES runs(run_id)
	);

	CREATE TABLE IF NOT EXISTS triples (
		run_id TEXT NOT NULL,
		subject TEXT NOT NULL,
		predicate TEXT NOT NULL,
		object TEXT NOT NULL,
		FOREIGN KEY (run_id) REFERENCES runs(run_id),
		UNIQUE(run_id, subject, predicate, object)
	);

	CREATE INDEX IF NOT EXISTS idx_pages_run ON pages(run_id);
	CREATE INDEX IF NOT EXISTS idx_blocks_run ON blocks(run_id);
	CREATE INDEX IF NOT EXISTS idx_triples_run ON triples(run_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// BeginRun inserts a new run row
func (s *Storage) BeginRun(run Run) error {
	_, err := s.db.Exec(`
		INSERT INTO runs (run_id, started_at, url_count, output_path)
		VALUES (?, ?, ?, ?)
	`, run.RunID, run.StartedAt, run.URLCount, run.OutputPath)
	if err != nil {
		return fmt.Errorf("failed to begin run: %w", err)
	}
	return nil
}

// FinishRun stores the final tally of a run
func (s *Storage) FinishRun(run Run) error {
	_, err := s.db.Exec(`
		UPDATE runs SET finished_at = ?, ingested = ?, triples = ?, written = ?
		WHERE run_id = ?
	`, run.FinishedAt, run.Ingested, run.Triples, run.Written, run.RunID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	return nil
}

// RecordPage stores the outcome of one URL
func (s *Storage) RecordPage(rec PageRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO pages (run_id, url, status, blocks_found, error)
		VALUES (?, ?, ?, ?, ?)
	`, rec.RunID, rec.URL, rec.Status, rec.BlocksFound, rec.Error)
	if err != nil {
		return fmt.Errorf("failed to record page: %w", err)
	}
	return nil
}

// RecordBlock stores the outcome of one JSON-LD block
func (s *Storage) RecordBlock(rec BlockRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO blocks (run_id, url, block_index, raw, normalized, status, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rec.RunID, rec.URL, rec.BlockIndex, rec.Raw, rec.Normalized, rec.Status, rec.Error)
	if err != nil {
		return fmt.Errorf("failed to record block: %w", err)
	}
	return nil
}

// InsertTriples writes triples for a run in a single transaction
func (s *Storage) InsertTriples(runID string, triples []TripleRecord) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO triples (run_id, subject, predicate, object)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare triple insert: %w", err)
	}
	defer stmt.Close()

	for _, t := range triples {
		if _, err := stmt.Exec(runID, t.Subject, t.Predicate, t.Object); err != nil {
			return fmt.Errorf("failed to insert triple: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit triples: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID, returns nil if not found
func (s *Storage) GetRun(runID string) (*Run, error) {
	rows, err := s.db.Query(runSelect+` WHERE run_id = ?`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	defer rows.Close()

	runs, err := scanRuns(rows)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return runs[0], nil
}

// ListRuns returns the most recent runs, newest first
func (s *Storage) ListRuns(limit int) ([]*Run, error) {
	rows, err := s.db.Query(runSelect+` ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	return scanRuns(rows)
}

const runSelect = `
	SELECT run_id, started_at, finished_at, url_count, ingested, triples, output_path, written
	FROM runs`

func scanRuns(rows *sql.Rows) ([]*Run, error) {
	var runs []*Run
	for rows.Next() {
		var run Run
		var finished sql.NullTime
		var output sql.NullString
		if err := rows.Scan(&run.RunID, &run.StartedAt, &finished, &run.URLCount,
			&run.Ingested, &run.Triples, &output, &run.Written); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if finished.Valid {
			run.FinishedAt = finished.Time
		}
		run.OutputPath = output.String
		runs = append(runs, &run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}

// CountPages returns the number of pages recorded for a run with the given status
func (s *Storage) CountPages(runID, status string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM pages WHERE run_id = ? AND status = ?`, runID, status).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count pages: %w", err)
	}
	return n, nil
}

// CountBlocks returns the number of blocks recorded for a run with the given status
func (s *Storage) CountBlocks(runID, status string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM blocks WHERE run_id = ? AND status = ?`, runID, status).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count blocks: %w", err)
	}
	return n, nil
}

// CountTriples returns the number of triples stored for a run
func (s *Storage) CountTriples(runID string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM triples WHERE run_id = ?`, runID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count triples: %w", err)
	}
	return n, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}
