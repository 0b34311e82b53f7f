package history

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"sonar-audit/model"
)

// Store appends one snapshot per audit run to a local sqlite database, so
// license consumption can be compared across runs.
type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("error opening history database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error opening history database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		recorded_at TIMESTAMP NOT NULL,
		project_count INTEGER NOT NULL,
		branch_count INTEGER NOT NULL,
		total_lines INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS branch_sizes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES runs(id),
		project_key TEXT NOT NULL,
		branch_name TEXT NOT NULL,
		ncloc INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_branch_sizes_run ON branch_sizes(run_id);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("error migrating history schema: %w", err)
	}
	return nil
}

// RecordRun stores the records of one completed collection pass and returns
// the id of the new run row.
func (s *Store) RecordRun(records []model.BranchRecord, total int) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("error recording run: %w", err)
	}
	defer tx.Rollback()

	projects := make(map[string]struct{})
	for _, r := range records {
		projects[r.ProjectKey] = struct{}{}
	}

	res, err := tx.Exec(
		`INSERT INTO runs (recorded_at, project_count, branch_count, total_lines) VALUES (?, ?, ?, ?)`,
		time.Now().UTC(), len(projects), len(records), total,
	)
	if err != nil {
		return 0, fmt.Errorf("error recording run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("error recording run: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO branch_sizes (run_id, project_key, branch_name, ncloc) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("error recording run: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.Exec(runID, r.ProjectKey, r.BranchName, r.Lines); err != nil {
			return 0, fmt.Errorf("error recording branch %s of %s: %w", r.BranchName, r.ProjectKey, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("error recording run: %w", err)
	}
	return runID, nil
}

// LastTotal returns the total of the most recent recorded run. The second
// return value is false when the database holds no runs yet.
func (s *Store) LastTotal() (int, bool, error) {
	var total int
	err := s.db.QueryRow(`SELECT total_lines FROM runs ORDER BY id DESC LIMIT 1`).Scan(&total)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("error reading last run: %w", err)
	}
	return total, true, nil
}
