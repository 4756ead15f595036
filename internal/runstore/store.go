package runstore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hochfrequenz/recipe-build-orchestrator/internal/domain"
	"github.com/hochfrequenz/recipe-build-orchestrator/internal/runstate"
	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed run persistence
type Store struct {
	db *sql.DB
}

// Run is one recorded shard run
type Run struct {
	ID         string
	ShardIndex int
	ShardCount int
	TestOnly   bool
	Status     domain.RunStatus
	StartedAt  *time.Time
	FinishedAt *time.Time
}

// TargetRow is one persisted target result
type TargetRow struct {
	RunID       string
	Package     string
	Env         string
	Status      domain.TargetStatus
	FailureKind domain.FailureKind
	Detail      string
	CausedBy    []string
}

// New creates a new Store with the given database path
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, err
	}

	// Run migrations
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateRun records the start of a shard run and returns its ID
func (s *Store) CreateRun(shardIndex, shardCount int, testOnly bool) (string, error) {
	id := uuid.NewString()
	now := time.Now()
	_, err := s.db.Exec(`
		INSERT INTO runs (id, shard_index, shard_count, test_only, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id, shardIndex, shardCount, testOnly, string(domain.RunRunning), now)
	if err != nil {
		return "", err
	}
	return id, nil
}

// FinishRun stores the verdict's results and closes the run
func (s *Store) FinishRun(runID string, results []runstate.TargetResult, success bool) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, res := range results {
		causedBy, err := json.Marshal(res.CausedBy)
		if err != nil {
			return err
		}
		_, err = tx.Exec(`
			INSERT INTO target_results (run_id, package, env, status, failure_kind, detail, caused_by)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`,
			runID,
			res.Target.Package,
			res.Target.EnvString(),
			string(res.Status),
			string(res.Kind),
			res.Detail,
			string(causedBy),
		)
		if err != nil {
			return err
		}
	}

	status := domain.RunSucceeded
	if !success {
		status = domain.RunFailed
	}
	if _, err := tx.Exec(`UPDATE runs SET status = ?, finished_at = ? WHERE id = ?`,
		string(status), time.Now(), runID); err != nil {
		return err
	}

	return tx.Commit()
}

// GetRun retrieves a run by ID
func (s *Store) GetRun(id string) (*Run, error) {
	row := s.db.QueryRow(`
		SELECT id, shard_index, shard_count, test_only, status, started_at, finished_at
		FROM runs WHERE id = ?
	`, id)
	return scanRun(row.Scan)
}

// LatestRun returns the most recently started run, or nil when the
// store is empty
func (s *Store) LatestRun() (*Run, error) {
	row := s.db.QueryRow(`
		SELECT id, shard_index, shard_count, test_only, status, started_at, finished_at
		FROM runs ORDER BY started_at DESC LIMIT 1
	`)
	run, err := scanRun(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return run, err
}

// ListRuns returns up to limit runs, newest first
func (s *Store) ListRuns(limit int) ([]*Run, error) {
	rows, err := s.db.Query(`
		SELECT id, shard_index, shard_count, test_only, status, started_at, finished_at
		FROM runs ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows.Scan)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// ListResults returns the target results of a run, ordered by package
func (s *Store) ListResults(runID string) ([]*TargetRow, error) {
	rows, err := s.db.Query(`
		SELECT run_id, package, env, status, failure_kind, detail, caused_by
		FROM target_results WHERE run_id = ? ORDER BY package, env
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*TargetRow
	for rows.Next() {
		var r TargetRow
		var kind, detail, causedBy sql.NullString
		if err := rows.Scan(&r.RunID, &r.Package, &r.Env, (*string)(&r.Status), &kind, &detail, &causedBy); err != nil {
			return nil, err
		}
		if kind.Valid {
			r.FailureKind = domain.FailureKind(kind.String)
		}
		if detail.Valid {
			r.Detail = detail.String
		}
		if causedBy.Valid && causedBy.String != "" && causedBy.String != "null" {
			if err := json.Unmarshal([]byte(causedBy.String), &r.CausedBy); err != nil {
				return nil, err
			}
		}
		results = append(results, &r)
	}
	return results, rows.Err()
}

func scanRun(scan func(dest ...any) error) (*Run, error) {
	var run Run
	var status string
	var started, finished sql.NullTime

	if err := scan(&run.ID, &run.ShardIndex, &run.ShardCount, &run.TestOnly, &status, &started, &finished); err != nil {
		return nil, err
	}

	run.Status = domain.RunStatus(status)
	if started.Valid {
		t := started.Time
		run.StartedAt = &t
	}
	if finished.Valid {
		t := finished.Time
		run.FinishedAt = &t
	}
	return &run, nil
}
