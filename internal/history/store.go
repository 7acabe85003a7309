package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Store persists run history in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Open creates or connects to the history database at path.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("history: empty database path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure history dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RecordRun stores a run with its file and artifact rows in one transaction.
func (s *Store) RecordRun(ctx context.Context, run Run) error {
	if strings.TrimSpace(run.ID) == "" {
		return errors.New("history: run id is required")
	}
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		return s.recordRunTx(ctx, run)
	})
}

func (s *Store) recordRunTx(ctx context.Context, run Run) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin run tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (
            id, input_dir, output_dir, started_at, finished_at, interrupted,
            files_total, files_skipped, copied, transcoded, fallbacks, failed, bytes_written
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.InputDir,
		run.OutputDir,
		formatTime(run.StartedAt),
		formatTime(run.FinishedAt),
		boolToInt(run.Interrupted),
		run.FilesTotal,
		run.FilesSkipped,
		run.Copied,
		run.Transcoded,
		run.Fallbacks,
		run.Failed,
		run.BytesWritten,
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for _, file := range run.Files {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO files (run_id, name, status, reason) VALUES (?, ?, ?, ?)`,
			run.ID, file.Name, file.Status, nullableString(file.Reason),
		); err != nil {
			return fmt.Errorf("insert file %s: %w", file.Name, err)
		}
	}
	for _, artifact := range run.Artifacts {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO artifacts (
                run_id, file_name, stream_index, codec, route, outcome, path, size_bytes, error_message
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID,
			artifact.FileName,
			artifact.StreamIndex,
			nullableString(artifact.Codec),
			artifact.Route,
			artifact.Outcome,
			nullableString(artifact.Path),
			artifact.SizeBytes,
			nullableString(artifact.Error),
		); err != nil {
			return fmt.Errorf("insert artifact %s#%d: %w", artifact.FileName, artifact.StreamIndex, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs first, without file or artifact rows.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	ctx = ensureContext(ctx)
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, input_dir, output_dir, started_at, finished_at, interrupted,
                files_total, files_skipped, copied, transcoded, fallbacks, failed, bytes_written
         FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run         Run
			started     string
			finished    string
			interrupted int
		)
		if err := rows.Scan(
			&run.ID, &run.InputDir, &run.OutputDir, &started, &finished, &interrupted,
			&run.FilesTotal, &run.FilesSkipped, &run.Copied, &run.Transcoded, &run.Fallbacks, &run.Failed, &run.BytesWritten,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.StartedAt = parseTime(started)
		run.FinishedAt = parseTime(finished)
		run.Interrupted = interrupted != 0
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// Artifacts returns the stream outcomes recorded for runID in insertion order.
func (s *Store) Artifacts(ctx context.Context, runID string) ([]Artifact, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		`SELECT file_name, stream_index, codec, route, outcome, path, size_bytes, error_message
         FROM artifacts WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query artifacts: %w", err)
	}
	defer rows.Close()

	var artifacts []Artifact
	for rows.Next() {
		var (
			artifact Artifact
			codec    sql.NullString
			path     sql.NullString
			errMsg   sql.NullString
		)
		if err := rows.Scan(&artifact.FileName, &artifact.StreamIndex, &codec, &artifact.Route, &artifact.Outcome, &path, &artifact.SizeBytes, &errMsg); err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		artifact.Codec = codec.String
		artifact.Path = path.String
		artifact.Error = errMsg.String
		artifacts = append(artifacts, artifact)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate artifacts: %w", err)
	}
	return artifacts, nil
}
