package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
)

// CancelFileProcessing stops all work for a file in one transaction: Queued
// derived assets are deleted and Processing assets become Cancelled. A Queued
// original is marked Cancelled instead of deleted because it holds the
// uploaded recording. Completed and Failed assets are untouched.
func (s *Store) CancelFileProcessing(ctx context.Context, fileID string) (CancelResult, error) {
	ctx = ensureContext(ctx)
	var result CancelResult
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		result = CancelResult{}
		now := s.timestamp()
		res, err := tx.ExecContext(ctx,
			`DELETE FROM assets WHERE file_id = ? AND status = ? AND asset_type != ?`,
			fileID, string(StatusQueued), string(KindOriginal),
		)
		if err != nil {
			return fmt.Errorf("delete queued assets: %w", err)
		}
		if result.Deleted, err = res.RowsAffected(); err != nil {
			return err
		}
		res, err = tx.ExecContext(ctx,
			`UPDATE assets SET status = ?, updated_at = ?
             WHERE file_id = ? AND (status = ? OR (status = ? AND asset_type = ?))`,
			string(StatusCancelled), now, fileID,
			string(StatusProcessing), string(StatusQueued), string(KindOriginal),
		)
		if err != nil {
			return fmt.Errorf("cancel processing assets: %w", err)
		}
		if result.Cancelled, err = res.RowsAffected(); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return CancelResult{}, err
	}
	return result, nil
}

// ResetInterruptedJobs moves every Processing asset back to Queued and
// returns how many were reset. It runs once at startup before the worker.
func (s *Store) ResetInterruptedJobs(ctx context.Context) (int64, error) {
	ctx = ensureContext(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.execLocked(ctx,
		`UPDATE assets SET status = ?, updated_at = ? WHERE status = ?`,
		string(StatusQueued), s.timestamp(), string(StatusProcessing),
	)
	if err != nil {
		return 0, fmt.Errorf("reset interrupted jobs: %w", err)
	}
	count, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reset rows affected: %w", err)
	}
	return count, nil
}

// Stats returns a count of assets grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	ctx = ensureContext(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM assets GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("asset stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// HealthSummary aggregates database state for diagnostic output.
type HealthSummary struct {
	DatabasePath  string         `json:"database_path"`
	DatabaseBytes int64          `json:"database_bytes"`
	Files         int            `json:"files"`
	Assets        map[Status]int `json:"assets"`
	Integrity     string         `json:"integrity"`
	MissingFiles  int            `json:"missing_files"`
}

// CheckHealth runs an integrity check and counts completed assets whose
// artifact is missing on disk.
func (s *Store) CheckHealth(ctx context.Context) (HealthSummary, error) {
	ctx = ensureContext(ctx)
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	summary := HealthSummary{DatabasePath: s.path, Assets: stats}
	if info, statErr := os.Stat(s.path); statErr == nil {
		summary.DatabaseBytes = info.Size()
	}

	s.mu.Lock()
	err = s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM files`).Scan(&summary.Files)
	if err == nil {
		err = s.db.QueryRowContext(ctx, `PRAGMA integrity_check`).Scan(&summary.Integrity)
	}
	s.mu.Unlock()
	if err != nil {
		return HealthSummary{}, fmt.Errorf("health check: %w", err)
	}

	completed, err := s.ListAssetsByStatus(ctx, StatusCompleted)
	if err != nil {
		return HealthSummary{}, err
	}
	for _, asset := range completed {
		if _, statErr := os.Stat(asset.Path); statErr != nil {
			summary.MissingFiles++
		}
	}
	return summary, nil
}
