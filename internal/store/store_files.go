package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// CreateFile records a newly uploaded recording.
func (s *Store) CreateFile(ctx context.Context, id, filename string) (*File, error) {
	ctx = ensureContext(ctx)
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("create file: id required")
	}
	s.mu.Lock()
	created := s.timestamp()
	_, err := s.execLocked(ctx,
		`INSERT INTO files (id, original_filename, created_at, target_stage) VALUES (?, ?, ?, NULL)`,
		id, filename, created,
	)
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("insert file: %w", err)
	}
	return s.GetFile(ctx, id)
}

// GetFile fetches a file by identifier. It returns nil, nil when absent.
func (s *Store) GetFile(ctx context.Context, id string) (*File, error) {
	ctx = ensureContext(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	var file *File
	err := retryOnBusy(ctx, func() error {
		var scanErr error
		file, scanErr = scanFile(s.db.QueryRowContext(ctx, `SELECT `+fileColumns+` FROM files WHERE id = ?`, id))
		return scanErr
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}
	return file, nil
}

// ListFiles returns every file, newest first.
func (s *Store) ListFiles(ctx context.Context) ([]*File, error) {
	ctx = ensureContext(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	var files []*File
	err := retryOnBusy(ctx, func() error {
		files = nil
		rows, err := s.db.QueryContext(ctx, `SELECT `+fileColumns+` FROM files ORDER BY created_at DESC, rowid DESC`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			file, err := scanFile(rows)
			if err != nil {
				return err
			}
			files = append(files, file)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	return files, nil
}

// SetTargetStage stores or clears (nil) the furthest stage wanted for a file.
func (s *Store) SetTargetStage(ctx context.Context, fileID string, stage *Stage) error {
	ctx = ensureContext(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.execLocked(ctx, `UPDATE files SET target_stage = ? WHERE id = ?`, nullableStage(stage), fileID); err != nil {
		return fmt.Errorf("set target stage: %w", err)
	}
	return nil
}

// TargetStage returns the stored target stage, or nil when none is set or
// the file does not exist.
func (s *Store) TargetStage(ctx context.Context, fileID string) (*Stage, error) {
	file, err := s.GetFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if file == nil {
		return nil, nil
	}
	return file.TargetStage, nil
}

// DeleteFileAndAssets removes every asset of the file and then the file record
// in one transaction. It reports whether the file existed.
func (s *Store) DeleteFileAndAssets(ctx context.Context, fileID string) (bool, error) {
	ctx = ensureContext(ctx)
	var existed bool
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM assets WHERE file_id = ?`, fileID); err != nil {
			return fmt.Errorf("delete assets: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM files WHERE id = ?`, fileID)
		if err != nil {
			return fmt.Errorf("delete file: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		existed = affected > 0
		return nil
	})
	if err != nil {
		return false, err
	}
	return existed, nil
}
