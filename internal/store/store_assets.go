package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidParent is returned when an asset's parent belongs to another file
// or does not exist.
var ErrInvalidParent = errors.New("parent asset must belong to the same file")

// CreateAsset inserts an asset and returns the stored record.
func (s *Store) CreateAsset(ctx context.Context, spec NewAsset) (*Asset, error) {
	ctx = ensureContext(ctx)
	if err := validateNewAsset(spec); err != nil {
		return nil, err
	}
	id := spec.ID
	if id == "" {
		id = uuid.NewString()
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		return insertAsset(ctx, tx, id, spec, s.timestamp())
	})
	if err != nil {
		return nil, err
	}
	return s.GetAsset(ctx, id)
}

func validateNewAsset(spec NewAsset) error {
	if strings.TrimSpace(spec.FileID) == "" {
		return errors.New("create asset: file id required")
	}
	if _, ok := ParseAssetKind(string(spec.Kind)); !ok {
		return fmt.Errorf("create asset: unknown kind %q", spec.Kind)
	}
	if _, ok := ParseStatus(string(spec.Status)); !ok {
		return fmt.Errorf("create asset: unknown status %q", spec.Status)
	}
	return nil
}

func insertAsset(ctx context.Context, tx *sql.Tx, id string, spec NewAsset, now int64) error {
	if spec.ParentAssetID != "" {
		if err := checkParent(ctx, tx, spec.FileID, spec.ParentAssetID); err != nil {
			return err
		}
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO assets (id, file_id, parent_asset_id, asset_type, file_path, status, error_message, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, NULL, ?, ?)`,
		id, spec.FileID, nullableString(spec.ParentAssetID), string(spec.Kind), spec.Path, string(spec.Status), now, now,
	)
	if err != nil {
		return fmt.Errorf("insert asset: %w", err)
	}
	return nil
}

func checkParent(ctx context.Context, tx *sql.Tx, fileID, parentID string) error {
	var owner string
	err := tx.QueryRowContext(ctx, `SELECT file_id FROM assets WHERE id = ?`, parentID).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && owner != fileID) {
		return fmt.Errorf("%w: %s", ErrInvalidParent, parentID)
	}
	if err != nil {
		return fmt.Errorf("lookup parent asset: %w", err)
	}
	return nil
}

// GetAsset fetches an asset by identifier. It returns nil, nil when absent.
func (s *Store) GetAsset(ctx context.Context, id string) (*Asset, error) {
	ctx = ensureContext(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	var asset *Asset
	err := retryOnBusy(ctx, func() error {
		var scanErr error
		asset, scanErr = scanAsset(s.db.QueryRowContext(ctx, `SELECT `+assetColumns+` FROM assets WHERE id = ?`, id))
		return scanErr
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get asset: %w", err)
	}
	return asset, nil
}

// ListAssets returns the assets of a file ordered oldest first. Planner
// lookups rely on this order to find "the first asset of a kind".
func (s *Store) ListAssets(ctx context.Context, fileID string) ([]*Asset, error) {
	return s.queryAssets(ctx, "list assets",
		`SELECT `+assetColumns+` FROM assets WHERE file_id = ? ORDER BY created_at, rowid`, fileID)
}

// ListAssetsByStatus returns assets across all files in the given status,
// oldest first.
func (s *Store) ListAssetsByStatus(ctx context.Context, status Status) ([]*Asset, error) {
	return s.queryAssets(ctx, "list assets by status",
		`SELECT `+assetColumns+` FROM assets WHERE status = ? ORDER BY created_at, rowid`, string(status))
}

func (s *Store) queryAssets(ctx context.Context, label, query string, args ...any) ([]*Asset, error) {
	ctx = ensureContext(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	var assets []*Asset
	err := retryOnBusy(ctx, func() error {
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		assets, err = scanAssets(rows)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", label, err)
	}
	return assets, nil
}

// NextQueuedAsset returns the globally oldest Queued asset, or nil.
func (s *Store) NextQueuedAsset(ctx context.Context) (*Asset, error) {
	ctx = ensureContext(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	var asset *Asset
	err := retryOnBusy(ctx, func() error {
		var scanErr error
		asset, scanErr = scanAsset(s.db.QueryRowContext(ctx,
			`SELECT `+assetColumns+` FROM assets WHERE status = ? ORDER BY created_at, rowid LIMIT 1`,
			string(StatusQueued),
		))
		return scanErr
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("next queued asset: %w", err)
	}
	return asset, nil
}

// UpdateAssetStatus unconditionally sets status and error text. A blank
// message clears any previous error.
func (s *Store) UpdateAssetStatus(ctx context.Context, id string, status Status, errMsg string) error {
	ctx = ensureContext(ctx)
	if _, ok := ParseStatus(string(status)); !ok {
		return fmt.Errorf("update asset status: unknown status %q", status)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.execLocked(ctx,
		`UPDATE assets SET status = ?, error_message = ?, updated_at = ? WHERE id = ?`,
		string(status), nullableString(errMsg), s.timestamp(), id,
	); err != nil {
		return fmt.Errorf("update asset status: %w", err)
	}
	return nil
}

// TransitionStatus moves an asset from one status to another only if it is
// still in the expected status. It reports whether the write happened.
func (s *Store) TransitionStatus(ctx context.Context, id string, from, to Status, errMsg string) (bool, error) {
	ctx = ensureContext(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.execLocked(ctx,
		`UPDATE assets SET status = ?, error_message = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(to), nullableString(errMsg), s.timestamp(), id, string(from),
	)
	if err != nil {
		return false, fmt.Errorf("transition asset %s -> %s: %w", from, to, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("transition rows affected: %w", err)
	}
	return affected == 1, nil
}

// UpdateAssetParent re-links an asset to another parent of the same file, or
// clears the link when parentID is empty.
func (s *Store) UpdateAssetParent(ctx context.Context, id, parentID string) error {
	ctx = ensureContext(ctx)
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if parentID != "" {
			var fileID string
			if err := tx.QueryRowContext(ctx, `SELECT file_id FROM assets WHERE id = ?`, id).Scan(&fileID); err != nil {
				return fmt.Errorf("lookup asset: %w", err)
			}
			if err := checkParent(ctx, tx, fileID, parentID); err != nil {
				return err
			}
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE assets SET parent_asset_id = ?, updated_at = ? WHERE id = ?`,
			nullableString(parentID), s.timestamp(), id,
		); err != nil {
			return fmt.Errorf("update asset parent: %w", err)
		}
		return nil
	})
}

// CompleteSeparation persists the outcome of a separation run in one
// transaction: the original must still be Processing, stems from earlier runs
// that nothing references are removed, the new stems are inserted Completed
// and parented to the original, and the original is marked Completed. It
// returns false without writing anything when the original is no longer
// Processing (cancelled or deleted while the operation ran).
func (s *Store) CompleteSeparation(ctx context.Context, originalID string, stems []NewAsset) (bool, error) {
	ctx = ensureContext(ctx)
	completed := false
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		completed = false
		var fileID, statusRaw, kindRaw string
		err := tx.QueryRowContext(ctx, `SELECT file_id, status, asset_type FROM assets WHERE id = ?`, originalID).
			Scan(&fileID, &statusRaw, &kindRaw)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("lookup original: %w", err)
		}
		if AssetKind(kindRaw) != KindOriginal {
			return fmt.Errorf("complete separation: asset %s is %s, not original", originalID, kindRaw)
		}
		if Status(statusRaw) != StatusProcessing {
			return nil
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM assets
             WHERE file_id = ? AND asset_type IN (?, ?, ?, ?)
               AND id NOT IN (SELECT parent_asset_id FROM assets WHERE parent_asset_id IS NOT NULL)`,
			fileID, string(KindStemPiano), string(KindStemVocals), string(KindStemDrums), string(KindStemBass),
		); err != nil {
			return fmt.Errorf("remove previous stems: %w", err)
		}

		now := s.timestamp()
		for _, stem := range stems {
			if !stem.Kind.IsStem() {
				return fmt.Errorf("complete separation: %s is not a stem kind", stem.Kind)
			}
			stem.FileID = fileID
			stem.ParentAssetID = originalID
			stem.Status = StatusCompleted
			id := stem.ID
			if id == "" {
				id = uuid.NewString()
			}
			if err := insertAsset(ctx, tx, id, stem, now); err != nil {
				return err
			}
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE assets SET status = ?, error_message = NULL, updated_at = ? WHERE id = ?`,
			string(StatusCompleted), now, originalID,
		); err != nil {
			return fmt.Errorf("complete original: %w", err)
		}
		completed = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return completed, nil
}
