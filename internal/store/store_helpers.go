package store

import (
	"database/sql"
	"fmt"
	"time"
)

const fileColumns = "id, original_filename, created_at, target_stage"

const assetColumns = "id, file_id, parent_asset_id, asset_type, file_path, status, error_message, created_at, updated_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFile(scanner rowScanner) (*File, error) {
	var (
		file      File
		createdNs int64
		target    sql.NullString
	)
	if err := scanner.Scan(&file.ID, &file.OriginalFilename, &createdNs, &target); err != nil {
		return nil, err
	}
	file.CreatedAt = time.Unix(0, createdNs).UTC()
	if target.Valid {
		stage, err := ParseStage(target.String)
		if err != nil {
			return nil, fmt.Errorf("file %s: %w", file.ID, err)
		}
		file.TargetStage = &stage
	}
	return &file, nil
}

func scanAsset(scanner rowScanner) (*Asset, error) {
	var (
		asset     Asset
		parentID  sql.NullString
		kindRaw   string
		statusRaw string
		errorMsg  sql.NullString
		createdNs int64
		updatedNs int64
	)
	if err := scanner.Scan(
		&asset.ID,
		&asset.FileID,
		&parentID,
		&kindRaw,
		&asset.Path,
		&statusRaw,
		&errorMsg,
		&createdNs,
		&updatedNs,
	); err != nil {
		return nil, err
	}
	kind, ok := ParseAssetKind(kindRaw)
	if !ok {
		return nil, fmt.Errorf("asset %s: unknown kind %q", asset.ID, kindRaw)
	}
	status, ok := ParseStatus(statusRaw)
	if !ok {
		return nil, fmt.Errorf("asset %s: unknown status %q", asset.ID, statusRaw)
	}
	asset.Kind = kind
	asset.Status = status
	asset.ParentAssetID = parentID.String
	asset.ErrorMessage = errorMsg.String
	asset.CreatedAt = time.Unix(0, createdNs).UTC()
	asset.UpdatedAt = time.Unix(0, updatedNs).UTC()
	return &asset, nil
}

func scanAssets(rows *sql.Rows) ([]*Asset, error) {
	defer rows.Close()
	var assets []*Asset
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		assets = append(assets, asset)
	}
	return assets, rows.Err()
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableStage(stage *Stage) any {
	if stage == nil {
		return nil
	}
	return string(*stage)
}
