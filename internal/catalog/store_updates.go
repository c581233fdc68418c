package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"patchwatch/internal/version"
)

// ApplyInput describes one update to apply to a release.
type ApplyInput struct {
	ReleaseID    int64
	Version      string
	Build        string
	Significance version.Significance
	SourceLink   string
	DownloadRefs []string
	DateFound    time.Time
	// RawVersionText becomes the release's lastKnownVersion free text.
	RawVersionText string
	// RemovePendingID removes the given pending row in the same transaction
	// (used by approve). Zero means none.
	RemovePendingID int64
}

// ApplyUpdate appends an UpdateRecord and advances the release's current
// state in a single transaction. The previous-version snapshot is taken from
// the release row inside the transaction.
func (s *Store) ApplyUpdate(ctx context.Context, in ApplyInput) (*UpdateRecord, error) {
	ctx = ensureContext(ctx)
	now := time.Now().UTC()
	dateFound := in.DateFound
	if dateFound.IsZero() {
		dateFound = now
	}

	refs := in.DownloadRefs
	if refs == nil {
		refs = []string{}
	}
	refsJSON, err := json.Marshal(refs)
	if err != nil {
		return nil, fmt.Errorf("marshal download refs: %w", err)
	}

	var recordID int64
	err = retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		var previous string
		row := tx.QueryRowContext(ctx, `SELECT current_version FROM releases WHERE id = ?`, in.ReleaseID)
		if err := row.Scan(&previous); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("release %d: %w", in.ReleaseID, ErrNotFound)
			}
			return fmt.Errorf("read previous version: %w", err)
		}

		res, err := tx.ExecContext(
			ctx,
			`INSERT INTO update_records (
                release_id, version, build, significance, date_found,
                source_link, download_refs, previous_version
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			in.ReleaseID,
			in.Version,
			in.Build,
			string(in.Significance),
			timestamp(dateFound),
			in.SourceLink,
			string(refsJSON),
			previous,
		)
		if err != nil {
			return fmt.Errorf("insert update record: %w", err)
		}
		recordID, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}

		lastKnown := in.RawVersionText
		if lastKnown == "" {
			lastKnown = in.Version
		}
		if _, err := tx.ExecContext(
			ctx,
			`UPDATE releases SET
                last_known_version = ?,
                current_version = CASE WHEN ? != '' THEN ? ELSE current_version END,
                version_verified = CASE WHEN ? != '' THEN 1 ELSE version_verified END,
                current_build = CASE WHEN ? != '' THEN ? ELSE current_build END,
                build_verified = CASE WHEN ? != '' THEN 1 ELSE build_verified END,
                last_checked = ?,
                updated_at = ?
             WHERE id = ?`,
			lastKnown,
			in.Version, in.Version,
			in.Version,
			in.Build, in.Build,
			in.Build,
			timestamp(dateFound),
			timestamp(now),
			in.ReleaseID,
		); err != nil {
			return fmt.Errorf("advance release state: %w", err)
		}

		if in.RemovePendingID != 0 {
			res, err := tx.ExecContext(
				ctx,
				`DELETE FROM pending_updates WHERE id = ? AND dismissed = 0`,
				in.RemovePendingID,
			)
			if err != nil {
				return fmt.Errorf("remove pending entry: %w", err)
			}
			if affected, _ := res.RowsAffected(); affected == 0 {
				return fmt.Errorf("pending update %d: %w", in.RemovePendingID, ErrNotFound)
			}
		}

		return tx.Commit()
	})
	if err != nil {
		return nil, err
	}

	return s.getUpdateRecord(ctx, recordID)
}

func (s *Store) getUpdateRecord(ctx context.Context, id int64) (*UpdateRecord, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, release_id, version, build, significance, date_found,
                source_link, download_refs, previous_version
         FROM update_records WHERE id = ?`,
		id,
	)
	record, err := scanUpdateRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("update record %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get update record: %w", err)
	}
	return record, nil
}

func scanUpdateRecord(scanner interface{ Scan(dest ...any) error }) (*UpdateRecord, error) {
	var (
		record       UpdateRecord
		significance string
		dateRaw      string
		refsRaw      string
	)
	if err := scanner.Scan(
		&record.ID,
		&record.ReleaseID,
		&record.Version,
		&record.Build,
		&significance,
		&dateRaw,
		&record.SourceLink,
		&refsRaw,
		&record.PreviousVersion,
	); err != nil {
		return nil, err
	}
	record.Significance = version.Significance(significance)
	record.DateFound = parseTimestamp(dateRaw)
	if err := json.Unmarshal([]byte(refsRaw), &record.DownloadRefs); err != nil {
		record.DownloadRefs = nil
	}
	return &record, nil
}

// ListUpdates returns a release's history ordered by detection order.
func (s *Store) ListUpdates(ctx context.Context, releaseID int64) ([]*UpdateRecord, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, release_id, version, build, significance, date_found,
                source_link, download_refs, previous_version
         FROM update_records WHERE release_id = ? ORDER BY id`,
		releaseID,
	)
	if err != nil {
		return nil, fmt.Errorf("list updates: %w", err)
	}
	defer rows.Close()

	var records []*UpdateRecord
	for rows.Next() {
		record, err := scanUpdateRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan update record: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}
