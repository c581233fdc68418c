package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const pendingColumns = "id, public_id, release_id, version, build, confidence, reason, method, secondary_confidence, secondary_reason, date_found, dismissed"

func scanPending(scanner interface{ Scan(dest ...any) error }) (*PendingUpdate, error) {
	var (
		pending       PendingUpdate
		method        string
		secondaryConf sql.NullFloat64
		dateRaw       string
		dismissedFlag int
	)
	if err := scanner.Scan(
		&pending.ID,
		&pending.PublicID,
		&pending.ReleaseID,
		&pending.Version,
		&pending.Build,
		&pending.Confidence,
		&pending.Reason,
		&method,
		&secondaryConf,
		&pending.SecondaryReason,
		&dateRaw,
		&dismissedFlag,
	); err != nil {
		return nil, err
	}
	pending.Method = DetectionMethod(method)
	if secondaryConf.Valid {
		value := secondaryConf.Float64
		pending.SecondaryConfidence = &value
	}
	pending.DateFound = parseTimestamp(dateRaw)
	pending.Dismissed = dismissedFlag != 0
	return &pending, nil
}

// CreatePending queues a detected change for human review. Returns
// ErrDuplicateKey when an entry (open or dismissed) already exists for the
// (release, version, method) dedup key.
func (s *Store) CreatePending(ctx context.Context, pending *PendingUpdate) (*PendingUpdate, error) {
	if pending == nil {
		return nil, errors.New("pending update is nil")
	}
	dateFound := pending.DateFound
	if dateFound.IsZero() {
		dateFound = time.Now().UTC()
	}

	var secondary any
	if pending.SecondaryConfidence != nil {
		secondary = *pending.SecondaryConfidence
	}

	publicID := uuid.NewString()
	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO pending_updates (
            public_id, release_id, version, build, confidence, reason, method,
            secondary_confidence, secondary_reason, date_found, dismissed
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)`,
		publicID,
		pending.ReleaseID,
		pending.Version,
		pending.Build,
		pending.Confidence,
		pending.Reason,
		string(pending.Method),
		secondary,
		pending.SecondaryReason,
		timestamp(dateFound),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("pending update for release %d version %q method %s: %w",
				pending.ReleaseID, pending.Version, pending.Method, ErrDuplicateKey)
		}
		return nil, fmt.Errorf("create pending update: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetPending(ctx, id)
}

// GetPending fetches a pending update by row id.
func (s *Store) GetPending(ctx context.Context, id int64) (*PendingUpdate, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+pendingColumns+` FROM pending_updates WHERE id = ?`, id)
	pending, err := scanPending(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("pending update %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get pending update: %w", err)
	}
	return pending, nil
}

// GetPendingByPublicID fetches a pending update by its public identifier.
func (s *Store) GetPendingByPublicID(ctx context.Context, publicID string) (*PendingUpdate, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+pendingColumns+` FROM pending_updates WHERE public_id = ?`, publicID)
	pending, err := scanPending(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("pending update %s: %w", publicID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get pending update: %w", err)
	}
	return pending, nil
}

// ListPending returns a release's pending updates; dismissed entries are
// excluded unless includeDismissed is set.
func (s *Store) ListPending(ctx context.Context, releaseID int64, includeDismissed bool) ([]*PendingUpdate, error) {
	query := `SELECT ` + pendingColumns + ` FROM pending_updates WHERE release_id = ?`
	if !includeDismissed {
		query += ` AND dismissed = 0`
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, releaseID)
	if err != nil {
		return nil, fmt.Errorf("list pending updates: %w", err)
	}
	defer rows.Close()

	var entries []*PendingUpdate
	for rows.Next() {
		pending, err := scanPending(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pending update: %w", err)
		}
		entries = append(entries, pending)
	}
	return entries, rows.Err()
}

// ListAllPending returns open pending updates across all releases.
func (s *Store) ListAllPending(ctx context.Context) ([]*PendingUpdate, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+pendingColumns+` FROM pending_updates WHERE dismissed = 0 ORDER BY release_id, id`)
	if err != nil {
		return nil, fmt.Errorf("list all pending updates: %w", err)
	}
	defer rows.Close()

	var entries []*PendingUpdate
	for rows.Next() {
		pending, err := scanPending(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pending update: %w", err)
		}
		entries = append(entries, pending)
	}
	return entries, rows.Err()
}

// PendingKeyState reports whether the dedup key exists and whether it was
// dismissed. Both false means the key is free.
func (s *Store) PendingKeyState(ctx context.Context, releaseID int64, detected string, method DetectionMethod) (exists, dismissed bool, err error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT dismissed FROM pending_updates WHERE release_id = ? AND version = ? AND method = ?`,
		releaseID,
		detected,
		string(method),
	)
	var dismissedFlag int
	scanErr := row.Scan(&dismissedFlag)
	if errors.Is(scanErr, sql.ErrNoRows) {
		return false, false, nil
	}
	if scanErr != nil {
		return false, false, fmt.Errorf("pending key state: %w", scanErr)
	}
	return true, dismissedFlag != 0, nil
}

// DismissPending marks an open entry dismissed. The row is retained so the
// same detection is not re-queued later.
func (s *Store) DismissPending(ctx context.Context, id int64) error {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE pending_updates SET dismissed = 1 WHERE id = ? AND dismissed = 0`,
		id,
	)
	if err != nil {
		return fmt.Errorf("dismiss pending update: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("pending update %d: %w", id, ErrNotFound)
	}
	return nil
}

// DeletePending removes pending rows by id. Used to invalidate entries made
// stale by an applied update.
func (s *Store) DeletePending(ctx context.Context, ids ...int64) (int64, error) {
	var removed int64
	for _, id := range ids {
		res, err := s.execWithRetry(ctx, `DELETE FROM pending_updates WHERE id = ?`, id)
		if err != nil {
			return removed, fmt.Errorf("delete pending update %d: %w", id, err)
		}
		affected, _ := res.RowsAffected()
		removed += affected
	}
	return removed, nil
}
