package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const releaseColumns = "id, account_id, title, original_title, source_tag, link, image_url, last_known_version, current_version, version_verified, current_build, build_verified, cadence_minutes, last_checked, active, created_at, updated_at"

func scanRelease(scanner interface{ Scan(dest ...any) error }) (*TrackedRelease, error) {
	var (
		release        TrackedRelease
		versionFlag    int
		buildFlag      int
		activeFlag     int
		lastCheckedRaw sql.NullString
		createdRaw     string
		updatedRaw     string
	)

	if err := scanner.Scan(
		&release.ID,
		&release.AccountID,
		&release.Title,
		&release.OriginalTitle,
		&release.SourceTag,
		&release.Link,
		&release.ImageURL,
		&release.LastKnownVersion,
		&release.CurrentVersion,
		&versionFlag,
		&release.CurrentBuild,
		&buildFlag,
		&release.CadenceMinutes,
		&lastCheckedRaw,
		&activeFlag,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	release.VersionVerified = versionFlag != 0
	release.BuildVerified = buildFlag != 0
	release.Active = activeFlag != 0
	if lastCheckedRaw.Valid {
		if t := parseTimestamp(lastCheckedRaw.String); !t.IsZero() {
			release.LastChecked = &t
		}
	}
	release.CreatedAt = parseTimestamp(createdRaw)
	release.UpdatedAt = parseTimestamp(updatedRaw)
	return &release, nil
}

// InsertRelease adds a new tracked release.
func (s *Store) InsertRelease(ctx context.Context, release *TrackedRelease) (*TrackedRelease, error) {
	if release == nil {
		return nil, errors.New("release is nil")
	}
	now := time.Now().UTC()

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO releases (
            account_id, title, original_title, source_tag, link, image_url,
            last_known_version, current_version, version_verified,
            current_build, build_verified, cadence_minutes, last_checked,
            active, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		release.AccountID,
		release.Title,
		release.OriginalTitle,
		release.SourceTag,
		release.Link,
		release.ImageURL,
		release.LastKnownVersion,
		release.CurrentVersion,
		boolToInt(release.VersionVerified),
		release.CurrentBuild,
		boolToInt(release.BuildVerified),
		release.CadenceMinutes,
		nullableTimestamp(release.LastChecked),
		boolToInt(release.Active),
		timestamp(now),
		timestamp(now),
	)
	if err != nil {
		return nil, fmt.Errorf("insert release: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetRelease(ctx, id)
}

// GetRelease fetches a tracked release by identifier.
func (s *Store) GetRelease(ctx context.Context, id int64) (*TrackedRelease, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+releaseColumns+` FROM releases WHERE id = ?`, id)
	release, err := scanRelease(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("release %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get release: %w", err)
	}
	return release, nil
}

// ListReleases returns an account's releases, optionally limited to active ones.
func (s *Store) ListReleases(ctx context.Context, accountID string, activeOnly bool) ([]*TrackedRelease, error) {
	query := `SELECT ` + releaseColumns + ` FROM releases WHERE account_id = ?`
	if activeOnly {
		query += ` AND active = 1`
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("list releases: %w", err)
	}
	defer rows.Close()

	var releases []*TrackedRelease
	for rows.Next() {
		release, err := scanRelease(rows)
		if err != nil {
			return nil, fmt.Errorf("scan release: %w", err)
		}
		releases = append(releases, release)
	}
	return releases, rows.Err()
}

// ListAllReleases returns every tracked release across accounts.
func (s *Store) ListAllReleases(ctx context.Context) ([]*TrackedRelease, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+releaseColumns+` FROM releases ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list all releases: %w", err)
	}
	defer rows.Close()

	var releases []*TrackedRelease
	for rows.Next() {
		release, err := scanRelease(rows)
		if err != nil {
			return nil, fmt.Errorf("scan release: %w", err)
		}
		releases = append(releases, release)
	}
	return releases, rows.Err()
}

// ListAccountCadences aggregates the effective cadence per account with at
// least one active release: the minimum cadence across those releases.
func (s *Store) ListAccountCadences(ctx context.Context) ([]AccountCadence, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT account_id, MIN(cadence_minutes), COUNT(1)
         FROM releases WHERE active = 1 GROUP BY account_id ORDER BY account_id`)
	if err != nil {
		return nil, fmt.Errorf("list account cadences: %w", err)
	}
	defer rows.Close()

	var cadences []AccountCadence
	for rows.Next() {
		var entry AccountCadence
		if err := rows.Scan(&entry.AccountID, &entry.CadenceMinutes, &entry.ActiveReleases); err != nil {
			return nil, fmt.Errorf("scan account cadence: %w", err)
		}
		cadences = append(cadences, entry)
	}
	return cadences, rows.Err()
}

// SetReleaseActive toggles the active flag.
func (s *Store) SetReleaseActive(ctx context.Context, id int64, active bool) error {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE releases SET active = ?, updated_at = ? WHERE id = ?`,
		boolToInt(active),
		timestamp(time.Now()),
		id,
	)
	if err != nil {
		return fmt.Errorf("set release active: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("release %d: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteRelease removes a release and, via cascade, its history, pending
// updates, and relation candidates.
func (s *Store) DeleteRelease(ctx context.Context, id int64) error {
	res, err := s.execWithRetry(ctx, `DELETE FROM releases WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete release: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("release %d: %w", id, ErrNotFound)
	}
	return nil
}

// TouchLastChecked records a completed check without any state change.
func (s *Store) TouchLastChecked(ctx context.Context, id int64, at time.Time) error {
	if err := retryOnBusy(ensureContext(ctx), func() error {
		_, err := s.db.ExecContext(
			ctx,
			`UPDATE releases SET last_checked = ?, updated_at = ? WHERE id = ?`,
			timestamp(at),
			timestamp(time.Now()),
			id,
		)
		return err
	}); err != nil {
		return fmt.Errorf("touch last checked: %w", err)
	}
	return nil
}

// RewriteTitle replaces the cleaned display title, preserving original_title.
// Used by the title re-normalization sweep.
func (s *Store) RewriteTitle(ctx context.Context, id int64, title string) error {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE releases SET title = ?, updated_at = ? WHERE id = ?`,
		title,
		timestamp(time.Now()),
		id,
	)
	if err != nil {
		return fmt.Errorf("rewrite title: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("release %d: %w", id, ErrNotFound)
	}
	return nil
}
