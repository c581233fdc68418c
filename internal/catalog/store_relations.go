package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const relationColumns = "id, public_id, release_id, candidate_title, candidate_key, candidate_link, candidate_image, raw_version_text, similarity, kind, dismissed, created_at"

func scanRelation(scanner interface{ Scan(dest ...any) error }) (*RelationCandidate, error) {
	var (
		candidate     RelationCandidate
		kind          string
		dismissedFlag int
		createdRaw    string
	)
	if err := scanner.Scan(
		&candidate.ID,
		&candidate.PublicID,
		&candidate.ReleaseID,
		&candidate.CandidateTitle,
		&candidate.CandidateKey,
		&candidate.CandidateLink,
		&candidate.CandidateImage,
		&candidate.RawVersionText,
		&candidate.Similarity,
		&kind,
		&dismissedFlag,
		&createdRaw,
	); err != nil {
		return nil, err
	}
	candidate.Kind = RelationKind(kind)
	candidate.Dismissed = dismissedFlag != 0
	candidate.CreatedAt = parseTimestamp(createdRaw)
	return &candidate, nil
}

// CreateRelation records a relation candidate. Returns ErrDuplicateKey when a
// row (open or dismissed) already exists for (release, candidate key).
func (s *Store) CreateRelation(ctx context.Context, candidate *RelationCandidate) (*RelationCandidate, error) {
	if candidate == nil {
		return nil, errors.New("relation candidate is nil")
	}

	publicID := uuid.NewString()
	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO relation_candidates (
            public_id, release_id, candidate_title, candidate_key,
            candidate_link, candidate_image, raw_version_text, similarity,
            kind, dismissed, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?)`,
		publicID,
		candidate.ReleaseID,
		candidate.CandidateTitle,
		candidate.CandidateKey,
		candidate.CandidateLink,
		candidate.CandidateImage,
		candidate.RawVersionText,
		candidate.Similarity,
		string(candidate.Kind),
		timestamp(time.Now()),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("relation for release %d candidate %q: %w",
				candidate.ReleaseID, candidate.CandidateKey, ErrDuplicateKey)
		}
		return nil, fmt.Errorf("create relation candidate: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetRelation(ctx, id)
}

// GetRelation fetches a relation candidate by row id.
func (s *Store) GetRelation(ctx context.Context, id int64) (*RelationCandidate, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+relationColumns+` FROM relation_candidates WHERE id = ?`, id)
	candidate, err := scanRelation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("relation candidate %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get relation candidate: %w", err)
	}
	return candidate, nil
}

// GetRelationByPublicID fetches a relation candidate by public identifier.
func (s *Store) GetRelationByPublicID(ctx context.Context, publicID string) (*RelationCandidate, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+relationColumns+` FROM relation_candidates WHERE public_id = ?`, publicID)
	candidate, err := scanRelation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("relation candidate %s: %w", publicID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get relation candidate: %w", err)
	}
	return candidate, nil
}

// ListRelations returns open relation candidates, optionally scoped to one
// release (releaseID zero means all).
func (s *Store) ListRelations(ctx context.Context, releaseID int64) ([]*RelationCandidate, error) {
	query := `SELECT ` + relationColumns + ` FROM relation_candidates WHERE dismissed = 0`
	args := []any{}
	if releaseID != 0 {
		query += ` AND release_id = ?`
		args = append(args, releaseID)
	}
	query += ` ORDER BY similarity DESC, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list relation candidates: %w", err)
	}
	defer rows.Close()

	var candidates []*RelationCandidate
	for rows.Next() {
		candidate, err := scanRelation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan relation candidate: %w", err)
		}
		candidates = append(candidates, candidate)
	}
	return candidates, rows.Err()
}

// RelationExists reports whether a row (open or dismissed) exists for the
// dedup key.
func (s *Store) RelationExists(ctx context.Context, releaseID int64, candidateKey string) (bool, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT 1 FROM relation_candidates WHERE release_id = ? AND candidate_key = ?`,
		releaseID,
		candidateKey,
	)
	var one int
	err := row.Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("relation exists: %w", err)
	}
	return true, nil
}

// DismissRelation marks a candidate dismissed; the row is retained so the
// pair is never re-emitted.
func (s *Store) DismissRelation(ctx context.Context, id int64) error {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE relation_candidates SET dismissed = 1 WHERE id = ? AND dismissed = 0`,
		id,
	)
	if err != nil {
		return fmt.Errorf("dismiss relation candidate: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("relation candidate %d: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteRelation removes a candidate row entirely (used after track_same and
// track_separate resolutions, where re-detection is prevented by the catalog
// itself).
func (s *Store) DeleteRelation(ctx context.Context, id int64) error {
	res, err := s.execWithRetry(ctx, `DELETE FROM relation_candidates WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete relation candidate: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("relation candidate %d: %w", id, ErrNotFound)
	}
	return nil
}
