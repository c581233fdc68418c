package relation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"patchwatch/internal/catalog"
	"patchwatch/internal/config"
	"patchwatch/internal/listings"
	"patchwatch/internal/logging"
	"patchwatch/internal/textutil"
	"patchwatch/internal/version"
)

// Action is a user resolution for a relation candidate.
type Action string

const (
	// ActionTrackSame merges the candidate into the tracked release's history
	// as if it were a detected update.
	ActionTrackSame Action = "track_same"
	// ActionTrackSeparate seeds a new tracked release from the candidate.
	ActionTrackSeparate Action = "track_separate"
	// ActionDismiss suppresses the pair permanently.
	ActionDismiss Action = "dismiss"
)

// ParseAction converts a string into a known Action.
func ParseAction(value string) (Action, bool) {
	normalized := Action(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case ActionTrackSame, ActionTrackSeparate, ActionDismiss:
		return normalized, true
	}
	return "", false
}

var trailingNumberPattern = regexp.MustCompile(`(\d+)\s*$`)

const similarityEpsilon = 1e-9

var editionKeywords = map[string]bool{
	"edition":     true,
	"definitive":  true,
	"remaster":    true,
	"remastered":  true,
	"goty":        true,
	"complete":    true,
	"deluxe":      true,
	"ultimate":    true,
	"anniversary": true,
	"enhanced":    true,
	"redux":       true,
	"directors":   true,
}

var dlcKeywords = map[string]bool{
	"dlc":        true,
	"expansion":  true,
	"addon":      true,
	"standalone": true,
}

// Matcher compares unlinked listings against tracked releases.
type Matcher struct {
	store     *catalog.Store
	threshold float64
	logger    *slog.Logger
}

// New creates a Matcher using the configured similarity threshold.
func New(store *catalog.Store, cfg *config.Config, logger *slog.Logger) *Matcher {
	return &Matcher{
		store:     store,
		threshold: cfg.Engine.SimilarityThreshold,
		logger:    logging.NewComponentLogger(logger, "relation"),
	}
}

// Scan compares each unlinked listing against each tracked release and
// records new relation candidates. Returns the number of candidates created.
// Pairs already recorded (open or dismissed) are skipped silently.
func (m *Matcher) Scan(ctx context.Context, releases []*catalog.TrackedRelease, unlinked []listings.Listing) (int, error) {
	created := 0
	for _, listing := range unlinked {
		strippedCandidate := version.StripMarkers(listing.Title)
		if strippedCandidate == "" {
			continue
		}
		candidateFP := textutil.NewFingerprint(noiseFree(strippedCandidate))
		candidateKey := normalizeKey(strippedCandidate)

		for _, release := range releases {
			strippedRelease := version.StripMarkers(release.Title)
			score := textutil.CosineSimilarity(candidateFP, textutil.NewFingerprint(noiseFree(strippedRelease)))
			// Threshold is inclusive; the epsilon absorbs float rounding so
			// a score exactly at the threshold emits.
			if score < m.threshold-similarityEpsilon {
				continue
			}
			if strippedCandidate == strippedRelease {
				// Identical stripped titles are the same release, not a
				// relation; the arbiter path owns those.
				continue
			}

			exists, err := m.store.RelationExists(ctx, release.ID, candidateKey)
			if err != nil {
				return created, fmt.Errorf("relation dedup check: %w", err)
			}
			if exists {
				continue
			}

			kind := classifyKind(strippedRelease, strippedCandidate)
			candidate, err := m.store.CreateRelation(ctx, &catalog.RelationCandidate{
				ReleaseID:      release.ID,
				CandidateTitle: listing.Title,
				CandidateKey:   candidateKey,
				CandidateLink:  listing.Link,
				CandidateImage: listing.Image,
				RawVersionText: listing.RawVersionText,
				Similarity:     score,
				Kind:           kind,
			})
			if err != nil {
				if errors.Is(err, catalog.ErrDuplicateKey) {
					continue
				}
				return created, fmt.Errorf("create relation candidate: %w", err)
			}
			created++
			m.logger.Info("relation candidate found",
				logging.Int64(logging.FieldReleaseID, release.ID),
				logging.String("candidate", candidate.CandidateTitle),
				logging.String("kind", string(kind)),
				logging.Float64("similarity", score))
		}
	}
	return created, nil
}

// classifyKind picks the relationship type for a matched pair of stripped
// titles. A trailing numeric change reads as a sequel, an edition keyword
// difference as an edition, a DLC keyword only on the candidate side as DLC.
func classifyKind(release, candidate string) catalog.RelationKind {
	relNum := trailingNumberPattern.FindString(release)
	candNum := trailingNumberPattern.FindString(candidate)
	if candNum != "" && candNum != relNum {
		return catalog.RelationSequel
	}

	relTokens := keywordSet(release, editionKeywords)
	candTokens := keywordSet(candidate, editionKeywords)
	if !sameSet(relTokens, candTokens) {
		return catalog.RelationEdition
	}

	if len(keywordSet(release, dlcKeywords)) == 0 && len(keywordSet(candidate, dlcKeywords)) > 0 {
		return catalog.RelationDLC
	}

	return catalog.RelationSequel
}

func keywordSet(title string, keywords map[string]bool) map[string]bool {
	found := map[string]bool{}
	for _, token := range textutil.Tokenize(title) {
		if keywords[token] {
			found[token] = true
		}
	}
	return found
}

func sameSet(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for token := range a {
		if !b[token] {
			return false
		}
	}
	return true
}

// noiseFree removes edition and DLC keywords before similarity scoring so
// "Game GOTY Edition" still lines up with "Game".
func noiseFree(title string) string {
	kept := make([]string, 0, 8)
	for _, token := range textutil.Tokenize(title) {
		if editionKeywords[token] || dlcKeywords[token] {
			continue
		}
		kept = append(kept, token)
	}
	return strings.Join(kept, " ")
}

func normalizeKey(stripped string) string {
	return strings.Join(strings.Fields(strings.ToLower(stripped)), " ")
}

// Resolve applies a user decision to a relation candidate identified by its
// public id.
func (m *Matcher) Resolve(ctx context.Context, candidateID string, action Action) error {
	candidate, err := m.store.GetRelationByPublicID(ctx, candidateID)
	if err != nil {
		return err
	}
	if candidate.Dismissed {
		return fmt.Errorf("relation candidate %s already resolved: %w", candidateID, catalog.ErrNotFound)
	}

	switch action {
	case ActionTrackSame:
		return m.trackSame(ctx, candidate)
	case ActionTrackSeparate:
		return m.trackSeparate(ctx, candidate)
	case ActionDismiss:
		if err := m.store.DismissRelation(ctx, candidate.ID); err != nil {
			return err
		}
		m.logger.Info("relation candidate dismissed",
			logging.Int64(logging.FieldReleaseID, candidate.ReleaseID),
			logging.String("candidate", candidate.CandidateTitle))
		return nil
	default:
		return fmt.Errorf("unknown relation action %q", action)
	}
}

// trackSame merges the candidate into the source release's history as a
// detected update, then removes the candidate row.
func (m *Matcher) trackSame(ctx context.Context, candidate *catalog.RelationCandidate) error {
	rawText := candidate.RawVersionText
	if rawText == "" {
		rawText = candidate.CandidateTitle
	}
	detection := version.Detect(rawText)

	release, err := m.store.GetRelease(ctx, candidate.ReleaseID)
	if err != nil {
		return err
	}
	if _, err := m.store.ApplyUpdate(ctx, catalog.ApplyInput{
		ReleaseID:      candidate.ReleaseID,
		Version:        detection.Version,
		Build:          detection.Build,
		Significance:   version.Classify(release.CurrentVersion, detection.Version),
		SourceLink:     candidate.CandidateLink,
		DateFound:      time.Now().UTC(),
		RawVersionText: rawText,
	}); err != nil {
		return fmt.Errorf("merge candidate into history: %w", err)
	}
	if err := m.store.DeleteRelation(ctx, candidate.ID); err != nil {
		return err
	}
	m.logger.Info("relation candidate merged",
		logging.Int64(logging.FieldReleaseID, candidate.ReleaseID),
		logging.String("candidate", candidate.CandidateTitle))
	return nil
}

// trackSeparate seeds a new tracked release from the candidate, inheriting
// the source release's account and cadence.
func (m *Matcher) trackSeparate(ctx context.Context, candidate *catalog.RelationCandidate) error {
	source, err := m.store.GetRelease(ctx, candidate.ReleaseID)
	if err != nil {
		return err
	}

	detection := version.Detect(candidate.RawVersionText)
	seeded, err := m.store.InsertRelease(ctx, &catalog.TrackedRelease{
		AccountID:        source.AccountID,
		Title:            version.DisplayTitle(candidate.CandidateTitle),
		OriginalTitle:    candidate.CandidateTitle,
		SourceTag:        source.SourceTag,
		Link:             candidate.CandidateLink,
		ImageURL:         candidate.CandidateImage,
		LastKnownVersion: candidate.RawVersionText,
		CurrentVersion:   detection.Version,
		CurrentBuild:     detection.Build,
		CadenceMinutes:   source.CadenceMinutes,
		Active:           true,
	})
	if err != nil {
		return fmt.Errorf("seed release from candidate: %w", err)
	}
	if err := m.store.DeleteRelation(ctx, candidate.ID); err != nil {
		return err
	}
	m.logger.Info("relation candidate tracked separately",
		logging.Int64(logging.FieldReleaseID, seeded.ID),
		logging.String("title", seeded.Title))
	return nil
}
