package catalog

import (
	"strings"
	"time"

	"patchwatch/internal/version"
)

// DetectionMethod identifies how a pending update was detected.
type DetectionMethod string

const (
	MethodPattern  DetectionMethod = "pattern"
	MethodAssisted DetectionMethod = "assisted"
)

// ParseMethod converts a string into a known DetectionMethod.
func ParseMethod(value string) (DetectionMethod, bool) {
	normalized := DetectionMethod(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case MethodPattern, MethodAssisted:
		return normalized, true
	}
	return "", false
}

// RelationKind classifies a suspected relationship between a candidate
// listing and a tracked release.
type RelationKind string

const (
	RelationSequel  RelationKind = "potential_sequel"
	RelationEdition RelationKind = "potential_edition"
	RelationDLC     RelationKind = "potential_dlc"
)

// TrackedRelease is a software title monitored for updates.
type TrackedRelease struct {
	ID            int64
	AccountID     string
	Title         string
	OriginalTitle string
	SourceTag     string
	Link          string
	ImageURL      string

	// LastKnownVersion is the free-text version string as last seen.
	LastKnownVersion string
	// CurrentVersion and CurrentBuild are normalized values; the verified
	// flags record whether each was confirmed rather than guessed.
	CurrentVersion  string
	VersionVerified bool
	CurrentBuild    string
	BuildVerified   bool

	CadenceMinutes int
	LastChecked    *time.Time
	Active         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Cadence returns the release check cadence as a duration.
func (r *TrackedRelease) Cadence() time.Duration {
	return time.Duration(r.CadenceMinutes) * time.Minute
}

// LocalState maps the release's normalized fields to a comparison input.
func (r *TrackedRelease) LocalState() version.LocalState {
	return version.LocalState{
		Version:         r.CurrentVersion,
		VersionVerified: r.VersionVerified,
		Build:           r.CurrentBuild,
		BuildVerified:   r.BuildVerified,
	}
}

// UpdateRecord is one applied update in a release's history. Append-only;
// once written it is never modified.
type UpdateRecord struct {
	ID              int64
	ReleaseID       int64
	Version         string
	Build           string
	Significance    version.Significance
	DateFound       time.Time
	SourceLink      string
	DownloadRefs    []string
	PreviousVersion string
}

// PendingUpdate is a detected change awaiting human approve/reject.
type PendingUpdate struct {
	ID         int64
	PublicID   string
	ReleaseID  int64
	Version    string
	Build      string
	Confidence float64
	Reason     string
	Method     DetectionMethod

	// Secondary opinion from the optional external classifier, when present.
	SecondaryConfidence *float64
	SecondaryReason     string

	DateFound time.Time
	Dismissed bool
}

// RelationCandidate is an unlinked listing suspected of being a sequel,
// edition, or DLC of a tracked release.
type RelationCandidate struct {
	ID             int64
	PublicID       string
	ReleaseID      int64
	CandidateTitle string
	// CandidateKey is the normalized identity used for deduplication per
	// tracked release.
	CandidateKey   string
	CandidateLink  string
	CandidateImage string
	RawVersionText string
	Similarity     float64
	Kind           RelationKind
	Dismissed      bool
	CreatedAt      time.Time
}

// AccountCadence summarizes the effective check cadence for one account:
// the minimum cadence across its active releases.
type AccountCadence struct {
	AccountID      string
	CadenceMinutes int
	ActiveReleases int
}
