package api

import (
	"time"

	"patchwatch/internal/catalog"
)

// Release is the transport form of a tracked release.
type Release struct {
	ID               int64      `json:"id"`
	AccountID        string     `json:"accountId"`
	Title            string     `json:"title"`
	OriginalTitle    string     `json:"originalTitle,omitempty"`
	SourceTag        string     `json:"sourceTag,omitempty"`
	Link             string     `json:"link,omitempty"`
	ImageURL         string     `json:"imageUrl,omitempty"`
	LastKnownVersion string     `json:"lastKnownVersion,omitempty"`
	CurrentVersion   string     `json:"currentVersion,omitempty"`
	VersionVerified  bool       `json:"versionVerified"`
	CurrentBuild     string     `json:"currentBuild,omitempty"`
	BuildVerified    bool       `json:"buildVerified"`
	CadenceMinutes   int        `json:"cadenceMinutes"`
	LastChecked      *time.Time `json:"lastChecked,omitempty"`
	Active           bool       `json:"active"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// FromRelease converts a storage release to its transport form.
func FromRelease(release *catalog.TrackedRelease) Release {
	return Release{
		ID:               release.ID,
		AccountID:        release.AccountID,
		Title:            release.Title,
		OriginalTitle:    release.OriginalTitle,
		SourceTag:        release.SourceTag,
		Link:             release.Link,
		ImageURL:         release.ImageURL,
		LastKnownVersion: release.LastKnownVersion,
		CurrentVersion:   release.CurrentVersion,
		VersionVerified:  release.VersionVerified,
		CurrentBuild:     release.CurrentBuild,
		BuildVerified:    release.BuildVerified,
		CadenceMinutes:   release.CadenceMinutes,
		LastChecked:      release.LastChecked,
		Active:           release.Active,
		CreatedAt:        release.CreatedAt,
		UpdatedAt:        release.UpdatedAt,
	}
}

// UpdateRecord is the transport form of one applied update.
type UpdateRecord struct {
	ID              int64     `json:"id"`
	ReleaseID       int64     `json:"releaseId"`
	Version         string    `json:"version,omitempty"`
	Build           string    `json:"build,omitempty"`
	Significance    string    `json:"significance"`
	DateFound       time.Time `json:"dateFound"`
	SourceLink      string    `json:"sourceLink,omitempty"`
	DownloadRefs    []string  `json:"downloadRefs,omitempty"`
	PreviousVersion string    `json:"previousVersion,omitempty"`
}

// FromUpdateRecord converts a storage update record to its transport form.
func FromUpdateRecord(record *catalog.UpdateRecord) UpdateRecord {
	return UpdateRecord{
		ID:              record.ID,
		ReleaseID:       record.ReleaseID,
		Version:         record.Version,
		Build:           record.Build,
		Significance:    string(record.Significance),
		DateFound:       record.DateFound,
		SourceLink:      record.SourceLink,
		DownloadRefs:    append([]string(nil), record.DownloadRefs...),
		PreviousVersion: record.PreviousVersion,
	}
}

// PendingUpdate is the transport form of a queued detection.
type PendingUpdate struct {
	ID                  string    `json:"id"`
	ReleaseID           int64     `json:"releaseId"`
	Version             string    `json:"version,omitempty"`
	Build               string    `json:"build,omitempty"`
	Confidence          float64   `json:"confidence"`
	Reason              string    `json:"reason,omitempty"`
	Method              string    `json:"method"`
	SecondaryConfidence *float64  `json:"secondaryConfidence,omitempty"`
	SecondaryReason     string    `json:"secondaryReason,omitempty"`
	DateFound           time.Time `json:"dateFound"`
	Dismissed           bool      `json:"dismissed"`
}

// FromPendingUpdate converts a storage pending update to its transport form.
// The public id becomes the external identifier.
func FromPendingUpdate(pending *catalog.PendingUpdate) PendingUpdate {
	return PendingUpdate{
		ID:                  pending.PublicID,
		ReleaseID:           pending.ReleaseID,
		Version:             pending.Version,
		Build:               pending.Build,
		Confidence:          pending.Confidence,
		Reason:              pending.Reason,
		Method:              string(pending.Method),
		SecondaryConfidence: pending.SecondaryConfidence,
		SecondaryReason:     pending.SecondaryReason,
		DateFound:           pending.DateFound,
		Dismissed:           pending.Dismissed,
	}
}

// RelationCandidate is the transport form of a suspected relation.
type RelationCandidate struct {
	ID             string    `json:"id"`
	ReleaseID      int64     `json:"releaseId"`
	CandidateTitle string    `json:"candidateTitle"`
	CandidateLink  string    `json:"candidateLink,omitempty"`
	CandidateImage string    `json:"candidateImage,omitempty"`
	RawVersionText string    `json:"rawVersionText,omitempty"`
	Similarity     float64   `json:"similarity"`
	Kind           string    `json:"kind"`
	CreatedAt      time.Time `json:"createdAt"`
}

// FromRelationCandidate converts a storage relation candidate to its
// transport form.
func FromRelationCandidate(candidate *catalog.RelationCandidate) RelationCandidate {
	return RelationCandidate{
		ID:             candidate.PublicID,
		ReleaseID:      candidate.ReleaseID,
		CandidateTitle: candidate.CandidateTitle,
		CandidateLink:  candidate.CandidateLink,
		CandidateImage: candidate.CandidateImage,
		RawVersionText: candidate.RawVersionText,
		Similarity:     candidate.Similarity,
		Kind:           string(candidate.Kind),
		CreatedAt:      candidate.CreatedAt,
	}
}
