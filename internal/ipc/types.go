package ipc

import (
	"time"

	"patchwatch/internal/api"
)

// Release mirrors the transport DTO for IPC callers.
type Release = api.Release

// UpdateRecord mirrors the transport DTO for IPC callers.
type UpdateRecord = api.UpdateRecord

// PendingUpdate mirrors the transport DTO for IPC callers.
type PendingUpdate = api.PendingUpdate

// RelationCandidate mirrors the transport DTO for IPC callers.
type RelationCandidate = api.RelationCandidate

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// ScheduleEntry is one account's upcoming check.
type ScheduleEntry struct {
	AccountID string    `json:"account_id"`
	NextCheck time.Time `json:"next_check"`
	LastCheck time.Time `json:"last_check"`
	Cadence   string    `json:"cadence"`
}

// StatusResponse represents combined daemon/scheduler status information.
type StatusResponse struct {
	Running           bool            `json:"running"`
	PID               int             `json:"pid"`
	ScheduledAccounts int             `json:"scheduled_accounts"`
	NextChecks        []ScheduleEntry `json:"next_checks"`
	CatalogPath       string          `json:"catalog_path"`
	LockPath          string          `json:"lock_path"`
}

// CheckNowRequest runs one account's check cycle immediately.
type CheckNowRequest struct {
	AccountID string `json:"account_id"`
}

// CheckNowResponse carries the cycle summary.
type CheckNowResponse struct {
	Checked      int `json:"checked"`
	UpdatesFound int `json:"updates_found"`
	SequelsFound int `json:"sequels_found"`
	Failed       int `json:"failed"`
}

// RefreshScheduleRequest recomputes one account's schedule entry.
type RefreshScheduleRequest struct {
	AccountID string `json:"account_id"`
}

// RefreshScheduleResponse acknowledges the refresh.
type RefreshScheduleResponse struct {
	Refreshed bool `json:"refreshed"`
}

// ApproveRequest promotes a pending update.
type ApproveRequest struct {
	ReleaseID int64  `json:"release_id"`
	PendingID string `json:"pending_id"`
}

// ApproveResponse carries the resulting history record.
type ApproveResponse struct {
	Record UpdateRecord `json:"record"`
}

// RejectRequest dismisses a pending update.
type RejectRequest struct {
	ReleaseID int64  `json:"release_id"`
	PendingID string `json:"pending_id"`
}

// RejectResponse acknowledges the rejection.
type RejectResponse struct {
	Rejected bool `json:"rejected"`
}

// ResolveRelationRequest applies a decision to a relation candidate.
type ResolveRelationRequest struct {
	CandidateID string `json:"candidate_id"`
	Action      string `json:"action"`
}

// ResolveRelationResponse acknowledges the resolution.
type ResolveRelationResponse struct {
	Resolved bool `json:"resolved"`
}

// ReleaseListRequest filters the release listing.
type ReleaseListRequest struct {
	AccountID  string `json:"account_id"`
	ActiveOnly bool   `json:"active_only"`
}

// ReleaseListResponse contains tracked releases.
type ReleaseListResponse struct {
	Releases []Release `json:"releases"`
}

// ReleaseAddRequest registers a new tracked release.
type ReleaseAddRequest struct {
	AccountID      string `json:"account_id"`
	Title          string `json:"title"`
	SourceTag      string `json:"source_tag"`
	Link           string `json:"link"`
	CadenceMinutes int    `json:"cadence_minutes"`
}

// ReleaseAddResponse carries the created release.
type ReleaseAddResponse struct {
	Release Release `json:"release"`
}

// ReleaseRemoveRequest deletes a tracked release.
type ReleaseRemoveRequest struct {
	ReleaseID int64 `json:"release_id"`
}

// ReleaseRemoveResponse acknowledges the removal.
type ReleaseRemoveResponse struct {
	Removed bool `json:"removed"`
}

// ReleasePauseRequest pauses or resumes one release.
type ReleasePauseRequest struct {
	ReleaseID int64 `json:"release_id"`
	Active    bool  `json:"active"`
}

// ReleasePauseResponse acknowledges the change.
type ReleasePauseResponse struct {
	Active bool `json:"active"`
}

// PendingListRequest filters pending updates (zero release id means all).
type PendingListRequest struct {
	ReleaseID int64 `json:"release_id"`
}

// PendingListResponse contains queued detections.
type PendingListResponse struct {
	Pending []PendingUpdate `json:"pending"`
}

// RelationListRequest filters relation candidates (zero release id means all).
type RelationListRequest struct {
	ReleaseID int64 `json:"release_id"`
}

// RelationListResponse contains open relation candidates.
type RelationListResponse struct {
	Candidates []RelationCandidate `json:"candidates"`
}

// HistoryRequest fetches one release's applied updates.
type HistoryRequest struct {
	ReleaseID int64 `json:"release_id"`
}

// HistoryResponse contains the release's history.
type HistoryResponse struct {
	Records []UpdateRecord `json:"records"`
}

// HealthRequest fetches catalog diagnostics.
type HealthRequest struct{}

// HealthResponse contains catalog diagnostics.
type HealthResponse struct {
	DBPath           string `json:"db_path"`
	SchemaVersion    int    `json:"schema_version"`
	IntegrityCheck   bool   `json:"integrity_check"`
	Releases         int    `json:"releases"`
	ActiveReleases   int    `json:"active_releases"`
	UpdateRecords    int    `json:"update_records"`
	PendingOpen      int    `json:"pending_open"`
	PendingDismissed int    `json:"pending_dismissed"`
	RelationsOpen    int    `json:"relations_open"`
	Error            string `json:"error"`
}
