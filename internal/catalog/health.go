package catalog

import (
	"context"
	"fmt"
)

// Health captures diagnostic information about the catalog database.
type Health struct {
	DBPath           string
	SchemaVersion    int
	IntegrityCheck   bool
	Releases         int
	ActiveReleases   int
	UpdateRecords    int
	PendingOpen      int
	PendingDismissed int
	RelationsOpen    int
	Error            string
}

// CheckHealth runs integrity and count diagnostics. It never returns an
// error; failures are reported in the Error field so the CLI can still render
// a partial report.
func (s *Store) CheckHealth(ctx context.Context) Health {
	health := Health{DBPath: s.path}

	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&health.SchemaVersion); err != nil {
		health.Error = fmt.Sprintf("read schema version: %v", err)
		return health
	}

	var integrity string
	if err := s.db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&integrity); err != nil {
		health.Error = fmt.Sprintf("integrity check: %v", err)
		return health
	}
	health.IntegrityCheck = integrity == "ok"

	counts := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(1) FROM releases", &health.Releases},
		{"SELECT COUNT(1) FROM releases WHERE active = 1", &health.ActiveReleases},
		{"SELECT COUNT(1) FROM update_records", &health.UpdateRecords},
		{"SELECT COUNT(1) FROM pending_updates WHERE dismissed = 0", &health.PendingOpen},
		{"SELECT COUNT(1) FROM pending_updates WHERE dismissed = 1", &health.PendingDismissed},
		{"SELECT COUNT(1) FROM relation_candidates WHERE dismissed = 0", &health.RelationsOpen},
	}
	for _, count := range counts {
		if err := s.db.QueryRowContext(ctx, count.query).Scan(count.dest); err != nil {
			health.Error = fmt.Sprintf("count query failed: %v", err)
			return health
		}
	}

	return health
}
