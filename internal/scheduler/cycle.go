package scheduler

import (
	"context"
	"strings"
	"time"

	"patchwatch/internal/arbiter"
	"patchwatch/internal/catalog"
	"patchwatch/internal/listings"
	"patchwatch/internal/logging"
	"patchwatch/internal/version"
)

// runCycle checks one account's active releases against fresh listings and
// scans the leftover listings for relation candidates. Failures are counted
// and logged, never returned; the cycle summary is the only surface.
func (s *Scheduler) runCycle(ctx context.Context, accountID string) Summary {
	var summary Summary

	releases, err := s.store.ListReleases(ctx, accountID, true)
	if err != nil {
		s.logger.Error("list releases for cycle",
			logging.String(logging.FieldAccount, accountID),
			logging.Error(err))
		summary.Failed++
		return summary
	}
	if len(releases) == 0 {
		return summary
	}

	bySource := make(map[string][]*catalog.TrackedRelease)
	for _, release := range releases {
		bySource[release.SourceTag] = append(bySource[release.SourceTag], release)
	}

	now := time.Now().UTC()
	for source, group := range bySource {
		if ctx.Err() != nil {
			// Stop was requested; discard the remainder of the cycle.
			return summary
		}
		partial := s.checkSource(ctx, source, group, now)
		summary.add(partial)
	}
	return summary
}

func (s *Scheduler) checkSource(ctx context.Context, source string, releases []*catalog.TrackedRelease, now time.Time) Summary {
	var summary Summary

	fetched, err := s.client.Fetch(ctx, source)
	if err != nil {
		s.logger.Warn("listing fetch failed, retrying next cycle",
			logging.String(logging.FieldSource, source),
			logging.Error(err))
		summary.Failed += len(releases)
		return summary
	}

	linked, unlinked := linkListings(releases, fetched)

	for _, release := range releases {
		if ctx.Err() != nil {
			return summary
		}
		listing, ok := linked[release.ID]
		if !ok {
			continue
		}
		summary.Checked++

		eval, err := s.arbiter.Evaluate(ctx, release, listing, now)
		if err != nil {
			s.logger.Warn("release evaluation failed",
				logging.Int64(logging.FieldReleaseID, release.ID),
				logging.Error(err))
			summary.Failed++
			continue
		}
		switch eval.Outcome {
		case arbiter.OutcomeApplied, arbiter.OutcomeQueued:
			summary.UpdatesFound++
		}
	}

	if ctx.Err() != nil {
		return summary
	}
	if len(unlinked) > 0 {
		found, err := s.matcher.Scan(ctx, releases, unlinked)
		if err != nil {
			s.logger.Warn("relation scan failed",
				logging.String(logging.FieldSource, source),
				logging.Error(err))
			summary.Failed++
		}
		summary.SequelsFound += found
	}
	return summary
}

// linkListings resolves each listing to a tracked release by stripped-title
// identity. Listings that resolve to no release are returned for the
// relation matcher. When several listings match one release the one with the
// richest detection wins.
func linkListings(releases []*catalog.TrackedRelease, fetched []listings.Listing) (map[int64]listings.Listing, []listings.Listing) {
	byTitle := make(map[string]*catalog.TrackedRelease, len(releases))
	for _, release := range releases {
		byTitle[titleKey(release.Title)] = release
	}

	linked := make(map[int64]listings.Listing)
	var unlinked []listings.Listing
	for _, listing := range fetched {
		release, ok := byTitle[titleKey(listing.Title)]
		if !ok {
			unlinked = append(unlinked, listing)
			continue
		}
		existing, seen := linked[release.ID]
		if !seen || richerDetection(listing, existing) {
			linked[release.ID] = listing
		}
	}
	return linked, unlinked
}

func titleKey(title string) string {
	return strings.ToLower(strings.Join(strings.Fields(version.StripMarkers(title)), " "))
}

func richerDetection(candidate, current listings.Listing) bool {
	candDetect := version.Detect(candidateText(candidate))
	currDetect := version.Detect(candidateText(current))
	if candDetect.HasBuild() != currDetect.HasBuild() {
		return candDetect.HasBuild()
	}
	return candDetect.HasVersion() && !currDetect.HasVersion()
}

func candidateText(listing listings.Listing) string {
	if listing.RawVersionText != "" {
		return listing.RawVersionText
	}
	return listing.Title
}
