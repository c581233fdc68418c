package scheduler

import (
	"context"
	"time"

	"patchwatch/internal/logging"
	"patchwatch/internal/version"
)

// runCacheSweep periodically re-primes the listings cache for every source
// tag in the catalog so interactive reads stay warm between cycles.
func (s *Scheduler) runCacheSweep(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.CacheSweepInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.refreshCaches(ctx)
		}
	}
}

func (s *Scheduler) refreshCaches(ctx context.Context) {
	releases, err := s.store.ListAllReleases(ctx)
	if err != nil {
		s.logger.Warn("cache sweep: list releases", logging.Error(err))
		return
	}

	sources := make(map[string]bool)
	for _, release := range releases {
		if release.Active && release.SourceTag != "" {
			sources[release.SourceTag] = true
		}
	}

	for source := range sources {
		if ctx.Err() != nil {
			return
		}
		if err := s.client.Refresh(ctx, source); err != nil {
			s.logger.Warn("cache sweep: refresh source",
				logging.String(logging.FieldSource, source),
				logging.Error(err))
		}
	}
	s.logger.Debug("cache sweep complete", logging.Int("sources", len(sources)))
}

// runTitleSweep periodically re-runs marker stripping over stored titles and
// rewrites the cleaned title when it drifted. The original title is never
// discarded.
func (s *Scheduler) runTitleSweep(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.TitleSweepInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.renormalizeTitles(ctx)
		}
	}
}

func (s *Scheduler) renormalizeTitles(ctx context.Context) {
	releases, err := s.store.ListAllReleases(ctx)
	if err != nil {
		s.logger.Warn("title sweep: list releases", logging.Error(err))
		return
	}

	rewritten := 0
	for _, release := range releases {
		if ctx.Err() != nil {
			return
		}
		source := release.OriginalTitle
		if source == "" {
			source = release.Title
		}
		cleaned := version.StripMarkers(source)
		if cleaned == "" || cleaned == release.Title {
			continue
		}
		if err := s.store.RewriteTitle(ctx, release.ID, cleaned); err != nil {
			s.logger.Warn("title sweep: rewrite title",
				logging.Int64(logging.FieldReleaseID, release.ID),
				logging.Error(err))
			continue
		}
		rewritten++
	}
	if rewritten > 0 {
		s.logger.Info("title sweep rewrote cleaned titles", logging.Int("rewritten", rewritten))
	}
}
