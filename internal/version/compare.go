package version

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultFreshnessWindow bounds how recent an unverified remote signal must be
// before an advisory outdated verdict is produced.
const DefaultFreshnessWindow = 24 * time.Hour

// ParseSegments splits a version string into integer segments. Returns false
// when any segment is not a non-negative integer.
func ParseSegments(value string) ([]int, bool) {
	value = NormalizeVersion(value)
	if value == "" {
		return nil, false
	}
	parts := strings.Split(value, ".")
	segments := make([]int, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 0 {
			return nil, false
		}
		segments = append(segments, n)
	}
	return segments, true
}

// CompareVersions compares two dotted versions segment-by-segment as integers,
// padding the shorter with zeros. Returns -1, 0, or 1 and false when either
// side fails to parse.
func CompareVersions(a, b string) (int, bool) {
	segA, okA := ParseSegments(a)
	segB, okB := ParseSegments(b)
	if !okA || !okB {
		return 0, false
	}
	length := len(segA)
	if len(segB) > length {
		length = len(segB)
	}
	for i := 0; i < length; i++ {
		var va, vb int
		if i < len(segA) {
			va = segA[i]
		}
		if i < len(segB) {
			vb = segB[i]
		}
		switch {
		case va < vb:
			return -1, true
		case va > vb:
			return 1, true
		}
	}
	return 0, true
}

// CompareBuilds compares two build numbers as plain integers. Returns false
// when either side fails to parse.
func CompareBuilds(a, b string) (int, bool) {
	na, errA := strconv.ParseInt(NormalizeBuild(a), 10, 64)
	nb, errB := strconv.ParseInt(NormalizeBuild(b), 10, 64)
	if NormalizeBuild(a) == "" || NormalizeBuild(b) == "" || errA != nil || errB != nil {
		return 0, false
	}
	switch {
	case na < nb:
		return -1, true
	case na > nb:
		return 1, true
	}
	return 0, true
}

// Classify maps a version delta to a significance tier: a leading-segment
// change is major, a middle-segment change is minor, anything else (trailing
// segment or build-only change) is patch.
func Classify(previous, next string) Significance {
	segPrev, okPrev := ParseSegments(previous)
	segNext, okNext := ParseSegments(next)
	if !okPrev || !okNext {
		return SignificancePatch
	}
	length := len(segPrev)
	if len(segNext) > length {
		length = len(segNext)
	}
	for i := 0; i < length; i++ {
		var va, vb int
		if i < len(segPrev) {
			va = segPrev[i]
		}
		if i < len(segNext) {
			vb = segNext[i]
		}
		if va == vb {
			continue
		}
		switch {
		case i == 0:
			return SignificanceMajor
		case i < length-1:
			return SignificanceMinor
		default:
			return SignificancePatch
		}
	}
	return SignificancePatch
}

// LocalState captures the tracked side of an outdated comparison.
type LocalState struct {
	Version         string
	VersionVerified bool
	Build           string
	BuildVerified   bool
}

// RemoteSignal captures the candidate side of an outdated comparison.
type RemoteSignal struct {
	Version string
	Build   string
	Seen    time.Time
}

// Outdated decides whether a remote signal indicates the local state is stale.
// Verified build evidence wins over version evidence; with neither verified, a
// remote signal inside the freshness window yields an advisory verdict only.
// Unparseable values skip their comparison path without producing an error.
func Outdated(local LocalState, remote RemoteSignal, now time.Time, freshness time.Duration) Verdict {
	if freshness <= 0 {
		freshness = DefaultFreshnessWindow
	}

	if local.BuildVerified && remote.Build != "" {
		if cmp, ok := CompareBuilds(local.Build, remote.Build); ok {
			if cmp < 0 {
				return Verdict{
					Outdated: true,
					Reason:   fmt.Sprintf("remote build %s is newer than tracked build %s", NormalizeBuild(remote.Build), NormalizeBuild(local.Build)),
				}
			}
			return Verdict{Reason: "tracked build is current"}
		}
	}

	if local.VersionVerified && remote.Version != "" {
		if cmp, ok := CompareVersions(local.Version, remote.Version); ok {
			if cmp < 0 {
				return Verdict{
					Outdated: true,
					Reason:   fmt.Sprintf("remote version %s is newer than tracked version %s", NormalizeVersion(remote.Version), NormalizeVersion(local.Version)),
				}
			}
			return Verdict{Reason: "tracked version is current"}
		}
	}

	if !local.VersionVerified && !local.BuildVerified && !remote.Seen.IsZero() {
		age := now.Sub(remote.Seen)
		if age >= 0 && age <= freshness {
			return Verdict{
				Outdated: true,
				Advisory: true,
				Reason:   fmt.Sprintf("possible update, unverified: remote signal seen %s ago", age.Round(time.Minute)),
			}
		}
	}

	return Verdict{Reason: "no comparable evidence"}
}
