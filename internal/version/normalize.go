package version

import (
	"regexp"
	"strings"
)

var (
	buildTokenPattern    = regexp.MustCompile(`(?i)\bbuild[ ._-]*(\d+)`)
	dottedVersionPattern = regexp.MustCompile(`(?i)\bv?(\d+(?:\.\d+)+)\b`)
	longNumericPattern   = regexp.MustCompile(`\b(\d{6,})\b`)
	numericTokenPattern  = regexp.MustCompile(`\d+`)
)

// Detect scans a free-form title for version and build identifiers using the
// ordered rule list. Earlier rules win for the field they populate; the
// numeric fallbacks only fire when no explicit marker matched.
func Detect(title string) Detection {
	var d Detection
	remaining := title

	if m := buildTokenPattern.FindStringSubmatchIndex(remaining); m != nil {
		d.Build = NormalizeBuild(remaining[m[2]:m[3]])
		d.BuildRule = RuleBuildToken
		remaining = remaining[:m[0]] + remaining[m[1]:]
	}

	if m := dottedVersionPattern.FindStringSubmatch(remaining); m != nil {
		d.Version = NormalizeVersion(m[1])
		d.VersionRule = RuleDottedVersion
	}

	if d.Empty() {
		if m := longNumericPattern.FindStringSubmatch(remaining); m != nil {
			d.Build = NormalizeBuild(m[1])
			d.BuildRule = RuleLongNumeric
		}
	}

	if d.Empty() {
		tokens := numericTokenPattern.FindAllString(remaining, -1)
		if len(tokens) > 0 {
			d.Version = NormalizeVersion(tokens[len(tokens)-1])
			d.VersionRule = RuleLastNumeric
			d.Suggestions = append(d.Suggestions, "low-confidence numeric fallback; verify the detected version")
		}
	}

	if d.Empty() {
		d.Suggestions = append(d.Suggestions, "no version or build token found; manual entry needed")
	}

	return d
}

// NormalizeVersion strips a leading v/V prefix and surrounding whitespace.
// Idempotent: normalizing an already-normalized value is a no-op.
func NormalizeVersion(value string) string {
	value = strings.TrimSpace(value)
	if len(value) > 1 && (value[0] == 'v' || value[0] == 'V') && value[1] >= '0' && value[1] <= '9' {
		value = value[1:]
	}
	return strings.TrimSpace(value)
}

// NormalizeBuild strips whitespace and any non-digit suffix such as a release
// group tag. Idempotent.
func NormalizeBuild(value string) string {
	value = strings.TrimSpace(value)
	if m := numericTokenPattern.FindString(value); m != "" {
		return m
	}
	return ""
}
