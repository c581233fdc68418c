package version

import (
	"regexp"
	"strings"
)

var (
	groupSuffixPattern = regexp.MustCompile(`-[A-Za-z0-9]+\s*$`)
	whitespacePattern  = regexp.MustCompile(`\s+`)
)

// StripMarkers removes explicit version and build markers from a title,
// leaving the underlying name (including any sequel number) intact. Numeric
// fallback rules are deliberately not applied here: "Cyberpunk 2077" keeps
// its 2077.
func StripMarkers(title string) string {
	stripped := title
	if m := buildTokenPattern.FindStringIndex(stripped); m != nil {
		// Drop a trailing release-group tag glued to the build number.
		end := m[1]
		if tail := groupSuffixPattern.FindStringIndex(stripped[end:]); tail != nil && tail[0] == 0 {
			end += tail[1]
		}
		stripped = stripped[:m[0]] + stripped[end:]
	}
	stripped = dottedVersionPattern.ReplaceAllString(stripped, " ")
	stripped = whitespacePattern.ReplaceAllString(stripped, " ")
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(stripped), "-_."))
}
