package version

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DisplayTitle normalizes a raw listing title into a presentable release
// name: version and build markers stripped, separator runs collapsed, and
// words title-cased.
func DisplayTitle(raw string) string {
	stripped := StripMarkers(raw)
	cleaned := strings.Builder{}
	prevSpace := false
	for _, r := range stripped {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			cleaned.WriteRune(r)
			prevSpace = false
		case unicode.IsSpace(r) || r == '-' || r == '_' || r == '.':
			if !prevSpace {
				cleaned.WriteRune(' ')
				prevSpace = true
			}
		}
	}
	title := strings.TrimSpace(cleaned.String())
	if title == "" {
		return stripped
	}
	return cases.Title(language.Und).String(title)
}
