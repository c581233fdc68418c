package version

// Rule names reported in Detection for observability and fixtures.
const (
	RuleBuildToken    = "build_token"
	RuleDottedVersion = "dotted_version"
	RuleLongNumeric   = "long_numeric"
	RuleLastNumeric   = "last_numeric"
)

// Detection is the result of scanning a title for version/build markers.
type Detection struct {
	Version     string
	VersionRule string
	Build       string
	BuildRule   string
	Suggestions []string
}

// HasVersion reports whether a version token was detected.
func (d Detection) HasVersion() bool { return d.Version != "" }

// HasBuild reports whether a build token was detected.
func (d Detection) HasBuild() bool { return d.Build != "" }

// Empty reports whether nothing numeric was found in the title.
func (d Detection) Empty() bool { return d.Version == "" && d.Build == "" }

// Significance classifies how large a detected version delta is.
type Significance string

const (
	SignificanceMajor Significance = "major"
	SignificanceMinor Significance = "minor"
	SignificancePatch Significance = "patch"
)

// Verdict describes whether a remote signal indicates the tracked state is
// outdated. Advisory verdicts are based on freshness alone and carry no
// verified version or build evidence.
type Verdict struct {
	Outdated bool
	Advisory bool
	Reason   string
}
