package version

import "testing"

func TestDetectRules(t *testing.T) {
	tests := []struct {
		name        string
		title       string
		wantVersion string
		wantBuild   string
		wantVRule   string
		wantBRule   string
	}{
		{
			name:        "build token and dotted version",
			title:       "Cyberpunk 2077 v2.1 Build 15832751-GROUP",
			wantVersion: "2.1",
			wantBuild:   "15832751",
			wantVRule:   RuleDottedVersion,
			wantBRule:   RuleBuildToken,
		},
		{
			name:        "dotted version only",
			title:       "Game Title v1.2.3",
			wantVersion: "1.2.3",
			wantVRule:   RuleDottedVersion,
		},
		{
			name:        "dotted version without prefix",
			title:       "Game Title 10.0.1 Repack",
			wantVersion: "10.0.1",
			wantVRule:   RuleDottedVersion,
		},
		{
			name:      "build token underscore separator",
			title:     "Game Title Build_20106408",
			wantBuild: "20106408",
			wantBRule: RuleBuildToken,
		},
		{
			name:      "long numeric fallback",
			title:     "Game Title 20106408",
			wantBuild: "20106408",
			wantBRule: RuleLongNumeric,
		},
		{
			name:        "last numeric fallback",
			title:       "Episode 4 Update 17",
			wantVersion: "17",
			wantVRule:   RuleLastNumeric,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Detect(tt.title)
			if got.Version != tt.wantVersion {
				t.Errorf("Detect(%q).Version = %q, want %q", tt.title, got.Version, tt.wantVersion)
			}
			if got.Build != tt.wantBuild {
				t.Errorf("Detect(%q).Build = %q, want %q", tt.title, got.Build, tt.wantBuild)
			}
			if got.VersionRule != tt.wantVRule {
				t.Errorf("Detect(%q).VersionRule = %q, want %q", tt.title, got.VersionRule, tt.wantVRule)
			}
			if got.BuildRule != tt.wantBRule {
				t.Errorf("Detect(%q).BuildRule = %q, want %q", tt.title, got.BuildRule, tt.wantBRule)
			}
		})
	}
}

func TestDetectNothingNumeric(t *testing.T) {
	got := Detect("Definitive Edition Remaster")
	if !got.Empty() {
		t.Fatalf("Detect() = %+v, want empty detection", got)
	}
	if len(got.Suggestions) == 0 {
		t.Fatal("expected manual-entry suggestion for title without numerics")
	}
}

func TestNormalizeVersionIdempotent(t *testing.T) {
	inputs := []string{"v1.2.3", "V2.0", " 1.0 ", "1.2.10", "v7", ""}
	for _, input := range inputs {
		once := NormalizeVersion(input)
		twice := NormalizeVersion(once)
		if once != twice {
			t.Errorf("NormalizeVersion not idempotent for %q: %q != %q", input, once, twice)
		}
	}
}

func TestNormalizeBuildIdempotent(t *testing.T) {
	inputs := []string{"15832751-GROUP", " 20106408 ", "12345", ""}
	for _, input := range inputs {
		once := NormalizeBuild(input)
		twice := NormalizeBuild(once)
		if once != twice {
			t.Errorf("NormalizeBuild not idempotent for %q: %q != %q", input, once, twice)
		}
	}
}

func TestStripMarkers(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"Cyberpunk 2077 v2.1 Build 15832751-GROUP", "Cyberpunk 2077"},
		{"Game Title v1.2.3", "Game Title"},
		{"Plain Title", "Plain Title"},
		{"Sequel Game 3 Build 900100", "Sequel Game 3"},
	}
	for _, tt := range tests {
		if got := StripMarkers(tt.title); got != tt.want {
			t.Errorf("StripMarkers(%q) = %q, want %q", tt.title, got, tt.want)
		}
	}
}
