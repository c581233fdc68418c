package version

import "testing"

func TestDisplayTitle(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{"plain title", "Shadow Realm 3", "Shadow Realm 3"},
		{"strips version marker", "Shadow Realm 3 v1.0.2", "Shadow Realm 3"},
		{"collapses separators", "shadow_realm-3", "Shadow Realm 3"},
		{"uppercase input", "SHADOW REALM", "Shadow Realm"},
		{"build token with group tag", "Neon Drift Build 15832751-GROUP", "Neon Drift"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DisplayTitle(tc.raw); got != tc.want {
				t.Fatalf("DisplayTitle(%q) = %q, want %q", tc.raw, got, tc.want)
			}
		})
	}
}
