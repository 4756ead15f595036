package updater

import "testing"

func TestNeedsUpdate(t *testing.T) {
	tests := []struct {
		current string
		latest  string
		want    bool
	}{
		{"v1.0.0", "v1.0.1", true},
		{"1.0.0", "1.0.1", true},
		{"v1.0.1", "v1.0.0", false},
		{"v1.0.0", "v1.0.0", false},
		{"v1.2.3", "v2.0.0", true},
		{"v2.0.0", "v1.9.9", false},
		{"v1.1.0", "v1.2.0", true},
		{"dev", "v0.1.0", true},
		{"dev", "dev", false},
	}

	for _, tt := range tests {
		if got := NeedsUpdate(tt.current, tt.latest); got != tt.want {
			t.Errorf("NeedsUpdate(%q, %q) = %v, want %v", tt.current, tt.latest, got, tt.want)
		}
	}
}

func TestParseVersion(t *testing.T) {
	if got := parseVersion("1.2.3"); got != [3]int{1, 2, 3} {
		t.Errorf("parseVersion(1.2.3) = %v", got)
	}
	if got := parseVersion("bogus"); got != [3]int{0, 0, 0} {
		t.Errorf("parseVersion(bogus) = %v", got)
	}
}
