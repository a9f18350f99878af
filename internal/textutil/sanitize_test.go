package textutil

import "testing"

func TestSlug(t *testing.T) {
	cases := map[string]string{
		"Fix WAV miscount":             "fix-wav-miscount",
		"  Résumé -- Sync (v2)  ":      "resume-sync-v2",
		"DriveSheetsSync/Code.js":      "drivesheetssync-code-js",
		"___":                          "untitled",
		"":                             "untitled",
		"Agent Handoff: Cursor → MM1!": "agent-handoff-cursor-mm1",
	}
	for input, want := range cases {
		if got := Slug(input); got != want {
			t.Errorf("Slug(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestSanitizeFileName(t *testing.T) {
	if got := SanitizeFileName(` a/b:c*d?"<>| `); got != "a-b-c-d" {
		t.Fatalf("unexpected sanitized name %q", got)
	}
	if got := SanitizeFileName("   "); got != "" {
		t.Fatalf("expected empty result, got %q", got)
	}
}
