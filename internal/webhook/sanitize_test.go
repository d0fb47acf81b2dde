package webhook

import (
	"reflect"
	"testing"
)

func TestSanitizeCandidate(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"trims whitespace", "  https://example.com/hook  ", "https://example.com/hook"},
		{"trims quotes", `"https://example.com/hook"`, "https://example.com/hook"},
		{"trims trailing angle bracket", "https://example.com/hook>", "https://example.com/hook"},
		{"decodes escaped slashes", `https:\/\/example.com\/hook`, "https://example.com/hook"},
		{"decodes entities", "https://example.com/hook?a=1&amp;b=2", "https://example.com/hook?a=1&b=2"},
		{"keeps rooted path", "/webhook/in", "/webhook/in"},
		{"rejects schema decoy", "http://www.isapi.org/ver20/XMLSchema", ""},
		{"rejects bare hostname", "example.com/hook", ""},
		{"rejects empty", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeCandidate(tt.input); got != tt.want {
				t.Errorf("SanitizeCandidate(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestCleanCandidatesSortsAndDedupes(t *testing.T) {
	got := cleanCandidates([]string{
		"https://b.test/hook",
		"  https://a.test/hook ",
		"https://b.test/hook",
		"not a url",
	})
	want := []string{"https://a.test/hook", "https://b.test/hook"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("cleanCandidates() = %v, want %v", got, want)
	}
}

func TestPickPrimary(t *testing.T) {
	tests := []struct {
		name      string
		urls      []string
		direction string
		want      string
	}{
		{
			name:      "prefers direction suffix",
			urls:      []string{"https://x.test/other", "https://x.test/webhook/in"},
			direction: "in",
			want:      "https://x.test/webhook/in",
		},
		{
			name:      "direction match with query",
			urls:      []string{"https://x.test/webhook/out?device=1", "https://x.test/misc"},
			direction: "out",
			want:      "https://x.test/webhook/out?device=1",
		},
		{
			name:      "secret parameter qualifies",
			urls:      []string{"https://x.test/cb?secret=abc"},
			direction: "in",
			want:      "https://x.test/cb?secret=abc",
		},
		{
			name:      "falls back to first valid",
			urls:      []string{"/isapi/thing", "https://x.test/anything"},
			direction: "in",
			want:      "https://x.test/anything",
		},
		{
			name:      "nothing valid",
			urls:      []string{"/isapi/thing"},
			direction: "in",
			want:      "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PickPrimary(tt.urls, tt.direction); got != tt.want {
				t.Errorf("PickPrimary() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNormalizeDirection(t *testing.T) {
	if dir, err := NormalizeDirection(" IN "); err != nil || dir != "in" {
		t.Errorf("NormalizeDirection(IN) = %q, %v", dir, err)
	}
	if _, err := NormalizeDirection("sideways"); err == nil {
		t.Error("NormalizeDirection(sideways) accepted")
	}
}
