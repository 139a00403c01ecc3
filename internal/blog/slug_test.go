package blog

import (
	"strings"
	"testing"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		name  string
		title string
		want  string
	}{
		{"simple", "Hello World", "hello-world"},
		{"punctuation", "Go 1.25: What's New?", "go-1-25-what-s-new"},
		{"diacritics", "Café Crème à Paris", "cafe-creme-a-paris"},
		{"leading and trailing noise", "  --Hello--  ", "hello"},
		{"collapsed dashes", "a   -   b", "a-b"},
		{"empty", "", "untitled"},
		{"only symbols", "!!!", "untitled"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Slugify(tt.title); got != tt.want {
				t.Errorf("Slugify(%q) = %q, want %q", tt.title, got, tt.want)
			}
		})
	}
}

func TestSlugifyTruncates(t *testing.T) {
	long := strings.Repeat("word ", 50)
	got := Slugify(long)
	if len(got) > maxSlugLen {
		t.Errorf("slug length = %d, want <= %d", len(got), maxSlugLen)
	}
	if strings.HasSuffix(got, "-") || strings.HasPrefix(got, "-") {
		t.Errorf("slug %q has dangling dash", got)
	}
}
