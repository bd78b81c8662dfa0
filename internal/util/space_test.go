package util

import (
	"strings"
	"testing"
)

func TestPadRight(t *testing.T) {
	tests := []struct {
		name     string
		str      string
		width    int
		expected string
	}{
		{"empty string", "", 5, "     "},
		{"short string", "IMG_0001.jpg", 16, "IMG_0001.jpg    "},
		{"exact width", "hello", 5, "hello"},
		{"too long", "a very long file name.heic", 10, "a very ..."},
		{"width below ellipsis", "hello", 2, "..."},
		{"width just above ellipsis", "hello", 4, "h..."},
		// Wide characters occupy two cells each.
		{"wide characters", "你好", 8, "你好    "},
		{"mixed width", "hello世界", 12, "hello世界   "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PadRight(tt.str, tt.width); got != tt.expected {
				t.Errorf("PadRight(%q, %d) = %q, want %q", tt.str, tt.width, got, tt.expected)
			}
		})
	}
}

func TestPadRightTruncatesOnlyWhenTooWide(t *testing.T) {
	if got := PadRight("short", 10); strings.HasSuffix(got, "...") {
		t.Errorf("unexpected truncation: %q", got)
	}
	if got := PadRight(strings.Repeat("a", 100), 10); !strings.HasSuffix(got, "...") {
		t.Errorf("expected truncation, got %q", got)
	}
}
