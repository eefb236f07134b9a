package util

import (
	"strings"
	"testing"
)

func TestWrapString(t *testing.T) {
	text := strings.Repeat("word ", 40)
	for _, line := range strings.Split(WrapString(text), "\n") {
		if len(line) > Wrap {
			t.Errorf("Line exceeds %d characters: %q", Wrap, line)
		}
	}

	if got := WrapString("short text"); got != "short text" {
		t.Errorf("Expected short text unchanged, got %q", got)
	}
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"a,b", []string{"a", "b"}},
		{" a , ,b,", []string{"a", "b"}},
		{"", nil},
	}

	for _, tt := range tests {
		got := SplitList(tt.input)
		if strings.Join(got, "|") != strings.Join(tt.want, "|") || len(got) != len(tt.want) {
			t.Errorf("SplitList(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
