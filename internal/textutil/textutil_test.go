package textutil

import "testing"

func TestPrefix(t *testing.T) {
	tests := []struct {
		s    string
		max  int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello", 5, "hello"},
		{"hello", 3, "hel"},
		{"héllo", 2, "hé"},
		{"日本語テキスト", 3, "日本語"},
		{"abc", 0, ""},
	}
	for _, tt := range tests {
		if got := Prefix(tt.s, tt.max); got != tt.want {
			t.Errorf("Prefix(%q, %d) = %q, want %q", tt.s, tt.max, got, tt.want)
		}
	}
}

func TestCollapseSpace(t *testing.T) {
	if got := CollapseSpace("  a \n\t b  c "); got != "a b c" {
		t.Errorf("got %q", got)
	}
}

func TestFormatDurationShort(t *testing.T) {
	tests := []struct {
		ms   int64
		want string
	}{
		{0, "0.0s"},
		{500, "0.5s"},
		{1200, "1.2s"},
		{65000, "1m5s"},
		{3700000, "1h1m"},
	}

	for _, tt := range tests {
		got := FormatDurationShort(tt.ms)
		if got != tt.want {
			t.Errorf("FormatDurationShort(%d) = %q, want %q", tt.ms, got, tt.want)
		}
	}
}

func TestTruncateMiddle(t *testing.T) {
	tests := []struct {
		s      string
		maxLen int
		want   string
	}{
		{"short", 10, "short"},           // under limit
		{"exact", 5, "exact"},            // exactly at limit
		{"abcdefghij", 7, "ab...ij"},     // over limit
		{"hello world!", 9, "hel...ld!"}, // asymmetric
		{"abcd", 3, "abc"},               // maxLen <= 3 edge case
	}

	for _, tt := range tests {
		got := TruncateMiddle(tt.s, tt.maxLen)
		if got != tt.want {
			t.Errorf("TruncateMiddle(%q, %d) = %q, want %q", tt.s, tt.maxLen, got, tt.want)
		}
	}
}
