package textparse

import "testing"

// TestCleanText tests text normalization of scraped strings.
func TestCleanText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "plain ASCII is only trimmed", raw: "  Pakistan and China sign deal \n", want: "Pakistan and China sign deal"},
		{name: "non-ASCII characters are removed", raw: "Café — news", want: "Caf  news"},
		{name: "escaped hex bytes are removed", raw: `Deal\xe2\x80\x99s value`, want: "Deals value"},
		{name: "ellipsis is removed", raw: "Oct 3, 2024 ... The corridor...", want: "Oct 3, 2024  The corridor"},
		{name: "empty string", raw: "", want: ""},
		{name: "invalid UTF-8 is dropped", raw: "ok\xffok", want: "okok"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := CleanText(tt.raw); got != tt.want {
				t.Errorf("CleanText(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

// TestCleanTextASCIIIdentity checks that clean ASCII input is only trimmed.
func TestCleanTextASCIIIdentity(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"hello",
		"  padded  ",
		"\tnumbers 123 and $5\n",
		"punctuation: a.b, c; d!",
	}

	for _, in := range inputs {
		want := trimSpace(in)
		if got := CleanText(in); got != want {
			t.Errorf("CleanText(%q) = %q, want %q", in, got, want)
		}
	}
}

func trimSpace(s string) string {
	start, end := 0, len(s)
	for start < end && (s[start] == ' ' || s[start] == '\t' || s[start] == '\n') {
		start++
	}
	for end > start && (s[end-1] == ' ' || s[end-1] == '\t' || s[end-1] == '\n') {
		end--
	}
	return s[start:end]
}

// TestCountOccurrences tests query match counting.
func TestCountOccurrences(t *testing.T) {
	t.Parallel()

	if got := CountOccurrences("china china CHINA", "china"); got != 2 {
		t.Errorf("expected 2, got %d", got)
	}
	if got := CountOccurrences("anything", ""); got != 0 {
		t.Errorf("expected 0 for empty query, got %d", got)
	}
}
