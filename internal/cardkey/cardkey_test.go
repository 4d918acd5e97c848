package cardkey

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNormalize(t *testing.T) {
	testCases := []struct {
		input    string
		expected string
	}{
		{input: "  What is HTMX? \r\n", expected: "what is htmx?"},
		{input: "line one\r\nline two", expected: "line one\nline two"},
		{input: "Straße", expected: "strasse"},
		{input: "é", expected: "é"},
		{input: "七", expected: "七"},
	}

	for _, tc := range testCases {
		if got := Normalize(tc.input); got != tc.expected {
			t.Errorf("Normalize(%q): expected '%s', but got '%s'", tc.input, tc.expected, got)
		}
	}
}

func TestHash(t *testing.T) {
	t.Run("hash is deterministic", func(t *testing.T) {
		if Hash("Test", "answer") != Hash("Test", "answer") {
			t.Error("Expected hashes for identical cards to be the same")
		}
	})

	t.Run("normalization produces same hash", func(t *testing.T) {
		if Hash("  what is go? ", "A programming language.") != Hash("What Is Go?", "a programming language.") {
			t.Error("Expected hashes to be the same after normalization, but they were different.")
		}
	})

	t.Run("field boundary matters", func(t *testing.T) {
		if Hash("ab", "c") == Hash("a", "bc") {
			t.Error("Expected hashes to differ when text moves between question and answer")
		}
	})

	t.Run("hex digest", func(t *testing.T) {
		if got := len(Hash("q", "a")); got != 64 {
			t.Errorf("Expected a 64 character digest, but got %d", got)
		}
	})
}

func TestAnswerParts(t *testing.T) {
	testCases := []struct {
		input    string
		expected []string
	}{
		{input: "to be; to exist or be there", expected: []string{"to be", "to exist", "be there"}},
		{input: "Seven", expected: []string{"seven"}},
		{input: "door;;  ", expected: []string{"door"}},
		{input: "", expected: nil},
		{input: "origin", expected: []string{"origin"}},
	}

	for _, tc := range testCases {
		if diff := cmp.Diff(tc.expected, AnswerParts(tc.input)); diff != "" {
			t.Errorf("AnswerParts(%q) mismatch (-want +got):\n%s", tc.input, diff)
		}
	}
}
