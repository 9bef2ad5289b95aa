// Package textx contains tests for the text utilities.
package textx

import "testing"

func TestSanitizeText(t *testing.T) {
	in := "he\x00llo\nwo\x7frld\t!"
	got := SanitizeText(in)
	if got != "hello\nworld\t!" {
		t.Fatalf("unexpected: %q", got)
	}
}

func TestEnsureQuestionMark(t *testing.T) {
	cases := map[string]string{
		"Tell me more":           "Tell me more?",
		"Tell me more.":          "Tell me more?",
		"What did you do there?": "What did you do there?",
		"":                       "",
	}
	for in, want := range cases {
		if got := EnsureQuestionMark(in); got != want {
			t.Fatalf("EnsureQuestionMark(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTokenJaccard(t *testing.T) {
	if got := TokenJaccard("what was the main challenge", "what was the main challenge"); got != 1.0 {
		t.Fatalf("identical strings: %v", got)
	}
	if got := TokenJaccard("completely different words", "nothing shared here"); got != 0 {
		t.Fatalf("disjoint strings: %v", got)
	}
	mid := TokenJaccard("describe the main challenge you faced", "what challenge did you faced there")
	if mid <= 0 || mid >= 1 {
		t.Fatalf("partial overlap out of range: %v", mid)
	}
	if got := TokenJaccard("", "anything"); got != 0 {
		t.Fatalf("empty input: %v", got)
	}
}

func TestTruncateRunes(t *testing.T) {
	if got := TruncateRunes("short", 10); got != "short" {
		t.Fatalf("no-op truncate: %q", got)
	}
	if got := TruncateRunes("abcdefgh", 4); got != "abcd..." {
		t.Fatalf("truncate: %q", got)
	}
	if got := TruncateRunes("abc", 0); got != "" {
		t.Fatalf("zero width: %q", got)
	}
}
