// Package jsonx recovers structured data from malformed LLM JSON output.
package jsonx

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// ErrUnrepairable is returned when no repair step yields a parseable object.
var ErrUnrepairable = fmt.Errorf("jsonx: unrepairable input")

var (
	fenceRe         = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")
	trailingCommaRe = regexp.MustCompile(`,(\s*[}\]])`)
	unquotedKeyRe   = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_]*)\s*:`)
	missingCommaRe  = regexp.MustCompile(`("\s*)\n(\s*")`)
)

// smart quote variants emitted by chat models
var quoteReplacer = strings.NewReplacer(
	"“", `"`, "”", `"`,
	"‘", "'", "’", "'",
)

// Repair extracts a JSON object from raw model output. It tries, in order:
// a direct parse, the contents of a fenced code block, the largest balanced
// brace span, and a normalization pass (smart quotes, trailing commas,
// unquoted keys, Python literals, missing commas between lines). As a last
// resort it hands the candidate to the jsonrepair library. Valid input
// round-trips unchanged, so the function is idempotent.
func Repair(text string) (map[string]any, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: empty input", ErrUnrepairable)
	}

	if m, ok := tryParse(text); ok {
		return m, nil
	}

	candidates := []string{text}
	if fenced := extractFenced(text); fenced != "" {
		candidates = append(candidates, fenced)
	}

	for _, c := range candidates {
		span := largestBraceSpan(c)
		if span == "" {
			continue
		}
		if m, ok := tryParse(span); ok {
			return m, nil
		}
		normalized := normalize(span)
		if m, ok := tryParse(normalized); ok {
			return m, nil
		}
		if fixed, err := jsonrepair.JSONRepair(normalized); err == nil {
			if m, ok := tryParse(fixed); ok {
				return m, nil
			}
		}
	}
	return nil, ErrUnrepairable
}

// RepairInto repairs text and unmarshals the result into out.
func RepairInto(text string, out any) error {
	m, err := Repair(text)
	if err != nil {
		return err
	}
	b, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("jsonx: remarshal: %w", err)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("jsonx: decode into target: %w", err)
	}
	return nil
}

func tryParse(s string) (map[string]any, bool) {
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, false
	}
	return m, true
}

func extractFenced(s string) string {
	match := fenceRe.FindStringSubmatch(s)
	if len(match) == 2 {
		return strings.TrimSpace(match[1])
	}
	return ""
}

// largestBraceSpan returns the widest balanced {...} span, ignoring braces
// inside string literals.
func largestBraceSpan(s string) string {
	start := -1
	depth := 0
	inString := false
	escaped := false
	best := ""
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 && start >= 0 {
					if span := s[start : i+1]; len(span) > len(best) {
						best = span
					}
				}
			}
		}
	}
	return best
}

func normalize(s string) string {
	s = quoteReplacer.Replace(s)
	s = trailingCommaRe.ReplaceAllString(s, "$1")
	s = unquotedKeyRe.ReplaceAllString(s, `$1"$2":`)
	s = missingCommaRe.ReplaceAllString(s, "$1,\n$2")
	s = replacePythonLiterals(s)
	return s
}

// replacePythonLiterals rewrites True/False/None outside string literals.
func replacePythonLiterals(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if inString {
			b.WriteByte(ch)
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		if ch == '"' {
			inString = true
			b.WriteByte(ch)
			continue
		}
		switch {
		case hasWordAt(s, i, "True"):
			b.WriteString("true")
			i += 3
		case hasWordAt(s, i, "False"):
			b.WriteString("false")
			i += 4
		case hasWordAt(s, i, "None"):
			b.WriteString("null")
			i += 3
		default:
			b.WriteByte(ch)
		}
	}
	return b.String()
}

func hasWordAt(s string, i int, word string) bool {
	if !strings.HasPrefix(s[i:], word) {
		return false
	}
	if i > 0 && isWordChar(s[i-1]) {
		return false
	}
	end := i + len(word)
	if end < len(s) && isWordChar(s[end]) {
		return false
	}
	return true
}

func isWordChar(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
