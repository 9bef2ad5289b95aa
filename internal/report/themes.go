package report

import (
	"regexp"
	"sort"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
)

// ThemeClassifier groups per-turn strengths and improvements into recurring
// themes, each backed by the labels of the turns where it appeared.
type ThemeClassifier interface {
	Classify(turns []domain.Turn) (strengths, weaknesses []domain.ThemeEvidence)
}

// KeywordClassifier is the default ThemeClassifier: a fixed set of themes
// recognized by keyword patterns over the coach output.
type KeywordClassifier struct{}

type themeRule struct {
	theme string
	re    *regexp.Regexp
}

// The alternatives are stems matched as prefixes so inflected forms
// ("metrics", "quantified", "stakeholders") land in the right theme.
var themeRules = []themeRule{
	{"quantified impact", regexp.MustCompile(`(?i)\b(metric|number|quantif|percent|measur|kpi|impact)`)},
	{"structured communication", regexp.MustCompile(`(?i)\b(structur|organiz|clear|concise|star method|framework)`)},
	{"ownership", regexp.MustCompile(`(?i)\b(ownership|initiative|accountab|proactiv|drove|led)`)},
	{"technical depth", regexp.MustCompile(`(?i)\b(technical|architect|design|trade[- ]?off|scalab|debug)`)},
	{"collaboration", regexp.MustCompile(`(?i)\b(collaborat|team|stakeholder|communicat|conflict|align)`)},
	{"learning from failure", regexp.MustCompile(`(?i)\b(learn|retrospect|postmortem|mistake|failure|improv)`)},
}

const otherTheme = "other observations"

// Classify buckets each strength/improvement bullet into the first matching
// theme. Output is sorted by theme name, evidence by turn label order.
func (KeywordClassifier) Classify(turns []domain.Turn) ([]domain.ThemeEvidence, []domain.ThemeEvidence) {
	strengths := map[string][]string{}
	weaknesses := map[string][]string{}

	for _, t := range turns {
		if t.Dossier == nil {
			continue
		}
		for _, s := range t.Dossier.Strengths {
			addEvidence(strengths, classifyLine(s), t.Label)
		}
		for _, s := range t.Dossier.Improvements {
			addEvidence(weaknesses, classifyLine(s), t.Label)
		}
	}
	return toMatrix(strengths), toMatrix(weaknesses)
}

func classifyLine(line string) string {
	for _, rule := range themeRules {
		if rule.re.MatchString(line) {
			return rule.theme
		}
	}
	return otherTheme
}

func addEvidence(m map[string][]string, theme, label string) {
	for _, existing := range m[theme] {
		if existing == label {
			return
		}
	}
	m[theme] = append(m[theme], label)
}

func toMatrix(m map[string][]string) []domain.ThemeEvidence {
	themes := make([]string, 0, len(m))
	for theme := range m {
		themes = append(themes, theme)
	}
	sort.Strings(themes)
	out := make([]domain.ThemeEvidence, 0, len(themes))
	for _, theme := range themes {
		out = append(out, domain.ThemeEvidence{
			Theme:    theme,
			Severity: severityFor(len(m[theme])),
			Evidence: m[theme],
		})
	}
	return out
}

// severityFor grades a theme by how often it recurred.
func severityFor(occurrences int) string {
	switch {
	case occurrences >= 3:
		return "high"
	case occurrences == 2:
		return "medium"
	default:
		return "low"
	}
}
