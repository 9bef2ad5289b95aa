package domain

import "strings"

// FrameworkBaseKeys lists the scored components of each framework.
// Component scores range 0-20, so a framework's raw maximum is 20*len(keys).
var FrameworkBaseKeys = map[Framework][]string{
	FrameworkSTAR:         {"situation", "task", "action", "result"},
	FrameworkCompetency:   {"competency", "behavior", "impact"},
	FrameworkCase:         {"problem", "structure", "analysis", "recommendation"},
	FrameworkSystemDesign: {"requirements", "tradeoffs", "architecture", "risks"},
}

// scoredQuestionTypes lists the plan item types whose answers count toward
// the hiring score. Small talk and wrapup are recorded but never scored.
var scoredQuestionTypes = map[QuestionType]bool{
	QuestionSelfIntro:  true,
	QuestionMotivation: true,
	QuestionSTAR:       true,
	QuestionCompetency: true,
	QuestionCase:       true,
	QuestionSystem:     true,
	QuestionHard:       true,
}

// Scored reports whether answers to this question type feed the score
// aggregation. Unknown types are excluded.
func (t QuestionType) Scored() bool { return scoredQuestionTypes[t] }

// ExtensionSignals maps single-letter signal codes from the identifier stage
// onto extension keys. Extension scores range 0-10.
var ExtensionSignals = map[string]Extension{
	"c": ExtChallenge,
	"l": ExtLearning,
	"m": ExtMetrics,
}

// scoreKeyAliases maps model-produced key variants (abbreviations, typos,
// case drift) onto canonical component keys.
var scoreKeyAliases = map[string]string{
	"situation": "situation", "task": "task", "action": "action", "result": "result",
	"competency": "competency", "behavior": "behavior", "impact": "impact",
	"problem": "problem", "structure": "structure", "analysis": "analysis", "recommendation": "recommendation",
	"requirements": "requirements", "tradeoffs": "tradeoffs", "architecture": "architecture", "risks": "risks",
	"challenge": "challenge", "learning": "learning", "metrics": "metrics",

	"s": "situation", "t": "task", "a": "action", "r": "result",
	"c": "competency", "b": "behavior", "i": "impact",
	"p": "problem",

	"trade_offs": "tradeoffs", "trade-offs": "tradeoffs",
	"stucture": "structure",
	"behaviour": "behavior",
}

// frameworkAliases maps model-produced framework names onto canonical ones.
var frameworkAliases = map[string]Framework{
	"star":             FrameworkSTAR,
	"competency":       FrameworkCompetency,
	"competency-based": FrameworkCompetency,
	"base":             FrameworkCompetency,
	"case":             FrameworkCase,
	"mece":             FrameworkCase,
	"case/mece":        FrameworkCase,
	"system":           FrameworkSystemDesign,
	"systemdesign":     FrameworkSystemDesign,
	"system design":    FrameworkSystemDesign,
	"system_design":    FrameworkSystemDesign,
}

// NormalizeScoreKey maps a raw score key to its canonical form.
// Unknown keys are reported as not ok and must be dropped by callers.
func NormalizeScoreKey(key string) (string, bool) {
	k, ok := scoreKeyAliases[strings.ToLower(strings.TrimSpace(key))]
	return k, ok
}

// NormalizeFramework maps a raw framework name to its canonical enum value.
func NormalizeFramework(name string) (Framework, bool) {
	f, ok := frameworkAliases[strings.ToLower(strings.TrimSpace(name))]
	return f, ok
}

// ClampMainScore bounds a framework component score to [0, 20].
func ClampMainScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 20 {
		return 20
	}
	return v
}

// ClampExtScore bounds an extension score to [0, 10].
func ClampExtScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 10 {
		return 10
	}
	return v
}

// FrameworkMax returns the raw maximum score for a framework.
func FrameworkMax(f Framework) int {
	return 20 * len(FrameworkBaseKeys[f])
}
