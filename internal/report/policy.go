package report

import (
	"sort"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
)

// HiringPolicy holds the weights, gates, and tier thresholds behind the
// hiring recommendation. All values are configurable; DefaultPolicy mirrors
// the shipped defaults.
type HiringPolicy struct {
	MainWeight float64
	ExtWeight  float64

	StrongThreshold float64
	HireThreshold   float64
	LeanThreshold   float64

	// MetricsGate caps the decision at lean_hire when the metrics extension
	// average (0-100) falls below it. Only applied when metrics were scored.
	MetricsGate float64
	// StarGate caps the decision at lean_hire when STAR answers average
	// below it. Only applied when STAR was used.
	StarGate float64
}

// DefaultPolicy is the shipped hiring policy.
var DefaultPolicy = HiringPolicy{
	MainWeight:      0.7,
	ExtWeight:       0.3,
	StrongThreshold: 80,
	HireThreshold:   70,
	LeanThreshold:   60,
	MetricsGate:     20,
	StarGate:        60,
}

// Decide computes the weighted score and maps it to a recommendation tier.
// It is a pure function of the aggregation and the policy.
func (p HiringPolicy) Decide(agg domain.ScoreAggregation) (float64, domain.HiringDecision) {
	mainMean, hasMain := meanMain(agg.MainAvg)
	extMean, hasExt := meanExt(agg.ExtAvg)

	var weighted float64
	switch {
	case hasMain && hasExt:
		weighted = p.MainWeight*mainMean + p.ExtWeight*extMean
	case hasMain:
		weighted = mainMean
	case hasExt:
		weighted = extMean
	}
	weighted = round2(weighted)

	decision := p.tier(weighted)
	if p.gated(agg) && (decision == domain.DecisionStrongHire || decision == domain.DecisionHire) {
		decision = domain.DecisionLeanHire
	}
	return weighted, decision
}

func (p HiringPolicy) tier(weighted float64) domain.HiringDecision {
	switch {
	case weighted >= p.StrongThreshold:
		return domain.DecisionStrongHire
	case weighted >= p.HireThreshold:
		return domain.DecisionHire
	case weighted >= p.LeanThreshold:
		return domain.DecisionLeanHire
	default:
		return domain.DecisionNoHire
	}
}

// gated reports whether an evidence gate failed.
func (p HiringPolicy) gated(agg domain.ScoreAggregation) bool {
	if avg, ok := agg.ExtAvg[domain.ExtMetrics]; ok && avg < p.MetricsGate {
		return true
	}
	if avg, ok := agg.MainAvg[domain.FrameworkSTAR]; ok && avg < p.StarGate {
		return true
	}
	return false
}

func meanMain(m map[domain.Framework]float64) (float64, bool) {
	if len(m) == 0 {
		return 0, false
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	sum := 0.0
	for _, k := range keys {
		sum += m[domain.Framework(k)]
	}
	return sum / float64(len(m)), true
}

func meanExt(m map[domain.Extension]float64) (float64, bool) {
	if len(m) == 0 {
		return 0, false
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	sum := 0.0
	for _, k := range keys {
		sum += m[domain.Extension(k)]
	}
	return sum / float64(len(m)), true
}
