// Package report turns a finished session's transcript into the final
// report: deterministic score aggregation, the hiring decision, theme
// matrices with evidence references, and per-question feedback cards.
package report

import (
	"sort"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
)

// Aggregate normalizes per-turn scores onto a 0-100 scale and averages them
// per framework and per extension. Turns of non-scored question types
// (icebreaking, wrapup, unknown) and turns without an ANSWER dossier or
// without scores contribute nothing. Iteration is over sorted keys so
// repeated runs on the same transcript produce identical output.
func Aggregate(turns []domain.Turn) domain.ScoreAggregation {
	mainSums := map[domain.Framework]float64{}
	mainCounts := map[domain.Framework]int{}
	extSums := map[domain.Extension]float64{}
	extCounts := map[domain.Extension]int{}

	for _, t := range turns {
		d := t.Dossier
		if d == nil || d.Intent != domain.IntentAnswer || !t.QuestionType.Scored() {
			continue
		}
		if len(d.ScoresMain) > 0 && d.Framework != "" {
			if max := domain.FrameworkMax(d.Framework); max > 0 {
				sum := 0
				for _, key := range sortedKeys(d.ScoresMain) {
					sum += domain.ClampMainScore(d.ScoresMain[key])
				}
				mainSums[d.Framework] += float64(sum) / float64(max) * 100
				mainCounts[d.Framework]++
			}
		}
		for _, ext := range sortedExtKeys(d.ScoresExt) {
			extSums[ext] += float64(domain.ClampExtScore(d.ScoresExt[ext])) * 10
			extCounts[ext]++
		}
	}

	agg := domain.ScoreAggregation{
		MainAvg: make(map[domain.Framework]float64, len(mainSums)),
		ExtAvg:  make(map[domain.Extension]float64, len(extSums)),
	}
	for fw, sum := range mainSums {
		agg.MainAvg[fw] = round2(sum / float64(mainCounts[fw]))
	}
	for ext, sum := range extSums {
		agg.ExtAvg[ext] = round2(sum / float64(extCounts[ext]))
	}
	return agg
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedExtKeys(m map[domain.Extension]int) []domain.Extension {
	keys := make([]domain.Extension, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}
