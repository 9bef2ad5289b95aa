// Package flow advances the interview cursor through the plan: main
// questions, buffered follow-ups, recovery moves for non-answers, and the
// finished state. All transitions are pure functions over FlowState; the
// usecase layer serializes writers per session.
package flow

import (
	"fmt"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
)

// DefaultMaxFollowups bounds the pending follow-up queue per main question.
const DefaultMaxFollowups = 3

// Next describes what the interviewer says next.
type Next struct {
	Label    string
	Question string
	Item     domain.PlanItem
	Followup bool
	Done     bool
}

// Controller owns the transition rules.
type Controller struct {
	maxFollowups int
}

// NewController constructs a Controller. maxFollowups <= 0 selects the default.
func NewController(maxFollowups int) *Controller {
	if maxFollowups <= 0 {
		maxFollowups = DefaultMaxFollowups
	}
	return &Controller{maxFollowups: maxFollowups}
}

// MaxFollowups returns the per-question follow-up capacity.
func (c *Controller) MaxFollowups() int { return c.maxFollowups }

// mainOrdinal returns the 1-based global number of the current main question.
func mainOrdinal(plan domain.Plan, st domain.FlowState) int {
	n := 0
	for i := 0; i < st.PhaseIdx && i < len(plan.Phases); i++ {
		n += len(plan.Phases[i].Items)
	}
	return n + st.QuestionIdx + 1
}

// MainLabel renders the label of the current main question ("3").
func MainLabel(plan domain.Plan, st domain.FlowState) string {
	return fmt.Sprintf("%d", mainOrdinal(plan, st))
}

// CurrentLabel renders the label of the question the candidate is answering
// now: "3" for a main question, "3-2" for its second follow-up.
func CurrentLabel(plan domain.Plan, st domain.FlowState) string {
	if st.FollowupIdx > 0 {
		return fmt.Sprintf("%d-%d", mainOrdinal(plan, st), st.FollowupIdx)
	}
	return MainLabel(plan, st)
}

// Current returns the main question at the cursor without advancing.
func (c *Controller) Current(plan domain.Plan, st domain.FlowState) (Next, error) {
	if st.Done {
		return Next{Done: true}, nil
	}
	item, ok := plan.ItemAt(st.PhaseIdx, st.QuestionIdx)
	if !ok {
		return Next{}, fmt.Errorf("op=flow.current: cursor (%d,%d) outside plan: %w",
			st.PhaseIdx, st.QuestionIdx, domain.ErrInternal)
	}
	return Next{Label: MainLabel(plan, st), Question: item.Question, Item: item}, nil
}

// QueueFollowups buffers follow-ups for the current main question, respecting
// the per-question capacity. It returns how many were accepted.
func (c *Controller) QueueFollowups(st *domain.FlowState, qs []string) int {
	room := c.maxFollowups - st.FollowupIdx - len(st.PendingFollowups)
	if room <= 0 {
		return 0
	}
	if len(qs) > room {
		qs = qs[:room]
	}
	st.PendingFollowups = append(st.PendingFollowups, qs...)
	return len(qs)
}

// Advance pops the next pending follow-up or moves the cursor to the next
// main question. Phase and plan boundaries are checked explicitly; running
// past the last phase yields the done state.
func (c *Controller) Advance(plan domain.Plan, st domain.FlowState) (Next, domain.FlowState) {
	if st.Done {
		return Next{Done: true}, st
	}

	if len(st.PendingFollowups) > 0 {
		q := st.PendingFollowups[0]
		st.PendingFollowups = append([]string(nil), st.PendingFollowups[1:]...)
		st.FollowupIdx++
		st.CurrentFollowup = q
		item, _ := plan.ItemAt(st.PhaseIdx, st.QuestionIdx)
		return Next{
			Label:    fmt.Sprintf("%d-%d", mainOrdinal(plan, st), st.FollowupIdx),
			Question: q,
			Item:     item,
			Followup: true,
		}, st
	}

	st.FollowupIdx = 0
	st.PendingFollowups = nil
	st.CurrentFollowup = ""
	st.QuestionIdx++
	for st.PhaseIdx < len(plan.Phases) && st.QuestionIdx >= len(plan.Phases[st.PhaseIdx].Items) {
		st.PhaseIdx++
		st.QuestionIdx = 0
	}
	if st.PhaseIdx >= len(plan.Phases) {
		st.Done = true
		return Next{Done: true}, st
	}

	item, ok := plan.ItemAt(st.PhaseIdx, st.QuestionIdx)
	if !ok {
		st.Done = true
		return Next{Done: true}, st
	}
	return Next{Label: MainLabel(plan, st), Question: item.Question, Item: item}, st
}

// Recovery is the scripted move for a non-ANSWER intent.
type Recovery struct {
	Prompt string
	// AdvanceCursor is set when the interview should move past the question
	// (the candidate declined); otherwise the same question stays current.
	AdvanceCursor bool
}

// RecoveryFor returns the scripted recovery for a classified non-answer.
func RecoveryFor(intent domain.Intent, question string) (Recovery, bool) {
	switch intent {
	case domain.IntentIrrelevant:
		return Recovery{Prompt: "Let's come back to the question: " + question}, true
	case domain.IntentQuestion:
		return Recovery{Prompt: "Good question. We will save time for your questions at the end. For now: " + question}, true
	case domain.IntentClarificationRequest:
		return Recovery{Prompt: "Let me put it another way: " + question}, true
	case domain.IntentCannotAnswer:
		return Recovery{Prompt: "No problem, let's move on.", AdvanceCursor: true}, true
	default:
		return Recovery{}, false
	}
}
