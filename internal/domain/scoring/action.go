package scoring

import (
	"fmt"

	"github.com/glowup/glowup-core/internal/domain/shared"
)

// Action keys of the default catalog.
const (
	ActionCompleteChallenge = "COMPLETE_CHALLENGE"
	ActionDailyCheckin      = "DAILY_CHECKIN"
	ActionCompleteGoal      = "COMPLETE_GOAL"
	ActionJournalEntry      = "JOURNAL_ENTRY"
	ActionMoodCheckin       = "MOOD_CHECKIN"
	ActionCompletePlanTask  = "COMPLETE_PLAN_TASK"
	ActionWinChallenge      = "WIN_CHALLENGE"
	ActionSendChallenge     = "SEND_CHALLENGE"
)

// LookupAction returns the catalog entry for key.
// An unknown key is a caller error: it matches both shared.ErrUnknownAction
// and shared.ErrConfig.
func (t *Tables) LookupAction(key string) (ScoreAction, error) {
	a, ok := t.actions[key]
	if !ok {
		return ScoreAction{}, shared.WrapError("scoring", "LookupAction", shared.ErrUnknownAction,
			"unknown score action", fmt.Errorf("%q", key))
	}
	return a, nil
}

// Actions returns the catalog in definition order.
func (t *Tables) Actions() []ScoreAction {
	out := make([]ScoreAction, 0, len(t.actionOrder))
	for _, k := range t.actionOrder {
		out = append(out, t.actions[k])
	}
	return out
}
