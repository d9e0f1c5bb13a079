package situation

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/ashita-ai/beacon/internal/model"
)

var (
	// ErrNotFound is returned when a situation id does not exist.
	ErrNotFound = errors.New("situation not found")
	// ErrInvalidTransition is returned when a decision does not apply to the
	// situation's current status.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrInvalidDecision is returned when a decision is missing a field it needs.
	ErrInvalidDecision = errors.New("invalid decision")
)

type transition struct {
	from []model.SituationStatus
	to   model.SituationStatus
}

// transitions lists the decisions a human may record and the statuses each
// one is legal from. OPEN refresh and the SNOOZED wake-up are not here:
// Upsert performs those on its own.
var transitions = map[model.DecisionAction]transition{
	model.DecisionAcknowledge: {from: []model.SituationStatus{model.StatusOpen}, to: model.StatusAcknowledged},
	model.DecisionAssign:      {from: []model.SituationStatus{model.StatusAcknowledged, model.StatusAssigned}, to: model.StatusAssigned},
	model.DecisionStart:       {from: []model.SituationStatus{model.StatusAssigned}, to: model.StatusInProgress},
	model.DecisionResolve:     {from: []model.SituationStatus{model.StatusInProgress}, to: model.StatusResolved},
	model.DecisionSnooze:      {from: []model.SituationStatus{model.StatusOpen}, to: model.StatusSnoozed},
	model.DecisionReopen:      {from: []model.SituationStatus{model.StatusSnoozed}, to: model.StatusOpen},
}

// CanApply reports whether action is legal from status.
func CanApply(status model.SituationStatus, action model.DecisionAction) bool {
	t, ok := transitions[action]
	return ok && slices.Contains(t.from, status)
}

// ApplyDecision returns s with the decision applied and recorded in its
// audit trail. Assigning clears hitl_required. Snoozing sets cooldown_until
// to the snooze deadline, which must be in the future; reopening starts a
// fresh cooldown.
func (p Policy) ApplyDecision(s model.Situation, d model.Decision, now time.Time) (model.Situation, error) {
	if err := d.Validate(); err != nil {
		return s, fmt.Errorf("%w: %v", ErrInvalidDecision, err)
	}
	if !CanApply(s.Status, d.Action) {
		return s, fmt.Errorf("%w: cannot %s a situation in status %s", ErrInvalidTransition, d.Action, s.Status)
	}
	t := transitions[d.Action]

	rec := model.DecisionRecord{
		Action:     d.Action,
		FromStatus: s.Status,
		ToStatus:   t.to,
		Comment:    d.Comment,
		DecidedBy:  d.DecidedBy,
		DecidedAt:  now,
	}

	switch d.Action {
	case model.DecisionAssign:
		s.AssigneeID = ptr(*d.AssigneeID)
		rec.AssigneeID = ptr(*d.AssigneeID)
	case model.DecisionSnooze:
		if !d.SnoozeUntil.After(now) {
			return s, fmt.Errorf("%w: snooze_until must be in the future", ErrInvalidDecision)
		}
		s.CooldownUntil = ptr(*d.SnoozeUntil)
		rec.SnoozeUntil = ptr(*d.SnoozeUntil)
	case model.DecisionReopen:
		s.CooldownUntil = ptr(now.Add(p.cooldown()))
	}

	s.Status = t.to
	s.HITLRequired = s.NeedsHuman()
	s.Decisions = append(slices.Clone(s.Decisions), rec)
	return s, nil
}
