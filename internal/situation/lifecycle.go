// Package situation manages situation identity, deduplication, cooldowns and
// the status state machine.
package situation

import (
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/ashita-ai/beacon/internal/classify"
	"github.com/ashita-ai/beacon/internal/model"
)

// SystemActor is recorded as DecidedBy on transitions Beacon makes itself.
const SystemActor = "beacon"

// DefaultCooldown applies when a Policy leaves Cooldown zero.
const DefaultCooldown = 24 * time.Hour

// Evaluation is one classified KPI measurement ready to be merged.
type Evaluation struct {
	PrincipalID string
	Value       model.KPIValue
	Result      classify.Result
	Tags        []string
}

// DedupeKey returns the evaluation's dedupe key.
func (e Evaluation) DedupeKey() string {
	return DedupeKey(e.PrincipalID, e.Value.KPIName, e.Value.Timeframe, e.Value.ComparisonType)
}

// Outcome says what Upsert did with one evaluation.
type Outcome string

const (
	OutcomeCreated Outcome = "created"
	OutcomeUpdated Outcome = "updated"
	OutcomeRefired Outcome = "refired"
	OutcomeWoken   Outcome = "woken"
)

// UpsertResult is the merged situation set. Situations are in evaluation
// order with one entry per dedupe key; Outcomes is parallel to Situations.
// Superseded lists ids replaced by a re-fired situation.
type UpsertResult struct {
	Situations []model.Situation
	Outcomes   []Outcome
	Superseded []string
	Suppressed int
}

// Count returns how many situations had outcome o.
func (r UpsertResult) Count(o Outcome) int {
	n := 0
	for _, got := range r.Outcomes {
		if got == o {
			n++
		}
	}
	return n
}

// Policy carries the lifecycle settings Upsert needs.
type Policy struct {
	Cooldown time.Duration
	NewID    func() string
}

func (p Policy) cooldown() time.Duration {
	if p.Cooldown <= 0 {
		return DefaultCooldown
	}
	return p.Cooldown
}

func (p Policy) newID() string {
	if p.NewID != nil {
		return p.NewID()
	}
	return uuid.NewString()
}

// Upsert merges evaluations into the existing situations for their dedupe
// keys. It performs no I/O. Per key, against the latest existing situation:
//
//   - none: a new OPEN situation
//   - OPEN inside its cooldown: updated in place (same id)
//   - OPEN past its cooldown: re-fired as a new situation whose parent is
//     the old one, which is superseded
//   - SNOOZED inside its cooldown: suppressed
//   - SNOOZED past its cooldown: woken to OPEN and updated in place
//   - ACKNOWLEDGED, ASSIGNED, IN_PROGRESS: updated in place, status kept
//   - RESOLVED: a new OPEN child situation
func (p Policy) Upsert(evals []Evaluation, existing []model.Situation, now time.Time) UpsertResult {
	current := latestByKey(existing)
	out := map[string]int{}
	var res UpsertResult

	emit := func(key string, s model.Situation, o Outcome) {
		current[key] = s
		if i, ok := out[key]; ok {
			res.Situations[i] = s
			if res.Outcomes[i] == OutcomeUpdated {
				res.Outcomes[i] = o
			}
			return
		}
		out[key] = len(res.Situations)
		res.Situations = append(res.Situations, s)
		res.Outcomes = append(res.Outcomes, o)
	}

	for _, e := range evals {
		key := e.DedupeKey()
		prior, ok := current[key]
		if !ok {
			emit(key, p.create(e, key, nil, now), OutcomeCreated)
			continue
		}

		switch prior.Status {
		case model.StatusOpen:
			if withinCooldown(prior, now) {
				emit(key, refresh(prior, e, now), OutcomeUpdated)
				continue
			}
			if _, inBatch := out[key]; !inBatch {
				res.Superseded = append(res.Superseded, prior.ID)
			}
			emit(key, p.create(e, key, &prior.ID, now), OutcomeRefired)
		case model.StatusSnoozed:
			if withinCooldown(prior, now) {
				res.Suppressed++
				continue
			}
			woken := refresh(prior, e, now)
			woken.Status = model.StatusOpen
			woken.CooldownUntil = ptr(now.Add(p.cooldown()))
			woken.Decisions = append(slices.Clone(prior.Decisions), model.DecisionRecord{
				Action:     model.DecisionReopen,
				FromStatus: model.StatusSnoozed,
				ToStatus:   model.StatusOpen,
				Comment:    "snooze elapsed",
				DecidedBy:  SystemActor,
				DecidedAt:  now,
			})
			emit(key, woken, OutcomeWoken)
		case model.StatusResolved:
			emit(key, p.create(e, key, &prior.ID, now), OutcomeCreated)
		default:
			emit(key, refresh(prior, e, now), OutcomeUpdated)
		}
	}
	return res
}

func (p Policy) create(e Evaluation, key string, parentID *string, now time.Time) model.Situation {
	s := model.Situation{
		ID:            p.newID(),
		ParentID:      parentID,
		PrincipalID:   e.PrincipalID,
		KPIName:       e.Value.KPIName,
		Status:        model.StatusOpen,
		CreatedAt:     now,
		DedupeKey:     key,
		CooldownUntil: ptr(now.Add(p.cooldown())),
	}
	return refresh(s, e, now)
}

// refresh overwrites the measured fields of s, keeping identity, status,
// assignment and history.
func refresh(s model.Situation, e Evaluation, now time.Time) model.Situation {
	s.KPIValue = e.Value
	s.Severity = e.Result.Severity
	s.Description = e.Result.Description
	s.BusinessImpact = e.Result.BusinessImpact
	s.SuggestedActions = nonNil(e.Result.SuggestedActions)
	s.DiagnosticQuestions = nonNil(e.Result.DiagnosticQuestions)
	s.Timestamp = now
	s.Tags = nonNil(e.Tags)
	s.HITLRequired = s.NeedsHuman()
	s.ProposedAssignees = nil
	return s
}

func withinCooldown(s model.Situation, now time.Time) bool {
	return s.CooldownUntil == nil || now.Before(*s.CooldownUntil)
}

// latestByKey picks the most recently created situation per dedupe key.
func latestByKey(existing []model.Situation) map[string]model.Situation {
	m := make(map[string]model.Situation, len(existing))
	for _, s := range existing {
		cur, ok := m[s.DedupeKey]
		if !ok || s.CreatedAt.After(cur.CreatedAt) || (s.CreatedAt.Equal(cur.CreatedAt) && s.ID > cur.ID) {
			m[s.DedupeKey] = s
		}
	}
	return m
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return slices.Clone(s)
}

func ptr[T any](v T) *T { return &v }
