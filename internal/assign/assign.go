// Package assign proposes owners for situations that need a human.
package assign

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/ashita-ai/beacon/internal/model"
)

// DefaultLimit caps the number of proposals per situation.
const DefaultLimit = 3

// Provider proposes assignees for a situation.
type Provider interface {
	ProposeAssignees(ctx context.Context, s model.Situation) ([]model.AssignmentCandidate, error)
}

// Profiles is the subset of the profile store the overlap provider reads.
type Profiles interface {
	All() []model.PrincipalProfile
}

// KPIs is the subset of the KPI catalog the overlap provider reads.
type KPIs interface {
	Get(name string) (model.KPIDefinition, bool)
}

// ProfileOverlap ranks principals by how many of the situation KPI's
// business processes they own. The principal the situation was raised for
// is never proposed.
type ProfileOverlap struct {
	profiles Profiles
	kpis     KPIs
	limit    int
}

var _ Provider = (*ProfileOverlap)(nil)

// NewProfileOverlap creates the provider. A limit <= 0 uses DefaultLimit.
func NewProfileOverlap(profiles Profiles, kpis KPIs, limit int) *ProfileOverlap {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &ProfileOverlap{profiles: profiles, kpis: kpis, limit: limit}
}

func (p *ProfileOverlap) ProposeAssignees(ctx context.Context, s model.Situation) ([]model.AssignmentCandidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	def, ok := p.kpis.Get(s.KPIName)
	if !ok || len(def.BusinessProcesses) == 0 {
		return nil, nil
	}
	wanted := make(map[string]struct{}, len(def.BusinessProcesses))
	for _, bp := range def.BusinessProcesses {
		wanted[key(bp)] = struct{}{}
	}

	var out []model.AssignmentCandidate
	for _, prof := range p.profiles.All() {
		if strings.EqualFold(prof.ID, s.PrincipalID) {
			continue
		}
		overlap := 0
		for _, bp := range prof.BusinessProcesses {
			if _, ok := wanted[key(bp)]; ok {
				overlap++
			}
		}
		if overlap == 0 {
			continue
		}
		out = append(out, model.AssignmentCandidate{
			PrincipalID: prof.ID,
			DisplayName: prof.DisplayName,
			Role:        prof.Role,
			Score:       float64(overlap) / float64(len(wanted)),
			Reason:      fmt.Sprintf("owns %d of %d business processes for %s", overlap, len(wanted), def.Name),
		})
	}
	slices.SortFunc(out, func(a, b model.AssignmentCandidate) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return strings.Compare(a.PrincipalID, b.PrincipalID)
	})
	if len(out) > p.limit {
		out = out[:p.limit]
	}
	return out, nil
}

func key(process string) string { return strings.ToLower(strings.TrimSpace(process)) }
