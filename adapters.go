package beacon

import (
	"context"
	"errors"

	"github.com/ashita-ai/beacon/internal/measure"
	"github.com/ashita-ai/beacon/internal/model"
	"github.com/ashita-ai/beacon/internal/resolver"
	"github.com/ashita-ai/beacon/internal/service/detection"
)

// measurementAdapter wraps a public MeasurementProvider as measure.Provider.
type measurementAdapter struct {
	p MeasurementProvider
}

func (a *measurementAdapter) EvaluateKPI(ctx context.Context, def model.KPIDefinition, tf model.Timeframe, ct model.ComparisonType, filters map[string]any) (model.KPIValue, error) {
	m, err := a.p.Measure(ctx, MeasurementRequest{
		KPI:            def.Name,
		DataProductID:  def.DataProductID,
		Query:          def.Query,
		Unit:           def.Unit,
		Timeframe:      string(tf),
		ComparisonType: string(ct),
		Filters:        filters,
	})
	if err != nil {
		if errors.Is(err, ErrNoMeasurement) {
			return model.KPIValue{}, measure.ErrNoMeasurement
		}
		return model.KPIValue{}, err
	}
	return model.NewKPIValue(def.Name, m.Value, m.ComparisonValue, ct, def.Unit, tf)
}

// assigneeAdapter wraps a public AssigneeProposer as assign.Provider.
type assigneeAdapter struct {
	p AssigneeProposer
}

func (a *assigneeAdapter) ProposeAssignees(ctx context.Context, s model.Situation) ([]model.AssignmentCandidate, error) {
	out, err := a.p.ProposeAssignees(ctx, toPublicSituation(s))
	if err != nil {
		return nil, err
	}
	candidates := make([]model.AssignmentCandidate, 0, len(out))
	for _, c := range out {
		if c.PrincipalID == "" {
			continue
		}
		candidates = append(candidates, model.AssignmentCandidate{
			PrincipalID: c.PrincipalID,
			DisplayName: c.DisplayName,
			Role:        c.Role,
			Score:       c.Score,
			Reason:      c.Reason,
		})
	}
	return candidates, nil
}

func toPublicSituation(s model.Situation) Situation {
	out := Situation{
		ID:              s.ID,
		ParentID:        s.ParentID,
		PrincipalID:     s.PrincipalID,
		KPIName:         s.KPIName,
		Value:           s.KPIValue.Value,
		ComparisonValue: s.KPIValue.ComparisonValue,
		PercentChange:   s.KPIValue.PercentChange,
		Unit:            s.KPIValue.Unit,
		Timeframe:       string(s.KPIValue.Timeframe),
		ComparisonType:  string(s.KPIValue.ComparisonType),
		Severity:        Severity(s.Severity),
		Status:          string(s.Status),
		Description:     s.Description,
		BusinessImpact:  s.BusinessImpact,
		HITLRequired:    s.HITLRequired,
		AssigneeID:      s.AssigneeID,
		Tags:            append([]string(nil), s.Tags...),
		Timestamp:       s.Timestamp,
		CreatedAt:       s.CreatedAt,

		SuggestedActions:    append([]string{}, s.SuggestedActions...),
		DiagnosticQuestions: append([]string{}, s.DiagnosticQuestions...),
		DedupeKey:           s.DedupeKey,
		CooldownUntil:       s.CooldownUntil,
	}
	for _, c := range s.ProposedAssignees {
		out.ProposedAssignees = append(out.ProposedAssignees, Assignee{
			PrincipalID: c.PrincipalID,
			DisplayName: c.DisplayName,
			Role:        c.Role,
			Score:       c.Score,
			Reason:      c.Reason,
		})
	}
	return out
}

func toPublicResolution(r resolver.Resolution) Resolution {
	return Resolution{
		PrincipalID:       r.Context.PrincipalID,
		Role:              r.Context.Role,
		BusinessProcesses: append([]string(nil), r.Context.BusinessProcesses...),
		Strategy:          string(r.Strategy),
		Fallback:          r.Fallback,
	}
}

func toPublicDetectResult(r detection.Result) DetectResult {
	out := DetectResult{
		PrincipalID:        r.Context.PrincipalID,
		Role:               r.Context.Role,
		ResolutionStrategy: string(r.ResolutionStrategy),
		Fallback:           r.Fallback,
		Situations:         make([]Situation, 0, len(r.Situations)),
		KPIEvaluatedCount:  r.KPIEvaluatedCount,
		KPIsEvaluated:      r.KPIsEvaluated,
		UnmappedKPIs:       r.UnmappedKPIs,
		CatalogExamined:    r.CatalogExamined,
		Suppressed:         r.Suppressed,
	}
	for _, s := range r.Situations {
		out.Situations = append(out.Situations, toPublicSituation(s))
	}
	for _, d := range r.Diagnostics {
		out.Diagnostics = append(out.Diagnostics, Diagnostic{Kind: string(d.Kind), KPI: d.KPI, Message: d.Message})
	}
	return out
}
