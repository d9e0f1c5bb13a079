package storage

import (
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/beacon/internal/model"
	"github.com/ashita-ai/beacon/internal/situation"
)

func TestEncodeDecode_NestedFields(t *testing.T) {
	cmp := 100.0
	pct := 0.1
	at := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	in := model.Situation{
		KPIValue: model.KPIValue{
			KPIName: "Revenue", Value: 110, ComparisonValue: &cmp, PercentChange: &pct,
			ComparisonType: model.ComparisonBudget, Timeframe: model.TimeframeCurrentMonth,
		},
		SuggestedActions: []string{"a"},
		Decisions: []model.DecisionRecord{{
			Action: model.DecisionAcknowledge, FromStatus: model.StatusOpen, ToStatus: model.StatusAcknowledged, DecidedAt: at,
		}},
	}
	enc, err := Encode(in)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(enc.DiagnosticQuestions))
	assert.JSONEq(t, `[]`, string(enc.Tags))

	var out model.Situation
	require.NoError(t, Decode(enc, &out))
	assert.Equal(t, in.KPIValue, out.KPIValue)
	assert.Equal(t, in.SuggestedActions, out.SuggestedActions)
	assert.Equal(t, []string{}, out.DiagnosticQuestions)
	require.Len(t, out.Decisions, 1)
	assert.Equal(t, model.DecisionAcknowledge, out.Decisions[0].Action)
	assert.True(t, at.Equal(out.Decisions[0].DecidedAt))
}

func TestDecode_EmptyDecisionsAreNil(t *testing.T) {
	enc, err := Encode(model.Situation{})
	require.NoError(t, err)
	var out model.Situation
	require.NoError(t, Decode(enc, &out))
	assert.Nil(t, out.Decisions)
}

func TestDecode_BadJSON(t *testing.T) {
	var out model.Situation
	err := Decode(Encoded{KPIValue: []byte("{")}, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kpi_value")
}

func TestFilterClause(t *testing.T) {
	where, args := filterClause(situation.Filter{})
	assert.Empty(t, where)
	assert.Empty(t, args)

	where, args = filterClause(situation.Filter{
		PrincipalID: "cfo_001",
		Statuses:    []model.SituationStatus{model.StatusOpen, model.StatusSnoozed},
		MinSeverity: model.SeverityHigh,
	})
	assert.Equal(t, " WHERE lower(principal_id) = lower($1) AND status = ANY($2) AND severity_rank >= $3", where)
	assert.Equal(t, []any{"cfo_001", []string{"OPEN", "SNOOZED"}, 4}, args)
}

func TestIsRetriable(t *testing.T) {
	assert.True(t, isRetriable(&pgconn.PgError{Code: "40001"}))
	assert.True(t, isRetriable(&pgconn.PgError{Code: "40P01"}))
	assert.False(t, isRetriable(&pgconn.PgError{Code: "23505"}))
	assert.False(t, isRetriable(errors.New("plain")))
}
