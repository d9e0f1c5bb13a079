package storage

import (
	"encoding/json"
	"fmt"

	"github.com/ashita-ai/beacon/internal/model"
)

// Encoded holds the JSON-encoded nested fields of a situation. Both SQL
// stores persist these columns the same way.
type Encoded struct {
	KPIValue            []byte
	SuggestedActions    []byte
	DiagnosticQuestions []byte
	Tags                []byte
	Decisions           []byte
}

// Encode marshals the nested fields of s. Nil slices encode as [].
func Encode(s model.Situation) (Encoded, error) {
	var (
		enc Encoded
		err error
	)
	if enc.KPIValue, err = json.Marshal(s.KPIValue); err != nil {
		return Encoded{}, fmt.Errorf("storage: encode kpi_value: %w", err)
	}
	if enc.SuggestedActions, err = json.Marshal(orEmpty(s.SuggestedActions)); err != nil {
		return Encoded{}, fmt.Errorf("storage: encode suggested_actions: %w", err)
	}
	if enc.DiagnosticQuestions, err = json.Marshal(orEmpty(s.DiagnosticQuestions)); err != nil {
		return Encoded{}, fmt.Errorf("storage: encode diagnostic_questions: %w", err)
	}
	if enc.Tags, err = json.Marshal(orEmpty(s.Tags)); err != nil {
		return Encoded{}, fmt.Errorf("storage: encode tags: %w", err)
	}
	decisions := s.Decisions
	if decisions == nil {
		decisions = []model.DecisionRecord{}
	}
	if enc.Decisions, err = json.Marshal(decisions); err != nil {
		return Encoded{}, fmt.Errorf("storage: encode decisions: %w", err)
	}
	return enc, nil
}

// Decode unmarshals the nested fields into s. Empty columns are skipped.
func Decode(enc Encoded, s *model.Situation) error {
	fields := []struct {
		name string
		raw  []byte
		dst  any
	}{
		{"kpi_value", enc.KPIValue, &s.KPIValue},
		{"suggested_actions", enc.SuggestedActions, &s.SuggestedActions},
		{"diagnostic_questions", enc.DiagnosticQuestions, &s.DiagnosticQuestions},
		{"tags", enc.Tags, &s.Tags},
		{"decisions", enc.Decisions, &s.Decisions},
	}
	for _, f := range fields {
		if len(f.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(f.raw, f.dst); err != nil {
			return fmt.Errorf("storage: decode %s: %w", f.name, err)
		}
	}
	if len(s.Decisions) == 0 {
		s.Decisions = nil
	}
	return nil
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
