package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ashita-ai/beacon/internal/model"
	"github.com/ashita-ai/beacon/internal/situation"
)

// SituationStore is the Postgres situation.Store.
type SituationStore struct {
	db *DB
}

var _ situation.Store = (*SituationStore)(nil)

// Situations returns the situation store backed by db.
func (db *DB) Situations() *SituationStore {
	return &SituationStore{db: db}
}

const situationColumns = `situation_id, parent_id, principal_id, kpi_name, kpi_value, severity, status,
	description, business_impact, suggested_actions, diagnostic_questions, observed_at, created_at,
	hitl_required, assignee_id, dedupe_key, cooldown_until, tags, decisions`

// Get returns one situation by id.
func (s *SituationStore) Get(ctx context.Context, id string) (model.Situation, error) {
	row := s.db.pool.QueryRow(ctx,
		`SELECT `+situationColumns+` FROM situations WHERE situation_id = $1`, id)
	sit, err := scanSituation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Situation{}, fmt.Errorf("storage: situation %s: %w", id, ErrNotFound)
		}
		return model.Situation{}, fmt.Errorf("storage: get situation: %w", err)
	}
	return sit, nil
}

// ListByDedupeKeys returns every stored situation whose dedupe key is in keys.
func (s *SituationStore) ListByDedupeKeys(ctx context.Context, keys []string) ([]model.Situation, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	rows, err := s.db.pool.Query(ctx,
		`SELECT `+situationColumns+` FROM situations WHERE dedupe_key = ANY($1) ORDER BY situation_id`, keys)
	if err != nil {
		return nil, fmt.Errorf("storage: list by dedupe keys: %w", err)
	}
	defer rows.Close()
	return collectSituations(rows)
}

// List returns a page of situations matching f and the total match count.
func (s *SituationStore) List(ctx context.Context, f situation.Filter) ([]model.Situation, int, error) {
	where, args := filterClause(f)

	var total int
	if err := s.db.pool.QueryRow(ctx, `SELECT count(*) FROM situations`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("storage: count situations: %w", err)
	}

	args = append(args, f.EffectiveLimit(), max(f.Offset, 0))
	q := `SELECT ` + situationColumns + ` FROM situations` + where +
		fmt.Sprintf(` ORDER BY severity_rank DESC, observed_at DESC, situation_id LIMIT $%d OFFSET $%d`, len(args)-1, len(args))
	rows, err := s.db.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("storage: list situations: %w", err)
	}
	defer rows.Close()
	out, err := collectSituations(rows)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// Commit deletes then upserts in a single transaction, retrying on
// serialization failures and deadlocks.
func (s *SituationStore) Commit(ctx context.Context, save []model.Situation, del []string) error {
	encoded := make([]Encoded, len(save))
	for i, sit := range save {
		enc, err := Encode(sit)
		if err != nil {
			return err
		}
		encoded[i] = enc
	}

	return WithRetry(ctx, commitRetries, commitBaseDelay, func() error {
		tx, err := s.db.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("storage: begin commit tx: %w", err)
		}
		defer func() { _ = tx.Rollback(ctx) }()

		if len(del) > 0 {
			if _, err := tx.Exec(ctx, `DELETE FROM situations WHERE situation_id = ANY($1)`, del); err != nil {
				return fmt.Errorf("storage: delete superseded: %w", err)
			}
		}

		batch := &pgx.Batch{}
		for i, sit := range save {
			enc := encoded[i]
			tags := sit.Tags
			if tags == nil {
				tags = []string{}
			}
			batch.Queue(`INSERT INTO situations (`+situationColumns+`, severity_rank)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
				ON CONFLICT (situation_id) DO UPDATE SET
					parent_id = EXCLUDED.parent_id,
					kpi_value = EXCLUDED.kpi_value,
					severity = EXCLUDED.severity,
					severity_rank = EXCLUDED.severity_rank,
					status = EXCLUDED.status,
					description = EXCLUDED.description,
					business_impact = EXCLUDED.business_impact,
					suggested_actions = EXCLUDED.suggested_actions,
					diagnostic_questions = EXCLUDED.diagnostic_questions,
					observed_at = EXCLUDED.observed_at,
					hitl_required = EXCLUDED.hitl_required,
					assignee_id = EXCLUDED.assignee_id,
					cooldown_until = EXCLUDED.cooldown_until,
					tags = EXCLUDED.tags,
					decisions = EXCLUDED.decisions`,
				sit.ID, sit.ParentID, sit.PrincipalID, sit.KPIName, enc.KPIValue, string(sit.Severity), string(sit.Status),
				sit.Description, sit.BusinessImpact, enc.SuggestedActions, enc.DiagnosticQuestions, sit.Timestamp, sit.CreatedAt,
				sit.HITLRequired, sit.AssigneeID, sit.DedupeKey, sit.CooldownUntil, tags, enc.Decisions,
				sit.Severity.Rank(),
			)
		}
		if batch.Len() > 0 {
			if err := tx.SendBatch(ctx, batch).Close(); err != nil {
				return fmt.Errorf("storage: upsert situations: %w", err)
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("storage: commit situations: %w", err)
		}
		return nil
	})
}

func filterClause(f situation.Filter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.PrincipalID != "" {
		add("lower(principal_id) = lower($%d)", f.PrincipalID)
	}
	if f.KPIName != "" {
		add("lower(kpi_name) = lower($%d)", f.KPIName)
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, st := range f.Statuses {
			statuses[i] = string(st)
		}
		add("status = ANY($%d)", statuses)
	}
	if f.MinSeverity != "" {
		add("severity_rank >= $%d", f.MinSeverity.Rank())
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanSituation(row pgx.Row) (model.Situation, error) {
	var (
		s             model.Situation
		enc           Encoded
		severity      string
		status        string
		cooldownUntil *time.Time
		tags          []string
	)
	if err := row.Scan(
		&s.ID, &s.ParentID, &s.PrincipalID, &s.KPIName, &enc.KPIValue, &severity, &status,
		&s.Description, &s.BusinessImpact, &enc.SuggestedActions, &enc.DiagnosticQuestions, &s.Timestamp, &s.CreatedAt,
		&s.HITLRequired, &s.AssigneeID, &s.DedupeKey, &cooldownUntil, &tags, &enc.Decisions,
	); err != nil {
		return model.Situation{}, err
	}
	if err := Decode(enc, &s); err != nil {
		return model.Situation{}, err
	}
	s.Severity = model.Severity(severity)
	s.Status = model.SituationStatus(status)
	s.Timestamp = s.Timestamp.UTC()
	s.CreatedAt = s.CreatedAt.UTC()
	if cooldownUntil != nil {
		utc := cooldownUntil.UTC()
		s.CooldownUntil = &utc
	}
	s.Tags = tags
	return s, nil
}

func collectSituations(rows pgx.Rows) ([]model.Situation, error) {
	var out []model.Situation
	for rows.Next() {
		s, err := scanSituation(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: scan situation: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
