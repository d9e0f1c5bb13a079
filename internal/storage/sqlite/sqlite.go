// Package sqlite is an embedded situation.Store for single-node deployments
// and the CLI, backed by the pure-Go modernc SQLite driver.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ashita-ai/beacon/internal/model"
	"github.com/ashita-ai/beacon/internal/situation"
	"github.com/ashita-ai/beacon/internal/storage"
)

//go:embed schema.sql
var schema string

// Store is a SQLite-backed situation store.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ situation.Store = (*Store)(nil)

// Open opens (creating if needed) the database at path and applies the
// schema. Use ":memory:" for a throwaway database.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: create directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	// One writer; also keeps a :memory: database on a single connection.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000", "PRAGMA foreign_keys=ON"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite: %s: %w", pragma, err)
		}
	}
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite: apply schema: %w", err)
		}
	}
	logger.Info("sqlite: situation store ready", "path", path)
	return &Store{db: db, logger: logger}, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

const columns = `situation_id, parent_id, principal_id, kpi_name, kpi_value, severity, status,
	description, business_impact, suggested_actions, diagnostic_questions, observed_at, created_at,
	hitl_required, assignee_id, dedupe_key, cooldown_until, tags, decisions`

func (s *Store) Get(ctx context.Context, id string) (model.Situation, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+columns+` FROM situations WHERE situation_id = ?`, id)
	sit, err := scan(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Situation{}, fmt.Errorf("sqlite: situation %s: %w", id, situation.ErrNotFound)
		}
		return model.Situation{}, fmt.Errorf("sqlite: get situation: %w", err)
	}
	return sit, nil
}

func (s *Store) ListByDedupeKeys(ctx context.Context, keys []string) ([]model.Situation, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}
	q := `SELECT ` + columns + ` FROM situations WHERE dedupe_key IN (` + placeholders(len(keys)) + `) ORDER BY situation_id`
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list by dedupe keys: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return collect(rows)
}

func (s *Store) List(ctx context.Context, f situation.Filter) ([]model.Situation, int, error) {
	where, args := filterClause(f)

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM situations`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("sqlite: count situations: %w", err)
	}

	args = append(args, f.EffectiveLimit(), max(f.Offset, 0))
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+columns+` FROM situations`+where+
			` ORDER BY severity_rank DESC, observed_at DESC, situation_id LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("sqlite: list situations: %w", err)
	}
	defer func() { _ = rows.Close() }()
	out, err := collect(rows)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (s *Store) Commit(ctx context.Context, save []model.Situation, del []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, id := range del {
		if _, err := tx.ExecContext(ctx, `DELETE FROM situations WHERE situation_id = ?`, id); err != nil {
			return fmt.Errorf("sqlite: delete superseded: %w", err)
		}
	}
	for _, sit := range save {
		enc, err := storage.Encode(sit)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO situations (`+columns+`, severity_rank)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (situation_id) DO UPDATE SET
				parent_id = excluded.parent_id,
				kpi_value = excluded.kpi_value,
				severity = excluded.severity,
				severity_rank = excluded.severity_rank,
				status = excluded.status,
				description = excluded.description,
				business_impact = excluded.business_impact,
				suggested_actions = excluded.suggested_actions,
				diagnostic_questions = excluded.diagnostic_questions,
				observed_at = excluded.observed_at,
				hitl_required = excluded.hitl_required,
				assignee_id = excluded.assignee_id,
				cooldown_until = excluded.cooldown_until,
				tags = excluded.tags,
				decisions = excluded.decisions`,
			sit.ID, sit.ParentID, sit.PrincipalID, sit.KPIName, string(enc.KPIValue), string(sit.Severity), string(sit.Status),
			sit.Description, sit.BusinessImpact, string(enc.SuggestedActions), string(enc.DiagnosticQuestions),
			formatTime(sit.Timestamp), formatTime(sit.CreatedAt), sit.HITLRequired, sit.AssigneeID, sit.DedupeKey,
			formatTimePtr(sit.CooldownUntil), string(enc.Tags), string(enc.Decisions), sit.Severity.Rank(),
		); err != nil {
			return fmt.Errorf("sqlite: upsert situation %s: %w", sit.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	return nil
}

func filterClause(f situation.Filter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.PrincipalID != "" {
		conds = append(conds, "principal_id = ? COLLATE NOCASE")
		args = append(args, f.PrincipalID)
	}
	if f.KPIName != "" {
		conds = append(conds, "kpi_name = ? COLLATE NOCASE")
		args = append(args, f.KPIName)
	}
	if len(f.Statuses) > 0 {
		conds = append(conds, "status IN ("+placeholders(len(f.Statuses))+")")
		for _, st := range f.Statuses {
			args = append(args, string(st))
		}
	}
	if f.MinSeverity != "" {
		conds = append(conds, "severity_rank >= ?")
		args = append(args, f.MinSeverity.Rank())
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(row scanner) (model.Situation, error) {
	var (
		s                            model.Situation
		kpiValue, actions, questions string
		tags, decisions              string
		severity, status             string
		observedAt, createdAt        string
		cooldownUntil                sql.NullString
		parentID, assigneeID         sql.NullString
	)
	if err := row.Scan(
		&s.ID, &parentID, &s.PrincipalID, &s.KPIName, &kpiValue, &severity, &status,
		&s.Description, &s.BusinessImpact, &actions, &questions, &observedAt, &createdAt,
		&s.HITLRequired, &assigneeID, &s.DedupeKey, &cooldownUntil, &tags, &decisions,
	); err != nil {
		return model.Situation{}, err
	}
	enc := storage.Encoded{
		KPIValue:            []byte(kpiValue),
		SuggestedActions:    []byte(actions),
		DiagnosticQuestions: []byte(questions),
		Tags:                []byte(tags),
		Decisions:           []byte(decisions),
	}
	if err := storage.Decode(enc, &s); err != nil {
		return model.Situation{}, err
	}
	s.Severity = model.Severity(severity)
	s.Status = model.SituationStatus(status)
	var err error
	if s.Timestamp, err = parseTime(observedAt); err != nil {
		return model.Situation{}, err
	}
	if s.CreatedAt, err = parseTime(createdAt); err != nil {
		return model.Situation{}, err
	}
	if cooldownUntil.Valid {
		t, err := parseTime(cooldownUntil.String)
		if err != nil {
			return model.Situation{}, err
		}
		s.CooldownUntil = &t
	}
	if parentID.Valid {
		s.ParentID = &parentID.String
	}
	if assigneeID.Valid {
		s.AssigneeID = &assigneeID.String
	}
	return s, nil
}

func collect(rows *sql.Rows) ([]model.Situation, error) {
	var out []model.Situation
	for rows.Next() {
		s, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan situation: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Times are stored as fixed-width UTC text so lexical order matches time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("sqlite: parse time %q: %w", s, err)
	}
	return t.UTC(), nil
}
