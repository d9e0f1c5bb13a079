package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/ashita-ai/beacon/internal/ctxutil"
	"github.com/ashita-ai/beacon/internal/model"
	"github.com/ashita-ai/beacon/internal/service/detection"
	"github.com/ashita-ai/beacon/internal/situation"
)

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcplib.NewTool("beacon_detect",
			mcplib.WithDescription(`Evaluate the KPIs relevant to a principal and open or refresh situations for them.

Resolves the principal (id, role, title or name), selects the KPIs that apply to
the requested business processes, measures each one and classifies it into a
severity band. Returns the situations plus the KPIs that could not be measured.
Requires the analyst role.`),
			mcplib.WithDestructiveHintAnnotation(false),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithString("principal_id",
				mcplib.Description("Principal identifier, role (CFO) or title. Unknown values fall back to the default profile."),
			),
			mcplib.WithArray("business_processes",
				mcplib.Description("Optional process names, e.g. \"Finance: Expense Management\". Defaults to the principal's own processes."),
				mcplib.WithStringItems(),
			),
			mcplib.WithString("timeframe",
				mcplib.Description("Measurement window"),
				mcplib.Required(),
				mcplib.Enum(timeframeValues()...),
			),
			mcplib.WithString("comparison_type",
				mcplib.Description("Baseline to compare against"),
				mcplib.Required(),
				mcplib.Enum(comparisonValues()...),
			),
		),
		s.handleDetect,
	)

	s.mcpServer.AddTool(
		mcplib.NewTool("beacon_decide",
			mcplib.WithDescription(`Record a human decision on a situation: acknowledge, assign, start, resolve, snooze or reopen.
assign needs assignee_id; snooze needs snooze_until (RFC 3339). Requires the analyst role.`),
			mcplib.WithDestructiveHintAnnotation(false),
			mcplib.WithIdempotentHintAnnotation(false),
			mcplib.WithString("situation_id", mcplib.Description("Situation id"), mcplib.Required()),
			mcplib.WithString("decision",
				mcplib.Description("Decision to apply"),
				mcplib.Required(),
				mcplib.Enum("acknowledge", "assign", "start", "resolve", "snooze", "reopen"),
			),
			mcplib.WithString("assignee_id", mcplib.Description("Principal to assign to")),
			mcplib.WithString("snooze_until", mcplib.Description("RFC 3339 time to snooze until")),
			mcplib.WithString("comment", mcplib.Description("Free-text note kept in the audit trail")),
		),
		s.handleDecide,
	)

	s.mcpServer.AddTool(
		mcplib.NewTool("beacon_resolve",
			mcplib.WithDescription("Resolve an identifier to a principal context and report which strategy matched."),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithString("identifier", mcplib.Description("Principal id, role, title or name"), mcplib.Required()),
		),
		s.handleResolve,
	)

	s.mcpServer.AddTool(
		mcplib.NewTool("beacon_situations",
			mcplib.WithDescription("List situations, most severe first."),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithString("principal_id", mcplib.Description("Only this principal")),
			mcplib.WithString("kpi", mcplib.Description("Only this KPI")),
			mcplib.WithString("status", mcplib.Description("Comma-separated statuses, e.g. OPEN,ACKNOWLEDGED")),
			mcplib.WithString("min_severity", mcplib.Description("Lowest severity to include, e.g. HIGH")),
			mcplib.WithNumber("limit", mcplib.Description("Maximum results"), mcplib.Min(1), mcplib.Max(1000), mcplib.DefaultNumber(20)),
		),
		s.handleSituations,
	)
}

func timeframeValues() []string {
	return []string{
		string(model.TimeframeCurrentMonth), string(model.TimeframeCurrentQuarter),
		string(model.TimeframeYearToDate), string(model.TimeframeCurrentYear), string(model.TimeframeTrailing12),
	}
}

func comparisonValues() []string {
	return []string{
		string(model.ComparisonYearOverYear), string(model.ComparisonQuarterOverQuarter),
		string(model.ComparisonMonthOverMonth), string(model.ComparisonBudget),
		string(model.ComparisonTarget),
	}
}

func (s *Server) handleDetect(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	if !ctxutil.HasRole(ctx, model.RoleAnalyst) {
		return errorResult("beacon_detect requires the analyst role"), nil
	}
	req := model.DetectRequest{
		PrincipalID:       request.GetString("principal_id", ""),
		BusinessProcesses: request.GetStringSlice("business_processes", nil),
		Timeframe:         model.Timeframe(request.GetString("timeframe", "")),
		ComparisonType:    model.ComparisonType(request.GetString("comparison_type", "")),
	}
	res, err := s.detection.DetectSituations(ctx, req)
	if err != nil {
		if errors.Is(err, detection.ErrInvalidRequest) {
			return errorResult(err.Error()), nil
		}
		s.logger.Error("mcp: detect failed", "principal_id", req.PrincipalID, "error", err)
		return errorResult("detection failed"), nil
	}
	return jsonResult(res)
}

func (s *Server) handleDecide(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	if !ctxutil.HasRole(ctx, model.RoleAnalyst) {
		return errorResult("beacon_decide requires the analyst role"), nil
	}
	id := request.GetString("situation_id", "")
	if id == "" {
		return errorResult("situation_id is required"), nil
	}
	req := model.DecisionRequest{
		Decision: model.DecisionAction(request.GetString("decision", "")),
		Comment:  request.GetString("comment", ""),
	}
	if len(req.Comment) > model.MaxCommentLen {
		return errorResult("comment too long"), nil
	}
	if a := request.GetString("assignee_id", ""); a != "" {
		req.AssigneeID = &a
	}
	if raw := request.GetString("snooze_until", ""); raw != "" {
		until, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return errorResult("snooze_until must be RFC 3339"), nil
		}
		req.SnoozeUntil = &until
	}

	updated, err := s.detection.ApplyDecision(ctx, id, req, ctxutil.ClientID(ctx))
	switch {
	case err == nil:
		return jsonResult(updated)
	case errors.Is(err, situation.ErrNotFound):
		return errorResult(fmt.Sprintf("situation %s not found", id)), nil
	case errors.Is(err, situation.ErrInvalidTransition), errors.Is(err, situation.ErrInvalidDecision):
		return errorResult(err.Error()), nil
	default:
		s.logger.Error("mcp: decide failed", "situation_id", id, "error", err)
		return errorResult("failed to apply decision"), nil
	}
}

func (s *Server) handleResolve(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	if !ctxutil.HasRole(ctx, model.RoleViewer) {
		return errorResult("authentication required"), nil
	}
	identifier, err := request.RequireString("identifier")
	if err != nil {
		return errorResult(err.Error()), nil
	}
	res := s.detection.Resolve(identifier)
	return jsonResult(model.ResolveResponse{
		Context:  res.Context,
		Strategy: string(res.Strategy),
		Fallback: res.Fallback,
	})
}

func (s *Server) handleSituations(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	if !ctxutil.HasRole(ctx, model.RoleViewer) {
		return errorResult("authentication required"), nil
	}
	f := situation.Filter{
		PrincipalID: request.GetString("principal_id", ""),
		KPIName:     request.GetString("kpi", ""),
		Limit:       request.GetInt("limit", 20),
	}
	if raw := request.GetString("status", ""); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			st, err := model.ParseStatus(part)
			if err != nil {
				return errorResult(err.Error()), nil
			}
			f.Statuses = append(f.Statuses, st)
		}
	}
	if raw := request.GetString("min_severity", ""); raw != "" {
		sev, err := model.ParseSeverity(raw)
		if err != nil {
			return errorResult(err.Error()), nil
		}
		f.MinSeverity = sev
	}
	sits, total, err := s.detection.Situations().List(ctx, f)
	if err != nil {
		s.logger.Error("mcp: list situations failed", "error", err)
		return errorResult("failed to list situations"), nil
	}
	if sits == nil {
		sits = []model.Situation{}
	}
	return jsonResult(map[string]any{"situations": sits, "total": total})
}
