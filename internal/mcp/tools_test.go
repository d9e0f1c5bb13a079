package mcp

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/beacon/internal/assign"
	"github.com/ashita-ai/beacon/internal/auth"
	"github.com/ashita-ai/beacon/internal/ctxutil"
	"github.com/ashita-ai/beacon/internal/kpi"
	"github.com/ashita-ai/beacon/internal/measure"
	"github.com/ashita-ai/beacon/internal/model"
	"github.com/ashita-ai/beacon/internal/profile"
	"github.com/ashita-ai/beacon/internal/registry"
	"github.com/ashita-ai/beacon/internal/resolver"
	"github.com/ashita-ai/beacon/internal/service/detection"
	"github.com/ashita-ai/beacon/internal/situation"
	"github.com/ashita-ai/beacon/internal/testutil"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	logger := testutil.TestLogger()
	profiles := profile.NewStore(logger)
	catalog := kpi.NewCatalog(logger)
	res := resolver.New(profiles, "", logger)
	loader := registry.NewLoader(nil, profiles, catalog, res, logger)
	loader.Refresh(context.Background())

	baseline := 100.0
	svc := detection.New(detection.Deps{
		Resolver:   res,
		Catalog:    catalog,
		Measure:    measure.NewStatic([]measure.Fixture{{KPI: "Operating Expense", Value: 107, ComparisonValue: &baseline}}),
		Situations: situation.NewManager(situation.NewMemoryStore(), time.Hour, logger),
		Assigner:   assign.NewProfileOverlap(profiles, catalog, 0),
		Registry:   loader,
	}, detection.Config{}, logger)
	return New(svc, loader, logger, "test")
}

func ctxAs(role model.ClientRole) context.Context {
	return ctxutil.WithClaims(context.Background(), &auth.Claims{ClientID: "agent-" + string(role), Role: role})
}

func call(name string, args map[string]any) mcplib.CallToolRequest {
	return mcplib.CallToolRequest{Params: mcplib.CallToolParams{Name: name, Arguments: args}}
}

func resultText(t *testing.T, r *mcplib.CallToolResult) string {
	t.Helper()
	require.NotNil(t, r)
	require.NotEmpty(t, r.Content)
	tc, ok := r.Content[0].(mcplib.TextContent)
	require.True(t, ok, "expected text content")
	return tc.Text
}

func detectArgs() map[string]any {
	return map[string]any{
		"principal_id":       "CFO",
		"business_processes": []any{"Finance: Expense Management"},
		"timeframe":          "current_quarter",
		"comparison_type":    "year_over_year",
	}
}

func TestDetectTool(t *testing.T) {
	s := newTestServer(t)

	out, err := s.handleDetect(ctxAs(model.RoleAnalyst), call("beacon_detect", detectArgs()))
	require.NoError(t, err)
	require.False(t, out.IsError, resultText(t, out))

	var res detection.Result
	require.NoError(t, json.Unmarshal([]byte(resultText(t, out)), &res))
	assert.Equal(t, "cfo_001", res.Context.PrincipalID)
	assert.Equal(t, []string{"Operating Expense"}, res.KPIsEvaluated)
	require.Len(t, res.Situations, 1)
	assert.Equal(t, model.SeverityHigh, res.Situations[0].Severity)
}

func TestDetectTool_RequiresAnalyst(t *testing.T) {
	s := newTestServer(t)

	out, err := s.handleDetect(ctxAs(model.RoleViewer), call("beacon_detect", detectArgs()))
	require.NoError(t, err)
	assert.True(t, out.IsError)
	assert.Contains(t, resultText(t, out), "analyst")

	out, err = s.handleDetect(context.Background(), call("beacon_detect", detectArgs()))
	require.NoError(t, err)
	assert.True(t, out.IsError)
}

func TestDetectTool_InvalidRequest(t *testing.T) {
	s := newTestServer(t)
	args := detectArgs()
	delete(args, "timeframe")

	out, err := s.handleDetect(ctxAs(model.RoleAnalyst), call("beacon_detect", args))
	require.NoError(t, err)
	assert.True(t, out.IsError)
}

func TestDecideTool(t *testing.T) {
	s := newTestServer(t)
	ctx := ctxAs(model.RoleAnalyst)

	out, err := s.handleDetect(ctx, call("beacon_detect", detectArgs()))
	require.NoError(t, err)
	var res detection.Result
	require.NoError(t, json.Unmarshal([]byte(resultText(t, out)), &res))
	require.NotEmpty(t, res.Situations)
	id := res.Situations[0].ID

	out, err = s.handleDecide(ctx, call("beacon_decide", map[string]any{
		"situation_id": id,
		"decision":     "snooze",
		"snooze_until": time.Now().Add(48 * time.Hour).UTC().Format(time.RFC3339),
		"comment":      "waiting on month close",
	}))
	require.NoError(t, err)
	require.False(t, out.IsError, resultText(t, out))
	var updated model.Situation
	require.NoError(t, json.Unmarshal([]byte(resultText(t, out)), &updated))
	assert.Equal(t, model.StatusSnoozed, updated.Status)
	require.Len(t, updated.Decisions, 1)
	assert.Equal(t, "agent-analyst", updated.Decisions[0].DecidedBy)

	out, err = s.handleDecide(ctx, call("beacon_decide", map[string]any{"situation_id": id, "decision": "resolve"}))
	require.NoError(t, err)
	assert.True(t, out.IsError)

	out, err = s.handleDecide(ctx, call("beacon_decide", map[string]any{"situation_id": id, "decision": "snooze", "snooze_until": "tomorrow"}))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, out), "RFC 3339")

	out, err = s.handleDecide(ctx, call("beacon_decide", map[string]any{"situation_id": "nope", "decision": "acknowledge"}))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, out), "not found")
}

func TestResolveTool(t *testing.T) {
	s := newTestServer(t)

	out, err := s.handleResolve(ctxAs(model.RoleViewer), call("beacon_resolve", map[string]any{"identifier": "chief operating officer"}))
	require.NoError(t, err)
	var rr model.ResolveResponse
	require.NoError(t, json.Unmarshal([]byte(resultText(t, out)), &rr))
	assert.Equal(t, "coo_001", rr.Context.PrincipalID)
	assert.Equal(t, string(profile.StrategyTitle), rr.Strategy)

	out, err = s.handleResolve(ctxAs(model.RoleViewer), call("beacon_resolve", map[string]any{}))
	require.NoError(t, err)
	assert.True(t, out.IsError)
}

func TestSituationsToolAndResources(t *testing.T) {
	s := newTestServer(t)
	_, err := s.handleDetect(ctxAs(model.RoleAnalyst), call("beacon_detect", detectArgs()))
	require.NoError(t, err)

	out, err := s.handleSituations(ctxAs(model.RoleViewer), call("beacon_situations", map[string]any{"status": "open", "min_severity": "high"}))
	require.NoError(t, err)
	require.False(t, out.IsError, resultText(t, out))
	var page struct {
		Situations []model.Situation `json:"situations"`
		Total      int               `json:"total"`
	}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, out)), &page))
	assert.Equal(t, 1, page.Total)

	out, err = s.handleSituations(ctxAs(model.RoleViewer), call("beacon_situations", map[string]any{"status": "closed"}))
	require.NoError(t, err)
	assert.True(t, out.IsError)

	contents, err := s.handleOpenSituations(context.Background(), mcplib.ReadResourceRequest{})
	require.NoError(t, err)
	require.Len(t, contents, 1)
	assert.Contains(t, contents[0].(mcplib.TextResourceContents).Text, "Operating Expense")

	contents, err = s.handleRegistryStatus(context.Background(), mcplib.ReadResourceRequest{})
	require.NoError(t, err)
	assert.Contains(t, contents[0].(mcplib.TextResourceContents).Text, `"source": "builtin"`)
}

func TestTriagePrompt(t *testing.T) {
	s := newTestServer(t)

	res, err := s.handleTriagePrompt(context.Background(), mcplib.GetPromptRequest{
		Params: mcplib.GetPromptParams{Name: "triage-situations", Arguments: map[string]string{"principal": "CFO"}},
	})
	require.NoError(t, err)
	assert.Contains(t, res.Description, "CFO")
	require.Len(t, res.Messages, 1)
	tc, ok := res.Messages[0].Content.(mcplib.TextContent)
	require.True(t, ok)
	assert.Contains(t, tc.Text, "beacon_detect")
	assert.Contains(t, tc.Text, `timeframe="current_quarter"`)

	_, err = s.handleTriagePrompt(context.Background(), mcplib.GetPromptRequest{})
	assert.Error(t, err)
}
