package mcp

import (
	"context"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerPrompts() {
	s.mcpServer.AddPrompt(
		mcplib.NewPrompt("triage-situations",
			mcplib.WithPromptDescription("Walk through detecting and triaging situations for one principal"),
			mcplib.WithArgument("principal",
				mcplib.ArgumentDescription("Principal id, role or title, e.g. cfo_001 or CFO"),
				mcplib.RequiredArgument(),
			),
			mcplib.WithArgument("timeframe",
				mcplib.ArgumentDescription("Measurement window; defaults to current_quarter"),
			),
		),
		s.handleTriagePrompt,
	)
}

func (s *Server) handleTriagePrompt(_ context.Context, request mcplib.GetPromptRequest) (*mcplib.GetPromptResult, error) {
	principal := request.Params.Arguments["principal"]
	if principal == "" {
		return nil, fmt.Errorf("principal argument is required")
	}
	timeframe := request.Params.Arguments["timeframe"]
	if timeframe == "" {
		timeframe = "current_quarter"
	}

	return &mcplib.GetPromptResult{
		Description: fmt.Sprintf("Triage situations for %s", principal),
		Messages: []mcplib.PromptMessage{{
			Role: mcplib.RoleUser,
			Content: mcplib.TextContent{
				Type: "text",
				Text: fmt.Sprintf(`Triage KPI situations for %[1]s.

1. CALL beacon_resolve with identifier="%[1]s". If fallback is true, say so:
   the default profile was used and results may not fit this person.

2. CALL beacon_detect with principal_id="%[1]s", timeframe="%[2]s" and
   comparison_type="year_over_year".

3. For every situation with hitl_required=true, most severe first:
   - summarize the KPI, its change and the business impact
   - recommend one suggested action
   - if proposed_assignees is non-empty, name the top candidate and why

4. List unmapped_kpis separately. These KPIs could not be measured and are
   not evidence that everything is fine.

Do not call beacon_decide unless the user confirms the decision.`, principal, timeframe),
			},
		}},
	}, nil
}
