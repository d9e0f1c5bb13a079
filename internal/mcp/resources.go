package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/ashita-ai/beacon/internal/model"
	"github.com/ashita-ai/beacon/internal/situation"
)

const (
	uriRegistryStatus = "beacon://registry/status"
	uriOpenSituations = "beacon://situations/open"
)

func (s *Server) registerResources() {
	s.mcpServer.AddResource(
		mcplib.NewResource(
			uriRegistryStatus,
			"Registry Status",
			mcplib.WithResourceDescription("Where principal and KPI definitions were loaded from and whether built-in defaults are in use"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleRegistryStatus,
	)
	s.mcpServer.AddResource(
		mcplib.NewResource(
			uriOpenSituations,
			"Open Situations",
			mcplib.WithResourceDescription("Situations still awaiting a human decision, most severe first"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleOpenSituations,
	)
}

func (s *Server) handleRegistryStatus(_ context.Context, _ mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	return jsonResource(uriRegistryStatus, s.registry.Status())
}

func (s *Server) handleOpenSituations(ctx context.Context, _ mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	sits, total, err := s.detection.Situations().List(ctx, situation.Filter{
		Statuses: []model.SituationStatus{model.StatusOpen, model.StatusAcknowledged},
		Limit:    50,
	})
	if err != nil {
		return nil, fmt.Errorf("mcp: open situations: %w", err)
	}
	if sits == nil {
		sits = []model.Situation{}
	}
	return jsonResource(uriOpenSituations, map[string]any{"situations": sits, "total": total})
}

func jsonResource(uri string, v any) ([]mcplib.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcp: marshal %s: %w", uri, err)
	}
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{URI: uri, MIMEType: "application/json", Text: string(data)},
	}, nil
}
