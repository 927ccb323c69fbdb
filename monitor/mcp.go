package monitor

import (
	"context"
	"log/slog"
	"time"

	"github.com/hazyhaar/diario/kit"
	"github.com/hazyhaar/diario/monitor/internal/match"
	"github.com/hazyhaar/diario/monitor/internal/state"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// RegisterMCP registers the monitor tools on an MCP server.
func (s *Service) RegisterMCP(srv *mcp.Server) {
	s.registerCheck(srv)
	s.registerHistory(srv)
	s.registerGroups(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	sch := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		sch["required"] = required
	}
	return sch
}

// logged wraps tool endpoints with a duration log line.
func (s *Service) logged(tool string) kit.Middleware {
	return func(next kit.Endpoint) kit.Endpoint {
		return func(ctx context.Context, req any) (any, error) {
			start := time.Now()
			resp, err := next(ctx, req)
			level := slog.LevelInfo
			if err != nil {
				level = slog.LevelWarn
			}
			s.logger.Log(ctx, level, "monitor: mcp tool", "tool", tool, "elapsed", time.Since(start), "error", err)
			return resp, err
		}
	}
}

func (s *Service) registerCheck(srv *mcp.Server) {
	type req struct {
		URL      string   `json:"url"`
		Sources  []string `json:"sources"`
		Terms    string   `json:"terms"`
		Dry      bool     `json:"dry"`
		Snippets bool     `json:"snippets"`
		Persist  bool     `json:"persist"`
	}

	tool := &mcp.Tool{
		Name:        "diario_check",
		Description: "Check gazette sources for watch terms; returns hits per source",
		InputSchema: inputSchema(map[string]any{
			"url":      map[string]any{"type": "string", "description": "Explicit document URL (manual run)"},
			"sources":  map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "Source names to check"},
			"terms":    map[string]any{"type": "string", "description": "Comma-separated terms replacing the configured ones"},
			"dry":      map[string]any{"type": "boolean", "description": "Suppress the global notification"},
			"snippets": map[string]any{"type": "boolean", "description": "Include text excerpts around hits"},
			"persist":  map[string]any{"type": "boolean", "description": "Record a manual run in the history"},
		}, nil),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		return s.Run(ctx, Request{
			URL:      p.URL,
			Sources:  p.Sources,
			Terms:    match.Terms(p.Terms),
			DryRun:   p.Dry,
			Snippets: p.Snippets,
			Persist:  p.Persist,
		})
	}

	kit.RegisterMCPTool(srv, tool, kit.Chain(s.logged(tool.Name))(endpoint), kit.DecodeJSON[req]())
}

func (s *Service) registerHistory(srv *mcp.Server) {
	type req struct {
		Source string `json:"source"`
		Limit  int    `json:"limit"`
	}

	tool := &mcp.Tool{
		Name:        "diario_history",
		Description: "Show last-seen editions and recent runs, newest first",
		InputSchema: inputSchema(map[string]any{
			"source": map[string]any{"type": "string", "description": "Only runs of this source"},
			"limit":  map[string]any{"type": "integer", "description": "Max runs returned (default 20)"},
		}, nil),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		h, err := s.History(ctx)
		if err != nil {
			return nil, err
		}
		limit := p.Limit
		if limit <= 0 {
			limit = 20
		}
		limit = min(limit, state.MaxRuns, len(h.Runs))
		runs := make([]RunRecord, 0, limit)
		for _, run := range h.Runs {
			if len(runs) == limit {
				break
			}
			if p.Source == "" || run.Source == p.Source {
				runs = append(runs, run)
			}
		}
		return map[string]any{"lastSeen": h.LastSeen, "runs": runs}, nil
	}

	kit.RegisterMCPTool(srv, tool, kit.Chain(s.logged(tool.Name))(endpoint), kit.DecodeJSON[req]())
}

func (s *Service) registerGroups(srv *mcp.Server) {
	type req struct{}

	tool := &mcp.Tool{
		Name:        "diario_groups",
		Description: "List subscriber groups with their sources and terms",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(ctx context.Context, _ any) (any, error) {
		groups, err := s.Groups(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]any{"groups": groups}, nil
	}

	kit.RegisterMCPTool(srv, tool, kit.Chain(s.logged(tool.Name))(endpoint), kit.DecodeJSON[req]())
}
