package progressive

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/pif/imagefield"
	"github.com/hazyhaar/pif/kit"
)

// RegisterMCP registers the pif tools on an MCP server.
func (s *Service) RegisterMCP(srv *mcp.Server) {
	s.registerUpgradeTool(srv)
	s.registerRenderTool(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func (s *Service) registerUpgradeTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "pif_upgrade",
		Description: "Upgrade the progressive image placeholders of an HTML document: load the low-res images, append the high-res ones, mark loaded images.",
		InputSchema: inputSchema(map[string]any{
			"html":     map[string]any{"type": "string", "description": "HTML document"},
			"base_url": map[string]any{"type": "string", "description": "Base URL for relative image URLs"},
			"page_id":  map[string]any{"type": "string", "description": "Page identifier used in events"},
		}, []string{"html"}),
	}

	var decode kit.MCPDecoder = func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r UpgradeRequest
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{
			Request: &r,
			EnrichCtx: func(ctx context.Context) context.Context {
				if r.PageID == "" {
					return ctx
				}
				return kit.WithPageID(ctx, r.PageID)
			},
		}, nil
	}

	kit.RegisterMCPTool(srv, tool, s.upgrade, decode)
}

func (s *Service) registerRenderTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "pif_render",
		Description: "Render the placeholder markup for an image: thumbnail, data-large URL and aspect-ratio box.",
		InputSchema: inputSchema(map[string]any{
			"url":       map[string]any{"type": "string", "description": "Full-size image URL"},
			"thumb_url": map[string]any{"type": "string", "description": "Thumbnail URL, derived from url when empty"},
			"alt":       map[string]any{"type": "string"},
			"width":     map[string]any{"type": "integer"},
			"height":    map[string]any{"type": "integer"},
		}, []string{"url", "width", "height"}),
	}

	var decode kit.MCPDecoder = func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var f imagefield.Field
		if err := json.Unmarshal(req.Params.Arguments, &f); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &f}, nil
	}

	kit.RegisterMCPTool(srv, tool, s.render, decode)
}
