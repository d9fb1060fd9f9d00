package mdize

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// RegisterMCP registers the conversion tools of e on an MCP server.
func RegisterMCP(srv *mcp.Server, e Engine) {
	addTool(srv, &mcp.Tool{
		Name:        "mdize_convert",
		Description: "Convert a document file (pdf, docx, pptx, xlsx, html, images, text) to Markdown. Tables are rebuilt as pipe tables.",
		InputSchema: inputSchema(map[string]any{
			"path":  map[string]any{"type": "string", "description": "File path to convert"},
			"force": map[string]any{"type": "boolean", "description": "Reconvert even if a cached result exists"},
		}, []string{"path"}),
	}, func(ctx context.Context, args json.RawMessage) (any, error) {
		var r struct {
			Path  string `json:"path"`
			Force bool   `json:"force"`
		}
		if err := decodeArgs(args, &r); err != nil {
			return nil, err
		}
		if r.Path == "" {
			return nil, fmt.Errorf("path is required")
		}
		var opts []ConvertOption
		if r.Force {
			opts = append(opts, WithForce())
		}
		return e.Convert(ctx, r.Path, opts...)
	})

	addTool(srv, &mcp.Tool{
		Name:        "mdize_get",
		Description: "Return a previously converted document by ID.",
		InputSchema: inputSchema(map[string]any{
			"id": map[string]any{"type": "integer", "description": "Document ID"},
		}, []string{"id"}),
	}, func(ctx context.Context, args json.RawMessage) (any, error) {
		var r struct {
			ID int64 `json:"id"`
		}
		if err := decodeArgs(args, &r); err != nil {
			return nil, err
		}
		return e.Get(ctx, r.ID)
	})

	addTool(srv, &mcp.Tool{
		Name:        "mdize_list",
		Description: "List cached conversions without their Markdown.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}, func(ctx context.Context, _ json.RawMessage) (any, error) {
		docs, err := e.ListDocuments(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]any{"documents": docs}, nil
	})

	addTool(srv, &mcp.Tool{
		Name:        "mdize_formats",
		Description: "List all supported document formats.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}, func(_ context.Context, _ json.RawMessage) (any, error) {
		return map[string]any{"formats": e.Formats()}, nil
	})
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func decodeArgs(args json.RawMessage, v any) error {
	if len(args) == 0 {
		return nil
	}
	return json.Unmarshal(args, v)
}

// addTool adapts a JSON endpoint to an MCP tool. Endpoint errors become
// tool errors, not protocol errors.
func addTool(srv *mcp.Server, tool *mcp.Tool, endpoint func(context.Context, json.RawMessage) (any, error)) {
	srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		resp, err := endpoint(ctx, req.Params.Arguments)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(err)
			return &res, nil
		}

		data, err := json.Marshal(resp)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(fmt.Errorf("marshal: %w", err))
			return &res, nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		}, nil
	})
}
