package webmcp

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// AddToServer exposes the tool batch on an MCP server, so agent hosts
// speaking the Model Context Protocol can call the page tools directly.
func AddToServer(srv *mcp.Server, tools []Tool) {
	for _, t := range tools {
		t := t
		tool := &mcp.Tool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema,
		}
		srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			args := map[string]any{}
			if len(req.Params.Arguments) > 0 {
				if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
					var res mcp.CallToolResult
					res.SetError(errors.New("invalid arguments: " + err.Error()))
					return &res, nil
				}
			}

			resp, err := t.Execute(args)
			if err != nil {
				var res mcp.CallToolResult
				res.SetError(errors.New(err.Error()))
				return &res, nil
			}

			data, err := json.Marshal(resp)
			if err != nil {
				var res mcp.CallToolResult
				res.SetError(errors.New("marshal: " + err.Error()))
				return &res, nil
			}
			return &mcp.CallToolResult{
				Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
			}, nil
		})
	}
}

// MCPRegistrar adapts an MCP server into a BatchRegistrar, so the standard
// Register path can target it like any other host registry.
type MCPRegistrar struct {
	Server *mcp.Server
}

// ProvideContext registers the batch on the underlying MCP server.
func (r *MCPRegistrar) ProvideContext(tools []Tool) error {
	if r.Server == nil {
		return errors.New("webmcp: nil MCP server")
	}
	AddToServer(r.Server, tools)
	return nil
}
