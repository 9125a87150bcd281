package server

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const toolStartAuthFlow = "start-auth-flow"

// registerTools registers all server tools with manually crafted schemas.
func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		&mcp.Tool{
			Name:        toolStartAuthFlow,
			Description: "Start authentication flow. NEVER call this tool before user grants permission by positively answering the question.",
			InputSchema: startAuthFlowInputSchema,
		},
		s.wrapStartAuthFlow,
	)
}

func (s *Server) wrapStartAuthFlow(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var input StartAuthFlowInput
	if len(req.Params.Arguments) > 0 {
		if err := json.Unmarshal(req.Params.Arguments, &input); err != nil {
			return errorResult(err), nil
		}
	}

	output, err := s.handleStartAuthFlow(ctx, req, input)
	if err != nil {
		return errorResult(err), nil
	}

	return textResult(output.Message), nil
}

// errorResult creates an error CallToolResult.
func errorResult(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
	}
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}
