// Package server exposes the authentication flow to MCP clients.
package server

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/standardbeagle/gitlab-mcp/internal/authclient"
	"github.com/standardbeagle/gitlab-mcp/internal/logging"
)

const (
	serverName    = "GitLab MCP Server"
	serverVersion = "1.0.0"
)

// AuthFlow runs one interactive sign-in and reports how it ended.
// The error is set only when the flow could not be started.
type AuthFlow interface {
	Run(ctx context.Context, currentPath string) (authclient.Result, error)
}

// Server is the gitlab-mcp MCP server.
type Server struct {
	mcpServer *mcp.Server
	flow      AuthFlow
	logger    logging.Logger
}

// New creates a Server that starts sign-ins through flow.
func New(flow AuthFlow, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.Default()
	}
	s := &Server{
		flow:   flow,
		logger: logging.Component(logger, "mcp"),
	}

	s.mcpServer = mcp.NewServer(
		&mcp.Implementation{
			Name:    serverName,
			Version: serverVersion,
		},
		&mcp.ServerOptions{
			Capabilities: &mcp.ServerCapabilities{
				Tools: &mcp.ToolCapabilities{},
			},
		},
	)

	s.registerTools()
	return s
}

// RunStdio serves MCP over stdin and stdout until ctx is cancelled or the
// client disconnects.
func (s *Server) RunStdio(ctx context.Context) error {
	return s.Run(ctx, &mcp.StdioTransport{})
}

// Run serves MCP over the given transport.
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	s.logger.Info("mcp server starting", "name", serverName, "version", serverVersion)
	return s.mcpServer.Run(ctx, transport)
}

// CallTool calls a tool directly (for testing purposes).
func (s *Server) CallTool(ctx context.Context, toolName string, args map[string]any) (string, error) {
	switch toolName {
	case toolStartAuthFlow:
		input := StartAuthFlowInput{
			CurrentPath: getStringArg(args, "currentPath"),
		}
		output, err := s.handleStartAuthFlow(ctx, nil, input)
		return output.Message, err

	default:
		return "", fmt.Errorf("unknown tool: %s", toolName)
	}
}

func getStringArg(args map[string]any, key string) string {
	if v, ok := args[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
