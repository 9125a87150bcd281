package server

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Tool result texts.
const (
	MsgAuthSucceeded = "Authentication flow completed successfully. You can now use GitLab tools."
	msgAuthFailed    = "Authentication failed: %s. Please try again."
	msgAuthError     = "Authentication error: %s"
)

// StartAuthFlowInput is the input for start-auth-flow.
type StartAuthFlowInput struct {
	CurrentPath string `json:"currentPath"`
}

// StartAuthFlowOutput is the outcome of start-auth-flow.
type StartAuthFlowOutput struct {
	Success bool
	Message string
}

// handleStartAuthFlow runs the sign-in and reports the outcome as text.
// Expected failures are part of the output, never a Go error.
func (s *Server) handleStartAuthFlow(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input StartAuthFlowInput,
) (StartAuthFlowOutput, error) {
	result, err := s.flow.Run(ctx, input.CurrentPath)
	if err != nil {
		s.logger.Error("auth flow error", "error", err)
		return StartAuthFlowOutput{Message: fmt.Sprintf(msgAuthError, err)}, nil
	}

	if !result.Success {
		s.logger.Warn("authentication failed", "error", result.Error)
		return StartAuthFlowOutput{Message: fmt.Sprintf(msgAuthFailed, result.Error)}, nil
	}

	s.logger.Info("authentication completed successfully")
	return StartAuthFlowOutput{Success: true, Message: MsgAuthSucceeded}, nil
}
