package server

import (
	"context"
	"errors"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/gitlab-mcp/internal/authclient"
	"github.com/standardbeagle/gitlab-mcp/internal/logging"
)

// fakeFlow returns a canned outcome and records the path it was given.
type fakeFlow struct {
	result authclient.Result
	err    error
	paths  []string
}

func (f *fakeFlow) Run(ctx context.Context, currentPath string) (authclient.Result, error) {
	f.paths = append(f.paths, currentPath)
	return f.result, f.err
}

func mockServer(flow AuthFlow) *Server {
	return New(flow, logging.Nop())
}

func TestHandleStartAuthFlow_Success(t *testing.T) {
	flow := &fakeFlow{result: authclient.Result{Success: true, Token: "T"}}
	s := mockServer(flow)

	output, err := s.handleStartAuthFlow(context.Background(), &mcp.CallToolRequest{}, StartAuthFlowInput{CurrentPath: "/work/main.go"})

	require.NoError(t, err)
	assert.True(t, output.Success)
	assert.Equal(t, "Authentication flow completed successfully. You can now use GitLab tools.", output.Message)
	assert.Equal(t, []string{"/work/main.go"}, flow.paths)
}

func TestHandleStartAuthFlow_Failed(t *testing.T) {
	tests := []struct {
		reason string
		want   string
	}{
		{"Session expired", "Authentication failed: Session expired. Please try again."},
		{"Missing authCode parameter", "Authentication failed: Missing authCode parameter. Please try again."},
		{"Authentication timeout (3m0s)", "Authentication failed: Authentication timeout (3m0s). Please try again."},
	}

	for _, tt := range tests {
		t.Run(tt.reason, func(t *testing.T) {
			s := mockServer(&fakeFlow{result: authclient.Result{Error: tt.reason}})

			output, err := s.handleStartAuthFlow(context.Background(), nil, StartAuthFlowInput{})
			require.NoError(t, err)
			assert.False(t, output.Success)
			assert.Equal(t, tt.want, output.Message)
		})
	}
}

func TestHandleStartAuthFlow_StartError(t *testing.T) {
	s := mockServer(&fakeFlow{err: errors.New("connection refused")})

	output, err := s.handleStartAuthFlow(context.Background(), nil, StartAuthFlowInput{})
	require.NoError(t, err)
	assert.False(t, output.Success)
	assert.Equal(t, "Authentication error: connection refused", output.Message)
}

func TestCallTool(t *testing.T) {
	flow := &fakeFlow{result: authclient.Result{Success: true}}
	s := mockServer(flow)

	text, err := s.CallTool(context.Background(), "start-auth-flow", map[string]any{"currentPath": "/repo"})
	require.NoError(t, err)
	assert.Equal(t, MsgAuthSucceeded, text)
	assert.Equal(t, []string{"/repo"}, flow.paths)

	_, err = s.CallTool(context.Background(), "nope", nil)
	assert.Error(t, err)
}

func connect(t *testing.T, s *Server) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()
	serverTransport, clientTransport := mcp.NewInMemoryTransports()

	ss, err := s.mcpServer.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ss.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { cs.Close() })
	return cs
}

func TestServer_ListsStartAuthFlow(t *testing.T) {
	cs := connect(t, mockServer(&fakeFlow{}))

	result, err := cs.ListTools(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, result.Tools, 1)

	tool := result.Tools[0]
	assert.Equal(t, "start-auth-flow", tool.Name)
	assert.Contains(t, tool.Description, "NEVER call this tool before user grants permission")
}

func TestServer_CallStartAuthFlow(t *testing.T) {
	flow := &fakeFlow{result: authclient.Result{Error: "Session expired"}}
	cs := connect(t, mockServer(flow))

	result, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "start-auth-flow",
		Arguments: map[string]any{"currentPath": "/home/dev/app"},
	})
	require.NoError(t, err)
	assert.False(t, result.IsError)
	require.Len(t, result.Content, 1)

	text, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	assert.Equal(t, "Authentication failed: Session expired. Please try again.", text.Text)
	assert.Equal(t, []string{"/home/dev/app"}, flow.paths)
}
