package mcp_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Sumatoshi-tech/gitport/internal/mcp"
)

func TestServerInMemoryTransportToolsList(t *testing.T) {
	t.Parallel()

	srv := mcp.NewServer(mcp.ServerDeps{Root: t.TempDir()})

	clientTransport, serverTransport := mcpsdk.NewInMemoryTransports()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	serverDone := make(chan error, 1)

	go func() {
		serverDone <- srv.RunWithTransport(ctx, serverTransport)
	}()

	client := mcpsdk.NewClient(&mcpsdk.Implementation{
		Name:    "test-client",
		Version: "1.0.0",
	}, nil)

	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)

	defer func() {
		_ = session.Close()
	}()

	toolsResult, err := session.ListTools(ctx, nil)
	require.NoError(t, err)
	require.NotNil(t, toolsResult)

	toolNames := make([]string, 0, len(toolsResult.Tools))
	for _, tool := range toolsResult.Tools {
		toolNames = append(toolNames, tool.Name)
	}

	assert.Contains(t, toolNames, "migration_status")
	assert.Contains(t, toolNames, "plan_summary")
	assert.Contains(t, toolNames, "conversion_gaps")
}

func TestServerInMemoryTransportCallTool(t *testing.T) {
	t.Parallel()

	srv := mcp.NewServer(mcp.ServerDeps{Root: t.TempDir()})

	clientTransport, serverTransport := mcpsdk.NewInMemoryTransports()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	go func() {
		_ = srv.RunWithTransport(ctx, serverTransport)
	}()

	client := mcpsdk.NewClient(&mcpsdk.Implementation{
		Name:    "test-client",
		Version: "1.0.0",
	}, nil)

	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)

	defer func() {
		_ = session.Close()
	}()

	result, err := session.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      "migration_status",
		Arguments: map[string]any{"project": "group/widget"},
	})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.False(t, result.IsError)
}
