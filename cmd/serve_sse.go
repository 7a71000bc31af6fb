package cmd

import (
	"context"
	"fmt"
	"log"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/giantswarm/mcp-ory/internal/server"
)

// runSSEServer runs the server with SSE transport.
func runSSEServer(mcpSrv *mcpserver.MCPServer, addr, sseEndpoint, messageEndpoint string, ctx context.Context, debugMode bool) error {
	sseServer := mcpserver.NewSSEServer(mcpSrv,
		mcpserver.WithSSEEndpoint(sseEndpoint),
		mcpserver.WithMessageEndpoint(messageEndpoint),
	)

	if debugMode {
		log.Printf("SSE server configured with endpoints: sse=%s, message=%s", sseEndpoint, messageEndpoint)
	}

	serverDone := make(chan error, 1)
	go func() {
		log.Printf("SSE server listening on %s", addr)
		serverDone <- sseServer.Start(addr)
	}()

	select {
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("SSE server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		log.Println("Shutting down SSE server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer cancel()
		if err := sseServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("SSE server shutdown error: %w", err)
		}
		return nil
	}
}
