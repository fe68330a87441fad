// Package main provides the wizard-mcp binary: the MCP server for AI agents.
package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"

	wmcp "github.com/ormasoftchile/wizard/pkg/mcp"
)

var version = "dev"

func main() {
	m := wmcp.NewManager(wmcp.ManagerConfig{TraceDir: os.Getenv("WIZARD_TRACE_DIR")})
	defer m.Close()
	if err := server.ServeStdio(wmcp.NewServer(version, m)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
