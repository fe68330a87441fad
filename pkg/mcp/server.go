// Package mcp exposes surveys to AI agents over the Model Context Protocol:
// document tools (validate, schema, diagram, test) and stateful session
// tools that drive an engine session step by step.
package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewServer creates a new MCP server with wizard tools registered. Session
// tools share m.
func NewServer(version string, m *Manager) *server.MCPServer {
	s := server.NewMCPServer(
		"wizard",
		version,
		server.WithToolCapabilities(true),
	)

	s.AddTool(
		mcp.NewTool("wizard/validate",
			mcp.WithDescription("Validate a survey YAML file"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the survey YAML file")),
		),
		HandleValidate,
	)

	s.AddTool(
		mcp.NewTool("wizard/schema",
			mcp.WithDescription("Export the survey JSON Schema"),
		),
		HandleSchema,
	)

	s.AddTool(
		mcp.NewTool("wizard/diagram",
			mcp.WithDescription("Render a survey as a flow diagram"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the survey YAML file")),
			mcp.WithString("format", mcp.Description("Diagram format: mermaid (default) or ascii")),
		),
		HandleDiagram,
	)

	s.AddTool(
		mcp.NewTool("wizard/test",
			mcp.WithDescription("Run scenario tests for a survey"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the survey YAML file")),
			mcp.WithString("scenario", mcp.Description("Run only the named scenario (optional)")),
		),
		HandleTest,
	)

	s.AddTool(
		mcp.NewTool("wizard/session_start",
			mcp.WithDescription("Start a survey session and return its first step"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the survey YAML file")),
		),
		m.HandleStart,
	)

	s.AddTool(
		mcp.NewTool("wizard/advance",
			mcp.WithDescription("Validate the current step and move to the next eligible step"),
			sessionArg(),
		),
		m.HandleAdvance,
	)

	s.AddTool(
		mcp.NewTool("wizard/retreat",
			mcp.WithDescription("Move back to the previous eligible step"),
			sessionArg(),
		),
		m.HandleRetreat,
	)

	s.AddTool(
		mcp.NewTool("wizard/answer",
			mcp.WithDescription("Record a text answer for the current step or a named answer key"),
			sessionArg(),
			mcp.WithString("value", mcp.Required(), mcp.Description("Answer text; 'true'/'false' for boolean keys")),
			mcp.WithString("key", mcp.Description("Answer key (defaults to the current step's key)")),
		),
		m.HandleAnswer,
	)

	s.AddTool(
		mcp.NewTool("wizard/select",
			mcp.WithDescription("Select an option on the current choice step; toggles on multi-selection steps"),
			sessionArg(),
			mcp.WithString("option", mcp.Required(), mcp.Description("Option ID")),
		),
		m.HandleSelect,
	)

	s.AddTool(
		mcp.NewTool("wizard/consent",
			mcp.WithDescription("Toggle the consent checkbox of the current step"),
			sessionArg(),
			mcp.WithString("key", mcp.Description("Boolean answer key (defaults to the step's consent key)")),
		),
		m.HandleConsent,
	)

	s.AddTool(
		mcp.NewTool("wizard/state",
			mcp.WithDescription("Return the current snapshot of a session"),
			sessionArg(),
		),
		m.HandleState,
	)

	s.AddTool(
		mcp.NewTool("wizard/session_end",
			mcp.WithDescription("End a session and release its timers"),
			sessionArg(),
		),
		m.HandleEnd,
	)

	return s
}

func sessionArg() mcp.ToolOption {
	return mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID returned by wizard/session_start"))
}
