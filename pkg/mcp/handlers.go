package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ormasoftchile/wizard/pkg/diagram"
	"github.com/ormasoftchile/wizard/pkg/schema"
	wtesting "github.com/ormasoftchile/wizard/pkg/testing"
)

// HandleValidate implements the wizard/validate MCP tool.
func HandleValidate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	path, _ := args["path"].(string)
	if path == "" {
		return errorResult("path argument is required"), nil
	}

	s, errs := schema.ValidateFile(path)
	if schema.HasErrors(errs) {
		return errorResult(formatErrors(errs)), nil
	}
	msg := fmt.Sprintf("✓ %s is valid (%d steps)", s.Meta.Name, len(s.Steps))
	if len(errs) > 0 {
		msg += "\nwarnings: " + formatWarnings(errs)
	}
	return textResult(msg), nil
}

// HandleSchema implements the wizard/schema MCP tool.
func HandleSchema(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, err := schema.GenerateJSONSchema()
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return textResult(string(data)), nil
}

// HandleDiagram implements the wizard/diagram MCP tool.
func HandleDiagram(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	path, _ := args["path"].(string)
	if path == "" {
		return errorResult("path argument is required"), nil
	}
	format, _ := args["format"].(string)
	if format == "" {
		format = string(diagram.FormatMermaid)
	}

	s, err := schema.LoadFile(path)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	out, err := diagram.Generate(s, diagram.Format(format))
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return textResult(out), nil
}

// HandleTest implements the wizard/test MCP tool.
func HandleTest(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	path, _ := args["path"].(string)
	if path == "" {
		return errorResult("path argument is required"), nil
	}
	scenarioName, _ := args["scenario"].(string)

	project, err := schema.OpenProject(path)
	if err != nil {
		return errorResult(fmt.Sprintf("discover project: %s", err)), nil
	}
	runner := &wtesting.Runner{Project: project}

	var output *wtesting.TestOutput
	if scenarioName != "" {
		result, err := runner.RunScenario(path, scenarioName)
		if err != nil {
			return errorResult(fmt.Sprintf("run scenario: %s", err)), nil
		}
		output = &wtesting.TestOutput{
			Survey:    filepath.Base(path),
			Scenarios: []wtesting.TestResult{*result},
			Summary:   wtesting.TestSummary{Total: 1},
		}
		switch result.Status {
		case "passed":
			output.Summary.Passed = 1
		case "failed":
			output.Summary.Failed = 1
		default:
			output.Summary.Errors = 1
		}
	} else {
		output, err = runner.RunAll(path, false)
		if err != nil {
			return errorResult(fmt.Sprintf("run tests: %s", err)), nil
		}
	}

	data, _ := json.MarshalIndent(output, "", "  ")

	isErr := output.Summary.Failed > 0 || output.Summary.Errors > 0
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(string(data))},
		IsError: isErr,
	}, nil
}

func formatErrors(errs []*schema.ValidationError) string {
	var msgs []string
	for _, e := range errs {
		if e.Severity == "error" {
			msgs = append(msgs, e.Error())
		}
	}
	return strings.Join(msgs, "; ")
}

func formatWarnings(errs []*schema.ValidationError) string {
	var msgs []string
	for _, e := range errs {
		if e.Severity == "warning" {
			msgs = append(msgs, fmt.Sprintf("%s: %s", e.Path, e.Message))
		}
	}
	return strings.Join(msgs, "; ")
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(msg),
		},
		IsError: true,
	}
}
