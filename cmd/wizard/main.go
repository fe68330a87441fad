// Package main provides the wizard CLI: validate, run, debug, test and
// diagram survey documents.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/ormasoftchile/wizard/pkg/debugger"
	"github.com/ormasoftchile/wizard/pkg/diagram"
	"github.com/ormasoftchile/wizard/pkg/engine"
	wmcp "github.com/ormasoftchile/wizard/pkg/mcp"
	"github.com/ormasoftchile/wizard/pkg/prompt"
	"github.com/ormasoftchile/wizard/pkg/schema"
	wtesting "github.com/ormasoftchile/wizard/pkg/testing"
	"github.com/ormasoftchile/wizard/pkg/trace"
	"github.com/ormasoftchile/wizard/pkg/tui"
)

// Version is set at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

// Shared state prepared by rootCmd's PersistentPreRunE.
var (
	cfg     Config
	project *schema.Project
)

func main() {
	loadDotEnv()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "wizard",
	Short:        "Survey wizard engine",
	Long:         "wizard: validate, run, debug and test step-by-step survey documents.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		wd, err := os.Getwd()
		if err != nil {
			return err
		}
		if project, err = schema.OpenProject(wd); err != nil {
			return fmt.Errorf("discover project: %w", err)
		}
		cfg, err = loadConfig(os.Getenv, project)
		return err
	},
}

// resolveSurvey maps a CLI argument to a survey file path.
func resolveSurvey(ref string) (string, error) {
	return project.ResolveSurveyRef(ref)
}

// loadSurvey validates and compiles a survey, printing diagnostics.
func loadSurvey(ref string, logger *slog.Logger) (*engine.Registry, error) {
	path, err := resolveSurvey(ref)
	if err != nil {
		return nil, err
	}
	s, errs := schema.ValidateFile(path)
	if printValidation(os.Stderr, errs) > 0 {
		return nil, fmt.Errorf("survey validation failed")
	}
	return engine.Compile(s, engine.WithLogger(logger))
}

// printValidation writes warnings and errors; it returns the error count.
func printValidation(w io.Writer, errs []*schema.ValidationError) int {
	var errors []*schema.ValidationError
	for _, e := range errs {
		if e.Severity == "warning" {
			fmt.Fprintf(w, "  ⚠ [%s] %s\n", e.Phase, e.Message)
			if e.Path != "" {
				fmt.Fprintf(w, "    at: %s\n", e.Path)
			}
			continue
		}
		errors = append(errors, e)
	}
	if len(errors) > 0 {
		fmt.Fprintf(w, "Validation failed: %d error(s)\n\n", len(errors))
		for i, e := range errors {
			fmt.Fprintf(w, "  %d. [%s] %s\n", i+1, e.Phase, e.Message)
			if e.Path != "" {
				fmt.Fprintf(w, "     at: %s\n", e.Path)
			}
		}
	}
	return len(errors)
}

// openTrace creates a JSONL trace for one session when dir is set.
func openTrace(dir, survey string) (*trace.Writer, error) {
	if dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create trace dir: %w", err)
	}
	id := uuid.NewString()
	return trace.NewFileWriter(filepath.Join(dir, survey+"-"+id+".jsonl"), id)
}

// --- validate ---

var validateCmd = &cobra.Command{
	Use:   "validate [survey.yaml...]",
	Short: "Validate survey YAML files against the schema",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	failed := 0
	for _, ref := range args {
		path, err := resolveSurvey(ref)
		if err != nil {
			fmt.Fprintf(os.Stderr, "  ✗ %v\n", err)
			failed++
			continue
		}
		s, errs := schema.ValidateFile(path)
		if printValidation(os.Stderr, errs) > 0 {
			failed++
			continue
		}
		fmt.Printf("✓ %s is valid (%d steps)\n", s.Meta.Name, len(s.Steps))
	}
	if failed > 0 {
		return fmt.Errorf("%d survey(s) failed validation", failed)
	}
	return nil
}

// --- run ---

var (
	runUI    string
	runOut   string
	runTrace string
)

var runCmd = &cobra.Command{
	Use:   "run [survey.yaml]",
	Short: "Run a survey interactively",
	Args:  cobra.ExactArgs(1),
	RunE:  runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	ui := cfg.UI
	if cmd.Flags().Changed("ui") {
		ui = runUI
	}
	if err := checkUI(ui); err != nil {
		return err
	}
	traceDir := cfg.TraceDir
	if cmd.Flags().Changed("trace") {
		traceDir = runTrace
	}

	// The TUI owns the terminal, so its logs only go to a file.
	var fallback io.Writer = os.Stderr
	if ui == "tui" {
		fallback = nil
	}
	logger, closeLog, err := newLogger(cfg, fallback)
	if err != nil {
		return err
	}
	defer closeLog()

	reg, err := loadSurvey(args[0], logger)
	if err != nil {
		return err
	}

	tw, err := openTrace(traceDir, reg.Meta().Name)
	if err != nil {
		return err
	}
	defer tw.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var snap engine.Snapshot
	switch ui {
	case "tui":
		snap, err = tui.Run(tui.Config{Registry: reg, Logger: logger, Trace: tw})
	case "prompt":
		snap, err = prompt.Run(ctx, reg, prompt.NewSurveyDriver(), prompt.Config{Logger: logger, Trace: tw})
	case "repl":
		var d *debugger.Debugger
		if d, err = debugger.New(reg, logger, tw); err == nil {
			err = d.Run(ctx)
			snap = d.Session().Snapshot()
		}
	}
	if err != nil {
		return err
	}

	if runOut != "" {
		if err := writeAnswers(runOut, reg.Meta().Name, snap); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "answers written to %s\n", runOut)
	}
	if !snap.Complete {
		return fmt.Errorf("survey ended on step %q before completion", snap.Step.ID)
	}
	return nil
}

// answersFile is the JSON document written by run --out.
type answersFile struct {
	Survey     string         `json:"survey"`
	Complete   bool           `json:"complete"`
	LastStep   string         `json:"last_step"`
	Answers    map[string]any `json:"answers"`
	FinishedAt time.Time      `json:"finished_at"`
}

func writeAnswers(path, survey string, snap engine.Snapshot) error {
	data, err := json.MarshalIndent(answersFile{
		Survey:     survey,
		Complete:   snap.Complete,
		LastStep:   snap.Step.ID,
		Answers:    snap.Answers,
		FinishedAt: time.Now().UTC(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write answers: %w", err)
	}
	return nil
}

// --- debug ---

var debugTrace string

var debugCmd = &cobra.Command{
	Use:   "debug [survey.yaml]",
	Short: "Launch the interactive debugger for a survey",
	Long: `Step through a survey in a REPL. The session runs on a manual clock:
timers fire only when you move time forward with 'wait'.`,
	Args: cobra.ExactArgs(1),
	RunE: runDebug,
}

func runDebug(cmd *cobra.Command, args []string) error {
	logger, closeLog, err := newLogger(cfg, os.Stderr)
	if err != nil {
		return err
	}
	defer closeLog()
	reg, err := loadSurvey(args[0], logger)
	if err != nil {
		return err
	}

	traceDir := cfg.TraceDir
	if cmd.Flags().Changed("trace") {
		traceDir = debugTrace
	}
	tw, err := openTrace(traceDir, reg.Meta().Name)
	if err != nil {
		return err
	}
	defer tw.Close()

	d, err := debugger.New(reg, logger, tw)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return d.Run(ctx)
}

// --- test ---

var (
	testScenario string
	testJSON     bool
	testFailFast bool
	testTrace    string
)

var testCmd = &cobra.Command{
	Use:   "test [survey.yaml...]",
	Short: "Run scenario tests for surveys",
	Long: `Discover scenarios for each survey and run them against a session
on a manual clock.

Scenarios are discovered by convention at:
  {survey-dir}/scenarios/{survey-name}/*.yaml
or, inside a project, {root}/{scenarios}/{survey-name}/*.yaml.

Exit codes:
  0 — all scenarios passed
  1 — at least one scenario failed
  2 — survey validation failed (no scenarios ran)`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTest,
}

func runTest(cmd *cobra.Command, args []string) error {
	logger, closeLog, err := newLogger(cfg, os.Stderr)
	if err != nil {
		return err
	}
	defer closeLog()

	traceDir := cfg.TraceDir
	if cmd.Flags().Changed("trace") {
		traceDir = testTrace
	}
	runner := &wtesting.Runner{Project: project, Logger: logger, TraceDir: traceDir}
	allPassed := true
	hasValidationError := false

	for _, ref := range args {
		path, err := resolveSurvey(ref)
		if err != nil {
			fmt.Fprintf(os.Stderr, "  ✗ %v\n", err)
			hasValidationError = true
			continue
		}

		var output *wtesting.TestOutput
		if testScenario != "" {
			var result *wtesting.TestResult
			if result, err = runner.RunScenario(path, testScenario); err == nil {
				output = singleOutput(path, result)
			}
		} else {
			output, err = runner.RunAll(path, testFailFast)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "  ✗ %s: %v\n", path, err)
			hasValidationError = true
			continue
		}

		if testJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			enc.Encode(output)
		} else {
			printTestOutput(os.Stdout, output)
		}

		if output.Summary.Failed > 0 || output.Summary.Errors > 0 {
			allPassed = false
		}
		if testFailFast && !allPassed {
			break
		}
	}

	if hasValidationError {
		os.Exit(2)
	}
	if !allPassed {
		os.Exit(1)
	}
	return nil
}

func singleOutput(path string, result *wtesting.TestResult) *wtesting.TestOutput {
	out := &wtesting.TestOutput{
		Survey:    filepath.Base(path),
		Scenarios: []wtesting.TestResult{*result},
		Summary:   wtesting.TestSummary{Total: 1},
	}
	switch result.Status {
	case "passed":
		out.Summary.Passed = 1
	case "failed":
		out.Summary.Failed = 1
	default:
		out.Summary.Errors = 1
	}
	return out
}

func printTestOutput(w io.Writer, output *wtesting.TestOutput) {
	fmt.Fprintf(w, "\n  %s\n", output.Survey)
	for _, s := range output.Scenarios {
		switch s.Status {
		case "passed":
			fmt.Fprintf(w, "    ✓ %-30s %dms\n", s.ScenarioName, s.DurationMs)
		case "failed":
			fmt.Fprintf(w, "    ✗ %-30s %dms\n", s.ScenarioName, s.DurationMs)
			for _, a := range s.Assertions {
				if !a.Passed {
					fmt.Fprintf(w, "        %s: %s\n", a.Type, a.Message)
				}
			}
		case "error":
			fmt.Fprintf(w, "    ✗ %-30s ERROR: %s\n", s.ScenarioName, s.Error)
		}
	}
	fmt.Fprintf(w, "\n  %d scenarios, %d passed, %d failed\n",
		output.Summary.Total, output.Summary.Passed, output.Summary.Failed)
	if output.Summary.Errors > 0 {
		fmt.Fprintf(w, "  %d errors\n", output.Summary.Errors)
	}
}

// --- diagram ---

var (
	diagramFormat string
	diagramOut    string
)

var diagramCmd = &cobra.Command{
	Use:   "diagram [survey.yaml]",
	Short: "Render a survey as a Mermaid or ASCII flow diagram",
	Args:  cobra.ExactArgs(1),
	RunE:  runDiagram,
}

func runDiagram(cmd *cobra.Command, args []string) error {
	path, err := resolveSurvey(args[0])
	if err != nil {
		return err
	}
	s, err := schema.LoadFile(path)
	if err != nil {
		return err
	}
	out, err := diagram.Generate(s, diagram.Format(strings.ToLower(diagramFormat)))
	if err != nil {
		return err
	}
	if diagramOut == "" {
		fmt.Print(out)
		return nil
	}
	return os.WriteFile(diagramOut, []byte(out), 0o644)
}

// --- schema ---

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Schema operations",
}

var schemaExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the survey JSON Schema to stdout",
	RunE:  runSchemaExport,
}

func runSchemaExport(cmd *cobra.Command, args []string) error {
	data, err := schema.GenerateJSONSchema()
	if err != nil {
		return fmt.Errorf("generate schema: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

// --- mcp ---

var mcpTrace string

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve wizard tools over MCP on stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		traceDir := cfg.TraceDir
		if cmd.Flags().Changed("trace") {
			traceDir = mcpTrace
		}
		// stdout carries the protocol; logs go to a file or nowhere.
		logger, closeLog, err := newLogger(cfg, nil)
		if err != nil {
			return err
		}
		defer closeLog()
		return serveMCP(logger, traceDir)
	},
}

func serveMCP(logger *slog.Logger, traceDir string) error {
	m := wmcp.NewManager(wmcp.ManagerConfig{Logger: logger, TraceDir: traceDir})
	defer m.Close()
	return server.ServeStdio(wmcp.NewServer(version, m))
}

// --- version ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("wizard %s (build: %s)\n", version, commit)
	},
}

func init() {
	runCmd.Flags().StringVar(&runUI, "ui", "tui", "Presentation: tui, repl, or prompt (overrides $WIZARD_UI)")
	runCmd.Flags().StringVar(&runOut, "out", "", "Write the final answers as JSON to this file")
	runCmd.Flags().StringVar(&runTrace, "trace", "", "Write a JSONL session trace to this directory (overrides $WIZARD_TRACE_DIR)")

	debugCmd.Flags().StringVar(&debugTrace, "trace", "", "Write a JSONL session trace to this directory")

	testCmd.Flags().StringVar(&testScenario, "scenario", "", "Run only the named scenario (default: all)")
	testCmd.Flags().BoolVar(&testJSON, "json", false, "Output results as structured JSON")
	testCmd.Flags().BoolVar(&testFailFast, "fail-fast", false, "Stop after first failure")
	testCmd.Flags().StringVar(&testTrace, "trace", "", "Write a JSONL trace per scenario to this directory")

	diagramCmd.Flags().StringVar(&diagramFormat, "format", "mermaid", "Diagram format: mermaid or ascii")
	diagramCmd.Flags().StringVar(&diagramOut, "out", "", "Write the diagram to this file instead of stdout")

	mcpCmd.Flags().StringVar(&mcpTrace, "trace", "", "Write a JSONL trace per session to this directory")

	schemaCmd.AddCommand(schemaExportCmd)

	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(debugCmd)
	rootCmd.AddCommand(testCmd)
	rootCmd.AddCommand(diagramCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(versionCmd)
}
