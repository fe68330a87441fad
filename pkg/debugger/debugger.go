// Package debugger implements the interactive REPL debugger for surveys.
package debugger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/ormasoftchile/wizard/pkg/engine"
	wtesting "github.com/ormasoftchile/wizard/pkg/testing"
	"github.com/ormasoftchile/wizard/pkg/trace"
)

// Debugger provides an interactive REPL for stepping through a survey
// session. The session runs on a manual clock: timers only fire when the
// user moves time forward with wait. Every successful command is recorded
// so the session can be saved as a test scenario.
type Debugger struct {
	reg     *engine.Registry
	session *engine.Session
	clock   *engine.ManualClock
	output  io.Writer
	rl      *readline.Instance
	rec     *wtesting.Recorder
}

// New creates a debugger with a fresh session on reg.
func New(reg *engine.Registry, logger *slog.Logger, tw *trace.Writer) (*Debugger, error) {
	d := &Debugger{
		reg:    reg,
		clock:  engine.NewManualClock(time.Now()),
		output: os.Stdout,
		rec:    wtesting.NewRecorder(),
	}
	sess, err := engine.New(reg, engine.Config{
		Clock:    d.clock,
		Logger:   logger,
		Trace:    tw,
		OnChange: d.rec.Observe,
	})
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	d.session = sess
	d.rec.Observe(sess.Snapshot())
	return d, nil
}

// SetOutput redirects command output.
func (d *Debugger) SetOutput(w io.Writer) { d.output = w }

// Session returns the underlying session.
func (d *Debugger) Session() *engine.Session { return d.session }

var commands = []string{"next", "back", "answer", "set", "select", "consent", "wait",
	"timers", "state", "print answers", "history", "steps", "eval", "save", "help", "quit"}

// Run starts the interactive REPL loop.
func (d *Debugger) Run(ctx context.Context) error {
	completer := readline.NewPrefixCompleter()
	for _, cmd := range commands {
		completer.Children = append(completer.Children, readline.PcItem(cmd))
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          d.buildPrompt(),
		AutoComplete:    completer,
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		return fmt.Errorf("init readline: %w", err)
	}
	d.rl = rl
	defer rl.Close()
	defer d.session.Close()

	fmt.Fprintf(d.output, "wizard debugger: %s, %d steps\n", d.reg.Meta().Name, d.reg.Len())
	fmt.Fprintf(d.output, "Type 'help' for available commands, 'next' to advance.\n\n")
	d.handleState()

	for {
		if ctx.Err() != nil {
			return nil
		}
		rl.SetPrompt(d.buildPrompt())
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				return nil
			}
			return err
		}
		if d.Execute(line) {
			return nil
		}
	}
}

// Execute runs one command line. It reports true when the user quit.
func (d *Debugger) Execute(line string) (quit bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	parts := strings.Fields(line)
	cmd, rest := parts[0], strings.TrimSpace(strings.TrimPrefix(line, parts[0]))

	var err error
	switch cmd {
	case "next", "n":
		err = d.handleNext()
	case "back", "b":
		err = d.handleBack()
	case "answer", "a":
		err = d.handleAnswer("", rest)
	case "set":
		if len(parts) < 3 {
			fmt.Fprintf(d.output, "Usage: set <key> <value>\n")
			return false
		}
		err = d.handleAnswer(parts[1], strings.TrimSpace(strings.TrimPrefix(rest, parts[1])))
	case "select", "s":
		err = d.handleSelect(parts[1:])
	case "consent", "c":
		err = d.handleConsent(parts[1:])
	case "wait", "w":
		err = d.handleWait(parts[1:])
	case "timers", "t":
		d.handleTimers()
	case "state", "st":
		d.handleState()
	case "print", "p":
		d.handlePrint(parts)
	case "history", "h":
		d.handleHistory()
	case "steps", "ls":
		d.handleSteps()
	case "eval", "e":
		d.handleEval(rest)
	case "save":
		err = d.handleSave(rest)
	case "help", "?":
		d.handleHelp()
	case "quit", "q":
		fmt.Fprintf(d.output, "Exiting debugger.\n")
		return true
	default:
		fmt.Fprintf(d.output, "Unknown command: %q. Type 'help' for available commands.\n", cmd)
	}
	if err != nil {
		fmt.Fprintf(d.output, "Error: %v\n", err)
	}
	return false
}

// buildPrompt creates the prompt string: wizard[position/total | step_id]>
func (d *Debugger) buildPrompt() string {
	snap := d.session.Snapshot()
	if snap.Complete {
		return "wizard[done]> "
	}
	if p := snap.Progress; p.Position > 0 {
		return fmt.Sprintf("wizard[%d/%d | %s]> ", p.Position, p.Total, snap.Step.ID)
	}
	return fmt.Sprintf("wizard[%s]> ", snap.Step.ID)
}
