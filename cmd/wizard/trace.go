package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/wizard/pkg/trace"
)

var errChainBroken = errors.New("chain verification failed")

var traceCmd = &cobra.Command{
	Use:   "trace",
	Short: "Trace file operations",
}

var traceVerifyCmd = &cobra.Command{
	Use:   "verify [trace.jsonl]",
	Short: "Verify trace file integrity (hash chain)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := trace.VerifyFile(args[0])
		if err != nil {
			return err
		}
		return printVerify(os.Stdout, result)
	},
}

var traceShowCmd = &cobra.Command{
	Use:   "show [trace.jsonl]",
	Short: "Print a session trace one event per line",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		events, err := trace.ReadFile(args[0])
		if err != nil {
			return err
		}
		printEvents(os.Stdout, events)
		return nil
	},
}

func printVerify(w io.Writer, result *trace.VerifyResult) error {
	if !result.Valid {
		fmt.Fprintf(w, "✗ Chain broken at event %d\n", result.BrokenAt)
		if result.Error != "" {
			fmt.Fprintf(w, "  %s\n", result.Error)
		}
		return errChainBroken
	}
	fmt.Fprintf(w, "✓ Chain integrity: %d events, no breaks\n", result.EventCount)
	if result.SessionID != "" {
		state := "incomplete"
		if result.Complete {
			state = "complete"
		}
		fmt.Fprintf(w, "  session %s (%s)\n", result.SessionID, state)
	}
	return nil
}

func printEvents(w io.Writer, events []trace.Event) {
	for _, evt := range events {
		keys := make([]string, 0, len(evt.Data))
		for k := range evt.Data {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%v", k, evt.Data[k]))
		}
		fmt.Fprintf(w, "%s  %-18s %s\n", evt.Timestamp.Format("15:04:05.000"), evt.Type, strings.Join(parts, " "))
	}
}

func init() {
	traceCmd.AddCommand(traceVerifyCmd)
	traceCmd.AddCommand(traceShowCmd)
	rootCmd.AddCommand(traceCmd)
}
