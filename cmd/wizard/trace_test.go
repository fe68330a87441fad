package main

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ormasoftchile/wizard/pkg/trace"
)

func TestPrintVerify_Valid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.jsonl")
	tw, err := trace.NewFileWriter(path, "s-9")
	if err != nil {
		t.Fatal(err)
	}
	tw.EmitSessionStart("checkup", 4)
	tw.EmitSessionComplete(map[string]any{}, time.Second)
	tw.Close()

	result, err := trace.VerifyFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := printVerify(&buf, result); err != nil {
		t.Fatalf("printVerify = %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "✓ Chain integrity: 2 events") {
		t.Errorf("output = %q", out)
	}
	if !strings.Contains(out, "session s-9 (complete)") {
		t.Errorf("output = %q, want session line", out)
	}
}

func TestPrintVerify_Broken(t *testing.T) {
	var buf bytes.Buffer
	err := printVerify(&buf, &trace.VerifyResult{BrokenAt: 3, Error: "event 3: prev_hash mismatch"})
	if !errors.Is(err, errChainBroken) {
		t.Fatalf("err = %v, want errChainBroken", err)
	}
	if !strings.Contains(buf.String(), "✗ Chain broken at event 3") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestPrintEvents(t *testing.T) {
	ts := time.Date(2025, 1, 2, 10, 30, 0, 0, time.UTC)
	var buf bytes.Buffer
	printEvents(&buf, []trace.Event{
		{Type: trace.EventAnswer, Timestamp: ts, Data: map[string]any{"value": "34", "key": "age"}},
	})
	want := "10:30:00.000  answer             key=age value=34\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
}
