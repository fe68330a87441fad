package trace

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeSession(t *testing.T) string {
	t.Helper()
	var buf bytes.Buffer
	tw := NewWriter(&buf, "s-1")
	tw.EmitSessionStart("checkup", 4)
	tw.EmitStepEnter("welcome", "welcome", 0, "forward")
	tw.EmitAnswer("age", "age", "34")
	tw.EmitSessionComplete(map[string]any{"age": "34"}, time.Second)
	tw.EmitSessionEnd("results", true)
	return buf.String()
}

func TestVerify_Intact(t *testing.T) {
	res, err := Verify(strings.NewReader(writeSession(t)))
	if err != nil {
		t.Fatal(err)
	}
	if !res.Valid {
		t.Fatalf("Valid = false: %s", res.Error)
	}
	if res.EventCount != 5 || res.BrokenAt != -1 {
		t.Errorf("EventCount = %d, BrokenAt = %d", res.EventCount, res.BrokenAt)
	}
	if res.SessionID != "s-1" || !res.Complete {
		t.Errorf("SessionID = %q, Complete = %v", res.SessionID, res.Complete)
	}
}

func TestVerify_Tampered(t *testing.T) {
	tampered := strings.Replace(writeSession(t), `"value":"34"`, `"value":"43"`, 1)
	res, err := Verify(strings.NewReader(tampered))
	if err != nil {
		t.Fatal(err)
	}
	if res.Valid {
		t.Fatal("Valid = true for tampered trace")
	}
	// The edited answer is event 3; event 4 carries its hash.
	if res.BrokenAt != 4 {
		t.Errorf("BrokenAt = %d, want 4", res.BrokenAt)
	}
	if !strings.Contains(res.Error, "prev_hash mismatch") {
		t.Errorf("Error = %q", res.Error)
	}
}

func TestVerify_DroppedEvent(t *testing.T) {
	lines := strings.Split(strings.TrimSpace(writeSession(t)), "\n")
	trimmed := strings.Join(append(lines[:1], lines[2:]...), "\n")
	res, err := Verify(strings.NewReader(trimmed))
	if err != nil {
		t.Fatal(err)
	}
	if res.Valid || res.BrokenAt != 2 {
		t.Errorf("Valid = %v, BrokenAt = %d, want broken at 2", res.Valid, res.BrokenAt)
	}
}

func TestVerify_InvalidJSON(t *testing.T) {
	res, err := Verify(strings.NewReader("not json\n"))
	if err != nil {
		t.Fatal(err)
	}
	if res.Valid || res.BrokenAt != 1 || !strings.Contains(res.Error, "invalid JSON") {
		t.Errorf("result = %+v", res)
	}
}

func TestVerify_Empty(t *testing.T) {
	res, err := Verify(strings.NewReader(""))
	if err != nil {
		t.Fatal(err)
	}
	if !res.Valid || res.EventCount != 0 {
		t.Errorf("result = %+v", res)
	}
}

func TestVerifyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.jsonl")
	tw, err := NewFileWriter(path, "s-2")
	if err != nil {
		t.Fatal(err)
	}
	tw.EmitSessionStart("checkup", 4)
	tw.EmitSessionEnd("welcome", false)
	tw.Close()

	res, err := VerifyFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Valid || res.EventCount != 2 || res.Complete {
		t.Errorf("result = %+v", res)
	}

	if _, err := VerifyFile(filepath.Join(t.TempDir(), "missing.jsonl")); err == nil {
		t.Error("expected error for missing file")
	}
}
