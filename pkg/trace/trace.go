// Package trace implements the append-only JSONL audit trail of a survey session.
package trace

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Genesis is the prev_hash of the first event in every trace.
var Genesis = strings.Repeat("0", 64)

// EventType enumerates all session trace event types.
type EventType string

const (
	EventSessionStart     EventType = "session_start"
	EventStepEnter        EventType = "step_enter"
	EventAnswer           EventType = "answer"
	EventValidationFailed EventType = "validation_failed"
	EventTimerArmed       EventType = "timer_armed"
	EventTimerFired       EventType = "timer_fired"
	EventTimerStale       EventType = "timer_stale"
	EventSessionComplete  EventType = "session_complete"
	EventSessionEnd       EventType = "session_end"
)

// Event is a single trace event written to the JSONL stream.
type Event struct {
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	SessionID string         `json:"session_id"`
	Data      map[string]any `json:"data,omitempty"`
	PrevHash  string         `json:"prev_hash"` // sha256 of the previous JSONL line
}

// Writer writes trace events to an append-only JSONL stream.
// A nil *Writer discards every event.
type Writer struct {
	mu        sync.Mutex
	w         io.Writer
	sessionID string
	prevHash  string
	now       func() time.Time
}

// NewWriter creates a trace writer that writes to the given io.Writer.
func NewWriter(w io.Writer, sessionID string) *Writer {
	return &Writer{
		w:         w,
		sessionID: sessionID,
		prevHash:  Genesis,
		now:       time.Now,
	}
}

// NewFileWriter creates a trace writer on a fresh JSONL file. An existing
// file is truncated so the file holds a single hash chain.
func NewFileWriter(path, sessionID string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open trace file: %w", err)
	}
	return NewWriter(f, sessionID), nil
}

// SessionID returns the session the writer stamps on every event.
func (tw *Writer) SessionID() string {
	if tw == nil {
		return ""
	}
	return tw.sessionID
}

// Close closes the underlying stream when it is closable.
func (tw *Writer) Close() error {
	if tw == nil {
		return nil
	}
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if c, ok := tw.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Emit writes a single trace event.
func (tw *Writer) Emit(eventType EventType, data map[string]any) error {
	if tw == nil {
		return nil
	}
	tw.mu.Lock()
	defer tw.mu.Unlock()

	evt := Event{
		Type:      eventType,
		Timestamp: tw.now().UTC(),
		SessionID: tw.sessionID,
		Data:      data,
		PrevHash:  tw.prevHash,
	}
	line, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", eventType, err)
	}
	h := sha256.Sum256(line)
	if _, err := tw.w.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write %s event: %w", eventType, err)
	}
	tw.prevHash = hex.EncodeToString(h[:])
	return nil
}

// EmitSessionStart emits a session_start event.
func (tw *Writer) EmitSessionStart(survey string, steps int) error {
	return tw.Emit(EventSessionStart, map[string]any{
		"survey": survey,
		"steps":  steps,
	})
}

// EmitStepEnter emits a step_enter event.
func (tw *Writer) EmitStepEnter(stepID, kind string, index int, direction string) error {
	return tw.Emit(EventStepEnter, map[string]any{
		"step_id":   stepID,
		"kind":      kind,
		"index":     index,
		"direction": direction,
	})
}

// EmitAnswer emits an answer event.
func (tw *Writer) EmitAnswer(stepID, key string, value any) error {
	return tw.Emit(EventAnswer, map[string]any{
		"step_id": stepID,
		"key":     key,
		"value":   value,
	})
}

// EmitValidationFailed emits a validation_failed event.
func (tw *Writer) EmitValidationFailed(stepID, message string) error {
	return tw.Emit(EventValidationFailed, map[string]any{
		"step_id": stepID,
		"message": message,
	})
}

// EmitTimer emits one of the timer_* events.
func (tw *Writer) EmitTimer(eventType EventType, stepID, reason string, generation uint64, delay time.Duration) error {
	data := map[string]any{
		"step_id":    stepID,
		"reason":     reason,
		"generation": generation,
	}
	if delay > 0 {
		data["delay"] = delay.String()
	}
	return tw.Emit(eventType, data)
}

// EmitSessionComplete emits a session_complete event carrying the final answers.
func (tw *Writer) EmitSessionComplete(answers map[string]any, duration time.Duration) error {
	return tw.Emit(EventSessionComplete, map[string]any{
		"answers":  answers,
		"duration": duration.String(),
	})
}

// EmitSessionEnd emits a session_end event.
func (tw *Writer) EmitSessionEnd(lastStep string, complete bool) error {
	return tw.Emit(EventSessionEnd, map[string]any{
		"last_step": lastStep,
		"complete":  complete,
	})
}

// ReadFile reads every event from a JSONL trace file.
func ReadFile(path string) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open trace file: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Read decodes a JSONL trace stream. Blank lines are skipped.
func Read(r io.Reader) ([]Event, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024) // 1MB max line

	var events []Event
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var evt Event
		if err := json.Unmarshal(raw, &evt); err != nil {
			return events, fmt.Errorf("event %d: invalid JSON: %w", line, err)
		}
		events = append(events, evt)
	}
	if err := scanner.Err(); err != nil {
		return events, fmt.Errorf("read trace: %w", err)
	}
	return events, nil
}
