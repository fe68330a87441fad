package trace

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// VerifyResult is the outcome of verifying a trace file.
type VerifyResult struct {
	EventCount int
	Valid      bool
	BrokenAt   int // -1 if no break
	SessionID  string
	Complete   bool // trace ends with a completed session
	Error      string
}

// VerifyFile verifies the hash chain of a trace file.
func VerifyFile(path string) (*VerifyResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open trace file: %w", err)
	}
	defer f.Close()
	return Verify(f)
}

// Verify checks that every event's prev_hash matches the sha256 of the line
// before it. A broken chain is reported in the result, not as an error.
func Verify(r io.Reader) (*VerifyResult, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024) // 1MB max line

	expected := Genesis
	res := &VerifyResult{BrokenAt: -1}
	broken := func(format string, args ...any) (*VerifyResult, error) {
		res.BrokenAt = res.EventCount
		res.Error = fmt.Sprintf("event %d: ", res.EventCount) + fmt.Sprintf(format, args...)
		return res, nil
	}

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		res.EventCount++

		var evt Event
		if err := json.Unmarshal(line, &evt); err != nil {
			return broken("invalid JSON: %v", err)
		}
		if evt.PrevHash != expected {
			return broken("prev_hash mismatch (expected %s, got %s)", short(expected), short(evt.PrevHash))
		}
		if res.SessionID == "" {
			res.SessionID = evt.SessionID
		} else if evt.SessionID != res.SessionID {
			return broken("session_id %q differs from %q", evt.SessionID, res.SessionID)
		}
		if evt.Type == EventSessionComplete {
			res.Complete = true
		}

		h := sha256.Sum256(line)
		expected = hex.EncodeToString(h[:])
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read trace: %w", err)
	}

	res.Valid = true
	return res, nil
}

func short(hash string) string {
	if len(hash) > 16 {
		return hash[:16] + "..."
	}
	return hash
}
