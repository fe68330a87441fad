package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ormasoftchile/wizard/pkg/engine"
	"github.com/ormasoftchile/wizard/pkg/trace"
)

// ErrUnknownSession is returned for a session ID the manager does not hold.
var ErrUnknownSession = errors.New("unknown session")

// DefaultMaxSessions bounds the number of concurrently open sessions.
const DefaultMaxSessions = 64

// ManagerConfig configures a Manager. The zero value is usable.
type ManagerConfig struct {
	Logger   *slog.Logger
	TraceDir string // when set, each session writes <id>.jsonl here

	// NewClock supplies the clock for each new session. Nil means the real clock.
	NewClock func() engine.Clock

	MaxSessions int
}

// Manager owns the sessions started through the MCP surface, keyed by ID.
type Manager struct {
	cfg ManagerConfig
	log *slog.Logger

	mu       sync.Mutex
	sessions map[string]*managed
	reserved int // slots held by Start calls still in progress
}

type managed struct {
	id      string
	path    string
	session *engine.Session
	trace   *trace.Writer
}

// NewManager returns an empty session manager.
func NewManager(cfg ManagerConfig) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = DefaultMaxSessions
	}
	return &Manager{cfg: cfg, log: logger, sessions: make(map[string]*managed)}
}

// Start loads the survey at path and opens a session on it.
func (m *Manager) Start(path string) (string, engine.Snapshot, error) {
	if err := m.reserve(); err != nil {
		return "", engine.Snapshot{}, err
	}
	id, sess, tw, err := m.open(path)
	m.mu.Lock()
	m.reserved--
	if err == nil {
		m.sessions[id] = &managed{id: id, path: path, session: sess, trace: tw}
	}
	m.mu.Unlock()
	if err != nil {
		return "", engine.Snapshot{}, err
	}
	m.log.Info("session started", "session", id, "survey", sess.Registry().Meta().Name)
	return id, sess.Snapshot(), nil
}

// reserve claims a session slot. The caller must give it back under m.mu.
func (m *Manager) reserve() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sessions)+m.reserved >= m.cfg.MaxSessions {
		return fmt.Errorf("session limit of %d reached", m.cfg.MaxSessions)
	}
	m.reserved++
	return nil
}

func (m *Manager) open(path string) (string, *engine.Session, *trace.Writer, error) {
	id := uuid.NewString()
	log := m.log.With("session", id)
	reg, err := engine.LoadFile(path, engine.WithLogger(log))
	if err != nil {
		return "", nil, nil, err
	}

	var tw *trace.Writer
	if m.cfg.TraceDir != "" {
		if err := os.MkdirAll(m.cfg.TraceDir, 0o755); err != nil {
			return "", nil, nil, fmt.Errorf("create trace dir: %w", err)
		}
		if tw, err = trace.NewFileWriter(filepath.Join(m.cfg.TraceDir, id+".jsonl"), id); err != nil {
			return "", nil, nil, err
		}
	}

	cfg := engine.Config{Logger: log, Trace: tw}
	if m.cfg.NewClock != nil {
		cfg.Clock = m.cfg.NewClock()
	}
	sess, err := engine.New(reg, cfg)
	if err != nil {
		tw.Close()
		return "", nil, nil, err
	}
	return id, sess, tw, nil
}

// Get returns the session with the given ID.
func (m *Manager) Get(id string) (*engine.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSession, id)
	}
	return s.session, nil
}

// End closes and forgets a session. It returns the final snapshot.
func (m *Manager) End(id string) (engine.Snapshot, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return engine.Snapshot{}, fmt.Errorf("%w: %q", ErrUnknownSession, id)
	}
	snap := s.session.Snapshot()
	s.session.Close()
	if err := s.trace.Close(); err != nil {
		m.log.Warn("close trace", "session", id, "error", err)
	}
	m.log.Info("session ended", "session", id, "complete", snap.Complete)
	return snap, nil
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close ends every open session.
func (m *Manager) Close() {
	m.mu.Lock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()
	for _, id := range ids {
		m.End(id)
	}
}

// sessionResult is the payload of every session tool.
type sessionResult struct {
	SessionID string `json:"session_id"`
	engine.Snapshot
}

func snapshotResult(id string, snap engine.Snapshot) *mcp.CallToolResult {
	data, err := json.MarshalIndent(sessionResult{SessionID: id, Snapshot: snap}, "", "  ")
	if err != nil {
		return errorResult(err.Error())
	}
	return textResult(string(data))
}

// HandleStart implements the wizard/session_start MCP tool.
func (m *Manager) HandleStart(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, _ := req.GetArguments()["path"].(string)
	if path == "" {
		return errorResult("path argument is required"), nil
	}
	id, snap, err := m.Start(path)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return snapshotResult(id, snap), nil
}

// withSession resolves the session_id argument and runs op on it.
func (m *Manager) withSession(req mcp.CallToolRequest, op func(*engine.Session, map[string]any) (engine.Snapshot, error)) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	id, _ := args["session_id"].(string)
	if id == "" {
		return errorResult("session_id argument is required"), nil
	}
	sess, err := m.Get(id)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	snap, err := op(sess, args)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return snapshotResult(id, snap), nil
}

// HandleAdvance implements the wizard/advance MCP tool.
func (m *Manager) HandleAdvance(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return m.withSession(req, func(s *engine.Session, _ map[string]any) (engine.Snapshot, error) {
		return s.Advance()
	})
}

// HandleRetreat implements the wizard/retreat MCP tool.
func (m *Manager) HandleRetreat(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return m.withSession(req, func(s *engine.Session, _ map[string]any) (engine.Snapshot, error) {
		return s.Retreat()
	})
}

// HandleAnswer implements the wizard/answer MCP tool.
func (m *Manager) HandleAnswer(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return m.withSession(req, func(s *engine.Session, args map[string]any) (engine.Snapshot, error) {
		value, ok := args["value"].(string)
		if !ok {
			return engine.Snapshot{}, fmt.Errorf("value argument is required")
		}
		key, _ := args["key"].(string)
		if key == "" {
			key = s.Snapshot().Step.AnswerKey
			if key == "" {
				return engine.Snapshot{}, engine.ErrNoAnswerKey
			}
		}
		var v engine.Value = engine.TextValue(value)
		if kind, ok := s.Registry().KeyKind(key); ok && kind == engine.ValueBool {
			b, err := strconv.ParseBool(value)
			if err != nil {
				return engine.Snapshot{}, fmt.Errorf("answer %q holds booleans: %w", key, err)
			}
			v = engine.BoolValue(b)
		}
		return s.Answer(key, v)
	})
}

// HandleSelect implements the wizard/select MCP tool.
func (m *Manager) HandleSelect(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return m.withSession(req, func(s *engine.Session, args map[string]any) (engine.Snapshot, error) {
		option, _ := args["option"].(string)
		if option == "" {
			return engine.Snapshot{}, fmt.Errorf("option argument is required")
		}
		return s.Select(option)
	})
}

// HandleConsent implements the wizard/consent MCP tool.
func (m *Manager) HandleConsent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return m.withSession(req, func(s *engine.Session, args map[string]any) (engine.Snapshot, error) {
		key, _ := args["key"].(string)
		return s.ToggleConsent(key)
	})
}

// HandleState implements the wizard/state MCP tool.
func (m *Manager) HandleState(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return m.withSession(req, func(s *engine.Session, _ map[string]any) (engine.Snapshot, error) {
		return s.Snapshot(), nil
	})
}

// HandleEnd implements the wizard/session_end MCP tool.
func (m *Manager) HandleEnd(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, _ := req.GetArguments()["session_id"].(string)
	if id == "" {
		return errorResult("session_id argument is required"), nil
	}
	snap, err := m.End(id)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return snapshotResult(id, snap), nil
}
