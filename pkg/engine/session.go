package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/ormasoftchile/wizard/pkg/trace"
)

var (
	ErrClosed           = errors.New("session closed")
	ErrUnknownAnswerKey = errors.New("unknown answer key")
	ErrAnswerKind       = errors.New("answer value kind mismatch")
	ErrUnknownOption    = errors.New("unknown option")
	ErrNoAnswerKey      = errors.New("step has no answer key")
)

// Timer reasons.
const (
	ReasonDelay    = "delay"    // info and section-header steps
	ReasonLoading  = "loading"  // simulated processing before results
	ReasonSelect   = "select"   // single selection on an auto-advance step
	ReasonDebounce = "debounce" // typing on an auto-advance short-text step
)

// Config configures a Session. The zero value is usable.
type Config struct {
	Clock  Clock
	Logger *slog.Logger
	Trace  *trace.Writer

	// OnChange is called with a fresh snapshot after every operation and
	// every timer fire, outside the session lock.
	OnChange func(Snapshot)

	// Zero delays fall back to the survey metadata, then to the package defaults.
	LoadingDelay  time.Duration
	SelectDelay   time.Duration
	DebounceDelay time.Duration
}

// Snapshot is the read-only state handed to presentation after each transition.
type Snapshot struct {
	Step           Descriptor     `json:"step"`
	Index          int            `json:"index"`
	Direction      Direction      `json:"direction"`
	Answers        map[string]any `json:"answers"`
	Progress       Progress       `json:"progress"`
	CanGoBack      bool           `json:"can_go_back"`
	Error          string         `json:"error,omitempty"`
	NextDisabled   bool           `json:"next_disabled"`
	Pending        bool           `json:"pending"`
	PendingReason  string         `json:"pending_reason,omitempty"`
	PendingDelay   time.Duration  `json:"pending_delay,omitempty"`
	Complete       bool           `json:"complete"`
	Section        string         `json:"section,omitempty"`
	ViewedSections []string       `json:"viewed_sections,omitempty"`
}

// Session is the state machine for one user working through one survey.
// All operations and timer fires are serialized by the session mutex.
type Session struct {
	mu    sync.Mutex
	reg   *Registry
	store *Store
	sched *Scheduler
	clock Clock
	log   *slog.Logger
	trace *trace.Writer

	onChange func(Snapshot)

	loadingDelay  time.Duration
	selectDelay   time.Duration
	debounceDelay time.Duration

	index   int
	dir     Direction
	errMsg  string
	closed  bool
	done    bool
	started time.Time

	viewedSteps    map[string]bool
	viewedSections []string
}

// New starts a session on reg at its first step.
func New(reg *Registry, cfg Config) (*Session, error) {
	if reg == nil || reg.Len() == 0 {
		return nil, fmt.Errorf("new session: %w: empty registry", ErrInvalidRegistry)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = RealClock()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	s := &Session{
		reg:           reg,
		store:         NewStore(),
		sched:         NewScheduler(clock),
		clock:         clock,
		log:           logger.With("survey", reg.meta.Name),
		trace:         cfg.Trace,
		onChange:      cfg.OnChange,
		loadingDelay:  firstDuration(cfg.LoadingDelay, reg.meta.LoadingDelay, DefaultLoadingDelay),
		selectDelay:   firstDuration(cfg.SelectDelay, reg.meta.SelectDelay, DefaultSelectDelay),
		debounceDelay: firstDuration(cfg.DebounceDelay, DefaultDebounceDelay),
		dir:           Forward,
		started:       clock.Now(),
		viewedSteps:   make(map[string]bool),
	}

	s.mu.Lock()
	s.trace.EmitSessionStart(reg.meta.Name, reg.Len())
	s.enter(0, Forward)
	s.mu.Unlock()
	return s, nil
}

func firstDuration(ds ...time.Duration) time.Duration {
	for _, d := range ds {
		if d > 0 {
			return d
		}
	}
	return 0
}

// Registry returns the registry the session runs on.
func (s *Session) Registry() *Registry { return s.reg }

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// do runs op under the lock and publishes the resulting snapshot.
func (s *Session) do(op func() error) (Snapshot, error) {
	s.mu.Lock()
	if s.closed {
		snap := s.snapshot()
		s.mu.Unlock()
		return snap, ErrClosed
	}
	err := op()
	snap := s.snapshot()
	s.mu.Unlock()
	s.notify(snap)
	return snap, err
}

func (s *Session) notify(snap Snapshot) {
	if s.onChange != nil {
		s.onChange(snap)
	}
}

// Advance validates the current step and moves to the next eligible step.
// A failed validation is reported in Snapshot.Error, not as an error.
func (s *Session) Advance() (Snapshot, error) {
	return s.do(s.advance)
}

// Retreat moves to the previous eligible step. It is a no-op on the first
// step and on loading and results.
func (s *Session) Retreat() (Snapshot, error) {
	return s.do(s.retreat)
}

// Answer stores a text, number or boolean value under key.
func (s *Session) Answer(key string, v Value) (Snapshot, error) {
	return s.do(func() error { return s.answer(key, v) })
}

// Select chooses optionID on the current step. Multi-selection and
// exclusivity come from the step and option definitions.
func (s *Session) Select(optionID string) (Snapshot, error) {
	return s.do(func() error { return s.selectOption(optionID) })
}

// ToggleConsent flips a boolean answer. An empty key means the current
// step's consent key.
func (s *Session) ToggleConsent(key string) (Snapshot, error) {
	return s.do(func() error { return s.toggleConsent(key) })
}

// Close cancels any pending timer and ends the session. Every later
// operation returns ErrClosed.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.closed = true
	s.sched.Cancel()
	s.trace.EmitSessionEnd(s.reg.steps[s.index].ID, s.done)
	s.log.Debug("session closed", "step", s.reg.steps[s.index].ID, "complete", s.done)
	return nil
}

func (s *Session) current() Descriptor { return s.reg.steps[s.index] }

// answerOf returns what validators see for d: the stored value, or an
// empty set for unanswered multi-selection steps.
func (s *Session) answerOf(d Descriptor) any {
	if d.AnswerKey == "" {
		return nil
	}
	if v, ok := s.store.Get(d.AnswerKey); ok {
		return v.Any()
	}
	if d.Kind.Multi() {
		return []string{}
	}
	return nil
}

func (s *Session) consentOf(d Descriptor) bool {
	if d.ConsentAnswerKey == "" {
		return true
	}
	v, _ := s.store.Get(d.ConsentAnswerKey)
	b, _ := v.(BoolValue)
	return bool(b)
}

func (s *Session) validate(d Descriptor) ValidationResult {
	return Validate(d, s.answerOf(d), s.consentOf(d), s.store.Snapshot())
}

func (s *Session) advance() error {
	d := s.current()
	if d.Kind == KindResults {
		return nil
	}
	s.errMsg = ""

	if res := s.validate(d); !res.OK {
		s.errMsg = res.Message
		s.trace.EmitValidationFailed(d.ID, res.Message)
		s.log.Debug("validation failed", "step", d.ID, "message", res.Message)
		return nil
	}

	if next, ok := FindEligible(s.reg, s.store.Snapshot(), s.index, +1); ok {
		s.enter(next, Forward)
		return nil
	}
	if d.Kind == KindEmail {
		return s.jump(KindLoading)
	}
	s.log.Debug("no eligible step ahead", "step", d.ID)
	return nil
}

func (s *Session) retreat() error {
	if s.index == 0 || s.current().Kind.Terminal() {
		return nil
	}
	s.errMsg = ""
	if prev, ok := FindEligible(s.reg, s.store.Snapshot(), s.index, -1); ok {
		s.enter(prev, Backward)
	}
	return nil
}

// jump moves to the step of kind k by identity, bypassing eligibility.
func (s *Session) jump(k Kind) error {
	i, ok := s.reg.IndexOfKind(k)
	if !ok {
		s.log.Error("force jump target missing", "kind", string(k), "step", s.current().ID)
		return fmt.Errorf("jump to %s: %w", k, ErrMissingTerminal)
	}
	s.enter(i, Forward)
	return nil
}

// enter commits the cursor to index and arms the timer the new step asks
// for. Transient steps entered backward, or re-entered forward after being
// viewed, are passed through in the direction of travel.
func (s *Session) enter(index int, dir Direction) {
	for {
		s.sched.Cancel()
		s.index, s.dir = index, dir
		d := s.reg.steps[index]
		s.trace.EmitStepEnter(d.ID, string(d.Kind), index, dir.String())

		if d.Kind.Transient() {
			seen := s.viewedSteps[d.ID]
			s.markViewed(d)
			if dir == Backward || seen {
				if next, ok := FindEligible(s.reg, s.store.Snapshot(), index, int(dir)); ok {
					s.log.Debug("passing through", "step", d.ID, "direction", dir.String())
					index = next
					continue
				}
			}
		}

		s.arm(d)
		if d.Kind == KindResults && !s.done {
			s.done = true
			s.trace.EmitSessionComplete(s.redactAll(s.store.Snapshot()), s.clock.Now().Sub(s.started))
			s.log.Info("survey complete", "answers", s.store.Len())
		}
		return
	}
}

func (s *Session) markViewed(d Descriptor) {
	s.viewedSteps[d.ID] = true
	if d.Kind == KindSectionHeader && d.Section != "" && !slices.Contains(s.viewedSections, d.Section) {
		s.viewedSections = append(s.viewedSections, d.Section)
	}
}

// arm schedules the step-entry timer for d, if it has one.
func (s *Session) arm(d Descriptor) {
	switch {
	case d.Kind == KindLoading:
		s.schedule(d, firstDuration(d.AutoAdvanceDelay, s.loadingDelay), ReasonLoading)
	case d.Kind.Transient() && d.AutoAdvanceDelay > 0:
		s.schedule(d, d.AutoAdvanceDelay, ReasonDelay)
	}
}

func (s *Session) schedule(d Descriptor, delay time.Duration, reason string) {
	gen := s.sched.Arm(delay, reason, s.fire)
	s.trace.EmitTimer(trace.EventTimerArmed, d.ID, reason, gen, delay)
	s.log.Debug("timer armed", "step", d.ID, "reason", reason, "delay", delay, "generation", gen)
}

// fire runs on the clock's goroutine when a timer elapses.
func (s *Session) fire(gen uint64) {
	s.mu.Lock()
	d := s.current()
	reason, ok := s.sched.Claim(gen)
	if s.closed || !ok {
		s.trace.EmitTimer(trace.EventTimerStale, d.ID, reason, gen, 0)
		s.log.Debug("stale timer ignored", "step", d.ID, "generation", gen)
		s.mu.Unlock()
		return
	}
	s.trace.EmitTimer(trace.EventTimerFired, d.ID, reason, gen, 0)
	s.log.Debug("timer fired", "step", d.ID, "reason", reason, "generation", gen)

	var err error
	if reason == ReasonLoading {
		err = s.jump(KindResults)
	} else {
		err = s.advance()
	}
	if err != nil {
		s.log.Error("timer transition failed", "step", d.ID, "error", err)
	}
	snap := s.snapshot()
	s.mu.Unlock()
	s.notify(snap)
}

func (s *Session) answer(key string, v Value) error {
	if v == nil {
		return fmt.Errorf("answer %q: %w: nil value", key, ErrAnswerKind)
	}
	kind, ok := s.reg.KeyKind(key)
	if !ok {
		return fmt.Errorf("answer %q: %w", key, ErrUnknownAnswerKey)
	}
	if v.Kind() != kind {
		return fmt.Errorf("answer %q: %w: got %s, want %s", key, ErrAnswerKind, v.Kind(), kind)
	}

	switch kind {
	case ValueScalar:
		s.store.SetScalar(key, v)
	case ValueBool:
		b, _ := v.Any().(bool)
		s.store.SetBoolean(key, b)
	case ValueSet:
		return fmt.Errorf("answer %q: %w: set answers change through Select", key, ErrAnswerKind)
	}
	s.errMsg = ""
	d := s.current()
	s.trace.EmitAnswer(d.ID, key, s.redact(v.Any()))

	if d.AutoAdvance && d.Kind == KindShortText && d.AnswerKey == key {
		s.schedule(d, s.debounceDelay, ReasonDebounce)
	}
	return nil
}

func (s *Session) selectOption(optionID string) error {
	d := s.current()
	if _, ok := d.Option(optionID); !ok {
		return fmt.Errorf("select %q on step %q: %w", optionID, d.ID, ErrUnknownOption)
	}

	if d.Kind.Multi() {
		s.store.ToggleMulti(d.AnswerKey, optionID, d.Options)
	} else {
		s.store.SetScalar(d.AnswerKey, TextValue(optionID))
	}
	s.errMsg = ""
	v, _ := s.store.Get(d.AnswerKey)
	s.trace.EmitAnswer(d.ID, d.AnswerKey, s.redact(v.Any()))

	if d.AutoAdvance && !d.Kind.Multi() {
		s.schedule(d, s.selectDelay, ReasonSelect)
	}
	return nil
}

func (s *Session) toggleConsent(key string) error {
	d := s.current()
	if key == "" {
		key = d.ConsentAnswerKey
		if key == "" {
			return fmt.Errorf("consent on step %q: %w", d.ID, ErrNoAnswerKey)
		}
	}
	kind, ok := s.reg.KeyKind(key)
	if !ok {
		return fmt.Errorf("consent %q: %w", key, ErrUnknownAnswerKey)
	}
	if kind != ValueBool {
		return fmt.Errorf("consent %q: %w: key holds %s values", key, ErrAnswerKind, kind)
	}
	v := s.store.ToggleBoolean(key)
	s.errMsg = ""
	s.trace.EmitAnswer(d.ID, key, v)
	return nil
}

// redact applies the survey's redaction rules to an answer bound for a trace.
func (s *Session) redact(v any) any {
	r := s.reg.meta.Redact
	if r == nil {
		return v
	}
	switch x := v.(type) {
	case string:
		return r(x)
	case []string:
		out := make([]string, len(x))
		for i, e := range x {
			out[i] = r(e)
		}
		return out
	}
	return v
}

func (s *Session) redactAll(answers map[string]any) map[string]any {
	if s.reg.meta.Redact == nil {
		return answers
	}
	out := make(map[string]any, len(answers))
	for k, v := range answers {
		out[k] = s.redact(v)
	}
	return out
}

func (s *Session) snapshot() Snapshot {
	d := s.current()
	answers := s.store.Snapshot()

	disabled := s.errMsg != ""
	if !disabled && (d.Validate != nil || d.ConsentAnswerKey != "") {
		disabled = !Validate(d, s.answerOf(d), s.consentOf(d), answers).OK
	}

	return Snapshot{
		Step:           d.clone(),
		Index:          s.index,
		Direction:      s.dir,
		Answers:        answers,
		Progress:       s.reg.Progress(d),
		CanGoBack:      !d.Kind.Terminal() && CanGoBack(s.reg, answers, s.index),
		Error:          s.errMsg,
		NextDisabled:   disabled,
		Pending:        s.sched.Pending(),
		PendingReason:  s.sched.Reason(),
		PendingDelay:   s.sched.Delay(),
		Complete:       d.Kind == KindResults,
		Section:        s.reg.SectionOf(s.index),
		ViewedSections: slices.Clone(s.viewedSections),
	}
}
