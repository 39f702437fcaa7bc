// Package session drives the authorization lifecycle and exposes the client
// core to the application.
package session

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/danhigham/tgcore/internal/domain"
	"github.com/danhigham/tgcore/internal/queue"
	"github.com/danhigham/tgcore/internal/rpc"
)

// Engine is the part of rpc.Engine the state machine needs.
type Engine interface {
	Submit(ctx context.Context, req domain.Request) (*rpc.Future, error)
	Call(ctx context.Context, req domain.Request) (domain.Result, error)
}

// MachineConfig carries what the machine answers the backend with.
type MachineConfig struct {
	Parameters    domain.SetParameters
	EncryptionKey []byte
	// PhoneNumber, if set, is sent as soon as the backend asks for one.
	PhoneNumber string

	OnReady  func() // called once, the first time the session becomes ready
	OnClosed func() // called once, when the backend reports it is closed
}

// Machine is the authorization state machine. Transitions happen only in
// response to backend notifications, or when a request the machine issued on
// its own is rejected.
type Machine struct {
	engine Engine
	cfg    MachineConfig
	logger *zap.Logger

	mu           sync.Mutex
	state        domain.AuthState
	pendingPhone string
	readyFired   bool
	closedFired  bool
	observers    map[*queue.Queue[domain.AuthState]]struct{}
	done         bool
}

func NewMachine(engine Engine, cfg MachineConfig, logger *zap.Logger) *Machine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Machine{
		engine:       engine,
		cfg:          cfg,
		logger:       logger.Named("session"),
		state:        domain.StateOf(domain.AuthUninitialized),
		pendingPhone: strings.TrimSpace(cfg.PhoneNumber),
		observers:    make(map[*queue.Queue[domain.AuthState]]struct{}),
	}
}

// OnAuthorizationUpdate applies one backend notification. It never waits for
// backend responses, so it is safe to call from the goroutine that delivers
// them.
func (m *Machine) OnAuthorizationUpdate(phase domain.AuthPhase) {
	m.mu.Lock()
	cur := m.state
	next := cur
	var (
		issue      domain.Request
		fireReady  bool
		fireClosed bool
	)

	switch phase {
	case domain.PhaseWaitParameters:
		if cur.Kind != domain.AuthUninitialized {
			m.mu.Unlock()
			m.ignore(phase, cur)
			return
		}
		issue = m.cfg.Parameters

	case domain.PhaseWaitEncryptionKey:
		if cur.Kind != domain.AuthUninitialized {
			m.mu.Unlock()
			m.ignore(phase, cur)
			return
		}
		issue = domain.CheckEncryptionKey{Key: m.cfg.EncryptionKey}

	case domain.PhaseWaitPhoneNumber:
		if !cur.Live() {
			m.mu.Unlock()
			m.ignore(phase, cur)
			return
		}
		if m.pendingPhone != "" {
			issue = domain.SetPhoneNumber{PhoneNumber: m.pendingPhone}
			m.pendingPhone = ""
		}
		next = domain.StateOf(domain.AuthAwaitingPhoneNumber)

	case domain.PhaseWaitCode:
		if !cur.Live() {
			m.mu.Unlock()
			m.ignore(phase, cur)
			return
		}
		if cur.Kind != domain.AuthAwaitingPhoneNumber && cur.Kind != domain.AuthAwaitingCode {
			m.logger.Warn("unexpected transition", zap.Stringer("from", cur), zap.Stringer("phase", phase))
		}
		next = domain.StateOf(domain.AuthAwaitingCode)

	case domain.PhaseWaitPassword:
		if !cur.Live() {
			m.mu.Unlock()
			m.ignore(phase, cur)
			return
		}
		switch cur.Kind {
		case domain.AuthAwaitingPhoneNumber, domain.AuthAwaitingCode, domain.AuthAwaitingPassword:
		default:
			m.logger.Warn("unexpected transition", zap.Stringer("from", cur), zap.Stringer("phase", phase))
		}
		next = domain.StateOf(domain.AuthAwaitingPassword)

	case domain.PhaseReady:
		if !cur.Live() {
			m.mu.Unlock()
			m.ignore(phase, cur)
			return
		}
		next = domain.StateOf(domain.AuthReady)
		if !m.readyFired {
			m.readyFired = true
			fireReady = true
		}

	case domain.PhaseLoggingOut, domain.PhaseClosing, domain.PhaseClosed:
		if cur.Kind == domain.AuthClosed {
			m.mu.Unlock()
			m.ignore(phase, cur)
			return
		}
		switch phase {
		case domain.PhaseLoggingOut:
			next = domain.StateOf(domain.AuthLoggingOut)
		case domain.PhaseClosing:
			next = domain.StateOf(domain.AuthClosing)
		default:
			next = domain.StateOf(domain.AuthClosed)
			if !m.closedFired {
				m.closedFired = true
				fireClosed = true
			}
		}

	default:
		m.mu.Unlock()
		m.logger.Warn("unknown authorization phase", zap.Int("phase", int(phase)))
		return
	}

	if m.setLocked(next) {
		m.logger.Info("authorization state", zap.Stringer("from", cur), zap.Stringer("to", next))
	}
	m.mu.Unlock()

	if issue != nil {
		m.issue(issue)
	}
	if fireReady && m.cfg.OnReady != nil {
		m.cfg.OnReady()
	}
	if fireClosed && m.cfg.OnClosed != nil {
		m.cfg.OnClosed()
	}
}

func (m *Machine) ignore(phase domain.AuthPhase, cur domain.AuthState) {
	m.logger.Debug("ignore authorization update", zap.Stringer("phase", phase), zap.Stringer("state", cur))
}

// issue sends a request on the machine's own behalf. A rejection moves the
// session to Failed.
func (m *Machine) issue(req domain.Request) {
	f, err := m.engine.Submit(context.Background(), req)
	if err != nil {
		m.fail(req, err)
		return
	}
	go func() {
		if _, err := f.Wait(context.Background()); err != nil {
			m.fail(req, err)
		}
	}()
}

func (m *Machine) fail(req domain.Request, err error) {
	if errors.Is(err, domain.ErrCancelled) {
		m.logger.Debug("request cancelled", zap.String("kind", req.Kind()))
		return
	}

	reason := err.Error()
	var be *domain.BackendError
	if errors.As(err, &be) {
		reason = be.Message
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.state.Live() {
		return
	}
	next := domain.FailedState(fmt.Sprintf("%s: %s", req.Kind(), reason))
	m.logger.Error("authorization failed", zap.String("kind", req.Kind()), zap.Error(err))
	m.setLocked(next)
}

// setLocked records s and fans it out to observers. Callers hold m.mu.
func (m *Machine) setLocked(s domain.AuthState) bool {
	if s == m.state {
		return false
	}
	m.state = s
	for q := range m.observers {
		q.Push(s)
	}
	return true
}

// State returns the last recorded authorization state.
func (m *Machine) State() domain.AuthState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Observe subscribes to state changes recorded from now on. The subscription
// is taken when Observe is called; the returned sequence yields every later
// change in order and ends when ctx ends or the machine is closed.
func (m *Machine) Observe(ctx context.Context) iter.Seq[domain.AuthState] {
	q := queue.New[domain.AuthState]()

	m.mu.Lock()
	if m.done {
		q.Close()
	} else {
		m.observers[q] = struct{}{}
	}
	m.mu.Unlock()

	unsubscribe := func() {
		m.mu.Lock()
		delete(m.observers, q)
		m.mu.Unlock()
		q.Close()
	}
	stop := context.AfterFunc(ctx, unsubscribe)

	return func(yield func(domain.AuthState) bool) {
		defer func() {
			stop()
			unsubscribe()
		}()
		for {
			s, err := q.Next(ctx)
			if err != nil {
				return
			}
			if !yield(s) {
				return
			}
		}
	}
}

// SubmitPhoneNumber sends the phone number. Before the backend has asked for
// one, the number is held and sent on the backend's request instead.
func (m *Machine) SubmitPhoneNumber(ctx context.Context, phone string) error {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return fmt.Errorf("%w: empty phone number", domain.ErrInvalidInput)
	}

	m.mu.Lock()
	if m.state.Kind == domain.AuthUninitialized {
		m.pendingPhone = phone
		m.mu.Unlock()
		m.logger.Debug("phone number held until requested")
		return nil
	}
	m.mu.Unlock()

	_, err := m.engine.Call(ctx, domain.SetPhoneNumber{PhoneNumber: phone})
	return err
}

func (m *Machine) SubmitCode(ctx context.Context, code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return fmt.Errorf("%w: empty code", domain.ErrInvalidInput)
	}
	_, err := m.engine.Call(ctx, domain.CheckCode{Code: code})
	return err
}

func (m *Machine) SubmitPassword(ctx context.Context, password string) error {
	if password == "" {
		return fmt.Errorf("%w: empty password", domain.ErrInvalidInput)
	}
	_, err := m.engine.Call(ctx, domain.CheckPassword{Password: password})
	return err
}

// Close ends every observer sequence.
func (m *Machine) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.done {
		return
	}
	m.done = true
	for q := range m.observers {
		q.Close()
		delete(m.observers, q)
	}
}
