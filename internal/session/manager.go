package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/danhigham/tgcore/internal/dispatch"
	"github.com/danhigham/tgcore/internal/domain"
	"github.com/danhigham/tgcore/internal/rpc"
	"github.com/danhigham/tgcore/internal/state"
)

const defaultChatPageSize = 50

type Options struct {
	Parameters    domain.SetParameters
	EncryptionKey []byte
	PhoneNumber   string
	// ChatPageSize bounds the chat list loaded once the session is ready.
	ChatPageSize int
}

// Manager wires the correlation engine, update dispatcher, authorization
// state machine and chat registry together and is what the application
// talks to.
type Manager struct {
	id       string
	logger   *zap.Logger
	pageSize int

	engine     *rpc.Engine
	machine    *Machine
	dispatcher *dispatch.Dispatcher
	chats      *state.Registry

	ctx    context.Context // cancelled by Shutdown
	cancel context.CancelFunc

	mu           sync.Mutex
	transport    rpc.Transport
	onMessage    func(domain.Message)
	stopping     bool // set by Shutdown before it waits for loads
	releaseOnce  sync.Once
	shutdownOnce sync.Once
	loads        sync.WaitGroup
}

func NewManager(opts Options, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	id := uuid.NewString()
	logger = logger.With(zap.String("session", id))

	pageSize := opts.ChatPageSize
	if pageSize <= 0 {
		pageSize = defaultChatPageSize
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		id:       id,
		logger:   logger,
		pageSize: pageSize,
		engine:   rpc.New(logger),
		chats:    state.New(logger),
		ctx:      ctx,
		cancel:   cancel,
	}
	m.machine = NewMachine(m.engine, MachineConfig{
		Parameters:    opts.Parameters,
		EncryptionKey: opts.EncryptionKey,
		PhoneNumber:   opts.PhoneNumber,
		OnReady:       m.loadChats,
		OnClosed:      m.releaseTransport,
	}, logger)
	m.dispatcher = dispatch.New(m.engine, m.machine, logger)
	return m
}

// ID returns the random id tagging this manager's log lines.
func (m *Manager) ID() string { return m.id }

// Attach connects the backend transport. Requests fail with
// domain.ErrNotInitialized until it is called.
func (m *Manager) Attach(t rpc.Transport) {
	m.mu.Lock()
	m.transport = t
	m.mu.Unlock()
	m.engine.Attach(t)
}

// Ingest is the inbound entry point for every backend message.
func (m *Manager) Ingest(msg domain.Incoming) {
	m.dispatcher.OnMessage(msg)
}

// Run feeds generic updates into the chat registry until the update queue is
// closed by Shutdown or ctx ends.
func (m *Manager) Run(ctx context.Context) error {
	for {
		u, err := m.dispatcher.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		m.chats.Apply(u)
		if nm, ok := u.(domain.NewMessage); ok {
			m.mu.Lock()
			f := m.onMessage
			m.mu.Unlock()
			if f != nil {
				f(nm.Message)
			}
		}
	}
}

// SetMessageHandler installs f to be called from Run for every new message.
func (m *Manager) SetMessageHandler(f func(domain.Message)) {
	m.mu.Lock()
	m.onMessage = f
	m.mu.Unlock()
}

// Submit sends req and returns a handle for its response.
func (m *Manager) Submit(ctx context.Context, req domain.Request) (*rpc.Future, error) {
	return m.engine.Submit(ctx, req)
}

// Call sends req and waits for its response.
func (m *Manager) Call(ctx context.Context, req domain.Request) (domain.Result, error) {
	return m.engine.Call(ctx, req)
}

func (m *Manager) State() domain.AuthState { return m.machine.State() }

func (m *Manager) Observe(ctx context.Context) iter.Seq[domain.AuthState] {
	return m.machine.Observe(ctx)
}

func (m *Manager) SubmitPhoneNumber(ctx context.Context, phone string) error {
	return m.machine.SubmitPhoneNumber(ctx, phone)
}

func (m *Manager) SubmitCode(ctx context.Context, code string) error {
	return m.machine.SubmitCode(ctx, code)
}

func (m *Manager) SubmitPassword(ctx context.Context, password string) error {
	return m.machine.SubmitPassword(ctx, password)
}

// Chats returns a snapshot of the ordered chat list.
func (m *Manager) Chats() []domain.Chat { return m.chats.Snapshot() }

// Registry exposes the chat registry, mainly to install a change hook.
func (m *Manager) Registry() *state.Registry { return m.chats }

// SendMessage sends a text message to a chat and returns it as the backend
// recorded it.
func (m *Manager) SendMessage(ctx context.Context, chatID int64, text string) (domain.Message, error) {
	if strings.TrimSpace(text) == "" {
		return domain.Message{}, fmt.Errorf("%w: empty message", domain.ErrInvalidInput)
	}
	res, err := m.engine.Call(ctx, domain.SendMessage{ChatID: chatID, Text: text})
	if err != nil {
		return domain.Message{}, fmt.Errorf("send message: %w", err)
	}
	mr, ok := res.(domain.MessageResult)
	if !ok {
		return domain.Message{}, fmt.Errorf("send message: unexpected result %T", res)
	}
	return mr.Message, nil
}

// ChatHistory returns up to limit messages older than fromMessageID, oldest
// first. A zero fromMessageID starts at the newest message.
func (m *Manager) ChatHistory(ctx context.Context, chatID int64, fromMessageID, limit int) ([]domain.Message, error) {
	res, err := m.engine.Call(ctx, domain.GetChatHistory{ChatID: chatID, FromMessageID: fromMessageID, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("get history: %w", err)
	}
	msgs, ok := res.(domain.Messages)
	if !ok {
		return nil, fmt.Errorf("get history: unexpected result %T", res)
	}
	return msgs.Messages, nil
}

// LogOut asks the backend to terminate the session. The state moves through
// LoggingOut, Closing and Closed as the backend reports progress.
func (m *Manager) LogOut(ctx context.Context) error {
	if _, err := m.engine.Call(ctx, domain.LogOut{}); err != nil {
		return fmt.Errorf("log out: %w", err)
	}
	return nil
}

// Shutdown tears the session down: pending requests fail with
// domain.ErrCancelled, the transport is closed, then the update sequence and
// state observers end.
func (m *Manager) Shutdown() {
	m.shutdownOnce.Do(func() {
		m.logger.Info("shutting down")
		m.mu.Lock()
		m.stopping = true
		m.mu.Unlock()
		m.cancel()
		m.engine.Shutdown()
		m.releaseTransport()
		m.dispatcher.Close()
		m.machine.Close()
		m.loads.Wait()
	})
}

// loadChats runs once the session is ready. Losing the whole list fails the
// session; single chats that cannot be fetched are skipped by the registry.
func (m *Manager) loadChats() {
	m.mu.Lock()
	if m.stopping {
		m.mu.Unlock()
		return
	}
	m.loads.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.loads.Done()
		_, err := m.chats.Load(m.ctx, m.engine, m.pageSize)
		if err == nil || m.ctx.Err() != nil {
			return
		}
		m.logger.Error("failed to load chats", zap.Error(err))
		m.machine.fail(domain.LoadChats{Limit: m.pageSize}, err)
	}()
}

func (m *Manager) releaseTransport() {
	m.releaseOnce.Do(func() {
		m.mu.Lock()
		t := m.transport
		m.mu.Unlock()
		if t == nil {
			return
		}
		if err := t.Close(); err != nil {
			m.logger.Warn("close transport", zap.Error(err))
		}
	})
}
