// Package telegram implements the client core's backend on top of gotd/td.
// Requests arrive through Send and are answered, in order, with correlated
// responses; authorization progress and chat changes are pushed as
// notifications.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/message"
	"github.com/gotd/td/telegram/updates"
	"github.com/gotd/td/tg"

	"github.com/danhigham/tgcore/internal/domain"
	"github.com/danhigham/tgcore/internal/queue"
)

// errStopped ends Run without an error once the backend is closed.
var errStopped = errors.New("backend stopped")

type job struct {
	id  int64
	req domain.Request
}

// Backend talks MTProto through gotd. It implements rpc.Transport.
type Backend struct {
	sink   func(domain.Incoming)
	logger *zap.Logger
	jobs   *queue.Queue[job]

	// Owned by the Run goroutine.
	client   *telegram.Client
	api      *tg.Client
	sender   *message.Sender
	phone    string
	codeHash string
	closed   bool // Closed has been reported

	// self is written once before updates start flowing.
	self *tg.User

	mu    sync.Mutex
	peers map[int64]tg.InputPeerClass
	chats map[int64]domain.Chat
}

// NewBackend returns a backend that delivers every response and notification
// to sink. sink may be called from more than one goroutine.
func NewBackend(sink func(domain.Incoming), logger *zap.Logger) *Backend {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Backend{
		sink:   sink,
		logger: logger.Named("telegram"),
		jobs:   queue.New[job](),
		peers:  make(map[int64]tg.InputPeerClass),
		chats:  make(map[int64]domain.Chat),
	}
}

// Send queues a request. It never blocks on the network.
func (b *Backend) Send(ctx context.Context, id int64, req domain.Request) error {
	if !b.jobs.Push(job{id: id, req: req}) {
		return fmt.Errorf("%s: backend closed", req.Kind())
	}
	return nil
}

// Close stops request processing. Run returns once the current request is
// done.
func (b *Backend) Close() error {
	b.jobs.Close()
	return nil
}

// Run drives the backend until ctx ends or the backend is closed. It first
// asks for parameters and the encryption key, then connects.
func (b *Backend) Run(ctx context.Context) error {
	defer b.stop()

	b.phase(domain.PhaseWaitParameters)
	params, err := b.awaitParameters(ctx)
	if errors.Is(err, errStopped) {
		return nil
	}
	if err != nil {
		return err
	}

	dir := params.DatabaseDirectory
	if dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create database directory: %w", err)
		}
	}

	dispatcher := tg.NewUpdateDispatcher()
	b.registerHandlers(dispatcher)
	gaps := updates.New(updates.Config{
		Handler: dispatcher,
		Logger:  b.logger.Named("gaps"),
	})

	b.client = telegram.NewClient(params.APIID, params.APIHash, telegram.Options{
		Logger:         b.logger.Named("mtproto"),
		UpdateHandler:  gaps,
		SessionStorage: &session.FileStorage{Path: filepath.Join(dir, "session.json")},
		Device: telegram.DeviceConfig{
			DeviceModel:    params.DeviceModel,
			SystemLangCode: params.SystemLanguageCode,
			AppVersion:     params.ApplicationVersion,
		},
	})

	err = b.client.Run(ctx, func(ctx context.Context) error {
		return b.serve(ctx, gaps)
	})
	if errors.Is(err, errStopped) || ctx.Err() != nil {
		return nil
	}
	return err
}

// awaitParameters answers requests until the backend has both its parameters
// and the encryption key.
func (b *Backend) awaitParameters(ctx context.Context) (domain.SetParameters, error) {
	var params domain.SetParameters
	for {
		j, err := b.jobs.Next(ctx)
		if errors.Is(err, io.EOF) {
			return params, errStopped
		}
		if err != nil {
			return params, err
		}

		switch req := j.req.(type) {
		case domain.SetParameters:
			if req.APIID == 0 || req.APIHash == "" {
				b.reply(j.id, nil, rejected(400, "API_ID_INVALID"))
				continue
			}
			params = req
			b.reply(j.id, domain.OK{}, nil)
			b.phase(domain.PhaseWaitEncryptionKey)
		case domain.CheckEncryptionKey:
			if params.APIID == 0 {
				b.reply(j.id, nil, rejected(400, "PARAMETERS_REQUIRED"))
				continue
			}
			// The session file is not encrypted; any key is accepted.
			b.reply(j.id, domain.OK{}, nil)
			return params, nil
		case domain.Close:
			b.closeSession(j.id)
			return params, errStopped
		default:
			b.reply(j.id, nil, rejected(401, "UNAUTHORIZED"))
		}
	}
}

// serve runs inside the connected client and processes requests one at a
// time.
func (b *Backend) serve(ctx context.Context, gaps *updates.Manager) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	b.api = b.client.API()
	b.sender = message.NewSender(b.api)

	status, err := b.client.Auth().Status(ctx)
	if err != nil {
		return fmt.Errorf("auth status: %w", err)
	}
	if status.Authorized {
		if err := b.ready(ctx, gaps); err != nil {
			return err
		}
	} else {
		b.phase(domain.PhaseWaitPhoneNumber)
	}

	for {
		j, err := b.jobs.Next(ctx)
		if errors.Is(err, io.EOF) {
			return errStopped
		}
		if err != nil {
			return err
		}
		if err := b.handle(ctx, j, gaps); err != nil {
			return err
		}
	}
}

func (b *Backend) handle(ctx context.Context, j job, gaps *updates.Manager) error {
	var (
		res  domain.Result
		next domain.AuthPhase
		err  error
	)
	switch req := j.req.(type) {
	case domain.SetPhoneNumber:
		next, err = b.setPhoneNumber(ctx, req.PhoneNumber)
	case domain.CheckCode:
		next, err = b.checkCode(ctx, req.Code)
	case domain.CheckPassword:
		next, err = b.checkPassword(ctx, req.Password)
	case domain.LoadChats:
		res, err = b.loadChats(ctx, req.Limit)
	case domain.GetChat:
		res, err = b.getChat(req.ChatID)
	case domain.GetChatHistory:
		res, err = b.chatHistory(ctx, req)
	case domain.SendMessage:
		res, err = b.sendMessage(ctx, req)
	case domain.LogOut:
		b.phase(domain.PhaseLoggingOut)
		if _, err := b.api.AuthLogOut(ctx); err != nil {
			b.logger.Warn("log out", zap.Error(err))
		}
		b.closeSession(j.id)
		return errStopped
	case domain.Close:
		b.closeSession(j.id)
		return errStopped
	case domain.SetParameters, domain.CheckEncryptionKey:
		err = rejected(400, "ALREADY_INITIALIZED")
	default:
		err = rejected(400, "METHOD_NOT_SUPPORTED")
	}

	b.reply(j.id, res, err)
	if err != nil {
		return nil
	}
	switch next {
	case 0:
	case domain.PhaseReady:
		return b.ready(ctx, gaps)
	default:
		b.phase(next)
	}
	return nil
}

// ready starts update delivery and reports the session as usable.
func (b *Backend) ready(ctx context.Context, gaps *updates.Manager) error {
	self, err := b.client.Self(ctx)
	if err != nil {
		return fmt.Errorf("get self: %w", err)
	}
	b.self = self

	go func() {
		if err := gaps.Run(ctx, b.api, self.ID, updates.AuthOptions{}); err != nil && ctx.Err() == nil {
			b.logger.Error("updates stopped", zap.Error(err))
		}
	}()

	b.logger.Info("signed in", zap.Int64("user_id", self.ID))
	b.phase(domain.PhaseReady)
	return nil
}

// stop rejects whatever is still queued and reports the backend closed.
func (b *Backend) stop() {
	b.jobs.Close()
	for {
		j, err := b.jobs.Next(context.Background())
		if err != nil {
			break
		}
		b.reply(j.id, nil, rejected(500, "CLOSED"))
	}
	if !b.closed {
		b.phase(domain.PhaseClosed)
	}
}

func (b *Backend) closeSession(id int64) {
	b.phase(domain.PhaseClosing)
	b.reply(id, domain.OK{}, nil)
	b.phase(domain.PhaseClosed)
	b.closed = true
}

func (b *Backend) phase(p domain.AuthPhase) {
	b.logger.Debug("authorization phase", zap.Stringer("phase", p))
	b.sink(domain.AuthorizationUpdate{Phase: p})
}

func (b *Backend) emit(u domain.Update) {
	b.sink(u)
}

func (b *Backend) reply(id int64, res domain.Result, err error) {
	if err != nil {
		b.logger.Debug("request failed", zap.Int64("id", id), zap.Error(err))
		b.sink(domain.Response{ID: id, Err: backendError(err)})
		return
	}
	if res == nil {
		res = domain.OK{}
	}
	b.sink(domain.Response{ID: id, Result: res})
}
