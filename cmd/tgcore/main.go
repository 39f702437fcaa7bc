package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/danhigham/tgcore/internal/chatstore"
	"github.com/danhigham/tgcore/internal/config"
	"github.com/danhigham/tgcore/internal/domain"
	"github.com/danhigham/tgcore/internal/session"
	"github.com/danhigham/tgcore/internal/telegram"
	"github.com/danhigham/tgcore/internal/ui"
)

const version = "0.1.0"

func main() {
	cfgDir := config.Dir()
	cfgPath := filepath.Join(cfgDir, "config.yaml")

	cfg, err := config.Load(cfgPath)
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config from %s: %v\n", cfgPath, err)
		fmt.Fprintf(os.Stderr, "\nCreate the config file with:\n")
		fmt.Fprintf(os.Stderr, "  mkdir -p %s\n", cfgDir)
		fmt.Fprintf(os.Stderr, "  cat > %s << 'EOF'\n", cfgPath)
		fmt.Fprintf(os.Stderr, "telegram:\n  api_id: YOUR_API_ID\n  api_hash: \"YOUR_API_HASH\"\nEOF\n")
		fmt.Fprintf(os.Stderr, "\nGet API credentials from https://my.telegram.org\n")
		os.Exit(1)
	}

	// The terminal belongs to the UI, so logs go to a file.
	level, _ := cfg.Level()
	logPath := filepath.Join(cfgDir, "tgcore.log")
	logCfg := zap.NewDevelopmentConfig()
	logCfg.Level = zap.NewAtomicLevelAt(level)
	logCfg.OutputPaths = []string{logPath}
	logCfg.ErrorOutputPaths = []string{logPath}
	logger, err := logCfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Error("exiting", zap.Error(err))
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	store, err := chatstore.Open(cfg.Cache.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	cached, err := store.Load(ctx)
	if err != nil {
		logger.Warn("chat cache unreadable", zap.Error(err))
	}

	mgr := session.NewManager(session.Options{
		Parameters: domain.SetParameters{
			APIID:              cfg.Telegram.APIID,
			APIHash:            cfg.Telegram.APIHash,
			DatabaseDirectory:  cfg.Session.Dir,
			DeviceModel:        cfg.Telegram.DeviceModel,
			SystemLanguageCode: cfg.Telegram.SystemLanguage,
			ApplicationVersion: version,
		},
		PhoneNumber:  cfg.Session.Phone,
		ChatPageSize: cfg.Session.ChatPageSize,
	}, logger)

	backend := telegram.NewBackend(mgr.Ingest, logger)
	mgr.Attach(backend)

	app := ui.NewApp(mgr, cached)
	mgr.Registry().SetOnChange(app.ChatsChanged)
	mgr.SetMessageHandler(app.MessageArrived)

	go func() {
		if err := backend.Run(ctx); err != nil {
			logger.Error("telegram backend stopped", zap.Error(err))
			app.Send(ui.ErrorMsg{Err: err})
		}
	}()
	go func() {
		if err := mgr.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("update loop stopped", zap.Error(err))
		}
	}()
	states := mgr.Observe(ctx)
	go app.Follow(mgr.State(), states)

	runErr := app.Run()

	// Snapshot before Shutdown so the cache keeps the last live list.
	if chats := mgr.Chats(); len(chats) > 0 {
		saveCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		if err := store.Save(saveCtx, chats); err != nil {
			logger.Warn("save chat cache", zap.Error(err))
		}
		done()
	}

	cancel()
	mgr.Shutdown()
	return runErr
}
