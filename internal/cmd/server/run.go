package serverrun

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	cfgpkg "github.com/serhalp/queue-and-eh/internal/config"
	"github.com/serhalp/queue-and-eh/internal/runtime"
	httpserver "github.com/serhalp/queue-and-eh/internal/server/http"
	eventsvc "github.com/serhalp/queue-and-eh/internal/services/events"
	presencesvc "github.com/serhalp/queue-and-eh/internal/services/presence"
	questionsvc "github.com/serhalp/queue-and-eh/internal/services/questions"
	pebblestore "github.com/serhalp/queue-and-eh/internal/storage/pebble"
	logpkg "github.com/serhalp/queue-and-eh/pkg/log"
)

type Options struct {
	DataDir       string
	HTTPAddr      string
	Fsync         pebblestore.FsyncMode
	FsyncInterval time.Duration
	Config        cfgpkg.Config
}

// Run starts the HTTP server and blocks until ctx is cancelled.
func Run(ctx context.Context, opts Options) error {
	// Be robust to callers that don't pass a signal-aware context. We layer
	// a local signal context over the provided one.
	sctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.DataDir == "" {
		opts.DataDir = cfgpkg.DefaultDataDir()
	}
	storeDir := filepath.Join(opts.DataDir, "store")
	rt, err := runtime.Open(runtime.Options{
		DataDir:       storeDir,
		Fsync:         opts.Fsync,
		FsyncInterval: int(opts.FsyncInterval / time.Millisecond),
		Config:        opts.Config,
	})
	if err != nil {
		return err
	}
	defer rt.Close()

	cfg := opts.Config
	procLogger, err := logpkg.ApplyConfig(&logpkg.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	if err != nil {
		procLogger = logpkg.NewLogger(logpkg.WithLevel(logpkg.InfoLevel))
	}

	// Redirect stdlib logs (e.g. Pebble's) to our logger.
	logpkg.RedirectStdLog(procLogger)

	procLogger.Info("Starting server",
		logpkg.Str("http", opts.HTTPAddr),
		logpkg.Str("data_dir", opts.DataDir),
		logpkg.Str("level", cfg.Log.Level),
		logpkg.Str("format", cfg.Log.Format),
		logpkg.Int("stream_tick_ms", cfg.Stream.TickMs),
		logpkg.Int("presence_stale_ms", cfg.Presence.StaleThresholdMs),
	)

	store := rt.Store()
	retryBackoff := time.Duration(cfg.Retry.BackoffBaseMs) * time.Millisecond

	events := eventsvc.New(store, procLogger)
	questions := questionsvc.New(store, procLogger)
	questions.SetRetryPolicy(cfg.Retry.MaxAttempts, retryBackoff)
	presence := presencesvc.New(store, procLogger)
	presence.SetRetryPolicy(cfg.Retry.MaxAttempts, retryBackoff)
	presence.SetStaleThreshold(time.Duration(cfg.Presence.StaleThresholdMs) * time.Millisecond)

	hsrv := httpserver.New(rt, events, questions, presence, procLogger)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := hsrv.ListenAndServe(sctx, opts.HTTPAddr); err != nil && sctx.Err() == nil {
			procLogger.Error("http server error", logpkg.Err(err))
		}
	}()

	<-sctx.Done()
	// Shut the server down before closing the runtime/DB to avoid races.
	hsrv.Close()
	wg.Wait()
	return nil
}
