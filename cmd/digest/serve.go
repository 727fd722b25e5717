package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"internship-digest/internal/config"
	"internship-digest/internal/events"
	"internship-digest/internal/httpapi"
	"internship-digest/internal/notify"
	"internship-digest/internal/pipeline"
	"internship-digest/internal/poll"
	"internship-digest/internal/secrets"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"
)

func cmdServe(ctx context.Context, args []string, stderr io.Writer) int {
	fset := flag.NewFlagSet("serve", flag.ContinueOnError)
	fset.SetOutput(stderr)
	var common commonFlags
	common.register(fset)
	if err := fset.Parse(args); err != nil {
		return exitUsage
	}

	userCfgPath, cfg, err := common.loadConfig()
	if err != nil {
		log.Printf("[main] %v", err)
		return exitUsage
	}

	// Two schedulers on one data dir would post every digest twice.
	lock := flock.New(filepath.Join(common.dataDir, "digest.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		log.Printf("[serve] lock %s: %v", lock.Path(), err)
		return exitRun
	}
	if !locked {
		log.Printf("[serve] another instance holds %s", lock.Path())
		return exitRun
	}
	defer func() { _ = lock.Unlock() }()

	if err := serve(ctx, userCfgPath, cfg); err != nil {
		log.Printf("[serve] stopped: %v", err)
		return exitRun
	}
	return exitOK
}

// sharedNotifier keeps one webhook notifier across runs so its limiter spaces
// consecutive posts. It is rebuilt only when the notify section changes.
type sharedNotifier struct {
	mu  sync.Mutex
	cfg config.Config
	n   *notify.Webhook
}

func (s *sharedNotifier) get(cfg config.Config) *notify.Webhook {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.n == nil || s.cfg.Notify != cfg.Notify {
		s.n = webhookNotifier(cfg)
		s.cfg = cfg
	}
	return s.n
}

// scheduledRun reads the current config on every run, so PUT /config applies
// to the next run.
func scheduledRun(cfgVal *atomic.Value, notifiers *sharedNotifier, build func(config.Config, pipeline.Notifier) *pipeline.Pipeline) poll.RunFunc {
	return func(ctx context.Context) (pipeline.Result, error) {
		cfg := cfgVal.Load().(config.Config)
		return build(cfg, notifiers.get(cfg)).Run(ctx)
	}
}

func serve(ctx context.Context, userCfgPath string, cfg config.Config) error {
	// Load config and keep it reloadable
	var cfgVal atomic.Value // stores config.Config
	cfgVal.Store(cfg)
	loadCfg := func() (config.Config, error) { return loadValidated(userCfgPath) }

	hub := events.NewHub()

	runner := poll.NewRunner(scheduledRun(&cfgVal, &sharedNotifier{}, buildPipeline), hub)

	g, gctx := errgroup.WithContext(ctx)

	mux := httpapi.NewMux(httpapi.Deps{
		BaseCtx:       gctx,
		Runner:        runner,
		Hub:           hub,
		CfgVal:        &cfgVal,
		UserCfgPath:   userCfgPath,
		LoadCfg:       loadCfg,
		SetWebhook:    secrets.SetWebhookURL,
		DeleteWebhook: secrets.DeleteWebhookURL,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.App.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	log.Printf("[serve] listening on http://%s (config=%s)", addr, userCfgPath)

	srv := &http.Server{
		Handler:           httpapi.Handler(mux),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return gctx },
	}

	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		// the interval is fixed at startup; a changed interval needs a restart
		runner.Start(gctx, cfg.Interval(), cfg.Schedule.RunOnStart)
		return nil
	})

	return g.Wait()
}
