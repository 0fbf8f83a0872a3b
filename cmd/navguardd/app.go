package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/haukened/navguard/internal/guard/common/clock"
	"github.com/haukened/navguard/internal/guard/common/log"
	"github.com/haukened/navguard/internal/guard/config"
	"github.com/haukened/navguard/internal/guard/gateways/browser"
	"github.com/haukened/navguard/internal/guard/gateways/classifier"
	"github.com/haukened/navguard/internal/guard/gateways/httpapi"
	"github.com/haukened/navguard/internal/guard/gateways/presenter"
	"github.com/haukened/navguard/internal/guard/gateways/redirect"
	"github.com/haukened/navguard/internal/guard/repos/sitelist"
	"github.com/haukened/navguard/internal/guard/repos/sitelist/bloom"
	"github.com/haukened/navguard/internal/guard/repos/sitelist/bolt"
	"github.com/haukened/navguard/internal/guard/repos/sitelist/lru"
	"github.com/haukened/navguard/internal/guard/services/broker"
	"github.com/haukened/navguard/internal/guard/services/interceptor"
	"github.com/haukened/navguard/internal/guard/services/reputation"
)

const defaultShutdownTimeout = 10 * time.Second

// promptSurface is a presenter the broker can be bound to after both exist.
type promptSurface interface {
	broker.Presenter
	Bind(sink presenter.Sink)
	Close()
}

// Application holds all the components of the navigation guard
type Application struct {
	config  *config.AppConfig
	sites   *siteLists
	broker  *broker.Broker
	prompts promptSurface
	server  *httpapi.Server
	watcher *browser.Watcher
}

// siteLists is the opened site list database and the service over it.
type siteLists struct {
	store   sitelist.Store
	service *reputation.Service
}

func (s *siteLists) Close() error { return s.store.Close() }

// openSiteLists opens the Bolt store and builds the lookup service on top of
// the Bloom prefilter and decision cache.
func openSiteLists(cfg *config.AppConfig, clk clock.Clock, logger log.Logger, source string) (*siteLists, error) {
	store, err := bolt.New(cfg.Sites.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to open site list database %s: %w", cfg.Sites.DB, err)
	}

	cache, err := lru.New(cfg.Sites.CacheSize, cfg.Sites.CacheTTL)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to create decision cache: %w", err)
	}

	repo, err := sitelist.NewRepository(sitelist.Options{
		Store:   store,
		Cache:   cache,
		Factory: bloom.NewFactory(),
		FPRate:  cfg.Sites.FPRate,
		Clock:   clk,
		Logger:  logger,
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to load site lists: %w", err)
	}

	return &siteLists{
		store:   store,
		service: reputation.New(repo, clk, logger, source),
	}, nil
}

// buildApplication constructs all components and wires them together
func buildApplication(cfg *config.AppConfig) (*Application, error) {
	// Create shared clock for consistent time across all components
	clk := clock.RealClock{}

	// Build repository layer
	sites, err := openSiteLists(cfg, clk, log.Component("sitelist"), "api")
	if err != nil {
		return nil, err
	}
	if _, err := sites.service.Seed(cfg.Sites.LegitimateLists, cfg.Sites.SuspiciousLists); err != nil {
		_ = sites.Close()
		return nil, fmt.Errorf("failed to seed site lists: %w", err)
	}

	// Build gateway layer
	lookup, err := classifier.New(classifier.Options{
		BaseURL: cfg.Reputation.BaseURL,
		Timeout: cfg.Reputation.Timeout,
		Clock:   clk,
		Logger:  log.Component("classifier"),
	})
	if err != nil {
		_ = sites.Close()
		return nil, fmt.Errorf("failed to create classifier: %w", err)
	}

	redirector, err := redirect.New(cfg.Broker.BlockedPage, log.Component("redirect"))
	if err != nil {
		_ = sites.Close()
		return nil, fmt.Errorf("failed to create redirector: %w", err)
	}

	prompts, socket := buildPresenter(cfg, log.Component("presenter"))

	// Build service layer
	brk, err := broker.New(broker.Options{
		Clock:      clk,
		Logger:     log.Component("broker"),
		Presenter:  prompts,
		Redirector: redirector,
		Timeout:    cfg.Broker.Timeout,
	})
	if err != nil {
		prompts.Close()
		_ = sites.Close()
		return nil, fmt.Errorf("failed to create broker: %w", err)
	}
	prompts.Bind(brk)

	guard, err := interceptor.New(interceptor.Options{
		Classifier:   lookup,
		Decider:      brk,
		Redirector:   redirector,
		SkipSchemes:  cfg.Interceptor.SkipSchemes,
		SkipPatterns: cfg.Interceptor.SkipPatterns,
		Clock:        clk,
		Logger:       log.Component("interceptor"),
	})
	if err != nil {
		prompts.Close()
		_ = sites.Close()
		return nil, fmt.Errorf("failed to create interceptor: %w", err)
	}

	log.Info(map[string]any{
		"reputation": cfg.Reputation.BaseURL,
		"timeout":    cfg.Broker.Timeout.String(),
		"presenter":  cfg.Presenter.Kind,
	}, "Navigation guard configured")

	// Build transport layer
	server := httpapi.NewServer(httpapi.Options{
		Addr:       net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Reputation: sites.service,
		Navigator:  guard,
		Prompts:    socket,
		Clock:      clk,
		Logger:     log.Component("http"),
	})

	// Attach to a local browser when a debugging endpoint is configured
	var watcher *browser.Watcher
	if cfg.Browser.DevToolsURL != "" {
		watcher, err = browser.New(browser.Options{
			Navigator:    guard,
			List:         browser.DevToolsLister(cfg.Browser.DevToolsURL),
			Dial:         browser.DialCDP,
			Exempt:       []string{cfg.Broker.BlockedPage},
			PollInterval: cfg.Browser.PollInterval,
			Logger:       log.Component("browser"),
		})
		if err != nil {
			prompts.Close()
			_ = sites.Close()
			return nil, fmt.Errorf("failed to create browser watcher: %w", err)
		}
	}

	return &Application{
		config:  cfg,
		sites:   sites,
		broker:  brk,
		prompts: prompts,
		server:  server,
		watcher: watcher,
	}, nil
}

// buildPresenter returns the configured prompt surface and, for the
// WebSocket hub, the handler to mount on the HTTP server.
func buildPresenter(cfg *config.AppConfig, logger log.Logger) (promptSurface, http.Handler) {
	if cfg.Presenter.Kind == "terminal" {
		return presenter.NewTerminal(presenter.TerminalOptions{
			Logger: logger,
			Stdin:  os.Stdin,
			Stdout: os.Stdout,
		}), nil
	}
	hub := presenter.NewHub(logger, nil)
	return hub, hub
}

// Run starts the HTTP server and blocks until context is cancelled
func (app *Application) Run(ctx context.Context) error {
	if err := app.server.Start(ctx); err != nil {
		app.close()
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	log.Info(map[string]any{
		"address": app.server.Address(),
	}, "Navigation guard started")

	var browsers sync.WaitGroup
	if app.watcher != nil {
		browsers.Add(1)
		go func() {
			defer browsers.Done()
			if err := app.watcher.Run(ctx); err != nil {
				log.Warn(map[string]any{
					"devtools": app.config.Browser.DevToolsURL,
					"error":    err,
				}, "Browser watcher stopped")
			}
		}()
	}

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info(nil, "Shutdown initiated")

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		browsers.Wait()
		if err := app.server.Stop(); err != nil {
			log.Warn(map[string]any{"error": err}, "Error during HTTP server shutdown")
		}
		app.close()
	}()

	select {
	case <-done:
		log.Info(nil, "Graceful shutdown completed")
		return nil
	case <-shutdownCtx.Done():
		log.Warn(map[string]any{"timeout": defaultShutdownTimeout}, "Shutdown timeout exceeded")
		return fmt.Errorf("shutdown timeout")
	}
}

// close denies outstanding prompts, then releases the presenter and the
// site list database.
func (app *Application) close() {
	app.broker.Close()
	app.prompts.Close()
	if err := app.sites.Close(); err != nil {
		log.Warn(map[string]any{"error": err}, "Error closing site list database")
	}
}
