package app

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/xian-network/go-uwp/internal/wallet/chain"
	httpapi "github.com/xian-network/go-uwp/internal/wallet/http"
	"github.com/xian-network/go-uwp/internal/wallet/obs"
	"github.com/xian-network/go-uwp/internal/wallet/push"
	"github.com/xian-network/go-uwp/internal/wallet/service"
	"github.com/xian-network/go-uwp/pkg/cachex"
	"github.com/xian-network/go-uwp/pkg/httpx"
	"github.com/xian-network/go-uwp/pkg/protocol"
	"github.com/xian-network/go-uwp/pkg/slogx"
)

// ErrAlreadyRunning is returned by Start when the configured port is held
// by a responsive wallet daemon.
var ErrAlreadyRunning = errors.New("another wallet daemon is already serving on this address")

// Application wires the wallet daemon together: key material, in-memory
// protocol state, the push bus and the HTTP server.
type Application struct {
	cfg    Config
	logger *slog.Logger

	wallet      *chain.Wallet
	chainClient chain.Client

	sessions     *service.SessionStore
	registry     *service.RequestRegistry
	limiter      *service.UnlockLimiter
	housekeeping *service.HousekeepingService
	bus          *push.Bus
	cache        *cachex.Cache

	server   *http.Server
	router   *httpapi.Router
	listener net.Listener

	shutdownOnce sync.Once
}

// New creates an Application with all dependencies initialized. The
// wallet starts locked.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "uwp-wallet",
			Version: protocol.Version,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if cfg.WalletPassword == "" {
		return nil, fmt.Errorf("wallet password is required (set UWP_WALLET_PASSWORD)")
	}

	if err := app.initWallet(); err != nil {
		return nil, err
	}
	app.initServices()
	app.initHTTP()

	obs.Init()
	obs.RegisterStateGauges(
		func() float64 { return float64(app.sessions.Count()) },
		func() float64 { return float64(app.registry.PendingCount()) },
		func() float64 { return float64(app.bus.Count()) },
	)

	return app, nil
}

// Run starts the daemon and blocks until shutdown is requested.
func (app *Application) Run() error {
	if err := app.Start(); err != nil {
		return err
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	sig := <-shutdown
	app.logger.Info("shutdown signal received", "signal", sig)

	return app.Shutdown()
}

// Start binds the listener and begins serving. A bind failure triggers
// the robust-startup policy: if a responsive wallet daemon already holds
// the port, ErrAlreadyRunning; otherwise the bind is retried with
// exponential backoff in case a previous instance is still letting go of
// the socket.
func (app *Application) Start() error {
	addr := fmt.Sprintf("%s:%d", app.cfg.Host, app.cfg.Port)

	var listener net.Listener
	backoff := 500 * time.Millisecond
	for attempt := 0; ; attempt++ {
		var err error
		listener, err = net.Listen("tcp", addr)
		if err == nil {
			break
		}

		if app.probeExistingDaemon(addr) {
			return ErrAlreadyRunning
		}
		if attempt >= app.cfg.StartupMaxRetries {
			return fmt.Errorf("binding %s: %w", addr, err)
		}

		app.logger.Warn("bind failed, retrying",
			"addr", addr,
			"attempt", attempt+1,
			"backoff", backoff,
		)
		time.Sleep(backoff)
		backoff *= 2
	}
	app.listener = listener

	app.housekeeping.Start()

	go func() {
		if err := app.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.logger.Error("server failed", "error", err)
		}
	}()

	app.logger.Info("wallet daemon started",
		"addr", app.Addr(),
		"wallet_type", app.cfg.WalletType,
		"network", app.cfg.NetworkURL,
		"version", protocol.Version,
	)
	return nil
}

// Addr returns the bound listener address, empty before Start.
func (app *Application) Addr() string {
	if app.listener == nil {
		return ""
	}
	return app.listener.Addr().String()
}

// Shutdown stops the daemon: push subscribers get a shutdown event, the
// HTTP server drains within the grace period, housekeeping stops and all
// sessions are dropped. Safe to call more than once.
func (app *Application) Shutdown() error {
	var err error
	app.shutdownOnce.Do(func() {
		app.logger.Info("shutting down wallet daemon")

		app.bus.Shutdown()

		ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
		defer cancel()
		if shutdownErr := app.server.Shutdown(ctx); shutdownErr != nil {
			app.logger.Error("graceful server shutdown failed", "error", shutdownErr)
			err = app.server.Close()
		}

		app.housekeeping.Stop()

		// Sessions are ephemeral by design; drop them so a restarted
		// daemon starts from a clean slate.
		app.sessions.RevokeAll()
		app.cache.Clear()

		app.logger.Info("wallet daemon stopped")
	})
	return err
}

// probeExistingDaemon checks whether something already answering on addr
// speaks the wallet protocol.
func (app *Application) probeExistingDaemon(addr string) bool {
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get("http://" + addr + protocol.EndpointWalletStatus)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}
	var status protocol.StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return false
	}
	return status.Available
}

func (app *Application) initWallet() error {
	var (
		wallet *chain.Wallet
		err    error
	)
	if app.cfg.WalletSeed != "" {
		seed, decodeErr := hex.DecodeString(app.cfg.WalletSeed)
		if decodeErr != nil {
			return fmt.Errorf("wallet seed is not valid hex: %w", decodeErr)
		}
		wallet, err = chain.NewWalletFromSeed(seed, app.cfg.WalletPassword,
			app.cfg.WalletType, app.cfg.NetworkURL, app.cfg.ChainID)
	} else {
		wallet, err = chain.NewWallet(app.cfg.WalletPassword,
			app.cfg.WalletType, app.cfg.NetworkURL, app.cfg.ChainID)
	}
	if err != nil {
		return fmt.Errorf("initializing wallet: %w", err)
	}
	app.wallet = wallet

	switch app.cfg.ChainMode {
	case "mock":
		app.chainClient = chain.NewMock()
		app.logger.Info("using mock chain client")
	default:
		app.chainClient = chain.NewHTTPClient(app.cfg.NetworkURL, app.logger)
	}
	return nil
}

func (app *Application) initServices() {
	app.bus = push.NewBus(app.logger)
	app.cache = cachex.New()
	app.sessions = service.NewSessionStore(app.cfg.MaxSessions, app.cfg.SessionTTL)
	app.registry = service.NewRequestRegistry(app.sessions, app.bus, app.cfg.MaxPending, app.cfg.RequestTTL)
	app.limiter = service.NewUnlockLimiter(app.cfg.UnlockLockout, 30*time.Minute)

	app.housekeeping = service.NewHousekeepingService(
		app.registry,
		app.sessions,
		app.limiter,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
}

func (app *Application) initHTTP() {
	router := httpapi.NewRouter(app.logger, app.corsConfig())
	router.Wallet = app.wallet
	router.Chain = app.chainClient
	router.Registry = app.registry
	router.Sessions = app.sessions
	router.Limiter = app.limiter
	router.Bus = app.bus
	router.Cache = app.cache
	router.CacheTTL = app.cfg.CacheTTL
	router.ApplyRoutes()

	app.router = router
	app.server = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func (app *Application) corsConfig() httpx.CORSConfig {
	switch app.cfg.CORSMode {
	case "development":
		return httpx.DevelopmentCORS()
	case "production":
		return httpx.ProductionCORS(app.cfg.CORSOrigins)
	default:
		return httpx.LocalhostCORS()
	}
}
