package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"liveclass/internal/analytics"
	"liveclass/internal/api"
	"liveclass/internal/auth"
	"liveclass/internal/config"
	"liveclass/internal/database"
	"liveclass/internal/execution"
	"liveclass/internal/hub"
	"liveclass/internal/router"
	"liveclass/internal/session"
	"liveclass/internal/telemetry"
	"liveclass/internal/websocket"
	"liveclass/pkg/interfaces"
)

// Application coordinates all system components
type Application struct {
	config         *config.Config
	dbManager      *database.Manager
	redisClient    *redis.Client // nil without analytics.redis_addr
	forwarder      *analytics.Forwarder
	sessionManager *session.Manager
	registry       *websocket.Registry
	rateLimiter    *router.RateLimiter
	messageHub     *hub.Hub
	apiServer      *api.Server
	httpServer     *http.Server
	listener       net.Listener

	shutdownTracing func(context.Context) error
	cancel          context.CancelFunc // set once Start has launched the workers
}

// NewApplication creates a new application instance with all components initialized.
// Initialization order:
// Telemetry → Database → Analytics → Registry → Hub → Sessions → Router → API → HTTP
func NewApplication(ctx context.Context, cfg *config.Config) (*Application, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	app := &Application{config: cfg}
	ok := false
	defer func() {
		if !ok {
			app.closeResources(context.Background())
		}
	}()

	// STEP 1: Tracing, a no-op unless an OTLP endpoint is configured
	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	app.shutdownTracing = shutdownTracing

	// STEP 2: Database manager applies migrations and validates the schema
	dbConfig := cfg.Database
	app.dbManager, err = database.NewManager(&dbConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database manager: %w", err)
	}

	// STEP 3: Analytics sinks behind the non-blocking forwarder
	var sinks []interfaces.AnalyticsSink
	if cfg.Analytics.Persist {
		sinks = append(sinks, app.dbManager)
	}
	if cfg.Analytics.RedisAddr != "" {
		app.redisClient = redis.NewClient(&redis.Options{Addr: cfg.Analytics.RedisAddr})
		if err := app.redisClient.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Analytics.RedisAddr, err)
		}
		sinks = append(sinks, analytics.NewRedisStreamSink(app.redisClient, cfg.Analytics.RedisStream))
	}
	app.forwarder = analytics.NewForwarder(cfg.Analytics.BufferSize, sinks...)

	// STEP 4: Optional execution sandbox
	var executor interfaces.Executor
	if cfg.Executor.URL != "" {
		client, err := execution.NewClient(cfg.Executor.URL, cfg.Executor.Timeout)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize executor: %w", err)
		}
		executor = client
	}

	// STEP 5: Connection registry and the hub that delivers coordinator events
	app.registry = websocket.NewRegistry()
	app.messageHub = hub.NewHub(app.registry, cfg.WebSocket.DisconnectGrace)

	// STEP 6: Session registry; sessions left open by a previous process are closed out
	app.sessionManager = session.NewManager(app.dbManager, session.Config{
		MaxPerHost:             cfg.Sessions.MaxPerHost,
		IdleTimeout:            cfg.Sessions.IdleTimeout,
		ReapInterval:           cfg.Sessions.ReapInterval,
		MaxDocumentBytes:       cfg.Sessions.MaxDocumentBytes,
		DefaultMaxParticipants: cfg.Sessions.DefaultMaxParticipants,
		ExecutionTimeout:       cfg.Executor.Timeout,
	}, session.Dependencies{
		Publisher: app.messageHub,
		Executor:  executor,
		Forwarder: app.forwarder,
	})
	if err := app.sessionManager.RecoverSessions(ctx); err != nil {
		return nil, fmt.Errorf("failed to recover sessions: %w", err)
	}

	// STEP 7: Router and token verification
	app.rateLimiter = router.NewRateLimiter(cfg.RateLimit.PerMinute)
	messageRouter := router.NewRouter(app.sessionManager, app.registry, app.rateLimiter)

	verifier, err := auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token verifier: %w", err)
	}

	// STEP 8: API server with the WebSocket gateway mounted at /ws
	wsHandler := websocket.NewHandler(app.registry, verifier, messageRouter, app.messageHub, websocket.HandlerConfig{
		PingInterval:    cfg.WebSocket.PingInterval,
		ReadTimeout:     cfg.WebSocket.ReadTimeout,
		WriteTimeout:    cfg.WebSocket.WriteTimeout,
		BufferSize:      cfg.WebSocket.BufferSize,
		MaxMessageBytes: cfg.WebSocket.MaxMessageBytes,
	})
	app.apiServer = api.NewServer(app.sessionManager, app.dbManager, app.registry, verifier)
	app.apiServer.Mount("/ws", http.HandlerFunc(wsHandler.HandleWebSocket))

	app.httpServer = &http.Server{
		Addr:         cfg.HTTP.Addr(),
		Handler:      app.apiServer,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	ok = true
	return app, nil
}

// Start launches background workers and begins serving. It returns once the
// listener is bound; serving continues until Stop.
func (app *Application) Start(ctx context.Context) error {
	log.Printf("Starting liveclass on %s", app.httpServer.Addr)

	listener, err := net.Listen("tcp", app.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", app.httpServer.Addr, err)
	}
	app.listener = listener

	runCtx, cancel := context.WithCancel(context.Background())
	app.cancel = cancel

	// STEP 1: Background processing
	if err := app.messageHub.Start(runCtx, app.sessionManager); err != nil {
		cancel()
		_ = listener.Close()
		return fmt.Errorf("failed to start message hub: %w", err)
	}
	app.forwarder.Start()
	go app.sessionManager.RunReaper(runCtx)
	go app.rateLimiter.RunCleanup(runCtx, time.Minute)

	// STEP 2: Accept connections
	serverErrCh := make(chan error, 1)
	go func() {
		if err := app.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	select {
	case err := <-serverErrCh:
		app.stopWorkers(context.Background())
		return err
	case <-time.After(100 * time.Millisecond):
		log.Printf("liveclass started: addr=%s", listener.Addr())
		return nil
	case <-ctx.Done():
		_ = app.httpServer.Close()
		app.stopWorkers(context.Background())
		return ctx.Err()
	}
}

// Stop gracefully shuts down the application.
// Reverse dependency order: HTTP → Sessions → Hub → Analytics → Storage → Telemetry
func (app *Application) Stop(ctx context.Context) error {
	log.Printf("Shutting down liveclass")

	// STEP 1: Stop accepting new connections
	if err := app.httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	if app.cancel != nil {
		app.stopWorkers(ctx)
	} else {
		app.sessionManager.Shutdown(ctx)
	}
	app.closeResources(ctx)

	log.Printf("liveclass shutdown complete")
	return nil
}

// stopWorkers ends live sessions and drains the background goroutines
func (app *Application) stopWorkers(ctx context.Context) {
	// STEP 2: End sessions while the hub can still deliver session-ended
	app.sessionManager.Shutdown(ctx)
	app.cancel()

	// STEP 3: Stop message delivery
	if err := app.messageHub.Stop(); err != nil && !errors.Is(err, hub.ErrHubNotRunning) {
		log.Printf("Message hub shutdown error: %v", err)
	}

	// STEP 4: Flush analytics to the sinks
	if err := app.forwarder.Stop(ctx); err != nil {
		log.Printf("Analytics forwarder shutdown error: %v", err)
	}
	stats := app.forwarder.Stats()
	log.Printf("Analytics forwarded: stored=%d dropped=%d", stats["stored"], stats["dropped"])
}

// closeResources releases storage and tracing. Safe on a partially built app.
func (app *Application) closeResources(ctx context.Context) {
	if app.redisClient != nil {
		if err := app.redisClient.Close(); err != nil {
			log.Printf("Redis shutdown error: %v", err)
		}
	}
	if app.dbManager != nil {
		if err := app.dbManager.Close(); err != nil {
			log.Printf("Database shutdown error: %v", err)
		}
	}
	if app.shutdownTracing != nil {
		if err := app.shutdownTracing(ctx); err != nil {
			log.Printf("Telemetry shutdown error: %v", err)
		}
	}
}

// GetAddr returns the bound server address, or the configured one before Start
func (app *Application) GetAddr() string {
	if app.listener != nil {
		return app.listener.Addr().String()
	}
	return app.httpServer.Addr
}

// Sessions exposes the session registry for in-process callers
func (app *Application) Sessions() *session.Manager {
	return app.sessionManager
}
