package internal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/xKoRx/echo/core/internal/repository"
	"github.com/xKoRx/echo/sdk/domain"
	grpcsdk "github.com/xKoRx/echo/sdk/grpc"
	"github.com/xKoRx/echo/sdk/ipc"
	"github.com/xKoRx/echo/sdk/telemetry"
	"github.com/xKoRx/echo/sdk/telemetry/metricbundle"
	"github.com/xKoRx/echo/sdk/telemetry/semconv"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/grpc"
)

// HealthService es el nombre del servicio reportado por gRPC health.
const HealthService = "echo.Core"

// Core representa el servicio principal de Echo Core.
//
// Responsabilidades:
//   - Servidor HTTP: /ws (terminales) y /healthz
//   - Listener IPC para terminales locales (opcional)
//   - Servidor gRPC health (opcional)
//   - Registro de sesiones y despacho de frames al Router
//   - Journal Kafka de entregas (opcional)
//   - Telemetría (logs + métricas)
type Core struct {
	config *Config

	// Persistencia
	db    *sql.DB // nil si los repositorios fueron inyectados
	repos domain.RepositoryFactory

	// Componentes
	registry    *TerminalRegistry
	router      *Router
	provisioner *Provisioner
	journal     *Journal

	// Transporte
	upgrader     websocket.Upgrader
	httpServer   *http.Server
	httpListener net.Listener
	grpcServer   *grpcsdk.Server
	pipeListener net.Listener

	// Sesiones vivas
	sessions   map[string]*Session
	sessionsMu sync.Mutex

	// Telemetría
	telemetry     *telemetry.Client
	echoMetrics   *metricbundle.EchoMetrics
	ownsTelemetry bool

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Estado
	mu     sync.RWMutex
	closed bool
}

// Option personaliza la construcción del Core.
type Option func(*coreOptions)

type coreOptions struct {
	telemetry     *telemetry.Client
	repos         domain.RepositoryFactory
	journalWriter MessageWriter
}

// WithTelemetry usa un cliente de telemetría existente (no se cierra en Shutdown).
func WithTelemetry(tel *telemetry.Client) Option {
	return func(o *coreOptions) { o.telemetry = tel }
}

// WithRepositories inyecta los repositorios en lugar de abrir la base configurada.
func WithRepositories(repos domain.RepositoryFactory) Option {
	return func(o *coreOptions) { o.repos = repos }
}

// WithJournalWriter publica el journal en w en lugar de Kafka.
func WithJournalWriter(w MessageWriter) Option {
	return func(o *coreOptions) { o.journalWriter = w }
}

// New crea una nueva instancia de Core.
//
// Example:
//
//	cfg, _ := internal.LoadConfig(ctx)
//	core, err := internal.New(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer core.Shutdown()
func New(ctx context.Context, config *Config, opts ...Option) (*Core, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	var o coreOptions
	for _, opt := range opts {
		opt(&o)
	}

	coreCtx, cancel := context.WithCancel(ctx)

	c := &Core{
		config:   config,
		sessions: make(map[string]*Session),
		ctx:      coreCtx,
		cancel:   cancel,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}

	// Telemetría
	c.telemetry = o.telemetry
	if c.telemetry == nil {
		tel, err := newTelemetry(coreCtx, config)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
		}
		c.telemetry = tel
		c.ownsTelemetry = true
	}

	echoMetrics, err := metricbundle.NewEchoMetrics(c.telemetry.Meter())
	if err != nil {
		c.abort()
		return nil, fmt.Errorf("failed to create EchoMetrics bundle: %w", err)
	}
	c.echoMetrics = echoMetrics

	c.ctx = telemetry.AppendCommonAttrs(c.ctx,
		semconv.Echo.Component.String(semconv.ComponentCore),
	)

	// Persistencia
	c.repos = o.repos
	if c.repos == nil {
		db, err := repository.Open(coreCtx, config.DBDriver, config.DBDSN)
		if err != nil {
			c.abort()
			return nil, err
		}
		c.db = db
		if err := repository.Migrate(coreCtx, db, config.DBDriver); err != nil {
			c.abort()
			return nil, err
		}
		factory, err := repository.NewSQLFactory(db, config.DBDriver)
		if err != nil {
			c.abort()
			return nil, err
		}
		c.repos = factory
	}

	// Componentes
	c.registry = NewTerminalRegistry(c.telemetry, c.echoMetrics)
	var presenter Presenter = NewRegistryPresenter(c.registry, c.telemetry)

	writer := o.journalWriter
	if writer == nil && config.JournalEnabled() {
		writer = NewKafkaWriter(config.KafkaBrokers, config.KafkaTopic, c.telemetry, c.echoMetrics)
	}
	if writer != nil {
		c.journal = NewJournal(presenter, writer, c.telemetry, c.echoMetrics)
		presenter = c.journal
	}

	c.router = NewRouter(c.repos, c.registry, presenter, c.telemetry, c.echoMetrics)
	c.provisioner = NewProvisioner(c.repos, config.MaxRoutesPerSource, c.telemetry, c.echoMetrics)

	c.telemetry.Info(c.ctx, "Core initialized",
		attribute.String("listen_addr", config.ListenAddr),
		attribute.Int("grpc_port", config.GRPCPort),
		attribute.String("pipe_name", config.PipeName),
		attribute.String("db_driver", config.DBDriver),
		attribute.Bool("journal_enabled", c.journal != nil),
	)

	return c, nil
}

func newTelemetry(ctx context.Context, config *Config) (*telemetry.Client, error) {
	telOpts := []telemetry.Option{
		telemetry.WithVersion(config.ServiceVersion),
		telemetry.WithLogLevel(config.LogLevel),
	}
	if !config.ExportersEnabled() {
		telOpts = append(telOpts, telemetry.WithMetricsDisabled(), telemetry.WithTracesDisabled())
	}
	if config.OTLPEndpoint != "" {
		telOpts = append(telOpts, telemetry.WithOTLPEndpoint(config.OTLPEndpoint))
	}
	if config.OTLPTracesEndpoint != "" {
		telOpts = append(telOpts, telemetry.WithTracesEndpoint(config.OTLPTracesEndpoint))
	}
	if config.OTLPMetricsEndpoint != "" {
		telOpts = append(telOpts, telemetry.WithMetricsEndpoint(config.OTLPMetricsEndpoint))
	}
	return telemetry.New(ctx, config.ServiceName, config.Environment, telOpts...)
}

// abort libera lo construido cuando New falla.
func (c *Core) abort() {
	c.cancel()
	if c.db != nil {
		c.db.Close()
	}
	if c.ownsTelemetry {
		c.telemetry.Shutdown(context.Background())
	}
}

// Handler retorna el handler HTTP del Core (/ws y /healthz).
func (c *Core) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", c.handleWebSocket)
	mux.HandleFunc("/healthz", c.handleHealthz)
	return mux
}

// Start inicia los listeners (HTTP, IPC y gRPC health).
func (c *Core) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("core already closed")
	}

	lis, err := net.Listen("tcp", c.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", c.config.ListenAddr, err)
	}
	c.httpListener = lis
	c.httpServer = &http.Server{
		Handler:           c.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := c.httpServer.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			c.telemetry.Error(c.ctx, "HTTP server failed", err)
		}
	}()
	c.telemetry.Info(c.ctx, "HTTP server listening",
		attribute.String("address", lis.Addr().String()),
	)

	if c.config.PipeName != "" {
		pipe, err := ipc.Listen(ipc.DefaultPipeConfig(c.config.PipeName))
		if err != nil {
			return fmt.Errorf("failed to listen on pipe %s: %w", c.config.PipeName, err)
		}
		c.pipeListener = pipe

		c.wg.Add(1)
		go c.acceptPipeLoop(pipe)
		c.telemetry.Info(c.ctx, "IPC listener ready",
			attribute.String("address", ipc.Address(c.config.PipeName)),
		)
	}

	if c.config.GRPCPort > 0 {
		grpcCfg := grpcsdk.DefaultServerConfig(c.config.GRPCPort)
		grpcCfg.UnaryInterceptors = []grpc.UnaryServerInterceptor{
			grpcsdk.TracingUnaryServerInterceptor(),
			grpcsdk.LoggingUnaryServerInterceptor(c.telemetry),
		}
		grpcCfg.StreamInterceptors = []grpc.StreamServerInterceptor{
			grpcsdk.TracingStreamServerInterceptor(),
			grpcsdk.LoggingStreamServerInterceptor(c.telemetry),
		}
		server, err := grpcsdk.NewServer(grpcCfg)
		if err != nil {
			return fmt.Errorf("failed to create gRPC server: %w", err)
		}
		server.SetServingStatus(HealthService, true)
		c.grpcServer = server

		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			if err := server.Serve(c.ctx); err != nil {
				c.telemetry.Error(c.ctx, "gRPC server failed", err)
			}
		}()
		c.telemetry.Info(c.ctx, "gRPC health server listening",
			attribute.String("address", server.Address()),
		)
	}

	c.telemetry.Info(c.ctx, "Core started successfully")
	return nil
}

// Addr retorna la dirección real del listener HTTP (tras Start).
func (c *Core) Addr() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.httpListener == nil {
		return ""
	}
	return c.httpListener.Addr().String()
}

// Registry retorna el registro de conexiones.
func (c *Core) Registry() *TerminalRegistry {
	return c.registry
}

// Provisioner retorna el aprovisionador de rutas.
func (c *Core) Provisioner() *Provisioner {
	return c.provisioner
}

// Repositories retorna los repositorios del Core.
func (c *Core) Repositories() domain.RepositoryFactory {
	return c.repos
}

func (c *Core) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()

	if closed {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (c *Core) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.telemetry.Warn(c.ctx, "WebSocket upgrade failed",
			attribute.String("remote_addr", r.RemoteAddr),
			attribute.String("error", err.Error()),
		)
		return
	}
	c.serveConn(NewWebSocketConn(ws, c.config.SessionConfig()))
}

// acceptPipeLoop acepta terminales locales hasta que el listener se cierra.
func (c *Core) acceptPipeLoop(ln net.Listener) {
	defer c.wg.Done()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if c.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			c.telemetry.Warn(c.ctx, "IPC accept failed",
				attribute.String("error", err.Error()),
			)
			continue
		}

		frameConn := NewIPCConn(ipc.NewConn(conn, c.config.WriteTimeout))
		go c.serveConn(frameConn)
	}
}

// serveConn corre una sesión sobre conn hasta que se cierra. Bloquea.
func (c *Core) serveConn(conn FrameConn) {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		conn.Close()
		return
	}
	c.wg.Add(1)
	c.mu.RUnlock()
	defer c.wg.Done()

	sessionCtx := telemetry.AppendCommonAttrs(c.ctx,
		semconv.Echo.Component.String(semconv.ComponentSession),
	)
	session := NewSession(sessionCtx, conn, c.config.SessionConfig(),
		c.handleFrame, c.onSessionClosed, c.telemetry, c.echoMetrics)

	c.sessionsMu.Lock()
	c.sessions[session.ID()] = session
	c.sessionsMu.Unlock()

	session.Run()
}

// handleFrame decodifica un frame, registra al emisor y lo despacha.
//
// Un frame inválido se descarta y la sesión sigue abierta.
func (c *Core) handleFrame(ctx context.Context, s *Session, frame []byte) {
	msg, err := domain.DecodeIncoming(frame)
	if err != nil {
		c.echoMetrics.RecordMessageMalformed(ctx)
		c.telemetry.Warn(ctx, "Malformed frame skipped",
			attribute.String("error", err.Error()),
			attribute.Int("frame_bytes", len(frame)),
		)
		return
	}

	kind := semconv.MessageKindRegister
	if _, ok := msg.(domain.TradeMessage); ok {
		kind = semconv.MessageKindTrade
	}
	c.echoMetrics.RecordMessageReceived(ctx, kind)

	// Una sesión cerrada no se registra.
	if s.Context().Err() == nil {
		c.registry.Register(ctx, msg.Sender(), s)
	}

	// El despacho de un frame ya leído termina aunque la sesión se cierre.
	routerCtx := telemetry.AppendCommonAttrs(context.WithoutCancel(ctx),
		semconv.Echo.Component.String(semconv.ComponentRouter),
	)
	if err := c.router.Execute(routerCtx, msg); err != nil {
		c.telemetry.Error(routerCtx, "Message processing failed", err,
			semconv.Echo.TerminalID.String(msg.Sender().String()),
			semconv.Echo.MessageKind.String(kind),
			semconv.Echo.ErrorCode.String(string(domain.CodeOf(err))),
		)
	}
}

func (c *Core) onSessionClosed(ctx context.Context, s *Session) {
	c.registry.UnregisterSession(ctx, s.ID())

	c.sessionsMu.Lock()
	delete(c.sessions, s.ID())
	c.sessionsMu.Unlock()
}

// Shutdown detiene el Core gracefully.
func (c *Core) Shutdown() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.telemetry.Info(c.ctx, "Core shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	var errs []error

	if c.grpcServer != nil {
		c.grpcServer.SetServingStatus(HealthService, false)
	}

	// Dejar de aceptar conexiones
	if c.httpServer != nil {
		if err := c.httpServer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
	}
	if c.pipeListener != nil {
		c.pipeListener.Close()
	}

	// Cerrar sesiones (hijacked, http.Server no las espera)
	c.sessionsMu.Lock()
	for _, s := range c.sessions {
		s.Close()
	}
	c.sessionsMu.Unlock()

	// Detener contexto (gRPC Serve hace shutdown)
	c.cancel()
	c.wg.Wait()

	if c.journal != nil {
		if err := c.journal.Close(); err != nil {
			errs = append(errs, fmt.Errorf("journal close: %w", err))
		}
	}
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("db close: %w", err))
		}
	}

	c.telemetry.Info(shutdownCtx, "Core stopped successfully")

	if c.ownsTelemetry {
		if err := c.telemetry.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown telemetry: %w", err))
		}
	}

	return errors.Join(errs...)
}
