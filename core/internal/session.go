package internal

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/xKoRx/echo/sdk/domain"
	"github.com/xKoRx/echo/sdk/ipc"
	"github.com/xKoRx/echo/sdk/telemetry"
	"github.com/xKoRx/echo/sdk/telemetry/metricbundle"
	"github.com/xKoRx/echo/sdk/telemetry/semconv"
	"github.com/xKoRx/echo/sdk/utils"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
)

// maxFrameSize es el tamaño máximo de un frame entrante.
const maxFrameSize = 1024 * 1024

var (
	// ErrSessionClosed indica que la sesión ya no acepta envíos.
	ErrSessionClosed = errors.New("session closed")
	// ErrSendQueueFull indica que la cola de envío no liberó espacio a tiempo.
	ErrSendQueueFull = errors.New("send queue full")
)

// SessionConfig parámetros de una sesión de transporte.
type SessionConfig struct {
	SendQueueSize int           // Capacidad de SendCh
	SendTimeout   time.Duration // Espera máxima para encolar
	WriteTimeout  time.Duration // Deadline de cada escritura
	RateLimit     float64       // Frames entrantes por segundo (0 = sin límite)
	RateBurst     int
	PingInterval  time.Duration // Solo WebSocket (0 = sin ping)
	PongTimeout   time.Duration // Solo WebSocket (0 = sin deadline de lectura)
}

// DefaultSessionConfig retorna la configuración por defecto.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		SendQueueSize: 1000,
		SendTimeout:   time.Second,
		WriteTimeout:  5 * time.Second,
		RateLimit:     50,
		RateBurst:     100,
		PingInterval:  20 * time.Second,
		PongTimeout:   60 * time.Second,
	}
}

// FrameConn es una conexión que transporta frames JSON completos.
type FrameConn interface {
	ReadFrame() ([]byte, error)
	WriteFrame(data []byte) error
	Close() error
	RemoteAddr() string
}

// pinger lo implementan los transportes con keepalive propio.
type pinger interface {
	Ping() error
}

// FrameHandler procesa un frame entrante en la goroutine de lectura.
type FrameHandler func(ctx context.Context, s *Session, frame []byte)

// Session es una conexión de transporte con su goroutine de escritura.
//
// Una goroutine lee y despacha frames en orden; otra serializa los envíos
// desde SendCh. Una sesión puede transportar varias terminales.
type Session struct {
	id      string
	conn    FrameConn
	cfg     SessionConfig
	handler FrameHandler
	onClose func(ctx context.Context, s *Session)
	limiter *rate.Limiter

	sendCh chan []byte

	telemetry *telemetry.Client
	metrics   *metricbundle.EchoMetrics

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	done      chan struct{}
}

var _ TerminalSession = (*Session)(nil)

// NewSession crea una sesión sobre conn. Run debe llamarse para procesarla.
func NewSession(
	ctx context.Context,
	conn FrameConn,
	cfg SessionConfig,
	handler FrameHandler,
	onClose func(ctx context.Context, s *Session),
	tel *telemetry.Client,
	metrics *metricbundle.EchoMetrics,
) *Session {
	id := utils.GenerateUUIDv7()
	sctx, cancel := context.WithCancel(telemetry.AppendCommonAttrs(ctx,
		semconv.Echo.SessionID.String(id),
	))

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}
	queue := cfg.SendQueueSize
	if queue <= 0 {
		queue = 1
	}

	return &Session{
		id:        id,
		conn:      conn,
		cfg:       cfg,
		handler:   handler,
		onClose:   onClose,
		limiter:   rate.NewLimiter(limit, burst),
		sendCh:    make(chan []byte, queue),
		telemetry: tel,
		metrics:   metrics,
		ctx:       sctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
}

// ID implementa TerminalSession.
func (s *Session) ID() string {
	return s.id
}

// Context retorna el contexto de la sesión (cancelado al cerrar).
func (s *Session) Context() context.Context {
	return s.ctx
}

// Done se cierra cuando Run terminó.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Run procesa la sesión hasta que la conexión se cierra. Bloquea.
func (s *Session) Run() {
	s.metrics.SessionOpened(s.ctx)
	s.telemetry.Info(s.ctx, "Session opened",
		attribute.String("remote_addr", s.conn.RemoteAddr()),
	)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.writeLoop()
	}()

	err := s.readLoop()

	s.Close()
	wg.Wait()

	if s.onClose != nil {
		s.onClose(context.WithoutCancel(s.ctx), s)
	}
	s.metrics.SessionClosed(context.WithoutCancel(s.ctx))

	attrs := []attribute.KeyValue{}
	if err != nil {
		attrs = append(attrs, attribute.String("error", err.Error()))
	}
	s.telemetry.Info(context.WithoutCancel(s.ctx), "Session closed", attrs...)
	close(s.done)
}

// readLoop lee frames y los despacha en orden.
func (s *Session) readLoop() error {
	for {
		frame, err := s.conn.ReadFrame()
		if err != nil {
			if s.ctx.Err() != nil {
				return nil
			}
			return err
		}

		if err := s.limiter.Wait(s.ctx); err != nil {
			return nil
		}

		s.handler(s.ctx, s, frame)
	}
}

// writeLoop envía los frames encolados y los pings de keepalive.
func (s *Session) writeLoop() {
	var tick <-chan time.Time
	p, canPing := s.conn.(pinger)
	if canPing && s.cfg.PingInterval > 0 {
		ticker := time.NewTicker(s.cfg.PingInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case data := <-s.sendCh:
			if err := s.conn.WriteFrame(data); err != nil {
				s.telemetry.Error(s.ctx, "Failed to write frame", err)
				s.Close()
				return
			}

		case <-tick:
			if err := p.Ping(); err != nil {
				s.telemetry.Warn(s.ctx, "Ping failed",
					attribute.String("error", err.Error()),
				)
				s.Close()
				return
			}

		case <-s.ctx.Done():
			return
		}
	}
}

// Send implementa TerminalSession.
//
// Encola el mensaje; si la cola está llena espera hasta SendTimeout.
func (s *Session) Send(ctx context.Context, msg domain.OutgoingMessage) error {
	data, err := domain.EncodeOutgoing(msg)
	if err != nil {
		return err
	}
	if s.ctx.Err() != nil {
		return ErrSessionClosed
	}

	select {
	case s.sendCh <- data:
		return nil
	default:
	}

	timer := time.NewTimer(s.cfg.SendTimeout)
	defer timer.Stop()

	select {
	case s.sendCh <- data:
		return nil
	case <-s.ctx.Done():
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrSendQueueFull
	}
}

// Close cierra la sesión. Es idempotente.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.cancel()
		err = s.conn.Close()
	})
	return err
}

// ===========================================================================
// WebSocket
// ===========================================================================

type wsConn struct {
	ws           *websocket.Conn
	writeTimeout time.Duration
	pongTimeout  time.Duration
}

// NewWebSocketConn adapta una conexión gorilla/websocket a FrameConn.
//
// Con PongTimeout > 0 la lectura vence si no llega ningún frame ni pong a tiempo.
func NewWebSocketConn(ws *websocket.Conn, cfg SessionConfig) FrameConn {
	c := &wsConn{ws: ws, writeTimeout: cfg.WriteTimeout, pongTimeout: cfg.PongTimeout}
	ws.SetReadLimit(maxFrameSize)
	if c.pongTimeout > 0 {
		_ = ws.SetReadDeadline(time.Now().Add(c.pongTimeout))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(c.pongTimeout))
		})
	}
	return c
}

func (c *wsConn) ReadFrame() ([]byte, error) {
	for {
		mt, data, err := c.ws.ReadMessage()
		if err != nil {
			return nil, err
		}
		if c.pongTimeout > 0 {
			_ = c.ws.SetReadDeadline(time.Now().Add(c.pongTimeout))
		}
		if mt == websocket.TextMessage || mt == websocket.BinaryMessage {
			return data, nil
		}
	}
}

func (c *wsConn) WriteFrame(data []byte) error {
	if c.writeTimeout > 0 {
		if err := c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return err
		}
	}
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) Ping() error {
	var deadline time.Time
	if c.writeTimeout > 0 {
		deadline = time.Now().Add(c.writeTimeout)
	}
	return c.ws.WriteControl(websocket.PingMessage, nil, deadline)
}

func (c *wsConn) Close() error {
	return c.ws.Close()
}

func (c *wsConn) RemoteAddr() string {
	return c.ws.RemoteAddr().String()
}

// ===========================================================================
// IPC (named pipe / unix socket)
// ===========================================================================

type ipcConn struct {
	conn *ipc.Conn
}

// NewIPCConn adapta una conexión IPC line-delimited a FrameConn.
func NewIPCConn(conn *ipc.Conn) FrameConn {
	return &ipcConn{conn: conn}
}

func (c *ipcConn) ReadFrame() ([]byte, error) { return c.conn.ReadLine() }
func (c *ipcConn) WriteFrame(data []byte) error {
	return c.conn.WriteLine(data)
}
func (c *ipcConn) Close() error       { return c.conn.Close() }
func (c *ipcConn) RemoteAddr() string { return c.conn.RemoteAddr() }
