package grpc

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
)

// ClientConfig configuración para cliente gRPC.
type ClientConfig struct {
	// Target dirección del servidor (ej: "127.0.0.1:50051")
	Target string

	// KeepAlive configuración de keepalive
	KeepAlive *KeepAliveConfig

	// UnaryInterceptors interceptors para llamadas unary
	UnaryInterceptors []grpc.UnaryClientInterceptor
}

// KeepAliveConfig configuración de keepalive.
type KeepAliveConfig struct {
	// Time intervalo de keepalive pings
	Time time.Duration

	// Timeout timeout para respuesta de ping
	Timeout time.Duration

	// PermitWithoutStream permitir pings sin streams activos
	PermitWithoutStream bool
}

// DefaultClientConfig retorna configuración por defecto.
func DefaultClientConfig(target string) *ClientConfig {
	return &ClientConfig{
		Target: target,
		KeepAlive: &KeepAliveConfig{
			Time:                30 * time.Second,
			Timeout:             5 * time.Second,
			PermitWithoutStream: false,
		},
	}
}

// Client wrapper sobre grpc.ClientConn con funcionalidad adicional.
type Client struct {
	conn   *grpc.ClientConn
	target string
}

// NewClient crea un nuevo cliente gRPC sin TLS. La conexión se establece
// de forma perezosa en la primera llamada.
func NewClient(config *ClientConfig) (*Client, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}

	if config.KeepAlive != nil {
		opts = append(opts, grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                config.KeepAlive.Time,
			Timeout:             config.KeepAlive.Timeout,
			PermitWithoutStream: config.KeepAlive.PermitWithoutStream,
		}))
	}

	if len(config.UnaryInterceptors) > 0 {
		opts = append(opts, grpc.WithChainUnaryInterceptor(config.UnaryInterceptors...))
	}

	conn, err := grpc.NewClient(config.Target, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create client for %s: %w", config.Target, err)
	}

	return &Client{conn: conn, target: config.Target}, nil
}

// Conn retorna la conexión gRPC subyacente.
func (c *Client) Conn() *grpc.ClientConn {
	return c.conn
}

// Close cierra la conexión.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// Target retorna el target del cliente.
func (c *Client) Target() string {
	return c.target
}

// State retorna el estado de la conexión.
func (c *Client) State() connectivity.State {
	if c.conn == nil {
		return connectivity.Shutdown
	}
	return c.conn.GetState()
}

// CheckHealth consulta grpc.health.v1 y retorna true si el servicio está SERVING.
// service "" consulta el estado global del servidor.
func (c *Client) CheckHealth(ctx context.Context, service string) (bool, error) {
	resp, err := healthpb.NewHealthClient(c.conn).Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return false, fmt.Errorf("health check failed: %w", err)
	}
	return resp.GetStatus() == healthpb.HealthCheckResponse_SERVING, nil
}
