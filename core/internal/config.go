// Package internal contiene la lógica interna del Core.
//
// El Core recibe frames de las terminales, registra sesiones, despacha trades
// por el grafo de rutas y entrega los resultados. La configuración se carga
// del entorno y de ETCD.
package internal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/xKoRx/echo/core/internal/repository"
	"github.com/xKoRx/echo/sdk/etcd"
)

// Fuentes de configuración (ECHO_CONFIG_SOURCE).
const (
	ConfigSourceEtcd = "etcd"
	ConfigSourceEnv  = "env"
)

// Bootstrap es la configuración mínima leída del proceso antes de ETCD.
type Bootstrap struct {
	Environment   string   `env:"ENV" envDefault:"development"`
	EtcdEndpoints []string `env:"ETCD_ENDPOINTS" envSeparator:","`
	ConfigSource  string   `env:"ECHO_CONFIG_SOURCE" envDefault:"etcd"`
}

// Config configuración del Core.
//
// Los defaults y el entorno (ECHO_*) se aplican primero; con fuente etcd las
// claves del namespace echo/{environment} tienen prioridad.
type Config struct {
	// Transporte
	ListenAddr string `env:"ECHO_LISTEN_ADDR" envDefault:":8080"` // core/listen_addr
	GRPCPort   int    `env:"ECHO_GRPC_PORT" envDefault:"50051"`   // core/grpc_port (0 = deshabilitado)
	PipeName   string `env:"ECHO_PIPE_NAME"`                      // core/pipe_name ("" = deshabilitado)

	// Grafo
	MaxRoutesPerSource int `env:"ECHO_MAX_ROUTES_PER_SOURCE" envDefault:"10"` // core/max_routes_per_source

	// Base de datos
	DBDriver string `env:"ECHO_DB_DRIVER" envDefault:"sqlite"` // db/driver (postgres | sqlite)
	DBDSN    string `env:"ECHO_DB_DSN" envDefault:"echo.db"`   // db/dsn

	// Sesiones
	SendQueueSize int           `env:"ECHO_SEND_QUEUE_SIZE" envDefault:"1000"` // session/send_queue_size
	SendTimeout   time.Duration `env:"ECHO_SEND_TIMEOUT" envDefault:"1s"`      // session/send_timeout_ms
	WriteTimeout  time.Duration `env:"ECHO_WRITE_TIMEOUT" envDefault:"5s"`     // session/write_timeout_ms
	RateLimit     float64       `env:"ECHO_RATE_LIMIT" envDefault:"50"`        // session/rate_limit (frames/s, 0 = sin límite)
	RateBurst     int           `env:"ECHO_RATE_BURST" envDefault:"100"`       // session/rate_burst
	PingInterval  time.Duration `env:"ECHO_PING_INTERVAL" envDefault:"20s"`    // session/ping_interval_ms
	PongTimeout   time.Duration `env:"ECHO_PONG_TIMEOUT" envDefault:"60s"`     // session/pong_timeout_ms

	// Journal
	KafkaBrokers []string `env:"ECHO_KAFKA_BROKERS" envSeparator:","`       // journal/kafka_brokers (comma separated)
	KafkaTopic   string   `env:"ECHO_KAFKA_TOPIC" envDefault:"echo.trades"` // journal/kafka_topic

	// Telemetry
	OTLPEndpoint        string `env:"ECHO_OTLP_ENDPOINT"`                       // endpoints/otel/otlp_endpoint ("" = sin exporters)
	OTLPTracesEndpoint  string `env:"ECHO_OTLP_TRACES_ENDPOINT"`                // endpoints/otel/traces_endpoint
	OTLPMetricsEndpoint string `env:"ECHO_OTLP_METRICS_ENDPOINT"`               // endpoints/otel/metrics_endpoint
	LogLevel            string `env:"ECHO_LOG_LEVEL" envDefault:"INFO"`         // telemetry/log_level
	ServiceName         string `env:"ECHO_SERVICE_NAME" envDefault:"echo-core"` // telemetry/service_name
	ServiceVersion      string `env:"ECHO_SERVICE_VERSION" envDefault:"1.0.0"`  // telemetry/service_version
	Environment         string
}

// varSource es la parte de *etcd.Client que usa la carga de configuración.
type varSource interface {
	GetVarWithDefault(ctx context.Context, key, defaultValue string) (string, error)
	GetVarIntWithDefault(ctx context.Context, key string, defaultValue int) (int, error)
	GetVarFloatWithDefault(ctx context.Context, key string, defaultValue float64) (float64, error)
	GetVarDurationWithDefault(ctx context.Context, key string, defaultValue time.Duration) (time.Duration, error)
}

// LoadBootstrap lee ENV, ETCD_ENDPOINTS y ECHO_CONFIG_SOURCE.
func LoadBootstrap() (*Bootstrap, error) {
	boot, err := env.ParseAs[Bootstrap]()
	if err != nil {
		return nil, fmt.Errorf("failed to parse bootstrap environment: %w", err)
	}
	boot.ConfigSource = strings.ToLower(strings.TrimSpace(boot.ConfigSource))
	if boot.ConfigSource != ConfigSourceEtcd && boot.ConfigSource != ConfigSourceEnv {
		return nil, fmt.Errorf("ECHO_CONFIG_SOURCE must be %q or %q, got %q", ConfigSourceEtcd, ConfigSourceEnv, boot.ConfigSource)
	}
	return &boot, nil
}

// LoadConfig carga configuración desde el entorno y ETCD.
//
// Environment se determina desde la variable ENV (default: development).
//
// Uso:
//
//	cfg, err := internal.LoadConfig(ctx)
//	if err != nil {
//	    return err
//	}
func LoadConfig(ctx context.Context) (*Config, error) {
	boot, err := LoadBootstrap()
	if err != nil {
		return nil, err
	}

	cfg, err := configFromEnv()
	if err != nil {
		return nil, err
	}
	cfg.Environment = boot.Environment

	if boot.ConfigSource == ConfigSourceEtcd {
		opts := []etcd.Option{
			etcd.WithApp("echo"),
			etcd.WithEnv(boot.Environment),
		}
		if len(boot.EtcdEndpoints) > 0 {
			opts = append(opts, etcd.WithEndpoints(boot.EtcdEndpoints...))
		}
		etcdClient, err := etcd.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create ETCD client: %w", err)
		}
		defer etcdClient.Close()

		if err := cfg.applyVars(ctx, etcdClient); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultConfig retorna la configuración por defecto (sin leer ETCD).
func DefaultConfig() *Config {
	cfg, err := env.ParseAsWithOptions[Config](env.Options{Environment: map[string]string{}})
	if err != nil {
		panic(fmt.Sprintf("invalid config defaults: %v", err))
	}
	cfg.Environment = "development"
	return &cfg
}

func configFromEnv() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return &cfg, nil
}

// applyVars sobrescribe la configuración con las claves presentes en src.
//
// Las claves ausentes o vacías conservan el valor actual.
func (c *Config) applyVars(ctx context.Context, src varSource) error {
	l := varLoader{ctx: ctx, src: src}

	// Transporte
	l.str("core/listen_addr", &c.ListenAddr)
	l.int("core/grpc_port", &c.GRPCPort)
	l.str("core/pipe_name", &c.PipeName)
	l.int("core/max_routes_per_source", &c.MaxRoutesPerSource)

	// Base de datos
	l.str("db/driver", &c.DBDriver)
	l.str("db/dsn", &c.DBDSN)

	// Sesiones
	l.int("session/send_queue_size", &c.SendQueueSize)
	l.millis("session/send_timeout_ms", &c.SendTimeout)
	l.millis("session/write_timeout_ms", &c.WriteTimeout)
	l.float("session/rate_limit", &c.RateLimit)
	l.int("session/rate_burst", &c.RateBurst)
	l.millis("session/ping_interval_ms", &c.PingInterval)
	l.millis("session/pong_timeout_ms", &c.PongTimeout)

	// Journal
	brokers := strings.Join(c.KafkaBrokers, ",")
	l.str("journal/kafka_brokers", &brokers)
	c.KafkaBrokers = splitList(brokers)
	l.str("journal/kafka_topic", &c.KafkaTopic)

	// Telemetry
	l.str("endpoints/otel/otlp_endpoint", &c.OTLPEndpoint)
	l.str("endpoints/otel/traces_endpoint", &c.OTLPTracesEndpoint)
	l.str("endpoints/otel/metrics_endpoint", &c.OTLPMetricsEndpoint)
	l.str("telemetry/log_level", &c.LogLevel)
	l.str("telemetry/service_name", &c.ServiceName)
	l.str("telemetry/service_version", &c.ServiceVersion)

	if l.err != nil {
		return fmt.Errorf("failed to load config from ETCD: %w", l.err)
	}
	return nil
}

// Validate verifica la configuración cargada.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("core/listen_addr not configured")
	}
	if c.GRPCPort < 0 || c.GRPCPort > 65535 {
		return fmt.Errorf("core/grpc_port out of range: %d", c.GRPCPort)
	}
	if c.DBDriver != repository.DriverPostgres && c.DBDriver != repository.DriverSQLite {
		return fmt.Errorf("db/driver must be %q or %q, got %q", repository.DriverPostgres, repository.DriverSQLite, c.DBDriver)
	}
	if c.DBDSN == "" {
		return fmt.Errorf("db/dsn not configured")
	}
	if c.MaxRoutesPerSource <= 0 {
		return fmt.Errorf("core/max_routes_per_source must be positive")
	}
	if c.SendQueueSize <= 0 {
		return fmt.Errorf("session/send_queue_size must be positive")
	}
	if c.SendTimeout <= 0 {
		return fmt.Errorf("session/send_timeout_ms must be positive")
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("session/rate_limit must not be negative")
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		return fmt.Errorf("journal/kafka_topic not configured")
	}
	return nil
}

// SessionConfig retorna los parámetros de sesión.
func (c *Config) SessionConfig() SessionConfig {
	return SessionConfig{
		SendQueueSize: c.SendQueueSize,
		SendTimeout:   c.SendTimeout,
		WriteTimeout:  c.WriteTimeout,
		RateLimit:     c.RateLimit,
		RateBurst:     c.RateBurst,
		PingInterval:  c.PingInterval,
		PongTimeout:   c.PongTimeout,
	}
}

// ExportersEnabled indica si hay algún endpoint OTLP configurado.
func (c *Config) ExportersEnabled() bool {
	return c.OTLPEndpoint != "" || c.OTLPTracesEndpoint != "" || c.OTLPMetricsEndpoint != ""
}

// JournalEnabled indica si hay brokers Kafka configurados.
func (c *Config) JournalEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// varLoader lee claves tipadas de src y conserva el primer error.
type varLoader struct {
	ctx context.Context
	src varSource
	err error
}

func (l *varLoader) str(key string, dst *string) {
	if l.err == nil {
		*dst, l.err = l.src.GetVarWithDefault(l.ctx, key, *dst)
	}
}

func (l *varLoader) int(key string, dst *int) {
	if l.err == nil {
		*dst, l.err = l.src.GetVarIntWithDefault(l.ctx, key, *dst)
	}
}

func (l *varLoader) float(key string, dst *float64) {
	if l.err == nil {
		*dst, l.err = l.src.GetVarFloatWithDefault(l.ctx, key, *dst)
	}
}

func (l *varLoader) millis(key string, dst *time.Duration) {
	if l.err == nil {
		*dst, l.err = l.src.GetVarDurationWithDefault(l.ctx, key, *dst)
	}
}

func splitList(val string) []string {
	var out []string
	for _, part := range strings.Split(val, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
