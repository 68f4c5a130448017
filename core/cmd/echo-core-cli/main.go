package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/xKoRx/echo/core/internal"
	"github.com/xKoRx/echo/core/internal/repository"
	"github.com/xKoRx/echo/sdk/domain"
	"github.com/xKoRx/echo/sdk/etcd"
	grpcsdk "github.com/xKoRx/echo/sdk/grpc"
	"github.com/xKoRx/echo/sdk/telemetry"
	"github.com/xKoRx/echo/sdk/telemetry/metricbundle"
	"github.com/xKoRx/echo/sdk/telemetry/semconv"
	"github.com/xKoRx/echo/sdk/utils"
	"google.golang.org/grpc"
)

const defaultTimeout = 15 * time.Second

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fail("error cargando .env: %v", err)
	}

	command := os.Args[1]
	switch command {
	case "migrate":
		runMigrate(os.Args[2:])
	case "terminals":
		runTerminals(os.Args[2:])
	case "routes":
		runRoutes(os.Args[2:])
	case "rules":
		runRules(os.Args[2:])
	case "config":
		runConfig(os.Args[2:])
	case "health":
		runHealth(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "comando desconocido: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	usage := `echo-core-cli - herramientas operativas para Echo Core

Uso:
  echo-core-cli migrate
  echo-core-cli terminals add --label <label> [--tier BRONZE|SILVER|GOLD] [--id <uuid>]
  echo-core-cli terminals show --id <uuid|tail>
  echo-core-cli routes add --source <id|tail> --destination <id|tail> [--source ... --destination ...]
  echo-core-cli routes delete --route <n> --terminal <uuid>
  echo-core-cli rules set --terminal <uuid> --file <rules.json>
  echo-core-cli rules show --terminal <uuid>
  echo-core-cli rules schema
  echo-core-cli config list [--prefix core/]
  echo-core-cli config get|delete <key>
  echo-core-cli config set <key> <value>
  echo-core-cli health [--addr localhost:50051] [--trace-id ID] [--verbose]

Comandos:
  migrate     Aplica el esquema embebido.
  terminals   Alta y consulta de terminales.
  routes      Aprovisiona o da de baja rutas.
  rules       Reemplaza, muestra o describe cadenas de reglas.
  config      Administra las claves ETCD del entorno (ENV).
  health      Consulta el gRPC health del Core.
`
	fmt.Fprintln(os.Stderr, usage)
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

// multiFlag acumula un flag repetible.
type multiFlag []string

func (m *multiFlag) String() string     { return strings.Join(*m, ",") }
func (m *multiFlag) Set(v string) error { *m = append(*m, v); return nil }

// env agrupa las dependencias abiertas por cada comando.
type env struct {
	cfg     *internal.Config
	factory *repository.SQLFactory
	tel     *telemetry.Client
	metrics *metricbundle.EchoMetrics
}

func openEnv(ctx context.Context) *env {
	cfg, err := internal.LoadConfig(ctx)
	if err != nil {
		fail("error cargando configuración: %v", err)
	}

	db, err := repository.Open(ctx, cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		fail("error abriendo base: %v", err)
	}
	factory, err := repository.NewSQLFactory(db, cfg.DBDriver)
	if err != nil {
		fail("error creando repositorios: %v", err)
	}

	tel, err := telemetry.New(ctx, "echo-core-cli", cfg.Environment,
		telemetry.WithLogLevel("WARN"),
		telemetry.WithLogWriter(os.Stderr),
		telemetry.WithMetricsDisabled(),
		telemetry.WithTracesDisabled(),
		telemetry.WithCommonAttributes(semconv.Echo.Component.String(semconv.ComponentCLI)),
	)
	if err != nil {
		fail("error inicializando telemetría: %v", err)
	}
	metrics, err := metricbundle.NewEchoMetrics(tel.Meter())
	if err != nil {
		fail("error creando métricas: %v", err)
	}

	return &env{cfg: cfg, factory: factory, tel: tel, metrics: metrics}
}

func (e *env) close() {
	e.factory.DB().Close()
	e.tel.Shutdown(context.Background())
}

func printJSON(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		fail("error serializando resultado: %v", err)
	}
	fmt.Println(utils.PrettyPrint(data))
}

// ===========================================================================
// migrate
// ===========================================================================

func runMigrate(args []string) {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	timeout := fs.Duration("timeout", defaultTimeout, "Timeout de la operación")
	_ = fs.Parse(args)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	e := openEnv(ctx)
	defer e.close()

	if err := repository.Migrate(ctx, e.factory.DB(), e.cfg.DBDriver); err != nil {
		fail("error aplicando esquema: %v", err)
	}
	fmt.Printf("Esquema %s aplicado\n", e.cfg.DBDriver)
}

// ===========================================================================
// terminals
// ===========================================================================

type terminalView struct {
	ID           string     `json:"id"`
	Tail         string     `json:"tail"`
	Label        string     `json:"label"`
	Tier         string     `json:"tier"`
	Enabled      bool       `json:"enabled"`
	Active       bool       `json:"active"`
	RegisteredAt time.Time  `json:"registered_at"`
	ExpireAt     *time.Time `json:"expire_at,omitempty"`
}

func viewTerminal(t *domain.Terminal) terminalView {
	return terminalView{
		ID:           t.ID.String(),
		Tail:         t.Tail(),
		Label:        t.Label,
		Tier:         t.Tier.String(),
		Enabled:      t.Enabled,
		Active:       t.IsActive(),
		RegisteredAt: t.RegisteredAt,
		ExpireAt:     t.ExpireAt,
	}
}

func runTerminals(args []string) {
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	switch args[0] {
	case "add":
		terminalsAdd(args[1:])
	case "show":
		terminalsShow(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "subcomando terminals desconocido: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func terminalsAdd(args []string) {
	fs := flag.NewFlagSet("terminals add", flag.ExitOnError)
	label := fs.String("label", "", "Etiqueta de la terminal")
	tierFlag := fs.String("tier", "BRONZE", "Tier (BRONZE, SILVER, GOLD)")
	idFlag := fs.String("id", "", "UUID de la terminal (default: nuevo UUIDv7)")
	_ = fs.Parse(args)

	tier, err := domain.ParseTier(*tierFlag)
	if err != nil {
		fail("%v", err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		fail("error generando id: %v", err)
	}
	if *idFlag != "" {
		if id, err = domain.ParseTerminalID(*idFlag); err != nil {
			fail("%v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	e := openEnv(ctx)
	defer e.close()

	repo := e.factory.TerminalRepository()
	existing, err := repo.Get(ctx, id)
	if err != nil {
		fail("error consultando terminal: %v", err)
	}
	if existing != nil {
		fail("la terminal %s ya existe", id)
	}

	term := domain.NewTerminal(id, *label, tier)
	if err := repo.Save(ctx, term); err != nil {
		fail("error guardando terminal: %v", err)
	}
	printJSON(viewTerminal(term))
}

func terminalsShow(args []string) {
	fs := flag.NewFlagSet("terminals show", flag.ExitOnError)
	idFlag := fs.String("id", "", "UUID o tail de la terminal")
	_ = fs.Parse(args)

	if *idFlag == "" {
		fmt.Fprintln(os.Stderr, "--id es requerido")
		fs.Usage()
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	e := openEnv(ctx)
	defer e.close()

	term := lookupTerminal(ctx, e, *idFlag)
	printJSON(viewTerminal(term))
}

func lookupTerminal(ctx context.Context, e *env, ref string) *domain.Terminal {
	repo := e.factory.TerminalRepository()
	var (
		term *domain.Terminal
		err  error
	)
	if domain.IsTail(ref) {
		term, err = repo.GetByTail(ctx, ref)
	} else {
		id, perr := domain.ParseTerminalID(ref)
		if perr != nil {
			fail("%v", perr)
		}
		term, err = repo.Get(ctx, id)
	}
	if err != nil {
		fail("error consultando terminal: %v", err)
	}
	if term == nil {
		fail("terminal %s no encontrada", ref)
	}
	return term
}

// ===========================================================================
// routes
// ===========================================================================

func runRoutes(args []string) {
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	switch args[0] {
	case "add":
		routesAdd(args[1:])
	case "delete":
		routesDelete(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "subcomando routes desconocido: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func routesAdd(args []string) {
	fs := flag.NewFlagSet("routes add", flag.ExitOnError)
	var sources, destinations multiFlag
	fs.Var(&sources, "source", "Terminal origen (UUID o tail, repetible)")
	fs.Var(&destinations, "destination", "Terminal destino (UUID o tail, repetible)")
	_ = fs.Parse(args)

	if len(sources) == 0 && len(destinations) == 0 {
		fmt.Fprintln(os.Stderr, "--source y --destination son requeridos")
		fs.Usage()
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	e := openEnv(ctx)
	defer e.close()

	p := internal.NewProvisioner(e.factory, e.cfg.MaxRoutesPerSource, e.tel, e.metrics)
	failed := false
	for i, res := range p.AddRoutes(ctx, sources, destinations) {
		if res.Err != nil {
			failed = true
			fmt.Printf("#%d error: %v\n", i, res.Err)
			continue
		}
		fmt.Printf("#%d route %d: %s -> %s [%s]\n", i,
			res.Route.ID, res.Route.Source.ID, res.Route.Destination.ID, res.Route.Status)
	}
	if failed {
		os.Exit(2)
	}
}

func routesDelete(args []string) {
	fs := flag.NewFlagSet("routes delete", flag.ExitOnError)
	routeID := fs.Int64("route", 0, "ID de la ruta")
	terminal := fs.String("terminal", "", "UUID de la terminal que se retira")
	_ = fs.Parse(args)

	if *routeID <= 0 || *terminal == "" {
		fmt.Fprintln(os.Stderr, "--route y --terminal son requeridos")
		fs.Usage()
		os.Exit(1)
	}
	caller, err := domain.ParseTerminalID(*terminal)
	if err != nil {
		fail("%v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	e := openEnv(ctx)
	defer e.close()

	p := internal.NewProvisioner(e.factory, e.cfg.MaxRoutesPerSource, e.tel, e.metrics)
	route, removed, err := p.DeleteRoute(ctx, caller, domain.RouteID(*routeID))
	if err != nil {
		fail("error: %v", err)
	}
	if removed {
		fmt.Printf("route %d removed\n", *routeID)
		return
	}
	fmt.Printf("route %d now %s\n", route.ID, route.Status)
}

// ===========================================================================
// rules
// ===========================================================================

func runRules(args []string) {
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	switch args[0] {
	case "set":
		rulesSet(args[1:])
	case "show":
		rulesShow(args[1:])
	case "schema":
		rulesSchema()
	default:
		fmt.Fprintf(os.Stderr, "subcomando rules desconocido: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func rulesSet(args []string) {
	fs := flag.NewFlagSet("rules set", flag.ExitOnError)
	terminal := fs.String("terminal", "", "UUID o tail de la terminal")
	file := fs.String("file", "", "Archivo JSON con la cadena de reglas")
	_ = fs.Parse(args)

	if *terminal == "" || *file == "" {
		fmt.Fprintln(os.Stderr, "--terminal y --file son requeridos")
		fs.Usage()
		os.Exit(1)
	}

	data, err := os.ReadFile(*file)
	if err != nil {
		fail("error leyendo %s: %v", *file, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	e := openEnv(ctx)
	defer e.close()

	term := lookupTerminal(ctx, e, *terminal)
	chain, err := domain.ParseRuleChain(term.ID, data)
	if err != nil {
		fail("cadena inválida: %v", err)
	}
	if err := e.factory.RuleRepository().Save(ctx, term.ID, chain); err != nil {
		fail("error guardando reglas: %v", err)
	}
	fmt.Printf("%d reglas guardadas para %s\n", chain.Len(), term.ID)
}

func rulesShow(args []string) {
	fs := flag.NewFlagSet("rules show", flag.ExitOnError)
	terminal := fs.String("terminal", "", "UUID o tail de la terminal")
	_ = fs.Parse(args)

	if *terminal == "" {
		fmt.Fprintln(os.Stderr, "--terminal es requerido")
		fs.Usage()
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	e := openEnv(ctx)
	defer e.close()

	term := lookupTerminal(ctx, e, *terminal)
	chain, err := e.factory.RuleRepository().Get(ctx, term.ID)
	if err != nil {
		fail("error consultando reglas: %v", err)
	}
	if chain == nil {
		fail("la terminal %s no tiene cadena de reglas", term.ID)
	}
	printJSON(chain)
}

func rulesSchema() {
	type fieldOps struct {
		Type       string   `json:"type"`
		Filters    []string `json:"filters"`
		Transforms []string `json:"transforms"`
	}
	fields := make(map[string]fieldOps)
	for name, typ := range domain.FieldTypes() {
		ops := fieldOps{Type: typ}
		if filters, err := domain.FilterOperatorsFor(name); err == nil {
			for _, op := range filters {
				ops.Filters = append(ops.Filters, op.String())
			}
		}
		if transforms, err := domain.TransformOperatorsFor(name); err == nil {
			for _, op := range transforms {
				ops.Transforms = append(ops.Transforms, op.String())
			}
		}
		fields[name] = ops
	}

	printJSON(map[string]any{
		"fields": fields,
		"enums":  domain.Enums(),
	})
}

// ===========================================================================
// config
// ===========================================================================

func runConfig(args []string) {
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	boot, err := internal.LoadBootstrap()
	if err != nil {
		fail("error cargando bootstrap: %v", err)
	}
	opts := []etcd.Option{
		etcd.WithApp("echo"),
		etcd.WithEnv(boot.Environment),
	}
	if len(boot.EtcdEndpoints) > 0 {
		opts = append(opts, etcd.WithEndpoints(boot.EtcdEndpoints...))
	}
	client, err := etcd.New(opts...)
	if err != nil {
		fail("error creando cliente ETCD: %v", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	sub, rest := args[0], args[1:]
	switch sub {
	case "list":
		fs := flag.NewFlagSet("config list", flag.ExitOnError)
		prefix := fs.String("prefix", "", "Prefijo relativo al namespace")
		_ = fs.Parse(rest)

		vars, err := client.ListVars(ctx, *prefix)
		if err != nil {
			fail("error listando claves: %v", err)
		}
		keys := make([]string, 0, len(vars))
		for k := range vars {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Printf("# %s\n", client.NamespacePrefix())
		for _, k := range keys {
			fmt.Printf("%s=%s\n", k, vars[k])
		}

	case "get":
		if len(rest) != 1 {
			fail("uso: echo-core-cli config get <key>")
		}
		val, err := client.GetVar(ctx, rest[0])
		if err != nil {
			fail("%v", err)
		}
		fmt.Println(val)

	case "set":
		if len(rest) != 2 {
			fail("uso: echo-core-cli config set <key> <value>")
		}
		if err := client.SetVar(ctx, rest[0], rest[1]); err != nil {
			fail("%v", err)
		}
		fmt.Printf("%s%s actualizado\n", client.NamespacePrefix(), rest[0])

	case "delete":
		if len(rest) != 1 {
			fail("uso: echo-core-cli config delete <key>")
		}
		if err := client.DeleteVar(ctx, rest[0]); err != nil {
			fail("%v", err)
		}
		fmt.Printf("%s%s eliminado\n", client.NamespacePrefix(), rest[0])

	default:
		fmt.Fprintf(os.Stderr, "subcomando config desconocido: %s\n", sub)
		printUsage()
		os.Exit(1)
	}
}

// ===========================================================================
// health
// ===========================================================================

func runHealth(args []string) {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	addr := fs.String("addr", "localhost:50051", "Dirección gRPC del Core")
	timeout := fs.Duration("timeout", 5*time.Second, "Timeout de la consulta")
	traceID := fs.String("trace-id", "", "trace_id a propagar (default: generado)")
	verbose := fs.Bool("verbose", false, "Loguea cada llamada RPC")
	_ = fs.Parse(args)

	boot, err := internal.LoadBootstrap()
	if err != nil {
		fail("error cargando bootstrap: %v", err)
	}

	level := "WARN"
	if *verbose {
		level = "DEBUG"
	}
	tel, err := telemetry.New(context.Background(), "echo-core-cli", boot.Environment,
		telemetry.WithLogLevel(level),
		telemetry.WithLogWriter(os.Stderr),
		telemetry.WithMetricsDisabled(),
		telemetry.WithTracesDisabled(),
		telemetry.WithCommonAttributes(semconv.Echo.Component.String(semconv.ComponentCLI)),
	)
	if err != nil {
		fail("error inicializando telemetría: %v", err)
	}
	defer tel.Shutdown(context.Background())

	cfg := grpcsdk.DefaultClientConfig(*addr)
	cfg.UnaryInterceptors = []grpc.UnaryClientInterceptor{
		grpcsdk.TracingUnaryClientInterceptor(),
		grpcsdk.LoggingUnaryClientInterceptor(tel),
	}
	client, err := grpcsdk.NewClient(cfg)
	if err != nil {
		fail("error creando cliente: %v", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	if *traceID != "" {
		ctx = grpcsdk.SetTraceID(ctx, *traceID)
	}
	ctx, id := grpcsdk.GetOrGenerateTraceID(ctx)

	serving, err := client.CheckHealth(ctx, internal.HealthService)
	if err != nil {
		fail("health check falló (%s, trace_id=%s): %v", client.State(), id, err)
	}
	if !serving {
		fail("%s NOT_SERVING (trace_id=%s)", internal.HealthService, id)
	}
	fmt.Printf("%s SERVING\n", internal.HealthService)
}
