// Command echo-core ejecuta el servicio copiador.
//
// Configuración: .env opcional, variables ENV / ETCD_ENDPOINTS /
// ECHO_CONFIG_SOURCE y claves ETCD bajo /echo/{env}/.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/xKoRx/echo/core/internal"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "echo-core: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := internal.LoadConfig(ctx)
	if err != nil {
		return err
	}

	core, err := internal.New(ctx, cfg)
	if err != nil {
		return err
	}

	if err := core.Start(); err != nil {
		core.Shutdown()
		return err
	}

	<-ctx.Done()

	return core.Shutdown()
}
