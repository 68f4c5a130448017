//go:build !windows

package ipc

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
)

// address retorna <tmp>/<name>.sock, o name si ya es una ruta absoluta.
func address(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(os.TempDir(), name+".sock")
}

func listen(cfg *PipeConfig) (net.Listener, error) {
	path := address(cfg.Name)

	// Socket huérfano de una ejecución anterior
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to remove stale socket %s: %w", path, err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("failed to create socket listener: %w", err)
	}
	return listener, nil
}

func dial(ctx context.Context, name string) (net.Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", address(name))
	if err != nil {
		return nil, fmt.Errorf("failed to dial socket %s: %w", name, err)
	}
	return conn, nil
}
