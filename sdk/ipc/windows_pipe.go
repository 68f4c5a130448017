//go:build windows

package ipc

import (
	"context"
	"fmt"
	"net"

	"github.com/Microsoft/go-winio"
)

// address retorna \\.\pipe\<name>.
func address(name string) string {
	return fmt.Sprintf(`\\.\pipe\%s`, name)
}

func listen(cfg *PipeConfig) (net.Listener, error) {
	pipeConfig := &winio.PipeConfig{
		// Default: acceso local
		SecurityDescriptor: "",
		// byte mode (line-delimited)
		MessageMode:      false,
		InputBufferSize:  int32(cfg.BufferSize),
		OutputBufferSize: int32(cfg.BufferSize),
	}

	listener, err := winio.ListenPipe(address(cfg.Name), pipeConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipe listener: %w", err)
	}
	return listener, nil
}

func dial(ctx context.Context, name string) (net.Conn, error) {
	conn, err := winio.DialPipeContext(ctx, address(name))
	if err != nil {
		return nil, fmt.Errorf("failed to dial pipe %s: %w", name, err)
	}
	return conn, nil
}
