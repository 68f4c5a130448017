// Package ipc provee el transporte local del copiador.
//
// En Windows usa Named Pipes (github.com/Microsoft/go-winio); en el resto de
// plataformas usa Unix Domain Sockets en el directorio temporal. Ambos exponen
// net.Listener / net.Conn, de modo que el core sirve terminales locales con la
// misma lógica de sesión que usa para WebSocket.
//
// # Protocolo
//
// JSON line-delimited: cada frame es un sobre {"message": {...}} terminado en \n.
//
// # Uso (servidor)
//
//	ln, err := ipc.Listen(ipc.DefaultPipeConfig("echo_core"))
//	if err != nil {
//	    return err
//	}
//	defer ln.Close()
//	conn, _ := ln.Accept()
//	lc := ipc.NewConn(conn, 0)
//	frame, err := lc.ReadLine()
//
// # Uso (terminal local)
//
//	conn, err := ipc.Dial(ctx, "echo_core")
//	lc := ipc.NewConn(conn, 5*time.Second)
//	err = lc.WriteLine(frame)
package ipc

import (
	"context"
	"io"
	"net"
	"time"
)

// PipeConfig configuración para crear el listener local.
type PipeConfig struct {
	// Name nombre del pipe (sin el prefijo \\.\pipe\ ni extensión)
	Name string

	// BufferSize tamaño del buffer del pipe (bytes)
	BufferSize int

	// Timeout timeout por defecto para operaciones (0 = sin timeout)
	Timeout time.Duration
}

// DefaultPipeConfig retorna una configuración por defecto.
func DefaultPipeConfig(name string) *PipeConfig {
	return &PipeConfig{
		Name:       name,
		BufferSize: 64 * 1024,
		Timeout:    5 * time.Second,
	}
}

// Listen crea el listener local para cfg.Name.
func Listen(cfg *PipeConfig) (net.Listener, error) {
	if cfg == nil || cfg.Name == "" {
		return nil, errMissingName
	}
	return listen(cfg)
}

// Dial conecta al listener local name.
func Dial(ctx context.Context, name string) (net.Conn, error) {
	if name == "" {
		return nil, errMissingName
	}
	return dial(ctx, name)
}

// Address retorna la ruta física del listener name en esta plataforma.
func Address(name string) string {
	return address(name)
}

// ErrPipeClosed indica que el pipe fue cerrado.
var ErrPipeClosed = io.ErrClosedPipe

var errMissingName = &ErrInvalidMessage{Reason: "pipe name is required"}

// ErrInvalidMessage indica un frame inválido o una configuración incompleta.
type ErrInvalidMessage struct {
	Reason string
	Data   []byte
}

func (e *ErrInvalidMessage) Error() string {
	return "invalid message: " + e.Reason
}

// NewErrInvalidMessage crea un error de mensaje inválido.
func NewErrInvalidMessage(reason string, data []byte) error {
	return &ErrInvalidMessage{
		Reason: reason,
		Data:   data,
	}
}
