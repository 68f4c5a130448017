package ipc

import (
	"bufio"
	"bytes"
	"io"
	"net"
	"sync"
	"time"

	"github.com/xKoRx/echo/sdk/utils"
)

// maxLineSize es el tamaño máximo de un frame.
const maxLineSize = 1024 * 1024

// Conn envuelve una conexión local con framing line-delimited.
//
// ReadLine no es thread-safe (un único lector); WriteLine sí.
type Conn struct {
	conn    net.Conn
	scanner *bufio.Scanner
	timeout time.Duration
	wmu     sync.Mutex
}

// NewConn crea un Conn. timeout aplica a cada escritura (0 = sin timeout);
// las lecturas bloquean hasta recibir una línea o cerrar la conexión.
func NewConn(conn net.Conn, timeout time.Duration) *Conn {
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	return &Conn{
		conn:    conn,
		scanner: scanner,
		timeout: timeout,
	}
}

// ReadLine lee el siguiente frame no vacío, sin el \n final.
//
// Retorna io.EOF cuando el extremo remoto cierra.
func (c *Conn) ReadLine() ([]byte, error) {
	for {
		if !c.scanner.Scan() {
			if err := c.scanner.Err(); err != nil {
				return nil, err
			}
			return nil, io.EOF
		}

		line := bytes.TrimSpace(c.scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		// Copiar para evitar reutilización del buffer interno
		result := make([]byte, len(line))
		copy(result, line)
		return result, nil
	}
}

// ReadJSON lee el siguiente frame y valida que sea JSON.
func (c *Conn) ReadJSON() ([]byte, error) {
	line, err := c.ReadLine()
	if err != nil {
		return nil, err
	}
	if err := utils.ValidateJSON(line); err != nil {
		return nil, NewErrInvalidMessage("invalid JSON", line)
	}
	return line, nil
}

// RemoteAddr retorna la dirección del extremo remoto.
func (c *Conn) RemoteAddr() string {
	if addr := c.conn.RemoteAddr(); addr != nil && addr.String() != "" {
		return addr.String()
	}
	return "local"
}

// Close cierra la conexión.
func (c *Conn) Close() error {
	return c.conn.Close()
}
