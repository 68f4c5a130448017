package ipc

import (
	"fmt"
	"time"

	"github.com/xKoRx/echo/sdk/utils"
)

// WriteLine escribe un frame en una sola línea (JSON compactado) terminada en \n.
//
// Es thread-safe (serializa writes con mutex).
func (c *Conn) WriteLine(data []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	data = utils.EnsureNewlineBytes(utils.Compact(data))

	if c.timeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
			return err
		}
	}

	n, err := c.conn.Write(data)
	if err != nil {
		return fmt.Errorf("write failed: %w", err)
	}

	if n != len(data) {
		return fmt.Errorf("incomplete write: wrote %d of %d bytes", n, len(data))
	}

	return nil
}
