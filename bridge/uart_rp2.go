//go:build rp2040 || rp2350

package bridge

import (
	"context"
	"errors"
	"io"
	"machine"

	"github.com/jangala-dev/tinygo-uartx/uartx"
)

func init() {
	UARTDial = dialUARTx
}

// uartxConn adapts a uartx.UART to io.ReadWriteCloser so it can satisfy
// Transport.Open. The link to the controller bridge process never closes on
// its own; Close just stops further reads from blocking supervisor teardown.
type uartxConn struct {
	u      *uartx.UART
	ctx    context.Context
	cancel context.CancelFunc
}

func dialUARTx(ctx context.Context, cfg UARTConfig) (io.ReadWriteCloser, error) {
	var port *uartx.UART
	switch cfg.RxPin {
	case 1, 13, 17, 29:
		port = uartx.UART1
	default:
		port = uartx.UART0
	}
	if err := port.Configure(uartx.UARTConfig{
		BaudRate: uint32(cfg.Baud),
		TX:       machine.Pin(cfg.TxPin),
		RX:       machine.Pin(cfg.RxPin),
	}); err != nil {
		return nil, err
	}
	cctx, cancel := context.WithCancel(ctx)
	return &uartxConn{u: port, ctx: cctx, cancel: cancel}, nil
}

func (c *uartxConn) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	n, err := c.u.RecvSomeContext(c.ctx, p)
	if n == 0 && err == nil {
		return 0, errors.New("uartx: no data")
	}
	return n, err
}

func (c *uartxConn) Write(p []byte) (int, error) { return c.u.Write(p) }

func (c *uartxConn) Close() error {
	c.cancel()
	return nil
}
