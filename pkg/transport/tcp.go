package transport

import (
	"context"
	"net"
	"time"
)

// TCPDialer connects to robots reachable over TCP: the mock emulator,
// or an RFCOMM-to-TCP bridge in front of the real hardware.
type TCPDialer struct {
	Timeout time.Duration
}

// Dial opens a TCP channel to address (host:port).
func (d TCPDialer) Dial(ctx context.Context, address string) (Channel, error) {
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, &OpenError{Address: address, Err: err}
	}
	return &netChannel{conn: conn}, nil
}

// netChannel adapts a net.Conn to the Channel contract using read
// deadlines. Shared by the TCP dialer and the in-memory pipe.
type netChannel struct {
	conn net.Conn
}

func (c *netChannel) Read(p []byte, timeout time.Duration) (int, error) {
	if timeout > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return 0, err
		}
	} else {
		if err := c.conn.SetReadDeadline(time.Time{}); err != nil {
			return 0, err
		}
	}
	n, err := c.conn.Read(p)
	if err != nil {
		if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
			return n, ErrReadTimeout
		}
		return n, err
	}
	return n, nil
}

func (c *netChannel) Write(p []byte) (int, error) {
	return c.conn.Write(p)
}

func (c *netChannel) Close() error {
	return c.conn.Close()
}
