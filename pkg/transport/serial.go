package transport

import (
	"context"
	"io"
	"time"

	"github.com/tarm/serial"
)

// SerialDialer opens the RFCOMM device node a paired robot exposes
// (e.g. /dev/rfcomm0). Pairing and binding the node happen outside
// this package.
type SerialDialer struct {
	// Baud defaults to 115200 when zero.
	Baud int

	// PollInterval bounds how long a single port read blocks. The
	// tarm port fixes its read timeout at open, so per-call read
	// timeouts are emulated on top of this granularity.
	PollInterval time.Duration
}

// Dial opens the serial channel at the given device path.
func (d SerialDialer) Dial(_ context.Context, address string) (Channel, error) {
	baud := d.Baud
	if baud <= 0 {
		baud = 115200
	}
	poll := d.PollInterval
	if poll <= 0 {
		poll = 50 * time.Millisecond
	}
	port, err := serial.OpenPort(&serial.Config{
		Name:        address,
		Baud:        baud,
		ReadTimeout: poll,
	})
	if err != nil {
		return nil, &OpenError{Address: address, Err: err}
	}
	return &serialChannel{port: port, poll: poll}, nil
}

type serialChannel struct {
	port *serial.Port
	poll time.Duration
}

// Read polls the port until data arrives or timeout passes. The port
// reports an empty poll as zero bytes (or io.EOF on some platforms);
// both map to ErrReadTimeout once the deadline is spent.
func (c *serialChannel) Read(p []byte, timeout time.Duration) (int, error) {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	for {
		n, err := c.port.Read(p)
		if n > 0 {
			return n, nil
		}
		if err != nil && err != io.EOF {
			return 0, err
		}
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			return 0, ErrReadTimeout
		}
	}
}

func (c *serialChannel) Write(p []byte) (int, error) {
	return c.port.Write(p)
}

func (c *serialChannel) Close() error {
	return c.port.Close()
}
