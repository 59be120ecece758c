// Package transport abstracts the byte link between host and robot.
//
// The engine never talks to a Bluetooth stack directly; it depends on
// Channel, a duplex byte pipe with timeout-bounded reads. Nothing here
// preserves message framing: reads may return partial or coalesced
// frames and the protocol codec has to cope.
package transport

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrReadTimeout reports that a read deadline passed without data.
// The engine's read loop treats it as "poll again", not link death.
var ErrReadTimeout = errors.New("read timeout")

// Channel is an open duplex byte link to a robot.
type Channel interface {
	// Read fills p with whatever bytes arrive within timeout.
	// A timeout of zero blocks until data or link failure.
	Read(p []byte, timeout time.Duration) (int, error)

	// Write sends p in full. Writers must not assume atomicity
	// across calls; the engine serializes them.
	Write(p []byte) (int, error)

	Close() error
}

// Dialer opens channels from an address string. Implementations decide
// the address format (device node, host:port).
type Dialer interface {
	Dial(ctx context.Context, address string) (Channel, error)
}

// OpenError wraps a dial failure with its address.
type OpenError struct {
	Address string
	Err     error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("open %s: %v", e.Address, e.Err)
}

func (e *OpenError) Unwrap() error { return e.Err }
