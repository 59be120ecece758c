package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeout reports that a command got no acknowledgment within
	// its budget, retries included.
	ErrTimeout = errors.New("command timed out")

	// ErrConnectionLost fails every pending and subsequent send once
	// the link dies, until the next connect.
	ErrConnectionLost = errors.New("connection lost")

	// ErrNotConnected rejects sends outside a Connected session.
	ErrNotConnected = errors.New("not connected")

	// ErrAlreadyConnected rejects a connect on a live session.
	ErrAlreadyConnected = errors.New("already connected")
)

// CommandError reports a non-zero acknowledgment status from the
// firmware.
type CommandError struct {
	Command string
	Status  uint8
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s rejected by firmware: status 0x%02x", e.Command, e.Status)
}
