package protocol

import (
	"errors"
	"fmt"
)

// ErrIncomplete reports that the buffer does not yet hold a whole
// frame. The caller keeps the bytes and retries after the next read.
var ErrIncomplete = errors.New("incomplete frame")

// MalformedError reports a frame that failed structural validation.
// Skipped says how many buffered bytes Decode consumed while moving to
// the next plausible start marker.
type MalformedError struct {
	Reason  string
	Skipped int
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed frame: %s (skipped %d bytes)", e.Reason, e.Skipped)
}

// InvalidParameterError rejects an out-of-range command parameter
// before any I/O happens.
type InvalidParameterError struct {
	Command string
	Param   string
	Value   any
	Reason  string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("%s: invalid %s %v: %s", e.Command, e.Param, e.Value, e.Reason)
}

// UnknownOpcodeError marks an inbound frame whose opcode is in neither
// the ack slot nor the sensor table. Telemetry decoding logs these and
// keeps going.
type UnknownOpcodeError struct {
	Op Opcode
}

func (e *UnknownOpcodeError) Error() string {
	return fmt.Sprintf("unknown opcode 0x%02x", uint8(e.Op))
}
