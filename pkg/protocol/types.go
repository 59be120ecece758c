package protocol

import "time"

// Opcode is a single-byte command or report identifier.
type Opcode uint8

// Frame is the unit of transfer in either direction.
type Frame struct {
	Seq     uint8
	Op      Opcode
	Payload []byte
}

// Command is an outbound instruction. Parameter validation happens in
// the constructors; a constructed Command always encodes cleanly.
type Command struct {
	Name    string
	Op      Opcode
	Acked   bool
	Payload []byte
}

// Frame binds a command to a correlation id for encoding.
func (c Command) Frame(seq uint8) Frame {
	return Frame{Seq: seq, Op: c.Op, Payload: c.Payload}
}

// EventKind discriminates decoded inbound traffic.
type EventKind int

const (
	EventAck EventKind = iota
	EventSensor
	EventProtocolError
)

func (k EventKind) String() string {
	switch k {
	case EventAck:
		return "ack"
	case EventSensor:
		return "sensor"
	case EventProtocolError:
		return "protocol_error"
	default:
		return "unknown"
	}
}

// Event is a decoded inbound frame: an acknowledgment, a sensor report,
// or a protocol error the engine logs and moves past.
type Event struct {
	Kind       EventKind
	Seq        uint8      // ack correlation id
	Status     uint8      // ack status, 0 means success
	Sensor     SensorKind // sensor report kind
	Data       any        // decoded sensor value
	Op         Opcode     // originating opcode
	Payload    []byte     // raw payload bytes
	ReceivedAt time.Time
	Err        error // protocol error reason
}
