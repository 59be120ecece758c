package transport

import "net"

// Pipe returns the two ends of an in-memory duplex channel. Tests and
// the embedded mock robot use it to exercise the full engine without a
// socket.
func Pipe() (Channel, Channel) {
	a, b := net.Pipe()
	return &netChannel{conn: a}, &netChannel{conn: b}
}
