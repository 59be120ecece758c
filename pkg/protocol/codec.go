package protocol

import "bytes"

const (
	// SOP is the start-of-packet marker.
	SOP = 0xF5

	// MaxPayload bounds the payload so LEN stays within what the
	// firmware's fixed receive buffer holds.
	MaxPayload = 61

	minBodyLen = 2 // SEQ + OPCODE
	maxBodyLen = minBodyLen + MaxPayload

	// overhead: SOP + LEN + CKSUM around the body.
	frameOverhead = 3
)

// Encode serializes a frame. Frames built from constructed Commands are
// always encodable; payloads above MaxPayload are truncated by the
// constructors before they get here.
func Encode(f Frame) []byte {
	body := len(f.Payload) + minBodyLen
	out := make([]byte, 0, body+frameOverhead)
	out = append(out, SOP, uint8(body), f.Seq, uint8(f.Op))
	out = append(out, f.Payload...)
	out = append(out, Checksum(out[1:]))
	return out
}

// Decode consumes at most one frame from the front of buf.
//
// On success it returns the frame and the number of bytes consumed.
// ErrIncomplete (consumed 0) means the buffer holds a valid prefix and
// the caller should read more. A *MalformedError reports corrupt input;
// consumed is then positive and skips to the next plausible start
// marker so the caller resynchronizes by dropping those bytes.
func Decode(buf []byte) (Frame, int, error) {
	if len(buf) == 0 {
		return Frame{}, 0, ErrIncomplete
	}
	if buf[0] != SOP {
		skip := resync(buf)
		return Frame{}, skip, &MalformedError{Reason: "missing start marker", Skipped: skip}
	}
	if len(buf) < 2 {
		return Frame{}, 0, ErrIncomplete
	}
	bodyLen := int(buf[1])
	if bodyLen < minBodyLen || bodyLen > maxBodyLen {
		skip := resync(buf)
		return Frame{}, skip, &MalformedError{Reason: "length out of range", Skipped: skip}
	}
	total := bodyLen + frameOverhead
	if len(buf) < total {
		return Frame{}, 0, ErrIncomplete
	}
	if Checksum(buf[1:total-1]) != buf[total-1] {
		skip := resync(buf)
		return Frame{}, skip, &MalformedError{Reason: "checksum mismatch", Skipped: skip}
	}
	f := Frame{
		Seq:     buf[2],
		Op:      Opcode(buf[3]),
		Payload: append([]byte(nil), buf[4:total-1]...),
	}
	return f, total, nil
}

// resync returns how many bytes to drop so the buffer starts at the
// next SOP after position zero, or is emptied when none is present.
func resync(buf []byte) int {
	if idx := bytes.IndexByte(buf[1:], SOP); idx >= 0 {
		return idx + 1
	}
	return len(buf)
}
