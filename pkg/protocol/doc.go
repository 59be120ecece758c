// Package protocol implements the wire protocol spoken by Dash and Dot
// robots over their serial-style Bluetooth link.
//
// Every frame, in both directions, has the same shape:
//
//	[SOP 0xF5][LEN][SEQ][OPCODE][PAYLOAD...][CKSUM]
//
// LEN counts SEQ+OPCODE+PAYLOAD. CKSUM is an additive two's-complement
// checksum over LEN through the last payload byte. SEQ correlates an
// outbound command with its acknowledgment; sensor frames and
// fire-and-forget commands carry SEQ 0.
//
// The opcode table, sound bank and sensor layouts are data, not code:
// the firmware is a fixed black box whose exact tables were captured by
// observation, so all three can be corrected from configuration without
// touching the codec.
//
// The codec itself is stateless. Decode consumes at most one frame from
// the caller's buffer and reports partial input (ErrIncomplete) apart
// from corrupt input (MalformedError), so a read loop can keep feeding
// it partial or coalesced transport reads.
package protocol
