package engine

import (
	"context"
	"fmt"
	"time"

	"morse/pkg/protocol"
	"morse/pkg/transport"
)

// Send dispatches one command. For acknowledged commands it blocks
// until the robot acks, the retry budget is spent (ErrTimeout), the
// link dies (ErrConnectionLost) or ctx is cancelled. Fire-and-forget
// commands return as soon as the write lands.
//
// Commands go out in call order, but acks may come back reordered;
// resolution is by correlation id, never by arrival order.
func (c *Conn) Send(ctx context.Context, cmd protocol.Command) error {
	return c.send(ctx, cmd, false)
}

func (c *Conn) send(ctx context.Context, cmd protocol.Command, handshake bool) error {
	if !cmd.Acked {
		c.mu.Lock()
		if err := c.sendableLocked(handshake); err != nil {
			c.mu.Unlock()
			return err
		}
		ch := c.ch
		c.mu.Unlock()
		return c.write(ch, protocol.Encode(cmd.Frame(0)), cmd.Name)
	}

	c.mu.Lock()
	if err := c.sendableLocked(handshake); err != nil {
		c.mu.Unlock()
		return err
	}
	ch := c.ch
	done := c.done
	seq := c.allocSeqLocked()
	p := &pendingCommand{name: cmd.Name, ack: make(chan uint8, 1)}
	c.pending[seq] = p
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, seq)
		c.mu.Unlock()
	}()

	raw := protocol.Encode(cmd.Frame(seq))
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			c.logger.Debug("retrying command", "command", cmd.Name, "seq", seq, "attempt", attempt)
		}
		if err := c.write(ch, raw, cmd.Name); err != nil {
			return err
		}

		timer := time.NewTimer(c.ackTimeout)
		select {
		case status := <-p.ack:
			timer.Stop()
			if status != 0 {
				return &CommandError{Command: cmd.Name, Status: status}
			}
			return nil
		case <-timer.C:
			// Ack window spent; resend under the same seq.
		case <-done:
			timer.Stop()
			return fmt.Errorf("%s: %w", cmd.Name, ErrConnectionLost)
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
	return fmt.Errorf("%s: %w", cmd.Name, ErrTimeout)
}

func (c *Conn) sendableLocked(handshake bool) error {
	switch c.State() {
	case Connected:
		return nil
	case Connecting:
		if handshake {
			return nil
		}
		return ErrNotConnected
	default:
		return ErrNotConnected
	}
}

// allocSeqLocked hands out the next free correlation id, skipping 0
// (reserved for unacknowledged traffic) and any id still in flight.
func (c *Conn) allocSeqLocked() uint8 {
	for {
		c.nextSeq++
		if c.nextSeq == 0 {
			c.nextSeq = 1
		}
		if _, busy := c.pending[c.nextSeq]; !busy {
			return c.nextSeq
		}
	}
}

// write serializes frame writes. A failed write is a dead link and is
// routed through fail so the whole session agrees.
func (c *Conn) write(ch transport.Channel, raw []byte, name string) error {
	if ch == nil {
		return fmt.Errorf("%s: %w", name, ErrConnectionLost)
	}
	c.writeMu.Lock()
	_, err := ch.Write(raw)
	c.writeMu.Unlock()
	if err != nil {
		c.fail(err)
		return fmt.Errorf("%s: %w", name, ErrConnectionLost)
	}
	return nil
}
