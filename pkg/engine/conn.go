// Package engine drives one robot session: it owns the connection
// lifecycle, correlates commands with acknowledgments, and turns the
// inbound byte stream into telemetry.
//
// A single reader goroutine owns the transport's inbound side; nothing
// else touches the channel's reads. Outbound writes are serialized
// through the dispatcher. The reader is also the sole authority on
// link death: any transport error it observes drains the session and
// fails every pending command with ErrConnectionLost.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"morse/internal/log"
	"morse/pkg/protocol"
	"morse/pkg/transport"
)

const (
	defaultAckTimeout  = 250 * time.Millisecond
	defaultRetries     = 2
	defaultReadTimeout = 100 * time.Millisecond
	defaultReadChunk   = 512
)

// Conn is one host-to-robot session engine.
type Conn struct {
	dialer transport.Dialer
	logger *slog.Logger
	hub    *Hub
	snap   *Snapshot

	hubCancel context.CancelFunc

	ackTimeout  time.Duration
	retries     int
	readTimeout time.Duration

	// writeMu keeps concurrent sends from interleaving mid-frame.
	writeMu sync.Mutex

	mu         sync.Mutex
	stateVal   atomic.Int32
	ch         transport.Channel
	pending    map[uint8]*pendingCommand
	nextSeq    uint8
	done       chan struct{} // closed when the session starts draining
	readerDone chan struct{}
}

type pendingCommand struct {
	name string
	ack  chan uint8
}

type Option func(*Conn)

// WithAckTimeout sets the per-attempt acknowledgment window.
func WithAckTimeout(d time.Duration) Option {
	return func(c *Conn) {
		if d > 0 {
			c.ackTimeout = d
		}
	}
}

// WithRetries sets how many times a timed-out command is resent before
// it fails with ErrTimeout.
func WithRetries(n int) Option {
	return func(c *Conn) {
		if n >= 0 {
			c.retries = n
		}
	}
}

// WithReadTimeout sets the reader's poll granularity.
func WithReadTimeout(d time.Duration) Option {
	return func(c *Conn) {
		if d > 0 {
			c.readTimeout = d
		}
	}
}

// WithLogger routes engine logging somewhere specific.
func WithLogger(l *slog.Logger) Option {
	return func(c *Conn) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithHub substitutes a custom-tuned telemetry hub.
func WithHub(h *Hub) Option {
	return func(c *Conn) {
		if h != nil {
			c.hub = h
		}
	}
}

// NewConn builds a session engine around a transport dialer. The
// telemetry hub starts immediately; subscriptions survive reconnects.
func NewConn(dialer transport.Dialer, opts ...Option) *Conn {
	c := &Conn{
		dialer:      dialer,
		logger:      log.L(),
		snap:        NewSnapshot(),
		ackTimeout:  defaultAckTimeout,
		retries:     defaultRetries,
		readTimeout: defaultReadTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.hub == nil {
		c.hub = NewHub()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.hubCancel = cancel
	go c.hub.Run(ctx)
	return c
}

// State reports the current lifecycle position.
func (c *Conn) State() State {
	return State(c.stateVal.Load())
}

func (c *Conn) setStateLocked(s State) {
	prev := State(c.stateVal.Swap(int32(s)))
	if prev != s {
		c.logger.Debug("connection state", "from", prev.String(), "to", s.String())
	}
}

// Snapshot exposes the last-observed sensor cache.
func (c *Conn) Snapshot() *Snapshot {
	return c.snap
}

// Subscribe registers a telemetry listener. Delivery is best-effort;
// slow listeners miss events instead of stalling the reader.
func (c *Conn) Subscribe() chan protocol.Event {
	return c.hub.Subscribe()
}

// Unsubscribe removes and closes a listener channel.
func (c *Conn) Unsubscribe(ch chan protocol.Event) {
	c.hub.Unsubscribe(ch)
}

// Connect opens the transport and performs the reset handshake. The
// session is Connected only after the robot acknowledges the reset, so
// callers never have to order reset before anything else themselves.
func (c *Conn) Connect(ctx context.Context, address string) error {
	c.mu.Lock()
	if c.State() != Disconnected {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.setStateLocked(Connecting)
	c.mu.Unlock()

	ch, err := c.dialer.Dial(ctx, address)
	if err != nil {
		c.mu.Lock()
		c.setStateLocked(Disconnected)
		c.mu.Unlock()
		return err
	}

	c.mu.Lock()
	c.ch = ch
	c.pending = make(map[uint8]*pendingCommand)
	c.nextSeq = 0
	c.done = make(chan struct{})
	c.readerDone = make(chan struct{})
	readerDone := c.readerDone
	c.mu.Unlock()
	c.snap.reset()

	go c.readLoop(ch, readerDone)

	reset, err := protocol.NewResetCommand(protocol.ResetModeZero)
	if err == nil {
		err = c.send(ctx, reset, true)
	}
	if err != nil {
		c.fail(err)
		<-readerDone
		c.logger.Warn("handshake failed", "address", address, "error", err)
		return err
	}

	c.mu.Lock()
	if c.State() != Connecting {
		c.mu.Unlock()
		return ErrConnectionLost
	}
	c.setStateLocked(Connected)
	c.mu.Unlock()
	c.logger.Info("connected", "address", address)
	return nil
}

// Disconnect drains and closes the session. Pending sends fail with
// ErrConnectionLost; calling it on a dead session is a no-op.
func (c *Conn) Disconnect() error {
	c.mu.Lock()
	if s := c.State(); s != Connected && s != Connecting {
		c.mu.Unlock()
		return nil
	}
	c.setStateLocked(Draining)
	ch := c.ch
	done := c.done
	readerDone := c.readerDone
	c.ch = nil
	c.pending = make(map[uint8]*pendingCommand)
	c.mu.Unlock()

	if done != nil {
		close(done)
	}
	var err error
	if ch != nil {
		err = ch.Close()
	}
	if readerDone != nil {
		<-readerDone
	}

	c.mu.Lock()
	c.setStateLocked(Disconnected)
	c.mu.Unlock()
	c.logger.Info("disconnected")
	return err
}

// Close tears the session down and stops the telemetry hub. The Conn
// is not reusable afterwards.
func (c *Conn) Close() error {
	err := c.Disconnect()
	c.hubCancel()
	return err
}

// fail is the one place a live session dies. The reader calls it on
// transport errors; the write path funnels through it too so nothing
// else ever declares a command dead from connectivity.
func (c *Conn) fail(cause error) {
	c.mu.Lock()
	if s := c.State(); s != Connected && s != Connecting {
		c.mu.Unlock()
		return
	}
	c.setStateLocked(Draining)
	ch := c.ch
	done := c.done
	c.ch = nil
	c.pending = make(map[uint8]*pendingCommand)
	c.mu.Unlock()

	c.logger.Warn("link failed, draining", "error", cause)
	if done != nil {
		close(done)
	}
	if ch != nil {
		_ = ch.Close()
	}

	c.mu.Lock()
	c.setStateLocked(Disconnected)
	c.mu.Unlock()
}

// readLoop owns the inbound stream: it is the only reader of the
// channel and the only writer of the snapshot cache.
func (c *Conn) readLoop(ch transport.Channel, readerDone chan struct{}) {
	defer close(readerDone)

	var buf []byte
	tmp := make([]byte, defaultReadChunk)
	for {
		n, err := ch.Read(tmp, c.readTimeout)
		if err != nil {
			if errors.Is(err, transport.ErrReadTimeout) {
				if s := c.State(); s != Connected && s != Connecting {
					return
				}
				continue
			}
			c.fail(err)
			return
		}
		buf = append(buf, tmp[:n]...)

		for len(buf) > 0 {
			frame, consumed, derr := protocol.Decode(buf)
			if errors.Is(derr, protocol.ErrIncomplete) {
				break
			}
			buf = buf[consumed:]
			if derr != nil {
				c.logger.Warn("resynchronizing after malformed frame", "error", derr)
				c.hub.Publish(protocol.Event{
					Kind:       protocol.EventProtocolError,
					Err:        derr,
					ReceivedAt: time.Now(),
				})
				continue
			}
			c.route(frame)
		}
	}
}

// route hands acks to their pending command and everything else to the
// telemetry path.
func (c *Conn) route(f protocol.Frame) {
	now := time.Now()

	if f.Op == protocol.OpcodeAck {
		if len(f.Payload) < 1 {
			c.logger.Warn("ack frame without status byte", "seq", f.Seq)
			return
		}
		status := f.Payload[0]
		c.mu.Lock()
		p := c.pending[f.Seq]
		c.mu.Unlock()
		if p == nil {
			// Late or duplicated ack; its command already resolved.
			c.logger.Debug("ack without pending command", "seq", f.Seq)
			return
		}
		select {
		case p.ack <- status:
		default:
		}
		return
	}

	kind, data, err := protocol.DecodeSensor(f.Op, f.Payload)
	if err != nil {
		c.logger.Warn("undecodable report", "opcode", uint8(f.Op), "error", err)
		c.hub.Publish(protocol.Event{
			Kind:       protocol.EventProtocolError,
			Op:         f.Op,
			Payload:    f.Payload,
			Err:        err,
			ReceivedAt: now,
		})
		return
	}

	ev := protocol.Event{
		Kind:       protocol.EventSensor,
		Sensor:     kind,
		Data:       data,
		Op:         f.Op,
		Payload:    f.Payload,
		ReceivedAt: now,
	}
	c.snap.update(ev)
	c.hub.Publish(ev)
}
