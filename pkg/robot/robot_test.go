package robot_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"morse/pkg/engine"
	"morse/pkg/protocol"
	"morse/pkg/robot"
	"morse/pkg/transport"
)

type pipeDialer struct {
	ch transport.Channel
}

func (d pipeDialer) Dial(context.Context, string) (transport.Channel, error) {
	return d.ch, nil
}

// ackingPeer plays the robot side of the pipe: it decodes frames,
// records them and acks everything correlated.
type ackingPeer struct {
	ch   transport.Channel
	stop chan struct{}
	wg   sync.WaitGroup

	mu   sync.Mutex
	seen []protocol.Frame
}

func newAckingPeer(ch transport.Channel) *ackingPeer {
	p := &ackingPeer{ch: ch, stop: make(chan struct{})}
	p.wg.Add(1)
	go p.serve()
	return p
}

func (p *ackingPeer) serve() {
	defer p.wg.Done()
	var buf []byte
	tmp := make([]byte, 256)
	for {
		select {
		case <-p.stop:
			return
		default:
		}
		n, err := p.ch.Read(tmp, 20*time.Millisecond)
		if err != nil {
			if errors.Is(err, transport.ErrReadTimeout) {
				continue
			}
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
				continue
			}
			p.mu.Lock()
			p.seen = append(p.seen, frame)
			p.mu.Unlock()
			if frame.Seq != 0 {
				_, _ = p.ch.Write(protocol.Encode(protocol.Frame{
					Seq: frame.Seq, Op: protocol.OpcodeAck, Payload: []byte{0},
				}))
			}
		}
	}
}

func (p *ackingPeer) inject(f protocol.Frame) {
	_, _ = p.ch.Write(protocol.Encode(f))
}

func (p *ackingPeer) lastOp(op protocol.Opcode) (protocol.Frame, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := len(p.seen) - 1; i >= 0; i-- {
		if p.seen[i].Op == op {
			return p.seen[i], true
		}
	}
	return protocol.Frame{}, false
}

func (p *ackingPeer) waitOp(t *testing.T, op protocol.Opcode) protocol.Frame {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if f, ok := p.lastOp(op); ok {
			return f
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("peer never saw opcode %#02x", uint8(op))
	return protocol.Frame{}
}

func (p *ackingPeer) close() {
	close(p.stop)
	_ = p.ch.Close()
	p.wg.Wait()
}

func newRobot(t *testing.T) (*robot.Robot, *ackingPeer) {
	t.Helper()
	host, far := transport.Pipe()
	peer := newAckingPeer(far)
	r := robot.New(pipeDialer{ch: host},
		engine.WithAckTimeout(200*time.Millisecond),
		engine.WithReadTimeout(10*time.Millisecond),
	)
	t.Cleanup(func() {
		_ = r.Close()
		peer.close()
	})
	if err := r.Connect(context.Background(), "pipe"); err != nil {
		t.Fatalf("connect: %v", err)
	}
	return r, peer
}

func TestMoveUsesDistanceOverSpeedDuration(t *testing.T) {
	r, peer := newRobot(t)

	if err := r.MoveAt(context.Background(), 500, 250); err != nil {
		t.Fatalf("move: %v", err)
	}

	move, _ := protocol.LookupCommand(protocol.CmdMove)
	f := peer.waitOp(t, move.Op)
	// 500mm at 250mm/s is 2000ms.
	ms := int(f.Payload[3])<<8 | int(f.Payload[4])
	if ms != 2000 {
		t.Fatalf("expected 2000ms duration, got %d", ms)
	}
	if f.Payload[0] != 0xF4 || f.Payload[5] != 0x01 {
		t.Fatalf("wrong distance packing: %v", f.Payload)
	}
}

func TestMoveZeroDistanceIsNoop(t *testing.T) {
	r, peer := newRobot(t)

	if err := r.Move(context.Background(), 0); err != nil {
		t.Fatalf("move: %v", err)
	}
	move, _ := protocol.LookupCommand(protocol.CmdMove)
	time.Sleep(30 * time.Millisecond)
	if _, ok := peer.lastOp(move.Op); ok {
		t.Fatalf("zero-distance move must not hit the wire")
	}
}

func TestTurnDurationFromAngularSpeed(t *testing.T) {
	r, peer := newRobot(t)

	if err := r.TurnAt(context.Background(), -90, 45); err != nil {
		t.Fatalf("turn: %v", err)
	}

	move, _ := protocol.LookupCommand(protocol.CmdMove)
	f := peer.waitOp(t, move.Op)
	ms := int(f.Payload[3])<<8 | int(f.Payload[4])
	if ms != 2000 {
		t.Fatalf("expected 2000ms for 90 degrees at 45dps, got %d", ms)
	}
	if f.Payload[6] != 0xC0 {
		t.Fatalf("counter-clockwise marker missing: %v", f.Payload)
	}
}

func TestHeadAnglesClampInsteadOfFailing(t *testing.T) {
	r, peer := newRobot(t)

	if err := r.HeadYaw(context.Background(), 200); err != nil {
		t.Fatalf("head yaw: %v", err)
	}
	yaw, _ := protocol.LookupCommand(protocol.CmdHeadYaw)
	f := peer.waitOp(t, yaw.Op)
	if f.Payload[0] != uint8(protocol.HeadYawMax) {
		t.Fatalf("expected clamp to %d, got %d", protocol.HeadYawMax, f.Payload[0])
	}

	if err := r.HeadPitch(context.Background(), -90); err != nil {
		t.Fatalf("head pitch: %v", err)
	}
	pitch, _ := protocol.LookupCommand(protocol.CmdHeadPitch)
	f = peer.waitOp(t, pitch.Op)
	// -5 degrees two's complement.
	if f.Payload[0] != 0xFB {
		t.Fatalf("expected clamp to 0xFB, got %#02x", f.Payload[0])
	}
}

func TestDriveClampsSpeed(t *testing.T) {
	r, peer := newRobot(t)

	if err := r.Drive(context.Background(), 9000); err != nil {
		t.Fatalf("drive: %v", err)
	}
	drive, _ := protocol.LookupCommand(protocol.CmdDrive)
	f := peer.waitOp(t, drive.Op)
	want, _ := protocol.NewDriveCommand(protocol.MaxDriveSpeed)
	if string(f.Payload) != string(want.Payload) {
		t.Fatalf("expected clamped drive payload %v, got %v", want.Payload, f.Payload)
	}
}

func TestEarColorLightsBothEars(t *testing.T) {
	r, peer := newRobot(t)

	if err := r.EarColor(context.Background(), "#102030"); err != nil {
		t.Fatalf("ear color: %v", err)
	}
	left, _ := protocol.LookupCommand(protocol.CmdLeftEarColor)
	right, _ := protocol.LookupCommand(protocol.CmdRightEarColor)
	lf := peer.waitOp(t, left.Op)
	rf := peer.waitOp(t, right.Op)
	want := []byte{0x10, 0x20, 0x30}
	if string(lf.Payload) != string(want) || string(rf.Payload) != string(want) {
		t.Fatalf("ear payloads %v / %v, want %v", lf.Payload, rf.Payload, want)
	}
}

func TestSensorGettersReadSnapshot(t *testing.T) {
	r, peer := newRobot(t)

	if _, ok := r.Battery(); ok {
		t.Fatalf("battery reading before any report")
	}

	battOp, _ := protocol.SensorOpcode(protocol.SensorBattery)
	peer.inject(protocol.Frame{Seq: 0, Op: battOp, Payload: []byte{0x0F, 0xA0}})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if batt, ok := r.Battery(); ok {
			if batt.Millivolts != 4000 {
				t.Fatalf("battery = %d, want 4000", batt.Millivolts)
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("battery reading never surfaced")
}

func TestSayUnknownSound(t *testing.T) {
	r, _ := newRobot(t)

	err := r.Say(context.Background(), "no_such_clip")
	var ipe *protocol.InvalidParameterError
	if !errors.As(err, &ipe) {
		t.Fatalf("got %v, want InvalidParameterError", err)
	}
}
