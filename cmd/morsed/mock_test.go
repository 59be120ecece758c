package main

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"morse/pkg/protocol"
)

func TestSensorFramesDecode(t *testing.T) {
	m := newMockRobot(20)
	frames := m.sensorFrames(1.5, 0)
	if len(frames) < 4 {
		t.Fatalf("tick 0 should carry the decimated channels too, got %d frames", len(frames))
	}
	for _, f := range frames {
		kind, data, err := protocol.DecodeSensor(f.Op, f.Payload)
		if err != nil {
			t.Fatalf("frame %#02x does not decode: %v", uint8(f.Op), err)
		}
		if kind == "" || data == nil {
			t.Fatalf("frame %#02x decoded to nothing", uint8(f.Op))
		}
	}
}

func TestSensorFramesDecimation(t *testing.T) {
	m := newMockRobot(20)
	frames := m.sensorFrames(0.1, 1)
	if len(frames) != 2 {
		t.Fatalf("off-tick should carry only gyro and accel, got %d frames", len(frames))
	}
}

func TestBatteryDrains(t *testing.T) {
	if batteryMillivolts(0) != mockBatteryFullMV {
		t.Fatalf("fresh battery should read full")
	}
	if batteryMillivolts(3600) >= batteryMillivolts(0) {
		t.Fatalf("battery should drain over time")
	}
}

func TestMockAcksCorrelatedFrames(t *testing.T) {
	host, robotSide := net.Pipe()
	defer host.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := newMockRobot(1)
	go m.serveConn(ctx, robotSide)

	cmd, err := protocol.NewHeadYawCommand(10)
	if err != nil {
		t.Fatalf("command: %v", err)
	}
	if _, err := host.Write(protocol.Encode(cmd.Frame(7))); err != nil {
		t.Fatalf("write: %v", err)
	}

	_ = host.SetReadDeadline(time.Now().Add(2 * time.Second))
	var buf []byte
	tmp := make([]byte, 256)
	for {
		n, err := host.Read(tmp)
		if err != nil {
			t.Fatalf("read: %v", err)
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
			if frame.Op == protocol.OpcodeAck {
				if frame.Seq != 7 {
					t.Fatalf("ack for wrong seq: %d", frame.Seq)
				}
				if len(frame.Payload) != 1 || frame.Payload[0] != 0 {
					t.Fatalf("unexpected ack payload: %v", frame.Payload)
				}
				return
			}
			// Sensor traffic may arrive before the ack.
		}
	}
}
