package main

import (
	"context"
	"errors"
	"math"
	"net"
	"sync"
	"time"

	"morse/internal/log"
	"morse/pkg/protocol"
)

const (
	mockGyroAmplitude  = 500.0
	mockAccelAmplitude = 1000.0
	mockProxAmplitude  = 120.0

	mockGyroFreqHz  = 0.23
	mockAccelFreqHz = 0.31
	mockProxFreqHz  = 0.17

	mockBatteryFullMV  = 4100
	mockBatteryDrainMV = 2 // per minute
)

// mockRobot emulates the firmware over TCP: it acks every correlated
// command and streams synthetic sensor waves, so the whole host stack
// can be exercised without hardware.
type mockRobot struct {
	hz    int
	start time.Time

	mu   sync.Mutex
	seen []protocol.Frame
}

func newMockRobot(hz int) *mockRobot {
	if hz <= 0 {
		hz = 20
	}
	return &mockRobot{hz: hz, start: time.Now()}
}

func (m *mockRobot) ListenAndServe(ctx context.Context, addr string) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		log.Info("mock robot: host connected", "remote", conn.RemoteAddr().String())
		go m.serveConn(ctx, conn)
	}
}

func (m *mockRobot) serveConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var writeMu sync.Mutex
	send := func(f protocol.Frame) {
		writeMu.Lock()
		_, _ = conn.Write(protocol.Encode(f))
		writeMu.Unlock()
	}

	go m.sensorLoop(connCtx, send)

	var buf []byte
	tmp := make([]byte, 512)
	for {
		_ = conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
		n, err := conn.Read(tmp)
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				if connCtx.Err() != nil {
					return
				}
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
				log.Warn("mock robot: dropping malformed bytes", "error", derr)
				continue
			}
			m.record(frame)
			if frame.Seq != 0 {
				send(protocol.Frame{Seq: frame.Seq, Op: protocol.OpcodeAck, Payload: []byte{0}})
			}
		}
	}
}

func (m *mockRobot) record(f protocol.Frame) {
	m.mu.Lock()
	m.seen = append(m.seen, f)
	if len(m.seen) > 1024 {
		m.seen = m.seen[len(m.seen)-1024:]
	}
	m.mu.Unlock()
}

func (m *mockRobot) sensorLoop(ctx context.Context, send func(protocol.Frame)) {
	ticker := time.NewTicker(time.Second / time.Duration(m.hz))
	defer ticker.Stop()

	var tick int
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t := time.Since(m.start).Seconds()
			for _, frame := range m.sensorFrames(t, tick) {
				send(frame)
			}
			tick++
		}
	}
}

// sensorFrames builds this tick's reports. Gyro and accel go out every
// tick; the slower channels are decimated so the stream resembles a
// real capture.
func (m *mockRobot) sensorFrames(t float64, tick int) []protocol.Frame {
	frames := []protocol.Frame{
		sensorFrame(protocol.SensorGyro, packInt16s(
			wave(mockGyroAmplitude, mockGyroFreqHz, t, 0),
			wave(mockGyroAmplitude, mockGyroFreqHz, t, math.Pi/3),
			wave(mockGyroAmplitude, mockGyroFreqHz, t, 2*math.Pi/3),
		)),
		sensorFrame(protocol.SensorAccel, packInt16s(
			wave(mockAccelAmplitude, mockAccelFreqHz, t, 0),
			wave(mockAccelAmplitude, mockAccelFreqHz, t, math.Pi/2),
			1000+wave(200, mockAccelFreqHz, t, math.Pi),
		)),
	}

	if tick%5 == 0 {
		prox := uint8(128 + wave(mockProxAmplitude, mockProxFreqHz, t, 0)/2)
		frames = append(frames,
			sensorFrame(protocol.SensorProximity, []byte{prox, prox / 2, prox / 3}),
			sensorFrame(protocol.SensorMic, []byte{uint8(64 + wave(60, 0.5, t, 0)/2)}),
		)
	}
	if tick%(m.hz*5) == 0 {
		mv := batteryMillivolts(t)
		frames = append(frames,
			sensorFrame(protocol.SensorBattery, []byte{uint8(mv >> 8), uint8(mv & 0xFF)}),
		)
	}
	return frames
}

func sensorFrame(kind protocol.SensorKind, payload []byte) protocol.Frame {
	op, _ := protocol.SensorOpcode(kind)
	return protocol.Frame{Seq: 0, Op: op, Payload: payload}
}

func wave(amplitude, freqHz, t, phase float64) int16 {
	return int16(amplitude * math.Sin(2*math.Pi*freqHz*t+phase))
}

func packInt16s(values ...int16) []byte {
	out := make([]byte, 0, len(values)*2)
	for _, v := range values {
		out = append(out, uint8(uint16(v)>>8), uint8(uint16(v)&0xFF))
	}
	return out
}

func batteryMillivolts(t float64) uint16 {
	drained := int(t / 60 * mockBatteryDrainMV)
	if drained >= mockBatteryFullMV {
		return 0
	}
	return uint16(mockBatteryFullMV - drained)
}
