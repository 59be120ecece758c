package wsmon

import (
	"errors"
	"testing"
	"time"

	"morse/pkg/protocol"
)

func TestHelloAdvertisesSensorsAndCommands(t *testing.T) {
	srv := NewServer(Config{}, nil)
	msg := srv.hello()
	if msg.Op != OpHello || msg.Name != "morse" {
		t.Fatalf("unexpected hello: %+v", msg)
	}
	want := map[string]bool{"gyro": false, "battery": false}
	for _, s := range msg.Sensors {
		if _, ok := want[s]; ok {
			want[s] = true
		}
	}
	for name, seen := range want {
		if !seen {
			t.Fatalf("hello missing sensor %q: %v", name, msg.Sensors)
		}
	}
	if len(msg.Commands) == 0 {
		t.Fatalf("hello advertises no commands")
	}
}

func TestEventMsgShape(t *testing.T) {
	ev := protocol.Event{
		Kind:       protocol.EventSensor,
		Sensor:     protocol.SensorBattery,
		Op:         0x88,
		Payload:    []byte{0x0F, 0xA0},
		Data:       protocol.Battery{Millivolts: 4000},
		ReceivedAt: time.Date(2026, 8, 24, 9, 30, 0, 0, time.UTC),
	}
	msg := eventMsg(ev)
	if msg.Op != OpEvent || msg.Kind != "sensor" || msg.Sensor != "battery" {
		t.Fatalf("unexpected message: %+v", msg)
	}
	if msg.Opcode != "0x88" || msg.PayloadHex != "0fa0" {
		t.Fatalf("raw fields: %+v", msg)
	}
	if msg.TS != "2026-08-24T09:30:00Z" {
		t.Fatalf("timestamp: %s", msg.TS)
	}
}

func TestEventMsgCarriesErrors(t *testing.T) {
	msg := eventMsg(protocol.Event{
		Kind: protocol.EventProtocolError,
		Err:  errors.New("bad checksum"),
	})
	if msg.Error != "bad checksum" {
		t.Fatalf("error field: %+v", msg)
	}
	if msg.TS == "" {
		t.Fatalf("zero timestamp must be filled in")
	}
}

func TestClientFilter(t *testing.T) {
	c := &client{kinds: make(map[string]struct{}), all: true}

	gyro := protocol.Event{Kind: protocol.EventSensor, Sensor: protocol.SensorGyro}
	batt := protocol.Event{Kind: protocol.EventSensor, Sensor: protocol.SensorBattery}
	perr := protocol.Event{Kind: protocol.EventProtocolError}

	if !c.wants(gyro) || !c.wants(batt) {
		t.Fatalf("fresh client must receive everything")
	}

	c.subscribe([]string{"gyro"})
	if !c.wants(gyro) || c.wants(batt) {
		t.Fatalf("filter did not narrow the stream")
	}
	if !c.wants(perr) {
		t.Fatalf("protocol errors must bypass the filter")
	}

	c.unsubscribe([]string{"gyro"})
	if c.wants(gyro) {
		t.Fatalf("unsubscribe did not remove the kind")
	}

	c.subscribe(nil)
	if !c.wants(batt) {
		t.Fatalf("empty subscribe must restore the full stream")
	}
}
