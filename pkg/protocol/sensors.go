package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// SensorKind names a telemetry stream.
type SensorKind string

const (
	SensorProximity SensorKind = "proximity"
	SensorGyro      SensorKind = "gyro"
	SensorAccel     SensorKind = "accel"
	SensorWheels    SensorKind = "wheels"
	SensorMic       SensorKind = "mic"
	SensorFlags     SensorKind = "flags"
	SensorHeadPose  SensorKind = "head_pose"
	SensorBattery   SensorKind = "battery"
)

// Proximity is the IR obstacle readout: two front-facing sensors and
// one rear. Larger values mean closer obstacles.
type Proximity struct {
	Left  uint8
	Right uint8
	Rear  uint8
}

// Gyro carries angular rates around the three body axes.
type Gyro struct {
	Pitch int16
	Roll  int16
	Yaw   int16
}

// Accel carries linear acceleration on the three body axes.
type Accel struct {
	X int16
	Y int16
	Z int16
}

// Wheels reports cumulative wheel rotation ticks.
type Wheels struct {
	Left  int16
	Right int16
}

// Mic reports the microphone volume envelope.
type Mic struct {
	Volume uint8
}

// Flags packs the impulse detectors into one bitmask byte.
type Flags struct {
	Bits uint8
}

const (
	flagBump = 1 << iota
	flagTopple
	flagClap
	flagPickedUp
)

func (f Flags) Bump() bool     { return f.Bits&flagBump != 0 }
func (f Flags) Topple() bool   { return f.Bits&flagTopple != 0 }
func (f Flags) Clap() bool     { return f.Bits&flagClap != 0 }
func (f Flags) PickedUp() bool { return f.Bits&flagPickedUp != 0 }

// HeadPose reports where the head currently points, in degrees.
type HeadPose struct {
	Yaw   int8
	Pitch int8
}

// Battery reports the pack voltage.
type Battery struct {
	Millivolts uint16
}

type sensorDef struct {
	kind SensorKind
	typ  reflect.Type
}

var (
	sensorMu    sync.RWMutex
	sensorTable = map[Opcode]sensorDef{
		0x81: {SensorProximity, reflect.TypeOf(Proximity{})},
		0x82: {SensorGyro, reflect.TypeOf(Gyro{})},
		0x83: {SensorAccel, reflect.TypeOf(Accel{})},
		0x84: {SensorWheels, reflect.TypeOf(Wheels{})},
		0x85: {SensorMic, reflect.TypeOf(Mic{})},
		0x86: {SensorFlags, reflect.TypeOf(Flags{})},
		0x87: {SensorHeadPose, reflect.TypeOf(HeadPose{})},
		0x88: {SensorBattery, reflect.TypeOf(Battery{})},
	}
)

// RegisterSensor maps a report opcode to a struct type. Fields decode
// big-endian in declaration order, matching the firmware's packing.
func RegisterSensor(op Opcode, kind SensorKind, t reflect.Type) {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	sensorMu.Lock()
	sensorTable[op] = sensorDef{kind: kind, typ: t}
	sensorMu.Unlock()
}

// DecodeSensor decodes a report payload into its registered type.
// Custom (configuration-defined) layouts take precedence over the
// built-in table so captures can correct it.
func DecodeSensor(op Opcode, payload []byte) (SensorKind, any, error) {
	if kind, data, ok, err := decodeCustomSensor(op, payload); ok {
		return kind, data, err
	}

	sensorMu.RLock()
	def, ok := sensorTable[op]
	sensorMu.RUnlock()
	if !ok {
		return "", nil, &UnknownOpcodeError{Op: op}
	}

	val := reflect.New(def.typ)
	size := binary.Size(val.Elem().Interface())
	if size < 0 {
		return def.kind, nil, fmt.Errorf("sensor %s: unsized type %s", def.kind, def.typ)
	}
	if len(payload) != size {
		return def.kind, nil, fmt.Errorf("sensor %s: payload size %d does not match layout size %d", def.kind, len(payload), size)
	}
	if err := binary.Read(bytes.NewReader(payload), binary.BigEndian, val.Interface()); err != nil {
		return def.kind, nil, err
	}
	return def.kind, val.Elem().Interface(), nil
}

// SensorKinds lists the registered report kinds in stable order.
func SensorKinds() []SensorKind {
	sensorMu.RLock()
	kinds := make([]SensorKind, 0, len(sensorTable))
	for _, def := range sensorTable {
		kinds = append(kinds, def.kind)
	}
	sensorMu.RUnlock()
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// SensorOpcode finds the report opcode for a kind, for emitters such as
// the mock robot.
func SensorOpcode(kind SensorKind) (Opcode, bool) {
	sensorMu.RLock()
	defer sensorMu.RUnlock()
	for op, def := range sensorTable {
		if def.kind == kind {
			return op, true
		}
	}
	return 0, false
}
