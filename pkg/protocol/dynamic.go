package protocol

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"sync"
)

// CustomFieldDef describes one field of a configuration-defined sensor
// layout.
type CustomFieldDef struct {
	Name   string
	Type   string
	Offset int
	Size   int
}

// CustomSensorDef describes a sensor report layout loaded from
// configuration rather than compiled in. Decoded values come back as a
// map keyed by field name.
type CustomSensorDef struct {
	Kind     SensorKind
	ByteSize int
	Fields   []CustomFieldDef
}

var (
	customMu    sync.RWMutex
	customTable = map[Opcode]CustomSensorDef{}
)

// ClearCustomSensors drops all configuration-defined layouts.
func ClearCustomSensors() {
	customMu.Lock()
	customTable = map[Opcode]CustomSensorDef{}
	customMu.Unlock()
}

// RegisterCustomSensor validates and installs a configured layout.
func RegisterCustomSensor(op Opcode, def CustomSensorDef) error {
	if def.Kind == "" {
		return fmt.Errorf("custom sensor 0x%02x: kind required", uint8(op))
	}
	if def.ByteSize <= 0 || def.ByteSize > MaxPayload {
		return fmt.Errorf("custom sensor %s: invalid byte size %d", def.Kind, def.ByteSize)
	}
	if len(def.Fields) == 0 {
		return fmt.Errorf("custom sensor %s: at least one field required", def.Kind)
	}

	normalized := CustomSensorDef{
		Kind:     def.Kind,
		ByteSize: def.ByteSize,
		Fields:   make([]CustomFieldDef, 0, len(def.Fields)),
	}
	for _, field := range def.Fields {
		typ := strings.ToLower(strings.TrimSpace(field.Type))
		size, ok := fieldTypeSize(typ)
		if !ok {
			return fmt.Errorf("custom sensor %s: unsupported field type %q", def.Kind, field.Type)
		}
		if field.Size != 0 && field.Size != size {
			return fmt.Errorf("custom sensor %s: field %s size mismatch: got %d want %d", def.Kind, field.Name, field.Size, size)
		}
		if field.Offset < 0 || field.Offset+size > def.ByteSize {
			return fmt.Errorf("custom sensor %s: field %s exceeds packet size", def.Kind, field.Name)
		}
		normalized.Fields = append(normalized.Fields, CustomFieldDef{
			Name:   field.Name,
			Type:   typ,
			Offset: field.Offset,
			Size:   size,
		})
	}

	customMu.Lock()
	customTable[op] = normalized
	customMu.Unlock()
	return nil
}

func decodeCustomSensor(op Opcode, payload []byte) (SensorKind, map[string]any, bool, error) {
	customMu.RLock()
	def, ok := customTable[op]
	customMu.RUnlock()
	if !ok {
		return "", nil, false, nil
	}

	if len(payload) != def.ByteSize {
		return def.Kind, nil, true, fmt.Errorf("sensor %s: payload size %d does not match layout size %d", def.Kind, len(payload), def.ByteSize)
	}

	out := make(map[string]any, len(def.Fields))
	for _, field := range def.Fields {
		value, err := decodeFieldValue(field.Type, payload[field.Offset:field.Offset+field.Size])
		if err != nil {
			return def.Kind, nil, true, fmt.Errorf("sensor %s: field %s: %w", def.Kind, field.Name, err)
		}
		out[field.Name] = value
	}
	return def.Kind, out, true, nil
}

func decodeFieldValue(typ string, data []byte) (any, error) {
	switch typ {
	case "uint8":
		return data[0], nil
	case "int8":
		return int8(data[0]), nil
	case "uint16":
		return binary.BigEndian.Uint16(data), nil
	case "int16":
		return int16(binary.BigEndian.Uint16(data)), nil
	case "uint32":
		return binary.BigEndian.Uint32(data), nil
	case "int32":
		return int32(binary.BigEndian.Uint32(data)), nil
	case "float32":
		return math.Float32frombits(binary.BigEndian.Uint32(data)), nil
	case "bool":
		return data[0] != 0, nil
	default:
		return nil, fmt.Errorf("unsupported field type %q", typ)
	}
}

func fieldTypeSize(typ string) (int, bool) {
	switch typ {
	case "uint8", "int8", "bool":
		return 1, true
	case "uint16", "int16":
		return 2, true
	case "uint32", "int32", "float32":
		return 4, true
	default:
		return 0, false
	}
}
