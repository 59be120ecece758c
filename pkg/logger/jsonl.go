// Package logger persists telemetry streams as JSON Lines, one event
// per line, suitable for later replay or offline analysis.
package logger

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"io"
	"time"

	"morse/pkg/protocol"
)

type JSONLWriter struct {
	enc *json.Encoder
}

type jsonRecord struct {
	TS         string `json:"ts"`
	Kind       string `json:"kind"`
	Sensor     string `json:"sensor,omitempty"`
	Opcode     string `json:"opcode,omitempty"`
	PayloadHex string `json:"payload_hex,omitempty"`
	Data       any    `json:"data,omitempty"`
	Error      string `json:"error,omitempty"`
}

func NewJSONLWriter(w io.Writer) *JSONLWriter {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &JSONLWriter{enc: enc}
}

// Consume drains in until it closes or ctx is cancelled, writing one
// record per event. Encode errors are dropped; a logger must never
// take the session down.
func (j *JSONLWriter) Consume(ctx context.Context, in <-chan protocol.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-in:
			if !ok {
				return
			}
			_ = j.enc.Encode(record(ev))
		}
	}
}

// Write persists a single event.
func (j *JSONLWriter) Write(ev protocol.Event) error {
	return j.enc.Encode(record(ev))
}

func record(ev protocol.Event) jsonRecord {
	rec := jsonRecord{
		TS:         ev.ReceivedAt.UTC().Format(time.RFC3339Nano),
		Kind:       ev.Kind.String(),
		PayloadHex: hex.EncodeToString(ev.Payload),
		Data:       ev.Data,
	}
	if ev.Op != 0 {
		rec.Opcode = formatOpcode(ev.Op)
	}
	if ev.Sensor != "" {
		rec.Sensor = string(ev.Sensor)
	}
	if ev.Err != nil {
		rec.Error = ev.Err.Error()
	}
	return rec
}

func formatOpcode(op protocol.Opcode) string {
	return "0x" + hex.EncodeToString([]byte{uint8(op)})
}
