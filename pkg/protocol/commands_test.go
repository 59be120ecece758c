package protocol_test

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"morse/pkg/protocol"
)

func TestEyeBrightnessCommand(t *testing.T) {
	cmd, err := protocol.NewEyeBrightnessCommand(255)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cmd.Op != 0x09 {
		t.Fatalf("unexpected opcode: 0x%02x", uint8(cmd.Op))
	}
	if !bytes.Equal(cmd.Payload, []byte{0xFF}) {
		t.Fatalf("unexpected payload: %v", cmd.Payload)
	}

	raw := protocol.Encode(cmd.Frame(1))
	f, _, err := protocol.Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if f.Op != cmd.Op || !bytes.Equal(f.Payload, cmd.Payload) {
		t.Fatalf("frame mismatch: %#v", f)
	}
}

func TestDrivePacking(t *testing.T) {
	cases := []struct {
		speed int
		want  []byte
	}{
		{200, []byte{0xC8, 0x00, 0x00}},
		{-200, []byte{0x38, 0x00, 0x07}}, // 0x800-200 = 0x738
		{0, []byte{0x00, 0x00, 0x00}},
	}
	for _, tc := range cases {
		cmd, err := protocol.NewDriveCommand(tc.speed)
		if err != nil {
			t.Fatalf("drive(%d): %v", tc.speed, err)
		}
		if !bytes.Equal(cmd.Payload, tc.want) {
			t.Fatalf("drive(%d): got %v want %v", tc.speed, cmd.Payload, tc.want)
		}
	}
}

func TestSpinPacking(t *testing.T) {
	cmd, err := protocol.NewSpinCommand(-300)
	if err != nil {
		t.Fatalf("spin: %v", err)
	}
	// 0x800-300 = 0x6D4: low byte 0xD4, (0x6D4 & 0xFF00) >> 5 = 0x30.
	want := []byte{0x00, 0xD4, 0x30}
	if !bytes.Equal(cmd.Payload, want) {
		t.Fatalf("spin(-300): got %v want %v", cmd.Payload, want)
	}
}

func TestMovePacking(t *testing.T) {
	cmd, err := protocol.NewMoveCommand(400, 400*time.Millisecond, true)
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	want := []byte{0x90, 0x00, 0x00, 0x01, 0x90, 0x01, 0x00, 0x80}
	if !bytes.Equal(cmd.Payload, want) {
		t.Fatalf("move(400mm, 400ms): got %v want %v", cmd.Payload, want)
	}

	reverse, err := protocol.NewMoveCommand(-100, 100*time.Millisecond, true)
	if err != nil {
		t.Fatalf("reverse move: %v", err)
	}
	if reverse.Payload[7] != 0x81 {
		t.Fatalf("reverse-without-turn must mark the final byte: %v", reverse.Payload)
	}
	if reverse.Payload[0] != 0x9C { // -100 & 0xFF
		t.Fatalf("unexpected reverse distance byte: 0x%02x", reverse.Payload[0])
	}
}

func TestTurnPacking(t *testing.T) {
	cmd, err := protocol.NewTurnCommand(-90, 523*time.Millisecond)
	if err != nil {
		t.Fatalf("turn: %v", err)
	}
	// -90 degrees is -157 centiradians: low byte 0x63, seventh 0xC0.
	if cmd.Payload[2] != 0x63 {
		t.Fatalf("unexpected turn low byte: 0x%02x", cmd.Payload[2])
	}
	if cmd.Payload[6] != 0xC0 {
		t.Fatalf("counter-clockwise turns must set the seventh byte: %v", cmd.Payload)
	}
	if cmd.Payload[3] != 0x02 || cmd.Payload[4] != 0x0B {
		t.Fatalf("unexpected duration bytes: %v", cmd.Payload)
	}
}

func TestHeadAngleEncoding(t *testing.T) {
	cmd, err := protocol.NewHeadYawCommand(-10)
	if err != nil {
		t.Fatalf("head yaw: %v", err)
	}
	if !bytes.Equal(cmd.Payload, []byte{0xF6}) {
		t.Fatalf("negative angle must encode two's complement: %v", cmd.Payload)
	}
}

func TestEyeMaskEncoding(t *testing.T) {
	cmd, err := protocol.NewEyeCommand(0x1FFF)
	if err != nil {
		t.Fatalf("eye: %v", err)
	}
	if !bytes.Equal(cmd.Payload, []byte{0x1F, 0xFF}) {
		t.Fatalf("eye mask must pack big-endian: %v", cmd.Payload)
	}
}

func TestInvalidParameters(t *testing.T) {
	cases := []struct {
		name string
		err  error
	}{
		{"turn", func() error { _, err := protocol.NewTurnCommand(400, time.Second); return err }()},
		{"eye", func() error { _, err := protocol.NewEyeCommand(0x2000); return err }()},
		{"brightness", func() error { _, err := protocol.NewEyeBrightnessCommand(300); return err }()},
		{"head yaw", func() error { _, err := protocol.NewHeadYawCommand(90); return err }()},
		{"head pitch", func() error { _, err := protocol.NewHeadPitchCommand(-30); return err }()},
		{"drive", func() error { _, err := protocol.NewDriveCommand(5000); return err }()},
		{"move distance", func() error { _, err := protocol.NewMoveCommand(20000, time.Second, false); return err }()},
		{"move duration", func() error { _, err := protocol.NewMoveCommand(100, 0, false); return err }()},
		{"say", func() error { _, err := protocol.NewSayCommand("no_such_clip"); return err }()},
	}
	for _, tc := range cases {
		var invalid *protocol.InvalidParameterError
		if tc.err == nil || !errors.As(tc.err, &invalid) {
			t.Fatalf("%s: got %v, want InvalidParameterError", tc.name, tc.err)
		}
	}
}

func TestSayUsesSoundBank(t *testing.T) {
	cmd, err := protocol.NewSayCommand("hi")
	if err != nil {
		t.Fatalf("say: %v", err)
	}
	clip, err := protocol.LookupNoise("hi")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if !bytes.Equal(cmd.Payload, clip) {
		t.Fatalf("say payload must be the clip identifier: %v", cmd.Payload)
	}
	if !cmd.Acked {
		t.Fatalf("say is an acknowledged command")
	}
}

func TestOpcodeTableOverride(t *testing.T) {
	orig, err := protocol.LookupCommand(protocol.CmdEye)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	defer protocol.RegisterCommand(protocol.CmdEye, orig)

	protocol.RegisterCommand(protocol.CmdEye, protocol.CommandDef{Op: 0x42, Acked: true})
	cmd, err := protocol.NewEyeCommand(1)
	if err != nil {
		t.Fatalf("eye: %v", err)
	}
	if cmd.Op != 0x42 || !cmd.Acked {
		t.Fatalf("override not applied: %#v", cmd)
	}
}
