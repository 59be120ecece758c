package protocol

import (
	"fmt"
	"sort"
	"sync"
)

// OpcodeAck is the opcode the firmware uses for command
// acknowledgments. The SEQ byte echoes the command being acked and the
// single payload byte carries the status (0 = ok).
const OpcodeAck Opcode = 0x5A

// CommandDef describes one entry of the firmware opcode table. Acked
// commands wait for an acknowledgment frame; the rest are
// fire-and-forget and resolve as soon as the write succeeds.
type CommandDef struct {
	Op    Opcode
	Acked bool
}

// Command table defaults as captured from the robots. Light and LED
// commands are not acknowledged by the firmware; motion, sound and
// reset are. Both the ids and the acked flags can be overridden from
// configuration when a capture proves otherwise.
const (
	CmdReset          = "reset"
	CmdMove           = "move"
	CmdDrive          = "drive"
	CmdSay            = "say"
	CmdEye            = "eye"
	CmdEyeBrightness  = "eye_brightness"
	CmdNeckColor      = "neck_color"
	CmdLeftEarColor   = "left_ear_color"
	CmdRightEarColor  = "right_ear_color"
	CmdHeadColor      = "head_color"
	CmdTailBrightness = "tail_brightness"
	CmdHeadYaw        = "head_yaw"
	CmdHeadPitch      = "head_pitch"
)

var (
	commandMu    sync.RWMutex
	commandTable = map[string]CommandDef{
		CmdReset:          {Op: 0xC8, Acked: true},
		CmdMove:           {Op: 0x23, Acked: true},
		CmdDrive:          {Op: 0x02, Acked: false},
		CmdSay:            {Op: 0x18, Acked: true},
		CmdEye:            {Op: 0x08, Acked: false},
		CmdEyeBrightness:  {Op: 0x09, Acked: false},
		CmdNeckColor:      {Op: 0x03, Acked: false},
		CmdLeftEarColor:   {Op: 0x0B, Acked: false},
		CmdRightEarColor:  {Op: 0x0C, Acked: false},
		CmdHeadColor:      {Op: 0x0D, Acked: false},
		CmdTailBrightness: {Op: 0x04, Acked: false},
		CmdHeadYaw:        {Op: 0x06, Acked: true},
		CmdHeadPitch:      {Op: 0x07, Acked: true},
	}
)

// RegisterCommand adds or overrides an opcode table entry.
func RegisterCommand(name string, def CommandDef) {
	commandMu.Lock()
	commandTable[name] = def
	commandMu.Unlock()
}

// LookupCommand resolves a command name against the opcode table.
func LookupCommand(name string) (CommandDef, error) {
	commandMu.RLock()
	def, ok := commandTable[name]
	commandMu.RUnlock()
	if !ok {
		return CommandDef{}, fmt.Errorf("no opcode table entry for %q", name)
	}
	return def, nil
}

// CommandNames lists the opcode table entries in stable order.
func CommandNames() []string {
	commandMu.RLock()
	names := make([]string, 0, len(commandTable))
	for name := range commandTable {
		names = append(names, name)
	}
	commandMu.RUnlock()
	sort.Strings(names)
	return names
}

// newCommand builds a Command from a table entry. Constructors call it
// after validating parameters.
func newCommand(name string, payload []byte) (Command, error) {
	def, err := LookupCommand(name)
	if err != nil {
		return Command{}, err
	}
	if len(payload) > MaxPayload {
		return Command{}, &InvalidParameterError{
			Command: name,
			Param:   "payload",
			Value:   len(payload),
			Reason:  fmt.Sprintf("exceeds %d bytes", MaxPayload),
		}
	}
	return Command{Name: name, Op: def.Op, Acked: def.Acked, Payload: payload}, nil
}
