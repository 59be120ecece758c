package protocol

import (
	"math"
	"time"
)

// Reset modes understood by the firmware.
const (
	ResetModeReflash = 1 // some kind of debug/reflash mode
	ResetModeReboot  = 3
	ResetModeZero    = 4 // zero out LEDs and head position
)

// Motion packing limits. Distances ride in a 14-bit field, durations in
// a 16-bit millisecond field.
const (
	MaxMoveDistanceMM = 0x3FFF
	MaxMoveDuration   = 65535 * time.Millisecond
	MaxDriveSpeed     = 2048
	MaxEyeMask        = 0x1FFF // 13 iris LEDs
)

// Head articulation range in degrees.
const (
	HeadYawMin   = -53
	HeadYawMax   = 53
	HeadPitchMin = -5
	HeadPitchMax = 10
)

// NewResetCommand builds a reset command. Mode ResetModeZero is what
// the connection handshake sends.
func NewResetCommand(mode int) (Command, error) {
	if mode < 0 || mode > 255 {
		return Command{}, &InvalidParameterError{Command: CmdReset, Param: "mode", Value: mode, Reason: "must fit in one byte"}
	}
	return newCommand(CmdReset, []byte{uint8(mode)})
}

// NewMoveCommand builds a straight move over the given duration.
// Reverse moves keep the robot's heading when noTurn is set; that is
// signalled in the final packing byte.
func NewMoveCommand(distanceMM int, duration time.Duration, noTurn bool) (Command, error) {
	if distanceMM < -MaxMoveDistanceMM || distanceMM > MaxMoveDistanceMM {
		return Command{}, &InvalidParameterError{Command: CmdMove, Param: "distance", Value: distanceMM, Reason: "exceeds 14-bit range"}
	}
	if duration <= 0 || duration > MaxMoveDuration {
		return Command{}, &InvalidParameterError{Command: CmdMove, Param: "duration", Value: duration, Reason: "must be positive and fit in 16-bit milliseconds"}
	}
	final := uint8(0x80)
	if noTurn && distanceMM < 0 {
		final = 0x81
	}
	return newCommand(CmdMove, packMove(distanceMM, 0, duration, final))
}

// NewTurnCommand builds an in-place turn. Positive degrees turn
// clockwise. The firmware cannot turn more than one rotation per move.
func NewTurnCommand(degrees float64, duration time.Duration) (Command, error) {
	if math.Abs(degrees) > 360 {
		return Command{}, &InvalidParameterError{Command: CmdMove, Param: "degrees", Value: degrees, Reason: "cannot turn more than one rotation per move"}
	}
	if duration <= 0 || duration > MaxMoveDuration {
		return Command{}, &InvalidParameterError{Command: CmdMove, Param: "duration", Value: duration, Reason: "must be positive and fit in 16-bit milliseconds"}
	}
	centiradians := int(degrees * math.Pi / 180 * 100)
	return newCommand(CmdMove, packMove(0, centiradians, duration, 0x80))
}

// packMove lays out the shared 8-byte move body.
//
// The sixth byte is mixed use: high bits of the drive distance when
// going straight, high bits of the turn distance (shifted) when
// turning. The seventh is 0xC0 for counter-clockwise turns. The final
// byte is 0x80 on a first move and 0x81 when reversing without
// turning around.
func packMove(distanceMM, centiradians int, duration time.Duration, final uint8) []byte {
	ms := int(duration / time.Millisecond)
	sixth := uint8((distanceMM & 0x3F00) >> 8)
	sixth |= uint8((centiradians & 0x0300) >> 2)
	var seventh uint8
	if centiradians < 0 {
		seventh = 0xC0
	}
	return []byte{
		uint8(distanceMM & 0xFF),
		0x00, // unknown, always zero in captures
		uint8(centiradians & 0xFF),
		uint8(ms >> 8),
		uint8(ms & 0xFF),
		sixth,
		seventh,
		final,
	}
}

// NewDriveCommand starts continuous forward or backward motion.
// Negative speeds drive backwards. Motion continues until another
// drive, spin or stop command.
func NewDriveCommand(speed int) (Command, error) {
	if speed < -MaxDriveSpeed || speed > MaxDriveSpeed {
		return Command{}, &InvalidParameterError{Command: CmdDrive, Param: "speed", Value: speed, Reason: "exceeds drive range"}
	}
	if speed < 0 {
		speed = 0x800 + speed
	}
	return newCommand(CmdDrive, []byte{
		uint8(speed & 0xFF),
		0x00,
		uint8((speed & 0x0F00) >> 8),
	})
}

// NewSpinCommand starts continuous spinning. Positive speeds spin
// clockwise.
func NewSpinCommand(speed int) (Command, error) {
	if speed < -MaxDriveSpeed || speed > MaxDriveSpeed {
		return Command{}, &InvalidParameterError{Command: CmdDrive, Param: "speed", Value: speed, Reason: "exceeds drive range"}
	}
	if speed < 0 {
		speed = 0x800 + speed
	}
	return newCommand(CmdDrive, []byte{
		0x00,
		uint8(speed & 0xFF),
		uint8((speed & 0xFF00) >> 5),
	})
}

// NewStopCommand halts wheel motion.
func NewStopCommand() (Command, error) {
	return newCommand(CmdDrive, []byte{0x00, 0x00, 0x00})
}

// NewHeadYawCommand turns the head left or right, in degrees.
func NewHeadYawCommand(degrees int) (Command, error) {
	if degrees < HeadYawMin || degrees > HeadYawMax {
		return Command{}, &InvalidParameterError{Command: CmdHeadYaw, Param: "degrees", Value: degrees, Reason: "outside head yaw range"}
	}
	return newCommand(CmdHeadYaw, []byte{angleByte(degrees)})
}

// NewHeadPitchCommand tilts the head up or down, in degrees.
func NewHeadPitchCommand(degrees int) (Command, error) {
	if degrees < HeadPitchMin || degrees > HeadPitchMax {
		return Command{}, &InvalidParameterError{Command: CmdHeadPitch, Param: "degrees", Value: degrees, Reason: "outside head pitch range"}
	}
	return newCommand(CmdHeadPitch, []byte{angleByte(degrees)})
}

// angleByte encodes a signed angle as a single two's-complement byte.
func angleByte(angle int) uint8 {
	if angle < 0 {
		angle = (-angle ^ 0xFF) + 1
	}
	return uint8(angle & 0xFF)
}

// NewEyeCommand lights individual iris LEDs. The top LED is bit zero
// and the rest increment clockwise.
func NewEyeCommand(mask int) (Command, error) {
	if mask < 0 || mask > MaxEyeMask {
		return Command{}, &InvalidParameterError{Command: CmdEye, Param: "mask", Value: mask, Reason: "exceeds 13-bit LED mask"}
	}
	return newCommand(CmdEye, []byte{uint8(mask >> 8), uint8(mask & 0xFF)})
}

// NewEyeBrightnessCommand sets the eye backlight brightness.
func NewEyeBrightnessCommand(value int) (Command, error) {
	return brightnessCommand(CmdEyeBrightness, value)
}

// NewTailBrightnessCommand sets the tail backlight brightness.
func NewTailBrightnessCommand(value int) (Command, error) {
	return brightnessCommand(CmdTailBrightness, value)
}

func brightnessCommand(name string, value int) (Command, error) {
	if value < 0 || value > 255 {
		return Command{}, &InvalidParameterError{Command: name, Param: "brightness", Value: value, Reason: "must be 0-255"}
	}
	return newCommand(name, []byte{uint8(value)})
}

// NewNeckColorCommand sets the neck light on Dash (eye backlight on Dot).
func NewNeckColorCommand(r, g, b uint8) (Command, error) {
	return newCommand(CmdNeckColor, []byte{r, g, b})
}

// NewLeftEarColorCommand sets the left ear color.
func NewLeftEarColorCommand(r, g, b uint8) (Command, error) {
	return newCommand(CmdLeftEarColor, []byte{r, g, b})
}

// NewRightEarColorCommand sets the right ear color.
func NewRightEarColorCommand(r, g, b uint8) (Command, error) {
	return newCommand(CmdRightEarColor, []byte{r, g, b})
}

// NewHeadColorCommand sets the top LED color.
func NewHeadColorCommand(r, g, b uint8) (Command, error) {
	return newCommand(CmdHeadColor, []byte{r, g, b})
}

// NewSayCommand plays a clip from the built-in sound bank.
func NewSayCommand(name string) (Command, error) {
	clip, err := LookupNoise(name)
	if err != nil {
		return Command{}, &InvalidParameterError{Command: CmdSay, Param: "sound", Value: name, Reason: "not in the sound bank"}
	}
	return newCommand(CmdSay, clip)
}
