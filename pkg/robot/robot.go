// Package robot is the high-level façade over the session engine. It
// exposes the things a Dash or Dot can do as plain methods, takes care
// of unit conversions and range clamping, and surfaces telemetry as
// typed getters over the last-known snapshot.
package robot

import (
	"context"
	"time"

	"morse/pkg/engine"
	"morse/pkg/protocol"
	"morse/pkg/transport"
)

// Motion defaults, applied when the caller does not pick a speed.
const (
	DefaultMoveSpeed = 1000                 // mm/s
	DefaultTurnSpeed = 360 / 2.094          // deg/s, one rotation in ~2.1s
	minMoveDuration  = 10 * time.Millisecond
)

// Robot drives one robot over one engine session.
type Robot struct {
	conn *engine.Conn
}

// New builds a robot around a transport dialer. Engine options tune
// ack timeouts, retry budget and logging.
func New(dialer transport.Dialer, opts ...engine.Option) *Robot {
	return &Robot{conn: engine.NewConn(dialer, opts...)}
}

// Connect dials the robot and runs the reset handshake. The robot
// comes up with LEDs dark and head centered.
func (r *Robot) Connect(ctx context.Context, address string) error {
	return r.conn.Connect(ctx, address)
}

// Disconnect drops the link. Telemetry subscriptions stay registered
// and resume on the next Connect.
func (r *Robot) Disconnect() error {
	return r.conn.Disconnect()
}

// Close tears the session and its telemetry hub down for good.
func (r *Robot) Close() error {
	return r.conn.Close()
}

// State reports the session lifecycle position.
func (r *Robot) State() engine.State {
	return r.conn.State()
}

// Reset re-runs a firmware reset without reconnecting.
func (r *Robot) Reset(ctx context.Context, mode int) error {
	cmd, err := protocol.NewResetCommand(mode)
	if err != nil {
		return err
	}
	return r.conn.Send(ctx, cmd)
}

// Move drives straight for the given distance at the default speed.
// Negative distances reverse.
func (r *Robot) Move(ctx context.Context, distanceMM int) error {
	return r.MoveAt(ctx, distanceMM, DefaultMoveSpeed)
}

// MoveAt drives straight for the given distance at speedMM mm/s.
func (r *Robot) MoveAt(ctx context.Context, distanceMM, speedMM int) error {
	if distanceMM == 0 {
		return nil
	}
	if speedMM <= 0 {
		return &protocol.InvalidParameterError{Command: protocol.CmdMove, Param: "speed", Value: speedMM, Reason: "must be positive"}
	}
	duration := time.Duration(abs(distanceMM)) * time.Second / time.Duration(speedMM)
	if duration < minMoveDuration {
		duration = minMoveDuration
	}
	cmd, err := protocol.NewMoveCommand(distanceMM, duration, distanceMM < 0)
	if err != nil {
		return err
	}
	return r.conn.Send(ctx, cmd)
}

// Turn rotates in place by the given angle at the default turn speed.
// Positive degrees turn clockwise.
func (r *Robot) Turn(ctx context.Context, degrees float64) error {
	return r.TurnAt(ctx, degrees, DefaultTurnSpeed)
}

// TurnAt rotates in place at degreesPerSecond.
func (r *Robot) TurnAt(ctx context.Context, degrees, degreesPerSecond float64) error {
	if degrees == 0 {
		return nil
	}
	if degreesPerSecond <= 0 {
		return &protocol.InvalidParameterError{Command: protocol.CmdMove, Param: "speed", Value: degreesPerSecond, Reason: "must be positive"}
	}
	seconds := degrees / degreesPerSecond
	if seconds < 0 {
		seconds = -seconds
	}
	duration := time.Duration(seconds * float64(time.Second))
	if duration < minMoveDuration {
		duration = minMoveDuration
	}
	cmd, err := protocol.NewTurnCommand(degrees, duration)
	if err != nil {
		return err
	}
	return r.conn.Send(ctx, cmd)
}

// Drive starts continuous motion at the given speed until a later
// Drive, Spin or Stop. Speeds beyond the firmware range are clamped.
func (r *Robot) Drive(ctx context.Context, speed int) error {
	cmd, err := protocol.NewDriveCommand(clamp(speed, -protocol.MaxDriveSpeed, protocol.MaxDriveSpeed))
	if err != nil {
		return err
	}
	return r.conn.Send(ctx, cmd)
}

// Spin starts continuous rotation, clockwise for positive speeds.
func (r *Robot) Spin(ctx context.Context, speed int) error {
	cmd, err := protocol.NewSpinCommand(clamp(speed, -protocol.MaxDriveSpeed, protocol.MaxDriveSpeed))
	if err != nil {
		return err
	}
	return r.conn.Send(ctx, cmd)
}

// Stop halts wheel motion.
func (r *Robot) Stop(ctx context.Context) error {
	cmd, err := protocol.NewStopCommand()
	if err != nil {
		return err
	}
	return r.conn.Send(ctx, cmd)
}

// HeadYaw turns the head. Angles outside the articulation range are
// clamped, matching what the hardware would do anyway.
func (r *Robot) HeadYaw(ctx context.Context, degrees int) error {
	cmd, err := protocol.NewHeadYawCommand(clamp(degrees, protocol.HeadYawMin, protocol.HeadYawMax))
	if err != nil {
		return err
	}
	return r.conn.Send(ctx, cmd)
}

// HeadPitch tilts the head, clamped to the articulation range.
func (r *Robot) HeadPitch(ctx context.Context, degrees int) error {
	cmd, err := protocol.NewHeadPitchCommand(clamp(degrees, protocol.HeadPitchMin, protocol.HeadPitchMax))
	if err != nil {
		return err
	}
	return r.conn.Send(ctx, cmd)
}

// Eye lights individual iris LEDs from a 13-bit mask, top LED first.
func (r *Robot) Eye(ctx context.Context, mask int) error {
	cmd, err := protocol.NewEyeCommand(mask)
	if err != nil {
		return err
	}
	return r.conn.Send(ctx, cmd)
}

// EyeBrightness sets the eye backlight level.
func (r *Robot) EyeBrightness(ctx context.Context, value int) error {
	cmd, err := protocol.NewEyeBrightnessCommand(clamp(value, 0, 255))
	if err != nil {
		return err
	}
	return r.conn.Send(ctx, cmd)
}

// TailBrightness sets the tail light level.
func (r *Robot) TailBrightness(ctx context.Context, value int) error {
	cmd, err := protocol.NewTailBrightnessCommand(clamp(value, 0, 255))
	if err != nil {
		return err
	}
	return r.conn.Send(ctx, cmd)
}

// NeckColor sets the neck light. Colors are hex strings ("#ff8800") or
// CSS names ("tomato").
func (r *Robot) NeckColor(ctx context.Context, color string) error {
	return r.colorCommand(ctx, color, protocol.NewNeckColorCommand)
}

// LeftEarColor sets the left ear light.
func (r *Robot) LeftEarColor(ctx context.Context, color string) error {
	return r.colorCommand(ctx, color, protocol.NewLeftEarColorCommand)
}

// RightEarColor sets the right ear light.
func (r *Robot) RightEarColor(ctx context.Context, color string) error {
	return r.colorCommand(ctx, color, protocol.NewRightEarColorCommand)
}

// EarColor sets both ear lights.
func (r *Robot) EarColor(ctx context.Context, color string) error {
	if err := r.LeftEarColor(ctx, color); err != nil {
		return err
	}
	return r.RightEarColor(ctx, color)
}

// HeadColor sets the top LED.
func (r *Robot) HeadColor(ctx context.Context, color string) error {
	return r.colorCommand(ctx, color, protocol.NewHeadColorCommand)
}

func (r *Robot) colorCommand(ctx context.Context, color string, build func(rr, g, b uint8) (protocol.Command, error)) error {
	rr, g, b, err := ParseColor(color)
	if err != nil {
		return err
	}
	cmd, err := build(rr, g, b)
	if err != nil {
		return err
	}
	return r.conn.Send(ctx, cmd)
}

// Say plays a clip from the built-in sound bank.
func (r *Robot) Say(ctx context.Context, sound string) error {
	cmd, err := protocol.NewSayCommand(sound)
	if err != nil {
		return err
	}
	return r.conn.Send(ctx, cmd)
}

// Send forwards a hand-built command, for opcodes registered beyond
// the built-in table.
func (r *Robot) Send(ctx context.Context, cmd protocol.Command) error {
	return r.conn.Send(ctx, cmd)
}

// Subscribe registers a raw telemetry listener.
func (r *Robot) Subscribe() chan protocol.Event {
	return r.conn.Subscribe()
}

// Unsubscribe removes and closes a listener channel.
func (r *Robot) Unsubscribe(ch chan protocol.Event) {
	r.conn.Unsubscribe(ch)
}

// Snapshot exposes the raw last-known sensor cache.
func (r *Robot) Snapshot() *engine.Snapshot {
	return r.conn.Snapshot()
}

// Proximity returns the last obstacle reading, if one has arrived.
func (r *Robot) Proximity() (protocol.Proximity, bool) {
	return readingAs[protocol.Proximity](r, protocol.SensorProximity)
}

// Gyro returns the last angular rate reading.
func (r *Robot) Gyro() (protocol.Gyro, bool) {
	return readingAs[protocol.Gyro](r, protocol.SensorGyro)
}

// Accel returns the last accelerometer reading.
func (r *Robot) Accel() (protocol.Accel, bool) {
	return readingAs[protocol.Accel](r, protocol.SensorAccel)
}

// Wheels returns the last wheel odometry reading.
func (r *Robot) Wheels() (protocol.Wheels, bool) {
	return readingAs[protocol.Wheels](r, protocol.SensorWheels)
}

// Mic returns the last microphone volume reading.
func (r *Robot) Mic() (protocol.Mic, bool) {
	return readingAs[protocol.Mic](r, protocol.SensorMic)
}

// Flags returns the last event flag byte (bump, topple, clap, pickup).
func (r *Robot) Flags() (protocol.Flags, bool) {
	return readingAs[protocol.Flags](r, protocol.SensorFlags)
}

// HeadPose returns the last reported head position.
func (r *Robot) HeadPose() (protocol.HeadPose, bool) {
	return readingAs[protocol.HeadPose](r, protocol.SensorHeadPose)
}

// Battery returns the last battery voltage reading.
func (r *Robot) Battery() (protocol.Battery, bool) {
	return readingAs[protocol.Battery](r, protocol.SensorBattery)
}

func readingAs[T any](r *Robot, kind protocol.SensorKind) (T, bool) {
	var zero T
	reading, ok := r.conn.Snapshot().Get(kind)
	if !ok {
		return zero, false
	}
	v, ok := reading.Data.(T)
	if !ok {
		return zero, false
	}
	return v, true
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
