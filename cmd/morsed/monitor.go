package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"morse/pkg/protocol"
	"morse/pkg/robot"
)

func runMonitor(args []string, stdout io.Writer, stderr io.Writer) int {
	fs := flag.NewFlagSet("monitor", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var sf sessionFlags
	addSessionFlags(fs, &sf)

	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, bot, err := loadSession(sf)
	if err != nil {
		fmt.Fprintln(stderr, "setup failed:", err)
		return 1
	}
	defer bot.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := bot.Connect(ctx, cfg.Link.Address); err != nil {
		fmt.Fprintln(stderr, "connect failed:", err)
		return 1
	}

	sub := bot.Subscribe()
	defer bot.Unsubscribe(sub)

	program := tea.NewProgram(newMonitorModel(bot, sub, cfg.Link.Address), tea.WithOutput(stdout))
	if _, err := program.Run(); err != nil {
		fmt.Fprintln(stderr, "monitor:", err)
		return 1
	}
	return 0
}

type reading struct {
	data any
	at   time.Time
}

type monitorModel struct {
	bot      *robot.Robot
	sub      chan protocol.Event
	address  string
	readings map[protocol.SensorKind]reading
	events   int
	errors   int
	lastErr  string
}

// telemetryMsg carries one hub event into the update loop.
type telemetryMsg protocol.Event

// subClosedMsg says the session died under the monitor.
type subClosedMsg struct{}

func newMonitorModel(bot *robot.Robot, sub chan protocol.Event, address string) monitorModel {
	return monitorModel{
		bot:      bot,
		sub:      sub,
		address:  address,
		readings: make(map[protocol.SensorKind]reading),
	}
}

func (m monitorModel) Init() tea.Cmd {
	return m.waitForEvent()
}

func (m monitorModel) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.sub
		if !ok {
			return subClosedMsg{}
		}
		return telemetryMsg(ev)
	}
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		}
	case telemetryMsg:
		ev := protocol.Event(msg)
		m.events++
		switch ev.Kind {
		case protocol.EventSensor:
			m.readings[ev.Sensor] = reading{data: ev.Data, at: ev.ReceivedAt}
		case protocol.EventProtocolError:
			m.errors++
			if ev.Err != nil {
				m.lastErr = ev.Err.Error()
			}
		}
		return m, m.waitForEvent()
	case subClosedMsg:
		return m, tea.Quit
	}
	return m, nil
}

func (m monitorModel) View() string {
	var b strings.Builder
	fmt.Fprintf(&b, "morse monitor  %s  [%s]\n", m.address, m.bot.State())
	fmt.Fprintf(&b, "events: %d  decode errors: %d\n\n", m.events, m.errors)

	kinds := make([]protocol.SensorKind, 0, len(m.readings))
	for kind := range m.readings {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })

	if len(kinds) == 0 {
		b.WriteString("waiting for telemetry...\n")
	}
	now := time.Now()
	for _, kind := range kinds {
		r := m.readings[kind]
		fmt.Fprintf(&b, "%-12s %-40s %s\n", kind, formatReading(r.data), formatAge(now.Sub(r.at)))
	}

	if m.lastErr != "" {
		fmt.Fprintf(&b, "\nlast decode error: %s\n", m.lastErr)
	}
	b.WriteString("\npress q to quit\n")
	return b.String()
}

func formatReading(data any) string {
	switch v := data.(type) {
	case protocol.Proximity:
		return fmt.Sprintf("L=%d R=%d rear=%d", v.Left, v.Right, v.Rear)
	case protocol.Gyro:
		return fmt.Sprintf("pitch=%d roll=%d yaw=%d", v.Pitch, v.Roll, v.Yaw)
	case protocol.Accel:
		return fmt.Sprintf("x=%d y=%d z=%d", v.X, v.Y, v.Z)
	case protocol.Wheels:
		return fmt.Sprintf("left=%d right=%d", v.Left, v.Right)
	case protocol.Mic:
		return fmt.Sprintf("volume=%d", v.Volume)
	case protocol.Flags:
		return formatFlags(v)
	case protocol.HeadPose:
		return fmt.Sprintf("yaw=%d pitch=%d", v.Yaw, v.Pitch)
	case protocol.Battery:
		return fmt.Sprintf("%.2fV", float64(v.Millivolts)/1000)
	default:
		return fmt.Sprintf("%v", data)
	}
}

func formatFlags(f protocol.Flags) string {
	var set []string
	if f.Bump() {
		set = append(set, "bump")
	}
	if f.Topple() {
		set = append(set, "topple")
	}
	if f.Clap() {
		set = append(set, "clap")
	}
	if f.PickedUp() {
		set = append(set, "picked-up")
	}
	if len(set) == 0 {
		return "none"
	}
	return strings.Join(set, ",")
}

func formatAge(d time.Duration) string {
	switch {
	case d < time.Second:
		return "now"
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	default:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	}
}
