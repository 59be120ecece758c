package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"morse/internal/log"
	"morse/pkg/bridge/wsmon"
	"morse/pkg/config"
	"morse/pkg/logger"
	"morse/pkg/robot"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout io.Writer, stderr io.Writer) int {
	if len(args) == 0 {
		printUsage(stderr)
		return 2
	}

	switch args[0] {
	case "run":
		return runSession(args[1:], stdout, stderr)
	case "monitor":
		return runMonitor(args[1:], stdout, stderr)
	case "mock":
		return runMock(args[1:], stdout, stderr)
	case "-h", "--help", "help":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintln(stderr, "unknown command:", args[0])
		printUsage(stderr)
		return 2
	}
}

// sessionFlags is what run and monitor share: everything needed to
// stand up a connected robot from config plus overrides.
type sessionFlags struct {
	configPath string
	transport  string
	address    string
	logLevel   string
}

func addSessionFlags(fs *flag.FlagSet, sf *sessionFlags) {
	fs.StringVar(&sf.configPath, "config", config.DefaultConfigPath, "TOML config path")
	fs.StringVar(&sf.transport, "transport", "", "override link transport (serial or tcp)")
	fs.StringVar(&sf.address, "addr", "", "override link address")
	fs.StringVar(&sf.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
}

func loadSession(sf sessionFlags) (*config.Config, *robot.Robot, error) {
	log.Init(sf.logLevel)

	cfg, _, err := config.LoadOrDefault(sf.configPath)
	if err != nil {
		return nil, nil, err
	}
	if sf.transport != "" {
		tp, err := parseTransport(sf.transport)
		if err != nil {
			return nil, nil, err
		}
		cfg.Link.Transport = tp
	}
	if sf.address != "" {
		cfg.Link.Address = sf.address
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	if err := cfg.Apply(); err != nil {
		return nil, nil, err
	}

	dialer, err := cfg.Dialer()
	if err != nil {
		return nil, nil, err
	}
	opts, err := cfg.EngineOptions()
	if err != nil {
		return nil, nil, err
	}
	return &cfg, robot.New(dialer, opts...), nil
}

func runSession(args []string, stdout io.Writer, stderr io.Writer) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var sf sessionFlags
	addSessionFlags(fs, &sf)
	logPath := fs.String("log", "", "JSONL telemetry output path (default: stdout)")
	wsAddr := fs.String("ws", "", "WebSocket monitor address (default: from config)")
	noWS := fs.Bool("no-ws", false, "disable the WebSocket monitor")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, bot, err := loadSession(sf)
	if err != nil {
		fmt.Fprintln(stderr, "setup failed:", err)
		return 1
	}
	defer bot.Close()

	var out io.Writer = stdout
	switch {
	case *logPath != "":
		file, err := os.Create(*logPath)
		if err != nil {
			fmt.Fprintln(stderr, "failed to open log file:", err)
			return 1
		}
		defer file.Close()
		out = file
	case cfg.Monitor.LogPath != "":
		file, err := os.Create(cfg.Monitor.LogPath)
		if err != nil {
			fmt.Fprintln(stderr, "failed to open log file:", err)
			return 1
		}
		defer file.Close()
		out = file
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := bot.Connect(ctx, cfg.Link.Address); err != nil {
		fmt.Fprintln(stderr, "connect failed:", err)
		return 1
	}

	sub := bot.Subscribe()
	defer bot.Unsubscribe(sub)
	go logger.NewJSONLWriter(out).Consume(ctx, sub)

	if !*noWS {
		addr := cfg.Monitor.WSAddr
		if *wsAddr != "" {
			addr = *wsAddr
		}
		srv := wsmon.NewServer(wsmon.Config{Addr: addr}, bot)
		go func() {
			if err := srv.Run(ctx); err != nil {
				fmt.Fprintln(stderr, "monitor server:", err)
			}
		}()
	}

	<-ctx.Done()
	return 0
}

func runMock(args []string, stdout io.Writer, stderr io.Writer) int {
	fs := flag.NewFlagSet("mock", flag.ContinueOnError)
	fs.SetOutput(stderr)

	addr := fs.String("addr", "127.0.0.1:5555", "TCP listen address")
	hz := fs.Int("hz", 20, "sensor report rate")
	logLevel := fs.String("log-level", "info", "log level")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	log.Init(*logLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	emu := newMockRobot(*hz)
	fmt.Fprintln(stdout, "mock robot listening on", *addr)
	if err := emu.ListenAndServe(ctx, *addr); err != nil {
		fmt.Fprintln(stderr, "mock robot:", err)
		return 1
	}
	return 0
}

// parseTransport normalizes transport override spellings.
func parseTransport(value string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "serial", "rfcomm":
		return "serial", nil
	case "tcp":
		return "tcp", nil
	default:
		return "", fmt.Errorf("unknown transport %q", value)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  morsed run     [--config morse.toml] [--transport serial|tcp] [--addr dev-or-host] [--log file.jsonl] [--ws host:port]")
	fmt.Fprintln(w, "  morsed monitor [--config morse.toml] [--transport serial|tcp] [--addr dev-or-host]")
	fmt.Fprintln(w, "  morsed mock    [--addr host:port] [--hz 20]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  run       connect to a robot and stream telemetry (JSONL + WebSocket)")
	fmt.Fprintln(w, "  monitor   interactive terminal telemetry view")
	fmt.Fprintln(w, "  mock      emulate a robot over TCP for development")
}
