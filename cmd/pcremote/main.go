package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/soellman/pidfile"
	"go.bug.st/serial"
	"golang.org/x/sync/errgroup"
)

const version = "0.3.0"

func printVersion() {
	fmt.Printf("pcremote v%s\n", version)
	fmt.Println("Remote control daemon: turns receiver codes into media, keyboard, mouse and power actions")
}

func printUsage() {
	printVersion()
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  pcremote [OPTIONS]")
	fmt.Println()
	fmt.Println("DESCRIPTION:")
	fmt.Println("  Reads remote codes (one \"0x...\" line per button) from a serial receiver or a")
	fmt.Println("  Linux input device and runs the binds configured for each code.")
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("  -config string")
	fmt.Printf("        Config file; created with defaults when missing (default %q)\n", defaultConfigPath())
	fmt.Println()
	fmt.Println("  -receiver string")
	fmt.Println("        Receiver kind: serial|evdev")
	fmt.Println()
	fmt.Println("  -com-port int")
	fmt.Printf("        Serial port number (default %d)\n", defaultComPort)
	fmt.Println()
	fmt.Println("  -baud-rate int")
	fmt.Printf("        Serial baud rate (default %d)\n", defaultBaudRate)
	fmt.Println()
	fmt.Println("  -device string")
	fmt.Println("        Receiver device path; overrides -com-port (required for evdev)")
	fmt.Println()
	fmt.Println("  -automation string")
	fmt.Println("        Automation backend: auto|xdotool|nircmd")
	fmt.Println()
	fmt.Println("  -http-listen string")
	fmt.Println("        Address for the event feed and status API; empty disables it")
	fmt.Println()
	fmt.Println("  -ipc-socket string")
	fmt.Println("        Unix domain socket path for IPC")
	fmt.Println()
	fmt.Println("  -log-level string")
	fmt.Println("        Log level: error, warn, info, debug")
	fmt.Println()
	fmt.Println("  -log-dir string")
	fmt.Println("        Also write logs to a timestamped file in this directory")
	fmt.Println()
	fmt.Println("  -list-ports")
	fmt.Println("        Print the serial ports found on this machine and exit")
	fmt.Println()
	fmt.Println("  -version")
	fmt.Println("        Print version and exit")
	fmt.Println()
	fmt.Println("  -help")
	fmt.Println("        Print this help message")
	fmt.Println()
	fmt.Println("NOTES:")
	fmt.Println("  - Flags override the config file and keep winning across config reloads")
	fmt.Println("  - Receiver settings apply on the next reconnect, binds on the next press")
	fmt.Println()
}

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "pcremote.yaml"
	}
	return filepath.Join(dir, "pcremote", "config.yaml")
}

func main() {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" {
			printVersion()
			return
		}
		if arg == "-help" || arg == "--help" || arg == "-h" {
			printUsage()
			return
		}
	}

	var (
		configPath        = flag.String("config", defaultConfigPath(), "Config file path")
		receiverKind      = flag.String("receiver", ReceiverSerial, "Receiver kind: serial|evdev")
		comPort           = flag.Int("com-port", defaultComPort, "Serial port number")
		baudRate          = flag.Int("baud-rate", defaultBaudRate, "Serial baud rate")
		receiverDevice    = flag.String("device", "", "Receiver device path")
		automationBackend = flag.String("automation", AutomationAuto, "Automation backend: auto|xdotool|nircmd")
		httpListen        = flag.String("http-listen", "", "Event feed listen address")
		ipcSocketPath     = flag.String("ipc-socket", "", "Unix domain socket path for IPC")
		logLevelStr       = flag.String("log-level", "info", "Log level: error, warn, info, debug")
		logDir            = flag.String("log-dir", "", "Log file directory")
		listPorts         = flag.Bool("list-ports", false, "List serial ports and exit")
		_                 = flag.Bool("version", false, "Print version and exit")
		_                 = flag.Bool("help", false, "Print help message")
	)

	flag.Usage = printUsage
	flag.Parse()

	if *listPorts {
		ports, err := serial.GetPortsList()
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		if len(ports) == 0 {
			fmt.Println("no serial ports found")
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		return
	}

	// Only flags given on the command line override the file.
	var overrides FlagOverrides
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "receiver":
			overrides.ReceiverKind = receiverKind
		case "com-port":
			overrides.ComPort = comPort
		case "baud-rate":
			overrides.BaudRate = baudRate
		case "device":
			overrides.ReceiverDevice = receiverDevice
		case "automation":
			overrides.AutomationBackend = automationBackend
		case "http-listen":
			overrides.HTTPListen = httpListen
		case "ipc-socket":
			overrides.IPCSocketPath = ipcSocketPath
		case "log-level":
			overrides.LogLevel = logLevelStr
		case "log-dir":
			overrides.LogDir = logDir
		}
	})

	cfg, created, err := loadOrCreateConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	overrides.Apply(&cfg)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "error: invalid config:", err)
		os.Exit(1)
	}

	logLevel, err := parseLogLevel(cfg.Logging.Level)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	var out io.Writer = os.Stdout
	if cfg.Logging.Dir != "" {
		f, err := openLogFile(cfg.Logging.Dir, cfg.Logging.Keep, time.Now())
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		if f != nil {
			defer f.Close()
			out = io.MultiWriter(os.Stdout, f)
		}
	}
	logger := setupLogger(logLevel, out)
	if created {
		logger.Info("wrote default config", "path", *configPath)
	}

	if code := runMain(cfg, *configPath, overrides, logger); code != 0 {
		os.Exit(code)
	}
}

// runMain owns everything that needs deferred cleanup before the process exits.
func runMain(cfg Config, configPath string, overrides FlagOverrides, logger *slog.Logger) int {
	if cfg.PIDFile != "" {
		if err := pidfile.Write(cfg.PIDFile); err != nil {
			logger.Error("failed to create pid file", "path", cfg.PIDFile, "error", err, "tip", "is another pcremote running?")
			return 1
		}
		defer func() { _ = pidfile.Remove(cfg.PIDFile) }()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, configPath, overrides, logger); err != nil {
		logger.Error("daemon stopped", "error", err)
		return 1
	}
	logger.Info("shutting down")
	return 0
}

// loadOrCreateConfig loads path, or writes and returns the defaults when it does not
// exist. A config without binds gets the placeholder bind.
func loadOrCreateConfig(path string) (Config, bool, error) {
	cfg, err := LoadConfigFile(path)
	created := false
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist):
		cfg = DefaultConfig()
		created = true
	default:
		return Config{}, false, err
	}

	if cfg.ensureDefaultBind() {
		created = true
	}
	if created {
		if err := SaveConfigFile(path, cfg); err != nil {
			return Config{}, false, err
		}
	}
	return cfg, created, nil
}

// run wires the daemon and blocks until ctx is canceled or a component fails.
func run(ctx context.Context, cfg Config, configPath string, overrides FlagOverrides, logger *slog.Logger) error {
	store := NewConfigStore(cfg, configPath, overrides, logger)
	runner := execRunner{}

	auto, err := newAutomator(cfg.Automation.Backend, runner, cfg.Media.NircmdPath)
	if err != nil {
		return err
	}
	emu := NewEmulator(auto)

	media := NewMedia(newNirsoftTools(runner, cfg.Media), store.DeviceFilter, logger.With("component", "media"))
	if err := media.Init(); err != nil {
		logger.Error("media init failed, continuing with an empty device cache", "error", err)
	}

	var power PowerController
	if p, err := newDefaultPower(runner); err != nil {
		logger.Warn("power actions unavailable", "error", err)
		power = unsupportedPower{err: err}
	} else {
		power = p
	}

	bus := NewBus(logger)
	defer bus.Close()

	mode := &ModeFlag{}
	dispatcher := NewDispatcher(DispatcherDeps{
		Binds:   store,
		Emu:     emu,
		Media:   media,
		Mode:    mode,
		Power:   power,
		Browser: systemBrowser{},
		Pub:     bus,
		Logger:  logger.With("component", "dispatcher"),
	})
	listener := NewListener(ListenerDeps{
		Receiver:   store.Receiver,
		Dispatcher: dispatcher,
		Media:      media,
		Pub:        bus,
		Logger:     logger.With("component", "listener"),
	})
	reporter := NewStatusReporter(mode, listener, media, store)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return listener.Run(gctx)
	})

	ipc := &ipcHandler{
		listener:   listener,
		dispatcher: dispatcher,
		media:      media,
		store:      store,
		status:     reporter,
		pub:        bus,
		logger:     logger,
	}
	g.Go(func() error {
		return runIPCServer(gctx, cfg.IPC.SocketPath, ipc, logger.With("component", "ipc"))
	})

	if cfg.Server.Listen != "" {
		feed := NewFeed(logger.With("component", "ws"), func() Status { return reporter.Status(false) })
		src := bus.Subscribe("ws", 128)
		g.Go(func() error {
			feed.Run(gctx)
			return nil
		})
		g.Go(func() error {
			RunBroadcaster(gctx, feed, src, logger)
			return nil
		})
		g.Go(func() error {
			return runHTTPServer(gctx, cfg.Server.Listen, newHTTPMux(feed, reporter.Status, store, logger), logger)
		})
	}

	if cfg.MQTT.Enabled {
		pub := newMQTTPublisher(cfg.MQTT, logger.With("component", "mqtt"))
		src := bus.Subscribe("mqtt", 128)
		g.Go(func() error {
			if err := pub.Run(gctx, src); err != nil {
				logger.Error("mqtt publisher stopped", "error", err)
			}
			return nil
		})
	}

	if cfg.Notifications.Desktop {
		n := newDesktopNotifier(logger)
		src := bus.Subscribe("desktop", 16)
		g.Go(func() error {
			return n.Run(gctx, src)
		})
	}

	g.Go(func() error {
		err := watchConfig(gctx, store, func(c Config) {
			logger.Info("config applied", "binds", len(c.Binds), "receiver", c.Receiver.Kind)
		}, logger)
		if err != nil {
			logger.Warn("config hot reload disabled", "error", err)
		}
		return nil
	})

	logger.Info("listening",
		"version", version,
		"config", configPath,
		"receiver", cfg.Receiver.Kind,
		"port", serialPortName(cfg.Receiver),
		"ipc", cfg.IPC.SocketPath,
		"http", cfg.Server.Listen,
		"mqtt", cfg.MQTT.Enabled,
		"binds", len(cfg.Binds))

	return g.Wait()
}
