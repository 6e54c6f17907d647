package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const version = "1.0.0"

func printVersion() {
	fmt.Printf("audioswitch v%s\n", version)
	fmt.Println("Audio output switcher action for stream-deck style hosts")
}

func printUsage() {
	printVersion()
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  audioswitch [OPTIONS]")
	fmt.Println()
	fmt.Println("DESCRIPTION:")
	fmt.Println("  Cycles the default PulseAudio/PipeWire sink through up to three")
	fmt.Println("  configured slots and keeps a composite icon plus the volume label")
	fmt.Println("  of the active slot on the host display.")
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("  -config string")
	fmt.Println("        Path to YAML config file (optional)")
	fmt.Println()
	fmt.Println("  -instance string")
	fmt.Println("        Action instance id (default \"default\")")
	fmt.Println()
	fmt.Println("  -data-dir string")
	fmt.Println("        Directory for settings and the icon cache (default \"~/.local/share/audioswitch\")")
	fmt.Println()
	fmt.Println("  -assets-dir string")
	fmt.Println("        Directory holding the base icon PNGs (default \"/usr/share/audioswitch/assets\")")
	fmt.Println()
	fmt.Println("  -pactl string")
	fmt.Printf("        pactl binary (default %q)\n", defaultPactlBinary)
	fmt.Println()
	fmt.Println("  -listener")
	fmt.Println("        Run \"pactl subscribe\" to refresh on sink changes (default true)")
	fmt.Println()
	fmt.Println("  -input-device string")
	fmt.Println("        Linux input event device whose key acts as the action key (optional)")
	fmt.Println()
	fmt.Println("  -ipc-socket string")
	fmt.Println("        Unix domain socket path for host events (default \"/tmp/audioswitch.sock\")")
	fmt.Println()
	fmt.Println("  -http-port int")
	fmt.Println("        Port serving /ws and /media/ (default 3011, 0 disables)")
	fmt.Println()
	fmt.Println("  -nats-url string")
	fmt.Println("        NATS server URL; enables the NATS bridge when set")
	fmt.Println()
	fmt.Println("  -log-level string")
	fmt.Println("        Log level: error, warn, info, debug (default \"info\")")
	fmt.Println()
	fmt.Println("  -version")
	fmt.Println("        Print version and exit")
	fmt.Println()
	fmt.Println("  -help")
	fmt.Println("        Print this help message")
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  audioswitch -instance desk -log-level debug")
	fmt.Println("  audioswitch -config ~/.config/audioswitch.yaml")
	fmt.Println()
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

	def := DefaultConfig()
	var (
		configPath      = flag.String("config", "", "Path to YAML config file")
		instanceID      = flag.String("instance", def.Instance.ID, "Action instance id")
		dataDir         = flag.String("data-dir", def.Instance.DataDir, "Directory for settings and the icon cache")
		assetsDir       = flag.String("assets-dir", def.Instance.AssetsDir, "Directory holding the base icon PNGs")
		pactlBinary     = flag.String("pactl", def.Pactl.Binary, "pactl binary")
		listenerEnabled = flag.Bool("listener", def.Listener.Enabled, "Run \"pactl subscribe\" to refresh on sink changes")
		inputDevice     = flag.String("input-device", "", "Linux input event device for the action key")
		ipcSocketPath   = flag.String("ipc-socket", def.IPC.SocketPath, "Unix domain socket path for host events")
		httpPort        = flag.Int("http-port", def.HTTP.Port, "Port serving /ws and /media/ (0 disables)")
		natsURL         = flag.String("nats-url", "", "NATS server URL")
		logLevelStr     = flag.String("log-level", def.Logging.Level, "Log level: error, warn, info, debug")
		_               = flag.Bool("version", false, "Print version and exit")
		_               = flag.Bool("help", false, "Print help message")
	)
	flag.Usage = printUsage
	flag.Parse()

	cfg := def
	if *configPath != "" {
		loaded, err := LoadConfigFile(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	// Only flags given on the command line override the file.
	var ov FlagOverrides
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "instance":
			ov.InstanceID = instanceID
		case "data-dir":
			ov.DataDir = dataDir
		case "assets-dir":
			ov.AssetsDir = assetsDir
		case "pactl":
			ov.PactlBinary = pactlBinary
		case "listener":
			ov.ListenerEnabled = listenerEnabled
		case "input-device":
			ov.InputDevice = inputDevice
		case "ipc-socket":
			ov.IPCSocketPath = ipcSocketPath
		case "http-port":
			ov.HTTPPort = httpPort
		case "nats-url":
			ov.NATSURL = natsURL
		case "log-level":
			ov.LogLevel = logLevelStr
		}
	})
	ov.Apply(&cfg)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	logLevel, _ := parseLogLevel(cfg.Logging.Level)
	logger := setupLogger(logLevel, cfg.Instance.ID, uuid.NewString())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("audioswitch stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

// run wires every component and supervises them until ctx is canceled or
// one of them fails.
func run(ctx context.Context, cfg Config, logger *slog.Logger) error {
	store, err := NewSettingsStore(cfg.SettingsPath(), logger)
	if err != nil {
		return err
	}
	settings, err := store.Load()
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	icons, err := NewIconCache(cfg.CacheDir(), time.Duration(cfg.Cache.RetentionHours)*time.Hour, logger)
	if err != nil {
		return err
	}

	events := make(chan Event, 64)
	bus := NewDisplayBus(logger)

	fx := &Effects{
		Backend:       NewPactlClient(cfg.Pactl.Binary, ms(cfg.Pactl.TimeoutMS), nil, logger),
		Icons:         icons,
		Store:         store,
		Display:       bus,
		AssetsDir:     ExpandPath(cfg.Instance.AssetsDir),
		ErrorDuration: ms(cfg.Display.ErrorDurationMS),
		Logger:        logger,
	}
	if cfg.Listener.Enabled {
		fx.Listener = NewSinkListener(SinkListenerConfig{
			Binary:      cfg.Pactl.Binary,
			Debounce:    ms(cfg.Listener.DebounceMS),
			StopTimeout: ms(cfg.Listener.StopTimeoutMS),
		}, func() {
			if !trySend(events, SinksChanged{}) {
				logger.Warn("event queue full, dropping sink change")
			}
		}, logger)
	}

	// Subscribe before the daemon starts so no update is missed.
	var wsUpdates, natsUpdates <-chan DisplayUpdate
	if cfg.HTTP.Port > 0 {
		wsUpdates = bus.Subscribe(64)
	}
	if cfg.NATS.URL != "" {
		natsUpdates = bus.Subscribe(64)
	}

	logger.Info("starting audioswitch",
		"version", version,
		"settings", store.Path(),
		"cache_dir", icons.Dir(),
		"ipc", cfg.IPC.SocketPath,
		"http_port", cfg.HTTP.Port,
		"nats", cfg.NATS.URL != "",
		"listener", cfg.Listener.Enabled,
		"input_devices", cfg.Input.Devices)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer bus.Close()
		runDaemon(gctx, events, fx, NewDaemonState(settings), cfg.DaemonConfig(), logger)
		return nil
	})

	g.Go(func() error {
		return runIPCServer(gctx, cfg.IPC.SocketPath, events, logger)
	})

	g.Go(func() error {
		return store.Watch(gctx, func(st Settings) {
			logger.Info("settings changed on disk", "path", store.Path())
			if !trySend(events, SettingsReloaded{Settings: st}) {
				logger.Warn("event queue full, dropping settings reload")
			}
		})
	})

	if cfg.HTTP.Port > 0 {
		ds := NewDisplayServer(logger, events, HubConfig{})
		g.Go(func() error {
			ds.Hub().Run(gctx)
			return nil
		})
		g.Go(func() error {
			RunBroadcaster(gctx, ds.Hub(), wsUpdates, logger)
			return nil
		})
		g.Go(func() error {
			return runHTTPServer(gctx, cfg.HTTP.Port, newHTTPMux(ds, icons.Dir()), logger)
		})
	}

	if cfg.NATS.URL != "" {
		g.Go(func() error {
			nc, err := connectNATS(gctx, cfg.NATS.URL, "audioswitch-"+cfg.Instance.ID, logger)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			}
			conn := NewNATSConnectionAdapter(nc)
			defer conn.Close()
			return NewNATSBridge(conn, cfg.NATS.SubjectPrefix, cfg.Instance.ID, events, logger).Run(gctx, natsUpdates)
		})
	}

	if len(cfg.Input.Devices) > 0 {
		g.Go(func() error {
			return runInput(gctx, cfg.Input.Devices, cfg.Input.KeyCode, events, logger)
		})
	}

	// The action appears on the host as soon as the daemon is up.
	events <- Ready{}

	return g.Wait()
}
