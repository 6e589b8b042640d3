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

	"golang.org/x/sync/errgroup"
	"periph.io/x/periph/host"

	"vfoknob/encoder"
)

const version = "1.0.0"

func printVersion() {
	fmt.Printf("vfoknob v%s\n", version)
	fmt.Println("Rotary encoder VFO daemon")
}

// optionalFlags tracks which flags were set so only those override the file.
func optionalFlags(fs *flag.FlagSet) map[string]bool {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}

func main() {
	var (
		configPath   = flag.String("config", "", "Path to YAML config file")
		inputSource  = flag.String("input", "", "Input source: evdev, gpio or serial")
		inputDevice  = flag.String("input-device", "", "evdev input device (replaces input.devices)")
		serialDevice = flag.String("serial-device", "", "Serial device of the sampling MCU")
		ppr          = flag.Int("ppr", 0, "Encoder pulses per revolution")
		granularity  = flag.String("granularity", "", "Detent granularity: full or half")
		activeLow    = flag.Bool("active-low", false, "Invert encoder channels (pulled-up inputs)")
		initialHz    = flag.Int64("initial-hz", 0, "Initial frequency in Hz when no saved state exists")
		stepHz       = flag.Int64("step-hz", 0, "Initial step size in Hz")
		synthDriver  = flag.String("synth", "", "Synthesizer driver: none or si5351")
		i2cBus       = flag.String("i2c-bus", "", "I2C bus name for the synthesizer")
		statePath    = flag.String("state", "", "Path of the persisted tuning state")
		ipcSocket    = flag.String("ipc-socket", "", "Unix domain socket path for IPC")
		httpPort     = flag.Int("http-port", 0, "HTTP port for websocket state and display (0 keeps config)")
		logLevelStr  = flag.String("log-level", "", "Log level: error, warn, info, debug")
		showVersion  = flag.Bool("version", false, "Print version and exit")
	)
	flag.Parse()

	if *showVersion {
		printVersion()
		return
	}

	cfg := DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = LoadConfigFile(*configPath); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
	}

	set := optionalFlags(flag.CommandLine)
	var o FlagOverrides
	if set["input"] {
		o.InputSource = inputSource
	}
	if set["input-device"] {
		o.InputDevice = inputDevice
	}
	if set["serial-device"] {
		o.SerialDevice = serialDevice
	}
	if set["ppr"] {
		o.PPR = ppr
	}
	if set["granularity"] {
		o.Granularity = granularity
	}
	if set["active-low"] {
		o.ActiveLow = activeLow
	}
	if set["initial-hz"] {
		o.InitialHz = initialHz
	}
	if set["step-hz"] {
		o.StepHz = stepHz
	}
	if set["synth"] {
		o.SynthDriver = synthDriver
	}
	if set["i2c-bus"] {
		o.I2CBus = i2cBus
	}
	if set["state"] {
		o.StatePath = statePath
	}
	if set["ipc-socket"] {
		o.IPCSocketPath = ipcSocket
	}
	if set["http-port"] {
		o.HTTPPort = httpPort
	}
	if set["log-level"] {
		o.LogLevel = logLevelStr
	}
	o.Apply(&cfg)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	logLevel, _ := parseLogLevel(cfg.Logging.Level)
	logger := setupLogger(logLevel, cfg.Logging.Format)

	if err := run(cfg, logger); err != nil {
		logger.Error("vfoknob exiting", "error", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	needPeriph := cfg.Input.Source == "gpio" || cfg.Synth.Driver == "si5351" || cfg.Key.TxGPIO != ""
	if needPeriph {
		if _, err := host.Init(); err != nil {
			return fmt.Errorf("periph host init: %w", err)
		}
	}

	// Synthesizer and TX output
	var synth Synthesizer = logSynth{logger: logger}
	if cfg.Synth.Driver == "si5351" {
		s, err := openSi5351(cfg.Synth)
		if err != nil {
			return err
		}
		synth = s
	}
	defer func() {
		if err := synth.Close(); err != nil {
			logger.Warn("synth close failed", "error", err)
		}
	}()

	var tx TxOutput = logTx{logger: logger}
	if cfg.Key.TxGPIO != "" {
		t, err := openGPIOTx(cfg.Key.TxGPIO)
		if err != nil {
			return err
		}
		tx = t
	}

	// Restored state
	store := newYAMLStore(cfg.State.Path)
	restored, err := store.Load()
	if err != nil {
		logger.Warn("could not restore tuning state; using defaults", "error", err)
		restored = nil
	}

	rcfg := cfg.ReducerConfig()
	state := NewDaemonState(rcfg, cfg.Tuning.InitialHz, restored)
	if restored == nil || restored.StepHz <= 0 {
		state.setStep(rcfg, cfg.Tuning.StepHz)
	}

	// Encoder core
	enc, err := encoder.New(cfg.EncoderCoreConfig())
	if err != nil {
		return err
	}
	var slot encoder.StepSlot
	notify := make(chan struct{}, 1)
	sampler := NewSampler(enc, &slot, notify, cfg.Encoder.ActiveLow)

	events := make(chan Event, 64)

	// Without the HTTP server nobody reads broadcasts; the daemon skips
	// them on a nil channel.
	var broadcasts chan StateBroadcast
	if cfg.HTTP.Port > 0 {
		broadcasts = make(chan StateBroadcast, 256)
	}

	logger.Info("starting vfoknob",
		"version", version,
		"input", cfg.Input.Source,
		"ppr", cfg.Encoder.PPR,
		"granularity", cfg.Encoder.Granularity,
		"synth", cfg.Synth.Driver,
		"frequency_hz", state.Tuning.FrequencyHz,
		"step_hz", state.Tuning.StepHz,
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		runDaemon(ctx, events, &slot, notify, effectDeps{synth: synth, tx: tx, store: store},
			rcfg, state, cfg.Tuning.UpdateHz, broadcasts, logger)
		return nil
	})

	g.Go(func() error {
		return runIPCServer(ctx, cfg.IPC.SocketPath, events, logger)
	})

	g.Go(func() error {
		var err error
		switch cfg.Input.Source {
		case "gpio":
			err = runGPIOSource(ctx, cfg.Input, cfg.Encoder.TickHz, sampler, events, logger)
		case "serial":
			err = runSerialSource(ctx, cfg.Input, sampler, events, logger)
		default:
			err = runEvdevSource(ctx, cfg.Input, cfg.Encoder.TickHz, sampler, events, logger)
		}
		if err != nil {
			return fmt.Errorf("input %s: %w", cfg.Input.Source, err)
		}
		return nil
	})

	if cfg.HTTP.Port > 0 {
		ws := NewServer(logger, events, ServerConfig{})
		g.Go(func() error {
			ws.Hub().Run(ctx)
			return nil
		})
		g.Go(func() error {
			RunBroadcaster(ctx, ws.Hub(), broadcasts, logger)
			return nil
		})
		g.Go(func() error {
			return runHTTPServer(ctx, cfg.HTTP.Port, newHTTPMux(ws, events, logger), logger)
		})
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	logger.Info("vfoknob stopped")
	return err
}
