package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"vfoknob/encoder"
)

// Config is the top-level YAML configuration for the vfoknob daemon.
//
// Defaults and validation live here so the rest of the daemon can assume a
// well-formed config. The file is the primary configuration surface; flags
// are for small overrides.
type Config struct {
	Encoder EncoderConfig `yaml:"encoder"`
	Input   InputConfig   `yaml:"input"`
	Tuning  TuningConfig  `yaml:"tuning"`
	Bands   []BandConfig  `yaml:"bands"`
	Key     KeyConfig     `yaml:"key"`
	Synth   SynthConfig   `yaml:"synth"`
	State   StateConfig   `yaml:"state"`
	IPC     IPCConfig     `yaml:"ipc"`
	HTTP    HTTPConfig    `yaml:"http"`
	Logging LoggingConfig `yaml:"logging"`
}

type EncoderConfig struct {
	PPR         int    `yaml:"ppr"`
	Granularity string `yaml:"granularity"` // "full" or "half"
	TickHz      int    `yaml:"tick_hz"`

	// ActiveLow inverts both channel bits before decoding. Encoders wired to
	// pulled-up inputs rest at 11 and need this.
	ActiveLow bool `yaml:"active_low"`
}

type InputConfig struct {
	Source string `yaml:"source"` // "evdev", "gpio" or "serial"

	// evdev
	Devices      []string `yaml:"devices,omitempty"`
	CodeA        uint16   `yaml:"code_a"`
	CodeB        uint16   `yaml:"code_b"`
	KeyCode      uint16   `yaml:"key_code"`
	BandNextCode uint16   `yaml:"band_next_code"`
	BandPrevCode uint16   `yaml:"band_prev_code"`
	StepCode     uint16   `yaml:"step_code"`
	UseEpoll     bool     `yaml:"use_epoll"`

	// gpio (periph pin names)
	GPIOA   string `yaml:"gpio_a,omitempty"`
	GPIOB   string `yaml:"gpio_b,omitempty"`
	GPIOKey string `yaml:"gpio_key,omitempty"`

	// serial
	SerialDevice string `yaml:"serial_device,omitempty"`
	SerialBaud   int    `yaml:"serial_baud"`
}

type TuningConfig struct {
	InitialHz   int64   `yaml:"initial_hz"`
	StepHz      int64   `yaml:"step_hz"`
	StepSizesHz []int64 `yaml:"step_sizes_hz"`
	MinHz       int64   `yaml:"min_hz"`
	MaxHz       int64   `yaml:"max_hz"`
	UpdateHz    int     `yaml:"update_hz"`
}

// BandConfig is one selectable band. Tuning is clamped to [LowHz, HighHz]
// while the band is active.
type BandConfig struct {
	Name      string `yaml:"name"`
	LowHz     int64  `yaml:"low_hz"`
	HighHz    int64  `yaml:"high_hz"`
	DefaultHz int64  `yaml:"default_hz,omitempty"`
}

type KeyConfig struct {
	DebounceMS int    `yaml:"debounce_ms"`
	TxDelayMS  int    `yaml:"tx_delay_ms"`
	TxGPIO     string `yaml:"tx_gpio,omitempty"`
}

type SynthConfig struct {
	Driver        string `yaml:"driver"` // "none" or "si5351"
	I2CBus        string `yaml:"i2c_bus,omitempty"`
	Address       uint8  `yaml:"address"`
	XtalHz        int64  `yaml:"xtal_hz"`
	CorrectionPPB int64  `yaml:"correction_ppb"`
}

type StateConfig struct {
	Path        string `yaml:"path"`
	SaveDelayMS int    `yaml:"save_delay_ms"`
}

type IPCConfig struct {
	SocketPath string `yaml:"socket_path"`
}

type HTTPConfig struct {
	Port int `yaml:"port"` // 0 disables the HTTP server
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format,omitempty"`
}

// defaultBands covers the HF amateur bands the Si5351 reaches directly.
func defaultBands() []BandConfig {
	return []BandConfig{
		{Name: "160m", LowHz: 1_800_000, HighHz: 2_000_000, DefaultHz: 1_840_000},
		{Name: "80m", LowHz: 3_500_000, HighHz: 3_800_000, DefaultHz: 3_573_000},
		{Name: "40m", LowHz: 7_000_000, HighHz: 7_200_000, DefaultHz: 7_074_000},
		{Name: "30m", LowHz: 10_100_000, HighHz: 10_150_000, DefaultHz: 10_136_000},
		{Name: "20m", LowHz: 14_000_000, HighHz: 14_350_000, DefaultHz: 14_074_000},
		{Name: "17m", LowHz: 18_068_000, HighHz: 18_168_000, DefaultHz: 18_100_000},
		{Name: "15m", LowHz: 21_000_000, HighHz: 21_450_000, DefaultHz: 21_074_000},
		{Name: "12m", LowHz: 24_890_000, HighHz: 24_990_000, DefaultHz: 24_915_000},
		{Name: "10m", LowHz: 28_000_000, HighHz: 29_700_000, DefaultHz: 28_074_000},
	}
}

// DefaultConfig returns a fully-populated Config with defaults.
// Keep this aligned with constants.go.
func DefaultConfig() Config {
	return Config{
		Encoder: EncoderConfig{
			PPR:         defaultPPR,
			Granularity: "full",
			TickHz:      defaultTickHz,
		},
		Input: InputConfig{
			Source:       "evdev",
			Devices:      []string{"/dev/input/event0"},
			CodeA:        KEY_F1,
			CodeB:        KEY_F2,
			KeyCode:      KEY_SPACE,
			BandNextCode: KEY_PAGEUP,
			BandPrevCode: KEY_PAGEDOWN,
			StepCode:     KEY_TAB,
			UseEpoll:     true,
			SerialBaud:   defaultSerialBaud,
		},
		Tuning: TuningConfig{
			InitialHz:   defaultInitialHz,
			StepHz:      defaultStepHz,
			StepSizesHz: []int64{1, 10, 100, 1000},
			MinHz:       defaultMinHz,
			MaxHz:       defaultMaxHz,
			UpdateHz:    defaultUpdateHz,
		},
		Bands: defaultBands(),
		Key: KeyConfig{
			DebounceMS: defaultDebounceMS,
			TxDelayMS:  defaultTxDelayMS,
		},
		Synth: SynthConfig{
			Driver:  "none",
			I2CBus:  "",
			Address: defaultI2CAddress,
			XtalHz:  defaultXtalHz,
		},
		State: StateConfig{
			Path:        "~/.local/state/vfoknob/state.yaml",
			SaveDelayMS: defaultSaveDelay,
		},
		IPC: IPCConfig{
			SocketPath: defaultSocketPath,
		},
		HTTP: HTTPConfig{
			Port: defaultHTTPPort,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfigFile reads and parses a YAML config file on top of the
// defaults. Unknown fields are rejected so typos surface at startup.
func LoadConfigFile(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	b, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	return parseConfig(b)
}

func parseConfig(b []byte) (Config, error) {
	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}

	// Only whitespace/comments are allowed after the document.
	var rest yaml.Node
	if err := dec.Decode(&rest); !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode config yaml: unexpected trailing document")
	}

	return cfg, nil
}

// FlagOverrides holds optional command-line overrides. Each non-nil pointer
// is applied, even when it points at a zero value.
type FlagOverrides struct {
	InputSource  *string
	InputDevice  *string
	SerialDevice *string

	PPR         *int
	Granularity *string
	ActiveLow   *bool

	InitialHz *int64
	StepHz    *int64

	SynthDriver *string
	I2CBus      *string

	StatePath     *string
	IPCSocketPath *string
	HTTPPort      *int

	LogLevel *string
}

// Apply merges the overrides into cfg.
func (o FlagOverrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}
	if o.InputSource != nil {
		cfg.Input.Source = *o.InputSource
	}
	if o.InputDevice != nil {
		cfg.Input.Devices = []string{*o.InputDevice}
	}
	if o.SerialDevice != nil {
		cfg.Input.SerialDevice = *o.SerialDevice
	}

	if o.PPR != nil {
		cfg.Encoder.PPR = *o.PPR
	}
	if o.Granularity != nil {
		cfg.Encoder.Granularity = *o.Granularity
	}
	if o.ActiveLow != nil {
		cfg.Encoder.ActiveLow = *o.ActiveLow
	}

	if o.InitialHz != nil {
		cfg.Tuning.InitialHz = *o.InitialHz
	}
	if o.StepHz != nil {
		cfg.Tuning.StepHz = *o.StepHz
	}

	if o.SynthDriver != nil {
		cfg.Synth.Driver = *o.SynthDriver
	}
	if o.I2CBus != nil {
		cfg.Synth.I2CBus = *o.I2CBus
	}

	if o.StatePath != nil {
		cfg.State.Path = *o.StatePath
	}
	if o.IPCSocketPath != nil {
		cfg.IPC.SocketPath = *o.IPCSocketPath
	}
	if o.HTTPPort != nil {
		cfg.HTTP.Port = *o.HTTPPort
	}

	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
}

// Validate checks config invariants and returns a user-friendly error.
// Call it after defaults + file + overrides are applied.
func (c *Config) Validate() error {
	// Encoder
	if c.Encoder.PPR <= 0 {
		return errors.New("encoder.ppr must be > 0")
	}
	if _, err := encoder.ParseGranularity(c.Encoder.Granularity); err != nil {
		return fmt.Errorf("encoder.granularity: %w", err)
	}
	if c.Encoder.TickHz <= 0 {
		return errors.New("encoder.tick_hz must be > 0")
	}

	// Input
	switch c.Input.Source {
	case "evdev":
		if len(c.Input.Devices) == 0 {
			return errors.New("input.devices must not be empty for the evdev source")
		}
		for i, dev := range c.Input.Devices {
			if dev == "" {
				return fmt.Errorf("input.devices[%d] is empty", i)
			}
		}
		if c.Input.CodeA == c.Input.CodeB {
			return errors.New("input.code_a and input.code_b must differ")
		}
	case "gpio":
		if c.Input.GPIOA == "" || c.Input.GPIOB == "" {
			return errors.New("input.gpio_a and input.gpio_b are required for the gpio source")
		}
	case "serial":
		if c.Input.SerialDevice == "" {
			return errors.New("input.serial_device is required for the serial source")
		}
		if c.Input.SerialBaud <= 0 {
			return errors.New("input.serial_baud must be > 0")
		}
	default:
		return fmt.Errorf("input.source must be evdev, gpio or serial, got %q", c.Input.Source)
	}

	// Tuning
	t := c.Tuning
	if t.MinHz <= 0 || t.MinHz >= t.MaxHz {
		return errors.New("tuning.min_hz must be > 0 and < tuning.max_hz")
	}
	if t.InitialHz < t.MinHz || t.InitialHz > t.MaxHz {
		return fmt.Errorf("tuning.initial_hz must be within [%d, %d]", t.MinHz, t.MaxHz)
	}
	if t.StepHz <= 0 {
		return errors.New("tuning.step_hz must be > 0")
	}
	for i, s := range t.StepSizesHz {
		if s <= 0 {
			return fmt.Errorf("tuning.step_sizes_hz[%d] must be > 0", i)
		}
	}
	if t.UpdateHz <= 0 || t.UpdateHz > 1000 {
		return errors.New("tuning.update_hz must be between 1 and 1000")
	}

	// Bands, in ascending frequency order
	seen := make(map[string]bool, len(c.Bands))
	for i, b := range c.Bands {
		if b.Name == "" {
			return fmt.Errorf("bands[%d].name is empty", i)
		}
		if seen[b.Name] {
			return fmt.Errorf("bands[%d]: duplicate band name %q", i, b.Name)
		}
		seen[b.Name] = true
		if b.LowHz <= 0 || b.LowHz >= b.HighHz {
			return fmt.Errorf("bands[%d] (%s): low_hz must be > 0 and < high_hz", i, b.Name)
		}
		if b.DefaultHz != 0 && (b.DefaultHz < b.LowHz || b.DefaultHz > b.HighHz) {
			return fmt.Errorf("bands[%d] (%s): default_hz outside the band", i, b.Name)
		}
		if i > 0 && b.LowHz <= c.Bands[i-1].HighHz {
			return fmt.Errorf("bands[%d] (%s): bands must be ascending and must not overlap", i, b.Name)
		}
	}

	// Key
	if c.Key.DebounceMS < 0 || c.Key.DebounceMS > maxTimerMS {
		return fmt.Errorf("key.debounce_ms must be between 0 and %d", maxTimerMS)
	}
	if c.Key.TxDelayMS < 0 || c.Key.TxDelayMS > maxTimerMS {
		return fmt.Errorf("key.tx_delay_ms must be between 0 and %d", maxTimerMS)
	}

	// Synth
	switch c.Synth.Driver {
	case "none":
	case "si5351":
		if c.Synth.XtalHz <= 0 {
			return errors.New("synth.xtal_hz must be > 0")
		}
		if c.Synth.Address == 0 || c.Synth.Address > 0x7f {
			return errors.New("synth.address must be a 7-bit I2C address")
		}
		if t.MinHz < si5351MinHz || t.MaxHz > si5351MaxHz {
			return fmt.Errorf("tuning range must be within the si5351 range [%d, %d]", si5351MinHz, si5351MaxHz)
		}
	default:
		return fmt.Errorf("synth.driver must be none or si5351, got %q", c.Synth.Driver)
	}

	// State
	if c.State.SaveDelayMS < 0 {
		return errors.New("state.save_delay_ms must be >= 0")
	}

	// IPC / HTTP
	if c.IPC.SocketPath == "" {
		return errors.New("ipc.socket_path must not be empty")
	}
	if c.HTTP.Port < 0 || c.HTTP.Port > 65535 {
		return errors.New("http.port must be between 0 and 65535")
	}

	// Logging
	if _, err := parseLogLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	if f := c.Logging.Format; f != "" && f != "text" && f != "json" {
		return errors.New("logging.format must be text or json")
	}

	return nil
}

// EncoderCoreConfig converts the file config into the decoder core config.
// Validate must have succeeded first.
func (c *Config) EncoderCoreConfig() encoder.Config {
	g, _ := encoder.ParseGranularity(c.Encoder.Granularity)
	return encoder.Config{
		PulsesPerRevolution: c.Encoder.PPR,
		Granularity:         g,
	}
}

// ReducerConfig converts the file config into the reducer's policy config.
func (c *Config) ReducerConfig() ReducerConfig {
	steps := c.Tuning.StepSizesHz
	if len(steps) == 0 {
		steps = []int64{c.Tuning.StepHz}
	}
	return ReducerConfig{
		MinHz:      c.Tuning.MinHz,
		MaxHz:      c.Tuning.MaxHz,
		StepSizes:  append([]int64(nil), steps...),
		Bands:      append([]BandConfig(nil), c.Bands...),
		SaveDelay:  time.Duration(c.State.SaveDelayMS) * time.Millisecond,
		DebounceMS: encoder.Tick(c.Key.DebounceMS),
		TxDelayMS:  encoder.Tick(c.Key.TxDelayMS),
	}
}

// ExpandPath expands a leading "~" in a path using $HOME.
func ExpandPath(p string) string {
	if p == "" {
		return p
	}
	if p[0] != '~' {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	if len(p) >= 2 && (p[1] == '/' || p[1] == '\\') {
		return filepath.Join(home, p[2:])
	}
	return p
}
