package main

// Linux input event types and codes (from <linux/input.h>)
const (
	EV_SYN = 0x00
	EV_KEY = 0x01

	// gpio-keys codes used by the reference device tree overlay. A and B are
	// the two encoder channels, the rest are front panel buttons.
	KEY_F1       = 59
	KEY_F2       = 60
	KEY_SPACE    = 57
	KEY_PAGEUP   = 104
	KEY_PAGEDOWN = 109
	KEY_TAB      = 15
)

// Input event value constants
const (
	evValueRelease = 0
	evValuePress   = 1
	evValueRepeat  = 2
)

// Daemon defaults
const (
	defaultPPR        = 250
	defaultTickHz     = 2_000_000 // encoder tick rate (0.5 µs per tick)
	defaultUpdateHz   = 100       // daemon loop cadence; bounds key timing resolution
	defaultInitialHz  = 7_000_000
	defaultStepHz     = 1
	defaultMinHz      = si5351MinHz
	defaultMaxHz      = 30_000_000
	defaultDebounceMS = 15
	defaultTxDelayMS  = 250
	defaultSaveDelay  = 2000 // ms of quiet before persisting tuning state
	defaultSerialBaud = 115200

	defaultI2CAddress = 0x60
	defaultXtalHz     = 25_000_000

	defaultSocketPath = "/tmp/vfoknob.sock"
	defaultHTTPPort   = 3010
)

// Millisecond timers run on a wrapping 16-bit counter, so a single timed
// window must stay well below one wrap.
const maxTimerMS = 60_000
