package main

import "time"

// Linux input event types and values (from <linux/input.h>)
const (
	EV_KEY = 0x01

	evValueRelease = 0
	evValuePress   = 1
	evValueRepeat  = 2
)

// Remote line protocol
const (
	remoteCodePrefix = "0x"
	repeatCode       = "0xFFFFFFFF"

	// Unterminated input longer than this is treated as line noise.
	maxLineLength = 256
)

// Listener timing
const (
	defaultReadTimeoutMS = 10

	// Sentinel repeats arriving faster than this are dropped.
	repeatTimeout = 25 * time.Millisecond

	// Housekeeping runs only when no code was dispatched for this long...
	actionInterval = 1000 * time.Millisecond
	// ...and the last refresh is at least this old.
	updateInterval = 5000 * time.Millisecond

	reconnectBackoff = 200 * time.Millisecond

	// injectQueueSize bounds codes queued over IPC while the listener is busy.
	injectQueueSize = 16
)

// Dispatch tuning. Step tables are indexed by the repeating flag: [fresh, repeating].
var (
	mouseMoveSteps  = [2]int{30, 70}
	scrollSteps     = [2]int{2, 5}
	volumeUpSteps   = [2]int{2, 5}
	volumeDownSteps = [2]int{1, 3}
)

const shortcutHold = 100 * time.Millisecond

// Receiver defaults
const (
	defaultComPort  = 8
	defaultBaudRate = 9600
)

// Media tool defaults
const (
	defaultNircmdPath          = "bin/nircmd/nircmd.exe"
	defaultSoundVolumeViewPath = "bin/svv/SoundVolumeView.exe"
	defaultSvclPath            = "bin/svcl/svcl.exe"

	defaultDeviceFilterPattern = "SteelSeries Sonar"

	// nircmd setsysvolume takes 0..65535.
	nircmdVolumeMax = 65535
)

// Logging defaults
const defaultLogKeep = 10
