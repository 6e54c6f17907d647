package main

// Linux input event types and codes (from <linux/input.h>)
const (
	EV_KEY = 0x01

	KEY_ENTER     = 28
	KEY_SPACE     = 57
	KEY_PLAYPAUSE = 164
	BTN_LEFT      = 0x110
)

// Input event value constants
const (
	evValueRelease = 0
	evValuePress   = 1
	evValueRepeat  = 2
)

// Audio backend defaults
const (
	defaultPactlBinary    = "pactl"
	defaultPactlTimeoutMS = 2000

	// volumeUnknown is shown when the volume query fails.
	volumeUnknown = "??"

	// noSlotsLabel is shown when no configured sink is available.
	noSlotsLabel = "--"

	bottomLabelFontSize = 12
)

// Listener defaults
const (
	defaultListenerDebounceMS    = 100
	defaultListenerStopTimeoutMS = 2000
)

// Display / interaction defaults
const (
	defaultTickMS            = 1000
	defaultRefreshEveryTicks = 10
	defaultLongPressMS       = 500
	defaultErrorDurationSec  = 1
)

// Icon canvas geometry
const (
	canvasSize     = 144
	mainIconSize   = 100
	mainIconOffset = 5
	sideIconSize   = 50
	sideIconMargin = 5

	// sideIconAlpha is the opacity of prev/next icons (~70%).
	sideIconAlpha = 179
)

// Icon cache defaults
const (
	iconCachePrefix       = "icon_"
	iconCacheExt          = ".png"
	fingerprintLen        = 12
	defaultRetentionHours = 24 * 7
)
