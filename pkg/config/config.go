package config

// Configuration values bound to command line flags, environment
// variables and the optional config file (see cmd package).
var (
	// TelemetryURL is the websocket endpoint of the simulator telemetry bridge.
	TelemetryURL string
	// FuelDir is the directory holding per-combo fuel consumption files.
	FuelDir string
	// StatsDB is the sqlite file holding lifetime driver stats.
	StatsDB string
	// WebServerAddr is the listen address of the metrics webserver. Empty disables it.
	WebServerAddr string
	// UpdateIntervalMs is the engine polling interval while driving.
	UpdateIntervalMs int
	// IdleIntervalMs is the engine polling interval while not driving.
	IdleIntervalMs int
	// DisplayIntervalMs is the refresh interval of the terminal widget. Zero disables it.
	DisplayIntervalMs int
	// LowFuelLaps is the remaining-range threshold (in laps) for alerts.
	LowFuelLaps float64
	// TelegramToken enables telegram alerts when set.
	TelegramToken string
	// TelegramChatID is the chat receiving alerts.
	TelegramChatID int64
)
