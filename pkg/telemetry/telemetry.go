// Package telemetry exposes point-in-time readings from the simulator:
// fuel level, tank capacity, lap distance, timing, session and pit
// state. Providers are read-only and polled; every getter returns a
// plain zero on transient invalidity instead of an error, so consumers
// must treat zero as "no data yet" where zero is implausible.
package telemetry

// Provider is the accessor contract consumed by the data modules.
type Provider interface {
	// Driving reports whether the player is in an active session.
	Driving() bool
	// ComboID identifies the current track+vehicle-class combination,
	// sanitized of path-unsafe characters.
	ComboID() string

	// LapStartTime is the session timestamp the current lap started
	// at, -1 while unset.
	LapStartTime() float64
	// CurrentLapTime is the elapsed time of the current lap.
	CurrentLapTime() float64
	// LastLapTime is the duration of the last completed valid lap,
	// <= 0 while unset.
	LastLapTime() float64
	// ElapsedTime is the session time elapsed.
	ElapsedTime() float64
	// SessionRemaining is the session time left.
	SessionRemaining() float64
	// IsLapTypeRace reports a fixed-lap race as opposed to fixed-time.
	IsLapTypeRace() bool

	// Fuel is the current tank content in liters.
	Fuel() float64
	// TankCapacity is the total tank capacity in liters.
	TankCapacity() float64
	// Speed is the vehicle speed in m/s.
	Speed() float64
	// InGarage reports whether the vehicle sits in the garage stall.
	InGarage() bool
	// InPits reports whether the vehicle is in the pit lane.
	InPits() bool

	// LapDistance is the distance into the current lap in meters.
	LapDistance() float64
	// Position is the raw 3-D world position.
	Position() [3]float64
	// CompletedLaps counts finished laps, which is also the zero-based
	// number of the current lap.
	CompletedLaps() int
	// LapProgress is the fractional progress into the current lap, 0..1.
	LapProgress() float64
	// MaxLaps is the race lap limit in lap-type races.
	MaxLaps() int
}
