package telemetry

import (
	"context"
	"regexp"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/berarma/TinyPedal/pkg/calc"
)

// invalidPathChars are stripped from track/class names before they are
// used as combo file identifiers.
var invalidPathChars = regexp.MustCompile(`[\\/:*?"<>|]`)

// rF2-style bridges report a huge lap limit for time-limited sessions.
const timeLimitedMaxLaps = 999999

// CarPosition is the raw world position of the player vehicle.
type CarPosition struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// PlayerFrame is one telemetry message of the player vehicle pushed by
// the simulator bridge.
type PlayerFrame struct {
	Driving              bool        `json:"driving"`
	TrackName            string      `json:"trackName"`
	CarClass             string      `json:"carClass"`
	LapStartET           float64     `json:"lapStartET"`
	CurrentLapTime       float64     `json:"currentLapTime"`
	LastLapTime          float64     `json:"lastLapTime"`
	ElapsedTime          float64     `json:"currentEventTime"`
	SessionTimeRemaining float64     `json:"sessionTimeRemaining"`
	MaximumLaps          int         `json:"maximumLaps"`
	Fuel                 float64     `json:"fuel"`
	FuelCapacity         float64     `json:"fuelCapacity"`
	Speed                float64     `json:"speed"`
	InGarageStall        bool        `json:"inGarageStall"`
	Pitting              bool        `json:"pitting"`
	LapDistance          float64     `json:"lapDistance"`
	CarPosition          CarPosition `json:"carPosition"`
	LapsCompleted        int         `json:"lapsCompleted"`
	LapProgress          float64     `json:"lapProgress"`
}

// Feed is a websocket-backed Provider. It keeps the latest frame under
// a read lock and reconnects with a fixed backoff when the bridge goes
// away. A frame that never arrived reads as all zeros, per the
// accessor contract.
type Feed struct {
	url    string
	logger *zap.Logger

	mu        sync.RWMutex
	frame     PlayerFrame
	connected bool
}

func NewFeed(url string, logger *zap.Logger) *Feed {
	return &Feed{url: url, logger: logger}
}

// Run dials the bridge and consumes frames until the context is
// cancelled, reconnecting on read or dial errors.
func (f *Feed) Run(ctx context.Context) {
	const retryWait = 5 * time.Second

	dialer := &websocket.Dialer{
		HandshakeTimeout:  10 * time.Second,
		EnableCompression: true,
	}
	for {
		if ctx.Err() != nil {
			return
		}
		conn, _, err := dialer.DialContext(ctx, f.url, nil)
		if err != nil {
			f.logger.Warn("telemetry bridge not reachable", zap.String("url", f.url), zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(retryWait):
			}
			continue
		}
		f.logger.Info("connected to telemetry bridge", zap.String("url", f.url))
		f.setConnected(true)
		f.readFrames(ctx, conn)
		f.setConnected(false)
		conn.Close()
	}
}

func (f *Feed) readFrames(ctx context.Context, conn *websocket.Conn) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		var frame PlayerFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if ctx.Err() == nil {
				f.logger.Warn("telemetry read error", zap.Error(err))
			}
			return
		}
		f.store(frame)
	}
}

// store keeps the frame with every numeric field coerced to finite.
func (f *Feed) store(frame PlayerFrame) {
	frame.LapStartET = calc.ZeroNonFinite(frame.LapStartET)
	frame.CurrentLapTime = calc.ZeroNonFinite(frame.CurrentLapTime)
	frame.LastLapTime = calc.ZeroNonFinite(frame.LastLapTime)
	frame.ElapsedTime = calc.ZeroNonFinite(frame.ElapsedTime)
	frame.SessionTimeRemaining = calc.ZeroNonFinite(frame.SessionTimeRemaining)
	frame.Fuel = calc.ZeroNonFinite(frame.Fuel)
	frame.FuelCapacity = calc.ZeroNonFinite(frame.FuelCapacity)
	frame.Speed = calc.ZeroNonFinite(frame.Speed)
	frame.LapDistance = calc.ZeroNonFinite(frame.LapDistance)
	frame.CarPosition.X = calc.ZeroNonFinite(frame.CarPosition.X)
	frame.CarPosition.Y = calc.ZeroNonFinite(frame.CarPosition.Y)
	frame.CarPosition.Z = calc.ZeroNonFinite(frame.CarPosition.Z)
	frame.LapProgress = calc.ZeroNonFinite(frame.LapProgress)

	f.mu.Lock()
	f.frame = frame
	f.mu.Unlock()
}

func (f *Feed) setConnected(connected bool) {
	f.mu.Lock()
	f.connected = connected
	if !connected {
		f.frame = PlayerFrame{}
	}
	f.mu.Unlock()
}

func (f *Feed) snapshot() PlayerFrame {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.frame
}

func (f *Feed) Driving() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.connected && f.frame.Driving
}

func (f *Feed) ComboID() string {
	frame := f.snapshot()
	return SanitizeComboID(frame.TrackName, frame.CarClass)
}

func (f *Feed) LapStartTime() float64      { return f.snapshot().LapStartET }
func (f *Feed) CurrentLapTime() float64    { return f.snapshot().CurrentLapTime }
func (f *Feed) LastLapTime() float64       { return f.snapshot().LastLapTime }
func (f *Feed) ElapsedTime() float64       { return f.snapshot().ElapsedTime }
func (f *Feed) SessionRemaining() float64  { return f.snapshot().SessionTimeRemaining }
func (f *Feed) Fuel() float64              { return f.snapshot().Fuel }
func (f *Feed) TankCapacity() float64      { return f.snapshot().FuelCapacity }
func (f *Feed) Speed() float64             { return f.snapshot().Speed }
func (f *Feed) InGarage() bool             { return f.snapshot().InGarageStall }
func (f *Feed) InPits() bool               { return f.snapshot().Pitting }
func (f *Feed) LapDistance() float64       { return f.snapshot().LapDistance }
func (f *Feed) CompletedLaps() int         { return f.snapshot().LapsCompleted }
func (f *Feed) LapProgress() float64       { return f.snapshot().LapProgress }
func (f *Feed) MaxLaps() int               { return f.snapshot().MaximumLaps }

func (f *Feed) Position() [3]float64 {
	frame := f.snapshot()
	return [3]float64{frame.CarPosition.X, frame.CarPosition.Y, frame.CarPosition.Z}
}

func (f *Feed) IsLapTypeRace() bool {
	laps := f.snapshot().MaximumLaps
	return laps > 0 && laps < timeLimitedMaxLaps
}

// SanitizeComboID builds the combo identifier for a track and vehicle
// class, stripped of filesystem-invalid characters.
func SanitizeComboID(trackName, carClass string) string {
	return invalidPathChars.ReplaceAllString(trackName+" - "+carClass, "")
}
