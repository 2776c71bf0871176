package fuel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/berarma/TinyPedal/pkg/modules"
	"github.com/berarma/TinyPedal/pkg/telemetry"
)

func newTestEngine(t *testing.T) (*Engine, *telemetry.Static) {
	t.Helper()
	api := telemetry.NewStatic("Monza - GT3")
	store := NewStore(t.TempDir(), zap.NewNop())
	return NewEngine(Config{}, api, store, NewMetrics(), nil, modules.NewRegistry(), zap.NewNop()), api
}

// step applies a frame and runs one engine iteration.
func step(eng *Engine, api *telemetry.Static, s *session, frame telemetry.PlayerFrame) {
	frame.Driving = true
	api.Set(frame)
	eng.tick(s)
}

// driveReferenceLap walks the engine through one full recorded lap:
// a first partial lap arming the recorder, 12 recorded samples, the
// finish-line edge staging the curve, and the validation commit.
func driveReferenceLap(t *testing.T, eng *Engine, api *telemetry.Static, s *session) {
	t.Helper()

	// Partial first lap: captures starting fuel, sets the lap start baseline
	step(eng, api, s, telemetry.PlayerFrame{
		LapStartET: 100, CurrentLapTime: 5,
		Fuel: 50, FuelCapacity: 60,
		LapDistance: 3000, CarPosition: telemetry.CarPosition{X: 3000},
		MaximumLaps: 20,
	})
	assert.Equal(t, recorderIdle, s.recorder)

	// First line crossing arms the recorder
	step(eng, api, s, telemetry.PlayerFrame{
		LapStartET: 190, CurrentLapTime: 0.5,
		Fuel: 49.9, FuelCapacity: 60,
		LapDistance: 2, CarPosition: telemetry.CarPosition{X: 2},
		MaximumLaps: 20, LapsCompleted: 1,
	})
	require.Equal(t, recorderArmed, s.recorder)
	assert.InDelta(t, 0.1, s.usedLastRaw, 1e-9)

	// Recorded lap: 12 samples at 50m spacing, 0.2L per step
	for k := 1; k <= 12; k++ {
		step(eng, api, s, telemetry.PlayerFrame{
			LapStartET: 190, CurrentLapTime: 5 * float64(k),
			Fuel: 49.9 - 0.2*float64(k), FuelCapacity: 60,
			LapDistance: 50 * float64(k), CarPosition: telemetry.CarPosition{X: 50 * float64(k)},
			MaximumLaps: 20, LapsCompleted: 1,
		})
		// No committed reference yet: no meaningful delta on this lap
		assert.Equal(t, 0.0, eng.out.Fuel().DeltaConsumption)
	}
	require.Len(t, s.curveCurr, 13)

	// Second line crossing stages the lap (90s duration)
	step(eng, api, s, telemetry.PlayerFrame{
		LapStartET: 280, CurrentLapTime: 0.5,
		Fuel: 47.3, FuelCapacity: 60,
		LapDistance: 2, CarPosition: telemetry.CarPosition{X: 5},
		MaximumLaps: 20, LapsCompleted: 2,
	})
	require.Equal(t, validatorPending, s.validator)
	assert.Len(t, s.curveTemp, 14)

	// The simulator's last-laptime field catches up: commit
	step(eng, api, s, telemetry.PlayerFrame{
		LapStartET: 280, CurrentLapTime: 0.8, LastLapTime: 90,
		Fuel: 47.2, FuelCapacity: 60,
		LapDistance: 20, CarPosition: telemetry.CarPosition{X: 5},
		MaximumLaps: 20, LapsCompleted: 2,
	})
	require.Equal(t, validatorIdle, s.validator)
}

func TestEngineBuildsAndCommitsReferenceLap(t *testing.T) {
	eng, api := newTestEngine(t)
	s := &session{}
	eng.resetSession(s)
	assert.Equal(t, DefaultCurve(), s.curveLast)

	driveReferenceLap(t, eng, api, s)

	require.Len(t, s.curveLast, 14)
	assert.Equal(t, 0.0, s.curveLast[0].Distance)
	assert.True(t, s.curveLast.Sorted())
	// Terminal sample: last recorded position + 10, lap usage, lap time
	last := s.curveLast[len(s.curveLast)-1]
	assert.Equal(t, 610.0, last.Distance)
	assert.InDelta(t, 2.6, last.Value, 1e-9)
	assert.Equal(t, 90.0, last.LapTime)

	assert.Equal(t, 90.0, s.laptimeLast)
	assert.InDelta(t, 2.6, s.usedLast, 1e-9)
	assert.True(t, s.delayedSave)
}

func TestEngineLapProjections(t *testing.T) {
	eng, api := newTestEngine(t)
	s := &session{}
	eng.resetSession(s)
	driveReferenceLap(t, eng, api, s)

	// 2 seconds past the line: lap-type projections and history entry
	step(eng, api, s, telemetry.PlayerFrame{
		LapStartET: 280, CurrentLapTime: 2.5, LastLapTime: 90,
		Fuel: 47.2, FuelCapacity: 60,
		LapDistance: 20, CarPosition: telemetry.CarPosition{X: 5},
		MaximumLaps: 20, LapsCompleted: 2, LapProgress: 0.02,
	})

	info := eng.out.Fuel()
	assert.Equal(t, 60.0, info.TankCapacity)
	assert.Equal(t, 50.0, info.AmountStart)
	assert.Equal(t, 47.2, info.AmountCurrent)
	// lapsLeft = (20-2) - 0.02 = 17.98; needed = 17.98*2.6 - 47.2
	assert.InDelta(t, 17.98*2.6-47.2, info.AmountNeeded, 1e-9)
	assert.InDelta(t, 47.2/2.6, info.EstimatedLaps, 1e-9)
	assert.InDelta(t, (47.2/2.6)*90/60, info.EstimatedMinutes, 1e-9)
	assert.InDelta(t, 60-47.3+2.6, info.EstimatedEmptyCapacity, 1e-9)
	assert.InDelta(t, 2.6, info.LastLapConsumption, 1e-9)

	require.Len(t, info.ConsumptionHistory, 1)
	entry := info.ConsumptionHistory[0]
	assert.Equal(t, 1, entry.Lap)
	assert.Equal(t, 90.0, entry.LapTime)
	assert.InDelta(t, 2.6, entry.FuelUsed, 1e-9)
	assert.Equal(t, 47.2, entry.FuelRemaining)
	assert.True(t, entry.Valid)

	// Same lap again: no duplicate history entry
	step(eng, api, s, telemetry.PlayerFrame{
		LapStartET: 280, CurrentLapTime: 2.6, LastLapTime: 90,
		Fuel: 47.2, FuelCapacity: 60,
		LapDistance: 20, CarPosition: telemetry.CarPosition{X: 5},
		MaximumLaps: 20, LapsCompleted: 2, LapProgress: 0.02,
	})
	assert.Len(t, eng.out.Fuel().ConsumptionHistory, 1)
}

func TestEngineLiveDelta(t *testing.T) {
	eng, api := newTestEngine(t)
	s := &session{}
	eng.resetSession(s)
	driveReferenceLap(t, eng, api, s)

	// The lap-distance field is frozen; raw movement of 55m from the
	// last GPS fix advances the estimated position to 75m. The
	// reference lap interpolates to 0.3L there, usage so far is 0.45L.
	step(eng, api, s, telemetry.PlayerFrame{
		LapStartET: 280, CurrentLapTime: 10, LastLapTime: 90,
		Fuel: 46.85, FuelCapacity: 60,
		LapDistance: 20, CarPosition: telemetry.CarPosition{X: 38, Y: 44},
		MaximumLaps: 20, LapsCompleted: 2, LapProgress: 0.03,
	})

	assert.InDelta(t, 75.0, s.posEstimate, 1e-9)
	info := eng.out.Fuel()
	assert.InDelta(t, 0.15, info.DeltaConsumption, 1e-9)
	assert.InDelta(t, 2.75, info.EstimatedConsumption, 1e-9)
}

func TestEngineRefuelResetsStintBookkeeping(t *testing.T) {
	eng, api := newTestEngine(t)
	s := &session{}
	eng.resetSession(s)
	driveReferenceLap(t, eng, api, s)

	usedBefore := s.usedCurr
	step(eng, api, s, telemetry.PlayerFrame{
		LapStartET: 280, CurrentLapTime: 12, LastLapTime: 90,
		Fuel: 60, FuelCapacity: 60,
		LapDistance: 20, CarPosition: telemetry.CarPosition{X: 5},
		MaximumLaps: 20, LapsCompleted: 2,
	})

	info := eng.out.Fuel()
	assert.Equal(t, 60.0, info.AmountStart)
	assert.Equal(t, 60.0, info.AmountCurrent)
	// A refuel never counts as consumption
	assert.Equal(t, usedBefore, s.usedCurr)
}

func TestEnginePitLapNotStaged(t *testing.T) {
	eng, api := newTestEngine(t)
	s := &session{}
	eng.resetSession(s)

	step(eng, api, s, telemetry.PlayerFrame{
		LapStartET: 100, CurrentLapTime: 5, Fuel: 50, FuelCapacity: 60,
		LapDistance: 500, CarPosition: telemetry.CarPosition{X: 500},
	})
	step(eng, api, s, telemetry.PlayerFrame{
		LapStartET: 190, CurrentLapTime: 0.5, Fuel: 49.9, FuelCapacity: 60,
		LapDistance: 2, CarPosition: telemetry.CarPosition{X: 2}, LapsCompleted: 1,
	})
	for k := 1; k <= 5; k++ {
		frame := telemetry.PlayerFrame{
			LapStartET: 190, CurrentLapTime: 5 * float64(k),
			Fuel: 49.9 - 0.1*float64(k), FuelCapacity: 60,
			LapDistance: 100 * float64(k), CarPosition: telemetry.CarPosition{X: 100 * float64(k)},
			LapsCompleted: 1,
		}
		frame.Pitting = k == 3 // single-tick pit blip mid-lap
		step(eng, api, s, frame)
	}
	// Line crossing after a pit in/out lap: nothing staged
	step(eng, api, s, telemetry.PlayerFrame{
		LapStartET: 280, CurrentLapTime: 0.5, Fuel: 49.3, FuelCapacity: 60,
		LapDistance: 2, CarPosition: telemetry.CarPosition{X: 2}, LapsCompleted: 2,
	})
	assert.Equal(t, validatorIdle, s.validator)
	assert.False(t, s.delayedSave)
	// The pit flag resets for the new lap
	assert.False(t, s.pitLap)
}

func TestEngineValidationWindowExpires(t *testing.T) {
	eng, api := newTestEngine(t)
	s := &session{}
	eng.resetSession(s)
	reference := s.curveLast

	step(eng, api, s, telemetry.PlayerFrame{
		LapStartET: 100, CurrentLapTime: 5, Fuel: 50, FuelCapacity: 60,
		LapDistance: 500, CarPosition: telemetry.CarPosition{X: 500},
	})
	step(eng, api, s, telemetry.PlayerFrame{
		LapStartET: 190, CurrentLapTime: 0.5, Fuel: 49.9, FuelCapacity: 60,
		LapDistance: 2, CarPosition: telemetry.CarPosition{X: 2}, LapsCompleted: 1,
	})
	for k := 1; k <= 5; k++ {
		step(eng, api, s, telemetry.PlayerFrame{
			LapStartET: 190, CurrentLapTime: 5 * float64(k),
			Fuel: 49.9 - 0.1*float64(k), FuelCapacity: 60,
			LapDistance: 100 * float64(k), CarPosition: telemetry.CarPosition{X: 100 * float64(k)},
			LapsCompleted: 1,
		})
	}
	step(eng, api, s, telemetry.PlayerFrame{
		LapStartET: 280, CurrentLapTime: 0.5, Fuel: 49.3, FuelCapacity: 60,
		LapDistance: 2, CarPosition: telemetry.CarPosition{X: 2}, LapsCompleted: 2,
	})
	require.Equal(t, validatorPending, s.validator)

	// The last-laptime field never turns positive: abandon past 3s
	step(eng, api, s, telemetry.PlayerFrame{
		LapStartET: 280, CurrentLapTime: 4, Fuel: 49.3, FuelCapacity: 60,
		LapDistance: 40, CarPosition: telemetry.CarPosition{X: 40}, LapsCompleted: 2,
	})
	assert.Equal(t, validatorIdle, s.validator)
	assert.Equal(t, reference, s.curveLast)
	assert.False(t, s.delayedSave)
}

func TestEnginePositionSanityGuard(t *testing.T) {
	eng, api := newTestEngine(t)
	s := &session{}
	eng.resetSession(s)

	step(eng, api, s, telemetry.PlayerFrame{
		LapStartET: 100, CurrentLapTime: 5, Fuel: 50, FuelCapacity: 60,
		LapDistance: 500, CarPosition: telemetry.CarPosition{X: 500},
	})
	// Early in a new lap the stale 400m reading resets position tracking
	step(eng, api, s, telemetry.PlayerFrame{
		LapStartET: 190, CurrentLapTime: 0.5, Fuel: 50, FuelCapacity: 60,
		LapDistance: 400, CarPosition: telemetry.CarPosition{X: 400}, LapsCompleted: 1,
	})
	assert.Equal(t, 0.0, s.posLast)
}

func TestEngineIdleSavesCommittedCurve(t *testing.T) {
	eng, api := newTestEngine(t)
	s := &session{}
	eng.resetSession(s)
	driveReferenceLap(t, eng, api, s)
	require.True(t, s.delayedSave)

	eng.idle(s)

	assert.False(t, s.delayedSave)
	loaded, used, laptime, result := eng.store.Load("Monza - GT3")
	assert.Equal(t, Loaded, result)
	assert.Equal(t, s.curveLast, loaded)
	assert.InDelta(t, 2.6, used, 1e-9)
	assert.Equal(t, 90.0, laptime)
}

func TestEngineHistoryIncludesUncommittedLaps(t *testing.T) {
	eng, api := newTestEngine(t)
	s := &session{}
	eng.resetSession(s)
	driveReferenceLap(t, eng, api, s)

	step(eng, api, s, telemetry.PlayerFrame{
		LapStartET: 280, CurrentLapTime: 2.5, LastLapTime: 90,
		Fuel: 47.2, FuelCapacity: 60,
		LapDistance: 20, CarPosition: telemetry.CarPosition{X: 5},
		MaximumLaps: 20, LapsCompleted: 2,
	})
	require.Len(t, eng.out.Fuel().ConsumptionHistory, 1)

	// Slow lap through the pits: commits no reference curve
	step(eng, api, s, telemetry.PlayerFrame{
		LapStartET: 280, CurrentLapTime: 60, LastLapTime: 90,
		Fuel: 46.5, FuelCapacity: 60, Pitting: true,
		LapDistance: 300, CarPosition: telemetry.CarPosition{X: 300},
		MaximumLaps: 20, LapsCompleted: 2,
	})
	step(eng, api, s, telemetry.PlayerFrame{
		LapStartET: 400, CurrentLapTime: 0.5, LastLapTime: 0,
		Fuel: 46.4, FuelCapacity: 60,
		LapDistance: 2, CarPosition: telemetry.CarPosition{X: 2},
		MaximumLaps: 20, LapsCompleted: 3,
	})
	assert.Equal(t, validatorIdle, s.validator)

	// 2 seconds past the line the pit lap still lands in the history,
	// flagged invalid
	step(eng, api, s, telemetry.PlayerFrame{
		LapStartET: 400, CurrentLapTime: 2.5, LastLapTime: 0,
		Fuel: 46.4, FuelCapacity: 60,
		LapDistance: 20, CarPosition: telemetry.CarPosition{X: 20},
		MaximumLaps: 20, LapsCompleted: 3,
	})

	history := eng.out.Fuel().ConsumptionHistory
	require.Len(t, history, 2)
	entry := history[0]
	assert.Equal(t, 2, entry.Lap)
	assert.Equal(t, 120.0, entry.LapTime)
	assert.InDelta(t, 0.9, entry.FuelUsed, 1e-9)
	assert.False(t, entry.Valid)
	assert.Equal(t, 90.0, history[1].LapTime)
	// The reference lap is untouched by the pit lap
	assert.Equal(t, 90.0, s.laptimeLast)
}

func TestEngineTimeTypeProjections(t *testing.T) {
	eng, api := newTestEngine(t)
	s := &session{}
	eng.resetSession(s)
	s.laptimeLast = 90
	s.usedLast = 2.6

	// 1200s left, 30s into the lap: ceil((1200+30)/90) = 14 full laps
	step(eng, api, s, telemetry.PlayerFrame{
		LapStartET: 100, CurrentLapTime: 30, SessionTimeRemaining: 1200,
		Fuel: 47.2, FuelCapacity: 60,
		LapDistance: 20, CarPosition: telemetry.CarPosition{X: 20},
		LapsCompleted: 2, LapProgress: 0.3,
	})
	assert.InDelta(t, 13.7, s.lapsLeft, 1e-9)
	assert.InDelta(t, 13.7*2.6-47.2, eng.out.Fuel().AmountNeeded, 1e-9)

	// Right after a line crossing the lap counter may lag: the
	// remaining-laps value freezes instead of spiking
	step(eng, api, s, telemetry.PlayerFrame{
		LapStartET: 100, CurrentLapTime: 0.1, SessionTimeRemaining: 1100,
		Fuel: 47.2, FuelCapacity: 60,
		LapDistance: 20, CarPosition: telemetry.CarPosition{X: 20},
		LapsCompleted: 2, LapProgress: 0.9,
	})
	assert.InDelta(t, 13.7, s.lapsLeft, 1e-9)

	// Once the clock is running again it recomputes
	step(eng, api, s, telemetry.PlayerFrame{
		LapStartET: 100, CurrentLapTime: 0.3, SessionTimeRemaining: 1100,
		Fuel: 47.2, FuelCapacity: 60,
		LapDistance: 20, CarPosition: telemetry.CarPosition{X: 20},
		LapsCompleted: 2, LapProgress: 0.9,
	})
	assert.InDelta(t, 12.1, s.lapsLeft, 1e-9)
}

func TestEngineLifecycleIdempotent(t *testing.T) {
	api := telemetry.NewStatic("Monza - GT3")
	registry := modules.NewRegistry()
	store := NewStore(t.TempDir(), zap.NewNop())
	eng := NewEngine(Config{}, api, store, NewMetrics(), nil, registry, zap.NewNop())

	eng.Start()
	eng.Start()
	assert.Equal(t, []string{moduleName}, registry.Active())

	eng.Stop()
	eng.Stop()
	assert.Empty(t, registry.Active())

	// Restart after stop works
	eng.Start()
	assert.Equal(t, []string{moduleName}, registry.Active())
	eng.Stop()
}
