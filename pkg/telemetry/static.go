package telemetry

import "sync"

// Static is a Provider backed by a settable frame, used by tests and
// offline playback.
type Static struct {
	mu    sync.RWMutex
	frame PlayerFrame
	combo string
}

func NewStatic(comboID string) *Static {
	return &Static{combo: comboID}
}

// Set replaces the current frame.
func (s *Static) Set(frame PlayerFrame) {
	s.mu.Lock()
	s.frame = frame
	s.mu.Unlock()
}

// Update mutates the current frame in place.
func (s *Static) Update(mutate func(*PlayerFrame)) {
	s.mu.Lock()
	mutate(&s.frame)
	s.mu.Unlock()
}

func (s *Static) get() PlayerFrame {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frame
}

func (s *Static) Driving() bool { return s.get().Driving }

func (s *Static) ComboID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.combo
}

func (s *Static) LapStartTime() float64     { return s.get().LapStartET }
func (s *Static) CurrentLapTime() float64   { return s.get().CurrentLapTime }
func (s *Static) LastLapTime() float64      { return s.get().LastLapTime }
func (s *Static) ElapsedTime() float64      { return s.get().ElapsedTime }
func (s *Static) SessionRemaining() float64 { return s.get().SessionTimeRemaining }
func (s *Static) Fuel() float64             { return s.get().Fuel }
func (s *Static) TankCapacity() float64     { return s.get().FuelCapacity }
func (s *Static) Speed() float64            { return s.get().Speed }
func (s *Static) InGarage() bool            { return s.get().InGarageStall }
func (s *Static) InPits() bool              { return s.get().Pitting }
func (s *Static) LapDistance() float64      { return s.get().LapDistance }
func (s *Static) CompletedLaps() int        { return s.get().LapsCompleted }
func (s *Static) LapProgress() float64      { return s.get().LapProgress }
func (s *Static) MaxLaps() int              { return s.get().MaximumLaps }

func (s *Static) Position() [3]float64 {
	frame := s.get()
	return [3]float64{frame.CarPosition.X, frame.CarPosition.Y, frame.CarPosition.Z}
}

func (s *Static) IsLapTypeRace() bool {
	laps := s.get().MaximumLaps
	return laps > 0 && laps < timeLimitedMaxLaps
}
