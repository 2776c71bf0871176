package stats

import (
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/berarma/TinyPedal/pkg/calc"
	"github.com/berarma/TinyPedal/pkg/modules"
	"github.com/berarma/TinyPedal/pkg/telemetry"
)

const moduleName = "module_stats"

const (
	defaultUpdateInterval = 100 * time.Millisecond
	defaultIdleInterval   = 500 * time.Millisecond

	// movement faster than this is a teleport (session reset, car
	// repositioned) and never counts as driven distance
	maxSpeedMeterPerSec = 1500

	// odometer only advances while actually moving
	minMovingSpeed = 1.0
)

type Config struct {
	UpdateInterval time.Duration
	IdleInterval   time.Duration
}

func (c Config) withDefaults() Config {
	if c.UpdateInterval <= 0 {
		c.UpdateInterval = defaultUpdateInterval
	}
	if c.IdleInterval <= 0 {
		c.IdleInterval = defaultIdleInterval
	}
	return c
}

// tracker is the live accumulation state, reset on session entry.
type tracker struct {
	stats  DriverStats
	pitLap bool

	lastLapStime float64
	lastLapEtime float64
	fuelLast     float64
	gpsLast      [3]float64
}

// Module polls telemetry and accumulates driver statistics, persisting
// them through the Manager when the session ends.
type Module struct {
	cfg      Config
	api      telemetry.Provider
	manager  *Manager
	registry *modules.Registry
	logger   *zap.Logger

	mu       sync.Mutex
	current  DriverStats
	running  bool
	stopChan chan struct{}
	doneChan chan struct{}
}

func NewModule(
	cfg Config,
	api telemetry.Provider,
	manager *Manager,
	registry *modules.Registry,
	logger *zap.Logger,
) *Module {
	return &Module{
		cfg:      cfg.withDefaults(),
		api:      api,
		manager:  manager,
		registry: registry,
		logger:   logger,
	}
}

func (m *Module) Name() string {
	return moduleName
}

// Current returns the latest accumulated record.
func (m *Module) Current() DriverStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Start spawns the polling loop. Calling it while running has no effect.
func (m *Module) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return
	}
	m.running = true
	m.stopChan = make(chan struct{})
	m.doneChan = make(chan struct{})
	go m.run(m.stopChan, m.doneChan)
	m.registry.Register(m)
	m.logger.Info("ACTIVE: module stats")
}

// Stop signals cancellation and waits for the loop to exit. Calling it
// again, or before Start, has no effect.
func (m *Module) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	close(m.stopChan)
	done := m.doneChan
	m.mu.Unlock()
	<-done
}

func (m *Module) run(stopChan <-chan struct{}, doneChan chan<- struct{}) {
	defer func() {
		m.registry.Deregister(m)
		m.logger.Info("CLOSED: module stats")
		close(doneChan)
	}()

	s := &tracker{}
	reset := false
	interval := m.cfg.UpdateInterval

	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-stopChan:
			return
		case <-timer.C:
		}

		if m.api.Driving() {
			if !reset {
				reset = true
				interval = m.cfg.UpdateInterval
				m.resetTracker(s)
			}
			m.tick(s)
		} else if reset {
			reset = false
			interval = m.cfg.IdleInterval
			m.idle(s)
		}

		timer.Reset(interval)
	}
}

// resetTracker reloads the persisted record and rebases all edge
// detectors on sentinel values.
func (m *Module) resetTracker(s *tracker) {
	combo := m.api.ComboID()
	stats, err := m.manager.Load(combo)
	if err != nil {
		m.logger.Warn("driver stats not loaded", zap.String("combo", combo), zap.Error(err))
	}
	*s = tracker{
		stats:        stats,
		lastLapStime: math.Inf(1),
		lastLapEtime: math.Inf(1),
		gpsLast:      [3]float64{-99999, -99999, -99999},
	}
	m.publish(s)
}

// idle persists the accumulated record once the session ends.
func (m *Module) idle(s *tracker) {
	if err := m.manager.Save(s.stats); err != nil {
		m.logger.Warn("driver stats not saved", zap.String("combo", s.stats.Combo), zap.Error(err))
	}
}

func (m *Module) tick(s *tracker) {
	lapStime := m.api.LapStartTime()
	lapEtime := m.api.ElapsedTime()
	laptimeValid := m.api.LastLapTime()
	s.pitLap = s.pitLap || m.api.InPits()

	// Driven distance, capped to reject teleports
	gpsCurr := m.api.Position()
	if gpsCurr != s.gpsLast {
		moved := calc.Distance(s.gpsLast, gpsCurr)
		if moved < maxSpeedMeterPerSec*m.cfg.UpdateInterval.Seconds() {
			s.stats.Meters += moved
		}
		s.gpsLast = gpsCurr
	}

	// Laps complete, counted 2 seconds into the next lap so the
	// simulator's last-laptime field has settled
	if s.lastLapStime > lapStime {
		s.lastLapStime = lapStime
	} else if s.lastLapStime < lapStime && lapEtime-lapStime > 2 {
		if laptimeValid > 0 {
			s.stats.ValidLaps++
			if s.stats.PersonalBest == 0 || laptimeValid < s.stats.PersonalBest {
				s.stats.PersonalBest = laptimeValid
			}
		} else if !s.pitLap {
			s.stats.InvalidLaps++
		}
		s.pitLap = false
		s.lastLapStime = lapStime
	}

	// Seconds spent on track while moving
	if s.lastLapEtime > lapEtime {
		s.lastLapEtime = lapEtime
	} else if s.lastLapEtime < lapEtime {
		if m.api.Speed() > minMovingSpeed {
			s.stats.Seconds += lapEtime - s.lastLapEtime
		}
		s.lastLapEtime = lapEtime
	}

	// Fuel consumed, refuels excluded
	fuelCurr := m.api.Fuel()
	if s.fuelLast < fuelCurr {
		s.fuelLast = fuelCurr
	} else if s.fuelLast > fuelCurr {
		s.stats.Liters += s.fuelLast - fuelCurr
		s.fuelLast = fuelCurr
	}

	m.publish(s)
}

func (m *Module) publish(s *tracker) {
	m.mu.Lock()
	m.current = s.stats
	m.mu.Unlock()
}
