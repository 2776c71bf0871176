package fuel

import (
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/berarma/TinyPedal/pkg/calc"
	"github.com/berarma/TinyPedal/pkg/modules"
	"github.com/berarma/TinyPedal/pkg/pubsub"
	"github.com/berarma/TinyPedal/pkg/telemetry"
)

const moduleName = "module_fuel"

// Guard thresholds tuned against the simulator's telemetry quirks.
// Kept verbatim; override through Config only for experiments.
const (
	// DefaultValidationMinSeconds opens the staged-lap confirmation
	// window after crossing the line.
	DefaultValidationMinSeconds = 0.2
	// DefaultValidationMaxSeconds abandons an unconfirmed staged lap.
	DefaultValidationMaxSeconds = 3.0
	// DefaultPositionResetMeters flags a stale distance reading within
	// the first second of a new lap.
	DefaultPositionResetMeters = 300.0
	// DefaultDeltaGateSeconds suppresses the live delta right after
	// crossing the line.
	DefaultDeltaGateSeconds = 0.3

	defaultUpdateInterval = 10 * time.Millisecond
	defaultIdleInterval   = 500 * time.Millisecond
)

// Config tunes the engine polling and guard thresholds. Zero values
// fall back to the defaults above.
type Config struct {
	UpdateInterval       time.Duration
	IdleInterval         time.Duration
	ValidationMinSeconds float64
	ValidationMaxSeconds float64
	PositionResetMeters  float64
	DeltaGateSeconds     float64
}

func (c Config) withDefaults() Config {
	if c.UpdateInterval <= 0 {
		c.UpdateInterval = defaultUpdateInterval
	}
	if c.IdleInterval <= 0 {
		c.IdleInterval = defaultIdleInterval
	}
	if c.ValidationMinSeconds == 0 {
		c.ValidationMinSeconds = DefaultValidationMinSeconds
	}
	if c.ValidationMaxSeconds == 0 {
		c.ValidationMaxSeconds = DefaultValidationMaxSeconds
	}
	if c.PositionResetMeters == 0 {
		c.PositionResetMeters = DefaultPositionResetMeters
	}
	if c.DeltaGateSeconds == 0 {
		c.DeltaGateSeconds = DefaultDeltaGateSeconds
	}
	return c
}

// recorderState arms per-tick sample recording for the in-progress lap.
type recorderState int

const (
	recorderIdle recorderState = iota
	recorderArmed
)

// validatorState tracks a staged lap awaiting confirmation from the
// simulator's last-laptime field.
type validatorState int

const (
	validatorIdle validatorState = iota
	validatorPending
)

// session is the live lap state, reset every time the player enters an
// active session.
type session struct {
	comboID     string
	delayedSave bool

	recorder  recorderState
	validator validatorState
	pitLap    bool

	curveLast Curve // committed reference lap
	curveCurr Curve // in-progress accumulation
	curveTemp Curve // staged, pending validation

	deltaFuel float64

	amountStart float64
	amountLast  float64
	amountNeed  float64
	amountLeft  float64

	usedCurr    float64
	usedLast    float64
	usedLastRaw float64
	usedEst     float64
	usedEstLess float64

	// laptimeLast is the validated reference lap duration;
	// laptimeMeasured is the duration of the most recently completed
	// lap, pit and invalidated laps included.
	laptimeLast     float64
	laptimeMeasured float64

	estRunLaps   float64
	estRunMins   float64
	estEmpty     float64
	estPitsLate  float64
	estPitsEarly float64

	lastLapStime float64
	lapsLeft     float64
	posLast      float64
	posEstimate  float64
	gpsLast      [3]float64
}

// Engine is the fuel estimation module. One instance runs per process;
// it owns the curve store exclusively during its active session and is
// the single writer of the shared metrics output.
type Engine struct {
	cfg      Config
	api      telemetry.Provider
	store    *Store
	out      *Metrics
	ps       *pubsub.PubSub[Info]
	registry *modules.Registry
	logger   *zap.Logger

	// consumption history survives session resets
	history []LapConsumption

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	doneChan chan struct{}
}

func NewEngine(
	cfg Config,
	api telemetry.Provider,
	store *Store,
	out *Metrics,
	ps *pubsub.PubSub[Info],
	registry *modules.Registry,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		cfg:      cfg.withDefaults(),
		api:      api,
		store:    store,
		out:      out,
		ps:       ps,
		registry: registry,
		logger:   logger,
	}
}

func (e *Engine) Name() string {
	return moduleName
}

// Start spawns the polling loop. Calling it while running has no effect.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return
	}
	e.running = true
	e.stopChan = make(chan struct{})
	e.doneChan = make(chan struct{})
	go e.run(e.stopChan, e.doneChan)
	e.registry.Register(e)
	e.logger.Info("ACTIVE: module fuel")
}

// Stop signals cancellation and waits for the loop to exit. Calling it
// again, or before Start, has no effect.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	close(e.stopChan)
	done := e.doneChan
	e.mu.Unlock()
	<-done
}

func (e *Engine) run(stopChan <-chan struct{}, doneChan chan<- struct{}) {
	defer func() {
		e.registry.Deregister(e)
		e.logger.Info("CLOSED: module fuel")
		close(doneChan)
	}()

	s := &session{lastLapStime: -1}
	reset := false
	interval := e.cfg.UpdateInterval

	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-stopChan:
			return
		case <-timer.C:
		}

		if e.api.Driving() {
			if !reset {
				reset = true
				interval = e.cfg.UpdateInterval
				e.resetSession(s)
			}
			e.tick(s)
		} else if reset {
			reset = false
			interval = e.cfg.IdleInterval
			e.idle(s)
		}

		timer.Reset(interval)
	}
}

// idle flushes a curve committed during the finished session.
func (e *Engine) idle(s *session) {
	if !s.delayedSave {
		return
	}
	s.delayedSave = false
	if err := e.store.Save(s.comboID, s.curveLast); err != nil {
		e.logger.Warn("fuel data not saved", zap.String("combo", s.comboID), zap.Error(err))
	}
}

// resetSession reloads the combo curve and zeroes all live lap state.
func (e *Engine) resetSession(s *session) {
	comboID := e.api.ComboID()
	curve, usedLast, laptimeLast, result := e.store.Load(comboID)
	e.logger.Info("fuel data load",
		zap.String("combo", comboID),
		zap.String("result", result.String()),
		zap.Int("samples", len(curve)))

	*s = session{
		comboID:      comboID,
		curveLast:    curve,
		curveCurr:    NewCurve(),
		curveTemp:    NewCurve(),
		usedLast:     usedLast,
		usedLastRaw:  usedLast,
		laptimeLast:  laptimeLast,
		lastLapStime: -1,
	}
}

// tick runs one active engine iteration.
func (e *Engine) tick(s *session) {
	// Read telemetry
	lapStime := e.api.LapStartTime()
	laptimeCurr := math.Max(e.api.CurrentLapTime(), 0)
	laptimeValid := e.api.LastLapTime()
	timeLeft := e.api.SessionRemaining()
	amountCurr := e.api.Fuel()
	capacity := math.Max(e.api.TankCapacity(), 1)
	inGarage := e.api.InGarage()
	posCurr := e.api.LapDistance()
	gpsCurr := e.api.Position()
	lapNumber := e.api.CompletedLaps()
	lapInto := e.api.LapProgress()
	lapsMax := e.api.MaxLaps()
	s.pitLap = s.pitLap || e.api.InPits()

	// Realtime fuel consumption: an increase is a refuel event, a
	// decrease accumulates into the current lap usage.
	if s.amountLast < amountCurr {
		s.amountLast = amountCurr
		s.amountStart = amountCurr
	} else if s.amountLast > amountCurr {
		s.usedCurr += s.amountLast - amountCurr
		s.amountLast = amountCurr
	}

	// Lap start & finish detection
	if lapStime > s.lastLapStime && s.lastLapStime != -1 {
		s.laptimeMeasured = lapStime - s.lastLapStime
		if len(s.curveCurr) > 1 && !s.pitLap {
			s.curveCurr = append(s.curveCurr, calc.Sample{
				Distance: calc.Round6(s.posLast + 10),
				Value:    calc.Round6(s.usedCurr),
				LapTime:  calc.Round6(s.laptimeMeasured),
			})
			s.curveTemp = s.curveCurr
			s.validator = validatorPending
		}
		s.curveCurr = NewCurve()
		s.posLast = posCurr
		s.usedLastRaw = s.usedCurr
		s.usedCurr = 0
		if laptimeCurr < 1 {
			s.recorder = recorderArmed
		} else {
			s.recorder = recorderIdle
		}
		s.pitLap = false
	}
	s.lastLapStime = lapStime

	// Distance sanity guard within the first second of a new lap:
	// reset stale readings larger than the start-line surroundings.
	if laptimeCurr > 0 && laptimeCurr < 1 && posCurr > e.cfg.PositionResetMeters {
		s.posLast = 0
		posCurr = 0
	}

	// Record sample when position moved forward
	if posCurr >= 0 && posCurr != s.posLast {
		if s.recorder == recorderArmed && posCurr > s.posLast {
			s.curveCurr = append(s.curveCurr, calc.Sample{
				Distance: calc.Round6(posCurr),
				Value:    calc.Round6(s.usedCurr),
			})
		}
		s.posEstimate = posCurr
		s.posLast = posCurr
	}

	// Confirm or abandon the staged lap; the simulator's last-laptime
	// field may lag the lap-start edge by a few ticks.
	if s.validator == validatorPending {
		if laptimeCurr > e.cfg.ValidationMinSeconds && laptimeCurr <= e.cfg.ValidationMaxSeconds {
			if laptimeValid > 0 {
				s.usedLast = s.usedLastRaw
				s.laptimeLast = laptimeValid
				s.curveLast = s.curveTemp
				s.curveTemp = NewCurve()
				s.validator = validatorIdle
				s.delayedSave = true
			}
		} else if laptimeCurr > e.cfg.ValidationMaxSeconds {
			s.validator = validatorIdle
		}
	}

	// Advance the estimated position from raw movement, robust to
	// resets of the lap-distance field, and compute the live delta.
	if gpsCurr != s.gpsLast {
		s.posEstimate += calc.Distance(s.gpsLast, gpsCurr)
		s.gpsLast = gpsCurr
		s.deltaFuel = calc.DeltaTelemetry(
			s.posEstimate,
			s.usedCurr,
			s.curveLast,
			laptimeCurr > e.cfg.DeltaGateSeconds && !inGarage,
			0,
		)
	}

	// Exclude first lap & pit in/out lap from the delta estimate
	s.usedEst = calc.EndLapConsumption(s.usedLast, s.deltaFuel, !s.pitLap && lapNumber > 0)

	if e.api.IsLapTypeRace() {
		fullLapsLeft := calc.LapTypeFullLapsRemain(lapsMax, lapNumber)
		s.lapsLeft = calc.LapTypeLapsRemain(fullLapsLeft, lapInto)
		s.amountNeed = calc.TotalFuelNeeded(s.lapsLeft, s.usedEst, amountCurr)
	} else if s.laptimeLast > 0 {
		fullLapsLeft := calc.TimeTypeFullLapsRemain(laptimeCurr, s.laptimeLast, timeLeft)
		s.lapsLeft = calc.TimeTypeLapsRemain(fullLapsLeft, lapInto, s.lapsLeft,
			laptimeCurr < e.cfg.ValidationMinSeconds)
		s.amountNeed = calc.TotalFuelNeeded(s.lapsLeft, s.usedEst, amountCurr)
	}

	s.amountLeft = calc.EndStintFuel(amountCurr, s.usedCurr, s.usedEst)
	s.estRunLaps = calc.EndStintLaps(amountCurr, s.usedEst)
	s.estRunMins = calc.EndStintMinutes(s.estRunLaps, s.laptimeLast)
	s.estEmpty = calc.EndLapEmptyCapacity(capacity, amountCurr+s.usedCurr, s.usedLast+s.deltaFuel)
	s.estPitsLate = calc.EndStintPitCounts(s.amountNeed, capacity-s.amountLeft)
	s.estPitsEarly = calc.EndLapPitCounts(s.amountNeed, s.estEmpty, capacity-s.amountLeft)
	s.usedEstLess = calc.OneLessPitStopConsumption(s.estPitsLate, capacity, amountCurr, s.lapsLeft)

	// Record history once per completed lap, 2 seconds after crossing
	// the line, keyed on the measured lap duration so pit and
	// invalidated laps appear too.
	if s.laptimeMeasured > laptimeCurr && laptimeCurr > 2 &&
		(len(e.history) == 0 || e.history[0].LapTime != s.laptimeMeasured) {
		e.history = append([]LapConsumption{{
			Lap:           lapNumber - 1,
			LapTime:       s.laptimeMeasured,
			FuelUsed:      s.usedLastRaw,
			FuelRemaining: amountCurr,
			TankCapacity:  capacity,
			Valid:         laptimeValid > 0,
		}}, e.history...)
		if len(e.history) > historyLimit {
			e.history = e.history[:historyLimit]
		}
	}

	info := Info{
		TankCapacity:           capacity,
		AmountStart:            s.amountStart,
		AmountCurrent:          amountCurr,
		AmountNeeded:           s.amountNeed,
		AmountBeforePitstop:    s.amountLeft,
		LastLapConsumption:     s.usedLastRaw,
		EstimatedConsumption:   s.usedLast + s.deltaFuel,
		DeltaConsumption:       s.deltaFuel,
		EstimatedLaps:          s.estRunLaps,
		EstimatedMinutes:       s.estRunMins,
		EstimatedEmptyCapacity: s.estEmpty,
		EstimatedPitStopsEnd:   s.estPitsLate,
		EstimatedPitStopsEarly: s.estPitsEarly,
		OneLessPitConsumption:  s.usedEstLess,
		ConsumptionHistory:     append([]LapConsumption(nil), e.history...),
	}
	e.out.Publish(info)
	if e.ps != nil {
		e.ps.Publish(PubSubFuelTopic, info)
	}
}
