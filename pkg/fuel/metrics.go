package fuel

import "sync"

// PubSubFuelTopic is the pubsub topic fuel snapshots fan out on.
const PubSubFuelTopic = "fuelInfo"

// historyLimit bounds the consumption history log.
const historyLimit = 100

// LapConsumption is one completed-lap entry of the consumption
// history, most-recent-first.
type LapConsumption struct {
	Lap           int     `json:"lap"`
	LapTime       float64 `json:"lapTime"`
	FuelUsed      float64 `json:"fuelUsed"`
	FuelRemaining float64 `json:"fuelRemaining"`
	TankCapacity  float64 `json:"tankCapacity"`
	Valid         bool    `json:"valid"`
}

// Info is the flat set of derived fuel metrics published once per
// engine iteration. Readers tolerate momentarily stale values; the
// engine is the only writer.
type Info struct {
	TankCapacity           float64          `json:"tankCapacity"`
	AmountStart            float64          `json:"amountFuelStart"`
	AmountCurrent          float64          `json:"amountFuelCurrent"`
	AmountNeeded           float64          `json:"amountFuelNeeded"`
	AmountBeforePitstop    float64          `json:"amountFuelBeforePitstop"`
	LastLapConsumption     float64          `json:"lastLapFuelConsumption"`
	EstimatedConsumption   float64          `json:"estimatedFuelConsumption"`
	DeltaConsumption       float64          `json:"deltaFuelConsumption"`
	EstimatedLaps          float64          `json:"estimatedLaps"`
	EstimatedMinutes       float64          `json:"estimatedMinutes"`
	EstimatedEmptyCapacity float64          `json:"estimatedEmptyCapacity"`
	EstimatedPitStopsEnd   float64          `json:"estimatedNumPitStopsEnd"`
	EstimatedPitStopsEarly float64          `json:"estimatedNumPitStopsEarly"`
	OneLessPitConsumption  float64          `json:"oneLessPitFuelConsumption"`
	ConsumptionHistory     []LapConsumption `json:"consumptionHistory"`
}

// Metrics is the shared output handle between the engine (single
// writer) and the display consumers (readers). It carries no
// transactional semantics: the whole snapshot is replaced each tick.
type Metrics struct {
	mu   sync.RWMutex
	info Info
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

// Fuel returns a copy of the latest snapshot. The history slice is
// copied so readers can hold on to it across ticks.
func (m *Metrics) Fuel() Info {
	m.mu.RLock()
	defer m.mu.RUnlock()
	info := m.info
	info.ConsumptionHistory = append([]LapConsumption(nil), m.info.ConsumptionHistory...)
	return info
}

// Publish replaces the snapshot. The engine is the only caller while
// it runs.
func (m *Metrics) Publish(info Info) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.info = info
}
