// Package alert watches the live fuel metrics and notifies the driver
// when the remaining range drops below a configured number of laps.
package alert

import (
	"context"
	"fmt"

	"github.com/nikoksr/notify"
	"go.uber.org/zap"

	"github.com/berarma/TinyPedal/pkg/fuel"
	"github.com/berarma/TinyPedal/pkg/pubsub"
)

// rearmMarginLaps is how far the range must recover above the
// threshold (after a refuel) before another alert can fire.
const rearmMarginLaps = 1.0

// sendQueueSize bounds pending notifications; the receive loop must
// never wait on the notifier's network round-trip, since snapshot
// publishing is synchronous all the way back to the engine tick.
const sendQueueSize = 1

// Manager consumes fuel snapshots and fires a single low-fuel
// notification per stint.
type Manager struct {
	ctx         context.Context
	ps          *pubsub.PubSub[fuel.Info]
	notifier    notify.Notifier
	lowFuelLaps float64
	logger      *zap.Logger

	armed    bool
	sendChan chan string
}

func NewManager(
	ctx context.Context,
	ps *pubsub.PubSub[fuel.Info],
	notifier notify.Notifier,
	lowFuelLaps float64,
	logger *zap.Logger,
) *Manager {
	return &Manager{
		ctx:         ctx,
		ps:          ps,
		notifier:    notifier,
		lowFuelLaps: lowFuelLaps,
		logger:      logger,
		armed:       true,
		sendChan:    make(chan string, sendQueueSize),
	}
}

func (m *Manager) Start(exitChan <-chan bool) {
	infoChan := m.ps.Subscribe(fuel.PubSubFuelTopic)
	done := make(chan struct{})
	defer close(done)
	go m.sender(done)
	for {
		select {
		case <-exitChan:
			return
		case info := <-infoChan:
			m.handle(info)
		}
	}
}

// sender performs the actual notifier round-trips off the receive
// loop, so a slow notification service never backs up into the
// publishers.
func (m *Manager) sender(done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case message := <-m.sendChan:
			if err := m.notifier.Send(m.ctx, "Low fuel", message); err != nil {
				m.logger.Error("low fuel alert not sent", zap.Error(err))
			}
		}
	}
}

// handle applies the threshold with hysteresis: one alert when the
// estimated range crosses below, re-armed only after it recovers past
// the threshold plus a margin.
func (m *Manager) handle(info fuel.Info) {
	if info.EstimatedLaps <= 0 {
		return
	}
	if !m.armed {
		if info.EstimatedLaps >= m.lowFuelLaps+rearmMarginLaps {
			m.armed = true
		}
		return
	}
	if info.EstimatedLaps > m.lowFuelLaps {
		return
	}
	m.armed = false
	m.logger.Info("low fuel alert",
		zap.Float64("estimatedLaps", info.EstimatedLaps),
		zap.Float64("amountCurrent", info.AmountCurrent))
	if m.notifier == nil {
		return
	}
	message := fmt.Sprintf("%.1f laps of fuel left (%.2fL). Estimated refill: %.2fL.",
		info.EstimatedLaps, info.AmountCurrent, info.AmountNeeded)
	select {
	case m.sendChan <- message:
	default:
		m.logger.Warn("low fuel alert dropped, sender busy")
	}
}
