// Package display renders the live fuel metrics as a periodically
// refreshed terminal table.
package display

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/berarma/TinyPedal/pkg/fuel"
	"github.com/berarma/TinyPedal/pkg/helper"
	"github.com/berarma/TinyPedal/pkg/stats"
)

const historyRows = 5

// StatsReader exposes the latest driver record; satisfied by the
// stats module.
type StatsReader interface {
	Current() stats.DriverStats
}

type Manager struct {
	out      io.Writer
	metrics  *fuel.Metrics
	stats    StatsReader
	interval time.Duration
}

// NewManager builds a display writing to out. stats may be nil.
func NewManager(out io.Writer, metrics *fuel.Metrics, stats StatsReader, interval time.Duration) *Manager {
	return &Manager{
		out:      out,
		metrics:  metrics,
		stats:    stats,
		interval: interval,
	}
}

func (m *Manager) Run(exitChan <-chan bool) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-exitChan:
			return
		case <-ticker.C:
			fmt.Fprintln(m.out, m.render())
		}
	}
}

func (m *Manager) render() string {
	info := m.metrics.Fuel()

	var b bytes.Buffer
	t := table.NewWriter()
	t.SetOutputMirror(&b)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"FUEL", ""})
	t.AppendRows([]table.Row{
		{"Tank capacity", helper.Liters(info.TankCapacity)},
		{"Fuel left", helper.Liters(info.AmountCurrent)},
		{"Refill to finish", helper.Liters(info.AmountNeeded)},
		{"Last lap", helper.Liters(info.LastLapConsumption)},
		{"Estimated lap", helper.Liters(info.EstimatedConsumption)},
		{"Delta vs best", fmt.Sprintf("%+.3fL", info.DeltaConsumption)},
		{"Range", fmt.Sprintf("%.1f laps", info.EstimatedLaps)},
		{"Range time", helper.SecondsToHoursAndMinutes(info.EstimatedMinutes * 60)},
		{"Pit stops", fmt.Sprintf("%.2f (early %.2f)", info.EstimatedPitStopsEnd, info.EstimatedPitStopsEarly)},
		{"One less stop at", helper.Liters(info.OneLessPitConsumption)},
	})
	t.Render()

	if len(info.ConsumptionHistory) > 0 {
		h := table.NewWriter()
		h.SetOutputMirror(&b)
		h.SetStyle(table.StyleRounded)
		h.AppendHeader(table.Row{"LAP", "TIME", "USED", "LEFT"})
		for i, entry := range info.ConsumptionHistory {
			if i == historyRows {
				break
			}
			lapTime := helper.SecondsToMinutes(entry.LapTime)
			if !entry.Valid {
				lapTime += " *"
			}
			h.AppendRow(table.Row{
				fmt.Sprintf("%d", entry.Lap),
				lapTime,
				helper.Liters(entry.FuelUsed),
				helper.Liters(entry.FuelRemaining),
			})
		}
		h.Render()
	}

	if m.stats != nil {
		record := m.stats.Current()
		s := table.NewWriter()
		s.SetOutputMirror(&b)
		s.SetStyle(table.StyleRounded)
		s.AppendHeader(table.Row{"DRIVER", record.Combo})
		s.AppendRows([]table.Row{
			{"Personal best", helper.SecondsToMinutes(record.PersonalBest)},
			{"Distance", helper.Kilometers(record.Meters)},
			{"Fuel burned", helper.Liters(record.Liters)},
			{"Time on track", helper.SecondsToHoursAndMinutes(record.Seconds)},
			{"Laps", fmt.Sprintf("%d valid / %d invalid", record.ValidLaps, record.InvalidLaps)},
		})
		s.Render()
	}

	return b.String()
}
