// Package fuel implements the fuel consumption estimation engine: a
// polling module that tracks per-lap fuel usage from live telemetry,
// maintains a persisted distance-indexed consumption curve per
// track+class combo and publishes derived range and pit projections.
package fuel

import (
	"github.com/berarma/TinyPedal/pkg/calc"
)

// Curve is an ordered sequence of samples describing one completed
// reference lap: cumulative fuel used versus distance into the lap.
// Samples are ordered by non-decreasing distance; the first entry is
// the (0,0,0) sentinel.
type Curve []calc.Sample

// NewCurve returns a fresh in-progress curve holding only the sentinel.
func NewCurve() Curve {
	return Curve{{}}
}

// DefaultCurve is the degenerate single-sample curve used when no
// persisted data exists for a combo. Its distance lies beyond any real
// track length so delta lookups resolve to index 0 and yield no delta.
func DefaultCurve() Curve {
	return Curve{{Distance: 99999}}
}

// LastUsed is the total fuel consumed over the reference lap.
func (c Curve) LastUsed() float64 {
	if len(c) == 0 {
		return 0
	}
	return c[len(c)-1].Value
}

// LastLapTime is the duration of the reference lap.
func (c Curve) LastLapTime() float64 {
	if len(c) == 0 {
		return 0
	}
	return c[len(c)-1].LapTime
}

// Sorted reports whether distances are non-decreasing.
func (c Curve) Sorted() bool {
	for i := 1; i < len(c); i++ {
		if c[i].Distance < c[i-1].Distance {
			return false
		}
	}
	return true
}
