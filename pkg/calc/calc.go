// Package calc holds the pure numeric routines used by the telemetry
// modules: interpolation, ordered/unordered search, distance and the
// fuel projection formulas. All functions are deterministic and keep
// no state, so identical inputs always produce identical outputs.
package calc

import "math"

// Sample is one distance-indexed point of a reference lap: cumulative
// distance into the lap in meters, cumulative value at that distance
// (fuel used, in liters) and, on the terminal sample of a lap, the
// completed lap time in seconds.
type Sample struct {
	Distance float64
	Value    float64
	LapTime  float64
}

// ZeroNonFinite coerces NaN and infinities to zero. Telemetry readings
// pass through this at the accessor boundary so modules only ever see
// finite numbers.
func ZeroNonFinite(value float64) float64 {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0
	}
	return value
}

// Round6 rounds to 6 decimal digits, the precision used for stored
// fuel curve samples.
func Round6(value float64) float64 {
	return math.Round(value*1e6) / 1e6
}

// LinearInterp interpolates linearly at x between (x1,y1) and (x2,y2).
// Returns y1 when both x coordinates coincide.
func LinearInterp(x, x1, y1, x2, y2 float64) float64 {
	xDiff := x2 - x1
	if xDiff != 0 {
		return y1 + (x-x1)*(y2-y1)/xDiff
	}
	return y1
}

// Distance is the Euclidean distance between two 3-D coordinates.
func Distance(a, b [3]float64) float64 {
	dx := a[0] - b[0]
	dy := a[1] - b[1]
	dz := a[2] - b[2]
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Self keys a plain float64 sequence on the value itself.
func Self(value float64) float64 {
	return value
}

// ByDistance keys curve samples on lap distance.
func ByDistance(s Sample) float64 {
	return s.Distance
}

// LinearSearchHigher scans an unordered sequence and returns the index
// of the smallest key that is >= target, or the last index if none
// qualifies. Meant for small or unsorted inputs only.
func LinearSearchHigher[T any](data []T, target float64, key func(T) float64) int {
	end := len(data) - 1
	nearest := math.Inf(1)
	for index, row := range data {
		k := key(row)
		if target <= k && k < nearest {
			nearest = k
			end = index
		}
	}
	return end
}

// BinarySearchHigher returns the index of the first element in the
// ordered-ascending sequence whose key is >= target; an exact key
// match returns that index directly.
func BinarySearchHigher[T any](data []T, target float64, start, end int, key func(T) float64) int {
	for start < end {
		center := (start + end) / 2
		k := key(data[center])
		if target == k {
			return center
		}
		if target > k {
			start = center + 1
		} else {
			end = center
		}
	}
	return end
}

// DeltaTelemetry computes the live delta between the current
// cumulative value and a reference curve interpolated at position.
// Returns 0 when position falls before the first real sample (no
// meaningful delta yet) or when condition is false; callers use the
// condition gate to suppress spikes right after the line and while
// stationary in the garage.
func DeltaTelemetry(position, liveData float64, curve []Sample, condition bool, offset float64) float64 {
	indexHigher := BinarySearchHigher(curve, position, 0, len(curve)-1, ByDistance)
	if indexHigher > 0 && condition {
		indexLower := indexHigher - 1
		return liveData + offset - LinearInterp(
			position,
			curve[indexLower].Distance,
			curve[indexLower].Value,
			curve[indexHigher].Distance,
			curve[indexHigher].Value,
		)
	}
	return 0
}
