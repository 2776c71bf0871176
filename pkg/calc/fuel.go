package calc

import "math"

// Fuel projection formulas. All amounts are liters, times seconds,
// consumptions liters per lap unless noted otherwise.

// LapTypeFullLapsRemain counts remaining laps from the finish line in
// a fixed-lap race.
func LapTypeFullLapsRemain(lapsTotal, lapsFinished int) int {
	return lapsTotal - lapsFinished
}

// LapTypeLapsRemain counts remaining laps from the current on-track
// position in a fixed-lap race.
func LapTypeLapsRemain(lapsFullRemain int, lapInto float64) float64 {
	return float64(lapsFullRemain) - lapInto
}

// TimeTypeFullLapsRemain counts remaining full laps from the start
// line of the current lap in a fixed-time race.
func TimeTypeFullLapsRemain(laptimeCurrent, laptimeLast, secondsRemain float64) float64 {
	if laptimeLast != 0 {
		// Estimated seconds into lap after race time ended
		secondsIntoLap := math.Mod(laptimeCurrent/laptimeLast, 1) * laptimeLast
		return math.Ceil((secondsRemain + secondsIntoLap) / laptimeLast)
	}
	return 0
}

// TimeTypeLapsRemain counts remaining laps from the current on-track
// position in a fixed-time race. The delay flag freezes the previous
// value for one tick while the lap counter is suspected desynced.
func TimeTypeLapsRemain(lapsFullRemain, lapInto, lapsRemain float64, delay bool) float64 {
	if delay {
		return lapsRemain
	}
	return math.Max(lapsFullRemain-lapInto, 0)
}

// TotalFuelNeeded is the additional fuel required to finish the race.
func TotalFuelNeeded(lapsRemain, consumption, fuelInTank float64) float64 {
	return lapsRemain*consumption - fuelInTank
}

// EndLapConsumption folds the live delta into the last-lap consumption
// when the delta is trustworthy (condition), otherwise returns the
// unmodified baseline.
func EndLapConsumption(consumption, consumptionDelta float64, condition bool) float64 {
	if condition {
		return consumption + consumptionDelta
	}
	return consumption
}

// EndStintFuel estimates the fuel remaining right before pitting at
// the end of the current stint.
func EndStintFuel(fuelInTank, consumptionIntoLap, consumption float64) float64 {
	if consumption != 0 {
		fuelAtLapStart := fuelInTank + consumptionIntoLap
		return math.Mod(fuelAtLapStart/consumption, 1) * consumption
	}
	return 0
}

// EndStintLaps estimates how many laps the current fuel lasts.
func EndStintLaps(fuelInTank, consumption float64) float64 {
	if consumption != 0 {
		return fuelInTank / consumption
	}
	return 0
}

// EndStintMinutes estimates how many minutes the current fuel lasts.
func EndStintMinutes(lapsTotal, laptimeLast float64) float64 {
	return lapsTotal * laptimeLast / 60
}

// EndLapEmptyCapacity estimates the empty tank capacity at the end of
// the current lap.
func EndLapEmptyCapacity(capacityTotal, fuelInTank, consumption float64) float64 {
	return capacityTotal - fuelInTank + consumption
}

// EndStintPitCounts estimates pit stop counts when pitting at the end
// of the current stint.
func EndStintPitCounts(fuelNeeded, capacityEmpty float64) float64 {
	if capacityEmpty != 0 {
		return fuelNeeded / capacityEmpty
	}
	return 0
}

// EndLapPitCounts estimates pit stop counts when pitting at the end of
// the current lap: the part that fits into the empty capacity this
// stint plus full-capacity stops for the rest.
func EndLapPitCounts(fuelNeeded, capacityEmpty, capacityTotal float64) float64 {
	// Amount of fuel that can be added without exceeding capacity
	fuelAddable := math.Min(fuelNeeded, capacityEmpty)
	pitCountsBefore := 1.0
	if capacityEmpty != 0 {
		pitCountsBefore = fuelAddable / capacityEmpty
	}
	if capacityTotal == 0 {
		return pitCountsBefore
	}
	pitCountsAfter := (fuelNeeded - fuelAddable) / capacityTotal
	return pitCountsBefore + pitCountsAfter
}

// OneLessPitStopConsumption is the consumption rate required to finish
// the race on one fewer pit stop than the end-stint projection.
func OneLessPitStopConsumption(pitCountsLate, capacityTotal, fuelInTank, lapsRemain float64) float64 {
	if lapsRemain != 0 {
		pitCounts := math.Ceil(pitCountsLate) - 1
		return (pitCounts*capacityTotal + fuelInTank) / lapsRemain
	}
	return 0
}
