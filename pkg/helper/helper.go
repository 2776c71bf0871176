package helper

import (
	"fmt"
)

// method to convert from seconds to minutes:seconds:milliseconds
func SecondsToMinutes(seconds float64) string {
	if seconds <= 0 {
		return "-"
	}
	minutes := int(seconds / 60)
	seconds = seconds - float64(minutes*60)
	milliseconds := int((seconds - float64(int(seconds))) * 1000)
	return fmt.Sprintf("%02d:%02d.%03d", minutes, int(seconds), milliseconds)
}

func SecondsToHoursAndMinutes(seconds float64) string {
	if seconds <= 0 {
		seconds = 0
	}
	hours := int(seconds / 3600)
	seconds = seconds - float64(hours*3600)
	minutes := int(seconds / 60)
	return fmt.Sprintf("%02dh %02dm", hours, minutes)
}

// Liters renders a fuel amount, "-" when there is no estimate yet.
func Liters(amount float64) string {
	if amount <= 0 {
		return "-"
	}
	return fmt.Sprintf("%.2fL", amount)
}

// Kilometers renders a driven distance given in meters.
func Kilometers(meters float64) string {
	return fmt.Sprintf("%.1fkm", meters/1000)
}
