package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeComboID(t *testing.T) {
	assert.Equal(t, "Monza - GT3", SanitizeComboID("Monza", "GT3"))
	assert.Equal(t, "AB - GT3", SanitizeComboID(`A<>:"/\|?*B`, "GT3"))
}

func TestStaticRaceTypeDetection(t *testing.T) {
	api := NewStatic("Monza - GT3")

	api.Set(PlayerFrame{MaximumLaps: 20})
	assert.True(t, api.IsLapTypeRace())

	// Time-limited sessions report a huge lap ceiling
	api.Set(PlayerFrame{MaximumLaps: timeLimitedMaxLaps})
	assert.False(t, api.IsLapTypeRace())

	api.Set(PlayerFrame{MaximumLaps: 0})
	assert.False(t, api.IsLapTypeRace())
}

func TestStaticUpdateMutatesFrame(t *testing.T) {
	api := NewStatic("Monza - GT3")
	api.Set(PlayerFrame{Fuel: 50})
	api.Update(func(f *PlayerFrame) { f.Fuel -= 0.5 })
	assert.InDelta(t, 49.5, api.Fuel(), 1e-9)
	assert.Equal(t, "Monza - GT3", api.ComboID())
}
