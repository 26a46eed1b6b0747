package weather

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/i474232898/dashboard-aggregation/internal/events"
)

// TempJumpThreshold is the absolute temperature change, in °C, between two
// consecutive polls that raises a temperature alert.
const TempJumpThreshold = 5.0

// DetectChanges compares two consecutive snapshots of the same city. The
// condition and temperature checks are independent; both may fire.
func DetectChanges(prev, next Snapshot, at time.Time) []events.ChangeEvent {
	var out []events.ChangeEvent

	if prev.Conditions != next.Conditions {
		out = append(out, events.ChangeEvent{
			Kind:      events.KindWeatherConditionChanged,
			SubjectID: next.City,
			Message:   fmt.Sprintf("Weather in %s changed from %s to %s", next.City, prev.Conditions, next.Conditions),
			From:      prev.Conditions,
			To:        next.Conditions,
			At:        at,
		})
	}

	// Compared as decimals so 20.3 -> 15.3 is exactly 5 and 4.9999999995 is not.
	diff := decimal.NewFromFloat(next.Temp).Sub(decimal.NewFromFloat(prev.Temp))
	if diff.Abs().GreaterThanOrEqual(decimal.NewFromFloat(TempJumpThreshold)) {
		delta := diff.Abs().InexactFloat64()
		direction := events.DirectionUp
		verb := "rose"
		if diff.IsNegative() {
			direction = events.DirectionDown
			verb = "dropped"
		}
		out = append(out, events.ChangeEvent{
			Kind:      events.KindWeatherTempJump,
			SubjectID: next.City,
			Message: fmt.Sprintf("Temperature in %s %s by %.1f°C (%.1f°C to %.1f°C)",
				next.City, verb, delta, prev.Temp, next.Temp),
			From:      fmt.Sprintf("%.1f", prev.Temp),
			To:        fmt.Sprintf("%.1f", next.Temp),
			Delta:     delta,
			Direction: direction,
			At:        at,
		})
	}

	return out
}
