package notify

import (
	"time"

	"github.com/i474232898/dashboard-aggregation/internal/events"
)

// Type is the user-facing category of an alert.
type Type string

const (
	TypePriceAlert   Type = "price_alert"
	TypeWeatherAlert Type = "weather_alert"
)

// Priority controls how prominently an alert is shown.
type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// Alert is one ephemeral, auto-dismissing notification.
type Alert struct {
	ID        string      `json:"id"`
	Type      Type        `json:"type"`
	Kind      events.Kind `json:"kind"`
	SubjectID string      `json:"subjectId"`
	Title     string      `json:"title"`
	Message   string      `json:"message"`
	Priority  Priority    `json:"priority"`
	CreatedAt time.Time   `json:"createdAt"`
	ExpiresAt time.Time   `json:"expiresAt"`
}

// Expired reports whether the alert should no longer be shown at now.
func (a Alert) Expired(now time.Time) bool {
	return !now.Before(a.ExpiresAt)
}
