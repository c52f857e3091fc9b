package domain

import "time"

// Event represents an incident affecting one or more services.
type Event struct {
	ID          string      `json:"id"`
	ServiceIDs  []string    `json:"service_ids"`
	Status      StatusLevel `json:"status"`
	PeakStatus  StatusLevel `json:"peak_status"`
	Description string      `json:"description"`
	Message     string      `json:"message"`
	CreatedAt   time.Time   `json:"created_on"`
	UpdatedAt   time.Time   `json:"updated_on"`
}

// EventUpdate represents one immutable entry in an event's status history.
type EventUpdate struct {
	ID        string      `json:"id"`
	EventID   string      `json:"event_id"`
	Status    StatusLevel `json:"status"`
	Message   string      `json:"message"`
	CreatedAt time.Time   `json:"created_on"`

	// Sequence is the insertion order, used to break created_on ties.
	Sequence int64 `json:"-"`
}

// IsOpen reports whether the event still elevates its services.
func (e *Event) IsOpen() bool {
	return e.Status.IsElevated()
}

// Duration returns how long the event has been running as of its last update.
func (e *Event) Duration() time.Duration {
	return e.UpdatedAt.Sub(e.CreatedAt)
}

// Apply copies the state of the latest update into the event.
// The description is filled only while empty and peak status never decreases.
func (e *Event) Apply(update *EventUpdate) {
	e.Status = update.Status
	e.Message = update.Message
	e.UpdatedAt = update.CreatedAt

	if e.Description == "" {
		e.Description = update.Message
	}

	if update.Status > e.PeakStatus {
		e.PeakStatus = update.Status
	}
}

// IsAfter reports whether u was recorded after other, breaking
// created_on ties by insertion sequence.
func (u *EventUpdate) IsAfter(other *EventUpdate) bool {
	if u.CreatedAt.Equal(other.CreatedAt) {
		return u.Sequence > other.Sequence
	}
	return u.CreatedAt.After(other.CreatedAt)
}
