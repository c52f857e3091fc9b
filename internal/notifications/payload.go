package notifications

import (
	"time"

	"github.com/bissquit/healthboard/internal/domain"
)

// Notification is a rendered message ready for delivery.
type Notification struct {
	To      string
	Subject string
	Body    string
}

// StatusChangePayload is the template data for a service status change.
type StatusChangePayload struct {
	ServiceName string
	ServiceSlug string
	From        domain.StatusLevel
	To          domain.StatusLevel
	EventID     string
	EventURL    string
	ChangedAt   time.Time
}

// Recovered reports whether the service returned to green.
func (p StatusChangePayload) Recovered() bool {
	return p.To == domain.StatusGreen
}

// Escalated reports whether the status became more severe.
func (p StatusChangePayload) Escalated() bool {
	return p.To > p.From
}

// NewStatusChangePayload builds template data for change. baseURL may be empty.
func NewStatusChangePayload(change domain.ServiceStatusChange, baseURL string) StatusChangePayload {
	p := StatusChangePayload{
		ServiceName: change.Name,
		ServiceSlug: change.Slug,
		From:        change.OldStatus,
		To:          change.NewStatus,
		EventID:     change.EventID,
		ChangedAt:   change.ChangedAt,
	}
	if baseURL != "" && change.EventID != "" {
		p.EventURL = baseURL + "/api/v1/events/" + change.EventID
	}
	return p
}
