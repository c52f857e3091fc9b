package domain

import "time"

// Service represents a monitored platform component.
type Service struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Slug        string      `json:"slug"`
	Description string      `json:"description"`
	Status      StatusLevel `json:"status"`
	Order       int         `json:"order"`
	CreatedAt   time.Time   `json:"created_on"`
	UpdatedAt   time.Time   `json:"updated_on"`
}

// ServiceStatusChange records a service status transition produced by a rollup.
type ServiceStatusChange struct {
	ServiceID string      `json:"service_id"`
	Slug      string      `json:"slug"`
	Name      string      `json:"name"`
	OldStatus StatusLevel `json:"old_status"`
	NewStatus StatusLevel `json:"new_status"`
	EventID   string      `json:"event_id"`
	ChangedAt time.Time   `json:"changed_at"`
}

// IsUpgrade reports whether the change made the service more severe.
func (c ServiceStatusChange) IsUpgrade() bool {
	return c.NewStatus > c.OldStatus
}
