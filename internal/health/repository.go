package health

import (
	"context"
	"time"

	"github.com/bissquit/healthboard/internal/domain"
	"github.com/jackc/pgx/v5"
)

// Repository defines the interface for health data storage.
type Repository interface {
	CreateService(ctx context.Context, service *domain.Service) error
	UpsertService(ctx context.Context, service *domain.Service) error
	GetServiceBySlug(ctx context.Context, slug string) (*domain.Service, error)
	GetServiceByID(ctx context.Context, id string) (*domain.Service, error)
	ListServices(ctx context.Context) ([]domain.Service, error)
	GetServicesByIDs(ctx context.Context, ids []string) ([]domain.Service, error)

	GetEvent(ctx context.Context, id string) (*domain.Event, error)
	ListEvents(ctx context.Context, filter EventFilter) ([]*domain.Event, error)
	ListEventUpdates(ctx context.Context, eventID string) ([]*domain.EventUpdate, error)
	GetOpenEventForService(ctx context.Context, serviceID string) (*domain.Event, error)

	// Transaction support
	BeginTx(ctx context.Context) (pgx.Tx, error)
	CreateEventTx(ctx context.Context, tx pgx.Tx, event *domain.Event) error
	GetEventForUpdateTx(ctx context.Context, tx pgx.Tx, id string) (*domain.Event, error)
	UpdateEventStatusTx(ctx context.Context, tx pgx.Tx, event *domain.Event) error
	DeleteEventTx(ctx context.Context, tx pgx.Tx, id string) error

	CreateEventUpdateTx(ctx context.Context, tx pgx.Tx, update *domain.EventUpdate) error
	GetLatestEventUpdateTx(ctx context.Context, tx pgx.Tx, eventID string) (*domain.EventUpdate, error)

	AddEventServicesTx(ctx context.Context, tx pgx.Tx, eventID string, serviceIDs []string) ([]string, error)
	RemoveEventServicesTx(ctx context.Context, tx pgx.Tx, eventID string, serviceIDs []string) ([]string, error)
	GetEventServiceIDsTx(ctx context.Context, tx pgx.Tx, eventID string) ([]string, error)

	// Conditional service writes used by the rollup. Each returns whether a row changed.
	GetServiceByIDTx(ctx context.Context, tx pgx.Tx, id string) (*domain.Service, error)
	TouchServiceTx(ctx context.Context, tx pgx.Tx, serviceID string, at time.Time) (bool, error)
	RaiseServiceStatusTx(ctx context.Context, tx pgx.Tx, serviceID string, status domain.StatusLevel) (bool, error)
	SwapServiceStatusTx(ctx context.Context, tx pgx.Tx, serviceID string, expected, next domain.StatusLevel) (bool, error)
	MaxOtherEventStatusTx(ctx context.Context, tx pgx.Tx, serviceID, excludeEventID string) (domain.StatusLevel, error)
}

// EventFilter holds filter options for listing events.
type EventFilter struct {
	ServiceID *string
	OpenOnly  bool
	Limit     int
	Offset    int
}
