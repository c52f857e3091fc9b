// Package health implements the service catalogue, incident events and the
// status rollup from event updates to events to services.
package health

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bissquit/healthboard/internal/domain"
	"github.com/bissquit/healthboard/internal/pkg/ctxlog"
	"github.com/jackc/pgx/v5"
)

// StatusNotifier receives service status changes after they are committed.
type StatusNotifier interface {
	NotifyStatusChanges(ctx context.Context, changes []domain.ServiceStatusChange)
}

// SlugCache caches service slug to ID lookups.
type SlugCache interface {
	Get(slug string) (string, bool)
	Add(slug, id string) bool
}

// Service implements health business logic.
type Service struct {
	repo     Repository
	notifier StatusNotifier
	slugs    SlugCache
	now      func() time.Time

	// reportMu serializes ReportCheckResult between its open event lookup
	// and the write that follows.
	reportMu sync.Mutex
}

// NewService creates a new health service. Notifier and cache may be nil.
func NewService(repo Repository, notifier StatusNotifier, slugs SlugCache) *Service {
	return &Service{
		repo:     repo,
		notifier: notifier,
		slugs:    slugs,
		now:      func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

// CreateServiceInput holds data for creating a service.
type CreateServiceInput struct {
	Name        string
	Slug        string
	Description string
	Status      domain.StatusLevel
	Order       int
}

// CreateEventInput holds data for opening an event.
type CreateEventInput struct {
	ServiceSlugs []string
	Description  string
	// Status, when set, records an initial update together with the event.
	Status  *domain.StatusLevel
	Message string
}

// AddUpdateInput holds data for appending an update to an event.
type AddUpdateInput struct {
	EventID string
	Status  domain.StatusLevel
	Message string
	// CreatedAt backdates the update. Defaults to the current time.
	CreatedAt *time.Time
}

// CreateService creates a new service.
func (s *Service) CreateService(ctx context.Context, input CreateServiceInput) (*domain.Service, error) {
	if !input.Status.IsValid() {
		return nil, ErrInvalidStatus
	}

	service := &domain.Service{
		Name:        input.Name,
		Slug:        input.Slug,
		Description: input.Description,
		Status:      input.Status,
		Order:       input.Order,
	}
	if err := s.repo.CreateService(ctx, service); err != nil {
		return nil, fmt.Errorf("create service: %w", err)
	}

	recordServiceStatus(service.Slug, service.Status)
	return service, nil
}

// GetServiceBySlug retrieves a service by its slug.
func (s *Service) GetServiceBySlug(ctx context.Context, slug string) (*domain.Service, error) {
	return s.repo.GetServiceBySlug(ctx, slug)
}

// ListServices retrieves all services ordered by display order and name.
func (s *Service) ListServices(ctx context.Context) ([]domain.Service, error) {
	return s.repo.ListServices(ctx)
}

// ServiceNames returns display names of the given services in catalogue order.
func (s *Service) ServiceNames(ctx context.Context, ids []string) ([]string, error) {
	services, err := s.repo.GetServicesByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("get services: %w", err)
	}

	names := make([]string, 0, len(services))
	for _, svc := range services {
		names = append(names, svc.Name)
	}
	return names, nil
}

// CreateEvent opens an event affecting the given services.
func (s *Service) CreateEvent(ctx context.Context, input CreateEventInput) (*domain.Event, error) {
	if len(input.ServiceSlugs) == 0 {
		return nil, ErrNoServices
	}
	if input.Status != nil && !input.Status.IsValid() {
		return nil, ErrInvalidStatus
	}

	serviceIDs, err := s.resolveSlugs(ctx, input.ServiceSlugs)
	if err != nil {
		return nil, err
	}

	now := s.now()
	event := &domain.Event{
		Status:      domain.StatusGreen,
		PeakStatus:  domain.StatusGreen,
		Description: input.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	var changes []domain.ServiceStatusChange
	err = s.inTx(ctx, func(tx pgx.Tx) error {
		if err := s.repo.CreateEventTx(ctx, tx, event); err != nil {
			return fmt.Errorf("create event: %w", err)
		}

		added, err := s.repo.AddEventServicesTx(ctx, tx, event.ID, serviceIDs)
		if err != nil {
			return fmt.Errorf("associate services: %w", err)
		}
		event.ServiceIDs = added

		// With an initial status the update rolls the services up once.
		// Linking them green first would publish a spurious recovery
		// for services already at that status.
		if input.Status == nil {
			linked, err := s.rollupServicesTx(ctx, tx, added, event.ID, event.Status, event.UpdatedAt)
			if err != nil {
				return err
			}
			changes = append(changes, linked...)
			return nil
		}

		update := &domain.EventUpdate{
			EventID:   event.ID,
			Status:    *input.Status,
			Message:   input.Message,
			CreatedAt: now,
		}
		if err := s.repo.CreateEventUpdateTx(ctx, tx, update); err != nil {
			return fmt.Errorf("create update: %w", err)
		}

		applied, err := s.applyUpdateTx(ctx, tx, event, update)
		if err != nil {
			return err
		}
		changes = append(changes, applied...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, changes)
	return event, nil
}

// GetEvent retrieves an event by ID.
func (s *Service) GetEvent(ctx context.Context, id string) (*domain.Event, error) {
	return s.repo.GetEvent(ctx, id)
}

// ListEvents retrieves events with optional filters, newest first.
func (s *Service) ListEvents(ctx context.Context, filter EventFilter) ([]*domain.Event, error) {
	return s.repo.ListEvents(ctx, filter)
}

// ListEventUpdates retrieves the update log of an event, newest first.
func (s *Service) ListEventUpdates(ctx context.Context, eventID string) ([]*domain.EventUpdate, error) {
	if _, err := s.repo.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	return s.repo.ListEventUpdates(ctx, eventID)
}

// AddUpdate appends an update to an event and rolls its effect up to the
// event and the services it affects.
func (s *Service) AddUpdate(ctx context.Context, input AddUpdateInput) (*domain.EventUpdate, error) {
	if !input.Status.IsValid() {
		return nil, ErrInvalidStatus
	}

	createdAt := s.now()
	if input.CreatedAt != nil {
		createdAt = input.CreatedAt.UTC().Truncate(time.Microsecond)
	}

	update := &domain.EventUpdate{
		EventID:   input.EventID,
		Status:    input.Status,
		Message:   input.Message,
		CreatedAt: createdAt,
	}

	var changes []domain.ServiceStatusChange
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		event, err := s.repo.GetEventForUpdateTx(ctx, tx, input.EventID)
		if err != nil {
			return fmt.Errorf("get event: %w", err)
		}

		if err := s.repo.CreateEventUpdateTx(ctx, tx, update); err != nil {
			return fmt.Errorf("create update: %w", err)
		}

		changes, err = s.applyUpdateTx(ctx, tx, event, update)
		return err
	})
	if err != nil {
		return nil, err
	}

	recordEventUpdate(update.Status)
	s.publish(ctx, changes)
	return update, nil
}

// AddServices associates more services with an event.
func (s *Service) AddServices(ctx context.Context, eventID string, slugs []string) (*domain.Event, error) {
	serviceIDs, err := s.resolveSlugs(ctx, slugs)
	if err != nil {
		return nil, err
	}

	var changes []domain.ServiceStatusChange
	err = s.inTx(ctx, func(tx pgx.Tx) error {
		event, err := s.repo.GetEventForUpdateTx(ctx, tx, eventID)
		if err != nil {
			return fmt.Errorf("get event: %w", err)
		}

		added, err := s.repo.AddEventServicesTx(ctx, tx, eventID, serviceIDs)
		if err != nil {
			return fmt.Errorf("associate services: %w", err)
		}

		changes, err = s.rollupServicesTx(ctx, tx, added, eventID, event.Status, event.UpdatedAt)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, changes)
	return s.repo.GetEvent(ctx, eventID)
}

// RemoveServices dissociates services from an event and settles their status
// against the events that still affect them.
func (s *Service) RemoveServices(ctx context.Context, eventID string, slugs []string) (*domain.Event, error) {
	serviceIDs, err := s.resolveSlugs(ctx, slugs)
	if err != nil {
		return nil, err
	}

	var changes []domain.ServiceStatusChange
	err = s.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := s.repo.GetEventForUpdateTx(ctx, tx, eventID); err != nil {
			return fmt.Errorf("get event: %w", err)
		}

		removed, err := s.repo.RemoveEventServicesTx(ctx, tx, eventID, serviceIDs)
		if err != nil {
			return fmt.Errorf("dissociate services: %w", err)
		}

		changes, err = s.rollupServicesTx(ctx, tx, removed, eventID, domain.StatusGreen, s.now())
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, changes)
	return s.repo.GetEvent(ctx, eventID)
}

// DeleteEvent deletes an event with its updates. Services it elevated are
// settled against their remaining events first.
func (s *Service) DeleteEvent(ctx context.Context, id string) error {
	var changes []domain.ServiceStatusChange
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := s.repo.GetEventForUpdateTx(ctx, tx, id); err != nil {
			return fmt.Errorf("get event: %w", err)
		}

		serviceIDs, err := s.repo.GetEventServiceIDsTx(ctx, tx, id)
		if err != nil {
			return fmt.Errorf("get event services: %w", err)
		}

		removed, err := s.repo.RemoveEventServicesTx(ctx, tx, id, serviceIDs)
		if err != nil {
			return fmt.Errorf("dissociate services: %w", err)
		}

		changes, err = s.rollupServicesTx(ctx, tx, removed, id, domain.StatusGreen, s.now())
		if err != nil {
			return err
		}

		if err := s.repo.DeleteEventTx(ctx, tx, id); err != nil {
			return fmt.Errorf("delete event: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.publish(ctx, changes)
	return nil
}

// resolveSlugs maps service slugs to IDs, consulting the slug cache first.
func (s *Service) resolveSlugs(ctx context.Context, slugs []string) ([]string, error) {
	ids := make([]string, 0, len(slugs))
	seen := make(map[string]bool, len(slugs))

	for _, slug := range slugs {
		id, err := s.resolveSlug(ctx, slug)
		if err != nil {
			return nil, err
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *Service) resolveSlug(ctx context.Context, slug string) (string, error) {
	if s.slugs != nil {
		if id, ok := s.slugs.Get(slug); ok {
			return id, nil
		}
	}

	service, err := s.repo.GetServiceBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, ErrServiceNotFound) {
			return "", fmt.Errorf("%w: %s", ErrServiceNotFound, slug)
		}
		return "", fmt.Errorf("get service %s: %w", slug, err)
	}

	if s.slugs != nil {
		s.slugs.Add(slug, service.ID)
	}
	return service.ID, nil
}

// inTx runs fn inside a transaction, committing when fn succeeds.
func (s *Service) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			slog.Error("failed to rollback transaction", "error", err)
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// publish records committed status changes in metrics, logs and notifications.
func (s *Service) publish(ctx context.Context, changes []domain.ServiceStatusChange) {
	if len(changes) == 0 {
		return
	}

	logger := ctxlog.FromContext(ctx)
	for _, c := range changes {
		recordServiceTransition(c)
		logger.Info("service status changed",
			"service", c.Slug,
			"old_status", c.OldStatus.String(),
			"new_status", c.NewStatus.String(),
			"event_id", c.EventID,
		)
	}

	if s.notifier != nil {
		s.notifier.NotifyStatusChanges(ctx, changes)
	}
}
