package health

import (
	"context"
	"fmt"
	"time"

	"github.com/bissquit/healthboard/internal/domain"
	"github.com/jackc/pgx/v5"
)

const maxRollupAttempts = 3

// applyUpdateTx applies a freshly inserted update to its event when it is the
// latest one, then rolls the event status up to its services.
// An out-of-order update leaves the event untouched.
func (s *Service) applyUpdateTx(ctx context.Context, tx pgx.Tx, event *domain.Event, update *domain.EventUpdate) ([]domain.ServiceStatusChange, error) {
	latest, err := s.repo.GetLatestEventUpdateTx(ctx, tx, event.ID)
	if err != nil {
		return nil, fmt.Errorf("get latest update: %w", err)
	}
	if latest.ID != update.ID {
		return nil, nil
	}

	event.Apply(update)
	if err := s.repo.UpdateEventStatusTx(ctx, tx, event); err != nil {
		return nil, fmt.Errorf("update event status: %w", err)
	}

	serviceIDs, err := s.repo.GetEventServiceIDsTx(ctx, tx, event.ID)
	if err != nil {
		return nil, fmt.Errorf("get event services: %w", err)
	}
	event.ServiceIDs = serviceIDs

	return s.rollupServicesTx(ctx, tx, serviceIDs, event.ID, event.Status, event.UpdatedAt)
}

func (s *Service) rollupServicesTx(ctx context.Context, tx pgx.Tx, serviceIDs []string, eventID string, incoming domain.StatusLevel, at time.Time) ([]domain.ServiceStatusChange, error) {
	var changes []domain.ServiceStatusChange
	for _, id := range serviceIDs {
		change, err := s.rollupServiceTx(ctx, tx, id, eventID, incoming, at)
		if err != nil {
			return nil, err
		}
		if change != nil {
			changes = append(changes, *change)
		}
	}
	return changes, nil
}

// rollupServiceTx moves a service towards the most severe status among its
// associated events, given that eventID now contributes incoming as of at.
// Every write is conditional on the stored row: updated_on only moves forward
// and status changes are compare-and-swap against the value read.
//
// A downgrade lands on the maximum of incoming and the most severe status of
// the service's other events. It is not limited to the case where another
// event holds exactly the current status, so a red service whose only other
// event is orange goes to orange rather than to incoming.
func (s *Service) rollupServiceTx(ctx context.Context, tx pgx.Tx, serviceID, eventID string, incoming domain.StatusLevel, at time.Time) (*domain.ServiceStatusChange, error) {
	for attempt := 0; attempt < maxRollupAttempts; attempt++ {
		service, err := s.repo.GetServiceByIDTx(ctx, tx, serviceID)
		if err != nil {
			return nil, fmt.Errorf("get service: %w", err)
		}

		if at.After(service.UpdatedAt) {
			if _, err := s.repo.TouchServiceTx(ctx, tx, serviceID, at); err != nil {
				return nil, fmt.Errorf("touch service: %w", err)
			}
		}

		switch {
		case incoming > service.Status:
			raised, err := s.repo.RaiseServiceStatusTx(ctx, tx, serviceID, incoming)
			if err != nil {
				return nil, fmt.Errorf("raise service status: %w", err)
			}
			if !raised {
				// Someone else already raised it at least this far.
				return nil, nil
			}
			return newStatusChange(service, incoming, eventID, at), nil

		case incoming < service.Status:
			other, err := s.repo.MaxOtherEventStatusTx(ctx, tx, serviceID, eventID)
			if err != nil {
				return nil, fmt.Errorf("get other event status: %w", err)
			}
			if other >= service.Status {
				return nil, nil
			}

			next := domain.MaxStatus(incoming, other)
			swapped, err := s.repo.SwapServiceStatusTx(ctx, tx, serviceID, service.Status, next)
			if err != nil {
				return nil, fmt.Errorf("swap service status: %w", err)
			}
			if !swapped {
				continue
			}
			return newStatusChange(service, next, eventID, at), nil

		default:
			return nil, nil
		}
	}

	return nil, fmt.Errorf("service %s: %w", serviceID, ErrRollupConflict)
}

func newStatusChange(service *domain.Service, next domain.StatusLevel, eventID string, at time.Time) *domain.ServiceStatusChange {
	return &domain.ServiceStatusChange{
		ServiceID: service.ID,
		Slug:      service.Slug,
		Name:      service.Name,
		OldStatus: service.Status,
		NewStatus: next,
		EventID:   eventID,
		ChangedAt: at,
	}
}
