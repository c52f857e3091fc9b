package health

import (
	"context"
	"errors"
	"fmt"

	"github.com/bissquit/healthboard/internal/domain"
	"github.com/bissquit/healthboard/internal/pkg/ctxlog"
)

// ReportCheckResult records the outcome of a health check for the service
// identified by slug.
//
// While the service has an open event, a result with a different status is
// appended to it as an update. Without an open event, a new one is opened when
// the result is elevated, or when the service has not yet been confirmed green.
//
// Reports are serialized within a Service, so two results for the same slug
// never both open an event. Processes sharing a database do not coordinate.
func (s *Service) ReportCheckResult(ctx context.Context, slug string, status domain.StatusLevel, message string) error {
	if !status.IsValid() {
		return ErrInvalidStatus
	}

	s.reportMu.Lock()
	defer s.reportMu.Unlock()

	serviceID, err := s.resolveSlug(ctx, slug)
	if err != nil {
		return err
	}

	service, err := s.repo.GetServiceByID(ctx, serviceID)
	if err != nil {
		return fmt.Errorf("get service: %w", err)
	}

	if message == "" {
		message = EventMessage(status, []string{service.Name})
	}

	open, err := s.repo.GetOpenEventForService(ctx, serviceID)
	if err != nil && !errors.Is(err, ErrEventNotFound) {
		return fmt.Errorf("get open event: %w", err)
	}

	if open != nil {
		if open.Status == status {
			return nil
		}
		_, err := s.AddUpdate(ctx, AddUpdateInput{
			EventID: open.ID,
			Status:  status,
			Message: message,
		})
		return err
	}

	if !status.IsElevated() && service.Status == domain.StatusGreen {
		return nil
	}

	event, err := s.CreateEvent(ctx, CreateEventInput{
		ServiceSlugs: []string{slug},
		Status:       &status,
		Message:      message,
	})
	if err != nil {
		return err
	}

	ctxlog.FromContext(ctx).Info("opened event from health check",
		"service", slug,
		"event_id", event.ID,
		"status", status.String(),
	)
	return nil
}
