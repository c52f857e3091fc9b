package health

import (
	"context"
	"fmt"

	"github.com/bissquit/healthboard/internal/domain"
)

// BuiltinService describes one of the services every deployment monitors.
type BuiltinService struct {
	Name  string
	Slug  string
	Order int
}

// BuiltinServices is the fixed catalogue backed by the bundled health checks.
var BuiltinServices = []BuiltinService{
	{Name: "Database", Slug: "database", Order: 0},
	{Name: "Cache", Slug: "cache", Order: 1},
	{Name: "Disk", Slug: "disk", Order: 2},
	{Name: "Memory", Slug: "memory", Order: 3},
	{Name: "Storage", Slug: "storage", Order: 4},
	{Name: "Periodic Tasks", Slug: "celery", Order: 5},
	{Name: "Rabbit MQ", Slug: "rabbit-mq", Order: 6},
}

// RegisterBuiltinServices upserts the built-in services keyed by slug and
// resets each of them to red until its first check passes.
func (s *Service) RegisterBuiltinServices(ctx context.Context) ([]domain.Service, error) {
	services := make([]domain.Service, 0, len(BuiltinServices))

	for _, b := range BuiltinServices {
		service := &domain.Service{
			Name:   b.Name,
			Slug:   b.Slug,
			Status: domain.StatusRed,
			Order:  b.Order,
		}
		if err := s.repo.UpsertService(ctx, service); err != nil {
			return nil, fmt.Errorf("register service %s: %w", b.Slug, err)
		}

		if s.slugs != nil {
			s.slugs.Add(service.Slug, service.ID)
		}
		recordServiceStatus(service.Slug, service.Status)
		services = append(services, *service)
	}

	return services, nil
}
