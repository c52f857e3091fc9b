package health

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/bissquit/healthboard/internal/domain"
	"github.com/jackc/pgx/v5"
)

var baseTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// fakeTx satisfies pgx.Tx for the in-memory repository, which ignores transactions.
type fakeTx struct {
	pgx.Tx
}

func (fakeTx) Commit(context.Context) error   { return nil }
func (fakeTx) Rollback(context.Context) error { return nil }

// mockRepository implements Repository in memory for testing.
type mockRepository struct {
	services      map[string]*domain.Service
	events        map[string]*domain.Event
	updates       map[string][]*domain.EventUpdate
	links         map[string]map[string]bool // event ID -> service IDs
	seq           int64
	nextID        int
	swapConflicts int
	beginErr      error
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		services: make(map[string]*domain.Service),
		events:   make(map[string]*domain.Event),
		updates:  make(map[string][]*domain.EventUpdate),
		links:    make(map[string]map[string]bool),
	}
}

func (m *mockRepository) id(prefix string) string {
	m.nextID++
	return fmt.Sprintf("%s-%d", prefix, m.nextID)
}

func (m *mockRepository) addService(name, slug string, status domain.StatusLevel) *domain.Service {
	return m.addServiceAt(name, slug, status, 0)
}

func (m *mockRepository) addServiceAt(name, slug string, status domain.StatusLevel, order int) *domain.Service {
	svc := &domain.Service{Name: name, Slug: slug, Status: status, Order: order}
	_ = m.CreateService(context.Background(), svc)
	return svc
}

func (m *mockRepository) CreateService(_ context.Context, service *domain.Service) error {
	for _, s := range m.services {
		if s.Slug == service.Slug {
			return ErrSlugExists
		}
	}
	service.ID = m.id("svc")
	service.CreatedAt = baseTime
	service.UpdatedAt = baseTime
	stored := *service
	m.services[service.ID] = &stored
	return nil
}

func (m *mockRepository) UpsertService(ctx context.Context, service *domain.Service) error {
	for _, s := range m.services {
		if s.Slug == service.Slug {
			s.Name = service.Name
			s.Description = service.Description
			s.Status = service.Status
			s.Order = service.Order
			*service = *s
			return nil
		}
	}
	return m.CreateService(ctx, service)
}

func (m *mockRepository) GetServiceBySlug(_ context.Context, slug string) (*domain.Service, error) {
	for _, s := range m.services {
		if s.Slug == slug {
			c := *s
			return &c, nil
		}
	}
	return nil, ErrServiceNotFound
}

func (m *mockRepository) GetServiceByID(_ context.Context, id string) (*domain.Service, error) {
	s, ok := m.services[id]
	if !ok {
		return nil, ErrServiceNotFound
	}
	c := *s
	return &c, nil
}

func (m *mockRepository) ListServices(_ context.Context) ([]domain.Service, error) {
	services := make([]domain.Service, 0, len(m.services))
	for _, s := range m.services {
		services = append(services, *s)
	}
	sort.Slice(services, func(i, j int) bool {
		if services[i].Order != services[j].Order {
			return services[i].Order < services[j].Order
		}
		return services[i].Name < services[j].Name
	})
	return services, nil
}

func (m *mockRepository) GetServicesByIDs(ctx context.Context, ids []string) ([]domain.Service, error) {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	all, _ := m.ListServices(ctx)
	services := make([]domain.Service, 0, len(ids))
	for _, s := range all {
		if want[s.ID] {
			services = append(services, s)
		}
	}
	return services, nil
}

func (m *mockRepository) GetEvent(_ context.Context, id string) (*domain.Event, error) {
	e, ok := m.events[id]
	if !ok {
		return nil, ErrEventNotFound
	}
	c := *e
	c.ServiceIDs = m.serviceIDs(id)
	return &c, nil
}

func (m *mockRepository) ListEvents(ctx context.Context, filter EventFilter) ([]*domain.Event, error) {
	events := make([]*domain.Event, 0)
	for id, e := range m.events {
		if filter.OpenOnly && !e.IsOpen() {
			continue
		}
		if filter.ServiceID != nil && !m.links[id][*filter.ServiceID] {
			continue
		}
		c, _ := m.GetEvent(ctx, id)
		events = append(events, c)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].CreatedAt.After(events[j].CreatedAt) })
	return events, nil
}

func (m *mockRepository) ListEventUpdates(_ context.Context, eventID string) ([]*domain.EventUpdate, error) {
	updates := append([]*domain.EventUpdate(nil), m.updates[eventID]...)
	sort.Slice(updates, func(i, j int) bool { return updates[i].IsAfter(updates[j]) })
	return updates, nil
}

func (m *mockRepository) GetOpenEventForService(ctx context.Context, serviceID string) (*domain.Event, error) {
	var open *domain.Event
	for id, e := range m.events {
		if !e.IsOpen() || !m.links[id][serviceID] {
			continue
		}
		if open == nil || e.CreatedAt.After(open.CreatedAt) {
			open, _ = m.GetEvent(ctx, id)
		}
	}
	if open == nil {
		return nil, ErrEventNotFound
	}
	return open, nil
}

func (m *mockRepository) BeginTx(_ context.Context) (pgx.Tx, error) {
	if m.beginErr != nil {
		return nil, m.beginErr
	}
	return fakeTx{}, nil
}

func (m *mockRepository) CreateEventTx(_ context.Context, _ pgx.Tx, event *domain.Event) error {
	event.ID = m.id("evt")
	stored := *event
	m.events[event.ID] = &stored
	m.links[event.ID] = make(map[string]bool)
	return nil
}

func (m *mockRepository) GetEventForUpdateTx(ctx context.Context, _ pgx.Tx, id string) (*domain.Event, error) {
	return m.GetEvent(ctx, id)
}

func (m *mockRepository) UpdateEventStatusTx(_ context.Context, _ pgx.Tx, event *domain.Event) error {
	stored, ok := m.events[event.ID]
	if !ok {
		return ErrEventNotFound
	}
	stored.Status = event.Status
	stored.PeakStatus = domain.MaxStatus(stored.PeakStatus, event.PeakStatus)
	stored.Description = event.Description
	stored.Message = event.Message
	stored.UpdatedAt = event.UpdatedAt
	return nil
}

func (m *mockRepository) DeleteEventTx(_ context.Context, _ pgx.Tx, id string) error {
	if _, ok := m.events[id]; !ok {
		return ErrEventNotFound
	}
	delete(m.events, id)
	delete(m.updates, id)
	delete(m.links, id)
	return nil
}

func (m *mockRepository) CreateEventUpdateTx(_ context.Context, _ pgx.Tx, update *domain.EventUpdate) error {
	m.seq++
	update.ID = m.id("upd")
	update.Sequence = m.seq
	stored := *update
	m.updates[update.EventID] = append(m.updates[update.EventID], &stored)
	return nil
}

func (m *mockRepository) GetLatestEventUpdateTx(_ context.Context, _ pgx.Tx, eventID string) (*domain.EventUpdate, error) {
	var latest *domain.EventUpdate
	for _, u := range m.updates[eventID] {
		if latest == nil || u.IsAfter(latest) {
			latest = u
		}
	}
	if latest == nil {
		return nil, ErrEventNotFound
	}
	c := *latest
	return &c, nil
}

func (m *mockRepository) AddEventServicesTx(_ context.Context, _ pgx.Tx, eventID string, serviceIDs []string) ([]string, error) {
	added := make([]string, 0, len(serviceIDs))
	for _, id := range serviceIDs {
		if m.links[eventID][id] {
			continue
		}
		m.links[eventID][id] = true
		added = append(added, id)
	}
	return added, nil
}

func (m *mockRepository) RemoveEventServicesTx(_ context.Context, _ pgx.Tx, eventID string, serviceIDs []string) ([]string, error) {
	removed := make([]string, 0, len(serviceIDs))
	for _, id := range serviceIDs {
		if !m.links[eventID][id] {
			continue
		}
		delete(m.links[eventID], id)
		removed = append(removed, id)
	}
	return removed, nil
}

func (m *mockRepository) GetEventServiceIDsTx(_ context.Context, _ pgx.Tx, eventID string) ([]string, error) {
	return m.serviceIDs(eventID), nil
}

func (m *mockRepository) serviceIDs(eventID string) []string {
	ids := make([]string, 0, len(m.links[eventID]))
	for id := range m.links[eventID] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (m *mockRepository) GetServiceByIDTx(ctx context.Context, _ pgx.Tx, id string) (*domain.Service, error) {
	return m.GetServiceByID(ctx, id)
}

func (m *mockRepository) TouchServiceTx(_ context.Context, _ pgx.Tx, serviceID string, at time.Time) (bool, error) {
	s := m.services[serviceID]
	if !s.UpdatedAt.Before(at) {
		return false, nil
	}
	s.UpdatedAt = at
	return true, nil
}

func (m *mockRepository) RaiseServiceStatusTx(_ context.Context, _ pgx.Tx, serviceID string, status domain.StatusLevel) (bool, error) {
	s := m.services[serviceID]
	if s.Status >= status {
		return false, nil
	}
	s.Status = status
	return true, nil
}

func (m *mockRepository) SwapServiceStatusTx(_ context.Context, _ pgx.Tx, serviceID string, expected, next domain.StatusLevel) (bool, error) {
	if m.swapConflicts > 0 {
		m.swapConflicts--
		return false, nil
	}
	s := m.services[serviceID]
	if s.Status != expected {
		return false, nil
	}
	s.Status = next
	return true, nil
}

func (m *mockRepository) MaxOtherEventStatusTx(_ context.Context, _ pgx.Tx, serviceID, excludeEventID string) (domain.StatusLevel, error) {
	highest := domain.StatusGreen
	for id, e := range m.events {
		if id == excludeEventID || !m.links[id][serviceID] {
			continue
		}
		highest = domain.MaxStatus(highest, e.Status)
	}
	return highest, nil
}

// mockNotifier records notified status changes.
type mockNotifier struct {
	changes []domain.ServiceStatusChange
}

func (n *mockNotifier) NotifyStatusChanges(_ context.Context, changes []domain.ServiceStatusChange) {
	n.changes = append(n.changes, changes...)
}
