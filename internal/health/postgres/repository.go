// Package postgres provides PostgreSQL implementation of health repository.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bissquit/healthboard/internal/domain"
	"github.com/bissquit/healthboard/internal/health"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// querier is an interface for database operations that both *pgxpool.Pool and pgx.Tx implement.
type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository implements health.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const serviceColumns = `id, name, slug, description, status, "order", created_at, updated_at`

const eventColumns = `id, status, peak_status, description, message, created_at, updated_at`

func scanService(row pgx.Row) (*domain.Service, error) {
	var s domain.Service
	err := row.Scan(&s.ID, &s.Name, &s.Slug, &s.Description, &s.Status, &s.Order, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func scanEvent(row pgx.Row) (*domain.Event, error) {
	var e domain.Event
	err := row.Scan(&e.ID, &e.Status, &e.PeakStatus, &e.Description, &e.Message, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// CreateService creates a new service in the database.
func (r *Repository) CreateService(ctx context.Context, service *domain.Service) error {
	query := `
		INSERT INTO services (name, slug, description, status, "order")
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		service.Name,
		service.Slug,
		service.Description,
		service.Status,
		service.Order,
	).Scan(&service.ID, &service.CreatedAt, &service.UpdatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return health.ErrSlugExists
		}
		return fmt.Errorf("create service: %w", err)
	}
	return nil
}

// UpsertService inserts a service or overwrites the one with the same slug.
func (r *Repository) UpsertService(ctx context.Context, service *domain.Service) error {
	query := `
		INSERT INTO services (name, slug, description, status, "order")
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (slug) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			status = EXCLUDED.status,
			"order" = EXCLUDED."order",
			updated_at = NOW()
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		service.Name,
		service.Slug,
		service.Description,
		service.Status,
		service.Order,
	).Scan(&service.ID, &service.CreatedAt, &service.UpdatedAt)

	if err != nil {
		return fmt.Errorf("upsert service: %w", err)
	}
	return nil
}

// GetServiceBySlug retrieves a service by its slug.
func (r *Repository) GetServiceBySlug(ctx context.Context, slug string) (*domain.Service, error) {
	query := `SELECT ` + serviceColumns + ` FROM services WHERE slug = $1`
	service, err := scanService(r.db.QueryRow(ctx, query, slug))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, health.ErrServiceNotFound
		}
		return nil, fmt.Errorf("get service by slug: %w", err)
	}
	return service, nil
}

// GetServiceByID retrieves a service by its ID.
func (r *Repository) GetServiceByID(ctx context.Context, id string) (*domain.Service, error) {
	return r.getServiceByID(ctx, r.db, id, false)
}

// GetServiceByIDTx retrieves a service by its ID within a transaction.
func (r *Repository) GetServiceByIDTx(ctx context.Context, tx pgx.Tx, id string) (*domain.Service, error) {
	return r.getServiceByID(ctx, tx, id, false)
}

func (r *Repository) getServiceByID(ctx context.Context, q querier, id string, lock bool) (*domain.Service, error) {
	query := `SELECT ` + serviceColumns + ` FROM services WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}
	service, err := scanService(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, health.ErrServiceNotFound
		}
		return nil, fmt.Errorf("get service by id: %w", err)
	}
	return service, nil
}

// ListServices retrieves all services ordered for display.
func (r *Repository) ListServices(ctx context.Context) ([]domain.Service, error) {
	query := `SELECT ` + serviceColumns + ` FROM services ORDER BY "order", name`
	return r.queryServices(ctx, query)
}

// GetServicesByIDs retrieves the given services ordered for display.
func (r *Repository) GetServicesByIDs(ctx context.Context, ids []string) ([]domain.Service, error) {
	if len(ids) == 0 {
		return []domain.Service{}, nil
	}
	query := `SELECT ` + serviceColumns + ` FROM services WHERE id = ANY($1) ORDER BY "order", name`
	return r.queryServices(ctx, query, ids)
}

func (r *Repository) queryServices(ctx context.Context, query string, args ...any) ([]domain.Service, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query services: %w", err)
	}
	defer rows.Close()

	services := make([]domain.Service, 0)
	for rows.Next() {
		service, err := scanService(rows)
		if err != nil {
			return nil, fmt.Errorf("scan service: %w", err)
		}
		services = append(services, *service)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate services: %w", err)
	}
	return services, nil
}

// GetEvent retrieves an event by ID together with its services.
func (r *Repository) GetEvent(ctx context.Context, id string) (*domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`
	event, err := scanEvent(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, health.ErrEventNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}

	serviceIDs, err := r.getEventServiceIDs(ctx, r.db, id)
	if err != nil {
		return nil, err
	}
	event.ServiceIDs = serviceIDs

	return event, nil
}

// ListEvents retrieves events with optional filters, newest first.
func (r *Repository) ListEvents(ctx context.Context, filter health.EventFilter) ([]*domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events e WHERE 1=1`
	args := []interface{}{}
	argNum := 1

	if filter.OpenOnly {
		query += " AND e.status > 0"
	}

	if filter.ServiceID != nil {
		query += fmt.Sprintf(" AND EXISTS (SELECT 1 FROM event_services es WHERE es.event_id = e.id AND es.service_id = $%d)", argNum)
		args = append(args, *filter.ServiceID)
		argNum++
	}

	query += " ORDER BY e.created_at DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argNum)
		args = append(args, filter.Limit)
		argNum++
	}

	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argNum)
		args = append(args, filter.Offset)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	events := make([]*domain.Event, 0)
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	for _, event := range events {
		serviceIDs, err := r.getEventServiceIDs(ctx, r.db, event.ID)
		if err != nil {
			return nil, err
		}
		event.ServiceIDs = serviceIDs
	}

	return events, nil
}

// ListEventUpdates retrieves the update log of an event, newest first.
func (r *Repository) ListEventUpdates(ctx context.Context, eventID string) ([]*domain.EventUpdate, error) {
	query := `
		SELECT id, seq, event_id, status, message, created_at
		FROM event_updates
		WHERE event_id = $1
		ORDER BY created_at DESC, seq DESC
	`
	rows, err := r.db.Query(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("list event updates: %w", err)
	}
	defer rows.Close()

	updates := make([]*domain.EventUpdate, 0)
	for rows.Next() {
		var u domain.EventUpdate
		if err := rows.Scan(&u.ID, &u.Sequence, &u.EventID, &u.Status, &u.Message, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event update: %w", err)
		}
		updates = append(updates, &u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate event updates: %w", err)
	}
	return updates, nil
}

// GetOpenEventForService returns the most recent open event affecting a service.
func (r *Repository) GetOpenEventForService(ctx context.Context, serviceID string) (*domain.Event, error) {
	query := `
		SELECT e.id, e.status, e.peak_status, e.description, e.message, e.created_at, e.updated_at
		FROM events e
		JOIN event_services es ON es.event_id = e.id
		WHERE es.service_id = $1 AND e.status > 0
		ORDER BY e.created_at DESC
		LIMIT 1
	`
	event, err := scanEvent(r.db.QueryRow(ctx, query, serviceID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, health.ErrEventNotFound
		}
		return nil, fmt.Errorf("get open event: %w", err)
	}
	return event, nil
}

// BeginTx starts a new database transaction.
func (r *Repository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return r.db.Begin(ctx)
}

// CreateEventTx creates a new event within a transaction.
func (r *Repository) CreateEventTx(ctx context.Context, tx pgx.Tx, event *domain.Event) error {
	query := `
		INSERT INTO events (status, peak_status, description, message, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	err := tx.QueryRow(ctx, query,
		event.Status,
		event.PeakStatus,
		event.Description,
		event.Message,
		event.CreatedAt,
		event.UpdatedAt,
	).Scan(&event.ID)

	if err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

// GetEventForUpdateTx retrieves an event and locks its row until the transaction ends.
func (r *Repository) GetEventForUpdateTx(ctx context.Context, tx pgx.Tx, id string) (*domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1 FOR UPDATE`
	event, err := scanEvent(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, health.ErrEventNotFound
		}
		return nil, fmt.Errorf("get event for update: %w", err)
	}
	return event, nil
}

// UpdateEventStatusTx stores the rolled-up state of an event.
func (r *Repository) UpdateEventStatusTx(ctx context.Context, tx pgx.Tx, event *domain.Event) error {
	query := `
		UPDATE events
		SET status = $2, peak_status = GREATEST(peak_status, $3), description = $4, message = $5, updated_at = $6
		WHERE id = $1
	`
	result, err := tx.Exec(ctx, query,
		event.ID,
		event.Status,
		event.PeakStatus,
		event.Description,
		event.Message,
		event.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update event status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return health.ErrEventNotFound
	}
	return nil
}

// DeleteEventTx deletes an event. Updates and associations cascade.
func (r *Repository) DeleteEventTx(ctx context.Context, tx pgx.Tx, id string) error {
	result, err := tx.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if result.RowsAffected() == 0 {
		return health.ErrEventNotFound
	}
	return nil
}

// CreateEventUpdateTx appends an update within a transaction.
func (r *Repository) CreateEventUpdateTx(ctx context.Context, tx pgx.Tx, update *domain.EventUpdate) error {
	query := `
		INSERT INTO event_updates (event_id, status, message, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, seq
	`
	err := tx.QueryRow(ctx, query,
		update.EventID,
		update.Status,
		update.Message,
		update.CreatedAt,
	).Scan(&update.ID, &update.Sequence)

	if err != nil {
		return fmt.Errorf("create event update: %w", err)
	}
	return nil
}

// GetLatestEventUpdateTx returns the latest update of an event by created_on,
// breaking ties by insertion sequence.
func (r *Repository) GetLatestEventUpdateTx(ctx context.Context, tx pgx.Tx, eventID string) (*domain.EventUpdate, error) {
	query := `
		SELECT id, seq, event_id, status, message, created_at
		FROM event_updates
		WHERE event_id = $1
		ORDER BY created_at DESC, seq DESC
		LIMIT 1
	`
	var u domain.EventUpdate
	err := tx.QueryRow(ctx, query, eventID).Scan(&u.ID, &u.Sequence, &u.EventID, &u.Status, &u.Message, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, health.ErrEventNotFound
		}
		return nil, fmt.Errorf("get latest event update: %w", err)
	}
	return &u, nil
}

// AddEventServicesTx associates services with an event and returns the IDs
// that were not associated before.
func (r *Repository) AddEventServicesTx(ctx context.Context, tx pgx.Tx, eventID string, serviceIDs []string) ([]string, error) {
	query := `INSERT INTO event_services (event_id, service_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`

	added := make([]string, 0, len(serviceIDs))
	for _, serviceID := range serviceIDs {
		result, err := tx.Exec(ctx, query, eventID, serviceID)
		if err != nil {
			return nil, fmt.Errorf("add service %s: %w", serviceID, err)
		}
		if result.RowsAffected() > 0 {
			added = append(added, serviceID)
		}
	}
	return added, nil
}

// RemoveEventServicesTx dissociates services from an event and returns the
// IDs that were actually associated.
func (r *Repository) RemoveEventServicesTx(ctx context.Context, tx pgx.Tx, eventID string, serviceIDs []string) ([]string, error) {
	query := `DELETE FROM event_services WHERE event_id = $1 AND service_id = $2`

	removed := make([]string, 0, len(serviceIDs))
	for _, serviceID := range serviceIDs {
		result, err := tx.Exec(ctx, query, eventID, serviceID)
		if err != nil {
			return nil, fmt.Errorf("remove service %s: %w", serviceID, err)
		}
		if result.RowsAffected() > 0 {
			removed = append(removed, serviceID)
		}
	}
	return removed, nil
}

// GetEventServiceIDsTx retrieves the service IDs of an event within a transaction.
func (r *Repository) GetEventServiceIDsTx(ctx context.Context, tx pgx.Tx, eventID string) ([]string, error) {
	return r.getEventServiceIDs(ctx, tx, eventID)
}

func (r *Repository) getEventServiceIDs(ctx context.Context, q querier, eventID string) ([]string, error) {
	query := `SELECT service_id FROM event_services WHERE event_id = $1 ORDER BY service_id`
	rows, err := q.Query(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("get event service ids: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan service id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate service ids: %w", err)
	}
	return ids, nil
}

// TouchServiceTx moves a service's updated_on forward to at. Older values are ignored.
func (r *Repository) TouchServiceTx(ctx context.Context, tx pgx.Tx, serviceID string, at time.Time) (bool, error) {
	query := `UPDATE services SET updated_at = $2 WHERE id = $1 AND updated_at < $2`
	result, err := tx.Exec(ctx, query, serviceID, at)
	if err != nil {
		return false, fmt.Errorf("touch service: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// RaiseServiceStatusTx sets a service status when it is currently less severe.
func (r *Repository) RaiseServiceStatusTx(ctx context.Context, tx pgx.Tx, serviceID string, status domain.StatusLevel) (bool, error) {
	query := `UPDATE services SET status = $2 WHERE id = $1 AND status < $2`
	result, err := tx.Exec(ctx, query, serviceID, status)
	if err != nil {
		return false, fmt.Errorf("raise service status: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// SwapServiceStatusTx sets a service status only if it still equals expected.
func (r *Repository) SwapServiceStatusTx(ctx context.Context, tx pgx.Tx, serviceID string, expected, next domain.StatusLevel) (bool, error) {
	query := `UPDATE services SET status = $3 WHERE id = $1 AND status = $2`
	result, err := tx.Exec(ctx, query, serviceID, expected, next)
	if err != nil {
		return false, fmt.Errorf("swap service status: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// MaxOtherEventStatusTx returns the most severe status among events other
// than excludeEventID that are associated with the service.
func (r *Repository) MaxOtherEventStatusTx(ctx context.Context, tx pgx.Tx, serviceID, excludeEventID string) (domain.StatusLevel, error) {
	query := `
		SELECT COALESCE(MAX(e.status), 0)
		FROM events e
		JOIN event_services es ON es.event_id = e.id
		WHERE es.service_id = $1 AND e.id <> $2
	`
	var status domain.StatusLevel
	if err := tx.QueryRow(ctx, query, serviceID, excludeEventID).Scan(&status); err != nil {
		return domain.StatusGreen, fmt.Errorf("max other event status: %w", err)
	}
	return status, nil
}
