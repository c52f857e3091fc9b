//go:build integration

package postgres_test

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"github.com/bissquit/healthboard/internal/domain"
	"github.com/bissquit/healthboard/internal/health"
	healthpostgres "github.com/bissquit/healthboard/internal/health/postgres"
	"github.com/bissquit/healthboard/internal/pkg/postgres"
	"github.com/bissquit/healthboard/internal/testutil"
	"github.com/bissquit/healthboard/migrations"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testDB *pgxpool.Pool

func TestMain(m *testing.M) {
	ctx := context.Background()

	pg, err := testutil.NewPostgresContainer(ctx)
	if err != nil {
		log.Fatalf("start postgres: %v", err)
	}

	if err := postgres.Migrate(migrations.FS, pg.ConnectionString, postgres.MigrateUp); err != nil {
		log.Fatalf("run migrations: %v", err)
	}

	testDB, err = postgres.Connect(ctx, postgres.Config{URL: pg.ConnectionString, MaxOpenConns: 5, ConnectAttempts: 3})
	if err != nil {
		log.Fatalf("connect: %v", err)
	}

	code := m.Run()

	testDB.Close()
	if err := pg.Terminate(ctx); err != nil {
		log.Printf("terminate postgres: %v", err)
	}
	os.Exit(code)
}

func newService(t *testing.T) *health.Service {
	t.Helper()
	return health.NewService(healthpostgres.NewRepository(testDB), nil, nil)
}

// uniqueSlug keeps tests independent on the shared database.
func uniqueSlug(prefix string) string {
	return prefix + "-" + uuid.NewString()[:8]
}

func createService(t *testing.T, svc *health.Service, status domain.StatusLevel) *domain.Service {
	t.Helper()
	slug := uniqueSlug("svc")
	s, err := svc.CreateService(context.Background(), health.CreateServiceInput{Name: slug, Slug: slug, Status: status})
	require.NoError(t, err)
	return s
}

func statusOf(t *testing.T, svc *health.Service, slug string) domain.StatusLevel {
	t.Helper()
	s, err := svc.GetServiceBySlug(context.Background(), slug)
	require.NoError(t, err)
	return s.Status
}

func ptr[T any](v T) *T { return &v }

func TestCreateService_DuplicateSlug(t *testing.T) {
	svc := newService(t)
	s := createService(t, svc, domain.StatusGreen)

	_, err := svc.CreateService(context.Background(), health.CreateServiceInput{Name: "dup", Slug: s.Slug})

	assert.ErrorIs(t, err, health.ErrSlugExists)
}

func TestEventLifecycle_RollsUpToServices(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	a := createService(t, svc, domain.StatusGreen)
	b := createService(t, svc, domain.StatusGreen)

	event, err := svc.CreateEvent(ctx, health.CreateEventInput{
		ServiceSlugs: []string{a.Slug, b.Slug},
		Status:       ptr(domain.StatusOrange),
		Message:      "investigating",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOrange, event.Status)
	assert.ElementsMatch(t, []string{a.ID, b.ID}, event.ServiceIDs)
	assert.Equal(t, domain.StatusOrange, statusOf(t, svc, a.Slug))
	assert.Equal(t, domain.StatusOrange, statusOf(t, svc, b.Slug))

	_, err = svc.AddUpdate(ctx, health.AddUpdateInput{EventID: event.ID, Status: domain.StatusGreen, Message: "fixed"})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusGreen, statusOf(t, svc, a.Slug))
	assert.Equal(t, domain.StatusGreen, statusOf(t, svc, b.Slug))

	got, err := svc.GetEvent(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusGreen, got.Status)
	assert.Equal(t, domain.StatusOrange, got.PeakStatus)

	updates, err := svc.ListEventUpdates(ctx, event.ID)
	require.NoError(t, err)
	require.Len(t, updates, 2)
	assert.Equal(t, "fixed", updates[0].Message)
}

func TestResolvingOneEventKeepsOtherEventStatus(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	s := createService(t, svc, domain.StatusGreen)

	outage, err := svc.CreateEvent(ctx, health.CreateEventInput{ServiceSlugs: []string{s.Slug}, Status: ptr(domain.StatusRed)})
	require.NoError(t, err)
	_, err = svc.CreateEvent(ctx, health.CreateEventInput{ServiceSlugs: []string{s.Slug}, Status: ptr(domain.StatusYellow)})
	require.NoError(t, err)
	require.Equal(t, domain.StatusRed, statusOf(t, svc, s.Slug))

	_, err = svc.AddUpdate(ctx, health.AddUpdateInput{EventID: outage.ID, Status: domain.StatusGreen})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusYellow, statusOf(t, svc, s.Slug))
}

func TestBackdatedUpdateDoesNotOverrideLatest(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	s := createService(t, svc, domain.StatusGreen)

	event, err := svc.CreateEvent(ctx, health.CreateEventInput{ServiceSlugs: []string{s.Slug}, Status: ptr(domain.StatusYellow)})
	require.NoError(t, err)

	past := time.Now().Add(-time.Hour)
	_, err = svc.AddUpdate(ctx, health.AddUpdateInput{EventID: event.ID, Status: domain.StatusRed, CreatedAt: &past})
	require.NoError(t, err)

	got, err := svc.GetEvent(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusYellow, got.Status)
	assert.Equal(t, domain.StatusYellow, statusOf(t, svc, s.Slug))
}

func TestAssociationChanges(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	a := createService(t, svc, domain.StatusGreen)
	b := createService(t, svc, domain.StatusGreen)

	event, err := svc.CreateEvent(ctx, health.CreateEventInput{ServiceSlugs: []string{a.Slug}, Status: ptr(domain.StatusRed)})
	require.NoError(t, err)

	event, err = svc.AddServices(ctx, event.ID, []string{b.Slug})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a.ID, b.ID}, event.ServiceIDs)
	assert.Equal(t, domain.StatusRed, statusOf(t, svc, b.Slug))

	event, err = svc.RemoveServices(ctx, event.ID, []string{a.Slug})
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID}, event.ServiceIDs)
	assert.Equal(t, domain.StatusGreen, statusOf(t, svc, a.Slug))

	require.NoError(t, svc.DeleteEvent(ctx, event.ID))
	assert.Equal(t, domain.StatusGreen, statusOf(t, svc, b.Slug))

	_, err = svc.GetEvent(ctx, event.ID)
	assert.ErrorIs(t, err, health.ErrEventNotFound)
}

func TestListEvents_Filters(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	s := createService(t, svc, domain.StatusGreen)

	closed, err := svc.CreateEvent(ctx, health.CreateEventInput{ServiceSlugs: []string{s.Slug}, Status: ptr(domain.StatusGreen)})
	require.NoError(t, err)
	open, err := svc.CreateEvent(ctx, health.CreateEventInput{ServiceSlugs: []string{s.Slug}, Status: ptr(domain.StatusOrange)})
	require.NoError(t, err)

	all, err := svc.ListEvents(ctx, health.EventFilter{ServiceID: &s.ID})
	require.NoError(t, err)
	require.Len(t, all, 2)

	openOnly, err := svc.ListEvents(ctx, health.EventFilter{ServiceID: &s.ID, OpenOnly: true})
	require.NoError(t, err)
	require.Len(t, openOnly, 1)
	assert.Equal(t, open.ID, openOnly[0].ID)
	assert.NotEqual(t, closed.ID, openOnly[0].ID)
}

func TestReportCheckResult_OpensAndClosesEvents(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	services, err := svc.RegisterBuiltinServices(ctx)
	require.NoError(t, err)
	require.Len(t, services, len(health.BuiltinServices))
	assert.Equal(t, domain.StatusRed, statusOf(t, svc, "database"))

	require.NoError(t, svc.ReportCheckResult(ctx, "database", domain.StatusGreen, ""))
	assert.Equal(t, domain.StatusGreen, statusOf(t, svc, "database"))

	require.NoError(t, svc.ReportCheckResult(ctx, "database", domain.StatusRed, "Database Error"))
	assert.Equal(t, domain.StatusRed, statusOf(t, svc, "database"))

	db, err := svc.GetServiceBySlug(ctx, "database")
	require.NoError(t, err)
	open, err := svc.ListEvents(ctx, health.EventFilter{ServiceID: &db.ID, OpenOnly: true})
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "Database Error", open[0].Message)

	// A repeated result does not append to the open event.
	require.NoError(t, svc.ReportCheckResult(ctx, "database", domain.StatusRed, "Database Error"))
	updates, err := svc.ListEventUpdates(ctx, open[0].ID)
	require.NoError(t, err)
	assert.Len(t, updates, 1)

	require.NoError(t, svc.ReportCheckResult(ctx, "database", domain.StatusGreen, ""))
	assert.Equal(t, domain.StatusGreen, statusOf(t, svc, "database"))

	err = svc.ReportCheckResult(ctx, "no-such-check", domain.StatusRed, "")
	assert.ErrorIs(t, err, health.ErrServiceNotFound)
}
