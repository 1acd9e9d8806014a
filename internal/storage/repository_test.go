package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"crm/internal/core"
	"crm/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "crm.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	clock := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	return repo.WithClock(func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	})
}

func TestMigrationVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crm.db")
	v, _, err := MigrationVersion(path)
	require.NoError(t, err)
	assert.Equal(t, uint(0), v)

	require.NoError(t, RunMigrations(path))
	require.NoError(t, RunMigrations(path), "second run is a no-op")
	v, dirty, err := MigrationVersion(path)
	require.NoError(t, err)
	assert.Equal(t, uint(1), v)
	assert.False(t, dirty)

	require.NoError(t, RollbackMigrations(path, 1))
	assert.Error(t, RollbackMigrations(path, 0))
}

func TestSQLiteCustomerLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	require.NoError(t, repo.Ping(ctx))

	c, err := repo.CreateCustomer(ctx, core.Customer{Name: "Sunny Homes", Email: "ops@sunny.test", Type: core.Commercial})
	require.NoError(t, err)
	require.NotZero(t, c.ID)

	c.Phone = "555-0101"
	updated, err := repo.UpdateCustomer(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, "555-0101", updated.Phone)
	assert.Equal(t, c.CreatedAt, updated.CreatedAt)

	items, total, err := repo.ListCustomers(ctx, ports.CustomerFilter{Search: "SUNNY"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, c.ID, items[0].ID)

	_, err = repo.UpdateCustomer(ctx, core.Customer{ID: 999, Name: "x", Type: core.Residential})
	assert.ErrorIs(t, err, core.ErrNotFound)

	require.NoError(t, repo.DeleteCustomer(ctx, c.ID))
	_, err = repo.GetCustomer(ctx, c.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestSQLiteCustomerPagingAndSort(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	for _, n := range []string{"Delta", "Alpha", "Charlie", "Bravo"} {
		_, err := repo.CreateCustomer(ctx, core.Customer{Name: n, Type: core.Residential})
		require.NoError(t, err)
	}

	page, total, err := repo.ListCustomers(ctx, ports.CustomerFilter{SortBy: "name", Asc: true, Offset: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	require.Len(t, page, 2)
	assert.Equal(t, "Bravo", page[0].Name)
	assert.Equal(t, "Charlie", page[1].Name)

	recent, _, err := repo.ListCustomers(ctx, ports.CustomerFilter{})
	require.NoError(t, err)
	assert.Equal(t, "Bravo", recent[0].Name)
}

func TestSQLiteDeleteCustomerWithRelations(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	c, err := repo.CreateCustomer(ctx, core.Customer{Name: "Owner", Type: core.Residential})
	require.NoError(t, err)
	_, err = repo.CreateProject(ctx, core.Project{Name: "Array", Status: core.ProjectPlanned, CustomerID: c.ID})
	require.NoError(t, err)

	err = repo.DeleteCustomer(ctx, c.ID)
	assert.ErrorIs(t, err, core.ErrCustomerHasRelations)
	assert.ErrorIs(t, repo.DeleteCustomer(ctx, 12345), core.ErrNotFound)
}

func TestSQLiteLeads(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	score := func(v int) *int { return &v }

	c, _ := repo.CreateCustomer(ctx, core.Customer{Name: "Won", Type: core.Residential})
	cid := c.ID
	jan := time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC)

	_, err := repo.CreateLead(ctx, core.Lead{Name: "Low", Phone: "1", Status: core.LeadNew, LeadScore: score(10), CreatedAt: jan})
	require.NoError(t, err)
	_, err = repo.CreateLead(ctx, core.Lead{Name: "High", Phone: "2", Status: core.LeadClosedWon, LeadScore: score(95), CustomerID: &cid})
	require.NoError(t, err)
	_, err = repo.CreateLead(ctx, core.Lead{Name: "None", Phone: "3", Status: core.LeadNew})
	require.NoError(t, err)

	missing := int64(404)
	_, err = repo.CreateLead(ctx, core.Lead{Name: "Ghost", Phone: "4", Status: core.LeadNew, CustomerID: &missing})
	assert.ErrorIs(t, err, core.ErrMissingCustomer)

	byScore, total, err := repo.ListLeads(ctx, ports.LeadFilter{Sort: "leadScore"})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, []string{"High", "Low", "None"}, []string{byScore[0].Name, byScore[1].Name, byScore[2].Name})
	require.NotNil(t, byScore[0].CustomerID)
	assert.Equal(t, cid, *byScore[0].CustomerID)
	assert.Nil(t, byScore[2].LeadScore)

	inJan, total, err := repo.ListLeads(ctx, ports.LeadFilter{
		CreatedFrom: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		CreatedTo:   time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, jan, inJan[0].CreatedAt)

	linked, _, err := repo.ListLeads(ctx, ports.LeadFilter{CustomerID: cid})
	require.NoError(t, err)
	assert.Len(t, linked, 1)
}

func TestSQLiteProjectsAndAppointments(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	c, _ := repo.CreateCustomer(ctx, core.Customer{Name: "C", Type: core.Residential})
	start := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	budget := core.Money{Cents: 2_500_000}

	p, err := repo.CreateProject(ctx, core.Project{
		Name: "Roof array", Status: core.ProjectInProgress, Priority: core.PriorityHigh,
		Budget: &budget, StartDate: &start, CustomerID: c.ID,
	})
	require.NoError(t, err)
	require.NotNil(t, p.Budget)
	assert.Equal(t, int64(2_500_000), p.Budget.Cents)
	assert.Nil(t, p.Cost)
	assert.True(t, start.Equal(*p.StartDate))

	_, err = repo.CreateProject(ctx, core.Project{Name: "Orphan", Status: core.ProjectPlanned, CustomerID: 77})
	assert.ErrorIs(t, err, core.ErrMissingCustomer)

	active, err := repo.ListProjects(ctx, ports.ProjectFilter{Statuses: []core.ProjectStatus{core.ProjectInProgress, core.ProjectInstallation}})
	require.NoError(t, err)
	assert.Len(t, active, 1)

	a, err := repo.CreateAppointment(ctx, core.Appointment{Type: core.SiteAssessment, Date: start.Add(10 * time.Hour), ProjectID: p.ID})
	require.NoError(t, err)
	_, err = repo.CreateAppointment(ctx, core.Appointment{Type: core.SiteAssessment, Date: start, ProjectID: 999})
	assert.ErrorIs(t, err, core.ErrMissingProject)

	require.NoError(t, repo.SetExternalID(ctx, a.ID, "evt-42"))
	a.Notes = "call first"
	a, err = repo.UpdateAppointment(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, "evt-42", a.ExternalID)
	assert.Equal(t, "call first", a.Notes)

	unsynced, err := repo.ListAppointments(ctx, ports.AppointmentFilter{UnsyncedOnly: true})
	require.NoError(t, err)
	assert.Empty(t, unsynced)

	inRange, err := repo.ListAppointments(ctx, ports.AppointmentFilter{From: start, To: start.AddDate(0, 0, 1)})
	require.NoError(t, err)
	assert.Len(t, inRange, 1)

	require.NoError(t, repo.DeleteProject(ctx, p.ID))
	_, err = repo.GetAppointment(ctx, a.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
}
