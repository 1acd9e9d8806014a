package memory

import (
	"context"
	"testing"
	"time"

	"crm/internal/core"
	"crm/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time {
	c.t = c.t.Add(time.Minute)
	return c.t
}

func newStore() *Store {
	c := &fakeClock{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	return NewWithClock(c.now)
}

func TestCustomerCRUD(t *testing.T) {
	ctx := context.Background()
	s := newStore()

	c, err := s.CreateCustomer(ctx, core.Customer{Name: "Ada", Email: "ada@example.com", Type: core.Residential})
	require.NoError(t, err)
	assert.NotZero(t, c.ID)
	assert.False(t, c.CreatedAt.IsZero())

	c.Name = "Ada L."
	updated, err := s.UpdateCustomer(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, c.CreatedAt, updated.CreatedAt)
	assert.True(t, updated.UpdatedAt.After(c.UpdatedAt))

	got, err := s.GetCustomer(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada L.", got.Name)

	require.NoError(t, s.DeleteCustomer(ctx, c.ID))
	_, err = s.GetCustomer(ctx, c.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.ErrorIs(t, s.DeleteCustomer(ctx, c.ID), core.ErrNotFound)
}

func TestDeleteCustomerWithRelations(t *testing.T) {
	ctx := context.Background()
	s := newStore()

	c, _ := s.CreateCustomer(ctx, core.Customer{Name: "Acme", Type: core.Commercial})
	p, err := s.CreateProject(ctx, core.Project{Name: "Roof", Status: core.ProjectPlanned, CustomerID: c.ID})
	require.NoError(t, err)

	assert.ErrorIs(t, s.DeleteCustomer(ctx, c.ID), core.ErrCustomerHasRelations)

	require.NoError(t, s.DeleteProject(ctx, p.ID))
	id := c.ID
	_, err = s.CreateLead(ctx, core.Lead{Name: "L", Status: core.LeadNew, CustomerID: &id})
	require.NoError(t, err)
	assert.ErrorIs(t, s.DeleteCustomer(ctx, c.ID), core.ErrCustomerHasRelations)
}

func TestListCustomersSearchSortPage(t *testing.T) {
	ctx := context.Background()
	s := newStore()
	for _, name := range []string{"Charlie", "alice", "Bob"} {
		_, err := s.CreateCustomer(ctx, core.Customer{Name: name, Type: core.Residential})
		require.NoError(t, err)
	}
	_, _ = s.CreateCustomer(ctx, core.Customer{Name: "Big Corp", Type: core.Commercial, Phone: "555-0100"})

	all, total, err := s.ListCustomers(ctx, ports.CustomerFilter{})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	assert.Equal(t, "Big Corp", all[0].Name, "default is most recently updated first")

	byName, _, _ := s.ListCustomers(ctx, ports.CustomerFilter{SortBy: "name", Asc: true, Type: core.Residential})
	require.Len(t, byName, 3)
	assert.Equal(t, []string{"Bob", "Charlie", "alice"}, []string{byName[0].Name, byName[1].Name, byName[2].Name})

	found, total, _ := s.ListCustomers(ctx, ports.CustomerFilter{Search: "0100"})
	assert.Equal(t, 1, total)
	assert.Equal(t, "Big Corp", found[0].Name)

	paged, total, _ := s.ListCustomers(ctx, ports.CustomerFilter{SortBy: "name", Asc: true, Offset: 2, Limit: 1})
	assert.Equal(t, 4, total)
	require.Len(t, paged, 1)
	assert.Equal(t, "Charlie", paged[0].Name)

	empty, _, _ := s.ListCustomers(ctx, ports.CustomerFilter{Offset: 10})
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestListLeadsFiltersAndSorts(t *testing.T) {
	ctx := context.Background()
	s := newStore()
	score := func(v int) *int { return &v }
	jan := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC)

	_, _ = s.CreateLead(ctx, core.Lead{Name: "Zed", Status: core.LeadNew, LeadScore: score(40), CreatedAt: jan})
	_, _ = s.CreateLead(ctx, core.Lead{Name: "Amy", Status: core.LeadQualified, LeadScore: score(90), CreatedAt: feb})
	_, _ = s.CreateLead(ctx, core.Lead{Name: "Max", Status: core.LeadNew, CreatedAt: feb.Add(time.Hour)})

	recent, total, err := s.ListLeads(ctx, ports.LeadFilter{})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, "Max", recent[0].Name)
	assert.Equal(t, jan, recent[2].CreatedAt, "seeded CreatedAt is preserved")

	byScore, _, _ := s.ListLeads(ctx, ports.LeadFilter{Sort: "leadScore"})
	assert.Equal(t, []string{"Amy", "Zed", "Max"}, []string{byScore[0].Name, byScore[1].Name, byScore[2].Name})

	news, total, _ := s.ListLeads(ctx, ports.LeadFilter{Status: core.LeadNew, Sort: "name"})
	assert.Equal(t, 2, total)
	assert.Equal(t, "Max", news[0].Name)

	inFeb, total, _ := s.ListLeads(ctx, ports.LeadFilter{
		CreatedFrom: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
		CreatedTo:   time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	})
	assert.Equal(t, 2, total)
	assert.Len(t, inFeb, 2)
}

func TestLeadRequiresExistingCustomer(t *testing.T) {
	missing := int64(99)
	_, err := newStore().CreateLead(context.Background(), core.Lead{Name: "x", Status: core.LeadNew, CustomerID: &missing})
	assert.ErrorIs(t, err, core.ErrMissingCustomer)
}

func TestAppointmentsRangeAndSync(t *testing.T) {
	ctx := context.Background()
	s := newStore()
	c, _ := s.CreateCustomer(ctx, core.Customer{Name: "C", Type: core.Residential})
	p, _ := s.CreateProject(ctx, core.Project{Name: "P", Status: core.ProjectInProgress, CustomerID: c.ID})

	_, err := s.CreateAppointment(ctx, core.Appointment{Type: core.Inspection, Date: time.Now(), ProjectID: 404})
	assert.ErrorIs(t, err, core.ErrMissingProject)

	day := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	late, _ := s.CreateAppointment(ctx, core.Appointment{Type: core.Inspection, Date: day.Add(15 * time.Hour), ProjectID: p.ID})
	early, _ := s.CreateAppointment(ctx, core.Appointment{Type: core.Maintenance, Date: day.Add(9 * time.Hour), ProjectID: p.ID})
	_, _ = s.CreateAppointment(ctx, core.Appointment{Type: core.FollowUp, Date: day.AddDate(0, 0, 1), ProjectID: p.ID})

	got, err := s.ListAppointments(ctx, ports.AppointmentFilter{From: day, To: day.AddDate(0, 0, 1)})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, early.ID, got[0].ID)
	assert.Equal(t, late.ID, got[1].ID)

	require.NoError(t, s.SetExternalID(ctx, early.ID, "evt-1"))
	unsynced, _ := s.ListAppointments(ctx, ports.AppointmentFilter{UnsyncedOnly: true})
	assert.Len(t, unsynced, 2)

	early.Notes = "bring ladder"
	updated, err := s.UpdateAppointment(ctx, early)
	require.NoError(t, err)
	assert.Equal(t, "evt-1", updated.ExternalID, "updates keep the calendar link")

	require.NoError(t, s.DeleteProject(ctx, p.ID))
	left, _ := s.ListAppointments(ctx, ports.AppointmentFilter{})
	assert.Empty(t, left)
}
