package services

import (
	"context"
	"testing"
	"time"

	"crm/internal/core"
	"crm/internal/storage/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func ptr[T any](v T) *T { return &v }

// seed builds a small book of business around mid-March 2025.
func seed(t *testing.T, store *memory.Store) {
	t.Helper()
	ctx := context.Background()

	acme, err := store.CreateCustomer(ctx, core.Customer{Name: "Acme", Type: core.Commercial, CreatedAt: date(2025, 1, 5)})
	require.NoError(t, err)
	home, err := store.CreateCustomer(ctx, core.Customer{Name: "Home", Type: core.Residential, CreatedAt: date(2025, 3, 2)})
	require.NoError(t, err)
	_, err = store.CreateCustomer(ctx, core.Customer{Name: "Idle", Type: core.Residential, CreatedAt: date(2023, 6, 1)})
	require.NoError(t, err)

	leads := []core.Lead{
		// March, current period
		{Name: "m1", Status: core.LeadNew, Source: "Referral", CreatedAt: date(2025, 3, 3)},
		{Name: "m2", Status: core.LeadNew, Source: "Website", CreatedAt: date(2025, 3, 4)},
		{Name: "m3", Status: core.LeadNew, CreatedAt: date(2025, 3, 10)},
		{Name: "m4", Status: core.LeadClosedWon, Source: "Referral", CustomerID: ptr(home.ID), CreatedAt: date(2025, 3, 11)},
		// February, previous period
		{Name: "f1", Status: core.LeadNew, Source: "Website", CreatedAt: date(2025, 2, 1)},
		{Name: "f2", Status: core.LeadClosedWon, Source: "Website", CustomerID: ptr(acme.ID), CreatedAt: date(2025, 2, 20)},
		// Older than both periods
		{Name: "o1", Status: core.LeadContacted, Source: "Referral", CreatedAt: date(2024, 6, 1)},
	}
	for _, l := range leads {
		_, err := store.CreateLead(ctx, l)
		require.NoError(t, err)
	}

	projects := []core.Project{
		{Name: "p1", Status: core.ProjectInProgress, Budget: ptr(core.Money{Cents: 1_000_000}), Cost: ptr(core.Money{Cents: 800_000}),
			StartDate: ptr(date(2025, 3, 5)), CustomerID: acme.ID, CreatedAt: date(2025, 2, 10)},
		{Name: "p2", Status: core.ProjectInstallation, Budget: ptr(core.Money{Cents: 500_000}), Cost: ptr(core.Money{Cents: 400_000}),
			StartDate: ptr(date(2025, 2, 15)), CustomerID: acme.ID, CreatedAt: date(2025, 1, 20)},
		{Name: "p3", Status: core.ProjectInProgress, Budget: ptr(core.Money{Cents: 300_000}),
			CustomerID: home.ID, CreatedAt: date(2025, 3, 6)},
		{Name: "p4", Status: core.ProjectCompleted, Cost: ptr(core.Money{Cents: 100_000}),
			StartDate: ptr(date(2023, 1, 1)), CustomerID: acme.ID, CreatedAt: date(2022, 12, 1)},
	}
	for _, p := range projects {
		_, err := store.CreateProject(ctx, p)
		require.NoError(t, err)
	}
}

var now = time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)

func TestReportServiceDashboardStats(t *testing.T) {
	store := memory.New()
	seed(t, store)
	svc := NewReportService(store, time.UTC)

	stats, err := svc.DashboardStats(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, stats, 4)

	byLabel := map[string]core.TrendMetric{}
	for _, s := range stats {
		byLabel[s.Label] = s
	}

	// New leads: 3 in March vs 1 in February.
	assert.Equal(t, 3.0, byLabel[core.LabelNewLeads].Value)
	assert.InDelta(t, 200.0, byLabel[core.LabelNewLeads].ChangePercent, 1e-9)

	// Active: two In Progress now; previous counts p1 and p2, created before March.
	assert.Equal(t, 2.0, byLabel[core.LabelActiveProjects].Value)
	assert.InDelta(t, 0.0, byLabel[core.LabelActiveProjects].ChangePercent, 1e-9)
	assert.Equal(t, core.TrendUp, byLabel[core.LabelActiveProjects].Trend)

	// Revenue: p1 started in March (8000), p2 in February (4000).
	assert.InDelta(t, 8000.0, byLabel[core.LabelRevenue].Value, 1e-9)
	assert.InDelta(t, 100.0, byLabel[core.LabelRevenue].ChangePercent, 1e-9)

	// Conversion: 1/4 = 25% now vs 1/2 = 50% before, a 25 point drop.
	conv := byLabel[core.LabelConversionRate]
	assert.InDelta(t, 25.0, conv.Value, 1e-9)
	assert.InDelta(t, -25.0, conv.ChangePercent, 1e-9)
	assert.Equal(t, core.TrendDown, conv.Trend)
}

func TestReportServiceDashboardStatsEmptyStore(t *testing.T) {
	stats, err := NewReportService(memory.New(), nil).DashboardStats(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, stats, 4)
	for _, s := range stats {
		assert.Zero(t, s.Value, s.Label)
		assert.Zero(t, s.ChangePercent, s.Label)
	}
}

func TestReportServiceLeadStats(t *testing.T) {
	store := memory.New()
	seed(t, store)

	stats, err := NewReportService(store, time.UTC).LeadStats(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 7, stats.Total)

	assert.Equal(t, core.LabelCount{Label: string(core.LeadNew), Count: 4}, stats.ByStatus[0])
	assert.Contains(t, stats.BySource, core.LabelCount{Label: UnknownSource, Count: 1})
	assert.Contains(t, stats.BySource, core.LabelCount{Label: "Referral", Count: 3})

	// Six months back from 15 March reaches 15 September 2024; o1 is older.
	require.Len(t, stats.Monthly, 2)
	assert.Equal(t, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), stats.Monthly[0].MonthStart)
	assert.Equal(t, 2, stats.Monthly[0].Count)
	assert.Equal(t, 4, stats.Monthly[1].Count)
}

func TestReportServiceProjectStats(t *testing.T) {
	store := memory.New()
	seed(t, store)

	stats, err := NewReportService(store, time.UTC).ProjectStats(context.Background(), now)
	require.NoError(t, err)

	assert.Equal(t, 4, stats.Totals.Count)
	assert.Equal(t, int64(1_800_000), stats.Totals.Budget.Cents)
	assert.Equal(t, int64(1_300_000), stats.Totals.Revenue.Cents)
	assert.Equal(t, core.LabelCount{Label: string(core.ProjectInProgress), Count: 2}, stats.ByStatus[0])

	// p4 is older than twelve months.
	require.Len(t, stats.Monthly, 3)
	assert.InDelta(t, 5000.0, stats.Monthly[0].Sums[MetricBudget], 1e-9)
	assert.InDelta(t, 8000.0, stats.Monthly[1].Sums[MetricRevenue], 1e-9)
	assert.InDelta(t, 3000.0, stats.Monthly[2].Sums[MetricBudget], 1e-9)
	assert.Zero(t, stats.Monthly[2].Sums[MetricRevenue])
}

func TestReportServiceCustomerStats(t *testing.T) {
	store := memory.New()
	seed(t, store)

	stats, err := NewReportService(store, time.UTC).CustomerStats(context.Background(), now)
	require.NoError(t, err)

	assert.Equal(t, []core.LabelCount{
		{Label: string(core.Residential), Count: 2},
		{Label: string(core.Commercial), Count: 1},
	}, stats.ByType)
	require.Len(t, stats.Monthly, 2)

	require.Len(t, stats.TopCustomers, 3)
	assert.Equal(t, "Acme", stats.TopCustomers[0].Name)
	assert.Equal(t, 3, stats.TopCustomers[0].ProjectCount)
	assert.Equal(t, int64(1_300_000), stats.TopCustomers[0].TotalValue.Cents)
	assert.Equal(t, "Home", stats.TopCustomers[1].Name)
	assert.Zero(t, stats.TopCustomers[1].TotalValue.Cents)
	assert.Equal(t, 0, stats.TopCustomers[2].ProjectCount)
}

func TestTopCustomersLimit(t *testing.T) {
	var customers []core.Customer
	var projects []core.Project
	for i := int64(1); i <= 7; i++ {
		customers = append(customers, core.Customer{ID: i, Name: string(rune('A' + i))})
		for j := int64(0); j < i; j++ {
			projects = append(projects, core.Project{CustomerID: i})
		}
	}
	top := topCustomers(customers, projects, 5)
	require.Len(t, top, 5)
	assert.Equal(t, int64(7), top[0].ID)
	assert.Equal(t, int64(3), top[4].ID)
}

func TestReportServiceCalendarAndUpcoming(t *testing.T) {
	ctx := context.Background()
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	store := memory.New()
	c, _ := store.CreateCustomer(ctx, core.Customer{Name: "Casa", Type: core.Residential})
	p, _ := store.CreateProject(ctx, core.Project{Name: "Panels", Status: core.ProjectPlanned, CustomerID: c.ID})

	// 02:30 UTC on 16 March is 22:30 on 15 March in New York.
	late, _ := store.CreateAppointment(ctx, core.Appointment{Type: core.Inspection, Date: time.Date(2025, 3, 16, 2, 30, 0, 0, time.UTC), ProjectID: p.ID})
	_, _ = store.CreateAppointment(ctx, core.Appointment{Type: core.FollowUp, Date: time.Date(2025, 5, 1, 15, 0, 0, 0, time.UTC), ProjectID: p.ID})
	_, _ = store.CreateAppointment(ctx, core.Appointment{Type: core.SiteAssessment, Date: time.Date(2025, 3, 1, 15, 0, 0, 0, time.UTC), ProjectID: p.ID})

	svc := NewReportService(store, ny)
	grid, err := svc.Calendar(ctx, 2025, 2, now)
	require.NoError(t, err)
	require.Len(t, grid, core.GridCells)

	first := core.FirstDayOfMonth(2025, 2)
	require.Len(t, grid[first+14].Appointments, 1)
	assert.Equal(t, late.ID, grid[first+14].Appointments[0].ID)
	assert.Len(t, grid[first].Appointments, 1)
	assert.True(t, grid[first+14].IsToday)

	_, err = svc.Calendar(ctx, 2025, 12, now)
	assert.Error(t, err)

	upcoming, err := svc.UpcomingAppointments(ctx, now, 5)
	require.NoError(t, err)
	require.Len(t, upcoming, 2)
	assert.Equal(t, "2025-03-15", upcoming[0].Date)
	assert.Equal(t, "10:30 PM", upcoming[0].Time)
	assert.Equal(t, "Casa", upcoming[0].CustomerName)
	assert.Equal(t, "Panels", upcoming[0].ProjectName)
	assert.Equal(t, "11:00 AM", upcoming[1].Time)
}

func TestReportServiceRecentLeads(t *testing.T) {
	store := memory.New()
	seed(t, store)

	leads, err := NewReportService(store, time.UTC).RecentLeads(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, leads, 3)
	assert.Equal(t, "m4", leads[0].Name)
	assert.Equal(t, "m2", leads[2].Name)
}
