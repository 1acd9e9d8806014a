package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"crm/internal/core"
	"crm/internal/ports"
)

// UnknownSource labels leads recorded without a source.
const UnknownSource = "Unknown"

// Bucket sum names used by the project and customer reports.
const (
	MetricBudget  = "budget"
	MetricRevenue = "revenue"
)

const topCustomerCount = 5

type (
	LeadStats struct {
		Total    int
		ByStatus []core.LabelCount
		BySource []core.LabelCount
		Monthly  []core.MonthBucket
	}

	ProjectTotals struct {
		Count   int
		Budget  core.Money
		Revenue core.Money
	}

	ProjectStats struct {
		ByStatus []core.LabelCount
		Totals   ProjectTotals
		// Monthly buckets carry MetricBudget and MetricRevenue sums in dollars.
		Monthly []core.MonthBucket
	}

	TopCustomer struct {
		ID           int64
		Name         string
		ProjectCount int
		TotalValue   core.Money
	}

	CustomerStats struct {
		ByType       []core.LabelCount
		Monthly      []core.MonthBucket
		TopCustomers []TopCustomer
	}

	// UpcomingAppointment is a dashboard row; Date is YYYY-MM-DD and Time
	// is a 12-hour clock reading, both in the business location.
	UpcomingAppointment struct {
		ID           int64
		Type         core.AppointmentType
		Date         string
		Time         string
		CustomerName string
		ProjectName  string
	}
)

// ReportService computes dashboard, report and calendar views. All calendar
// arithmetic happens in a single business location.
type ReportService struct {
	store ports.Store
	loc   *time.Location
}

func NewReportService(store ports.Store, loc *time.Location) *ReportService {
	if loc == nil {
		loc = time.UTC
	}
	return &ReportService{store: store, loc: loc}
}

// Location is the business location reports are computed in.
func (s *ReportService) Location() *time.Location {
	return s.loc
}

// DashboardStats compares the current month to date with the previous
// calendar month.
func (s *ReportService) DashboardStats(ctx context.Context, now time.Time) ([]core.TrendMetric, error) {
	periods := core.DashboardPeriods(now.In(s.loc))

	var (
		leads    []core.Lead
		projects []core.Project
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		leads, _, err = s.store.ListLeads(gctx, ports.LeadFilter{CreatedFrom: periods.PreviousStart})
		if err != nil {
			return fmt.Errorf("leads: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		projects, err = s.store.ListProjects(gctx, ports.ProjectFilter{})
		if err != nil {
			return fmt.Errorf("projects: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("dashboard stats: %w", err)
	}

	var in core.PeriodInputs
	for _, l := range leads {
		var pc *core.PeriodCounts
		switch {
		case periods.InCurrent(l.CreatedAt):
			pc = &in.Current
		case periods.InPrevious(l.CreatedAt):
			pc = &in.Previous
		default:
			continue
		}
		pc.TotalLeads++
		if l.Status == core.LeadNew {
			pc.NewLeads++
		}
		if l.Converted() {
			pc.ConvertedLeads++
		}
	}

	for _, p := range projects {
		if p.Status == core.ProjectInProgress {
			in.Current.ActiveProjects++
		}
		if (p.Status == core.ProjectInProgress || p.Status == core.ProjectInstallation) &&
			p.CreatedAt.Before(periods.CurrentStart) {
			in.Previous.ActiveProjects++
		}
		if p.StartDate == nil {
			continue
		}
		switch {
		case periods.InCurrent(*p.StartDate):
			in.Current.Revenue += p.Cost.OrZero()
		case periods.InPrevious(*p.StartDate):
			in.Previous.Revenue += p.Cost.OrZero()
		}
	}

	return core.BuildDashboardStats(in), nil
}

// LeadStats groups every lead by status and source and buckets the last six
// months of lead creation.
func (s *ReportService) LeadStats(ctx context.Context, now time.Time) (LeadStats, error) {
	leads, total, err := s.store.ListLeads(ctx, ports.LeadFilter{})
	if err != nil {
		return LeadStats{}, fmt.Errorf("lead stats: %w", err)
	}

	since := now.In(s.loc).AddDate(0, -6, 0)
	records := make([]core.TimedValue, 0, len(leads))
	for _, l := range leads {
		records = append(records, core.Value(l.CreatedAt, 1))
	}

	return LeadStats{
		Total:    total,
		ByStatus: core.CountBy(leads, func(l core.Lead) string { return string(l.Status) }),
		BySource: core.CountBy(leads, func(l core.Lead) string {
			if l.Source == "" {
				return UnknownSource
			}
			return l.Source
		}),
		Monthly: core.BucketByMonthIn(records, since, s.loc),
	}, nil
}

// ProjectStats reports status counts, budget and revenue totals and the last
// twelve months of project creation. Revenue is the sum of project cost.
func (s *ReportService) ProjectStats(ctx context.Context, now time.Time) (ProjectStats, error) {
	projects, err := s.store.ListProjects(ctx, ports.ProjectFilter{})
	if err != nil {
		return ProjectStats{}, fmt.Errorf("project stats: %w", err)
	}

	stats := ProjectStats{
		ByStatus: core.CountBy(projects, func(p core.Project) string { return string(p.Status) }),
		Totals:   ProjectTotals{Count: len(projects)},
	}
	records := make([]core.TimedValue, 0, len(projects))
	for _, p := range projects {
		if p.Budget != nil {
			stats.Totals.Budget.Cents += p.Budget.Cents
		}
		if p.Cost != nil {
			stats.Totals.Revenue.Cents += p.Cost.Cents
		}
		records = append(records, core.TimedValue{
			Timestamp: p.CreatedAt,
			Values: map[string]float64{
				MetricBudget:  p.Budget.OrZero(),
				MetricRevenue: p.Cost.OrZero(),
			},
		})
	}
	stats.Monthly = core.BucketByMonthIn(records, now.In(s.loc).AddDate(0, -12, 0), s.loc)
	return stats, nil
}

// CustomerStats reports customers by type, twelve months of customer growth
// and the customers with the most projects.
func (s *ReportService) CustomerStats(ctx context.Context, now time.Time) (CustomerStats, error) {
	var (
		customers []core.Customer
		projects  []core.Project
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		customers, _, err = s.store.ListCustomers(gctx, ports.CustomerFilter{})
		return err
	})
	g.Go(func() error {
		var err error
		projects, err = s.store.ListProjects(gctx, ports.ProjectFilter{})
		return err
	})
	if err := g.Wait(); err != nil {
		return CustomerStats{}, fmt.Errorf("customer stats: %w", err)
	}

	records := make([]core.TimedValue, 0, len(customers))
	for _, c := range customers {
		records = append(records, core.Value(c.CreatedAt, 1))
	}

	return CustomerStats{
		ByType:       core.CountBy(customers, func(c core.Customer) string { return string(c.Type) }),
		Monthly:      core.BucketByMonthIn(records, now.In(s.loc).AddDate(0, -12, 0), s.loc),
		TopCustomers: topCustomers(customers, projects, topCustomerCount),
	}, nil
}

// topCustomers ranks customers by project count, then by total project cost
// and finally by id.
func topCustomers(customers []core.Customer, projects []core.Project, n int) []TopCustomer {
	byID := make(map[int64]*TopCustomer, len(customers))
	ranked := make([]*TopCustomer, 0, len(customers))
	for _, c := range customers {
		tc := &TopCustomer{ID: c.ID, Name: c.Name}
		byID[c.ID] = tc
		ranked = append(ranked, tc)
	}
	for _, p := range projects {
		tc, ok := byID[p.CustomerID]
		if !ok {
			continue
		}
		tc.ProjectCount++
		if p.Cost != nil {
			tc.TotalValue.Cents += p.Cost.Cents
		}
	}
	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.ProjectCount != b.ProjectCount {
			return a.ProjectCount > b.ProjectCount
		}
		if a.TotalValue.Cents != b.TotalValue.Cents {
			return a.TotalValue.Cents > b.TotalValue.Cents
		}
		return a.ID < b.ID
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	out := make([]TopCustomer, len(ranked))
	for i, tc := range ranked {
		out[i] = *tc
	}
	return out
}

// Calendar builds the grid for a zero-based month. Only appointments that can
// appear on the grid are loaded, and each is placed by its date in the
// business location.
func (s *ReportService) Calendar(ctx context.Context, year, month int, now time.Time) ([]core.CalendarDay, error) {
	if month < 0 || month > 11 {
		return nil, fmt.Errorf("month %d out of range", month)
	}
	from, to := core.GridBounds(year, month, s.loc)
	appts, err := s.store.ListAppointments(ctx, ports.AppointmentFilter{From: from, To: to})
	if err != nil {
		return nil, fmt.Errorf("calendar appointments: %w", err)
	}
	for i := range appts {
		appts[i].Date = appts[i].Date.In(s.loc)
	}
	return core.BuildCalendarGrid(year, month, appts, now.In(s.loc)), nil
}

// UpcomingAppointments returns the next appointments at or after now.
func (s *ReportService) UpcomingAppointments(ctx context.Context, now time.Time, limit int) ([]UpcomingAppointment, error) {
	appts, err := s.store.ListAppointments(ctx, ports.AppointmentFilter{From: now, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("upcoming appointments: %w", err)
	}

	out := make([]UpcomingAppointment, 0, len(appts))
	for _, a := range appts {
		p, err := s.store.GetProject(ctx, a.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("project of appointment %d: %w", a.ID, err)
		}
		c, err := s.store.GetCustomer(ctx, p.CustomerID)
		if err != nil {
			return nil, fmt.Errorf("customer of appointment %d: %w", a.ID, err)
		}
		local := a.Date.In(s.loc)
		out = append(out, UpcomingAppointment{
			ID:           a.ID,
			Type:         a.Type,
			Date:         local.Format(time.DateOnly),
			Time:         local.Format("3:04 PM"),
			CustomerName: c.Name,
			ProjectName:  p.Name,
		})
	}
	return out, nil
}

// RecentLeads returns the most recently created leads.
func (s *ReportService) RecentLeads(ctx context.Context, limit int) ([]core.Lead, error) {
	leads, _, err := s.store.ListLeads(ctx, ports.LeadFilter{Sort: "recent", Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("recent leads: %w", err)
	}
	return leads, nil
}
