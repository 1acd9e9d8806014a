package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"crm/internal/core"
	crmlog "crm/internal/log"
	"crm/internal/services"
)

const (
	defaultListLimit = 5
	maxListLimit     = 50
)

type (
	statJSON struct {
		Label  string `json:"label"`
		Value  any    `json:"value"`
		Change string `json:"change"`
		Trend  string `json:"trend"`
	}

	statusCountJSON struct {
		Status string `json:"status"`
		Count  int    `json:"count"`
	}

	sourceCountJSON struct {
		Source string `json:"source"`
		Count  int    `json:"count"`
	}

	typeCountJSON struct {
		Type  string `json:"type"`
		Count int    `json:"count"`
	}

	monthJSON struct {
		Month   time.Time `json:"month"`
		Count   int       `json:"count"`
		Budget  *float64  `json:"budget,omitempty"`
		Revenue *float64  `json:"revenue,omitempty"`
	}

	leadStatsJSON struct {
		Total         int               `json:"total"`
		LeadsByStatus []statusCountJSON `json:"leadsByStatus"`
		LeadsBySource []sourceCountJSON `json:"leadsBySource"`
		LeadsOverTime []monthJSON       `json:"leadsOverTime"`
	}

	projectMetricsJSON struct {
		TotalProjects int     `json:"totalProjects"`
		TotalBudget   float64 `json:"totalBudget"`
		TotalRevenue  float64 `json:"totalRevenue"`
	}

	projectStatsJSON struct {
		ProjectsByStatus []statusCountJSON `json:"projectsByStatus"`
		ProjectMetrics   projectMetricsJSON `json:"projectMetrics"`
		ProjectsOverTime []monthJSON        `json:"projectsOverTime"`
	}

	topCustomerJSON struct {
		ID           int64   `json:"id"`
		Name         string  `json:"name"`
		TotalValue   float64 `json:"totalValue"`
		ProjectCount int     `json:"projectCount"`
	}

	customerStatsJSON struct {
		CustomersByType   []typeCountJSON   `json:"customersByType"`
		CustomersOverTime []monthJSON       `json:"customersOverTime"`
		TopCustomers      []topCustomerJSON `json:"topCustomers"`
	}

	upcomingJSON struct {
		ID           int64  `json:"id"`
		Type         string `json:"type"`
		Date         string `json:"date"`
		Time         string `json:"time"`
		CustomerName string `json:"customerName"`
		ProjectName  string `json:"projectName"`
	}

	calendarDayJSON struct {
		Date           string            `json:"date"`
		Day            int               `json:"day"`
		Month          int               `json:"month"`
		Year           int               `json:"year"`
		IsCurrentMonth bool              `json:"isCurrentMonth"`
		IsToday        bool              `json:"isToday"`
		Appointments   []appointmentJSON `json:"appointments"`
	}

	calendarJSON struct {
		Year  int               `json:"year"`
		Month int               `json:"month"`
		Days  []calendarDayJSON `json:"days"`
	}
)

// serveCached answers from the view cache or builds, encodes and stores the
// response. Keys carry the business date so views roll over at midnight.
func (s *Server) serveCached(w http.ResponseWriter, r *http.Request, build func(ctx context.Context, now time.Time) (any, error)) {
	now := s.now()
	key := r.URL.Path + "?" + r.URL.RawQuery + "@" + now.In(s.reports.Location()).Format(dateLayout)

	if body, ok := s.views.Get(key); ok {
		w.Header().Set("X-Cache", "HIT")
		writeRawJSON(w, http.StatusOK, body)
		return
	}

	v, err := build(r.Context(), now)
	if err != nil {
		s.writeError(w, r, crmlog.OpRead, err)
		return
	}
	body, err := json.Marshal(v)
	if err != nil {
		s.writeError(w, r, crmlog.OpRead, fmt.Errorf("encode view: %w", err))
		return
	}
	s.views.Set(key, body)
	w.Header().Set("X-Cache", "MISS")
	writeRawJSON(w, http.StatusOK, body)
}

func (s *Server) handleDashboardStats(w http.ResponseWriter, r *http.Request) {
	s.serveCached(w, r, func(ctx context.Context, now time.Time) (any, error) {
		metrics, err := s.reports.DashboardStats(ctx, now)
		if err != nil {
			return nil, err
		}
		out := make([]statJSON, 0, len(metrics))
		for _, m := range metrics {
			out = append(out, toStatJSON(m))
		}
		return out, nil
	})
}

func toStatJSON(m core.TrendMetric) statJSON {
	st := statJSON{Label: m.Label, Change: formatChange(m.ChangePercent), Trend: string(m.Trend)}
	switch m.Label {
	case core.LabelRevenue:
		st.Value = formatDollars(m.Value)
	case core.LabelConversionRate:
		st.Value = formatPercent(m.Value)
	default:
		st.Value = int64(m.Value)
	}
	return st
}

func (s *Server) handleRecentLeads(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r.URL.Query(), "limit", defaultListLimit, maxListLimit)
	leads, err := s.reports.RecentLeads(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, crmlog.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, toLeadsJSON(leads))
}

func (s *Server) handleUpcomingAppointments(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r.URL.Query(), "limit", defaultListLimit, maxListLimit)
	appts, err := s.reports.UpcomingAppointments(r.Context(), s.now(), limit)
	if err != nil {
		s.writeError(w, r, crmlog.OpList, err)
		return
	}
	out := make([]upcomingJSON, 0, len(appts))
	for _, a := range appts {
		out = append(out, upcomingJSON{
			ID:           a.ID,
			Type:         string(a.Type),
			Date:         a.Date,
			Time:         a.Time,
			CustomerName: a.CustomerName,
			ProjectName:  a.ProjectName,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleLeadStats(w http.ResponseWriter, r *http.Request) {
	s.serveCached(w, r, func(ctx context.Context, now time.Time) (any, error) {
		st, err := s.reports.LeadStats(ctx, now)
		if err != nil {
			return nil, err
		}
		out := leadStatsJSON{
			Total:         st.Total,
			LeadsByStatus: make([]statusCountJSON, 0, len(st.ByStatus)),
			LeadsBySource: make([]sourceCountJSON, 0, len(st.BySource)),
			LeadsOverTime: toMonthsJSON(st.Monthly, false),
		}
		for _, c := range st.ByStatus {
			out.LeadsByStatus = append(out.LeadsByStatus, statusCountJSON{Status: c.Label, Count: c.Count})
		}
		for _, c := range st.BySource {
			out.LeadsBySource = append(out.LeadsBySource, sourceCountJSON{Source: c.Label, Count: c.Count})
		}
		return out, nil
	})
}

func (s *Server) handleProjectStats(w http.ResponseWriter, r *http.Request) {
	s.serveCached(w, r, func(ctx context.Context, now time.Time) (any, error) {
		st, err := s.reports.ProjectStats(ctx, now)
		if err != nil {
			return nil, err
		}
		out := projectStatsJSON{
			ProjectsByStatus: make([]statusCountJSON, 0, len(st.ByStatus)),
			ProjectMetrics: projectMetricsJSON{
				TotalProjects: st.Totals.Count,
				TotalBudget:   st.Totals.Budget.Dollars(),
				TotalRevenue:  st.Totals.Revenue.Dollars(),
			},
			ProjectsOverTime: toMonthsJSON(st.Monthly, true),
		}
		for _, c := range st.ByStatus {
			out.ProjectsByStatus = append(out.ProjectsByStatus, statusCountJSON{Status: c.Label, Count: c.Count})
		}
		return out, nil
	})
}

func (s *Server) handleCustomerStats(w http.ResponseWriter, r *http.Request) {
	s.serveCached(w, r, func(ctx context.Context, now time.Time) (any, error) {
		st, err := s.reports.CustomerStats(ctx, now)
		if err != nil {
			return nil, err
		}
		out := customerStatsJSON{
			CustomersByType:   make([]typeCountJSON, 0, len(st.ByType)),
			CustomersOverTime: toMonthsJSON(st.Monthly, false),
			TopCustomers:      make([]topCustomerJSON, 0, len(st.TopCustomers)),
		}
		for _, c := range st.ByType {
			out.CustomersByType = append(out.CustomersByType, typeCountJSON{Type: c.Label, Count: c.Count})
		}
		for _, tc := range st.TopCustomers {
			out.TopCustomers = append(out.TopCustomers, topCustomerJSON{
				ID:           tc.ID,
				Name:         tc.Name,
				TotalValue:   tc.TotalValue.Dollars(),
				ProjectCount: tc.ProjectCount,
			})
		}
		return out, nil
	})
}

func toMonthsJSON(buckets []core.MonthBucket, money bool) []monthJSON {
	out := make([]monthJSON, 0, len(buckets))
	for _, b := range buckets {
		m := monthJSON{Month: b.MonthStart, Count: b.Count}
		if money {
			budget, revenue := b.Sums[services.MetricBudget], b.Sums[services.MetricRevenue]
			m.Budget, m.Revenue = &budget, &revenue
		}
		out = append(out, m)
	}
	return out
}

// handleCalendar serves the 42-cell grid. month is 1..12 on the wire and
// both parameters default to the current business month.
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	today := s.now().In(s.reports.Location())
	year, month := today.Year(), int(today.Month())

	if v := strings.TrimSpace(q.Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil || y < 1 || y > 9999 {
			s.writeError(w, r, crmlog.OpRead, errBadRequest("invalid year %q", v))
			return
		}
		year = y
	}
	if v := strings.TrimSpace(q.Get("month")); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil || m < 1 || m > 12 {
			s.writeError(w, r, crmlog.OpRead, errBadRequest("invalid month %q: must be 1-12", v))
			return
		}
		month = m
	}

	s.serveCached(w, r, func(ctx context.Context, now time.Time) (any, error) {
		days, err := s.reports.Calendar(ctx, year, month-1, now)
		if err != nil {
			return nil, err
		}
		out := calendarJSON{Year: year, Month: month, Days: make([]calendarDayJSON, 0, len(days))}
		for _, d := range days {
			out.Days = append(out.Days, calendarDayJSON{
				Date:           d.Date(time.UTC).Format(dateLayout),
				Day:            d.DayOfMonth,
				Month:          d.Month + 1,
				Year:           d.Year,
				IsCurrentMonth: d.IsCurrentMonth,
				IsToday:        d.IsToday,
				Appointments:   toAppointmentsJSON(d.Appointments),
			})
		}
		return out, nil
	})
}
