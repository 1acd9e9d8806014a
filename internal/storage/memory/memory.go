// Package memory is an in-process implementation of ports.Store, used by
// tests and by the memory data backend.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"crm/internal/core"
	"crm/internal/ports"
)

var _ ports.Store = (*Store)(nil)

type Store struct {
	mu           sync.Mutex
	now          func() time.Time
	nextID       int64
	customers    map[int64]core.Customer
	leads        map[int64]core.Lead
	projects     map[int64]core.Project
	appointments map[int64]core.Appointment
}

func New() *Store {
	return NewWithClock(time.Now)
}

// NewWithClock creates a store that stamps CreatedAt/UpdatedAt using now.
func NewWithClock(now func() time.Time) *Store {
	return &Store{
		now:          now,
		customers:    make(map[int64]core.Customer),
		leads:        make(map[int64]core.Lead),
		projects:     make(map[int64]core.Project),
		appointments: make(map[int64]core.Appointment),
	}
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// stamp sets CreatedAt when it is zero, so seeds can backdate records.
func (s *Store) stamp(created *time.Time, updated *time.Time) {
	now := s.now()
	if created.IsZero() {
		*created = now
	}
	*updated = now
}

// ListCustomers implements ports.CustomerStore
func (s *Store) ListCustomers(_ context.Context, f ports.CustomerFilter) ([]core.Customer, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	search := strings.ToLower(strings.TrimSpace(f.Search))
	var out []core.Customer
	for _, c := range s.customers {
		if f.Type != "" && c.Type != f.Type {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(c.Name), search) &&
			!strings.Contains(strings.ToLower(c.Email), search) &&
			!strings.Contains(strings.ToLower(c.Phone), search) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		var less bool
		switch {
		case f.SortBy == "name" && a.Name != b.Name:
			less = a.Name < b.Name
		case f.SortBy != "name" && !a.UpdatedAt.Equal(b.UpdatedAt):
			less = a.UpdatedAt.Before(b.UpdatedAt)
		default:
			less = a.ID < b.ID
		}
		if f.Asc {
			return less
		}
		return !less
	})
	total := len(out)
	return page(out, f.Offset, f.Limit), total, nil
}

func (s *Store) GetCustomer(_ context.Context, id int64) (core.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.customers[id]
	if !ok {
		return core.Customer{}, core.ErrNotFound
	}
	return c, nil
}

func (s *Store) CreateCustomer(_ context.Context, c core.Customer) (core.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = s.id()
	s.stamp(&c.CreatedAt, &c.UpdatedAt)
	s.customers[c.ID] = c
	return c, nil
}

func (s *Store) UpdateCustomer(_ context.Context, c core.Customer) (core.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.customers[c.ID]
	if !ok {
		return core.Customer{}, core.ErrNotFound
	}
	c.CreatedAt = old.CreatedAt
	c.UpdatedAt = s.now()
	s.customers[c.ID] = c
	return c, nil
}

func (s *Store) DeleteCustomer(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.customers[id]; !ok {
		return core.ErrNotFound
	}
	for _, p := range s.projects {
		if p.CustomerID == id {
			return core.ErrCustomerHasRelations
		}
	}
	for _, l := range s.leads {
		if l.CustomerID != nil && *l.CustomerID == id {
			return core.ErrCustomerHasRelations
		}
	}
	delete(s.customers, id)
	return nil
}

// ListLeads implements ports.LeadStore
func (s *Store) ListLeads(_ context.Context, f ports.LeadFilter) ([]core.Lead, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []core.Lead
	for _, l := range s.leads {
		if f.Status != "" && l.Status != f.Status {
			continue
		}
		if f.CustomerID != 0 && (l.CustomerID == nil || *l.CustomerID != f.CustomerID) {
			continue
		}
		if !f.CreatedFrom.IsZero() && l.CreatedAt.Before(f.CreatedFrom) {
			continue
		}
		if !f.CreatedTo.IsZero() && !l.CreatedAt.Before(f.CreatedTo) {
			continue
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch f.Sort {
		case "name":
			if a.Name != b.Name {
				return a.Name < b.Name
			}
		case "leadScore":
			as, bs := scoreOf(a), scoreOf(b)
			if as != bs {
				return as > bs
			}
		default:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
			return a.ID > b.ID
		}
		return a.ID < b.ID
	})
	total := len(out)
	return page(out, f.Offset, f.Limit), total, nil
}

func scoreOf(l core.Lead) int {
	if l.LeadScore == nil {
		return -1
	}
	return *l.LeadScore
}

func (s *Store) GetLead(_ context.Context, id int64) (core.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.leads[id]
	if !ok {
		return core.Lead{}, core.ErrNotFound
	}
	return l, nil
}

func (s *Store) CreateLead(_ context.Context, l core.Lead) (core.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l.CustomerID != nil {
		if _, ok := s.customers[*l.CustomerID]; !ok {
			return core.Lead{}, core.ErrMissingCustomer
		}
	}
	l.ID = s.id()
	s.stamp(&l.CreatedAt, &l.UpdatedAt)
	s.leads[l.ID] = l
	return l, nil
}

func (s *Store) UpdateLead(_ context.Context, l core.Lead) (core.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.leads[l.ID]
	if !ok {
		return core.Lead{}, core.ErrNotFound
	}
	if l.CustomerID != nil {
		if _, ok := s.customers[*l.CustomerID]; !ok {
			return core.Lead{}, core.ErrMissingCustomer
		}
	}
	l.CreatedAt = old.CreatedAt
	l.UpdatedAt = s.now()
	s.leads[l.ID] = l
	return l, nil
}

func (s *Store) DeleteLead(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.leads[id]; !ok {
		return core.ErrNotFound
	}
	delete(s.leads, id)
	return nil
}

// ListProjects implements ports.ProjectStore
func (s *Store) ListProjects(_ context.Context, f ports.ProjectFilter) ([]core.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []core.Project
	for _, p := range s.projects {
		if f.CustomerID != 0 && p.CustomerID != f.CustomerID {
			continue
		}
		if len(f.Statuses) > 0 && !hasStatus(f.Statuses, p.Status) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func hasStatus(set []core.ProjectStatus, s core.ProjectStatus) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

func (s *Store) GetProject(_ context.Context, id int64) (core.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return core.Project{}, core.ErrNotFound
	}
	return p, nil
}

func (s *Store) CreateProject(_ context.Context, p core.Project) (core.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.customers[p.CustomerID]; !ok {
		return core.Project{}, core.ErrMissingCustomer
	}
	p.ID = s.id()
	s.stamp(&p.CreatedAt, &p.UpdatedAt)
	s.projects[p.ID] = p
	return p, nil
}

func (s *Store) UpdateProject(_ context.Context, p core.Project) (core.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.projects[p.ID]
	if !ok {
		return core.Project{}, core.ErrNotFound
	}
	if _, ok := s.customers[p.CustomerID]; !ok {
		return core.Project{}, core.ErrMissingCustomer
	}
	p.CreatedAt = old.CreatedAt
	p.UpdatedAt = s.now()
	s.projects[p.ID] = p
	return p, nil
}

// DeleteProject removes the project and its appointments.
func (s *Store) DeleteProject(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[id]; !ok {
		return core.ErrNotFound
	}
	for aid, a := range s.appointments {
		if a.ProjectID == id {
			delete(s.appointments, aid)
		}
	}
	delete(s.projects, id)
	return nil
}

// ListAppointments implements ports.AppointmentStore
func (s *Store) ListAppointments(_ context.Context, f ports.AppointmentFilter) ([]core.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []core.Appointment
	for _, a := range s.appointments {
		if !f.From.IsZero() && a.Date.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && !a.Date.Before(f.To) {
			continue
		}
		if f.ProjectID != 0 && a.ProjectID != f.ProjectID {
			continue
		}
		if f.UnsyncedOnly && a.ExternalID != "" {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return page(out, 0, f.Limit), nil
}

func (s *Store) GetAppointment(_ context.Context, id int64) (core.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.appointments[id]
	if !ok {
		return core.Appointment{}, core.ErrNotFound
	}
	return a, nil
}

func (s *Store) CreateAppointment(_ context.Context, a core.Appointment) (core.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[a.ProjectID]; !ok {
		return core.Appointment{}, core.ErrMissingProject
	}
	a.ID = s.id()
	s.stamp(&a.CreatedAt, &a.UpdatedAt)
	s.appointments[a.ID] = a
	return a, nil
}

func (s *Store) UpdateAppointment(_ context.Context, a core.Appointment) (core.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.appointments[a.ID]
	if !ok {
		return core.Appointment{}, core.ErrNotFound
	}
	if _, ok := s.projects[a.ProjectID]; !ok {
		return core.Appointment{}, core.ErrMissingProject
	}
	a.CreatedAt = old.CreatedAt
	a.ExternalID = old.ExternalID
	a.UpdatedAt = s.now()
	s.appointments[a.ID] = a
	return a, nil
}

func (s *Store) DeleteAppointment(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.appointments[id]; !ok {
		return core.ErrNotFound
	}
	delete(s.appointments, id)
	return nil
}

func (s *Store) SetExternalID(_ context.Context, id int64, externalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.appointments[id]
	if !ok {
		return core.ErrNotFound
	}
	a.ExternalID = externalID
	s.appointments[id] = a
	return nil
}

func page[T any](items []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
