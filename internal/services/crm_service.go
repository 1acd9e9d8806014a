package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"crm/internal/amqp"
	"crm/internal/core"
	"crm/internal/ports"
)

// Appointment event actions.
const (
	ActionCreated = amqp.ActionCreated
	ActionUpdated = amqp.ActionUpdated
	ActionDeleted = amqp.ActionDeleted
)

// NoProjects is the latest-status placeholder for customers without projects.
const NoProjects = "No Projects"

type (
	// CustomerSummary is one row of the customer listing.
	CustomerSummary struct {
		core.Customer
		TotalBudget         core.Money
		LatestProjectStatus string
	}

	CustomerDetail struct {
		core.Customer
		Projects []core.Project
		Leads    []core.Lead
	}

	// ProjectSummary is a project with its customer and earliest appointment.
	ProjectSummary struct {
		core.Project
		Customer         core.Customer
		FirstAppointment *core.Appointment
	}

	ProjectDetail struct {
		core.Project
		Customer     core.Customer
		Appointments []core.Appointment
	}

	// AppointmentDetail is an appointment with the names it is displayed with.
	AppointmentDetail struct {
		core.Appointment
		ProjectName  string
		CustomerName string
		Address      string
	}
)

// CRMService orchestrates CRUD operations over the store and publishes
// appointment events for the calendar worker.
type CRMService struct {
	store  ports.Store
	events ports.EventPublisher
}

func NewCRMService(store ports.Store, events ports.EventPublisher) *CRMService {
	return &CRMService{store: store, events: events}
}

// Ping checks the backing store.
func (s *CRMService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// ListCustomers returns a page of customers with their project totals.
func (s *CRMService) ListCustomers(ctx context.Context, f ports.CustomerFilter) ([]CustomerSummary, int, error) {
	customers, total, err := s.store.ListCustomers(ctx, f)
	if err != nil {
		return nil, 0, fmt.Errorf("list customers: %w", err)
	}

	out := make([]CustomerSummary, 0, len(customers))
	for _, c := range customers {
		projects, err := s.store.ListProjects(ctx, ports.ProjectFilter{CustomerID: c.ID})
		if err != nil {
			return nil, 0, fmt.Errorf("list projects for customer %d: %w", c.ID, err)
		}
		out = append(out, summarizeCustomer(c, projects))
	}
	return out, total, nil
}

func summarizeCustomer(c core.Customer, projects []core.Project) CustomerSummary {
	sum := CustomerSummary{Customer: c, LatestProjectStatus: NoProjects}
	var latest *core.Project
	for i := range projects {
		p := &projects[i]
		if p.Budget != nil {
			sum.TotalBudget.Cents += p.Budget.Cents
		}
		if latest == nil || p.CreatedAt.After(latest.CreatedAt) ||
			(p.CreatedAt.Equal(latest.CreatedAt) && p.ID > latest.ID) {
			latest = p
		}
	}
	if latest != nil {
		sum.LatestProjectStatus = string(latest.Status)
	}
	return sum
}

func (s *CRMService) GetCustomer(ctx context.Context, id int64) (CustomerDetail, error) {
	c, err := s.store.GetCustomer(ctx, id)
	if err != nil {
		return CustomerDetail{}, err
	}
	projects, err := s.store.ListProjects(ctx, ports.ProjectFilter{CustomerID: id})
	if err != nil {
		return CustomerDetail{}, fmt.Errorf("list projects for customer %d: %w", id, err)
	}
	leads, _, err := s.store.ListLeads(ctx, ports.LeadFilter{CustomerID: id})
	if err != nil {
		return CustomerDetail{}, fmt.Errorf("list leads for customer %d: %w", id, err)
	}
	return CustomerDetail{Customer: c, Projects: projects, Leads: leads}, nil
}

func (s *CRMService) CreateCustomer(ctx context.Context, c core.Customer) (core.Customer, error) {
	if c.Type == "" {
		c.Type = core.Residential
	}
	if err := c.Validate(); err != nil {
		return core.Customer{}, err
	}
	created, err := s.store.CreateCustomer(ctx, c)
	if err != nil {
		return core.Customer{}, fmt.Errorf("save customer: %w", err)
	}
	slog.InfoContext(ctx, "Customer created", "id", created.ID, "type", created.Type)
	return created, nil
}

func (s *CRMService) UpdateCustomer(ctx context.Context, c core.Customer) (core.Customer, error) {
	if c.Type == "" {
		c.Type = core.Residential
	}
	if err := c.Validate(); err != nil {
		return core.Customer{}, err
	}
	return s.store.UpdateCustomer(ctx, c)
}

// DeleteCustomer fails with core.ErrCustomerHasRelations while the customer
// still has projects or leads.
func (s *CRMService) DeleteCustomer(ctx context.Context, id int64) error {
	if err := s.store.DeleteCustomer(ctx, id); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Customer deleted", "id", id)
	return nil
}

func (s *CRMService) ListLeads(ctx context.Context, f ports.LeadFilter) ([]core.Lead, int, error) {
	leads, total, err := s.store.ListLeads(ctx, f)
	if err != nil {
		return nil, 0, fmt.Errorf("list leads: %w", err)
	}
	return leads, total, nil
}

func (s *CRMService) GetLead(ctx context.Context, id int64) (core.Lead, error) {
	return s.store.GetLead(ctx, id)
}

func (s *CRMService) CreateLead(ctx context.Context, l core.Lead) (core.Lead, error) {
	if l.Status == "" {
		l.Status = core.LeadNew
	}
	if err := l.Validate(); err != nil {
		return core.Lead{}, err
	}
	created, err := s.store.CreateLead(ctx, l)
	if err != nil {
		return core.Lead{}, fmt.Errorf("save lead: %w", err)
	}
	slog.InfoContext(ctx, "Lead created", "id", created.ID, "status", created.Status, "source", created.Source)
	return created, nil
}

func (s *CRMService) UpdateLead(ctx context.Context, l core.Lead) (core.Lead, error) {
	if l.Status == "" {
		l.Status = core.LeadNew
	}
	if err := l.Validate(); err != nil {
		return core.Lead{}, err
	}
	return s.store.UpdateLead(ctx, l)
}

func (s *CRMService) DeleteLead(ctx context.Context, id int64) error {
	return s.store.DeleteLead(ctx, id)
}

// ListProjects returns projects with their customer and first appointment.
func (s *CRMService) ListProjects(ctx context.Context, f ports.ProjectFilter) ([]ProjectSummary, error) {
	projects, err := s.store.ListProjects(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}

	customers := make(map[int64]core.Customer)
	out := make([]ProjectSummary, 0, len(projects))
	for _, p := range projects {
		c, ok := customers[p.CustomerID]
		if !ok {
			if c, err = s.store.GetCustomer(ctx, p.CustomerID); err != nil {
				return nil, fmt.Errorf("customer of project %d: %w", p.ID, err)
			}
			customers[p.CustomerID] = c
		}
		first, err := s.store.ListAppointments(ctx, ports.AppointmentFilter{ProjectID: p.ID, Limit: 1})
		if err != nil {
			return nil, fmt.Errorf("appointments of project %d: %w", p.ID, err)
		}
		sum := ProjectSummary{Project: p, Customer: c}
		if len(first) > 0 {
			sum.FirstAppointment = &first[0]
		}
		out = append(out, sum)
	}
	// Newest first, as the project board shows them.
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *CRMService) GetProject(ctx context.Context, id int64) (ProjectDetail, error) {
	p, err := s.store.GetProject(ctx, id)
	if err != nil {
		return ProjectDetail{}, err
	}
	c, err := s.store.GetCustomer(ctx, p.CustomerID)
	if err != nil {
		return ProjectDetail{}, fmt.Errorf("customer of project %d: %w", id, err)
	}
	appts, err := s.store.ListAppointments(ctx, ports.AppointmentFilter{ProjectID: id})
	if err != nil {
		return ProjectDetail{}, fmt.Errorf("appointments of project %d: %w", id, err)
	}
	return ProjectDetail{Project: p, Customer: c, Appointments: appts}, nil
}

func (s *CRMService) CreateProject(ctx context.Context, p core.Project) (core.Project, error) {
	if p.Status == "" {
		p.Status = core.ProjectPlanned
	}
	if err := p.Validate(); err != nil {
		return core.Project{}, err
	}
	created, err := s.store.CreateProject(ctx, p)
	if err != nil {
		return core.Project{}, fmt.Errorf("save project: %w", err)
	}
	slog.InfoContext(ctx, "Project created", "id", created.ID, "customer_id", created.CustomerID, "status", created.Status)
	return created, nil
}

func (s *CRMService) UpdateProject(ctx context.Context, p core.Project) (core.Project, error) {
	if p.Status == "" {
		p.Status = core.ProjectPlanned
	}
	if err := p.Validate(); err != nil {
		return core.Project{}, err
	}
	return s.store.UpdateProject(ctx, p)
}

// DeleteProject also removes the project's appointments and announces each
// removal so mirrored calendar events are cleaned up.
func (s *CRMService) DeleteProject(ctx context.Context, id int64) error {
	appts, err := s.store.ListAppointments(ctx, ports.AppointmentFilter{ProjectID: id})
	if err != nil {
		return fmt.Errorf("appointments of project %d: %w", id, err)
	}
	if err := s.store.DeleteProject(ctx, id); err != nil {
		return err
	}
	for _, a := range appts {
		if a.ExternalID != "" {
			s.publish(ctx, a.ID, a.ExternalID, ActionDeleted)
		}
	}
	return nil
}

// ListAppointments returns appointments in the filter range ordered by date.
func (s *CRMService) ListAppointments(ctx context.Context, f ports.AppointmentFilter) ([]AppointmentDetail, error) {
	appts, err := s.store.ListAppointments(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return s.describe(ctx, appts)
}

func (s *CRMService) GetAppointment(ctx context.Context, id int64) (AppointmentDetail, error) {
	a, err := s.store.GetAppointment(ctx, id)
	if err != nil {
		return AppointmentDetail{}, err
	}
	out, err := s.describe(ctx, []core.Appointment{a})
	if err != nil {
		return AppointmentDetail{}, err
	}
	return out[0], nil
}

// describe joins project and customer names onto appointments.
func (s *CRMService) describe(ctx context.Context, appts []core.Appointment) ([]AppointmentDetail, error) {
	projects := make(map[int64]core.Project)
	customers := make(map[int64]core.Customer)
	out := make([]AppointmentDetail, 0, len(appts))
	for _, a := range appts {
		p, ok := projects[a.ProjectID]
		if !ok {
			var err error
			if p, err = s.store.GetProject(ctx, a.ProjectID); err != nil {
				return nil, fmt.Errorf("project of appointment %d: %w", a.ID, err)
			}
			projects[a.ProjectID] = p
		}
		c, ok := customers[p.CustomerID]
		if !ok {
			var err error
			if c, err = s.store.GetCustomer(ctx, p.CustomerID); err != nil {
				return nil, fmt.Errorf("customer of appointment %d: %w", a.ID, err)
			}
			customers[p.CustomerID] = c
		}
		out = append(out, AppointmentDetail{Appointment: a, ProjectName: p.Name, CustomerName: c.Name, Address: c.Address})
	}
	return out, nil
}

func (s *CRMService) CreateAppointment(ctx context.Context, a core.Appointment) (core.Appointment, error) {
	if err := a.Validate(); err != nil {
		return core.Appointment{}, err
	}
	created, err := s.store.CreateAppointment(ctx, a)
	if err != nil {
		return core.Appointment{}, fmt.Errorf("save appointment: %w", err)
	}
	s.publish(ctx, created.ID, "", ActionCreated)
	return created, nil
}

func (s *CRMService) UpdateAppointment(ctx context.Context, a core.Appointment) (core.Appointment, error) {
	if err := a.Validate(); err != nil {
		return core.Appointment{}, err
	}
	updated, err := s.store.UpdateAppointment(ctx, a)
	if err != nil {
		return core.Appointment{}, err
	}
	s.publish(ctx, updated.ID, updated.ExternalID, ActionUpdated)
	return updated, nil
}

func (s *CRMService) DeleteAppointment(ctx context.Context, id int64) error {
	a, err := s.store.GetAppointment(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteAppointment(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, id, a.ExternalID, ActionDeleted)
	return nil
}

// publish announces an appointment change. The write has already been
// committed, so failures are logged and never returned.
func (s *CRMService) publish(ctx context.Context, id int64, externalID, action string) {
	if s.events == nil {
		slog.DebugContext(ctx, "Event publisher not available, skipping appointment event", "id", id, "action", action)
		return
	}
	if err := s.events.PublishAppointmentEvent(ctx, id, externalID, action); err != nil {
		slog.ErrorContext(ctx, "Failed to publish appointment event",
			"id", id, "action", action, "error", err)
	}
}

// Close releases the store.
func (s *CRMService) Close() error {
	if s.store == nil {
		return nil
	}
	if err := s.store.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	return nil
}
