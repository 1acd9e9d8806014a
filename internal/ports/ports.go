// Package ports declares the storage and messaging boundaries the services
// depend on. Implementations live in internal/storage (SQLite),
// internal/storage/memory and internal/amqp.
package ports

import (
	"context"
	"time"

	"crm/internal/core"
)

type (
	// CustomerFilter narrows and orders a customer listing. Zero Limit means no limit.
	CustomerFilter struct {
		Search string // case-insensitive match on name, email or phone
		Type   core.CustomerType
		SortBy string // "name" or "updatedAt" (default)
		Asc    bool
		Offset int
		Limit  int
	}

	// LeadFilter narrows and orders a lead listing. Zero times are unbounded.
	LeadFilter struct {
		Status      core.LeadStatus
		CustomerID  int64
		Sort        string // "recent" (default), "name" or "leadScore"
		CreatedFrom time.Time
		CreatedTo   time.Time // exclusive
		Offset      int
		Limit       int
	}

	ProjectFilter struct {
		CustomerID int64
		Statuses   []core.ProjectStatus
	}

	// AppointmentFilter selects appointments in [From, To), ordered by date.
	AppointmentFilter struct {
		From         time.Time
		To           time.Time
		ProjectID    int64
		UnsyncedOnly bool
		Limit        int
	}
)

type (
	CustomerStore interface {
		ListCustomers(ctx context.Context, f CustomerFilter) (items []core.Customer, total int, err error)
		GetCustomer(ctx context.Context, id int64) (core.Customer, error)
		CreateCustomer(ctx context.Context, c core.Customer) (core.Customer, error)
		UpdateCustomer(ctx context.Context, c core.Customer) (core.Customer, error)
		DeleteCustomer(ctx context.Context, id int64) error
	}

	LeadStore interface {
		ListLeads(ctx context.Context, f LeadFilter) (items []core.Lead, total int, err error)
		GetLead(ctx context.Context, id int64) (core.Lead, error)
		CreateLead(ctx context.Context, l core.Lead) (core.Lead, error)
		UpdateLead(ctx context.Context, l core.Lead) (core.Lead, error)
		DeleteLead(ctx context.Context, id int64) error
	}

	ProjectStore interface {
		ListProjects(ctx context.Context, f ProjectFilter) ([]core.Project, error)
		GetProject(ctx context.Context, id int64) (core.Project, error)
		CreateProject(ctx context.Context, p core.Project) (core.Project, error)
		UpdateProject(ctx context.Context, p core.Project) (core.Project, error)
		DeleteProject(ctx context.Context, id int64) error
	}

	AppointmentStore interface {
		ListAppointments(ctx context.Context, f AppointmentFilter) ([]core.Appointment, error)
		GetAppointment(ctx context.Context, id int64) (core.Appointment, error)
		CreateAppointment(ctx context.Context, a core.Appointment) (core.Appointment, error)
		UpdateAppointment(ctx context.Context, a core.Appointment) (core.Appointment, error)
		DeleteAppointment(ctx context.Context, id int64) error
		// SetExternalID records the id of the appointment's mirrored calendar event.
		SetExternalID(ctx context.Context, id int64, externalID string) error
	}

	// Store is the full persistence boundary.
	Store interface {
		CustomerStore
		LeadStore
		ProjectStore
		AppointmentStore
		Ping(ctx context.Context) error
		Close() error
	}

	// EventPublisher announces appointment changes to downstream consumers.
	// externalID carries the mirrored event id, needed once a deleted
	// appointment can no longer be read back.
	EventPublisher interface {
		PublishAppointmentEvent(ctx context.Context, id int64, externalID, action string) error
	}

	// CalendarMirror keeps a remote calendar in step with appointments.
	CalendarMirror interface {
		UpsertEvent(ctx context.Context, a core.Appointment, details EventDetails) (externalID string, err error)
		DeleteEvent(ctx context.Context, externalID string) error
	}

	// EventDetails carries the names shown on a mirrored calendar event.
	EventDetails struct {
		ProjectName  string
		CustomerName string
		Address      string
	}
)
