package http

import (
	"bytes"
	"encoding/json"
	"reflect"
	"strings"
	"time"

	"crm/internal/core"
	"crm/internal/services"
)

func jsonFieldName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	if name == "" {
		return f.Name
	}
	return name
}

// amount is a money value sent either as a JSON number of dollars or as a
// string such as "$1,234.50". Null and "" mean no amount.
type amount struct {
	set   bool
	money core.Money
}

func (a *amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*a = amount{}
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if strings.TrimSpace(s) == "" {
			*a = amount{}
			return nil
		}
		cents, err := core.ParseDecimalToCents(s)
		if err != nil {
			return errBadRequest("invalid amount %q", s)
		}
		*a = amount{set: true, money: core.Money{Cents: cents}}
		return nil
	}
	var d float64
	if err := json.Unmarshal(b, &d); err != nil {
		return err
	}
	if d < 0 {
		return core.ErrInvalidAmount
	}
	*a = amount{set: true, money: core.FromDollars(d)}
	return nil
}

func (a amount) ptr() *core.Money {
	if !a.set {
		return nil
	}
	m := a.money
	return &m
}

// Request payloads.
type (
	customerPayload struct {
		Name    string `json:"name" validate:"required,max=200"`
		Email   string `json:"email" validate:"omitempty,email,max=200"`
		Phone   string `json:"phone" validate:"max=50"`
		Address string `json:"address" validate:"max=500"`
		Type    string `json:"type" validate:"omitempty,oneof=Residential Commercial"`
	}

	leadPayload struct {
		Name       string `json:"name" validate:"required,max=200"`
		Email      string `json:"email" validate:"required,email,max=200"`
		Phone      string `json:"phone" validate:"required,max=50"`
		Address    string `json:"address" validate:"max=500"`
		Status     string `json:"status" validate:"max=50"`
		Source     string `json:"source" validate:"max=100"`
		Notes      string `json:"notes" validate:"max=2000"`
		LeadScore  *int   `json:"leadScore" validate:"omitempty,gte=0,lte=100"`
		CustomerID *int64 `json:"customerId" validate:"omitempty,gt=0"`
	}

	projectPayload struct {
		Name           string  `json:"name" validate:"required,max=200"`
		Description    string  `json:"description" validate:"max=2000"`
		Budget         amount  `json:"budget"`
		Cost           amount  `json:"cost"`
		Status         string  `json:"status" validate:"max=50"`
		StartDate      *string `json:"startDate"`
		Deadline       *string `json:"deadline"`
		CompletionDate *string `json:"completionDate"`
		Priority       string  `json:"priority" validate:"omitempty,oneof=High Medium Low"`
		CustomerID     int64   `json:"customerId" validate:"required,gt=0"`
	}

	appointmentPayload struct {
		Type      string `json:"type" validate:"required,max=50"`
		Date      string `json:"date" validate:"required"`
		Notes     string `json:"notes" validate:"max=2000"`
		ProjectID int64  `json:"projectId" validate:"required,gt=0"`
	}
)

func (p customerPayload) toCustomer(id int64) core.Customer {
	return core.Customer{
		ID:      id,
		Name:    sanitizeInput(p.Name),
		Email:   strings.TrimSpace(p.Email),
		Phone:   sanitizeInput(p.Phone),
		Address: sanitizeInput(p.Address),
		Type:    core.CustomerType(p.Type),
	}
}

func (p leadPayload) toLead(id int64) core.Lead {
	return core.Lead{
		ID:         id,
		Name:       sanitizeInput(p.Name),
		Email:      strings.TrimSpace(p.Email),
		Phone:      sanitizeInput(p.Phone),
		Address:    sanitizeInput(p.Address),
		Status:     core.LeadStatus(strings.TrimSpace(p.Status)),
		Source:     sanitizeInput(p.Source),
		Notes:      sanitizeInput(p.Notes),
		LeadScore:  p.LeadScore,
		CustomerID: p.CustomerID,
	}
}

func (p projectPayload) toProject(id int64, loc *time.Location) (core.Project, error) {
	start, err := parseOptionalTime(p.StartDate, loc)
	if err != nil {
		return core.Project{}, err
	}
	deadline, err := parseOptionalTime(p.Deadline, loc)
	if err != nil {
		return core.Project{}, err
	}
	completed, err := parseOptionalTime(p.CompletionDate, loc)
	if err != nil {
		return core.Project{}, err
	}
	return core.Project{
		ID:             id,
		Name:           sanitizeInput(p.Name),
		Description:    sanitizeInput(p.Description),
		Budget:         p.Budget.ptr(),
		Cost:           p.Cost.ptr(),
		Status:         core.ProjectStatus(strings.TrimSpace(p.Status)),
		StartDate:      start,
		Deadline:       deadline,
		CompletionDate: completed,
		Priority:       core.Priority(p.Priority),
		CustomerID:     p.CustomerID,
	}, nil
}

func (p appointmentPayload) toAppointment(id int64, loc *time.Location) (core.Appointment, error) {
	date, err := parseTime(p.Date, loc)
	if err != nil {
		return core.Appointment{}, err
	}
	return core.Appointment{
		ID:        id,
		Type:      core.AppointmentType(strings.TrimSpace(p.Type)),
		Date:      date,
		Notes:     sanitizeInput(p.Notes),
		ProjectID: p.ProjectID,
	}, nil
}

// Response bodies.
type (
	customerJSON struct {
		ID        int64     `json:"id"`
		Name      string    `json:"name"`
		Email     string    `json:"email"`
		Phone     string    `json:"phone"`
		Address   string    `json:"address"`
		Type      string    `json:"type"`
		CreatedAt time.Time `json:"createdAt"`
		UpdatedAt time.Time `json:"updatedAt"`
	}

	customerRowJSON struct {
		customerJSON
		TotalBudget *float64 `json:"totalBudget"`
		Status      string   `json:"status"`
	}

	customerDetailJSON struct {
		customerJSON
		Projects []projectJSON `json:"projects"`
		Leads    []leadJSON    `json:"leads"`
	}

	customerPageJSON struct {
		Customers   []customerRowJSON `json:"customers"`
		TotalCount  int               `json:"totalCount"`
		CurrentPage int               `json:"currentPage"`
		TotalPages  int               `json:"totalPages"`
	}

	leadJSON struct {
		ID         int64     `json:"id"`
		Name       string    `json:"name"`
		Email      string    `json:"email"`
		Phone      string    `json:"phone"`
		Address    string    `json:"address"`
		Status     string    `json:"status"`
		Source     string    `json:"source"`
		Notes      string    `json:"notes"`
		LeadScore  *int      `json:"leadScore"`
		CustomerID *int64    `json:"customerId"`
		CreatedAt  time.Time `json:"createdAt"`
		UpdatedAt  time.Time `json:"updatedAt"`
	}

	leadPageJSON struct {
		Leads      []leadJSON `json:"leads"`
		Total      int        `json:"total"`
		Page       int        `json:"page"`
		TotalPages int        `json:"totalPages"`
	}

	projectJSON struct {
		ID             int64      `json:"id"`
		Name           string     `json:"name"`
		Description    string     `json:"description"`
		Budget         *float64   `json:"budget"`
		Cost           *float64   `json:"cost"`
		Status         string     `json:"status"`
		StartDate      *time.Time `json:"startDate"`
		Deadline       *time.Time `json:"deadline"`
		CompletionDate *time.Time `json:"completionDate"`
		Priority       *string    `json:"priority"`
		CustomerID     int64      `json:"customerId"`
		CreatedAt      time.Time  `json:"createdAt"`
		UpdatedAt      time.Time  `json:"updatedAt"`
	}

	// projectRowJSON carries at most one appointment, the earliest.
	projectRowJSON struct {
		projectJSON
		Customer     customerJSON      `json:"customer"`
		Appointments []appointmentJSON `json:"appointments"`
	}

	projectDetailJSON struct {
		projectJSON
		Customer     customerJSON      `json:"customer"`
		Appointments []appointmentJSON `json:"appointments"`
	}

	appointmentJSON struct {
		ID         int64     `json:"id"`
		Type       string    `json:"type"`
		Date       time.Time `json:"date"`
		Notes      string    `json:"notes"`
		ProjectID  int64     `json:"projectId"`
		ExternalID string    `json:"externalId,omitempty"`
		Color      string    `json:"color"`
		CreatedAt  time.Time `json:"createdAt"`
		UpdatedAt  time.Time `json:"updatedAt"`
	}

	appointmentRowJSON struct {
		appointmentJSON
		ProjectName  string `json:"projectName"`
		CustomerName string `json:"customerName"`
		Address      string `json:"address"`
	}
)

func toCustomerJSON(c core.Customer) customerJSON {
	return customerJSON{
		ID:        c.ID,
		Name:      c.Name,
		Email:     c.Email,
		Phone:     c.Phone,
		Address:   c.Address,
		Type:      string(c.Type),
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func toCustomerRowJSON(s services.CustomerSummary) customerRowJSON {
	row := customerRowJSON{customerJSON: toCustomerJSON(s.Customer), Status: s.LatestProjectStatus}
	if s.TotalBudget.Cents > 0 {
		d := s.TotalBudget.Dollars()
		row.TotalBudget = &d
	}
	return row
}

func toLeadJSON(l core.Lead) leadJSON {
	return leadJSON{
		ID:         l.ID,
		Name:       l.Name,
		Email:      l.Email,
		Phone:      l.Phone,
		Address:    l.Address,
		Status:     string(l.Status),
		Source:     l.Source,
		Notes:      l.Notes,
		LeadScore:  l.LeadScore,
		CustomerID: l.CustomerID,
		CreatedAt:  l.CreatedAt,
		UpdatedAt:  l.UpdatedAt,
	}
}

func toLeadsJSON(leads []core.Lead) []leadJSON {
	out := make([]leadJSON, 0, len(leads))
	for _, l := range leads {
		out = append(out, toLeadJSON(l))
	}
	return out
}

func toProjectJSON(p core.Project) projectJSON {
	out := projectJSON{
		ID:             p.ID,
		Name:           p.Name,
		Description:    p.Description,
		Budget:         dollarsPtr(p.Budget),
		Cost:           dollarsPtr(p.Cost),
		Status:         string(p.Status),
		StartDate:      p.StartDate,
		Deadline:       p.Deadline,
		CompletionDate: p.CompletionDate,
		CustomerID:     p.CustomerID,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
	if p.Priority != core.PriorityNone {
		pr := string(p.Priority)
		out.Priority = &pr
	}
	return out
}

func toProjectsJSON(projects []core.Project) []projectJSON {
	out := make([]projectJSON, 0, len(projects))
	for _, p := range projects {
		out = append(out, toProjectJSON(p))
	}
	return out
}

func toAppointmentJSON(a core.Appointment) appointmentJSON {
	return appointmentJSON{
		ID:         a.ID,
		Type:       string(a.Type),
		Date:       a.Date,
		Notes:      a.Notes,
		ProjectID:  a.ProjectID,
		ExternalID: a.ExternalID,
		Color:      a.Type.Color(),
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
	}
}

func toAppointmentsJSON(appts []core.Appointment) []appointmentJSON {
	out := make([]appointmentJSON, 0, len(appts))
	for _, a := range appts {
		out = append(out, toAppointmentJSON(a))
	}
	return out
}

func toAppointmentRowJSON(d services.AppointmentDetail) appointmentRowJSON {
	return appointmentRowJSON{
		appointmentJSON: toAppointmentJSON(d.Appointment),
		ProjectName:     d.ProjectName,
		CustomerName:    d.CustomerName,
		Address:         d.Address,
	}
}
