// Package seed loads a book of business from YAML into the CRM.
package seed

import (
	"context"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"crm/internal/core"
	"crm/internal/services"
)

// File is the seed document. Leads and projects refer to customers by their
// key, appointments are nested under their project.
type File struct {
	Customers []Customer `yaml:"customers"`
	Leads     []Lead     `yaml:"leads"`
	Projects  []Project  `yaml:"projects"`
}

type Customer struct {
	Key     string `yaml:"key"`
	Name    string `yaml:"name"`
	Email   string `yaml:"email"`
	Phone   string `yaml:"phone"`
	Address string `yaml:"address"`
	Type    string `yaml:"type"`
}

type Lead struct {
	Name      string `yaml:"name"`
	Email     string `yaml:"email"`
	Phone     string `yaml:"phone"`
	Address   string `yaml:"address"`
	Status    string `yaml:"status"`
	Source    string `yaml:"source"`
	Notes     string `yaml:"notes"`
	LeadScore *int   `yaml:"leadScore"`
	Customer  string `yaml:"customer"`
}

type Project struct {
	Name         string        `yaml:"name"`
	Description  string        `yaml:"description"`
	Customer     string        `yaml:"customer"`
	Status       string        `yaml:"status"`
	Priority     string        `yaml:"priority"`
	Budget       string        `yaml:"budget"`
	Cost         string        `yaml:"cost"`
	StartDate    string        `yaml:"startDate"`
	Deadline     string        `yaml:"deadline"`
	Appointments []Appointment `yaml:"appointments"`
}

type Appointment struct {
	Type  string `yaml:"type"`
	Date  string `yaml:"date"`
	Notes string `yaml:"notes"`
}

// Result counts the records created.
type Result struct {
	Customers    int
	Leads        int
	Projects     int
	Appointments int
}

// Parse decodes a seed document, rejecting unknown keys.
func Parse(r io.Reader) (File, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return File{}, nil
		}
		return File{}, fmt.Errorf("parse seed file: %w", err)
	}
	return f, nil
}

// Apply creates every record through crm so the usual validation and event
// publishing apply. Dates without an offset are read in loc. It stops at the
// first failure and reports what was created until then.
func Apply(ctx context.Context, crm *services.CRMService, f File, loc *time.Location) (Result, error) {
	var res Result
	ids := make(map[string]int64, len(f.Customers))

	for _, c := range f.Customers {
		if c.Key == "" {
			c.Key = c.Name
		}
		if _, dup := ids[c.Key]; dup {
			return res, fmt.Errorf("customer key %q used twice", c.Key)
		}
		created, err := crm.CreateCustomer(ctx, core.Customer{
			Name:    c.Name,
			Email:   c.Email,
			Phone:   c.Phone,
			Address: c.Address,
			Type:    core.CustomerType(c.Type),
		})
		if err != nil {
			return res, fmt.Errorf("customer %q: %w", c.Key, err)
		}
		ids[c.Key] = created.ID
		res.Customers++
	}

	lookup := func(key string) (int64, error) {
		id, ok := ids[key]
		if !ok {
			return 0, fmt.Errorf("unknown customer %q", key)
		}
		return id, nil
	}

	for _, l := range f.Leads {
		lead := core.Lead{
			Name:      l.Name,
			Email:     l.Email,
			Phone:     l.Phone,
			Address:   l.Address,
			Status:    core.LeadStatus(l.Status),
			Source:    l.Source,
			Notes:     l.Notes,
			LeadScore: l.LeadScore,
		}
		if l.Customer != "" {
			id, err := lookup(l.Customer)
			if err != nil {
				return res, fmt.Errorf("lead %q: %w", l.Name, err)
			}
			lead.CustomerID = &id
		}
		if _, err := crm.CreateLead(ctx, lead); err != nil {
			return res, fmt.Errorf("lead %q: %w", l.Name, err)
		}
		res.Leads++
	}

	for _, p := range f.Projects {
		project, err := p.toProject(lookup, loc)
		if err != nil {
			return res, fmt.Errorf("project %q: %w", p.Name, err)
		}
		created, err := crm.CreateProject(ctx, project)
		if err != nil {
			return res, fmt.Errorf("project %q: %w", p.Name, err)
		}
		res.Projects++

		for _, a := range p.Appointments {
			date, err := parseDate(a.Date, loc)
			if err != nil {
				return res, fmt.Errorf("appointment of %q: %w", p.Name, err)
			}
			if date == nil {
				return res, fmt.Errorf("appointment of %q: %w", p.Name, core.ErrMissingDate)
			}
			_, err = crm.CreateAppointment(ctx, core.Appointment{
				Type:      core.AppointmentType(a.Type),
				Date:      *date,
				Notes:     a.Notes,
				ProjectID: created.ID,
			})
			if err != nil {
				return res, fmt.Errorf("appointment of %q: %w", p.Name, err)
			}
			res.Appointments++
		}
	}
	return res, nil
}

func (p Project) toProject(lookup func(string) (int64, error), loc *time.Location) (core.Project, error) {
	customerID, err := lookup(p.Customer)
	if err != nil {
		return core.Project{}, err
	}
	budget, err := parseMoney(p.Budget)
	if err != nil {
		return core.Project{}, fmt.Errorf("budget: %w", err)
	}
	cost, err := parseMoney(p.Cost)
	if err != nil {
		return core.Project{}, fmt.Errorf("cost: %w", err)
	}
	start, err := parseDate(p.StartDate, loc)
	if err != nil {
		return core.Project{}, err
	}
	deadline, err := parseDate(p.Deadline, loc)
	if err != nil {
		return core.Project{}, err
	}
	return core.Project{
		Name:        p.Name,
		Description: p.Description,
		Budget:      budget,
		Cost:        cost,
		Status:      core.ProjectStatus(p.Status),
		Priority:    core.Priority(p.Priority),
		StartDate:   start,
		Deadline:    deadline,
		CustomerID:  customerID,
	}, nil
}

func parseMoney(s string) (*core.Money, error) {
	if s == "" {
		return nil, nil
	}
	cents, err := core.ParseDecimalToCents(s)
	if err != nil {
		return nil, err
	}
	return &core.Money{Cents: cents}, nil
}

var dateLayouts = []string{"2006-01-02T15:04", "2006-01-02 15:04", time.DateOnly}

func parseDate(s string, loc *time.Location) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("invalid date %q", s)
}
