package core

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
)

const (
	Residential CustomerType = "Residential"
	Commercial  CustomerType = "Commercial"
)

const (
	LeadNew        LeadStatus = "New"
	LeadContacted  LeadStatus = "Contacted"
	LeadQualified  LeadStatus = "Qualified"
	LeadProposal   LeadStatus = "Proposal"
	LeadClosedWon  LeadStatus = "Closed Won"
	LeadClosedLost LeadStatus = "Closed Lost"
)

const (
	ProjectPlanned      ProjectStatus = "Planned"
	ProjectInProgress   ProjectStatus = "In Progress"
	ProjectInstallation ProjectStatus = "Installation"
	ProjectCompleted    ProjectStatus = "Completed"
)

const (
	PriorityNone   Priority = ""
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

const (
	SiteAssessment  AppointmentType = "Site Assessment"
	ProposalMeeting AppointmentType = "Proposal Meeting"
	Installation    AppointmentType = "Installation"
	Inspection      AppointmentType = "Inspection"
	Maintenance     AppointmentType = "Maintenance"
	FollowUp        AppointmentType = "Follow-up"
)

type (
	CustomerType    string
	LeadStatus      string
	ProjectStatus   string
	Priority        string
	AppointmentType string

	Customer struct {
		ID        int64
		Name      string
		Email     string
		Phone     string
		Address   string
		Type      CustomerType
		CreatedAt time.Time
		UpdatedAt time.Time
	}

	Lead struct {
		ID         int64
		Name       string
		Email      string
		Phone      string
		Address    string
		Status     LeadStatus
		Source     string
		Notes      string
		LeadScore  *int
		CustomerID *int64 // set once the lead converted into a customer
		CreatedAt  time.Time
		UpdatedAt  time.Time
	}

	Project struct {
		ID             int64
		Name           string
		Description    string
		Budget         *Money
		Cost           *Money
		Status         ProjectStatus
		StartDate      *time.Time
		Deadline       *time.Time
		CompletionDate *time.Time
		Priority       Priority
		CustomerID     int64
		CreatedAt      time.Time
		UpdatedAt      time.Time
	}

	Appointment struct {
		ID        int64
		Type      AppointmentType
		Date      time.Time
		Notes     string
		ProjectID int64
		// ExternalID is the id of the mirrored event in the remote calendar, empty until synced.
		ExternalID string
		CreatedAt  time.Time
		UpdatedAt  time.Time
	}
)

var (
	ErrNotFound             = errors.New("not found")
	ErrEmptyName            = errors.New("empty name")
	ErrInvalidEmail         = errors.New("invalid email")
	ErrEmptyPhone           = errors.New("empty phone")
	ErrInvalidCustomerType  = errors.New("invalid customer type")
	ErrInvalidLeadStatus    = errors.New("invalid lead status")
	ErrInvalidProjectStatus = errors.New("invalid project status")
	ErrInvalidPriority      = errors.New("invalid priority")
	ErrInvalidAppointment   = errors.New("invalid appointment type")
	ErrMissingDate          = errors.New("date cannot be zero")
	ErrMissingCustomer      = errors.New("missing customer")
	ErrMissingProject       = errors.New("missing project")
	ErrCustomerHasRelations = errors.New("cannot delete customer with associated projects or leads")
	ErrInvalidLeadScore     = errors.New("lead score must be between 0 and 100")
	ErrInvalidDeadline      = errors.New("deadline must not be before start date")
	ErrTooLong              = errors.New("value too long")
)

var appointmentColors = map[AppointmentType]string{
	SiteAssessment:  "blue",
	ProposalMeeting: "purple",
	Installation:    "green",
	Inspection:      "yellow",
	Maintenance:     "orange",
	FollowUp:        "indigo",
}

// AppointmentTypes lists the supported appointment types in display order.
func AppointmentTypes() []AppointmentType {
	return []AppointmentType{SiteAssessment, ProposalMeeting, Installation, Inspection, Maintenance, FollowUp}
}

func (t AppointmentType) Valid() bool {
	_, ok := appointmentColors[t]
	return ok
}

// Color returns the display colour for the type, gray for unknown types.
func (t AppointmentType) Color() string {
	if c, ok := appointmentColors[t]; ok {
		return c
	}
	return "gray"
}

func (t CustomerType) Valid() bool {
	return t == Residential || t == Commercial
}

func (s LeadStatus) Valid() bool {
	switch s {
	case LeadNew, LeadContacted, LeadQualified, LeadProposal, LeadClosedWon, LeadClosedLost:
		return true
	}
	return false
}

func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectPlanned, ProjectInProgress, ProjectInstallation, ProjectCompleted:
		return true
	}
	return false
}

func (p Priority) Valid() bool {
	switch p {
	case PriorityNone, PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Converted reports whether the lead has been linked to a customer.
func (l Lead) Converted() bool {
	return l.CustomerID != nil
}

func validEmail(s string) bool {
	if s == "" {
		return false
	}
	_, err := mail.ParseAddress(s)
	return err == nil
}

func (c Customer) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if len(c.Name) > 200 {
		return fmt.Errorf("name exceeds 200 characters: %w", ErrTooLong)
	}
	if c.Email != "" && !validEmail(c.Email) {
		return ErrInvalidEmail
	}
	if !c.Type.Valid() {
		return ErrInvalidCustomerType
	}
	return nil
}

func (l Lead) Validate() error {
	if strings.TrimSpace(l.Name) == "" {
		return ErrEmptyName
	}
	if !validEmail(l.Email) {
		return ErrInvalidEmail
	}
	if strings.TrimSpace(l.Phone) == "" {
		return ErrEmptyPhone
	}
	if !l.Status.Valid() {
		return ErrInvalidLeadStatus
	}
	if l.LeadScore != nil && (*l.LeadScore < 0 || *l.LeadScore > 100) {
		return ErrInvalidLeadScore
	}
	return nil
}

func (p Project) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrEmptyName
	}
	if p.CustomerID <= 0 {
		return ErrMissingCustomer
	}
	if !p.Status.Valid() {
		return ErrInvalidProjectStatus
	}
	if !p.Priority.Valid() {
		return ErrInvalidPriority
	}
	if p.Budget != nil && p.Budget.Cents < 0 {
		return ErrInvalidAmount
	}
	if p.Cost != nil && p.Cost.Cents < 0 {
		return ErrInvalidAmount
	}
	if p.StartDate != nil && p.Deadline != nil && p.Deadline.Before(*p.StartDate) {
		return ErrInvalidDeadline
	}
	return nil
}

func (a Appointment) Validate() error {
	if !a.Type.Valid() {
		return ErrInvalidAppointment
	}
	if a.Date.IsZero() {
		return ErrMissingDate
	}
	if a.ProjectID <= 0 {
		return ErrMissingProject
	}
	if len(a.Notes) > 2000 {
		return fmt.Errorf("notes exceed 2000 characters: %w", ErrTooLong)
	}
	return nil
}
