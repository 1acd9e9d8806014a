// Package gcal mirrors appointments into a Google Calendar using a service
// account.
package gcal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2/google"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"

	"crm/internal/core"
	"crm/internal/ports"
)

// PropAppointmentID is the private extended property linking an event back
// to its appointment.
const PropAppointmentID = "crm_appointment_id"

const defaultDuration = time.Hour

var _ ports.CalendarMirror = (*Client)(nil)

type Options struct {
	CalendarID string
	// CredentialsJSON takes precedence over CredentialsFile.
	CredentialsJSON string
	CredentialsFile string
	// EventDuration is the length given to mirrored events (default 1h).
	EventDuration time.Duration
	// TimeZone is the IANA name events are written in.
	TimeZone string
}

type Client struct {
	svc        *calendar.Service
	calendarID string
	duration   time.Duration
	timeZone   string
}

// New creates a Calendar client authenticated with service account
// credentials. When extra client options are given they replace the
// credential options entirely; tests use this to target a local server.
func New(ctx context.Context, opts Options, extra ...goption.ClientOption) (*Client, error) {
	if strings.TrimSpace(opts.CalendarID) == "" {
		return nil, errors.New("missing calendar id")
	}

	clientOpts := extra
	if len(extra) == 0 {
		creds, err := credentials(ctx, opts)
		if err != nil {
			return nil, err
		}
		jwtConfig, err := google.JWTConfigFromJSON(creds, calendar.CalendarEventsScope)
		if err != nil {
			return nil, fmt.Errorf("parse service account credentials: %w", err)
		}
		slog.InfoContext(ctx, "Creating Google Calendar service with Service Account",
			"client_email", jwtConfig.Email,
			"scope", calendar.CalendarEventsScope)
		clientOpts = []goption.ClientOption{goption.WithTokenSource(jwtConfig.TokenSource(ctx))}
	}

	svc, err := calendar.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}

	d := opts.EventDuration
	if d <= 0 {
		d = defaultDuration
	}
	return &Client{svc: svc, calendarID: opts.CalendarID, duration: d, timeZone: opts.TimeZone}, nil
}

func credentials(ctx context.Context, opts Options) ([]byte, error) {
	switch {
	case strings.TrimSpace(opts.CredentialsJSON) != "":
		slog.InfoContext(ctx, "Using inline JSON credentials")
		return []byte(opts.CredentialsJSON), nil
	case strings.TrimSpace(opts.CredentialsFile) != "":
		slog.InfoContext(ctx, "Reading credentials from file", "path", opts.CredentialsFile)
		b, err := os.ReadFile(opts.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}
}

// BuildEvent renders an appointment as a calendar event.
func BuildEvent(a core.Appointment, d ports.EventDetails, duration time.Duration, tz string) *calendar.Event {
	summary := string(a.Type)
	if d.ProjectName != "" {
		summary += ": " + d.ProjectName
	}

	var desc []string
	if d.CustomerName != "" {
		desc = append(desc, "Customer: "+d.CustomerName)
	}
	if a.Notes != "" {
		desc = append(desc, a.Notes)
	}

	return &calendar.Event{
		Summary:     summary,
		Description: strings.Join(desc, "\n\n"),
		Location:    d.Address,
		Start:       &calendar.EventDateTime{DateTime: a.Date.Format(time.RFC3339), TimeZone: tz},
		End:         &calendar.EventDateTime{DateTime: a.Date.Add(duration).Format(time.RFC3339), TimeZone: tz},
		ExtendedProperties: &calendar.EventExtendedProperties{
			Private: map[string]string{PropAppointmentID: strconv.FormatInt(a.ID, 10)},
		},
	}
}

// UpsertEvent updates the appointment's event, or inserts one when the
// appointment has none or its event no longer exists. It returns the event id.
func (c *Client) UpsertEvent(ctx context.Context, a core.Appointment, d ports.EventDetails) (string, error) {
	ev := BuildEvent(a, d, c.duration, c.timeZone)

	if a.ExternalID != "" {
		updated, err := c.svc.Events.Update(c.calendarID, a.ExternalID, ev).Context(ctx).Do()
		if err == nil {
			return updated.Id, nil
		}
		if !isGone(err) {
			return "", fmt.Errorf("update event %s: %w", a.ExternalID, err)
		}
		slog.WarnContext(ctx, "Mirrored event missing, recreating",
			"appointment_id", a.ID, "external_id", a.ExternalID)
	}

	created, err := c.svc.Events.Insert(c.calendarID, ev).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("insert event for appointment %d: %w", a.ID, err)
	}
	return created.Id, nil
}

// DeleteEvent removes a mirrored event. An event that is already gone is not
// an error.
func (c *Client) DeleteEvent(ctx context.Context, externalID string) error {
	if externalID == "" {
		return nil
	}
	err := c.svc.Events.Delete(c.calendarID, externalID).Context(ctx).Do()
	if err != nil && !isGone(err) {
		return fmt.Errorf("delete event %s: %w", externalID, err)
	}
	return nil
}

func isGone(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == http.StatusNotFound || gerr.Code == http.StatusGone
	}
	return false
}
