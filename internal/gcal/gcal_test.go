package gcal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	calendar "google.golang.org/api/calendar/v3"
	goption "google.golang.org/api/option"

	"crm/internal/core"
	"crm/internal/ports"
)

// fakeCalendar serves the handful of Events endpoints the client uses.
type fakeCalendar struct {
	mu      sync.Mutex
	events  map[string]*calendar.Event
	nextID  int
	calls   []string
	deleted []string
}

func (f *fakeCalendar) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, r.Method)
	idx := strings.Index(r.URL.Path, "/events")
	if idx < 0 {
		http.NotFound(w, r)
		return
	}
	id := strings.TrimPrefix(r.URL.Path[idx+len("/events"):], "/")

	writeErr := func(code int) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"code": code, "message": http.StatusText(code)}})
	}

	switch {
	case r.Method == http.MethodPost && id == "":
		var ev calendar.Event
		if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
			writeErr(http.StatusBadRequest)
			return
		}
		f.nextID++
		ev.Id = "evt" + string(rune('0'+f.nextID))
		f.events[ev.Id] = &ev
		_ = json.NewEncoder(w).Encode(&ev)
	case r.Method == http.MethodPut:
		if _, ok := f.events[id]; !ok {
			writeErr(http.StatusNotFound)
			return
		}
		var ev calendar.Event
		_ = json.NewDecoder(r.Body).Decode(&ev)
		ev.Id = id
		f.events[id] = &ev
		_ = json.NewEncoder(w).Encode(&ev)
	case r.Method == http.MethodDelete:
		if _, ok := f.events[id]; !ok {
			writeErr(http.StatusGone)
			return
		}
		delete(f.events, id)
		f.deleted = append(f.deleted, id)
		w.WriteHeader(http.StatusNoContent)
	default:
		writeErr(http.StatusMethodNotAllowed)
	}
}

func newTestClient(t *testing.T) (*Client, *fakeCalendar) {
	t.Helper()
	fake := &fakeCalendar{events: map[string]*calendar.Event{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	c, err := New(context.Background(), Options{CalendarID: "crm@group.calendar.google.com", TimeZone: "UTC"},
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithoutAuthentication(),
		goption.WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return c, fake
}

func TestNewRequiresCalendarAndCredentials(t *testing.T) {
	_, err := New(context.Background(), Options{})
	assert.Error(t, err)

	_, err = New(context.Background(), Options{CalendarID: "primary"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing service account credentials")

	_, err = New(context.Background(), Options{CalendarID: "primary", CredentialsFile: "/does/not/exist.json"})
	assert.Error(t, err)

	_, err = New(context.Background(), Options{CalendarID: "primary", CredentialsJSON: `{"type":"authorized_user"}`})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse service account credentials")
}

func TestBuildEvent(t *testing.T) {
	a := core.Appointment{
		ID:    42,
		Type:  core.SiteAssessment,
		Date:  time.Date(2025, 3, 15, 14, 30, 0, 0, time.UTC),
		Notes: "Check roof pitch",
	}
	ev := BuildEvent(a, ports.EventDetails{ProjectName: "Garage array", CustomerName: "Ada", Address: "1 Sun St"}, 90*time.Minute, "UTC")

	assert.Equal(t, "Site Assessment: Garage array", ev.Summary)
	assert.Equal(t, "Customer: Ada\n\nCheck roof pitch", ev.Description)
	assert.Equal(t, "1 Sun St", ev.Location)
	assert.Equal(t, "2025-03-15T14:30:00Z", ev.Start.DateTime)
	assert.Equal(t, "2025-03-15T16:00:00Z", ev.End.DateTime)
	assert.Equal(t, "42", ev.ExtendedProperties.Private[PropAppointmentID])

	bare := BuildEvent(core.Appointment{ID: 1, Type: core.Inspection, Date: a.Date}, ports.EventDetails{}, time.Hour, "")
	assert.Equal(t, "Inspection", bare.Summary)
	assert.Empty(t, bare.Description)
}

func TestUpsertAndDeleteEvent(t *testing.T) {
	ctx := context.Background()
	c, fake := newTestClient(t)

	a := core.Appointment{ID: 7, Type: core.Installation, Date: time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)}
	id, err := c.UpsertEvent(ctx, a, ports.EventDetails{ProjectName: "Roof"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	a.ExternalID = id
	a.Notes = "moved"
	again, err := c.UpsertEvent(ctx, a, ports.EventDetails{ProjectName: "Roof"})
	require.NoError(t, err)
	assert.Equal(t, id, again)
	assert.Equal(t, "moved", fake.events[id].Description)

	require.NoError(t, c.DeleteEvent(ctx, id))
	assert.Equal(t, []string{id}, fake.deleted)

	// Already gone.
	require.NoError(t, c.DeleteEvent(ctx, id))
	require.NoError(t, c.DeleteEvent(ctx, ""))

	// Updating a vanished event recreates it.
	recreated, err := c.UpsertEvent(ctx, a, ports.EventDetails{})
	require.NoError(t, err)
	assert.NotEqual(t, id, recreated)
	assert.Equal(t, []string{"POST", "PUT", "DELETE", "DELETE", "PUT", "POST"}, fake.calls)
}
