package http

import (
	"bufio"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	crmlog "crm/internal/log"
	"crm/internal/ports"
	"crm/internal/services"
)

const (
	icsProductID = "-//Solar CRM//Appointments//EN"
	icsStamp     = "20060102T150405Z"
	// icsLookback is how far into the past the feed reaches when no from is given.
	icsLookback = 90 * 24 * time.Hour
)

// icsNamespace seeds stable event UIDs so subscribed calendars update
// events in place instead of duplicating them.
var icsNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("crm/appointments"))

var icsEscaper = strings.NewReplacer(`\`, `\\`, ";", `\;`, ",", `\,`, "\r\n", `\n`, "\n", `\n`)

// handleCalendarICS serves appointments as an iCalendar subscription feed.
// from, to and projectId narrow it like the appointment list does.
func (s *Server) handleCalendarICS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	loc := s.reports.Location()
	now := s.now()
	f := ports.AppointmentFilter{From: now.Add(-icsLookback), ProjectID: queryID(q, "projectId")}

	if v := strings.TrimSpace(q.Get("from")); v != "" {
		t, err := parseTime(v, loc)
		if err != nil {
			s.writeError(w, r, crmlog.OpExport, err)
			return
		}
		f.From = t
	}
	if v := strings.TrimSpace(q.Get("to")); v != "" {
		t, err := parseTime(v, loc)
		if err != nil {
			s.writeError(w, r, crmlog.OpExport, err)
			return
		}
		f.To = t
	}

	appts, err := s.crm.ListAppointments(r.Context(), f)
	if err != nil {
		s.writeError(w, r, crmlog.OpExport, err)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	bw := bufio.NewWriter(w)
	writeICS(bw, appts, loc.String(), now, s.eventDuration)
	if err := bw.Flush(); err != nil {
		s.logger.Warn("Failed to write calendar feed", crmlog.FieldError, err.Error())
	}
}

func writeICS(w *bufio.Writer, appts []services.AppointmentDetail, tz string, now time.Time, duration time.Duration) {
	line := func(s string) {
		w.WriteString(s)
		w.WriteString("\r\n")
	}

	line("BEGIN:VCALENDAR")
	line("VERSION:2.0")
	line("PRODID:" + icsProductID)
	line("METHOD:PUBLISH")
	line("X-WR-CALNAME:CRM Appointments")
	line("X-WR-TIMEZONE:" + tz)
	line("CALSCALE:GREGORIAN")
	line("X-PUBLISHED-TTL:PT1H")

	stamp := now.UTC().Format(icsStamp)
	for _, a := range appts {
		summary := string(a.Type)
		if a.ProjectName != "" {
			summary += ": " + a.ProjectName
		}
		var desc []string
		if a.CustomerName != "" {
			desc = append(desc, "Customer: "+a.CustomerName)
		}
		if a.Notes != "" {
			desc = append(desc, a.Notes)
		}

		line("BEGIN:VEVENT")
		line("UID:" + eventUID(a.ID))
		line("DTSTAMP:" + stamp)
		line("DTSTART:" + a.Date.UTC().Format(icsStamp))
		line("DTEND:" + a.Date.Add(duration).UTC().Format(icsStamp))
		line("SUMMARY:" + icsEscaper.Replace(summary))
		if len(desc) > 0 {
			line("DESCRIPTION:" + icsEscaper.Replace(strings.Join(desc, "\n\n")))
		}
		if a.Address != "" {
			line("LOCATION:" + icsEscaper.Replace(a.Address))
		}
		line("CATEGORIES:" + icsEscaper.Replace(string(a.Type)))
		line("END:VEVENT")
	}
	line("END:VCALENDAR")
}

func eventUID(id int64) string {
	return fmt.Sprintf("%s@crm", uuid.NewSHA1(icsNamespace, []byte("appointment-"+strconv.FormatInt(id, 10))))
}
