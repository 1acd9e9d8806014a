package http

import (
	"net/http"
	"strings"

	crmlog "crm/internal/log"
	"crm/internal/ports"
)

// handleListAppointments lists appointments ordered by date. from and to
// bound the range, to being exclusive.
func (s *Server) handleListAppointments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	loc := s.reports.Location()
	f := ports.AppointmentFilter{ProjectID: queryID(q, "projectId")}

	if v := strings.TrimSpace(q.Get("from")); v != "" {
		t, err := parseTime(v, loc)
		if err != nil {
			s.writeError(w, r, crmlog.OpList, err)
			return
		}
		f.From = t
	}
	if v := strings.TrimSpace(q.Get("to")); v != "" {
		t, err := parseTime(v, loc)
		if err != nil {
			s.writeError(w, r, crmlog.OpList, err)
			return
		}
		f.To = t
	}

	appts, err := s.crm.ListAppointments(r.Context(), f)
	if err != nil {
		s.writeError(w, r, crmlog.OpList, err)
		return
	}
	out := make([]appointmentRowJSON, 0, len(appts))
	for _, a := range appts {
		out = append(out, toAppointmentRowJSON(a))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetAppointment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, crmlog.OpRead, err)
		return
	}
	a, err := s.crm.GetAppointment(r.Context(), id)
	if err != nil {
		s.writeError(w, r, crmlog.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentRowJSON(a))
}

func (s *Server) handleCreateAppointment(w http.ResponseWriter, r *http.Request) {
	var p appointmentPayload
	if err := decodeJSON(w, r, &p); err != nil {
		s.writeError(w, r, crmlog.OpCreate, err)
		return
	}
	appt, err := p.toAppointment(0, s.reports.Location())
	if err != nil {
		s.writeError(w, r, crmlog.OpCreate, err)
		return
	}
	created, err := s.crm.CreateAppointment(r.Context(), appt)
	if err != nil {
		s.writeError(w, r, crmlog.OpCreate, err)
		return
	}
	s.changed(r, crmlog.EntityAppointment, crmlog.OpCreate, created.ID)
	writeJSON(w, http.StatusCreated, toAppointmentJSON(created))
}

func (s *Server) handleUpdateAppointment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, crmlog.OpUpdate, err)
		return
	}
	var p appointmentPayload
	if err := decodeJSON(w, r, &p); err != nil {
		s.writeError(w, r, crmlog.OpUpdate, err)
		return
	}
	appt, err := p.toAppointment(id, s.reports.Location())
	if err != nil {
		s.writeError(w, r, crmlog.OpUpdate, err)
		return
	}
	updated, err := s.crm.UpdateAppointment(r.Context(), appt)
	if err != nil {
		s.writeError(w, r, crmlog.OpUpdate, err)
		return
	}
	s.changed(r, crmlog.EntityAppointment, crmlog.OpUpdate, id)
	writeJSON(w, http.StatusOK, toAppointmentJSON(updated))
}

func (s *Server) handleDeleteAppointment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, crmlog.OpDelete, err)
		return
	}
	if err := s.crm.DeleteAppointment(r.Context(), id); err != nil {
		s.writeError(w, r, crmlog.OpDelete, err)
		return
	}
	s.changed(r, crmlog.EntityAppointment, crmlog.OpDelete, id)
	w.WriteHeader(http.StatusNoContent)
}
