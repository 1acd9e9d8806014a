package http

import (
	"net/http"
	"strings"

	"crm/internal/core"
	crmlog "crm/internal/log"
	"crm/internal/ports"
)

// handleListProjects accepts customerId and a comma separated status list.
func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := ports.ProjectFilter{CustomerID: queryID(q, "customerId")}
	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			st := core.ProjectStatus(strings.TrimSpace(part))
			if !st.Valid() {
				s.writeError(w, r, crmlog.OpList, errBadRequest("unknown project status %q", st))
				return
			}
			f.Statuses = append(f.Statuses, st)
		}
	}

	projects, err := s.crm.ListProjects(r.Context(), f)
	if err != nil {
		s.writeError(w, r, crmlog.OpList, err)
		return
	}

	out := make([]projectRowJSON, 0, len(projects))
	for _, p := range projects {
		row := projectRowJSON{
			projectJSON:  toProjectJSON(p.Project),
			Customer:     toCustomerJSON(p.Customer),
			Appointments: []appointmentJSON{},
		}
		if p.FirstAppointment != nil {
			row.Appointments = append(row.Appointments, toAppointmentJSON(*p.FirstAppointment))
		}
		out = append(out, row)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, crmlog.OpRead, err)
		return
	}
	detail, err := s.crm.GetProject(r.Context(), id)
	if err != nil {
		s.writeError(w, r, crmlog.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, projectDetailJSON{
		projectJSON:  toProjectJSON(detail.Project),
		Customer:     toCustomerJSON(detail.Customer),
		Appointments: toAppointmentsJSON(detail.Appointments),
	})
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var p projectPayload
	if err := decodeJSON(w, r, &p); err != nil {
		s.writeError(w, r, crmlog.OpCreate, err)
		return
	}
	project, err := p.toProject(0, s.reports.Location())
	if err != nil {
		s.writeError(w, r, crmlog.OpCreate, err)
		return
	}
	created, err := s.crm.CreateProject(r.Context(), project)
	if err != nil {
		s.writeError(w, r, crmlog.OpCreate, err)
		return
	}
	s.changed(r, crmlog.EntityProject, crmlog.OpCreate, created.ID)
	writeJSON(w, http.StatusCreated, toProjectJSON(created))
}

func (s *Server) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, crmlog.OpUpdate, err)
		return
	}
	var p projectPayload
	if err := decodeJSON(w, r, &p); err != nil {
		s.writeError(w, r, crmlog.OpUpdate, err)
		return
	}
	project, err := p.toProject(id, s.reports.Location())
	if err != nil {
		s.writeError(w, r, crmlog.OpUpdate, err)
		return
	}
	updated, err := s.crm.UpdateProject(r.Context(), project)
	if err != nil {
		s.writeError(w, r, crmlog.OpUpdate, err)
		return
	}
	s.changed(r, crmlog.EntityProject, crmlog.OpUpdate, id)
	writeJSON(w, http.StatusOK, toProjectJSON(updated))
}

// handleDeleteProject removes the project together with its appointments.
func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, crmlog.OpDelete, err)
		return
	}
	if err := s.crm.DeleteProject(r.Context(), id); err != nil {
		s.writeError(w, r, crmlog.OpDelete, err)
		return
	}
	s.changed(r, crmlog.EntityProject, crmlog.OpDelete, id)
	w.WriteHeader(http.StatusNoContent)
}
