package http

import (
	"net/http"
	"strings"

	"crm/internal/core"
	crmlog "crm/internal/log"
	"crm/internal/ports"
)

func (s *Server) handleListLeads(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := queryInt(q, "page", 1, 0)
	limit := queryInt(q, "limit", defaultPageSize, maxPageSize)

	f := ports.LeadFilter{
		Status:     core.LeadStatus(strings.TrimSpace(q.Get("status"))),
		CustomerID: queryID(q, "customerId"),
		Sort:       q.Get("sort"),
		Offset:     (page - 1) * limit,
		Limit:      limit,
	}
	if f.Status != "" && !f.Status.Valid() {
		s.writeError(w, r, crmlog.OpList, errBadRequest("unknown lead status %q", f.Status))
		return
	}
	leads, total, err := s.crm.ListLeads(r.Context(), f)
	if err != nil {
		s.writeError(w, r, crmlog.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, leadPageJSON{
		Leads:      toLeadsJSON(leads),
		Total:      total,
		Page:       page,
		TotalPages: totalPages(total, limit),
	})
}

func (s *Server) handleGetLead(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, crmlog.OpRead, err)
		return
	}
	lead, err := s.crm.GetLead(r.Context(), id)
	if err != nil {
		s.writeError(w, r, crmlog.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, toLeadJSON(lead))
}

func (s *Server) handleCreateLead(w http.ResponseWriter, r *http.Request) {
	var p leadPayload
	if err := decodeJSON(w, r, &p); err != nil {
		s.writeError(w, r, crmlog.OpCreate, err)
		return
	}
	created, err := s.crm.CreateLead(r.Context(), p.toLead(0))
	if err != nil {
		s.writeError(w, r, crmlog.OpCreate, err)
		return
	}
	s.changed(r, crmlog.EntityLead, crmlog.OpCreate, created.ID)
	writeJSON(w, http.StatusCreated, toLeadJSON(created))
}

func (s *Server) handleUpdateLead(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, crmlog.OpUpdate, err)
		return
	}
	var p leadPayload
	if err := decodeJSON(w, r, &p); err != nil {
		s.writeError(w, r, crmlog.OpUpdate, err)
		return
	}
	updated, err := s.crm.UpdateLead(r.Context(), p.toLead(id))
	if err != nil {
		s.writeError(w, r, crmlog.OpUpdate, err)
		return
	}
	s.changed(r, crmlog.EntityLead, crmlog.OpUpdate, id)
	writeJSON(w, http.StatusOK, toLeadJSON(updated))
}

func (s *Server) handleDeleteLead(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, crmlog.OpDelete, err)
		return
	}
	if err := s.crm.DeleteLead(r.Context(), id); err != nil {
		s.writeError(w, r, crmlog.OpDelete, err)
		return
	}
	s.changed(r, crmlog.EntityLead, crmlog.OpDelete, id)
	w.WriteHeader(http.StatusNoContent)
}
