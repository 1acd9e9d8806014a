package http

import (
	"net/http"
	"strings"

	"crm/internal/core"
	crmlog "crm/internal/log"
	"crm/internal/ports"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
	allTypes        = "All Types"
)

func (s *Server) handleListCustomers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := queryInt(q, "page", 1, 0)
	pageSize := queryInt(q, "pageSize", defaultPageSize, maxPageSize)

	f := ports.CustomerFilter{
		Search: sanitizeInput(q.Get("search")),
		SortBy: q.Get("sortBy"),
		Asc:    strings.EqualFold(q.Get("sortOrder"), "asc"),
		Offset: (page - 1) * pageSize,
		Limit:  pageSize,
	}
	if t := strings.TrimSpace(q.Get("type")); t != "" && t != allTypes {
		f.Type = core.CustomerType(t)
	}

	rows, total, err := s.crm.ListCustomers(r.Context(), f)
	if err != nil {
		s.writeError(w, r, crmlog.OpList, err)
		return
	}

	out := customerPageJSON{
		Customers:   make([]customerRowJSON, 0, len(rows)),
		TotalCount:  total,
		CurrentPage: page,
		TotalPages:  totalPages(total, pageSize),
	}
	for _, row := range rows {
		out.Customers = append(out.Customers, toCustomerRowJSON(row))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, crmlog.OpRead, err)
		return
	}
	detail, err := s.crm.GetCustomer(r.Context(), id)
	if err != nil {
		s.writeError(w, r, crmlog.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, customerDetailJSON{
		customerJSON: toCustomerJSON(detail.Customer),
		Projects:     toProjectsJSON(detail.Projects),
		Leads:        toLeadsJSON(detail.Leads),
	})
}

func (s *Server) handleCreateCustomer(w http.ResponseWriter, r *http.Request) {
	var p customerPayload
	if err := decodeJSON(w, r, &p); err != nil {
		s.writeError(w, r, crmlog.OpCreate, err)
		return
	}
	created, err := s.crm.CreateCustomer(r.Context(), p.toCustomer(0))
	if err != nil {
		s.writeError(w, r, crmlog.OpCreate, err)
		return
	}
	s.changed(r, crmlog.EntityCustomer, crmlog.OpCreate, created.ID)
	writeJSON(w, http.StatusCreated, toCustomerJSON(created))
}

func (s *Server) handleUpdateCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, crmlog.OpUpdate, err)
		return
	}
	var p customerPayload
	if err := decodeJSON(w, r, &p); err != nil {
		s.writeError(w, r, crmlog.OpUpdate, err)
		return
	}
	updated, err := s.crm.UpdateCustomer(r.Context(), p.toCustomer(id))
	if err != nil {
		s.writeError(w, r, crmlog.OpUpdate, err)
		return
	}
	s.changed(r, crmlog.EntityCustomer, crmlog.OpUpdate, id)
	writeJSON(w, http.StatusOK, toCustomerJSON(updated))
}

// handleDeleteCustomer answers 409 while the customer still owns projects
// or leads.
func (s *Server) handleDeleteCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, crmlog.OpDelete, err)
		return
	}
	if err := s.crm.DeleteCustomer(r.Context(), id); err != nil {
		s.writeError(w, r, crmlog.OpDelete, err)
		return
	}
	s.changed(r, crmlog.EntityCustomer, crmlog.OpDelete, id)
	w.WriteHeader(http.StatusNoContent)
}
