package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"crm/internal/core"
	crmlog "crm/internal/log"
)

// apiError is the JSON body of every failed request.
type apiError struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

// requestError is a client error raised while reading a request.
type requestError struct {
	msg string
}

func (e *requestError) Error() string { return e.msg }

func errBadRequest(format string, args ...any) error {
	return &requestError{msg: fmt.Sprintf(format, args...)}
}

// validationErrors are the core sentinels that mean the client sent an
// invalid entity.
var validationErrors = []error{
	core.ErrEmptyName,
	core.ErrInvalidEmail,
	core.ErrEmptyPhone,
	core.ErrInvalidCustomerType,
	core.ErrInvalidLeadStatus,
	core.ErrInvalidProjectStatus,
	core.ErrInvalidPriority,
	core.ErrInvalidAppointment,
	core.ErrMissingDate,
	core.ErrMissingCustomer,
	core.ErrMissingProject,
	core.ErrInvalidLeadScore,
	core.ErrInvalidDeadline,
	core.ErrInvalidAmount,
	core.ErrTooLong,
}

// statusFor maps an error to its HTTP status and a message safe to return.
func statusFor(err error) (int, apiError) {
	var reqErr *requestError
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &reqErr):
		return http.StatusBadRequest, apiError{Error: reqErr.msg}
	case errors.As(err, &verrs):
		details := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			details = append(details, describeFieldError(fe))
		}
		return http.StatusBadRequest, apiError{Error: "validation failed", Details: details}
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound, apiError{Error: "not found"}
	case errors.Is(err, core.ErrCustomerHasRelations):
		return http.StatusConflict, apiError{Error: core.ErrCustomerHasRelations.Error()}
	}
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return http.StatusBadRequest, apiError{Error: err.Error()}
		}
	}
	return http.StatusInternalServerError, apiError{Error: "internal server error"}
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return fmt.Sprintf("%s must be a valid email address", fe.Field())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeRawJSON writes an already encoded body, used for cached views.
func writeRawJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// writeError logs server faults and sends the mapped status to the client.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, body := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.structured.LogError(r.Context(), "Request failed", err, crmlog.ErrorTypeInternal, op)
	} else {
		crmlog.FromContext(r.Context()).DebugContext(r.Context(), "Request rejected",
			crmlog.FieldOperation, op,
			crmlog.FieldStatusCode, status,
			crmlog.FieldError, err.Error())
	}
	writeJSON(w, status, body)
}
