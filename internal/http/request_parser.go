package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 1 << 20

var validate = validator.New(validator.WithRequiredStructEnabled())

func init() {
	// Report JSON field names rather than Go field names.
	validate.RegisterTagNameFunc(jsonFieldName)
}

// decodeJSON reads a single JSON object into dst and validates its tags.
// Unknown fields are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return errBadRequest("request body is empty")
		case errors.As(err, &maxErr):
			return errBadRequest("request body exceeds %d bytes", maxErr.Limit)
		default:
			return errBadRequest("invalid JSON: %v", err)
		}
	}
	if dec.More() {
		return errBadRequest("request body must contain a single JSON object")
	}
	return validate.Struct(dst)
}

// pathID parses the {id} wildcard.
func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 1 {
		return 0, errBadRequest("invalid id %q", r.PathValue("id"))
	}
	return id, nil
}
