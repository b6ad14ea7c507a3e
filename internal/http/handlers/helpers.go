package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"farmnook-dispatch/internal/apperr"
	"farmnook-dispatch/internal/domain"
	"farmnook-dispatch/internal/logx"
)

// GenericErrorMessage is shown for every failure the caller cannot fix.
const GenericErrorMessage = "something went wrong, please try again"

const bodyLimit = 1 << 20

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func reqID(ctx context.Context) string {
	if id := middleware.GetReqID(ctx); id != "" {
		return id
	}
	return "-"
}

func writeJSON(logger logx.Logger, w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		logger.Warn("json encode failed",
			logx.String("request_id", reqID(r.Context())),
			logx.Err(err),
		)
	}
}

func writeError(logger logx.Logger, w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(logger, w, r, status, ErrorResponse{Error: msg})
}

// errorText overrides the default messages for 404 and 409.
type errorText struct {
	notFound string
	conflict string
}

// writeServiceError maps an error returned by a service to a status code.
// Unrecognised errors become a 500 with the generic retry message.
func writeServiceError(logger logx.Logger, w http.ResponseWriter, r *http.Request, err error, text errorText) {
	var fields domain.FieldErrors
	switch {
	case errors.As(err, &fields):
		writeJSON(logger, w, r, http.StatusBadRequest, ErrorResponse{Error: "invalid input", Fields: fields})
	case errors.Is(err, apperr.ErrInvalid):
		writeError(logger, w, r, http.StatusBadRequest, "invalid input")
	case errors.Is(err, apperr.ErrNotFound):
		writeError(logger, w, r, http.StatusNotFound, orDefault(text.notFound, "not found"))
	case errors.Is(err, apperr.ErrConflict):
		writeError(logger, w, r, http.StatusConflict, orDefault(text.conflict, "conflict"))
	case errors.Is(err, apperr.ErrUnauthorized):
		writeError(logger, w, r, http.StatusUnauthorized, "unauthorized")
	default:
		logger.Error("request failed",
			logx.String("request_id", reqID(r.Context())),
			logx.String("path", r.URL.Path),
			logx.Err(err),
		)
		writeError(logger, w, r, http.StatusInternalServerError, GenericErrorMessage)
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func decodeJSON[T any](logger logx.Logger, w http.ResponseWriter, r *http.Request, dst *T) bool {
	r.Body = http.MaxBytesReader(w, r.Body, bodyLimit)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		writeError(logger, w, r, http.StatusBadRequest, "invalid json")
		return false
	}
	if err := dec.Decode(new(struct{})); err != io.EOF {
		writeError(logger, w, r, http.StatusBadRequest, "invalid json: trailing data")
		return false
	}
	return true
}

// idFromURL returns the trimmed path parameter, writing a 400 when it is blank.
func idFromURL(logger logx.Logger, w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	id := strings.TrimSpace(chi.URLParam(r, name))
	if id == "" {
		writeJSON(logger, w, r, http.StatusBadRequest, ErrorResponse{
			Error:  "invalid input",
			Fields: map[string]string{name: "is required"},
		})
		return "", false
	}
	return id, true
}
