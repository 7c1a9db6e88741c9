package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/xraph/jobrepo"
	"github.com/xraph/jobrepo/instance"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// JobNamesResponse lists the distinct job names.
type JobNamesResponse struct {
	Names []string `json:"names"`
}

// InstancesResponse is a page of instances for one job.
type InstancesResponse struct {
	JobName   string                  `json:"job_name"`
	Total     int64                   `json:"total"`
	Offset    int                     `json:"offset"`
	Limit     int                     `json:"limit"`
	Instances []*instance.JobInstance `json:"instances"`
}

// IndexesResponse maps collection name to index names.
type IndexesResponse struct {
	Indexes map[string][]string `json:"indexes"`
}

// SequencesResponse maps counter name to its last issued value.
type SequencesResponse struct {
	Sequences map[string]int64 `json:"sequences"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps repository errors to HTTP status codes.
func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code, body := classify(err)
	if code >= http.StatusInternalServerError {
		a.logger.ErrorContext(r.Context(), "jobrepo api request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
	}
	writeJSON(w, code, body)
}

func classify(err error) (int, ErrorResponse) {
	msg := err.Error()
	switch {
	case errors.Is(err, jobrepo.ErrInvalidArgument):
		return http.StatusBadRequest, ErrorResponse{Code: "invalid_argument", Message: msg}
	case errors.Is(err, jobrepo.ErrReferenceNotFound),
		errors.Is(err, jobrepo.ErrInstanceNotFound),
		errors.Is(err, jobrepo.ErrExecutionNotFound),
		errors.Is(err, jobrepo.ErrStepExecutionNotFound):
		return http.StatusNotFound, ErrorResponse{Code: "not_found", Message: msg}
	case errors.Is(err, jobrepo.ErrInvalidTransition),
		errors.Is(err, jobrepo.ErrDuplicateInstance),
		errors.Is(err, jobrepo.ErrExecutionAlreadyRunning),
		errors.Is(err, jobrepo.ErrInstanceAlreadyComplete):
		return http.StatusConflict, ErrorResponse{Code: "conflict", Message: msg}
	case errors.Is(err, jobrepo.ErrBackendUnavailable):
		return http.StatusServiceUnavailable, ErrorResponse{Code: "backend_unavailable", Message: msg}
	case errors.Is(err, jobrepo.ErrStoreNotInitialized):
		return http.StatusInternalServerError, ErrorResponse{Code: "store_not_initialized", Message: msg}
	default:
		return http.StatusInternalServerError, ErrorResponse{Code: "internal", Message: msg}
	}
}

func pathID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("%w: invalid id %q", jobrepo.ErrInvalidArgument, raw)
	}
	return v, nil
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%w: invalid %s %q", jobrepo.ErrInvalidArgument, name, raw)
	}
	return v, nil
}

func pageSize(limit int) int {
	switch {
	case limit <= 0:
		return defaultPageSize
	case limit > maxPageSize:
		return maxPageSize
	}
	return limit
}
