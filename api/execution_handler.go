package api

import (
	"errors"
	"net/http"

	"github.com/xraph/jobrepo"
	"github.com/xraph/jobrepo/execution"
	"github.com/xraph/jobrepo/status"
)

// listExecutions serves /v1/instances/{id}/executions, optionally filtered
// by ?status=.
func (a *API) listExecutions(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	ctx := r.Context()

	// An unknown instance is a 404 rather than an empty list.
	if _, err := a.repo.GetInstance(ctx, id); err != nil {
		a.writeError(w, r, err)
		return
	}

	var execs []*execution.JobExecution
	if raw := r.URL.Query().Get("status"); raw != "" {
		st, perr := status.Parse(raw)
		if perr != nil {
			a.writeError(w, r, errors.Join(jobrepo.ErrInvalidArgument, perr))
			return
		}
		execs, err = a.repo.FindExecutionsByInstanceAndStatus(ctx, id, st)
	} else {
		execs, err = a.repo.FindExecutionsByInstance(ctx, id)
	}
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, execs)
}

func (a *API) getExecution(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	exec, err := a.repo.GetExecution(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, exec)
}

func (a *API) listSteps(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	ctx := r.Context()
	if _, err := a.repo.GetExecution(ctx, id); err != nil {
		a.writeError(w, r, err)
		return
	}
	steps, err := a.repo.FindStepExecutionsByJobExecution(ctx, id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, steps)
}

func (a *API) getStep(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	se, err := a.repo.GetStepExecution(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, se)
}
