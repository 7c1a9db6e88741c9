package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xraph/jobrepo/instance"
)

func (a *API) listJobNames(w http.ResponseWriter, r *http.Request) {
	names, err := a.repo.JobNames(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, JobNamesResponse{Names: names})
}

func (a *API) listInstances(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit", defaultPageSize)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	limit = pageSize(limit)

	ctx := r.Context()
	insts, err := a.repo.ListInstances(ctx, name, instance.ListOpts{Offset: offset, Limit: limit})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	total, err := a.repo.CountInstances(ctx, name)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if insts == nil {
		insts = []*instance.JobInstance{}
	}

	writeJSON(w, http.StatusOK, InstancesResponse{
		JobName:   name,
		Total:     total,
		Offset:    offset,
		Limit:     limit,
		Instances: insts,
	})
}

func (a *API) listRunning(w http.ResponseWriter, r *http.Request) {
	execs, err := a.repo.FindRunningExecutions(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, execs)
}

func (a *API) getInstance(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	inst, err := a.repo.GetInstance(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inst)
}
