package api

import "net/http"

func (a *API) healthz(w http.ResponseWriter, r *http.Request) {
	if err := a.repo.Ping(r.Context()); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) sequences(w http.ResponseWriter, r *http.Request) {
	seqs, err := a.repo.Sequences(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	out := make(map[string]int64, len(seqs))
	for k, v := range seqs {
		out[k.String()] = v
	}
	writeJSON(w, http.StatusOK, SequencesResponse{Sequences: out})
}

func (a *API) indexes(w http.ResponseWriter, r *http.Request) {
	idx, err := a.repo.Indexes(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	out := make(map[string][]string, len(idx))
	for c, names := range idx {
		out[string(c)] = names
	}
	writeJSON(w, http.StatusOK, IndexesResponse{Indexes: out})
}
