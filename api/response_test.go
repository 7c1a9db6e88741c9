package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/xraph/jobrepo"
	"github.com/xraph/jobrepo/status"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
		want string
	}{
		{"reference", &jobrepo.ReferenceError{Entity: "job instance", ID: 1}, http.StatusNotFound, "not_found"},
		{"transition", &jobrepo.TransitionError{Entity: "job execution", ID: 1, From: status.Completed, To: status.Started}, http.StatusConflict, "conflict"},
		{"duplicate", &jobrepo.DuplicateInstanceError{JobName: "a", JobKey: "b"}, http.StatusConflict, "conflict"},
		{"unavailable", jobrepo.Unavailable("mongo: find", errors.New("connection refused")), http.StatusServiceUnavailable, "backend_unavailable"},
		{"not initialized", &jobrepo.SequenceError{Kind: "JOB_INSTANCE"}, http.StatusInternalServerError, "store_not_initialized"},
		{"invalid", fmt.Errorf("%w: bad", jobrepo.ErrInvalidArgument), http.StatusBadRequest, "invalid_argument"},
		{"other", errors.New("boom"), http.StatusInternalServerError, "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := classify(tt.err)
			if code != tt.code || body.Code != tt.want {
				t.Errorf("classify = %d/%q, want %d/%q", code, body.Code, tt.code, tt.want)
			}
		})
	}
}

func TestPageSize(t *testing.T) {
	for in, want := range map[int]int{0: defaultPageSize, 10: 10, 10000: maxPageSize} {
		if got := pageSize(in); got != want {
			t.Errorf("pageSize(%d) = %d, want %d", in, got, want)
		}
	}
}
