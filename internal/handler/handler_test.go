package handler

import (
	"errors"
	"net/http"
	"testing"

	"github.com/damiencorpataux/relrest/internal/planner"
	"github.com/damiencorpataux/relrest/internal/request"
	"github.com/damiencorpataux/relrest/internal/rights"
)

func TestStatusOf(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{&request.GrammarError{Detail: "x"}, http.StatusBadRequest},
		{&planner.UnresolvedReferenceError{Detail: "x"}, http.StatusBadRequest},
		{&planner.UnsupportedOperationError{Comparator: "x"}, http.StatusBadRequest},
		{&planner.MissingIdentifierError{Resource: "tag"}, http.StatusBadRequest},
		{&rights.ForbiddenError{}, http.StatusForbidden},
		{&planner.NotFoundError{Resource: "tag"}, http.StatusNotFound},
		{&planner.MultipleResultsError{Resource: "tag", Count: 2}, http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := statusOf(tc.err); got != tc.want {
			t.Errorf("statusOf(%T) = %d, want %d", tc.err, got, tc.want)
		}
	}
}
