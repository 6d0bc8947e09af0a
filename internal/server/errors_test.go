package server

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"commitvault/internal/failure"
	"commitvault/internal/vault"

	"github.com/stretchr/testify/assert"
)

func TestStatusFromError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("read: %w", vault.ErrNotFound), http.StatusNotFound},
		{failure.New(failure.KindIneligibleMatch, "level 1"), http.StatusUnprocessableEntity},
		{vault.ErrAlreadyFinalized, http.StatusUnprocessableEntity},
		{vault.ErrRedeemNotApproved, http.StatusUnprocessableEntity},
		{vault.ErrNotParty, http.StatusForbidden},
		{failure.New(failure.KindUnauthorized, "x"), http.StatusUnauthorized},
		{failure.New(failure.KindInvalidArgument, "x"), http.StatusBadRequest},
		{failure.Wrap(failure.KindSubmissionFailed, "submit", errors.New("nonce too low")), http.StatusBadGateway},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFromError(tt.err), tt.err.Error())
	}
}

func TestWriteErrorHidesOpaqueDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	writeError(rec, req, failure.Wrap(failure.KindSubmissionFailed, "submit", errors.New("rpc at 10.0.0.3 refused")))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.NotContains(t, rec.Body.String(), "10.0.0.3")
	assert.Contains(t, rec.Body.String(), `"kind":"SubmissionFailed"`)
}
