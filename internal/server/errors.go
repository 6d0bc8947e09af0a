package server

import (
	"encoding/json"
	"net/http"

	"commitvault/internal/failure"
	"commitvault/internal/logger"
)

var kindStatus = map[failure.Kind]int{
	failure.KindNotFound:           http.StatusNotFound,
	failure.KindIneligibleMatch:    http.StatusUnprocessableEntity,
	failure.KindTransferDenied:     http.StatusUnprocessableEntity,
	failure.KindAlreadyFinalized:   http.StatusUnprocessableEntity,
	failure.KindSimulationFailed:   http.StatusUnprocessableEntity,
	failure.KindPreconditionFailed: http.StatusUnprocessableEntity,
	failure.KindUnauthorized:       http.StatusUnauthorized,
	failure.KindForbidden:          http.StatusForbidden,
	failure.KindCallerDenied:       http.StatusForbidden,
	failure.KindInvalidArgument:    http.StatusBadRequest,
	failure.KindSubmissionFailed:   http.StatusBadGateway,
	failure.KindInternal:           http.StatusInternalServerError,
}

// opaque kinds answer with a fixed message; the detail only goes to the log.
var opaque = map[failure.Kind]string{
	failure.KindUnauthorized:     "unauthorized",
	failure.KindForbidden:        "operation not permitted",
	failure.KindSubmissionFailed: "submission failed",
	failure.KindInternal:         "internal error",
}

type errorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

func statusFromError(err error) int {
	if status, ok := kindStatus[failure.KindOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := failure.KindOf(err)
	status := statusFromError(err)

	msg, hide := opaque[kind]
	if !hide {
		msg = err.Error()
	}

	ev := logger.FromRequest(r).Warn()
	if status >= http.StatusInternalServerError {
		ev = logger.FromRequest(r).Error()
	}
	ev.Err(err).Str("kind", string(kind)).Int("status", status).Msg("request failed")

	writeJSON(w, status, errorBody{Error: errorDetail{Kind: string(kind), Message: msg}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
