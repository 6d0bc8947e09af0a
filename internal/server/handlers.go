package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"commitvault/internal/dispatch"
	"commitvault/internal/failure"
	"commitvault/internal/logger"
	"commitvault/internal/partycall"
	"commitvault/internal/vault"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
)

const maxBody = 1 << 20

type dispatchRequest struct {
	TargetEntity  string `json:"targetEntity"`
	TargetAddress string `json:"targetAddress,omitempty"`
	OperationName string `json:"operationName"`
	OperationArgs []any  `json:"operationArgs"`
}

type dispatchResponse struct {
	TransactionRef string `json:"transactionRef"`
}

type partyCallResponse struct {
	Caller         common.Address `json:"caller"`
	TransactionRef string         `json:"transactionRef"`
}

type executionRequest struct {
	VaultID string `json:"vaultId"`
}

type vaultResponse struct {
	vault.Info
	Status      string `json:"status"`
	CanRedeem   bool   `json:"canRedeem"`
	CanDissolve bool   `json:"canDissolve"`
}

type presenceResponse struct {
	Address common.Address `json:"address"`
	Score   uint64         `json:"score"`
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return failure.Wrap(failure.KindInvalidArgument, "invalid json payload", err)
	}
	return nil
}

func parseAddress(field, s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, failure.New(failure.KindInvalidArgument, field+" is not a hex address")
	}
	return common.HexToAddress(s), nil
}

func bearerToken(r *http.Request) string {
	token, _ := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	return strings.TrimSpace(token)
}

func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	var payload dispatchRequest
	if err := decodeBody(r, &payload); err != nil {
		writeError(w, r, err)
		return
	}
	if payload.TargetEntity == "" || payload.OperationName == "" {
		writeError(w, r, failure.New(failure.KindInvalidArgument, "targetEntity and operationName are required"))
		return
	}

	req := dispatch.Request{
		Target:    payload.TargetEntity,
		Operation: payload.OperationName,
		Args:      payload.OperationArgs,
	}
	if payload.TargetAddress != "" {
		addr, err := parseAddress("targetAddress", payload.TargetAddress)
		if err != nil {
			writeError(w, r, err)
			return
		}
		req.TargetAddress = addr
	}

	res, err := s.deps.Dispatcher.Dispatch(r.Context(), bearerToken(r), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dispatchResponse{TransactionRef: res.TxRef})
}

func (s *Server) handlePartyCall(w http.ResponseWriter, r *http.Request) {
	var env partycall.Envelope
	if err := decodeBody(r, &env); err != nil {
		writeError(w, r, err)
		return
	}
	if env.Payload == "" || env.Signature == "" {
		writeError(w, r, failure.New(failure.KindInvalidArgument, "payload and signature are required"))
		return
	}
	res, err := s.deps.Parties.Submit(r.Context(), env)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, partyCallResponse{Caller: res.Caller, TransactionRef: res.TxRef})
}

func (s *Server) handleExecution(w http.ResponseWriter, r *http.Request) {
	var payload executionRequest
	if err := decodeBody(r, &payload); err != nil {
		writeError(w, r, err)
		return
	}
	id, err := parseAddress("vaultId", payload.VaultID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out, err := s.deps.Relayer.Check(r.Context(), id)
	if err != nil {
		s.updateDeadLetters(r.Context())
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleVault(w http.ResponseWriter, r *http.Request) {
	id, err := parseAddress("vault id", chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	info, err := s.deps.Reader.VaultInfo(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, vaultResponse{
		Info:        info,
		Status:      info.Status().String(),
		CanRedeem:   info.CanRedeem(),
		CanDissolve: info.CanDissolve(),
	})
}

func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, r, failure.Wrap(failure.KindInvalidArgument, "match id", err))
		return
	}
	rec, err := s.deps.Reader.MatchInfo(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handlePresence(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress("address", chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	score, err := s.deps.Reader.PresenceScore(r.Context(), addr)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, presenceResponse{Address: addr, Score: score})
}

type dependencyStatus struct {
	Connected bool    `json:"connected"`
	LatencyMs float64 `json:"latency_ms"`
	Error     string  `json:"error,omitempty"`
}

func checkDependency(ctx context.Context, fn func(context.Context) error) dependencyStatus {
	if fn == nil {
		return dependencyStatus{Connected: true}
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	start := time.Now()
	if err := fn(ctx); err != nil {
		return dependencyStatus{Error: err.Error()}
	}
	return dependencyStatus{Connected: true, LatencyMs: float64(time.Since(start).Microseconds()) / 1000.0}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rpc := checkDependency(ctx, s.deps.RPCHealth)
	db := checkDependency(ctx, s.deps.DBHealth)

	status := "healthy"
	code := http.StatusOK
	if !rpc.Connected || !db.Connected {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, struct {
		Status      string           `json:"status"`
		RPC         dependencyStatus `json:"rpc"`
		Database    dependencyStatus `json:"database"`
		DeadLetters int              `json:"dead_letters"`
	}{
		Status:      status,
		RPC:         rpc,
		Database:    db,
		DeadLetters: s.updateDeadLetters(ctx),
	})
}

func (s *Server) updateDeadLetters(ctx context.Context) int {
	depth, err := s.deps.DeadLetters.Depth()
	if err != nil {
		logger.FromContext(ctx).Warn().Err(err).Msg("read dead letters")
	}
	s.metrics.setDeadLetters(depth)
	return depth
}
