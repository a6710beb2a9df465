package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/alfredjeanlab/vesting/internal/api"
	"github.com/alfredjeanlab/vesting/internal/model"
)

// maxBodyBytes bounds request bodies; every request message is small.
const maxBodyBytes = 1 << 20

// NewHTTPHandler returns an http.Handler with all routes registered, wrapped
// in AuthMiddleware.
func (s *VestingServer) NewHTTPHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	mux.HandleFunc("GET /v1/whoami", s.handleWhoAmI)
	mux.HandleFunc("POST /v1/schedules", s.handleCreateSchedule)
	mux.HandleFunc("GET /v1/schedules", s.handleListSchedules)
	mux.HandleFunc("GET /v1/schedules/{beneficiary}", s.handleGetSchedule)
	mux.HandleFunc("GET /v1/schedules/{beneficiary}/releasable", s.handleGetReleasable)
	mux.HandleFunc("POST /v1/agreements", s.handleSignAgreement)
	mux.HandleFunc("GET /v1/agreements", s.handleListAgreements)
	mux.HandleFunc("GET /v1/agreements/{signer}", s.handleGetAgreement)
	mux.HandleFunc("POST /v1/release", s.handleRelease)
	mux.HandleFunc("POST /v1/withdraw", s.handleEmergencyWithdraw)
	mux.HandleFunc("GET /v1/owner", s.handleGetOwner)
	mux.HandleFunc("POST /v1/owner", s.handleTransferOwnership)
	mux.HandleFunc("GET /v1/balances", s.handleListBalances)
	mux.HandleFunc("GET /v1/balances/{address}", s.handleGetBalance)
	mux.HandleFunc("GET /v1/allowances/{owner}/{spender}", s.handleGetAllowance)
	mux.HandleFunc("GET /v1/token", s.handleGetTokenInfo)
	mux.HandleFunc("POST /v1/token/mint", s.handleMint)
	mux.HandleFunc("POST /v1/token/approve", s.handleApprove)
	mux.HandleFunc("POST /v1/token/transfer", s.handleTransfer)
	mux.HandleFunc("POST /v1/token/faucet", s.handleFaucet)
	mux.HandleFunc("GET /v1/events", s.handleListEvents)
	mux.HandleFunc("GET /v1/events/stream", s.handleEventStream)
	mux.HandleFunc("GET /v1/snapshot", s.handleGetSnapshot)
	return AuthMiddleware(s.keyring, mux)
}

// handleHealth handles GET /v1/health.
func (s *VestingServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp, _ := s.Health(r.Context(), &api.Empty{})
	writeJSON(w, http.StatusOK, resp)
}

// handleWhoAmI handles GET /v1/whoami.
func (s *VestingServer) handleWhoAmI(w http.ResponseWriter, r *http.Request) {
	resp, err := s.WhoAmI(r.Context(), &api.Empty{})
	respond(w, http.StatusOK, resp, err)
}

// handleCreateSchedule handles POST /v1/schedules.
func (s *VestingServer) handleCreateSchedule(w http.ResponseWriter, r *http.Request) {
	var req api.CreateScheduleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.CreateSchedule(r.Context(), &req)
	respond(w, http.StatusCreated, resp, err)
}

// handleListSchedules handles GET /v1/schedules.
func (s *VestingServer) handleListSchedules(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter model.ScheduleFilter
	var err error
	if v := q.Get("active_only"); v != "" {
		if filter.ActiveOnly, err = strconv.ParseBool(v); err != nil {
			writeError(w, http.StatusBadRequest, "invalid active_only")
			return
		}
	}
	if filter.Limit, err = intParam(q.Get("limit")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	if filter.Offset, err = intParam(q.Get("offset")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid offset")
		return
	}
	resp, err := s.ListSchedules(r.Context(), &filter)
	respond(w, http.StatusOK, resp, err)
}

// handleGetSchedule handles GET /v1/schedules/{beneficiary}.
func (s *VestingServer) handleGetSchedule(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r, "beneficiary")
	if !ok {
		return
	}
	resp, err := s.GetSchedule(r.Context(), &api.AddressRequest{Address: addr})
	respond(w, http.StatusOK, resp, err)
}

// handleGetReleasable handles GET /v1/schedules/{beneficiary}/releasable.
func (s *VestingServer) handleGetReleasable(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r, "beneficiary")
	if !ok {
		return
	}
	resp, err := s.GetReleasable(r.Context(), &api.AddressRequest{Address: addr})
	respond(w, http.StatusOK, resp, err)
}

// handleSignAgreement handles POST /v1/agreements.
func (s *VestingServer) handleSignAgreement(w http.ResponseWriter, r *http.Request) {
	var req api.SignAgreementRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.SignAgreement(r.Context(), &req)
	respond(w, http.StatusCreated, resp, err)
}

// handleListAgreements handles GET /v1/agreements.
func (s *VestingServer) handleListAgreements(w http.ResponseWriter, r *http.Request) {
	resp, err := s.ListAgreements(r.Context(), &api.Empty{})
	respond(w, http.StatusOK, resp, err)
}

// handleGetAgreement handles GET /v1/agreements/{signer}.
func (s *VestingServer) handleGetAgreement(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r, "signer")
	if !ok {
		return
	}
	resp, err := s.GetAgreement(r.Context(), &api.AddressRequest{Address: addr})
	respond(w, http.StatusOK, resp, err)
}

// handleRelease handles POST /v1/release.
func (s *VestingServer) handleRelease(w http.ResponseWriter, r *http.Request) {
	resp, err := s.Release(r.Context(), &api.Empty{})
	respond(w, http.StatusOK, resp, err)
}

// handleEmergencyWithdraw handles POST /v1/withdraw.
func (s *VestingServer) handleEmergencyWithdraw(w http.ResponseWriter, r *http.Request) {
	var req api.AmountRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.EmergencyWithdraw(r.Context(), &req)
	respond(w, http.StatusOK, resp, err)
}

// handleGetOwner handles GET /v1/owner.
func (s *VestingServer) handleGetOwner(w http.ResponseWriter, r *http.Request) {
	resp, err := s.GetOwner(r.Context(), &api.Empty{})
	respond(w, http.StatusOK, resp, err)
}

// handleTransferOwnership handles POST /v1/owner.
func (s *VestingServer) handleTransferOwnership(w http.ResponseWriter, r *http.Request) {
	var req api.TransferOwnershipRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.TransferOwnership(r.Context(), &req)
	respond(w, http.StatusOK, resp, err)
}

// handleListBalances handles GET /v1/balances.
func (s *VestingServer) handleListBalances(w http.ResponseWriter, r *http.Request) {
	resp, err := s.ListBalances(r.Context(), &api.Empty{})
	respond(w, http.StatusOK, resp, err)
}

// handleGetBalance handles GET /v1/balances/{address}.
func (s *VestingServer) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r, "address")
	if !ok {
		return
	}
	resp, err := s.GetBalance(r.Context(), &api.AddressRequest{Address: addr})
	respond(w, http.StatusOK, resp, err)
}

// handleGetAllowance handles GET /v1/allowances/{owner}/{spender}.
func (s *VestingServer) handleGetAllowance(w http.ResponseWriter, r *http.Request) {
	owner, ok := pathAddress(w, r, "owner")
	if !ok {
		return
	}
	spender, ok := pathAddress(w, r, "spender")
	if !ok {
		return
	}
	resp, err := s.GetAllowance(r.Context(), &api.AllowanceRequest{Owner: owner, Spender: spender})
	respond(w, http.StatusOK, resp, err)
}

// handleGetTokenInfo handles GET /v1/token.
func (s *VestingServer) handleGetTokenInfo(w http.ResponseWriter, r *http.Request) {
	resp, err := s.GetTokenInfo(r.Context(), &api.Empty{})
	respond(w, http.StatusOK, resp, err)
}

// handleMint handles POST /v1/token/mint.
func (s *VestingServer) handleMint(w http.ResponseWriter, r *http.Request) {
	var req api.MintRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.Mint(r.Context(), &req)
	respond(w, http.StatusOK, resp, err)
}

// handleApprove handles POST /v1/token/approve.
func (s *VestingServer) handleApprove(w http.ResponseWriter, r *http.Request) {
	var req api.ApproveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.Approve(r.Context(), &req)
	respond(w, http.StatusOK, resp, err)
}

// handleTransfer handles POST /v1/token/transfer.
func (s *VestingServer) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req api.TransferRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.Transfer(r.Context(), &req)
	respond(w, http.StatusOK, resp, err)
}

// handleFaucet handles POST /v1/token/faucet.
func (s *VestingServer) handleFaucet(w http.ResponseWriter, r *http.Request) {
	var req api.AmountRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.Faucet(r.Context(), &req)
	respond(w, http.StatusOK, resp, err)
}

// handleListEvents handles GET /v1/events.
func (s *VestingServer) handleListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.EventFilter{Topics: parseTopics(q.Get("topics"))}
	if v := q.Get("subject"); v != "" {
		addr, err := model.ParseAddress(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		filter.Subject = addr
	}
	var err error
	if v := q.Get("after_id"); v != "" {
		if filter.AfterID, err = strconv.ParseInt(v, 10, 64); err != nil {
			writeError(w, http.StatusBadRequest, "invalid after_id")
			return
		}
	}
	if filter.Limit, err = intParam(q.Get("limit")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	resp, err := s.ListEvents(r.Context(), &filter)
	respond(w, http.StatusOK, resp, err)
}

// handleGetSnapshot handles GET /v1/snapshot.
func (s *VestingServer) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	resp, err := s.GetSnapshot(r.Context(), &api.Empty{})
	respond(w, http.StatusOK, resp, err)
}

// decodeJSON reads the request body into v, writing a 400 on failure.
// An empty body leaves v at its zero value.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// pathAddress parses the named path segment as an address, writing a 400 on failure.
func pathAddress(w http.ResponseWriter, r *http.Request, name string) (model.Address, bool) {
	addr, err := model.ParseAddress(r.PathValue(name))
	if err != nil {
		writeError(w, http.StatusBadRequest, name+": "+err.Error())
		return "", false
	}
	return addr, true
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}

// respond writes resp with status, or the mapped error.
func respond(w http.ResponseWriter, status int, resp any, err error) {
	if err != nil {
		code := httpStatus(err)
		if code == http.StatusInternalServerError {
			slog.Error("request failed", "error", err)
			writeError(w, code, "internal error")
			return
		}
		writeError(w, code, err.Error())
		return
	}
	writeJSON(w, status, resp)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
