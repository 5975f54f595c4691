// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/blinklabs-io/realms/address"
	"github.com/blinklabs-io/realms/governance"
	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-Id"

type requestIDKey struct{}

// withRequestID tags every request with an id, reusing a caller supplied
// one
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func requestID(r *http.Request) string {
	id, _ := r.Context().Value(requestIDKey{}).(string)
	return id
}

// statusRecorder captures the response status for metrics
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	return s.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the flusher
func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

func (a *API) instrument(route string, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next(rec, r)
		if rec.status == 0 {
			rec.status = http.StatusOK
		}
		a.metrics.requests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		a.logger.Debug(
			"request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
			"request_id", requestID(r),
		)
	})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck,errchkjson
	json.NewEncoder(w).Encode(v)
}

// writeError maps err to a status and writes the error body. Internal
// errors are logged and their detail withheld.
func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) int {
	status, kind := statusForError(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		a.logger.Error(
			"request failed",
			"path", r.URL.Path,
			"request_id", requestID(r),
			"error", err,
		)
		message = "internal error"
	}
	writeJSON(w, status, ErrorResponse{
		StatusCode: status,
		Error:      http.StatusText(status),
		Message:    message,
		Kind:       kind,
		RequestID:  requestID(r),
	})
	return status
}

func pathAddress(r *http.Request, name string) (address.Address, error) {
	addr, err := address.Parse(r.PathValue(name))
	if err != nil {
		return address.Zero, fmt.Errorf("%s: %w", name, err)
	}
	return addr, nil
}

// pathAddresses parses each named path value in order
func pathAddresses(r *http.Request, names ...string) ([]address.Address, error) {
	ret := make([]address.Address, len(names))
	for i, name := range names {
		addr, err := pathAddress(r, name)
		if err != nil {
			return nil, err
		}
		ret[i] = addr
	}
	return ret, nil
}

func parseStates(query string) ([]governance.ProposalState, error) {
	if query == "" {
		return nil, nil
	}
	var ret []governance.ProposalState
	for name := range strings.SplitSeq(query, ",") {
		state, err := governance.ParseProposalState(strings.TrimSpace(name))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errBadRequest, err)
		}
		ret = append(ret, state)
	}
	return ret, nil
}

// writeList writes one page of a listing
func writeList[T any](a *API, w http.ResponseWriter, r *http.Request, items []T, err error) {
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	params, err := ParsePagination(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Paginate(w, items, params))
}

// writeRecord writes a single record or the error that replaced it
func writeRecord[T any](a *API, w http.ResponseWriter, r *http.Request, addr address.Address, rec *T, err error) {
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, RecordResponse[T]{Address: addr, Record: rec})
}

// handleRoot handles GET / and returns API metadata.
func (a *API) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, RootResponse{
		Name:      "realms",
		Version:   a.config.Version,
		ProgramID: a.node.Addresses().ProgramID,
		Faucet:    a.config.Faucet && a.ledger != nil,
	})
}

// handleHealth handles GET /health.
func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		IsHealthy:  true,
		ServerTime: a.node.Now().Unix(),
	})
}

func (a *API) handleRealms(w http.ResponseWriter, r *http.Request) {
	realms, err := a.node.ListRealms(r.Context())
	writeList(a, w, r, realms, err)
}

func (a *API) handleRealm(w http.ResponseWriter, r *http.Request) {
	addr, err := pathAddress(r, "realm")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	realm, err := a.node.GetRealm(r.Context(), addr)
	writeRecord(a, w, r, addr, realm, err)
}

func (a *API) handleRealmConfig(w http.ResponseWriter, r *http.Request) {
	realmAddr, err := pathAddress(r, "realm")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	cfg, err := a.node.GetRealmConfig(r.Context(), realmAddr)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	realm, err := a.node.GetRealm(r.Context(), realmAddr)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	addr, _, err := a.node.Addresses().RealmConfig(realm.ID)
	writeRecord(a, w, r, addr, cfg, err)
}

func (a *API) handleRealmGovernance(w http.ResponseWriter, r *http.Request) {
	realmAddr, err := pathAddress(r, "realm")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	addr, _, err := a.node.Addresses().Governance(realmAddr)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	gov, err := a.node.GetGovernance(r.Context(), addr)
	writeRecord(a, w, r, addr, gov, err)
}

func (a *API) handleTokenOwnerRecord(w http.ResponseWriter, r *http.Request) {
	addrs, err := pathAddresses(r, "realm", "owner")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	addr, tor, err := a.node.GetTokenOwnerRecord(r.Context(), addrs[0], addrs[1])
	writeRecord(a, w, r, addr, tor, err)
}

func (a *API) handleOwnerRecords(w http.ResponseWriter, r *http.Request) {
	owner, err := pathAddress(r, "owner")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	records, err := a.node.TokenOwnerRecordsByOwner(r.Context(), owner)
	writeList(a, w, r, records, err)
}

func (a *API) handleGovernance(w http.ResponseWriter, r *http.Request) {
	addr, err := pathAddress(r, "governance")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	gov, err := a.node.GetGovernance(r.Context(), addr)
	writeRecord(a, w, r, addr, gov, err)
}

// handleGovernanceProposals lists the proposals of a governance, optionally
// filtered by ?state=Voting,Succeeded
func (a *API) handleGovernanceProposals(w http.ResponseWriter, r *http.Request) {
	govAddr, err := pathAddress(r, "governance")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	states, err := parseStates(r.URL.Query().Get("state"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	proposals, err := a.node.ListProposals(r.Context(), govAddr, states...)
	writeList(a, w, r, proposals, err)
}

// handleProposalsInState lists proposals across governances. One state is
// required.
func (a *API) handleProposalsInState(w http.ResponseWriter, r *http.Request) {
	states, err := parseStates(r.URL.Query().Get("state"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if len(states) != 1 {
		a.writeError(w, r, fmt.Errorf("%w: exactly one state is required", errBadRequest))
		return
	}
	proposals, err := a.node.ProposalsInState(r.Context(), states[0])
	writeList(a, w, r, proposals, err)
}

func (a *API) handleProposal(w http.ResponseWriter, r *http.Request) {
	addr, err := pathAddress(r, "proposal")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	proposal, err := a.node.GetProposal(r.Context(), addr)
	writeRecord(a, w, r, addr, proposal, err)
}

func (a *API) handleProposalTransaction(w http.ResponseWriter, r *http.Request) {
	proposalAddr, err := pathAddress(r, "proposal")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	addr, _, err := a.node.Addresses().ProposalTransaction(proposalAddr)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	tx, err := a.node.GetProposalTransaction(r.Context(), proposalAddr)
	writeRecord(a, w, r, addr, tx, err)
}

func (a *API) handleSignatories(w http.ResponseWriter, r *http.Request) {
	proposalAddr, err := pathAddress(r, "proposal")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	sigs, err := a.node.ListSignatories(r.Context(), proposalAddr)
	writeList(a, w, r, sigs, err)
}

func (a *API) handleSignatory(w http.ResponseWriter, r *http.Request) {
	addrs, err := pathAddresses(r, "proposal", "signatory")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	addr, _, err := a.node.Addresses().SignatoryRecord(addrs[0], addrs[1])
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	sig, err := a.node.GetSignatoryRecord(r.Context(), addrs[0], addrs[1])
	writeRecord(a, w, r, addr, sig, err)
}

func (a *API) handleVotes(w http.ResponseWriter, r *http.Request) {
	proposalAddr, err := pathAddress(r, "proposal")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	votes, err := a.node.ListVotes(r.Context(), proposalAddr)
	writeList(a, w, r, votes, err)
}

func (a *API) handleVote(w http.ResponseWriter, r *http.Request) {
	addrs, err := pathAddresses(r, "proposal", "owner")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	vote, err := a.node.GetVoteRecord(r.Context(), addrs[0], addrs[1])
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	addr, _, err := a.node.Addresses().VoteRecord(addrs[0], vote.TokenOwnerRecord)
	writeRecord(a, w, r, addr, vote, err)
}

func (a *API) handleDeposit(w http.ResponseWriter, r *http.Request) {
	addrs, err := pathAddresses(r, "proposal", "depositor")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	deposit, held, err := a.node.GetProposalDeposit(r.Context(), addrs[0], addrs[1])
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	addr, _, err := a.node.Addresses().ProposalDeposit(addrs[1], addrs[0])
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DepositResponse{Address: addr, Record: deposit, Held: held})
}

func (a *API) handlePendingSignatures(w http.ResponseWriter, r *http.Request) {
	signatory, err := pathAddress(r, "signatory")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	pending, err := a.node.PendingSignatures(r.Context(), signatory)
	writeList(a, w, r, pending, err)
}

func (a *API) handleMint(w http.ResponseWriter, r *http.Request) {
	if a.ledger == nil {
		http.NotFound(w, r)
		return
	}
	mint, err := pathAddress(r, "mint")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	info, err := a.ledger.Mint(r.Context(), mint)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (a *API) handleBalance(w http.ResponseWriter, r *http.Request) {
	if a.ledger == nil {
		http.NotFound(w, r)
		return
	}
	addrs, err := pathAddresses(r, "mint", "owner")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	amount, err := a.ledger.Balance(r.Context(), addrs[0], addrs[1])
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceResponse{Mint: addrs[0], Owner: addrs[1], Amount: amount})
}
