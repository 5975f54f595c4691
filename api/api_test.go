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
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/blinklabs-io/realms/address"
	"github.com/blinklabs-io/realms/database"
	"github.com/blinklabs-io/realms/event"
	"github.com/blinklabs-io/realms/governance"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var testStart = time.Unix(1_700_000_000, 0)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testUser struct {
	key  ed25519.PrivateKey
	addr address.Address
}

func newUser(t *testing.T, seed byte) testUser {
	t.Helper()
	key := ed25519.NewKeyFromSeed(bytes.Repeat([]byte{seed}, ed25519.SeedSize))
	addr, err := address.FromPublicKey(key.Public().(ed25519.PublicKey))
	require.NoError(t, err)
	return testUser{key: key, addr: addr}
}

type testServer struct {
	t      *testing.T
	api    *API
	engine *governance.Engine
	clock  *fakeClock
	bus    *event.EventBus
	server *httptest.Server
}

func newTestServer(t *testing.T, cfg APIConfig) *testServer {
	t.Helper()
	db, err := database.New(&database.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	bus := event.NewEventBus(nil, nil)
	t.Cleanup(bus.Stop)
	clock := &fakeClock{now: testStart}
	engine, err := governance.NewEngine(db, governance.EngineConfig{
		EventBus: bus,
		Clock:    clock,
	})
	require.NoError(t, err)
	a := New(cfg, engine, NewLedgerAdapter(db), bus, nil)
	server := httptest.NewServer(a.Handler())
	t.Cleanup(server.Close)
	return &testServer{
		t:      t,
		api:    a,
		engine: engine,
		clock:  clock,
		bus:    bus,
		server: server,
	}
}

func (ts *testServer) token(user testUser, op string, params any) string {
	ts.t.Helper()
	token, err := NewRequestToken(user.key, op, params, time.Minute, ts.clock.Now())
	require.NoError(ts.t, err)
	return token
}

func (ts *testServer) post(op string, token string) (*http.Response, []byte) {
	ts.t.Helper()
	req, err := http.NewRequestWithContext(
		ts.t.Context(),
		http.MethodPost,
		ts.server.URL+"/api/v0/ops/"+op,
		nil,
	)
	require.NoError(ts.t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := ts.server.Client().Do(req)
	require.NoError(ts.t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(ts.t, err)
	return resp, body
}

// op runs an operation that must succeed
func (ts *testServer) op(user testUser, op string, params any) OpResponse {
	ts.t.Helper()
	resp, body := ts.post(op, ts.token(user, op, params))
	require.Equal(ts.t, http.StatusOK, resp.StatusCode, "%s: %s", op, body)
	var ret OpResponse
	require.NoError(ts.t, json.Unmarshal(body, &ret))
	assert.Equal(ts.t, op, ret.Operation)
	assert.Equal(ts.t, user.addr, ret.Caller)
	return ret
}

// opError runs an operation that must fail with status
func (ts *testServer) opError(user testUser, op string, params any, status int) ErrorResponse {
	ts.t.Helper()
	resp, body := ts.post(op, ts.token(user, op, params))
	require.Equal(ts.t, status, resp.StatusCode, "%s: %s", op, body)
	var ret ErrorResponse
	require.NoError(ts.t, json.Unmarshal(body, &ret))
	assert.Equal(ts.t, status, ret.StatusCode)
	assert.NotEmpty(ts.t, ret.RequestID)
	return ret
}

func (ts *testServer) get(path string, out any) int {
	ts.t.Helper()
	req, err := http.NewRequestWithContext(ts.t.Context(), http.MethodGet, ts.server.URL+path, nil)
	require.NoError(ts.t, err)
	resp, err := ts.server.Client().Do(req)
	require.NoError(ts.t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(ts.t, err)
	if out != nil && resp.StatusCode == http.StatusOK {
		require.NoError(ts.t, json.Unmarshal(body, out), "%s: %s", path, body)
	}
	return resp.StatusCode
}

// testRealm is a realm with one governance whose authority holds 10 of
// 100 issued tokens and whose holder holds the other 90
type testRealm struct {
	authority testUser
	holder    testUser
	mint      address.Address
	realm     address.Address
	gov       address.Address
}

func (ts *testServer) setupRealm() testRealm {
	ts.t.Helper()
	r := testRealm{
		authority: newUser(ts.t, 1),
		holder:    newUser(ts.t, 2),
		mint:      newUser(ts.t, 0xA0).addr,
	}
	ts.op(r.authority, "createMint", map[string]any{"mint": r.mint, "decimals": 6})
	ts.op(r.authority, "mintTo", map[string]any{"mint": r.mint, "holder": r.authority.addr, "amount": 10})
	ts.op(r.authority, "mintTo", map[string]any{"mint": r.mint, "holder": r.holder.addr, "amount": 90})
	ts.op(r.holder, "airdrop", map[string]any{"lamports": governance.ProposalDepositAmount()})

	resp := ts.op(r.authority, "createRealm", map[string]any{
		"id":   1,
		"name": "api realm",
		"mint": r.mint,
		"config": map[string]any{
			"minCommunityWeightToCreateGovernance": 10,
			"supplyFraction":                       "1",
		},
	})
	require.NotNil(ts.t, resp.Address)
	r.realm = *resp.Address
	expected, _, err := ts.engine.Addresses().Realm(1)
	require.NoError(ts.t, err)
	require.Equal(ts.t, expected, r.realm)

	for _, member := range []struct {
		user   testUser
		amount uint64
	}{{r.authority, 10}, {r.holder, 90}} {
		ts.op(member.user, "createTokenOwnerRecord", map[string]any{"realm": r.realm})
		resp := ts.op(member.user, "depositGoverningTokens", map[string]any{
			"realm":  r.realm,
			"amount": member.amount,
		})
		require.NotNil(ts.t, resp.Amount)
		assert.Equal(ts.t, member.amount, *resp.Amount)
	}

	resp = ts.op(r.authority, "createGovernance", map[string]any{
		"realm": r.realm,
		"config": map[string]any{
			"voteThresholdPercentage":            60,
			"minCommunityWeightToCreateProposal": 1,
			"votingBaseTime":                     3600,
			"voteTipping":                        "Strict",
		},
	})
	require.NotNil(ts.t, resp.Address)
	r.gov = *resp.Address
	return r
}

func TestHandleRoot(t *testing.T) {
	ts := newTestServer(t, APIConfig{Faucet: true, Version: "1.2.3"})
	var root RootResponse
	require.Equal(t, http.StatusOK, ts.get("/", &root))
	assert.Equal(t, "realms", root.Name)
	assert.Equal(t, "1.2.3", root.Version)
	assert.Equal(t, ts.engine.Addresses().ProgramID, root.ProgramID)
	assert.True(t, root.Faucet)

	var health HealthResponse
	require.Equal(t, http.StatusOK, ts.get("/health", &health))
	assert.True(t, health.IsHealthy)
	assert.Equal(t, testStart.Unix(), health.ServerTime)

	assert.Equal(t, http.StatusNotFound, ts.get("/nope", nil))
}

func TestRequestIDHeader(t *testing.T) {
	ts := newTestServer(t, APIConfig{})
	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, ts.server.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set(requestIDHeader, "trace-1")
	resp, err := ts.server.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "trace-1", resp.Header.Get(requestIDHeader))

	resp, err = ts.server.Client().Get(ts.server.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Len(t, resp.Header.Get(requestIDHeader), 36)
}

func TestGovernanceFlow(t *testing.T) {
	ts := newTestServer(t, APIConfig{Faucet: true})
	r := ts.setupRealm()

	resp := ts.op(r.holder, "createProposal", map[string]any{
		"realm":           r.realm,
		"name":            "fund the treasury",
		"descriptionLink": "https://example.com/1",
	})
	require.NotNil(t, resp.Address)
	proposal := *resp.Address
	base := "/api/v0/proposals/" + proposal.String()

	var deposit DepositResponse
	require.Equal(t, http.StatusOK, ts.get(base+"/deposits/"+r.holder.addr.String(), &deposit))
	assert.Equal(t, r.holder.addr, deposit.Record.Depositor)
	assert.Positive(t, deposit.Held)

	ts.op(r.holder, "signOffProposal", map[string]any{"proposal": proposal})
	var rec RecordResponse[governance.Proposal]
	require.Equal(t, http.StatusOK, ts.get(base, &rec))
	assert.Equal(t, proposal, rec.Address)
	assert.Equal(t, governance.ProposalStateVoting, rec.Record.State)

	ts.op(r.holder, "castVote", map[string]any{"proposal": proposal, "side": "Yes"})
	errResp := ts.opError(r.holder, "castVote", map[string]any{"proposal": proposal, "side": "No"}, http.StatusConflict)
	assert.Equal(t, "AlreadyVoted", errResp.Kind)

	errResp = ts.opError(r.authority, "finalizeVote", map[string]any{"proposal": proposal}, http.StatusTooEarly)
	assert.Equal(t, "VotingNotEnded", errResp.Kind)

	ts.clock.Advance(time.Hour)
	resp = ts.op(r.authority, "finalizeVote", map[string]any{"proposal": proposal})
	require.NotNil(t, resp.State)
	assert.Equal(t, governance.ProposalStateCompleted, *resp.State)

	// Reads
	var realms []governance.Listed[governance.Realm]
	require.Equal(t, http.StatusOK, ts.get("/api/v0/realms", &realms))
	require.Len(t, realms, 1)
	assert.Equal(t, "api realm", realms[0].Record.Name)

	var realm RecordResponse[governance.Realm]
	require.Equal(t, http.StatusOK, ts.get("/api/v0/realms/"+r.realm.String(), &realm))
	assert.Equal(t, r.authority.addr, realm.Record.Authority)
	assert.Equal(t, governance.FullSupply, realm.Record.Config.MaxVoterWeight)

	assert.Equal(t, http.StatusOK, ts.get("/api/v0/realms/"+r.realm.String()+"/config", nil))

	var gov RecordResponse[governance.Governance]
	require.Equal(t, http.StatusOK, ts.get("/api/v0/realms/"+r.realm.String()+"/governance", &gov))
	assert.Equal(t, r.gov, gov.Address)
	assert.Equal(t, uint8(60), gov.Record.Config.VoteThresholdPercentage)
	require.Equal(t, http.StatusOK, ts.get("/api/v0/governances/"+r.gov.String(), &gov))
	assert.Equal(t, r.realm, gov.Record.Realm)

	var tor RecordResponse[governance.TokenOwnerRecord]
	require.Equal(
		t,
		http.StatusOK,
		ts.get("/api/v0/realms/"+r.realm.String()+"/owners/"+r.holder.addr.String(), &tor),
	)
	assert.Equal(t, uint64(90), tor.Record.DepositAmount)
	assert.Equal(t, uint64(1), tor.Record.UnrelinquishedVotesCount)

	var records []governance.Listed[governance.TokenOwnerRecord]
	require.Equal(t, http.StatusOK, ts.get("/api/v0/owners/"+r.holder.addr.String()+"/records", &records))
	require.Len(t, records, 1)
	assert.Equal(t, tor.Address, records[0].Address)

	var proposals []governance.Listed[governance.Proposal]
	require.Equal(
		t,
		http.StatusOK,
		ts.get("/api/v0/governances/"+r.gov.String()+"/proposals?state=Completed,Voting", &proposals),
	)
	require.Len(t, proposals, 1)
	assert.Equal(t, proposal, proposals[0].Address)
	require.Equal(t, http.StatusOK, ts.get("/api/v0/proposals?state=Completed", &proposals))
	require.Len(t, proposals, 1)
	require.Equal(t, http.StatusOK, ts.get("/api/v0/proposals?state=Voting", &proposals))
	assert.Empty(t, proposals)
	assert.Equal(t, http.StatusBadRequest, ts.get("/api/v0/proposals", nil))
	assert.Equal(t, http.StatusBadRequest, ts.get("/api/v0/proposals?state=Bogus", nil))

	var votes []governance.Listed[governance.VoteRecord]
	require.Equal(t, http.StatusOK, ts.get(base+"/votes", &votes))
	require.Len(t, votes, 1)
	var vote RecordResponse[governance.VoteRecord]
	require.Equal(t, http.StatusOK, ts.get(base+"/votes/"+r.holder.addr.String(), &vote))
	assert.Equal(t, votes[0].Address, vote.Address)
	assert.Equal(t, governance.VoteYes, vote.Record.Side)
	assert.Equal(t, uint64(90), vote.Record.Weight)
	assert.Equal(t, http.StatusNotFound, ts.get(base+"/votes/"+r.authority.addr.String(), nil))

	var sigs []governance.Listed[governance.SignatoryRecord]
	require.Equal(t, http.StatusOK, ts.get(base+"/signatories", &sigs))
	assert.Empty(t, sigs)
	assert.Equal(t, http.StatusNotFound, ts.get(base+"/transaction", nil))

	var mint MintInfo
	require.Equal(t, http.StatusOK, ts.get("/api/v0/mints/"+r.mint.String(), &mint))
	assert.Equal(t, uint64(100), mint.Supply)
	assert.Equal(t, r.authority.addr, mint.Authority)
	var balance BalanceResponse
	require.Equal(
		t,
		http.StatusOK,
		ts.get("/api/v0/mints/"+r.mint.String()+"/balances/"+realm.Record.CommunityTokenHolding.String(), &balance),
	)
	assert.Equal(t, uint64(100), balance.Amount)

	// Closing out
	resp = ts.op(r.holder, "refundProposalDeposit", map[string]any{"proposal": proposal})
	require.NotNil(t, resp.Amount)
	assert.Positive(t, *resp.Amount)
	assert.Equal(t, http.StatusNotFound, ts.get(base+"/deposits/"+r.holder.addr.String(), nil))

	ts.op(r.holder, "relinquishVote", map[string]any{"proposal": proposal})
	resp = ts.op(r.holder, "withdrawGoverningTokens", map[string]any{"realm": r.realm})
	require.NotNil(t, resp.Amount)
	assert.Equal(t, uint64(90), *resp.Amount)
	require.Equal(
		t,
		http.StatusOK,
		ts.get("/api/v0/mints/"+r.mint.String()+"/balances/"+r.holder.addr.String(), &balance),
	)
	assert.Equal(t, uint64(90), balance.Amount)
}

func TestSignatoryFlow(t *testing.T) {
	ts := newTestServer(t, APIConfig{Faucet: true})
	r := ts.setupRealm()
	resp := ts.op(r.holder, "createProposal", map[string]any{"realm": r.realm, "name": "signed"})
	proposal := *resp.Address

	for _, signatory := range []address.Address{r.holder.addr, r.authority.addr} {
		ts.op(r.holder, "addSignatory", map[string]any{
			"proposal":  proposal,
			"signatory": signatory,
			"kind":      "General",
		})
	}
	ts.op(r.holder, "signOffProposal", map[string]any{"proposal": proposal})
	errResp := ts.opError(r.holder, "signOffProposal", map[string]any{"proposal": proposal}, http.StatusConflict)
	assert.Equal(t, "AlreadySignedOff", errResp.Kind)

	var pending []governance.Listed[governance.SignatoryRecord]
	require.Equal(t, http.StatusOK, ts.get("/api/v0/signatories/"+r.authority.addr.String()+"/pending", &pending))
	require.Len(t, pending, 1)
	assert.Equal(t, proposal, pending[0].Record.Proposal)

	var rec RecordResponse[governance.Proposal]
	require.Equal(t, http.StatusOK, ts.get("/api/v0/proposals/"+proposal.String(), &rec))
	assert.Equal(t, governance.ProposalStateSigningOff, rec.Record.State)

	ts.op(r.authority, "signOffProposal", map[string]any{"proposal": proposal})
	var sig RecordResponse[governance.SignatoryRecord]
	require.Equal(
		t,
		http.StatusOK,
		ts.get("/api/v0/proposals/"+proposal.String()+"/signatories/"+r.authority.addr.String(), &sig),
	)
	assert.True(t, sig.Record.SignedOff)
	require.Equal(t, http.StatusOK, ts.get("/api/v0/signatories/"+r.authority.addr.String()+"/pending", &pending))
	assert.Empty(t, pending)
	require.Equal(t, http.StatusOK, ts.get("/api/v0/proposals/"+proposal.String(), &rec))
	assert.Equal(t, governance.ProposalStateVoting, rec.Record.State)
}

func TestOperationErrors(t *testing.T) {
	ts := newTestServer(t, APIConfig{Faucet: true})
	r := ts.setupRealm()
	stranger := newUser(t, 9)

	t.Run("missing token", func(t *testing.T) {
		resp, _ := ts.post("setRealmAuthority", "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
	t.Run("token for another operation", func(t *testing.T) {
		resp, _ := ts.post("setRealmAuthority", ts.token(r.authority, "castVote", nil))
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
	t.Run("replayed token", func(t *testing.T) {
		token := ts.token(stranger, "airdrop", map[string]any{"lamports": 1})
		resp, _ := ts.post("airdrop", token)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp, _ = ts.post("airdrop", token)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
	t.Run("expired token", func(t *testing.T) {
		token := ts.token(stranger, "airdrop", nil)
		ts.clock.Advance(2 * time.Minute)
		resp, _ := ts.post("airdrop", token)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
	t.Run("unknown operation", func(t *testing.T) {
		resp, body := ts.post("mintEverything", ts.token(stranger, "mintEverything", nil))
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Contains(t, string(body), "mintEverything")
	})
	t.Run("unauthorized", func(t *testing.T) {
		errResp := ts.opError(stranger, "setRealmAuthority", map[string]any{
			"realm":        r.realm,
			"newAuthority": stranger.addr,
		}, http.StatusForbidden)
		assert.Equal(t, "Unauthorized", errResp.Kind)
	})
	t.Run("not found", func(t *testing.T) {
		errResp := ts.opError(r.holder, "castVote", map[string]any{
			"proposal": stranger.addr,
			"side":     "Yes",
		}, http.StatusNotFound)
		assert.Equal(t, "NotFound", errResp.Kind)
	})
	t.Run("unknown parameter", func(t *testing.T) {
		ts.opError(r.holder, "signOffProposal", map[string]any{"proposal": stranger.addr, "extra": 1}, http.StatusBadRequest)
	})
	t.Run("bad supply fraction", func(t *testing.T) {
		ts.opError(r.authority, "setRealmConfig", map[string]any{
			"realm":  r.realm,
			"config": map[string]any{"supplyFraction": "1.5"},
		}, http.StatusBadRequest)
	})
	t.Run("no weight", func(t *testing.T) {
		ts.op(stranger, "createTokenOwnerRecord", map[string]any{"realm": r.realm})
		errResp := ts.opError(stranger, "withdrawGoverningTokens", map[string]any{"realm": r.realm}, http.StatusUnprocessableEntity)
		assert.Equal(t, "NoWeight", errResp.Kind)
	})
	t.Run("mint authority", func(t *testing.T) {
		ts.opError(stranger, "mintTo", map[string]any{
			"mint":   r.mint,
			"holder": stranger.addr,
			"amount": 1,
		}, http.StatusForbidden)
	})
	t.Run("bad path address", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, ts.get("/api/v0/realms/not-an-address", nil))
	})
}

func TestSetRealmConfigSupplyFraction(t *testing.T) {
	ts := newTestServer(t, APIConfig{Faucet: true})
	r := ts.setupRealm()
	ts.op(r.authority, "setRealmConfig", map[string]any{
		"realm": r.realm,
		"config": map[string]any{
			"minCommunityWeightToCreateGovernance": 5,
			"supplyFraction":                       "0.25",
		},
	})
	var realm RecordResponse[governance.Realm]
	require.Equal(t, http.StatusOK, ts.get("/api/v0/realms/"+r.realm.String(), &realm))
	assert.Equal(t, governance.MaxVoterWeightSupplyFraction, realm.Record.Config.MaxVoterWeight.Kind)
	assert.Equal(t, "0.25", realm.Record.Config.MaxVoterWeight.Fraction().String())
	assert.Equal(t, uint64(5), realm.Record.Config.MinCommunityWeightToCreateGovernance)

	ts.opError(r.authority, "setRealmConfig", map[string]any{
		"realm": r.realm,
		"config": map[string]any{
			"supplyFraction": "0.5",
			"maxVoterWeight": governance.FullSupply,
		},
	}, http.StatusBadRequest)
}

func TestFaucetDisabled(t *testing.T) {
	ts := newTestServer(t, APIConfig{})
	user := newUser(t, 3)
	resp, _ := ts.post("airdrop", ts.token(user, "airdrop", map[string]any{"lamports": 1}))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	var root RootResponse
	require.Equal(t, http.StatusOK, ts.get("/", &root))
	assert.False(t, root.Faucet)
}

func TestLedgerEndpointsWithoutLedger(t *testing.T) {
	ts := newTestServer(t, APIConfig{})
	a := New(APIConfig{Faucet: true}, ts.engine, nil, nil, nil)
	server := httptest.NewServer(a.Handler())
	defer server.Close()
	user := newUser(t, 4)
	for _, path := range []string{
		"/api/v0/mints/" + user.addr.String(),
		"/api/v0/mints/" + user.addr.String() + "/balances/" + user.addr.String(),
		"/api/v0/events",
	} {
		resp, err := server.Client().Get(server.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
	}
	_, ok := a.ops["airdrop"]
	assert.False(t, ok)
}
