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

package governance

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/blinklabs-io/realms/address"
	"github.com/blinklabs-io/realms/bank"
	"github.com/blinklabs-io/realms/database"
	"github.com/blinklabs-io/realms/event"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

var (
	testMint      = testKey(0xA0)
	testAuthority = testKey(0x01)
	testStart     = time.Unix(1_700_000_000, 0)
)

func testKey(b byte) address.Address {
	a, _ := address.New(bytes.Repeat([]byte{b}, address.Size))
	return a
}

// holder returns the i-th test token holder
func holder(i int) address.Address {
	return testKey(byte(0x10 + i))
}

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

func defaultGovernanceConfig() GovernanceConfig {
	return GovernanceConfig{
		VoteThresholdPercentage:            60,
		MinCommunityWeightToCreateProposal: 1,
		VotingBaseTime:                     3600,
		VoteTipping:                        VoteTippingStrict,
	}
}

type testEnv struct {
	t        *testing.T
	ctx      context.Context
	db       *database.Database
	engine   *Engine
	clock    *fakeClock
	registry *prometheus.Registry
	bus      *event.EventBus
	realm    address.Address
	gov      address.Address
}

type envConfig struct {
	realm RealmConfig
	token TokenConfig
	gov   GovernanceConfig
}

// newBareEnv returns an engine over an empty in-memory database with the
// test mint created
func newBareEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.New(&database.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	bus := event.NewEventBus(nil, nil)
	t.Cleanup(bus.Stop)
	env := &testEnv{
		t:        t,
		ctx:      t.Context(),
		db:       db,
		clock:    &fakeClock{now: testStart},
		registry: prometheus.NewRegistry(),
		bus:      bus,
	}
	env.engine, err = NewEngine(db, EngineConfig{
		PromRegistry: env.registry,
		EventBus:     bus,
		Clock:        env.clock,
	})
	require.NoError(t, err)
	require.NoError(t, db.Update(func(txn *database.Txn) error {
		return bank.CreateMint(txn, testMint, testAuthority, 6)
	}))
	return env
}

func newTestEnvWith(t *testing.T, cfg envConfig) *testEnv {
	t.Helper()
	env := newBareEnv(t)
	realm, err := env.engine.CreateRealm(env.ctx, CreateRealmParams{
		ID:          1,
		Name:        "test realm",
		Config:      cfg.realm,
		TokenConfig: cfg.token,
		Authority:   testAuthority,
		Mint:        testMint,
	})
	require.NoError(t, err)
	env.realm = realm
	env.join(testAuthority, cfg.realm.MinCommunityWeightToCreateGovernance)
	env.gov, err = env.engine.CreateGovernance(env.ctx, CreateGovernanceParams{
		Realm:     realm,
		Config:    cfg.gov,
		Authority: testAuthority,
	})
	require.NoError(t, err)
	return env
}

// newTestEnv returns a realm with minimum governance weight 1 and a
// governance using cfg
func newTestEnv(t *testing.T, cfg GovernanceConfig) *testEnv {
	t.Helper()
	return newTestEnvWith(t, envConfig{
		realm: RealmConfig{
			MinCommunityWeightToCreateGovernance: 1,
			MaxVoterWeight:                       FullSupply,
		},
		gov: cfg,
	})
}

// fund mints governing tokens and airdrops lamports to owner
func (env *testEnv) fund(owner address.Address, tokens uint64, lamports uint64) {
	env.t.Helper()
	require.NoError(env.t, env.db.Update(func(txn *database.Txn) error {
		if tokens > 0 {
			if err := bank.MintTo(txn, testMint, testAuthority, owner, tokens); err != nil {
				return err
			}
		}
		if lamports > 0 {
			return bank.Airdrop(txn, owner, lamports)
		}
		return nil
	}))
}

// join creates a token owner record for owner and deposits weight
func (env *testEnv) join(owner address.Address, weight uint64) address.Address {
	env.t.Helper()
	env.fund(owner, weight, 0)
	tor, err := env.engine.CreateTokenOwnerRecord(env.ctx, env.realm, owner)
	require.NoError(env.t, err)
	if weight > 0 {
		require.NoError(env.t, env.engine.DepositGoverningTokens(env.ctx, env.realm, owner, weight))
	}
	return tor
}

// propose creates a Draft proposal, funding the deposit first
func (env *testEnv) propose(owner address.Address, name string) address.Address {
	env.t.Helper()
	env.fund(owner, 0, ProposalDepositAmount())
	addr, err := env.engine.CreateProposal(env.ctx, CreateProposalParams{
		Realm:     env.realm,
		Mint:      testMint,
		Authority: owner,
		Name:      name,
	})
	require.NoError(env.t, err)
	return addr
}

// startVoting creates a proposal without signatories and signs it off
func (env *testEnv) startVoting(owner address.Address, name string) address.Address {
	env.t.Helper()
	addr := env.propose(owner, name)
	require.NoError(env.t, env.engine.SignOffProposal(env.ctx, owner, addr))
	return addr
}

func (env *testEnv) proposal(addr address.Address) *Proposal {
	env.t.Helper()
	p, err := env.engine.GetProposal(env.ctx, addr)
	require.NoError(env.t, err)
	return p
}

func (env *testEnv) governance() *Governance {
	env.t.Helper()
	gov, err := env.engine.GetGovernance(env.ctx, env.gov)
	require.NoError(env.t, err)
	return gov
}

func (env *testEnv) tokenOwner(owner address.Address) *TokenOwnerRecord {
	env.t.Helper()
	_, tor, err := env.engine.GetTokenOwnerRecord(env.ctx, env.realm, owner)
	require.NoError(env.t, err)
	return tor
}

func (env *testEnv) balance(mint address.Address, owner address.Address) uint64 {
	env.t.Helper()
	var ret uint64
	require.NoError(env.t, env.db.View(func(txn *database.Txn) error {
		var err error
		ret, err = bank.BalanceOf(txn, mint, owner)
		return err
	}))
	return ret
}

func (env *testEnv) vote(owner address.Address, proposal address.Address, side VoteSide) {
	env.t.Helper()
	_, err := env.engine.CastVote(env.ctx, owner, proposal, side)
	require.NoError(env.t, err)
}

// votingWindow is the full voting duration of cfg
func votingWindow(cfg GovernanceConfig) time.Duration {
	return time.Duration(cfg.VotingBaseTime+cfg.VotingCoolOffTime) * time.Second
}
