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
	"strings"
	"testing"

	"github.com/blinklabs-io/realms/address"
	"github.com/blinklabs-io/realms/bank"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRealmParams() CreateRealmParams {
	return CreateRealmParams{
		ID:   7,
		Name: "realm",
		Config: RealmConfig{
			MinCommunityWeightToCreateGovernance: 10,
			MaxVoterWeight:                       FullSupply,
		},
		Authority: testAuthority,
		Mint:      testMint,
	}
}

func TestCreateRealm(t *testing.T) {
	env := newBareEnv(t)
	params := validRealmParams()
	addr, err := env.engine.CreateRealm(env.ctx, params)
	require.NoError(t, err)
	want, _, err := env.engine.Addresses().Realm(params.ID)
	require.NoError(t, err)
	assert.Equal(t, want, addr)

	realm, err := env.engine.GetRealm(env.ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, "realm", realm.Name)
	assert.Equal(t, testMint, realm.CommunityMint)
	assert.Equal(t, testAuthority, realm.Authority)
	holding, _, err := env.engine.Addresses().CommunityTokenHolding(testMint, addr)
	require.NoError(t, err)
	assert.Equal(t, holding, realm.CommunityTokenHolding)

	cfg, err := env.engine.GetRealmConfig(env.ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, addr, cfg.Realm)
	assert.Equal(t, TokenTypeLiquid, cfg.TokenConfig.TokenType)

	_, err = env.engine.CreateRealm(env.ctx, params)
	require.ErrorIs(t, err, ErrAlreadyExists)

	realms, err := env.engine.ListRealms(env.ctx)
	require.NoError(t, err)
	require.Len(t, realms, 1)
	assert.Equal(t, addr, realms[0].Address)
}

func TestCreateRealmValidation(t *testing.T) {
	otherMint := testKey(0xB0)
	testCases := []struct {
		name   string
		modify func(*CreateRealmParams)
	}{
		{"empty name", func(p *CreateRealmParams) { p.Name = "" }},
		{"long name", func(p *CreateRealmParams) { p.Name = strings.Repeat("x", MaxNameLength+1) }},
		{"zero minimum weight", func(p *CreateRealmParams) { p.Config.MinCommunityWeightToCreateGovernance = 0 }},
		{"zero supply fraction", func(p *CreateRealmParams) { p.Config.MaxVoterWeight = SupplyFraction(0) }},
		{"supply fraction above base", func(p *CreateRealmParams) {
			p.Config.MaxVoterWeight = SupplyFraction(SupplyFractionBase + 1)
		}},
		{"zero absolute weight", func(p *CreateRealmParams) { p.Config.MaxVoterWeight = AbsoluteMaxVoterWeight(0) }},
		{"unknown token type", func(p *CreateRealmParams) { p.TokenConfig.TokenType = TokenType(9) }},
		{"zero authority", func(p *CreateRealmParams) { p.Authority = address.Zero }},
		{"unknown mint", func(p *CreateRealmParams) { p.Mint = otherMint }},
		{"native mint", func(p *CreateRealmParams) { p.Mint = bank.NativeMint }},
	}
	env := newBareEnv(t)
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			params := validRealmParams()
			tc.modify(&params)
			_, err := env.engine.CreateRealm(env.ctx, params)
			require.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
	realms, err := env.engine.ListRealms(env.ctx)
	require.NoError(t, err)
	assert.Empty(t, realms)
}

func TestSetRealmAuthority(t *testing.T) {
	env := newTestEnv(t, defaultGovernanceConfig())
	next := testKey(0x02)
	err := env.engine.SetRealmAuthority(env.ctx, env.realm, next, next)
	require.ErrorIs(t, err, ErrUnauthorized)
	err = env.engine.SetRealmAuthority(env.ctx, env.realm, testAuthority, address.Zero)
	require.ErrorIs(t, err, ErrInvalidConfig)
	require.NoError(t, env.engine.SetRealmAuthority(env.ctx, env.realm, testAuthority, next))
	realm, err := env.engine.GetRealm(env.ctx, env.realm)
	require.NoError(t, err)
	assert.Equal(t, next, realm.Authority)
	// The previous authority lost its rights
	err = env.engine.SetRealmAuthority(env.ctx, env.realm, testAuthority, testAuthority)
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestSetRealmConfig(t *testing.T) {
	env := newTestEnv(t, defaultGovernanceConfig())
	params := SetRealmConfigParams{
		Realm:     env.realm,
		Authority: testAuthority,
		Config: RealmConfig{
			MinCommunityWeightToCreateGovernance: 50,
			MaxVoterWeight:                       AbsoluteMaxVoterWeight(1000),
		},
		TokenConfig: TokenConfig{TokenType: TokenTypeMembership},
	}
	bad := params
	bad.Authority = holder(1)
	require.ErrorIs(t, env.engine.SetRealmConfig(env.ctx, bad), ErrUnauthorized)
	bad = params
	bad.Config.MinCommunityWeightToCreateGovernance = 0
	require.ErrorIs(t, env.engine.SetRealmConfig(env.ctx, bad), ErrInvalidConfig)

	require.NoError(t, env.engine.SetRealmConfig(env.ctx, params))
	realm, err := env.engine.GetRealm(env.ctx, env.realm)
	require.NoError(t, err)
	assert.Equal(t, params.Config.MaxVoterWeight, realm.Config.MaxVoterWeight)
	assert.Equal(t, uint64(50), realm.Config.MinCommunityWeightToCreateGovernance)
	cfg, err := env.engine.GetRealmConfig(env.ctx, env.realm)
	require.NoError(t, err)
	assert.Equal(t, TokenTypeMembership, cfg.TokenConfig.TokenType)
}

func TestGetRealmNotFound(t *testing.T) {
	env := newBareEnv(t)
	_, err := env.engine.GetRealm(env.ctx, testKey(0x55))
	require.ErrorIs(t, err, ErrNotFound)
	// A record of another type is not a realm
	realm, err := env.engine.CreateRealm(env.ctx, validRealmParams())
	require.NoError(t, err)
	configAddr, _, err := env.engine.Addresses().RealmConfig(7)
	require.NoError(t, err)
	_, err = env.engine.GetRealm(env.ctx, configAddr)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = env.engine.GetGovernance(env.ctx, realm)
	require.ErrorIs(t, err, ErrNotFound)
}
