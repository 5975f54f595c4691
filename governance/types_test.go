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
	"encoding/json"
	"reflect"
	"testing"

	"github.com/blinklabs-io/gouroboros/cbor"
	"github.com/blinklabs-io/realms/address"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProposalTransitions(t *testing.T) {
	allowed := map[ProposalState][]ProposalState{
		ProposalStateDraft:      {ProposalStateSigningOff, ProposalStateVoting},
		ProposalStateSigningOff: {ProposalStateVoting},
		ProposalStateVoting: {
			ProposalStateSucceeded,
			ProposalStateDefeated,
			ProposalStateCompleted,
		},
		ProposalStateSucceeded: {ProposalStateExecuting},
		ProposalStateExecuting: {ProposalStateCompleted, ProposalStateExecutionFailed},
	}
	for from := ProposalStateDraft; from <= ProposalStateExecutionFailed; from++ {
		for to := ProposalStateDraft; to <= ProposalStateExecutionFailed; to++ {
			want := false
			for _, s := range allowed[from] {
				if s == to {
					want = true
				}
			}
			assert.Equal(t, want, canTransition(from, to), "%s -> %s", from, to)
		}
		_, hasNext := allowed[from]
		assert.Equal(t, !hasNext, from.IsTerminal(), from.String())
	}
}

func TestEnumJSON(t *testing.T) {
	data, err := json.Marshal(struct {
		State   ProposalState `json:"state"`
		Side    VoteSide      `json:"side"`
		Tipping VoteTipping   `json:"tipping"`
		Token   TokenType     `json:"token"`
	}{ProposalStateExecutionFailed, VoteNo, VoteTippingEarly, TokenTypeMembership})
	require.NoError(t, err)
	assert.JSONEq(
		t,
		`{"state":"ExecutionFailed","side":"No","tipping":"Early","token":"Membership"}`,
		string(data),
	)

	var state ProposalState
	require.NoError(t, json.Unmarshal([]byte(`"signingoff"`), &state))
	assert.Equal(t, ProposalStateSigningOff, state)
	assert.Error(t, json.Unmarshal([]byte(`"Closed"`), &state))
	side, err := ParseVoteSide("YES")
	require.NoError(t, err)
	assert.Equal(t, VoteYes, side)
	tipping, err := ParseVoteTipping("")
	require.NoError(t, err)
	assert.Equal(t, VoteTippingStrict, tipping)
	_, err = ParseTokenType("frozen")
	assert.Error(t, err)

	var status TransactionStatus
	require.NoError(t, json.Unmarshal([]byte(`"Error"`), &status))
	assert.Equal(t, TransactionStatusError, status)
	var kind SignerKind
	require.NoError(t, json.Unmarshal([]byte(`"general"`), &kind))
	assert.Equal(t, SignerGeneral, kind)
	assert.Error(t, json.Unmarshal([]byte(`"optional"`), &kind))

	var src MaxVoterWeightSource
	require.NoError(t, json.Unmarshal([]byte(`{"kind":"Absolute","value":9}`), &src))
	assert.Equal(t, AbsoluteMaxVoterWeight(9), src)
}

func TestRecordEncoding(t *testing.T) {
	p := &Proposal{
		Type:          AccountTypeProposal,
		Governance:    testKey(1),
		Owner:         testKey(2),
		Sequence:      4,
		State:         ProposalStateVoting,
		Name:          "encoded",
		YesVoteWeight: 10,
		NoVoteWeight:  ^uint64(0),
		DraftAt:       -5,
	}
	data, err := cbor.Encode(p)
	require.NoError(t, err)
	var decoded Proposal
	_, err = cbor.Decode(data, &decoded)
	require.NoError(t, err)
	assert.Equal(t, *p, decoded)

	// The record type leads the encoded array
	var fields []any
	_, err = cbor.Decode(data, &fields)
	require.NoError(t, err)
	assert.EqualValues(t, AccountTypeProposal, fields[0])
}

func TestAddressDerivation(t *testing.T) {
	addrs := NewAddresses(DefaultProgramID)
	realm, _, err := addrs.Realm(1)
	require.NoError(t, err)
	again, _, err := addrs.Realm(1)
	require.NoError(t, err)
	assert.Equal(t, realm, again)
	assert.False(t, realm.IsOnCurve())

	other, _, err := addrs.Realm(2)
	require.NoError(t, err)
	assert.NotEqual(t, realm, other)
	config, _, err := addrs.RealmConfig(1)
	require.NoError(t, err)
	assert.NotEqual(t, realm, config)

	gov, _, err := addrs.Governance(realm)
	require.NoError(t, err)
	tor, _, err := addrs.TokenOwnerRecord(realm, testMint, testKey(3))
	require.NoError(t, err)
	seen := map[address.Address]string{}
	for seq := range 256 {
		addr, bump, err := addrs.Proposal(gov, tor, uint8(seq))
		require.NoError(t, err)
		prev, dup := seen[addr]
		require.False(t, dup, "sequence %d collides with %s", seq, prev)
		seen[addr] = "proposal"
		recreated, err := address.CreateProgramAddress(
			[][]byte{gov[:], tor[:], {uint8(seq)}, {bump}},
			DefaultProgramID,
		)
		require.NoError(t, err)
		assert.Equal(t, addr, recreated)
	}

	// A different program owns different addresses
	foreign := NewAddresses(testKey(0x99))
	foreignRealm, _, err := foreign.Realm(1)
	require.NoError(t, err)
	assert.NotEqual(t, realm, foreignRealm)
}

func TestParseSupplyFraction(t *testing.T) {
	tests := []struct {
		in      string
		want    uint64
		wantErr bool
	}{
		{in: "1", want: SupplyFractionBase},
		{in: "0.1", want: 1_000_000},
		{in: "0.0000001", want: 1},
		{in: "0.00000001", wantErr: true},
		{in: "0", wantErr: true},
		{in: "-0.5", wantErr: true},
		{in: "1.5", wantErr: true},
		{in: "half", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			src, err := ParseSupplyFraction(tc.in)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, SupplyFraction(tc.want), src)
		})
	}
	assert.Equal(t, "0.1", SupplyFraction(1_000_000).Fraction().String())
	assert.True(t, AbsoluteMaxVoterWeight(5).Fraction().IsZero())
}

func TestRecordTypeSurvivesEncoding(t *testing.T) {
	records := []record{
		&Realm{Type: AccountTypeRealm, ID: 1, Name: "x"},
		&RealmConfigAccount{Type: AccountTypeRealmConfig, Realm: testKey(1)},
		&Governance{Type: AccountTypeGovernance, Realm: testKey(1)},
		&RequiredSignatory{Type: AccountTypeRequiredSignatory, Signatory: testKey(2)},
		&TokenOwnerRecord{Type: AccountTypeTokenOwnerRecord, DepositAmount: 3},
		&Proposal{Type: AccountTypeProposal, Name: "p"},
		&ProposalDeposit{Type: AccountTypeProposalDeposit, Amount: 4},
		&SignatoryRecord{Type: AccountTypeSignatoryRecord, SignedOff: true},
		&VoteRecord{Type: AccountTypeVoteRecord, Weight: 5},
		&ProposalTransaction{Type: AccountTypeProposalTransaction, Error: "e"},
	}
	for _, r := range records {
		t.Run(r.accountType().String(), func(t *testing.T) {
			data, err := cbor.Encode(r)
			require.NoError(t, err)
			got, ok := recordType(data)
			require.True(t, ok)
			assert.Equal(t, r.accountType(), got)

			decoded := reflect.New(reflect.TypeOf(r).Elem()).Interface().(record)
			_, err = cbor.Decode(data, decoded)
			require.NoError(t, err)
			assert.Equal(t, r, decoded)
		})
	}
}

func TestRecordTypeRejectsMalformed(t *testing.T) {
	for _, data := range [][]byte{nil, {0x80}, {0x81}, {0x01}, {0x82, 0x41, 0x00, 0x01}} {
		_, ok := recordType(data)
		assert.False(t, ok, "%x", data)
	}
}
