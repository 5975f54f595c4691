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
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/blinklabs-io/realms/address"
	"github.com/blinklabs-io/realms/governance"
)

// opHandler runs one operation for the verified caller
type opHandler func(ctx context.Context, caller address.Address, params json.RawMessage) (OpResponse, error)

// decodeParams strictly decodes operation parameters
func decodeParams(raw json.RawMessage, dst any) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		raw = json.RawMessage("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: params: %w", errBadRequest, err)
	}
	return nil
}

// handler adapts a typed operation into an opHandler
func handler[P any](
	fn func(ctx context.Context, caller address.Address, params P) (OpResponse, error),
) opHandler {
	return func(ctx context.Context, caller address.Address, raw json.RawMessage) (OpResponse, error) {
		var params P
		if err := decodeParams(raw, &params); err != nil {
			return OpResponse{}, err
		}
		return fn(ctx, caller, params)
	}
}

func withAddress(addr address.Address, err error) (OpResponse, error) {
	if err != nil {
		return OpResponse{}, err
	}
	return OpResponse{Address: &addr}, nil
}

func withAmount(amount uint64, err error) (OpResponse, error) {
	if err != nil {
		return OpResponse{}, err
	}
	return OpResponse{Amount: &amount}, nil
}

func done(err error) (OpResponse, error) {
	return OpResponse{}, err
}

// realmConfigParams accepts the max voter weight either as a source or as
// a decimal supply fraction such as "0.25"
type realmConfigParams struct {
	MinCommunityWeightToCreateGovernance uint64                           `json:"minCommunityWeightToCreateGovernance"`
	MaxVoterWeight                       *governance.MaxVoterWeightSource `json:"maxVoterWeight,omitempty"`
	SupplyFraction                       string                           `json:"supplyFraction,omitempty"`
}

func (p realmConfigParams) config() (governance.RealmConfig, error) {
	ret := governance.RealmConfig{
		MinCommunityWeightToCreateGovernance: p.MinCommunityWeightToCreateGovernance,
		MaxVoterWeight:                       governance.FullSupply,
	}
	switch {
	case p.SupplyFraction != "" && p.MaxVoterWeight != nil:
		return ret, fmt.Errorf("%w: set maxVoterWeight or supplyFraction, not both", errBadRequest)
	case p.SupplyFraction != "":
		src, err := governance.ParseSupplyFraction(p.SupplyFraction)
		if err != nil {
			return ret, fmt.Errorf("%w: %w", errBadRequest, err)
		}
		ret.MaxVoterWeight = src
	case p.MaxVoterWeight != nil:
		ret.MaxVoterWeight = *p.MaxVoterWeight
	}
	return ret, nil
}

type createRealmParams struct {
	ID          uint64                 `json:"id"`
	Name        string                 `json:"name"`
	Mint        address.Address        `json:"mint"`
	Config      realmConfigParams      `json:"config"`
	TokenConfig governance.TokenConfig `json:"tokenConfig"`
}

type setRealmConfigParams struct {
	Realm       address.Address        `json:"realm"`
	Config      realmConfigParams      `json:"config"`
	TokenConfig governance.TokenConfig `json:"tokenConfig"`
}

type realmParams struct {
	Realm address.Address `json:"realm"`
}

type setRealmAuthorityParams struct {
	Realm        address.Address `json:"realm"`
	NewAuthority address.Address `json:"newAuthority"`
}

type governanceConfigParams struct {
	Realm  address.Address             `json:"realm,omitempty"`
	Config governance.GovernanceConfig `json:"config"`
}

type setGovernanceConfigParams struct {
	Governance address.Address             `json:"governance"`
	Config     governance.GovernanceConfig `json:"config"`
}

type requiredSignatoryParams struct {
	Governance address.Address `json:"governance"`
	Signatory  address.Address `json:"signatory"`
}

type depositParams struct {
	Realm  address.Address `json:"realm"`
	Amount uint64          `json:"amount"`
}

type createProposalParams struct {
	Realm           address.Address `json:"realm"`
	Mint            address.Address `json:"mint,omitempty"`
	Name            string          `json:"name"`
	DescriptionLink string          `json:"descriptionLink"`
}

type proposalParams struct {
	Proposal address.Address `json:"proposal"`
}

type addSignatoryParams struct {
	Proposal  address.Address       `json:"proposal"`
	Signatory address.Address       `json:"signatory"`
	Kind      governance.SignerKind `json:"kind"`
}

type addTransactionParams struct {
	Proposal    address.Address            `json:"proposal"`
	Instruction governance.InstructionData `json:"instruction"`
}

type castVoteParams struct {
	Proposal address.Address     `json:"proposal"`
	Side     governance.VoteSide `json:"side"`
}

type executeParams struct {
	Proposal address.Address          `json:"proposal"`
	Accounts []governance.AccountMeta `json:"accounts"`
}

type createMintParams struct {
	Mint     address.Address `json:"mint"`
	Decimals uint8           `json:"decimals"`
}

type mintToParams struct {
	Mint   address.Address `json:"mint"`
	Holder address.Address `json:"holder"`
	Amount uint64          `json:"amount"`
}

type airdropParams struct {
	Lamports uint64 `json:"lamports"`
}

// operations builds the operation table. The caller is always the verified
// token issuer and stands in for the signer of the operation.
func (a *API) operations() map[string]opHandler {
	n := a.node
	ops := map[string]opHandler{
		"createRealm": handler(func(ctx context.Context, caller address.Address, p createRealmParams) (OpResponse, error) {
			cfg, err := p.Config.config()
			if err != nil {
				return OpResponse{}, err
			}
			return withAddress(n.CreateRealm(ctx, governance.CreateRealmParams{
				ID:          p.ID,
				Name:        p.Name,
				Config:      cfg,
				TokenConfig: p.TokenConfig,
				Authority:   caller,
				Mint:        p.Mint,
			}))
		}),
		"setRealmAuthority": handler(func(ctx context.Context, caller address.Address, p setRealmAuthorityParams) (OpResponse, error) {
			return done(n.SetRealmAuthority(ctx, p.Realm, caller, p.NewAuthority))
		}),
		"setRealmConfig": handler(func(ctx context.Context, caller address.Address, p setRealmConfigParams) (OpResponse, error) {
			cfg, err := p.Config.config()
			if err != nil {
				return OpResponse{}, err
			}
			return done(n.SetRealmConfig(ctx, governance.SetRealmConfigParams{
				Realm:       p.Realm,
				Authority:   caller,
				Config:      cfg,
				TokenConfig: p.TokenConfig,
			}))
		}),
		"createGovernance": handler(func(ctx context.Context, caller address.Address, p governanceConfigParams) (OpResponse, error) {
			return withAddress(n.CreateGovernance(ctx, governance.CreateGovernanceParams{
				Realm:     p.Realm,
				Config:    p.Config,
				Authority: caller,
			}))
		}),
		"setGovernanceConfig": handler(func(ctx context.Context, caller address.Address, p setGovernanceConfigParams) (OpResponse, error) {
			return done(n.SetGovernanceConfig(ctx, p.Governance, caller, p.Config))
		}),
		"createRequiredSignatory": handler(func(ctx context.Context, caller address.Address, p requiredSignatoryParams) (OpResponse, error) {
			return withAddress(n.CreateRequiredSignatory(ctx, p.Governance, caller, p.Signatory))
		}),
		"removeRequiredSignatory": handler(func(ctx context.Context, caller address.Address, p requiredSignatoryParams) (OpResponse, error) {
			return done(n.RemoveRequiredSignatory(ctx, p.Governance, caller, p.Signatory))
		}),
		"createTokenOwnerRecord": handler(func(ctx context.Context, caller address.Address, p realmParams) (OpResponse, error) {
			return withAddress(n.CreateTokenOwnerRecord(ctx, p.Realm, caller))
		}),
		"depositGoverningTokens": handler(func(ctx context.Context, caller address.Address, p depositParams) (OpResponse, error) {
			if err := n.DepositGoverningTokens(ctx, p.Realm, caller, p.Amount); err != nil {
				return OpResponse{}, err
			}
			return OpResponse{Amount: &p.Amount}, nil
		}),
		"withdrawGoverningTokens": handler(func(ctx context.Context, caller address.Address, p realmParams) (OpResponse, error) {
			return withAmount(n.WithdrawGoverningTokens(ctx, p.Realm, caller))
		}),
		"createProposal": handler(func(ctx context.Context, caller address.Address, p createProposalParams) (OpResponse, error) {
			if p.Mint.IsZero() {
				realm, err := n.GetRealm(ctx, p.Realm)
				if err != nil {
					return OpResponse{}, err
				}
				p.Mint = realm.CommunityMint
			}
			return withAddress(n.CreateProposal(ctx, governance.CreateProposalParams{
				Realm:           p.Realm,
				Mint:            p.Mint,
				Authority:       caller,
				Name:            p.Name,
				DescriptionLink: p.DescriptionLink,
			}))
		}),
		"addSignatory": handler(func(ctx context.Context, caller address.Address, p addSignatoryParams) (OpResponse, error) {
			return withAddress(n.AddSignatory(ctx, caller, p.Proposal, governance.SignerRef{
				Kind:      p.Kind,
				Signatory: p.Signatory,
			}))
		}),
		"signOffProposal": handler(func(ctx context.Context, caller address.Address, p proposalParams) (OpResponse, error) {
			return done(n.SignOffProposal(ctx, caller, p.Proposal))
		}),
		"addTransaction": handler(func(ctx context.Context, caller address.Address, p addTransactionParams) (OpResponse, error) {
			return withAddress(n.AddTransaction(ctx, caller, p.Proposal, p.Instruction))
		}),
		"castVote": handler(func(ctx context.Context, caller address.Address, p castVoteParams) (OpResponse, error) {
			return withAddress(n.CastVote(ctx, caller, p.Proposal, p.Side))
		}),
		"relinquishVote": handler(func(ctx context.Context, caller address.Address, p proposalParams) (OpResponse, error) {
			return done(n.RelinquishVote(ctx, caller, p.Proposal))
		}),
		"finalizeVote": handler(func(ctx context.Context, _ address.Address, p proposalParams) (OpResponse, error) {
			state, err := n.FinalizeVote(ctx, p.Proposal)
			if err != nil {
				return OpResponse{}, err
			}
			return OpResponse{State: &state}, nil
		}),
		"refundProposalDeposit": handler(func(ctx context.Context, caller address.Address, p proposalParams) (OpResponse, error) {
			return withAmount(n.RefundProposalDeposit(ctx, p.Proposal, caller))
		}),
		"executeTransaction": handler(func(ctx context.Context, caller address.Address, p executeParams) (OpResponse, error) {
			status, err := n.ExecuteTransaction(ctx, p.Proposal, p.Accounts, []address.Address{caller})
			if err != nil {
				return OpResponse{}, err
			}
			return OpResponse{Status: &status}, nil
		}),
	}
	if a.config.Faucet && a.ledger != nil {
		l := a.ledger
		ops["createMint"] = handler(func(ctx context.Context, caller address.Address, p createMintParams) (OpResponse, error) {
			if err := l.CreateMint(ctx, p.Mint, caller, p.Decimals); err != nil {
				return OpResponse{}, err
			}
			return OpResponse{Address: &p.Mint}, nil
		})
		ops["mintTo"] = handler(func(ctx context.Context, caller address.Address, p mintToParams) (OpResponse, error) {
			if err := l.MintTo(ctx, p.Mint, caller, p.Holder, p.Amount); err != nil {
				return OpResponse{}, err
			}
			return OpResponse{Amount: &p.Amount}, nil
		})
		ops["airdrop"] = handler(func(ctx context.Context, caller address.Address, p airdropParams) (OpResponse, error) {
			if err := l.Airdrop(ctx, caller, p.Lamports); err != nil {
				return OpResponse{}, err
			}
			return OpResponse{Amount: &p.Lamports}, nil
		})
	}
	return ops
}

// handleOperation verifies the bearer token for the named operation and
// runs it with the token issuer as the signer
func (a *API) handleOperation(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("operation")
	op, ok := a.ops[name]
	if !ok {
		a.metrics.operations.WithLabelValues("unknown", strconv.Itoa(http.StatusNotFound)).Inc()
		writeJSON(w, http.StatusNotFound, ErrorResponse{
			StatusCode: http.StatusNotFound,
			Error:      http.StatusText(http.StatusNotFound),
			Message:    fmt.Sprintf("unknown operation %q", name),
			RequestID:  requestID(r),
		})
		return
	}
	status, resp, err := a.runOperation(r, name, op)
	if err != nil {
		status = a.writeError(w, r, err)
	} else {
		writeJSON(w, status, resp)
	}
	a.metrics.operations.WithLabelValues(name, strconv.Itoa(status)).Inc()
}

func (a *API) runOperation(r *http.Request, name string, op opHandler) (int, OpResponse, error) {
	token, err := bearerToken(r)
	if err != nil {
		return 0, OpResponse{}, err
	}
	caller, claims, err := a.verifier.verify(token, name)
	if err != nil {
		return 0, OpResponse{}, err
	}
	resp, err := op(r.Context(), caller, claims.Params)
	if err != nil {
		a.logger.Debug(
			"operation rejected",
			"operation", name,
			"caller", caller.String(),
			"request_id", requestID(r),
			"error", err,
		)
		return 0, OpResponse{}, err
	}
	resp.Operation = name
	resp.Caller = caller
	a.logger.Info(
		"operation applied",
		"operation", name,
		"caller", caller.String(),
		"request_id", requestID(r),
	)
	return http.StatusOK, resp, nil
}
