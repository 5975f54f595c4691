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

package gormstore

import (
	"github.com/blinklabs-io/realms/database/models"
	"github.com/blinklabs-io/realms/database/types"
)

func (s *Store) SetProposal(proposal *models.GovernanceProposal, txn types.Txn) error {
	return s.upsertByAddress(proposal, txn)
}

// GetProposals returns proposals for a governance ordered by creation. An
// empty states list matches every state.
func (s *Store) GetProposals(
	governance []byte,
	states []uint8,
	txn types.Txn,
) ([]models.GovernanceProposal, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	query := db.Where("governance = ?", governance)
	if len(states) > 0 {
		// []uint8 would bind as a single blob
		stateList := make([]int, len(states))
		for i, state := range states {
			stateList[i] = int(state)
		}
		query = query.Where("state IN ?", stateList)
	}
	var ret []models.GovernanceProposal
	if result := query.Order("created_at, id").Find(&ret); result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}

// GetProposalsEndingBefore returns proposals in state whose voting deadline
// is at or before the given unix time
func (s *Store) GetProposalsEndingBefore(
	state uint8,
	before int64,
	txn types.Txn,
) ([]models.GovernanceProposal, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	var ret []models.GovernanceProposal
	result := db.Where(
		"state = ? AND voting_ends_at IS NOT NULL AND voting_ends_at <= ?",
		state,
		before,
	).Order("voting_ends_at, id").Find(&ret)
	if result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}

// GetProposalsInState returns every proposal in state, across governances
func (s *Store) GetProposalsInState(
	state uint8,
	txn types.Txn,
) ([]models.GovernanceProposal, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	var ret []models.GovernanceProposal
	result := db.Where("state = ?", state).Order("id").Find(&ret)
	if result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}

func (s *Store) SetSignatory(signatory *models.GovernanceSignatory, txn types.Txn) error {
	return s.upsertByAddress(signatory, txn)
}

func (s *Store) GetSignatories(
	proposal []byte,
	txn types.Txn,
) ([]models.GovernanceSignatory, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	var ret []models.GovernanceSignatory
	result := db.Where("proposal = ?", proposal).Order("id").Find(&ret)
	if result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}

// GetPendingSignatories returns the signatory records for signatory that have
// not signed off yet
func (s *Store) GetPendingSignatories(
	signatory []byte,
	txn types.Txn,
) ([]models.GovernanceSignatory, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	var ret []models.GovernanceSignatory
	result := db.Where("signatory = ? AND signed_off = ?", signatory, false).
		Order("id").
		Find(&ret)
	if result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}

func (s *Store) SetVote(vote *models.GovernanceVote, txn types.Txn) error {
	return s.upsertByAddress(vote, txn)
}

func (s *Store) GetVotes(
	proposal []byte,
	txn types.Txn,
) ([]models.GovernanceVote, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	var ret []models.GovernanceVote
	result := db.Where("proposal = ?", proposal).Order("id").Find(&ret)
	if result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}

func (s *Store) GetVotesByVoter(
	voter []byte,
	txn types.Txn,
) ([]models.GovernanceVote, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	var ret []models.GovernanceVote
	result := db.Where("voter = ?", voter).Order("id").Find(&ret)
	if result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}
