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

package metadata

import (
	"fmt"

	"github.com/blinklabs-io/realms/database/models"
	"github.com/blinklabs-io/realms/database/plugin"
	"github.com/blinklabs-io/realms/database/types"
	"gorm.io/gorm"
)

// MetadataStore keeps the secondary indexes over account records
type MetadataStore interface {
	// Database
	Close() error
	DB() *gorm.DB
	GetCommitTimestamp() (int64, error)
	SetCommitTimestamp(int64, types.Txn) error
	Transaction() types.Txn

	// Realms and token owners
	SetRealm(*models.Realm, types.Txn) error
	GetRealms(types.Txn) ([]models.Realm, error)
	SetTokenOwner(*models.TokenOwner, types.Txn) error
	GetTokenOwnersByRealm(
		[]byte, // realm
		types.Txn,
	) ([]models.TokenOwner, error)
	GetTokenOwnersByOwner(
		[]byte, // owner
		types.Txn,
	) ([]models.TokenOwner, error)

	// Proposals
	SetProposal(*models.GovernanceProposal, types.Txn) error
	GetProposals(
		[]byte, // governance
		[]uint8, // states, empty for all
		types.Txn,
	) ([]models.GovernanceProposal, error)
	GetProposalsInState(
		uint8, // state
		types.Txn,
	) ([]models.GovernanceProposal, error)
	GetProposalsEndingBefore(
		uint8, // state
		int64, // unix seconds
		types.Txn,
	) ([]models.GovernanceProposal, error)

	// Signatories
	SetSignatory(*models.GovernanceSignatory, types.Txn) error
	GetSignatories(
		[]byte, // proposal
		types.Txn,
	) ([]models.GovernanceSignatory, error)
	GetPendingSignatories(
		[]byte, // signatory
		types.Txn,
	) ([]models.GovernanceSignatory, error)

	// Votes
	SetVote(*models.GovernanceVote, types.Txn) error
	GetVotes(
		[]byte, // proposal
		types.Txn,
	) ([]models.GovernanceVote, error)
	GetVotesByVoter(
		[]byte, // voter
		types.Txn,
	) ([]models.GovernanceVote, error)
}

// New returns the started metadata plugin selected by name
func New(pluginName string) (MetadataStore, error) {
	p, err := plugin.StartPlugin(plugin.PluginTypeMetadata, pluginName)
	if err != nil {
		return nil, err
	}
	metadataStore, ok := p.(MetadataStore)
	if !ok {
		return nil, fmt.Errorf(
			"plugin '%s' does not implement MetadataStore interface",
			pluginName,
		)
	}
	return metadataStore, nil
}
