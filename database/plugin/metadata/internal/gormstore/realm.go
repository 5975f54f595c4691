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
	"gorm.io/gorm/clause"
)

// upsertByAddress inserts an index row or replaces the one with the same
// record address
func (s *Store) upsertByAddress(value any, txn types.Txn) error {
	db, err := s.resolveDB(txn)
	if err != nil {
		return err
	}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "address"}},
		UpdateAll: true,
	}).Create(value).Error
}

func (s *Store) SetRealm(realm *models.Realm, txn types.Txn) error {
	return s.upsertByAddress(realm, txn)
}

func (s *Store) GetRealms(txn types.Txn) ([]models.Realm, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	var ret []models.Realm
	if result := db.Order("id").Find(&ret); result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}

func (s *Store) SetTokenOwner(tokenOwner *models.TokenOwner, txn types.Txn) error {
	return s.upsertByAddress(tokenOwner, txn)
}

func (s *Store) GetTokenOwnersByRealm(
	realm []byte,
	txn types.Txn,
) ([]models.TokenOwner, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	var ret []models.TokenOwner
	result := db.Where("realm = ?", realm).Order("id").Find(&ret)
	if result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}

func (s *Store) GetTokenOwnersByOwner(
	owner []byte,
	txn types.Txn,
) ([]models.TokenOwner, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	var ret []models.TokenOwner
	result := db.Where("owner = ?", owner).Order("id").Find(&ret)
	if result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}
