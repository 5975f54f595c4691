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
	"github.com/blinklabs-io/realms/address"
	"github.com/blinklabs-io/realms/governance"
)

// RootResponse is returned by GET /.
type RootResponse struct {
	Name      string          `json:"name"`
	Version   string          `json:"version"`
	ProgramID address.Address `json:"program_id"`
	Faucet    bool            `json:"faucet"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	IsHealthy  bool  `json:"is_healthy"`
	ServerTime int64 `json:"server_time"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	StatusCode int    `json:"status_code"`
	Error      string `json:"error"`
	Message    string `json:"message"`
	Kind       string `json:"kind,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
}

// RecordResponse pairs a record with its address.
type RecordResponse[T any] struct {
	Address address.Address `json:"address"`
	Record  *T              `json:"record"`
}

// DepositResponse is returned for a proposal deposit. Held is the balance
// currently in escrow.
type DepositResponse struct {
	Address address.Address             `json:"address"`
	Record  *governance.ProposalDeposit `json:"record"`
	Held    uint64                      `json:"held"`
}

// BalanceResponse is returned by the balance endpoint.
type BalanceResponse struct {
	Mint   address.Address `json:"mint"`
	Owner  address.Address `json:"owner"`
	Amount uint64          `json:"amount"`
}

// OpResponse is returned by a successful operation. Only the fields that
// apply to the operation are set.
type OpResponse struct {
	Operation string                        `json:"operation"`
	Caller    address.Address               `json:"caller"`
	Address   *address.Address              `json:"address,omitempty"`
	Amount    *uint64                       `json:"amount,omitempty"`
	State     *governance.ProposalState     `json:"state,omitempty"`
	Status    *governance.TransactionStatus `json:"status,omitempty"`
}
