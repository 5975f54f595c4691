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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type engineMetrics struct {
	operations        *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	proposalsCreated  prometheus.Counter
	proposalStates    *prometheus.CounterVec
	votesCast         *prometheus.CounterVec
	votesRelinquished prometheus.Counter
	depositsEscrowed  prometheus.Counter
	depositsRefunded  prometheus.Counter
	executions        *prometheus.CounterVec
	tokensDeposited   prometheus.Counter
	tokensWithdrawn   prometheus.Counter
}

func newEngineMetrics(promRegistry prometheus.Registerer) *engineMetrics {
	promautoFactory := promauto.With(promRegistry)
	return &engineMetrics{
		operations: promautoFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "realms_governance_operations_total",
				Help: "governance operations by name and result",
			},
			[]string{"op", "result"},
		),
		operationDuration: promautoFactory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "realms_governance_operation_duration_seconds",
				Help:    "time spent applying a governance operation",
				Buckets: prometheus.ExponentialBuckets(0.0001, 2, 15), // 100us to ~1.6s
			},
			[]string{"op"},
		),
		proposalsCreated: promautoFactory.NewCounter(prometheus.CounterOpts{
			Name: "realms_governance_proposals_created_total",
			Help: "proposals created",
		}),
		proposalStates: promautoFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "realms_governance_proposal_transitions_total",
				Help: "proposal state transitions by target state",
			},
			[]string{"state"},
		),
		votesCast: promautoFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "realms_governance_votes_cast_total",
				Help: "votes cast by side",
			},
			[]string{"side"},
		),
		votesRelinquished: promautoFactory.NewCounter(prometheus.CounterOpts{
			Name: "realms_governance_votes_relinquished_total",
			Help: "votes relinquished",
		}),
		depositsEscrowed: promautoFactory.NewCounter(prometheus.CounterOpts{
			Name: "realms_governance_deposit_escrowed_lamports_total",
			Help: "lamports escrowed as proposal deposits",
		}),
		depositsRefunded: promautoFactory.NewCounter(prometheus.CounterOpts{
			Name: "realms_governance_deposit_refunded_lamports_total",
			Help: "lamports refunded from proposal deposits",
		}),
		executions: promautoFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "realms_governance_executions_total",
				Help: "proposal transaction executions by status",
			},
			[]string{"status"},
		),
		tokensDeposited: promautoFactory.NewCounter(prometheus.CounterOpts{
			Name: "realms_governance_tokens_deposited_total",
			Help: "governing tokens deposited",
		}),
		tokensWithdrawn: promautoFactory.NewCounter(prometheus.CounterOpts{
			Name: "realms_governance_tokens_withdrawn_total",
			Help: "governing tokens withdrawn",
		}),
	}
}

// record runs fn against the metrics after commit when metrics are enabled
func (oc *opContext) record(fn func(*engineMetrics)) {
	m := oc.engine.metrics
	if m == nil {
		return
	}
	oc.onCommit(func() { fn(m) })
}
