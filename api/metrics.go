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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type apiMetrics struct {
	requests      *prometheus.CounterVec
	operations    *prometheus.CounterVec
	activeStreams prometheus.Gauge
}

func newAPIMetrics(promRegistry prometheus.Registerer) *apiMetrics {
	promautoFactory := promauto.With(promRegistry)
	return &apiMetrics{
		requests: promautoFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "realms_api_requests_total",
				Help: "API requests by route pattern and status code",
			},
			[]string{"route", "code"},
		),
		operations: promautoFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "realms_api_operations_total",
				Help: "signed operation requests by operation and HTTP status",
			},
			[]string{"operation", "code"},
		),
		activeStreams: promautoFactory.NewGauge(
			prometheus.GaugeOpts{
				Name: "realms_api_event_streams",
				Help: "open event streams",
			},
		),
	}
}
