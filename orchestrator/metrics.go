// Copyright 2025 Smarter
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

package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus metrics
var (
	promTurnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smarter_orchestrator_turns_total",
			Help: "Total number of chat turns processed by the orchestrator",
		},
		[]string{"provider", "status"},
	)
	promTurnDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "smarter_orchestrator_turn_duration_milliseconds",
			Help:    "Chat turn duration in milliseconds",
			Buckets: []float64{50, 100, 200, 500, 1000, 2000, 5000, 10000, 30000},
		},
		[]string{"provider"},
	)
	promLLMCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smarter_orchestrator_llm_calls_total",
			Help: "Total number of LLM API calls",
		},
		[]string{"provider", "status"},
	)
	promToolInvocations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smarter_orchestrator_tool_invocations_total",
			Help: "Total number of tool invocations dispatched during chat turns",
		},
		[]string{"kind", "status"},
	)
)

func init() {
	prometheus.MustRegister(promTurnsTotal)
	prometheus.MustRegister(promTurnDuration)
	prometheus.MustRegister(promLLMCalls)
	prometheus.MustRegister(promToolInvocations)
}
