//  Copyright (c) 2023 Uber Technologies, Inc.
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

package symex

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/symex/engine"
)

var (
	_methodsAnalyzed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "symex_methods_analyzed_total",
		Help: "Methods explored, by final status (done, aborted or panic).",
	}, []string{"status"})

	_exploredNodes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "symex_explored_nodes",
		Help:    "Exploded graph nodes created per method.",
		Buckets: prometheus.ExponentialBuckets(8, 4, 8),
	})

	_steps = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "symex_steps",
		Help:    "Worklist steps taken per method.",
		Buckets: prometheus.ExponentialBuckets(8, 4, 8),
	})

	_yieldLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "symex_yield_lookups_total",
		Help: "Callee behavior lookups, by where they were answered (store, cache or miss).",
	}, []string{"result"})

	_checkFaults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "symex_check_faults_total",
		Help: "Panics recovered from check hooks.",
	}, []string{"check"})

	_methodDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "symex_method_duration_seconds",
		Help:    "Wall-clock time spent exploring one method.",
		Buckets: prometheus.DefBuckets,
	})
)

// observe records the counters of one finished exploration.
func observe(res *engine.Result) {
	_methodsAnalyzed.WithLabelValues(res.Status.String()).Inc()
	_exploredNodes.Observe(float64(res.Nodes))
	_steps.Observe(float64(res.Steps))
	_yieldLookups.WithLabelValues("store").Add(float64(res.YieldStats.Hits))
	_yieldLookups.WithLabelValues("cache").Add(float64(res.YieldStats.CacheHits))
	_yieldLookups.WithLabelValues("miss").Add(float64(res.YieldStats.Misses))
	for _, f := range res.Faults {
		_checkFaults.WithLabelValues(f.Check).Inc()
	}
}
