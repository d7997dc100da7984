// Copyright 2022 The OpenZipkin Authors
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

package zipkintracer

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "zipkin_collector"

// Metrics instruments the span pipeline.
type Metrics struct {
	SpansCollected prometheus.Counter
	SpansDropped   prometheus.Counter
	BatchesSent    prometheus.Counter
	BatchFailures  prometheus.Counter
	SendRetries    prometheus.Counter
	QueueLength    prometheus.Gauge
}

// NewMetrics creates the pipeline metrics and registers them with reg. A nil
// reg leaves them unregistered. Metrics already registered by another
// pipeline are shared.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	counter := func(name, help string) prometheus.Counter {
		return register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      name,
			Help:      help,
		}))
	}
	return &Metrics{
		SpansCollected: counter("spans_collected_total", "Spans accepted into the queue."),
		SpansDropped:   counter("spans_dropped_total", "Spans lost to serialization errors, delivery failures or shutdown."),
		BatchesSent:    counter("batches_sent_total", "Batches delivered to the transport."),
		BatchFailures:  counter("batch_failures_total", "Batches abandoned after exhausting their retries."),
		SendRetries:    counter("send_retries_total", "Transport sends retried."),
		QueueLength: register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "queue_length",
			Help:      "Spans waiting in the queue.",
		})),
	}
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if reg == nil {
		return c
	}
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
	}
	return c
}
