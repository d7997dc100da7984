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
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/multierr"

	"github.com/openzipkin-contrib/zipkin-go-collector/models"
	"github.com/openzipkin-contrib/zipkin-go-collector/wire"
)

// maxSubsequentPolls is the number of consecutive cycles without a new span
// after which a non-empty batch is flushed regardless of its size.
const maxSubsequentPolls = 5

// Processor drains the collector's queue into batches and delivers them.
// It is driven by a single goroutine and owns its pending batch.
type Processor struct {
	queue        chan *models.Span
	serializer   wire.Serializer
	transport    Transport
	maxBatchSize int
	maxRetries   int
	sendTimeout  time.Duration
	logger       *StateLogger
	metrics      *Metrics

	pending             [][]byte
	subsequentPollCount int
}

// Cycle runs one poll cycle: drain the queue, then flush when the batch is
// full, cancelled reports true, or no span arrived for maxSubsequentPolls
// cycles. A full batch is flushed and the queue drained again within the
// same cycle while spans keep waiting.
func (p *Processor) Cycle(cancelled func() bool) error {
	for {
		received := p.drain()
		if received > 0 {
			p.subsequentPollCount = 0
		} else if len(p.pending) > 0 {
			p.subsequentPollCount++
		}
		if len(p.pending) == 0 {
			return nil
		}

		full := len(p.pending) >= p.maxBatchSize
		if !full && !cancelled() && p.subsequentPollCount < maxSubsequentPolls {
			return nil
		}
		if err := p.flush(); err != nil {
			return err
		}
		if !full || len(p.queue) == 0 {
			return nil
		}
	}
}

// FlushAll drains the queue and flushes everything, regardless of batch size
// and poll thresholds. It must not run concurrently with Cycle.
func (p *Processor) FlushAll() error {
	var err error
	for {
		p.drain()
		if len(p.pending) == 0 {
			return err
		}
		err = multierr.Append(err, p.flush())
	}
}

// drain moves queued spans into the pending batch without blocking until the
// queue is empty or the batch is full, returning the number of spans taken.
func (p *Processor) drain() int {
	received := 0
	for len(p.pending) < p.maxBatchSize {
		select {
		case span := <-p.queue:
			received++
			b, err := p.serializer.Serialize(span)
			if err != nil {
				p.metrics.SpansDropped.Inc()
				p.logger.LogError(err, "msg", "span dropped: serialization failed", "span", span.Name)
				continue
			}
			p.pending = append(p.pending, b)
		default:
			p.metrics.QueueLength.Set(float64(len(p.queue)))
			return received
		}
	}
	p.metrics.QueueLength.Set(float64(len(p.queue)))
	return received
}

// flush frames and sends the pending batch. The batch is gone afterwards,
// delivered or not.
func (p *Processor) flush() error {
	batch := p.pending
	p.pending = nil
	p.subsequentPollCount = 0

	payload, err := p.serializer.Frame(batch)
	if err != nil {
		p.metrics.SpansDropped.Add(float64(len(batch)))
		p.metrics.BatchFailures.Inc()
		return &DeliveryError{Spans: len(batch), Err: err}
	}

	attempts, err := p.send(payload)
	if err != nil {
		p.metrics.SpansDropped.Add(float64(len(batch)))
		p.metrics.BatchFailures.Inc()
		return &DeliveryError{Spans: len(batch), Attempts: attempts, Err: err}
	}
	p.metrics.BatchesSent.Inc()
	p.logger.Fixed("msg", "transport recovered", "spans", len(batch))
	return nil
}

// send delivers payload, retrying immediately up to maxRetries times.
func (p *Processor) send(payload []byte) (int, error) {
	attempts := 0
	operation := func() error {
		attempts++
		ctx, cancel := context.WithTimeout(context.Background(), p.sendTimeout)
		defer cancel()
		return p.transport.Send(ctx, payload)
	}
	notify := func(err error, _ time.Duration) {
		p.metrics.SendRetries.Inc()
		p.logger.LogError(err, "msg", "retrying batch", "attempt", attempts)
	}
	policy := backoff.WithMaxRetries(&backoff.ZeroBackOff{}, uint64(p.maxRetries))
	err := backoff.RetryNotify(operation, policy, notify)
	return attempts, err
}
