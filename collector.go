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
	"errors"
	"sync"
	"time"

	"github.com/zoobzio/clockz"
	"go.uber.org/multierr"

	"github.com/openzipkin-contrib/zipkin-go-collector/models"
	"github.com/openzipkin-contrib/zipkin-go-collector/wire"
)

// Default values of the collector pipeline.
const (
	DefaultQueueSize    = 100
	DefaultMaxBatchSize = 20
	DefaultMaxRetries   = 3
	DefaultSendTimeout  = 5 * time.Second
)

// Collector accepts finished spans from any number of goroutines and ships
// them in batches through its transport from a single background worker.
// A process is expected to own exactly one Collector, shared by all its
// tracers.
type Collector struct {
	queue     chan *models.Span
	processor *Processor
	runner    *TaskRunner
	transport Transport
	metrics   *Metrics
	logger    Logger

	queueSize    int
	maxBatchSize int
	maxRetries   int
	sendTimeout  time.Duration
	taskOptions  []TaskOption

	mtx      sync.Mutex
	stopped  chan struct{}
	isClosed bool

	// producers is read-held by every Collect in flight. Stop takes the
	// write lock before the final flush so no span is enqueued after it.
	producers sync.RWMutex
}

// CollectorOption sets a parameter for the Collector.
type CollectorOption func(c *Collector)

// CollectorLogger sets the logger used to report errors in the collection
// process. By default, a no-op logger is used, i.e. no errors are logged
// anywhere. It's important to set this option in a production service.
func CollectorLogger(logger Logger) CollectorOption {
	return func(c *Collector) { c.logger = logger }
}

// CollectorQueueSize sets the capacity of the span queue. Collect blocks
// while the queue is full. The default is 100 spans.
func CollectorQueueSize(n int) CollectorOption {
	return func(c *Collector) { c.queueSize = n }
}

// CollectorBatchSize sets the maximum batch size, after which a flush is
// triggered. The default batch size is 20 spans.
func CollectorBatchSize(n int) CollectorOption {
	return func(c *Collector) { c.maxBatchSize = n }
}

// CollectorMaxRetries sets how many times a failed batch is resent before
// it is dropped. The default is 3.
func CollectorMaxRetries(n int) CollectorOption {
	return func(c *Collector) { c.maxRetries = n }
}

// CollectorSendTimeout bounds every single transport send.
func CollectorSendTimeout(d time.Duration) CollectorOption {
	return func(c *Collector) { c.sendTimeout = d }
}

// CollectorPollInterval sets the delay between two poll cycles. The default
// is one second.
func CollectorPollInterval(d time.Duration) CollectorOption {
	return func(c *Collector) { c.taskOptions = append(c.taskOptions, TaskInterval(d)) }
}

// CollectorErrorDelay sets the delay after a failed cycle. The default is
// ten seconds.
func CollectorErrorDelay(d time.Duration) CollectorOption {
	return func(c *Collector) { c.taskOptions = append(c.taskOptions, TaskErrorDelay(d)) }
}

// CollectorClock sets the clock the worker waits on.
func CollectorClock(clock clockz.Clock) CollectorOption {
	return func(c *Collector) { c.taskOptions = append(c.taskOptions, TaskClock(clock)) }
}

// CollectorMetrics sets the metrics the pipeline reports to.
func CollectorMetrics(m *Metrics) CollectorOption {
	return func(c *Collector) { c.metrics = m }
}

// NewCollector validates its wiring and opens transport. On failure the
// transport is closed and a *SetupError returned.
func NewCollector(transport Transport, serializer wire.Serializer, options ...CollectorOption) (*Collector, error) {
	c := &Collector{
		transport:    transport,
		logger:       NewNopLogger(),
		queueSize:    DefaultQueueSize,
		maxBatchSize: DefaultMaxBatchSize,
		maxRetries:   DefaultMaxRetries,
		sendTimeout:  DefaultSendTimeout,
		stopped:      make(chan struct{}),
	}
	for _, option := range options {
		option(c)
	}

	if err := c.validate(serializer); err != nil {
		if transport != nil {
			err = multierr.Append(err, transport.Close())
		}
		return nil, &SetupError{Err: err}
	}
	if opener, ok := transport.(Opener); ok {
		if err := opener.Open(); err != nil {
			return nil, &SetupError{Err: multierr.Append(err, transport.Close())}
		}
	}

	if c.metrics == nil {
		c.metrics = NewMetrics(nil)
	}
	c.queue = make(chan *models.Span, c.queueSize)
	c.processor = &Processor{
		queue:        c.queue,
		serializer:   serializer,
		transport:    transport,
		maxBatchSize: c.maxBatchSize,
		maxRetries:   c.maxRetries,
		sendTimeout:  c.sendTimeout,
		logger:       NewStateLogger(c.logger, time.Minute),
		metrics:      c.metrics,
	}
	c.runner = NewTaskRunner(append([]TaskOption{TaskLogger(c.logger)}, c.taskOptions...)...)
	return c, nil
}

func (c *Collector) validate(serializer wire.Serializer) error {
	var err error
	if c.transport == nil {
		err = multierr.Append(err, errors.New("transport is nil"))
	}
	if serializer == nil {
		err = multierr.Append(err, errors.New("serializer is nil"))
	}
	if c.queueSize <= 0 {
		err = multierr.Append(err, errors.New("queue size must be positive"))
	}
	if c.maxBatchSize <= 0 {
		err = multierr.Append(err, errors.New("max batch size must be positive"))
	}
	if c.maxRetries < 0 {
		err = multierr.Append(err, errors.New("max retries must not be negative"))
	}
	if c.sendTimeout <= 0 {
		err = multierr.Append(err, errors.New("send timeout must be positive"))
	}
	return err
}

// Collect enqueues span, blocking while the queue is full.
func (c *Collector) Collect(span *models.Span) error {
	return c.CollectContext(context.Background(), span)
}

// CollectContext enqueues span, blocking while the queue is full until ctx
// is done.
func (c *Collector) CollectContext(ctx context.Context, span *models.Span) error {
	if span == nil {
		return ErrNilSpan
	}
	c.producers.RLock()
	defer c.producers.RUnlock()
	select {
	case <-c.stopped:
		return ErrCollectorStopped
	default:
	}
	select {
	case c.queue <- span:
		c.metrics.SpansCollected.Inc()
		return nil
	case <-c.stopped:
		c.metrics.SpansDropped.Inc()
		return ErrCollectorStopped
	case <-ctx.Done():
		c.metrics.SpansDropped.Inc()
		return ctx.Err()
	}
}

// Start starts the background worker. It is a no-op when the worker is
// running or the collector was stopped.
func (c *Collector) Start() {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if c.isClosed {
		return
	}
	if c.runner.Start(c.cycle) {
		c.logger.Log("msg", "span collector started", "queue_size", c.queueSize, "batch_size", c.maxBatchSize)
	}
}

func (c *Collector) cycle() error {
	return c.processor.Cycle(c.runner.IsCancelled)
}

// Stop stops the worker, waits for it to finish its cycle, flushes every
// span still queued or pending and closes the transport. Later calls are
// no-ops.
func (c *Collector) Stop() error {
	c.mtx.Lock()
	if c.isClosed {
		c.mtx.Unlock()
		return nil
	}
	c.isClosed = true
	close(c.stopped)
	c.runner.Stop()
	c.mtx.Unlock()

	<-c.runner.Done()

	// wait out producers that raced the stop signal into the queue
	c.producers.Lock()
	defer c.producers.Unlock()

	err := c.processor.FlushAll()
	err = multierr.Append(err, c.transport.Close())
	if err != nil {
		c.logger.Log("msg", "span collector stopped", "err", err)
	} else {
		c.logger.Log("msg", "span collector stopped")
	}
	return err
}
