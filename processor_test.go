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
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/openzipkin/zipkin-go/model"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openzipkin-contrib/zipkin-go-collector/models"
	"github.com/openzipkin-contrib/zipkin-go-collector/wire"
)

var errUnavailable = errors.New("backend unavailable")

// recordingTransport stores delivered payloads. The first failures sends
// fail with errUnavailable.
type recordingTransport struct {
	mtx      sync.Mutex
	payloads [][]byte
	sends    int
	failures int
	closed   int
	opened   int
	openErr  error
}

func (t *recordingTransport) Open() error {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	t.opened++
	return t.openErr
}

func (t *recordingTransport) Send(_ context.Context, payload []byte) error {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	t.sends++
	if t.failures > 0 {
		t.failures--
		return errUnavailable
	}
	t.payloads = append(t.payloads, payload)
	return nil
}

func (t *recordingTransport) Close() error {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	t.closed++
	return nil
}

func (t *recordingTransport) batches(tb testing.TB) [][]wire.JSONSpan {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	batches := make([][]wire.JSONSpan, 0, len(t.payloads))
	for _, payload := range t.payloads {
		var batch []wire.JSONSpan
		require.NoError(tb, json.Unmarshal(payload, &batch))
		batches = append(batches, batch)
	}
	return batches
}

func (t *recordingTransport) sendCount() int {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	return t.sends
}

func makeSpan(id uint64) *models.Span {
	return &models.Span{
		TraceID: model.TraceID{Low: id},
		ID:      model.ID(id),
		Name:    fmt.Sprintf("span-%d", id),
		Sampled: true,
		Annotations: []models.Annotation{
			{Endpoint: localEndpoint, Timestamp: 1, Value: models.ServerRecv},
		},
	}
}

func newTestProcessor(queueSize, batchSize int, transport Transport, serializer wire.Serializer) *Processor {
	return &Processor{
		queue:        make(chan *models.Span, queueSize),
		serializer:   serializer,
		transport:    transport,
		maxBatchSize: batchSize,
		maxRetries:   DefaultMaxRetries,
		sendTimeout:  DefaultSendTimeout,
		logger:       NewStateLogger(NewNopLogger(), 0),
		metrics:      NewMetrics(nil),
	}
}

func never() bool  { return false }
func always() bool { return true }

func TestProcessorFlushesFullBatch(t *testing.T) {
	transport := &recordingTransport{}
	p := newTestProcessor(10, 3, transport, wire.JSON{})
	for i := uint64(1); i <= 3; i++ {
		p.queue <- makeSpan(i)
	}

	require.NoError(t, p.Cycle(never))

	batches := transport.batches(t)
	require.Len(t, batches, 1)
	assert.Len(t, batches[0], 3)
	assert.Empty(t, p.pending)
	assert.Equal(t, 0, p.subsequentPollCount)
}

func TestProcessorFlushesAfterQuietPolls(t *testing.T) {
	transport := &recordingTransport{}
	p := newTestProcessor(10, 20, transport, wire.JSON{})
	p.queue <- makeSpan(1)

	require.NoError(t, p.Cycle(never))
	assert.Equal(t, 0, p.subsequentPollCount)

	for i := 1; i < maxSubsequentPolls; i++ {
		require.NoError(t, p.Cycle(never))
		assert.Equal(t, i, p.subsequentPollCount)
	}
	assert.Empty(t, transport.batches(t), "flushed before the poll threshold")

	p.queue <- makeSpan(2)
	require.NoError(t, p.Cycle(never))
	assert.Equal(t, 0, p.subsequentPollCount, "a new span resets the count")

	for i := 0; i < maxSubsequentPolls; i++ {
		require.NoError(t, p.Cycle(never))
	}
	batches := transport.batches(t)
	require.Len(t, batches, 1)
	assert.Len(t, batches[0], 2)
	assert.Equal(t, 0, p.subsequentPollCount)
}

func TestProcessorFlushesWhenCancelled(t *testing.T) {
	transport := &recordingTransport{}
	p := newTestProcessor(10, 20, transport, wire.JSON{})

	require.NoError(t, p.Cycle(always))
	assert.Equal(t, 0, transport.sendCount(), "nothing to flush")

	p.queue <- makeSpan(1)
	require.NoError(t, p.Cycle(always))
	assert.Len(t, transport.batches(t), 1)
}

func TestProcessorDrainsBeyondBatchSize(t *testing.T) {
	transport := &recordingTransport{}
	p := newTestProcessor(10, 3, transport, wire.JSON{})
	for i := uint64(1); i <= 7; i++ {
		p.queue <- makeSpan(i)
	}

	require.NoError(t, p.Cycle(never))
	assert.Len(t, transport.batches(t), 2)
	assert.Len(t, p.pending, 1)

	require.NoError(t, p.FlushAll())
	batches := transport.batches(t)
	require.Len(t, batches, 3)
	assert.Equal(t, "0000000000000007", batches[2][0].ID, "spans keep their queue order")
}

func TestProcessorRetriesThenDrops(t *testing.T) {
	transport := &recordingTransport{failures: 100}
	p := newTestProcessor(10, 20, transport, wire.JSON{})
	p.queue <- makeSpan(1)
	p.queue <- makeSpan(2)

	err := p.Cycle(always)
	var deliveryErr *DeliveryError
	require.ErrorAs(t, err, &deliveryErr)
	assert.Equal(t, 1+DefaultMaxRetries, deliveryErr.Attempts)
	assert.Equal(t, 2, deliveryErr.Spans)
	assert.ErrorIs(t, err, errUnavailable)
	assert.Equal(t, 1+DefaultMaxRetries, transport.sendCount())

	require.NoError(t, p.Cycle(always))
	assert.Equal(t, 1+DefaultMaxRetries, transport.sendCount(), "abandoned batch is not retried")

	assert.Equal(t, float64(DefaultMaxRetries), testutil.ToFloat64(p.metrics.SendRetries))
	assert.Equal(t, float64(2), testutil.ToFloat64(p.metrics.SpansDropped))
	assert.Equal(t, float64(1), testutil.ToFloat64(p.metrics.BatchFailures))
}

func TestProcessorRetrySucceeds(t *testing.T) {
	transport := &recordingTransport{failures: DefaultMaxRetries}
	p := newTestProcessor(10, 20, transport, wire.JSON{})
	p.queue <- makeSpan(1)

	require.NoError(t, p.Cycle(always))
	assert.Equal(t, 1+DefaultMaxRetries, transport.sendCount())
	assert.Len(t, transport.batches(t), 1)
	assert.Equal(t, float64(1), testutil.ToFloat64(p.metrics.BatchesSent))
}

type failingSerializer struct {
	wire.JSON
}

func (s failingSerializer) Serialize(span *models.Span) ([]byte, error) {
	if span.Name == "bad" {
		return nil, errors.New("cannot serialize")
	}
	return s.JSON.Serialize(span)
}

func TestProcessorDropsUnserializableSpans(t *testing.T) {
	transport := &recordingTransport{}
	p := newTestProcessor(10, 20, transport, failingSerializer{})
	bad := makeSpan(2)
	bad.Name = "bad"
	p.queue <- makeSpan(1)
	p.queue <- bad
	p.queue <- makeSpan(3)

	require.NoError(t, p.Cycle(always))
	batches := transport.batches(t)
	require.Len(t, batches, 1)
	assert.Len(t, batches[0], 2)
	assert.Equal(t, float64(1), testutil.ToFloat64(p.metrics.SpansDropped))
}
