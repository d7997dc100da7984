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

package config

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Shopify/sarama"
	"github.com/Shopify/sarama/mocks"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	zipkintracer "github.com/openzipkin-contrib/zipkin-go-collector"
	"github.com/openzipkin-contrib/zipkin-go-collector/wire"
)

type logRecorder struct {
	mtx   sync.Mutex
	lines [][]interface{}
}

func (l *logRecorder) Log(keyvals ...interface{}) error {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	l.lines = append(l.lines, keyvals)
	return nil
}

func (l *logRecorder) messages() []string {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	var msgs []string
	for _, line := range l.lines {
		for i := 0; i+1 < len(line); i += 2 {
			if line[i] == "msg" {
				msgs = append(msgs, line[i+1].(string))
			}
		}
	}
	return msgs
}

func testConfig() Config {
	cfg := Default()
	cfg.ServiceName = "Checkout"
	cfg.HostPort = "127.0.0.1:8080"
	cfg.PollInterval = 10 * time.Millisecond
	return cfg
}

func recordServerSpan(t *testing.T, p *Pipeline, path string) {
	t.Helper()
	tc, err := p.Provider.Create(context.Background(), http.Header{}, path)
	require.NoError(t, err)
	span, err := p.Tracer.ReceiveServerSpan("get", tc, path)
	require.NoError(t, err)
	require.NoError(t, p.Tracer.SendServerSpan(span))
}

func TestSetupHTTP(t *testing.T) {
	var (
		mtx         sync.Mutex
		spans       []wire.JSONSpan
		contentType string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var batch []wire.JSONSpan
		if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		mtx.Lock()
		spans = append(spans, batch...)
		contentType = r.Header.Get("Content-Type")
		mtx.Unlock()
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.CollectorURL = server.URL
	reg := prometheus.NewPedanticRegistry()

	p := Setup(cfg, nil, reg)
	require.True(t, p.Enabled())
	assert.Equal(t, "checkout", p.Tracer.LocalEndpoint().ServiceName)

	p.Start()
	recordServerSpan(t, p, "/orders")
	recordServerSpan(t, p, "/orders/1")
	require.NoError(t, p.Stop())

	mtx.Lock()
	defer mtx.Unlock()
	require.Len(t, spans, 2)
	assert.Equal(t, "get", spans[0].Name)
	assert.Equal(t, "application/json", contentType)

	count, err := testutil.GatherAndCount(reg, "zipkin_collector_spans_collected_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSetupKafkaThrift(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		spans, err := wire.ReadThriftSpans(val)
		if err != nil {
			return err
		}
		if len(spans) != 1 {
			return sarama.ErrInvalidMessage
		}
		return nil
	})

	cfg := testConfig()
	cfg.Transport = TransportKafka
	cfg.Encoding = EncodingThrift
	cfg.KafkaBrokers = []string{"localhost:9092"}

	p, err := NewPipeline(cfg, zipkintracer.NewNopLogger(), nil, WithKafkaProducer(producer))
	require.NoError(t, err)

	p.Start()
	recordServerSpan(t, p, "/orders")
	require.NoError(t, p.Stop())
}

func TestSetupInvalidConfigDisablesTracing(t *testing.T) {
	cfg := testConfig()
	cfg.ServiceName = ""
	cfg.QueueSize = 0
	logger := &logRecorder{}

	p := Setup(cfg, logger, nil)
	require.NotNil(t, p)
	assert.False(t, p.Enabled())
	assert.Equal(t, []string{"tracing disabled", "tracing disabled"}, logger.messages())

	// the host keeps working against a disabled pipeline
	p.Start()
	tc, err := p.Provider.Create(context.Background(), http.Header{}, "/orders")
	require.NoError(t, err)
	assert.False(t, tc.Sampled)
	span, err := p.Tracer.ReceiveServerSpan("get", tc, "/orders")
	require.NoError(t, err)
	assert.NoError(t, p.Tracer.SendServerSpan(span))
	assert.NoError(t, p.Stop())
}

func TestSetupUnreachableScribeDisablesTracing(t *testing.T) {
	cfg := testConfig()
	cfg.Transport = TransportScribe
	cfg.ScribeAddr = "127.0.0.1:1"
	cfg.HTTPTimeout = time.Second
	logger := &logRecorder{}

	p := Setup(cfg, logger, nil)
	assert.False(t, p.Enabled())
	assert.Equal(t, []string{"tracing disabled"}, logger.messages())
}

func TestSetupDisabledByConfiguration(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false
	logger := &logRecorder{}

	p := Setup(cfg, logger, nil)
	assert.False(t, p.Enabled())
	assert.Equal(t, []string{"tracing disabled by configuration"}, logger.messages())
}

func TestNewSerializer(t *testing.T) {
	cfg := Default()
	assert.Equal(t, wire.JSON{}, newSerializer(cfg))

	cfg.Encoding = EncodingThrift
	assert.Equal(t, wire.Thrift{}, newSerializer(cfg))

	cfg.Transport = TransportScribe
	assert.Equal(t, wire.Scribe{}, newSerializer(cfg))
}
