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
	"net/http"

	"github.com/Shopify/sarama"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	zipkintracer "github.com/openzipkin-contrib/zipkin-go-collector"
	"github.com/openzipkin-contrib/zipkin-go-collector/models"
	"github.com/openzipkin-contrib/zipkin-go-collector/wire"
)

// Pipeline bundles the parts instrumentation code needs. A disabled
// pipeline has no Collector, its Tracer drops every span and its Provider
// never samples.
type Pipeline struct {
	Tracer    *zipkintracer.Tracer
	Provider  *zipkintracer.ContextProvider
	Collector *zipkintracer.Collector
}

// Enabled reports whether spans are delivered anywhere.
func (p *Pipeline) Enabled() bool { return p.Collector != nil }

// Start starts the background delivery of spans.
func (p *Pipeline) Start() {
	if p.Collector != nil {
		p.Collector.Start()
	}
}

// Stop flushes the queued spans and releases the transport.
func (p *Pipeline) Stop() error {
	if p.Collector == nil {
		return nil
	}
	return p.Collector.Stop()
}

// Option customizes how NewPipeline builds the transport.
type Option func(*options)

type options struct {
	httpClient    *http.Client
	kafkaProducer sarama.SyncProducer
	collectorOpts []zipkintracer.CollectorOption
}

// WithHTTPClient sets the client of the http transport.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) { o.httpClient = client }
}

// WithKafkaProducer makes the kafka transport use producer instead of
// connecting to the configured brokers.
func WithKafkaProducer(producer sarama.SyncProducer) Option {
	return func(o *options) { o.kafkaProducer = producer }
}

// WithCollectorOptions passes extra options to the collector.
func WithCollectorOptions(opts ...zipkintracer.CollectorOption) Option {
	return func(o *options) { o.collectorOpts = append(o.collectorOpts, opts...) }
}

// Setup builds the pipeline described by cfg. Tracing never takes the host
// down: an invalid configuration or a failing transport is logged and a
// disabled pipeline returned instead. The collector is not started.
func Setup(cfg Config, logger zipkintracer.Logger, reg prometheus.Registerer, opts ...Option) *Pipeline {
	if logger == nil {
		logger = zipkintracer.NewNopLogger()
	}
	p, err := NewPipeline(cfg, logger, reg, opts...)
	if err != nil {
		for _, e := range multierr.Errors(err) {
			_ = logger.Log("msg", "tracing disabled", "err", e)
		}
		return Disabled(cfg.ServiceName)
	}
	if !p.Enabled() {
		_ = logger.Log("msg", "tracing disabled by configuration")
	}
	return p
}

// Disabled returns a pipeline that records nothing.
func Disabled(serviceName string) *Pipeline {
	return &Pipeline{
		Tracer:   zipkintracer.NewTracer(zipkintracer.NopCollector{}, models.Endpoint{ServiceName: serviceName}),
		Provider: zipkintracer.NewContextProvider(zipkintracer.NeverSample()),
	}
}

// NewPipeline builds the pipeline described by cfg and returns the first
// error encountered.
func NewPipeline(cfg Config, logger zipkintracer.Logger, reg prometheus.Registerer, opts ...Option) (*Pipeline, error) {
	if !cfg.Enabled {
		return Disabled(cfg.ServiceName), nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	local, err := zipkintracer.NewEndpoint(cfg.HostPort, cfg.ServiceName)
	if err != nil {
		return nil, err
	}
	sampler, err := zipkintracer.NewSampler(cfg.SampleRate, cfg.ExcludedPaths)
	if err != nil {
		return nil, err
	}

	serializer := newSerializer(cfg)
	transport, err := newTransport(cfg, serializer, o)
	if err != nil {
		return nil, err
	}

	collectorOpts := append([]zipkintracer.CollectorOption{
		zipkintracer.CollectorLogger(logger),
		zipkintracer.CollectorQueueSize(cfg.QueueSize),
		zipkintracer.CollectorBatchSize(cfg.MaxBatchSize),
		zipkintracer.CollectorPollInterval(cfg.PollInterval),
		zipkintracer.CollectorSendTimeout(cfg.HTTPTimeout),
		zipkintracer.CollectorMetrics(zipkintracer.NewMetrics(reg)),
	}, o.collectorOpts...)
	collector, err := zipkintracer.NewCollector(transport, serializer, collectorOpts...)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		Tracer: zipkintracer.NewTracer(collector, local,
			zipkintracer.WithLogger(logger),
			zipkintracer.WithIDAnnotations(cfg.IDAnnotations),
			zipkintracer.WithNotToBeDisplayedDomains(cfg.NotToBeDisplayedDomains),
		),
		Provider:  zipkintracer.NewContextProvider(sampler, zipkintracer.WithTraceID128Bit(cfg.TraceID128Bit)),
		Collector: collector,
	}, nil
}

func newSerializer(cfg Config) wire.Serializer {
	switch {
	case cfg.Transport == TransportScribe:
		return wire.Scribe{}
	case cfg.Encoding == EncodingThrift:
		return wire.Thrift{}
	}
	return wire.JSON{}
}

func newTransport(cfg Config, serializer wire.Serializer, o *options) (zipkintracer.Transport, error) {
	switch cfg.Transport {
	case TransportScribe:
		return zipkintracer.NewScribeTransport(cfg.ScribeAddr, zipkintracer.ScribeTimeout(cfg.HTTPTimeout))
	case TransportKafka:
		kafkaOpts := []zipkintracer.KafkaOption{zipkintracer.KafkaTopic(cfg.KafkaTopic)}
		if o.kafkaProducer != nil {
			kafkaOpts = append(kafkaOpts, zipkintracer.KafkaProducer(o.kafkaProducer))
		}
		return zipkintracer.NewKafkaTransport(cfg.KafkaBrokers, kafkaOpts...)
	case TransportHTTP:
		httpOpts := []zipkintracer.HTTPOption{
			zipkintracer.HTTPTimeout(cfg.HTTPTimeout),
			zipkintracer.HTTPContentType(serializer.ContentType()),
		}
		if o.httpClient != nil {
			httpOpts = append(httpOpts, zipkintracer.HTTPClient(o.httpClient))
		}
		return zipkintracer.NewHTTPTransport(cfg.CollectorURL, httpOpts...)
	}
	return nil, errors.Errorf("unknown transport %q", cfg.Transport)
}
