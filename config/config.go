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

// Package config loads the tracing pipeline settings from the environment
// and assembles the pipeline from them.
package config

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// Prefix of every environment variable read by Load.
const Prefix = "ZIPKIN"

// Supported transports.
const (
	TransportHTTP   = "http"
	TransportScribe = "scribe"
	TransportKafka  = "kafka"
)

// Supported encodings. Scribe always carries base64 thrift.
const (
	EncodingJSON   = "json"
	EncodingThrift = "thrift"
)

// Config holds the tracing pipeline configuration.
type Config struct {
	Enabled      bool     `envconfig:"ENABLED" default:"true"`
	CollectorURL string   `envconfig:"COLLECTOR_URL" default:"http://localhost:9411"`
	Transport    string   `envconfig:"TRANSPORT" default:"http"`
	Encoding     string   `envconfig:"ENCODING" default:"json"`
	ScribeAddr   string   `envconfig:"SCRIBE_ADDR" default:"localhost:9410"`
	KafkaBrokers []string `envconfig:"KAFKA_BROKERS"`
	KafkaTopic   string   `envconfig:"KAFKA_TOPIC" default:"zipkin"`

	ServiceName string `envconfig:"SERVICE_NAME"`
	HostPort    string `envconfig:"HOST_PORT" default:"0.0.0.0:0"`

	MaxBatchSize int           `envconfig:"MAX_BATCH_SIZE" default:"20"`
	QueueSize    int           `envconfig:"QUEUE_SIZE" default:"100"`
	PollInterval time.Duration `envconfig:"POLL_INTERVAL" default:"1s"`
	HTTPTimeout  time.Duration `envconfig:"HTTP_TIMEOUT" default:"5s"`

	SampleRate              float64  `envconfig:"SAMPLE_RATE" default:"1"`
	ExcludedPaths           []string `envconfig:"EXCLUDED_PATHS"`
	TraceID128Bit           bool     `envconfig:"TRACE_ID_128BIT"`
	NotToBeDisplayedDomains []string `envconfig:"NOT_TO_BE_DISPLAYED_DOMAINS"`
	IDAnnotations           bool     `envconfig:"ID_ANNOTATIONS"`
}

// Load reads the configuration from ZIPKIN_* environment variables.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "failed to load tracing config")
	}
	return cfg, nil
}

// Default returns the configuration Load yields on an empty environment.
func Default() Config {
	return Config{
		Enabled:      true,
		CollectorURL: "http://localhost:9411",
		Transport:    TransportHTTP,
		Encoding:     EncodingJSON,
		ScribeAddr:   "localhost:9410",
		KafkaTopic:   "zipkin",
		HostPort:     "0.0.0.0:0",
		MaxBatchSize: 20,
		QueueSize:    100,
		PollInterval: time.Second,
		HTTPTimeout:  5 * time.Second,
		SampleRate:   1,
	}
}

// Validate reports every problem of an enabled configuration at once.
// A disabled configuration is always valid.
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	var err error
	check := func(ok bool, format string, args ...interface{}) {
		if !ok {
			err = multierr.Append(err, fmt.Errorf(format, args...))
		}
	}

	check(strings.TrimSpace(c.ServiceName) != "", "service name is required")
	check(c.HostPort != "", "host port is required")
	switch c.Transport {
	case TransportHTTP:
		check(c.CollectorURL != "", "collector url is required for the http transport")
	case TransportScribe:
		check(c.ScribeAddr != "", "scribe address is required for the scribe transport")
	case TransportKafka:
		check(len(c.KafkaBrokers) > 0, "kafka brokers are required for the kafka transport")
		check(c.KafkaTopic != "", "kafka topic is required for the kafka transport")
	default:
		check(false, "unknown transport %q", c.Transport)
	}
	check(c.Encoding == EncodingJSON || c.Encoding == EncodingThrift, "unknown encoding %q", c.Encoding)
	check(c.MaxBatchSize > 0, "max batch size must be positive, got %d", c.MaxBatchSize)
	check(c.QueueSize > 0, "queue size must be positive, got %d", c.QueueSize)
	check(c.PollInterval > 0, "poll interval must be positive, got %s", c.PollInterval)
	check(c.HTTPTimeout > 0, "http timeout must be positive, got %s", c.HTTPTimeout)
	check(!math.IsNaN(c.SampleRate) && c.SampleRate >= 0 && c.SampleRate <= 1,
		"sample rate must be within [0, 1], got %v", c.SampleRate)
	return err
}
