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
	"sync"

	"github.com/Shopify/sarama"
	"github.com/pkg/errors"
)

// DefaultKafkaTopic is the topic Zipkin consumes spans from.
const DefaultKafkaTopic = "zipkin"

// KafkaTransport implements Transport by producing one Kafka message per
// batch.
type KafkaTransport struct {
	producer  sarama.SyncProducer
	topic     string
	config    *sarama.Config
	closeOnce sync.Once
	closeErr  error
}

// KafkaOption sets a parameter for the KafkaTransport.
type KafkaOption func(t *KafkaTransport)

// KafkaTopic sets the topic spans are produced to.
func KafkaTopic(topic string) KafkaOption {
	return func(t *KafkaTransport) { t.topic = topic }
}

// KafkaProducer sets the producer to use instead of connecting to the
// brokers.
func KafkaProducer(p sarama.SyncProducer) KafkaOption {
	return func(t *KafkaTransport) { t.producer = p }
}

// KafkaConfig sets the sarama configuration of the producer. Successes are
// always returned since the producer is synchronous.
func KafkaConfig(config *sarama.Config) KafkaOption {
	return func(t *KafkaTransport) { t.config = config }
}

// NewKafkaTransport returns a transport producing to the given brokers.
func NewKafkaTransport(brokers []string, options ...KafkaOption) (*KafkaTransport, error) {
	t := &KafkaTransport{topic: DefaultKafkaTopic}
	for _, option := range options {
		option(t)
	}
	if t.topic == "" {
		return nil, errors.New("kafka topic must not be empty")
	}
	if t.producer != nil {
		return t, nil
	}

	if len(brokers) == 0 {
		return nil, errors.New("no kafka brokers given")
	}
	config := t.config
	if config == nil {
		config = sarama.NewConfig()
		config.Producer.RequiredAcks = sarama.WaitForLocal
	}
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true

	p, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, errors.Wrap(err, "creating kafka producer")
	}
	t.producer = p
	return t, nil
}

// Send implements Transport.
func (t *KafkaTransport) Send(_ context.Context, payload []byte) error {
	_, _, err := t.producer.SendMessage(&sarama.ProducerMessage{
		Topic: t.topic,
		Value: sarama.ByteEncoder(payload),
	})
	return errors.Wrapf(err, "producing spans to %s", t.topic)
}

// Close implements Transport.
func (t *KafkaTransport) Close() error {
	t.closeOnce.Do(func() { t.closeErr = t.producer.Close() })
	return t.closeErr
}
