// Copyright 2026 The BigFin Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

// Package stream exposes gocloud.dev/pubsub and side-loads various packages
// to register implementations such as kafka or in-memory. Please refer to
// specific documentation for each implementation.
//
//  - https://gocloud.dev/howto/pubsub/publish/
//  - https://gocloud.dev/howto/pubsub/subscribe/
//
// This package is designed as one import to bring in extra dependencies without
// requiring multiple projects to know what imports are needed.
package stream

import (
	"context"

	"github.com/raynmakr/bigfin/internal/config"

	"github.com/Shopify/sarama"
	"gocloud.dev/pubsub"
	"gocloud.dev/pubsub/kafkapubsub"
	_ "gocloud.dev/pubsub/mempubsub"
)

func Topic(ctx context.Context, url string) (*pubsub.Topic, error) {
	return pubsub.OpenTopic(ctx, url)
}

func Subscription(ctx context.Context, url string) (*pubsub.Subscription, error) {
	return pubsub.OpenSubscription(ctx, url)
}

// KafkaTopic creates a pubsub.Topic that sends to a Kafka topic. It uses a sarama.SyncProducer to send messages.
// Producer options can be configured in the Producer section of the sarama.Config: https://godoc.org/github.com/Shopify/sarama#Config.
// Config.Producer.Return.Success must be set to true.
func KafkaTopic(brokers []string, config *sarama.Config, topicName string, opts *kafkapubsub.TopicOptions) (*pubsub.Topic, error) {
	return kafkapubsub.OpenTopic(brokers, config, topicName, opts)
}

// KafkaSubscription creates a pubsub.Subscription that joins group, receiving messages from topics.
// It uses a sarama.ConsumerGroup to receive messages.
// Consumer options can be configured in the Consumer section of the sarama.Config: https://godoc.org/github.com/Shopify/sarama#Config.
func KafkaSubscription(brokers []string, config *sarama.Config, group string, topics []string, opts *kafkapubsub.SubscriptionOptions) (*pubsub.Subscription, error) {
	return kafkapubsub.OpenSubscription(brokers, config, group, topics, opts)
}

// OpenTopic reads the stream configuration and opens whichever topic it
// names; a nil config disables publication and returns nil.
func OpenTopic(ctx context.Context, cfg *config.Stream) (*pubsub.Topic, error) {
	if cfg == nil {
		return nil, nil
	}
	if cfg.InMem != nil {
		return Topic(ctx, cfg.InMem.URL)
	}
	if k := cfg.Kafka; k != nil {
		sc := sarama.NewConfig()
		sc.Producer.Return.Successes = true
		return KafkaTopic(k.Brokers, sc, k.Topic, nil)
	}
	return nil, nil
}

// Publisher wraps a pubsub.Topic behind the small publish interface the
// transfer orchestrator uses.
type Publisher struct {
	topic *pubsub.Topic
}

func NewPublisher(topic *pubsub.Topic) *Publisher {
	if topic == nil {
		return nil
	}
	return &Publisher{topic: topic}
}

func (p *Publisher) Publish(ctx context.Context, body []byte) error {
	return p.topic.Send(ctx, &pubsub.Message{
		Body:     body,
		Metadata: make(map[string]string),
	})
}
