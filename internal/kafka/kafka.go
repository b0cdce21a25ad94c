// Package kafka holds broker bootstrap helpers: topic creation and a readiness probe
package kafka

import (
	"context"
	"errors"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/wb-go/wbf/zlog"
)

// InitTopics creates the task topics, retrying until the broker accepts the
// request or ctx expires. Already-existing topics count as success.
func InitTopics(ctx context.Context, brokerAddr string, delay time.Duration, topics ...string) {
	client := &kafkago.Client{
		Addr:    kafkago.TCP(brokerAddr),
		Timeout: 10 * time.Second,
	}

	req := kafkago.CreateTopicsRequest{
		Topics: make([]kafkago.TopicConfig, 0, len(topics)),
	}

	for _, t := range topics {
		req.Topics = append(req.Topics, kafkago.TopicConfig{
			Topic:             t,
			NumPartitions:     1,
			ReplicationFactor: 1,
		})
	}

	for {
		select {
		case <-ctx.Done():
			zlog.Logger.Warn().Msg("Topic creation canceled or timed out")
			return
		default:
		}

		resp, err := client.CreateTopics(ctx, &req)
		if err != nil {
			zlog.Logger.Warn().Err(err).Dur("delay", delay).Msg("Topic creation request failed, waiting before next try")
			time.Sleep(delay)
			continue
		}

		created := 0
		for topic, topicErr := range resp.Errors {
			switch {
			case errors.Is(topicErr, kafkago.TopicAlreadyExists):
				created++
			case topicErr == nil:
				created++
			default:
				zlog.Logger.Error().Err(topicErr).Str("topic", topic).Msg("Topic creation error")
			}
		}

		if len(resp.Errors) == created {
			zlog.Logger.Info().Msg("All topics ready")
			return
		}
	}
}

// WaitReady blocks until the broker accepts a TCP connection.
func WaitReady(brokerAddr string) {
	for {
		conn, err := kafkago.Dial("tcp", brokerAddr)
		if err == nil {
			if errConn := conn.Close(); errConn != nil {
				zlog.Logger.Warn().Err(errConn).Msg("Failed to close probe connection")
			}
			break
		}
		zlog.Logger.Info().Msg("Kafka not ready, retrying in 10s...")
		time.Sleep(10 * time.Second)
	}
	zlog.Logger.Info().Msg("Kafka is ready")
}
