// Package worker consumes derivation tasks from the queue and feeds them to the service
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	kafkago "github.com/segmentio/kafka-go"
	wbfkafka "github.com/wb-go/wbf/kafka"
	"github.com/wb-go/wbf/zlog"

	"github.com/imagemill/imagemill/internal/model"
)

// DeriverService - the part of the facade the worker needs
type DeriverService interface {
	ProcessImage(ctx context.Context, src model.SourceImage) (*model.DerivationResult, error)
}

type Worker struct {
	service  DeriverService
	queue    <-chan kafkago.Message
	consumer *wbfkafka.Consumer
}

func NewWorkerInstance(svc DeriverService, q <-chan kafkago.Message, cons *wbfkafka.Consumer) *Worker {
	return &Worker{service: svc, queue: q, consumer: cons}
}

func (w *Worker) StartWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-w.queue:
			if !ok {
				zlog.Logger.Info().Msg("Queue channel closed, stopping worker...")
				return
			}
			if err := w.handleMessage(ctx, msg); err != nil {
				zlog.Logger.Error().Err(err).Str("key", string(msg.Key)).Msg("Task failed")
			}
			// a bad task is committed too: redelivering an unreadable
			// upload produces the same failure forever
			if err := w.consumer.Commit(ctx, msg); err != nil {
				zlog.Logger.Error().Err(err).Msg("Failed to commit queue-message")
			}
		}
	}
}

func (w *Worker) handleMessage(ctx context.Context, msg kafkago.Message) error {
	var src model.SourceImage
	if err := json.Unmarshal(msg.Value, &src); err != nil {
		return fmt.Errorf("worker failed to decode task payload: %w", err)
	}

	if src.LocalPath == "" {
		return errors.New("task payload has no local_path")
	}

	res, err := w.service.ProcessImage(ctx, src)
	if err != nil {
		return fmt.Errorf("worker failed to process task %q: %w", src.OriginalFilename, err)
	}

	zlog.Logger.Info().
		Str("original", src.OriginalFilename).
		Int("artifacts", len(res.Artifacts)).
		Str("savings", res.Stats.SavingsPercent).
		Msg("Derivation complete")
	return nil
}
