package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"
)

const (
	defaultReplayLimit = 100
	defaultIdleTimeout = 2 * time.Second
)

// ErrNotDeadLetter означает, что сообщение из DLQ не содержит исходного события.
var ErrNotDeadLetter = errors.New("message is not an outbox dead letter")

// ReplayOptions задаёт параметры переигрывания DLQ.
type ReplayOptions struct {
	SourceTopic string
	TargetTopic string
	Limit       int
	// При Execute=false (dry-run) сообщения только логируются.
	Execute     bool
	IdleTimeout time.Duration
}

// ReplayStats: итог прогона.
type ReplayStats struct {
	Processed int
	Replayed  int
	Skipped   int
}

// Replayer читает DLQ и возвращает события заказов в основной topic.
type Replayer struct {
	consumer sarama.Consumer
	producer *Producer
	logger   *log.Entry
	opts     ReplayOptions
	now      func() time.Time
}

// NewReplayer создаёт Replayer. producer может быть nil в режиме dry-run.
func NewReplayer(consumer sarama.Consumer, producer *Producer, logger *log.Entry, opts ReplayOptions) (*Replayer, error) {
	if consumer == nil {
		return nil, fmt.Errorf("kafka consumer is required")
	}
	if opts.Execute && producer == nil {
		return nil, fmt.Errorf("producer is required in execute mode")
	}
	if opts.SourceTopic == "" {
		opts.SourceTopic = TopicDeadLetterQueue
	}
	if opts.TargetTopic == "" {
		opts.TargetTopic = TopicOrderEvents
	}
	if opts.Limit <= 0 {
		opts.Limit = defaultReplayLimit
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = defaultIdleTimeout
	}
	if logger == nil {
		logger = log.WithField("component", "kafka-dlq-replay")
	}

	return &Replayer{
		consumer: consumer,
		producer: producer,
		logger:   logger,
		opts:     opts,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// Run проходит партиции DLQ по порядку, пока не исчерпан лимит
// или партиция не замолчала дольше IdleTimeout.
func (r *Replayer) Run(ctx context.Context) (ReplayStats, error) {
	var total ReplayStats

	partitions, err := r.consumer.Partitions(r.opts.SourceTopic)
	if err != nil {
		return total, fmt.Errorf("get partitions for topic %s: %w", r.opts.SourceTopic, err)
	}
	sort.Slice(partitions, func(i, j int) bool { return partitions[i] < partitions[j] })

	for _, partition := range partitions {
		if total.Processed >= r.opts.Limit {
			break
		}

		stats, err := r.replayPartition(ctx, partition, r.opts.Limit-total.Processed)
		total.Processed += stats.Processed
		total.Replayed += stats.Replayed
		total.Skipped += stats.Skipped
		if err != nil {
			return total, err
		}
	}

	r.logger.WithFields(log.Fields{
		"execute":   r.opts.Execute,
		"processed": total.Processed,
		"replayed":  total.Replayed,
		"skipped":   total.Skipped,
	}).Info("dlq replay finished")

	return total, nil
}

func (r *Replayer) replayPartition(ctx context.Context, partition int32, limit int) (ReplayStats, error) {
	var stats ReplayStats

	pc, err := r.consumer.ConsumePartition(r.opts.SourceTopic, partition, sarama.OffsetOldest)
	if err != nil {
		return stats, fmt.Errorf("consume partition %d: %w", partition, err)
	}
	defer func() { _ = pc.Close() }()

	idle := time.NewTimer(r.opts.IdleTimeout)
	defer idle.Stop()

	for stats.Processed < limit {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		case <-idle.C:
			return stats, nil
		case consumerErr, ok := <-pc.Errors():
			if ok && consumerErr != nil {
				return stats, fmt.Errorf("partition %d consumer error: %w", partition, consumerErr)
			}
		case msg, ok := <-pc.Messages():
			if !ok || msg == nil {
				return stats, nil
			}
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(r.opts.IdleTimeout)

			stats.Processed++
			replayed, err := r.replayMessage(ctx, msg)
			if err != nil {
				return stats, err
			}
			if replayed {
				stats.Replayed++
			} else {
				stats.Skipped++
			}
		}
	}

	return stats, nil
}

func (r *Replayer) replayMessage(ctx context.Context, msg *sarama.ConsumerMessage) (bool, error) {
	logger := r.logger.WithFields(log.Fields{
		"partition": msg.Partition,
		"offset":    msg.Offset,
	})

	envelope, err := RestoreFromDeadLetter(msg.Value, r.now())
	if err != nil {
		logger.WithError(err).Warn("skip unsupported dlq message")
		return false, nil
	}

	if !r.opts.Execute {
		logger.WithFields(log.Fields{
			"event_type":   envelope.EventType,
			"aggregate_id": envelope.AggregateID,
			"target_topic": r.opts.TargetTopic,
		}).Info("dlq replay candidate")
		return true, nil
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		return false, fmt.Errorf("encode replay envelope: %w", err)
	}
	if err := r.producer.Send(ctx, r.opts.TargetTopic, envelope.Key(), data, map[string]string{
		HeaderEventType: envelope.EventType,
		HeaderReplayed:  "true",
	}); err != nil {
		return false, fmt.Errorf("publish replay message: %w", err)
	}
	return true, nil
}

// RestoreFromDeadLetter достаёт исходное событие из DLQ-сообщения:
// внешний Envelope несёт в Payload запись dead letter outbox worker.
func RestoreFromDeadLetter(data []byte, publishedAt time.Time) (Envelope, error) {
	outer, err := DecodeEnvelope(data)
	if err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrNotDeadLetter, err)
	}

	var letter deadLetter
	if err := json.Unmarshal(outer.Payload, &letter); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrNotDeadLetter, err)
	}
	if len(letter.Payload) == 0 || string(letter.Payload) == "null" {
		return Envelope{}, fmt.Errorf("%w: original payload is empty", ErrNotDeadLetter)
	}

	return Envelope{
		ID:            firstNonEmpty(letter.OutboxID, outer.ID),
		AggregateType: firstNonEmpty(letter.AggregateType, outer.AggregateType),
		AggregateID:   firstNonEmpty(letter.AggregateID, outer.AggregateID),
		EventType:     firstNonEmpty(letter.EventType, outer.EventType),
		Payload:       letter.Payload,
		PublishedAt:   publishedAt,
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
