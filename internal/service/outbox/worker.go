// Package outbox доставляет события заказов из таблицы outbox в брокер:
// опрос pending-записей, публикация с повторами, перевод в failed и копия в DLQ.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

const (
	defaultPollInterval   = time.Second
	defaultBatchSize      = 100
	defaultMaxAttempts    = 3
	defaultRetryBaseDelay = 50 * time.Millisecond
	maxRetryDelay         = 30 * time.Second
)

// Результаты попыток для метрики storefront_outbox_publish_attempts_total.
const (
	resultSent       = "sent"
	resultRetryError = "retry_error"
	resultFailed     = "failed"
	resultDLQFailed  = "dlq_failed"
)

// DeadLetter: то, что уходит в DLQ, когда событие не удалось опубликовать.
type DeadLetter struct {
	OutboxID       string          `json:"outbox_id"`
	AggregateType  string          `json:"aggregate_type"`
	AggregateID    string          `json:"aggregate_id"`
	EventType      string          `json:"event_type"`
	Payload        json.RawMessage `json:"payload"`
	PublishError   string          `json:"publish_error"`
	DLQPublishedAt time.Time       `json:"dlq_published_at"`
}

// NewDeadLetter упаковывает событие и ошибку публикации. Невалидный JSON
// в payload заменяется на null, чтобы конверт оставался читаемым.
func NewDeadLetter(event domain.OutboxMessage, publishErr error, at time.Time) DeadLetter {
	payload := json.RawMessage(event.Payload)
	if !json.Valid(payload) {
		payload = json.RawMessage("null")
	}
	letter := DeadLetter{
		OutboxID:       event.ID,
		AggregateType:  event.AggregateType,
		AggregateID:    event.AggregateID,
		EventType:      event.EventType,
		Payload:        payload,
		DLQPublishedAt: at.UTC(),
	}
	if publishErr != nil {
		letter.PublishError = publishErr.Error()
	}
	return letter
}

// WorkerOptions: параметры воркера. Нулевые значения заменяются дефолтами.
type WorkerOptions struct {
	Logger         *log.Entry
	Metrics        *metrics.OutboxMetrics
	DLQPublisher   domain.OutboxPublisher
	PollInterval   time.Duration
	BatchSize      int
	MaxAttempts    int
	RetryBaseDelay time.Duration
	Now            func() time.Time
}

type Option func(*WorkerOptions)

func WithLogger(logger *log.Entry) Option {
	return func(o *WorkerOptions) { o.Logger = logger }
}

// WithMetrics включает счётчики попыток и gauge backlog.
func WithMetrics(m *metrics.OutboxMetrics) Option {
	return func(o *WorkerOptions) { o.Metrics = m }
}

// WithDLQPublisher задаёт получателя событий, исчерпавших попытки.
func WithDLQPublisher(publisher domain.OutboxPublisher) Option {
	return func(o *WorkerOptions) { o.DLQPublisher = publisher }
}

func WithPollInterval(interval time.Duration) Option {
	return func(o *WorkerOptions) { o.PollInterval = interval }
}

func WithBatchSize(size int) Option {
	return func(o *WorkerOptions) { o.BatchSize = size }
}

// WithMaxAttempts: сколько раз публиковать событие, прежде чем пометить его failed.
func WithMaxAttempts(attempts int) Option {
	return func(o *WorkerOptions) { o.MaxAttempts = attempts }
}

// WithRetryBaseDelay: пауза перед второй попыткой; дальше она удваивается.
func WithRetryBaseDelay(delay time.Duration) Option {
	return func(o *WorkerOptions) { o.RetryBaseDelay = delay }
}

func WithClock(now func() time.Time) Option {
	return func(o *WorkerOptions) { o.Now = now }
}

func (o *WorkerOptions) normalize() {
	if o.Logger == nil {
		o.Logger = log.WithField("component", "outbox-worker")
	}
	if o.PollInterval <= 0 {
		o.PollInterval = defaultPollInterval
	}
	if o.BatchSize <= 0 {
		o.BatchSize = defaultBatchSize
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = defaultMaxAttempts
	}
	o.RetryBaseDelay = max(o.RetryBaseDelay, 0)
	if o.Now == nil {
		o.Now = func() time.Time { return time.Now().UTC() }
	}
}

// Worker публикует pending-события outbox.
type Worker struct {
	repo      domain.OutboxRepository
	publisher domain.OutboxPublisher
	opts      WorkerOptions
}

func NewWorker(repo domain.OutboxRepository, publisher domain.OutboxPublisher, options ...Option) *Worker {
	opts := WorkerOptions{
		PollInterval:   defaultPollInterval,
		BatchSize:      defaultBatchSize,
		MaxAttempts:    defaultMaxAttempts,
		RetryBaseDelay: defaultRetryBaseDelay,
	}
	for _, apply := range options {
		apply(&opts)
	}
	opts.normalize()
	return &Worker{repo: repo, publisher: publisher, opts: opts}
}

// Run опрашивает outbox до отмены ctx. Первый проход выполняется сразу.
func (w *Worker) Run(ctx context.Context) {
	if w.repo == nil || w.publisher == nil {
		w.opts.Logger.Warn("outbox worker disabled: no repository or publisher")
		return
	}

	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()

	for {
		w.ProcessOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// ProcessOnce обрабатывает один батч и возвращает число доставленных событий.
func (w *Worker) ProcessOnce(ctx context.Context) int {
	if ctx.Err() != nil {
		return 0
	}
	w.refreshBacklog(ctx)
	defer w.refreshBacklog(ctx)

	batch, err := w.repo.PullPending(ctx, w.opts.BatchSize)
	if err != nil {
		w.opts.Logger.WithError(err).Warn("pull pending outbox messages failed")
		return 0
	}

	delivered := 0
	for _, event := range batch {
		if ctx.Err() != nil {
			break
		}
		if w.deliver(ctx, event) {
			delivered++
		}
	}
	return delivered
}

// deliver публикует одно событие и переводит запись в sent или failed.
func (w *Worker) deliver(ctx context.Context, event domain.OutboxMessage) bool {
	logger := w.opts.Logger.WithFields(log.Fields{
		"outbox_id":    event.ID,
		"event_type":   event.EventType,
		"aggregate_id": event.AggregateID,
	})

	publishErr := w.publishWithRetry(ctx, event)
	if publishErr == nil {
		if err := w.repo.MarkSent(ctx, event.ID); err != nil {
			logger.WithError(err).Warn("mark outbox message sent failed")
			return false
		}
		return true
	}
	if ctx.Err() != nil {
		// Запись остаётся pending и уйдёт на следующем запуске.
		return false
	}

	logger.WithError(publishErr).Error("outbox message exhausted publish attempts")
	w.record(resultFailed)
	if err := w.sendToDLQ(ctx, event, publishErr); err != nil {
		logger.WithError(err).Warn("dead letter publish failed")
		w.record(resultDLQFailed)
	}
	if err := w.repo.MarkFailed(ctx, event.ID); err != nil {
		logger.WithError(err).Warn("mark outbox message failed failed")
	}
	return false
}

func (w *Worker) publishWithRetry(ctx context.Context, event domain.OutboxMessage) error {
	var lastErr error
	for attempt := 1; ; attempt++ {
		lastErr = w.publisher.Publish(ctx, event)
		if lastErr == nil {
			w.record(resultSent)
			return nil
		}
		w.record(resultRetryError)
		if attempt == w.opts.MaxAttempts {
			break
		}
		if err := sleepCtx(ctx, w.retryBackoff(attempt)); err != nil {
			return err
		}
	}
	return fmt.Errorf("%w after %d attempts: %w", domain.ErrOutboxPublish, w.opts.MaxAttempts, lastErr)
}

// retryBackoff возвращает паузу после attempt-й неудачи, base * 2^(attempt-1) и не больше maxRetryDelay.
func (w *Worker) retryBackoff(attempt int) time.Duration {
	base := w.opts.RetryBaseDelay
	if base <= 0 {
		return 0
	}
	shift := min(max(attempt-1, 0), 30)
	delay := base << shift
	if delay <= 0 || delay > maxRetryDelay {
		return maxRetryDelay
	}
	return delay
}

func (w *Worker) sendToDLQ(ctx context.Context, event domain.OutboxMessage, publishErr error) error {
	if w.opts.DLQPublisher == nil {
		return nil
	}
	body, err := json.Marshal(NewDeadLetter(event, publishErr, w.opts.Now()))
	if err != nil {
		return fmt.Errorf("encode dead letter: %w", err)
	}
	letter := event
	letter.Payload = body
	if err := w.opts.DLQPublisher.Publish(ctx, letter); err != nil {
		return fmt.Errorf("publish dead letter: %w", err)
	}
	return nil
}

func (w *Worker) record(result string) {
	if w.opts.Metrics != nil {
		w.opts.Metrics.RecordAttempt(result)
	}
}

func (w *Worker) refreshBacklog(ctx context.Context) {
	if w.opts.Metrics == nil || ctx.Err() != nil {
		return
	}
	stats, err := w.repo.Stats(ctx)
	if err != nil {
		w.opts.Logger.WithError(err).Warn("collect outbox backlog failed")
		return
	}
	var age time.Duration
	if stats.PendingCount > 0 && !stats.OldestPendingAt.IsZero() {
		age = w.opts.Now().Sub(stats.OldestPendingAt)
	}
	w.opts.Metrics.SetBacklog(stats.PendingCount, age)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
