// Package events drains the reconciliation outbox and publishes events to
// Kafka. Publishing is at-least-once; consumers are expected to deduplicate
// on (line_id, event_type, occurred_at).
package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/finrecon/bank-reconciliation/internal/config"
	"github.com/finrecon/bank-reconciliation/internal/domain/outbox"
	"github.com/finrecon/bank-reconciliation/internal/platform/messaging/producers"
)

// Poller processes pending outbox messages
type Poller struct {
	outboxRepo       outbox.Repository
	publisher        producers.MessagePublisher
	dlqPublisher     producers.DeadLetterPublisher
	logger           *slog.Logger
	pollInterval     time.Duration
	batchSize        int
	maxRetryAttempts int
}

// NewPoller creates a poller. dlqPublisher may be nil when the DLQ topic is
// not configured.
func NewPoller(
	cfg *config.OutboxConfig,
	outboxRepo outbox.Repository,
	publisher producers.MessagePublisher,
	dlqPublisher producers.DeadLetterPublisher,
	logger *slog.Logger,
) *Poller {
	return &Poller{
		outboxRepo:       outboxRepo,
		publisher:        publisher,
		dlqPublisher:     dlqPublisher,
		logger:           logger,
		pollInterval:     cfg.PollingInterval,
		batchSize:        cfg.BatchSize,
		maxRetryAttempts: cfg.MaxRetryAttempts,
	}
}

// Start begins polling until context is canceled
func (p *Poller) Start(ctx context.Context) {
	p.logger.Info("Starting outbox poller",
		"poll_interval", p.pollInterval.String(),
		"batch_size", p.batchSize,
		"max_retry_attempts", p.maxRetryAttempts,
	)
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Outbox poller stopping due to context cancellation.")
			return
		case <-ticker.C:
			if err := p.ProcessPendingMessages(ctx); err != nil {
				p.logger.Error("Error during batch processing of pending outbox messages", "error", err)
			}
		}
	}
}

// ProcessPendingMessages drains one batch of pending messages in FIFO order.
// Failures are handled per message so one bad event cannot block the queue.
func (p *Poller) ProcessPendingMessages(ctx context.Context) error {
	messages, err := p.outboxRepo.GetPending(ctx, p.batchSize)
	if err != nil {
		return fmt.Errorf("failed to get pending outbox messages: %w", err)
	}

	if len(messages) == 0 {
		p.logger.Debug("No pending outbox messages found.")
		return nil
	}

	p.logger.Info("Fetched pending outbox messages", "count", len(messages))

	for _, msg := range messages {
		p.processMessage(ctx, msg)
	}
	return nil
}

func (p *Poller) processMessage(ctx context.Context, msg *outbox.Message) {
	logger := p.logger
	if event, err := msg.GetEvent(); err == nil && event.CorrelationID != "" {
		logger = p.logger.With("correlation_id", event.CorrelationID)
	}

	// Events are keyed by bank line so downstream consumers see changes to
	// one line in order.
	err := p.publisher.Publish(ctx, msg.LineID.String(), msg.Payload)
	if err == nil {
		if errUpdate := p.outboxRepo.UpdateStatus(ctx, msg.ID, outbox.StatusProcessed); errUpdate != nil {
			logger.Error("Published event but failed to mark outbox message as PROCESSED",
				"outbox_id", msg.ID, "line_id", msg.LineID.String(), "error", errUpdate,
			)
			return
		}
		logger.Info("Successfully published outbox message", "outbox_id", msg.ID, "line_id", msg.LineID.String(), "event_type", string(msg.EventType))
		return
	}

	logger.Error("Failed to publish outbox message",
		"outbox_id", msg.ID, "line_id", msg.LineID.String(), "current_attempts", msg.Attempts, "error", err,
	)

	if errInc := p.outboxRepo.IncrementAttempts(ctx, msg.ID); errInc != nil {
		logger.Error("Failed to increment attempts for outbox message", "outbox_id", msg.ID, "error", errInc)
		return
	}

	if msg.Attempts+1 < p.maxRetryAttempts {
		return
	}

	logger.Warn("Max retry attempts reached for outbox message",
		"outbox_id", msg.ID, "line_id", msg.LineID.String(), "attempts_made", msg.Attempts+1,
	)
	p.deadLetter(ctx, msg, err.Error(), logger)
}

// deadLetter moves an exhausted message to the DLQ topic and removes it from
// the outbox. If the DLQ is disabled or the publish fails, the message is
// parked as FAILED_TO_PUBLISH for manual intervention instead.
func (p *Poller) deadLetter(ctx context.Context, msg *outbox.Message, reason string, logger *slog.Logger) {
	if p.dlqPublisher != nil {
		if err := p.dlqPublisher.PublishToDLQ(ctx, msg.LineID.String(), msg.Payload, reason); err == nil {
			if errDel := p.outboxRepo.Delete(ctx, msg.ID); errDel != nil {
				logger.Error("Failed to delete outbox message after DLQ publish", "outbox_id", msg.ID, "error", errDel)
			}
			return
		}
		logger.Error("Failed to publish outbox message to DLQ", "outbox_id", msg.ID)
	}

	if errUpdate := p.outboxRepo.UpdateStatus(ctx, msg.ID, outbox.StatusFailedToPublish); errUpdate != nil {
		logger.Error("Failed to update outbox status to FAILED_TO_PUBLISH after max retries", "outbox_id", msg.ID, "error", errUpdate)
	}
}
