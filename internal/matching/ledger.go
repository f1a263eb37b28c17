package matching

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/finrecon/bank-reconciliation/internal/domain/bankfeed"
	"github.com/finrecon/bank-reconciliation/internal/domain/match"
	"github.com/finrecon/bank-reconciliation/internal/domain/outbox"
)

// TxManager runs a function inside a database transaction, rolling back on
// error or panic. *persistence.PostgresDB satisfies it.
type TxManager interface {
	ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

// MatchLedger owns the create/remove lifecycle of persisted matches and
// keeps each bank line's cumulative matched amount and status consistent.
// Every mutation locks the bank line row for the duration of the database
// transaction, so concurrent manual and automatic matching can never push
// the matched amount past the line amount plus tolerance.
type MatchLedger struct {
	txManager  TxManager
	lineRepo   bankfeed.Repository
	matchRepo  match.Repository
	outboxRepo outbox.Repository
	logger     *slog.Logger
}

// NewMatchLedger creates a new match ledger
func NewMatchLedger(
	txManager TxManager,
	lineRepo bankfeed.Repository,
	matchRepo match.Repository,
	outboxRepo outbox.Repository,
	logger *slog.Logger,
) *MatchLedger {
	return &MatchLedger{
		txManager:  txManager,
		lineRepo:   lineRepo,
		matchRepo:  matchRepo,
		outboxRepo: outboxRepo,
		logger:     logger,
	}
}

// CreateMatch persists a new match against a bank line and updates the
// line's cumulative matched amount and status. It rejects non-positive
// amounts, ignored lines, already fully matched lines, and amounts that
// would break the conservation invariant; rejected calls leave all state
// unchanged.
func (l *MatchLedger) CreateMatch(ctx context.Context, lineID uuid.UUID, input match.CreateInput) (*match.Match, *bankfeed.Line, error) {
	if input.MatchedAmount.IsZero() || input.MatchedAmount.IsNegative() {
		return nil, nil, bankfeed.ErrInvalidMatchedAmount
	}

	var (
		created *match.Match
		line    *bankfeed.Line
	)

	err := l.txManager.ExecuteTx(ctx, func(tx pgx.Tx) error {
		lineRepoTx := l.lineRepo.WithTx(tx)

		locked, err := lineRepoTx.LockForUpdate(ctx, lineID)
		if err != nil {
			return err
		}

		m := match.New(locked, input)
		if err := locked.ApplyMatch(input.MatchedAmount); err != nil {
			return err
		}

		if err := l.matchRepo.WithTx(tx).Create(ctx, m); err != nil {
			return err
		}
		if err := lineRepoTx.Update(ctx, locked); err != nil {
			return err
		}

		if err := l.recordEvent(ctx, tx, &outbox.Event{
			Type:          outbox.EventMatchCreated,
			LineID:        locked.ID,
			MatchID:       &m.ID,
			RecordID:      &m.RecordID,
			MatchedAmount: &m.MatchedAmount,
			LineStatus:    locked.Status,
			Method:        m.Method,
			Score:         m.Score,
			Actor:         m.MatchedBy,
			OccurredAt:    m.MatchedAt,
		}); err != nil {
			return err
		}

		created = m
		line = locked
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	l.logger.Info("match created",
		"line_id", lineID.String(),
		"match_id", created.ID.String(),
		"record_id", created.RecordID.String(),
		"matched_amount", created.MatchedAmount.String(),
		"method", string(created.Method),
		"line_status", string(line.Status),
	)
	return created, line, nil
}

// RemoveMatch deletes a match and reverts its amount from the bank line,
// recomputing the status. Creating and removing the same match restores the
// line to its exact prior status and matched amount.
func (l *MatchLedger) RemoveMatch(ctx context.Context, lineID, matchID uuid.UUID, actor string) (*bankfeed.Line, error) {
	var line *bankfeed.Line

	err := l.txManager.ExecuteTx(ctx, func(tx pgx.Tx) error {
		lineRepoTx := l.lineRepo.WithTx(tx)
		matchRepoTx := l.matchRepo.WithTx(tx)

		locked, err := lineRepoTx.LockForUpdate(ctx, lineID)
		if err != nil {
			return err
		}

		m, err := matchRepoTx.GetByID(ctx, matchID)
		if err != nil {
			return err
		}
		if m.LineID != lineID {
			return match.ErrMatchNotFound{MatchID: matchID}
		}

		if err := matchRepoTx.Delete(ctx, matchID); err != nil {
			return err
		}
		if err := locked.RevertMatch(m.MatchedAmount); err != nil {
			return err
		}
		if err := lineRepoTx.Update(ctx, locked); err != nil {
			return err
		}

		if err := l.recordEvent(ctx, tx, &outbox.Event{
			Type:          outbox.EventMatchRemoved,
			LineID:        locked.ID,
			MatchID:       &matchID,
			RecordID:      &m.RecordID,
			MatchedAmount: &m.MatchedAmount,
			LineStatus:    locked.Status,
			Actor:         actor,
			OccurredAt:    locked.UpdatedAt,
		}); err != nil {
			return err
		}

		line = locked
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("match removed",
		"line_id", lineID.String(),
		"match_id", matchID.String(),
		"line_status", string(line.Status),
	)
	return line, nil
}

// IgnoreLine excludes a bank line from reconciliation without touching its
// match state
func (l *MatchLedger) IgnoreLine(ctx context.Context, lineID uuid.UUID, actor, reason string) (*bankfeed.Line, error) {
	return l.updateLine(ctx, lineID, outbox.EventLineIgnored, actor, func(line *bankfeed.Line) error {
		return line.Ignore(actor, reason)
	})
}

// UnignoreLine restores the status implied by the line's match state
func (l *MatchLedger) UnignoreLine(ctx context.Context, lineID uuid.UUID, actor string) (*bankfeed.Line, error) {
	return l.updateLine(ctx, lineID, outbox.EventLineUnignored, actor, func(line *bankfeed.Line) error {
		return line.Unignore()
	})
}

// MarkMissingRecord flags a line for which no candidate cleared the
// suggestion floor. Used by the auto-matcher only.
func (l *MatchLedger) MarkMissingRecord(ctx context.Context, lineID uuid.UUID) (*bankfeed.Line, error) {
	var line *bankfeed.Line

	err := l.txManager.ExecuteTx(ctx, func(tx pgx.Tx) error {
		lineRepoTx := l.lineRepo.WithTx(tx)

		locked, err := lineRepoTx.LockForUpdate(ctx, lineID)
		if err != nil {
			return err
		}
		if err := locked.MarkMissingRecord(); err != nil {
			return err
		}
		if err := lineRepoTx.Update(ctx, locked); err != nil {
			return err
		}

		line = locked
		return nil
	})
	if err != nil {
		return nil, err
	}
	return line, nil
}

// updateLine applies a status mutation to a locked line and records the
// corresponding lifecycle event
func (l *MatchLedger) updateLine(ctx context.Context, lineID uuid.UUID, eventType outbox.EventType, actor string, mutate func(*bankfeed.Line) error) (*bankfeed.Line, error) {
	var line *bankfeed.Line

	err := l.txManager.ExecuteTx(ctx, func(tx pgx.Tx) error {
		lineRepoTx := l.lineRepo.WithTx(tx)

		locked, err := lineRepoTx.LockForUpdate(ctx, lineID)
		if err != nil {
			return err
		}
		if err := mutate(locked); err != nil {
			return err
		}
		if err := lineRepoTx.Update(ctx, locked); err != nil {
			return err
		}

		if err := l.recordEvent(ctx, tx, &outbox.Event{
			Type:       eventType,
			LineID:     locked.ID,
			LineStatus: locked.Status,
			Actor:      actor,
			OccurredAt: locked.UpdatedAt,
		}); err != nil {
			return err
		}

		line = locked
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("bank line updated",
		"line_id", lineID.String(),
		"event", string(eventType),
		"line_status", string(line.Status),
	)
	return line, nil
}

// recordEvent writes the lifecycle event to the outbox inside the same
// transaction as the change it describes
func (l *MatchLedger) recordEvent(ctx context.Context, tx pgx.Tx, event *outbox.Event) error {
	message, err := outbox.NewMessage(event)
	if err != nil {
		return fmt.Errorf("failed to build outbox message: %w", err)
	}
	return l.outboxRepo.WithTx(tx).Create(ctx, message)
}
