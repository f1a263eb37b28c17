package matching

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finrecon/bank-reconciliation/internal/domain/bankfeed"
	"github.com/finrecon/bank-reconciliation/internal/domain/match"
	"github.com/finrecon/bank-reconciliation/internal/domain/outbox"
	"github.com/finrecon/bank-reconciliation/internal/domain/record"
)

// fakeTxManager runs the transactional function directly; the fake
// repositories emulate rollback by handing out copies on lock.
type fakeTxManager struct{}

func (fakeTxManager) ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return fn(nil)
}

type fakeLineRepo struct {
	lines map[uuid.UUID]*bankfeed.Line
}

func newFakeLineRepo(lines ...*bankfeed.Line) *fakeLineRepo {
	repo := &fakeLineRepo{lines: make(map[uuid.UUID]*bankfeed.Line)}
	for _, line := range lines {
		repo.lines[line.ID] = line
	}
	return repo
}

func cloneLine(line *bankfeed.Line) *bankfeed.Line {
	clone := *line
	return &clone
}

func (r *fakeLineRepo) Create(ctx context.Context, line *bankfeed.Line) error {
	r.lines[line.ID] = cloneLine(line)
	return nil
}

func (r *fakeLineRepo) GetByID(ctx context.Context, id uuid.UUID) (*bankfeed.Line, error) {
	line, ok := r.lines[id]
	if !ok {
		return nil, bankfeed.ErrLineNotFound{LineID: id}
	}
	return cloneLine(line), nil
}

func (r *fakeLineRepo) List(ctx context.Context, scope bankfeed.Scope) ([]*bankfeed.Line, error) {
	lines := make([]*bankfeed.Line, 0, len(r.lines))
	for _, line := range r.lines {
		lines = append(lines, cloneLine(line))
	}
	return lines, nil
}

func (r *fakeLineRepo) Update(ctx context.Context, line *bankfeed.Line) error {
	if _, ok := r.lines[line.ID]; !ok {
		return bankfeed.ErrLineNotFound{LineID: line.ID}
	}
	r.lines[line.ID] = cloneLine(line)
	return nil
}

func (r *fakeLineRepo) LockForUpdate(ctx context.Context, id uuid.UUID) (*bankfeed.Line, error) {
	return r.GetByID(ctx, id)
}

func (r *fakeLineRepo) WithTx(tx pgx.Tx) bankfeed.Repository { return r }

type fakeMatchRepo struct {
	matches map[uuid.UUID]*match.Match
}

func newFakeMatchRepo() *fakeMatchRepo {
	return &fakeMatchRepo{matches: make(map[uuid.UUID]*match.Match)}
}

func (r *fakeMatchRepo) Create(ctx context.Context, m *match.Match) error {
	r.matches[m.ID] = m
	return nil
}

func (r *fakeMatchRepo) GetByID(ctx context.Context, id uuid.UUID) (*match.Match, error) {
	m, ok := r.matches[id]
	if !ok {
		return nil, match.ErrMatchNotFound{MatchID: id}
	}
	return m, nil
}

func (r *fakeMatchRepo) ListByLineID(ctx context.Context, lineID uuid.UUID) ([]*match.Match, error) {
	var matches []*match.Match
	for _, m := range r.matches {
		if m.LineID == lineID {
			matches = append(matches, m)
		}
	}
	return matches, nil
}

func (r *fakeMatchRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := r.matches[id]; !ok {
		return match.ErrMatchNotFound{MatchID: id}
	}
	delete(r.matches, id)
	return nil
}

func (r *fakeMatchRepo) WithTx(tx pgx.Tx) match.Repository { return r }

type fakeOutboxRepo struct {
	messages []*outbox.Message
}

func (r *fakeOutboxRepo) Create(ctx context.Context, message *outbox.Message) error {
	message.ID = int64(len(r.messages) + 1)
	r.messages = append(r.messages, message)
	return nil
}

func (r *fakeOutboxRepo) GetPending(ctx context.Context, limit int) ([]*outbox.Message, error) {
	return nil, nil
}

func (r *fakeOutboxRepo) UpdateStatus(ctx context.Context, id int64, status outbox.Status) error {
	return nil
}

func (r *fakeOutboxRepo) IncrementAttempts(ctx context.Context, id int64) error { return nil }

func (r *fakeOutboxRepo) Delete(ctx context.Context, id int64) error { return nil }

func (r *fakeOutboxRepo) WithTx(tx pgx.Tx) outbox.Repository { return r }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type ledgerFixture struct {
	ledger    *MatchLedger
	lineRepo  *fakeLineRepo
	matchRepo *fakeMatchRepo
	outbox    *fakeOutboxRepo
}

func newLedgerFixture(lines ...*bankfeed.Line) *ledgerFixture {
	lineRepo := newFakeLineRepo(lines...)
	matchRepo := newFakeMatchRepo()
	outboxRepo := &fakeOutboxRepo{}

	return &ledgerFixture{
		ledger:    NewMatchLedger(fakeTxManager{}, lineRepo, matchRepo, outboxRepo, discardLogger()),
		lineRepo:  lineRepo,
		matchRepo: matchRepo,
		outbox:    outboxRepo,
	}
}

func createInput(amount string) match.CreateInput {
	return match.CreateInput{
		RecordType:    record.TypeInvoice,
		RecordID:      uuid.New(),
		MatchedAmount: decimal.RequireFromString(amount),
		MatchedBy:     "alice",
		Method:        match.MethodManual,
	}
}

func TestMatchLedger_CreateMatch_FullMatch(t *testing.T) {
	ctx := context.Background()
	line := testLine("1000.00", "EUR", "INV-1", time.Now())
	f := newLedgerFixture(line)

	created, updated, err := f.ledger.CreateMatch(ctx, line.ID, createInput("1000.00"))
	require.NoError(t, err)

	assert.Equal(t, bankfeed.StatusMatched, updated.Status)
	assert.True(t, updated.MatchedAmount.Equal(decimal.RequireFromString("1000.00")))
	assert.Equal(t, line.ID, created.LineID)
	assert.False(t, created.AdjustmentRequired)

	stored, err := f.matchRepo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, stored)

	require.Len(t, f.outbox.messages, 1)
	event, err := f.outbox.messages[0].GetEvent()
	require.NoError(t, err)
	assert.Equal(t, outbox.EventMatchCreated, event.Type)
	assert.Equal(t, bankfeed.StatusMatched, event.LineStatus)
	assert.Equal(t, "alice", event.Actor)
}

func TestMatchLedger_CreateMatch_PartialMatchNeedsReview(t *testing.T) {
	ctx := context.Background()
	line := testLine("1000.00", "EUR", "", time.Now())
	f := newLedgerFixture(line)

	created, updated, err := f.ledger.CreateMatch(ctx, line.ID, createInput("400.00"))
	require.NoError(t, err)

	assert.Equal(t, bankfeed.StatusNeedsReview, updated.Status)
	assert.True(t, created.AdjustmentRequired)
	assert.True(t, created.AmountDifference.Equal(decimal.RequireFromString("600.00")))
}

func TestMatchLedger_CreateMatch_RejectsNonPositiveAmount(t *testing.T) {
	ctx := context.Background()
	line := testLine("1000.00", "EUR", "", time.Now())
	f := newLedgerFixture(line)

	_, _, err := f.ledger.CreateMatch(ctx, line.ID, createInput("0"))
	assert.ErrorIs(t, err, bankfeed.ErrInvalidMatchedAmount)
	assert.Empty(t, f.outbox.messages)
	assert.Empty(t, f.matchRepo.matches)
}

func TestMatchLedger_CreateMatch_RejectsIgnoredLine(t *testing.T) {
	ctx := context.Background()
	line := testLine("1000.00", "EUR", "", time.Now())
	require.NoError(t, line.Ignore("bob", "duplicate"))
	f := newLedgerFixture(line)

	_, _, err := f.ledger.CreateMatch(ctx, line.ID, createInput("1000.00"))
	assert.ErrorIs(t, err, bankfeed.ErrLineIgnored)

	stored, err := f.lineRepo.GetByID(ctx, line.ID)
	require.NoError(t, err)
	assert.Equal(t, bankfeed.StatusIgnored, stored.Status)
	assert.True(t, stored.MatchedAmount.IsZero())
}

func TestMatchLedger_CreateMatch_EnforcesConservation(t *testing.T) {
	ctx := context.Background()
	line := testLine("1000.00", "EUR", "", time.Now())
	f := newLedgerFixture(line)

	_, _, err := f.ledger.CreateMatch(ctx, line.ID, createInput("800.00"))
	require.NoError(t, err)

	_, _, err = f.ledger.CreateMatch(ctx, line.ID, createInput("300.00"))
	assert.ErrorIs(t, err, bankfeed.ErrAmountConservation)

	stored, err := f.lineRepo.GetByID(ctx, line.ID)
	require.NoError(t, err)
	assert.True(t, stored.MatchedAmount.Equal(decimal.RequireFromString("800.00")))
	assert.Equal(t, bankfeed.StatusNeedsReview, stored.Status)
	assert.Len(t, f.outbox.messages, 1)
	assert.Len(t, f.matchRepo.matches, 1)
}

func TestMatchLedger_CreateMatch_LineNotFound(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture()

	_, _, err := f.ledger.CreateMatch(ctx, uuid.New(), createInput("10.00"))
	assert.ErrorIs(t, err, bankfeed.ErrLineNotFound{})
}

func TestMatchLedger_RemoveMatch_RoundTripRestoresLine(t *testing.T) {
	ctx := context.Background()
	line := testLine("1000.00", "EUR", "", time.Now())
	f := newLedgerFixture(line)

	created, _, err := f.ledger.CreateMatch(ctx, line.ID, createInput("1000.00"))
	require.NoError(t, err)

	reverted, err := f.ledger.RemoveMatch(ctx, line.ID, created.ID, "alice")
	require.NoError(t, err)

	assert.Equal(t, bankfeed.StatusUnmatched, reverted.Status)
	assert.True(t, reverted.MatchedAmount.IsZero())
	assert.Empty(t, f.matchRepo.matches)

	require.Len(t, f.outbox.messages, 2)
	event, err := f.outbox.messages[1].GetEvent()
	require.NoError(t, err)
	assert.Equal(t, outbox.EventMatchRemoved, event.Type)
	assert.Equal(t, bankfeed.StatusUnmatched, event.LineStatus)
}

func TestMatchLedger_RemoveMatch_WrongLine(t *testing.T) {
	ctx := context.Background()
	lineA := testLine("1000.00", "EUR", "", time.Now())
	lineB := testLine("500.00", "EUR", "", time.Now())
	f := newLedgerFixture(lineA, lineB)

	created, _, err := f.ledger.CreateMatch(ctx, lineA.ID, createInput("1000.00"))
	require.NoError(t, err)

	// The match belongs to lineA; removing it via lineB must not succeed.
	_, err = f.ledger.RemoveMatch(ctx, lineB.ID, created.ID, "alice")
	assert.ErrorIs(t, err, match.ErrMatchNotFound{})
	assert.Len(t, f.matchRepo.matches, 1)
}

func TestMatchLedger_IgnoreAndUnignore(t *testing.T) {
	ctx := context.Background()
	line := testLine("1000.00", "EUR", "", time.Now())
	f := newLedgerFixture(line)

	// Partial match first, so unignore must restore NEEDS_REVIEW.
	_, _, err := f.ledger.CreateMatch(ctx, line.ID, createInput("400.00"))
	require.NoError(t, err)

	ignored, err := f.ledger.IgnoreLine(ctx, line.ID, "bob", "bank fee")
	require.NoError(t, err)
	assert.Equal(t, bankfeed.StatusIgnored, ignored.Status)
	assert.Equal(t, "bob", ignored.IgnoredBy)

	restored, err := f.ledger.UnignoreLine(ctx, line.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, bankfeed.StatusNeedsReview, restored.Status)
	assert.Empty(t, restored.IgnoredBy)

	require.Len(t, f.outbox.messages, 3)
	assert.Equal(t, outbox.EventLineIgnored, f.outbox.messages[1].EventType)
	assert.Equal(t, outbox.EventLineUnignored, f.outbox.messages[2].EventType)
}

func TestMatchLedger_UnignoreNotIgnored(t *testing.T) {
	ctx := context.Background()
	line := testLine("1000.00", "EUR", "", time.Now())
	f := newLedgerFixture(line)

	_, err := f.ledger.UnignoreLine(ctx, line.ID, "bob")
	assert.ErrorIs(t, err, bankfeed.ErrLineNotIgnored)
}

func TestMatchLedger_MarkMissingRecord(t *testing.T) {
	ctx := context.Background()
	line := testLine("1000.00", "EUR", "", time.Now())
	f := newLedgerFixture(line)

	updated, err := f.ledger.MarkMissingRecord(ctx, line.ID)
	require.NoError(t, err)
	assert.Equal(t, bankfeed.StatusMissingRecord, updated.Status)

	// Flagging writes no lifecycle event.
	assert.Empty(t, f.outbox.messages)
}

func TestMatchLedger_MarkMissingRecord_RejectsMatchedState(t *testing.T) {
	ctx := context.Background()
	line := testLine("1000.00", "EUR", "", time.Now())
	f := newLedgerFixture(line)

	_, _, err := f.ledger.CreateMatch(ctx, line.ID, createInput("400.00"))
	require.NoError(t, err)

	_, err = f.ledger.MarkMissingRecord(ctx, line.ID)
	assert.Error(t, err)

	stored, err := f.lineRepo.GetByID(ctx, line.ID)
	require.NoError(t, err)
	assert.Equal(t, bankfeed.StatusNeedsReview, stored.Status)
}
