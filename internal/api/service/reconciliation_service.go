package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/finrecon/bank-reconciliation/internal/domain/bankfeed"
	"github.com/finrecon/bank-reconciliation/internal/domain/match"
	"github.com/finrecon/bank-reconciliation/internal/domain/record"
	"github.com/finrecon/bank-reconciliation/internal/domain/rules"
	"github.com/finrecon/bank-reconciliation/internal/matching"
)

// ErrCurrencyMismatch indicates a match attempt across currencies
var ErrCurrencyMismatch = errors.New("record currency does not match bank line currency")

// MatchLedger is the subset of match ledger operations this service drives
type MatchLedger interface {
	CreateMatch(ctx context.Context, lineID uuid.UUID, input match.CreateInput) (*match.Match, *bankfeed.Line, error)
	RemoveMatch(ctx context.Context, lineID, matchID uuid.UUID, actor string) (*bankfeed.Line, error)
	IgnoreLine(ctx context.Context, lineID uuid.UUID, actor, reason string) (*bankfeed.Line, error)
	UnignoreLine(ctx context.Context, lineID uuid.UUID, actor string) (*bankfeed.Line, error)
}

// ReconciliationServiceImpl implements the ReconciliationService interface
type ReconciliationServiceImpl struct {
	lineRepo       bankfeed.Repository
	matchRepo      match.Repository
	recordProvider record.Provider
	ruleRepo       rules.Repository
	ledger         MatchLedger
	logger         *slog.Logger
}

// NewReconciliationService creates a new reconciliation service
func NewReconciliationService(
	logger *slog.Logger,
	lineRepo bankfeed.Repository,
	matchRepo match.Repository,
	recordProvider record.Provider,
	ruleRepo rules.Repository,
	ledger MatchLedger,
) ReconciliationService {
	return &ReconciliationServiceImpl{
		lineRepo:       lineRepo,
		matchRepo:      matchRepo,
		recordProvider: recordProvider,
		ruleRepo:       ruleRepo,
		ledger:         ledger,
		logger:         logger,
	}
}

// GetLine retrieves a bank feed line by its ID
func (s *ReconciliationServiceImpl) GetLine(ctx context.Context, lineID uuid.UUID) (*bankfeed.Line, error) {
	return s.lineRepo.GetByID(ctx, lineID)
}

// GenerateSuggestions scores unreconciled candidates in the line's company
// and currency and returns them ranked and bounded by the active rule set
func (s *ReconciliationServiceImpl) GenerateSuggestions(ctx context.Context, lineID uuid.UUID) (*bankfeed.Line, []matching.SuggestedMatch, error) {
	line, err := s.lineRepo.GetByID(ctx, lineID)
	if err != nil {
		return nil, nil, err
	}

	ruleSet, err := s.ruleRepo.Get(ctx)
	if err != nil {
		return nil, nil, err
	}

	candidates, err := s.recordProvider.ListUnreconciled(ctx, record.Filter{
		CompanyID: line.CompanyID,
		Currency:  line.Currency,
	})
	if err != nil {
		return nil, nil, err
	}

	suggestions := matching.GenerateSuggestions(line, candidates, ruleSet)

	s.logger.Info("Generated suggestions for bank line",
		"line_id", lineID.String(),
		"candidates", len(candidates),
		"suggestions", len(suggestions),
	)
	return line, suggestions, nil
}

// CreateMatch validates the target record and records the match through the
// ledger. The method defaults to MANUAL when unset.
func (s *ReconciliationServiceImpl) CreateMatch(ctx context.Context, lineID uuid.UUID, input match.CreateInput) (*match.Match, *bankfeed.Line, error) {
	line, err := s.lineRepo.GetByID(ctx, lineID)
	if err != nil {
		return nil, nil, err
	}

	rec, err := s.recordProvider.GetByID(ctx, input.RecordType, input.RecordID)
	if err != nil {
		return nil, nil, err
	}
	if rec.Currency != line.Currency {
		return nil, nil, ErrCurrencyMismatch
	}

	if input.Method == "" {
		input.Method = match.MethodManual
	}
	if input.ProjectID == nil {
		input.ProjectID = rec.ProjectID
	}

	return s.ledger.CreateMatch(ctx, lineID, input)
}

// RemoveMatch deletes a match and reverts its amount from the line
func (s *ReconciliationServiceImpl) RemoveMatch(ctx context.Context, lineID, matchID uuid.UUID, actor string) (*bankfeed.Line, error) {
	return s.ledger.RemoveMatch(ctx, lineID, matchID, actor)
}

// ListMatches retrieves all matches recorded against the line
func (s *ReconciliationServiceImpl) ListMatches(ctx context.Context, lineID uuid.UUID) ([]*match.Match, error) {
	if _, err := s.lineRepo.GetByID(ctx, lineID); err != nil {
		return nil, err
	}
	return s.matchRepo.ListByLineID(ctx, lineID)
}

// IgnoreLine excludes the line from reconciliation
func (s *ReconciliationServiceImpl) IgnoreLine(ctx context.Context, lineID uuid.UUID, actor, reason string) (*bankfeed.Line, error) {
	return s.ledger.IgnoreLine(ctx, lineID, actor, reason)
}

// UnignoreLine restores the status implied by the line's match state
func (s *ReconciliationServiceImpl) UnignoreLine(ctx context.Context, lineID uuid.UUID, actor string) (*bankfeed.Line, error) {
	return s.ledger.UnignoreLine(ctx, lineID, actor)
}

// GetStats aggregates reconciliation statistics over the scoped lines
func (s *ReconciliationServiceImpl) GetStats(ctx context.Context, scope bankfeed.Scope) (matching.Stats, error) {
	lines, err := s.lineRepo.List(ctx, scope)
	if err != nil {
		return matching.Stats{}, err
	}
	return matching.ComputeStats(lines), nil
}
