package service

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"github.com/finrecon/bank-reconciliation/internal/domain/bankfeed"
	"github.com/finrecon/bank-reconciliation/internal/domain/record"
	"github.com/finrecon/bank-reconciliation/internal/domain/rules"
	"github.com/finrecon/bank-reconciliation/internal/domain/runs"
	"github.com/finrecon/bank-reconciliation/internal/matching"
)

// DefaultAutoMatchActor is recorded as the matcher when no actor is supplied
const DefaultAutoMatchActor = "auto-matcher"

// Matcher runs one auto-match batch over a candidate pool
type Matcher interface {
	RunBatch(ctx context.Context, lines []*bankfeed.Line, candidates []record.SystemRecord, rs rules.RuleSet, actor string) *matching.BatchResult
}

// AutoMatchServiceImpl implements the AutoMatchService interface. Batches are
// partitioned by currency and the partitions run concurrently on a shared
// worker pool; candidate records are only meaningful within one currency, so
// partitions never compete for the same record.
type AutoMatchServiceImpl struct {
	lineRepo       bankfeed.Repository
	recordProvider record.Provider
	ruleRepo       rules.Repository
	runRepo        runs.Repository
	matcher        Matcher
	pool           *ants.Pool
	logger         *slog.Logger
}

// NewAutoMatchService creates a new auto-match service on the given worker pool
func NewAutoMatchService(
	logger *slog.Logger,
	lineRepo bankfeed.Repository,
	recordProvider record.Provider,
	ruleRepo rules.Repository,
	runRepo runs.Repository,
	matcher Matcher,
	pool *ants.Pool,
) AutoMatchService {
	return &AutoMatchServiceImpl{
		lineRepo:       lineRepo,
		recordProvider: recordProvider,
		ruleRepo:       ruleRepo,
		runRepo:        runRepo,
		matcher:        matcher,
		pool:           pool,
		logger:         logger,
	}
}

// Run executes one auto-match batch over the scope and records the run
func (s *AutoMatchServiceImpl) Run(ctx context.Context, scope RunScope) (*runs.Run, error) {
	started := time.Now()

	actor := scope.Actor
	if actor == "" {
		actor = DefaultAutoMatchActor
	}

	ruleSet, err := s.ruleRepo.Get(ctx)
	if err != nil {
		return nil, err
	}

	lines, err := s.lineRepo.List(ctx, bankfeed.Scope{
		CompanyID: scope.CompanyID,
		AccountID: scope.AccountID,
		Currency:  scope.Currency,
		DateFrom:  scope.DateFrom,
		DateTo:    scope.DateTo,
		Statuses:  []bankfeed.Status{bankfeed.StatusUnmatched, bankfeed.StatusMissingRecord},
	})
	if err != nil {
		return nil, err
	}

	candidates, err := s.recordProvider.ListUnreconciled(ctx, record.Filter{
		CompanyID: scope.CompanyID,
		Currency:  scope.Currency,
	})
	if err != nil {
		return nil, err
	}

	linesByCurrency := make(map[string][]*bankfeed.Line)
	for _, line := range lines {
		linesByCurrency[line.Currency] = append(linesByCurrency[line.Currency], line)
	}
	candidatesByCurrency := make(map[string][]record.SystemRecord)
	for _, cand := range candidates {
		candidatesByCurrency[cand.Currency] = append(candidatesByCurrency[cand.Currency], cand)
	}

	// Stable partition order keeps run reports deterministic
	currencies := make([]string, 0, len(linesByCurrency))
	for currency := range linesByCurrency {
		currencies = append(currencies, currency)
	}
	sort.Strings(currencies)

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results []*matching.BatchResult
	)

	for _, currency := range currencies {
		partition := linesByCurrency[currency]
		pool := candidatesByCurrency[currency]

		wg.Add(1)
		task := func() {
			defer wg.Done()
			result := s.matcher.RunBatch(ctx, partition, pool, ruleSet, actor)
			mu.Lock()
			results = append(results, result)
			mu.Unlock()
		}
		if err := s.pool.Submit(task); err != nil {
			// Pool saturated or released; run the partition inline rather
			// than dropping it.
			s.logger.Warn("Worker pool submit failed, running partition inline",
				"currency", currency,
				"error", err,
			)
			task()
		}
	}
	wg.Wait()

	run := s.buildRun(scope, actor, len(currencies), len(lines), results, started)
	if err := s.runRepo.Create(ctx, run); err != nil {
		return nil, err
	}

	s.logger.Info("Auto-match run completed",
		"run_id", run.ID.String(),
		"company_id", scope.CompanyID.String(),
		"partitions", run.Partitions,
		"lines_processed", run.LinesProcessed,
		"matched", run.MatchedCount,
		"suggested", run.SuggestedCount,
		"missing_record", run.MissingRecordCount,
		"failed", run.FailedCount,
		"duration", time.Since(started).String(),
	)
	return run, nil
}

// buildRun aggregates the partition results into one run report
func (s *AutoMatchServiceImpl) buildRun(scope RunScope, actor string, partitions, linesProcessed int, results []*matching.BatchResult, started time.Time) *runs.Run {
	run := &runs.Run{
		ID:             uuid.New(),
		CompanyID:      scope.CompanyID,
		Currency:       scope.Currency,
		Actor:          actor,
		Partitions:     partitions,
		LinesProcessed: linesProcessed,
		StartedAt:      started,
		FinishedAt:     time.Now(),
	}
	if scope.AccountID != uuid.Nil {
		accountID := scope.AccountID
		run.AccountID = &accountID
	}

	for _, result := range results {
		run.MatchedCount += len(result.Matches)
		run.SuggestedCount += len(result.Suggestions)
		run.MissingRecordCount += len(result.MissingRecords)
		run.FailedCount += len(result.Failures)
		for _, failure := range result.Failures {
			run.Failures = append(run.Failures, runs.Failure{
				LineID: failure.LineID,
				Reason: failure.Err.Error(),
			})
		}
	}
	return run
}

// GetRun retrieves a recorded run by its ID
func (s *AutoMatchServiceImpl) GetRun(ctx context.Context, id uuid.UUID) (*runs.Run, error) {
	return s.runRepo.GetByID(ctx, id)
}

// ListRuns retrieves a paginated run history, newest first
func (s *AutoMatchServiceImpl) ListRuns(ctx context.Context, page, perPage int) ([]*runs.Run, int64, error) {
	offset := (page - 1) * perPage

	history, err := s.runRepo.List(ctx, perPage, offset)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.runRepo.Count(ctx)
	if err != nil {
		return nil, 0, err
	}

	return history, total, nil
}
