package reports

import (
	"context"
	"time"
)

// AgingSource supplies outstanding document balances for aging schedules.
// AR and AP both satisfy it.
type AgingSource interface {
	OpenItems(ctx context.Context, companyID int64, asOf time.Time) ([]OpenItem, error)
}

// Service derives financial reports from posted ledger state. It holds no
// mutable state of its own; every report is a pure view over the repository
// aggregates, optionally memoised in the versioned cache.
type Service struct {
	repo        RepositoryPort
	receivables AgingSource
	payables    AgingSource
	cache       *Cache
}

// NewService constructs the report generator.
func NewService(repo RepositoryPort, receivables, payables AgingSource, cache *Cache) *Service {
	return &Service{repo: repo, receivables: receivables, payables: payables, cache: cache}
}

// TrialBalance lists every account's balance on its natural side as of the
// date. An empty ledger yields an empty, balanced report, not an error.
func (s *Service) TrialBalance(ctx context.Context, companyID int64, asOf time.Time) (TrialBalance, error) {
	var tb TrialBalance
	err := s.cached(ctx, keyReport("tb", companyID, asOf.Format("2006-01-02")), &tb, func(ctx context.Context) (interface{}, error) {
		activity, err := s.repo.AccountActivity(ctx, companyID, nil, &asOf)
		if err != nil {
			return nil, err
		}
		return BuildTrialBalance(activity, asOf), nil
	})
	return tb, err
}

// BalanceSheet partitions closing balances into assets, liabilities, and
// equity as of the date.
func (s *Service) BalanceSheet(ctx context.Context, companyID int64, asOf time.Time) (BalanceSheet, error) {
	var bs BalanceSheet
	err := s.cached(ctx, keyReport("bs", companyID, asOf.Format("2006-01-02")), &bs, func(ctx context.Context) (interface{}, error) {
		activity, err := s.repo.AccountActivity(ctx, companyID, nil, &asOf)
		if err != nil {
			return nil, err
		}
		return BuildBalanceSheet(activity, asOf), nil
	})
	return bs, err
}

// ProfitAndLoss sums revenue and expense movement inside the range.
func (s *Service) ProfitAndLoss(ctx context.Context, companyID int64, from, to time.Time) (ProfitAndLoss, error) {
	var pl ProfitAndLoss
	err := s.cached(ctx, keyReport("pl", companyID, from.Format("2006-01-02"), to.Format("2006-01-02")), &pl, func(ctx context.Context) (interface{}, error) {
		activity, err := s.repo.AccountActivity(ctx, companyID, &from, &to)
		if err != nil {
			return nil, err
		}
		return BuildProfitAndLoss(activity, from, to), nil
	})
	return pl, err
}

// ReceivablesAging buckets outstanding customer invoices by days overdue.
func (s *Service) ReceivablesAging(ctx context.Context, companyID int64, asOf time.Time) (AgingSchedule, error) {
	return s.aging(ctx, s.receivables, "aging_ar", companyID, asOf)
}

// PayablesAging buckets outstanding supplier bills by days overdue.
func (s *Service) PayablesAging(ctx context.Context, companyID int64, asOf time.Time) (AgingSchedule, error) {
	return s.aging(ctx, s.payables, "aging_ap", companyID, asOf)
}

func (s *Service) aging(ctx context.Context, source AgingSource, name string, companyID int64, asOf time.Time) (AgingSchedule, error) {
	if source == nil {
		return AgingSchedule{AsOf: asOf}, nil
	}
	var schedule AgingSchedule
	err := s.cached(ctx, keyReport(name, companyID, asOf.Format("2006-01-02")), &schedule, func(ctx context.Context) (interface{}, error) {
		items, err := source.OpenItems(ctx, companyID, asOf)
		if err != nil {
			return nil, err
		}
		return BuildAging(items, asOf), nil
	})
	return schedule, err
}

// cached works with a nil cache too; the Cache methods degrade to calling
// the loader directly.
func (s *Service) cached(ctx context.Context, keyParts []string, dest interface{}, loader func(context.Context) (interface{}, error)) error {
	key, err := s.cache.BuildKey(ctx, keyParts...)
	if err != nil {
		return err
	}
	return s.cache.FetchJSON(ctx, key, dest, loader)
}
