package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/ledgerline/ledgerline/internal/ledger"
	"github.com/ledgerline/ledgerline/internal/reports"
)

const sweepConcurrency = 4

// LedgerAuditor is the slice of the ledger service the integrity sweep uses.
type LedgerAuditor interface {
	ListAccounts(ctx context.Context, companyID int64) ([]ledger.Account, error)
	Reconcile(ctx context.Context, companyID, accountID int64) (ledger.ReconcileResult, error)
}

// ReportSource builds the trial balance diagnostic.
type ReportSource interface {
	TrialBalance(ctx context.Context, companyID int64, asOf time.Time) (reports.TrialBalance, error)
}

// CompanySource lists companies to sweep.
type CompanySource interface {
	CompanyIDs(ctx context.Context) ([]int64, error)
}

// IntegrityChecker verifies, per company, that the trial balance still
// balances and that each cached account balance matches a replay of its
// posted lines. Findings are logged, never repaired automatically.
type IntegrityChecker struct {
	logger    *slog.Logger
	ledger    LedgerAuditor
	reports   ReportSource
	companies CompanySource
}

// NewIntegrityChecker builds the checker.
func NewIntegrityChecker(logger *slog.Logger, auditor LedgerAuditor, source ReportSource, companies CompanySource) *IntegrityChecker {
	return &IntegrityChecker{logger: logger, ledger: auditor, reports: source, companies: companies}
}

// Handle processes TaskTypeLedgerIntegrity tasks.
func (c *IntegrityChecker) Handle(ctx context.Context, t *asynq.Task) error {
	var payload LedgerIntegrityPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	ids := []int64{payload.CompanyID}
	if payload.CompanyID == 0 {
		var err error
		if ids, err = c.companies.CompanyIDs(ctx); err != nil {
			return err
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(sweepConcurrency)
	for _, companyID := range ids {
		g.Go(func() error {
			return c.checkCompany(ctx, companyID)
		})
	}
	return g.Wait()
}

func (c *IntegrityChecker) checkCompany(ctx context.Context, companyID int64) error {
	tb, err := c.reports.TrialBalance(ctx, companyID, time.Now())
	if err != nil {
		return err
	}
	if !tb.Balanced {
		c.logger.Error("trial balance out of balance",
			slog.Int64("company_id", companyID),
			slog.String("total_debit", tb.TotalDebit.String()),
			slog.String("total_credit", tb.TotalCredit.String()))
	}

	accounts, err := c.ledger.ListAccounts(ctx, companyID)
	if err != nil {
		return err
	}
	drifted := 0
	for _, account := range accounts {
		result, err := c.ledger.Reconcile(ctx, companyID, account.ID)
		if err != nil {
			return err
		}
		if !result.InSync {
			drifted++
			c.logger.Error("account balance drift",
				slog.Int64("company_id", companyID),
				slog.Int64("account_id", account.ID),
				slog.String("code", account.Code),
				slog.String("cached", result.Cached.String()),
				slog.String("computed", result.Computed.String()),
				slog.String("drift", result.Drift.String()))
		}
	}

	c.logger.Info("ledger integrity sweep finished",
		slog.Int64("company_id", companyID),
		slog.Int("accounts", len(accounts)),
		slog.Int("drifted", drifted),
		slog.Bool("trial_balance_ok", tb.Balanced))
	return nil
}
