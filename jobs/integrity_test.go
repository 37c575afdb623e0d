package jobs

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/ledgerline/internal/ledger"
	"github.com/ledgerline/ledgerline/internal/reports"
)

type fakeSources struct {
	mu      sync.Mutex
	ids     []int64
	checked []int64
}

func (f *fakeSources) CompanyIDs(ctx context.Context) ([]int64, error) {
	return f.ids, nil
}

func (f *fakeSources) TrialBalance(ctx context.Context, companyID int64, asOf time.Time) (reports.TrialBalance, error) {
	f.mu.Lock()
	f.checked = append(f.checked, companyID)
	f.mu.Unlock()
	return reports.TrialBalance{AsOf: asOf, Balanced: true}, nil
}

func (f *fakeSources) ListAccounts(ctx context.Context, companyID int64) ([]ledger.Account, error) {
	return []ledger.Account{{ID: 1, CompanyID: companyID, Code: "1000"}}, nil
}

func (f *fakeSources) Reconcile(ctx context.Context, companyID, accountID int64) (ledger.ReconcileResult, error) {
	return ledger.ReconcileResult{
		AccountID: accountID,
		Cached:    decimal.Zero,
		Computed:  decimal.Zero,
		Drift:     decimal.Zero,
		InSync:    true,
	}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestIntegrityHandleSweepsAllCompanies(t *testing.T) {
	sources := &fakeSources{ids: []int64{1, 2, 3}}
	checker := NewIntegrityChecker(discardLogger(), sources, sources, sources)

	task, err := NewLedgerIntegrityTask(LedgerIntegrityPayload{})
	require.NoError(t, err)
	require.NoError(t, checker.Handle(context.Background(), task))
	require.ElementsMatch(t, []int64{1, 2, 3}, sources.checked)
}

func TestIntegrityHandleSingleCompany(t *testing.T) {
	sources := &fakeSources{ids: []int64{1, 2, 3}}
	checker := NewIntegrityChecker(discardLogger(), sources, sources, sources)

	task, err := NewLedgerIntegrityTask(LedgerIntegrityPayload{CompanyID: 2})
	require.NoError(t, err)
	require.NoError(t, checker.Handle(context.Background(), task))
	require.Equal(t, []int64{2}, sources.checked)
}

func TestIntegrityHandleRejectsBadPayload(t *testing.T) {
	sources := &fakeSources{}
	checker := NewIntegrityChecker(discardLogger(), sources, sources, sources)

	err := checker.Handle(context.Background(), asynq.NewTask(TaskTypeLedgerIntegrity, []byte("{not json")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}
