package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func mustPost(t *testing.T, svc *Service, companyID, debitAcc, creditAcc int64, amount string, date time.Time) JournalEntry {
	t.Helper()
	entry, err := svc.CreateDraft(context.Background(), DraftInput{
		CompanyID: companyID,
		Date:      date,
		Lines: []LineInput{
			{AccountID: debitAcc, Debit: d(amount)},
			{AccountID: creditAcc, Credit: d(amount)},
		},
	})
	require.NoError(t, err)
	posted, err := svc.Post(context.Background(), companyID, entry.ID, 7)
	require.NoError(t, err)
	return posted
}

func day(dd int) time.Time {
	return time.Date(2026, 3, dd, 0, 0, 0, 0, time.UTC)
}

func TestGetAccountLedgerRunningBalances(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	cash := repo.addAccount(1, "1000", AccountTypeAsset)
	revenue := repo.addAccount(1, "4000", AccountTypeRevenue)

	mustPost(t, svc, 1, cash.ID, revenue.ID, "100", day(1))
	mustPost(t, svc, 1, cash.ID, revenue.ID, "30", day(10))
	mustPost(t, svc, 1, cash.ID, revenue.ID, "20", day(15))

	from, to := day(5), day(31)
	ledger, err := svc.GetAccountLedger(context.Background(), 1, cash.ID, &from, &to)
	require.NoError(t, err)

	require.True(t, ledger.OpeningBalance.Equal(d("100")), "activity before the range carries in")
	require.Len(t, ledger.Movements, 2)
	require.True(t, ledger.Movements[0].Running.Equal(d("130")))
	require.True(t, ledger.Movements[1].Running.Equal(d("150")))
	require.True(t, ledger.ClosingBalance.Equal(d("150")))
}

func TestGetAccountLedgerCreditNormalAccount(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	cash := repo.addAccount(1, "1000", AccountTypeAsset)
	revenue := repo.addAccount(1, "4000", AccountTypeRevenue)

	mustPost(t, svc, 1, cash.ID, revenue.ID, "250", day(3))

	ledger, err := svc.GetAccountLedger(context.Background(), 1, revenue.ID, nil, nil)
	require.NoError(t, err)
	require.True(t, ledger.OpeningBalance.IsZero(), "no opening without a range start")
	require.Len(t, ledger.Movements, 1)
	require.True(t, ledger.ClosingBalance.Equal(d("250")), "credit grows a revenue balance")
}

func TestGetAccountLedgerExcludesDrafts(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	cash := repo.addAccount(1, "1000", AccountTypeAsset)
	revenue := repo.addAccount(1, "4000", AccountTypeRevenue)

	mustPost(t, svc, 1, cash.ID, revenue.ID, "100", day(1))
	_, err := svc.CreateDraft(context.Background(), balancedDraft(1, cash.ID, revenue.ID, "999"))
	require.NoError(t, err)

	ledger, err := svc.GetAccountLedger(context.Background(), 1, cash.ID, nil, nil)
	require.NoError(t, err)
	require.Len(t, ledger.Movements, 1)
	require.True(t, ledger.ClosingBalance.Equal(d("100")))
}

func TestGetBalanceAsOf(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	cash := repo.addAccount(1, "1000", AccountTypeAsset)
	revenue := repo.addAccount(1, "4000", AccountTypeRevenue)

	mustPost(t, svc, 1, cash.ID, revenue.ID, "100", day(1))
	mustPost(t, svc, 1, cash.ID, revenue.ID, "50", day(10))

	asOf := day(5)
	balance, err := svc.GetBalance(context.Background(), 1, cash.ID, &asOf)
	require.NoError(t, err)
	require.True(t, balance.Equal(d("100")), "later postings do not leak into asOf")

	live, err := svc.GetBalance(context.Background(), 1, cash.ID, nil)
	require.NoError(t, err)
	require.True(t, live.Equal(d("150")))
}

func TestReconcileDetectsDrift(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	cash := repo.addAccount(1, "1000", AccountTypeAsset)
	revenue := repo.addAccount(1, "4000", AccountTypeRevenue)

	mustPost(t, svc, 1, cash.ID, revenue.ID, "100", day(1))

	result, err := svc.Reconcile(context.Background(), 1, cash.ID)
	require.NoError(t, err)
	require.True(t, result.InSync)
	require.True(t, result.Drift.IsZero())

	// corrupt the cached column behind the projection's back
	repo.accounts[cash.ID].Balance = d("175")

	result, err = svc.Reconcile(context.Background(), 1, cash.ID)
	require.NoError(t, err)
	require.False(t, result.InSync)
	require.True(t, result.Cached.Equal(d("175")))
	require.True(t, result.Computed.Equal(d("100")))
	require.True(t, result.Drift.Equal(d("75")))
}

func TestCreateAccountValidation(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	_, err := svc.CreateAccount(context.Background(), AccountInput{CompanyID: 1, Name: "Cash", Type: AccountTypeAsset})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.CreateAccount(context.Background(), AccountInput{CompanyID: 1, Code: "1000", Name: "Cash", Type: AccountType("WEIRD")})
	require.ErrorIs(t, err, ErrValidation)
}

func TestCreateAccountDuplicateCode(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	repo.addAccount(1, "1000", AccountTypeAsset)

	_, err := svc.CreateAccount(context.Background(), AccountInput{CompanyID: 1, Code: "1000", Name: "Cash", Type: AccountTypeAsset})
	require.ErrorIs(t, err, ErrDuplicateCode)

	// same code under another company is fine
	_, err = svc.CreateAccount(context.Background(), AccountInput{CompanyID: 2, Code: "1000", Name: "Cash", Type: AccountTypeAsset})
	require.NoError(t, err)
}

func TestCreateAccountParentValidation(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	otherCompany := repo.addAccount(2, "1000", AccountTypeAsset)

	missing := int64(999)
	_, err := svc.CreateAccount(context.Background(), AccountInput{
		CompanyID: 1, Code: "1010", Name: "Petty Cash", Type: AccountTypeAsset, ParentID: &missing,
	})
	require.ErrorIs(t, err, ErrInvalidParent)

	_, err = svc.CreateAccount(context.Background(), AccountInput{
		CompanyID: 1, Code: "1010", Name: "Petty Cash", Type: AccountTypeAsset, ParentID: &otherCompany.ID,
	})
	require.ErrorIs(t, err, ErrInvalidParent)
}

func TestDeactivateAccount(t *testing.T) {
	svc, repo, audit, _ := newTestService(t)
	cash := repo.addAccount(1, "1000", AccountTypeAsset)

	require.NoError(t, svc.DeactivateAccount(context.Background(), 1, cash.ID, 7))

	after, err := svc.GetAccount(context.Background(), 1, cash.ID)
	require.NoError(t, err)
	require.False(t, after.IsActive)
	require.Contains(t, audit.actions(), "account.deactivate")
}

func TestDeactivateAccountGuards(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	cash := repo.addAccount(1, "1000", AccountTypeAsset)
	revenue := repo.addAccount(1, "4000", AccountTypeRevenue)
	parent := repo.addAccount(1, "5000", AccountTypeExpense)
	child := repo.addAccount(1, "5010", AccountTypeExpense)
	child.ParentID = &parent.ID

	mustPost(t, svc, 1, cash.ID, revenue.ID, "100", day(1))

	err := svc.DeactivateAccount(context.Background(), 1, cash.ID, 7)
	require.ErrorIs(t, err, ErrAccountHasActivity)

	err = svc.DeactivateAccount(context.Background(), 1, parent.ID, 7)
	require.ErrorIs(t, err, ErrAccountHasChildren)

	err = svc.DeactivateAccount(context.Background(), 1, 999, 7)
	require.ErrorIs(t, err, ErrAccountNotFound)
}
