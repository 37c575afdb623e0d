package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CreateAccount adds a node to the company's chart of accounts.
func (s *Service) CreateAccount(ctx context.Context, input AccountInput) (Account, error) {
	input.Code = strings.TrimSpace(input.Code)
	input.Name = strings.TrimSpace(input.Name)
	if input.CompanyID == 0 {
		return Account{}, fmt.Errorf("%w: company required", ErrValidation)
	}
	if input.Code == "" || input.Name == "" {
		return Account{}, fmt.Errorf("%w: code and name required", ErrValidation)
	}
	if !input.Type.Valid() {
		return Account{}, fmt.Errorf("%w: unknown account type %q", ErrValidation, input.Type)
	}
	var account Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if input.ParentID != nil {
			parent, err := tx.GetAccountForUpdate(ctx, input.CompanyID, *input.ParentID)
			if err != nil {
				if errors.Is(err, ErrAccountNotFound) {
					return ErrInvalidParent
				}
				return err
			}
			if parent.CompanyID != input.CompanyID {
				return ErrInvalidParent
			}
		}
		created, err := tx.InsertAccount(ctx, input)
		if err != nil {
			return err
		}
		account = created
		return nil
	})
	if err != nil {
		return Account{}, err
	}
	return account, nil
}

// DeactivateAccount soft-deactivates an account. Accounts with posted
// activity or child accounts stay active; they are never hard-deleted.
func (s *Service) DeactivateAccount(ctx context.Context, companyID, accountID, actorID int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetAccountForUpdate(ctx, companyID, accountID); err != nil {
			return err
		}
		hasLines, err := tx.AccountHasLines(ctx, accountID)
		if err != nil {
			return err
		}
		if hasLines {
			return ErrAccountHasActivity
		}
		hasChildren, err := tx.AccountHasChildren(ctx, accountID)
		if err != nil {
			return err
		}
		if hasChildren {
			return ErrAccountHasChildren
		}
		return tx.DeactivateAccount(ctx, accountID)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "account.deactivate", "account", accountID, nil)
	return nil
}

// GetAccount loads one account.
func (s *Service) GetAccount(ctx context.Context, companyID, accountID int64) (Account, error) {
	return s.repo.GetAccount(ctx, companyID, accountID)
}

// ListAccounts returns the company chart of accounts.
func (s *Service) ListAccounts(ctx context.Context, companyID int64) ([]Account, error) {
	return s.repo.ListAccounts(ctx, companyID)
}

// GetBalance returns the account balance. With asOf set the balance is
// recomputed from posted history up to and including that date instead of
// reading the live cache, so point-in-time reports are unaffected by later
// postings.
func (s *Service) GetBalance(ctx context.Context, companyID, accountID int64, asOf *time.Time) (decimal.Decimal, error) {
	account, err := s.repo.GetAccount(ctx, companyID, accountID)
	if err != nil {
		return decimal.Zero, err
	}
	if asOf == nil {
		return account.Balance, nil
	}
	debit, credit, err := s.repo.SignedActivity(ctx, companyID, accountID, nil, asOf)
	if err != nil {
		return decimal.Zero, err
	}
	return account.Delta(debit, credit), nil
}

// Reconcile recomputes the account balance from the full posted history and
// compares it to the cached column. The cache is a projection; drift means
// corruption and is surfaced, not hidden.
func (s *Service) Reconcile(ctx context.Context, companyID, accountID int64) (ReconcileResult, error) {
	account, err := s.repo.GetAccount(ctx, companyID, accountID)
	if err != nil {
		return ReconcileResult{}, err
	}
	debit, credit, err := s.repo.SignedActivity(ctx, companyID, accountID, nil, nil)
	if err != nil {
		return ReconcileResult{}, err
	}
	computed := account.Delta(debit, credit)
	drift := account.Balance.Sub(computed)
	return ReconcileResult{
		AccountID: accountID,
		Cached:    account.Balance,
		Computed:  computed,
		Drift:     drift,
		InSync:    drift.IsZero(),
	}, nil
}
