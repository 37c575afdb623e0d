package ledger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// postAttempts bounds transparent retries on serialization conflicts before
// the failure surfaces as ErrConcurrencyConflict.
const postAttempts = 3

// Post transitions a DRAFT entry to POSTED and atomically applies the
// natural-sign balance deltas to every referenced account. The whole of
// step four is one transaction: if any account update fails the entry stays
// DRAFT and no partial balance change persists.
func (s *Service) Post(ctx context.Context, companyID, entryID, actorID int64) (JournalEntry, error) {
	var entry JournalEntry
	var err error
	for attempt := 0; attempt < postAttempts; attempt++ {
		entry, err = s.postOnce(ctx, companyID, entryID)
		if err == nil || !IsSerializationFailure(err) {
			break
		}
	}
	if err != nil {
		if IsSerializationFailure(err) {
			return JournalEntry{}, fmt.Errorf("%w: %v", ErrConcurrencyConflict, err)
		}
		return JournalEntry{}, err
	}
	s.recordAudit(ctx, actorID, "entry.post", "journal_entry", entry.ID, map[string]any{
		"number":       entry.Number,
		"total_debit":  entry.TotalDebit.String(),
		"total_credit": entry.TotalCredit.String(),
	})
	s.bumpReports(ctx)
	return entry, nil
}

func (s *Service) postOnce(ctx context.Context, companyID, entryID int64) (JournalEntry, error) {
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetEntryForUpdate(ctx, companyID, entryID)
		if err != nil {
			return err
		}
		if current.Status == EntryStatusPosted {
			return ErrAlreadyPosted
		}
		posted, err := applyEntry(ctx, tx, current, s.now())
		if err != nil {
			return err
		}
		entry = posted
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	return entry, nil
}

// Cancel reverses a POSTED entry by creating and posting an automatic
// reversing entry with every line's debit and credit swapped, then marks the
// original as superseded. The original stays in history untouched.
func (s *Service) Cancel(ctx context.Context, input CancelInput) (JournalEntry, error) {
	var reversal JournalEntry
	var err error
	for attempt := 0; attempt < postAttempts; attempt++ {
		reversal, err = s.cancelOnce(ctx, input)
		if err == nil || !IsSerializationFailure(err) {
			break
		}
	}
	if err != nil {
		if IsSerializationFailure(err) {
			return JournalEntry{}, fmt.Errorf("%w: %v", ErrConcurrencyConflict, err)
		}
		return JournalEntry{}, err
	}
	s.recordAudit(ctx, input.ActorID, "entry.cancel", "journal_entry", input.EntryID, map[string]any{
		"reason":          input.Reason,
		"reversal_id":     reversal.ID,
		"reversal_number": reversal.Number,
	})
	s.bumpReports(ctx)
	return reversal, nil
}

func (s *Service) cancelOnce(ctx context.Context, input CancelInput) (JournalEntry, error) {
	var reversal JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		original, err := tx.GetEntryForUpdate(ctx, input.CompanyID, input.EntryID)
		if err != nil {
			return err
		}
		if original.Status != EntryStatusPosted {
			return ErrNotPosted
		}
		if original.ReversedByID != nil {
			return ErrAlreadyReversed
		}
		number, err := tx.NextEntryNumber(ctx, input.CompanyID)
		if err != nil {
			return err
		}
		draft := DraftInput{
			CompanyID:   input.CompanyID,
			Date:        s.now(),
			Description: reversalDescription(input.Reason, original.Number),
			CreatedBy:   input.ActorID,
			Lines:       swapLines(original.Lines),
		}
		debit, credit := draft.Totals()
		inserted, err := tx.InsertEntry(ctx, draft, number, debit, credit)
		if err != nil {
			return err
		}
		if err := tx.InsertLines(ctx, inserted.ID, draft.Lines); err != nil {
			return err
		}
		inserted.Lines = toJournalLines(inserted.ID, draft.Lines, s.now())
		inserted.ReversalOfID = &original.ID
		posted, err := applyEntry(ctx, tx, inserted, s.now())
		if err != nil {
			return err
		}
		if err := tx.MarkReversed(ctx, original.ID, posted.ID); err != nil {
			return err
		}
		reversal = posted
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	return reversal, nil
}

// applyEntry runs steps two through four of the posting algorithm against an
// already locked entry: recompute totals, verify the balance invariant,
// resolve and lock the accounts, move the balances, and flip the status.
func applyEntry(ctx context.Context, tx TxRepository, entry JournalEntry, postedAt time.Time) (JournalEntry, error) {
	if len(entry.Lines) < 2 {
		return JournalEntry{}, ErrTooFewLines
	}
	var debit, credit decimal.Decimal
	for _, line := range entry.Lines {
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	if !Balanced(debit, credit) {
		return JournalEntry{}, fmt.Errorf("%w: debit %s, credit %s", ErrUnbalanced, debit.String(), credit.String())
	}

	ids := make([]int64, 0, len(entry.Lines))
	seen := make(map[int64]struct{}, len(entry.Lines))
	for _, line := range entry.Lines {
		if _, ok := seen[line.AccountID]; ok {
			continue
		}
		seen[line.AccountID] = struct{}{}
		ids = append(ids, line.AccountID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	accounts, err := tx.LockAccounts(ctx, entry.CompanyID, ids)
	if err != nil {
		return JournalEntry{}, err
	}
	deltas := make(map[int64]decimal.Decimal, len(ids))
	for _, line := range entry.Lines {
		account, ok := accounts[line.AccountID]
		if !ok {
			return JournalEntry{}, fmt.Errorf("%w: account %d", ErrUnknownAccount, line.AccountID)
		}
		if !account.IsActive {
			return JournalEntry{}, fmt.Errorf("%w: account %s", ErrAccountInactive, account.Code)
		}
		deltas[line.AccountID] = deltas[line.AccountID].Add(account.Delta(line.Debit, line.Credit))
	}
	for _, id := range ids {
		if err := tx.ApplyBalanceDelta(ctx, id, deltas[id]); err != nil {
			return JournalEntry{}, err
		}
	}
	if err := tx.MarkPosted(ctx, entry.ID, debit, credit, postedAt); err != nil {
		return JournalEntry{}, err
	}
	entry.Status = EntryStatusPosted
	entry.TotalDebit = debit
	entry.TotalCredit = credit
	entry.PostedAt = &postedAt
	return entry, nil
}

// swapLines builds reversing line inputs with debit and credit exchanged.
func swapLines(lines []JournalLine) []LineInput {
	out := make([]LineInput, 0, len(lines))
	for _, line := range lines {
		out = append(out, LineInput{
			AccountID:   line.AccountID,
			Debit:       line.Credit,
			Credit:      line.Debit,
			Description: line.Description,
		})
	}
	return out
}

func reversalDescription(reason string, number int64) string {
	if reason != "" {
		return fmt.Sprintf("Reversal of entry %d: %s", number, reason)
	}
	return fmt.Sprintf("Reversal of entry %d", number)
}
