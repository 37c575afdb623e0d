package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/ledgerline/ledgerline/internal/shared"
)

// AuditPort records ledger events for compliance.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// InvalidatorPort lets the posting engine invalidate derived report caches
// after balances move.
type InvalidatorPort interface {
	Bump(ctx context.Context) error
}

// Service coordinates the chart of accounts, draft entries, posting,
// and ledger queries.
type Service struct {
	repo        RepositoryPort
	audit       AuditPort
	invalidator InvalidatorPort
	now         func() time.Time
}

// NewService constructs the ledger service.
func NewService(repo RepositoryPort, audit AuditPort, invalidator InvalidatorPort) *Service {
	return &Service{repo: repo, audit: audit, invalidator: invalidator, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CreateDraft validates structural well-formedness and persists a new DRAFT
// entry with its line items. Balance is not enforced here; unbalanced drafts
// are legal while they are being edited.
func (s *Service) CreateDraft(ctx context.Context, input DraftInput) (JournalEntry, error) {
	if err := input.Validate(); err != nil {
		return JournalEntry{}, err
	}
	debit, credit := input.Totals()
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		number, err := tx.NextEntryNumber(ctx, input.CompanyID)
		if err != nil {
			return err
		}
		inserted, err := tx.InsertEntry(ctx, input, number, debit, credit)
		if err != nil {
			return err
		}
		if err := tx.InsertLines(ctx, inserted.ID, input.Lines); err != nil {
			return err
		}
		entry = inserted
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	entry.Lines = toJournalLines(entry.ID, input.Lines, s.now())
	return entry, nil
}

// ReplaceLines swaps the draft's line items wholesale. Posted entries are
// immutable and reject the call.
func (s *Service) ReplaceLines(ctx context.Context, companyID, entryID int64, lines []LineInput) (JournalEntry, error) {
	probe := DraftInput{CompanyID: companyID, Date: s.now(), Lines: lines}
	if err := probe.Validate(); err != nil {
		return JournalEntry{}, err
	}
	debit, credit := probe.Totals()
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetEntryForUpdate(ctx, companyID, entryID)
		if err != nil {
			return err
		}
		if current.Status != EntryStatusDraft {
			return ErrEntryNotDraft
		}
		if err := tx.DeleteLines(ctx, entryID); err != nil {
			return err
		}
		if err := tx.InsertLines(ctx, entryID, lines); err != nil {
			return err
		}
		if err := tx.UpdateTotals(ctx, entryID, debit, credit); err != nil {
			return err
		}
		entry = current
		entry.TotalDebit = debit
		entry.TotalCredit = credit
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	entry.Lines = toJournalLines(entryID, lines, s.now())
	return entry, nil
}

// DeleteDraft removes a DRAFT entry and its lines. Posted entries may never
// be deleted; history is append-only.
func (s *Service) DeleteDraft(ctx context.Context, companyID, entryID int64) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetEntryForUpdate(ctx, companyID, entryID)
		if err != nil {
			return err
		}
		if current.Status != EntryStatusDraft {
			return ErrEntryNotDraft
		}
		return tx.DeleteEntry(ctx, entryID)
	})
}

// GetEntry loads one journal entry with lines.
func (s *Service) GetEntry(ctx context.Context, companyID, entryID int64) (JournalEntry, error) {
	return s.repo.GetEntry(ctx, companyID, entryID)
}

// ListEntries returns recent journal entries for the company plus the
// total count for pagination.
func (s *Service) ListEntries(ctx context.Context, companyID int64, limit, offset int) ([]JournalEntry, int, error) {
	entries, err := s.repo.ListEntries(ctx, companyID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.repo.CountEntries(ctx, companyID)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action, entity string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   entity,
		EntityID: fmt.Sprintf("%d", entityID),
		Meta:     meta,
		At:       s.now(),
	})
}

func (s *Service) bumpReports(ctx context.Context) {
	if s.invalidator == nil {
		return
	}
	_ = s.invalidator.Bump(ctx)
}

func toJournalLines(entryID int64, lines []LineInput, ts time.Time) []JournalLine {
	out := make([]JournalLine, 0, len(lines))
	for _, line := range lines {
		out = append(out, JournalLine{
			EntryID:     entryID,
			AccountID:   line.AccountID,
			Debit:       line.Debit,
			Credit:      line.Credit,
			Description: line.Description,
			CreatedAt:   ts,
		})
	}
	return out
}
