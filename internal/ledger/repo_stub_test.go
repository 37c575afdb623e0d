package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// memoryRepo is an in-memory RepositoryPort with transactional rollback, so
// service tests exercise the same commit/abort paths as the real store.
type memoryRepo struct {
	mu            sync.Mutex
	accounts      map[int64]*Account
	entries       map[int64]*JournalEntry
	seq           map[int64]int64
	nextAccountID int64
	nextEntryID   int64
	nextLineID    int64

	// lockConflicts makes the next N LockAccounts calls fail with a
	// serialization error, for retry tests.
	lockConflicts int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		accounts: make(map[int64]*Account),
		entries:  make(map[int64]*JournalEntry),
		seq:      make(map[int64]int64),
	}
}

func (r *memoryRepo) addAccount(companyID int64, code string, typ AccountType) *Account {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextAccountID++
	account := &Account{
		ID:        r.nextAccountID,
		CompanyID: companyID,
		Code:      code,
		Name:      code,
		Type:      typ,
		IsActive:  true,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	r.accounts[account.ID] = account
	return account
}

func (r *memoryRepo) failNextLocks(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lockConflicts = n
}

type memorySnapshot struct {
	accounts map[int64]*Account
	entries  map[int64]*JournalEntry
	seq      map[int64]int64
	nextA    int64
	nextE    int64
	nextL    int64
}

func (r *memoryRepo) snapshot() memorySnapshot {
	snap := memorySnapshot{
		accounts: make(map[int64]*Account, len(r.accounts)),
		entries:  make(map[int64]*JournalEntry, len(r.entries)),
		seq:      make(map[int64]int64, len(r.seq)),
		nextA:    r.nextAccountID,
		nextE:    r.nextEntryID,
		nextL:    r.nextLineID,
	}
	for id, a := range r.accounts {
		clone := *a
		snap.accounts[id] = &clone
	}
	for id, e := range r.entries {
		clone := copyEntry(e)
		snap.entries[id] = &clone
	}
	for id, n := range r.seq {
		snap.seq[id] = n
	}
	return snap
}

func (r *memoryRepo) restore(snap memorySnapshot) {
	r.accounts = snap.accounts
	r.entries = snap.entries
	r.seq = snap.seq
	r.nextAccountID = snap.nextA
	r.nextEntryID = snap.nextE
	r.nextLineID = snap.nextL
}

func copyEntry(e *JournalEntry) JournalEntry {
	clone := *e
	clone.Lines = append([]JournalLine(nil), e.Lines...)
	return clone
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap := r.snapshot()
	if err := fn(ctx, &memoryTx{r: r}); err != nil {
		r.restore(snap)
		return err
	}
	return nil
}

func (r *memoryRepo) GetEntry(ctx context.Context, companyID, entryID int64) (JournalEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getEntryLocked(companyID, entryID)
}

func (r *memoryRepo) getEntryLocked(companyID, entryID int64) (JournalEntry, error) {
	e, ok := r.entries[entryID]
	if !ok || e.CompanyID != companyID {
		return JournalEntry{}, ErrEntryNotFound
	}
	return copyEntry(e), nil
}

func (r *memoryRepo) ListEntries(ctx context.Context, companyID int64, limit, offset int) ([]JournalEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []JournalEntry
	for _, e := range r.entries {
		if e.CompanyID == companyID {
			out = append(out, copyEntry(e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number > out[j].Number })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *memoryRepo) CountEntries(ctx context.Context, companyID int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var total int
	for _, e := range r.entries {
		if e.CompanyID == companyID {
			total++
		}
	}
	return total, nil
}

func (r *memoryRepo) GetAccount(ctx context.Context, companyID, accountID int64) (Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[accountID]
	if !ok || a.CompanyID != companyID {
		return Account{}, ErrAccountNotFound
	}
	return *a, nil
}

func (r *memoryRepo) ListAccounts(ctx context.Context, companyID int64) ([]Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Account
	for _, a := range r.accounts {
		if a.CompanyID == companyID {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (r *memoryRepo) SignedActivity(ctx context.Context, companyID, accountID int64, before, until *time.Time) (decimal.Decimal, decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	debit, credit := decimal.Zero, decimal.Zero
	for _, e := range r.entries {
		if e.CompanyID != companyID || e.Status != EntryStatusPosted {
			continue
		}
		if before != nil && !e.Date.Before(*before) {
			continue
		}
		if until != nil && e.Date.After(*until) {
			continue
		}
		for _, line := range e.Lines {
			if line.AccountID != accountID {
				continue
			}
			debit = debit.Add(line.Debit)
			credit = credit.Add(line.Credit)
		}
	}
	return debit, credit, nil
}

func (r *memoryRepo) Movements(ctx context.Context, companyID, accountID int64, from, to *time.Time) ([]Movement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Movement
	for _, e := range r.entries {
		if e.CompanyID != companyID || e.Status != EntryStatusPosted {
			continue
		}
		if from != nil && e.Date.Before(*from) {
			continue
		}
		if to != nil && e.Date.After(*to) {
			continue
		}
		for _, line := range e.Lines {
			if line.AccountID != accountID {
				continue
			}
			description := line.Description
			if description == "" {
				description = e.Description
			}
			out = append(out, Movement{
				LineID:      line.ID,
				EntryID:     e.ID,
				EntryNumber: e.Number,
				Date:        e.Date,
				Description: description,
				Debit:       line.Debit,
				Credit:      line.Credit,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].LineID < out[j].LineID
	})
	return out, nil
}

type memoryTx struct {
	r *memoryRepo
}

func (t *memoryTx) NextEntryNumber(ctx context.Context, companyID int64) (int64, error) {
	t.r.seq[companyID]++
	return t.r.seq[companyID], nil
}

func (t *memoryTx) InsertEntry(ctx context.Context, in DraftInput, number int64, totalDebit, totalCredit decimal.Decimal) (JournalEntry, error) {
	if in.SourceID != uuid.Nil {
		for _, e := range t.r.entries {
			if e.CompanyID == in.CompanyID && e.SourceModule == in.SourceModule && e.SourceID == in.SourceID {
				return JournalEntry{}, ErrSourceAlreadyPosted
			}
		}
	}
	t.r.nextEntryID++
	entry := &JournalEntry{
		ID:           t.r.nextEntryID,
		CompanyID:    in.CompanyID,
		Number:       number,
		Date:         in.Date,
		Description:  in.Description,
		Status:       EntryStatusDraft,
		TotalDebit:   totalDebit,
		TotalCredit:  totalCredit,
		SourceModule: in.SourceModule,
		SourceID:     in.SourceID,
		CreatedBy:    in.CreatedBy,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	t.r.entries[entry.ID] = entry
	return copyEntry(entry), nil
}

func (t *memoryTx) InsertLines(ctx context.Context, entryID int64, lines []LineInput) error {
	entry, ok := t.r.entries[entryID]
	if !ok {
		return ErrEntryNotFound
	}
	for _, line := range lines {
		if _, ok := t.r.accounts[line.AccountID]; !ok {
			return ErrUnknownAccount
		}
		t.r.nextLineID++
		entry.Lines = append(entry.Lines, JournalLine{
			ID:          t.r.nextLineID,
			EntryID:     entryID,
			AccountID:   line.AccountID,
			Debit:       line.Debit,
			Credit:      line.Credit,
			Description: line.Description,
			CreatedAt:   time.Now(),
		})
	}
	return nil
}

func (t *memoryTx) DeleteLines(ctx context.Context, entryID int64) error {
	if entry, ok := t.r.entries[entryID]; ok {
		entry.Lines = nil
	}
	return nil
}

func (t *memoryTx) UpdateTotals(ctx context.Context, entryID int64, totalDebit, totalCredit decimal.Decimal) error {
	entry, ok := t.r.entries[entryID]
	if !ok {
		return ErrEntryNotFound
	}
	entry.TotalDebit = totalDebit
	entry.TotalCredit = totalCredit
	return nil
}

func (t *memoryTx) DeleteEntry(ctx context.Context, entryID int64) error {
	if _, ok := t.r.entries[entryID]; !ok {
		return ErrEntryNotFound
	}
	delete(t.r.entries, entryID)
	return nil
}

func (t *memoryTx) GetEntryForUpdate(ctx context.Context, companyID, entryID int64) (JournalEntry, error) {
	return t.r.getEntryLocked(companyID, entryID)
}

func (t *memoryTx) MarkPosted(ctx context.Context, entryID int64, totalDebit, totalCredit decimal.Decimal, postedAt time.Time) error {
	entry, ok := t.r.entries[entryID]
	if !ok {
		return ErrEntryNotFound
	}
	entry.Status = EntryStatusPosted
	entry.TotalDebit = totalDebit
	entry.TotalCredit = totalCredit
	at := postedAt
	entry.PostedAt = &at
	return nil
}

func (t *memoryTx) MarkReversed(ctx context.Context, entryID, reversalID int64) error {
	entry, ok := t.r.entries[entryID]
	if !ok || entry.ReversedByID != nil {
		return ErrAlreadyReversed
	}
	id := reversalID
	entry.ReversedByID = &id
	if reversal, ok := t.r.entries[reversalID]; ok {
		original := entryID
		reversal.ReversalOfID = &original
	}
	return nil
}

func (t *memoryTx) LockAccounts(ctx context.Context, companyID int64, accountIDs []int64) (map[int64]Account, error) {
	if t.r.lockConflicts > 0 {
		t.r.lockConflicts--
		return nil, &pgconn.PgError{Code: "40001", Message: "could not serialize access"}
	}
	out := make(map[int64]Account, len(accountIDs))
	for _, id := range accountIDs {
		if a, ok := t.r.accounts[id]; ok && a.CompanyID == companyID {
			out[id] = *a
		}
	}
	return out, nil
}

func (t *memoryTx) ApplyBalanceDelta(ctx context.Context, accountID int64, delta decimal.Decimal) error {
	account, ok := t.r.accounts[accountID]
	if !ok {
		return ErrUnknownAccount
	}
	account.Balance = account.Balance.Add(delta)
	return nil
}

func (t *memoryTx) InsertAccount(ctx context.Context, in AccountInput) (Account, error) {
	for _, a := range t.r.accounts {
		if a.CompanyID == in.CompanyID && a.Code == in.Code {
			return Account{}, ErrDuplicateCode
		}
	}
	t.r.nextAccountID++
	account := &Account{
		ID:        t.r.nextAccountID,
		CompanyID: in.CompanyID,
		Code:      in.Code,
		Name:      in.Name,
		Type:      in.Type,
		ParentID:  in.ParentID,
		IsActive:  true,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	t.r.accounts[account.ID] = account
	return *account, nil
}

func (t *memoryTx) GetAccountForUpdate(ctx context.Context, companyID, accountID int64) (Account, error) {
	a, ok := t.r.accounts[accountID]
	if !ok || a.CompanyID != companyID {
		return Account{}, ErrAccountNotFound
	}
	return *a, nil
}

func (t *memoryTx) AccountHasLines(ctx context.Context, accountID int64) (bool, error) {
	for _, e := range t.r.entries {
		for _, line := range e.Lines {
			if line.AccountID == accountID {
				return true, nil
			}
		}
	}
	return false, nil
}

func (t *memoryTx) AccountHasChildren(ctx context.Context, accountID int64) (bool, error) {
	for _, a := range t.r.accounts {
		if a.ParentID != nil && *a.ParentID == accountID {
			return true, nil
		}
	}
	return false, nil
}

func (t *memoryTx) DeactivateAccount(ctx context.Context, accountID int64) error {
	account, ok := t.r.accounts[accountID]
	if !ok {
		return ErrAccountNotFound
	}
	account.IsActive = false
	return nil
}

var (
	_ RepositoryPort = (*memoryRepo)(nil)
	_ TxRepository   = (*memoryTx)(nil)
)
