package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// RepositoryPort abstracts transactional repository behaviour.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetEntry(ctx context.Context, companyID, entryID int64) (JournalEntry, error)
	ListEntries(ctx context.Context, companyID int64, limit, offset int) ([]JournalEntry, error)
	CountEntries(ctx context.Context, companyID int64) (int, error)
	GetAccount(ctx context.Context, companyID, accountID int64) (Account, error)
	ListAccounts(ctx context.Context, companyID int64) ([]Account, error)
	SignedActivity(ctx context.Context, companyID, accountID int64, before, until *time.Time) (debit, credit decimal.Decimal, err error)
	Movements(ctx context.Context, companyID, accountID int64, from, to *time.Time) ([]Movement, error)
}

// TxRepository exposes write operations available within a transaction.
type TxRepository interface {
	NextEntryNumber(ctx context.Context, companyID int64) (int64, error)
	InsertEntry(ctx context.Context, in DraftInput, number int64, totalDebit, totalCredit decimal.Decimal) (JournalEntry, error)
	InsertLines(ctx context.Context, entryID int64, lines []LineInput) error
	DeleteLines(ctx context.Context, entryID int64) error
	UpdateTotals(ctx context.Context, entryID int64, totalDebit, totalCredit decimal.Decimal) error
	DeleteEntry(ctx context.Context, entryID int64) error
	GetEntryForUpdate(ctx context.Context, companyID, entryID int64) (JournalEntry, error)
	MarkPosted(ctx context.Context, entryID int64, totalDebit, totalCredit decimal.Decimal, postedAt time.Time) error
	MarkReversed(ctx context.Context, entryID, reversalID int64) error
	LockAccounts(ctx context.Context, companyID int64, accountIDs []int64) (map[int64]Account, error)
	ApplyBalanceDelta(ctx context.Context, accountID int64, delta decimal.Decimal) error
	InsertAccount(ctx context.Context, in AccountInput) (Account, error)
	GetAccountForUpdate(ctx context.Context, companyID, accountID int64) (Account, error)
	AccountHasLines(ctx context.Context, accountID int64) (bool, error)
	AccountHasChildren(ctx context.Context, accountID int64) (bool, error)
	DeactivateAccount(ctx context.Context, accountID int64) error
}

// Movement is one posted line in an account's chronological ledger.
type Movement struct {
	LineID      int64
	EntryID     int64
	EntryNumber int64
	Date        time.Time
	Description string
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	Running     decimal.Decimal
}

// Repository persists ledger entities in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx executes fn within a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("ledger repository not initialised")
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	wrapper := &txRepository{tx: tx}
	if err := fn(ctx, wrapper); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

const entryColumns = `id, company_id, number, date, description, status, total_debit::text, total_credit::text,
COALESCE(source_module,''), COALESCE(source_id,'00000000-0000-0000-0000-000000000000'::uuid), created_by, posted_at, reversed_by_id, reversal_of_id, created_at, updated_at`

func scanEntry(row pgx.Row) (JournalEntry, error) {
	var e JournalEntry
	var debit, credit string
	err := row.Scan(&e.ID, &e.CompanyID, &e.Number, &e.Date, &e.Description, &e.Status, &debit, &credit,
		&e.SourceModule, &e.SourceID, &e.CreatedBy, &e.PostedAt, &e.ReversedByID, &e.ReversalOfID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return JournalEntry{}, err
	}
	if e.TotalDebit, err = decimal.NewFromString(debit); err != nil {
		return JournalEntry{}, err
	}
	if e.TotalCredit, err = decimal.NewFromString(credit); err != nil {
		return JournalEntry{}, err
	}
	return e, nil
}

// GetEntry loads a journal entry with its lines.
func (r *Repository) GetEntry(ctx context.Context, companyID, entryID int64) (JournalEntry, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE company_id=$1 AND id=$2`, companyID, entryID)
	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JournalEntry{}, ErrEntryNotFound
		}
		return JournalEntry{}, err
	}
	entry.Lines, err = queryLines(ctx, r.pool, entryID)
	if err != nil {
		return JournalEntry{}, err
	}
	return entry, nil
}

// ListEntries returns company entries ordered by number descending.
func (r *Repository) ListEntries(ctx context.Context, companyID int64, limit, offset int) ([]JournalEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE company_id=$1 ORDER BY number DESC LIMIT $2 OFFSET $3`, companyID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []JournalEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// CountEntries returns the company's total entry count for pagination.
func (r *Repository) CountEntries(ctx context.Context, companyID int64) (int, error) {
	var total int
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM journal_entries WHERE company_id=$1`, companyID).Scan(&total)
	return total, err
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func queryLines(ctx context.Context, q querier, entryID int64) ([]JournalLine, error) {
	rows, err := q.Query(ctx, `SELECT id, entry_id, account_id, debit::text, credit::text, description, created_at
FROM journal_lines WHERE entry_id=$1 ORDER BY id ASC`, entryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []JournalLine
	for rows.Next() {
		var line JournalLine
		var debit, credit string
		if err := rows.Scan(&line.ID, &line.EntryID, &line.AccountID, &debit, &credit, &line.Description, &line.CreatedAt); err != nil {
			return nil, err
		}
		if line.Debit, err = decimal.NewFromString(debit); err != nil {
			return nil, err
		}
		if line.Credit, err = decimal.NewFromString(credit); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

const accountColumns = `id, company_id, code, name, type, parent_id, balance::text, is_active, created_at, updated_at`

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	var balance string
	err := row.Scan(&a.ID, &a.CompanyID, &a.Code, &a.Name, &a.Type, &a.ParentID, &balance, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return Account{}, err
	}
	if a.Balance, err = decimal.NewFromString(balance); err != nil {
		return Account{}, err
	}
	return a, nil
}

// GetAccount loads one account by id.
func (r *Repository) GetAccount(ctx context.Context, companyID, accountID int64) (Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE company_id=$1 AND id=$2`, companyID, accountID)
	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, err
	}
	return account, nil
}

// ListAccounts returns the company chart of accounts ordered by code.
func (r *Repository) ListAccounts(ctx context.Context, companyID int64) ([]Account, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+accountColumns+` FROM accounts WHERE company_id=$1 ORDER BY code`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

// SignedActivity sums posted debit and credit amounts against the account,
// optionally bounded to entry dates strictly before `before` and up to and
// including `until`.
func (r *Repository) SignedActivity(ctx context.Context, companyID, accountID int64, before, until *time.Time) (decimal.Decimal, decimal.Decimal, error) {
	query := `SELECT COALESCE(SUM(l.debit),0)::text, COALESCE(SUM(l.credit),0)::text
FROM journal_lines l
JOIN journal_entries e ON e.id = l.entry_id
WHERE e.company_id=$1 AND l.account_id=$2 AND e.status='POSTED'`
	args := []any{companyID, accountID}
	if before != nil {
		args = append(args, *before)
		query += ` AND e.date < $3`
	}
	if until != nil {
		args = append(args, *until)
		if before != nil {
			query += ` AND e.date <= $4`
		} else {
			query += ` AND e.date <= $3`
		}
	}
	var debitStr, creditStr string
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&debitStr, &creditStr); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	debit, err := decimal.NewFromString(debitStr)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	credit, err := decimal.NewFromString(creditStr)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return debit, credit, nil
}

// Movements returns posted lines for the account ordered by entry date with
// line id as the stable tie-break. Running balances are left zero; the query
// service folds them in.
func (r *Repository) Movements(ctx context.Context, companyID, accountID int64, from, to *time.Time) ([]Movement, error) {
	query := `SELECT l.id, e.id, e.number, e.date, COALESCE(NULLIF(l.description,''), e.description), l.debit::text, l.credit::text
FROM journal_lines l
JOIN journal_entries e ON e.id = l.entry_id
WHERE e.company_id=$1 AND l.account_id=$2 AND e.status='POSTED'`
	args := []any{companyID, accountID}
	if from != nil {
		args = append(args, *from)
		query += ` AND e.date >= $3`
	}
	if to != nil {
		args = append(args, *to)
		if from != nil {
			query += ` AND e.date <= $4`
		} else {
			query += ` AND e.date <= $3`
		}
	}
	query += ` ORDER BY e.date ASC, l.id ASC`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var movements []Movement
	for rows.Next() {
		var m Movement
		var debit, credit string
		if err := rows.Scan(&m.LineID, &m.EntryID, &m.EntryNumber, &m.Date, &m.Description, &debit, &credit); err != nil {
			return nil, err
		}
		if m.Debit, err = decimal.NewFromString(debit); err != nil {
			return nil, err
		}
		if m.Credit, err = decimal.NewFromString(credit); err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

type txRepository struct {
	tx pgx.Tx
}

// NextEntryNumber allocates the next sequential entry number for the
// company via an upsert-returning counter row, safe across processes.
func (r *txRepository) NextEntryNumber(ctx context.Context, companyID int64) (int64, error) {
	var number int64
	err := r.tx.QueryRow(ctx, `INSERT INTO entry_sequences (company_id, next_number) VALUES ($1, 2)
ON CONFLICT (company_id) DO UPDATE SET next_number = entry_sequences.next_number + 1
RETURNING next_number - 1`, companyID).Scan(&number)
	return number, err
}

func (r *txRepository) InsertEntry(ctx context.Context, in DraftInput, number int64, totalDebit, totalCredit decimal.Decimal) (JournalEntry, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO journal_entries (company_id, number, date, description, status, total_debit, total_credit, source_module, source_id, created_by)
VALUES ($1,$2,$3,$4,'DRAFT',$5,$6,NULLIF($7,''),$8,$9)
RETURNING `+entryColumns, in.CompanyID, number, in.Date, in.Description, totalDebit.String(), totalCredit.String(), in.SourceModule, nullUUID(in.SourceID), in.CreatedBy)
	entry, err := scanEntry(row)
	if err != nil {
		if isUniqueViolation(err, "uq_journal_entries_source") {
			return JournalEntry{}, ErrSourceAlreadyPosted
		}
		return JournalEntry{}, err
	}
	return entry, nil
}

func (r *txRepository) InsertLines(ctx context.Context, entryID int64, lines []LineInput) error {
	for _, line := range lines {
		if _, err := r.tx.Exec(ctx, `INSERT INTO journal_lines (entry_id, account_id, debit, credit, description)
VALUES ($1,$2,$3,$4,$5)`, entryID, line.AccountID, line.Debit.String(), line.Credit.String(), line.Description); err != nil {
			if isForeignKeyViolation(err) {
				return ErrUnknownAccount
			}
			return err
		}
	}
	return nil
}

func (r *txRepository) DeleteLines(ctx context.Context, entryID int64) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM journal_lines WHERE entry_id=$1`, entryID)
	return err
}

func (r *txRepository) UpdateTotals(ctx context.Context, entryID int64, totalDebit, totalCredit decimal.Decimal) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE journal_entries SET total_debit=$2, total_credit=$3, updated_at=NOW() WHERE id=$1`,
		entryID, totalDebit.String(), totalCredit.String())
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrEntryNotFound
	}
	return nil
}

func (r *txRepository) DeleteEntry(ctx context.Context, entryID int64) error {
	if _, err := r.tx.Exec(ctx, `DELETE FROM journal_lines WHERE entry_id=$1`, entryID); err != nil {
		return err
	}
	cmd, err := r.tx.Exec(ctx, `DELETE FROM journal_entries WHERE id=$1`, entryID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrEntryNotFound
	}
	return nil
}

func (r *txRepository) GetEntryForUpdate(ctx context.Context, companyID, entryID int64) (JournalEntry, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE company_id=$1 AND id=$2 FOR UPDATE`, companyID, entryID)
	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JournalEntry{}, ErrEntryNotFound
		}
		return JournalEntry{}, err
	}
	entry.Lines, err = queryLines(ctx, r.tx, entryID)
	if err != nil {
		return JournalEntry{}, err
	}
	return entry, nil
}

func (r *txRepository) MarkPosted(ctx context.Context, entryID int64, totalDebit, totalCredit decimal.Decimal, postedAt time.Time) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE journal_entries SET status='POSTED', total_debit=$2, total_credit=$3, posted_at=$4, updated_at=NOW() WHERE id=$1`,
		entryID, totalDebit.String(), totalCredit.String(), postedAt)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrEntryNotFound
	}
	return nil
}

// MarkReversed links both sides of a reversal: the original points at the
// reversing entry and the reversing entry points back at the original.
func (r *txRepository) MarkReversed(ctx context.Context, entryID, reversalID int64) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE journal_entries SET reversed_by_id=$2, updated_at=NOW() WHERE id=$1 AND reversed_by_id IS NULL`, entryID, reversalID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAlreadyReversed
	}
	_, err = r.tx.Exec(ctx, `UPDATE journal_entries SET reversal_of_id=$2, updated_at=NOW() WHERE id=$1`, reversalID, entryID)
	return err
}

// LockAccounts loads the accounts FOR UPDATE in ascending id order so that
// concurrent postings touching the same accounts acquire locks in a
// consistent order and cannot deadlock.
func (r *txRepository) LockAccounts(ctx context.Context, companyID int64, accountIDs []int64) (map[int64]Account, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+accountColumns+` FROM accounts
WHERE company_id=$1 AND id = ANY($2) ORDER BY id ASC FOR UPDATE`, companyID, accountIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	accounts := make(map[int64]Account, len(accountIDs))
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts[account.ID] = account
	}
	return accounts, rows.Err()
}

func (r *txRepository) ApplyBalanceDelta(ctx context.Context, accountID int64, delta decimal.Decimal) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE accounts SET balance = balance + $2, updated_at=NOW() WHERE id=$1`, accountID, delta.String())
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrUnknownAccount
	}
	return nil
}

func (r *txRepository) InsertAccount(ctx context.Context, in AccountInput) (Account, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO accounts (company_id, code, name, type, parent_id, balance, is_active)
VALUES ($1,$2,$3,$4,$5,0,TRUE) RETURNING `+accountColumns, in.CompanyID, in.Code, in.Name, in.Type, in.ParentID)
	account, err := scanAccount(row)
	if err != nil {
		if isUniqueViolation(err, "uq_accounts_company_code") {
			return Account{}, ErrDuplicateCode
		}
		return Account{}, err
	}
	return account, nil
}

func (r *txRepository) GetAccountForUpdate(ctx context.Context, companyID, accountID int64) (Account, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE company_id=$1 AND id=$2 FOR UPDATE`, companyID, accountID)
	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, err
	}
	return account, nil
}

func (r *txRepository) AccountHasLines(ctx context.Context, accountID int64) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM journal_lines WHERE account_id=$1)`, accountID).Scan(&exists)
	return exists, err
}

func (r *txRepository) AccountHasChildren(ctx context.Context, accountID int64) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE parent_id=$1)`, accountID).Scan(&exists)
	return exists, err
}

func (r *txRepository) DeactivateAccount(ctx context.Context, accountID int64) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE accounts SET is_active=FALSE, updated_at=NOW() WHERE id=$1`, accountID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func nullUUID(id uuid.UUID) any {
	if id == uuid.Nil {
		return nil
	}
	return id
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && (constraint == "" || pgErr.ConstraintName == constraint)
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return false
}

// IsSerializationFailure reports whether the error is a transient
// transaction conflict worth retrying.
func IsSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}
