package ledger

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ledgerline/ledgerline/internal/platform/httpx"
	"github.com/ledgerline/ledgerline/internal/shared"
)

// Handler exposes the chart of accounts and journal entry lifecycle over
// HTTP.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	errmap   httpx.StatusMapper
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(),
		errmap: httpx.StatusMapper{
			{Err: ErrEntryNotFound, Status: http.StatusNotFound, Title: "Not Found"},
			{Err: ErrAccountNotFound, Status: http.StatusNotFound, Title: "Not Found"},
			{Err: ErrValidation, Status: http.StatusBadRequest, Title: "Validation Failed"},
			{Err: ErrTooFewLines, Status: http.StatusBadRequest, Title: "Validation Failed"},
			{Err: ErrUnbalanced, Status: http.StatusUnprocessableEntity, Title: "Unbalanced Entry"},
			{Err: ErrEntryNotDraft, Status: http.StatusConflict, Title: "Not a Draft"},
			{Err: ErrAlreadyPosted, Status: http.StatusConflict, Title: "Already Posted"},
			{Err: ErrNotPosted, Status: http.StatusConflict, Title: "Not Posted"},
			{Err: ErrAlreadyReversed, Status: http.StatusConflict, Title: "Already Reversed"},
			{Err: ErrUnknownAccount, Status: http.StatusUnprocessableEntity, Title: "Unknown Account"},
			{Err: ErrAccountInactive, Status: http.StatusUnprocessableEntity, Title: "Inactive Account"},
			{Err: ErrDuplicateCode, Status: http.StatusConflict, Title: "Duplicate Code"},
			{Err: ErrInvalidParent, Status: http.StatusUnprocessableEntity, Title: "Invalid Parent"},
			{Err: ErrAccountHasActivity, Status: http.StatusConflict, Title: "Account Has Activity"},
			{Err: ErrAccountHasChildren, Status: http.StatusConflict, Title: "Account Has Children"},
			{Err: ErrSourceAlreadyPosted, Status: http.StatusConflict, Title: "Already Posted"},
			{Err: ErrConcurrencyConflict, Status: http.StatusConflict, Title: "Concurrent Posting"},
		},
	}
}

// MountRoutes registers ledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/accounts", func(r chi.Router) {
		r.Get("/", h.listAccounts)
		r.Post("/", h.createAccount)
		r.Get("/{id}", h.getAccount)
		r.Post("/{id}/deactivate", h.deactivateAccount)
		r.Get("/{id}/balance", h.getBalance)
		r.Get("/{id}/ledger", h.getAccountLedger)
		r.Get("/{id}/reconcile", h.reconcile)
	})
	r.Route("/entries", func(r chi.Router) {
		r.Get("/", h.listEntries)
		r.Post("/", h.createDraft)
		r.Get("/{id}", h.getEntry)
		r.Put("/{id}/lines", h.replaceLines)
		r.Delete("/{id}", h.deleteDraft)
		r.Post("/{id}/post", h.postEntry)
		r.Post("/{id}/cancel", h.cancelEntry)
	})
}

type accountRequest struct {
	Code     string `json:"code" validate:"required"`
	Name     string `json:"name" validate:"required"`
	Type     string `json:"type" validate:"required,oneof=ASSET LIABILITY EQUITY REVENUE EXPENSE"`
	ParentID *int64 `json:"parent_id"`
}

type lineRequest struct {
	AccountID   int64  `json:"account_id" validate:"required"`
	Debit       string `json:"debit"`
	Credit      string `json:"credit"`
	Description string `json:"description"`
}

type draftRequest struct {
	Date         string        `json:"date" validate:"required"`
	Description  string        `json:"description"`
	SourceModule string        `json:"source_module"`
	SourceID     string        `json:"source_id"`
	ActorID      int64         `json:"actor_id"`
	Lines        []lineRequest `json:"lines" validate:"required,min=2,dive"`
}

type replaceLinesRequest struct {
	Lines   []lineRequest `json:"lines" validate:"required,min=2,dive"`
	ActorID int64         `json:"actor_id"`
}

type cancelRequest struct {
	Reason  string `json:"reason"`
	ActorID int64  `json:"actor_id"`
}

type postRequest struct {
	ActorID int64 `json:"actor_id"`
}

func (h *Handler) createAccount(w http.ResponseWriter, r *http.Request) {
	companyID := shared.CompanyFromContext(r.Context())
	var req accountRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	account, err := h.service.CreateAccount(r.Context(), AccountInput{
		CompanyID: companyID,
		Code:      req.Code,
		Name:      req.Name,
		Type:      AccountType(req.Type),
		ParentID:  req.ParentID,
	})
	if err != nil {
		h.logger.Error("create account", slog.Any("error", err), slog.Int64("company_id", companyID))
		h.errmap.Respond(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, account)
}

func (h *Handler) getAccount(w http.ResponseWriter, r *http.Request) {
	companyID := shared.CompanyFromContext(r.Context())
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	account, err := h.service.GetAccount(r.Context(), companyID, id)
	if err != nil {
		h.errmap.Respond(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, account)
}

func (h *Handler) listAccounts(w http.ResponseWriter, r *http.Request) {
	companyID := shared.CompanyFromContext(r.Context())
	accounts, err := h.service.ListAccounts(r.Context(), companyID)
	if err != nil {
		h.logger.Error("list accounts", slog.Any("error", err), slog.Int64("company_id", companyID))
		h.errmap.Respond(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"accounts": accounts})
}

func (h *Handler) deactivateAccount(w http.ResponseWriter, r *http.Request) {
	companyID := shared.CompanyFromContext(r.Context())
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req postRequest
	_ = httpx.DecodeJSON(r, &req)
	if err := h.service.DeactivateAccount(r.Context(), companyID, id, req.ActorID); err != nil {
		h.errmap.Respond(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getBalance(w http.ResponseWriter, r *http.Request) {
	companyID := shared.CompanyFromContext(r.Context())
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	asOf, err := queryTime(r, "as_of")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Date", "as_of must be YYYY-MM-DD")
		return
	}
	balance, err := h.service.GetBalance(r.Context(), companyID, id, asOf)
	if err != nil {
		h.errmap.Respond(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"account_id": id, "balance": balance})
}

func (h *Handler) getAccountLedger(w http.ResponseWriter, r *http.Request) {
	companyID := shared.CompanyFromContext(r.Context())
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	from, err := queryTime(r, "from")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Date", "from must be YYYY-MM-DD")
		return
	}
	to, err := queryTime(r, "to")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Date", "to must be YYYY-MM-DD")
		return
	}
	ledger, err := h.service.GetAccountLedger(r.Context(), companyID, id, from, to)
	if err != nil {
		h.errmap.Respond(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ledger)
}

func (h *Handler) reconcile(w http.ResponseWriter, r *http.Request) {
	companyID := shared.CompanyFromContext(r.Context())
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	result, err := h.service.Reconcile(r.Context(), companyID, id)
	if err != nil {
		h.errmap.Respond(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) createDraft(w http.ResponseWriter, r *http.Request) {
	companyID := shared.CompanyFromContext(r.Context())
	var req draftRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input, err := h.draftInput(companyID, req)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	entry, err := h.service.CreateDraft(r.Context(), input)
	if err != nil {
		h.logger.Error("create draft", slog.Any("error", err), slog.Int64("company_id", companyID))
		h.errmap.Respond(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

func (h *Handler) getEntry(w http.ResponseWriter, r *http.Request) {
	companyID := shared.CompanyFromContext(r.Context())
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	entry, err := h.service.GetEntry(r.Context(), companyID, id)
	if err != nil {
		h.errmap.Respond(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) listEntries(w http.ResponseWriter, r *http.Request) {
	companyID := shared.CompanyFromContext(r.Context())
	limit, offset := shared.PageParams(r)
	entries, total, err := h.service.ListEntries(r.Context(), companyID, limit, offset)
	if err != nil {
		h.logger.Error("list entries", slog.Any("error", err), slog.Int64("company_id", companyID))
		h.errmap.Respond(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"entries":    entries,
		"pagination": shared.NewPagination(offset/limit+1, limit, total),
	})
}

func (h *Handler) replaceLines(w http.ResponseWriter, r *http.Request) {
	companyID := shared.CompanyFromContext(r.Context())
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req replaceLinesRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	lines, err := parseLines(req.Lines)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Amount", err.Error())
		return
	}
	entry, err := h.service.ReplaceLines(r.Context(), companyID, id, lines)
	if err != nil {
		h.errmap.Respond(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) deleteDraft(w http.ResponseWriter, r *http.Request) {
	companyID := shared.CompanyFromContext(r.Context())
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteDraft(r.Context(), companyID, id); err != nil {
		h.errmap.Respond(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) postEntry(w http.ResponseWriter, r *http.Request) {
	companyID := shared.CompanyFromContext(r.Context())
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req postRequest
	_ = httpx.DecodeJSON(r, &req)
	entry, err := h.service.Post(r.Context(), companyID, id, req.ActorID)
	if err != nil {
		h.logger.Error("post entry", slog.Any("error", err), slog.Int64("entry_id", id))
		h.errmap.Respond(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) cancelEntry(w http.ResponseWriter, r *http.Request) {
	companyID := shared.CompanyFromContext(r.Context())
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req cancelRequest
	_ = httpx.DecodeJSON(r, &req)
	reversal, err := h.service.Cancel(r.Context(), CancelInput{
		CompanyID: companyID,
		EntryID:   id,
		ActorID:   req.ActorID,
		Reason:    req.Reason,
	})
	if err != nil {
		h.logger.Error("cancel entry", slog.Any("error", err), slog.Int64("entry_id", id))
		h.errmap.Respond(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, reversal)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "id must be numeric")
		return 0, false
	}
	return id, true
}

func (h *Handler) draftInput(companyID int64, req draftRequest) (DraftInput, error) {
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return DraftInput{}, err
	}
	lines, err := parseLines(req.Lines)
	if err != nil {
		return DraftInput{}, err
	}
	input := DraftInput{
		CompanyID:    companyID,
		Date:         date,
		Description:  req.Description,
		SourceModule: req.SourceModule,
		CreatedBy:    req.ActorID,
		Lines:        lines,
	}
	if req.SourceID != "" {
		if input.SourceID, err = uuid.Parse(req.SourceID); err != nil {
			return DraftInput{}, err
		}
	}
	return input, nil
}

func parseLines(reqs []lineRequest) ([]LineInput, error) {
	lines := make([]LineInput, 0, len(reqs))
	for _, lr := range reqs {
		line := LineInput{AccountID: lr.AccountID, Description: lr.Description}
		var err error
		if lr.Debit != "" {
			if line.Debit, err = decimal.NewFromString(lr.Debit); err != nil {
				return nil, err
			}
		}
		if lr.Credit != "" {
			if line.Credit, err = decimal.NewFromString(lr.Credit); err != nil {
				return nil, err
			}
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func queryTime(r *http.Request, key string) (*time.Time, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
