package ap

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/ledgerline/ledgerline/internal/ledger"
	"github.com/ledgerline/ledgerline/internal/platform/httpx"
	"github.com/ledgerline/ledgerline/internal/shared"
)

// Handler manages AP endpoints.
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
			{Err: ErrBillNotFound, Status: http.StatusNotFound, Title: "Not Found"},
			{Err: ErrBillClosed, Status: http.StatusConflict, Title: "Bill Closed"},
			{Err: ErrOverpayment, Status: http.StatusUnprocessableEntity, Title: "Overpayment"},
			{Err: ledger.ErrSourceAlreadyPosted, Status: http.StatusConflict, Title: "Already Posted"},
			{Err: ledger.ErrUnknownAccount, Status: http.StatusUnprocessableEntity, Title: "Unknown Account"},
			{Err: ledger.ErrAccountInactive, Status: http.StatusUnprocessableEntity, Title: "Inactive Account"},
			{Err: ledger.ErrValidation, Status: http.StatusBadRequest, Title: "Validation Failed"},
		},
	}
}

// MountRoutes registers AP routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/bills", h.listBills)
	r.Post("/bills", h.createBill)
	r.Get("/bills/{id}", h.getBill)
	r.Post("/bills/{id}/payments", h.recordPayment)
}

type billRequest struct {
	SupplierID       int64  `json:"supplier_id" validate:"required"`
	Number           string `json:"number" validate:"required"`
	Total            string `json:"total" validate:"required"`
	IssuedAt         string `json:"issued_at"`
	DueAt            string `json:"due_at"`
	PayableAccountID int64  `json:"payable_account_id" validate:"required"`
	ExpenseAccountID int64  `json:"expense_account_id" validate:"required"`
	ActorID          int64  `json:"actor_id"`
}

type paymentRequest struct {
	Amount        string `json:"amount" validate:"required"`
	PaidAt        string `json:"paid_at"`
	Method        string `json:"method"`
	Note          string `json:"note"`
	CashAccountID int64  `json:"cash_account_id" validate:"required"`
	ActorID       int64  `json:"actor_id"`
}

func (h *Handler) createBill(w http.ResponseWriter, r *http.Request) {
	companyID := shared.CompanyFromContext(r.Context())
	var req billRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	total, err := decimal.NewFromString(req.Total)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Amount", "total must be a decimal string")
		return
	}
	issuedAt, err := parseDate(req.IssuedAt)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Date", "issued_at must be YYYY-MM-DD")
		return
	}
	dueAt, err := parseDate(req.DueAt)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Date", "due_at must be YYYY-MM-DD")
		return
	}

	bill, err := h.service.CreateBill(r.Context(), BillInput{
		CompanyID:        companyID,
		SupplierID:       req.SupplierID,
		Number:           req.Number,
		Total:            total,
		IssuedAt:         issuedAt,
		DueAt:            dueAt,
		PayableAccountID: req.PayableAccountID,
		ExpenseAccountID: req.ExpenseAccountID,
		ActorID:          req.ActorID,
	})
	if err != nil {
		h.logger.Error("create bill", slog.Any("error", err), slog.Int64("company_id", companyID))
		h.errmap.Respond(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, bill)
}

func (h *Handler) getBill(w http.ResponseWriter, r *http.Request) {
	companyID := shared.CompanyFromContext(r.Context())
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "bill id must be numeric")
		return
	}
	bill, err := h.service.GetBill(r.Context(), companyID, id)
	if err != nil {
		h.errmap.Respond(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, bill)
}

func (h *Handler) listBills(w http.ResponseWriter, r *http.Request) {
	companyID := shared.CompanyFromContext(r.Context())
	bills, err := h.service.ListBills(r.Context(), companyID)
	if err != nil {
		h.logger.Error("list bills", slog.Any("error", err), slog.Int64("company_id", companyID))
		h.errmap.Respond(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"bills": bills})
}

func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	companyID := shared.CompanyFromContext(r.Context())
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "bill id must be numeric")
		return
	}
	var req paymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Amount", "amount must be a decimal string")
		return
	}
	paidAt, err := parseDate(req.PaidAt)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Date", "paid_at must be YYYY-MM-DD")
		return
	}

	payment, err := h.service.RecordPayment(r.Context(), PaymentInput{
		CompanyID:     companyID,
		BillID:        id,
		Amount:        amount,
		PaidAt:        paidAt,
		Method:        req.Method,
		Note:          req.Note,
		CashAccountID: req.CashAccountID,
		ActorID:       req.ActorID,
	})
	if err != nil {
		h.logger.Error("record payment", slog.Any("error", err), slog.Int64("bill_id", id))
		h.errmap.Respond(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, payment)
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", s)
}
