package reports

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ledgerline/ledgerline/internal/platform/httpx"
	"github.com/ledgerline/ledgerline/internal/shared"
)

// Handler exposes the financial reports over HTTP. Dates arrive as
// YYYY-MM-DD query parameters; missing dates default to today.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/trial-balance", h.trialBalance)
	r.Get("/trial-balance.csv", h.trialBalanceCSV)
	r.Get("/balance-sheet", h.balanceSheet)
	r.Get("/profit-loss", h.profitAndLoss)
	r.Get("/aging/receivables", h.receivablesAging)
	r.Get("/aging/receivables.csv", h.receivablesAgingCSV)
	r.Get("/aging/payables", h.payablesAging)
	r.Get("/aging/payables.csv", h.payablesAgingCSV)
}

func (h *Handler) trialBalance(w http.ResponseWriter, r *http.Request) {
	companyID := shared.CompanyFromContext(r.Context())
	asOf, ok := h.dateParam(w, r, "as_of")
	if !ok {
		return
	}
	tb, err := h.service.TrialBalance(r.Context(), companyID, asOf)
	if err != nil {
		h.logger.Error("trial balance", slog.Any("error", err), slog.Int64("company_id", companyID))
		httpx.Problem(w, http.StatusInternalServerError, "Report Failed", "")
		return
	}
	httpx.JSON(w, http.StatusOK, tb)
}

func (h *Handler) trialBalanceCSV(w http.ResponseWriter, r *http.Request) {
	companyID := shared.CompanyFromContext(r.Context())
	asOf, ok := h.dateParam(w, r, "as_of")
	if !ok {
		return
	}
	tb, err := h.service.TrialBalance(r.Context(), companyID, asOf)
	if err != nil {
		h.logger.Error("trial balance export", slog.Any("error", err), slog.Int64("company_id", companyID))
		httpx.Problem(w, http.StatusInternalServerError, "Report Failed", "")
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="trial-balance-%s.csv"`, asOf.Format("2006-01-02")))
	if err := WriteTrialBalanceCSV(w, tb); err != nil {
		h.logger.Error("write trial balance csv", slog.Any("error", err))
	}
}

func (h *Handler) balanceSheet(w http.ResponseWriter, r *http.Request) {
	companyID := shared.CompanyFromContext(r.Context())
	asOf, ok := h.dateParam(w, r, "as_of")
	if !ok {
		return
	}
	bs, err := h.service.BalanceSheet(r.Context(), companyID, asOf)
	if err != nil {
		h.logger.Error("balance sheet", slog.Any("error", err), slog.Int64("company_id", companyID))
		httpx.Problem(w, http.StatusInternalServerError, "Report Failed", "")
		return
	}
	httpx.JSON(w, http.StatusOK, bs)
}

func (h *Handler) profitAndLoss(w http.ResponseWriter, r *http.Request) {
	companyID := shared.CompanyFromContext(r.Context())
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")
	if from == "" || to == "" {
		httpx.Problem(w, http.StatusBadRequest, "Missing Period", "from and to are required")
		return
	}
	fromDate, err := time.Parse("2006-01-02", from)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Date", "from must be YYYY-MM-DD")
		return
	}
	toDate, err := time.Parse("2006-01-02", to)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Date", "to must be YYYY-MM-DD")
		return
	}
	if toDate.Before(fromDate) {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Period", "to must not precede from")
		return
	}
	pl, err := h.service.ProfitAndLoss(r.Context(), companyID, fromDate, toDate)
	if err != nil {
		h.logger.Error("profit and loss", slog.Any("error", err), slog.Int64("company_id", companyID))
		httpx.Problem(w, http.StatusInternalServerError, "Report Failed", "")
		return
	}
	httpx.JSON(w, http.StatusOK, pl)
}

func (h *Handler) receivablesAging(w http.ResponseWriter, r *http.Request) {
	h.aging(w, r, h.service.ReceivablesAging)
}

func (h *Handler) payablesAging(w http.ResponseWriter, r *http.Request) {
	h.aging(w, r, h.service.PayablesAging)
}

func (h *Handler) receivablesAgingCSV(w http.ResponseWriter, r *http.Request) {
	h.agingCSV(w, r, "receivables", h.service.ReceivablesAging)
}

func (h *Handler) payablesAgingCSV(w http.ResponseWriter, r *http.Request) {
	h.agingCSV(w, r, "payables", h.service.PayablesAging)
}

func (h *Handler) agingCSV(w http.ResponseWriter, r *http.Request, name string,
	build func(ctx context.Context, companyID int64, asOf time.Time) (AgingSchedule, error)) {
	companyID := shared.CompanyFromContext(r.Context())
	asOf, ok := h.dateParam(w, r, "as_of")
	if !ok {
		return
	}
	schedule, err := build(r.Context(), companyID, asOf)
	if err != nil {
		h.logger.Error("aging export", slog.Any("error", err), slog.Int64("company_id", companyID))
		httpx.Problem(w, http.StatusInternalServerError, "Report Failed", "")
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="aging-%s-%s.csv"`, name, asOf.Format("2006-01-02")))
	if err := WriteAgingCSV(w, schedule); err != nil {
		h.logger.Error("write aging csv", slog.Any("error", err))
	}
}

func (h *Handler) aging(w http.ResponseWriter, r *http.Request,
	build func(ctx context.Context, companyID int64, asOf time.Time) (AgingSchedule, error)) {
	companyID := shared.CompanyFromContext(r.Context())
	asOf, ok := h.dateParam(w, r, "as_of")
	if !ok {
		return
	}
	schedule, err := build(r.Context(), companyID, asOf)
	if err != nil {
		h.logger.Error("aging report", slog.Any("error", err), slog.Int64("company_id", companyID))
		httpx.Problem(w, http.StatusInternalServerError, "Report Failed", "")
		return
	}
	httpx.JSON(w, http.StatusOK, schedule)
}

// dateParam reads a YYYY-MM-DD query value, defaulting to today.
func (h *Handler) dateParam(w http.ResponseWriter, r *http.Request, key string) (time.Time, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return time.Now(), true
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Date", key+" must be YYYY-MM-DD")
		return time.Time{}, false
	}
	return t, true
}
