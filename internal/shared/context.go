package shared

import (
	"context"
	"net/http"
	"strconv"
)

type contextKey string

const companyKey contextKey = "company"

// ContextWithCompany stores the tenant scope on the context.
func ContextWithCompany(ctx context.Context, companyID int64) context.Context {
	return context.WithValue(ctx, companyKey, companyID)
}

// CompanyFromContext returns the tenant scope, zero when absent.
func CompanyFromContext(ctx context.Context) int64 {
	if id, ok := ctx.Value(companyKey).(int64); ok {
		return id
	}
	return 0
}

// CompanyScope extracts the X-Company-ID header into the request context and
// rejects requests without a usable tenant scope.
func CompanyScope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get("X-Company-ID")
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			http.Error(w, "missing or invalid X-Company-ID header", http.StatusBadRequest)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithCompany(r.Context(), id)))
	})
}
