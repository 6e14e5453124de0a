package middleware

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const (
	// TenantIDKey is the context key for the tenant ID.
	TenantIDKey contextKey = "tenant_id"
	// UserIDKey is the context key for the end user the request acts for.
	UserIDKey contextKey = "user_id"
	// ActorKey is the context key for the admin actor recorded in audit fields.
	ActorKey contextKey = "actor"
)

// TenantExtractor extracts tenant, user and actor from the request.
// The tenant comes from the X-Tenant-Id header, then the tenant query
// parameter, and falls back to "default".
func TenantExtractor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenant := strings.TrimSpace(r.Header.Get("X-Tenant-Id"))
		if tenant == "" {
			tenant = strings.TrimSpace(r.URL.Query().Get("tenant"))
		}
		if tenant == "" {
			tenant = "default"
		}

		ctx := context.WithValue(r.Context(), TenantIDKey, tenant)
		if u := strings.TrimSpace(r.Header.Get("X-User-Id")); u != "" {
			ctx = context.WithValue(ctx, UserIDKey, u)
		}
		if a := strings.TrimSpace(r.Header.Get("X-Actor")); a != "" {
			ctx = context.WithValue(ctx, ActorKey, a)
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetTenantID retrieves the tenant ID from the request context.
func GetTenantID(ctx context.Context) string {
	if v, ok := ctx.Value(TenantIDKey).(string); ok {
		return v
	}
	return "default"
}

// GetUserID retrieves the end user ID, empty when the request named none.
func GetUserID(ctx context.Context) string {
	v, _ := ctx.Value(UserIDKey).(string)
	return v
}

// GetActor retrieves the admin actor, "anonymous" when unset.
func GetActor(ctx context.Context) string {
	if v, ok := ctx.Value(ActorKey).(string); ok {
		return v
	}
	return "anonymous"
}
