package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

// AdminKeyAuth guards the admin surface with static keys.
//
// When keys are configured, every mutating request under /api/v1 must carry
// one of them via:
//   - Authorization: Bearer <key>
//   - X-API-Key: <key>
//
// Reads and prompt assembly stay open: they are called by the coaching
// services on every turn.
type AdminKeyAuth struct {
	keys [][]byte
}

// NewAdminKeyAuth builds the guard. Blank keys are ignored; no keys
// disables it.
func NewAdminKeyAuth(keys []string) *AdminKeyAuth {
	a := &AdminKeyAuth{}
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			a.keys = append(a.keys, []byte(k))
		}
	}
	return a
}

// Enabled reports whether any key is configured.
func (a *AdminKeyAuth) Enabled() bool { return len(a.keys) > 0 }

// Middleware enforces the guard.
func (a *AdminKeyAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.Enabled() || !isAdminWrite(r) {
			next.ServeHTTP(w, r)
			return
		}

		key := extractAPIKey(r)
		if key == "" {
			respondUnauthorized(w, "Admin key required. Set Authorization: Bearer <key> or X-API-Key header.")
			return
		}
		if !a.valid(key) {
			respondUnauthorized(w, "Invalid admin key.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *AdminKeyAuth) valid(candidate string) bool {
	ok := false
	for _, k := range a.keys {
		if subtle.ConstantTimeCompare([]byte(candidate), k) == 1 {
			ok = true
		}
	}
	return ok
}

func isAdminWrite(r *http.Request) bool {
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	}
	if !strings.HasPrefix(r.URL.Path, "/api/v1/") {
		return false
	}
	return r.URL.Path != "/api/v1/prompts/assemble"
}

func extractAPIKey(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return r.Header.Get("X-API-Key")
}

func respondUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="promptplane"`)
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{
		"error":   "unauthorized",
		"message": msg,
	})
}
