package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"resto/internal/models"
	"resto/internal/store"
)

type authContextKey struct{}

// Claims is the authenticated caller. Handlers take the tenant from here and
// never from the request.
type Claims struct {
	SessionID string
	UserID    string
	TenantID  string
	Role      string
	Name      string
}

func (c Claims) Actor() models.Actor {
	return models.Actor{ID: c.UserID, Name: c.Name, Role: c.Role}
}

func (c Claims) Session() models.Session {
	return models.Session{SessionID: c.SessionID, UserID: c.UserID, TenantID: c.TenantID, Role: c.Role, Name: c.Name}
}

func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID := sessionIDFromRequest(r)
		if sessionID == "" {
			writeError(w, r, http.StatusUnauthorized, "unauthorized", "missing session")
			return
		}
		session, err := h.svc.Authenticate(r.Context(), sessionID)
		if err != nil {
			if errors.Is(err, store.ErrSessionNotFound) {
				writeError(w, r, http.StatusUnauthorized, "unauthorized", "invalid session")
				return
			}
			writeServiceError(w, r, err)
			return
		}
		if session.TenantID == "" {
			writeError(w, r, http.StatusForbidden, "forbidden", "session has no tenant")
			return
		}
		claims := Claims{
			SessionID: session.SessionID,
			UserID:    session.UserID,
			TenantID:  session.TenantID,
			Role:      session.Role,
			Name:      session.Name,
		}
		if fields := logFieldsFromContext(r.Context()); fields != nil {
			fields.tenantID = claims.TenantID
		}
		ctx := context.WithValue(r.Context(), authContextKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func claimsFromContext(ctx context.Context) (Claims, bool) {
	claims, ok := ctx.Value(authContextKey{}).(Claims)
	return claims, ok
}

// mustClaims is for handlers mounted behind authenticate.
func mustClaims(w http.ResponseWriter, r *http.Request) (Claims, bool) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "unauthorized", "missing session")
		return Claims{}, false
	}
	return claims, true
}

func requireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := mustClaims(w, r)
			if !ok {
				return
			}
			if !contains(roles, claims.Role) {
				writeError(w, r, http.StatusForbidden, "forbidden", "insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func contains(values []string, value string) bool {
	for _, item := range values {
		if item == value {
			return true
		}
	}
	return false
}

func sessionIDFromRequest(r *http.Request) string {
	if token := bearerToken(r.Header.Get("Authorization")); token != "" {
		return token
	}
	return strings.TrimSpace(r.Header.Get("X-Session-ID"))
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.Fields(header)
	if len(parts) != 2 {
		return ""
	}
	if strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return parts[1]
}
