package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/averlane/storefront/internal/auth"
	"github.com/averlane/storefront/internal/domain/user"
)

// currentUserKey is the context key for the authenticated user.
type currentUserKey struct{}

// CurrentUser extracts the authenticated user from the request context.
func CurrentUser(ctx context.Context) (*user.User, bool) {
	u, ok := ctx.Value(currentUserKey{}).(*user.User)
	return u, ok
}

// requireUser authenticates the request via its Bearer token, loads the
// account, and stores it in the context. Missing or invalid credentials
// answer 401; deactivated accounts are treated as invalid.
func (h *Handler) requireUser(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, err := h.authenticate(r)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), currentUserKey{}, u)
		next(w, r.WithContext(ctx))
	})
}

// requireAdmin is requireUser plus an is_admin entitlement check.
func (h *Handler) requireAdmin(next http.HandlerFunc) http.Handler {
	return h.requireUser(func(w http.ResponseWriter, r *http.Request) {
		u, _ := CurrentUser(r.Context())
		if u == nil || !u.IsAdmin {
			h.writeError(w, r, errForbidden)
			return
		}
		next(w, r)
	})
}

func (h *Handler) authenticate(r *http.Request) (*user.User, error) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return nil, auth.ErrInvalidToken
	}

	claims, err := h.tokens.Verify(token)
	if err != nil {
		return nil, err
	}

	u, err := h.users.Get(r.Context(), claims.UserID)
	if err != nil {
		// The token outlived the account.
		return nil, auth.ErrInvalidToken
	}
	if !u.IsActive {
		return nil, auth.ErrInvalidToken
	}
	return u, nil
}
