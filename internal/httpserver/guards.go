package httpserver

import (
	"context"
	"net/http"

	domain "identity/backend/internal/domain/account"
	authusecase "identity/backend/internal/usecase/auth"
)

type ctxKeyClaims struct{}

// authMiddleware authenticates the request from the token cookie and stores
// the session claims in the request context.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(tokenCookie)
		if err != nil || cookie.Value == "" {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		claims, err := s.authService.ValidateToken(cookie.Value)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeyClaims{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireVerified refuses authenticated callers whose email is not verified.
// Must run after authMiddleware.
func (s *Server) requireVerified(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := claimsFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		if !claims.Verified {
			writeError(w, http.StatusForbidden, domain.ErrNotVerified.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireRole refuses callers whose role is not in the allowed set. Must run
// after authMiddleware.
func (s *Server) requireRole(next http.Handler, roles ...domain.Role) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := claimsFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		for _, role := range roles {
			if claims.Role == role {
				next.ServeHTTP(w, r)
				return
			}
		}
		writeError(w, http.StatusForbidden, domain.ErrRoleNotAllowed.Error())
	})
}

func claimsFromContext(ctx context.Context) (authusecase.SessionClaims, bool) {
	claims, ok := ctx.Value(ctxKeyClaims{}).(authusecase.SessionClaims)
	return claims, ok
}
