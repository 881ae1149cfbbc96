package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	domain "identity/backend/internal/domain/account"
	authusecase "identity/backend/internal/usecase/auth"
	userusecase "identity/backend/internal/usecase/user"
)

// tokenCookie is the cookie carrying the session token.
const tokenCookie = "token"

// tokenCookieMaxAge matches the 3-day token validity.
const tokenCookieMaxAge = 3 * 24 * 60 * 60

func (s *Server) registerRoutes() {
	s.router.Handle("/health", http.HandlerFunc(s.handleHealth))
	s.router.Handle("/auth/register", http.HandlerFunc(s.handleRegister))
	s.router.Handle("/auth/login", http.HandlerFunc(s.handleLogin))

	authenticated := s.authMiddleware
	s.router.Handle("/auth/logout", authenticated(http.HandlerFunc(s.handleLogout)))
	s.router.Handle("/auth/self", authenticated(http.HandlerFunc(s.handleSelf)))
	s.router.Handle("/auth/verification/send", authenticated(http.HandlerFunc(s.handleVerificationSend)))
	s.router.Handle("/auth/verification/confirm", authenticated(http.HandlerFunc(s.handleVerificationConfirm)))

	admin := func(h http.Handler) http.Handler {
		return authenticated(s.requireVerified(s.requireRole(h, domain.RoleAdmin)))
	}
	s.router.Handle("/admin/accounts", admin(http.HandlerFunc(s.handleAdminAccounts)))
	s.router.Handle("/admin/accounts/", admin(http.HandlerFunc(s.handleAdminAccountByID)))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}

	var payload struct {
		Email     string `json:"email"`
		Password  string `json:"password"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	acc, err := s.authService.Register(r.Context(), authusecase.RegisterInput{
		Email:     payload.Email,
		Password:  payload.Password,
		FirstName: payload.FirstName,
		LastName:  payload.LastName,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrEmailExists):
			writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, domain.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			// Storage and hashing faults stay opaque to the client.
			writeError(w, http.StatusInternalServerError, "could not register account")
		}
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"user": acc})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}

	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	token, acc, err := s.authService.Login(r.Context(), domain.Credentials{
		Email:    payload.Email,
		Password: payload.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrAccountNotFound):
			writeError(w, http.StatusNotFound, "email not found")
		case errors.Is(err, domain.ErrInvalidCredentials):
			writeError(w, http.StatusUnauthorized, "invalid email or password")
		default:
			writeError(w, http.StatusInternalServerError, "login failed")
		}
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     tokenCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   tokenCookieMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   s.secureCookies,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"token": token,
		"user":  acc,
	})
}

// handleLogout clears the cookie. The token itself stays valid until its
// natural expiry; there is no server-side session to invalidate.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeMethodNotAllowed(w, http.MethodDelete)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     tokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   s.secureCookies,
	})
	writeJSON(w, http.StatusOK, map[string]string{"message": "logout successful"})
}

func (s *Server) handleSelf(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}

	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	acc, err := s.authService.CurrentAccount(r.Context(), claims)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
		} else {
			writeError(w, http.StatusInternalServerError, "could not load account")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"user": acc})
}

func (s *Server) handleVerificationSend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}

	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	if err := s.authService.SendVerificationEmail(r.Context(), claims.AccountID); err != nil {
		switch {
		case errors.Is(err, domain.ErrAccountNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, domain.ErrAlreadyVerified):
			writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, domain.ErrMailDelivery):
			writeError(w, http.StatusBadGateway, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "could not send verification email")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "verification email sent"})
}

func (s *Server) handleVerificationConfirm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}

	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var payload struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	if err := s.authService.VerifyEmail(r.Context(), claims.AccountID, payload.Code); err != nil {
		switch {
		case errors.Is(err, domain.ErrCodeInvalid):
			writeError(w, http.StatusUnauthorized, err.Error())
		case errors.Is(err, domain.ErrAccountNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "could not verify email")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "email verified"})
}

func (s *Server) handleAdminAccounts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}

	accounts, err := s.userService.List(r.Context(), userusecase.Filter{
		Role: r.URL.Query().Get("role"),
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidRole) {
			writeError(w, http.StatusBadRequest, err.Error())
		} else {
			writeError(w, http.StatusInternalServerError, "could not list accounts")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"items": accounts})
}

func (s *Server) handleAdminAccountByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/admin/accounts/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "account id required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		acc, err := s.userService.Get(r.Context(), id)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrAccountNotFound):
				writeError(w, http.StatusNotFound, err.Error())
			case errors.Is(err, domain.ErrInvalidInput):
				writeError(w, http.StatusBadRequest, err.Error())
			default:
				writeError(w, http.StatusInternalServerError, "could not load account")
			}
			return
		}
		writeJSON(w, http.StatusOK, acc)
	case http.MethodDelete:
		if err := s.userService.Delete(r.Context(), id); err != nil {
			switch {
			case errors.Is(err, domain.ErrAccountNotFound):
				writeError(w, http.StatusNotFound, err.Error())
			case errors.Is(err, domain.ErrInvalidInput):
				writeError(w, http.StatusBadRequest, err.Error())
			default:
				writeError(w, http.StatusInternalServerError, "could not delete account")
			}
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeMethodNotAllowed(w, http.MethodGet, http.MethodDelete)
	}
}
