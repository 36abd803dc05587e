package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/kesrow/constable/internal/auth"
	"github.com/kesrow/constable/internal/domain"
	"github.com/kesrow/constable/internal/metrics"
	"github.com/kesrow/constable/internal/service"
)

// AuthHandler handles registration, login and logout.
type AuthHandler struct {
	userService    *service.UserService
	sessionService *service.SessionService
	metrics        *metrics.Metrics
	logger         zerolog.Logger
}

// NewAuthHandler creates a new AuthHandler. metrics may be nil.
func NewAuthHandler(users *service.UserService, sessions *service.SessionService, m *metrics.Metrics, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		userService:    users,
		sessionService: sessions,
		metrics:        m,
		logger:         logger.With().Str("handler", "auth").Logger(),
	}
}

// RegisterRoutes registers the unauthenticated auth endpoints.
func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Post("/register", h.handleRegister)
	r.Post("/login", h.handleLogin)
}

// RegisterProtectedRoutes registers endpoints requiring a valid session.
func (h *AuthHandler) RegisterProtectedRoutes(r chi.Router) {
	r.Post("/logout", h.handleLogout)
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type registerResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

type loginResponse struct {
	Token     string `json:"token"`
	TokenType string `json:"token_type"`
	ExpiresIn int64  `json:"expires_in"`
}

func (h *AuthHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, domain.WrapError(domain.ErrInvalidCredentialFormat, "request body must be JSON with username and password"))
		return
	}

	user, err := h.userService.Register(r.Context(), service.RegisterInput{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	if h.metrics != nil {
		h.metrics.UsersRegisteredTotal.Inc()
	}

	writeJSON(w, http.StatusCreated, registerResponse{
		ID:       user.ID,
		Username: user.Username,
	})
}

func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, domain.ErrInvalidCredentials)
		return
	}

	user, err := h.userService.Verify(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out, err := h.sessionService.Issue(r.Context(), user)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if h.metrics != nil {
		h.metrics.TokensIssuedTotal.Inc()
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Token:     out.Token.ID,
		TokenType: "Bearer",
		ExpiresIn: int64(out.ExpiresIn / time.Second),
	})
}

func (h *AuthHandler) handleLogout(w http.ResponseWriter, r *http.Request) {
	token, ok := auth.TokenFromContext(r.Context())
	if !ok {
		writeError(w, r, domain.ErrUnauthenticated)
		return
	}

	if err := h.sessionService.Revoke(r.Context(), token); err != nil {
		writeError(w, r, err)
		return
	}

	if h.metrics != nil {
		h.metrics.TokensRevokedTotal.Inc()
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}
