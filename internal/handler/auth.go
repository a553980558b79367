package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/civicfix/api/internal/config"
	"github.com/civicfix/api/internal/middleware"
	"github.com/civicfix/api/internal/model"
	"github.com/civicfix/api/internal/service"
)

// AuthHandler handles registration, login, logout, and the current-user lookup
type AuthHandler struct {
	authService *service.AuthService
	session     config.SessionConfig
	logger      *slog.Logger
}

// AuthHandlerConfig holds configuration for the auth handler
type AuthHandlerConfig struct {
	AuthService *service.AuthService
	Session     config.SessionConfig
	Logger      *slog.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(cfg AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		authService: cfg.AuthService,
		session:     cfg.Session,
		logger:      cfg.Logger,
	}
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerResponse struct {
	Message string      `json:"message"`
	User    *model.User `json:"user"`
}

// Register handles POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, model.NewBadRequestError("invalid request body"))
		return
	}

	result, err := h.authService.Register(r.Context(), service.RegisterRequest{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		WriteError(w, MapServiceError(err))
		return
	}

	h.setSessionCookie(w, result.Token)

	h.logger.Info("user registered", slog.String("username", result.User.Username))

	WriteJSON(w, http.StatusCreated, registerResponse{
		Message: "User registered successfully",
		User:    result.User,
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, model.NewBadRequestError("invalid request body"))
		return
	}

	result, err := h.authService.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		WriteError(w, MapServiceError(err))
		return
	}

	h.setSessionCookie(w, result.Token)

	h.logger.Info("user logged in", slog.String("username", result.User.Username))

	WriteMessage(w, http.StatusOK, "Logged in successfully")
}

// Logout handles POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(h.session.CookieName); err == nil && cookie.Value != "" {
		_ = h.authService.Logout(r.Context(), cookie.Value)
	}

	h.clearSessionCookie(w)

	WriteMessage(w, http.StatusOK, "Logged out successfully")
}

// CurrentUser handles GET /api/auth/user
func (h *AuthHandler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	if user == nil {
		WriteError(w, model.NewUnauthorizedError("not authenticated"))
		return
	}

	WriteJSON(w, http.StatusOK, user)
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.session.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.session.TTL.Seconds()),
		HttpOnly: true,
		Secure:   h.session.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.session.CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.session.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
