package transport

import (
	"errors"
	"net/http"

	"storefront/internal/domain"
	"storefront/internal/middleware"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// SignupRequest represents the signup request payload
type SignupRequest struct {
	Name      string `json:"name" validate:"required,max=50"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=6,max=72"`
	AdminCode string `json:"adminCode"`
}

// LoginRequest represents the login request payload
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// UpdateProfileRequest represents the profile update payload. Omitted fields stay unchanged.
type UpdateProfileRequest struct {
	Name  *string `json:"name" validate:"omitempty,max=50"`
	Email *string `json:"email" validate:"omitempty,email"`
}

// ChangePasswordRequest represents the password change payload
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=6,max=72"`
}

// SetStatusRequest represents the identity status payload
type SetStatusRequest struct {
	IsActive *bool `json:"is_active" validate:"required"`
}

// AuthResponse is returned by signup and login
type AuthResponse struct {
	Message string                 `json:"message"`
	Admin   domain.IdentitySummary `json:"admin"`
	Token   string                 `json:"token"`
}

// ProfileResponse is returned by profile updates
type ProfileResponse struct {
	Message string           `json:"message"`
	Admin   *domain.Identity `json:"admin"`
}

// MessageResponse carries a human readable confirmation
type MessageResponse struct {
	Message string `json:"message"`
}

// AdminHandler handles HTTP requests for administrator accounts
type AdminHandler struct {
	identities service.IdentityService
	logger     *zap.Logger
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(identities service.IdentityService, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		identities: identities,
		logger:     logger,
	}
}

// RegisterRoutes registers all admin routes. Signup and login are rate limited.
func (h *AdminHandler) RegisterRoutes(r chi.Router, authMiddleware, rateLimit func(http.Handler) http.Handler) {
	r.Route("/admin", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(rateLimit)
			r.Post("/signup", h.Signup)
			r.Post("/login", h.Login)
		})

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			r.Get("/profile", h.GetProfile)
			r.Put("/profile", h.UpdateProfile)
			r.Put("/change-password", h.ChangePassword)
			r.Post("/logout", h.Logout)

			r.With(middleware.RequireRole(h.logger, domain.RoleSuperAdmin)).
				Put("/identities/{id}/status", h.SetStatus)
		})
	})
}

// decode reads a JSON body into v and writes the error response when it fails
func (h *AdminHandler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	err := middleware.DecodeAndValidate(w, r, v)
	if err == nil {
		return true
	}

	h.logger.Debug("Request validation failed", zap.Error(err))
	if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
		middleware.RespondWithValidationErrors(w, validationErrors[0].Message, validationErrors)
		return false
	}
	if errors.Is(err, middleware.ErrMalformedBody) {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	writeServiceError(w, h.logger, err, "read request")
	return false
}

// Signup handles administrator registration
func (h *AdminHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if !h.decode(w, r, &req) {
		return
	}

	identity, tokenString, err := h.identities.Signup(r.Context(), domain.SignupInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	}, req.AdminCode)
	if err != nil {
		writeServiceError(w, h.logger, err, "create admin account")
		return
	}

	h.logger.Info("Admin account created", zap.String("identity_id", identity.ID.String()))
	middleware.RespondWithJSON(w, http.StatusCreated, AuthResponse{
		Message: "Admin account created successfully",
		Admin:   identity.Summary(),
		Token:   tokenString,
	})
}

// Login handles administrator authentication
func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.decode(w, r, &req) {
		return
	}

	identity, tokenString, err := h.identities.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.logger.Debug("Login failed", zap.Error(err))
		writeServiceError(w, h.logger, err, "login")
		return
	}

	h.logger.Info("Admin logged in", zap.String("identity_id", identity.ID.String()))
	middleware.RespondWithJSON(w, http.StatusOK, AuthResponse{
		Message: "Login successful",
		Admin:   identity.Summary(),
		Token:   tokenString,
	})
}

// GetProfile returns the authenticated identity
func (h *AdminHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, identity)
}

// UpdateProfile changes the name or email of the authenticated identity
func (h *AdminHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req UpdateProfileRequest
	if !h.decode(w, r, &req) {
		return
	}

	updated, err := h.identities.UpdateProfile(r.Context(), identity.ID, domain.ProfilePatch{
		Name:  req.Name,
		Email: req.Email,
	})
	if err != nil {
		writeServiceError(w, h.logger, err, "update profile")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, ProfileResponse{
		Message: "Profile updated successfully",
		Admin:   updated,
	})
}

// ChangePassword replaces the password of the authenticated identity
func (h *AdminHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req ChangePasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.identities.ChangePassword(r.Context(), identity.ID, req.CurrentPassword, req.NewPassword); err != nil {
		writeServiceError(w, h.logger, err, "change password")
		return
	}

	h.logger.Info("Password changed", zap.String("identity_id", identity.ID.String()))
	middleware.RespondWithJSON(w, http.StatusOK, MessageResponse{Message: "Password changed successfully"})
}

// Logout acknowledges a logout. Tokens are stateless and stay valid until
// they expire; the client discards its copy.
func (h *AdminHandler) Logout(w http.ResponseWriter, r *http.Request) {
	middleware.RespondWithJSON(w, http.StatusOK, MessageResponse{Message: "Logout successful"})
}

// SetStatus enables or disables another identity
func (h *AdminHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "identity")
	if err != nil {
		writeServiceError(w, h.logger, err, "update identity status")
		return
	}

	var req SetStatusRequest
	if !h.decode(w, r, &req) {
		return
	}

	identity, err := h.identities.SetActive(r.Context(), id, *req.IsActive)
	if err != nil {
		writeServiceError(w, h.logger, err, "update identity status")
		return
	}

	h.logger.Info("Identity status changed",
		zap.String("identity_id", identity.ID.String()),
		zap.Bool("is_active", identity.IsActive),
	)
	middleware.RespondWithJSON(w, http.StatusOK, identity)
}
