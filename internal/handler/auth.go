package handler

import (
	"net/http"

	"github.com/sakif/soundscape/internal/auth"
	"github.com/sakif/soundscape/internal/model"
	"github.com/sakif/soundscape/internal/service"
)

// AuthHandler exposes account and session endpoints.
//
// HANDLER RESPONSIBILITIES:
//   - HandleRegister / HandleLogin     → email + password accounts
//   - HandleGoogle                     → federated sign-in (ID token or code)
//   - HandleMe                         → the signed-in user's profile
//   - HandlePreferences / HandleEmail  → profile updates
//   - HandleForgotPassword / HandleResetPassword / HandleVerifyEmail
//
// Sessions are bearer tokens returned in the body; the client stores them and
// sends "Authorization: Bearer <token>". Nothing is kept server-side.
type AuthHandler struct {
	auth *service.AuthService
}

func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: authService}
}

// --- request / response DTOs ---

type registerRequest struct {
	Name     string   `json:"name"`
	Email    string   `json:"email"`
	Password string   `json:"password"`
	Genres   []string `json:"genres"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type googleRequest struct {
	Credential string `json:"credential"`
	Code       string `json:"code"`
}

type preferencesRequest struct {
	Genres *[]string `json:"genres"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	Password    string `json:"password"`
	NewPassword string `json:"newPassword"` // accepted as an alias of password
}

// SessionResponse is returned by every endpoint that signs a user in.
type SessionResponse struct {
	Message string           `json:"message,omitempty"`
	User    model.PublicUser `json:"user"`
	Token   string           `json:"token"`
}

// UserResponse wraps a user profile.
type UserResponse struct {
	Message string           `json:"message,omitempty"`
	User    model.PublicUser `json:"user"`
}

func sessionResponse(res *service.AuthResult) SessionResponse {
	return SessionResponse{User: res.User.Public(), Token: res.Token}
}

// HandleRegister creates an account.
//
// HTTP: POST /api/auth/register
// REQUEST BODY: {"name": "...", "email": "...", "password": "...", "genres": ["Rock"]}
// RESPONSE: 201 {"user": {...}, "token": "..."}
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.auth.Register(r.Context(), service.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Genres:   req.Genres,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse(res))
}

// HandleLogin signs in with email + password.
//
// HTTP: POST /api/auth/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse(res))
}

// HandleGoogle signs in with a Google ID token ("credential", from the
// browser button) or an authorization "code".
//
// HTTP: POST /api/auth/google
func (h *AuthHandler) HandleGoogle(w http.ResponseWriter, r *http.Request) {
	var req googleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.auth.FederatedSignIn(r.Context(), service.FederatedInput{
		Credential: req.Credential,
		Code:       req.Code,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse(res))
}

// HandleMe returns the signed-in user.
//
// HTTP: GET /api/auth/me (requires auth)
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, err := h.auth.GetCurrentUser(r.Context(), auth.SessionFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, UserResponse{User: user.Public()})
}

// HandlePreferences replaces the user's genres.
//
// HTTP: PUT /api/auth/preferences (requires auth)
// REQUEST BODY: {"genres": ["Rock", "Hip-Hop"]}
func (h *AuthHandler) HandlePreferences(w http.ResponseWriter, r *http.Request) {
	user, ok := updatePreferences(w, r, h.auth)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, UserResponse{User: user.Public()})
}

// updatePreferences is shared by both preference routes so they store
// genres the same way.
func updatePreferences(w http.ResponseWriter, r *http.Request, authService *service.AuthService) (*model.User, bool) {
	var req preferencesRequest
	if err := decodeBody(w, r, &req); err != nil || req.Genres == nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "Genres must be an array of strings",
		})
		return nil, false
	}

	user, err := authService.UpdatePreferences(r.Context(), auth.SessionFromContext(r.Context()), *req.Genres)
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}
	return user, true
}

// HandleEmail changes the account email; the new address must be verified.
//
// HTTP: PUT /api/auth/email (requires auth)
func (h *AuthHandler) HandleEmail(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.auth.UpdateEmail(r.Context(), auth.SessionFromContext(r.Context()), req.Email)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, UserResponse{User: user.Public()})
}

// HandleForgotPassword always answers with the same message so it cannot be
// used to probe which emails are registered.
//
// HTTP: POST /api/auth/forgot-password
func (h *AuthHandler) HandleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	msg, err := h.auth.RequestPasswordReset(r.Context(), req.Email)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: msg})
}

// HandleResetPassword consumes a reset token and signs the user in.
//
// HTTP: POST /api/auth/reset-password
// REQUEST BODY: {"token": "...", "password": "..."}
func (h *AuthHandler) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	password := req.Password
	if password == "" {
		password = req.NewPassword
	}

	res, err := h.auth.ResetPassword(r.Context(), req.Token, password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := sessionResponse(res)
	resp.Message = service.MsgPasswordReset
	writeJSON(w, http.StatusOK, resp)
}

// HandleVerifyEmail confirms an email address from the link in the
// verification mail.
//
// HTTP: GET /api/auth/verify-email?token=...
func (h *AuthHandler) HandleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	msg, err := h.auth.VerifyEmail(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: msg})
}
