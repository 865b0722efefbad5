package handler

import (
	"net/http"
	"net/mail"
	"time"
	"unicode/utf8"

	"github.com/averlane/storefront/internal/domain/user"
)

const minPasswordLength = 8

type registerRequest struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID        int64     `json:"id"`
	FullName  string    `json:"full_name"`
	Email     string    `json:"email"`
	Contact   string    `json:"contact,omitempty"`
	Address   string    `json:"address,omitempty"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	IsActive  bool      `json:"is_active"`
	IsAdmin   bool      `json:"is_admin"`
	CreatedAt time.Time `json:"created_at"`
}

func toUserResponse(u *user.User) userResponse {
	return userResponse{
		ID:        u.ID,
		FullName:  u.FullName,
		Email:     u.Email,
		Contact:   u.Contact,
		Address:   u.Address,
		AvatarURL: u.AvatarURL,
		IsActive:  u.IsActive,
		IsAdmin:   u.IsAdmin,
		CreatedAt: u.CreatedAt,
	}
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.FullName == "" {
		badRequest(w, "full_name is required")
		return
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		badRequest(w, "invalid email address")
		return
	}
	if utf8.RuneCountInString(req.Password) < minPasswordLength {
		badRequest(w, "password must be at least 8 characters")
		return
	}

	u, err := h.users.Register(r.Context(), req.FullName, req.Email, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserResponse(u))
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	UserID      int64  `json:"user_id"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	u, err := h.users.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	token, err := h.tokens.Sign(u.ID, u.Email)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken: token,
		TokenType:   "bearer",
		UserID:      u.ID,
	})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	u, _ := CurrentUser(r.Context())
	writeJSON(w, http.StatusOK, toUserResponse(u))
}

type profilePatchRequest struct {
	FullName  *string `json:"full_name"`
	Contact   *string `json:"contact"`
	Address   *string `json:"address"`
	AvatarURL *string `json:"avatar_url"`
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	u, _ := CurrentUser(r.Context())

	var req profilePatchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.FullName != nil && *req.FullName == "" {
		badRequest(w, "full_name cannot be empty")
		return
	}

	updated, err := h.users.UpdateProfile(r.Context(), u.ID, user.ProfilePatch{
		FullName:  req.FullName,
		Contact:   req.Contact,
		Address:   req.Address,
		AvatarURL: req.AvatarURL,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(updated))
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{
		Code:    http.StatusBadRequest,
		Message: msg,
	})
}
