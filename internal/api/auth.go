package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/ternchat/tern/internal/user"
)

// authHandler serves registration, login, and profile lookup.
type authHandler struct {
	users  UserDirectory
	logger *slog.Logger
}

type registerRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type loginRequest struct {
	// Login accepts a username or an email; a single field serves both.
	Login    string `json:"username"`
	Password string `json:"password"`
}

// credentialsPayload is the data envelope for register and login.
type credentialsPayload struct {
	Token string     `json:"token"`
	User  *user.User `json:"user"`
}

func (h *authHandler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if errs := validateRegister(req); len(errs) > 0 {
		writeValidationError(w, errs)
		return
	}

	u, token, err := h.users.Register(r.Context(), user.RegisterParams{
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		if errors.Is(err, user.ErrDuplicate) {
			writeError(w, http.StatusConflict, "User with this username or email already exists")
			return
		}
		h.logger.Error("registration failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeSuccess(w, http.StatusCreated, "User registered successfully", credentialsPayload{
		Token: token,
		User:  u,
	})
}

func (h *authHandler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if errs := validateLogin(req); len(errs) > 0 {
		writeValidationError(w, errs)
		return
	}

	u, token, err := h.users.Login(r.Context(), req.Login, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, user.ErrInvalidCredentials):
			writeError(w, http.StatusUnauthorized, "Invalid credentials")
		case errors.Is(err, user.ErrDeactivated):
			writeError(w, http.StatusUnauthorized, "Account is deactivated")
		default:
			h.logger.Error("login failed", "error", err)
			writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	writeSuccess(w, http.StatusOK, "Login successful", credentialsPayload{
		Token: token,
		User:  u,
	})
}

func (h *authHandler) me(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(r)
	if !ok {
		writeError(w, http.StatusForbidden, "Invalid token.")
		return
	}

	u, err := h.users.Profile(r.Context(), userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		h.logger.Error("profile lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeSuccess(w, http.StatusOK, "", map[string]any{"user": u})
}
