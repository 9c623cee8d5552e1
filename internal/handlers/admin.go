package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"

	"github.com/alextreichler/mayajewelry/internal/auth"
	"github.com/alextreichler/mayajewelry/internal/models"
	"github.com/alextreichler/mayajewelry/internal/store"
)

// AdminHandler serves the admin session endpoints and the order book.
type AdminHandler struct {
	Store store.Storage
	Auth  *auth.Authenticator
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// decodeLogin reads credentials from a JSON body, falling back to form
// encoding for non-JSON requests.
func decodeLogin(w http.ResponseWriter, r *http.Request) (loginRequest, error) {
	var req loginRequest
	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/json" {
		err := json.NewDecoder(r.Body).Decode(&req)
		return req, err
	}
	if err := r.ParseForm(); err != nil {
		return req, err
	}
	req.Username = r.PostFormValue("username")
	req.Password = r.PostFormValue("password")
	return req, nil
}

func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	req, err := decodeLogin(w, r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := models.Struct(req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	user, err := h.Auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			loginAttempts.WithLabelValues("rejected").Inc()
			slog.Warn("Failed admin login", "username", req.Username, "ip", clientIP(r))
			writeMessage(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		loginAttempts.WithLabelValues("error").Inc()
		writeError(w, r, http.StatusInternalServerError, "An error occurred during login", err)
		return
	}

	if err := h.Auth.Begin(w, r, user); err != nil {
		loginAttempts.WithLabelValues("error").Inc()
		writeError(w, r, http.StatusInternalServerError, "An error occurred during login", err)
		return
	}
	loginAttempts.WithLabelValues("accepted").Inc()
	slog.Info("Admin logged in", "username", user.Username)
	writeMessage(w, http.StatusOK, "Login successful")
}

func (h *AdminHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.Auth.End(w, r); err != nil {
		writeError(w, r, http.StatusInternalServerError, "Failed to logout", err)
		return
	}
	writeMessage(w, http.StatusOK, "Logged out successfully")
}

// CurrentUser reports who the session belongs to.
func (h *AdminHandler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	id, err := h.Auth.Current(r)
	if err != nil {
		writeMessage(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	writeJSON(w, http.StatusOK, id)
}
