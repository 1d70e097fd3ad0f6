package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/masapos/api/internal/auth"
	"github.com/sirupsen/logrus"
)

// AuthHandler handles the terminal login endpoint.
type AuthHandler struct {
	jwtSecret string
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(jwtSecret string) *AuthHandler {
	return &AuthHandler{jwtSecret: jwtSecret}
}

// RegisterRoutes registers auth endpoints on the given Chi router.
func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Post("/auth/login", h.Login)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string       `json:"access_token"`
	User        userResponse `json:"user"`
}

type userResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Login accepts any non-empty username and password. There is no user store;
// the token only carries who is acting so activity logs can name them.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "username and password are required"})
		return
	}

	token, err := auth.GenerateToken(h.jwtSecret, username, username)
	if err != nil {
		logrus.WithError(err).Error("generate token failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken: token,
		User:        userResponse{ID: username, Name: username},
	})
}
