package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mtan/parley/internal/auth"
	"github.com/mtan/parley/internal/middleware"
	"github.com/mtan/parley/internal/store"
	log "github.com/sirupsen/logrus"
)

type AuthHandler struct {
	Auth *auth.Service
}

type SignupRequest struct {
	Uname   string `json:"uname"`
	Pw      string `json:"pw"`
	Email   string `json:"email"`
	Img     string `json:"img"`
	Bio     string `json:"bio"`
	Setting string `json:"setting"`
}

type LoginRequest struct {
	Uname string `json:"uname"`
	Pw    string `json:"pw"`
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.Auth.Signup(r.Context(), req.Uname, req.Pw, auth.Profile{
		Email:   req.Email,
		Img:     req.Img,
		Bio:     req.Bio,
		Setting: req.Setting,
	})
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrMissingFields):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, store.ErrDuplicateUser):
			writeError(w, http.StatusBadRequest, "user already exists")
		default:
			log.WithError(err).Error("signup failed")
			writeError(w, http.StatusBadRequest, "signup failed")
		}
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid request body"})
		return
	}

	user, token, err := h.Auth.Login(r.Context(), req.Uname, req.Pw)
	if err != nil {
		if !errors.Is(err, auth.ErrInvalidCredentials) {
			log.WithError(err).Error("login failed")
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid username or password"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"user": user, "token": token})
}

// Me returns the caller's identity when a valid bearer token is presented.
// It backs the GET / liveness and identity check.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFrom(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Error("failed to write response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
