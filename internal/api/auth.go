package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/reedfamily/chatlog/internal/auth"
)

type operatorKey struct{}

func withOperator(ctx context.Context, u *auth.User) context.Context {
	return context.WithValue(ctx, operatorKey{}, u)
}

// operatorFrom returns the operator AuthMiddleware attached to the request.
func operatorFrom(ctx context.Context) (*auth.User, bool) {
	u, ok := ctx.Value(operatorKey{}).(*auth.User)
	return u, ok && u != nil
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthHandler signs operators in and out of the log viewer.
type AuthHandler struct {
	auth *auth.Service
}

func NewAuthHandler(svc *auth.Service) *AuthHandler {
	return &AuthHandler{auth: svc}
}

// Login answers with the bearer session; the token also opens /live as a
// query parameter.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var c credentials
	if err := decodeJSON(r, &c); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	c.Username = strings.TrimSpace(c.Username)
	if c.Username == "" || c.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password required")
		return
	}

	sess, err := h.auth.Login(r.Context(), c.Username, c.Password)
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	case err != nil:
		writeError(w, http.StatusInternalServerError, "failed to sign in")
	default:
		writeJSON(w, http.StatusOK, sess)
	}
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Logout(r.Context(), bearer(r)); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to sign out")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	u, ok := operatorFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	writeJSON(w, http.StatusOK, u)
}
