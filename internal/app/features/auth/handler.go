// Package auth serves signup and login. Passwords are stored as bcrypt
// hashes; a successful login returns the bearer token the rest of the
// API (and the live socket handshake) authenticates with.
package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	userstore "github.com/driftware/drift/internal/app/store/users"
	sysauth "github.com/driftware/drift/internal/app/system/auth"
	"github.com/driftware/drift/internal/app/system/httpapi"
	"github.com/driftware/drift/internal/app/system/limits"
	"github.com/driftware/drift/internal/app/system/timeouts"
	"github.com/driftware/drift/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type Handler struct {
	users  *userstore.Store
	tokens *sysauth.Manager
	logger *zap.Logger
}

func NewHandler(db *mongo.Database, tokens *sysauth.Manager, logger *zap.Logger) *Handler {
	return &Handler{
		users:  userstore.New(db),
		tokens: tokens,
		logger: logger,
	}
}

type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// userView is the user shape returned to clients. The hash never
// leaves the store layer in any response.
type userView struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func viewOf(u models.User) userView {
	return userView{ID: u.ID.Hex(), Name: u.Name, Email: u.Email}
}

// Signup handles POST /auth/signup.
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	r.Body = http.MaxBytesReader(w, r.Body, limits.MaxJSONBodySize)
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpapi.BadRequest(w, "Malformed request body.")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Name == "" || req.Email == "" || !strings.Contains(req.Email, "@") {
		httpapi.BadRequest(w, "Name and a valid email are required.")
		return
	}
	if len(req.Password) < 8 {
		httpapi.BadRequest(w, "Password must be at least 8 characters.")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		httpapi.ServerError(w, h.logger, "password hash failed", err)
		return
	}

	user, err := h.users.Create(ctx, models.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: string(hash),
	})
	if err == userstore.ErrDuplicateEmail {
		httpapi.Conflict(w, "An account with this email already exists.")
		return
	}
	if err != nil {
		httpapi.ServerError(w, h.logger, "signup failed", err)
		return
	}

	h.logger.Info("user signed up", zap.String("user_id", user.ID.Hex()))
	httpapi.Success(w, http.StatusCreated, "Account created.", viewOf(user))
}

// Login handles POST /auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	r.Body = http.MaxBytesReader(w, r.Body, limits.MaxJSONBodySize)
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpapi.BadRequest(w, "Malformed request body.")
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	user, err := h.users.GetByEmail(ctx, req.Email)
	if err == mongo.ErrNoDocuments {
		httpapi.Unauthorized(w, "Invalid email or password.")
		return
	}
	if err != nil {
		httpapi.ServerError(w, h.logger, "login lookup failed", err)
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		httpapi.Unauthorized(w, "Invalid email or password.")
		return
	}

	token, err := h.tokens.Issue(user.ID)
	if err != nil {
		httpapi.ServerError(w, h.logger, "token issue failed", err)
		return
	}

	httpapi.Success(w, http.StatusOK, "Signed in.", map[string]interface{}{
		"token": token,
		"user":  viewOf(user),
	})
}
