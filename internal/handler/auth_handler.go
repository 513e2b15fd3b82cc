package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"taskboard/internal/auth"
	"taskboard/internal/model"
	"taskboard/internal/repository"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

type AuthHandler struct {
	users    repository.UserRepositoryInterface
	profiles repository.ProfileRepositoryInterface
	tokens   *auth.TokenIssuer
	log      *slog.Logger
}

func NewAuthHandler(
	users repository.UserRepositoryInterface,
	profiles repository.ProfileRepositoryInterface,
	tokens *auth.TokenIssuer,
	log *slog.Logger,
) *AuthHandler {
	return &AuthHandler{users: users, profiles: profiles, tokens: tokens, log: log}
}

type RegisterRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=6"`
	DisplayName string `json:"display_name"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse is returned by sign-up, sign-in and the session check.
// Token is empty for the session check.
type AuthResponse struct {
	Token   string         `json:"token,omitempty"`
	User    model.User     `json:"user"`
	Profile *model.Profile `json:"profile,omitempty"`
}

// SignUp creates the account. The profile is created with it, by the repository,
// in the same transaction.
func (h *AuthHandler) SignUp(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Hash error"})
		return
	}

	user := &model.User{
		Email:          email,
		HashedPassword: string(hash),
	}
	profile := &model.Profile{DisplayName: strings.TrimSpace(req.DisplayName)}

	if err := h.users.Register(c.Request.Context(), user, profile); err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			c.JSON(http.StatusConflict, gin.H{"error": "User with this email already exists"})
			return
		}
		h.log.Error("sign-up failed", "email", email, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Create failed"})
		return
	}

	token, err := h.tokens.GenerateToken(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusCreated, AuthResponse{Token: token, User: *user, Profile: profile})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	user, err := h.users.FindByEmail(c.Request.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "DB error"})
		return
	}
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(req.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	profile, err := h.profiles.GetByID(c.Request.Context(), user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve profile"})
		return
	}

	token, err := h.tokens.GenerateToken(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, AuthResponse{Token: token, User: *user, Profile: profile})
}

// Session reports who the bearer token belongs to
func (h *AuthHandler) Session(c *gin.Context) {
	userID, ok := authenticatedUser(c)
	if !ok {
		return
	}

	user, err := h.users.GetByID(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "DB error"})
		return
	}
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Session user no longer exists"})
		return
	}

	profile, err := h.profiles.GetByID(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve profile"})
		return
	}

	c.JSON(http.StatusOK, AuthResponse{User: *user, Profile: profile})
}
