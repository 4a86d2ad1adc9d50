package handler

import (
	"errors"
	"net/http"
	"regexp"
	"strings"

	"savepass/internal/middleware"
	"savepass/internal/models"
	"savepass/internal/token"
	"savepass/internal/util"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// AuthHandler owns signup, login, logout and the credential-hashing
// handshake endpoints.
type AuthHandler struct {
	DB                    *gorm.DB
	Tokens                *token.Service
	EncryptionKey         string
	DefaultHashIterations int
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(db *gorm.DB, tokens *token.Service, encryptionKey string, defaultHashIterations int) *AuthHandler {
	if defaultHashIterations < util.MinHashIterations {
		defaultHashIterations = 600_000
	}
	return &AuthHandler{
		DB:                    db,
		Tokens:                tokens,
		EncryptionKey:         encryptionKey,
		DefaultHashIterations: defaultHashIterations,
	}
}

var emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// ---------- Signup ----------

type signupReq struct {
	Email          string `json:"email"`
	Password       string `json:"password"`
	HashIterations int    `json:"hashIterations"`
}

// Signup creates an account and logs it in. The client chooses the PBKDF2
// iteration count at signup; the pre-login endpoint echoes it back so the
// same derivation can be reproduced before every login.
func (h *AuthHandler) Signup(c *gin.Context) {
	var req signupReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "Please provide email and password")
		return
	}

	req.Email = strings.TrimSpace(req.Email)

	if req.Email == "" || req.Password == "" {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "Please provide email and password")
		return
	}
	if !emailRe.MatchString(req.Email) {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "Invalid email!")
		return
	}
	if req.HashIterations < util.MinHashIterations {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "hashIterations is missing or too low")
		return
	}

	// Email matching is exact and case-sensitive throughout.
	var count int64
	if err := h.DB.Model(&models.User{}).Where("email = ?", req.Email).Count(&count).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "Failed to create account")
		return
	}
	if count > 0 {
		util.Error(c, http.StatusConflict, util.CodeConflict, "Email Already Exists")
		return
	}

	hash, salt, err := util.HashPassword(req.Password, req.HashIterations)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "Failed to create account")
		return
	}

	user := models.User{
		Email:          req.Email,
		PasswordHash:   hash,
		PasswordSalt:   salt,
		HashIterations: req.HashIterations,
	}
	if err := h.DB.Create(&user).Error; err != nil {
		// Unique index races with the count check above.
		util.Error(c, http.StatusConflict, util.CodeConflict, "Email Already Exists")
		return
	}

	tok, err := h.Tokens.IssueSession(user.ID)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "Failed to generate token")
		return
	}

	recordEvent(h.DB, &user.ID, "signup", c)

	util.Created(c, util.Response{
		"token": tok,
	})
}

// ---------- Pre-login ----------

type preLoginReq struct {
	Email string `json:"email"`
}

// PreLogin returns the account's hash iteration count so the client can
// reproduce the derivation locally. Unknown or omitted emails get the
// configured default to avoid leaking account existence.
func (h *AuthHandler) PreLogin(c *gin.Context) {
	var req preLoginReq
	_ = c.ShouldBindJSON(&req)

	iterations := h.DefaultHashIterations

	if req.Email != "" {
		var user struct{ HashIterations int }
		err := h.DB.Model(&models.User{}).
			Select("hash_iterations").
			Where("email = ?", req.Email).
			First(&user).Error
		if err == nil && user.HashIterations > 0 {
			iterations = user.HashIterations
		}
	}

	util.Success(c, util.Response{
		"hashIterations": iterations,
	})
}

// ---------- Login ----------

type loginReq struct {
	Email                     string `json:"email"`
	Password                  string `json:"password"`
	TwoFactorProvider         string `json:"twoFactorProvider"`
	TwoFactorVerificationCode string `json:"twoFactorVerificationCode"`
}

// Login verifies the password and, for accounts with an enabled second
// factor, a TOTP code, then issues a session token. Password failures stay
// deliberately generic; the missing-second-factor case is a distinct signal
// because the password has already been confirmed at that point.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "Please provide email and password")
		return
	}

	if req.Email == "" || req.Password == "" {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "Please provide email and password")
		return
	}

	// Verification path: select the credential columns explicitly.
	var user models.User
	err := h.DB.Select("id", "email", "password_hash", "password_salt", "hash_iterations", "authenticator_secret").
		Where("email = ?", req.Email).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			util.Error(c, http.StatusUnauthorized, util.CodeAuth, "Invalid email or password")
		} else {
			util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "Failed to log in")
		}
		return
	}

	if !util.CheckPassword(req.Password, user.PasswordHash, user.PasswordSalt, user.HashIterations) {
		recordEvent(h.DB, &user.ID, "login_failed", c)
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "Invalid email or password")
		return
	}

	if user.AuthenticatorSecret != "" {
		if req.TwoFactorProvider == "" || req.TwoFactorVerificationCode == "" {
			util.Error(c, http.StatusUnauthorized, util.CodeTwoFactorRequired, "Two factor authentication required")
			return
		}
		if req.TwoFactorProvider != "authenticatorApp" {
			util.Error(c, http.StatusUnauthorized, util.CodeAuth, "Invalid two factor provider")
			return
		}

		secret, err := util.DecryptSecret(h.EncryptionKey, user.AuthenticatorSecret)
		if err != nil {
			util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "Failed to log in")
			return
		}
		if !util.VerifyTOTPCode(secret, req.TwoFactorVerificationCode) {
			recordEvent(h.DB, &user.ID, "login_failed_2fa", c)
			util.Error(c, http.StatusUnauthorized, util.CodeAuth, "Invalid two factor verification code")
			return
		}
	}

	tok, err := h.Tokens.IssueSession(user.ID)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "Failed to generate token")
		return
	}

	recordEvent(h.DB, &user.ID, "login", c)

	util.Success(c, util.Response{
		"token": tok,
	})
}

// ---------- Logout ----------

// Logout revokes the presented session token until its natural expiry.
// Tokens that fail to parse are treated as already invalid; logout always
// reports success so it stays idempotent and leaks nothing about validity.
func (h *AuthHandler) Logout(c *gin.Context) {
	tokenStr := bearerToken(c)
	if tokenStr != "" {
		if err := h.Tokens.Revoke(tokenStr); err != nil {
			util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "Failed to log out")
			return
		}
	}

	recordEvent(h.DB, nil, "logout", c)

	util.Success(c, util.Response{})
}

// ---------- Master-password re-proof ----------

type verifyPasswordReq struct {
	Password string `json:"password"`
	Scope    string `json:"scope"`
}

// VerifyPassword re-proves identity by master-password re-entry and mints a
// re-auth token bound to the current session and the requested scope.
func (h *AuthHandler) VerifyPassword(c *gin.Context) {
	user := middleware.CurrentUser(c)
	sessionToken := c.GetString(middleware.CtxSessionToken)
	if user == nil || sessionToken == "" {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "You are not logged in! Please log in to get access.")
		return
	}

	var req verifyPasswordReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "Please provide password and scope")
		return
	}
	if req.Password == "" {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "Please provide password and scope")
		return
	}

	scope := token.Scope(req.Scope)
	if !scope.Valid() {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "Unknown scope")
		return
	}

	var cred struct {
		PasswordHash   string
		PasswordSalt   string
		HashIterations int
	}
	err := h.DB.Model(&models.User{}).
		Select("password_hash", "password_salt", "hash_iterations").
		Where("id = ?", user.ID).
		First(&cred).Error
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "Verification failed")
		return
	}

	if !util.CheckPassword(req.Password, cred.PasswordHash, cred.PasswordSalt, cred.HashIterations) {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "Invalid password")
		return
	}

	verifyToken, err := h.Tokens.IssueReAuth(user.ID, sessionToken, scope)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "Failed to generate token")
		return
	}

	recordEvent(h.DB, &user.ID, "reauth_password", c)

	util.Success(c, util.Response{
		"verifyToken": verifyToken,
	})
}

func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}
