package handler

import (
	"errors"
	"net/http"
	"strconv"

	"savepass/internal/middleware"
	"savepass/internal/models"
	"savepass/internal/passkey"
	"savepass/internal/token"
	"savepass/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PasskeyHandler covers passkey sign-in, passkey re-proof for step-up, and
// the credential bindings that map a passkey to the wrapped vault key
// material the client stored for it. The external provider is injected so
// tests can swap in a double.
type PasskeyHandler struct {
	DB       *gorm.DB
	Tokens   *token.Service
	Provider passkey.Verifier
}

// NewPasskeyHandler constructs a PasskeyHandler.
func NewPasskeyHandler(db *gorm.DB, tokens *token.Service, provider passkey.Verifier) *PasskeyHandler {
	return &PasskeyHandler{DB: db, Tokens: tokens, Provider: provider}
}

type passkeyVerifyReq struct {
	Token string `json:"token"`
	Scope string `json:"scope"`
}

// SignInVerify exchanges the provider's verify token for a session token.
// Possession of the passkey is the authentication factor; no password or
// TOTP code is involved. Provider timeouts fail the sign-in, never allow it.
func (h *PasskeyHandler) SignInVerify(c *gin.Context) {
	var req passkeyVerifyReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Token == "" {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "Please provide token")
		return
	}

	verified, err := h.Provider.VerifySignIn(c.Request.Context(), req.Token)
	if err != nil || !verified.Success {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "Passkey sign-in failed")
		return
	}

	userID, err := strconv.ParseUint(verified.UserID, 10, 64)
	if err != nil {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "Passkey sign-in failed")
		return
	}

	var user models.User
	if err := h.DB.Omit("password_hash", "password_salt", "authenticator_secret").
		First(&user, uint(userID)).Error; err != nil {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "Passkey sign-in failed")
		return
	}

	tok, err := h.Tokens.IssueSession(user.ID)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "Failed to generate token")
		return
	}

	recordEvent(h.DB, &user.ID, "login_passkey", c)

	util.Success(c, util.Response{
		"token": tok,
	})
}

// ReAuthVerify re-proves identity with a passkey and mints a scope-bound
// re-auth token. The credential's owner must be the currently authenticated
// account; a valid passkey belonging to someone else proves nothing here.
func (h *PasskeyHandler) ReAuthVerify(c *gin.Context) {
	user := middleware.CurrentUser(c)
	sessionToken := c.GetString(middleware.CtxSessionToken)
	if user == nil || sessionToken == "" {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "You are not logged in! Please log in to get access.")
		return
	}

	var req passkeyVerifyReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Token == "" {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "Please provide token and scope")
		return
	}

	scope := token.Scope(req.Scope)
	if !scope.Valid() {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "Unknown scope")
		return
	}

	verified, err := h.Provider.VerifySignIn(c.Request.Context(), req.Token)
	if err != nil || !verified.Success || verified.UserID != strconv.FormatUint(uint64(user.ID), 10) {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "Passkey verification failed")
		return
	}

	verifyToken, err := h.Tokens.IssueReAuth(user.ID, sessionToken, scope)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "Failed to generate token")
		return
	}

	recordEvent(h.DB, &user.ID, "reauth_passkey", c)

	util.Success(c, util.Response{
		"verifyToken": verifyToken,
	})
}

// ListCredentials returns the passkeys the provider has registered for the
// current account.
func (h *PasskeyHandler) ListCredentials(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "You are not logged in! Please log in to get access.")
		return
	}

	credentials, err := h.Provider.ListCredentials(c.Request.Context(), strconv.FormatUint(uint64(user.ID), 10))
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "Failed to list credentials")
		return
	}

	util.Success(c, util.Response{
		"credentials": credentials,
	})
}

type deleteCredentialReq struct {
	CredentialID string `json:"credentialId"`
}

// DeleteCredential removes a passkey at the provider and drops the first
// matching key binding stored for it.
func (h *PasskeyHandler) DeleteCredential(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "You are not logged in! Please log in to get access.")
		return
	}

	var req deleteCredentialReq
	if err := c.ShouldBindJSON(&req); err != nil || req.CredentialID == "" {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "Please provide Credential Id!")
		return
	}

	if err := h.Provider.DeleteCredential(c.Request.Context(), req.CredentialID); err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "Failed to delete credential")
		return
	}

	// First match wins; older bindings with the same credential id survive.
	var binding models.PasskeyCredentialKey
	err := h.DB.Where("user_id = ? AND credential_id = ?", user.ID, req.CredentialID).
		Order("created_at ASC").
		First(&binding).Error
	if err == nil {
		h.DB.Delete(&binding)
	}

	recordEvent(h.DB, &user.ID, "passkey_removed", c)

	util.Success(c, util.Response{})
}

type saveKeyBindingReq struct {
	CredentialID                string `json:"credentialId"`
	PublicRSAKey                string `json:"publicRSAKey"`
	EncryptedPrivateRSAKey      string `json:"encryptedPrivateRSAKey"`
	EncryptedVaultEncryptionKey string `json:"encryptedVaultEncryptionKey"`
}

// SaveKeyBinding stores the wrapped vault key material for a credential the
// provider already knows about.
func (h *PasskeyHandler) SaveKeyBinding(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "You are not logged in! Please log in to get access.")
		return
	}

	var req saveKeyBindingReq
	if err := c.ShouldBindJSON(&req); err != nil ||
		req.CredentialID == "" || req.PublicRSAKey == "" ||
		req.EncryptedPrivateRSAKey == "" || req.EncryptedVaultEncryptionKey == "" {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "Please provide all mandatory fields!")
		return
	}

	credentials, err := h.Provider.ListCredentials(c.Request.Context(), strconv.FormatUint(uint64(user.ID), 10))
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "Failed to verify credential")
		return
	}

	known := false
	for _, cred := range credentials {
		if cred.Descriptor.ID == req.CredentialID {
			known = true
			break
		}
	}
	if !known {
		util.Error(c, http.StatusNotFound, util.CodeNotFound, "Credential not found on passwordless server!")
		return
	}

	binding := models.PasskeyCredentialKey{
		ID:                          uuid.NewString(),
		UserID:                      user.ID,
		CredentialID:                req.CredentialID,
		PublicRSAKey:                req.PublicRSAKey,
		EncryptedPrivateRSAKey:      req.EncryptedPrivateRSAKey,
		EncryptedVaultEncryptionKey: req.EncryptedVaultEncryptionKey,
	}
	if err := h.DB.Create(&binding).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "Failed to save key binding")
		return
	}

	recordEvent(h.DB, &user.ID, "passkey_key_saved", c)

	util.Created(c, util.Response{
		"passkeyEncryptedEncryptionKeyId": binding.ID,
	})
}

// GetKeyBinding returns the wrapped vault key material stored for one of the
// account's credentials.
func (h *PasskeyHandler) GetKeyBinding(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "You are not logged in! Please log in to get access.")
		return
	}

	credentialID := c.Param("credentialId")
	if credentialID == "" {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "Please provide Credential Id!")
		return
	}

	var binding models.PasskeyCredentialKey
	err := h.DB.Where("user_id = ? AND credential_id = ?", user.ID, credentialID).
		Order("created_at ASC").
		First(&binding).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			util.Error(c, http.StatusNotFound, util.CodeNotFound, "Credential key binding not found")
		} else {
			util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "Failed to load key binding")
		}
		return
	}

	util.Success(c, util.Response{
		"credentialId":                binding.CredentialID,
		"publicRSAKey":                binding.PublicRSAKey,
		"encryptedPrivateRSAKey":      binding.EncryptedPrivateRSAKey,
		"encryptedVaultEncryptionKey": binding.EncryptedVaultEncryptionKey,
	})
}
