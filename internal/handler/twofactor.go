package handler

import (
	"net/http"

	"savepass/internal/middleware"
	"savepass/internal/models"
	"savepass/internal/util"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// TwoFactorHandler manages enrollment and removal of the authenticator-app
// second factor. The shared secret is stored AES-GCM encrypted and only ever
// read through explicit column selects.
type TwoFactorHandler struct {
	DB            *gorm.DB
	EncryptionKey string
	TOTPIssuer    string
}

// NewTwoFactorHandler constructs a TwoFactorHandler.
func NewTwoFactorHandler(db *gorm.DB, encryptionKey, totpIssuer string) *TwoFactorHandler {
	if totpIssuer == "" {
		totpIssuer = "SavePass"
	}
	return &TwoFactorHandler{DB: db, EncryptionKey: encryptionKey, TOTPIssuer: totpIssuer}
}

func (h *TwoFactorHandler) storedSecret(userID uint) (string, error) {
	var row struct{ AuthenticatorSecret string }
	err := h.DB.Model(&models.User{}).
		Select("authenticator_secret").
		Where("id = ?", userID).
		First(&row).Error
	if err != nil {
		return "", err
	}
	return row.AuthenticatorSecret, nil
}

// Status reports which second-factor providers are enabled for the account.
func (h *TwoFactorHandler) Status(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "You are not logged in! Please log in to get access.")
		return
	}

	secret, err := h.storedSecret(user.ID)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "Failed to load two factor status")
		return
	}

	util.Success(c, util.Response{
		"authenticatorAppEnabled": secret != "",
	})
}

// GetAuthenticator returns the enrolled secret, or provisions a fresh
// provisional one. The provisional secret is not persisted; it only becomes
// authoritative once SetAuthenticator verifies a current code against it.
func (h *TwoFactorHandler) GetAuthenticator(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "You are not logged in! Please log in to get access.")
		return
	}

	stored, err := h.storedSecret(user.ID)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "Failed to load authenticator")
		return
	}

	if stored != "" {
		secret, err := util.DecryptSecret(h.EncryptionKey, stored)
		if err != nil {
			util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "Failed to load authenticator")
			return
		}
		util.Success(c, util.Response{
			"enabled": true,
			"secret":  secret,
		})
		return
	}

	secret, otpauthURL, err := util.NewTOTPSecret(h.TOTPIssuer, user.Email)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "Failed to generate secret")
		return
	}

	util.Success(c, util.Response{
		"enabled":    false,
		"secret":     secret,
		"otpauthUrl": otpauthURL,
	})
}

type setAuthenticatorReq struct {
	Secret string `json:"secret"`
	Token  string `json:"token"`
}

// SetAuthenticator completes enrollment: the client submits the provisional
// secret together with a current code computed from it. On a failed code the
// secret is simply not persisted; the client re-issues via GetAuthenticator.
func (h *TwoFactorHandler) SetAuthenticator(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "You are not logged in! Please log in to get access.")
		return
	}

	var req setAuthenticatorReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Secret == "" || req.Token == "" {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "Please provide secret and token")
		return
	}

	stored, err := h.storedSecret(user.ID)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "Failed to set authenticator")
		return
	}
	if stored != "" {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "Authenticator already set!")
		return
	}

	if !util.VerifyTOTPCode(req.Secret, req.Token) {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "Invalid Token!")
		return
	}

	encrypted, err := util.EncryptSecret(h.EncryptionKey, req.Secret)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "Failed to set authenticator")
		return
	}

	if err := h.DB.Model(&models.User{}).
		Where("id = ?", user.ID).
		Update("authenticator_secret", encrypted).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "Failed to set authenticator")
		return
	}

	recordEvent(h.DB, &user.ID, "two_factor_enabled", c)

	util.Success(c, util.Response{
		"enabled": true,
		"secret":  req.Secret,
	})
}

// DisableAuthenticator removes the second factor from the account.
func (h *TwoFactorHandler) DisableAuthenticator(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "You are not logged in! Please log in to get access.")
		return
	}

	if err := h.DB.Model(&models.User{}).
		Where("id = ?", user.ID).
		Update("authenticator_secret", "").Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "Failed to disable authenticator")
		return
	}

	recordEvent(h.DB, &user.ID, "two_factor_disabled", c)

	util.Success(c, util.Response{
		"enabled": false,
	})
}
