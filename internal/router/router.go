package router

import (
	"time"

	"savepass/internal/config"
	"savepass/internal/handler"
	"savepass/internal/middleware"
	"savepass/internal/passkey"
	"savepass/internal/token"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Setup configures the Gin engine and wires all routes.
func Setup(cfg *config.Config, db *gorm.DB, provider passkey.Verifier) *gin.Engine {
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	tokens := token.NewService(
		db,
		cfg.JWT.Secret,
		cfg.JWT.Issuer,
		time.Duration(cfg.JWT.SessionExpireHours)*time.Hour,
		time.Duration(cfg.JWT.ReAuthExpireMinutes)*time.Minute,
	)

	if provider == nil {
		provider = passkey.NewClient(
			cfg.Passwordless.APIURL,
			cfg.Passwordless.APISecret,
			time.Duration(cfg.Passwordless.TimeoutSeconds)*time.Second,
		)
	}

	authHandler := handler.NewAuthHandler(db, tokens, cfg.Security.EncryptionKey, cfg.Security.DefaultHashIterations)
	twoFactorHandler := handler.NewTwoFactorHandler(db, cfg.Security.EncryptionKey, cfg.TOTP.Issuer)
	passkeyHandler := handler.NewPasskeyHandler(db, tokens, provider)

	api := r.Group("/api/v1")

	// Endpoints reachable without a session.
	api.POST("/signup", authHandler.Signup)
	api.POST("/login", authHandler.Login)
	api.POST("/prelogin", authHandler.PreLogin)
	api.GET("/logout", authHandler.Logout)
	api.POST("/passkeys/signin/verify", passkeyHandler.SignInVerify)

	protect := middleware.Protect(tokens)

	api.POST("/verify-password", protect, authHandler.VerifyPassword)

	user := api.Group("/user", protect)
	user.GET("", handler.GetMe)
	user.PATCH("", handler.UpdateProfile(db))

	twoFactor := api.Group("/two-factor-auth", protect)
	twoFactor.GET("", twoFactorHandler.Status)

	manage2FA := middleware.ProtectSensitive(tokens, db, token.ScopeManageSecondFactor)
	twoFactor.POST("/get-authenticator", manage2FA, twoFactorHandler.GetAuthenticator)
	twoFactor.PATCH("/authenticator", manage2FA, twoFactorHandler.SetAuthenticator)
	twoFactor.PATCH("/disable-authenticator", manage2FA, twoFactorHandler.DisableAuthenticator)

	passkeys := api.Group("/passkeys", protect)
	passkeys.POST("/re-auth/verify", passkeyHandler.ReAuthVerify)
	passkeys.GET("/credentials/list", passkeyHandler.ListCredentials)
	passkeys.GET("/passkey-encrypted-encryption-key/:credentialId", passkeyHandler.GetKeyBinding)
	passkeys.DELETE("/credentials/delete",
		middleware.ProtectSensitive(tokens, db, token.ScopeRemovePasskey),
		passkeyHandler.DeleteCredential)
	passkeys.POST("/passkey-encrypted-encryption-key",
		middleware.ProtectSensitive(tokens, db, token.ScopeCreatePasskey),
		passkeyHandler.SaveKeyBinding)

	return r
}
