package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"savepass/internal/models"
	"savepass/internal/token"
	"savepass/internal/util"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Context keys set by Protect for downstream handlers.
const (
	CtxUser         = "currentUser"
	CtxSessionToken = "currentSessionToken"
)

// Protect validates the bearer session token and stores the resolved account
// plus the literal token string in the request context. Step-up verification
// binds re-auth tokens against that exact string, so it must be the token as
// presented, not a re-serialized claim set.
func Protect(ts *token.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := bearerToken(c)
		if tokenStr == "" {
			util.Error(c, http.StatusUnauthorized, util.CodeAuth, "You are not logged in! Please log in to get access.")
			c.Abort()
			return
		}

		user, err := ts.ValidateSession(tokenStr)
		if err != nil {
			if errors.Is(err, token.ErrTokenInvalid) {
				util.Error(c, http.StatusUnauthorized, util.CodeAuth, "Token invalid!")
			} else {
				util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "Authentication failed")
			}
			c.Abort()
			return
		}

		c.Set(CtxUser, user)
		c.Set(CtxSessionToken, tokenStr)
		c.Next()
	}
}

// sensitiveProof is the subset of the request body ProtectSensitive reads.
// Either field satisfies the gate: a re-auth token minted for this scope and
// session, or an inline master-password re-entry for password accounts.
type sensitiveProof struct {
	VerifyToken    string `json:"verifyToken"`
	MasterPassword string `json:"masterPassword"`
}

// ProtectSensitive gates a sensitive action behind fresh re-proof of
// identity. It must be registered after Protect. All failure modes collapse
// into one generic response so callers cannot probe which sub-check failed.
func ProtectSensitive(ts *token.Service, db *gorm.DB, scope token.Scope) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		sessionToken := c.GetString(CtxSessionToken)
		if user == nil || sessionToken == "" {
			util.Error(c, http.StatusUnauthorized, util.CodeAuth, "You are not logged in! Please log in to get access.")
			c.Abort()
			return
		}

		if !scope.Valid() {
			util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "Unknown verification scope")
			c.Abort()
			return
		}

		// The downstream handler still needs the body, so read and restore it.
		var bodyBytes []byte
		if c.Request.Body != nil {
			bodyBytes, _ = io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
		}

		var proof sensitiveProof
		if len(bodyBytes) > 0 {
			_ = json.Unmarshal(bodyBytes, &proof)
		}

		switch {
		case proof.VerifyToken != "":
			if err := ts.VerifyReAuth(proof.VerifyToken, user.ID, sessionToken, scope); err != nil {
				verificationFailed(c)
				return
			}
		case proof.MasterPassword != "":
			if !checkMasterPassword(db, user.ID, proof.MasterPassword) {
				verificationFailed(c)
				return
			}
		default:
			verificationFailed(c)
			return
		}

		c.Next()
	}
}

// CurrentUser returns the account Protect stored in the context, or nil.
func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get(CtxUser)
	if !ok {
		return nil
	}
	user, ok := v.(*models.User)
	if !ok {
		return nil
	}
	return user
}

// checkMasterPassword loads only the credential columns and runs the hashing
// pipeline. The default session load omits them on purpose.
func checkMasterPassword(db *gorm.DB, userID uint, password string) bool {
	var cred struct {
		PasswordHash   string
		PasswordSalt   string
		HashIterations int
	}
	err := db.Model(&models.User{}).
		Select("password_hash", "password_salt", "hash_iterations").
		Where("id = ?", userID).
		First(&cred).Error
	if err != nil {
		return false
	}
	return util.CheckPassword(password, cred.PasswordHash, cred.PasswordSalt, cred.HashIterations)
}

func verificationFailed(c *gin.Context) {
	util.Error(c, http.StatusForbidden, util.CodeVerification, "Verification failed!")
	c.Abort()
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
