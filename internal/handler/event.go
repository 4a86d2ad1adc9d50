package handler

import (
	"savepass/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// recordEvent persists a security audit event. Failures are ignored; the
// audit trail is best-effort and must never fail the request. No request
// bodies, tokens or secrets go in here.
func recordEvent(db *gorm.DB, userID *uint, action string, c *gin.Context) {
	event := models.SecurityEvent{
		UserID:    userID,
		Action:    action,
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
	_ = db.Create(&event).Error
}
