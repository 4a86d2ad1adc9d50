package models

import "time"

// SecurityEvent records auth-relevant operations for auditing.
// Never store request bodies, tokens or secret material here.
type SecurityEvent struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    *uint  `gorm:"index"`
	Action    string `gorm:"size:128;not null"` // e.g. "login", "login_failed", "logout"
	IP        string `gorm:"size:64"`
	UserAgent string `gorm:"size:255"`
	CreatedAt time.Time
}
