package models

import "time"

// RevokedToken records a session token invalidated by logout.
// A row is meaningless once ExpiresAt passes; the store purges them lazily.
type RevokedToken struct {
	Token     string    `gorm:"primaryKey;size:1024"`
	ExpiresAt time.Time `gorm:"index;not null"`
	CreatedAt time.Time
}
