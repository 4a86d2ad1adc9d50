package models

import "time"

// User represents a vault account.
//
// PasswordHash, PasswordSalt and AuthenticatorSecret must never appear in
// API responses; handlers build explicit projections instead of serializing
// the struct.
type User struct {
	ID             uint   `gorm:"primaryKey"`
	Email          string `gorm:"size:255;uniqueIndex;not null"`
	PasswordHash   string `gorm:"size:255;not null"`
	PasswordSalt   string `gorm:"size:64;not null"`
	HashIterations int    `gorm:"not null"`

	// AuthenticatorSecret holds the TOTP secret, AES-GCM encrypted at rest.
	// Empty string means the authenticator app factor is not enabled.
	AuthenticatorSecret string `gorm:"size:512"`

	FirstName       string `gorm:"size:64"`
	LastName        string `gorm:"size:64"`
	ProfilePhotoURL string `gorm:"size:512"`

	PasskeyKeys []PasskeyCredentialKey `gorm:"constraint:OnDelete:CASCADE"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// PasskeyCredentialKey binds an external passkey credential to the wrapped
// vault key material the client stored for it.
type PasskeyCredentialKey struct {
	ID                          string `gorm:"primaryKey;size:64"` // uuid
	UserID                      uint   `gorm:"index;not null"`
	CredentialID                string `gorm:"size:512;not null"`
	PublicRSAKey                string `gorm:"size:4096;not null"`
	EncryptedPrivateRSAKey      string `gorm:"size:8192;not null"`
	EncryptedVaultEncryptionKey string `gorm:"size:4096;not null"`
	CreatedAt                   time.Time
}
