package token

import (
	"time"

	"savepass/internal/models"

	"gorm.io/gorm/clause"
)

// Revoke records a session token as invalidated until its natural expiry.
// A token that does not parse is treated as already invalid and the call
// still succeeds, keeping logout idempotent without leaking whether the
// presented string was ever a live token.
func (s *Service) Revoke(tokenStr string) error {
	claims, err := s.parse(tokenStr)
	if err != nil {
		return nil
	}

	expiry := time.Now().Add(s.SessionTTL)
	if claims.ExpiresAt != nil {
		expiry = claims.ExpiresAt.Time
	}

	record := models.RevokedToken{Token: tokenStr, ExpiresAt: expiry}
	if err := s.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(&record).Error; err != nil {
		return err
	}

	// Rows past their expiry can never match a live token again; sweep them
	// here so the table stays bounded without a background job.
	s.DB.Where("expires_at <= ?", time.Now()).Delete(&models.RevokedToken{})

	return nil
}

// IsRevoked reports whether the exact token string has an unexpired
// revocation record.
func (s *Service) IsRevoked(tokenStr string) (bool, error) {
	var count int64
	err := s.DB.Model(&models.RevokedToken{}).
		Where("token = ? AND expires_at > ?", tokenStr, time.Now()).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
