package token

// IssueReAuth mints a short-lived step-up token bound to the account, the
// literal session token it was requested under, and a single scope. Callers
// must have freshly re-proved identity (master password or passkey) before
// asking for one.
func (s *Service) IssueReAuth(userID uint, sessionToken string, scope Scope) (string, error) {
	return s.sign(&Claims{
		UserID:       userID,
		Purpose:      PurposeReAuth,
		SessionToken: sessionToken,
		Scope:        string(scope),
	}, s.ReAuthTTL)
}

// VerifyReAuth checks a presented re-auth token against the current request:
// signature and expiry, purpose tag, exact account, exact session token
// string, exact scope. A token minted under another session of the same
// account, or for another scope, is rejected even before it expires.
//
// Reuse within the expiry window is permitted; only expiry bounds it.
func (s *Service) VerifyReAuth(tokenStr string, userID uint, sessionToken string, scope Scope) error {
	claims, err := s.parse(tokenStr)
	if err != nil {
		return ErrTokenInvalid
	}

	if claims.Purpose != PurposeReAuth ||
		claims.UserID != userID ||
		claims.SessionToken != sessionToken ||
		claims.Scope != string(scope) {
		return ErrTokenInvalid
	}

	return nil
}
