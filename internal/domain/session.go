package domain

import "time"

// ============================================================
// Auth session — state pushed by the hosted auth service
// ============================================================

// AuthIdentity is the auth-service view of a user (not the CRM users
// row; that is provisioned separately and may lag behind).
type AuthIdentity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"` // from user_metadata
}

// AuthSession is an opaque session handle plus the identity it belongs to.
type AuthSession struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresAt    time.Time    `json:"expires_at"`
	Identity     AuthIdentity `json:"identity"`
}

// Expired reports whether the access token is past its expiry.
func (s *AuthSession) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// AuthEvent names a session transition.
type AuthEvent string

const (
	AuthSignedIn       AuthEvent = "SIGNED_IN"
	AuthSignedOut      AuthEvent = "SIGNED_OUT"
	AuthTokenRefreshed AuthEvent = "TOKEN_REFRESHED"
)

// AuthChange is one session transition delivered on the auth channel.
// Session is nil on sign-out.
type AuthChange struct {
	Event   AuthEvent
	Session *AuthSession
}
