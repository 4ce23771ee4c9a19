// Package auth issues and validates realtime channel admission tokens.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid token")
)

// ChannelClaims ties a token to one attendee within one session. The token is
// minted at registration and admits its holder to that session's realtime
// topic only.
type ChannelClaims struct {
	AttendeeID uuid.UUID `json:"attendee_id"`
	SessionID  uuid.UUID `json:"session_id"`
	Role       string    `json:"role"`
	jwt.RegisteredClaims
}

// Channel participant roles.
const (
	RoleViewer = "viewer"
	RoleHost   = "host"
)

// TokenService signs and validates channel admission tokens.
type TokenService struct {
	secret      []byte
	expireHours int
}

// NewTokenService creates a token service.
func NewTokenService(secret string, expireHours int) *TokenService {
	return &TokenService{
		secret:      []byte(secret),
		expireHours: expireHours,
	}
}

// Issue creates a viewer token for the attendee in the session.
func (s *TokenService) Issue(attendeeID, sessionID uuid.UUID) (string, error) {
	return s.issue(attendeeID, sessionID, RoleViewer)
}

// IssueHost creates a host token for the session. Host tokens may publish
// control signals on the channel.
func (s *TokenService) IssueHost(presenterID, sessionID uuid.UUID) (string, error) {
	return s.issue(presenterID, sessionID, RoleHost)
}

func (s *TokenService) issue(subjectID, sessionID uuid.UUID, role string) (string, error) {
	claims := ChannelClaims{
		AttendeeID: subjectID,
		SessionID:  sessionID,
		Role:       role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Duration(s.expireHours) * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ID:        uuid.New().String(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Validate parses and validates a channel token, returning its claims.
func (s *TokenService) Validate(tokenString string) (*ChannelClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &ChannelClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*ChannelClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
