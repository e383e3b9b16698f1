package notifications

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const inviteAudience = "shareholder-portal"

// InviteClaims identify the shareholder an invitation was issued to.
type InviteClaims struct {
	jwt.RegisteredClaims
	TenantID      string `json:"tenant_id"`
	ShareholderID string `json:"shareholder_id"`
	IssuerID      string `json:"issuer_id"`
	Email         string `json:"email"`
}

// InviteSigner issues and verifies time-boxed HS256 invitation tokens.
type InviteSigner struct {
	Secret []byte
	TTL    time.Duration
	Issuer string
	Now    func() time.Time
}

func (s *InviteSigner) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *InviteSigner) ttl() time.Duration {
	if s.TTL > 0 {
		return s.TTL
	}
	return 72 * time.Hour
}

// Sign returns a token for claims and the moment it stops being valid.
func (s *InviteSigner) Sign(claims InviteClaims) (string, time.Time, error) {
	if len(s.Secret) == 0 {
		return "", time.Time{}, errors.New("invite signing secret not configured")
	}
	now := s.now()
	expires := now.Add(s.ttl())
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Issuer:    s.Issuer,
		Subject:   claims.ShareholderID,
		Audience:  jwt.ClaimStrings{inviteAudience},
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.Secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expires, nil
}

// Verify parses token and checks signature, audience and expiry.
func (s *InviteSigner) Verify(token string) (*InviteClaims, error) {
	if len(s.Secret) == 0 {
		return nil, errors.New("invite signing secret not configured")
	}
	claims := &InviteClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(inviteAudience),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid invitation token: %w", err)
	}
	if !parsed.Valid {
		return nil, errors.New("invalid invitation token")
	}
	return claims, nil
}
