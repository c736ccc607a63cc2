package auth

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// Claims are the JWT claims carried by API bearer tokens. Device and API
// clients use these instead of the browser session cookie.
type Claims struct {
	ProfileID int64  `json:"pid"`
	Role      string `json:"role"`
	ParentID  int64  `json:"parent_id,omitempty"`
	jwt.RegisteredClaims
}

// Signer issues and verifies HMAC-signed bearer tokens.
type Signer struct {
	secret []byte
	ttl    time.Duration
}

func NewSigner(secret string, ttl time.Duration) *Signer {
	return &Signer{secret: []byte(secret), ttl: ttl}
}

func (s *Signer) Sign(profileID int64, role string, parentID int64) (string, error) {
	now := time.Now()
	claims := Claims{
		ProfileID: profileID,
		Role:      role,
		ParentID:  parentID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *Signer) Parse(tok string) (*Claims, error) {
	t, err := jwt.ParseWithClaims(tok, &Claims{}, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if c, ok := t.Claims.(*Claims); ok && t.Valid {
		return c, nil
	}
	return nil, errors.New("invalid token")
}
