// Package auth signs the dashboard session cookie so clients cannot pick
// another session's id.
package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid session token")

const issuer = "gsa-finder"

// Signer issues and verifies HS256 session tokens whose subject is the
// session id.
type Signer struct {
	secret []byte
	ttl    time.Duration
}

// NewSigner uses secret when set. Otherwise it generates an ephemeral one,
// so tokens do not survive a restart.
func NewSigner(secret string, ttl time.Duration) (*Signer, error) {
	key := []byte(strings.TrimSpace(secret))
	if len(key) == 0 {
		buf := make([]byte, 48)
		if _, err := rand.Read(buf); err != nil {
			return nil, fmt.Errorf("failed to generate session secret: %w", err)
		}
		key = []byte(base64.RawURLEncoding.EncodeToString(buf))
		log.Print("SESSION_SECRET is not set; using ephemeral in-memory fallback secret")
	}
	if ttl <= 0 {
		ttl = 365 * 24 * time.Hour
	}
	return &Signer{secret: key, ttl: ttl}, nil
}

// TTL is how long an issued token stays valid.
func (s *Signer) TTL() time.Duration {
	return s.ttl
}

func (s *Signer) Issue(id uuid.UUID) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   id.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Parse returns the session id of a valid token.
func (s *Signer) Parse(tokenString string) (uuid.UUID, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return uuid.Nil, ErrInvalidToken
	}

	sub, err := token.Claims.GetSubject()
	if err != nil {
		return uuid.Nil, ErrInvalidToken
	}
	id, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, ErrInvalidToken
	}
	return id, nil
}
