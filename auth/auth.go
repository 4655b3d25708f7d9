// Package auth issues and verifies the bearer tokens that gate writes.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
)

var (
	ErrBadCredentials = errors.New("unable to log in with provided credentials")
	ErrInvalidToken   = errors.New("invalid token")
)

type Claims struct {
	jwt.StandardClaims
}

type Authenticator struct {
	secret   []byte
	ttl      time.Duration
	username string
	password string

	now func() time.Time
}

func New(secret string, ttl time.Duration, username, password string) *Authenticator {
	return &Authenticator{
		secret:   []byte(secret),
		ttl:      ttl,
		username: username,
		password: password,
		now:      time.Now,
	}
}

// Login checks the admin credentials and returns a signed token for them.
func (a *Authenticator) Login(username, password string) (string, error) {
	if a.username == "" || a.password == "" {
		return "", ErrBadCredentials
	}

	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(a.password)) == 1
	if !userOK || !passOK {
		return "", ErrBadCredentials
	}

	return a.Issue(username)
}

func (a *Authenticator) Issue(subject string) (string, error) {
	now := a.now()

	claims := Claims{
		StandardClaims: jwt.StandardClaims{
			Id:        uuid.New().String(),
			Subject:   subject,
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(a.ttl).Unix(),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return token, nil
}

func (a *Authenticator) Verify(token string) (*Claims, error) {
	t, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := t.Claims.(*Claims)
	if !ok || !t.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
