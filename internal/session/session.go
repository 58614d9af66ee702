// Package session describes the authenticated identity the repositories
// scope their bookkeeping by. A Session is passed explicitly to every
// operation that needs tenant or user scoping.
package session

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophsync/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// User is the authenticated user and the company (tenant) it acts for.
type User struct {
	ID        string
	CompanyID string
}

// Session yields the current identity or fails with common.ErrNoSession.
type Session interface {
	RequiredCurrentUserID() (string, error)
	RequiredCurrentUser() (User, error)
}

// Static is a Session over a fixed user. The zero value is unauthenticated.
type Static struct {
	User User
}

// Anonymous has no authenticated user.
var Anonymous Session = Static{}

func (s Static) RequiredCurrentUserID() (string, error) {
	if s.User.ID == "" {
		return "", common.ErrNoSession
	}
	return s.User.ID, nil
}

func (s Static) RequiredCurrentUser() (User, error) {
	if s.User.ID == "" {
		return User{}, common.ErrNoSession
	}
	return s.User, nil
}

// Claims carries the identity inside an access token.
type Claims struct {
	jwt.RegisteredClaims
	UserID    string
	CompanyID string
}

// TokenSession is a Session backed by a JWT access token.
type TokenSession struct {
	token string
	user  User
}

// NewTokenSession parses token. With a secret the HS256 signature and expiry
// are verified; without one the claims are read as-is, which is what an
// offline client holding a token it cannot verify does.
func NewTokenSession(token string, secret []byte) (*TokenSession, error) {
	claims := &Claims{}

	if len(secret) == 0 {
		if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
		}
	} else {
		t, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
			return secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
		}
		if !t.Valid {
			return nil, common.ErrInvalidToken
		}
	}

	return &TokenSession{token: token, user: User{ID: claims.UserID, CompanyID: claims.CompanyID}}, nil
}

// AccessToken returns the raw token for outbound requests.
func (s *TokenSession) AccessToken() string {
	return s.token
}

func (s *TokenSession) RequiredCurrentUserID() (string, error) {
	return Static{User: s.user}.RequiredCurrentUserID()
}

func (s *TokenSession) RequiredCurrentUser() (User, error) {
	return Static{User: s.user}.RequiredCurrentUser()
}

// GenerateToken signs an HS256 access token for user.
func GenerateToken(user User, secret []byte, validity time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validity)),
		},
		UserID:    user.ID,
		CompanyID: user.CompanyID,
	})

	return token.SignedString(secret)
}
