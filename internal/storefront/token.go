package storefront

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenIssuer = "lemonstand-storefront"

var ErrInvalidToken = errors.New("invalid token")

// TokenMaker signs and verifies session tokens. A token only names a session;
// the state itself stays on the server.
type TokenMaker struct {
	secret []byte
	issuer string
	now    func() time.Time
}

func NewTokenMaker(secret string) *TokenMaker {
	return &TokenMaker{
		secret: []byte(secret),
		issuer: tokenIssuer,
		now:    time.Now,
	}
}

type Claims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

func (t *TokenMaker) New(sessionID string, ttl time.Duration) (string, time.Time, error) {
	now := t.now()
	exp := now.Add(ttl)

	claims := Claims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sessionID,
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

func (t *TokenMaker) Parse(tokenStr string) (Claims, error) {
	var c Claims

	token, err := jwt.ParseWithClaims(tokenStr, &c,
		func(*jwt.Token) (any, error) { return t.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil || token == nil || !token.Valid {
		return Claims{}, ErrInvalidToken
	}
	if c.SessionID == "" || c.SessionID != c.Subject {
		return Claims{}, ErrInvalidToken
	}

	return c, nil
}
