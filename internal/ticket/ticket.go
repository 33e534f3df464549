// Package ticket signs the token that binds a rendered captcha to its
// stored challenge.
package ticket

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "captcha"

type Claims struct {
	jwt.RegisteredClaims
}

// ChallengeID returns the id of the challenge the token was issued for.
func (c *Claims) ChallengeID() string { return c.ID }

func Issue(challengeID string, key []byte, ttl time.Duration) (string, time.Time, error) {
	if challengeID == "" {
		return "", time.Time{}, errors.New("challenge id required")
	}
	if len(key) == 0 {
		return "", time.Time{}, errors.New("empty signing key")
	}
	now := time.Now().UTC()
	exp := now.Add(ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        challengeID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		return "", time.Time{}, err
	}
	return s, exp, nil
}

func Verify(token string, key []byte) (*Claims, error) {
	if token == "" {
		return nil, errors.New("empty token")
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(issuer))
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.ID == "" {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
