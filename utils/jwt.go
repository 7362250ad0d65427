package utils

import (
	"fmt"
	"time"

	"chat-sessions/errors"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "chat-sessions"

// Claims identifies the user a token was issued to.
type Claims struct {
	UserID   int    `json:"uid"`
	Username string `json:"uname"`
	jwt.RegisteredClaims
}

func GenerateJWT(secret string, userID int, username string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   "user-auth",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func ParseJWT(secret, tokenStr string) (int, string, error) {
	if tokenStr == "" {
		return 0, "", fmt.Errorf("%w: token is empty", errors.ErrInvalidToken)
	}

	var claims Claims
	token, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithIssuer(issuer))
	if err != nil {
		return 0, "", fmt.Errorf("%w: %v", errors.ErrInvalidToken, err)
	}
	if !token.Valid || claims.UserID == 0 || claims.Username == "" {
		return 0, "", fmt.Errorf("%w: bad claims", errors.ErrInvalidToken)
	}

	return claims.UserID, claims.Username, nil
}
