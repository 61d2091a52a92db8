package jwthelper

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

type Claims struct {
	AssociationID uint   `json:"association_id"`
	Role          string `json:"role"`
	jwt.RegisteredClaims
}

func GenerateToken(signingKey string, memberID, associationID uint, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		AssociationID: associationID,
		Role:          role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(memberID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString([]byte(signingKey))
	if err != nil {
		return "", fmt.Errorf("token.SignedString -> %w", err)
	}

	return signed, nil
}

// ParseToken verifies the signature and expiry and returns the member id.
func ParseToken(signingKey, tokenString string) (uint, *Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(signingKey), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid {
		return 0, nil, ErrInvalidToken
	}

	memberID, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: subject %q", ErrInvalidToken, claims.Subject)
	}

	return uint(memberID), claims, nil
}
