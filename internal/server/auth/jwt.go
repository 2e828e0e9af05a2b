package auth

import (
	"errors"
	"strconv"
	"time"

	"github.com/dmitrijs2005/cinecritic/internal/common"
	"github.com/dmitrijs2005/cinecritic/internal/server/models"
	"github.com/golang-jwt/jwt/v5"
)

// Claims are the token claims: the public identity plus the registered
// claims (sub, iat, exp).
type Claims struct {
	UserID   int64       `json:"id"`
	Username string      `json:"username"`
	Email    string      `json:"email"`
	Role     models.Role `json:"role"`
	jwt.RegisteredClaims
}

// Identity returns the public claims carried by the token.
func (c *Claims) Identity() models.Identity {
	return models.Identity{ID: c.UserID, Username: c.Username, Email: c.Email, Role: c.Role}
}

// GenerateToken signs an HS256 token for identity that expires after
// validityDuration.
func GenerateToken(identity models.Identity, secretKey []byte, validityDuration time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID:   identity.ID,
		Username: identity.Username,
		Email:    identity.Email,
		Role:     identity.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(identity.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validityDuration)),
		},
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ParseToken verifies tokenString and returns its claims. An expired token
// yields common.ErrTokenExpired; every other failure, including a bad
// signature or an unexpected algorithm, yields common.ErrInvalidToken.
func ParseToken(tokenString string, secretKey []byte) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidToken
	}

	if !token.Valid {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}
