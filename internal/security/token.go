package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrTokenInvalid means the token failed verification against every
	// candidate secret.
	ErrTokenInvalid = errors.New("token invalid")

	// ErrTokenScope means a URL token verified but is bound to a different
	// object key than the one requested.
	ErrTokenScope = errors.New("token not scoped to requested key")
)

type AccessClaims struct {
	UserID string `json:"uid"`
	jwt.RegisteredClaims
}

// AssetClaims is the payload of a scoped URL token: a short-lived grant for
// exactly one object key, not a general credential.
type AssetClaims struct {
	Key string `json:"key"`
	jwt.RegisteredClaims
}

func GenerateAccessToken(secret string, userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := AccessClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Subject:   userID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign jwt: %w", err)
	}
	return signed, nil
}

// ParseAccessToken verifies tokenStr against each candidate secret in order
// and returns the claims validated by the first secret that works. A failed
// candidate is a normal outcome, not a terminal error; only exhausting the
// list fails. This is what keeps tokens signed with a retiring secret valid
// through a rotation window.
func ParseAccessToken(tokenStr string, secrets []string) (*AccessClaims, error) {
	for _, secret := range secrets {
		claims, err := parseWithSecret(tokenStr, secret)
		if err == nil {
			return claims, nil
		}
	}
	return nil, ErrTokenInvalid
}

func parseWithSecret(tokenStr string, secret string) (*AccessClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*AccessClaims); ok && token.Valid && claims.UserID != "" {
		return claims, nil
	}
	return nil, ErrTokenInvalid
}

func GenerateAssetToken(secret string, key string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := AssetClaims{
		Key: key,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign asset token: %w", err)
	}
	return signed, nil
}

// VerifyAssetToken checks a URL token against the candidate secrets and
// requires its payload to name exactly the requested key.
func VerifyAssetToken(tokenStr string, key string, secrets []string) error {
	for _, secret := range secrets {
		claims, err := parseAssetWithSecret(tokenStr, secret)
		if err != nil {
			continue
		}
		if claims.Key != key {
			return ErrTokenScope
		}
		return nil
	}
	return ErrTokenInvalid
}

func parseAssetWithSecret(tokenStr string, secret string) (*AssetClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &AssetClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*AssetClaims); ok && token.Valid && claims.Key != "" {
		return claims, nil
	}
	return nil, ErrTokenInvalid
}
