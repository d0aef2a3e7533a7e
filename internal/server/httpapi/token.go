package httpapi

import (
	"errors"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/shadanga/kriya/internal/model"
	"github.com/shadanga/kriya/internal/service"
)

// parseAccessToken verifies an HS256 JWT and returns its subject and role.
func parseAccessToken(signKey []byte, tok string) (Principal, error) {
	var claims service.AccessClaims
	parsed, err := jwt.ParseWithClaims(tok, &claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return signKey, nil
	}, jwt.WithLeeway(30*time.Second))
	if err != nil || !parsed.Valid {
		return Principal{}, errors.New("invalid token")
	}

	id, err := uuid.FromString(claims.Subject)
	if err != nil {
		return Principal{}, errors.New("bad subject")
	}
	role := claims.Role
	if role == "" {
		role = model.RoleLearner
	}
	if !role.Valid() {
		return Principal{}, errors.New("bad role")
	}
	return Principal{UserID: id, Role: role}, nil
}

// bearerToken extracts the token from an "Authorization: Bearer <JWT>" header.
func bearerToken(header string) (string, error) {
	v := strings.TrimSpace(header)
	if len(v) >= 7 && strings.EqualFold(v[:7], "bearer ") {
		if t := strings.TrimSpace(v[7:]); t != "" {
			return t, nil
		}
	}
	return "", errors.New("no bearer token")
}
