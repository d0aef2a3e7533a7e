// Package service contains application services for accounts, lessons, access codes and downloads.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"

	pkgcrypto "github.com/shadanga/kriya/internal/crypto"
	"github.com/shadanga/kriya/internal/errs"
	"github.com/shadanga/kriya/internal/limiter"
	"github.com/shadanga/kriya/internal/model"
	"github.com/shadanga/kriya/internal/repository"
)

// AccessClaims is the JWT payload issued on login.
type AccessClaims struct {
	Role model.Role `json:"role"`
	jwt.RegisteredClaims
}

// AuthService defines authentication and bootstrap operations.
type AuthService interface {
	// Register creates a new user with secure password hashing.
	Register(ctx context.Context, username, password string, role model.Role) (userID uuid.UUID, err error)
	// LoginWithIP applies rate-limiting and authenticates the user.
	LoginWithIP(ctx context.Context, username, password string, ip string) (tokens model.Tokens, user model.User, err error)
	// EnsureAdmin creates the bootstrap admin account unless it already exists.
	EnsureAdmin(ctx context.Context, username, password string) error
}

type AuthServiceImpl struct {
	users     repository.UserRepository
	signKey   []byte
	accessTTL time.Duration
	lim       limiter.Limiter
	hash      pkgcrypto.Params
}

// NewAuthService constructs AuthService with required dependencies.
func NewAuthService(users repository.UserRepository, signKey []byte, accessTTL time.Duration, lim limiter.Limiter) *AuthServiceImpl {
	return &AuthServiceImpl{users: users, signKey: signKey, accessTTL: accessTTL, lim: lim, hash: pkgcrypto.DefaultParams}
}

// Register creates a new user with an Argon2id password hash. Empty role means learner.
func (s *AuthServiceImpl) Register(ctx context.Context, username, password string, role model.Role) (uuid.UUID, error) {
	if username == "" || password == "" {
		return uuid.Nil, fmt.Errorf("%w: empty username/password", errs.ErrValidation)
	}
	if role == "" {
		role = model.RoleLearner
	}
	if !role.Valid() {
		return uuid.Nil, fmt.Errorf("%w: unknown role %q", errs.ErrValidation, role)
	}
	uid, err := uuid.NewV4()
	if err != nil {
		return uuid.Nil, err
	}
	hash, err := pkgcrypto.HashPassword(password, s.hash)
	if err != nil {
		return uuid.Nil, err
	}

	u := &model.User{ID: uid, Username: username, Role: role, PasswordHash: hash}
	if err := s.users.Create(ctx, u); err != nil {
		return uuid.Nil, err
	}
	return uid, nil
}

// EnsureAdmin registers an admin account on first start.
func (s *AuthServiceImpl) EnsureAdmin(ctx context.Context, username, password string) error {
	_, err := s.users.GetByUsername(ctx, username)
	if err == nil {
		return nil
	}
	if !errors.Is(err, errs.ErrNotFound) {
		return err
	}
	_, err = s.Register(ctx, username, password, model.RoleAdmin)
	if errors.Is(err, errs.ErrAlreadyExists) {
		return nil
	}
	return err
}

// LoginWithIP authenticates with rate limiting by (username, ip).
func (s *AuthServiceImpl) LoginWithIP(ctx context.Context, username, password, ip string) (model.Tokens, model.User, error) {
	ipHash := limiter.HashIP(ip)
	subject := "login:" + username

	allowed, _, err := s.lim.Allow(ctx, subject, ipHash)
	if err != nil {
		return model.Tokens{}, model.User{}, err
	}
	if !allowed {
		return model.Tokens{}, model.User{}, errs.ErrRateLimited
	}

	u, err := s.users.GetByUsername(ctx, username)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return model.Tokens{}, model.User{}, err
	}
	ok := false
	if u != nil {
		if ok, err = pkgcrypto.VerifyPassword(password, u.PasswordHash); err != nil {
			return model.Tokens{}, model.User{}, fmt.Errorf("user %s: %w", u.ID, err)
		}
	}
	if !ok {
		if blocked, _, ferr := s.lim.Failure(ctx, subject, ipHash); ferr == nil && blocked {
			return model.Tokens{}, model.User{}, errs.ErrRateLimited
		}
		// unknown user and wrong password look the same
		return model.Tokens{}, model.User{}, errs.ErrUnauthorized
	}

	// best-effort
	_ = s.lim.Success(ctx, subject, ipHash)
	if pkgcrypto.NeedsRehash(u.PasswordHash, s.hash) {
		if h, herr := pkgcrypto.HashPassword(password, s.hash); herr == nil {
			_ = s.users.UpdatePasswordHash(ctx, u.ID, h)
		}
	}

	access, exp, err := s.issueAccessToken(u.ID, u.Role)
	if err != nil {
		return model.Tokens{}, model.User{}, err
	}
	return model.Tokens{AccessToken: access, ExpiresAt: exp}, *u, nil
}

// issueAccessToken creates a signed HS256 JWT for the given subject and role.
func (s *AuthServiceImpl) issueAccessToken(userID uuid.UUID, role model.Role) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(s.accessTTL)
	claims := AccessClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(s.signKey)
	return signed, exp, err
}
