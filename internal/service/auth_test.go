package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"

	pkgcrypto "github.com/shadanga/kriya/internal/crypto"
	"github.com/shadanga/kriya/internal/errs"
	"github.com/shadanga/kriya/internal/limiter"
	"github.com/shadanga/kriya/internal/model"
	"github.com/shadanga/kriya/internal/repository"
)

type fakeUsers struct {
	byName map[string]*model.User

	createErr error
	getErr    error
	rehashed  int
}

var _ repository.UserRepository = (*fakeUsers)(nil)

func (f *fakeUsers) Create(_ context.Context, u *model.User) error {
	if f.createErr != nil {
		return f.createErr
	}
	if f.byName == nil {
		f.byName = map[string]*model.User{}
	}
	if _, exists := f.byName[u.Username]; exists {
		return errs.ErrAlreadyExists
	}
	cpy := *u
	f.byName[u.Username] = &cpy
	return nil
}
func (f *fakeUsers) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	for _, u := range f.byName {
		if u.ID == id {
			c := *u
			return &c, nil
		}
	}
	return nil, errs.ErrNotFound
}
func (f *fakeUsers) GetByUsername(_ context.Context, username string) (*model.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.byName[username]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := *u
	return &c, nil
}

func (f *fakeUsers) UpdatePasswordHash(_ context.Context, id uuid.UUID, hash string) error {
	for _, u := range f.byName {
		if u.ID == id {
			u.PasswordHash = hash
			f.rehashed++
			return nil
		}
	}
	return errs.ErrNotFound
}

type fakeLimiter struct {
	allowOK  bool
	allowErr error

	failBlocked bool
	failErr     error

	successErr error

	allowCalls   int
	failureCalls int
	successCalls int
	lastSubject  string
}

var _ limiter.Limiter = (*fakeLimiter)(nil)

func (l *fakeLimiter) Allow(_ context.Context, subject string, _ []byte) (bool, time.Duration, error) {
	l.allowCalls++
	l.lastSubject = subject
	return l.allowOK, 0, l.allowErr
}
func (l *fakeLimiter) Success(context.Context, string, []byte) error {
	l.successCalls++
	return l.successErr
}
func (l *fakeLimiter) Failure(context.Context, string, []byte) (bool, time.Duration, error) {
	l.failureCalls++
	return l.failBlocked, 0, l.failErr
}

// testParams keeps Argon2id fast in unit tests.
var testParams = pkgcrypto.Params{Time: 1, Memory: 1024, Threads: 1, SaltLen: 16, KeyLen: 32}

func newTestAuth(users *fakeUsers, lim limiter.Limiter) *AuthServiceImpl {
	s := NewAuthService(users, []byte("k"), 2*time.Minute, lim)
	s.hash = testParams
	return s
}

func seedUser(t *testing.T, users *fakeUsers, name, pw string, role model.Role, p pkgcrypto.Params) *model.User {
	t.Helper()
	h, err := pkgcrypto.HashPassword(pw, p)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	u := &model.User{ID: uuid.Must(uuid.NewV4()), Username: name, Role: role, PasswordHash: h}
	if err := users.Create(context.Background(), u); err != nil {
		t.Fatalf("seed %s: %v", name, err)
	}
	return u
}

func TestAuth_Register(t *testing.T) {
	t.Parallel()
	users := &fakeUsers{byName: map[string]*model.User{}}
	s := newTestAuth(users, &fakeLimiter{})
	ctx := context.Background()

	for _, bad := range []struct {
		user, pw string
		role     model.Role
	}{
		{"", "pw", ""},
		{"x", "", ""},
		{"x", "y", "superuser"},
	} {
		if _, err := s.Register(ctx, bad.user, bad.pw, bad.role); !errors.Is(err, errs.ErrValidation) {
			t.Fatalf("Register(%q, %q, %q): want ErrValidation, got %v", bad.user, bad.pw, bad.role, err)
		}
	}

	id, err := s.Register(ctx, "asha", "kriya-108", "")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	stored := users.byName["asha"]
	if id == uuid.Nil || stored.ID != id {
		t.Fatalf("stored id %v, returned %v", stored.ID, id)
	}
	if stored.Role != model.RoleLearner {
		t.Fatalf("default role must be learner, got %q", stored.Role)
	}
	if ok, err := pkgcrypto.VerifyPassword("kriya-108", stored.PasswordHash); err != nil || !ok {
		t.Fatalf("stored hash does not verify: ok=%v err=%v", ok, err)
	}
	if pkgcrypto.NeedsRehash(stored.PasswordHash, testParams) {
		t.Fatalf("new hash must use the service params")
	}

	if _, err := s.Register(ctx, "asha", "other", ""); !errors.Is(err, errs.ErrAlreadyExists) {
		t.Fatalf("want ErrAlreadyExists on duplicate username, got %v", err)
	}

	users.createErr = errors.New("boom")
	if _, err := s.Register(ctx, "bhanu", "pw", model.RoleFacilitator); err == nil {
		t.Fatalf("want propagated repo error")
	}
}

func TestAuth_EnsureAdmin(t *testing.T) {
	t.Parallel()
	users := &fakeUsers{byName: map[string]*model.User{}}
	s := newTestAuth(users, &fakeLimiter{})
	ctx := context.Background()

	if err := s.EnsureAdmin(ctx, "root", "pw"); err != nil {
		t.Fatalf("EnsureAdmin: %v", err)
	}
	first := users.byName["root"].PasswordHash
	if users.byName["root"].Role != model.RoleAdmin {
		t.Fatalf("want admin role")
	}
	if err := s.EnsureAdmin(ctx, "root", "other"); err != nil {
		t.Fatalf("second EnsureAdmin must be a no-op: %v", err)
	}
	if users.byName["root"].PasswordHash != first {
		t.Fatalf("existing admin password must not be reset")
	}

	users.getErr = errors.New("db down")
	if err := s.EnsureAdmin(ctx, "x", "y"); err == nil {
		t.Fatalf("want lookup error propagated")
	}
}

func TestAuth_LoginWithIP_Limiter(t *testing.T) {
	t.Parallel()
	users := &fakeUsers{byName: map[string]*model.User{}}
	seedUser(t, users, "asha", "correct", model.RoleFacilitator, testParams)
	lim := &fakeLimiter{allowOK: true}
	s := newTestAuth(users, lim)
	ctx := context.Background()

	lim.allowErr = errors.New("lim-err")
	if _, _, err := s.LoginWithIP(ctx, "asha", "correct", "1.2.3.4"); err == nil {
		t.Fatalf("want limiter error propagated")
	}
	lim.allowErr = nil
	if lim.lastSubject != "login:asha" {
		t.Fatalf("unexpected limiter subject %q", lim.lastSubject)
	}

	lim.allowOK = false
	if _, _, err := s.LoginWithIP(ctx, "asha", "correct", "1.2.3.4"); !errors.Is(err, errs.ErrRateLimited) {
		t.Fatalf("want ErrRateLimited, got %v", err)
	}
	lim.allowOK = true

	lim.failBlocked = true
	if _, _, err := s.LoginWithIP(ctx, "asha", "wrong", ""); !errors.Is(err, errs.ErrRateLimited) {
		t.Fatalf("want ErrRateLimited once the failure blocks, got %v", err)
	}
	if lim.successCalls != 0 {
		t.Fatalf("no success expected yet")
	}
}

func TestAuth_LoginWithIP_Credentials(t *testing.T) {
	t.Parallel()
	users := &fakeUsers{byName: map[string]*model.User{}}
	u := seedUser(t, users, "asha", "correct", model.RoleFacilitator, testParams)
	lim := &fakeLimiter{allowOK: true}
	s := newTestAuth(users, lim)
	ctx := context.Background()

	if _, _, err := s.LoginWithIP(ctx, "nobody", "x", ""); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("unknown user: want ErrUnauthorized, got %v", err)
	}
	if _, _, err := s.LoginWithIP(ctx, "asha", "wrong", ""); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("wrong password: want ErrUnauthorized, got %v", err)
	}
	if lim.failureCalls != 2 {
		t.Fatalf("failures counted = %d, want 2", lim.failureCalls)
	}

	tok, got, err := s.LoginWithIP(ctx, "asha", "correct", "127.0.0.1:123")
	if err != nil {
		t.Fatalf("LoginWithIP: %v", err)
	}
	if tok.AccessToken == "" || !tok.ExpiresAt.After(time.Now()) {
		t.Fatalf("bad token: %+v", tok)
	}
	if got.ID != u.ID || lim.successCalls != 1 {
		t.Fatalf("user=%v success calls=%d", got.ID, lim.successCalls)
	}
	if users.rehashed != 0 {
		t.Fatalf("current hash must not be rewritten")
	}
}

func TestAuth_LoginWithIP_StoreErrors(t *testing.T) {
	t.Parallel()
	users := &fakeUsers{byName: map[string]*model.User{
		"broken": {ID: uuid.Must(uuid.NewV4()), Username: "broken", Role: model.RoleLearner, PasswordHash: "plaintext"},
	}}
	lim := &fakeLimiter{allowOK: true}
	s := newTestAuth(users, lim)

	if _, _, err := s.LoginWithIP(context.Background(), "broken", "plaintext", ""); !errors.Is(err, pkgcrypto.ErrMalformedHash) {
		t.Fatalf("want ErrMalformedHash, got %v", err)
	}

	users.getErr = errors.New("db down")
	_, _, err := s.LoginWithIP(context.Background(), "broken", "x", "")
	if err == nil || errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("store outage must not look like bad credentials, got %v", err)
	}
	if lim.failureCalls != 0 {
		t.Fatalf("store errors must not count as failed attempts")
	}
}

func TestAuth_LoginWithIP_RehashesOldParams(t *testing.T) {
	t.Parallel()
	users := &fakeUsers{byName: map[string]*model.User{}}
	old := pkgcrypto.Params{Time: 1, Memory: 512, Threads: 1, SaltLen: 8, KeyLen: 16}
	seedUser(t, users, "veda", "om", model.RoleLearner, old)
	s := newTestAuth(users, &fakeLimiter{allowOK: true})

	if _, _, err := s.LoginWithIP(context.Background(), "veda", "om", ""); err != nil {
		t.Fatalf("login with old hash: %v", err)
	}
	if users.rehashed != 1 {
		t.Fatalf("want one rehash, got %d", users.rehashed)
	}
	h := users.byName["veda"].PasswordHash
	if pkgcrypto.NeedsRehash(h, testParams) {
		t.Fatalf("hash not upgraded: %s", h)
	}
	if _, _, err := s.LoginWithIP(context.Background(), "veda", "om", ""); err != nil {
		t.Fatalf("login after rehash: %v", err)
	}
	if users.rehashed != 1 {
		t.Fatalf("upgraded hash rewritten again")
	}
}

func TestAuth_AccessTokenCarriesRole(t *testing.T) {
	t.Parallel()
	users := &fakeUsers{byName: map[string]*model.User{}}
	u := seedUser(t, users, "guru", "p", model.RoleAdmin, testParams)
	s := newTestAuth(users, &fakeLimiter{allowOK: true})

	tk, _, err := s.LoginWithIP(context.Background(), "guru", "p", "")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	var claims AccessClaims
	if _, err := jwt.ParseWithClaims(tk.AccessToken, &claims, func(*jwt.Token) (any, error) { return []byte("k"), nil }); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != u.ID.String() || claims.Role != model.RoleAdmin {
		t.Fatalf("bad claims: %+v", claims)
	}
	if d := claims.ExpiresAt.Sub(claims.IssuedAt.Time); d != 2*time.Minute {
		t.Fatalf("token lifetime %v, want 2m", d)
	}
}
