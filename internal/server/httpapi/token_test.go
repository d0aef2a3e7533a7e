package httpapi

import (
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/shadanga/kriya/internal/model"
	"github.com/shadanga/kriya/internal/service"
)

func makeJWT(t *testing.T, sub string, role model.Role, key []byte, method jwt.SigningMethod, iat time.Time, ttl time.Duration) string {
	t.Helper()
	claims := service.AccessClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			IssuedAt:  jwt.NewNumericDate(iat),
			NotBefore: jwt.NewNumericDate(iat),
			ExpiresAt: jwt.NewNumericDate(iat.Add(ttl)),
		},
	}
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}
	return s
}

func Test_bearerToken_OkAndErrors(t *testing.T) {
	t.Parallel()

	got, err := bearerToken("Bearer abc.def.ghi")
	if err != nil || got != "abc.def.ghi" {
		t.Fatalf("ok: got=%q err=%v", got, err)
	}
	if got, _ := bearerToken("  bearer   x.y.z "); got != "x.y.z" {
		t.Fatalf("case-insensitive scheme: got %q", got)
	}
	for _, h := range []string{"Basic foo", "Bearer   ", ""} {
		if _, err := bearerToken(h); err == nil {
			t.Fatalf("want error on %q", h)
		}
	}
}

func Test_parseAccessToken(t *testing.T) {
	t.Parallel()

	key := []byte("secret")
	sub := uuid.Must(uuid.NewV4())
	now := time.Now().UTC()

	p, err := parseAccessToken(key, makeJWT(t, sub.String(), model.RoleAdmin, key, jwt.SigningMethodHS256, now.Add(-time.Minute), 10*time.Minute))
	if err != nil {
		t.Fatalf("valid token: %v", err)
	}
	if p.UserID != sub || p.Role != model.RoleAdmin {
		t.Fatalf("bad principal: %+v", p)
	}

	p, err = parseAccessToken(key, makeJWT(t, sub.String(), "", key, jwt.SigningMethodHS256, now, time.Hour))
	if err != nil || p.Role != model.RoleLearner {
		t.Fatalf("missing role defaults to learner: %+v err=%v", p, err)
	}

	bad := map[string]string{
		"expired":     makeJWT(t, sub.String(), model.RoleLearner, key, jwt.SigningMethodHS256, now.Add(-2*time.Hour), -time.Hour),
		"bad subject": makeJWT(t, "not-a-uuid", model.RoleLearner, key, jwt.SigningMethodHS256, now, time.Hour),
		"wrong alg":   makeJWT(t, sub.String(), model.RoleLearner, key, jwt.SigningMethodHS384, now, time.Hour),
		"wrong key":   makeJWT(t, sub.String(), model.RoleLearner, []byte("other"), jwt.SigningMethodHS256, now, time.Hour),
		"bad role":    makeJWT(t, sub.String(), "root", key, jwt.SigningMethodHS256, now, time.Hour),
		"garbage":     "this-is-not-a-jwt",
	}
	for name, tok := range bad {
		if _, err := parseAccessToken(key, tok); err == nil {
			t.Fatalf("%s: want error", name)
		}
	}
}
