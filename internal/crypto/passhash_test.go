package crypto

import (
	"errors"
	"strings"
	"testing"
)

// cheap keeps the suite fast; production uses DefaultParams.
var cheap = Params{Time: 1, Memory: 1024, Threads: 1, SaltLen: 16, KeyLen: 32}

func TestHashPassword_Encoding(t *testing.T) {
	t.Parallel()

	h, err := HashPassword("om shanti", cheap)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !strings.HasPrefix(h, "$argon2id$v=19$m=1024,t=1,p=1$") {
		t.Fatalf("unexpected encoding %q", h)
	}
	h2, err := HashPassword("om shanti", cheap)
	if err != nil {
		t.Fatalf("HashPassword(2): %v", err)
	}
	if h == h2 {
		t.Fatalf("same password hashed twice to %q; salt is not fresh", h)
	}
}

func TestVerifyPassword(t *testing.T) {
	t.Parallel()

	h, err := HashPassword("correct horse battery staple", cheap)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}

	cases := []struct {
		name string
		pw   string
		want bool
	}{
		{"correct", "correct horse battery staple", true},
		{"wrong", "wrong", false},
		{"empty", "", false},
		{"prefix", "correct horse", false},
	}
	for _, tc := range cases {
		ok, err := VerifyPassword(tc.pw, h)
		if err != nil {
			t.Fatalf("%s: VerifyPassword: %v", tc.name, err)
		}
		if ok != tc.want {
			t.Fatalf("%s: got %v, want %v", tc.name, ok, tc.want)
		}
	}
}

func TestVerifyPassword_UsesStoredParams(t *testing.T) {
	t.Parallel()

	old := Params{Time: 2, Memory: 2048, Threads: 2, SaltLen: 8, KeyLen: 16}
	h, err := HashPassword("p", old)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	ok, err := VerifyPassword("p", h)
	if err != nil || !ok {
		t.Fatalf("hash made with older params must still verify: ok=%v err=%v", ok, err)
	}
	if !NeedsRehash(h, cheap) {
		t.Fatalf("NeedsRehash: want true for different params")
	}
	if NeedsRehash(h, old) {
		t.Fatalf("NeedsRehash: want false for matching params")
	}
}

func TestVerifyPassword_Malformed(t *testing.T) {
	t.Parallel()

	for _, bad := range []string{
		"",
		"plaintext",
		"$argon2i$v=19$m=1024,t=1,p=1$c2FsdA$a2V5",
		"$argon2id$v=16$m=1024,t=1,p=1$c2FsdA$a2V5",
		"$argon2id$v=19$m=0,t=1,p=1$c2FsdA$a2V5",
		"$argon2id$v=19$m=1024,t=1,p=1$!!$a2V5",
		"$argon2id$v=19$m=1024,t=1,p=1$c2FsdA$",
	} {
		if _, err := VerifyPassword("p", bad); !errors.Is(err, ErrMalformedHash) {
			t.Fatalf("%q: want ErrMalformedHash, got %v", bad, err)
		}
		if !NeedsRehash(bad, cheap) {
			t.Fatalf("%q: malformed hash should need rehash", bad)
		}
	}
}

func TestRandomDigits_ShapeAndSpread(t *testing.T) {
	t.Parallel()

	seen := map[string]struct{}{}
	for i := 0; i < 200; i++ {
		code, err := RandomDigits(6)
		if err != nil {
			t.Fatalf("RandomDigits: %v", err)
		}
		if len(code) != 6 {
			t.Fatalf("len=%d, want 6 (%q)", len(code), code)
		}
		for _, r := range code {
			if r < '0' || r > '9' {
				t.Fatalf("non-digit in %q", code)
			}
		}
		seen[code] = struct{}{}
	}
	if len(seen) < 150 {
		t.Fatalf("too many repeats: %d distinct of 200", len(seen))
	}
}

func TestRandomDigits_BadLength(t *testing.T) {
	t.Parallel()

	if _, err := RandomDigits(0); err == nil {
		t.Fatalf("want error on zero length")
	}
	if _, err := RandomDigits(19); err == nil {
		t.Fatalf("want error on length overflowing int64")
	}
}
