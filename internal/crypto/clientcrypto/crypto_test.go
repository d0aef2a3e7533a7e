package clientcrypto

import (
	"bytes"
	"crypto/subtle"
	"testing"
)

func TestRand_LengthUniq(t *testing.T) {
	t.Parallel()
	const n = 48
	a, err := Rand(n)
	if err != nil {
		t.Fatalf("Rand: %v", err)
	}
	if len(a) != n {
		t.Fatalf("len=%d, want=%d", len(a), n)
	}
	b, _ := Rand(n)
	if bytes.Equal(a, b) {
		t.Fatalf("Rand produced equal slices")
	}
}

func TestKeyHash_StableAndDistinct(t *testing.T) {
	t.Parallel()
	k1, _ := NewDownloadKey()
	k2, _ := NewDownloadKey()
	if len(k1) != KeyLen {
		t.Fatalf("key len=%d", len(k1))
	}
	h1 := KeyHash(k1)
	if len(h1) != 32 || !bytes.Equal(h1, KeyHash(k1)) {
		t.Fatalf("KeyHash must be 32 bytes and deterministic")
	}
	if bytes.Equal(h1, KeyHash(k2)) {
		t.Fatalf("different keys must hash differently")
	}
	if bytes.Equal(h1, k1) {
		t.Fatalf("hash must not equal the key")
	}
}

func TestDeriveDeviceKey_DeterministicAndDeviceDependent(t *testing.T) {
	t.Parallel()
	secret, _ := Rand(DeviceSecretLen)
	ka, err := DeriveDeviceKey(secret, []byte("device-A"))
	if err != nil {
		t.Fatalf("DeriveDeviceKey: %v", err)
	}
	ka2, _ := DeriveDeviceKey(secret, []byte("device-A"))
	kb, _ := DeriveDeviceKey(secret, []byte("device-B"))
	if subtle.ConstantTimeCompare(ka, ka2) != 1 {
		t.Fatalf("DeriveDeviceKey must be deterministic")
	}
	if subtle.ConstantTimeCompare(ka, kb) != 0 {
		t.Fatalf("keys for different devices must differ")
	}
}

func TestWrapUnwrapKey(t *testing.T) {
	t.Parallel()
	secret, _ := Rand(DeviceSecretLen)
	dk, _ := DeriveDeviceKey(secret, []byte("dev"))
	key, _ := NewDownloadKey()

	wrapped, err := WrapKey(dk, key)
	if err != nil {
		t.Fatalf("WrapKey: %v", err)
	}
	out, err := UnwrapKey(dk, wrapped)
	if err != nil {
		t.Fatalf("UnwrapKey: %v", err)
	}
	if subtle.ConstantTimeCompare(out, key) != 1 {
		t.Fatalf("unwrap != original")
	}

	other, _ := DeriveDeviceKey(secret, []byte("dev-2"))
	if _, err := UnwrapKey(other, wrapped); err == nil {
		t.Fatalf("UnwrapKey with wrong device key must fail")
	}
	if _, err := UnwrapKey(dk, []byte{1, 2, 3}); err == nil {
		t.Fatalf("UnwrapKey must reject short input")
	}
}

func TestEncryptDecryptAsset_RoundtripAndAAD(t *testing.T) {
	t.Parallel()
	key, _ := NewDownloadKey()
	user, lesson, device := []byte("user-1"), []byte("lesson-1"), []byte("device-1")
	audio := bytes.Repeat([]byte("ID3\x00om"), 1000)

	blob, err := EncryptAsset(key, user, lesson, device, audio)
	if err != nil {
		t.Fatalf("EncryptAsset: %v", err)
	}
	if bytes.Contains(blob, []byte("ID3\x00om")) {
		t.Fatalf("ciphertext leaks plaintext")
	}
	got, err := DecryptAsset(key, user, lesson, device, blob)
	if err != nil {
		t.Fatalf("DecryptAsset: %v", err)
	}
	if !bytes.Equal(got, audio) {
		t.Fatalf("roundtrip mismatch")
	}

	if _, err := DecryptAsset(key, []byte("user-2"), lesson, device, blob); err == nil {
		t.Fatalf("expected error on user mismatch")
	}
	if _, err := DecryptAsset(key, user, []byte("lesson-2"), device, blob); err == nil {
		t.Fatalf("expected error on lesson mismatch")
	}
	if _, err := DecryptAsset(key, user, lesson, []byte("device-2"), blob); err == nil {
		t.Fatalf("expected error on device mismatch")
	}
	other, _ := NewDownloadKey()
	if _, err := DecryptAsset(other, user, lesson, device, blob); err == nil {
		t.Fatalf("expected error on wrong key")
	}
}
