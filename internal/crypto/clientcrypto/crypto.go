// Package clientcrypto contains client-side primitives for offline lesson encryption.
//
// Every downloaded lesson is sealed with its own random key. The key is kept
// on the device wrapped by a device key; only its SHA-256 hash is sent to the
// server.
package clientcrypto

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// Params
const (
	KeyLen          = chacha20poly1305.KeySize
	DeviceSecretLen = 32
)

var deviceKeyInfo = []byte("kriya/offline/device-key/v1")

func Rand(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}

// NewDownloadKey returns a fresh per-download key.
func NewDownloadKey() ([]byte, error) { return Rand(KeyLen) }

// KeyHash returns the SHA-256 fingerprint of a key, safe to share with the server.
func KeyHash(key []byte) []byte {
	h := sha256.Sum256(key)
	return h[:]
}

// DeriveDeviceKey derives the device wrapping key via HKDF-SHA256 using deviceID as salt.
func DeriveDeviceKey(secret, deviceID []byte) ([]byte, error) {
	r := hkdf.New(sha256.New, secret, deviceID, deviceKeyInfo)
	key := make([]byte, KeyLen)
	_, err := r.Read(key)
	return key, err
}

// WrapKey encrypts a download key with the device key using XChaCha20-Poly1305 and random nonce.
func WrapKey(deviceKey, key []byte) ([]byte, error) {
	return seal(deviceKey, key, nil)
}

// UnwrapKey decrypts a wrapped download key using the device key.
func UnwrapKey(deviceKey, wrapped []byte) ([]byte, error) {
	return open(deviceKey, wrapped, nil)
}

// EncryptAsset encrypts audio bytes with AAD = userID||lessonID||deviceID.
func EncryptAsset(key, userID, lessonID, deviceID, plaintext []byte) ([]byte, error) {
	return seal(key, plaintext, assetAAD(userID, lessonID, deviceID))
}

// DecryptAsset decrypts an asset using the same AAD as during encryption.
func DecryptAsset(key, userID, lessonID, deviceID, blob []byte) ([]byte, error) {
	return open(key, blob, assetAAD(userID, lessonID, deviceID))
}

func assetAAD(userID, lessonID, deviceID []byte) []byte {
	aad := make([]byte, 0, len(userID)+len(lessonID)+len(deviceID))
	aad = append(aad, userID...)
	aad = append(aad, lessonID...)
	return append(aad, deviceID...)
}

// seal returns nonce||ciphertext.
func seal(key, plaintext, aad []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	nonce, err := Rand(chacha20poly1305.NonceSizeX)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(nonce)+len(plaintext)+aead.Overhead())
	out = append(out, nonce...)
	return aead.Seal(out, nonce, plaintext, aad), nil
}

func open(key, blob, aad []byte) ([]byte, error) {
	if len(blob) < chacha20poly1305.NonceSizeX {
		return nil, errors.New("blob too short")
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	nonce := blob[:chacha20poly1305.NonceSizeX]
	ct := blob[chacha20poly1305.NonceSizeX:]
	return aead.Open(nil, nonce, ct, aad)
}
