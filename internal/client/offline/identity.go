package offline

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/uuid/v5"

	"github.com/shadanga/kriya/internal/client/session"
	"github.com/shadanga/kriya/internal/crypto/clientcrypto"
)

// Identity is the device's stable id and the secret its key is derived from.
// It never leaves the device.
type Identity struct {
	DeviceID uuid.UUID `json:"device_id"`
	Secret   []byte    `json:"secret"`
}

// LoadOrCreateIdentity reads device.json in dir, creating it on first use.
func LoadOrCreateIdentity(dir string) (Identity, error) {
	p := filepath.Join(dir, "device.json")
	b, err := os.ReadFile(p)
	if err == nil {
		var id Identity
		if err := json.Unmarshal(b, &id); err != nil {
			return Identity{}, fmt.Errorf("device identity: %w", err)
		}
		if id.DeviceID == uuid.Nil || len(id.Secret) < clientcrypto.DeviceSecretLen {
			return Identity{}, errors.New("device identity: incomplete")
		}
		return id, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return Identity{}, err
	}

	devID, err := uuid.NewV4()
	if err != nil {
		return Identity{}, err
	}
	secret, err := clientcrypto.Rand(clientcrypto.DeviceSecretLen)
	if err != nil {
		return Identity{}, err
	}
	id := Identity{DeviceID: devID, Secret: secret}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return Identity{}, err
	}
	b, err = json.MarshalIndent(id, "", "  ")
	if err != nil {
		return Identity{}, err
	}
	if err := session.WriteFileAtomic(p, b, 0o600); err != nil {
		return Identity{}, err
	}
	return id, nil
}
