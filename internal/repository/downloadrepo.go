package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/shadanga/kriya/internal/model"
)

// DownloadRepository keeps device and offline-download registrations.
type DownloadRepository interface {
	// UpsertDevice registers a device for a user or refreshes its name.
	UpsertDevice(ctx context.Context, d model.Device) error
	// DeviceExists reports whether the device is registered for the user.
	DeviceExists(ctx context.Context, userID, deviceID uuid.UUID) (bool, error)
	// UpsertRegistration stores the key hash for (user, lesson, device).
	UpsertRegistration(ctx context.Context, r model.DownloadRegistration) error
	// DeleteRegistration drops one registration; errs.ErrNotFound when absent.
	DeleteRegistration(ctx context.Context, userID, lessonID, deviceID uuid.UUID) error
	// DeleteDeviceRegistrations drops all registrations of a device and returns how many.
	DeleteDeviceRegistrations(ctx context.Context, userID, deviceID uuid.UUID) (int64, error)
}
