package service

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/gofrs/uuid/v5"

	"github.com/shadanga/kriya/internal/errs"
	"github.com/shadanga/kriya/internal/model"
	"github.com/shadanga/kriya/internal/repository"
)

// DownloadService records devices and offline copies for revocation and audit.
type DownloadService interface {
	// RegisterDevice registers a learner device keyed by (user, device).
	RegisterDevice(ctx context.Context, userID, deviceID uuid.UUID, name string) error
	// RegisterDownload stores the key hash of an offline copy.
	RegisterDownload(ctx context.Context, reg model.DownloadRegistration) error
	// Unregister drops one offline copy registration.
	Unregister(ctx context.Context, userID, lessonID, deviceID uuid.UUID) error
	// UnregisterDevice drops all registrations of a device.
	UnregisterDevice(ctx context.Context, userID, deviceID uuid.UUID) (int64, error)
}

type DownloadServiceImpl struct {
	downloads repository.DownloadRepository
	lessons   repository.LessonRepository
}

// NewDownloadService constructs DownloadService.
func NewDownloadService(downloads repository.DownloadRepository, lessons repository.LessonRepository) *DownloadServiceImpl {
	return &DownloadServiceImpl{downloads: downloads, lessons: lessons}
}

// RegisterDevice upserts the device; re-registering only refreshes the name.
func (s *DownloadServiceImpl) RegisterDevice(ctx context.Context, userID, deviceID uuid.UUID, name string) error {
	if userID == uuid.Nil || deviceID == uuid.Nil {
		return fmt.Errorf("%w: empty user/device id", errs.ErrValidation)
	}
	name = strings.TrimSpace(name)
	if len(name) > 128 {
		return fmt.Errorf("%w: device name too long", errs.ErrValidation)
	}
	return s.downloads.UpsertDevice(ctx, model.Device{UserID: userID, DeviceID: deviceID, Name: name})
}

// RegisterDownload requires a registered device, an existing lesson and a SHA-256 sized key hash.
func (s *DownloadServiceImpl) RegisterDownload(ctx context.Context, reg model.DownloadRegistration) error {
	if reg.UserID == uuid.Nil || reg.LessonID == uuid.Nil || reg.DeviceID == uuid.Nil {
		return fmt.Errorf("%w: empty user/lesson/device id", errs.ErrValidation)
	}
	if len(reg.KeyHash) != sha256.Size {
		return fmt.Errorf("%w: key hash must be %d bytes", errs.ErrValidation, sha256.Size)
	}
	ok, err := s.downloads.DeviceExists(ctx, reg.UserID, reg.DeviceID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("device %s: %w", reg.DeviceID, errs.ErrNotFound)
	}
	if _, err := s.lessons.Get(ctx, reg.LessonID); err != nil {
		return err
	}
	return s.downloads.UpsertRegistration(ctx, reg)
}

// Unregister drops one registration.
func (s *DownloadServiceImpl) Unregister(ctx context.Context, userID, lessonID, deviceID uuid.UUID) error {
	if userID == uuid.Nil || lessonID == uuid.Nil || deviceID == uuid.Nil {
		return fmt.Errorf("%w: empty user/lesson/device id", errs.ErrValidation)
	}
	return s.downloads.DeleteRegistration(ctx, userID, lessonID, deviceID)
}

// UnregisterDevice drops every registration of a device. Zero rows is not an error.
func (s *DownloadServiceImpl) UnregisterDevice(ctx context.Context, userID, deviceID uuid.UUID) (int64, error) {
	if userID == uuid.Nil || deviceID == uuid.Nil {
		return 0, fmt.Errorf("%w: empty user/device id", errs.ErrValidation)
	}
	return s.downloads.DeleteDeviceRegistrations(ctx, userID, deviceID)
}
