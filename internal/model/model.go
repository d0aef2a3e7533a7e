// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/shadanga/kriya/internal/errs"
)

// Role is the account role carried in access tokens.
type Role string

// Known roles.
const (
	RoleAdmin       Role = "admin"
	RoleFacilitator Role = "facilitator"
	RoleLearner     Role = "learner"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleFacilitator, RoleLearner:
		return true
	}
	return false
}

// ManagesLessons reports whether the role may author lessons and access codes.
func (r Role) ManagesLessons() bool {
	return r == RoleAdmin || r == RoleFacilitator
}

// Tokens collects issued access tokens.
type Tokens struct {
	AccessToken string
	ExpiresAt   time.Time // access token expiry (for diagnostics)
}

// User represents an account stored on the server. Passwords are never stored in plaintext.
type User struct {
	ID           uuid.UUID // PK
	Username     string    // unique
	Role         Role
	PasswordHash string // PHC-encoded Argon2id, salt and params included
	CreatedAt    time.Time
}

// Lesson is a single meditation lesson inside a course.
type Lesson struct {
	ID                uuid.UUID
	CourseID          uuid.UUID
	Title             string
	AudioKey          string // object key of the audio asset
	DurationSeconds   int
	MaxPauses         int
	AccessCodeEnabled bool
	CreatedAt         time.Time
}

// CodeType distinguishes codes that expire from codes that do not.
type CodeType string

// Known code types.
const (
	CodePermanent CodeType = "permanent"
	CodeTemporary CodeType = "temporary"
)

// Valid reports whether t is a known code type.
func (t CodeType) Valid() bool { return t == CodePermanent || t == CodeTemporary }

// AccessCodeState mirrors the access-code columns of a lesson row.
// Code, Type, ExpiresAt and GeneratedAt are nil when no code has been generated.
type AccessCodeState struct {
	LessonID    uuid.UUID
	Enabled     bool
	Code        *string
	Type        *CodeType
	ExpiresAt   *time.Time
	GeneratedAt *time.Time
}

// HasCode reports whether a code is currently stored.
func (s AccessCodeState) HasCode() bool { return s.Code != nil && *s.Code != "" }

// Expired reports whether the stored code is temporary and past its expiry at now.
// Permanent codes never expire; ExpiresAt is ignored for them.
func (s AccessCodeState) Expired(now time.Time) bool {
	if s.Type == nil || *s.Type != CodeTemporary || s.ExpiresAt == nil {
		return false
	}
	return now.After(*s.ExpiresAt)
}

// GeneratedCode is the outcome of a generate call, returned for display.
type GeneratedCode struct {
	Code        string
	Type        CodeType
	GeneratedAt time.Time
	ExpiresAt   *time.Time // nil for permanent codes
}

// AccessCodeView is access-code metadata as exposed to a given role.
// Code is empty unless the viewer manages lessons.
type AccessCodeView struct {
	LessonID    uuid.UUID
	Enabled     bool
	HasCode     bool
	Code        string
	Type        CodeType
	ExpiresAt   *time.Time
	GeneratedAt *time.Time
	Expired     bool
}

// VerifyReason explains a failed verification.
type VerifyReason string

// Verification failure reasons.
const (
	ReasonIncorrectCode VerifyReason = "incorrect_code"
	ReasonCodeExpired   VerifyReason = "code_expired"
	ReasonNoCode        VerifyReason = "no_code_configured"
	ReasonCodeDisabled  VerifyReason = "access_code_disabled"
)

// Err maps a reason onto its sentinel error, or nil for unknown reasons.
func (r VerifyReason) Err() error {
	switch r {
	case ReasonIncorrectCode:
		return errs.ErrIncorrectCode
	case ReasonCodeExpired:
		return errs.ErrCodeExpired
	case ReasonNoCode:
		return errs.ErrNoAccessCode
	}
	return nil
}

// VerifyResult is {valid: true} or {valid: false, reason}.
type VerifyResult struct {
	Valid  bool
	Reason VerifyReason
}

// VerifyAttempt identifies who is verifying, for throttling.
type VerifyAttempt struct {
	UserID uuid.UUID
	IP     string
}

// Device is a learner device registered for offline downloads.
type Device struct {
	UserID       uuid.UUID
	DeviceID     uuid.UUID // client-generated
	Name         string
	RegisteredAt time.Time
}

// DownloadRegistration records an offline copy of a lesson on a device.
// Only the hash of the client's encryption key is stored.
type DownloadRegistration struct {
	UserID    uuid.UUID
	LessonID  uuid.UUID
	DeviceID  uuid.UUID
	KeyHash   []byte // SHA-256 of the per-download key
	CreatedAt time.Time
}
