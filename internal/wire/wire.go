// Package wire holds the JSON request and response bodies of the REST API.
// Server handlers and the client share these types.
package wire

import "time"

// APIError is the body of any non-2xx response.
type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ErrorEnvelope wraps APIError as {"error": {...}}.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// Stable error codes.
const (
	CodeValidation    = "validation_error"
	CodeUnauthorized  = "unauthorized"
	CodeForbidden     = "forbidden"
	CodeNotFound      = "not_found"
	CodeConflict      = "conflict"
	CodeRateLimited   = "rate_limited"
	CodeNotEnrolled   = "not_enrolled"
	CodeNoAccessCode  = "no_code_configured"
	CodeInternal      = "internal"
	CodeUnavailable   = "unavailable"
	CodeBadGateway    = "bad_gateway"
	CodeNetworkFailed = "network_error"
)

type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

type RegisterResponse struct {
	UserID string `json:"userId"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
	UserID      string    `json:"userId"`
	Username    string    `json:"username"`
	Role        string    `json:"role"`
}

type CreateLessonRequest struct {
	CourseID        string `json:"courseId"`
	Title           string `json:"title"`
	AudioKey        string `json:"audioKey"`
	DurationSeconds int    `json:"durationSeconds"`
	MaxPauses       int    `json:"maxPauses"`
}

// Lesson is lesson metadata as shown to clients.
type Lesson struct {
	ID                string    `json:"id"`
	CourseID          string    `json:"courseId"`
	Title             string    `json:"title"`
	DurationSeconds   int       `json:"durationSeconds"`
	MaxPauses         int       `json:"maxPauses"`
	AccessCodeEnabled bool      `json:"accessCodeEnabled"`
	CreatedAt         time.Time `json:"createdAt"`
}

type LessonList struct {
	Lessons []Lesson `json:"lessons"`
}

// AccessCode is GET /lessons/:id/access-code. AccessCode is empty for learners.
type AccessCode struct {
	LessonID              string     `json:"lessonId"`
	AccessCodeEnabled     bool       `json:"accessCodeEnabled"`
	HasCode               bool       `json:"hasCode"`
	AccessCode            string     `json:"accessCode,omitempty"`
	AccessCodeType        string     `json:"accessCodeType,omitempty"`
	AccessCodeExpiresAt   *time.Time `json:"accessCodeExpiresAt,omitempty"`
	AccessCodeGeneratedAt *time.Time `json:"accessCodeGeneratedAt,omitempty"`
	Expired               bool       `json:"expired"`
}

type GenerateCodeRequest struct {
	CodeType         string `json:"codeType"`
	ExpiresInMinutes *int   `json:"expiresInMinutes,omitempty"`
}

type GeneratedCode struct {
	AccessCode            string     `json:"accessCode"`
	AccessCodeType        string     `json:"accessCodeType"`
	AccessCodeGeneratedAt time.Time  `json:"accessCodeGeneratedAt"`
	AccessCodeExpiresAt   *time.Time `json:"accessCodeExpiresAt,omitempty"`
}

type ToggleRequest struct {
	Enabled *bool `json:"enabled"`
}

type ToggleResponse struct {
	AccessCodeEnabled bool `json:"accessCodeEnabled"`
}

// ClearResponse reports whether a code was actually erased.
type ClearResponse struct {
	Cleared bool `json:"cleared"`
}

type VerifyRequest struct {
	Code string `json:"code"`
}

// VerifyResponse is {valid:true} or {valid:false, error:<reason>}.
type VerifyResponse struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

type EnrollRequest struct {
	UserID string `json:"userId"`
}

type RegisterDeviceRequest struct {
	DeviceID string `json:"deviceId"`
	Name     string `json:"name,omitempty"`
}

// RegisterDownloadRequest carries the hex SHA-256 of the per-download key.
type RegisterDownloadRequest struct {
	LessonID string `json:"lessonId"`
	DeviceID string `json:"deviceId"`
	KeyHash  string `json:"keyHash"`
}

type UnregisterDeviceResponse struct {
	Removed int64 `json:"removed"`
}

type Health struct {
	Status string `json:"status"`
}
