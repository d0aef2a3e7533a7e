// Package api is the HTTP client for the lesson REST API.
package api

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/shadanga/kriya/internal/errs"
	"github.com/shadanga/kriya/internal/model"
	"github.com/shadanga/kriya/internal/wire"
)

// ErrNetwork wraps transport failures (DNS, refused, reset, timeouts).
var ErrNetwork = errors.New("network error")

// Error is a non-2xx response decoded from the error envelope.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return e.Message
}

// Is lets errors.Is match server errors against the shared sentinels.
func (e *Error) Is(target error) bool {
	switch e.Code {
	case wire.CodeValidation:
		return target == errs.ErrValidation
	case wire.CodeUnauthorized:
		return target == errs.ErrUnauthorized
	case wire.CodeForbidden:
		return target == errs.ErrForbidden
	case wire.CodeNotEnrolled:
		return target == errs.ErrNotEnrolled || target == errs.ErrForbidden
	case wire.CodeNoAccessCode:
		return target == errs.ErrNoAccessCode || target == errs.ErrNotFound
	case wire.CodeNotFound:
		return target == errs.ErrNotFound
	case wire.CodeConflict:
		return target == errs.ErrAlreadyExists
	case wire.CodeRateLimited:
		return target == errs.ErrRateLimited
	}
	return false
}

// Client talks to one API base URL. It is safe for concurrent use.
type Client struct {
	base  string
	hc    *http.Client
	token string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.hc = hc } }

// WithToken sets the bearer token sent on every request.
func WithToken(tok string) Option { return func(c *Client) { c.token = tok } }

// New returns a client for baseURL, e.g. "http://localhost:8080/api".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		base: strings.TrimRight(baseURL, "/"),
		hc:   &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Authed returns a copy of c that sends tok.
func (c *Client) Authed(tok string) *Client {
	cp := *c
	cp.token = tok
	return &cp
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

// send performs the request and returns the response when the status is 2xx.
// Otherwise the body is decoded into *Error and closed.
func (c *Client) send(req *http.Request) (*http.Response, error) {
	resp, err := c.hc.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()
	apiErr := &Error{Status: resp.StatusCode}
	var env wire.ErrorEnvelope
	if b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10)); json.Unmarshal(b, &env) == nil {
		apiErr.Code = env.Error.Code
		apiErr.Message = env.Error.Message
	}
	return nil, apiErr
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	req, err := c.newRequest(ctx, method, path, in)
	if err != nil {
		return err
	}
	resp, err := c.send(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// Register creates an account. role may be empty for a learner.
func (c *Client) Register(ctx context.Context, username, password, role string) (uuid.UUID, error) {
	var out wire.RegisterResponse
	if err := c.do(ctx, http.MethodPost, "/register", wire.RegisterRequest{Username: username, Password: password, Role: role}, &out); err != nil {
		return uuid.Nil, err
	}
	return uuid.FromString(out.UserID)
}

// Login exchanges credentials for an access token.
func (c *Client) Login(ctx context.Context, username, password string) (wire.LoginResponse, error) {
	var out wire.LoginResponse
	err := c.do(ctx, http.MethodPost, "/login", wire.LoginRequest{Username: username, Password: password}, &out)
	return out, err
}

func fromWireLesson(w wire.Lesson) (model.Lesson, error) {
	id, err := uuid.FromString(w.ID)
	if err != nil {
		return model.Lesson{}, fmt.Errorf("lesson id: %w", err)
	}
	course, err := uuid.FromString(w.CourseID)
	if err != nil {
		return model.Lesson{}, fmt.Errorf("course id: %w", err)
	}
	return model.Lesson{
		ID:                id,
		CourseID:          course,
		Title:             w.Title,
		DurationSeconds:   w.DurationSeconds,
		MaxPauses:         w.MaxPauses,
		AccessCodeEnabled: w.AccessCodeEnabled,
		CreatedAt:         w.CreatedAt,
	}, nil
}

// CreateLesson adds a lesson (admin/facilitator).
func (c *Client) CreateLesson(ctx context.Context, in wire.CreateLessonRequest) (model.Lesson, error) {
	var out wire.Lesson
	if err := c.do(ctx, http.MethodPost, "/lessons", in, &out); err != nil {
		return model.Lesson{}, err
	}
	return fromWireLesson(out)
}

// Lesson fetches lesson metadata.
func (c *Client) Lesson(ctx context.Context, id uuid.UUID) (model.Lesson, error) {
	var out wire.Lesson
	if err := c.do(ctx, http.MethodGet, "/lessons/"+id.String(), nil, &out); err != nil {
		return model.Lesson{}, err
	}
	return fromWireLesson(out)
}

// Lessons lists a course's lessons.
func (c *Client) Lessons(ctx context.Context, courseID uuid.UUID) ([]model.Lesson, error) {
	var out wire.LessonList
	if err := c.do(ctx, http.MethodGet, "/courses/"+courseID.String()+"/lessons", nil, &out); err != nil {
		return nil, err
	}
	ls := make([]model.Lesson, 0, len(out.Lessons))
	for _, w := range out.Lessons {
		l, err := fromWireLesson(w)
		if err != nil {
			return nil, err
		}
		ls = append(ls, l)
	}
	return ls, nil
}

// Enroll enrolls a user in a course (admin).
func (c *Client) Enroll(ctx context.Context, courseID, userID uuid.UUID) error {
	return c.do(ctx, http.MethodPost, "/courses/"+courseID.String()+"/enrollments", wire.EnrollRequest{UserID: userID.String()}, nil)
}

// AccessCode returns code metadata; the digits are present only for managers.
func (c *Client) AccessCode(ctx context.Context, lessonID uuid.UUID) (wire.AccessCode, error) {
	var out wire.AccessCode
	err := c.do(ctx, http.MethodGet, "/lessons/"+lessonID.String()+"/access-code", nil, &out)
	return out, err
}

// GenerateCode draws a new code. expiresInMinutes is required for temporary codes.
func (c *Client) GenerateCode(ctx context.Context, lessonID uuid.UUID, codeType model.CodeType, expiresInMinutes *int) (wire.GeneratedCode, error) {
	var out wire.GeneratedCode
	err := c.do(ctx, http.MethodPost, "/lessons/"+lessonID.String()+"/access-code/generate",
		wire.GenerateCodeRequest{CodeType: string(codeType), ExpiresInMinutes: expiresInMinutes}, &out)
	return out, err
}

// ToggleCode enables or bypasses the lesson's code.
func (c *Client) ToggleCode(ctx context.Context, lessonID uuid.UUID, enabled bool) error {
	return c.do(ctx, http.MethodPut, "/lessons/"+lessonID.String()+"/access-code/toggle", wire.ToggleRequest{Enabled: &enabled}, nil)
}

// ClearCode erases the code and reports whether one existed.
func (c *Client) ClearCode(ctx context.Context, lessonID uuid.UUID) (bool, error) {
	var out wire.ClearResponse
	err := c.do(ctx, http.MethodDelete, "/lessons/"+lessonID.String()+"/access-code", nil, &out)
	return out.Cleared, err
}

// VerifyCode checks a code. A wrong code is a result, not an error.
func (c *Client) VerifyCode(ctx context.Context, lessonID uuid.UUID, code string) (model.VerifyResult, error) {
	var out wire.VerifyResponse
	if err := c.do(ctx, http.MethodPost, "/lessons/"+lessonID.String()+"/access-code/verify", wire.VerifyRequest{Code: code}, &out); err != nil {
		return model.VerifyResult{}, err
	}
	if out.Valid {
		return model.VerifyResult{Valid: true}, nil
	}
	reason := model.VerifyReason(out.Error)
	if reason == "" {
		reason = model.ReasonIncorrectCode
	}
	return model.VerifyResult{Reason: reason}, nil
}

// OpenAudio streams the lesson's audio. size is -1 when the server did not
// announce a length. The caller closes the reader.
func (c *Client) OpenAudio(ctx context.Context, lessonID uuid.UUID) (io.ReadCloser, int64, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/lessons/"+lessonID.String()+"/audio", nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Accept", "application/octet-stream")
	resp, err := c.send(req)
	if err != nil {
		return nil, 0, err
	}
	return &networkReader{rc: resp.Body}, resp.ContentLength, nil
}

// networkReader tags mid-stream failures as ErrNetwork.
type networkReader struct{ rc io.ReadCloser }

func (r *networkReader) Read(p []byte) (int, error) {
	n, err := r.rc.Read(p)
	if err != nil && err != io.EOF && !errors.Is(err, context.Canceled) {
		return n, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	return n, err
}

func (r *networkReader) Close() error { return r.rc.Close() }

// RegisterDevice announces this device for offline downloads.
func (c *Client) RegisterDevice(ctx context.Context, deviceID uuid.UUID, name string) error {
	return c.do(ctx, http.MethodPost, "/devices", wire.RegisterDeviceRequest{DeviceID: deviceID.String(), Name: name}, nil)
}

// RegisterDownload records the key hash of an offline copy.
func (c *Client) RegisterDownload(ctx context.Context, lessonID, deviceID uuid.UUID, keyHash []byte) error {
	return c.do(ctx, http.MethodPost, "/downloads", wire.RegisterDownloadRequest{
		LessonID: lessonID.String(),
		DeviceID: deviceID.String(),
		KeyHash:  hex.EncodeToString(keyHash),
	}, nil)
}

// UnregisterDownload drops one registration.
func (c *Client) UnregisterDownload(ctx context.Context, lessonID, deviceID uuid.UUID) error {
	q := url.Values{"device": {deviceID.String()}}
	return c.do(ctx, http.MethodDelete, "/downloads/"+lessonID.String()+"?"+q.Encode(), nil, nil)
}

// UnregisterDevice drops every registration of the device.
func (c *Client) UnregisterDevice(ctx context.Context, deviceID uuid.UUID) (int64, error) {
	var out wire.UnregisterDeviceResponse
	err := c.do(ctx, http.MethodDelete, "/devices/"+deviceID.String()+"/downloads", nil, &out)
	return out.Removed, err
}
