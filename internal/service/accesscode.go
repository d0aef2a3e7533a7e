package service

import (
	"context"
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	pkgcrypto "github.com/shadanga/kriya/internal/crypto"
	"github.com/shadanga/kriya/internal/errs"
	"github.com/shadanga/kriya/internal/limiter"
	"github.com/shadanga/kriya/internal/model"
	"github.com/shadanga/kriya/internal/repository"
)

// CodeLength is the number of decimal digits in an access code.
const CodeLength = 6

// MaxExpiresInMinutes caps temporary code lifetimes at 30 days.
const MaxExpiresInMinutes = 30 * 24 * 60

// AccessCodeService manages per-lesson access codes.
type AccessCodeService interface {
	// Generate replaces the lesson's code with a fresh random one.
	Generate(ctx context.Context, lessonID uuid.UUID, codeType model.CodeType, expiresInMinutes *int) (model.GeneratedCode, error)
	// Toggle sets whether the lesson requires a code. The stored code is kept.
	Toggle(ctx context.Context, lessonID uuid.UUID, enabled bool) error
	// Clear erases the stored code; errs.ErrNoAccessCode when there is none.
	Clear(ctx context.Context, lessonID uuid.UUID) error
	// Verify checks a submitted code for a learner.
	Verify(ctx context.Context, lessonID uuid.UUID, submitted string, who model.VerifyAttempt) (model.VerifyResult, error)
	// Get returns code metadata; digits are included only for roles that manage lessons.
	Get(ctx context.Context, lessonID uuid.UUID, role model.Role) (model.AccessCodeView, error)
}

type AccessCodeServiceImpl struct {
	lessons repository.LessonRepository
	lim     limiter.Limiter
	now     func() time.Time
	newCode func() (string, error)
	log     *zap.Logger
}

// AccessCodeOption customizes AccessCodeServiceImpl.
type AccessCodeOption func(*AccessCodeServiceImpl)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) AccessCodeOption {
	return func(s *AccessCodeServiceImpl) { s.now = now }
}

// WithCodeSource overrides the random code generator.
func WithCodeSource(gen func() (string, error)) AccessCodeOption {
	return func(s *AccessCodeServiceImpl) { s.newCode = gen }
}

// WithLogger receives limiter bookkeeping failures.
func WithLogger(log *zap.Logger) AccessCodeOption {
	return func(s *AccessCodeServiceImpl) { s.log = log }
}

// NewAccessCodeService constructs AccessCodeService. lim may be nil to disable throttling.
func NewAccessCodeService(lessons repository.LessonRepository, lim limiter.Limiter, opts ...AccessCodeOption) *AccessCodeServiceImpl {
	s := &AccessCodeServiceImpl{
		lessons: lessons,
		lim:     lim,
		now:     time.Now,
		newCode: func() (string, error) { return pkgcrypto.RandomDigits(CodeLength) },
		log:     zap.NewNop(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Generate validates the request, draws a new code and overwrites the stored one.
// A draw equal to the previous code is rejected so the old code always stops verifying.
func (s *AccessCodeServiceImpl) Generate(ctx context.Context, lessonID uuid.UUID, codeType model.CodeType, expiresInMinutes *int) (model.GeneratedCode, error) {
	if lessonID == uuid.Nil {
		return model.GeneratedCode{}, fmt.Errorf("%w: empty lesson id", errs.ErrValidation)
	}
	if !codeType.Valid() {
		return model.GeneratedCode{}, fmt.Errorf("%w: codeType must be permanent or temporary", errs.ErrValidation)
	}
	if codeType == model.CodeTemporary {
		if expiresInMinutes == nil || *expiresInMinutes <= 0 {
			return model.GeneratedCode{}, fmt.Errorf("%w: expiresInMinutes must be a positive integer for temporary codes", errs.ErrValidation)
		}
		if *expiresInMinutes > MaxExpiresInMinutes {
			return model.GeneratedCode{}, fmt.Errorf("%w: expiresInMinutes exceeds %d", errs.ErrValidation, MaxExpiresInMinutes)
		}
	}

	prev, err := s.lessons.GetAccessCode(ctx, lessonID)
	if err != nil {
		return model.GeneratedCode{}, err
	}

	code, err := s.drawCode(prev)
	if err != nil {
		return model.GeneratedCode{}, err
	}

	now := s.now().UTC()
	out := model.GeneratedCode{Code: code, Type: codeType, GeneratedAt: now}
	if codeType == model.CodeTemporary {
		exp := now.Add(time.Duration(*expiresInMinutes) * time.Minute)
		out.ExpiresAt = &exp
	}
	if err := s.lessons.SaveAccessCode(ctx, lessonID, out); err != nil {
		return model.GeneratedCode{}, err
	}
	return out, nil
}

func (s *AccessCodeServiceImpl) drawCode(prev model.AccessCodeState) (string, error) {
	for i := 0; i < 8; i++ {
		code, err := s.newCode()
		if err != nil {
			return "", err
		}
		if !validCode(code) {
			return "", fmt.Errorf("code source produced %q", code)
		}
		if !prev.HasCode() || code != *prev.Code {
			return code, nil
		}
	}
	return "", fmt.Errorf("code source keeps repeating the previous code")
}

// Toggle sets access_code_enabled only.
func (s *AccessCodeServiceImpl) Toggle(ctx context.Context, lessonID uuid.UUID, enabled bool) error {
	if lessonID == uuid.Nil {
		return fmt.Errorf("%w: empty lesson id", errs.ErrValidation)
	}
	return s.lessons.SetAccessCodeEnabled(ctx, lessonID, enabled)
}

// Clear erases the stored code, leaving the enabled flag untouched.
func (s *AccessCodeServiceImpl) Clear(ctx context.Context, lessonID uuid.UUID) error {
	if lessonID == uuid.Nil {
		return fmt.Errorf("%w: empty lesson id", errs.ErrValidation)
	}
	return s.lessons.ClearAccessCode(ctx, lessonID)
}

// Verify validates the submitted code shape before any lookup, then checks
// enabled, presence, expiry and digits in that order. Only digit mismatches
// count towards the attempt limiter.
func (s *AccessCodeServiceImpl) Verify(ctx context.Context, lessonID uuid.UUID, submitted string, who model.VerifyAttempt) (model.VerifyResult, error) {
	if lessonID == uuid.Nil {
		return model.VerifyResult{}, fmt.Errorf("%w: empty lesson id", errs.ErrValidation)
	}
	if !validCode(submitted) {
		return model.VerifyResult{}, fmt.Errorf("%w: code must be exactly %d digits", errs.ErrValidation, CodeLength)
	}

	subject := "verify:" + who.UserID.String() + ":" + lessonID.String()
	ipHash := limiter.HashIP(who.IP)
	if s.lim != nil {
		allowed, _, err := s.lim.Allow(ctx, subject, ipHash)
		if err != nil {
			return model.VerifyResult{}, err
		}
		if !allowed {
			return model.VerifyResult{}, errs.ErrRateLimited
		}
	}

	st, err := s.lessons.GetAccessCode(ctx, lessonID)
	if err != nil {
		return model.VerifyResult{}, err
	}

	switch {
	case !st.Enabled:
		return model.VerifyResult{Reason: model.ReasonCodeDisabled}, nil
	case !st.HasCode():
		return model.VerifyResult{Reason: model.ReasonNoCode}, nil
	case st.Expired(s.now()):
		return model.VerifyResult{Reason: model.ReasonCodeExpired}, nil
	}

	if subtle.ConstantTimeCompare([]byte(submitted), []byte(*st.Code)) != 1 {
		if s.lim != nil {
			blocked, _, ferr := s.lim.Failure(ctx, subject, ipHash)
			if ferr != nil {
				s.log.Warn("record failed code attempt", zap.String("lesson", lessonID.String()), zap.Error(ferr))
			} else if blocked {
				return model.VerifyResult{}, errs.ErrRateLimited
			}
		}
		return model.VerifyResult{Reason: model.ReasonIncorrectCode}, nil
	}

	if s.lim != nil {
		if err := s.lim.Success(ctx, subject, ipHash); err != nil {
			s.log.Warn("reset code attempts", zap.String("lesson", lessonID.String()), zap.Error(err))
		}
	}
	return model.VerifyResult{Valid: true}, nil
}

// Get returns access-code metadata for display.
func (s *AccessCodeServiceImpl) Get(ctx context.Context, lessonID uuid.UUID, role model.Role) (model.AccessCodeView, error) {
	st, err := s.lessons.GetAccessCode(ctx, lessonID)
	if err != nil {
		return model.AccessCodeView{}, err
	}
	v := model.AccessCodeView{
		LessonID:    lessonID,
		Enabled:     st.Enabled,
		HasCode:     st.HasCode(),
		ExpiresAt:   st.ExpiresAt,
		GeneratedAt: st.GeneratedAt,
		Expired:     st.Expired(s.now()),
	}
	if st.Type != nil {
		v.Type = *st.Type
	}
	if role.ManagesLessons() && st.HasCode() {
		v.Code = *st.Code
	}
	return v, nil
}

func validCode(c string) bool {
	if len(c) != CodeLength {
		return false
	}
	for i := 0; i < len(c); i++ {
		if c[i] < '0' || c[i] > '9' {
			return false
		}
	}
	return true
}
