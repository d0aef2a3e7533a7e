// Package admission runs the client-side checks a learner passes before a
// lesson plays: access code, device readiness and focus commitment.
package admission

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/shadanga/kriya/internal/errs"
	"github.com/shadanga/kriya/internal/model"
)

// State is the position of one lesson-start attempt.
type State int

const (
	Idle State = iota
	AwaitingCode
	CheckingDevice
	Ready
	Playing
	Completed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingCode:
		return "awaiting_code"
	case CheckingDevice:
		return "checking_device"
	case Ready:
		return "ready"
	case Playing:
		return "playing"
	case Completed:
		return "completed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

var (
	// ErrWrongState is returned when an operation does not apply to the current state.
	ErrWrongState = errors.New("operation not allowed in current state")
	// ErrFlowFinished is returned by every operation once the lesson completed.
	ErrFlowFinished = errors.New("lesson already completed; start a new attempt")
	// ErrAssetLoad wraps loader failures. The flow stays Ready so Start can be retried.
	ErrAssetLoad = errors.New("lesson audio failed to load")
	// ErrChecklistIncomplete is returned by Start before every item is satisfied.
	ErrChecklistIncomplete = errors.New("device checklist incomplete")
)

// Backend is the server side of the flow.
type Backend interface {
	Lesson(ctx context.Context, lessonID uuid.UUID) (model.Lesson, error)
	VerifyCode(ctx context.Context, lessonID uuid.UUID, code string) (model.VerifyResult, error)
}

// AssetLoader opens the lesson's audio for playback.
type AssetLoader func(ctx context.Context, lessonID uuid.UUID) (io.ReadCloser, error)

// Check names a checklist item.
type Check string

const (
	CheckFlightMode Check = "flight_mode"
	CheckEarphones  Check = "earphones"
	CheckFocus      Check = "focus_commitment"
)

// Item is one checklist row.
type Item struct {
	Check    Check
	Required bool
	Detected bool
	Attested bool
	// NeedsAttestation is set when detection failed or is unsupported.
	NeedsAttestation bool
}

// Satisfied reports whether the item no longer blocks Ready.
func (i Item) Satisfied() bool { return !i.Required || i.Detected || i.Attested }

// Options toggles the optional device checks. Focus commitment is always required.
type Options struct {
	RequireFlightMode bool
	RequireEarphones  bool
}

// DefaultOptions requires every check.
var DefaultOptions = Options{RequireFlightMode: true, RequireEarphones: true}

// Flow is one learner's attempt at one lesson. Methods are safe for
// concurrent use but the flow is meant to be driven by a single UI loop.
type Flow struct {
	backend  Backend
	probe    DeviceProbe
	opts     Options
	log      *zap.Logger
	lessonID uuid.UUID

	mu     sync.Mutex
	state  State
	lesson model.Lesson
	items  []Item
}

// New creates a flow in Idle. log may be nil.
func New(backend Backend, probe DeviceProbe, lessonID uuid.UUID, opts Options, log *zap.Logger) *Flow {
	if probe == nil {
		probe = SimulatedProbe{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Flow{backend: backend, probe: probe, opts: opts, log: log, lessonID: lessonID}
}

// State returns the current state.
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Lesson returns the lesson loaded by Begin.
func (f *Flow) Lesson() model.Lesson {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lesson
}

// Checklist returns a copy of the device checklist.
func (f *Flow) Checklist() []Item {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Item(nil), f.items...)
}

func (f *Flow) guard(want State) error {
	if f.state == Completed {
		return ErrFlowFinished
	}
	if f.state != want {
		return fmt.Errorf("%w: %s", ErrWrongState, f.state)
	}
	return nil
}

// Begin loads the lesson. A lesson without an enabled code skips straight
// to the device checklist and the verifier is never called.
func (f *Flow) Begin(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.guard(Idle); err != nil {
		return err
	}
	l, err := f.backend.Lesson(ctx, f.lessonID)
	if err != nil {
		return err
	}
	f.lesson = l
	if l.AccessCodeEnabled {
		f.state = AwaitingCode
		return nil
	}
	f.enterChecking(ctx)
	return nil
}

// SubmitCode verifies a code. A rejected code keeps the flow in
// AwaitingCode and returns the reason; only transport or validation
// failures are errors.
func (f *Flow) SubmitCode(ctx context.Context, code string) (model.VerifyResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.guard(AwaitingCode); err != nil {
		return model.VerifyResult{}, err
	}
	if !sixDigits(code) {
		return model.VerifyResult{}, fmt.Errorf("%w: enter the 6-digit code", errs.ErrValidation)
	}
	res, err := f.backend.VerifyCode(ctx, f.lessonID, code)
	if err != nil {
		return model.VerifyResult{}, err
	}
	if res.Valid {
		f.enterChecking(ctx)
	}
	return res, nil
}

func (f *Flow) enterChecking(ctx context.Context) {
	f.state = CheckingDevice
	f.items = []Item{
		{Check: CheckFlightMode, Required: f.opts.RequireFlightMode},
		{Check: CheckEarphones, Required: f.opts.RequireEarphones},
		{Check: CheckFocus, Required: true, NeedsAttestation: true},
	}
	f.detect(ctx)
	f.advance()
}

func (f *Flow) detect(ctx context.Context) {
	for i := range f.items {
		it := &f.items[i]
		if !it.Required || it.Attested {
			continue
		}
		var (
			ok  bool
			err error
		)
		switch it.Check {
		case CheckFlightMode:
			ok, err = f.probe.FlightMode(ctx)
		case CheckEarphones:
			ok, err = f.probe.Earphones(ctx)
		default:
			continue
		}
		if err != nil {
			if !errors.Is(err, ErrUndetectable) {
				f.log.Debug("device probe failed",
					zap.String("probe", f.probe.Name()),
					zap.String("check", string(it.Check)),
					zap.Error(err))
			}
			it.Detected, it.NeedsAttestation = false, true
			continue
		}
		it.Detected = ok
		it.NeedsAttestation = !ok
	}
}

func (f *Flow) advance() {
	if f.state != CheckingDevice {
		return
	}
	for _, it := range f.items {
		if !it.Satisfied() {
			return
		}
	}
	f.state = Ready
}

// Recheck re-runs auto-detection, e.g. after the learner toggled flight mode.
func (f *Flow) Recheck(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.guard(CheckingDevice); err != nil {
		return err
	}
	f.detect(ctx)
	f.advance()
	return nil
}

// Attest records the learner's manual confirmation of one item.
func (f *Flow) Attest(c Check) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.guard(CheckingDevice); err != nil {
		return err
	}
	for i := range f.items {
		if f.items[i].Check == c {
			f.items[i].Attested = true
			f.advance()
			return nil
		}
	}
	return fmt.Errorf("%w: unknown check %q", errs.ErrValidation, c)
}

// Start loads the audio and enters Playing. A loader failure leaves the
// flow in Ready.
func (f *Flow) Start(ctx context.Context, load AssetLoader) (*Playback, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == CheckingDevice {
		return nil, ErrChecklistIncomplete
	}
	if err := f.guard(Ready); err != nil {
		return nil, err
	}
	media, err := load(ctx, f.lessonID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAssetLoad, err)
	}
	f.state = Playing
	return &Playback{flow: f, media: media, maxPauses: f.lesson.MaxPauses}, nil
}

func sixDigits(s string) bool {
	if len(s) != 6 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
