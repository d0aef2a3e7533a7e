package service

import (
	"bytes"
	"context"
	"io"
	"sort"

	"github.com/gofrs/uuid/v5"

	"github.com/shadanga/kriya/internal/errs"
	"github.com/shadanga/kriya/internal/model"
	"github.com/shadanga/kriya/internal/repository"
	"github.com/shadanga/kriya/internal/storage"
)

type fakeLessons struct {
	rows  map[uuid.UUID]*model.Lesson
	codes map[uuid.UUID]model.AccessCodeState

	getCodeCalls int
	saveErr      error
}

var _ repository.LessonRepository = (*fakeLessons)(nil)

func newFakeLessons() *fakeLessons {
	return &fakeLessons{rows: map[uuid.UUID]*model.Lesson{}, codes: map[uuid.UUID]model.AccessCodeState{}}
}

func (f *fakeLessons) add(enabled bool) uuid.UUID {
	id := uuid.Must(uuid.NewV4())
	f.rows[id] = &model.Lesson{ID: id, CourseID: uuid.Must(uuid.NewV4()), Title: "t", AudioKey: "k", AccessCodeEnabled: enabled}
	f.codes[id] = model.AccessCodeState{LessonID: id, Enabled: enabled}
	return id
}

func (f *fakeLessons) Create(_ context.Context, l *model.Lesson) error {
	if _, ok := f.rows[l.ID]; ok {
		return errs.ErrAlreadyExists
	}
	c := *l
	f.rows[l.ID] = &c
	f.codes[l.ID] = model.AccessCodeState{LessonID: l.ID, Enabled: l.AccessCodeEnabled}
	return nil
}

func (f *fakeLessons) Get(_ context.Context, id uuid.UUID) (*model.Lesson, error) {
	l, ok := f.rows[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := *l
	c.AccessCodeEnabled = f.codes[id].Enabled
	return &c, nil
}

func (f *fakeLessons) ListByCourse(_ context.Context, courseID uuid.UUID) ([]model.Lesson, error) {
	var out []model.Lesson
	for _, l := range f.rows {
		if l.CourseID == courseID {
			out = append(out, *l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}

func (f *fakeLessons) GetAccessCode(_ context.Context, id uuid.UUID) (model.AccessCodeState, error) {
	f.getCodeCalls++
	st, ok := f.codes[id]
	if !ok {
		return model.AccessCodeState{}, errs.ErrNotFound
	}
	return st, nil
}

func (f *fakeLessons) SaveAccessCode(_ context.Context, id uuid.UUID, code model.GeneratedCode) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	st, ok := f.codes[id]
	if !ok {
		return errs.ErrNotFound
	}
	c, typ, gen := code.Code, code.Type, code.GeneratedAt
	st.Code, st.Type, st.GeneratedAt, st.ExpiresAt = &c, &typ, &gen, code.ExpiresAt
	f.codes[id] = st
	return nil
}

func (f *fakeLessons) SetAccessCodeEnabled(_ context.Context, id uuid.UUID, enabled bool) error {
	st, ok := f.codes[id]
	if !ok {
		return errs.ErrNotFound
	}
	st.Enabled = enabled
	f.codes[id] = st
	return nil
}

func (f *fakeLessons) ClearAccessCode(_ context.Context, id uuid.UUID) error {
	st, ok := f.codes[id]
	if !ok {
		return errs.ErrNotFound
	}
	if !st.HasCode() {
		return errs.ErrNoAccessCode
	}
	f.codes[id] = model.AccessCodeState{LessonID: id, Enabled: st.Enabled}
	return nil
}

type enrollKey struct{ user, course uuid.UUID }

type fakeEnrollments struct {
	set map[enrollKey]bool
	err error
}

var _ repository.EnrollmentRepository = (*fakeEnrollments)(nil)

func (f *fakeEnrollments) Enroll(_ context.Context, u, c uuid.UUID) error {
	if f.err != nil {
		return f.err
	}
	if f.set == nil {
		f.set = map[enrollKey]bool{}
	}
	f.set[enrollKey{u, c}] = true
	return nil
}

func (f *fakeEnrollments) IsEnrolled(_ context.Context, u, c uuid.UUID) (bool, error) {
	return f.set[enrollKey{u, c}], f.err
}

type fakeAssets struct {
	blobs map[string][]byte
	opens int
}

var _ storage.AssetStore = (*fakeAssets)(nil)

func (f *fakeAssets) Open(_ context.Context, key string) (io.ReadCloser, int64, error) {
	f.opens++
	b, ok := f.blobs[key]
	if !ok {
		return nil, 0, errs.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), int64(len(b)), nil
}

type devKey struct{ user, device uuid.UUID }
type regKey struct{ user, lesson, device uuid.UUID }

type fakeDownloads struct {
	devices map[devKey]model.Device
	regs    map[regKey]model.DownloadRegistration
}

var _ repository.DownloadRepository = (*fakeDownloads)(nil)

func newFakeDownloads() *fakeDownloads {
	return &fakeDownloads{devices: map[devKey]model.Device{}, regs: map[regKey]model.DownloadRegistration{}}
}

func (f *fakeDownloads) UpsertDevice(_ context.Context, d model.Device) error {
	f.devices[devKey{d.UserID, d.DeviceID}] = d
	return nil
}

func (f *fakeDownloads) DeviceExists(_ context.Context, u, d uuid.UUID) (bool, error) {
	_, ok := f.devices[devKey{u, d}]
	return ok, nil
}

func (f *fakeDownloads) UpsertRegistration(_ context.Context, r model.DownloadRegistration) error {
	f.regs[regKey{r.UserID, r.LessonID, r.DeviceID}] = r
	return nil
}

func (f *fakeDownloads) DeleteRegistration(_ context.Context, u, l, d uuid.UUID) error {
	k := regKey{u, l, d}
	if _, ok := f.regs[k]; !ok {
		return errs.ErrNotFound
	}
	delete(f.regs, k)
	return nil
}

func (f *fakeDownloads) DeleteDeviceRegistrations(_ context.Context, u, d uuid.UUID) (int64, error) {
	var n int64
	for k := range f.regs {
		if k.user == u && k.device == d {
			delete(f.regs, k)
			n++
		}
	}
	return n, nil
}
