// Package offline downloads lesson audio, encrypts it with a per-download
// key and keeps it on disk for playback without a network.
package offline

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/shadanga/kriya/internal/client/session"
	"github.com/shadanga/kriya/internal/crypto/clientcrypto"
	"github.com/shadanga/kriya/internal/model"
)

// EstimatedAudioSize stands in for the total when the server sends no length.
const EstimatedAudioSize int64 = 8 << 20

// Status is a download's lifecycle position.
type Status string

const (
	StatusPending     Status = "pending"
	StatusDownloading Status = "downloading"
	StatusEncrypting  Status = "encrypting"
	StatusSaving      Status = "saving"
	StatusCompleted   Status = "completed"
	StatusError       Status = "error"
)

var (
	// ErrNotDownloaded is returned by Open for lessons with no local copy.
	ErrNotDownloaded = errors.New("lesson is not downloaded")
	// ErrInProgress is returned when the lesson is already being downloaded.
	ErrInProgress = errors.New("download already in progress")
	// ErrCorrupt means the local copy failed its integrity check.
	ErrCorrupt = errors.New("offline copy is corrupt; download it again")
)

// Progress is reported on every status change and as bytes arrive.
type Progress struct {
	LessonID uuid.UUID
	Status   Status
	Loaded   int64
	Total    int64
	Percent  int
	// Err is a human-readable message when Status is StatusError.
	Err string
}

// Backend is the server side of offline downloads.
type Backend interface {
	Lesson(ctx context.Context, lessonID uuid.UUID) (model.Lesson, error)
	OpenAudio(ctx context.Context, lessonID uuid.UUID) (io.ReadCloser, int64, error)
	RegisterDevice(ctx context.Context, deviceID uuid.UUID, name string) error
	RegisterDownload(ctx context.Context, lessonID, deviceID uuid.UUID, keyHash []byte) error
	UnregisterDownload(ctx context.Context, lessonID, deviceID uuid.UUID) error
	UnregisterDevice(ctx context.Context, deviceID uuid.UUID) (int64, error)
}

// Entry is one downloaded lesson in the local index.
type Entry struct {
	LessonID        uuid.UUID `json:"lesson_id"`
	CourseID        uuid.UUID `json:"course_id"`
	DownloadedAt    time.Time `json:"downloaded_at"`
	FileSizeBytes   int64     `json:"file_size_bytes"`
	DurationSeconds int       `json:"duration_seconds"`
	KeyHash         string    `json:"key_hash"`
	WrappedKey      []byte    `json:"wrapped_key"`
	Blob            string    `json:"blob"`
}

type index struct {
	Entries map[uuid.UUID]Entry `json:"entries"`
}

// Manager owns one user's offline store on this device.
type Manager struct {
	dir     string
	userID  uuid.UUID
	backend Backend
	log     *zap.Logger
	now     func() time.Time
	name    string

	device    Identity
	deviceKey []byte

	mu     sync.Mutex
	idx    index
	active map[uuid.UUID]Progress
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger for best-effort warnings.
func WithLogger(l *zap.Logger) Option { return func(m *Manager) { m.log = l } }

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(m *Manager) { m.now = now } }

// WithDeviceName sets the name sent with RegisterDevice.
func WithDeviceName(n string) Option { return func(m *Manager) { m.name = n } }

// NewManager opens (or creates) the store for userID under dir.
func NewManager(dir string, userID uuid.UUID, backend Backend, opts ...Option) (*Manager, error) {
	if userID == uuid.Nil {
		return nil, errors.New("offline: empty user id")
	}
	m := &Manager{
		dir:     dir,
		userID:  userID,
		backend: backend,
		log:     zap.NewNop(),
		now:     time.Now,
		active:  make(map[uuid.UUID]Progress),
	}
	for _, o := range opts {
		o(m)
	}
	if m.name == "" {
		m.name, _ = os.Hostname()
	}
	if err := os.MkdirAll(m.blobDir(), 0o700); err != nil {
		return nil, err
	}
	id, err := LoadOrCreateIdentity(dir)
	if err != nil {
		return nil, err
	}
	m.device = id
	m.deviceKey, err = clientcrypto.DeriveDeviceKey(id.Secret, id.DeviceID.Bytes())
	if err != nil {
		return nil, err
	}
	if err := m.loadIndex(); err != nil {
		return nil, err
	}
	return m, nil
}

// DeviceID is this device's identifier.
func (m *Manager) DeviceID() uuid.UUID { return m.device.DeviceID }

func (m *Manager) userDir() string { return filepath.Join(m.dir, m.userID.String()) }
func (m *Manager) blobDir() string { return filepath.Join(m.userDir(), "blobs") }
func (m *Manager) indexPath() string { return filepath.Join(m.userDir(), "downloads.json") }

func (m *Manager) loadIndex() error {
	m.idx = index{Entries: map[uuid.UUID]Entry{}}
	b, err := os.ReadFile(m.indexPath())
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, &m.idx); err != nil {
		return fmt.Errorf("offline index: %w", err)
	}
	if m.idx.Entries == nil {
		m.idx.Entries = map[uuid.UUID]Entry{}
	}
	return nil
}

// saveIndex must be called with mu held.
func (m *Manager) saveIndex() error {
	b, err := json.MarshalIndent(m.idx, "", "  ")
	if err != nil {
		return err
	}
	return session.WriteFileAtomic(m.indexPath(), b, 0o600)
}

// RegisterDevice announces the device to the server.
func (m *Manager) RegisterDevice(ctx context.Context) error {
	return m.backend.RegisterDevice(ctx, m.device.DeviceID, m.name)
}

// Status returns the progress of an in-flight or failed download, or a
// completed/absent status derived from the index.
func (m *Manager) Status(lessonID uuid.UUID) Progress {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.active[lessonID]; ok {
		return p
	}
	if e, ok := m.idx.Entries[lessonID]; ok {
		return Progress{LessonID: lessonID, Status: StatusCompleted, Loaded: e.FileSizeBytes, Total: e.FileSizeBytes, Percent: 100}
	}
	return Progress{LessonID: lessonID}
}

// IsLessonDownloaded reports whether a completed local copy exists.
func (m *Manager) IsLessonDownloaded(lessonID uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.idx.Entries[lessonID]
	return ok
}

// List returns downloaded lessons, newest first.
func (m *Manager) List() []Entry {
	m.mu.Lock()
	out := make([]Entry, 0, len(m.idx.Entries))
	for _, e := range m.idx.Entries {
		out = append(out, e)
	}
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].DownloadedAt.After(out[j].DownloadedAt) })
	return out
}

// Open decrypts a downloaded lesson for playback.
func (m *Manager) Open(lessonID uuid.UUID) ([]byte, error) {
	m.mu.Lock()
	e, ok := m.idx.Entries[lessonID]
	m.mu.Unlock()
	if !ok {
		return nil, ErrNotDownloaded
	}
	key, err := clientcrypto.UnwrapKey(m.deviceKey, e.WrappedKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if hex.EncodeToString(clientcrypto.KeyHash(key)) != e.KeyHash {
		return nil, ErrCorrupt
	}
	blob, err := os.ReadFile(filepath.Join(m.blobDir(), e.Blob))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	plain, err := clientcrypto.DecryptAsset(key, m.userID.Bytes(), lessonID.Bytes(), m.device.DeviceID.Bytes(), blob)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return plain, nil
}

// RemoveDownload deletes the local copy, then tells the server. Server
// failures are logged and do not fail the removal.
func (m *Manager) RemoveDownload(ctx context.Context, lessonID uuid.UUID) error {
	m.mu.Lock()
	e, ok := m.idx.Entries[lessonID]
	if !ok {
		m.mu.Unlock()
		return nil
	}
	delete(m.idx.Entries, lessonID)
	err := m.saveIndex()
	m.mu.Unlock()
	if err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(m.blobDir(), e.Blob)); err != nil && !errors.Is(err, os.ErrNotExist) {
		m.log.Warn("remove offline blob", zap.String("lesson", lessonID.String()), zap.Error(err))
	}

	if err := m.backend.UnregisterDownload(ctx, lessonID, m.device.DeviceID); err != nil {
		m.log.Warn("server unregister failed; local copy removed",
			zap.String("lesson", lessonID.String()), zap.Error(err))
	}
	return nil
}

// ClearAllDownloads deletes every local copy, then asks the server to drop
// all registrations of this device.
func (m *Manager) ClearAllDownloads(ctx context.Context) error {
	m.mu.Lock()
	m.idx.Entries = map[uuid.UUID]Entry{}
	err := m.saveIndex()
	m.mu.Unlock()
	if err != nil {
		return err
	}
	if err := os.RemoveAll(m.blobDir()); err != nil {
		return err
	}
	if err := os.MkdirAll(m.blobDir(), 0o700); err != nil {
		return err
	}

	n, err := m.backend.UnregisterDevice(ctx, m.device.DeviceID)
	if err != nil {
		m.log.Warn("server unregister failed; local copies removed", zap.Error(err))
		return nil
	}
	m.log.Debug("server registrations removed", zap.Int64("count", n))
	return nil
}

// StartDownload runs pending → downloading → encrypting → saving →
// completed, reporting each step to progress (which may be nil). On failure
// the status becomes error, partial bytes are discarded and the returned
// error carries a human-readable message. Calling it again retries from
// pending.
func (m *Manager) StartDownload(ctx context.Context, lessonID, courseID uuid.UUID, progress func(Progress)) (Entry, error) {
	m.mu.Lock()
	if p, busy := m.active[lessonID]; busy && p.Status != StatusError {
		m.mu.Unlock()
		return Entry{}, ErrInProgress
	}
	m.active[lessonID] = Progress{LessonID: lessonID, Status: StatusPending}
	m.mu.Unlock()

	t := &tracker{m: m, lessonID: lessonID, report: progress}
	t.set(StatusPending)

	e, err := m.download(ctx, t, lessonID, courseID)
	if err != nil {
		t.fail(err)
		return Entry{}, err
	}
	t.complete(e.FileSizeBytes)
	return e, nil
}

func (m *Manager) download(ctx context.Context, t *tracker, lessonID, courseID uuid.UUID) (Entry, error) {
	rc, size, err := m.backend.OpenAudio(ctx, lessonID)
	if err != nil {
		return Entry{}, fmt.Errorf("could not start download: %w", err)
	}
	t.begin(size)

	var buf bytes.Buffer
	if size > 0 {
		buf.Grow(int(size))
	}
	_, err = io.Copy(&buf, &progressReader{r: rc, t: t})
	_ = rc.Close()
	if err != nil {
		return Entry{}, fmt.Errorf("download interrupted, check your connection and retry: %w", err)
	}
	plain := buf.Bytes()

	t.set(StatusEncrypting)
	key, err := clientcrypto.NewDownloadKey()
	if err != nil {
		return Entry{}, err
	}
	sealed, err := clientcrypto.EncryptAsset(key, m.userID.Bytes(), lessonID.Bytes(), m.device.DeviceID.Bytes(), plain)
	if err != nil {
		return Entry{}, err
	}
	wrapped, err := clientcrypto.WrapKey(m.deviceKey, key)
	if err != nil {
		return Entry{}, err
	}
	hash := clientcrypto.KeyHash(key)
	if err := m.backend.RegisterDownload(ctx, lessonID, m.device.DeviceID, hash); err != nil {
		return Entry{}, fmt.Errorf("could not register download: %w", err)
	}

	t.set(StatusSaving)
	e := Entry{
		LessonID:      lessonID,
		CourseID:      courseID,
		DownloadedAt:  m.now().UTC(),
		FileSizeBytes: int64(len(plain)),
		KeyHash:       hex.EncodeToString(hash),
		WrappedKey:    wrapped,
		Blob:          lessonID.String() + ".bin",
	}
	if l, err := m.backend.Lesson(ctx, lessonID); err == nil {
		e.DurationSeconds = l.DurationSeconds
	} else {
		m.log.Debug("lesson metadata unavailable", zap.String("lesson", lessonID.String()), zap.Error(err))
	}

	hadPrev, err := m.save(e, sealed)
	if err != nil {
		m.rollbackRegistration(ctx, lessonID, hadPrev)
		return Entry{}, fmt.Errorf("could not save download: %w", err)
	}
	return e, nil
}

// save writes the blob and commits e to the index. On failure it reports
// whether an older copy of the lesson is still indexed.
func (m *Manager) save(e Entry, sealed []byte) (bool, error) {
	m.mu.Lock()
	old, hadPrev := m.idx.Entries[e.LessonID]
	m.mu.Unlock()

	path := filepath.Join(m.blobDir(), e.Blob)
	if err := session.WriteFileAtomic(path, sealed, 0o600); err != nil {
		return hadPrev, err
	}
	m.mu.Lock()
	m.idx.Entries[e.LessonID] = e
	err := m.saveIndex()
	if err != nil {
		if hadPrev {
			m.idx.Entries[e.LessonID] = old
		} else {
			delete(m.idx.Entries, e.LessonID)
		}
	}
	m.mu.Unlock()
	if err != nil && !hadPrev {
		_ = os.Remove(path)
	}
	return hadPrev, err
}

// rollbackRegistration undoes the server registration of a download whose
// local save failed. An older local copy gets its own key hash back.
func (m *Manager) rollbackRegistration(ctx context.Context, lessonID uuid.UUID, hadPrev bool) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	var err error
	if hadPrev {
		m.mu.Lock()
		old := m.idx.Entries[lessonID]
		m.mu.Unlock()
		var hash []byte
		if hash, err = hex.DecodeString(old.KeyHash); err == nil {
			err = m.backend.RegisterDownload(ctx, lessonID, m.device.DeviceID, hash)
		}
	} else {
		err = m.backend.UnregisterDownload(ctx, lessonID, m.device.DeviceID)
	}
	if err != nil {
		m.log.Warn("server registration rollback failed",
			zap.String("lesson", lessonID.String()), zap.Error(err))
	}
}
