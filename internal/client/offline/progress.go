package offline

import (
	"io"

	"github.com/gofrs/uuid/v5"
)

// tracker keeps the published Progress of one download monotonic.
type tracker struct {
	m        *Manager
	lessonID uuid.UUID
	report   func(Progress)

	cur       Progress
	estimated bool
}

func (t *tracker) publish() {
	t.m.mu.Lock()
	t.m.active[t.lessonID] = t.cur
	t.m.mu.Unlock()
	if t.report != nil {
		t.report(t.cur)
	}
}

func (t *tracker) set(s Status) {
	t.cur.LessonID = t.lessonID
	t.cur.Status = s
	t.cur.Err = ""
	if s == StatusPending {
		t.cur.Loaded, t.cur.Total, t.cur.Percent = 0, 0, 0
	}
	t.publish()
}

func (t *tracker) begin(size int64) {
	t.cur.Status = StatusDownloading
	t.cur.Total = size
	if size <= 0 {
		t.cur.Total = EstimatedAudioSize
		t.estimated = true
	}
	t.cur.Percent = 1
	t.publish()
}

func (t *tracker) add(n int64) {
	t.cur.Loaded += n
	if t.estimated && t.cur.Loaded >= t.cur.Total {
		// keep headroom so the bar never reaches 100 before the end
		t.cur.Total = t.cur.Loaded + t.cur.Loaded/4
	}
	p := int(t.cur.Loaded * 100 / t.cur.Total)
	p = min(max(p, 1), 99)
	if p <= t.cur.Percent {
		return
	}
	t.cur.Percent = p
	t.publish()
}

func (t *tracker) complete(size int64) {
	t.cur.Status = StatusCompleted
	t.cur.Loaded, t.cur.Total, t.cur.Percent = size, size, 100
	t.m.mu.Lock()
	delete(t.m.active, t.lessonID)
	t.m.mu.Unlock()
	if t.report != nil {
		t.report(t.cur)
	}
}

func (t *tracker) fail(err error) {
	t.cur.Status = StatusError
	t.cur.Err = err.Error()
	t.cur.Loaded = 0
	t.publish()
}

type progressReader struct {
	r io.Reader
	t *tracker
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.t.add(int64(n))
	}
	return n, err
}
