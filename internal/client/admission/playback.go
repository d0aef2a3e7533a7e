package admission

import (
	"errors"
	"io"
	"time"
)

var (
	// ErrSeekDisallowed is returned by every Seek.
	ErrSeekDisallowed = errors.New("seeking is disabled for lessons")
	// ErrPauseBudgetExhausted is returned once all allowed pauses are used.
	ErrPauseBudgetExhausted = errors.New("no pauses left for this lesson")
	ErrAlreadyPaused        = errors.New("already paused")
	ErrNotPaused            = errors.New("not paused")
)

// Playback is the Playing phase of a flow.
type Playback struct {
	flow  *Flow
	media io.ReadCloser

	maxPauses  int
	pausesUsed int
	paused     bool
	closed     bool
}

func (p *Playback) playing() error {
	if p.flow.state == Completed {
		return ErrFlowFinished
	}
	if p.flow.state != Playing {
		return ErrWrongState
	}
	return nil
}

// Media is the loaded audio stream.
func (p *Playback) Media() io.Reader { return p.media }

// PausesLeft is maxPauses - pausesUsed, never negative.
func (p *Playback) PausesLeft() int {
	p.flow.mu.Lock()
	defer p.flow.mu.Unlock()
	return max(p.maxPauses-p.pausesUsed, 0)
}

// Paused reports whether playback is paused.
func (p *Playback) Paused() bool {
	p.flow.mu.Lock()
	defer p.flow.mu.Unlock()
	return p.paused
}

// Pause spends one pause from the budget.
func (p *Playback) Pause() error {
	p.flow.mu.Lock()
	defer p.flow.mu.Unlock()
	if err := p.playing(); err != nil {
		return err
	}
	if p.paused {
		return ErrAlreadyPaused
	}
	if p.pausesUsed >= p.maxPauses {
		return ErrPauseBudgetExhausted
	}
	p.pausesUsed++
	p.paused = true
	return nil
}

// Resume continues after a Pause. Resuming never costs budget.
func (p *Playback) Resume() error {
	p.flow.mu.Lock()
	defer p.flow.mu.Unlock()
	if err := p.playing(); err != nil {
		return err
	}
	if !p.paused {
		return ErrNotPaused
	}
	p.paused = false
	return nil
}

// Seek is never allowed.
func (p *Playback) Seek(time.Duration) error {
	p.flow.mu.Lock()
	defer p.flow.mu.Unlock()
	if p.flow.state == Completed {
		return ErrFlowFinished
	}
	return ErrSeekDisallowed
}

// Finish marks end-of-media. Completed is terminal.
func (p *Playback) Finish() error {
	p.flow.mu.Lock()
	defer p.flow.mu.Unlock()
	if err := p.playing(); err != nil {
		return err
	}
	p.flow.state = Completed
	p.paused = false
	return p.closeMedia()
}

// Close releases the media stream without completing the lesson. It is
// safe to call after Finish and more than once.
func (p *Playback) Close() error {
	p.flow.mu.Lock()
	defer p.flow.mu.Unlock()
	return p.closeMedia()
}

func (p *Playback) closeMedia() error {
	if p.closed {
		return nil
	}
	p.closed = true
	return p.media.Close()
}
