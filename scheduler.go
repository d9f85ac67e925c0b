package dieseltri

import (
	"time"

	"github.com/pkg/errors"
)

// FrameState is where the scheduler is in the per-frame cycle.
type FrameState int

const (
	// FrameIdle means no work is pending beyond the tracked completion token.
	FrameIdle FrameState = iota
	FrameAcquiring
	FrameSubmitted
)

func (s FrameState) String() string {
	switch s {
	case FrameIdle:
		return "idle"
	case FrameAcquiring:
		return "acquiring"
	case FrameSubmitted:
		return "submitted"
	}
	return "unknown"
}

// FramePolicy tunes how the scheduler reacts to the presentation engine.
type FramePolicy struct {
	// AcquireTimeout bounds the image acquire. Zero waits forever.
	AcquireTimeout time.Duration
	// RebuildOnSuboptimal schedules a rebuild when acquire or present
	// reports a suboptimal chain. Off by default so resizes in progress
	// do not thrash the swapchain.
	RebuildOnSuboptimal bool
}

// Stats counts what happened to frames over the scheduler's lifetime.
type Stats struct {
	Submitted   uint64
	Rebuilds    uint64
	OutOfDate   uint64
	Timeouts    uint64
	Failed      uint64
	Suboptimal  uint64
	Suspensions uint64
}

// Scheduler drives acquire, submit and present for one swapchain at a
// time. At most one submission is unconfirmed: the previous token is
// handed to the next submission before it is replaced.
type Scheduler struct {
	dev     *LogicalDeviceContext
	manager *SwapchainManager
	state   *SwapchainState
	policy  FramePolicy

	previous       CompletionToken
	rebuildPending bool
	suspended      bool
	frame          FrameState
	stats          Stats
}

func NewScheduler(dev *LogicalDeviceContext, manager *SwapchainManager, state *SwapchainState, policy FramePolicy) *Scheduler {
	return &Scheduler{
		dev:      dev,
		manager:  manager,
		state:    state,
		policy:   policy,
		previous: CompletedToken(),
	}
}

// DrawFrame runs one frame. Out of date chains, acquire timeouts and
// submission failures are absorbed and the frame dropped. Out of date
// chains and failed submissions schedule a rebuild. The returned
// error is either a *SwapchainCreationError from a rebuild, which may be
// retried, or a fatal acquire failure.
func (s *Scheduler) DrawFrame() error {
	s.previous.CleanupFinished()

	if s.rebuildPending {
		if err := s.rebuild(); err != nil {
			if errors.Is(err, ErrSurfaceZeroExtent) {
				if !s.suspended {
					Logger().Debug("surface has no area, frames suspended")
					s.stats.Suspensions++
				}
				s.suspended = true
				return nil
			}
			return err
		}
	}

	s.frame = FrameAcquiring
	acq, err := s.dev.Device.AcquireNextImage(s.state.Swapchain, s.policy.AcquireTimeout)
	switch {
	case err == nil:
	case IsStale(err):
		Logger().Debug("acquire: swapchain out of date", "generation", s.state.Generation)
		s.rebuildPending = true
		s.stats.OutOfDate++
		s.frame = FrameIdle
		return nil
	case errors.Is(err, ErrAcquireTimeout):
		Logger().Debug("acquire timed out", "timeout", s.policy.AcquireTimeout)
		s.stats.Timeouts++
		s.frame = FrameIdle
		return nil
	default:
		s.frame = FrameIdle
		return errors.Wrap(err, "acquire next image")
	}
	if acq.Suboptimal {
		s.suboptimal()
	}
	if acq.Image < 0 || acq.Image >= len(s.state.Commands) {
		s.frame = FrameIdle
		return errors.Errorf("acquired image %d outside swapchain of %d images", acq.Image, len(s.state.Commands))
	}

	p, err := s.dev.Device.SubmitPresent(&FrameSubmission{
		Graphics: s.dev.Graphics,
		Present:  s.dev.Present,
		Wait:     s.previous,
		Acquired: acq,
		Commands: s.state.Commands[acq.Image],
	})
	switch {
	case err == nil:
		s.previous = p.Token
		s.stats.Submitted++
		s.frame = FrameSubmitted
		if p.Suboptimal {
			s.suboptimal()
		}
	case IsStale(err):
		Logger().Debug("present: swapchain out of date", "generation", s.state.Generation)
		s.previous = CompletedToken()
		s.rebuildPending = true
		s.stats.OutOfDate++
		s.frame = FrameIdle
	default:
		// The dropped image was never presented and stays acquired, so
		// the chain is recreated to get it back.
		Logger().Warn("frame dropped", "image", acq.Image, "err", err)
		s.previous = CompletedToken()
		s.rebuildPending = true
		s.stats.Failed++
		s.frame = FrameIdle
	}
	return nil
}

func (s *Scheduler) suboptimal() {
	s.stats.Suboptimal++
	if s.policy.RebuildOnSuboptimal {
		s.rebuildPending = true
	}
}

func (s *Scheduler) rebuild() error {
	next, err := s.manager.Create(s.state)
	if err != nil {
		return err
	}
	s.state = next
	s.rebuildPending = false
	s.suspended = false
	s.stats.Rebuilds++
	return nil
}

// NotifyResize records a new framebuffer size. The swapchain is rebuilt
// at the start of the next DrawFrame.
func (s *Scheduler) NotifyResize(width, height uint32) {
	s.manager.Resize(width, height)
	s.rebuildPending = true
}

// RebuildPending reports whether the next DrawFrame rebuilds the swapchain.
func (s *Scheduler) RebuildPending() bool {
	return s.rebuildPending
}

// Suspended reports whether frames are skipped because the surface has no area.
func (s *Scheduler) Suspended() bool {
	return s.suspended
}

// State returns the current frame state. A submitted frame whose work has
// finished reads as idle.
func (s *Scheduler) State() FrameState {
	if s.frame == FrameSubmitted && s.previous.Done() {
		return FrameIdle
	}
	return s.frame
}

// Swapchain returns the current swapchain generation.
func (s *Scheduler) Swapchain() *SwapchainState {
	return s.state
}

// Stats returns a snapshot of the frame counters.
func (s *Scheduler) Stats() Stats {
	return s.stats
}

// Wait blocks until the last submitted frame has finished.
func (s *Scheduler) Wait() error {
	err := s.previous.Wait()
	s.previous.CleanupFinished()
	s.previous = CompletedToken()
	s.frame = FrameIdle
	return err
}

// Destroy waits for the last frame and releases the swapchain generation.
func (s *Scheduler) Destroy() {
	if s == nil {
		return
	}
	if err := s.Wait(); err != nil {
		Logger().Warn("waiting for last frame", "err", err)
	}
	s.state.Destroy()
	s.state = nil
}
