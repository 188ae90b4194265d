package flow

import (
	"bytes"
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/familyreel/capture-agent/pkg/capture"
	"github.com/familyreel/capture-agent/pkg/clock"
	"github.com/familyreel/capture-agent/pkg/invite"
	"github.com/familyreel/capture-agent/pkg/upload"
	"github.com/labstack/gommon/log"
	"github.com/lithammer/shortuuid/v4"
)

const (
	countdownTicks = 3
	countdownTick  = time.Second
	completeDelay  = 2 * time.Second

	targetWidth  = 1280
	targetHeight = 720
)

var (
	ErrClosed       = errors.New("flow closed")
	ErrInvalidState = errors.New("command not valid in current state")
	ErrNoMedia      = errors.New("no captured media")
)

// CaptureSession is the slice of *capture.Session the controller drives.
type CaptureSession interface {
	BeginRecording() error
	EndRecording() error
	Media() *capture.Media
	DiscardMedia()
	Duration() time.Duration
	Release()
}

// SessionFactory builds the capture session for an acquired stream.
type SessionFactory func(capture.Stream) CaptureSession

// Config identifies the invitation a flow answers and the host callback
// fired once the answer is published.
type Config struct {
	InvitationID string
	PromptText   string
	Room         string
	Identity     string
	OnComplete   func()
}

// Controller owns one capture attempt end to end: permission, countdown,
// recording, review, upload and submit. All state lives behind one mutex;
// timers re-check state and attempt generation when they fire so a stale
// tick can never act on a flow that has moved on.
type Controller struct {
	cfg        Config
	clock      clock.Clock
	device     capture.Device
	uploader   upload.Uploader
	invites    invite.Submitter
	newSession SessionFactory

	mu             sync.Mutex
	state          State
	generation     int
	countdown      int
	acquiring      bool
	session        CaptureSession
	progress       int
	contentAddress string
	submitted      bool
	lastErr        error
	closed         bool
	completeFired  bool
	tickTimer      clock.Timer
	completeTimer  clock.Timer
}

func NewController(cfg Config, device capture.Device, uploader upload.Uploader, invites invite.Submitter, c clock.Clock, factory SessionFactory) *Controller {
	if factory == nil {
		muxer := capture.NewFFmpegMuxer(os.TempDir())
		factory = func(stream capture.Stream) CaptureSession {
			return capture.NewSession(stream, c, muxer)
		}
	}
	return &Controller{
		cfg:        cfg,
		clock:      c,
		device:     device,
		uploader:   uploader,
		invites:    invites,
		newSession: factory,
		state:      StatePermission,
	}
}

// Grant asks the device for the camera and microphone. On failure the flow
// stays in permission with the error surfaced; the user may try again.
func (c *Controller) Grant(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state != StatePermission {
		c.mu.Unlock()
		return ErrInvalidState
	}
	if c.acquiring {
		c.mu.Unlock()
		return nil
	}
	c.acquiring = true
	c.mu.Unlock()

	stream, err := c.device.Acquire(ctx, capture.AcquireRequest{
		Room:     c.cfg.Room,
		Identity: c.cfg.Identity,
		Width:    targetWidth,
		Height:   targetHeight,
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	c.acquiring = false
	if c.closed {
		// The flow was torn down while acquiring; free the stream
		if err == nil {
			stream.Close()
		}
		return ErrClosed
	}
	if err != nil {
		c.lastErr = err
		return err
	}
	c.session = c.newSession(stream)
	c.state = StateReady
	c.lastErr = nil
	return nil
}

// StartRecording kicks off the countdown; recording begins automatically
// when it reaches zero.
func (c *Controller) StartRecording() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.state != StateReady {
		return ErrInvalidState
	}
	c.startCountdown()
	return nil
}

// startCountdown is called with the lock held.
func (c *Controller) startCountdown() {
	if c.tickTimer != nil {
		c.tickTimer.Stop()
	}
	c.generation++
	c.countdown = countdownTicks
	c.state = StateCountdown
	c.lastErr = nil
	c.contentAddress = ""
	c.scheduleTick(c.generation)
}

func (c *Controller) scheduleTick(gen int) {
	c.tickTimer = c.clock.AfterFunc(countdownTick, func() {
		c.tick(gen)
	})
}

func (c *Controller) tick(gen int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Stale-timer fencing: the flow may have been closed, retaken or moved
	// out of countdown since this tick was scheduled
	if c.closed || c.state != StateCountdown || gen != c.generation {
		return
	}

	c.countdown--
	if c.countdown > 0 {
		c.scheduleTick(gen)
		return
	}

	if err := c.session.BeginRecording(); err != nil {
		c.lastErr = err
		c.state = StateReady
		return
	}
	c.state = StateRecording
}

// StopRecording finishes the capture and moves to review once the media
// exists.
func (c *Controller) StopRecording() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state != StateRecording {
		c.mu.Unlock()
		return ErrInvalidState
	}
	session := c.session
	c.mu.Unlock()

	err := session.EndRecording()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if err != nil || session.Media() == nil {
		// Engine faults never claim a recording succeeded
		c.lastErr = err
		c.state = StateReady
		return err
	}
	c.state = StateReview
	return nil
}

// Retake discards the captured media and restarts the countdown. The stream
// handle is still held, so permission is not re-requested.
func (c *Controller) Retake() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.state != StateReview {
		return ErrInvalidState
	}
	c.session.DiscardMedia()
	c.startCountdown()
	return nil
}

// Continue uploads the captured media and submits the response. A press
// while already uploading is ignored, not queued. On upload or transient
// submit failure the flow returns to review with the media intact.
func (c *Controller) Continue(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state == StateUploading {
		c.mu.Unlock()
		return nil
	}
	if c.state != StateReview {
		c.mu.Unlock()
		return ErrInvalidState
	}
	media := c.session.Media()
	if media == nil {
		c.mu.Unlock()
		return ErrNoMedia
	}
	gen := c.generation
	url := c.contentAddress
	c.state = StateUploading
	c.progress = 0
	c.lastErr = nil
	c.mu.Unlock()

	// A transient submit failure leaves the uploaded object in place, so a
	// retry only re-issues the submit call
	if url == "" {
		key, err := capture.MediaFilename(shortuuid.New(), media.MimeType)
		if err != nil {
			return c.failAttempt(err)
		}
		url, err = c.uploader.Upload(ctx, key, media.MimeType, bytes.NewReader(media.Bytes), int64(len(media.Bytes)), func(pct int) {
			c.setProgress(gen, pct)
		})
		if err != nil {
			return c.failAttempt(err)
		}
		c.mu.Lock()
		c.contentAddress = url
		c.mu.Unlock()
	} else {
		c.setProgress(gen, 100)
	}

	_, err := c.invites.SubmitResponse(ctx, c.cfg.InvitationID, invite.Payload{
		VideoURL:        url,
		DurationSeconds: int(media.Duration / time.Second),
	})
	if err != nil && !errors.Is(err, invite.ErrAlreadyAccepted) {
		return c.failAttempt(err)
	}
	if errors.Is(err, invite.ErrAlreadyAccepted) {
		// A response already exists for this invitation; from the user's
		// point of view their answer is published
		log.Infof("invitation already answered, completing | invitation: %s", c.cfg.InvitationID)
	}

	return c.complete()
}

// failAttempt returns the flow to review. The media is preserved, so
// pressing continue again never forces a re-record.
func (c *Controller) failAttempt(err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		// The flow is gone; discard the result
		return ErrClosed
	}
	c.lastErr = err
	c.state = StateReview
	return err
}

func (c *Controller) complete() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.submitted = true
	c.state = StateComplete
	c.completeTimer = c.clock.AfterFunc(completeDelay, c.fireComplete)
	return nil
}

func (c *Controller) fireComplete() {
	c.mu.Lock()
	if c.closed || c.completeFired {
		c.mu.Unlock()
		return
	}
	c.completeFired = true
	cb := c.cfg.OnComplete
	c.mu.Unlock()

	if cb != nil {
		cb()
	}
}

func (c *Controller) setProgress(gen int, pct int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.state != StateUploading || gen != c.generation {
		return
	}
	if pct > c.progress {
		c.progress = pct
	}
}

// Status is a point-in-time snapshot for the host application.
type Status struct {
	State           State  `json:"state"`
	PromptText      string `json:"promptText"`
	Countdown       int    `json:"countdown"`
	DurationSeconds int    `json:"durationSeconds"`
	Progress        int    `json:"progress"`
	Submitted       bool   `json:"submitted"`
	Error           string `json:"error,omitempty"`
}

func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := Status{
		State:      c.state,
		PromptText: c.cfg.PromptText,
		Countdown:  c.countdown,
		Progress:   c.progress,
		Submitted:  c.submitted,
	}
	if c.session != nil {
		st.DurationSeconds = int(c.session.Duration() / time.Second)
	}
	if c.lastErr != nil {
		st.Error = c.lastErr.Error()
	}
	return st
}

// Close tears the flow down: every pending timer is cancelled so nothing
// fires into a disposed controller, and the capture session is released so
// the hardware is freed. In-flight network calls finish on their own; their
// results are discarded. Idempotent.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.tickTimer != nil {
		c.tickTimer.Stop()
	}
	if c.completeTimer != nil {
		c.completeTimer.Stop()
	}
	session := c.session
	c.session = nil
	c.mu.Unlock()

	if session != nil {
		session.Release()
	}
}
