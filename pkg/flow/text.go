package flow

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/familyreel/capture-agent/pkg/clock"
	"github.com/familyreel/capture-agent/pkg/invite"
	"github.com/labstack/gommon/log"
)

var (
	ErrEmptyText   = errors.New("text answer is empty")
	ErrTextTooLong = errors.New("text answer is too long")
)

// TextController publishes a typed answer against the same single-use
// invitation contract as the capture flow, without the capture and upload
// phases.
type TextController struct {
	cfg     Config
	clock   clock.Clock
	invites invite.Submitter

	mu            sync.Mutex
	state         TextState
	submitted     bool
	lastErr       error
	closed        bool
	completeFired bool
	completeTimer clock.Timer
}

func NewTextController(cfg Config, invites invite.Submitter, c clock.Clock) *TextController {
	return &TextController{
		cfg:     cfg,
		clock:   c,
		invites: invites,
		state:   TextStateWriting,
	}
}

// Submit validates and publishes the text answer. A second call while one
// is in flight is ignored; a transient failure returns to writing so the
// user can submit the same text again.
func (c *TextController) Submit(ctx context.Context, text string) error {
	trimmed := strings.TrimSpace(text)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	switch c.state {
	case TextStateSubmitting:
		c.mu.Unlock()
		return nil
	case TextStateComplete:
		c.mu.Unlock()
		return ErrInvalidState
	}
	if trimmed == "" {
		c.mu.Unlock()
		return ErrEmptyText
	}
	if len(trimmed) > invite.MaxTextLength {
		c.mu.Unlock()
		return ErrTextTooLong
	}
	c.state = TextStateSubmitting
	c.lastErr = nil
	c.mu.Unlock()

	_, err := c.invites.SubmitResponse(ctx, c.cfg.InvitationID, invite.Payload{Text: trimmed})
	if err != nil && !errors.Is(err, invite.ErrAlreadyAccepted) {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed {
			return ErrClosed
		}
		c.lastErr = err
		c.state = TextStateWriting
		return err
	}
	if errors.Is(err, invite.ErrAlreadyAccepted) {
		log.Infof("invitation already answered, completing | invitation: %s", c.cfg.InvitationID)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.submitted = true
	c.state = TextStateComplete
	c.completeTimer = c.clock.AfterFunc(completeDelay, c.fireComplete)
	return nil
}

func (c *TextController) fireComplete() {
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

// TextStatus is a point-in-time snapshot for the host application.
type TextStatus struct {
	State      TextState `json:"state"`
	PromptText string    `json:"promptText"`
	Submitted  bool      `json:"submitted"`
	Error      string    `json:"error,omitempty"`
}

func (c *TextController) Status() TextStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := TextStatus{
		State:      c.state,
		PromptText: c.cfg.PromptText,
		Submitted:  c.submitted,
	}
	if c.lastErr != nil {
		st.Error = c.lastErr.Error()
	}
	return st
}

// Close cancels the pending completion callback; an in-flight submit
// finishes on its own and its result is discarded. Idempotent.
func (c *TextController) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if c.completeTimer != nil {
		c.completeTimer.Stop()
	}
}
