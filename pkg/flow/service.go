package flow

import (
	"context"
	"errors"
	"sync"

	"github.com/familyreel/capture-agent/pkg/capture"
	"github.com/familyreel/capture-agent/pkg/clock"
	"github.com/familyreel/capture-agent/pkg/invite"
	"github.com/familyreel/capture-agent/pkg/upload"
	"github.com/labstack/gommon/log"
)

var (
	ErrFlowExists   = errors.New("flow already exists for invitation")
	ErrFlowNotFound = errors.New("no flow for invitation")
)

// Mode selects which answer flow an invitation enters.
type Mode string

const (
	ModeCapture Mode = "capture"
	ModeText    Mode = "text-entry"
)

func ParseMode(m string) (Mode, error) {
	switch m {
	case "", string(ModeCapture):
		return ModeCapture, nil
	case string(ModeText):
		return ModeText, nil
	default:
		return "", errors.New("unknown flow mode")
	}
}

type CreateFlowRequest struct {
	InvitationID string
	Room         string
	Identity     string
	Mode         Mode
}

// Service owns at most one live flow per invitation. Entry is gated on the
// invitation still being answerable; completed or torn-down flows are
// removed so the map does not grow unboundedly.
type Service interface {
	CreateFlow(ctx context.Context, req CreateFlowRequest) error
	Grant(ctx context.Context, invitationID string) error
	StartRecording(invitationID string) error
	StopRecording(invitationID string) error
	Retake(invitationID string) error
	Continue(ctx context.Context, invitationID string) error
	SubmitText(ctx context.Context, invitationID string, text string) error
	FlowStatus(invitationID string) (FlowStatus, error)
	CloseFlow(invitationID string) error
	Shutdown()
}

// FlowStatus unifies capture and text flow snapshots for the REST surface.
type FlowStatus struct {
	Mode    Mode        `json:"mode"`
	Capture *Status     `json:"capture,omitempty"`
	Text    *TextStatus `json:"text,omitempty"`
}

type service struct {
	lock     sync.Mutex
	captures map[string]*Controller
	texts    map[string]*TextController

	device     capture.Device
	uploader   upload.Uploader
	invites    invite.Submitter
	clock      clock.Clock
	newSession SessionFactory
}

// NewService wires the shared dependencies every flow uses. A nil factory
// means controllers record through real capture sessions.
func NewService(device capture.Device, uploader upload.Uploader, invites invite.Submitter, c clock.Clock, factory SessionFactory) Service {
	return &service{
		captures:   make(map[string]*Controller),
		texts:      make(map[string]*TextController),
		device:     device,
		uploader:   uploader,
		invites:    invites,
		clock:      c,
		newSession: factory,
	}
}

func (s *service) CreateFlow(ctx context.Context, req CreateFlowRequest) error {
	// Gate entry: expired or already answered invitations never reach ready
	inv, err := s.invites.GetInvitation(ctx, req.InvitationID)
	if err != nil {
		return err
	}
	now := s.clock.Now()
	if inv.Status == invite.StatusAccepted {
		return invite.ErrAlreadyAccepted
	}
	if !inv.IsAnswerable(now) {
		return invite.ErrExpired
	}

	s.lock.Lock()
	defer s.lock.Unlock()
	if _, found := s.captures[req.InvitationID]; found {
		return ErrFlowExists
	}
	if _, found := s.texts[req.InvitationID]; found {
		return ErrFlowExists
	}

	cfg := Config{
		InvitationID: req.InvitationID,
		PromptText:   inv.PromptText,
		Room:         req.Room,
		Identity:     req.Identity,
		OnComplete: func() {
			log.Infof("flow complete | invitation: %s", req.InvitationID)
			s.remove(req.InvitationID)
		},
	}

	switch req.Mode {
	case ModeText:
		s.texts[req.InvitationID] = NewTextController(cfg, s.invites, s.clock)
	default:
		s.captures[req.InvitationID] = NewController(cfg, s.device, s.uploader, s.invites, s.clock, s.newSession)
	}
	log.Debugf("created flow | invitation: %s, mode: %s", req.InvitationID, req.Mode)
	return nil
}

func (s *service) remove(invitationID string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if c, found := s.captures[invitationID]; found {
		delete(s.captures, invitationID)
		c.Close()
	}
	if t, found := s.texts[invitationID]; found {
		delete(s.texts, invitationID)
		t.Close()
	}
}

func (s *service) captureFlow(invitationID string) (*Controller, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	c, found := s.captures[invitationID]
	if !found {
		return nil, ErrFlowNotFound
	}
	return c, nil
}

func (s *service) Grant(ctx context.Context, invitationID string) error {
	c, err := s.captureFlow(invitationID)
	if err != nil {
		return err
	}
	return c.Grant(ctx)
}

func (s *service) StartRecording(invitationID string) error {
	c, err := s.captureFlow(invitationID)
	if err != nil {
		return err
	}
	return c.StartRecording()
}

func (s *service) StopRecording(invitationID string) error {
	c, err := s.captureFlow(invitationID)
	if err != nil {
		return err
	}
	return c.StopRecording()
}

func (s *service) Retake(invitationID string) error {
	c, err := s.captureFlow(invitationID)
	if err != nil {
		return err
	}
	return c.Retake()
}

func (s *service) Continue(ctx context.Context, invitationID string) error {
	c, err := s.captureFlow(invitationID)
	if err != nil {
		return err
	}
	return c.Continue(ctx)
}

func (s *service) SubmitText(ctx context.Context, invitationID string, text string) error {
	s.lock.Lock()
	t, found := s.texts[invitationID]
	s.lock.Unlock()
	if !found {
		return ErrFlowNotFound
	}
	return t.Submit(ctx, text)
}

func (s *service) FlowStatus(invitationID string) (FlowStatus, error) {
	s.lock.Lock()
	c, foundCapture := s.captures[invitationID]
	t, foundText := s.texts[invitationID]
	s.lock.Unlock()

	if foundCapture {
		st := c.Status()
		return FlowStatus{Mode: ModeCapture, Capture: &st}, nil
	}
	if foundText {
		st := t.Status()
		return FlowStatus{Mode: ModeText, Text: &st}, nil
	}
	return FlowStatus{}, ErrFlowNotFound
}

func (s *service) CloseFlow(invitationID string) error {
	s.lock.Lock()
	c, foundCapture := s.captures[invitationID]
	t, foundText := s.texts[invitationID]
	delete(s.captures, invitationID)
	delete(s.texts, invitationID)
	s.lock.Unlock()

	if foundCapture {
		c.Close()
		return nil
	}
	if foundText {
		t.Close()
		return nil
	}
	return ErrFlowNotFound
}

func (s *service) Shutdown() {
	s.lock.Lock()
	captures := make([]*Controller, 0, len(s.captures))
	for _, c := range s.captures {
		captures = append(captures, c)
	}
	texts := make([]*TextController, 0, len(s.texts))
	for _, t := range s.texts {
		texts = append(texts, t)
	}
	s.captures = make(map[string]*Controller)
	s.texts = make(map[string]*TextController)
	s.lock.Unlock()

	for _, c := range captures {
		c.Close()
	}
	for _, t := range texts {
		t.Close()
	}
}
