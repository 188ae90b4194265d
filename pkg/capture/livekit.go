package capture

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/livekit/protocol/auth"
	lksdk "github.com/livekit/server-sdk-go"
	"github.com/pion/webrtc/v3"
)

// LiveKitConfig carries the credentials the device uses to join rooms as a
// hidden recorder participant.
type LiveKitConfig struct {
	URL       string
	APIKey    string
	APISecret string
}

const (
	acquireTimeout = 30 * time.Second
	audioGrace     = 2 * time.Second
)

type liveKitDevice struct {
	cfg LiveKitConfig
}

// NewLiveKitDevice returns a Device that acquires the invitee's camera and
// microphone tracks through a LiveKit room.
func NewLiveKitDevice(cfg LiveKitConfig) (Device, error) {
	if cfg.URL == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, errors.New("incomplete livekit credentials")
	}
	return &liveKitDevice{cfg: cfg}, nil
}

func (d *liveKitDevice) buildRecorderToken(room string, identity string) (string, error) {
	at := auth.NewAccessToken(d.cfg.APIKey, d.cfg.APISecret)
	f := false
	t := true
	grant := &auth.VideoGrant{
		Room:           room,
		RoomJoin:       true,
		CanPublish:     &f,
		CanPublishData: &f,
		CanSubscribe:   &t,
		Hidden:         true,
		Recorder:       true,
	}
	return at.
		AddGrant(grant).
		SetIdentity(identity).
		SetValidFor(time.Hour).
		ToJWT()
}

func (d *liveKitDevice) Acquire(ctx context.Context, req AcquireRequest) (Stream, error) {
	token, err := d.buildRecorderToken(req.Room, "REC_"+req.Identity)
	if err != nil {
		return nil, err
	}

	room, err := lksdk.ConnectToRoomWithToken(d.cfg.URL, token, lksdk.WithAutoSubscribe(true))
	if err != nil {
		return nil, classifyAcquireError(err)
	}

	tracks := make(chan *webrtc.TrackRemote, 4)
	room.Callback.OnTrackSubscribed = func(track *webrtc.TrackRemote, pub *lksdk.RemoteTrackPublication, rp *lksdk.RemoteParticipant) {
		if rp.Identity() != req.Identity {
			return
		}
		select {
		case tracks <- track:
		default:
		}
	}

	stream := &liveKitStream{room: room}
	deadline := time.After(acquireTimeout)

	// Video is required; give audio a short grace window once video arrives
	var graceOver <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			room.Disconnect()
			return nil, ctx.Err()
		case <-deadline:
			if stream.video == nil {
				room.Disconnect()
				return nil, ErrDeviceNotFound
			}
			return stream, nil
		case <-graceOver:
			return stream, nil
		case track := <-tracks:
			switch track.Kind() {
			case webrtc.RTPCodecTypeVideo:
				stream.video = track
			case webrtc.RTPCodecTypeAudio:
				stream.audio = track
			}
			if stream.video != nil && stream.audio != nil {
				return stream, nil
			}
			if stream.video != nil && graceOver == nil {
				graceOver = time.After(audioGrace)
			}
		}
	}
}

func classifyAcquireError(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "unauthorized") || strings.Contains(msg, "permission") || strings.Contains(msg, "401"):
		return ErrAccessDenied
	case strings.Contains(msg, "not found") || strings.Contains(msg, "404"):
		return ErrDeviceNotFound
	case strings.Contains(msg, "full") || strings.Contains(msg, "limit"):
		return ErrDeviceBusy
	default:
		return err
	}
}

// liveKitStream holds the subscribed tracks for one capture attempt.
// Disconnecting the room revokes every track.
type liveKitStream struct {
	room      *lksdk.Room
	video     *webrtc.TrackRemote
	audio     *webrtc.TrackRemote
	closeOnce sync.Once
}

func (s *liveKitStream) VideoTrack() RemoteTrack {
	if s.video == nil {
		return nil
	}
	return s.video
}

func (s *liveKitStream) AudioTrack() RemoteTrack {
	if s.audio == nil {
		return nil
	}
	return s.audio
}

func (s *liveKitStream) Close() {
	s.closeOnce.Do(func() {
		s.room.Disconnect()
	})
}
