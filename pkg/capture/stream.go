package capture

import (
	"context"
	"errors"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
)

// Acquisition failures. AccessDenied and DeviceNotFound are terminal for the
// attempt; the user must explicitly re-request access.
var (
	ErrAccessDenied   = errors.New("camera access denied")
	ErrDeviceNotFound = errors.New("no camera found")
	ErrDeviceBusy     = errors.New("capture device busy")
	ErrNoStream       = errors.New("no camera stream available")
)

// RemoteTrack is the subset of *webrtc.TrackRemote a recorder needs.
type RemoteTrack interface {
	ReadRTP() (*rtp.Packet, interceptor.Attributes, error)
	Codec() webrtc.RTPCodecParameters
}

// Stream is a live, revocable handle to the invitee's camera and microphone
// tracks. Exclusively owned by one Session; Close stops every track and is
// safe to call more than once.
type Stream interface {
	VideoTrack() RemoteTrack
	AudioTrack() RemoteTrack
	Close()
}

// AcquireRequest names the room and participant whose tracks should be
// captured, and the target resolution.
type AcquireRequest struct {
	Room     string
	Identity string
	Width    int
	Height   int
}

// Device acquires live media streams. Implementations must never leave a
// stream open on a failed acquisition.
type Device interface {
	Acquire(ctx context.Context, req AcquireRequest) (Stream, error)
}
