package capture

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/familyreel/capture-agent/pkg/clock"
	"github.com/livekit/protocol/logger"
	"github.com/livekit/server-sdk-go/pkg/samplebuilder"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3/pkg/media"
)

var ErrRecordingFault = errors.New("recording failed")

const chunkInterval = time.Second

// trackRecorder drains one remote track into a chunk buffer. A done/closed
// channel pair coordinates shutdown with the draining goroutine.
type trackRecorder struct {
	track    RemoteTrack
	ext      MediaExtension
	sb       *samplebuilder.SampleBuilder
	mw       media.Writer
	buf      *chunkBuffer
	done     chan struct{}
	closed   chan struct{}
	stopOnce sync.Once
	onFault  func(error)
}

func newTrackRecorder(track RemoteTrack, c clock.Clock, onFault func(error)) (*trackRecorder, error) {
	ext, err := TrackExtension(track.Codec().MimeType)
	if err != nil {
		return nil, err
	}
	buf := newChunkBuffer(c, chunkInterval)
	mw, err := createMediaWriter(buf, track.Codec())
	if err != nil {
		return nil, err
	}
	return &trackRecorder{
		track:   track,
		ext:     ext,
		sb:      createSampleBuilder(track.Codec()),
		mw:      mw,
		buf:     buf,
		done:    make(chan struct{}),
		closed:  make(chan struct{}),
		onFault: onFault,
	}, nil
}

func (r *trackRecorder) start() {
	go r.record()
}

// stop signals the draining goroutine and waits for it to finish. Safe to
// call more than once and after the goroutine has already returned.
func (r *trackRecorder) stop() {
	r.stopOnce.Do(func() { close(r.done) })
	<-r.closed
}

func (r *trackRecorder) record() {
	var err error
	defer func() {
		// A closed stream reads as EOF; only engine faults are surfaced
		if err != nil && err != io.EOF && err != ErrSinkClosed {
			r.onFault(err)
		}
		if cerr := r.mw.Close(); cerr != nil {
			logger.Warnw("cannot close media writer", cerr)
		}
		close(r.closed)
	}()

	var packet *rtp.Packet
	for {
		select {
		case <-r.done:
			return
		default:
			packet, _, err = r.track.ReadRTP()
			if err != nil {
				return
			}
			err = r.writeToSink(packet)
			if err != nil {
				return
			}
		}
	}
}

func (r *trackRecorder) writeToSink(p *rtp.Packet) (err error) {
	// If no sample buffer is used, write directly to sink
	if r.sb == nil {
		return r.mw.WriteRTP(p)
	}

	r.sb.Push(p)
	if packets := r.sb.PopPackets(); packets != nil {
		for _, p := range packets {
			err = r.mw.WriteRTP(p)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// Session owns one capture attempt: the live stream and whatever has been
// recorded against it. Exactly one Release is expected on every exit path.
type Session struct {
	mu        sync.Mutex
	clock     clock.Clock
	muxer     Muxer
	stream    Stream
	vrec      *trackRecorder
	arec      *trackRecorder
	recording bool
	startedAt time.Time
	faultErr  error
	media     *Media
	released  bool
}

func NewSession(stream Stream, c clock.Clock, m Muxer) *Session {
	return &Session{
		clock:  c,
		muxer:  m,
		stream: stream,
	}
}

// BeginRecording starts draining the stream's tracks into per-second chunk
// buffers. Requires a live stream; starting while already recording is a
// no-op.
func (s *Session) BeginRecording() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released || s.stream == nil || s.stream.VideoTrack() == nil {
		return ErrNoStream
	}
	if s.recording {
		return nil
	}

	vrec, err := newTrackRecorder(s.stream.VideoTrack(), s.clock, s.fault)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRecordingFault, err)
	}
	var arec *trackRecorder
	if at := s.stream.AudioTrack(); at != nil {
		arec, err = newTrackRecorder(at, s.clock, s.fault)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrRecordingFault, err)
		}
	}

	s.vrec, s.arec = vrec, arec
	s.faultErr = nil
	s.recording = true
	s.startedAt = s.clock.Now()
	vrec.start()
	if arec != nil {
		arec.start()
	}
	return nil
}

// fault aborts the in-progress recording. Called from a recorder goroutine,
// so it only marks state; the goroutines are reaped by EndRecording or
// Release.
func (s *Session) fault(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.recording {
		return
	}
	logger.Warnw("recording engine fault", err)
	s.faultErr = err
	s.recording = false
}

// EndRecording stops the recorders, concatenates the buffered chunks and
// muxes them into one immutable Media. Duration comes from wall-clock
// elapsed time, not chunk count, to tolerate dropped or delayed chunks.
// Calling this while not recording is a no-op unless a fault is pending.
func (s *Session) EndRecording() error {
	s.mu.Lock()
	if !s.recording && s.faultErr == nil {
		s.mu.Unlock()
		return nil
	}
	vrec, arec := s.vrec, s.arec
	startedAt := s.startedAt
	s.recording = false
	s.mu.Unlock()

	if vrec != nil {
		vrec.stop()
	}
	if arec != nil {
		arec.stop()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.vrec, s.arec = nil, nil

	if s.faultErr != nil {
		err := s.faultErr
		s.faultErr = nil
		s.releaseBuffers(vrec, arec)
		return fmt.Errorf("%w: %v", ErrRecordingFault, err)
	}

	duration := s.clock.Now().Sub(startedAt)
	video := TrackData{Bytes: vrec.buf.Bytes(), Ext: vrec.ext}
	var audio *TrackData
	if arec != nil {
		audio = &TrackData{Bytes: arec.buf.Bytes(), Ext: arec.ext}
	}
	s.releaseBuffers(vrec, arec)

	data, mimeType, err := s.muxer.Mux(video, audio)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRecordingFault, err)
	}

	s.media = &Media{Bytes: data, MimeType: mimeType, Duration: duration}
	return nil
}

func (s *Session) releaseBuffers(recs ...*trackRecorder) {
	for _, r := range recs {
		if r != nil {
			r.buf.Release()
		}
	}
}

func (s *Session) Recording() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recording
}

// Media returns the captured media, or nil when nothing has been captured.
func (s *Session) Media() *Media {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.media
}

// Duration reports elapsed recording time while recording, and the captured
// media's duration afterwards.
func (s *Session) Duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recording {
		return s.clock.Now().Sub(s.startedAt)
	}
	if s.media != nil {
		return s.media.Duration
	}
	return 0
}

// DiscardMedia releases the captured media but keeps the live stream, so a
// retake does not need to re-acquire the camera.
func (s *Session) DiscardMedia() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.media = nil
}

// Release stops every track and drops any captured media. Idempotent; must
// be called exactly once per capture attempt outcome so the hardware lock is
// never leaked.
func (s *Session) Release() {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return
	}
	s.released = true
	s.recording = false
	vrec, arec := s.vrec, s.arec
	s.vrec, s.arec = nil, nil
	s.media = nil
	stream := s.stream
	s.stream = nil
	s.mu.Unlock()

	// Closing the stream first unblocks any recorder waiting on a read
	if stream != nil {
		stream.Close()
	}
	if vrec != nil {
		vrec.stop()
	}
	if arec != nil {
		arec.stop()
	}
	s.releaseBuffers(vrec, arec)
}
