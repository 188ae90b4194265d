package capture

import (
	"io"

	"github.com/livekit/server-sdk-go/pkg/samplebuilder"
	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"
	"github.com/pion/webrtc/v3"
	"github.com/pion/webrtc/v3/pkg/media"
	"github.com/pion/webrtc/v3/pkg/media/h264writer"
	"github.com/pion/webrtc/v3/pkg/media/ivfwriter"
	"github.com/pion/webrtc/v3/pkg/media/oggwriter"
)

func createMediaWriter(out io.Writer, codec webrtc.RTPCodecParameters) (media.Writer, error) {
	ext, err := TrackExtension(codec.MimeType)
	if err != nil {
		return nil, err
	}
	switch ext {
	case MediaIVF:
		return ivfwriter.NewWith(out)
	case MediaH264:
		return h264writer.NewWith(out), nil
	case MediaOGG:
		return oggwriter.NewWith(out, 48000, codec.Channels)
	default:
		return nil, ErrMediaNotSupported
	}
}

const sampleMaxLate = 200

// createSampleBuilder returns nil for codecs without a depacketizer; packets
// are then written straight through.
func createSampleBuilder(codec webrtc.RTPCodecParameters) *samplebuilder.SampleBuilder {
	var depacketizer rtp.Depacketizer
	switch codec.MimeType {
	case webrtc.MimeTypeVP8:
		depacketizer = &codecs.VP8Packet{}
	case webrtc.MimeTypeVP9:
		depacketizer = &codecs.VP9Packet{}
	case webrtc.MimeTypeH264:
		depacketizer = &codecs.H264Packet{}
	case webrtc.MimeTypeOpus:
		depacketizer = &codecs.OpusPacket{}
	default:
		return nil
	}
	return samplebuilder.New(sampleMaxLate, depacketizer, codec.ClockRate)
}
