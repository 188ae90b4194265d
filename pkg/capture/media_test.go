package capture

import (
	"testing"

	"github.com/pion/webrtc/v3"
	"github.com/stretchr/testify/require"
)

func TestTrackExtension(t *testing.T) {
	ext, err := TrackExtension(webrtc.MimeTypeVP8)
	require.NoError(t, err)
	require.Equal(t, MediaIVF, ext)

	ext, err = TrackExtension(webrtc.MimeTypeH264)
	require.NoError(t, err)
	require.Equal(t, MediaH264, ext)

	ext, err = TrackExtension(webrtc.MimeTypeOpus)
	require.NoError(t, err)
	require.Equal(t, MediaOGG, ext)

	_, err = TrackExtension(webrtc.MimeTypeAV1)
	require.ErrorIs(t, err, ErrMediaNotSupported)
}

func TestContainerFor(t *testing.T) {
	container, mimeType, err := ContainerFor(MediaIVF)
	require.NoError(t, err)
	require.Equal(t, MediaWebM, container)
	require.Equal(t, "video/webm", mimeType)

	container, mimeType, err = ContainerFor(MediaH264)
	require.NoError(t, err)
	require.Equal(t, MediaMP4, container)
	require.Equal(t, "video/mp4", mimeType)

	_, _, err = ContainerFor(MediaOGG)
	require.ErrorIs(t, err, ErrMediaNotSupported)
}

func TestMediaFilename(t *testing.T) {
	name, err := MediaFilename("abc123", "video/webm")
	require.NoError(t, err)
	require.Equal(t, "abc123.webm", name)

	name, err = MediaFilename("abc123", "video/mp4")
	require.NoError(t, err)
	require.Equal(t, "abc123.mp4", name)
}

func TestMediaFilenameRejectsEmptyID(t *testing.T) {
	_, err := MediaFilename("", "video/webm")
	require.ErrorIs(t, err, ErrEmptyFileID)
}

func TestMediaFilenameRejectsIDWithExtension(t *testing.T) {
	_, err := MediaFilename("abc.webm", "video/webm")
	require.ErrorIs(t, err, ErrFileIDContainsExtension)
}

func TestMediaFilenameRejectsUnknownMime(t *testing.T) {
	_, err := MediaFilename("abc123", "application/pdf")
	require.ErrorIs(t, err, ErrMediaNotSupported)
}
