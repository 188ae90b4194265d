package capture

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pion/webrtc/v3"
)

// Media is one finished capture: the muxed binary content, its mime type and
// the wall-clock recording duration. Immutable once created; DiscardMedia or
// a retake drops the whole value.
type Media struct {
	Bytes    []byte
	MimeType string
	Duration time.Duration
}

type MediaExtension string

const (
	MediaOGG  MediaExtension = "ogg"
	MediaIVF  MediaExtension = "ivf"
	MediaH264 MediaExtension = "h264"
	MediaWebM MediaExtension = "webm"
	MediaMP4  MediaExtension = "mp4"
)

var ErrMediaNotSupported = errors.New("media not supported")

// TrackExtension maps a track codec to the raw recording format it is
// written in before muxing.
func TrackExtension(mimeType string) (MediaExtension, error) {
	if strings.EqualFold(mimeType, webrtc.MimeTypeVP8) ||
		strings.EqualFold(mimeType, webrtc.MimeTypeVP9) {
		return MediaIVF, nil
	}
	if strings.EqualFold(mimeType, webrtc.MimeTypeH264) {
		return MediaH264, nil
	}
	if strings.EqualFold(mimeType, webrtc.MimeTypeG722) ||
		strings.EqualFold(mimeType, webrtc.MimeTypeOpus) ||
		strings.EqualFold(mimeType, webrtc.MimeTypePCMA) ||
		strings.EqualFold(mimeType, webrtc.MimeTypePCMU) {
		return MediaOGG, nil
	}
	return "", ErrMediaNotSupported
}

// ContainerFor picks the playable container for a recorded video track:
// IVF video goes into webm, H264 into mp4.
func ContainerFor(videoExt MediaExtension) (MediaExtension, string, error) {
	switch videoExt {
	case MediaIVF:
		return MediaWebM, "video/webm", nil
	case MediaH264:
		return MediaMP4, "video/mp4", nil
	default:
		return "", "", ErrMediaNotSupported
	}
}

// ExtensionForMime maps a container mime type back to its file extension,
// used when naming uploaded objects.
func ExtensionForMime(mimeType string) (MediaExtension, error) {
	switch strings.ToLower(mimeType) {
	case "video/webm":
		return MediaWebM, nil
	case "video/mp4":
		return MediaMP4, nil
	case "video/quicktime":
		return MediaMP4, nil
	case "audio/ogg":
		return MediaOGG, nil
	default:
		return "", ErrMediaNotSupported
	}
}

var ErrEmptyFileID = errors.New("empty file ID")
var ErrFileIDContainsExtension = errors.New("file ID contains extension")

// MediaFilename builds the storage object name for a finished capture.
func MediaFilename(fileID string, mimeType string) (string, error) {
	if fileID == "" {
		return "", ErrEmptyFileID
	} else if strings.Contains(fileID, ".") {
		return "", ErrFileIDContainsExtension
	}

	ext, err := ExtensionForMime(mimeType)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%s.%s", fileID, ext), nil
}
