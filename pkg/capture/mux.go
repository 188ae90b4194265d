package capture

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/lithammer/shortuuid/v4"
)

// TrackData is one recorded track before muxing: the concatenated chunk
// bytes and the raw format they were written in.
type TrackData struct {
	Bytes []byte
	Ext   MediaExtension
}

// Muxer combines recorded track data into a single playable container.
type Muxer interface {
	Mux(video TrackData, audio *TrackData) (data []byte, mimeType string, err error)
}

// ffmpegMuxer shells out to ffmpeg with stream copy, so no transcoding
// happens. We have 2 cases per video codec:
// 1. Video = IVF, no audio. Containerise as webm
// 2. Video = IVF, Audio = OGG. Containerise as webm with 2 file inputs
// and the same for H264 video with mp4 output.
type ffmpegMuxer struct {
	dir string
}

// NewFFmpegMuxer returns a Muxer that stages track data under dir. The
// caller is expected to have verified that ffmpeg is installed.
func NewFFmpegMuxer(dir string) Muxer {
	return &ffmpegMuxer{dir: dir}
}

func (m *ffmpegMuxer) Mux(video TrackData, audio *TrackData) ([]byte, string, error) {
	container, mimeType, err := ContainerFor(video.Ext)
	if err != nil {
		return nil, "", err
	}

	fileID := shortuuid.New()
	videoFile := filepath.Join(m.dir, fmt.Sprintf("%s.%s", fileID, video.Ext))
	outFile := filepath.Join(m.dir, fmt.Sprintf("%s.%s", fileID, container))
	if err = os.WriteFile(videoFile, video.Bytes, 0644); err != nil {
		return nil, "", err
	}
	defer os.Remove(videoFile)
	defer os.Remove(outFile)

	var cmd *exec.Cmd
	if audio == nil {
		cmd = exec.Command("ffmpeg",
			"-i", videoFile,
			"-c:v", "copy",
			"-loglevel", "error",
			"-y", outFile)
	} else {
		audioFile := filepath.Join(m.dir, fmt.Sprintf("%s.%s", fileID, audio.Ext))
		if err = os.WriteFile(audioFile, audio.Bytes, 0644); err != nil {
			return nil, "", err
		}
		defer os.Remove(audioFile)
		cmd = exec.Command("ffmpeg",
			"-i", videoFile,
			"-i", audioFile,
			"-c:v", "copy",
			"-c:a", "copy",
			"-loglevel", "error",
			"-y", "-shortest", outFile)
	}

	cmd.Stderr = os.Stderr
	if err = cmd.Run(); err != nil {
		return nil, "", err
	}

	data, err := os.ReadFile(outFile)
	if err != nil {
		return nil, "", err
	}
	return data, mimeType, nil
}
