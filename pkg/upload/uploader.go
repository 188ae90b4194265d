package upload

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
)

// ErrUploadFailed covers every transport-level fault: network errors, server
// rejections and policy violations. The transport never retries internally;
// retry is the caller's decision since the media is still in hand.
var ErrUploadFailed = errors.New("upload failed")

// Uploader transfers one finished media object to durable storage and
// returns its content address. The progress callback receives monotonically
// non-decreasing percentages ending at 100 on success.
type Uploader interface {
	Upload(ctx context.Context, key string, mimeType string, body io.Reader, size int64, progress func(pct int)) (string, error)
}

// Storage policy, matching what the store accepts.
const MaxUploadBytes = 500 * 1024 * 1024

var allowedContentTypes = map[string]bool{
	"video/webm":      true,
	"video/mp4":       true,
	"video/quicktime": true,
}

// CheckPolicy rejects uploads before any bytes move.
func CheckPolicy(mimeType string, size int64) error {
	if !allowedContentTypes[strings.ToLower(mimeType)] {
		return ErrUploadFailed
	}
	if size <= 0 || size > MaxUploadBytes {
		return ErrUploadFailed
	}
	return nil
}

// progressReader reports transport progress as the storage client consumes
// the body. It caps at 99 so 100 is only ever reported once the transfer has
// actually committed.
type progressReader struct {
	r      io.Reader
	total  int64
	mu     sync.Mutex
	read   int64
	last   int
	report func(pct int)
}

func newProgressReader(r io.Reader, total int64, report func(pct int)) *progressReader {
	return &progressReader{r: r, total: total, report: report}
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 && p.report != nil {
		p.mu.Lock()
		p.read += int64(n)
		pct := int(p.read * 100 / p.total)
		if pct > 99 {
			pct = 99
		}
		fire := pct > p.last
		if fire {
			p.last = pct
		}
		p.mu.Unlock()
		if fire {
			p.report(pct)
		}
	}
	return n, err
}
