package invite

import (
	"errors"
	"strings"
	"time"
)

// Status of a single-use invitation. Pending is the only non-terminal
// status; accepted and expired are never left.
type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusExpired  Status = "expired"
)

// Invitation grants one person the right to answer one prompt once.
type Invitation struct {
	ID             string    `json:"id"`
	PromptText     string    `json:"promptText"`
	SenderName     string    `json:"senderName"`
	RecipientEmail string    `json:"recipientEmail"`
	Status         Status    `json:"status"`
	ExpiresAt      time.Time `json:"expiresAt"`
}

// IsExpired reports whether the invitation has passed its expiry, whether or
// not the service has marked it so yet.
func (i *Invitation) IsExpired(now time.Time) bool {
	if i.Status == StatusExpired {
		return true
	}
	return !i.ExpiresAt.IsZero() && now.After(i.ExpiresAt)
}

// IsAnswerable reports whether a response may still be attached.
func (i *Invitation) IsAnswerable(now time.Time) bool {
	return i.Status == StatusPending && !i.IsExpired(now)
}

// Submission failure taxonomy. Only ErrTransient is retryable; the others
// are terminal for the flow.
var (
	ErrNotFound        = errors.New("invitation not found")
	ErrExpired         = errors.New("invitation expired")
	ErrAlreadyAccepted = errors.New("response already submitted")
	ErrTransient       = errors.New("invitation service unavailable")
	ErrInvalidPayload  = errors.New("invalid response payload")
)

// Retryable reports whether re-issuing the same call can succeed.
func Retryable(err error) bool {
	return errors.Is(err, ErrTransient)
}

// MaxTextLength bounds inline text answers.
const MaxTextLength = 5000

// Payload is the response content: exactly one of a content address with a
// duration, or inline text.
type Payload struct {
	VideoURL        string
	DurationSeconds int
	Text            string
}

func (p Payload) Validate() error {
	hasVideo := p.VideoURL != ""
	hasText := strings.TrimSpace(p.Text) != ""
	if hasVideo == hasText {
		return ErrInvalidPayload
	}
	if hasVideo && p.DurationSeconds < 0 {
		return ErrInvalidPayload
	}
	if hasText && len(p.Text) > MaxTextLength {
		return ErrInvalidPayload
	}
	return nil
}
