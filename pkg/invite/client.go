package invite

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Submitter is the contract the capture flow depends on. Attaching a
// response and flipping the invitation to accepted happen as one atomic
// operation on the service side; the client's job is to call it at most once
// per flow and treat "already accepted" as terminal.
type Submitter interface {
	GetInvitation(ctx context.Context, id string) (*Invitation, error)
	SubmitResponse(ctx context.Context, id string, payload Payload) (string, error)
}

type client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient returns a Submitter talking to the Invitation Service over HTTP.
func NewClient(baseURL string, token string) Submitter {
	return &client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

type errorBody struct {
	Error string `json:"error"`
}

func (c *client) GetInvitation(ctx context.Context, id string) (*Invitation, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/invites/%s", c.baseURL, id), nil)
	if err != nil {
		return nil, err
	}
	c.authorise(req)

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, c.classifyStatus(res)
	}

	var body struct {
		Invitation Invitation `json:"invite"`
	}
	if err = json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	return &body.Invitation, nil
}

type submitRequest struct {
	PromptInviteID  string `json:"promptInviteId"`
	VideoURL        string `json:"videoUrl,omitempty"`
	DurationSeconds int    `json:"durationSeconds,omitempty"`
	TextContent     string `json:"textContent,omitempty"`
}

func (c *client) SubmitResponse(ctx context.Context, id string, payload Payload) (string, error) {
	if err := payload.Validate(); err != nil {
		return "", err
	}

	data, err := json.Marshal(submitRequest{
		PromptInviteID:  id,
		VideoURL:        payload.VideoURL,
		DurationSeconds: payload.DurationSeconds,
		TextContent:     strings.TrimSpace(payload.Text),
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/responses", bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorise(req)

	res, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK && res.StatusCode != http.StatusCreated {
		return "", c.classifyStatus(res)
	}

	var body struct {
		Response struct {
			ID string `json:"id"`
		} `json:"response"`
	}
	if err = json.NewDecoder(res.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTransient, err)
	}
	return body.Response.ID, nil
}

func (c *client) authorise(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// classifyStatus maps service responses onto the failure taxonomy. The
// service reports both "expired" and "already used" as 410, distinguished
// only by the error text.
func (c *client) classifyStatus(res *http.Response) error {
	var body errorBody
	_ = json.NewDecoder(res.Body).Decode(&body)
	msg := strings.ToLower(body.Error)

	switch {
	case res.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case res.StatusCode == http.StatusGone:
		if strings.Contains(msg, "expired") {
			return ErrExpired
		}
		return ErrAlreadyAccepted
	case res.StatusCode == http.StatusConflict:
		return ErrAlreadyAccepted
	case res.StatusCode >= 500:
		return fmt.Errorf("%w: status %d", ErrTransient, res.StatusCode)
	case strings.Contains(msg, "already"):
		return ErrAlreadyAccepted
	case strings.Contains(msg, "expired"):
		return ErrExpired
	default:
		return fmt.Errorf("%w: status %d: %s", ErrInvalidPayload, res.StatusCode, body.Error)
	}
}
