package rest

import (
	"errors"
	"net/http"

	"github.com/familyreel/capture-agent/pkg/flow"
	"github.com/familyreel/capture-agent/pkg/invite"
	"github.com/labstack/echo/v4"
)

type flowController struct {
	flow.Service
}

type StartFlowRequest struct {
	Invitation string `json:"invitation"`
	Room       string `json:"room"`
	Identity   string `json:"identity"`
	Mode       string `json:"mode"`
}

type FlowCommandRequest struct {
	Invitation string `json:"invitation"`
}

type SubmitTextRequest struct {
	Invitation string `json:"invitation"`
	Text       string `json:"text"`
}

func NewFlowController(service flow.Service) flowController {
	return flowController{service}
}

var ErrEmptyFields = errors.New("one or more fields is empty")

// httpError maps service errors onto response codes. Gone marks the
// invitation itself as unanswerable; Conflict marks a command the flow
// cannot take right now.
func httpError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, flow.ErrFlowNotFound), errors.Is(err, invite.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err)
	case errors.Is(err, flow.ErrFlowExists), errors.Is(err, flow.ErrInvalidState), errors.Is(err, flow.ErrClosed):
		return echo.NewHTTPError(http.StatusConflict, err)
	case errors.Is(err, invite.ErrExpired), errors.Is(err, invite.ErrAlreadyAccepted):
		return echo.NewHTTPError(http.StatusGone, err)
	case errors.Is(err, flow.ErrEmptyText), errors.Is(err, flow.ErrTextTooLong), errors.Is(err, invite.ErrInvalidPayload):
		return echo.NewHTTPError(http.StatusBadRequest, err)
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err)
	}
}

func (fc *flowController) StartFlow(c echo.Context) error {
	// Bind request data
	data := new(StartFlowRequest)
	if err := c.Bind(data); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err)
	}

	// Sanitise request
	if data.Invitation == "" || data.Room == "" || data.Identity == "" {
		return echo.NewHTTPError(http.StatusBadRequest, ErrEmptyFields)
	}

	// Parse the flow mode
	mode, err := flow.ParseMode(data.Mode)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err)
	}

	// Call service
	err = fc.Service.CreateFlow(c.Request().Context(), flow.CreateFlowRequest{
		InvitationID: data.Invitation,
		Room:         data.Room,
		Identity:     data.Identity,
		Mode:         mode,
	})
	if err != nil {
		return httpError(err)
	}

	// Return success
	return c.NoContent(http.StatusCreated)
}

// command binds the single-field body shared by most flow endpoints and
// runs the given service call.
func (fc *flowController) command(c echo.Context, run func(invitationID string) error) error {
	data := new(FlowCommandRequest)
	if err := c.Bind(data); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err)
	}
	if data.Invitation == "" {
		return echo.NewHTTPError(http.StatusBadRequest, ErrEmptyFields)
	}
	if err := run(data.Invitation); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusOK)
}

func (fc *flowController) Grant(c echo.Context) error {
	return fc.command(c, func(id string) error {
		return fc.Service.Grant(c.Request().Context(), id)
	})
}

func (fc *flowController) StartRecording(c echo.Context) error {
	return fc.command(c, func(id string) error {
		return fc.Service.StartRecording(id)
	})
}

func (fc *flowController) StopRecording(c echo.Context) error {
	return fc.command(c, func(id string) error {
		return fc.Service.StopRecording(id)
	})
}

func (fc *flowController) Retake(c echo.Context) error {
	return fc.command(c, func(id string) error {
		return fc.Service.Retake(id)
	})
}

func (fc *flowController) Continue(c echo.Context) error {
	return fc.command(c, func(id string) error {
		return fc.Service.Continue(c.Request().Context(), id)
	})
}

func (fc *flowController) CloseFlow(c echo.Context) error {
	return fc.command(c, func(id string) error {
		return fc.Service.CloseFlow(id)
	})
}

func (fc *flowController) SubmitText(c echo.Context) error {
	// Bind request data
	data := new(SubmitTextRequest)
	if err := c.Bind(data); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err)
	}

	// Sanitise request
	if data.Invitation == "" {
		return echo.NewHTTPError(http.StatusBadRequest, ErrEmptyFields)
	}

	// Call service
	if err := fc.Service.SubmitText(c.Request().Context(), data.Invitation, data.Text); err != nil {
		return httpError(err)
	}

	// Return success
	return c.NoContent(http.StatusOK)
}

func (fc *flowController) FlowStatus(c echo.Context) error {
	invitationID := c.QueryParam("invitation")
	if invitationID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, ErrEmptyFields)
	}

	status, err := fc.Service.FlowStatus(invitationID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, status)
}
