package flow

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/familyreel/capture-agent/pkg/clock"
	"github.com/familyreel/capture-agent/pkg/invite"
	"github.com/stretchr/testify/require"
)

type textFixture struct {
	clk         *clock.Fake
	submitter   *fakeSubmitter
	completions int
	ctrl        *TextController
}

func newTextFixture() *textFixture {
	f := &textFixture{
		clk:       clock.NewFake(),
		submitter: &fakeSubmitter{},
	}
	cfg := Config{
		InvitationID: "inv-1",
		PromptText:   "What was your wedding day like?",
		OnComplete:   func() { f.completions++ },
	}
	f.ctrl = NewTextController(cfg, f.submitter, f.clk)
	return f
}

func TestTextSubmitPublishes(t *testing.T) {
	f := newTextFixture()

	require.NoError(t, f.ctrl.Submit(context.Background(), "  We eloped to the coast.  "))

	require.Len(t, f.submitter.submits, 1)
	payload := f.submitter.submits[0]
	require.Equal(t, "We eloped to the coast.", payload.Text)
	require.Empty(t, payload.VideoURL)

	st := f.ctrl.Status()
	require.Equal(t, TextStateComplete, st.State)
	require.True(t, st.Submitted)

	require.Equal(t, 0, f.completions)
	f.clk.Advance(completeDelay)
	require.Equal(t, 1, f.completions)
	f.clk.Advance(completeDelay)
	require.Equal(t, 1, f.completions)
}

func TestTextSubmitRejectsEmpty(t *testing.T) {
	f := newTextFixture()

	require.ErrorIs(t, f.ctrl.Submit(context.Background(), "   \n\t "), ErrEmptyText)
	require.Empty(t, f.submitter.submits)
	require.Equal(t, TextStateWriting, f.ctrl.Status().State)
}

func TestTextSubmitRejectsOverlong(t *testing.T) {
	f := newTextFixture()

	long := strings.Repeat("a", invite.MaxTextLength+1)
	require.ErrorIs(t, f.ctrl.Submit(context.Background(), long), ErrTextTooLong)
	require.Empty(t, f.submitter.submits)

	// Exactly at the limit is allowed
	require.NoError(t, f.ctrl.Submit(context.Background(), strings.Repeat("a", invite.MaxTextLength)))
}

func TestTextTransientFailureAllowsResubmit(t *testing.T) {
	f := newTextFixture()
	f.submitter.submitErrs = []error{fmt.Errorf("%w: 503", invite.ErrTransient)}

	err := f.ctrl.Submit(context.Background(), "Our first apartment had no heating.")
	require.ErrorIs(t, err, invite.ErrTransient)

	st := f.ctrl.Status()
	require.Equal(t, TextStateWriting, st.State)
	require.NotEmpty(t, st.Error)

	require.NoError(t, f.ctrl.Submit(context.Background(), "Our first apartment had no heating."))
	require.Len(t, f.submitter.submits, 2)
	require.Equal(t, TextStateComplete, f.ctrl.Status().State)
}

func TestTextAlreadyAnsweredCompletes(t *testing.T) {
	f := newTextFixture()
	f.submitter.submitErrs = []error{invite.ErrAlreadyAccepted}

	require.NoError(t, f.ctrl.Submit(context.Background(), "I remember the rain."))
	require.Equal(t, TextStateComplete, f.ctrl.Status().State)
	require.True(t, f.ctrl.Status().Submitted)
}

func TestTextSecondSubmitWhileInFlightIgnored(t *testing.T) {
	f := newTextFixture()
	f.submitter.during = func() {
		f.submitter.during = nil
		require.NoError(t, f.ctrl.Submit(context.Background(), "duplicate"))
	}

	require.NoError(t, f.ctrl.Submit(context.Background(), "first"))
	require.Len(t, f.submitter.submits, 1)
}

func TestTextSubmitAfterCompleteRejected(t *testing.T) {
	f := newTextFixture()
	require.NoError(t, f.ctrl.Submit(context.Background(), "done"))
	require.ErrorIs(t, f.ctrl.Submit(context.Background(), "again"), ErrInvalidState)
	require.Len(t, f.submitter.submits, 1)
}

func TestTextCloseCancelsCompletionCallback(t *testing.T) {
	f := newTextFixture()
	require.NoError(t, f.ctrl.Submit(context.Background(), "done"))

	f.ctrl.Close()
	f.clk.Advance(completeDelay)
	require.Equal(t, 0, f.completions)

	require.ErrorIs(t, f.ctrl.Submit(context.Background(), "late"), ErrClosed)
}
