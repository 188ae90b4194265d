package flow

// State of one capture flow. Phases are strictly sequential; errors return
// the flow to the latest state whose work is still valid.
type State string

const (
	StatePermission State = "permission"
	StateReady      State = "ready"
	StateCountdown  State = "countdown"
	StateRecording  State = "recording"
	StateReview     State = "review"
	StateUploading  State = "uploading"
	StateComplete   State = "complete"
)

// TextState of one text-answer flow.
type TextState string

const (
	TextStateWriting    TextState = "writing"
	TextStateSubmitting TextState = "submitting"
	TextStateComplete   TextState = "complete"
)
