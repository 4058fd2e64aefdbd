// Package session drives the action-card state machine: each workflow stage
// posts one card to the channel, waits for a declared operator signal with a
// timeout, and branches on the result.
package session

import (
	"time"
)

// Signal names an operator decision a card can resolve to
type Signal string

const (
	SignalYes        Signal = "yes"
	SignalNo         Signal = "no"
	SignalOption1    Signal = "option1"
	SignalOption2    Signal = "option2"
	SignalOption3    Signal = "option3"
	SignalPost       Signal = "post"
	SignalEdit       Signal = "edit"
	SignalRegenerate Signal = "regenerate"
	SignalSkip       Signal = "skip"
	SignalTimeout    Signal = "timeout"
)

// SignalSpec declares one acceptable signal on a card and the reaction
// aliases that express it. The first alias is primed onto the card when it
// is posted, so the operator can click instead of typing.
type SignalSpec struct {
	Signal  Signal
	Aliases []string
}

// Card is one posted approval unit. Immutable once posted except for its
// resolved signal; terminal when a signal resolves or the wait times out.
type Card struct {
	Index   int // 1-based position in the workflow
	Total   int
	Title   string
	Body    string
	Signals []SignalSpec // evaluated in declared order
	Default Signal       // resolved on timeout

	MessageTS string // external message handle, set by PostCard
	PostedAt  time.Time
}

// ProcessedMarker is the reaction the engine writes onto any message it has
// already acted on, making repeated history scans idempotent.
const ProcessedMarker = "robot_face"

// Standard reaction alias sets
var (
	YesAliases   = []string{"white_check_mark", "+1", "thumbsup"}
	NoAliases    = []string{"x", "-1", "thumbsdown"}
	One          = []string{"one"}
	Two          = []string{"two"}
	Three        = []string{"three"}
	EditAliases  = []string{"pencil2", "memo"}
	RegenAliases = []string{"arrows_counterclockwise", "recycle"}
	SkipAliases  = []string{"thumbsdown", "x"}
	PostAliases  = []string{"+1", "thumbsup"}
)

// ConfirmSignals is the yes/no declaration used by confirm-then-generate stages
func ConfirmSignals() []SignalSpec {
	return []SignalSpec{
		{SignalYes, YesAliases},
		{SignalNo, NoAliases},
	}
}

// PickSignals is the three-way declaration used by option-pick stages
func PickSignals() []SignalSpec {
	return []SignalSpec{
		{SignalOption1, One},
		{SignalOption2, Two},
		{SignalOption3, Three},
		{SignalSkip, SkipAliases},
	}
}

// DraftSignals is the four-way declaration used by draft review stages
func DraftSignals() []SignalSpec {
	return []SignalSpec{
		{SignalPost, PostAliases},
		{SignalEdit, EditAliases},
		{SignalRegenerate, RegenAliases},
		{SignalSkip, SkipAliases},
	}
}
