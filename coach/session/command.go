package session

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/teranos/spark/errors"
)

// Command is a parsed operator instruction typed into a thread: a verb, an
// optional integer index, and an optional free-text payload. Text that does
// not match the grammar is rejected rather than guessed at.
type Command struct {
	Verb    string
	Index   int
	Payload string
}

// Recognized verbs
const (
	VerbPost   = "post"
	VerbEdit   = "edit"
	VerbCreate = "create"
	VerbSkip   = "skip"
)

// commandRe matches "verb", "verb N", "verb N: payload", "verb: payload"
var commandRe = regexp.MustCompile(`(?i)^\s*(post|edit|create|skip)\b\s*(\d+)?\s*:?\s*(.*)$`)

// ParseCommand parses operator text into a Command. Returns ErrNoSignal for
// text that is not a command, so callers treat it as "no actionable input".
func ParseCommand(text string) (*Command, error) {
	m := commandRe.FindStringSubmatch(text)
	if m == nil {
		return nil, errors.Wrapf(errors.ErrNoSignal, "not a command: %q", text)
	}

	cmd := &Command{
		Verb:    strings.ToLower(m[1]),
		Payload: strings.TrimSpace(m[3]),
	}
	if m[2] != "" {
		idx, err := strconv.Atoi(m[2])
		if err != nil {
			return nil, errors.Wrapf(errors.ErrNoSignal, "bad index in command: %q", text)
		}
		cmd.Index = idx
	}

	// edit requires replacement text; post requires an index
	switch cmd.Verb {
	case VerbEdit:
		if cmd.Payload == "" {
			return nil, errors.Wrapf(errors.ErrNoSignal, "edit command without text: %q", text)
		}
	case VerbPost:
		if cmd.Index == 0 {
			return nil, errors.Wrapf(errors.ErrNoSignal, "post command without index: %q", text)
		}
	}
	return cmd, nil
}

// Selection is a parsed shortlist pick, e.g. "create: 1,4,6 spicy"
type Selection struct {
	Indices []int
	Spicy   bool
}

var digitsRe = regexp.MustCompile(`\d+`)

// ParseSelection extracts the chosen shortlist indices from a create
// command's payload. The "spicy" token switches reply tone.
func ParseSelection(cmd *Command) (*Selection, error) {
	if cmd.Verb != VerbCreate {
		return nil, errors.Wrapf(errors.ErrNoSignal, "not a selection: %s", cmd.Verb)
	}

	sel := &Selection{
		Spicy: strings.Contains(strings.ToLower(cmd.Payload), "spicy"),
	}
	if cmd.Index != 0 {
		sel.Indices = append(sel.Indices, cmd.Index)
	}
	for _, d := range digitsRe.FindAllString(cmd.Payload, -1) {
		n, err := strconv.Atoi(d)
		if err != nil {
			continue
		}
		sel.Indices = append(sel.Indices, n)
	}
	if len(sel.Indices) == 0 {
		return nil, errors.Wrapf(errors.ErrNoSignal, "selection without indices: %q", cmd.Payload)
	}
	return sel, nil
}
