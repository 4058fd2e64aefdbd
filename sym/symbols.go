// Package sym defines canonical symbols for spark operations and system markers.
// These symbols are stable across CLI output, logs, and documentation.
package sym

// Glyph string constants, the visual expression of each symbol.
const (
	// Pulse marks the minute-tick scheduler and anything it dispatches.
	Pulse = "꩜"
	// PulseOpen marks graceful startup operations.
	PulseOpen = "✿"
	// PulseClose marks graceful shutdown operations.
	PulseClose = "❀"
	// Coach marks operator-facing workflow activity (cards, sessions).
	Coach = "✎"
	// Scout marks opportunity scanning and scoring.
	Scout = "◎"
	// Learn marks reinforcement updates.
	Learn = "↻"
	// DB marks database/storage operations.
	DB = "⊔"
)

// Names maps each glyph to its canonical name, for log queries and docs.
var Names = map[string]string{
	Pulse:      "pulse",
	PulseOpen:  "pulse_open",
	PulseClose: "pulse_close",
	Coach:      "coach",
	Scout:      "scout",
	Learn:      "learn",
	DB:         "db",
}
