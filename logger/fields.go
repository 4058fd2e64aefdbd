package logger

import (
	"go.uber.org/zap"

	"github.com/teranos/spark/sym"
)

// Standard field names for consistent structured logging across spark.
// Use these constants instead of raw strings to ensure consistency.
const (
	// Identity and context
	FieldTask     = "task"
	FieldWorkflow = "workflow"
	FieldCardTS   = "card_ts"
	FieldThreadTS = "thread_ts"
	FieldPostID   = "post_id"
	FieldTheme    = "theme"
	FieldSignal   = "signal"

	// Components
	FieldComponent = "component"

	// Operations
	FieldOperation = "operation"
	FieldStage     = "stage"

	// Timing
	FieldDurationMS = "duration_ms"
	FieldBucket     = "bucket"

	// Errors
	FieldError = "error"

	// Counts and money
	FieldCount    = "count"
	FieldScore    = "score"
	FieldSpendUSD = "spend_usd"
	FieldCostUSD  = "cost_usd"

	// Symbol marker (rendered inline by the minimal encoder)
	FieldSymbol = "symbol"
)

// Symbol-aware logging helpers.
// These functions attach the symbol as a structured field, not in the message,
// making logs queryable by symbol while keeping messages clean.

// AddPulseSymbol wraps a logger with the Pulse symbol (꩜)
func AddPulseSymbol(l *zap.SugaredLogger) *zap.SugaredLogger {
	return l.With(FieldSymbol, sym.Pulse)
}

// AddCoachSymbol wraps a logger with the Coach symbol (✎)
func AddCoachSymbol(l *zap.SugaredLogger) *zap.SugaredLogger {
	return l.With(FieldSymbol, sym.Coach)
}

// AddScoutSymbol wraps a logger with the Scout symbol (◎)
func AddScoutSymbol(l *zap.SugaredLogger) *zap.SugaredLogger {
	return l.With(FieldSymbol, sym.Scout)
}

// AddLearnSymbol wraps a logger with the Learn symbol (↻)
func AddLearnSymbol(l *zap.SugaredLogger) *zap.SugaredLogger {
	return l.With(FieldSymbol, sym.Learn)
}

// AddDBSymbol wraps a logger with the DB symbol (⊔)
func AddDBSymbol(l *zap.SugaredLogger) *zap.SugaredLogger {
	return l.With(FieldSymbol, sym.DB)
}

// WithSymbol returns a logger with the given symbol as a field,
// for ad-hoc symbol usage not covered by the helpers above.
func WithSymbol(symbol string) *zap.SugaredLogger {
	return Logger.With(FieldSymbol, symbol)
}
