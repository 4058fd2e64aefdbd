// Package budget gates paid generation calls behind a daily spend cap.
// State is keyed by calendar date and persisted on every check, so the cap
// survives restarts and rolls over implicitly at midnight UTC.
package budget

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/spark/errors"
	"github.com/teranos/spark/logger"
)

// State is the persisted daily spend record
type State struct {
	Date     string
	SpendUSD float64
	Drafts   int
}

// Ledger enforces the daily generation budget. Check-and-increment is a
// single logical operation under the mutex; concurrent workflow instances
// in one process serialize here.
type Ledger struct {
	db      *sql.DB
	capUSD  float64
	mu      sync.Mutex
	log     *zap.SugaredLogger
	timeNow func() time.Time // injectable for testing
}

// NewLedger creates a ledger with the given daily cap
func NewLedger(db *sql.DB, capUSD float64, log *zap.SugaredLogger) *Ledger {
	return &Ledger{
		db:      db,
		capUSD:  capUSD,
		log:     log,
		timeNow: time.Now,
	}
}

// NewLedgerWithClock creates a ledger with a custom clock for testing
func NewLedgerWithClock(db *sql.DB, capUSD float64, log *zap.SugaredLogger, clock func() time.Time) *Ledger {
	l := NewLedger(db, capUSD, log)
	l.timeNow = clock
	return l
}

// Allow reports whether a generation call costing cost may proceed. On true
// the cost is charged and the draft counter incremented; on false nothing is
// charged. State is persisted either way.
//
// The check is per call, not latching: a refusal leaves spend untouched, so
// a later call whose cost still fits under the cap is allowed. In practice
// every caller charges the same configured draft cost, so a refusal holds
// until the date rolls over.
func (l *Ledger) Allow(ctx context.Context, cost float64) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	today := l.today()
	state, err := l.load(ctx, today)
	if err != nil {
		return false, err
	}

	if state.SpendUSD+cost > l.capUSD {
		if err := l.save(ctx, state); err != nil {
			return false, err
		}
		l.log.Infow("Budget exhausted, generation paused for today",
			logger.FieldSpendUSD, state.SpendUSD,
			"cap_usd", l.capUSD,
			logger.FieldCostUSD, cost)
		return false, nil
	}

	state.SpendUSD += cost
	state.Drafts++
	if err := l.save(ctx, state); err != nil {
		return false, err
	}

	l.log.Debugw("Budget charge accepted",
		logger.FieldSpendUSD, state.SpendUSD,
		"drafts", state.Drafts,
		logger.FieldCostUSD, cost)
	return true, nil
}

// SetCap replaces the daily cap. Spend already recorded today is kept, so
// lowering the cap below current spend pauses drafts until tomorrow.
func (l *Ledger) SetCap(capUSD float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.capUSD = capUSD
}

// Today returns the current day's state without charging anything
func (l *Ledger) Today(ctx context.Context) (*State, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.load(ctx, l.today())
}

// Remaining returns the unspent budget for today
func (l *Ledger) Remaining(ctx context.Context) (float64, error) {
	state, err := l.Today(ctx)
	if err != nil {
		return 0, err
	}
	remaining := l.capUSD - state.SpendUSD
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

func (l *Ledger) today() string {
	return l.timeNow().UTC().Format("2006-01-02")
}

// load fetches today's row. A missing or stale-dated row means a fresh day
// with zeroed spend.
func (l *Ledger) load(ctx context.Context, today string) (*State, error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT date, spend_usd, drafts FROM budget_state WHERE date = ?`, today)

	var state State
	err := row.Scan(&state.Date, &state.SpendUSD, &state.Drafts)
	if errors.Is(err, sql.ErrNoRows) {
		return &State{Date: today}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load budget state")
	}
	return &state, nil
}

func (l *Ledger) save(ctx context.Context, state *State) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO budget_state (date, spend_usd, drafts, updated_at)
		VALUES (?, ?, ?, datetime('now'))
		ON CONFLICT(date) DO UPDATE SET
			spend_usd = excluded.spend_usd,
			drafts = excluded.drafts,
			updated_at = excluded.updated_at`,
		state.Date, state.SpendUSD, state.Drafts)
	if err != nil {
		return errors.Wrap(err, "failed to save budget state")
	}
	return nil
}
