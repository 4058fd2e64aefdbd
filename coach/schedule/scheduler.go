// Package schedule runs the top-level fixed-tick loop: once per wall-clock
// minute it evaluates every registered entry's trigger predicate and
// dispatches due tasks as independent goroutines with isolated failure
// handling.
package schedule

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/spark/logger"
)

// Entry is one named workflow and its trigger predicate, evaluated each
// tick against the local wall-clock time.
type Entry struct {
	Name string
	When func(t time.Time) bool
	Run  func(ctx context.Context) error
}

// Scheduler drives the minute loop. Wall-clock time is UTC plus a fixed
// configured offset; daylight-saving transitions are deliberately ignored.
type Scheduler struct {
	entries  []Entry
	offset   time.Duration
	lastRun  map[string]string // task name -> minute bucket last fired
	mu       sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	log      *zap.SugaredLogger
	pulseLog *zap.SugaredLogger
	timeNow  func() time.Time
	sleep    func(ctx context.Context, d time.Duration) bool
}

// NewScheduler creates a scheduler with the given UTC offset
func NewScheduler(entries []Entry, utcOffset time.Duration, log *zap.SugaredLogger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		entries:  entries,
		offset:   utcOffset,
		lastRun:  make(map[string]string),
		ctx:      ctx,
		cancel:   cancel,
		log:      log,
		pulseLog: logger.AddPulseSymbol(log),
		timeNow:  time.Now,
		sleep:    sleepCtx,
	}
}

// Start begins the minute loop in the background
func (s *Scheduler) Start() {
	s.wg.Add(1)
	go s.run()
	s.pulseLog.Infow("Scheduler started",
		"entries", len(s.entries),
		"utc_offset", s.offset)
}

// Stop cancels the loop and waits for it to exit. In-flight task
// goroutines are signalled through the shared context but not awaited.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
	s.pulseLog.Infow("Scheduler stopped")
}

func (s *Scheduler) run() {
	defer s.wg.Done()

	for {
		if !s.sleep(s.ctx, s.untilNextMinute()) {
			return
		}
		s.Tick()
	}
}

// Tick evaluates every entry against the current minute and dispatches the
// due ones. Exported so a single tick can be driven manually and in tests.
func (s *Scheduler) Tick() {
	local := s.timeNow().UTC().Add(s.offset)
	bucket := local.Format("2006-01-02T15:04")

	for _, entry := range s.entries {
		if !entry.When(local) {
			continue
		}
		if !s.claim(entry.Name, bucket) {
			continue
		}
		s.dispatch(entry, bucket)
	}
}

// claim records the minute bucket for a task; false means the task already
// fired this minute.
func (s *Scheduler) claim(name, bucket string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastRun[name] == bucket {
		return false
	}
	s.lastRun[name] = bucket
	return true
}

// dispatch runs a task as an independent concurrent unit. Panics and errors
// are contained at this boundary; they never stop the loop or sibling tasks.
func (s *Scheduler) dispatch(entry Entry, bucket string) {
	s.pulseLog.Infow("Task due",
		logger.FieldTask, entry.Name,
		"minute", bucket)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.log.Errorw("Task panicked",
					logger.FieldTask, entry.Name,
					"panic", r)
			}
		}()

		start := time.Now()
		if err := entry.Run(s.ctx); err != nil {
			s.log.Errorw("Task failed",
				logger.FieldTask, entry.Name,
				logger.FieldError, err,
				logger.FieldDurationMS, time.Since(start).Milliseconds())
			return
		}
		s.log.Infow("Task complete",
			logger.FieldTask, entry.Name,
			logger.FieldDurationMS, time.Since(start).Milliseconds())
	}()
}

// untilNextMinute returns the wait until the next minute boundary
func (s *Scheduler) untilNextMinute() time.Duration {
	now := s.timeNow()
	next := now.Truncate(time.Minute).Add(time.Minute)
	return next.Sub(now)
}

// sleepCtx sleeps for d or until the context is cancelled; false on cancel
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// At matches one exact wall-clock minute every day
func At(hour, minute int) func(time.Time) bool {
	return func(t time.Time) bool {
		return t.Hour() == hour && t.Minute() == minute
	}
}

// AtWeekday matches one exact minute on one weekday
func AtWeekday(weekday time.Weekday, hour, minute int) func(time.Time) bool {
	return func(t time.Time) bool {
		return t.Weekday() == weekday && t.Hour() == hour && t.Minute() == minute
	}
}

// AtHours matches the top of each listed hour
func AtHours(hours []int) func(time.Time) bool {
	return func(t time.Time) bool {
		if t.Minute() != 0 {
			return false
		}
		for _, h := range hours {
			if t.Hour() == h {
				return true
			}
		}
		return false
	}
}

// Every matches every n minutes on the hour grid
func Every(minutes int) func(time.Time) bool {
	return func(t time.Time) bool {
		if minutes <= 0 {
			return false
		}
		return t.Minute()%minutes == 0
	}
}
