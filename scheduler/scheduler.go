package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"marketplace-watcher/config"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/process"
)

type State int

const (
	Idle State = iota
	Running
	CoolingDown
	Terminated
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case CoolingDown:
		return "cooling_down"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// ErrTerminated is returned by Run when the cooldown ends and the process is
// expected to exit so a supervisor can start it fresh.
var ErrTerminated = errors.New("scheduler terminated, waiting for supervisor restart")

type CycleFunc func(ctx context.Context) error

// Scheduler repeats a cycle forever with a fixed cooldown in between.
type Scheduler struct {
	cycle            CycleFunc
	interval         time.Duration
	restartInProcess bool
	showTimers       bool
	tick             time.Duration
	display          io.Writer
	log              zerolog.Logger

	mu    sync.Mutex
	state State
	timer *time.Timer
}

func New(cfg config.SchedulerConfig, cycle CycleFunc, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cycle:            cycle,
		interval:         cfg.Interval,
		restartInProcess: cfg.RestartInProcess,
		showTimers:       cfg.ShowTimers,
		tick:             time.Second,
		display:          os.Stdout,
		log:              log.With().Str("component", "Scheduler").Logger(),
	}
}

// WithDisplay sets where the countdown is rendered.
func (s *Scheduler) WithDisplay(w io.Writer) *Scheduler {
	s.display = w
	return s
}

func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Run drives the state machine until the context is cancelled, a cycle
// fails, or the cooldown ends in process-exit mode. Cancellation is a clean
// stop and returns nil.
func (s *Scheduler) Run(ctx context.Context) error {
	defer s.disarm()

	for {
		if ctx.Err() != nil {
			s.transition(Idle)
			return nil
		}

		s.disarm()
		s.transition(Running)
		if err := s.cycle(ctx); err != nil {
			s.transition(Idle)
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("cycle failed: %w", err)
		}
		s.logMemory(ctx)

		s.transition(CoolingDown)
		fired, deadline := s.arm(s.interval)
		s.log.Info().Time("next_run", deadline).Msg("Waiting for next cycle")

		if !s.cooldown(ctx, fired, deadline) {
			s.transition(Idle)
			return nil
		}

		if !s.restartInProcess {
			s.transition(Terminated)
			return ErrTerminated
		}
		s.transition(Idle)
	}
}

func (s *Scheduler) transition(next State) {
	s.mu.Lock()
	prev := s.state
	s.state = next
	s.mu.Unlock()

	if prev != next {
		s.log.Debug().Stringer("from", prev).Stringer("to", next).Msg("State change")
	}
}

// arm replaces any outstanding timer with a new one firing after d.
func (s *Scheduler) arm(d time.Duration) (<-chan struct{}, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
	}
	fired := make(chan struct{})
	s.timer = time.AfterFunc(d, func() { close(fired) })
	return fired, time.Now().Add(d)
}

func (s *Scheduler) disarm() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// cooldown blocks until the timer fires (true) or ctx is done (false).
func (s *Scheduler) cooldown(ctx context.Context, fired <-chan struct{}, deadline time.Time) bool {
	var tickC <-chan time.Time
	if s.showTimers {
		ticker := time.NewTicker(s.tick)
		defer ticker.Stop()
		tickC = ticker.C
		s.renderCountdown(time.Until(deadline))
	}

	for {
		select {
		case <-ctx.Done():
			return false
		case <-fired:
			if s.showTimers {
				fmt.Fprintln(s.display)
			}
			return true
		case <-tickC:
			s.renderCountdown(time.Until(deadline))
		}
	}
}

func (s *Scheduler) renderCountdown(remaining time.Duration) {
	fmt.Fprintf(s.display, "\rRestarts in: %s", FormatCountdown(remaining))
}

// FormatCountdown renders d as HH:MM:SS, rounding partial seconds up.
func FormatCountdown(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64((d + time.Second - 1) / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, (secs%3600)/60, secs%60)
}

func (s *Scheduler) logMemory(ctx context.Context) {
	proc, err := process.NewProcessWithContext(ctx, int32(os.Getpid()))
	if err != nil {
		s.log.Debug().Err(err).Msg("Could not inspect process")
		return
	}
	info, err := proc.MemoryInfoWithContext(ctx)
	if err != nil {
		s.log.Debug().Err(err).Msg("Could not read memory usage")
		return
	}
	s.log.Info().Uint64("rss_mb", info.RSS/1024/1024).Msg("Memory usage after cycle")
}
