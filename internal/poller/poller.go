// Package poller drives detection cycles on a fixed wall-clock interval.
package poller

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"modwatch/internal/detector"
	"modwatch/pkg/logx"
)

const DefaultInterval = time.Minute

type Detector interface {
	Run(ctx context.Context) ([]detector.Change, error)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, changes []detector.Change)
}

type Service struct {
	interval time.Duration
	det      Detector
	disp     Dispatcher
	log      logx.Logger

	c *cron.Cron
	// running enforces single-flight: a new cycle never starts while the
	// previous one is still paging or dispatching.
	running atomic.Bool
}

func New(interval time.Duration, det Detector, disp Dispatcher, log logx.Logger) *Service {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{interval: interval, det: det, disp: disp, log: log}
}

func (s *Service) Start(ctx context.Context) error {
	s.c = cron.New()
	if _, err := s.c.AddFunc(fmt.Sprintf("@every %s", s.interval), func() { s.cycle(ctx) }); err != nil {
		return err
	}
	s.c.Start()
	s.log.Info("poller started", logx.Duration("interval", s.interval))
	return nil
}

func (s *Service) Stop(ctx context.Context) {
	if s.c == nil {
		return
	}
	stopped := s.c.Stop()
	select {
	case <-stopped.Done():
		s.log.Info("poller stopped")
	case <-ctx.Done():
		s.log.Warn("poller stop cancelled with cycle still running")
	}
}

// cycle runs one detect-and-dispatch pass. A bad cycle is logged and
// contained; the process keeps polling.
func (s *Service) cycle(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		s.log.Debug("previous cycle still running, skipping")
		return
	}
	defer s.running.Store(false)
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("panic in update cycle", logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
		}
	}()

	start := time.Now()
	changes, err := s.det.Run(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		s.log.Error("update cycle failed", logx.Err(err))
	}
	// Changes accumulated before a failure are still worth delivering.
	if len(changes) > 0 {
		s.disp.Dispatch(ctx, changes)
	}
	s.log.Debug("update cycle finished",
		logx.Int("changes", len(changes)), logx.Duration("took", time.Since(start)))
}
