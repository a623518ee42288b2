// Package fanout routes detected mod changes to every guild whose
// subscription settings match, one message per (change, guild) pair.
package fanout

import (
	"context"
	"slices"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"modwatch/internal/detector"
	"modwatch/internal/feed"
	"modwatch/internal/storage"
	"modwatch/internal/transport"
	"modwatch/pkg/logx"
)

// Registry is the slice of the storage layer the fanout reads.
type Registry interface {
	NotifyTargets(ctx context.Context) ([]storage.Guild, error)
}

// Thumbnails resolves a mod's thumbnail URL lazily; the listing does not
// carry it. Implemented by the feed client.
type Thumbnails interface {
	Thumbnail(ctx context.Context, name string) (string, error)
}

type Config struct {
	RatePerSec  int
	SendTimeout time.Duration
	LinkBase    string
}

type Service struct {
	reg      Registry
	sender   transport.Sender
	thumbs   Thumbnails
	limiter  *rate.Limiter
	timeout  time.Duration
	linkBase string
	log      logx.Logger
}

func New(cfg Config, reg Registry, sender transport.Sender, thumbs Thumbnails, log logx.Logger) *Service {
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 5
	}
	timeout := cfg.SendTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	linkBase := cfg.LinkBase
	if linkBase == "" {
		linkBase = feed.DefaultBaseURL
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		reg:      reg,
		sender:   sender,
		thumbs:   thumbs,
		limiter:  rate.NewLimiter(rate.Limit(rps), rps),
		timeout:  timeout,
		linkBase: linkBase,
		log:      log,
	}
}

// Dispatch delivers the cycle's changes. Each change is formatted once,
// then sent to matching guilds concurrently; one guild's failure never
// blocks the others, and every send has a bounded timeout so a slow
// platform cannot stall the next detection cycle indefinitely.
func (s *Service) Dispatch(ctx context.Context, changes []detector.Change) {
	if len(changes) == 0 {
		return
	}
	targets, err := s.reg.NotifyTargets(ctx)
	if err != nil {
		s.log.Error("listing notify targets failed", logx.Err(err))
		return
	}
	if len(targets) == 0 {
		return
	}

	for _, ch := range changes {
		thumb := ""
		if s.thumbs != nil {
			t, err := s.thumbs.Thumbnail(ctx, ch.Mod.Name)
			if err != nil {
				s.log.Debug("thumbnail lookup failed", logx.String("mod", ch.Mod.Name), logx.Err(err))
			} else {
				thumb = t
			}
		}
		msg := buildMessage(ch, thumb, s.linkBase)

		var wg sync.WaitGroup
		for _, g := range targets {
			if !wantsMod(g.Subscribed, ch.Mod.Name) {
				continue
			}
			wg.Add(1)
			go func(g storage.Guild) {
				defer wg.Done()
				s.sendOne(ctx, g, msg, ch.Mod.Name)
			}(g)
		}
		wg.Wait()
	}
}

// wantsMod applies allow-list semantics: an empty list means everything.
func wantsMod(allow []string, name string) bool {
	return len(allow) == 0 || slices.Contains(allow, name)
}

func (s *Service) sendOne(ctx context.Context, g storage.Guild, msg transport.Message, modName string) {
	if err := s.limiter.Wait(ctx); err != nil {
		return
	}
	sctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.sender.Send(sctx, g.UpdatesChannel, msg); err != nil {
		s.log.Warn("notification delivery failed",
			logx.String("guild", g.ID), logx.String("mod", modName), logx.Err(err))
		return
	}
	s.log.Debug("notification sent", logx.String("guild", g.ID), logx.String("mod", modName))
}
