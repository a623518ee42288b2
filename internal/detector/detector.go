// Package detector walks the portal's recently-updated listing and
// classifies each entry against the local snapshot.
package detector

import (
	"context"
	"errors"

	"modwatch/internal/feed"
	"modwatch/internal/mods"
	"modwatch/pkg/logx"
)

const DefaultPageSize = 10

type Kind string

const (
	KindNew     Kind = "new"
	KindUpdated Kind = "updated"
)

// Change is one detected mod change. It lives for a single cycle and is
// never persisted; restarting re-derives everything from the snapshot.
type Change struct {
	Mod  mods.Record
	Kind Kind
}

// Feed is the slice of the portal client the detector needs.
type Feed interface {
	Page(ctx context.Context, page, size int) ([]mods.Record, error)
	All(ctx context.Context) ([]mods.Record, error)
}

// Snapshot is the slice of the storage layer the detector needs.
type Snapshot interface {
	GetMod(ctx context.Context, name string) (mods.Record, bool, error)
	UpsertMod(ctx context.Context, m mods.Record) error
	BootstrapMods(ctx context.Context, records []mods.Record) error
	Seeded(ctx context.Context) (bool, error)
}

type Detector struct {
	feed     Feed
	store    Snapshot
	pageSize int
	log      logx.Logger
}

func New(f Feed, store Snapshot, pageSize int, log logx.Logger) *Detector {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Detector{feed: f, store: store, pageSize: pageSize, log: log}
}

// Run executes one detection cycle and returns the changes found, newest
// first. On the very first run it seeds the snapshot from a full dump
// and reports nothing, so a fresh deployment stays silent.
//
// A portal outage mid-paging ends the cycle early; changes found before
// the failure are still returned and must still be delivered.
func (d *Detector) Run(ctx context.Context) ([]Change, error) {
	seeded, err := d.store.Seeded(ctx)
	if err != nil {
		return nil, err
	}
	if !seeded {
		return nil, d.bootstrap(ctx)
	}

	var out []Change
	for page := 1; ; page++ {
		entries, err := d.feed.Page(ctx, page, d.pageSize)
		if err != nil {
			if errors.Is(err, feed.ErrUnavailable) {
				d.log.Warn("portal unavailable, ending cycle early",
					logx.Int("page", page), logx.Int("changes", len(out)), logx.Err(err))
				return out, nil
			}
			return out, err
		}

		changed := 0
		for _, m := range entries {
			ch, err := d.classify(ctx, m)
			if err != nil {
				return out, err
			}
			if ch == nil {
				continue
			}
			changed++
			out = append(out, *ch)
		}

		// The feed is sorted newest-updated-first: once a page holds any
		// unchanged entry, every later page is older and fully unchanged.
		// A page of exactly pageSize changes is ambiguous (page-boundary
		// coincidence), so paging continues past it.
		if changed < d.pageSize {
			return out, nil
		}
	}
}

func (d *Detector) classify(ctx context.Context, m mods.Record) (*Change, error) {
	prev, ok, err := d.store.GetMod(ctx, m.Name)
	if err != nil {
		return nil, err
	}
	if !ok {
		if err := d.store.UpsertMod(ctx, m); err != nil {
			return nil, err
		}
		return &Change{Mod: m, Kind: KindNew}, nil
	}
	if prev.ReleasedAt == m.ReleasedAt {
		return nil, nil
	}
	if err := d.store.UpsertMod(ctx, m); err != nil {
		return nil, err
	}
	return &Change{Mod: m, Kind: KindUpdated}, nil
}

func (d *Detector) bootstrap(ctx context.Context) error {
	d.log.Info("snapshot uninitialized, seeding from full listing")
	all, err := d.feed.All(ctx)
	if err != nil {
		return err
	}
	return d.store.BootstrapMods(ctx, all)
}
