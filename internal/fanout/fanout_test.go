package fanout

import (
	"context"
	"errors"
	"sync"
	"testing"

	"modwatch/internal/detector"
	"modwatch/internal/mods"
	"modwatch/internal/storage"
	"modwatch/internal/transport"
	"modwatch/pkg/logx"
)

type fakeRegistry struct {
	targets []storage.Guild
}

func (f *fakeRegistry) NotifyTargets(context.Context) ([]storage.Guild, error) {
	return f.targets, nil
}

type fakeSender struct {
	mu    sync.Mutex
	sent  map[transport.ChannelRef][]transport.Message
	fails map[transport.ChannelRef]error
}

func newFakeSender() *fakeSender {
	return &fakeSender{sent: map[transport.ChannelRef][]transport.Message{}, fails: map[transport.ChannelRef]error{}}
}

func (f *fakeSender) Send(_ context.Context, to transport.ChannelRef, msg transport.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fails[to]; err != nil {
		return err
	}
	f.sent[to] = append(f.sent[to], msg)
	return nil
}

func (f *fakeSender) sentTo(to transport.ChannelRef) []transport.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]transport.Message(nil), f.sent[to]...)
}

func change(name string, kind detector.Kind) detector.Change {
	return detector.Change{Kind: kind, Mod: mods.Record{Name: name, Title: "T " + name, Owner: "ana", Version: "1.0.0"}}
}

func TestDispatchFiltersBySubscription(t *testing.T) {
	reg := &fakeRegistry{targets: []storage.Guild{
		{ID: "picky", UpdatesChannel: "100", Subscribed: []string{"a", "b"}},
		{ID: "all", UpdatesChannel: "200"},
	}}
	sender := newFakeSender()
	s := New(Config{}, reg, sender, nil, logx.Nop())

	s.Dispatch(context.Background(), []detector.Change{
		change("a", detector.KindUpdated),
		change("c", detector.KindNew),
	})

	if got := sender.sentTo("100"); len(got) != 1 || got[0].Title != "T a" {
		t.Fatalf("picky guild got %+v, want only mod a", got)
	}
	if got := sender.sentTo("200"); len(got) != 2 {
		t.Fatalf("receive-all guild got %d messages, want 2", len(got))
	}
}

func TestDispatchIsolatesDeliveryFailures(t *testing.T) {
	reg := &fakeRegistry{targets: []storage.Guild{
		{ID: "broken", UpdatesChannel: "100"},
		{ID: "healthy", UpdatesChannel: "200"},
	}}
	sender := newFakeSender()
	sender.fails["100"] = errors.New("chat not found")
	s := New(Config{}, reg, sender, nil, logx.Nop())

	s.Dispatch(context.Background(), []detector.Change{
		change("a", detector.KindNew),
		change("b", detector.KindNew),
	})

	if got := sender.sentTo("200"); len(got) != 2 {
		t.Fatalf("healthy guild got %d messages despite unrelated failure, want 2", len(got))
	}
}

func TestDispatchWithoutTargetsOrChanges(t *testing.T) {
	sender := newFakeSender()
	s := New(Config{}, &fakeRegistry{}, sender, nil, logx.Nop())

	s.Dispatch(context.Background(), nil)
	s.Dispatch(context.Background(), []detector.Change{change("a", detector.KindNew)})

	if len(sender.sent) != 0 {
		t.Fatalf("sent %d messages with no eligible targets, want 0", len(sender.sent))
	}
}

type fakeThumbs struct{ url string }

func (f *fakeThumbs) Thumbnail(context.Context, string) (string, error) { return f.url, nil }

func TestDispatchAttachesThumbnail(t *testing.T) {
	reg := &fakeRegistry{targets: []storage.Guild{{ID: "g", UpdatesChannel: "300"}}}
	sender := newFakeSender()
	s := New(Config{}, reg, sender, &fakeThumbs{url: "https://assets.example/t.png"}, logx.Nop())

	s.Dispatch(context.Background(), []detector.Change{change("a", detector.KindNew)})

	got := sender.sentTo("300")
	if len(got) != 1 || got[0].Thumbnail != "https://assets.example/t.png" {
		t.Fatalf("got %+v, want message with thumbnail", got)
	}
}
