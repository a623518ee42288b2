package storage

import (
	"context"
	"errors"
	"testing"
)

func TestSubscriptionLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	const guild = "g1"

	if err := s.EnsureGuild(ctx, guild); err != nil {
		t.Fatalf("EnsureGuild: %v", err)
	}

	// No allow-list yet: nil means "receive all".
	subs, err := s.Subscriptions(ctx, guild)
	if err != nil {
		t.Fatalf("Subscriptions: %v", err)
	}
	if subs != nil {
		t.Fatalf("fresh guild subscriptions = %v, want nil", subs)
	}

	if err := s.AddSubscription(ctx, guild, "alpha"); err != nil {
		t.Fatalf("AddSubscription(alpha): %v", err)
	}
	if err := s.AddSubscription(ctx, guild, "beta"); err != nil {
		t.Fatalf("AddSubscription(beta): %v", err)
	}
	if err := s.AddSubscription(ctx, guild, "alpha"); !errors.Is(err, ErrAlreadySubscribed) {
		t.Fatalf("duplicate add err = %v, want ErrAlreadySubscribed", err)
	}

	subs, _ = s.Subscriptions(ctx, guild)
	if len(subs) != 2 || subs[0] != "alpha" || subs[1] != "beta" {
		t.Fatalf("subscriptions = %v, want [alpha beta]", subs)
	}

	if err := s.RemoveSubscription(ctx, guild, "gamma"); !errors.Is(err, ErrNotSubscribed) {
		t.Fatalf("remove missing err = %v, want ErrNotSubscribed", err)
	}
	if err := s.RemoveSubscription(ctx, guild, "alpha"); err != nil {
		t.Fatalf("RemoveSubscription(alpha): %v", err)
	}

	// Removing the last entry reverts to receive-all (NULL, not empty set).
	if err := s.RemoveSubscription(ctx, guild, "beta"); err != nil {
		t.Fatalf("RemoveSubscription(beta): %v", err)
	}
	subs, _ = s.Subscriptions(ctx, guild)
	if subs != nil {
		t.Fatalf("subscriptions after clearing = %v, want nil (receive all)", subs)
	}
}

func TestEnsureGuildKeepsSettings(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	const guild = "g1"

	if err := s.SetChannel(ctx, guild, "12345"); err != nil {
		t.Fatalf("SetChannel: %v", err)
	}
	// Re-join: INSERT OR IGNORE must not wipe the channel.
	if err := s.EnsureGuild(ctx, guild); err != nil {
		t.Fatalf("EnsureGuild: %v", err)
	}

	targets, err := s.NotifyTargets(ctx)
	if err != nil {
		t.Fatalf("NotifyTargets: %v", err)
	}
	if len(targets) != 1 || targets[0].UpdatesChannel != "12345" {
		t.Fatalf("targets = %+v, want one guild with channel 12345", targets)
	}
}

func TestNotifyTargetsSkipsGuildsWithoutChannel(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.EnsureGuild(ctx, "silent"); err != nil {
		t.Fatalf("EnsureGuild: %v", err)
	}
	if err := s.SetChannel(ctx, "loud", "777"); err != nil {
		t.Fatalf("SetChannel: %v", err)
	}
	if err := s.AddSubscription(ctx, "loud", "alpha"); err != nil {
		t.Fatalf("AddSubscription: %v", err)
	}

	targets, err := s.NotifyTargets(ctx)
	if err != nil {
		t.Fatalf("NotifyTargets: %v", err)
	}
	if len(targets) != 1 {
		t.Fatalf("got %d targets, want 1", len(targets))
	}
	g := targets[0]
	if g.ID != "loud" || g.UpdatesChannel != "777" {
		t.Fatalf("unexpected target: %+v", g)
	}
	if len(g.Subscribed) != 1 || g.Subscribed[0] != "alpha" {
		t.Fatalf("target subscriptions = %v, want [alpha]", g.Subscribed)
	}
}

func TestRoleDefaultsToAdminsOnly(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	role, err := s.Role(ctx, "unknown")
	if err != nil {
		t.Fatalf("Role: %v", err)
	}
	if role != "" {
		t.Fatalf("role for unknown guild = %q, want empty (admins only)", role)
	}

	if err := s.SetRole(ctx, "g1", "mods"); err != nil {
		t.Fatalf("SetRole: %v", err)
	}
	role, _ = s.Role(ctx, "g1")
	if role != "mods" {
		t.Fatalf("role = %q, want mods", role)
	}
}

func TestRemoveGuildDropsSettings(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.SetChannel(ctx, "g1", "42"); err != nil {
		t.Fatalf("SetChannel: %v", err)
	}
	if err := s.RemoveGuild(ctx, "g1"); err != nil {
		t.Fatalf("RemoveGuild: %v", err)
	}
	targets, err := s.NotifyTargets(ctx)
	if err != nil {
		t.Fatalf("NotifyTargets: %v", err)
	}
	if len(targets) != 0 {
		t.Fatalf("got %d targets after removal, want 0", len(targets))
	}
}
