package storage

import (
	"context"
	"database/sql"
	"errors"
	"slices"
	"strings"
)

// subsSeparator joins the subscription list into the guilds row.
// Mod names cannot contain commas, so the join is unambiguous.
const subsSeparator = ", "

// Guild is one notification destination and its settings.
//
// UpdatesChannel "" means notifications are disabled for the guild.
// ModRole "" means only admins may change settings.
// Subscribed nil means the guild receives every mod's updates.
type Guild struct {
	ID             string
	UpdatesChannel string
	ModRole        string
	Subscribed     []string
}

// EnsureGuild creates the guild row if it does not exist yet. Re-joining
// a known guild keeps its previous settings.
func (s *Store) EnsureGuild(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO guilds(id) VALUES(?)`, id)
	return err
}

func (s *Store) RemoveGuild(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM guilds WHERE id = ?`, id)
	return err
}

func (s *Store) SetChannel(ctx context.Context, id, channel string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO guilds(id, updates_channel) VALUES(?,?)
		 ON CONFLICT(id) DO UPDATE SET updates_channel = excluded.updates_channel`,
		id, nullStr(channel),
	)
	return err
}

func (s *Store) SetRole(ctx context.Context, id, role string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO guilds(id, modrole) VALUES(?,?)
		 ON CONFLICT(id) DO UPDATE SET modrole = excluded.modrole`,
		id, nullStr(role),
	)
	return err
}

// Role returns the guild's settings role, or "" when unset (admins only).
func (s *Store) Role(ctx context.Context, id string) (string, error) {
	var role sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT modrole FROM guilds WHERE id = ?`, id).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return role.String, nil
}

// AddSubscription appends mod to the guild's allow-list. The name is a
// soft reference; unknown mods are accepted and simply never match.
func (s *Store) AddSubscription(ctx context.Context, id, mod string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	subs, err := subscriptionsTx(ctx, tx, id)
	if err != nil {
		return err
	}
	if slices.Contains(subs, mod) {
		return ErrAlreadySubscribed
	}
	subs = append(subs, mod)
	if err := storeSubscriptionsTx(ctx, tx, id, subs); err != nil {
		return err
	}
	return tx.Commit()
}

// RemoveSubscription drops mod from the allow-list. Removing the last
// entry stores NULL, which reverts the guild to receive-all semantics.
func (s *Store) RemoveSubscription(ctx context.Context, id, mod string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	subs, err := subscriptionsTx(ctx, tx, id)
	if err != nil {
		return err
	}
	i := slices.Index(subs, mod)
	if i < 0 {
		return ErrNotSubscribed
	}
	subs = slices.Delete(subs, i, i+1)
	if err := storeSubscriptionsTx(ctx, tx, id, subs); err != nil {
		return err
	}
	return tx.Commit()
}

// Subscriptions returns the guild's allow-list, or nil when the guild
// receives everything.
func (s *Store) Subscriptions(ctx context.Context, id string) ([]string, error) {
	var raw sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT subscribed_mods FROM guilds WHERE id = ?`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return splitSubs(raw), nil
}

// NotifyTargets returns every guild with an updates channel configured.
func (s *Store) NotifyTargets(ctx context.Context) ([]Guild, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, updates_channel, modrole, subscribed_mods
		 FROM guilds WHERE updates_channel IS NOT NULL`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Guild
	for rows.Next() {
		var (
			g             Guild
			channel, role sql.NullString
			subs          sql.NullString
		)
		if err := rows.Scan(&g.ID, &channel, &role, &subs); err != nil {
			return nil, err
		}
		g.UpdatesChannel = channel.String
		g.ModRole = role.String
		g.Subscribed = splitSubs(subs)
		out = append(out, g)
	}
	return out, rows.Err()
}

func subscriptionsTx(ctx context.Context, tx *sql.Tx, id string) ([]string, error) {
	var raw sql.NullString
	err := tx.QueryRowContext(ctx, `SELECT subscribed_mods FROM guilds WHERE id = ?`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return splitSubs(raw), nil
}

func storeSubscriptionsTx(ctx context.Context, tx *sql.Tx, id string, subs []string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO guilds(id, subscribed_mods) VALUES(?,?)
		 ON CONFLICT(id) DO UPDATE SET subscribed_mods = excluded.subscribed_mods`,
		id, joinSubs(subs),
	)
	return err
}

func splitSubs(raw sql.NullString) []string {
	if !raw.Valid || strings.TrimSpace(raw.String) == "" {
		return nil
	}
	return strings.Split(raw.String, subsSeparator)
}

func joinSubs(subs []string) any {
	if len(subs) == 0 {
		return nil
	}
	return strings.Join(subs, subsSeparator)
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
