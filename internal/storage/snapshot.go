package storage

import (
	"context"
	"database/sql"
	"errors"

	"modwatch/internal/mods"
	"modwatch/pkg/logx"
)

// seededKey flags that the mods table has been bootstrapped at least once.
// An empty but seeded table is a valid state and must not re-trigger the
// first-run bootstrap.
const seededKey = "mods_seeded"

func (s *Store) GetMod(ctx context.Context, name string) (mods.Record, bool, error) {
	var m mods.Record
	err := s.db.QueryRowContext(ctx,
		`SELECT name, released_at, title, owner, version FROM mods WHERE name = ?`, name,
	).Scan(&m.Name, &m.ReleasedAt, &m.Title, &m.Owner, &m.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return mods.Record{}, false, nil
	}
	if err != nil {
		return mods.Record{}, false, err
	}
	return m, true, nil
}

// UpsertMod inserts or replaces the snapshot row for m.Name. Each call is
// independently durable; a cycle aborted halfway leaves earlier upserts
// intact and consistent.
func (s *Store) UpsertMod(ctx context.Context, m mods.Record) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO mods(name, released_at, title, owner, version) VALUES(?,?,?,?,?)
		 ON CONFLICT(name) DO UPDATE SET
		   released_at = excluded.released_at,
		   title       = excluded.title,
		   owner       = excluded.owner,
		   version     = excluded.version`,
		m.Name, m.ReleasedAt, m.Title, m.Owner, m.Version,
	)
	return err
}

// BootstrapMods seeds the snapshot from a full portal dump and marks the
// store seeded, all in one transaction. Records already present are left
// untouched.
func (s *Store) BootstrapMods(ctx context.Context, records []mods.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO mods(name, released_at, title, owner, version) VALUES(?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, m := range records {
		if _, err := stmt.ExecContext(ctx, m.Name, m.ReleasedAt, m.Title, m.Owner, m.Version); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO meta(key, value) VALUES(?, '1')
		 ON CONFLICT(key) DO UPDATE SET value = '1'`, seededKey,
	); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.log.Info("mod snapshot bootstrapped", logx.Int("mods", len(records)))
	return nil
}

// Seeded reports whether BootstrapMods has ever completed.
func (s *Store) Seeded(ctx context.Context) (bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, seededKey).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return v == "1", nil
}

// ListModNames returns all known mod names, sorted. Serves the command
// layer's autocomplete; the detector itself never needs a full listing.
func (s *Store) ListModNames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM mods ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}
