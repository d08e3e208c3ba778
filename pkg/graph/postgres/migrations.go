package postgres

import (
	"context"
	"fmt"
)

// migrations are applied in order; each statement is idempotent.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS nodes (
		id    TEXT PRIMARY KEY,
		kind  TEXT NOT NULL,
		email TEXT,
		data  TEXT NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS nodes_email_uniq ON nodes (email) WHERE email IS NOT NULL`,
	`CREATE INDEX IF NOT EXISTS nodes_kind_idx ON nodes (kind)`,
	`CREATE TABLE IF NOT EXISTS edges (
		id      TEXT PRIMARY KEY,
		kind    TEXT NOT NULL,
		from_id TEXT NOT NULL,
		to_id   TEXT NOT NULL,
		perm    TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS edges_from_idx ON edges (kind, from_id)`,
	`CREATE INDEX IF NOT EXISTS edges_to_idx ON edges (kind, to_id)`,
}

// Migrate creates the schema if it does not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	for i, stmt := range migrations {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply migration %d: %w", i, err)
		}
	}
	return nil
}
