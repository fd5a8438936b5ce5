package store

import "context"

// MigrationHistory is one row of the append-only migration ledger. A row's
// presence prevents re-execution of the corresponding migration.
type MigrationHistory struct {
	Version   int64
	CreatedTs int64
}

// FindMigrationHistory is the find condition for ledger rows.
type FindMigrationHistory struct {
	Version *int64
}

// UpsertMigrationHistory records a successfully applied migration.
type UpsertMigrationHistory struct {
	Version int64
}

func (s *Store) ListMigrationHistories(ctx context.Context, find *FindMigrationHistory) ([]*MigrationHistory, error) {
	return s.driver.ListMigrationHistories(ctx, find)
}

func (s *Store) UpsertMigrationHistory(ctx context.Context, upsert *UpsertMigrationHistory) (*MigrationHistory, error) {
	return s.driver.UpsertMigrationHistory(ctx, upsert)
}
