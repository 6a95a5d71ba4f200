package postgres

import (
	"context"
	"fmt"

	"creator-ledger/db/migrations"
)

// HealthCheck reports the database healthy when it answers and its schema is
// clean and at least at the embedded migration version.
type HealthCheck struct {
	pool Pool
}

func NewHealthCheck(pool Pool) *HealthCheck {
	return &HealthCheck{pool: pool}
}

func (h *HealthCheck) Ping(ctx context.Context) error {
	var (
		version int64
		dirty   bool
	)
	if err := h.pool.QueryRow(ctx, `SELECT version, dirty FROM schema_migrations LIMIT 1`).Scan(&version, &dirty); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if dirty {
		return fmt.Errorf("schema version %d is dirty", version)
	}
	if version < int64(migrations.Version) {
		return fmt.Errorf("schema version %d is behind %d", version, migrations.Version)
	}
	return nil
}

func (h *HealthCheck) Name() string {
	return "postgresql"
}
