package store

import (
	"context"

	"github.com/pitabwire/frame/datastore/pool"
)

// Migrate creates or updates the service's tables. A nil pool is a no-op
// so in-memory deployments skip migration entirely.
func Migrate(ctx context.Context, p pool.Pool) error {
	if p == nil {
		return nil
	}
	db := p.DB(ctx, false)
	if db == nil {
		return ErrDatabaseUnavailable
	}
	return db.AutoMigrate(
		&User{},
		&PolicyProfile{},
		&PolicyRule{},
		&RefactorSession{},
		&RefactorSuggestion{},
		&ComplianceMetric{},
	)
}
