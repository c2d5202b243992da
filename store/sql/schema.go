package sqlstore

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

// EnsureSchema creates the gateway tables when they do not exist yet.
// Deployments with managed migrations can skip it.
func EnsureSchema(ctx context.Context, db *bun.DB) error {
	if db == nil {
		return fmt.Errorf("sqlstore: bun db is required")
	}
	models := []any{
		(*userRecord)(nil),
		(*identityRecord)(nil),
		(*sessionRecord)(nil),
		(*linkRecord)(nil),
	}
	for _, model := range models {
		if _, err := db.NewCreateTable().
			Model(model).
			IfNotExists().
			Exec(ctx); err != nil {
			return fmt.Errorf("sqlstore: create table for %T: %w", model, err)
		}
	}
	return nil
}
