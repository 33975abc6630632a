// Package seeder loads reference data into a migrated database.
package seeder

import (
	"context"

	"skill-exchange/internal/database"
)

// Seeder must be safe to run repeatedly.
type Seeder interface {
	Name() string
	Run(ctx context.Context, db database.DB) error
}

// Defaults returns the seeders cmd/migrate and DB_RUN_SEEDERS run, in order.
func Defaults() []Seeder {
	return []Seeder{SkillsSeeder{}}
}
