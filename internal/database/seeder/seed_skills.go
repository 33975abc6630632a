package seeder

import (
	"context"
	"fmt"

	"skill-exchange/internal/database"
)

type CatalogueEntry struct {
	Name     string
	Category string
}

// Catalogue is the starter set of skills users can pick from. Users may
// still create any other skill by name.
var Catalogue = []CatalogueEntry{
	{Name: "Guitar", Category: "Music"},
	{Name: "Piano", Category: "Music"},
	{Name: "Singing", Category: "Music"},
	{Name: "Spanish", Category: "Language"},
	{Name: "French", Category: "Language"},
	{Name: "Japanese", Category: "Language"},
	{Name: "Cooking", Category: "Lifestyle"},
	{Name: "Photography", Category: "Arts"},
	{Name: "Drawing", Category: "Arts"},
	{Name: "Go", Category: "Programming"},
	{Name: "JavaScript", Category: "Programming"},
	{Name: "Python", Category: "Programming"},
	{Name: "Public Speaking", Category: "Communication"},
	{Name: "Chess", Category: "Games"},
	{Name: "Yoga", Category: "Fitness"},
}

type SkillsSeeder struct{}

func (SkillsSeeder) Name() string { return "skills" }

func (SkillsSeeder) Run(ctx context.Context, db database.DB) error {
	if err := RequireColumns(ctx, db, "skills", "id", "name", "category", "created_at"); err != nil {
		return err
	}

	names := make([]string, 0, len(Catalogue))
	categories := make([]string, 0, len(Catalogue))
	for _, it := range Catalogue {
		names = append(names, it.Name)
		categories = append(categories, it.Category)
	}

	return database.InTx(ctx, db, func(tx database.Tx) error {
		_, err := tx.Exec(
			ctx,
			`INSERT INTO skills (name, category)
			 SELECT n, c FROM unnest($1::text[], $2::text[]) AS t(n, c)
			 ON CONFLICT (name) DO NOTHING`,
			names,
			categories,
		)
		if err != nil {
			return fmt.Errorf("insert catalogue: %w", err)
		}
		return nil
	})
}
