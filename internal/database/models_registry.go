package database

import "matcha/internal/models"

// SeededModels returns the models the seeder writes, parents before dependents.
// The backend owns the schema; tests use this list to build a throwaway one.
func SeededModels() []interface{} {
	return []interface{}{
		&models.Tag{},
		&models.User{},
		&models.UserLocation{},
		&models.UserTag{},
	}
}
