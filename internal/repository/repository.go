package repository

import (
	"fmt"

	"github.com/fightpulse/calibration/internal/database"
)

// Repositories holds all repository implementations
type Repositories struct {
	Outcome   OutcomeRepository
	Parameter ParameterRepository
	WeakLabel WeakLabelRepository
}

// NewRepositories creates and returns all repository implementations
func NewRepositories(db *database.DB) (*Repositories, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	pool := db.Pool()
	return &Repositories{
		Outcome:   NewPostgresOutcomeRepository(pool),
		Parameter: NewPostgresParameterRepository(pool),
		WeakLabel: NewPostgresWeakLabelRepository(pool),
	}, nil
}
