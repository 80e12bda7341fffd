package workflow

import (
	"fmt"

	"sipnread/api/internal/apperr"
	"sipnread/api/internal/models"
)

var transitions = map[models.Status][]models.Status{
	models.StatusNew:        {models.StatusInProgress, models.StatusCancelled},
	models.StatusInProgress: {models.StatusCompleted, models.StatusCancelled},
	models.StatusCompleted:  {models.StatusRead},
}

// CanTransition reports whether a request may move from one status to another.
func CanTransition(from, to models.Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func transitionError(from, to models.Status) error {
	return fmt.Errorf("%w: %s -> %s", apperr.ErrInvalidTransition, from, to)
}
