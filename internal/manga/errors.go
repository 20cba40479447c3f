package manga

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a panel, chapter or concept does not exist.
	ErrNotFound = errors.New("not found")
	// ErrStoreUnavailable is returned when the backing store fails.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrInvalidInput is returned for missing identifiers or malformed input.
	ErrInvalidInput = errors.New("invalid input")
)

// RequireIDs rejects an empty learner or panel id.
func RequireIDs(learnerID, panelID string) error {
	if learnerID == "" {
		return fmt.Errorf("%w: learner id is required", ErrInvalidInput)
	}
	if panelID == "" {
		return fmt.Errorf("%w: panel id is required", ErrInvalidInput)
	}
	return nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}
