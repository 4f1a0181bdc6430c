package rfm

import "fmt"

// InsufficientPopulationError is returned when the customer population is
// too small to cut into four non-empty quartile groups.
type InsufficientPopulationError struct {
	// Dimension is empty when the population check failed before scoring.
	Dimension Dimension
	Customers int
	Required  int
}

func (e *InsufficientPopulationError) Error() string {
	if e.Dimension == "" {
		return fmt.Sprintf("rfm: %d distinct customers, need at least %d for quartile scoring", e.Customers, e.Required)
	}
	return fmt.Sprintf("rfm: %s scores for %d customers cannot be split into %d non-empty groups", e.Dimension, e.Customers, e.Required)
}
