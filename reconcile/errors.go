package reconcile

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

// ErrMergeKeyNotFound is returned when no order-key alias resolves on one side
// of the merge. It is the only schema absence that aborts the stage.
var ErrMergeKeyNotFound = errors.New("merge key not found")

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// KeyError names the side whose merge key could not be resolved.
type KeyError struct {
	Side    string // "ledger" or "status feed"
	Aliases []string
}

func (e *KeyError) Error() string {
	return fmt.Sprintf("merge key not found in %s (tried %s)", e.Side, strings.Join(e.Aliases, ", "))
}

func (e *KeyError) Unwrap() error {
	return ErrMergeKeyNotFound
}
