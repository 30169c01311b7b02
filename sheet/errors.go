package sheet

import "errors"

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrRegionNotFound is returned when the addressed sheet does not exist.
	ErrRegionNotFound = errors.New("region not found")

	// ErrHeaderMissing is returned when the sheet ends before the header row.
	ErrHeaderMissing = errors.New("header row missing")

	// ErrColumnNotFound is returned when a required column cannot be resolved.
	ErrColumnNotFound = errors.New("column not found")
)

// IsSchemaError reports whether err stems from missing structure rather than I/O.
func IsSchemaError(err error) bool {
	return errors.Is(err, ErrColumnNotFound) || errors.Is(err, ErrHeaderMissing)
}
