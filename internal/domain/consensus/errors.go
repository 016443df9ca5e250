package consensus

import "errors"

// Sentinel kinds for resolution errors.
var (
	// ErrInvariant marks a bug-level consistency violation, e.g. more
	// distinct judges with live entries than the unit requires. It must
	// never surface to a submitting client as a normal rejection.
	ErrInvariant = errors.New("consistency invariant violation")
)
