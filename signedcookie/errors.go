package signedcookie

import "errors"

// Configuration errors.
var (
	// ErrInvalidConfiguration is returned when the processor is given
	// neither a Policy nor a name list, or both at once.
	ErrInvalidConfiguration = errors.New("signedcookie: exactly one of Policy or Names must be set")

	// ErrNoSigner is returned when Config.Signer is nil.
	ErrNoSigner = errors.New("signedcookie: signer must not be nil")

	// ErrInvalidCookieName is returned when a configured name is neither
	// "*" nor a valid cookie name token.
	ErrInvalidCookieName = errors.New("signedcookie: invalid cookie name")
)
