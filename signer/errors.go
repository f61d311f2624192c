package signer

import "errors"

var (
	// ErrNoSecret is returned when the secret is empty.
	ErrNoSecret = errors.New("signer: secret must not be empty")

	// ErrWeakSecret is returned when the secret is shorter than
	// MinSecretBytes.
	ErrWeakSecret = errors.New("signer: secret is too short")

	// ErrUnsupportedAlgorithm is returned for an unknown algorithm name.
	ErrUnsupportedAlgorithm = errors.New("signer: unsupported algorithm")
)
