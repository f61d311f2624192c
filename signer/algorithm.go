package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"

	"golang.org/x/crypto/blake2b"
)

// Algorithm names the keyed hash used to compute cookie signatures.
type Algorithm string

const (
	// AlgorithmSHA256 is HMAC using SHA-256.
	AlgorithmSHA256 Algorithm = "sha256"

	// AlgorithmSHA384 is HMAC using SHA-384.
	AlgorithmSHA384 Algorithm = "sha384"

	// AlgorithmSHA512 is HMAC using SHA-512.
	AlgorithmSHA512 Algorithm = "sha512"

	// AlgorithmBLAKE2b256 is keyed BLAKE2b with a 256-bit digest.
	AlgorithmBLAKE2b256 Algorithm = "blake2b-256"

	// AlgorithmBLAKE2b512 is keyed BLAKE2b with a 512-bit digest.
	AlgorithmBLAKE2b512 Algorithm = "blake2b-512"
)

// String returns the configuration name of the algorithm.
func (a Algorithm) String() string {
	return string(a)
}

// Algorithms lists every supported algorithm.
func Algorithms() []Algorithm {
	return []Algorithm{
		AlgorithmSHA256,
		AlgorithmSHA384,
		AlgorithmSHA512,
		AlgorithmBLAKE2b256,
		AlgorithmBLAKE2b512,
	}
}

// ParseAlgorithm returns the Algorithm for name. An empty name selects
// AlgorithmSHA256.
func ParseAlgorithm(name string) (Algorithm, error) {
	if name == "" {
		return AlgorithmSHA256, nil
	}

	for _, a := range Algorithms() {
		if string(a) == name {
			return a, nil
		}
	}

	return "", fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, name)
}

// macFunc returns a fresh keyed hash per call.
type macFunc func() hash.Hash

func newMAC(a Algorithm, secret []byte) (macFunc, error) {
	switch a {
	case AlgorithmSHA256:
		return func() hash.Hash { return hmac.New(sha256.New, secret) }, nil
	case AlgorithmSHA384:
		return func() hash.Hash { return hmac.New(sha512.New384, secret) }, nil
	case AlgorithmSHA512:
		return func() hash.Hash { return hmac.New(sha512.New, secret) }, nil
	case AlgorithmBLAKE2b256:
		return newBLAKE2b(blake2b.New256, secret)
	case AlgorithmBLAKE2b512:
		return newBLAKE2b(blake2b.New512, secret)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, a)
	}
}

// newBLAKE2b reduces secrets longer than the BLAKE2b key limit to a 64-byte
// digest and checks the key once so that later calls cannot fail.
func newBLAKE2b(ctor func(key []byte) (hash.Hash, error), secret []byte) (macFunc, error) {
	key := secret
	if len(key) > blake2b.Size {
		sum := blake2b.Sum512(secret)
		key = sum[:]
	}

	if _, err := ctor(key); err != nil {
		return nil, err
	}

	return func() hash.Hash {
		h, _ := ctor(key)
		return h
	}, nil
}
