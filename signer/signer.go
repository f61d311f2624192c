package signer

import (
	"crypto/hmac"
	"encoding/hex"
	"fmt"
	"strings"
)

// MinSecretBytes is the shortest secret accepted by New.
const MinSecretBytes = 16

// Separator joins a value and its signature.
const Separator = "."

// Signer produces and checks authenticated cookie values.
type Signer interface {
	// Sign returns value with its signature appended.
	Sign(value string) string

	// Verify reports whether signed was produced by Sign with the same key
	// material and was not altered.
	Verify(signed string) bool

	// VerifiedRawValue returns the plaintext part of a value that already
	// passed Verify.
	VerifiedRawValue(signed string) string
}

// HMAC signs values as value + "." + hex(mac(value)).
type HMAC struct {
	algorithm Algorithm
	mac       macFunc
	legacy    macFunc
}

// Option configures an HMAC signer.
type Option func(*options)

type options struct {
	algorithm Algorithm
	legacy    Algorithm
}

// WithAlgorithm selects the algorithm used for new signatures.
// Defaults to AlgorithmSHA256.
func WithAlgorithm(a Algorithm) Option {
	return func(o *options) {
		o.algorithm = a
	}
}

// WithLegacyAlgorithm makes Verify also accept signatures computed with a
// previously used algorithm, so that the algorithm can be rotated without
// invalidating cookies already stored by clients.
func WithLegacyAlgorithm(a Algorithm) Option {
	return func(o *options) {
		o.legacy = a
	}
}

// New creates an HMAC signer keyed with secret.
func New(secret []byte, opts ...Option) (*HMAC, error) {
	if len(secret) == 0 {
		return nil, ErrNoSecret
	}

	if len(secret) < MinSecretBytes {
		return nil, fmt.Errorf("%w: need at least %d bytes", ErrWeakSecret, MinSecretBytes)
	}

	o := options{algorithm: AlgorithmSHA256}
	for _, opt := range opts {
		opt(&o)
	}

	key := make([]byte, len(secret))
	copy(key, secret)

	mac, err := newMAC(o.algorithm, key)
	if err != nil {
		return nil, err
	}

	s := &HMAC{algorithm: o.algorithm, mac: mac}

	if o.legacy != "" && o.legacy != o.algorithm {
		s.legacy, err = newMAC(o.legacy, key)
		if err != nil {
			return nil, fmt.Errorf("legacy algorithm: %w", err)
		}
	}

	return s, nil
}

// Algorithm returns the algorithm used for new signatures.
func (s *HMAC) Algorithm() Algorithm {
	return s.algorithm
}

// Sign returns value followed by the separator and its signature.
func (s *HMAC) Sign(value string) string {
	return value + Separator + s.signature(s.mac, value)
}

// Verify reports whether signed carries a valid signature. A value without
// a separator is never valid.
func (s *HMAC) Verify(signed string) bool {
	value, sig, ok := split(signed)
	if !ok {
		return false
	}

	if hmac.Equal([]byte(sig), []byte(s.signature(s.mac, value))) {
		return true
	}

	if s.legacy != nil {
		return hmac.Equal([]byte(sig), []byte(s.signature(s.legacy, value)))
	}

	return false
}

// VerifiedRawValue strips the signature from signed.
func (s *HMAC) VerifiedRawValue(signed string) string {
	value, _, _ := split(signed)
	return value
}

func (s *HMAC) signature(mac macFunc, value string) string {
	h := mac()
	h.Write([]byte(value))

	return hex.EncodeToString(h.Sum(nil))
}

// split cuts at the last separator since the plaintext may contain dots.
func split(signed string) (value, sig string, ok bool) {
	i := strings.LastIndex(signed, Separator)
	if i < 0 {
		return signed, "", false
	}

	return signed[:i], signed[i+len(Separator):], true
}
