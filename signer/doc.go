// Package signer implements the keyed signatures carried by signed cookies.
//
// A signed value is the plaintext, a "." separator and the hex encoded MAC
// of the plaintext:
//
//	s, err := signer.New([]byte(secret), signer.WithAlgorithm(signer.AlgorithmSHA256))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	v := s.Sign("42")       // "42.<hex>"
//	ok := s.Verify(v)       // true
//	raw := s.VerifiedRawValue(v) // "42"
//
// HMAC with SHA-2 and keyed BLAKE2b are supported. WithLegacyAlgorithm keeps
// accepting signatures made with a previous algorithm during a rotation.
package signer
