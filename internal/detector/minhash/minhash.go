// Package minhash computes fixed-length MinHash signatures over token sets
// and estimates Jaccard similarity between them. Signatures are produced by
// k universal hash permutations (a*h + b mod p) over a 64-bit base hash of
// each token.
package minhash

import (
	"math/rand"

	"github.com/cespare/xxhash/v2"
)

// mersennePrime is the modulus for the universal hash family. All permuted
// values are therefore below 2^61, leaving ^uint64(0) free as the identity
// value.
const mersennePrime = (1 << 61) - 1

// identityValue is the initial (and empty-set) value of every signature
// position.
const identityValue = ^uint64(0)

// Signature is an ordered fixed-length vector of minimum permuted hash
// values. The fraction of matching positions between two signatures
// estimates the Jaccard similarity of the underlying token sets.
type Signature []uint64

// Generator derives signatures under a fixed set of hash permutations. The
// permutation parameters are drawn deterministically from the seed at
// construction and must not change for the lifetime of an index: a different
// seed invalidates every previously stored signature.
type Generator struct {
	numPerm int
	a       []uint64
	b       []uint64
}

// NewGenerator creates a Generator with numPerm permutations seeded
// deterministically.
func NewGenerator(numPerm int, seed uint64) *Generator {
	rng := rand.New(rand.NewSource(int64(seed)))
	g := &Generator{
		numPerm: numPerm,
		a:       make([]uint64, numPerm),
		b:       make([]uint64, numPerm),
	}
	for i := 0; i < numPerm; i++ {
		g.a[i] = 1 + rng.Uint64()%(mersennePrime-1)
		g.b[i] = rng.Uint64() % mersennePrime
	}
	return g
}

// NumPerm returns the signature length.
func (g *Generator) NumPerm() int {
	return g.numPerm
}

// Sign computes the MinHash signature of a token set. It is a pure function
// of the tokens and the generator's permutations. An empty token set yields
// the identity signature, which the index never buckets, so an empty
// document can never be reported similar to anything.
func (g *Generator) Sign(tokens []string) Signature {
	sig := make(Signature, g.numPerm)
	for i := range sig {
		sig[i] = identityValue
	}
	for _, token := range tokens {
		h := xxhash.Sum64String(token) % mersennePrime
		for i := 0; i < g.numPerm; i++ {
			v := (g.a[i]*h + g.b[i]) % mersennePrime
			if v < sig[i] {
				sig[i] = v
			}
		}
	}
	return sig
}

// Empty reports whether the signature is the identity signature (no tokens).
func (s Signature) Empty() bool {
	for _, v := range s {
		if v != identityValue {
			return false
		}
	}
	return true
}

// Estimate returns the estimated Jaccard similarity between two signatures:
// the fraction of matching positions. Identical token sets estimate exactly
// 1. Signatures of differing length estimate 0.
func Estimate(a, b Signature) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	matches := 0
	for i := range a {
		if a[i] == b[i] {
			matches++
		}
	}
	return float64(matches) / float64(len(a))
}
