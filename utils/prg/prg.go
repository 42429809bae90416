// Package prg creates the deterministic pseudo random generators threaded through a
// simulation. No component reads process-wide randomness: every sampling or
// optimization step receives an explicit random.Rand handle.
package prg

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/sha3"

	"github.com/onflow/flow-go/crypto/random"
)

// Customizers separate the PRG streams used for different tasks of a run. They are at
// most 12 bytes long, the maximum supported by the ChaCha20 PRG.
var (
	ProposerSelection = []byte("lsp-proposer")
	BidOptimization   = []byte("lsp-optimize")
	Adjustment        = []byte("lsp-adjust")
)

// FromRandomSource returns a PRG seeded by the given source of randomness.
// The customizer is used to generate a task-specific PRG (up to 12 bytes long).
//
// The source is hashed to obtain the PRG seed, so sources of any length are accepted.
func FromRandomSource(randomSource []byte, customizer []byte) (random.Rand, error) {
	seed := sha3.Sum256(randomSource)

	rng, err := random.NewChacha20PRG(seed[:], customizer)
	if err != nil {
		return nil, fmt.Errorf("could not create ChaCha20 PRG: %w", err)
	}
	return rng, nil
}

// FromSeed returns a PRG for the given numeric seed.
func FromSeed(seed uint64, customizer []byte) (random.Rand, error) {
	source := make([]byte, 8)
	binary.BigEndian.PutUint64(source, seed)
	return FromRandomSource(source, customizer)
}

// Derive returns a child PRG seeded from 32 bytes read off the parent. Deriving
// advances the parent, so children must be derived in a fixed order for runs to be
// reproducible.
func Derive(parent random.Rand, customizer []byte) (random.Rand, error) {
	seed := make([]byte, random.Chacha20SeedLen)
	parent.Read(seed)

	rng, err := random.NewChacha20PRG(seed, customizer)
	if err != nil {
		return nil, fmt.Errorf("could not derive ChaCha20 PRG: %w", err)
	}
	return rng, nil
}
