package caja

import (
	"math/rand"
	"strings"
	"time"

	"github.com/warp/caja-engine/generic"
)

const (
	// CodePrefix starts every current caja code: CAJ-XXXX.
	CodePrefix = "CAJ-"

	// LegacyCodePrefix marks codes from the first schema ("CO1234").
	LegacyCodePrefix = "CO"

	codeLength         = 4
	codeFallbackDigits = 3
)

// NewCodeGenerator returns the CAJ-XXXX generator. A nil rng uses the
// package-level source; maxAttempts <= 0 uses generic.DefaultMaxAttempts.
func NewCodeGenerator(rng *rand.Rand, now func() time.Time, maxAttempts int) *generic.CodeGenerator {
	return &generic.CodeGenerator{
		Prefix:         CodePrefix,
		Alphabet:       generic.UnambiguousAlphabet,
		Length:         codeLength,
		MaxAttempts:    maxAttempts,
		FallbackDigits: codeFallbackDigits,
		Rand:           rng,
		Now:            now,
	}
}

// NeedsNewCode reports whether a persisted code must be regenerated: it is
// missing or uses the legacy prefix.
func NeedsNewCode(codigo string) bool {
	return codigo == "" || strings.HasPrefix(codigo, LegacyCodePrefix)
}
