package generic

import (
	"math/rand"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// CODE GENERATOR - Random human codes unique within a collection
// =============================================================================

// UnambiguousAlphabet is A-Z without I and O, and 2-9 (no 0 or 1), so a
// code read aloud or off a receipt cannot be confused.
const UnambiguousAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// DefaultMaxAttempts bounds the collision-avoidance loop.
const DefaultMaxAttempts = 100

// CodeGenerator draws Prefix + Length random characters from Alphabet and
// retries while the candidate is already taken. After MaxAttempts it falls
// back to the last candidate with the last FallbackDigits digits of the
// millisecond clock appended, or, with FallbackReplaces, to Prefix plus
// those digits alone. The fallback is checked again; if it still collides
// the full nanosecond clock is used the same way.
type CodeGenerator struct {
	Prefix         string
	Alphabet       string
	Length         int
	MaxAttempts    int
	FallbackDigits int

	// FirstAlphabet, when set, is used for the first character only.
	FirstAlphabet string

	// FallbackReplaces drops the random characters from the fallback.
	FallbackReplaces bool

	Rand *rand.Rand
	Now  func() time.Time
}

// Generate returns a code not present in existing.
func (g *CodeGenerator) Generate(existing map[string]bool) string {
	attempts := g.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}

	var candidate string
	for i := 0; i < attempts; i++ {
		candidate = g.candidate()
		if !existing[candidate] {
			return candidate
		}
	}

	// Exhausted: timestamp-derived fallback
	stem := candidate
	if g.FallbackReplaces {
		stem = g.Prefix
	}
	now := g.now()
	millis := strconv.FormatInt(now.UnixMilli(), 10)
	fallback := stem + lastDigits(millis, g.FallbackDigits)
	if !existing[fallback] {
		return fallback
	}
	return stem + strconv.FormatInt(now.UnixNano(), 10)
}

func (g *CodeGenerator) candidate() string {
	var b strings.Builder
	b.WriteString(g.Prefix)
	for i := 0; i < g.Length; i++ {
		alphabet := g.Alphabet
		if i == 0 && g.FirstAlphabet != "" {
			alphabet = g.FirstAlphabet
		}
		b.WriteByte(alphabet[g.intn(len(alphabet))])
	}
	return b.String()
}

func (g *CodeGenerator) intn(n int) int {
	if g.Rand != nil {
		return g.Rand.Intn(n)
	}
	return rand.Intn(n)
}

func (g *CodeGenerator) now() time.Time {
	if g.Now != nil {
		return g.Now()
	}
	return time.Now()
}

func lastDigits(s string, n int) string {
	if n <= 0 || n >= len(s) {
		return s
	}
	return s[len(s)-n:]
}

// CodeSet builds the lookup set Generate expects, skipping empty codes.
func CodeSet(codes []string) map[string]bool {
	set := make(map[string]bool, len(codes))
	for _, c := range codes {
		if c != "" {
			set[c] = true
		}
	}
	return set
}
