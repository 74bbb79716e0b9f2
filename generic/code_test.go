package generic_test

import (
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/warp/caja-engine/generic"
)

func clock() time.Time { return time.Date(2025, time.March, 10, 9, 30, 0, 123_000_000, time.UTC) }

func TestCodeGenerator_UsesAlphabet(t *testing.T) {
	gen := &generic.CodeGenerator{
		Prefix:   "CAJ-",
		Alphabet: generic.UnambiguousAlphabet,
		Length:   4,
		Rand:     rand.New(rand.NewSource(1)),
	}

	for i := 0; i < 500; i++ {
		code := gen.Generate(nil)
		assert.Len(t, code, 8)
		assert.True(t, strings.HasPrefix(code, "CAJ-"))
		for _, c := range code[4:] {
			assert.Contains(t, generic.UnambiguousAlphabet, string(c))
		}
		assert.NotContains(t, code[4:], "0")
		assert.NotContains(t, code[4:], "O")
	}
}

func TestUnambiguousAlphabet(t *testing.T) {
	assert.Len(t, generic.UnambiguousAlphabet, 32)
	for _, c := range "IO01" {
		assert.NotContains(t, generic.UnambiguousAlphabet, string(c))
	}
}

func TestCodeGenerator_AvoidsExisting(t *testing.T) {
	gen := &generic.CodeGenerator{Prefix: "X", Alphabet: "AB", Length: 1, Rand: rand.New(rand.NewSource(3))}

	for i := 0; i < 20; i++ {
		assert.Equal(t, "XB", gen.Generate(generic.CodeSet([]string{"XA"})))
	}
}

func TestCodeGenerator_Fallback(t *testing.T) {
	// GIVEN: Every random candidate is taken
	// WHEN: Generating
	// THEN: The last candidate gets the millisecond suffix, and if that is
	//       taken too, the nanosecond one

	gen := &generic.CodeGenerator{
		Prefix: "CAJ-", Alphabet: "Z", Length: 2,
		MaxAttempts: 5, FallbackDigits: 3, Now: clock,
	}

	assert.Equal(t, "CAJ-ZZ123", gen.Generate(generic.CodeSet([]string{"CAJ-ZZ"})))

	taken := generic.CodeSet([]string{"CAJ-ZZ", "CAJ-ZZ123"})
	code := gen.Generate(taken)
	assert.False(t, taken[code])
	assert.True(t, strings.HasPrefix(code, "CAJ-ZZ"))
	assert.Greater(t, len(code), len("CAJ-ZZ123"))
}

func TestCodeGenerator_FallbackReplaces(t *testing.T) {
	// GIVEN: Every random candidate is taken and FallbackReplaces is set
	// WHEN: Generating
	// THEN: The fallback is the prefix plus clock digits only

	gen := &generic.CodeGenerator{
		Prefix: "CAJ-", Alphabet: "Z", Length: 2,
		MaxAttempts: 5, FallbackDigits: 3, FallbackReplaces: true, Now: clock,
	}

	assert.Equal(t, "CAJ-123", gen.Generate(generic.CodeSet([]string{"CAJ-ZZ"})))

	taken := generic.CodeSet([]string{"CAJ-ZZ", "CAJ-123"})
	code := gen.Generate(taken)
	assert.False(t, taken[code])
	assert.True(t, strings.HasPrefix(code, "CAJ-1741"))
	assert.NotContains(t, code, "ZZ")
}

func TestCodeGenerator_FirstAlphabet(t *testing.T) {
	gen := &generic.CodeGenerator{
		Prefix: "TR-", Alphabet: "0123456789", FirstAlphabet: "123456789",
		Length: 4, Rand: rand.New(rand.NewSource(9)),
	}
	for i := 0; i < 200; i++ {
		assert.NotEqual(t, byte('0'), gen.Generate(nil)[3])
	}
}

func TestCodeSet_SkipsEmpty(t *testing.T) {
	set := generic.CodeSet([]string{"", "A", "B", ""})
	assert.Len(t, set, 2)
	assert.False(t, set[""])
}
