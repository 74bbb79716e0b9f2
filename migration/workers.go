package migration

import (
	"context"
	"math/rand"
	"strings"
	"time"

	"github.com/warp/caja-engine/generic"
)

const (
	// WorkerPrefix starts every worker number: TR-NNNN.
	WorkerPrefix = "TR-"

	workerNumberLength         = 4
	workerNumberFallbackDigits = 4
)

// NewWorkerNumberGenerator returns the TR-NNNN generator: four digits in
// 1000-9999, falling back to TR- plus the last four digits of the clock.
func NewWorkerNumberGenerator(rng *rand.Rand, now func() time.Time, maxAttempts int) *generic.CodeGenerator {
	return &generic.CodeGenerator{
		Prefix:           WorkerPrefix,
		Alphabet:         "0123456789",
		FirstAlphabet:    "123456789",
		Length:           workerNumberLength,
		MaxAttempts:      maxAttempts,
		FallbackDigits:   workerNumberFallbackDigits,
		FallbackReplaces: true,
		Rand:             rng,
		Now:              now,
	}
}

// needsWorkerNumber reports whether a worker number must be regenerated.
// Only the "TR" stem is checked, matching numbers written before the dash
// was introduced.
func needsWorkerNumber(numero string) bool {
	return numero == "" || !strings.HasPrefix(numero, "TR")
}

func migrateWorkerNumbers(gen *generic.CodeGenerator) func(context.Context, generic.Store) error {
	return func(ctx context.Context, s generic.Store) error {
		return rewriteCodes(ctx, s, TrabajadoresKey, "numeroTrabajador", needsWorkerNumber, gen)
	}
}
