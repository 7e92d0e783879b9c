//go:build property

package watcher

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestFingerprintProperties validates the set comparison driving rebuilds.
func TestFingerprintProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(9876)
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)
	fingerprints := gen.MapOf(gen.AlphaString(), gen.AlphaString())

	properties.Property("equality is reflexive", prop.ForAll(
		func(m map[string]string) bool {
			return Fingerprint(m).Equal(copyOf(m))
		},
		fingerprints,
	))

	properties.Property("equality is symmetric", prop.ForAll(
		func(a, b map[string]string) bool {
			return Fingerprint(a).Equal(b) == Fingerprint(b).Equal(a)
		},
		fingerprints, fingerprints,
	))

	properties.Property("diff is empty exactly when equal", prop.ForAll(
		func(a, b map[string]string) bool {
			added, removed, modified := Fingerprint(a).Diff(b)
			empty := len(added)+len(removed)+len(modified) == 0
			return empty == Fingerprint(a).Equal(b)
		},
		fingerprints, fingerprints,
	))

	properties.Property("changing one hash breaks equality", prop.ForAll(
		func(m map[string]string, key string) bool {
			changed := copyOf(m)
			changed[key] = m[key] + "x"
			return !Fingerprint(m).Equal(changed)
		},
		fingerprints, gen.AlphaString(),
	))

	properties.TestingRun(t)
}

func copyOf(m map[string]string) Fingerprint {
	out := make(Fingerprint, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
