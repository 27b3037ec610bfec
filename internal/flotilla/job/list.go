package job

import (
	"math/rand"

	"golang.org/x/exp/slices"
)

// Each table size is tested against a cachetable scaled to it and against a
// fixed 1GB cachetable.
const (
	cacheSizeFactor = 50
	fixedCacheSize  = 1000 * 1000 * 1000
)

// ListParams controls which jobs BuildList generates.
type ListParams struct {
	StressTests  []string
	RecoverTests []string

	TableSizes []int64
	// Jobs with TableSize at or above this are marked large. 0 disables
	// the marking.
	LargeTableSize int64

	RunNonUpgrade bool

	RunUpgrade    bool
	DoubleUpgrade bool
	OldVersions   []string
	// SkipUpgradeTests never get upgrade variants; they cannot work on
	// existing environments.
	SkipUpgradeTests []string
	// SkipStressedSeedTests cannot run on environments that were already
	// stressed, which also rules out double runs.
	SkipStressedSeedTests []string
}

// BuildList generates the full cross product of jobs for one fleet and
// shuffles it so the first workers do not all start on identical shapes.
func BuildList(params ListParams, rng *rand.Rand) []*Spec {
	var specs []*Spec
	add := func(executable string, tsize, csize int64, variant Variant) {
		specs = append(specs, &Spec{
			Executable: executable,
			TableSize:  tsize,
			CacheSize:  csize,
			Large:      params.LargeTableSize > 0 && tsize >= params.LargeTableSize,
			Variant:    variant,
		})
	}

	for _, tsize := range params.TableSizes {
		for _, csize := range []int64{cacheSizeFactor * tsize, fixedCacheSize} {
			for _, test := range params.StressTests {
				if params.RunNonUpgrade {
					add(test, tsize, csize, Variant{})
				}
				if !params.RunUpgrade || slices.Contains(params.SkipUpgradeTests, test) {
					continue
				}
				noStressedSeed := slices.Contains(params.SkipStressedSeedTests, test)
				for _, version := range params.OldVersions {
					for _, seed := range []SeedKind{SeedPristine, SeedStressed} {
						variant := Variant{UpgradeFrom: version, Seed: seed}
						switch {
						case params.DoubleUpgrade && !noStressedSeed:
							variant.Double = true
							add(test, tsize, csize, variant)
						case seed == SeedStressed && noStressedSeed:
							// The stressed environment would break this
							// test's assumptions.
						default:
							add(test, tsize, csize, variant)
						}
					}
				}
			}
			for _, test := range params.RecoverTests {
				if params.RunNonUpgrade {
					add(test, tsize, csize, Variant{CrashRecovery: true})
				}
				if !params.RunUpgrade {
					continue
				}
				for _, version := range params.OldVersions {
					for _, seed := range []SeedKind{SeedPristine, SeedStressed} {
						add(test, tsize, csize, Variant{
							CrashRecovery: true,
							UpgradeFrom:   version,
							Seed:          seed,
							Double:        params.DoubleUpgrade,
						})
					}
				}
			}
		}
	}

	rng.Shuffle(len(specs), func(i, j int) {
		specs[i], specs[j] = specs[j], specs[i]
	})
	return specs
}
