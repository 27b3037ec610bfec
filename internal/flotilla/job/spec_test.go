package job

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextRunIsSequential(t *testing.T) {
	spec := &Spec{Executable: "test_stress1.tdb"}
	for want := int64(0); want < 5; want++ {
		assert.Equal(t, want, spec.NextRun())
	}
}

func TestNextRunIsUniqueAcrossWorkers(t *testing.T) {
	spec := &Spec{Executable: "test_stress1.tdb"}

	const goroutines = 8
	const runsEach = 100
	var mu sync.Mutex
	seen := map[int64]bool{}
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < runsEach; j++ {
				run := spec.NextRun()
				mu.Lock()
				assert.False(t, seen[run], "run number handed out twice")
				seen[run] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, goroutines*runsEach)
}

func TestOldVersionString(t *testing.T) {
	plain := &Spec{Executable: "test_stress1.tdb"}
	assert.Equal(t, "noupgrade", plain.OldVersionString())

	upgrade := &Spec{
		Executable: "test_stress1.tdb",
		Variant:    Variant{UpgradeFrom: "5.0.8", Seed: SeedStressed},
	}
	assert.Equal(t, "5.0.8-stressed", upgrade.OldVersionString())
}

func TestSpecString(t *testing.T) {
	spec := &Spec{
		Executable: "recover-test_stress2.tdb",
		TableSize:  2000,
		CacheSize:  100000,
		Variant: Variant{
			CrashRecovery: true,
			UpgradeFrom:   "4.2.0",
			Seed:          SeedPristine,
			Double:        true,
		},
	}
	assert.Equal(t,
		"double-upgrade-recover-stress<recover-test_stress2.tdb, 2000, 100000, 4.2.0-pristine>",
		spec.String())
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "passed", OutcomePassed.String())
	assert.Equal(t, "failed", OutcomeFailed.String())
	assert.Equal(t, "killed", OutcomeKilled.String())
}
