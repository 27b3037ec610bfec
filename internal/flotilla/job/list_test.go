package job

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flotillaproject/flotilla/internal/common/util"
)

func countWhere(specs []*Spec, pred func(*Spec) bool) int {
	n := 0
	for _, s := range specs {
		if pred(s) {
			n++
		}
	}
	return n
}

func TestBuildListNonUpgrade(t *testing.T) {
	params := ListParams{
		StressTests:    []string{"test_stress1.tdb", "test_stress5.tdb", "test_stress6.tdb"},
		RecoverTests:   []string{"recover-test_stress1.tdb"},
		TableSizes:     []int64{2000, 50000000},
		LargeTableSize: 10000000,
		RunNonUpgrade:  true,
	}
	specs := BuildList(params, util.NewThreadsafeRand(1))

	// 2 table sizes x 2 cache sizes x (3 stress + 1 recover)
	require.Len(t, specs, 16)

	assert.Equal(t, 4, countWhere(specs, func(s *Spec) bool { return s.Variant.CrashRecovery }))
	assert.Equal(t, 0, countWhere(specs, func(s *Spec) bool { return s.Variant.Upgrade() }))
	assert.Equal(t, 8, countWhere(specs, func(s *Spec) bool { return s.Large }),
		"only the 50M row jobs are large")

	for _, s := range specs {
		if s.TableSize == 2000 {
			assert.Contains(t, []int64{100000, 1000000000}, s.CacheSize)
		}
	}
}

func TestBuildListUpgradeSkipRules(t *testing.T) {
	params := ListParams{
		StressTests:           []string{"test_stress1.tdb", "test_stress_openclose.tdb", "test_stress4.tdb"},
		RecoverTests:          []string{"recover-test_stress1.tdb"},
		TableSizes:            []int64{2000},
		RunUpgrade:            true,
		OldVersions:           []string{"5.0.8"},
		SkipUpgradeTests:      []string{"test_stress_openclose.tdb"},
		SkipStressedSeedTests: []string{"test_stress4.tdb"},
	}
	specs := BuildList(params, util.NewThreadsafeRand(1))

	// Per(table size, cache size) combination:
	//   test_stress1: pristine + stressed          = 2
	//   test_stress_openclose: upgrades skipped    = 0
	//   test_stress4: pristine only                = 1
	//   recover-test_stress1: pristine + stressed  = 2
	require.Len(t, specs, 2*5)

	assert.Equal(t, 0, countWhere(specs, func(s *Spec) bool {
		return s.Executable == "test_stress_openclose.tdb"
	}))
	assert.Equal(t, 0, countWhere(specs, func(s *Spec) bool {
		return s.Executable == "test_stress4.tdb" && s.Variant.Seed == SeedStressed
	}))
	assert.Equal(t, 2, countWhere(specs, func(s *Spec) bool {
		return s.Executable == "test_stress4.tdb" && s.Variant.Seed == SeedPristine
	}))
	for _, s := range specs {
		assert.True(t, s.Variant.Upgrade(), "non-upgrade runs are disabled")
	}
}

func TestBuildListDoubleUpgrade(t *testing.T) {
	params := ListParams{
		StressTests:           []string{"test_stress1.tdb", "test_stress4.tdb"},
		RecoverTests:          []string{"recover-test_stress1.tdb"},
		TableSizes:            []int64{2000},
		RunUpgrade:            true,
		DoubleUpgrade:         true,
		OldVersions:           []string{"4.2.0", "5.0.8"},
		SkipStressedSeedTests: []string{"test_stress4.tdb"},
	}
	specs := BuildList(params, util.NewThreadsafeRand(1))

	stress1 := countWhere(specs, func(s *Spec) bool {
		return s.Executable == "test_stress1.tdb" && s.Variant.Double
	})
	assert.Equal(t, 2*2*2, stress1, "both seeds of both versions run double, per cache size")

	// A test that cannot handle stressed environments cannot be doubled
	// either; it keeps a single pristine run.
	assert.Equal(t, 0, countWhere(specs, func(s *Spec) bool {
		return s.Executable == "test_stress4.tdb" && s.Variant.Double
	}))
	assert.Equal(t, 2*2, countWhere(specs, func(s *Spec) bool {
		return s.Executable == "test_stress4.tdb" && s.Variant.Seed == SeedPristine
	}))

	recovers := countWhere(specs, func(s *Spec) bool {
		return s.Variant.CrashRecovery
	})
	assert.Equal(t, 2*2*2, recovers)
	assert.Equal(t, recovers, countWhere(specs, func(s *Spec) bool {
		return s.Variant.CrashRecovery && s.Variant.Double
	}), "recover upgrades follow the double setting")
}

func TestBuildListShuffleKeepsAllJobs(t *testing.T) {
	params := ListParams{
		StressTests:   []string{"test_stress1.tdb", "test_stress5.tdb"},
		TableSizes:    []int64{2000, 200000, 50000000},
		RunNonUpgrade: true,
	}
	a := BuildList(params, util.NewThreadsafeRand(1))
	b := BuildList(params, util.NewThreadsafeRand(2))
	require.Equal(t, len(a), len(b))

	key := func(s *Spec) string { return s.String() }
	seen := map[string]int{}
	for _, s := range a {
		seen[key(s)]++
	}
	for _, s := range b {
		seen[key(s)]--
	}
	for k, v := range seen {
		assert.Zerof(t, v, "job %s present in one list but not the other", k)
	}
}
