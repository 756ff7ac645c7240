package allocation_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub000/allocation"
)

func needsABC() []allocation.Need {
	return []allocation.Need{
		{Outlet: "A", Units: 5},
		{Outlet: "B", Units: 5},
		{Outlet: "C", Units: 2},
	}
}

func sumShares(m map[allocation.OutletID]int) int {
	total := 0
	for _, q := range m {
		total += q
	}
	return total
}

// =============================================================================
// LARGEST REMAINDER
// =============================================================================

func TestFairShare_LargestRemainder_AllModes(t *testing.T) {
	// GIVEN: 10 units available, needs A=5 B=5 C=2
	// WHEN: Splitting with each rounding mode
	// THEN: Every mode lands on 4/4/2 and never exceeds 10

	for _, mode := range []allocation.RoundingMode{allocation.RoundNearest, allocation.RoundUp, allocation.RoundDown} {
		t.Run(string(mode), func(t *testing.T) {
			got := allocation.FairShare(10, needsABC(), mode, 2)

			assert.Equal(t, map[allocation.OutletID]int{"A": 4, "B": 4, "C": 2}, got)
			assert.LessOrEqual(t, sumShares(got), 10)
		})
	}
}

func TestFairShare_EvenSplitOfBufferedHub(t *testing.T) {
	// GIVEN: Hub holds 100 units with a 20% buffer (80 available)
	// AND: Two destinations each need 50
	// WHEN: Splitting
	// THEN: Each receives 40

	got := allocation.FairShare(80, []allocation.Need{{Outlet: "S1", Units: 50}, {Outlet: "S2", Units: 50}}, allocation.RoundNearest, 2)

	assert.Equal(t, 40, got["S1"])
	assert.Equal(t, 40, got["S2"])
}

func TestFairShare_PlentyOfStock_EveryNeedMet(t *testing.T) {
	got := allocation.FairShare(100, []allocation.Need{{Outlet: "S1", Units: 5}, {Outlet: "S2", Units: 7}}, allocation.RoundNearest, 2)

	assert.Equal(t, map[allocation.OutletID]int{"S1": 5, "S2": 7}, got)
}

func TestFairShare_BelowMinimumDropped(t *testing.T) {
	// GIVEN: 3 units, A needs 10, B needs 1
	// WHEN: Splitting with a 2-unit floor
	// THEN: A takes all 3, B gets nothing rather than a 1-unit line

	got := allocation.FairShare(3, []allocation.Need{{Outlet: "A", Units: 10}, {Outlet: "B", Units: 1}}, allocation.RoundNearest, 2)

	assert.Equal(t, map[allocation.OutletID]int{"A": 3}, got)
}

func TestFairShare_NothingAvailable(t *testing.T) {
	assert.Empty(t, allocation.FairShare(0, needsABC(), allocation.RoundNearest, 1))
	assert.Empty(t, allocation.FairShare(10, nil, allocation.RoundNearest, 1))
}

func TestFairShare_Invariants(t *testing.T) {
	// GIVEN: A spread of availability and need shapes
	// THEN: Sum <= available, each share <= need, each share >= floor

	cases := []struct {
		available int
		needs     []int
	}{
		{7, []int{3, 3, 3}},
		{1, []int{2, 2}},
		{11, []int{16, 1, 9, 4}},
		{40, []int{12, 12, 12, 12}},
		{5, []int{16, 16, 16, 16, 16}},
		{99, []int{3}},
	}
	for _, mode := range []allocation.RoundingMode{allocation.RoundNearest, allocation.RoundUp, allocation.RoundDown} {
		for _, tc := range cases {
			var needs []allocation.Need
			want := map[allocation.OutletID]int{}
			for i, n := range tc.needs {
				id := allocation.OutletID(string(rune('A' + i)))
				needs = append(needs, allocation.Need{Outlet: id, Units: n})
				want[id] = n
			}

			got := allocation.FairShare(tc.available, needs, mode, 2)

			assert.LessOrEqual(t, sumShares(got), tc.available, "mode=%s case=%v", mode, tc)
			for id, q := range got {
				assert.LessOrEqual(t, q, want[id])
				assert.GreaterOrEqual(t, q, 2)
			}
		}
	}
}
