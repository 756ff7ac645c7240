/*
fairshare.go - Proportional split of scarce hub stock

PURPOSE:
  Splits the units a hub can spare for one product across competing
  destinations in proportion to their need, using the largest remainder
  method for the units left over after rounding.

ALGORITHM:
  1. raw_d = available * need_d / total_need
  2. base_d = min(round_mode(raw_d), need_d)
  3. If rounding pushed the sum above available, take units back one at a
     time from the destinations rounding inflated most.
  4. Drop any base_d below minUnits (it becomes 0, not rounded up).
  5. Hand leftover units to destinations in descending order of the
     fractional part of raw_d, each up to its remaining need, skipping a
     destination when its total would still sit below minUnits.

  The sum of the result never exceeds available, and no destination ever
  receives more than its need.

EXAMPLE:
  available=10, needs A=5 B=5 C=2, nearest, minUnits=2
  raw = 4.17, 4.17, 1.67 -> 4, 4, 2

SEE ALSO:
  - engine/fairshare.go: builds needs per product and gates the result
*/
package allocation

import (
	"math"
	"sort"
)

// Need is one destination's unmet demand for a product.
type Need struct {
	Outlet OutletID
	Units  int
}

// FairShare distributes available units across needs. Needs with Units <= 0
// are ignored. The returned map only holds destinations receiving units.
func FairShare(available int, needs []Need, mode RoundingMode, minUnits int) map[OutletID]int {
	out := make(map[OutletID]int)
	if available <= 0 {
		return out
	}
	if minUnits < 1 {
		minUnits = 1
	}

	type slot struct {
		outlet OutletID
		need   int
		raw    float64
		base   int
		order  int
	}

	total := 0
	var slots []*slot
	for i, n := range needs {
		if n.Units <= 0 {
			continue
		}
		total += n.Units
		slots = append(slots, &slot{outlet: n.Outlet, need: n.Units, order: i})
	}
	if total == 0 {
		return out
	}

	sum := 0
	for _, s := range slots {
		s.raw = float64(available*s.need) / float64(total)
		s.base = mode.Apply(s.raw)
		if s.base > s.need {
			s.base = s.need
		}
		if s.base < 0 {
			s.base = 0
		}
		sum += s.base
	}

	// Rounding overshoot: trim from the most inflated first.
	if over := sum - available; over > 0 {
		trim := append([]*slot(nil), slots...)
		sort.SliceStable(trim, func(i, j int) bool {
			di := float64(trim[i].base) - trim[i].raw
			dj := float64(trim[j].base) - trim[j].raw
			if di != dj {
				return di > dj
			}
			return trim[i].order < trim[j].order
		})
		for over > 0 {
			progressed := false
			for _, s := range trim {
				if over == 0 {
					break
				}
				if s.base > 0 {
					s.base--
					over--
					progressed = true
				}
			}
			if !progressed {
				break
			}
		}
	}

	assigned := 0
	for _, s := range slots {
		if s.base < minUnits {
			s.base = 0
		}
		assigned += s.base
	}

	left := available - assigned
	if left > 0 {
		byRemainder := append([]*slot(nil), slots...)
		sort.SliceStable(byRemainder, func(i, j int) bool {
			fi := byRemainder[i].raw - math.Floor(byRemainder[i].raw)
			fj := byRemainder[j].raw - math.Floor(byRemainder[j].raw)
			if fi != fj {
				return fi > fj
			}
			if byRemainder[i].need != byRemainder[j].need {
				return byRemainder[i].need > byRemainder[j].need
			}
			return byRemainder[i].order < byRemainder[j].order
		})
		for _, s := range byRemainder {
			if left <= 0 {
				break
			}
			add := s.need - s.base
			if add > left {
				add = left
			}
			if add <= 0 || s.base+add < minUnits {
				continue
			}
			s.base += add
			left -= add
		}
	}

	for _, s := range slots {
		if s.base > 0 {
			out[s.outlet] = s.base
		}
	}
	return out
}
