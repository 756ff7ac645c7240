package allocation

import "math"

// Availability tracks how many units each donor can still give in a run.
// The hub keeps a buffer of ceil(on_hand * bufferPct / 100); peer donors
// give from their full on-hand. Every Take is counted so the run never
// allocates the same unit twice.
type Availability struct {
	hub       OutletID
	bufferPct int
	hubStock  map[ProductID]int
	inv       Inventory
	taken     map[ProductID]map[OutletID]int
}

// NewAvailability builds a tracker. hubStock is the candidate set read from
// the hub; inv supplies on-hand for every other donor (and the hub, when
// present there).
func NewAvailability(hub OutletID, bufferPct int, hubStock map[ProductID]int, inv Inventory) *Availability {
	if bufferPct < 0 {
		bufferPct = 0
	}
	if bufferPct > 90 {
		bufferPct = 90
	}
	return &Availability{
		hub:       hub,
		bufferPct: bufferPct,
		hubStock:  hubStock,
		inv:       inv,
		taken:     make(map[ProductID]map[OutletID]int),
	}
}

// Hub returns the hub outlet id.
func (a *Availability) Hub() OutletID { return a.hub }

// HubOnHand returns hub stock for a product as read at the start of the run.
func (a *Availability) HubOnHand(pid ProductID) int {
	if q, ok := a.inv[pid][a.hub]; ok {
		return q
	}
	return a.hubStock[pid]
}

// Buffer returns the units the hub keeps back for a product.
func (a *Availability) Buffer(pid ProductID) int {
	return int(math.Ceil(float64(a.HubOnHand(pid)) * float64(a.bufferPct) / 100.0))
}

// Available returns units the donor can still give.
func (a *Availability) Available(pid ProductID, donor OutletID) int {
	var free int
	if donor == a.hub || donor == "" {
		free = a.HubOnHand(pid) - a.Buffer(pid) - a.taken[pid][a.hub]
	} else {
		free = a.inv[pid][donor] - a.taken[pid][donor]
	}
	if free < 0 {
		return 0
	}
	return free
}

// Take consumes up to qty units from donor and returns how many were taken.
func (a *Availability) Take(pid ProductID, donor OutletID, qty int) int {
	if donor == "" {
		donor = a.hub
	}
	if free := a.Available(pid, donor); qty > free {
		qty = free
	}
	if qty <= 0 {
		return 0
	}
	if a.taken[pid] == nil {
		a.taken[pid] = make(map[OutletID]int)
	}
	a.taken[pid][donor] += qty
	return qty
}

// Taken returns units already consumed from donor.
func (a *Availability) Taken(pid ProductID, donor OutletID) int {
	if donor == "" {
		donor = a.hub
	}
	return a.taken[pid][donor]
}
