package coordinator

import "liveclass/pkg/types"

// Roster is the ordered set of participants in one session.
// A userID holds at most one slot.
type Roster struct {
	order []string
	slots map[string]*types.Participant
}

// NewRoster creates an empty roster
func NewRoster() *Roster {
	return &Roster{slots: make(map[string]*types.Participant)}
}

// Add inserts p or replaces the existing slot for p.UserID in place.
// capacity is only checked for users not already present; 0 means unlimited.
func (r *Roster) Add(p types.Participant, capacity int) (replaced bool, err error) {
	if existing, ok := r.slots[p.UserID]; ok {
		*existing = p
		return true, nil
	}
	if capacity > 0 && len(r.order) >= capacity {
		return false, ErrRosterFull
	}
	r.slots[p.UserID] = &p
	r.order = append(r.order, p.UserID)
	return false, nil
}

// CanAdd reports whether Add would succeed without changing anything
func (r *Roster) CanAdd(userID string, capacity int) error {
	if _, ok := r.slots[userID]; ok {
		return nil
	}
	if capacity > 0 && len(r.order) >= capacity {
		return ErrRosterFull
	}
	return nil
}

// Remove drops userID's slot and reports whether one existed
func (r *Roster) Remove(userID string) bool {
	if _, ok := r.slots[userID]; !ok {
		return false
	}
	delete(r.slots, userID)
	for i, id := range r.order {
		if id == userID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Get returns a copy of userID's slot
func (r *Roster) Get(userID string) (types.Participant, bool) {
	p, ok := r.slots[userID]
	if !ok {
		return types.Participant{}, false
	}
	return *p, true
}

// Has reports membership
func (r *Roster) Has(userID string) bool {
	_, ok := r.slots[userID]
	return ok
}

func (r *Roster) Len() int {
	return len(r.order)
}

// List returns copies of all slots in join order
func (r *Roster) List() []types.Participant {
	out := make([]types.Participant, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.slots[id])
	}
	return out
}

// SetHandRaised updates the flag mirrored from the hand queue
func (r *Roster) SetHandRaised(userID string, raised bool) {
	if p, ok := r.slots[userID]; ok {
		p.HandRaised = raised
	}
}
