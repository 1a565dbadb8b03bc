package core

// UniquenessTracker maps, per unique attribute, each raw value to the SKU of
// the first row that used it. Not safe for concurrent use.
type UniquenessTracker struct {
	owners map[string]map[string]string
}

// NewUniquenessTracker creates an empty tracker.
func NewUniquenessTracker() *UniquenessTracker {
	return &UniquenessTracker{owners: make(map[string]map[string]string)}
}

// Claim records owner for (attrCode, value) unless another owner holds it.
// Returns false when the value already belongs to a different owner; the
// recorded owner is left untouched in that case.
func (t *UniquenessTracker) Claim(attrCode, value, owner string) bool {
	values, ok := t.owners[attrCode]
	if !ok {
		values = make(map[string]string)
		t.owners[attrCode] = values
	}
	if current, taken := values[value]; taken && current != owner {
		return false
	}
	values[value] = owner
	return true
}

// Owner returns the owner recorded for (attrCode, value).
func (t *UniquenessTracker) Owner(attrCode, value string) (string, bool) {
	owner, ok := t.owners[attrCode][value]
	return owner, ok
}
