package utils

// HashSet is a set of record keys.
type HashSet map[string]struct{}

// NewHashSet creates a new HashSet
func NewHashSet() HashSet {
	return make(HashSet)
}

// Contains checks if a set contains specified key.
func (hs HashSet) Contains(key string) bool {
	_, ok := hs[key]
	return ok
}

// Len returns the number of keys.
func (hs HashSet) Len() int {
	return len(hs)
}

// Add inserts key and reports whether it was absent before.
func (hs HashSet) Add(key string) bool {
	if _, ok := hs[key]; ok {
		return false
	}
	hs[key] = struct{}{}
	return true
}

// Remove deletes key from the set.
func (hs HashSet) Remove(key string) {
	delete(hs, key)
}
