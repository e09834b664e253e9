package hue

import (
	"sort"
	"strconv"
)

// Light is the part of a bridge light record the accessor uses.
type Light struct {
	Name     string `json:"name"`
	Type     string `json:"type,omitempty"`
	ModelID  string `json:"modelid,omitempty"`
	UniqueID string `json:"uniqueid,omitempty"`
}

// Layout maps bridge light IDs to their records. It is fetched once at
// init and never changes afterwards.
type Layout map[string]Light

// IDs returns the light IDs in bridge order: numeric IDs ascending, then
// anything else lexically.
func (l Layout) IDs() []string {
	ids := make([]string, 0, len(l))
	for id := range l {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, errA := strconv.Atoi(ids[i])
		b, errB := strconv.Atoi(ids[j])
		switch {
		case errA == nil && errB == nil:
			return a < b
		case errA == nil:
			return true
		case errB == nil:
			return false
		default:
			return ids[i] < ids[j]
		}
	})
	return ids
}

// Resolve returns the ID of the first light named exactly name.
func (l Layout) Resolve(name string) (string, bool) {
	for _, id := range l.IDs() {
		if l[id].Name == name {
			return id, true
		}
	}
	return "", false
}
