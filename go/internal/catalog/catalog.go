package catalog

import "sort"

// Catalog is a read-only set of tracked actions keyed by action ID
type Catalog struct {
	entries map[int]Entry
}

// New builds a catalog from entries. The map is copied.
func New(entries map[int]Entry) *Catalog {
	c := &Catalog{entries: make(map[int]Entry, len(entries))}
	for id, entry := range entries {
		entry.ID = id
		c.entries[id] = entry
	}
	return c
}

// Lookup returns the metadata for an action, or false if it is not tracked
func (c *Catalog) Lookup(actionID int) (Entry, bool) {
	entry, ok := c.entries[actionID]
	return entry, ok
}

// QueryTags returns the subset of actions whose tag set intersects tags
func (c *Catalog) QueryTags(tags []string) *Catalog {
	subset := make(map[int]Entry)
	for id, entry := range c.entries {
		if entry.HasAnyTag(tags) {
			subset[id] = entry
		}
	}
	return &Catalog{entries: subset}
}

// Len returns the number of actions in the catalog
func (c *Catalog) Len() int {
	return len(c.entries)
}

// Entries returns all entries ordered by action ID
func (c *Catalog) Entries() []Entry {
	out := make([]Entry, 0, len(c.entries))
	for _, entry := range c.entries {
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
