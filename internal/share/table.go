package share

import "sync"

// Listing is one registry-acknowledged (file, owner) pair held locally.
type Listing struct {
	ID   int64  // registry-assigned listing ID
	Name string // base file name, unique per owner
	Path string // absolute path on local disk
}

// Table is the registration table: base file name to acknowledged listing.
// Entries exist only while the registry acknowledges them. The engine is the
// sole writer; the transfer handler and presentation code read concurrently.
type Table struct {
	mu     sync.RWMutex
	byName map[string]Listing
}

// NewTable creates an empty registration table.
func NewTable() *Table {
	return &Table{byName: make(map[string]Listing)}
}

// Get returns the listing for a base file name.
func (t *Table) Get(name string) (Listing, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	l, ok := t.byName[name]
	return l, ok
}

// Put inserts or replaces a listing.
func (t *Table) Put(l Listing) {
	t.mu.Lock()
	t.byName[l.Name] = l
	t.mu.Unlock()
}

// Remove deletes the listing for a base file name.
func (t *Table) Remove(name string) {
	t.mu.Lock()
	delete(t.byName, name)
	t.mu.Unlock()
}

// Clear removes every listing.
func (t *Table) Clear() {
	t.mu.Lock()
	t.byName = make(map[string]Listing)
	t.mu.Unlock()
}

// Len returns the number of listings.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byName)
}

// Listings returns a snapshot of all listings.
func (t *Table) Listings() []Listing {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Listing, 0, len(t.byName))
	for _, l := range t.byName {
		out = append(out, l)
	}
	return out
}
