// Package table implements an open-addressed hash table keyed by
// interned strings, probing past tombstones, grown when the load
// factor would exceed 75%.
//
// This is the table used for the VM's string-intern pool, every
// module's globals and exports, every class's method table, and every
// instance's field table. It is deliberately hand-rolled rather than
// backed by a generic map or a faster third-party hash map (this
// module does use github.com/dolthub/swiss elsewhere, for the VM's
// import cache and the compiler's constant-pool dedup map — see
// DESIGN.md): this table's tombstone bookkeeping is load-bearing for
// the weak-table sweep behavior of the string-intern pool in a way no
// off-the-shelf map exposes, since
// those maps don't let the GC iterate live buckets, skip tombstones,
// and delete dead entries in a single sweep pass.
package table

import "github.com/kristofer/ember/pkg/value"

const maxLoad = 0.75

type entry struct {
	key   *value.String // nil means never used; tombstoneKey marks a deleted slot
	value value.Value
	used  bool // true for both live entries and tombstones
	live  bool // true only for live entries
}

// Table is an open-addressed hash table keyed by interned *value.String
// pointers (pointer identity suffices because strings are interned).
type Table struct {
	entries []entry
	count   int // live entries + tombstones, drives the load-factor growth trigger
}

// New returns an empty table.
func New() *Table { return &Table{} }

// Len returns the number of live key/value pairs.
func (t *Table) Len() int {
	n := 0
	for i := range t.entries {
		if t.entries[i].live {
			n++
		}
	}
	return n
}

// Get looks up key, reporting whether it is present.
func (t *Table) Get(key *value.String) (value.Value, bool) {
	if len(t.entries) == 0 {
		return value.Value{}, false
	}
	e := t.find(t.entries, key)
	if !e.live {
		return value.Value{}, false
	}
	return e.value, true
}

// Set inserts or updates key, returning true if this created a new
// key (as opposed to overwriting an existing one) — callers (e.g.
// DEFINE_GLOBAL vs SET_GLOBAL) use this to distinguish define from
// assign semantics.
func (t *Table) Set(key *value.String, v value.Value) bool {
	if float64(t.count+1) > float64(len(t.entries))*maxLoad {
		t.grow()
	}
	e := t.find(t.entries, key)
	wasLive := e.live
	if !e.used {
		// Only a brand-new cell grows the table's probe load; reusing a
		// tombstone does not, since the tombstone already counted toward
		// `count` when it was created. See DESIGN.md for the open
		// question this resolves.
		t.count++
	}
	e.key = key
	e.value = v
	e.used = true
	e.live = true
	return !wasLive
}

// Delete removes key, leaving a tombstone behind so that later probes
// for a different key that collided with this slot still find it.
// Tombstones are represented as used-but-not-live entries with a
// non-nil key sentinel distinguishable from "never used".
func (t *Table) Delete(key *value.String) bool {
	if len(t.entries) == 0 {
		return false
	}
	e := t.find(t.entries, key)
	if !e.live {
		return false
	}
	e.live = false
	e.key = tombstoneKey
	e.value = value.Value{}
	return true
}

// tombstoneKey is a sentinel distinct from any real interned string,
// used to mark a deleted slot so find() knows to keep probing past it
// while still recognizing it (by identity) as not a match for any real
// key.
var tombstoneKey = &value.String{}

// find implements linear probing with tombstone skipping. It always
// returns a slot: either one holding key, or the first tombstone/empty
// slot seen along the probe sequence (so Set can reuse it).
//
// Key match is pointer identity first — interned keys collapse to one
// pointer — with a hash+bytes fallback so the intern pool itself can
// probe with a candidate String that has not been interned yet.
func (t *Table) find(entries []entry, key *value.String) *entry {
	mask := uint32(len(entries) - 1)
	idx := key.Hash & mask
	var tombstone *entry
	for {
		e := &entries[idx]
		switch {
		case e.key == nil:
			if tombstone != nil {
				return tombstone
			}
			return e
		case e.key == tombstoneKey:
			if tombstone == nil {
				tombstone = e
			}
		case e.key == key,
			e.key.Hash == key.Hash && e.key.Chars == key.Chars:
			return e
		}
		idx = (idx + 1) & mask
	}
}

func (t *Table) grow() {
	newCap := 8
	if len(t.entries) > 0 {
		newCap = len(t.entries) * 2
	}
	newEntries := make([]entry, newCap)
	liveCount := 0
	for i := range t.entries {
		if !t.entries[i].live {
			continue
		}
		dst := t.find(newEntries, t.entries[i].key)
		dst.key = t.entries[i].key
		dst.value = t.entries[i].value
		dst.used = true
		dst.live = true
		liveCount++
	}
	t.entries = newEntries
	t.count = liveCount
}

// Each calls fn for every live key/value pair, in table storage order
// (unspecified otherwise). fn must not mutate the table.
func (t *Table) Each(fn func(key *value.String, v value.Value)) {
	for i := range t.entries {
		if t.entries[i].live {
			fn(t.entries[i].key, t.entries[i].value)
		}
	}
}

// RemoveUnmarked deletes every live entry whose key string is not
// marked. This implements the string-intern pool's "weak table"
// sweep: call it on the VM's intern table right before the general
// object sweep frees unmarked strings.
func (t *Table) RemoveUnmarked(isMarked func(*value.String) bool) {
	for i := range t.entries {
		e := &t.entries[i]
		if !e.live {
			continue
		}
		if !isMarked(e.key) {
			e.live = false
			e.key = tombstoneKey
			e.value = value.Value{}
		}
	}
}

// Copy copies every live entry of src into t (used by INHERIT to copy
// a superclass's method table into a subclass at INHERIT time).
func (t *Table) Copy(src *Table) {
	src.Each(func(key *value.String, v value.Value) {
		t.Set(key, v)
	})
}
