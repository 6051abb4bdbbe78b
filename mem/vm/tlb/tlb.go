// Package tlb provides the translation lookaside buffer used by the MMU.
package tlb

import (
	"fmt"
	"sort"

	"github.com/CircuitSutra/VeeR-ISS/mem/vm"
)

// A TLB is a bounded cache of (virtual page number, address space) to
// translation records. Each hart owns one TLB; it is never shared.
//
// Eviction is least-recently-used, tracked by a per-entry visit stamp, so
// the content is deterministic under a fixed access trace.
type TLB struct {
	blocks     []*block
	keyWayMap  map[string]int
	visitList  []*block
	visitCount uint64
}

type block struct {
	entry     vm.TlbEntry
	wayID     int
	lastVisit uint64
}

func (t *TLB) keyString(vpn, asid uint64) string {
	return fmt.Sprintf("%d:%016x", asid, vpn)
}

// Find returns a mutable handle to the entry that translates the given
// virtual page number in the given address space. An entry matches when
// its page number matches and it either belongs to the address space or
// is global. Finding an entry marks it most recently used.
func (t *TLB) Find(vpn, asid uint64) *vm.TlbEntry {
	if wayID, ok := t.keyWayMap[t.keyString(vpn, asid)]; ok {
		b := t.blocks[wayID]
		if b.entry.Valid {
			t.visit(b)
			return &b.entry
		}
	}

	for _, b := range t.blocks {
		if b.entry.Valid && b.entry.Global && b.entry.VirtPageNum == vpn {
			t.visit(b)
			return &b.entry
		}
	}

	return nil
}

// Insert installs a translation record, evicting the least recently used
// entry if the TLB is full. An existing entry for the same page and
// address space is replaced in place.
func (t *TLB) Insert(entry vm.TlbEntry) {
	key := t.keyString(entry.VirtPageNum, entry.Asid)
	if wayID, ok := t.keyWayMap[key]; ok {
		b := t.blocks[wayID]
		b.entry = entry
		t.visit(b)
		return
	}

	b := t.victim()
	oldKey := t.keyString(b.entry.VirtPageNum, b.entry.Asid)
	if wayID, ok := t.keyWayMap[oldKey]; ok && wayID == b.wayID {
		delete(t.keyWayMap, oldKey)
	}

	b.entry = entry
	t.keyWayMap[key] = b.wayID
	t.visit(b)
}

// Invalidate implements the SFENCE.VMA calling convention. A zero vpn
// selects all pages; a zero asid selects all address spaces. Entries
// marked global survive address-space-selective invalidation.
func (t *TLB) Invalidate(asid, vpn uint64) {
	for _, b := range t.blocks {
		if !b.entry.Valid {
			continue
		}

		switch {
		case asid == 0 && vpn == 0:
			b.entry.Valid = false
		case asid == 0:
			if b.entry.VirtPageNum == vpn {
				b.entry.Valid = false
			}
		case vpn == 0:
			if b.entry.Asid == asid && !b.entry.Global {
				b.entry.Valid = false
			}
		default:
			if b.entry.VirtPageNum == vpn && b.entry.Asid == asid &&
				!b.entry.Global {
				b.entry.Valid = false
			}
		}
	}
}

// FlushAll invalidates every entry.
func (t *TLB) FlushAll() {
	t.Invalidate(0, 0)
}

// victim returns the block the next insertion writes into: an invalid
// block if one exists, otherwise the least recently used one.
func (t *TLB) victim() *block {
	for _, b := range t.visitList {
		if !b.entry.Valid {
			return b
		}
	}

	return t.visitList[0]
}

// visit marks a block most recently used, keeping the visit list ordered
// by last visit time.
func (t *TLB) visit(b *block) {
	for i, other := range t.visitList {
		if other.wayID == b.wayID {
			t.visitList = append(t.visitList[:i], t.visitList[i+1:]...)
			break
		}
	}

	t.visitCount++
	b.lastVisit = t.visitCount

	index := sort.Search(len(t.visitList), func(i int) bool {
		return t.visitList[i].lastVisit > b.lastVisit
	})
	t.visitList = append(t.visitList, nil)
	copy(t.visitList[index+1:], t.visitList[index:])
	t.visitList[index] = b
}
