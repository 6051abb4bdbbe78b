package pma

import (
	"encoding/binary"
	"log"
	"math/bits"
)

// A Manager maintains the physical memory attributes of one memory. It is
// shared between the cores and the harts of a simulation. Attributes are
// kept per page, and demoted to per word when a sub-page region needs a
// distinct attribute.
//
// Reads are lock free. The host simulator must serialize the mutating
// operations (Enable, Disable, SetAttribute, SetMemMappedMask,
// ResetMemMapped, DefineIccm, DefineDccm) against concurrent readers.
type Manager struct {
	pagePmas  []Pma
	wordPmas  map[uint64]Pma // word index -> pma
	memSize   uint64
	pageSize  uint64
	pageShift uint

	memMappedMasks map[uint64]uint32 // word-aligned address -> mask
}

// NewManager creates a Manager for a memory of memSize bytes attributed
// at pageSize granularity. The page size must be a power of two no
// smaller than 64.
func NewManager(memSize, pageSize uint64) *Manager {
	if bits.OnesCount64(pageSize) != 1 || pageSize < 64 {
		log.Panicf("invalid pma page size %d", pageSize)
	}

	numPages := (memSize + pageSize - 1) / pageSize
	m := &Manager{
		pagePmas:       make([]Pma, numPages),
		wordPmas:       make(map[uint64]Pma),
		memSize:        memSize,
		pageSize:       pageSize,
		pageShift:      uint(bits.TrailingZeros64(pageSize)),
		memMappedMasks: make(map[uint64]uint32),
	}

	return m
}

// GetPma returns the attribute of the word-aligned word containing the
// given address. It returns the unmapped attribute if the address is out
// of the memory range.
func (m *Manager) GetPma(addr uint64) Pma {
	ix := m.pageIx(addr)
	if ix >= uint64(len(m.pagePmas)) {
		return Pma{}
	}

	pma := m.pagePmas[ix]
	if pma.word {
		return m.wordPmas[addr>>2]
	}

	return pma
}

// Enable sets the given attribute bits in every word-aligned word
// overlapping the region [addr0, addr1].
func (m *Manager) Enable(addr0, addr1 uint64, attrib Attrib) {
	m.updateRegion(addr0, addr1, func(a Attrib) Attrib {
		return exclusiveCcm(a | attrib)
	})
}

// Disable clears the given attribute bits in every word-aligned word
// overlapping the region [addr0, addr1].
func (m *Manager) Disable(addr0, addr1 uint64, attrib Attrib) {
	m.updateRegion(addr0, addr1, func(a Attrib) Attrib {
		return a &^ attrib
	})
}

// SetAttribute replaces the attribute of every word-aligned word
// overlapping the region [addr0, addr1].
func (m *Manager) SetAttribute(addr0, addr1 uint64, attrib Attrib) {
	m.updateRegion(addr0, addr1, func(Attrib) Attrib {
		return exclusiveCcm(attrib)
	})
}

// DefineIccm marks [addr0, addr1] as an instruction closely coupled
// memory region.
func (m *Manager) DefineIccm(addr0, addr1 uint64) {
	m.Enable(addr0, addr1, AttribIccm)
}

// DefineDccm marks [addr0, addr1] as a data closely coupled memory
// region.
func (m *Manager) DefineDccm(addr0, addr1 uint64) {
	m.Enable(addr0, addr1, AttribDccm)
}

// PageStartAddr returns the start address of the page containing the
// given address.
func (m *Manager) PageStartAddr(addr uint64) uint64 {
	return (addr >> m.pageShift) << m.pageShift
}

// PageSize returns the attribution page size.
func (m *Manager) PageSize() uint64 {
	return m.pageSize
}

// SetMemMappedMask associates a write mask with the word-aligned word at
// the given address.
func (m *Manager) SetMemMappedMask(addr uint64, mask uint32) {
	m.memMappedMasks[addr&^3] = mask
}

// GetMemMappedMask returns the mask associated with the word-aligned word
// at the given address, or 0xffffffff if no mask was ever associated with
// it.
func (m *Manager) GetMemMappedMask(addr uint64) uint32 {
	mask, ok := m.memMappedMasks[addr&^3]
	if !ok {
		return 0xffffffff
	}
	return mask
}

// ResetMemMapped zeroes, in the given byte buffer, every 32-bit word that
// has an associated mask. The masks themselves are retained.
func (m *Manager) ResetMemMapped(data []byte) {
	for addr := range m.memMappedMasks {
		if addr+4 <= uint64(len(data)) {
			binary.LittleEndian.PutUint32(data[addr:], 0)
		}
	}
}

// EachMemMappedWord calls f with the address of every word that has an
// associated mask. Used by memory implementations that do not expose a
// flat byte buffer.
func (m *Manager) EachMemMappedWord(f func(addr uint64)) {
	for addr := range m.memMappedMasks {
		f(addr)
	}
}

func (m *Manager) pageIx(addr uint64) uint64 {
	return addr >> m.pageShift
}

// updateRegion rewrites the attribute of every word overlapping
// [addr0, addr1]. Whole untouched pages are updated at page granularity;
// partially covered or already fractured pages are updated per word.
func (m *Manager) updateRegion(addr0, addr1 uint64, f func(Attrib) Attrib) {
	if addr1 < addr0 {
		return
	}

	lo := addr0 &^ 3
	hi := addr1 &^ 3

	for addr := lo; addr <= hi; {
		ix := m.pageIx(addr)
		if ix >= uint64(len(m.pagePmas)) {
			return // Out of range addresses are silently ignored.
		}

		pageStart := m.PageStartAddr(addr)
		pageLast := pageStart + m.pageSize - 4

		wholePage := addr == pageStart && hi >= pageLast
		if wholePage && !m.pagePmas[ix].word {
			m.pagePmas[ix].attrib = f(m.pagePmas[ix].attrib)
			addr = pageStart + m.pageSize
			continue
		}

		m.fracture(addr)
		last := pageLast
		if hi < last {
			last = hi
		}
		for ; addr <= last; addr += 4 {
			wordIx := addr >> 2
			pma := m.wordPmas[wordIx]
			pma.attrib = f(pma.attrib)
			pma.word = true
			m.wordPmas[wordIx] = pma
		}
	}
}

// fracture demotes the attribute of the page containing the given address
// into word attributes.
func (m *Manager) fracture(addr uint64) {
	ix := m.pageIx(addr)
	pma := m.pagePmas[ix]
	if pma.word {
		return
	}
	m.pagePmas[ix].word = true

	pma.word = true
	words := m.pageSize / 4
	wordIx := (ix * m.pageSize) >> 2
	for i := uint64(0); i < words; i++ {
		m.wordPmas[wordIx] = pma
		wordIx++
	}
}

// exclusiveCcm keeps Iccm and Dccm mutually exclusive within a single
// attribute value. Iccm wins when both would be present.
func exclusiveCcm(a Attrib) Attrib {
	if a&AttribIccm != 0 {
		return a &^ AttribDccm
	}
	return a
}
