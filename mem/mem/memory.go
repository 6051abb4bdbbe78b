package mem

import (
	"encoding/binary"

	"github.com/CircuitSutra/VeeR-ISS/mem/pma"
)

// A Memory is the byte-addressable physical memory of the simulated
// system. Every access is checked against the physical memory attributes
// of the target region; stores to memory-mapped-register words are
// filtered through the register write mask.
//
// Accesses use the boolean protocol of the surrounding simulator: a
// false return denotes an access that did not take place.
type Memory struct {
	storage *Storage
	attribs *pma.Manager
}

// NewMemory creates a Memory of the given size, attributed at pageSize
// granularity. The whole memory starts with the default attribute.
func NewMemory(size, pageSize uint64) *Memory {
	m := &Memory{
		storage: NewStorage(size),
		attribs: pma.NewManager(size, pageSize),
	}
	m.attribs.SetAttribute(0, size-1, pma.AttribDefault)

	return m
}

// Pmas returns the attribute manager of this memory.
func (m *Memory) Pmas() *pma.Manager {
	return m.attribs
}

// Size returns the size of the memory in bytes.
func (m *Memory) Size() uint64 {
	return m.storage.Capacity()
}

// Read32 reads the 32-bit value at the given address.
func (m *Memory) Read32(addr uint64) (uint32, bool) {
	if !m.readable(addr, 4) {
		return 0, false
	}

	data, err := m.storage.Read(addr, 4)
	if err != nil {
		return 0, false
	}

	return binary.LittleEndian.Uint32(data), true
}

// Read64 reads the 64-bit value at the given address.
func (m *Memory) Read64(addr uint64) (uint64, bool) {
	if !m.readable(addr, 8) {
		return 0, false
	}

	data, err := m.storage.Read(addr, 8)
	if err != nil {
		return 0, false
	}

	return binary.LittleEndian.Uint64(data), true
}

// Write32 writes a 32-bit value at the given address on behalf of the
// given hart. Writes to memory-mapped-register words are filtered
// through the associated mask.
func (m *Memory) Write32(hartIx int, addr uint64, value uint32) bool {
	attrib := m.attribs.GetPma(addr)
	if !attrib.IsWrite() {
		return false
	}
	if attrib.IsAligned() && addr%4 != 0 {
		return false
	}
	if attrib.IsMemMappedReg() {
		if addr%4 != 0 {
			return false
		}
		value &= m.attribs.GetMemMappedMask(addr)
	}

	data := make([]byte, 4)
	binary.LittleEndian.PutUint32(data, value)

	return m.storage.Write(addr, data) == nil
}

// Write64 writes a 64-bit value at the given address on behalf of the
// given hart. A write that covers memory-mapped-register words applies
// the mask of each constituent word.
func (m *Memory) Write64(hartIx int, addr uint64, value uint64) bool {
	attrib := m.attribs.GetPma(addr)
	if !attrib.IsWrite() {
		return false
	}
	if attrib.IsAligned() && addr%8 != 0 {
		return false
	}
	if attrib.IsMemMappedReg() || m.attribs.GetPma(addr+4).IsMemMappedReg() {
		lo := uint32(value)
		hi := uint32(value >> 32)
		return m.Write32(hartIx, addr, lo) && m.Write32(hartIx, addr+4, hi)
	}

	data := make([]byte, 8)
	binary.LittleEndian.PutUint64(data, value)

	return m.storage.Write(addr, data) == nil
}

// ResetMemMappedRegs zeroes, in the backing store, every word that has an
// associated memory-mapped-register mask. The register masks are retained.
func (m *Memory) ResetMemMappedRegs() {
	zero := []byte{0, 0, 0, 0}
	m.attribs.EachMemMappedWord(func(addr uint64) {
		// Out of range mask entries have no backing word to clear.
		_ = m.storage.Write(addr, zero)
	})
}

func (m *Memory) readable(addr, size uint64) bool {
	attrib := m.attribs.GetPma(addr)
	if !attrib.IsRead() && !attrib.IsExec() {
		return false
	}
	if attrib.IsAligned() && addr%size != 0 {
		return false
	}

	return true
}
