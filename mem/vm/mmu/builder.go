package mmu

import (
	"log"
	"math/bits"

	"github.com/CircuitSutra/VeeR-ISS/mem/vm"
	"github.com/CircuitSutra/VeeR-ISS/mem/vm/tlb"
)

// A Builder configures and creates MMUs.
type Builder struct {
	memory   Memory
	hartIx   int
	pageSize uint64
	tlbSize  int
}

// MakeBuilder returns a Builder with the default configuration: 4 KiB
// pages and a 32-entry TLB.
func MakeBuilder() Builder {
	return Builder{
		pageSize: 4096,
		tlbSize:  32,
	}
}

// WithMemory sets the backing memory that page tables are read from.
func (b Builder) WithMemory(m Memory) Builder {
	b.memory = m
	return b
}

// WithHartIx sets the index of the hart this MMU serves.
func (b Builder) WithHartIx(hartIx int) Builder {
	b.hartIx = hartIx
	return b
}

// WithPageSize sets the initial translation page size.
func (b Builder) WithPageSize(pageSize uint64) Builder {
	b.pageSize = pageSize
	return b
}

// WithTLBSize sets the capacity of the hart's TLB.
func (b Builder) WithTLBSize(tlbSize int) Builder {
	b.tlbSize = tlbSize
	return b
}

// Build creates an MMU in Bare mode.
func (b Builder) Build() *MMU {
	if b.memory == nil {
		log.Panic("mmu requires a backing memory")
	}
	if bits.OnesCount64(b.pageSize) != 1 || b.pageSize < 64 {
		log.Panicf("invalid page size %d", b.pageSize)
	}

	u := &MMU{
		memory:   b.memory,
		hartIx:   b.hartIx,
		mode:     vm.Bare,
		pageSize: b.pageSize,
		pageBits: uint(bits.TrailingZeros64(b.pageSize)),
		pageMask: b.pageSize - 1,
		tlb:      tlb.MakeBuilder().WithNumEntries(b.tlbSize).Build(),
	}

	return u
}
