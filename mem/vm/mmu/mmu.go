// Package mmu implements virtual to physical address translation for one
// hart: the Sv32/Sv39/Sv48 page table walk, the permission and
// accessed/dirty bookkeeping of the privileged specification, and a
// per-hart TLB over completed walks.
package mmu

import (
	"math/bits"

	"github.com/CircuitSutra/VeeR-ISS/mem/vm"
	"github.com/CircuitSutra/VeeR-ISS/mem/vm/tlb"
)

// Memory is what the walker needs from the backing memory: word reads
// for PTE fetches and word writes for accessed/dirty updates. A false
// return denotes an access that did not take place.
type Memory interface {
	Read32(addr uint64) (uint32, bool)
	Read64(addr uint64) (uint64, bool)
	Write32(hartIx int, addr uint64, value uint32) bool
	Write64(hartIx int, addr uint64, value uint64) bool
}

// A TranslationTracer observes completed translations.
type TranslationTracer interface {
	TraceTranslation(hartIx int, va, pa uint64, mode vm.Mode,
		read, write, exec bool, cause vm.ExceptionCause)
}

// An MMU translates virtual addresses for a single hart. It owns the
// hart's TLB and reads page tables through the backing memory.
//
// All calls are synchronous and bounded. A TLB hit reads no page table,
// but the TLB lookup formats a string key, so a hit is not allocation
// free.
type MMU struct {
	memory Memory
	tlb    *tlb.TLB
	hartIx int

	mode          vm.Mode
	pageTableRoot uint64 // physical page number of the root table
	asid          uint64
	pageSize      uint64
	pageBits      uint
	pageMask      uint64

	// Cached mstatus bits.
	execReadable       bool // MXR
	supervisorOk       bool // SUM
	faultOnFirstAccess bool

	// pmpCheck vets physical accesses performed during the walk. A nil
	// check permits everything.
	pmpCheck func(addr uint64) bool

	tracer TranslationTracer
}

// SetMode sets the translation mode and flushes the TLB.
func (u *MMU) SetMode(m vm.Mode) {
	u.mode = m
	u.tlb.FlushAll()
}

// Mode returns the current translation mode.
func (u *MMU) Mode() vm.Mode {
	return u.mode
}

// SetPageTableRoot sets the physical page number of the root page table
// and flushes the TLB.
func (u *MMU) SetPageTableRoot(root uint64) {
	u.pageTableRoot = root
	u.tlb.FlushAll()
}

// SetAddressSpace sets the current address space identifier. The TLB is
// retained; entries of other address spaces simply stop matching.
func (u *MMU) SetAddressSpace(asid uint64) {
	u.asid = asid
}

// SetExecReadable sets the MXR bit: loads succeed on execute-only pages.
func (u *MMU) SetExecReadable(flag bool) {
	u.execReadable = flag
}

// SetSupervisorAccessUser sets the SUM bit: supervisor accesses to user
// pages succeed.
func (u *MMU) SetSupervisorAccessUser(flag bool) {
	u.supervisorOk = flag
}

// SetFaultOnFirstAccess selects the accessed/dirty policy: fault instead
// of hardware update when a page is touched with A clear (or written
// with D clear).
func (u *MMU) SetFaultOnFirstAccess(flag bool) {
	u.faultOnFirstAccess = flag
}

// SetPmpCheck installs the physical memory protection hook applied to
// PTE loads and stores.
func (u *MMU) SetPmpCheck(check func(addr uint64) bool) {
	u.pmpCheck = check
}

// SetTracer installs an observer of completed translations.
func (u *MMU) SetTracer(t TranslationTracer) {
	u.tracer = t
}

// SetPageSize sets the translation page size. Only sizes valid for the
// current mode are accepted: 4 KiB for Sv32; 4 KiB, 2 MiB, or 1 GiB for
// Sv39; those or 512 GiB for Sv48.
func (u *MMU) SetPageSize(size uint64) bool {
	if size == 0 || bits.OnesCount64(size) != 1 {
		return false
	}

	pageBits := uint(bits.TrailingZeros64(size))

	switch u.mode {
	case vm.Sv32:
		if size != 4096 {
			return false
		}
	case vm.Sv39:
		if size != 4096 && size != 2<<20 && size != 1<<30 {
			return false
		}
	case vm.Sv48:
		if size != 4096 && size != 2<<20 && size != 1<<30 && size != 512<<30 {
			return false
		}
	default:
		return false
	}

	u.pageBits = pageBits
	u.pageSize = size
	u.pageMask = size - 1

	return true
}

// PageSize returns the current translation page size.
func (u *MMU) PageSize() uint64 {
	return u.pageSize
}

// FlushTLB invalidates every TLB entry.
func (u *MMU) FlushTLB() {
	u.tlb.FlushAll()
}

// InvalidateTLB applies SFENCE.VMA semantics: selective by address space
// and/or virtual page number, total when both are zero.
func (u *MMU) InvalidateTLB(asid, vpn uint64) {
	u.tlb.Invalidate(asid, vpn)
}

// Translate resolves a virtual address at the given privilege for the
// given access kind. Exactly one of read, write, and exec must be true.
// It returns the physical address on success, or the page fault cause of
// the access kind.
func (u *MMU) Translate(
	addr uint64,
	priv vm.PrivilegeMode,
	read, write, exec bool,
) (uint64, vm.ExceptionCause) {
	pa, cause := u.translate(addr, priv, read, write, exec)

	if u.tracer != nil {
		u.tracer.TraceTranslation(
			u.hartIx, addr, pa, u.mode, read, write, exec, cause)
	}

	return pa, cause
}

func (u *MMU) translate(
	addr uint64,
	priv vm.PrivilegeMode,
	read, write, exec bool,
) (uint64, vm.ExceptionCause) {
	if u.mode == vm.Bare {
		return addr, vm.None
	}

	vpn := addr >> u.pageBits
	if entry := u.tlb.Find(vpn, u.asid); entry != nil {
		return u.translateWithEntry(entry, addr, priv, read, write, exec)
	}

	var pa uint64
	var entry vm.TlbEntry
	var cause vm.ExceptionCause

	switch u.mode {
	case vm.Sv32:
		pa, entry, cause = u.walk(addr, priv, read, write, exec,
			newPte32, newVa32)
	case vm.Sv39:
		// Bits 63:39 must equal bit 38.
		mask := uint64(0)
		if addr>>38&1 != 0 {
			mask = 0x1ffffff
		}
		if addr>>39 != mask {
			return 0, vm.PageFaultType(read, write, exec)
		}
		pa, entry, cause = u.walk(addr, priv, read, write, exec,
			newPte39, newVa39)
	case vm.Sv48:
		// Bits 63:48 must equal bit 47.
		mask := uint64(0)
		if addr>>47&1 != 0 {
			mask = 0xffff
		}
		if addr>>48 != mask {
			return 0, vm.PageFaultType(read, write, exec)
		}
		pa, entry, cause = u.walk(addr, priv, read, write, exec,
			newPte48, newVa48)
	default:
		return 0, vm.PageFaultType(read, write, exec)
	}

	if cause != vm.None {
		return 0, cause
	}

	u.tlb.Insert(entry)

	return pa, vm.None
}

// translateWithEntry applies to a TLB hit the same permission checks a
// walked leaf receives, then composes the physical address.
func (u *MMU) translateWithEntry(
	entry *vm.TlbEntry,
	addr uint64,
	priv vm.PrivilegeMode,
	read, write, exec bool,
) (uint64, vm.ExceptionCause) {
	if !u.permits(entry.User, entry.Read, entry.Write, entry.Exec,
		priv, read, write, exec) {
		return 0, vm.PageFaultType(read, write, exec)
	}

	if !entry.Accessed || (write && !entry.Dirty) {
		if u.faultOnFirstAccess {
			return 0, vm.PageFaultType(read, write, exec)
		}
		entry.Accessed = true
		if write {
			entry.Dirty = true
		}
	}

	return entry.PhysPageNum<<u.pageBits | addr&u.pageMask, vm.None
}

// permits implements the leaf permission rules: user pages are not
// reachable from user mode without the U bit, supervisor access to user
// pages requires SUM, MXR lets loads use the execute bit, and the
// requested kind must be allowed by the page.
func (u *MMU) permits(
	user, canRead, canWrite, canExec bool,
	priv vm.PrivilegeMode,
	read, write, exec bool,
) bool {
	if priv == vm.User && !user {
		return false
	}
	if priv == vm.Supervisor && user && !u.supervisorOk {
		return false
	}

	effectiveRead := canRead || (u.execReadable && canExec)
	if read && !effectiveRead {
		return false
	}
	if write && !canWrite {
		return false
	}
	if exec && !canExec {
		return false
	}

	return true
}

// walk performs the multi-level page table walk of the privileged
// specification, section 4.3.2, parameterized by the PTE and VA codecs
// of the active mode.
func (u *MMU) walk(
	addr uint64,
	priv vm.PrivilegeMode,
	read, write, exec bool,
	newPte func(raw uint64) pte,
	newVa func(addr uint64) va,
) (uint64, vm.TlbEntry, vm.ExceptionCause) {
	fault := vm.PageFaultType(read, write, exec)

	p := newPte(0)
	levels := p.levels()
	pteSize := p.size()
	v := newVa(addr)

	root := u.pageTableRoot * u.pageSize
	pteAddr := uint64(0)
	ii := levels - 1

	for {
		pteAddr = root + v.vpn(ii)*pteSize
		if !u.pmpPermits(pteAddr) {
			return 0, vm.TlbEntry{}, fault
		}

		raw, ok := u.loadPteWord(pteAddr, pteSize)
		if !ok {
			return 0, vm.TlbEntry{}, fault
		}
		p = newPte(raw)

		if !p.valid() || (!p.read() && p.write()) {
			return 0, vm.TlbEntry{}, fault
		}

		if !p.read() && !p.exec() {
			// Pointer to the next level table.
			ii--
			if ii < 0 {
				return 0, vm.TlbEntry{}, fault
			}
			root = p.ppnFull() * u.pageSize
			continue
		}

		break
	}

	if !u.permits(p.user(), p.read(), p.write(), p.exec(),
		priv, read, write, exec) {
		return 0, vm.TlbEntry{}, fault
	}

	// A superpage leaf must be aligned: components below the leaf level
	// must be zero.
	for j := 0; j < ii; j++ {
		if p.ppn(j) != 0 {
			return 0, vm.TlbEntry{}, fault
		}
	}

	if !p.accessed() || (write && !p.dirty()) {
		if u.faultOnFirstAccess {
			return 0, vm.TlbEntry{}, fault
		}

		p.setAccessed()
		if write {
			p.setDirty()
		}

		if !u.pmpPermits(pteAddr) {
			return 0, vm.TlbEntry{}, fault
		}
		if !u.storePteWord(pteAddr, pteSize, p.raw()) {
			return 0, vm.TlbEntry{}, fault
		}
	}

	pa := v.offset()
	for j := 0; j < ii; j++ {
		pa |= v.vpn(j) << p.paPpnShift(j) // Superpage: copy from the va.
	}
	for j := ii; j < levels; j++ {
		pa |= p.ppn(j) << p.paPpnShift(j)
	}

	entry := vm.TlbEntry{
		VirtPageNum: addr >> u.pageBits,
		PhysPageNum: pa >> u.pageBits,
		Asid:        u.asid,
		Valid:       true,
		Global:      p.global(),
		User:        p.user(),
		Read:        p.read(),
		Write:       p.write(),
		Exec:        p.exec(),
		Accessed:    p.accessed(),
		Dirty:       p.dirty(),
	}

	return pa, entry, vm.None
}

func (u *MMU) pmpPermits(addr uint64) bool {
	return u.pmpCheck == nil || u.pmpCheck(addr)
}

func (u *MMU) loadPteWord(addr, size uint64) (uint64, bool) {
	if size == 4 {
		w, ok := u.memory.Read32(addr)
		return uint64(w), ok
	}

	return u.memory.Read64(addr)
}

func (u *MMU) storePteWord(addr, size, value uint64) bool {
	if size == 4 {
		return u.memory.Write32(u.hartIx, addr, uint32(value))
	}

	return u.memory.Write64(u.hartIx, addr, value)
}
