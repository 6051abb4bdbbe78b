package mmu

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/CircuitSutra/VeeR-ISS/mem/mem"
	"github.com/CircuitSutra/VeeR-ISS/mem/vm"
)

const (
	leafRWXUAD = uint64(0xdf) // V R W X U A D
	leafRWU    = uint64(0x17) // V R W U, accessed and dirty clear
)

func pte32Bits(flags uint64, ppn0, ppn1 uint64) uint32 {
	return uint32(flags | ppn0<<10 | ppn1<<20)
}

func pte39Bits(flags uint64, ppn0, ppn1, ppn2 uint64) uint64 {
	return flags | ppn0<<10 | ppn1<<19 | ppn2<<28
}

func pte48Bits(flags uint64, ppn0, ppn1, ppn2, ppn3 uint64) uint64 {
	return flags | ppn0<<10 | ppn1<<19 | ppn2<<28 | ppn3<<37
}

var _ = Describe("MMU", func() {
	var (
		memory *mem.Memory
		u      *MMU
	)

	BeforeEach(func() {
		memory = mem.NewMemory(1<<24, 4096)
		u = MakeBuilder().
			WithMemory(memory).
			WithHartIx(0).
			WithTLBSize(16).
			Build()
	})

	It("should translate identically in bare mode", func() {
		pa, cause := u.Translate(0xdeadbeef, vm.Machine, true, false, false)

		Expect(cause).To(Equal(vm.None))
		Expect(pa).To(Equal(uint64(0xdeadbeef)))
	})

	Context("Sv32", func() {
		BeforeEach(func() {
			u.SetMode(vm.Sv32)
			u.SetPageTableRoot(1) // Root table at 0x1000.
		})

		It("should walk a two-level mapping", func() {
			// va 0x00800123: vpn1=2, vpn0=0, offset=0x123.
			memory.Write32(0, 0x1008, pte32Bits(0x1, 0, 0)|uint32(2<<10))
			memory.Write32(0, 0x2000, pte32Bits(leafRWXUAD, 3, 0))

			pa, cause := u.Translate(0x00800123, vm.User, true, false, false)

			Expect(cause).To(Equal(vm.None))
			Expect(pa).To(Equal(uint64(0x00003123)))
		})

		It("should fault when the leaf level runs out", func() {
			// Both levels are pointers.
			memory.Write32(0, 0x1008, pte32Bits(0x1, 0, 0)|uint32(2<<10))
			memory.Write32(0, 0x2000, pte32Bits(0x1, 0, 0)|uint32(3<<10))

			_, cause := u.Translate(0x00800123, vm.User, true, false, false)

			Expect(cause).To(Equal(vm.LoadPageFault))
		})

		It("should fault on the reserved write-only encoding", func() {
			memory.Write32(0, 0x1008, pte32Bits(0x1|0x4, 3, 0)) // V=1 W=1 R=0

			_, cause := u.Translate(0x00800123, vm.User, false, true, false)

			Expect(cause).To(Equal(vm.StorePageFault))
		})

		It("should fault on an invalid entry", func() {
			memory.Write32(0, 0x1008, pte32Bits(0, 3, 0))

			_, cause := u.Translate(0x00800123, vm.User, false, false, true)

			Expect(cause).To(Equal(vm.InstPageFault))
		})

		It("should fault when the pte cannot be read", func() {
			u.SetPageTableRoot(1 << 20) // Table beyond the memory size.

			_, cause := u.Translate(0x00800123, vm.User, true, false, false)

			Expect(cause).To(Equal(vm.LoadPageFault))
		})

		It("should fault when the pmp check rejects the pte address", func() {
			memory.Write32(0, 0x1008, pte32Bits(leafRWXUAD, 0, 3))
			u.SetPmpCheck(func(addr uint64) bool { return false })

			_, cause := u.Translate(0x00800123, vm.User, true, false, false)

			Expect(cause).To(Equal(vm.LoadPageFault))
		})

		It("should translate the same through the TLB as by walking", func() {
			memory.Write32(0, 0x1008, pte32Bits(0x1, 0, 0)|uint32(2<<10))
			memory.Write32(0, 0x2000, pte32Bits(leafRWXUAD, 3, 0))

			walked, cause := u.Translate(0x00800123, vm.User, true, false, false)
			Expect(cause).To(Equal(vm.None))

			hit, cause := u.Translate(0x00800123, vm.User, true, false, false)
			Expect(cause).To(Equal(vm.None))
			Expect(hit).To(Equal(walked))
		})

		It("should use a stale entry until the TLB is invalidated", func() {
			memory.Write32(0, 0x1008, pte32Bits(0x1, 0, 0)|uint32(2<<10))
			memory.Write32(0, 0x2000, pte32Bits(leafRWXUAD, 3, 0))

			before, _ := u.Translate(0x00800123, vm.User, true, false, false)

			// Remap the page in memory behind the TLB's back.
			memory.Write32(0, 0x2000, pte32Bits(leafRWXUAD, 7, 0))

			stale, cause := u.Translate(0x00800123, vm.User, true, false, false)
			Expect(cause).To(Equal(vm.None))
			Expect(stale).To(Equal(before))

			u.InvalidateTLB(0, 0)

			fresh, cause := u.Translate(0x00800123, vm.User, true, false, false)
			Expect(cause).To(Equal(vm.None))
			Expect(fresh).To(Equal(uint64(0x00007123)))
		})

		Context("permissions", func() {
			writeLeaf := func(flags uint64) {
				memory.Write32(0, 0x1008, pte32Bits(0x1, 0, 0)|uint32(2<<10))
				memory.Write32(0, 0x2000, pte32Bits(flags, 3, 0))
				u.FlushTLB()
			}

			It("should fault a user access to a non-user page", func() {
				writeLeaf(0xcf) // V R W X A D, U clear

				_, cause := u.Translate(0x00800123, vm.User, true, false, false)

				Expect(cause).To(Equal(vm.LoadPageFault))
			})

			It("should gate supervisor access to user pages on SUM", func() {
				writeLeaf(leafRWXUAD)

				_, cause := u.Translate(0x00800123, vm.Supervisor,
					true, false, false)
				Expect(cause).To(Equal(vm.LoadPageFault))

				u.SetSupervisorAccessUser(true)
				u.FlushTLB()

				_, cause = u.Translate(0x00800123, vm.Supervisor,
					true, false, false)
				Expect(cause).To(Equal(vm.None))
			})

			It("should gate loads from execute-only pages on MXR", func() {
				writeLeaf(0xc9) // V X A D, R and W clear

				_, cause := u.Translate(0x00800123, vm.Supervisor,
					true, false, false)
				Expect(cause).To(Equal(vm.LoadPageFault))

				u.SetExecReadable(true)
				u.FlushTLB()

				_, cause = u.Translate(0x00800123, vm.Supervisor,
					true, false, false)
				Expect(cause).To(Equal(vm.None))
			})

			It("should fault writes to a read-only page", func() {
				writeLeaf(0xd3) // V R U A D, W clear

				_, cause := u.Translate(0x00800123, vm.User, false, true, false)

				Expect(cause).To(Equal(vm.StorePageFault))
			})

			It("should fault fetches from a non-executable page", func() {
				writeLeaf(0xd7) // V R W U A D, X clear

				_, cause := u.Translate(0x00800123, vm.User, false, false, true)

				Expect(cause).To(Equal(vm.InstPageFault))
			})

			It("should never fault a satisfied, settled leaf", func() {
				writeLeaf(leafRWXUAD)

				for i := 0; i < 3; i++ {
					pa, cause := u.Translate(0x00800123, vm.User,
						true, false, false)
					Expect(cause).To(Equal(vm.None))
					Expect(pa).To(Equal(uint64(0x00003123)))
				}
			})
		})
	})

	Context("Sv39", func() {
		BeforeEach(func() {
			u.SetMode(vm.Sv39)
			u.SetPageTableRoot(1)
		})

		It("should map a level-2 superpage", func() {
			// va 0x40001234: vpn2=1, vpn1=0, vpn0=1, offset=0x234.
			memory.Write64(0, 0x1008, pte39Bits(leafRWXUAD, 0, 0, 5))

			pa, cause := u.Translate(0x40001234, vm.User, true, false, false)

			Expect(cause).To(Equal(vm.None))
			Expect(pa).To(Equal(uint64(0x140001234)))
		})

		It("should fault a misaligned superpage", func() {
			memory.Write64(0, 0x1008, pte39Bits(leafRWXUAD, 1, 0, 5))

			_, cause := u.Translate(0x40001234, vm.User, true, false, false)

			Expect(cause).To(Equal(vm.LoadPageFault))
		})

		It("should fault a non-canonical address", func() {
			_, cause := u.Translate(0x0100000000000000, vm.User,
				true, false, false)

			Expect(cause).To(Equal(vm.LoadPageFault))
		})

		It("should accept a canonical negative address", func() {
			// All of bits 63:39 equal bit 38. vpn2=0x1ff, vpn1=0x1ff,
			// vpn0=0x1ff maps through a level-2 superpage.
			memory.Write64(0, 0x1000+0x1ff*8, pte39Bits(leafRWXUAD, 0, 0, 5))

			pa, cause := u.Translate(0xfffffffffffff234, vm.User,
				false, true, false)

			Expect(cause).To(Equal(vm.None))
			Expect(pa).To(Equal(uint64(5)<<30 | uint64(0x3ffff234)))
		})
	})

	Context("Sv48", func() {
		BeforeEach(func() {
			u.SetMode(vm.Sv48)
			u.SetPageTableRoot(1)
		})

		It("should walk four levels", func() {
			// va 0x123: every vpn component is zero.
			memory.Write64(0, 0x1000, pte48Bits(0x1, 2, 0, 0, 0))
			memory.Write64(0, 0x2000, pte48Bits(0x1, 3, 0, 0, 0))
			memory.Write64(0, 0x3000, pte48Bits(0x1, 4, 0, 0, 0))
			memory.Write64(0, 0x4000, pte48Bits(leafRWXUAD, 9, 0, 0, 0))

			pa, cause := u.Translate(0x123, vm.User, true, false, false)

			Expect(cause).To(Equal(vm.None))
			Expect(pa).To(Equal(uint64(0x9123)))
		})

		It("should fault a non-canonical address", func() {
			_, cause := u.Translate(0x0001000000000000, vm.User,
				false, false, true)

			Expect(cause).To(Equal(vm.InstPageFault))
		})
	})

	Context("accessed and dirty bits", func() {
		var (
			mockCtrl *gomock.Controller
			mockMem  *MockMemory
		)

		const (
			pteAddr  = uint64(0x1008)
			stalePte = uint64(3<<20) | leafRWU
		)

		BeforeEach(func() {
			mockCtrl = gomock.NewController(GinkgoT())
			mockMem = NewMockMemory(mockCtrl)

			u = MakeBuilder().
				WithMemory(mockMem).
				WithHartIx(2).
				WithTLBSize(16).
				Build()
			u.SetMode(vm.Sv32)
			u.SetPageTableRoot(1)
		})

		AfterEach(func() {
			mockCtrl.Finish()
		})

		It("should write the pte back once and then stay quiet", func() {
			// A level-1 superpage leaf with A and D clear.
			mockMem.EXPECT().
				Read32(pteAddr).
				Return(uint32(stalePte), true)
			mockMem.EXPECT().
				Write32(2, pteAddr, uint32(stalePte|0xc0)).
				Return(true).
				Times(1)

			pa, cause := u.Translate(0x00800123, vm.User, false, true, false)
			Expect(cause).To(Equal(vm.None))
			Expect(pa).To(Equal(uint64(0x00c00123)))

			// Second write hits the TLB; no memory traffic at all.
			pa, cause = u.Translate(0x00800123, vm.User, false, true, false)
			Expect(cause).To(Equal(vm.None))
			Expect(pa).To(Equal(uint64(0x00c00123)))
		})

		It("should fault instead of updating when configured", func() {
			u.SetFaultOnFirstAccess(true)

			mockMem.EXPECT().
				Read32(pteAddr).
				Return(uint32(stalePte), true)

			_, cause := u.Translate(0x00800123, vm.User, false, true, false)

			Expect(cause).To(Equal(vm.StorePageFault))
		})

		It("should fault when the pte write back fails", func() {
			mockMem.EXPECT().
				Read32(pteAddr).
				Return(uint32(stalePte), true)
			mockMem.EXPECT().
				Write32(2, pteAddr, gomock.Any()).
				Return(false)

			_, cause := u.Translate(0x00800123, vm.User, false, true, false)

			Expect(cause).To(Equal(vm.StorePageFault))
		})
	})
})
