package tlb

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/CircuitSutra/VeeR-ISS/mem/vm"
)

var _ = Describe("TLB", func() {
	var t *TLB

	entry := func(vpn, asid uint64) vm.TlbEntry {
		return vm.TlbEntry{
			VirtPageNum: vpn,
			PhysPageNum: vpn + 0x100,
			Asid:        asid,
			Valid:       true,
			Read:        true,
		}
	}

	BeforeEach(func() {
		t = MakeBuilder().WithNumEntries(4).Build()
	})

	It("should miss when empty", func() {
		Expect(t.Find(0x10, 1)).To(BeNil())
	})

	It("should find an inserted entry", func() {
		t.Insert(entry(0x10, 1))

		e := t.Find(0x10, 1)
		Expect(e).NotTo(BeNil())
		Expect(e.PhysPageNum).To(Equal(uint64(0x110)))
	})

	It("should not match a different address space", func() {
		t.Insert(entry(0x10, 1))

		Expect(t.Find(0x10, 2)).To(BeNil())
	})

	It("should match a global entry from any address space", func() {
		e := entry(0x10, 1)
		e.Global = true
		t.Insert(e)

		Expect(t.Find(0x10, 2)).NotTo(BeNil())
	})

	It("should return a mutable handle", func() {
		t.Insert(entry(0x10, 1))

		e := t.Find(0x10, 1)
		e.Accessed = true
		e.Dirty = true

		again := t.Find(0x10, 1)
		Expect(again.Accessed).To(BeTrue())
		Expect(again.Dirty).To(BeTrue())
	})

	It("should replace an entry for the same page in place", func() {
		t.Insert(entry(0x10, 1))

		e := entry(0x10, 1)
		e.PhysPageNum = 0x999
		t.Insert(e)

		Expect(t.Find(0x10, 1).PhysPageNum).To(Equal(uint64(0x999)))
	})

	It("should keep the entry for page zero while other ways fill", func() {
		t.Insert(entry(0, 0))
		t.Insert(entry(0x11, 1))
		t.Insert(entry(0x12, 1))

		Expect(t.Find(0, 0)).NotTo(BeNil())
	})

	It("should evict the least recently used entry when full", func() {
		t.Insert(entry(0x10, 1))
		t.Insert(entry(0x11, 1))
		t.Insert(entry(0x12, 1))
		t.Insert(entry(0x13, 1))

		// Touch 0x10 so that 0x11 becomes the LRU entry.
		t.Find(0x10, 1)

		t.Insert(entry(0x14, 1))

		Expect(t.Find(0x11, 1)).To(BeNil())
		Expect(t.Find(0x10, 1)).NotTo(BeNil())
		Expect(t.Find(0x14, 1)).NotTo(BeNil())
	})

	Context("invalidation", func() {
		BeforeEach(func() {
			t.Insert(entry(0x10, 1))
			t.Insert(entry(0x11, 1))
			t.Insert(entry(0x10, 2))

			g := entry(0x12, 1)
			g.Global = true
			t.Insert(g)
		})

		It("should flush everything when both selectors are zero", func() {
			t.Invalidate(0, 0)

			Expect(t.Find(0x10, 1)).To(BeNil())
			Expect(t.Find(0x11, 1)).To(BeNil())
			Expect(t.Find(0x10, 2)).To(BeNil())
			Expect(t.Find(0x12, 1)).To(BeNil())
		})

		It("should invalidate one page in all address spaces", func() {
			t.Invalidate(0, 0x10)

			Expect(t.Find(0x10, 1)).To(BeNil())
			Expect(t.Find(0x10, 2)).To(BeNil())
			Expect(t.Find(0x11, 1)).NotTo(BeNil())
		})

		It("should invalidate one address space but keep globals", func() {
			t.Invalidate(1, 0)

			Expect(t.Find(0x10, 1)).To(BeNil())
			Expect(t.Find(0x11, 1)).To(BeNil())
			Expect(t.Find(0x10, 2)).NotTo(BeNil())
			Expect(t.Find(0x12, 1)).NotTo(BeNil())
		})

		It("should invalidate a single page of a single space", func() {
			t.Invalidate(1, 0x10)

			Expect(t.Find(0x10, 1)).To(BeNil())
			Expect(t.Find(0x11, 1)).NotTo(BeNil())
			Expect(t.Find(0x10, 2)).NotTo(BeNil())
		})
	})
})
