//go:generate mockgen -destination=mock_memory.go -package=mmu -write_package_comment=false github.com/CircuitSutra/VeeR-ISS/mem/vm/mmu Memory

package mmu
