// Package vmm maintains the kernel page directory: it maps and unmaps
// virtual pages with protection flags, translates virtual to physical
// addresses and keeps the TLB coherent with every structural change.
package vmm

import (
	"unsafe"

	"github.com/itisrazza/ClankerOS/kernel"
	"github.com/itisrazza/ClankerOS/kernel/cpu"
	"github.com/itisrazza/ClankerOS/kernel/irq"
	"github.com/itisrazza/ClankerOS/kernel/mem"
	"github.com/itisrazza/ClankerOS/kernel/mem/pmm"
)

// identityMapSize is the amount of low memory that gets identity-mapped at
// initialization so kernel code and data remain reachable once paging is on.
const identityMapSize = uintptr(4 << 20)

var (
	// kernelPageDirectory is the directory every kernel task runs under.
	kernelPageDirectory *pageTable

	// kernelPageDirectoryPhys is the physical address loaded into CR3.
	kernelPageDirectoryPhys uintptr

	// The following functions are mocked by tests and are automatically
	// inlined by the compiler.
	frameAllocFn      = pmm.AllocFrame
	flushTLBEntryFn   = cpu.FlushTLBEntry
	switchPDTFn       = cpu.SwitchPDT
	enablePagingFn    = cpu.EnablePaging
	handleExceptionFn = irq.HandleException

	errNoDirectorySpace = &kernel.Error{Module: "vmm", Message: "out of memory allocating page directory"}
	errNoTableSpace     = &kernel.Error{Module: "vmm", Message: "out of memory allocating page table"}
)

// Init allocates and activates the kernel page directory: the first 4M of
// physical memory are identity-mapped so that kernel code, data and the
// memory-mapped VGA buffer remain reachable, then paging is enabled and the
// page-fault handler is installed.
func Init() *kernel.Error {
	pdPhys := frameAllocFn()
	if pdPhys == 0 {
		return errNoDirectorySpace
	}

	kernel.Memset(pdPhys, 0, uintptr(mem.PageSize))
	kernelPageDirectory = (*pageTable)(unsafe.Pointer(pdPhys))
	kernelPageDirectoryPhys = pdPhys

	for addr := uintptr(0); addr < identityMapSize; addr += uintptr(mem.PageSize) {
		if err := Map(addr, addr, FlagPresent|FlagRW); err != nil {
			return err
		}
	}

	switchPDTFn(pdPhys)
	enablePagingFn()

	handleExceptionFn(irq.PageFaultException, pageFaultHandler)

	return nil
}

// ActiveDirectory returns the physical address of the kernel page directory.
func ActiveDirectory() uintptr {
	return kernelPageDirectoryPhys
}

// SwitchDirectory loads the given page directory into the address
// translation register, flushing the TLB.
func SwitchDirectory(pdPhys uintptr) {
	switchPDTFn(pdPhys)
}

// dirIndex returns the page directory slot for a virtual address.
func dirIndex(virtAddr uintptr) uint32 {
	return uint32(virtAddr>>22) & 0x3FF
}

// tblIndex returns the page table slot for a virtual address.
func tblIndex(virtAddr uintptr) uint32 {
	return uint32(virtAddr>>mem.PageShift) & 0x3FF
}

// tableFor returns the page table covering virtAddr. With create set, a
// missing table is allocated, zeroed and installed as present and writable;
// without it, a missing table yields nil.
func tableFor(virtAddr uintptr, create bool) *pageTable {
	pde := &kernelPageDirectory.entries[dirIndex(virtAddr)]

	if pde.HasFlags(FlagPresent) {
		return (*pageTable)(unsafe.Pointer(pde.Frame()))
	}

	if !create {
		return nil
	}

	tablePhys := frameAllocFn()
	if tablePhys == 0 {
		return nil
	}

	kernel.Memset(tablePhys, 0, uintptr(mem.PageSize))

	*pde = 0
	pde.SetFrame(tablePhys)
	pde.SetFlags(FlagPresent | FlagRW)

	return (*pageTable)(unsafe.Pointer(tablePhys))
}
