package vmm

import "github.com/itisrazza/ClankerOS/kernel"

// Map establishes a mapping between a virtual page and a physical memory
// frame in the kernel page directory. A missing page table is allocated on
// demand from the frame allocator. The entry receives the caller-supplied
// flags OR'd with the page-aligned physical address and the TLB entry for
// virtAddr is invalidated.
func Map(virtAddr, physAddr uintptr, flags PageTableEntryFlag) *kernel.Error {
	table := tableFor(virtAddr, true)
	if table == nil {
		return errNoTableSpace
	}

	entry := &table.entries[tblIndex(virtAddr)]
	*entry = 0
	entry.SetFrame(physAddr)
	entry.SetFlags(flags)

	flushTLBEntryFn(virtAddr)

	return nil
}

// Unmap removes the mapping for a virtual page and invalidates its TLB
// entry. Unmapping an address with no page table is a no-op.
func Unmap(virtAddr uintptr) {
	table := tableFor(virtAddr, false)
	if table == nil {
		return
	}

	table.entries[tblIndex(virtAddr)] = 0
	flushTLBEntryFn(virtAddr)
}

// Translate returns the physical address that virtAddr maps to, including
// the offset within the page, or 0 if any intermediate entry lacks the
// present bit.
func Translate(virtAddr uintptr) uintptr {
	table := tableFor(virtAddr, false)
	if table == nil {
		return 0
	}

	entry := table.entries[tblIndex(virtAddr)]
	if !entry.HasFlags(FlagPresent) {
		return 0
	}

	return entry.Frame() | (virtAddr & uintptr(flagMask))
}
