package multiboot

import "unsafe"

const (
	// HeaderMagic is the magic value the kernel image embeds in its
	// multiboot header so the bootloader can locate it.
	HeaderMagic = 0x1BADB002

	// BootloaderMagic is the value a multiboot-compliant bootloader
	// passes to the kernel entrypoint.
	BootloaderMagic = 0x2BADB002

	// HeaderFlagPageAlign asks the bootloader to align loaded modules on
	// page boundaries.
	HeaderFlagPageAlign = 1 << 0

	// HeaderFlagMemoryInfo asks the bootloader to provide a memory map.
	HeaderFlagMemoryInfo = 1 << 1
)

// Info flag bits describing which parts of the info structure are valid.
const (
	flagMemInfo = 1 << 0
	flagCmdLine = 1 << 2
	flagMemMap  = 1 << 6
)

// info mirrors the layout of the multiboot information structure that the
// bootloader hands to the kernel entrypoint. Only the fields used by the
// kernel are named; the layout is fixed by the multiboot specification.
type info struct {
	flags      uint32
	memLower   uint32
	memUpper   uint32
	bootDevice uint32
	cmdline    uint32
	modsCount  uint32
	modsAddr   uint32
	syms       [4]uint32
	mmapLength uint32
	mmapAddr   uint32
}

// MemoryEntryType defines the type of a memory map region.
type MemoryEntryType uint32

const (
	// MemAvailable indicates that the memory region is available for use.
	MemAvailable MemoryEntryType = iota + 1

	// MemReserved indicates that the memory region is not available for use.
	MemReserved
)

// MemoryMapEntry describes a memory region reported by the bootloader.
type MemoryMapEntry struct {
	// The physical address for this memory region.
	PhysAddress uint64

	// The length of the memory region.
	Length uint64

	// The type of this entry.
	Type MemoryEntryType
}

// Memory map entry field offsets relative to the entry start. Each entry
// begins with a size field that does not count itself; the 64-bit address and
// length fields follow unaligned, so the fields are extracted manually
// instead of overlaying a struct.
const (
	mmapEntryAddrOffset = 4
	mmapEntryLenOffset  = 12
	mmapEntryTypeOffset = 20
)

var infoData uintptr

// MemRegionVisitor defines a visitor function that gets invoked by
// VisitMemRegions for each memory region provided by the bootloader. The
// visitor must return true to continue or false to abort the scan.
type MemRegionVisitor func(entry *MemoryMapEntry) bool

// SetInfoPtr updates the internal multiboot information pointer to the given
// value. This function must be invoked before invoking any other function
// exported by this package.
func SetInfoPtr(ptr uintptr) {
	infoData = ptr
}

func infoStruct() *info {
	return (*info)(unsafe.Pointer(infoData))
}

// HasMemoryMap returns true if the bootloader supplied a memory map.
func HasMemoryMap() bool {
	return infoStruct().flags&flagMemMap != 0
}

// BasicMemoryInfo returns the lower and upper memory sizes in KiB as
// reported by the bootloader. Both values are zero if the bootloader did not
// provide basic memory information.
func BasicMemoryInfo() (lowerKB, upperKB uint32) {
	inf := infoStruct()
	if inf.flags&flagMemInfo == 0 {
		return 0, 0
	}
	return inf.memLower, inf.memUpper
}

// VisitMemRegions invokes the supplied visitor for each memory region
// defined by the multiboot info data that we received from the bootloader.
func VisitMemRegions(visitor MemRegionVisitor) {
	inf := infoStruct()
	if inf.flags&flagMemMap == 0 {
		return
	}

	var entry MemoryMapEntry

	curPtr := uintptr(inf.mmapAddr)
	endPtr := curPtr + uintptr(inf.mmapLength)
	for curPtr < endPtr {
		// The size field does not count its own four bytes.
		size := *(*uint32)(unsafe.Pointer(curPtr))

		entry.PhysAddress = readUint64(curPtr + mmapEntryAddrOffset)
		entry.Length = readUint64(curPtr + mmapEntryLenOffset)
		entry.Type = MemoryEntryType(*(*uint32)(unsafe.Pointer(curPtr + mmapEntryTypeOffset)))

		// Unknown types are treated as reserved.
		if entry.Type == 0 || entry.Type > MemReserved {
			entry.Type = MemReserved
		}

		if !visitor(&entry) {
			return
		}

		curPtr += uintptr(size) + 4
	}
}

// CmdLine returns the kernel command line supplied by the bootloader or an
// empty string if none was provided. The returned string aliases the memory
// provided by the bootloader.
func CmdLine() string {
	inf := infoStruct()
	if inf.flags&flagCmdLine == 0 || inf.cmdline == 0 {
		return ""
	}

	start := (*byte)(unsafe.Pointer(uintptr(inf.cmdline)))
	length := 0
	for ptr := uintptr(inf.cmdline); *(*byte)(unsafe.Pointer(ptr)) != 0; ptr++ {
		length++
	}

	return unsafe.String(start, length)
}

// readUint64 assembles a 64-bit little-endian value from a possibly
// unaligned address.
func readUint64(addr uintptr) uint64 {
	lo := *(*uint32)(unsafe.Pointer(addr))
	hi := *(*uint32)(unsafe.Pointer(addr + 4))
	return uint64(hi)<<32 | uint64(lo)
}
